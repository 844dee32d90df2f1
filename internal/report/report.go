// Package report aggregates job results into a run report and renders it for
// humans: a Markdown summary and an HTML page suitable for inclusion in the
// published documentation tree.
package report

import (
	"time"

	"git.home.luguber.info/inful/matrixci/internal/matrix"
	"git.home.luguber.info/inful/matrixci/internal/pipeline"
)

// JobReport is one job's result plus the tolerance policy's view of it.
type JobReport struct {
	pipeline.JobResult
	Tolerated bool // failure tolerated for overall-run purposes
}

// Report is the full record of one matrix run.
type Report struct {
	RunID        string
	Branch       string
	Started      time.Time
	Duration     time.Duration
	Jobs         []JobReport
	Published    bool
	PublishError string
}

// Outcome derives the overall run outcome: a failure on any untolerated job
// fails the run. Tolerated failures and publish failures do not.
func (r *Report) Outcome() matrix.Outcome {
	for _, j := range r.Jobs {
		if j.Failed() && !j.Tolerated {
			return matrix.OutcomeFailure
		}
	}
	return matrix.OutcomeSuccess
}

// FailedJobs returns the jobs that failed, tolerated or not.
func (r *Report) FailedJobs() []JobReport {
	var failed []JobReport
	for _, j := range r.Jobs {
		if j.Failed() {
			failed = append(failed, j)
		}
	}
	return failed
}
