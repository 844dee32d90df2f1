// Package run orchestrates a full matrix run: expansion, parallel job
// execution in isolated workspaces, tolerance policy, history, and gated
// documentation publication.
package run

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/matrixci/internal/config"
	"git.home.luguber.info/inful/matrixci/internal/events"
	"git.home.luguber.info/inful/matrixci/internal/logfields"
	"git.home.luguber.info/inful/matrixci/internal/matrix"
	"git.home.luguber.info/inful/matrixci/internal/metrics"
	"git.home.luguber.info/inful/matrixci/internal/pipeline"
	"git.home.luguber.info/inful/matrixci/internal/publish"
	"git.home.luguber.info/inful/matrixci/internal/report"
	"git.home.luguber.info/inful/matrixci/internal/workspace"
)

// JobRunner executes a single job's pipeline.
type JobRunner interface {
	RunJob(ctx context.Context, job matrix.Job, jobDir string) pipeline.JobResult
}

// DocPublisher performs the documentation publish side effect.
type DocPublisher interface {
	Publish(ctx context.Context, docsDir string, extraFiles map[string][]byte) error
}

// RunStore persists finished run reports.
type RunStore interface {
	RecordRun(ctx context.Context, r *report.Report) error
}

// Orchestrator drives one matrix run end to end.
type Orchestrator struct {
	cfg       *config.Config
	runner    JobRunner
	policy    matrix.TolerancePolicy
	publisher DocPublisher
	recorder  metrics.Recorder
	events    *events.Publisher
	store     RunStore
}

// Options carries the orchestrator's optional collaborators.
type Options struct {
	Publisher DocPublisher
	Recorder  metrics.Recorder
	Events    *events.Publisher
	Store     RunStore
}

// NewOrchestrator builds an orchestrator. Runner is required; everything in
// opts may be nil.
func NewOrchestrator(cfg *config.Config, runner JobRunner, opts Options) *Orchestrator {
	rec := opts.Recorder
	if rec == nil {
		rec = metrics.NoopRecorder{}
	}
	return &Orchestrator{
		cfg:       cfg,
		runner:    runner,
		policy:    matrix.NewTolerancePolicy(cfg.Matrix.AllowFailures),
		publisher: opts.Publisher,
		recorder:  rec,
		events:    opts.Events,
		store:     opts.Store,
	}
}

// Execute runs the whole matrix once. The returned report carries the run
// outcome; the error is non-nil only for infrastructure failures that
// prevented the run from happening at all.
func (o *Orchestrator) Execute(ctx context.Context, pubCtx publish.Context) (*report.Report, error) {
	runID := uuid.NewString()[:8]
	jobs := matrix.Expand(o.cfg.Matrix)

	rep := &report.Report{RunID: runID, Branch: pubCtx.Branch, Started: time.Now()}

	slog.Info("Starting matrix run",
		logfields.RunID(runID),
		slog.Int("jobs", len(jobs)),
		logfields.Branch(pubCtx.Branch))

	// The publish condition is authored, not enforced: warn when the matrix
	// makes it ambiguous so concurrent publishers cannot race unnoticed.
	if o.cfg.Publish.Enabled {
		if n := publish.MatchingJobs(jobs, o.cfg.Publish); n > 1 {
			slog.Warn("Multiple jobs match the publish target; only the first successful one publishes",
				slog.Int("matching", n))
		} else if n == 0 {
			slog.Warn("No job matches the publish target; documentation will never publish")
		}
	}

	ws := workspace.NewManager(o.cfg.Workspace.Dir, o.cfg.Workspace.Keep)
	if err := ws.Create(); err != nil {
		return nil, err
	}
	defer func() {
		if err := ws.Cleanup(); err != nil {
			slog.Warn("Failed to cleanup workspace", logfields.Error(err))
		}
	}()

	o.events.RunStarted(runID)

	results := o.runJobs(ctx, ws, jobs)

	for _, res := range results {
		tolerated := res.Failed() && o.policy.Tolerated(res.Job)
		rep.Jobs = append(rep.Jobs, report.JobReport{JobResult: res, Tolerated: tolerated})

		switch {
		case tolerated:
			o.recorder.IncJobOutcome("tolerated")
			slog.Warn("Job failed on a tolerated channel; not failing the run",
				logfields.RunID(runID),
				logfields.JobID(res.Job.ID()),
				logfields.Channel(res.Job.Channel))
		default:
			o.recorder.IncJobOutcome(string(res.Outcome))
		}
		o.events.JobFinished(runID, res.Job.ID(), string(res.Outcome), tolerated)
	}

	// Duration is fixed before publishing so the rendered status page
	// carries the real run time.
	rep.Duration = time.Since(rep.Started)
	o.maybePublish(ctx, pubCtx, rep)

	outcome := rep.Outcome()
	o.recorder.IncRunOutcome(string(outcome))
	o.events.RunFinished(runID, string(outcome))

	if o.store != nil {
		if err := o.store.RecordRun(ctx, rep); err != nil {
			slog.Warn("Failed to record run history", logfields.RunID(runID), logfields.Error(err))
		}
	}

	slog.Info("Matrix run finished",
		logfields.RunID(runID),
		logfields.Outcome(string(outcome)),
		logfields.DurationMS(float64(rep.Duration.Milliseconds())))
	return rep, nil
}

// runJobs executes jobs through a bounded worker pool, preserving the
// expansion order in the returned slice.
func (o *Orchestrator) runJobs(ctx context.Context, ws *workspace.Manager, jobs []matrix.Job) []pipeline.JobResult {
	results := make([]pipeline.JobResult, len(jobs))

	concurrency := o.cfg.Run.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	sem := make(chan struct{}, concurrency)

	var wg sync.WaitGroup
	for i, job := range jobs {
		wg.Add(1)
		go func(idx int, job matrix.Job) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			// Index-prefixed so duplicate tuples get distinct directories.
			jobDir, err := ws.JobDir(fmt.Sprintf("%02d-%s", idx, job.ID()))
			if err != nil {
				slog.Warn("Failed to create job directory, logs and build output fall back to shared locations",
					logfields.JobID(job.ID()), logfields.Error(err))
				jobDir = ""
			}
			results[idx] = o.runner.RunJob(ctx, job, jobDir)
		}(i, job)
	}
	wg.Wait()
	return results
}

// maybePublish runs the publish side effect for the first successful job that
// satisfies the publish condition. A publish failure is reported on the run
// but never rewrites the job's own outcome.
func (o *Orchestrator) maybePublish(ctx context.Context, pubCtx publish.Context, rep *report.Report) {
	if !o.cfg.Publish.Enabled || o.publisher == nil {
		return
	}

	for _, j := range rep.Jobs {
		if j.Failed() || !publish.ShouldPublish(pubCtx, j.Job, o.cfg.Publish) {
			continue
		}

		extra := map[string][]byte{}
		if page, err := report.HTML(rep); err == nil {
			extra["status.html"] = page
		}

		// Docs live in the publishing job's own output tree when it has one.
		docsRoot := o.cfg.Project.Dir
		if j.OutputDir != "" {
			docsRoot = j.OutputDir
		}
		docsDir := filepath.Join(docsRoot, o.cfg.Publish.DocsDir)
		if err := o.publisher.Publish(ctx, docsDir, extra); err != nil {
			rep.PublishError = err.Error()
			o.recorder.IncPublish(false)
			slog.Error("Documentation publish failed",
				logfields.RunID(rep.RunID),
				logfields.JobID(j.Job.ID()),
				logfields.Error(err))
		} else {
			rep.Published = true
			o.recorder.IncPublish(true)
		}
		return
	}
}
