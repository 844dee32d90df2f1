package metrics

import "time"

// ResultLabel enumerates step result categories for counters.
type ResultLabel string

const (
	ResultSuccess ResultLabel = "success"
	ResultFailure ResultLabel = "failure"
	ResultSkipped ResultLabel = "skipped"
)

// Recorder defines observability hooks for run, job and step metrics.
// Implementations may forward to Prometheus, OpenTelemetry, etc. All methods
// must be safe on the NoopRecorder so a recorder can always be injected.
type Recorder interface {
	ObserveStepDuration(step string, d time.Duration)
	ObserveJobDuration(job string, d time.Duration)
	IncStepResult(step string, result ResultLabel)
	IncJobOutcome(outcome string) // outcome: success|failure|tolerated
	IncRunOutcome(outcome string) // outcome: success|failure
	IncPublish(success bool)
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveStepDuration(string, time.Duration) {}
func (NoopRecorder) ObserveJobDuration(string, time.Duration)  {}
func (NoopRecorder) IncStepResult(string, ResultLabel)         {}
func (NoopRecorder) IncJobOutcome(string)                      {}
func (NoopRecorder) IncRunOutcome(string)                      {}
func (NoopRecorder) IncPublish(bool)                           {}
