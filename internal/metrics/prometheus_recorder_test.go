package metrics

import (
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusRecorderRegistersAndCounts(t *testing.T) {
	reg := prom.NewRegistry()
	pr := NewPrometheusRecorder(reg)

	pr.ObserveStepDuration("build", 2*time.Second)
	pr.ObserveJobDuration("linux-stable", 5*time.Second)
	pr.IncStepResult("build", ResultSuccess)
	pr.IncStepResult("test", ResultFailure)
	pr.IncStepResult("docs", ResultSkipped)
	pr.IncJobOutcome("failure")
	pr.IncRunOutcome("success")
	pr.IncPublish(true)

	families, err := reg.Gather()
	require.NoError(t, err)

	names := make(map[string]bool, len(families))
	for _, f := range families {
		names[f.GetName()] = true
	}
	for _, want := range []string{
		"matrixci_step_duration_seconds",
		"matrixci_job_duration_seconds",
		"matrixci_step_results_total",
		"matrixci_job_outcomes_total",
		"matrixci_run_outcomes_total",
		"matrixci_doc_publishes_total",
	} {
		assert.True(t, names[want], "missing metric family %s", want)
	}
}

func TestNilRecorderIsSafe(t *testing.T) {
	var pr *PrometheusRecorder
	pr.ObserveStepDuration("build", time.Second)
	pr.IncStepResult("build", ResultSuccess)
	pr.IncJobOutcome("success")
	pr.IncRunOutcome("success")
	pr.IncPublish(false)
}

func TestNoopRecorderSatisfiesInterface(t *testing.T) {
	var r Recorder = NoopRecorder{}
	r.ObserveStepDuration("build", time.Second)
	r.IncRunOutcome("success")
}
