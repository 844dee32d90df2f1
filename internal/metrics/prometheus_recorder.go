package metrics

import (
	"strconv"
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	once         sync.Once
	stepDuration *prom.HistogramVec
	jobDuration  *prom.HistogramVec
	stepResults  *prom.CounterVec
	jobOutcomes  *prom.CounterVec
	runOutcomes  *prom.CounterVec
	publishes    *prom.CounterVec
}

// NewPrometheusRecorder constructs and registers Prometheus metrics (idempotent).
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{}
	pr.once.Do(func() {
		pr.stepDuration = prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "matrixci",
			Name:      "step_duration_seconds",
			Help:      "Duration of individual pipeline steps",
			Buckets:   prom.DefBuckets,
		}, []string{"step"})
		pr.jobDuration = prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "matrixci",
			Name:      "job_duration_seconds",
			Help:      "Total duration of matrix jobs",
			Buckets:   prom.DefBuckets,
		}, []string{"job"})
		pr.stepResults = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "matrixci",
			Name:      "step_results_total",
			Help:      "Step result counts by outcome",
		}, []string{"step", "result"})
		pr.jobOutcomes = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "matrixci",
			Name:      "job_outcomes_total",
			Help:      "Job outcomes by final status",
		}, []string{"outcome"})
		pr.runOutcomes = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "matrixci",
			Name:      "run_outcomes_total",
			Help:      "Run outcomes by final status",
		}, []string{"outcome"})
		pr.publishes = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "matrixci",
			Name:      "doc_publishes_total",
			Help:      "Documentation publish attempts by success",
		}, []string{"success"})
		reg.MustRegister(pr.stepDuration, pr.jobDuration, pr.stepResults, pr.jobOutcomes, pr.runOutcomes, pr.publishes)
	})
	return pr
}

func (p *PrometheusRecorder) ObserveStepDuration(step string, d time.Duration) {
	if p == nil || p.stepDuration == nil {
		return
	}
	p.stepDuration.WithLabelValues(step).Observe(d.Seconds())
}

func (p *PrometheusRecorder) ObserveJobDuration(job string, d time.Duration) {
	if p == nil || p.jobDuration == nil {
		return
	}
	p.jobDuration.WithLabelValues(job).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncStepResult(step string, result ResultLabel) {
	if p == nil || p.stepResults == nil {
		return
	}
	p.stepResults.WithLabelValues(step, string(result)).Inc()
}

func (p *PrometheusRecorder) IncJobOutcome(outcome string) {
	if p == nil || p.jobOutcomes == nil {
		return
	}
	p.jobOutcomes.WithLabelValues(outcome).Inc()
}

func (p *PrometheusRecorder) IncRunOutcome(outcome string) {
	if p == nil || p.runOutcomes == nil {
		return
	}
	p.runOutcomes.WithLabelValues(outcome).Inc()
}

func (p *PrometheusRecorder) IncPublish(success bool) {
	if p == nil || p.publishes == nil {
		return
	}
	p.publishes.WithLabelValues(strconv.FormatBool(success)).Inc()
}
