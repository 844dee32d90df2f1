package matrix

import (
	"slices"

	"git.home.luguber.info/inful/matrixci/internal/config"
)

// Outcome is the result of a single job's pipeline.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

// TolerancePolicy downgrades failures on tolerated channels for overall-run
// purposes. The job's own outcome is never rewritten: a tolerated failure is
// still reported as a failure, it just does not fail the run.
type TolerancePolicy struct {
	channels []string
}

// NewTolerancePolicy builds a policy from the matrix allow-failures list.
func NewTolerancePolicy(af config.AllowFailures) TolerancePolicy {
	return TolerancePolicy{channels: slices.Clone(af.Channels)}
}

// Tolerated reports whether failures of the given job are tolerated.
func (p TolerancePolicy) Tolerated(job Job) bool {
	return slices.Contains(p.channels, job.Channel)
}

// Fatal reports whether the outcome should fail the overall run.
func (p TolerancePolicy) Fatal(job Job, outcome Outcome) bool {
	return outcome == OutcomeFailure && !p.Tolerated(job)
}
