// Package publish gates and performs documentation publication. The gating
// predicate is pure and separated from the side effect so it can be tested on
// its own.
package publish

import (
	"git.home.luguber.info/inful/matrixci/internal/config"
	"git.home.luguber.info/inful/matrixci/internal/matrix"
)

// Context carries the run-level facts the publish condition depends on.
// It is immutable once built.
type Context struct {
	IsPullRequest bool
	Branch        string
}

// ShouldPublish reports whether the given job may publish documentation.
// All four terms must hold simultaneously: not a pull request, the designated
// source branch, the designated OS, and the designated channel.
func ShouldPublish(ctx Context, job matrix.Job, target config.PublishConfig) bool {
	return !ctx.IsPullRequest &&
		ctx.Branch == target.Branch &&
		job.OS == target.OS &&
		job.Channel == target.Channel
}

// MatchingJobs returns how many of the given jobs satisfy the publish target.
// The orchestrator warns when more than one does: concurrent publishing jobs
// would race on the force-push.
func MatchingJobs(jobs []matrix.Job, target config.PublishConfig) int {
	n := 0
	for _, job := range jobs {
		if job.OS == target.OS && job.Channel == target.Channel {
			n++
		}
	}
	return n
}
