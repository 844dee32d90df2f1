package publish

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"git.home.luguber.info/inful/matrixci/internal/config"
	"git.home.luguber.info/inful/matrixci/internal/matrix"
)

func publishTarget() config.PublishConfig {
	return config.PublishConfig{Branch: "master", OS: "linux", Channel: "stable"}
}

func TestShouldPublishExactMatch(t *testing.T) {
	job := matrix.Job{OS: "linux", Channel: "stable"}
	ctx := Context{IsPullRequest: false, Branch: "master"}

	assert.True(t, ShouldPublish(ctx, job, publishTarget()))
}

func TestShouldPublishFlippingAnyTermSuppresses(t *testing.T) {
	base := matrix.Job{OS: "linux", Channel: "stable"}
	cases := []struct {
		name string
		ctx  Context
		job  matrix.Job
	}{
		{"pull request", Context{IsPullRequest: true, Branch: "master"}, base},
		{"wrong branch", Context{Branch: "feature/foo"}, base},
		{"wrong os", Context{Branch: "master"}, matrix.Job{OS: "osx", Channel: "stable"}},
		{"wrong channel", Context{Branch: "master"}, matrix.Job{OS: "linux", Channel: "nightly"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.False(t, ShouldPublish(tc.ctx, tc.job, publishTarget()))
		})
	}
}

func TestMatchingJobs(t *testing.T) {
	jobs := []matrix.Job{
		{OS: "linux", Channel: "stable"},
		{OS: "linux", Channel: "nightly"},
		{OS: "osx", Channel: "stable"},
	}
	assert.Equal(t, 1, MatchingJobs(jobs, publishTarget()))

	// A duplicated tuple (product entry repeated by an include) makes the
	// publish target ambiguous.
	jobs = append(jobs, matrix.Job{OS: "linux", Channel: "stable"})
	assert.Equal(t, 2, MatchingJobs(jobs, publishTarget()))

	assert.Equal(t, 0, MatchingJobs(nil, publishTarget()))
}
