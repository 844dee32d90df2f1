package matrix

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/matrixci/internal/config"
)

func TestExpandProductOrder(t *testing.T) {
	m := config.MatrixConfig{
		OS:       []string{"linux", "osx"},
		Channels: []string{"stable", "beta", "nightly"},
		Env:      map[string]string{"FEATURES": ""},
	}

	jobs := Expand(m)
	require.Len(t, jobs, 6)

	// OS outer, channel inner, declared order.
	want := []string{
		"linux-stable", "linux-beta", "linux-nightly",
		"osx-stable", "osx-beta", "osx-nightly",
	}
	for i, id := range want {
		assert.Equal(t, id, jobs[i].ID())
	}
}

func TestExpandAppendsIncludesVerbatim(t *testing.T) {
	m := config.MatrixConfig{
		OS:       []string{"linux"},
		Channels: []string{"stable"},
		Env:      map[string]string{"FEATURES": "std"},
		Include: []config.IncludeEntry{
			{OS: "linux", Channel: "nightly", Env: map[string]string{"FEATURES": "std unstable"}},
			// Duplicate of a product entry: both must run, no de-duplication.
			{OS: "linux", Channel: "stable"},
		},
	}

	jobs := Expand(m)
	require.Len(t, jobs, 3)

	assert.Equal(t, "linux-stable", jobs[0].ID())
	assert.Equal(t, "linux-nightly", jobs[1].ID())
	assert.Equal(t, "linux-stable", jobs[2].ID())

	// Include env overlays the base env.
	assert.Equal(t, "std unstable", jobs[1].Env["FEATURES"])
	// Include without env inherits the base.
	assert.Equal(t, "std", jobs[2].Env["FEATURES"])
}

func TestExpandIsIdempotent(t *testing.T) {
	m := config.MatrixConfig{
		OS:       []string{"linux", "osx"},
		Channels: []string{"stable", "nightly"},
		Env:      map[string]string{"FEATURES": "std"},
		Include:  []config.IncludeEntry{{OS: "linux", Channel: "beta"}},
	}

	first := Expand(m)
	second := Expand(m)
	assert.Equal(t, first, second)
}

func TestExpandJobsOwnTheirEnv(t *testing.T) {
	m := config.MatrixConfig{
		OS:       []string{"linux", "osx"},
		Channels: []string{"stable"},
		Env:      map[string]string{"FEATURES": "std"},
	}

	jobs := Expand(m)
	jobs[0].Env["FEATURES"] = "mutated"

	assert.Equal(t, "std", jobs[1].Env["FEATURES"], "env mutation must not leak across jobs")
	assert.Equal(t, "std", m.Env["FEATURES"], "env mutation must not leak into the declaration")
}

func TestExpandEmptyAxes(t *testing.T) {
	jobs := Expand(config.MatrixConfig{
		Include: []config.IncludeEntry{{OS: "linux", Channel: "stable"}},
	})
	require.Len(t, jobs, 1)
	assert.NotNil(t, jobs[0].Env)
}

func TestTolerancePolicy(t *testing.T) {
	p := NewTolerancePolicy(config.AllowFailures{Channels: []string{"nightly"}})

	nightly := Job{OS: "linux", Channel: "nightly"}
	stable := Job{OS: "linux", Channel: "stable"}

	assert.True(t, p.Tolerated(nightly))
	assert.False(t, p.Tolerated(stable))

	// A tolerated failure does not fail the run; an untolerated one does.
	assert.False(t, p.Fatal(nightly, OutcomeFailure))
	assert.True(t, p.Fatal(stable, OutcomeFailure))

	// Success is never fatal.
	assert.False(t, p.Fatal(nightly, OutcomeSuccess))
	assert.False(t, p.Fatal(stable, OutcomeSuccess))
}
