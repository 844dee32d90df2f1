// Package matrix expands a declarative build matrix into concrete jobs and
// applies its exception policies. Expansion and policy application are pure
// functions over the configuration.
package matrix

import (
	"fmt"
	"maps"

	"git.home.luguber.info/inful/matrixci/internal/config"
)

// Job is one concrete (operating system, compiler channel, environment)
// combination to build and test. Jobs are independent: no job reads state
// produced by another.
type Job struct {
	OS      string
	Channel string
	Env     map[string]string
}

// ID returns a stable human-readable identity for the job tuple. Duplicate
// tuples (a product entry repeated by an include entry) share an ID; both
// still run.
func (j Job) ID() string {
	return fmt.Sprintf("%s-%s", j.OS, j.Channel)
}

// Expand produces the ordered job sequence for a matrix declaration: the
// cartesian product first (OS outer, channel inner, in declared order), then
// include entries appended verbatim. No de-duplication is performed.
// Expansion is deterministic and has no side effects, so repeated calls with
// the same declaration yield identical sequences.
func Expand(m config.MatrixConfig) []Job {
	jobs := make([]Job, 0, len(m.OS)*len(m.Channels)+len(m.Include))
	for _, os := range m.OS {
		for _, ch := range m.Channels {
			jobs = append(jobs, Job{OS: os, Channel: ch, Env: cloneEnv(m.Env)})
		}
	}
	for _, inc := range m.Include {
		env := cloneEnv(m.Env)
		maps.Copy(env, inc.Env)
		jobs = append(jobs, Job{OS: inc.OS, Channel: inc.Channel, Env: env})
	}
	return jobs
}

// cloneEnv copies the base environment so every job owns its map. A nil base
// yields an empty, non-nil map.
func cloneEnv(base map[string]string) map[string]string {
	env := make(map[string]string, len(base))
	maps.Copy(env, base)
	return env
}
