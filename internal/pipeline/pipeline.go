// Package pipeline executes the per-job step sequence: build, library-path
// setup, test, docs. Steps are strictly sequential; the first failure
// short-circuits the remainder. Jobs never share state: each invocation gets
// its own environment map and log directory.
package pipeline

import (
	"context"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"time"

	"git.home.luguber.info/inful/matrixci/internal/config"
	"git.home.luguber.info/inful/matrixci/internal/libpath"
	"git.home.luguber.info/inful/matrixci/internal/logfields"
	"git.home.luguber.info/inful/matrixci/internal/matrix"
	"git.home.luguber.info/inful/matrixci/internal/metrics"
)

// Step names in execution order.
const (
	StepBuild   = "build"
	StepLibpath = "libpath"
	StepTest    = "test"
	StepDocs    = "docs"
)

// StepResult records one step's outcome for reporting.
type StepResult struct {
	Name     string
	Result   metrics.ResultLabel
	Duration time.Duration
	Error    string
}

// JobResult is the full record of one job's pipeline run.
type JobResult struct {
	Job       matrix.Job
	Outcome   matrix.Outcome
	Steps     []StepResult
	Started   time.Time
	Duration  time.Duration
	LibDirs   []string // library directories prepended to the search path
	OutputDir string   // this job's private build-output directory, "" when none
}

// Failed reports whether any step failed.
func (r JobResult) Failed() bool { return r.Outcome == matrix.OutcomeFailure }

// Runner executes job pipelines. The command runner is injected so tests can
// substitute a fake; production code uses NewShellRunner.
type Runner struct {
	cfg      *config.Config
	run      CommandRunner
	recorder metrics.Recorder
}

// NewRunner creates a pipeline runner. A nil recorder defaults to noop.
func NewRunner(cfg *config.Config, run CommandRunner, recorder metrics.Recorder) *Runner {
	if recorder == nil {
		recorder = metrics.NoopRecorder{}
	}
	return &Runner{cfg: cfg, run: run, recorder: recorder}
}

// RunJob executes the job's steps in order, stopping at the first failure.
// Steps after a failure are recorded as skipped. jobDir is the job's private
// workspace: step logs go there, and an output/ subdirectory is exported as
// MATRIXCI_OUTPUT_DIR so step commands can direct build artifacts into it.
// Concurrent jobs share the project source tree but never an output tree.
func (r *Runner) RunJob(ctx context.Context, job matrix.Job, jobDir string) JobResult {
	result := JobResult{Job: job, Outcome: matrix.OutcomeSuccess, Started: time.Now()}

	// The job owns its environment: the job's variable set overlaid on the
	// process environment, mutated only through this map.
	env := make(map[string]string, len(job.Env)+3)
	maps.Copy(env, job.Env)
	env["MATRIXCI_OS"] = job.OS
	env["MATRIXCI_CHANNEL"] = job.Channel

	// Library discovery is rooted in the job's own output tree when it has
	// one, so a sibling job's artifacts are never picked up.
	libRoot := r.cfg.Project.Dir
	if jobDir != "" {
		outDir := filepath.Join(jobDir, "output")
		if err := os.MkdirAll(outDir, 0o750); err != nil {
			slog.Warn("Failed to create build-output directory, artifacts fall back to the project tree",
				logfields.JobID(job.ID()), logfields.Error(err))
		} else {
			env["MATRIXCI_OUTPUT_DIR"] = outDir
			result.OutputDir = outDir
			libRoot = outDir
		}
	}

	slog.Info("Starting job",
		logfields.JobID(job.ID()),
		logfields.OS(job.OS),
		logfields.Channel(job.Channel))

	failed := false

	runCommand := func(name, command string) {
		if failed || command == "" {
			result.Steps = append(result.Steps, StepResult{Name: name, Result: metrics.ResultSkipped})
			r.recorder.IncStepResult(name, metrics.ResultSkipped)
			return
		}

		stepCtx := ctx
		if timeout := r.cfg.Steps.TimeoutDuration(); timeout > 0 {
			var cancel context.CancelFunc
			stepCtx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}

		slog.Info("Running step",
			logfields.JobID(job.ID()),
			logfields.Step(name),
			logfields.Command(command))

		t0 := time.Now()
		err := r.run(stepCtx, r.cfg.Project.Dir, command, flattenEnv(env), stepLogPath(jobDir, name))
		dur := time.Since(t0)
		r.recorder.ObserveStepDuration(name, dur)

		sr := StepResult{Name: name, Duration: dur, Result: metrics.ResultSuccess}
		if err != nil {
			sr.Result = metrics.ResultFailure
			sr.Error = err.Error()
			failed = true
			slog.Error("Step failed",
				logfields.JobID(job.ID()),
				logfields.Step(name),
				logfields.DurationMS(float64(dur.Milliseconds())),
				logfields.Error(err))
		} else {
			slog.Info("Step completed",
				logfields.JobID(job.ID()),
				logfields.Step(name),
				logfields.DurationMS(float64(dur.Milliseconds())))
		}
		r.recorder.IncStepResult(name, sr.Result)
		result.Steps = append(result.Steps, sr)
	}

	runCommand(StepBuild, r.cfg.Steps.Build)

	// Library-path setup runs only after a successful build. Zero discovered
	// directories is a no-op, never a failure.
	if !failed {
		result.LibDirs = libpath.Augment(env, job.OS, libRoot, r.cfg.Libpath)
		result.Steps = append(result.Steps, StepResult{Name: StepLibpath, Result: metrics.ResultSuccess})
		r.recorder.IncStepResult(StepLibpath, metrics.ResultSuccess)
	} else {
		result.Steps = append(result.Steps, StepResult{Name: StepLibpath, Result: metrics.ResultSkipped})
		r.recorder.IncStepResult(StepLibpath, metrics.ResultSkipped)
	}

	runCommand(StepTest, r.cfg.Steps.Test)
	runCommand(StepDocs, r.cfg.Steps.Docs)

	if failed {
		result.Outcome = matrix.OutcomeFailure
	}
	result.Duration = time.Since(result.Started)
	r.recorder.ObserveJobDuration(job.ID(), result.Duration)

	slog.Info("Job finished",
		logfields.JobID(job.ID()),
		logfields.Outcome(string(result.Outcome)),
		logfields.DurationMS(float64(result.Duration.Milliseconds())))
	return result
}

// flattenEnv merges the job environment over the process environment into the
// KEY=VALUE form the exec layer needs.
func flattenEnv(env map[string]string) []string {
	out := os.Environ()
	for k, v := range env {
		out = append(out, k+"="+v)
	}
	return out
}

func stepLogPath(jobDir, step string) string {
	if jobDir == "" {
		return ""
	}
	return filepath.Join(jobDir, step+".log")
}
