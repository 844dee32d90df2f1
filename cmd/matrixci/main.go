package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/matrixci/internal/config"
	"git.home.luguber.info/inful/matrixci/internal/daemon"
	"git.home.luguber.info/inful/matrixci/internal/events"
	"git.home.luguber.info/inful/matrixci/internal/history"
	"git.home.luguber.info/inful/matrixci/internal/logfields"
	"git.home.luguber.info/inful/matrixci/internal/matrix"
	"git.home.luguber.info/inful/matrixci/internal/metrics"
	"git.home.luguber.info/inful/matrixci/internal/pipeline"
	"git.home.luguber.info/inful/matrixci/internal/publish"
	"git.home.luguber.info/inful/matrixci/internal/report"
	"git.home.luguber.info/inful/matrixci/internal/run"
	"git.home.luguber.info/inful/matrixci/internal/version"
)

var CLI struct {
	Config  string           `short:"c" help:"Configuration file path" default:"matrixci.yaml"`
	Verbose bool             `short:"v" help:"Enable verbose logging"`
	Version kong.VersionFlag `help:"Print version and exit"`

	Run struct {
		Branch      string `help:"Current branch name" env:"MATRIXCI_BRANCH" default:"master"`
		PullRequest bool   `help:"Treat this run as a pull request build" env:"MATRIXCI_PULL_REQUEST"`
	} `cmd:"" help:"Expand the matrix and run every job"`

	Expand struct{} `cmd:"" help:"Print the expanded job list without running anything"`

	Init struct {
		Force bool `help:"Overwrite existing configuration file"`
	} `cmd:"" help:"Initialize a new configuration file"`

	Daemon struct {
		Branch string `help:"Branch the daemon builds and publishes from" env:"MATRIXCI_BRANCH" default:"master"`
	} `cmd:"" help:"Run matrix builds continuously on a schedule"`
}

func main() {
	ctx := kong.Parse(&CLI, kong.Vars{"version": version.Version})

	// Set up logging
	logLevel := slog.LevelInfo
	if CLI.Verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	switch ctx.Command() {
	case "run":
		cfg := mustLoadConfig()
		pubCtx := publish.Context{IsPullRequest: CLI.Run.PullRequest, Branch: CLI.Run.Branch}
		if err := runMatrix(cfg, pubCtx); err != nil {
			slog.Error("Run failed", logfields.Error(err))
			os.Exit(1)
		}
	case "expand":
		cfg := mustLoadConfig()
		runExpand(cfg)
	case "init":
		if err := config.Init(CLI.Config, CLI.Init.Force); err != nil {
			slog.Error("Init failed", logfields.Error(err))
			os.Exit(1)
		}
		slog.Info("Configuration written", logfields.Path(CLI.Config))
	case "daemon":
		cfg := mustLoadConfig()
		pubCtx := publish.Context{IsPullRequest: false, Branch: CLI.Daemon.Branch}
		if err := runDaemon(cfg, pubCtx); err != nil {
			slog.Error("Daemon failed", logfields.Error(err))
			os.Exit(1)
		}
	}
}

func mustLoadConfig() *config.Config {
	cfg, err := config.Load(CLI.Config)
	if err != nil {
		slog.Error("Failed to load configuration", logfields.Error(err))
		os.Exit(1)
	}
	return cfg
}

// buildOrchestrator wires the orchestrator and its collaborators from config.
// The recorder is shared across rebuilds so metric families register once.
func buildOrchestrator(cfg *config.Config, recorder metrics.Recorder) (*run.Orchestrator, func(), error) {
	runner := pipeline.NewRunner(cfg, pipeline.NewShellRunner(), recorder)

	opts := run.Options{Recorder: recorder}
	var cleanups []func()

	if cfg.Publish.Enabled {
		opts.Publisher = publish.NewPublisher(cfg.Publish)
	}
	if cfg.History.Path != "" {
		store, err := history.Open(cfg.History.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open run history: %w", err)
		}
		opts.Store = store
		cleanups = append(cleanups, func() { _ = store.Close() })
	}
	publisher, err := events.NewPublisher(cfg.Events)
	if err != nil {
		slog.Warn("Event publishing unavailable", logfields.Error(err))
	} else {
		opts.Events = publisher
		cleanups = append(cleanups, publisher.Close)
	}

	cleanup := func() {
		for _, fn := range cleanups {
			fn()
		}
	}
	return run.NewOrchestrator(cfg, runner, opts), cleanup, nil
}

func runMatrix(cfg *config.Config, pubCtx publish.Context) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	orchestrator, cleanup, err := buildOrchestrator(cfg, metrics.NewPrometheusRecorder(prom.NewRegistry()))
	if err != nil {
		return err
	}
	defer cleanup()

	rep, err := orchestrator.Execute(ctx, pubCtx)
	if err != nil {
		return err
	}

	fmt.Print(report.Markdown(rep))
	if rep.Outcome() == matrix.OutcomeFailure {
		return fmt.Errorf("matrix run %s failed", rep.RunID)
	}
	return nil
}

func runExpand(cfg *config.Config) {
	jobs := matrix.Expand(cfg.Matrix)
	policy := matrix.NewTolerancePolicy(cfg.Matrix.AllowFailures)

	for i, job := range jobs {
		note := ""
		if policy.Tolerated(job) {
			note = " (failures tolerated)"
		}
		fmt.Printf("%2d  %-20s env=%v%s\n", i+1, job.ID(), job.Env, note)
	}
	if cfg.Publish.Enabled {
		fmt.Printf("\npublish target: %s-%s on branch %s (%d matching jobs)\n",
			cfg.Publish.OS, cfg.Publish.Channel, cfg.Publish.Branch,
			publish.MatchingJobs(jobs, cfg.Publish))
	}
}

func runDaemon(cfg *config.Config, pubCtx publish.Context) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	registry := prom.NewRegistry()
	recorder := metrics.NewPrometheusRecorder(registry)
	factory := func(cfg *config.Config) (daemon.Executor, func(), error) {
		orchestrator, cleanup, err := buildOrchestrator(cfg, recorder)
		if err != nil {
			return nil, nil, err
		}
		return orchestrator, cleanup, nil
	}

	d, err := daemon.New(cfg, CLI.Config, factory, pubCtx)
	if err != nil {
		return fmt.Errorf("failed to create daemon: %w", err)
	}

	errChan := make(chan error, 1)
	go func() {
		errChan <- d.Start(ctx, registry)
	}()

	slog.Info("Daemon started, waiting for shutdown signal...")

	select {
	case err := <-errChan:
		if err != nil {
			return fmt.Errorf("daemon error: %w", err)
		}
	case <-ctx.Done():
		slog.Info("Shutdown signal received, stopping daemon...")
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer stopCancel()

	if err := d.Stop(stopCtx); err != nil {
		return fmt.Errorf("failed to stop daemon: %w", err)
	}

	slog.Info("Daemon stopped")
	return nil
}
