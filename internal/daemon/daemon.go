// Package daemon runs matrix builds continuously: on a schedule, and on
// configuration changes. It also exposes Prometheus metrics over HTTP.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/matrixci/internal/config"
	"git.home.luguber.info/inful/matrixci/internal/logfields"
	"git.home.luguber.info/inful/matrixci/internal/metrics"
	"git.home.luguber.info/inful/matrixci/internal/publish"
	"git.home.luguber.info/inful/matrixci/internal/report"
)

// Executor runs one matrix run. Satisfied by run.Orchestrator.
type Executor interface {
	Execute(ctx context.Context, pubCtx publish.Context) (*report.Report, error)
}

// ExecutorFactory builds an executor and its cleanup from a configuration.
// The daemon invokes it at startup and again whenever the configuration file
// changes on disk.
type ExecutorFactory func(cfg *config.Config) (Executor, func(), error)

// Daemon schedules periodic matrix runs and serves metrics.
type Daemon struct {
	cfg        *config.Config
	configPath string
	factory    ExecutorFactory
	executor   Executor
	cleanup    func()
	pubCtx     publish.Context

	scheduler  gocron.Scheduler
	watcher    *ConfigWatcher
	metricsSrv *http.Server

	// one run at a time; schedule ticks and config reloads both funnel here
	runMu sync.Mutex
}

// New creates a daemon, building its initial executor through factory.
func New(cfg *config.Config, configPath string, factory ExecutorFactory, pubCtx publish.Context) (*Daemon, error) {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	executor, cleanup, err := factory(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build executor: %w", err)
	}

	return &Daemon{
		cfg:        cfg,
		configPath: configPath,
		factory:    factory,
		executor:   executor,
		cleanup:    cleanup,
		pubCtx:     pubCtx,
		scheduler:  scheduler,
	}, nil
}

// Start begins scheduled runs, config watching, and the metrics endpoint.
// It blocks until ctx is canceled.
func (d *Daemon) Start(ctx context.Context, registry *prom.Registry) error {
	_, err := d.scheduler.NewJob(
		gocron.DurationJob(d.cfg.Daemon.IntervalDuration()),
		gocron.NewTask(func() { d.triggerRun(ctx, "schedule") }),
		gocron.WithName("matrix-run"),
	)
	if err != nil {
		return fmt.Errorf("failed to create periodic run job: %w", err)
	}
	d.scheduler.Start()
	slog.Info("Scheduler started", slog.String("interval", d.cfg.Daemon.Interval))

	if d.cfg.Daemon.WatchConfig {
		watcher, err := NewConfigWatcher(d.configPath, func() { d.reloadAndRun(ctx) })
		if err != nil {
			return err
		}
		d.watcher = watcher
		if err := d.watcher.Start(ctx); err != nil {
			return err
		}
	}

	if registry != nil {
		d.metricsSrv = &http.Server{
			Addr:              d.cfg.Daemon.MetricsAddr,
			Handler:           metrics.HTTPHandler(registry),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			slog.Info("Metrics endpoint listening", slog.String("addr", d.cfg.Daemon.MetricsAddr))
			if err := d.metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("Metrics server failed", logfields.Error(err))
			}
		}()
	}

	<-ctx.Done()
	return nil
}

// Stop shuts down the scheduler, watcher, and metrics server gracefully.
func (d *Daemon) Stop(ctx context.Context) error {
	var errs []error

	if err := d.scheduler.Shutdown(); err != nil {
		errs = append(errs, fmt.Errorf("scheduler shutdown: %w", err))
	}
	if d.watcher != nil {
		d.watcher.Stop()
	}
	if d.metricsSrv != nil {
		if err := d.metricsSrv.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("metrics server shutdown: %w", err))
		}
	}

	d.runMu.Lock()
	if d.cleanup != nil {
		d.cleanup()
		d.cleanup = nil
	}
	d.runMu.Unlock()

	return errors.Join(errs...)
}

// reloadAndRun reloads the configuration from disk, swaps in an executor
// built from it, and triggers a run. A configuration that fails to load or
// build keeps the previous one in place.
func (d *Daemon) reloadAndRun(ctx context.Context) {
	if err := d.reloadConfig(); err != nil {
		slog.Warn("Keeping previous configuration", logfields.Error(err))
	}
	d.triggerRun(ctx, "config-change")
}

// reloadConfig loads the configuration file again and rebuilds the executor
// from it. Schedule interval and metrics address changes take effect on the
// next daemon start.
func (d *Daemon) reloadConfig() error {
	cfg, err := config.Load(d.configPath)
	if err != nil {
		return fmt.Errorf("failed to reload configuration: %w", err)
	}

	executor, cleanup, err := d.factory(cfg)
	if err != nil {
		return fmt.Errorf("failed to rebuild executor: %w", err)
	}

	d.runMu.Lock()
	if d.cleanup != nil {
		d.cleanup()
	}
	d.cfg, d.executor, d.cleanup = cfg, executor, cleanup
	d.runMu.Unlock()

	slog.Info("Configuration reloaded", logfields.Path(d.configPath))
	return nil
}

// triggerRun executes one matrix run, serializing overlapping triggers.
func (d *Daemon) triggerRun(ctx context.Context, reason string) {
	d.runMu.Lock()
	defer d.runMu.Unlock()

	if ctx.Err() != nil {
		return
	}

	slog.Info("Triggering matrix run", slog.String("reason", reason))
	rep, err := d.executor.Execute(ctx, d.pubCtx)
	if err != nil {
		slog.Error("Matrix run failed to start", logfields.Error(err))
		return
	}
	slog.Info("Matrix run completed",
		logfields.RunID(rep.RunID),
		logfields.Outcome(string(rep.Outcome())))
}
