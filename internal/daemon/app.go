// SPDX-License-Identifier: MIT

// Package daemon owns the server lifecycle: the HTTP server, config reloads
// and background jobs.
package daemon

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/seedlab/seedlab/internal/config"
	xglog "github.com/seedlab/seedlab/internal/log"
)

// Job is a background task that runs until ctx is cancelled.
type Job interface {
	Run(ctx context.Context) error
}

// App owns the long-lived runtime lifecycle (watchers, reload wiring, jobs)
// and delegates server management to Manager.
type App struct {
	logger       zerolog.Logger
	manager      Manager
	cfgHolder    *config.ConfigHolder
	jobs         []Job
	reloadHooks  []func(config.AppConfig)
	reloadSignal os.Signal
}

// NewApp creates a new App orchestrator.
func NewApp(logger zerolog.Logger, manager Manager, cfgHolder *config.ConfigHolder, jobs ...Job) *App {
	return &App{
		logger:       logger,
		manager:      manager,
		cfgHolder:    cfgHolder,
		jobs:         jobs,
		reloadSignal: syscall.SIGHUP,
	}
}

// OnReload registers fn to receive every successfully reloaded config.
// Call before Run.
func (a *App) OnReload(fn func(config.AppConfig)) {
	a.reloadHooks = append(a.reloadHooks, fn)
}

// Run starts all owned background subsystems and blocks until ctx is cancelled or a fatal error occurs.
func (a *App) Run(ctx context.Context) error {
	if a.manager == nil {
		return ErrMissingManager
	}

	g, ctx := errgroup.WithContext(ctx)

	// Best-effort: startup does not fail if the watcher cannot be started.
	if a.cfgHolder != nil {
		if err := a.cfgHolder.StartWatcher(ctx); err != nil {
			a.logger.Warn().Err(err).Str("event", "config.watcher_start_failed").Msg("failed to start config watcher")
		}

		applyCh := make(chan config.AppConfig, 1)
		a.cfgHolder.RegisterListener(applyCh)
		g.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return nil
				case cfg := <-applyCh:
					a.apply(cfg)
				}
			}
		})
	}

	if a.cfgHolder != nil && a.reloadSignal != nil {
		g.Go(func() error {
			hupChan := make(chan os.Signal, 1)
			signal.Notify(hupChan, a.reloadSignal)
			defer signal.Stop(hupChan)

			for {
				select {
				case <-ctx.Done():
					return nil
				case <-hupChan:
					a.logger.Info().
						Str("event", "config.reload_signal").
						Str("signal", a.reloadSignal.String()).
						Msg("received reload signal, reloading config")

					if err := a.cfgHolder.Reload(ctx); err != nil {
						a.logger.Warn().
							Err(err).
							Str("event", "config.reload_failed").
							Msg("config reload failed")
					}
				}
			}
		})
	}

	for _, job := range a.jobs {
		g.Go(func() error { return job.Run(ctx) })
	}

	g.Go(func() error {
		err := a.manager.Start(ctx)
		if err != nil {
			_ = a.manager.Shutdown(context.WithoutCancel(ctx))
		}
		return err
	})

	return g.Wait()
}

// apply pushes the hot-reloadable settings of cfg into the running process:
// the log level here, the rest through the reload hooks.
func (a *App) apply(cfg config.AppConfig) {
	xglog.Configure(xglog.Config{
		Level:   cfg.Log.Level,
		Service: cfg.Log.Service,
		Version: cfg.Version,
	})
	for _, fn := range a.reloadHooks {
		fn(cfg)
	}
	a.logger.Info().
		Str("event", "config.applied").
		Str("log_level", cfg.Log.Level).
		Msg("applied reloaded configuration")
}
