// SPDX-License-Identifier: MIT

// Package bootstrap is the composition root: it loads configuration, opens
// the database and wires services, the HTTP API and the daemon.
package bootstrap

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/seedlab/seedlab/internal/config"
	"github.com/seedlab/seedlab/internal/daemon"
	"github.com/seedlab/seedlab/internal/health"
	xglog "github.com/seedlab/seedlab/internal/log"
	"github.com/seedlab/seedlab/internal/persistence/sqlite"
	"github.com/seedlab/seedlab/internal/telemetry"
)

// Container is the production composition root output.
type Container struct {
	Config       config.AppConfig
	ConfigHolder *config.ConfigHolder
	Logger       zerolog.Logger
	Services     *Services
	Manager      daemon.Manager
	App          *daemon.App

	tracing   *telemetry.Provider
	closeOnce sync.Once
}

// LoadConfig resolves the config file and loads it with ENV overlays.
func LoadConfig(version, explicitConfigPath string) (config.AppConfig, string, error) {
	path, err := ResolveConfigPath(strings.TrimSpace(explicitConfigPath))
	if err != nil {
		return config.AppConfig{}, "", fmt.Errorf("resolve config path: %w", err)
	}
	cfg, err := config.NewLoader(path, version).Load()
	if err != nil {
		return config.AppConfig{}, "", fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, path, nil
}

// OpenDatabase creates the data directory and opens the migrated database.
func OpenDatabase(ctx context.Context, cfg config.AppConfig) (*sql.DB, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o750); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return sqlite.OpenMigrated(ctx, cfg.Database.Path, sqlite.Config{
		BusyTimeout:  cfg.Database.BusyTimeout,
		MaxOpenConns: cfg.Database.MaxOpenConns,
	})
}

// WireServices builds the production dependency graph and returns a runnable container.
func WireServices(ctx context.Context, version, commit, buildDate, explicitConfigPath string) (*Container, error) {
	if ctx == nil {
		return nil, fmt.Errorf("wire services context is nil")
	}

	xglog.Configure(xglog.Config{Level: "info", Service: "seedlab", Version: version})

	cfg, path, err := LoadConfig(version, explicitConfigPath)
	if err != nil {
		return nil, err
	}

	xglog.Configure(xglog.Config{
		Level:   cfg.Log.Level,
		Service: cfg.Log.Service,
		Version: cfg.Version,
	})
	logger := xglog.WithComponent("bootstrap")

	if path != "" {
		logger.Info().Str("event", "config.loaded").Str("source", "file").Str("path", path).Msg("loaded configuration from file")
	} else {
		logger.Info().Str("event", "config.loaded").Str("source", "env+defaults").Msg("loaded configuration from environment and defaults")
	}
	if raw, err := json.Marshal(cfg); err == nil {
		logger.Info().
			Str("event", "config.snapshot").
			Str("sha256", fmt.Sprintf("%x", sha256.Sum256(raw))).
			Msg("configuration snapshot fingerprint")
	}

	c := &Container{
		Config:       cfg,
		ConfigHolder: config.NewConfigHolder(cfg, config.NewLoader(path, version)),
		Logger:       logger,
	}

	if cfg.Telemetry.Enabled {
		tp, err := telemetry.NewProvider(ctx, telemetry.FromConfig(cfg.Telemetry, cfg.Log.Service, cfg.Version))
		if err != nil {
			return nil, fmt.Errorf("initialize tracing: %w", err)
		}
		c.tracing = tp
	}

	db, err := OpenDatabase(ctx, cfg)
	if err != nil {
		c.Close(ctx)
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := health.PerformStartupChecks(ctx, cfg, db); err != nil {
		_ = db.Close()
		c.Close(ctx)
		return nil, fmt.Errorf("startup checks failed: %w", err)
	}

	svc, err := Build(ctx, cfg, db)
	if err != nil {
		_ = db.Close()
		c.Close(ctx)
		return nil, err
	}
	c.Services = svc

	mgr, err := daemon.NewManager(cfg.Server, daemon.Deps{
		Logger:     xglog.WithComponent("daemon"),
		APIHandler: svc.API.Handler(),
	})
	if err != nil {
		_ = svc.Close()
		_ = db.Close()
		c.Close(ctx)
		return nil, fmt.Errorf("create daemon manager: %w", err)
	}
	// LIFO: streams and stores close before the database.
	mgr.RegisterShutdownHook("database", func(context.Context) error { return db.Close() })
	mgr.RegisterShutdownHook("services", func(context.Context) error { return svc.Close() })
	if c.tracing != nil {
		mgr.RegisterShutdownHook("tracing", c.tracing.Shutdown)
	}
	c.Manager = mgr

	purge := &daemon.PurgeJob{
		Interval:      cfg.Auth.PurgeInterval,
		Auth:          svc.Auth,
		Notifications: svc.Notifications,
		Checker:       svc.Purge,
		Logger:        xglog.WithComponent("purge"),
	}
	c.App = daemon.NewApp(xglog.WithComponent("app"), mgr, c.ConfigHolder, purge)
	c.App.OnReload(func(next config.AppConfig) { svc.Dashboard.SetTTL(next.Cache.DashboardTTL) })

	logger.Info().
		Str("event", "startup").
		Str("version", version).
		Str("commit", commit).
		Str("build_date", buildDate).
		Str("addr", cfg.Server.ListenAddr).
		Str("database", cfg.Database.Path).
		Str("cache", cfg.Cache.Backend).
		Str("sessions", cfg.Auth.SessionBackend).
		Msg("starting seedlab")
	return c, nil
}

// Run starts the daemon app loop.
func (c *Container) Run(ctx context.Context) error {
	if ctx == nil {
		return fmt.Errorf("run context is nil")
	}
	if c == nil || c.App == nil {
		return fmt.Errorf("container is not fully initialized")
	}
	return c.App.Run(ctx)
}

// Close releases what was acquired before the manager took ownership.
func (c *Container) Close(ctx context.Context) {
	c.closeOnce.Do(func() {
		if c.tracing != nil {
			_ = c.tracing.Shutdown(ctx)
		}
	})
}

// ResolveConfigPath returns the absolute path of an explicit config file, or
// config.yaml in SEEDLAB_DATA when present, or "" for ENV-only configuration.
func ResolveConfigPath(explicit string) (string, error) {
	if explicit != "" {
		absPath, err := filepath.Abs(explicit)
		if err != nil {
			return "", fmt.Errorf("resolve absolute path for explicit config %q: %w", explicit, err)
		}
		info, err := os.Stat(absPath)
		if err != nil {
			return "", fmt.Errorf("explicit config file not found %q: %w", absPath, err)
		}
		if info.IsDir() {
			return "", fmt.Errorf("explicit config path %q is a directory", absPath)
		}
		return absPath, nil
	}

	dataDir := strings.TrimSpace(config.ParseString("SEEDLAB_DATA", config.Defaults().DataDir))
	autoPath := filepath.Join(dataDir, "config.yaml")
	if info, err := os.Stat(autoPath); err == nil && !info.IsDir() {
		if absPath, absErr := filepath.Abs(autoPath); absErr == nil {
			return absPath, nil
		}
	}
	return "", nil
}
