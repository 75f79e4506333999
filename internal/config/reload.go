// SPDX-License-Identifier: MIT

package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	xglog "github.com/seedlab/seedlab/internal/log"
)

// restartOnly lists settings bound at startup. A reload keeps the running
// value for each of them and logs that a restart is needed.
var restartOnly = []struct {
	key  string
	pin  func(dst *AppConfig, running AppConfig)
	same func(a, b AppConfig) bool
}{
	{"server.listenAddr",
		func(d *AppConfig, r AppConfig) { d.Server.ListenAddr = r.Server.ListenAddr },
		func(a, b AppConfig) bool { return a.Server.ListenAddr == b.Server.ListenAddr }},
	{"dataDir",
		func(d *AppConfig, r AppConfig) { d.DataDir = r.DataDir },
		func(a, b AppConfig) bool { return a.DataDir == b.DataDir }},
	{"database.path",
		func(d *AppConfig, r AppConfig) { d.Database = r.Database },
		func(a, b AppConfig) bool { return a.Database == b.Database }},
	{"auth.sessionBackend",
		func(d *AppConfig, r AppConfig) {
			d.Auth.SessionBackend, d.Auth.SessionPath = r.Auth.SessionBackend, r.Auth.SessionPath
		},
		func(a, b AppConfig) bool {
			return a.Auth.SessionBackend == b.Auth.SessionBackend && a.Auth.SessionPath == b.Auth.SessionPath
		}},
	{"auth.jwtSecret",
		func(d *AppConfig, r AppConfig) { d.Auth.JWTSecret = r.Auth.JWTSecret },
		func(a, b AppConfig) bool { return a.Auth.JWTSecret == b.Auth.JWTSecret }},
	{"cache.backend",
		func(d *AppConfig, r AppConfig) {
			d.Cache.Backend, d.Cache.RedisAddr, d.Cache.RedisPassword, d.Cache.RedisDB =
				r.Cache.Backend, r.Cache.RedisAddr, r.Cache.RedisPassword, r.Cache.RedisDB
		},
		func(a, b AppConfig) bool {
			return a.Cache.Backend == b.Cache.Backend && a.Cache.RedisAddr == b.Cache.RedisAddr &&
				a.Cache.RedisPassword == b.Cache.RedisPassword && a.Cache.RedisDB == b.Cache.RedisDB
		}},
}

// ConfigHolder is the live configuration. Reloads come from the file
// watcher or SIGHUP; a failed reload keeps the previous config.
type ConfigHolder struct {
	mu      sync.RWMutex
	current AppConfig

	loader   *Loader
	path     string
	logger   zerolog.Logger
	debounce time.Duration

	// serializes Reload so listeners see configs in load order
	reloadMu  sync.Mutex
	listeners []chan<- AppConfig
}

func NewConfigHolder(initial AppConfig, loader *Loader) *ConfigHolder {
	h := &ConfigHolder{
		current:  initial,
		loader:   loader,
		logger:   xglog.WithComponent("config"),
		debounce: 500 * time.Millisecond,
	}
	if loader != nil {
		h.path = loader.Path()
	}
	return h
}

func (h *ConfigHolder) Get() AppConfig {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current
}

// Reload loads and validates the file again, then notifies listeners.
func (h *ConfigHolder) Reload(_ context.Context) error {
	if h.loader == nil {
		return fmt.Errorf("config holder has no loader")
	}
	h.reloadMu.Lock()
	defer h.reloadMu.Unlock()

	next, err := h.loader.Load()
	if err != nil {
		h.logger.Error().Err(err).Str("event", "config.reload_failed").Msg("configuration rejected, keeping current")
		return fmt.Errorf("load config: %w", err)
	}

	running := h.Get()
	var pinned []string
	for _, f := range restartOnly {
		if !f.same(running, next) {
			f.pin(&next, running)
			pinned = append(pinned, f.key)
		}
	}
	if len(pinned) > 0 {
		h.logger.Warn().Strs("keys", pinned).Str("event", "config.restart_required").
			Msg("settings changed that only apply after a restart")
	}
	if running.Log.Level != next.Log.Level {
		h.logger.Info().Str("old", running.Log.Level).Str("new", next.Log.Level).Msg("log level changed")
	}

	h.mu.Lock()
	h.current = next
	h.mu.Unlock()

	for _, ch := range h.listeners {
		select {
		case ch <- next:
		default:
			h.logger.Warn().Str("event", "config.listener_slow").Msg("config listener busy, notification skipped")
		}
	}
	h.logger.Info().Str("event", "config.reloaded").Msg("configuration reloaded")
	return nil
}

// StartWatcher reloads after the config file changes. The parent directory
// is watched so editors that replace the file by rename are noticed.
// Without a config file this is a no-op.
func (h *ConfigHolder) StartWatcher(ctx context.Context) error {
	if h.path == "" {
		h.logger.Info().Str("event", "config.watcher_disabled").Msg("no config file, watcher disabled")
		return nil
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := w.Add(filepath.Dir(h.path)); err != nil {
		_ = w.Close()
		return fmt.Errorf("watch config dir: %w", err)
	}
	h.logger.Info().Str("event", "config.watcher_started").Str("path", h.path).Msg("watching config file")
	go h.watch(ctx, w)
	return nil
}

func (h *ConfigHolder) watch(ctx context.Context, w *fsnotify.Watcher) {
	defer func() { _ = w.Close() }()
	target := filepath.Clean(h.path)

	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != target || !ev.Has(fsnotify.Write|fsnotify.Create|fsnotify.Rename) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(h.debounce, func() {
				// errors are logged by Reload
				_ = h.Reload(ctx)
			})
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			h.logger.Error().Err(err).Str("event", "config.watcher_error").Msg("config watcher error")
		}
	}
}

// RegisterListener subscribes ch to reloads. Sends never block; the caller
// owns ch. Register before the first reload.
func (h *ConfigHolder) RegisterListener(ch chan<- AppConfig) {
	h.reloadMu.Lock()
	defer h.reloadMu.Unlock()
	h.listeners = append(h.listeners, ch)
}
