// SPDX-License-Identifier: MIT

package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestLoadDefaultsWithEnvSecret(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("SEEDLAB_DATA", dir)
	t.Setenv("SEEDLAB_JWT_SECRET", testSecret)

	cfg, err := NewLoader("", "v1.2.3").Load()
	require.NoError(t, err)

	assert.Equal(t, "v1.2.3", cfg.Version)
	assert.Equal(t, ":8080", cfg.Server.ListenAddr)
	assert.Equal(t, filepath.Join(dir, "seedlab.db"), cfg.Database.Path)
	assert.Equal(t, 10, cfg.Auth.BackupCodeCount)
	assert.Equal(t, "memory", cfg.Cache.Backend)
}

func TestLoadRejectsShortSecret(t *testing.T) {
	t.Setenv("SEEDLAB_DATA", t.TempDir())
	t.Setenv("SEEDLAB_JWT_SECRET", "short")

	_, err := NewLoader("", "").Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "auth.jwtSecret")
}

func TestLoadFilePrecedence(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yaml", `
dataDir: `+dir+`
server:
  listenAddr: ":9000"
  allowedOrigins: ["https://lab.example.org"]
auth:
  jwtSecret: `+testSecret+`
  trustedDeviceTTL: 72h
  backupCodeCount: 8
cache:
  backend: memory
  dashboardTTL: 1m
`)
	t.Setenv("SEEDLAB_LISTEN", ":9100")

	cfg, err := NewLoader(path, "").Load()
	require.NoError(t, err)

	assert.Equal(t, ":9100", cfg.Server.ListenAddr, "env wins over file")
	assert.Equal(t, []string{"https://lab.example.org"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, 72*time.Hour, cfg.Auth.TrustedDeviceTTL)
	assert.Equal(t, 8, cfg.Auth.BackupCodeCount)
	assert.Equal(t, time.Minute, cfg.Cache.DashboardTTL)
}

func TestLoadFileStrictUnknownField(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yaml", "auth:\n  jwtSecrett: x\n")
	_, err := NewLoader(path, "").Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "strict config parse error")
}

func TestLoadFileRejectsNonYAML(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.json", "{}")
	_, err := NewLoader(path, "").Load()
	require.Error(t, err)
}

func TestLoadFileInvalidDuration(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yaml", "auth:\n  accessTTL: soon\n")
	_, err := NewLoader(path, "").Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "auth.accessTTL")
}

func TestValidateRedisRequiresAddr(t *testing.T) {
	cfg := Defaults()
	cfg.DataDir = t.TempDir()
	cfg.Auth.JWTSecret = testSecret
	cfg.Cache.Backend = "redis"
	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cache.redisAddr")
}

func TestConfigHolderReloadNotifiesListeners(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yaml", "dataDir: "+dir+"\nlog:\n  level: info\nauth:\n  jwtSecret: "+testSecret+"\n")

	loader := NewLoader(path, "")
	initial, err := loader.Load()
	require.NoError(t, err)

	holder := NewConfigHolder(initial, loader)
	ch := make(chan AppConfig, 1)
	holder.RegisterListener(ch)

	writeFile(t, dir, "config.yaml", "dataDir: "+dir+"\nlog:\n  level: debug\nauth:\n  jwtSecret: "+testSecret+"\n")
	require.NoError(t, holder.Reload(context.Background()))

	select {
	case got := <-ch:
		assert.Equal(t, "debug", got.Log.Level)
	case <-time.After(time.Second):
		t.Fatal("listener not notified")
	}
	assert.Equal(t, "debug", holder.Get().Log.Level)
}

func TestConfigHolderReloadKeepsOldOnError(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yaml", "dataDir: "+dir+"\nauth:\n  jwtSecret: "+testSecret+"\n")
	loader := NewLoader(path, "")
	initial, err := loader.Load()
	require.NoError(t, err)
	holder := NewConfigHolder(initial, loader)

	writeFile(t, dir, "config.yaml", "bogus: true\n")
	require.Error(t, holder.Reload(context.Background()))
	assert.Equal(t, initial.Auth.JWTSecret, holder.Get().Auth.JWTSecret)
}

func TestConfigHolderReloadPinsRestartOnlySettings(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yaml", "dataDir: "+dir+"\nserver:\n  listenAddr: \":8080\"\nauth:\n  jwtSecret: "+testSecret+"\n")
	loader := NewLoader(path, "")
	initial, err := loader.Load()
	require.NoError(t, err)
	holder := NewConfigHolder(initial, loader)

	writeFile(t, dir, "config.yaml", "dataDir: "+dir+"\nserver:\n  listenAddr: \":9090\"\nlog:\n  level: warn\nauth:\n  jwtSecret: "+testSecret+"\n")
	require.NoError(t, holder.Reload(context.Background()))

	got := holder.Get()
	assert.Equal(t, ":8080", got.Server.ListenAddr)
	assert.Equal(t, "warn", got.Log.Level)
}

func TestConfigHolderWatcherReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yaml", "dataDir: "+dir+"\nauth:\n  jwtSecret: "+testSecret+"\n")
	loader := NewLoader(path, "")
	initial, err := loader.Load()
	require.NoError(t, err)

	holder := NewConfigHolder(initial, loader)
	holder.debounce = 10 * time.Millisecond
	ch := make(chan AppConfig, 1)
	holder.RegisterListener(ch)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, holder.StartWatcher(ctx))

	writeFile(t, dir, "config.yaml", "dataDir: "+dir+"\nlog:\n  level: error\nauth:\n  jwtSecret: "+testSecret+"\n")
	select {
	case got := <-ch:
		assert.Equal(t, "error", got.Log.Level)
	case <-time.After(3 * time.Second):
		t.Fatal("watcher did not reload")
	}
}
