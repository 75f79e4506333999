// SPDX-License-Identifier: MIT

package bootstrap_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seedlab/seedlab/internal/api/problem"
	"github.com/seedlab/seedlab/internal/app/bootstrap"
)

func writeConfig(t *testing.T, redisAddr string) (string, string) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
dataDir: ` + dir + `
server:
  listenAddr: "127.0.0.1:0"
  shutdownTimeout: 2s
auth:
  jwtSecret: "0123456789abcdef0123456789abcdef"
  sessionBackend: badger
  purgeInterval: 1h
cache:
  backend: redis
  redisAddr: ` + redisAddr + `
bootstrap:
  adminUsername: jefa
  adminEmail: jefa@lab.test
  adminPassword: "semilla-2024"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return dir, path
}

func TestWiring_BootsFullStack(t *testing.T) {
	mr := miniredis.RunT(t)
	dir, path := writeConfig(t, mr.Addr())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	c, err := bootstrap.WireServices(ctx, "test", "abc123", "now", path)
	require.NoError(t, err, "wiring failed")
	require.NotNil(t, c.Services)
	require.NotNil(t, c.App)
	assert.Equal(t, dir, c.Config.DataDir)
	assert.Equal(t, filepath.Join(dir, "seedlab.db"), c.Config.Database.Path)

	handler := c.Services.API.Handler()

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.NotEmpty(t, w.Header().Get(problem.HeaderRequestID))

	body, _ := json.Marshal(map[string]string{"login": "jefa", "password": "semilla-2024"})
	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	handler.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	runCtx, stop := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- c.Run(runCtx) }()
	time.Sleep(100 * time.Millisecond)
	stop()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
	assert.Error(t, c.Services.DB.PingContext(context.Background()), "shutdown closes the database")
}

func TestWiring_RejectsMissingSecret(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("dataDir: "+dir+"\n"), 0o600))
	t.Setenv("SEEDLAB_JWT_SECRET", "")

	_, err := bootstrap.WireServices(context.Background(), "test", "", "", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "jwtSecret")
}

func TestResolveConfigPath(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("SEEDLAB_DATA", dir)

	got, err := bootstrap.ResolveConfigPath("")
	require.NoError(t, err)
	assert.Empty(t, got, "no config.yaml in data dir")

	auto := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(auto, []byte("{}"), 0o600))
	got, err = bootstrap.ResolveConfigPath("")
	require.NoError(t, err)
	assert.Equal(t, auto, got)

	_, err = bootstrap.ResolveConfigPath(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)
	_, err = bootstrap.ResolveConfigPath(dir)
	require.Error(t, err)
}
