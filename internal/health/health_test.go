// SPDX-License-Identifier: MIT

package health

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seedlab/seedlab/internal/config"
	"github.com/seedlab/seedlab/internal/log"
	"github.com/seedlab/seedlab/internal/persistence/sqlite"
)

type mockChecker struct {
	name   string
	status Status
}

func (m *mockChecker) Name() string { return m.name }
func (m *mockChecker) Check(context.Context) CheckResult {
	return CheckResult{Status: m.status}
}

func TestManager_Health_NoCheckers(t *testing.T) {
	m := NewManager("v1.0.0")
	resp := m.Live(context.Background(), false)
	assert.Equal(t, StatusHealthy, resp.Status)
	assert.Equal(t, "v1.0.0", resp.Version)
	assert.Nil(t, resp.Checks)

	m.RegisterChecker(&mockChecker{name: "cache", status: StatusUnhealthy})
	assert.Nil(t, m.Live(context.Background(), false).Checks)
	assert.Equal(t, StatusUnhealthy, m.Live(context.Background(), true).Status)
}

func TestManager_Ready_Aggregates(t *testing.T) {
	m := NewManager("v1")
	m.RegisterChecker(&mockChecker{name: "a", status: StatusHealthy})
	m.RegisterChecker(&mockChecker{name: "b", status: StatusDegraded})

	resp := m.Ready(context.Background())
	assert.True(t, resp.Ready)
	assert.Equal(t, StatusDegraded, resp.Status)

	m.RegisterChecker(&mockChecker{name: "c", status: StatusUnhealthy})
	resp = m.Ready(context.Background())
	assert.False(t, resp.Ready)
	assert.Equal(t, StatusUnhealthy, resp.Status)
}

func TestServeReady_StatusCodes(t *testing.T) {
	m := NewManager("v1")
	m.RegisterChecker(NewPingChecker("cache", func(context.Context) error { return errors.New("down") }, false))

	rec := httptest.NewRecorder()
	m.ServeReady(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "down", body.Checks["cache"].Error)
	assert.False(t, body.Ready)

	rec = httptest.NewRecorder()
	m.ServeHealth(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServeReady_LogsFailedCheckWithRequestID(t *testing.T) {
	var buf bytes.Buffer
	log.Configure(log.Config{Level: "debug", Output: &buf, Service: "test"})
	t.Cleanup(func() { log.Configure(log.Config{}) })

	m := NewManager("v1")
	m.RegisterChecker(NewPingChecker("db", func(context.Context) error { return errors.New("locked") }, false))

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	req = req.WithContext(log.ContextWithRequestID(req.Context(), "req-7"))
	rec := httptest.NewRecorder()
	m.ServeReady(rec, req)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "readiness.failed", entry["event"])
	assert.Equal(t, "health", entry["component"])
	assert.Equal(t, "req-7", entry[log.FieldRequestID])
}

func TestPingChecker_Optional(t *testing.T) {
	c := NewPingChecker("redis", func(context.Context) error { return errors.New("x") }, true)
	assert.Equal(t, StatusDegraded, c.Check(context.Background()).Status)
}

func TestLastRunChecker(t *testing.T) {
	c := NewLastRunChecker("purge", time.Hour)
	assert.Equal(t, StatusHealthy, c.Check(context.Background()).Status)

	c.Record(time.Now(), errors.New("locked"))
	assert.Equal(t, StatusDegraded, c.Check(context.Background()).Status)

	c.Record(time.Now().Add(-3*time.Hour), nil)
	assert.Equal(t, StatusDegraded, c.Check(context.Background()).Status)

	c.Record(time.Now(), nil)
	assert.Equal(t, StatusHealthy, c.Check(context.Background()).Status)
}

func TestPerformStartupChecks(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	db, err := sqlite.OpenMigrated(ctx, filepath.Join(dir, "lims.db"), sqlite.DefaultConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	cfg := config.Defaults()
	cfg.DataDir = dir
	require.NoError(t, PerformStartupChecks(ctx, cfg, db))

	require.NoError(t, NewDBChecker(db).ping(ctx))

	cfg.DataDir = filepath.Join(dir, "missing")
	require.Error(t, PerformStartupChecks(ctx, cfg, db))
}
