// SPDX-License-Identifier: MIT

package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seedlab/seedlab/internal/log"
)

func capture(t *testing.T) (*Logger, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	return NewLoggerWith(zerolog.New(&buf)), &buf
}

func decode(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &m))
	return m
}

func TestLogger_LogFillsTimestamp(t *testing.T) {
	l, buf := capture(t)
	l.Log(Event{Type: EventConfigReload, Actor: "system", Result: "success"})

	m := decode(t, buf)
	assert.Equal(t, "audit", m["log_type"])
	assert.Equal(t, "config.reload", m["event_type"])
	assert.NotEmpty(t, m["timestamp"])
}

func TestLogger_LogFromContext(t *testing.T) {
	l, buf := capture(t)
	ctx := log.ContextWithRequestID(context.Background(), "req-456")
	ctx = log.ContextWithClient(ctx, log.Client{IP: "10.0.0.1", UserAgent: "Mozilla/5.0"})

	l.LoginFailure(ctx, "ana", "bad_password")

	m := decode(t, buf)
	assert.Equal(t, "req-456", m["request_id"])
	assert.Equal(t, "10.0.0.1", m["remote_addr"])
	assert.Equal(t, "Mozilla/5.0", m["user_agent"])
	assert.Equal(t, "bad_password", m["reason"])
	assert.Equal(t, "failure", m["result"])
}

func TestLogger_LoginLocked(t *testing.T) {
	l, buf := capture(t)
	l.LoginLocked(context.Background(), "ana", 15*time.Minute)
	m := decode(t, buf)
	assert.Equal(t, "900", m["locked_for_s"])
	assert.Equal(t, "user:ana", m["resource"])
}

func TestLogger_UserAdmin(t *testing.T) {
	l, buf := capture(t)
	l.UserAdmin(context.Background(), EventUserRoleChanged, "admin", 42, map[string]string{"rol": "ANALISTA"})
	m := decode(t, buf)
	assert.Equal(t, "user:42", m["resource"])
	assert.Equal(t, "ANALISTA", m["rol"])
}

func TestLogger_NilSafe(t *testing.T) {
	var l *Logger
	assert.NotPanics(t, func() { l.Log(Event{Type: EventLogout}) })
}
