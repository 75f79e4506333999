// SPDX-License-Identifier: MIT

package daemon

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/seedlab/seedlab/internal/config"
	"github.com/seedlab/seedlab/internal/log"
)

func testServerConfig(shutdown time.Duration) config.ServerConfig {
	return config.ServerConfig{
		ListenAddr:      "127.0.0.1:0",
		ReadTimeout:     time.Second,
		WriteTimeout:    time.Second,
		IdleTimeout:     10 * time.Second,
		ShutdownTimeout: shutdown,
	}
}

// startManager runs m in the background and returns the bound address.
func startManager(t *testing.T, cfg config.ServerConfig, h http.Handler) (Manager, string, context.CancelFunc, <-chan error) {
	t.Helper()
	bound := make(chan net.Addr, 1)
	mgr, err := NewManager(cfg, Deps{
		Logger:     log.WithComponent("test"),
		APIHandler: h,
		OnListen:   func(a net.Addr) { bound <- a },
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- mgr.Start(ctx) }()

	select {
	case a := <-bound:
		return mgr, a.String(), cancel, done
	case err := <-done:
		cancel()
		t.Fatalf("Start() returned before listening: %v", err)
	case <-time.After(2 * time.Second):
		cancel()
		t.Fatal("server did not start listening")
	}
	return nil, "", nil, nil
}

func waitDone(t *testing.T, done <-chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("Start() did not return after cancellation")
		return nil
	}
}

func TestNewManager_ValidatesDeps(t *testing.T) {
	tests := []struct {
		name string
		deps Deps
		want error
	}{
		{"ok", Deps{Logger: log.WithComponent("test"), APIHandler: http.NotFoundHandler()}, nil},
		{"disabled logger", Deps{Logger: zerolog.Nop(), APIHandler: http.NotFoundHandler()}, ErrMissingLogger},
		{"no handler", Deps{Logger: log.WithComponent("test")}, ErrMissingAPIHandler},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mgr, err := NewManager(testServerConfig(time.Second), tt.deps)
			if tt.want == nil {
				require.NoError(t, err)
				assert.NotNil(t, mgr)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestManager_ServesUntilCancelled(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	h := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "listo")
	})
	_, addr, cancel, done := startManager(t, testServerConfig(2*time.Second), h)

	client := &http.Client{Transport: &http.Transport{DisableKeepAlives: true}}
	resp, err := client.Get("http://" + addr + "/healthz")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	assert.Equal(t, "listo", string(body))

	cancel()
	assert.NoError(t, waitDone(t, done))
}

func TestManager_ShutdownTimesOutOnStuckRequest(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	inFlight := make(chan struct{})
	release := make(chan struct{})
	h := http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		close(inFlight)
		select {
		case <-r.Context().Done():
		case <-release:
		}
	})
	_, addr, cancel, done := startManager(t, testServerConfig(100*time.Millisecond), h)

	reqDone := make(chan struct{})
	go func() {
		defer close(reqDone)
		client := &http.Client{Transport: &http.Transport{DisableKeepAlives: true}}
		if resp, err := client.Get("http://" + addr + "/api/v1/excel/export"); err == nil {
			_ = resp.Body.Close()
		}
	}()
	select {
	case <-inFlight:
	case <-time.After(2 * time.Second):
		t.Fatal("request never reached the handler")
	}

	cancel()
	err := waitDone(t, done)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "drain API server")

	close(release)
	select {
	case <-reqDone:
	case <-time.After(2 * time.Second):
		t.Fatal("stuck request did not finish after shutdown")
	}
}

func TestManager_ShutdownBeforeStart(t *testing.T) {
	mgr, err := NewManager(testServerConfig(time.Second), Deps{
		Logger:     log.WithComponent("test"),
		APIHandler: http.NotFoundHandler(),
	})
	require.NoError(t, err)
	assert.ErrorIs(t, mgr.Shutdown(context.Background()), ErrManagerNotStarted)
}

func TestManager_ShutdownHooksRunLIFO(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	mgr, _, cancel, done := startManager(t, testServerConfig(time.Second), http.NotFoundHandler())

	var order []string
	mgr.RegisterShutdownHook("db", func(context.Context) error {
		order = append(order, "db")
		return nil
	})
	mgr.RegisterShutdownHook("sessions", func(context.Context) error {
		order = append(order, "sessions")
		return errors.New("flush failed")
	})

	cancel()
	err := waitDone(t, done)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "hook sessions")
	assert.Equal(t, "sessions,db", strings.Join(order, ","))
	assert.NoError(t, mgr.Shutdown(context.Background()), "second shutdown is a no-op")
}

func TestManager_ListenConflictFailsFast(t *testing.T) {
	taken, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer taken.Close()

	cfg := testServerConfig(time.Second)
	cfg.ListenAddr = taken.Addr().String()
	mgr, err := NewManager(cfg, Deps{Logger: log.WithComponent("test"), APIHandler: http.NotFoundHandler()})
	require.NoError(t, err)

	released := false
	mgr.RegisterShutdownHook("db", func(context.Context) error { released = true; return nil })

	err = mgr.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "listen")
	assert.True(t, released, "hooks run when listening fails")
}
