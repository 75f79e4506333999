// SPDX-License-Identifier: MIT

package api

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/seedlab/seedlab/internal/analysis"
	"github.com/seedlab/seedlab/internal/audit"
	"github.com/seedlab/seedlab/internal/auth"
	"github.com/seedlab/seedlab/internal/auth/password"
	"github.com/seedlab/seedlab/internal/auth/session"
	"github.com/seedlab/seedlab/internal/auth/token"
	"github.com/seedlab/seedlab/internal/authz"
	"github.com/seedlab/seedlab/internal/cache"
	"github.com/seedlab/seedlab/internal/catalog"
	"github.com/seedlab/seedlab/internal/config"
	"github.com/seedlab/seedlab/internal/dashboard"
	"github.com/seedlab/seedlab/internal/excel"
	"github.com/seedlab/seedlab/internal/health"
	"github.com/seedlab/seedlab/internal/legacy"
	"github.com/seedlab/seedlab/internal/lots"
	"github.com/seedlab/seedlab/internal/notify"
	"github.com/seedlab/seedlab/internal/testutil"
	"github.com/seedlab/seedlab/internal/users"
)

func TestMain(m *testing.M) {
	password.Cost = bcrypt.MinCost
	os.Exit(m.Run())
}

const testPassword = "semilla42"

type testEnv struct {
	t       *testing.T
	db      *sql.DB
	srv     *Server
	handler http.Handler
	notify  *notify.Service
	hub     *notify.Hub
	issuer  *token.Issuer
	ids     map[string]int64
}

func testAppConfig() config.AppConfig {
	cfg := config.Defaults()
	cfg.Auth.JWTSecret = "0123456789abcdef0123456789abcdef"
	cfg.Auth.Issuer = "seedlab-test"
	cfg.Server.RateLimitRPM = 0
	cfg.Server.AuthRateLimitRPM = 0
	return cfg
}

func newTestEnv(t *testing.T, cfg config.AppConfig) *testEnv {
	t.Helper()
	db := testutil.NewDB(t)
	c := cache.NewMemoryCache(0)
	t.Cleanup(func() { _ = c.Close() })
	sessions := session.NewMemoryStore()
	hub := notify.NewHub()
	t.Cleanup(hub.Close)
	auditLog := audit.NewLogger()

	notifier := notify.NewService(notify.NewStore(db), hub)
	authStore := auth.NewStore(db)
	usvc := users.NewService(users.NewStore(db), auth.NewRevoker(authStore, sessions), notifier, auditLog)
	issuer := token.NewIssuer(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.AccessTTL)
	authSvc := auth.NewService(cfg.Auth, auth.Deps{
		Users:    usvc,
		Store:    authStore,
		Sessions: sessions,
		Issuer:   issuer,
		Lockout:  auth.NewLockout(c, cfg.Auth.MaxFailedLogins, cfg.Auth.LockoutWindow),
		Mailer:   &notify.RecordingMailer{},
		Audit:    auditLog,
	})
	cat := catalog.NewService(catalog.NewStore(db))
	lotSvc := lots.NewService(lots.NewStore(db), cat)
	legSvc := legacy.NewService(legacy.NewStore(db))
	var dash *dashboard.Service
	anaSvc := analysis.NewService(analysis.NewStore(db), lotSvc, notifier, invalidatorFunc(func(ctx context.Context) {
		dash.Invalidate(ctx)
	}))
	dash = dashboard.NewService(dashboard.Sources{
		Lots:          lotSvc,
		Analyses:      anaSvc,
		Notifications: notifier,
		Users:         usvc,
	}, c, time.Minute)

	hm := health.NewManager("test")
	hm.RegisterChecker(health.NewDBChecker(db))

	srv := New(cfg, Deps{
		Auth:      authSvc,
		Users:     usvc,
		Catalog:   cat,
		Lots:      lotSvc,
		Analysis:  anaSvc,
		Legacy:    legSvc,
		Notify:    notifier,
		Dashboard: dash,
		Excel:     excel.NewService(lotSvc, anaSvc, legSvc),
		Health:    hm,
		Audit:     auditLog,
	})
	srv.heartbeat = 50 * time.Millisecond

	hash, err := password.Hash(testPassword)
	require.NoError(t, err)
	ids := map[string]int64{}
	for name, role := range map[string]string{"jefa": authz.RoleAdmin, "ana": authz.RoleAnalista, "oscar": authz.RoleObservador} {
		id := testutil.SeedUser(t, db, name, role)
		require.NoError(t, usvc.Store().SetPassword(context.Background(), id, hash))
		ids[name] = id
	}
	return &testEnv{t: t, db: db, srv: srv, handler: srv.Handler(), notify: notifier, hub: hub, issuer: issuer, ids: ids}
}

type invalidatorFunc func(context.Context)

func (f invalidatorFunc) Invalidate(ctx context.Context) { f(ctx) }

// token mints an access token for a seeded user.
func (e *testEnv) token(name, role string) string {
	e.t.Helper()
	raw, _, err := e.issuer.Issue(authz.Principal{
		UserID:   e.ids[name],
		Username: name,
		Role:     role,
		Scopes:   authz.ScopesForRole(role),
	})
	require.NoError(e.t, err)
	return raw
}

// do sends a request with an optional JSON body and bearer token.
func (e *testEnv) do(method, path, bearer string, body any) *httptest.ResponseRecorder {
	e.t.Helper()
	var rd io.Reader
	if body != nil {
		switch b := body.(type) {
		case string:
			rd = bytes.NewBufferString(b)
		default:
			raw, err := json.Marshal(b)
			require.NoError(e.t, err)
			rd = bytes.NewReader(raw)
		}
	}
	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, req)
	return w
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

type problemBody struct {
	Type      string            `json:"type"`
	Status    int               `json:"status"`
	Code      string            `json:"code"`
	Detail    string            `json:"detail"`
	RequestID string            `json:"requestId"`
	Errors    map[string]string `json:"errors"`
}

func itoa(id int64) string { return strconv.FormatInt(id, 10) }
