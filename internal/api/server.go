// SPDX-License-Identifier: MIT

// Package api serves the laboratory HTTP API under /api/v1.
package api

import (
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/seedlab/seedlab/internal/analysis"
	"github.com/seedlab/seedlab/internal/audit"
	"github.com/seedlab/seedlab/internal/auth"
	"github.com/seedlab/seedlab/internal/catalog"
	"github.com/seedlab/seedlab/internal/config"
	"github.com/seedlab/seedlab/internal/dashboard"
	"github.com/seedlab/seedlab/internal/excel"
	"github.com/seedlab/seedlab/internal/health"
	"github.com/seedlab/seedlab/internal/legacy"
	"github.com/seedlab/seedlab/internal/log"
	"github.com/seedlab/seedlab/internal/lots"
	"github.com/seedlab/seedlab/internal/notify"
	"github.com/seedlab/seedlab/internal/ratelimit"
	"github.com/seedlab/seedlab/internal/users"
)

// BasePath prefixes every API route.
const BasePath = "/api/v1"

const (
	defaultHeartbeat = 25 * time.Second
	maxBodyBytes     = 1 << 20
	maxUploadBytes   = 32 << 20
)

// Deps groups the services the HTTP layer delegates to.
type Deps struct {
	Auth      *auth.Service
	Users     *users.Service
	Catalog   *catalog.Service
	Lots      *lots.Service
	Analysis  *analysis.Service
	Legacy    *legacy.Service
	Notify    *notify.Service
	Dashboard *dashboard.Service
	Excel     *excel.Service
	Health    *health.Manager
	Audit     *audit.Logger
}

// Server holds the HTTP handlers.
type Server struct {
	cfg        config.ServerConfig
	refreshTTL time.Duration
	tracing    string
	trusted    []*net.IPNet

	auth      *auth.Service
	users     *users.Service
	catalog   *catalog.Service
	lots      *lots.Service
	analysis  *analysis.Service
	legacy    *legacy.Service
	notify    *notify.Service
	dashboard *dashboard.Service
	excel     *excel.Service
	health    *health.Manager
	audit     *audit.Logger

	authLimiter *ratelimit.Limiter
	heartbeat   time.Duration
	logger      zerolog.Logger
}

// New builds a Server from the application config and its services.
func New(cfg config.AppConfig, d Deps) *Server {
	s := &Server{
		cfg:        cfg.Server,
		refreshTTL: cfg.Auth.RefreshTTL,
		trusted:    ratelimit.ParseCIDRs(cfg.Server.TrustedProxies),

		auth:      d.Auth,
		users:     d.Users,
		catalog:   d.Catalog,
		lots:      d.Lots,
		analysis:  d.Analysis,
		legacy:    d.Legacy,
		notify:    d.Notify,
		dashboard: d.Dashboard,
		excel:     d.Excel,
		health:    d.Health,
		audit:     d.Audit,

		heartbeat: defaultHeartbeat,
		logger:    log.WithComponent("api"),
	}
	if cfg.Telemetry.Enabled {
		s.tracing = cfg.Log.Service
		if s.tracing == "" {
			s.tracing = "seedlab"
		}
	}
	if cfg.Server.AuthRateLimitRPM > 0 {
		s.authLimiter = ratelimit.New("auth", ratelimit.PerMinute(cfg.Server.AuthRateLimitRPM))
	}
	return s
}

// Handler returns the fully wired router.
func (s *Server) Handler() http.Handler {
	return s.routes()
}
