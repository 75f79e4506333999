// SPDX-License-Identifier: MIT

package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/seedlab/seedlab/internal/analysis"
	"github.com/seedlab/seedlab/internal/api"
	"github.com/seedlab/seedlab/internal/audit"
	"github.com/seedlab/seedlab/internal/auth"
	"github.com/seedlab/seedlab/internal/auth/session"
	"github.com/seedlab/seedlab/internal/auth/token"
	"github.com/seedlab/seedlab/internal/cache"
	"github.com/seedlab/seedlab/internal/catalog"
	"github.com/seedlab/seedlab/internal/config"
	"github.com/seedlab/seedlab/internal/dashboard"
	"github.com/seedlab/seedlab/internal/excel"
	"github.com/seedlab/seedlab/internal/health"
	"github.com/seedlab/seedlab/internal/legacy"
	"github.com/seedlab/seedlab/internal/lots"
	"github.com/seedlab/seedlab/internal/notify"
	"github.com/seedlab/seedlab/internal/users"
)

// Services is the application graph over one open database. The caller owns
// the database; Close releases everything else.
type Services struct {
	DB       *sql.DB
	Cache    cache.Cache
	Sessions session.Store
	Hub      *notify.Hub
	Audit    *audit.Logger

	Users         *users.Service
	Auth          *auth.Service
	Catalog       *catalog.Service
	Lots          *lots.Service
	Analysis      *analysis.Service
	Legacy        *legacy.Service
	Notify        *notify.Service
	Notifications *notify.Store
	Dashboard     *dashboard.Service
	Excel         *excel.Service

	Health *health.Manager
	Purge  *health.LastRunChecker
	API    *api.Server
}

// dashboardInvalidator breaks the construction cycle between the analysis
// service and the dashboard that reads from it.
type dashboardInvalidator struct{ dash *dashboard.Service }

func (d *dashboardInvalidator) Invalidate(ctx context.Context) {
	if d.dash != nil {
		d.dash.Invalidate(ctx)
	}
}

// Build wires every service for cfg over db.
func Build(ctx context.Context, cfg config.AppConfig, db *sql.DB) (*Services, error) {
	if db == nil {
		return nil, fmt.Errorf("database is nil")
	}
	c, err := cache.New(cfg.Cache)
	if err != nil {
		return nil, fmt.Errorf("initialize cache: %w", err)
	}
	sessions, err := session.Open(cfg.Auth)
	if err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("initialize session store: %w", err)
	}

	s := &Services{
		DB:       db,
		Cache:    c,
		Sessions: sessions,
		Hub:      notify.NewHub(),
		Audit:    audit.NewLogger(),
	}

	s.Notifications = notify.NewStore(db)
	s.Notify = notify.NewService(s.Notifications, s.Hub)

	authStore := auth.NewStore(db)
	s.Users = users.NewService(users.NewStore(db), auth.NewRevoker(authStore, sessions), s.Notify, s.Audit)
	s.Auth = auth.NewService(cfg.Auth, auth.Deps{
		Users:    s.Users,
		Store:    authStore,
		Sessions: sessions,
		Issuer:   token.NewIssuer(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.AccessTTL),
		Lockout:  auth.NewLockout(c, cfg.Auth.MaxFailedLogins, cfg.Auth.LockoutWindow),
		Mailer:   notify.NewMailer(cfg.Mail),
		Audit:    s.Audit,
	})

	s.Catalog = catalog.NewService(catalog.NewStore(db))
	s.Lots = lots.NewService(lots.NewStore(db), s.Catalog)
	s.Legacy = legacy.NewService(legacy.NewStore(db))

	inv := &dashboardInvalidator{}
	s.Analysis = analysis.NewService(analysis.NewStore(db), s.Lots, s.Notify, inv)
	s.Dashboard = dashboard.NewService(dashboard.Sources{
		Lots:          s.Lots,
		Analyses:      s.Analysis,
		Notifications: s.Notify,
		Users:         s.Users,
	}, c, cfg.Cache.DashboardTTL)
	inv.dash = s.Dashboard

	s.Excel = excel.NewService(s.Lots, s.Analysis, s.Legacy)

	s.Health = health.NewManager(cfg.Version)
	s.Health.RegisterChecker(health.NewDBChecker(db))
	s.Health.RegisterChecker(health.NewPingChecker("cache", c.Ping, false))
	s.Health.RegisterChecker(health.NewPingChecker("sessions", sessions.Ping, false))
	s.Purge = health.NewLastRunChecker("purge", cfg.Auth.PurgeInterval)
	s.Health.RegisterChecker(s.Purge)

	s.API = api.New(cfg, api.Deps{
		Auth:      s.Auth,
		Users:     s.Users,
		Catalog:   s.Catalog,
		Lots:      s.Lots,
		Analysis:  s.Analysis,
		Legacy:    s.Legacy,
		Notify:    s.Notify,
		Dashboard: s.Dashboard,
		Excel:     s.Excel,
		Health:    s.Health,
		Audit:     s.Audit,
	})

	if _, err := s.Users.EnsureBootstrapAdmin(ctx, cfg.Bootstrap); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("bootstrap admin: %w", err)
	}
	return s, nil
}

// Close disconnects notification streams and releases the cache and session store.
func (s *Services) Close() error {
	if s.Hub != nil {
		s.Hub.Close()
	}
	var errs []error
	if s.Sessions != nil {
		if err := s.Sessions.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close sessions: %w", err))
		}
	}
	if s.Cache != nil {
		if err := s.Cache.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close cache: %w", err))
		}
	}
	return errors.Join(errs...)
}
