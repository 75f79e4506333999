// SPDX-License-Identifier: MIT

// Package dashboard aggregates the counters shown on the landing page.
package dashboard

import (
	"context"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/seedlab/seedlab/internal/analysis"
	"github.com/seedlab/seedlab/internal/apperr"
	"github.com/seedlab/seedlab/internal/authz"
	"github.com/seedlab/seedlab/internal/cache"
	"github.com/seedlab/seedlab/internal/lims"
	xglog "github.com/seedlab/seedlab/internal/log"
	"github.com/seedlab/seedlab/internal/metrics"
)

const (
	keyPrefix  = "dashboard:"
	globalKey  = keyPrefix + "global"
	userPrefix = keyPrefix + "user:"
)

// Stats is the dashboard of one caller.
type Stats struct {
	LotesActivos           int                 `json:"lotesActivos"`
	AnalisisPorEstado      map[lims.Estado]int `json:"analisisPorEstado"`
	AnalisisPorKind        map[lims.Kind]int   `json:"analisisPorKind"`
	PendientesAprobacion   int                 `json:"pendientesAprobacion"`
	MisAnalisisAbiertos    int                 `json:"misAnalisisAbiertos"`
	NotificacionesNoLeidas int                 `json:"notificacionesNoLeidas"`
	UsuariosPendientes     *int                `json:"usuariosPendientes,omitempty"`
	GeneradoEn             time.Time           `json:"generadoEn"`
}

// global is the part shared by every caller.
type global struct {
	LotesActivos int            `json:"lotesActivos"`
	Analisis     analysis.Stats `json:"analisis"`
	GeneradoEn   time.Time      `json:"generadoEn"`
}

type (
	LotCounter interface {
		CountActive(ctx context.Context) (int, error)
	}
	AnalysisCounter interface {
		Stats(ctx context.Context) (analysis.Stats, error)
		CountOpenByCreator(ctx context.Context, userID int64) (int, error)
	}
	UnreadCounter interface {
		CountUnread(ctx context.Context, userID int64) (int, error)
	}
	PendingUserCounter interface {
		CountPending(ctx context.Context) (int, error)
	}
)

// Sources are the counters the dashboard reads.
type Sources struct {
	Lots          LotCounter
	Analyses      AnalysisCounter
	Notifications UnreadCounter
	Users         PendingUserCounter
}

// Service caches the expensive aggregates for ttl. Unread notifications and
// pending users are always read live.
type Service struct {
	src    Sources
	cache  cache.Cache
	ttl    atomic.Int64 // nanoseconds
	logger zerolog.Logger
	now    func() time.Time
}

func NewService(src Sources, c cache.Cache, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = time.Minute
	}
	s := &Service{src: src, cache: c, logger: xglog.WithComponent("dashboard"), now: time.Now}
	s.ttl.Store(int64(ttl))
	return s
}

// SetTTL changes how long aggregates stay cached. Entries already cached
// keep their old expiry. Non-positive values are ignored.
func (s *Service) SetTTL(ttl time.Duration) {
	if ttl > 0 {
		s.ttl.Store(int64(ttl))
	}
}

// Get returns the dashboard of the caller in ctx.
func (s *Service) Get(ctx context.Context) (Stats, error) {
	p, ok := authz.PrincipalFrom(ctx)
	if !ok {
		return Stats{}, apperr.Unauthorized("authentication required")
	}
	g, err := s.global(ctx)
	if err != nil {
		return Stats{}, err
	}
	mine, err := s.openByUser(ctx, p.UserID)
	if err != nil {
		return Stats{}, err
	}
	unread, err := s.src.Notifications.CountUnread(ctx, p.UserID)
	if err != nil {
		return Stats{}, err
	}
	out := Stats{
		LotesActivos:           g.LotesActivos,
		AnalisisPorEstado:      g.Analisis.PorEstado,
		AnalisisPorKind:        g.Analisis.PorKind,
		PendientesAprobacion:   g.Analisis.Pendientes,
		MisAnalisisAbiertos:    mine,
		NotificacionesNoLeidas: unread,
		GeneradoEn:             g.GeneradoEn,
	}
	if p.IsAdmin() {
		n, err := s.src.Users.CountPending(ctx)
		if err != nil {
			return Stats{}, err
		}
		out.UsuariosPendientes = &n
	}
	return out, nil
}

// cached loads key into dst, or fills it with load and stores it.
func cached[T any](ctx context.Context, s *Service, key string, load func() (T, error)) (T, error) {
	var v T
	hit, err := s.cache.Get(ctx, key, &v)
	if err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("dashboard cache read failed")
	}
	metrics.IncDashboardCache(hit && err == nil)
	if hit && err == nil {
		return v, nil
	}
	v, err = load()
	if err != nil {
		return v, err
	}
	if err := s.cache.Set(ctx, key, v, time.Duration(s.ttl.Load())); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("dashboard cache write failed")
	}
	return v, nil
}

func (s *Service) global(ctx context.Context) (global, error) {
	return cached(ctx, s, globalKey, func() (global, error) {
		lotes, err := s.src.Lots.CountActive(ctx)
		if err != nil {
			return global{}, err
		}
		st, err := s.src.Analyses.Stats(ctx)
		if err != nil {
			return global{}, err
		}
		return global{LotesActivos: lotes, Analisis: st, GeneradoEn: s.now().UTC()}, nil
	})
}

func (s *Service) openByUser(ctx context.Context, userID int64) (int, error) {
	if userID == 0 {
		return 0, nil
	}
	return cached(ctx, s, userPrefix+strconv.FormatInt(userID, 10), func() (int, error) {
		return s.src.Analyses.CountOpenByCreator(ctx, userID)
	})
}

// Invalidate drops every cached dashboard. Analysis changes call it.
func (s *Service) Invalidate(ctx context.Context) {
	if err := s.cache.DeletePrefix(ctx, keyPrefix); err != nil {
		s.logger.Warn().Err(err).Msg("dashboard cache invalidation failed")
	}
}
