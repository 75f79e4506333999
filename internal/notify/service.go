// SPDX-License-Identifier: MIT

package notify

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/seedlab/seedlab/internal/apperr"
	xglog "github.com/seedlab/seedlab/internal/log"
	"github.com/seedlab/seedlab/internal/metrics"
	"github.com/seedlab/seedlab/internal/page"
)

// Service stores notifications and pushes them to live subscribers.
type Service struct {
	store  *Store
	hub    *Hub
	logger zerolog.Logger
}

func NewService(store *Store, hub *Hub) *Service {
	return &Service{store: store, hub: hub, logger: xglog.WithComponent("notify")}
}

// Hub exposes the live fan-out for stream handlers.
func (s *Service) Hub() *Hub { return s.hub }

// Notify stores d for one user and pushes it to their open streams.
func (s *Service) Notify(ctx context.Context, userID int64, d Draft) (Notificacion, error) {
	out, err := s.deliver(ctx, []int64{userID}, d)
	if err != nil {
		return Notificacion{}, err
	}
	return out[0], nil
}

// NotifyRole stores d for every active user holding role and returns how many were notified.
func (s *Service) NotifyRole(ctx context.Context, role string, d Draft) (int, error) {
	ids, err := s.store.ActiveUsersByRole(ctx, role)
	if err != nil {
		return 0, fmt.Errorf("list %s users: %w", role, err)
	}
	if len(ids) == 0 {
		return 0, nil
	}
	out, err := s.deliver(ctx, ids, d)
	return len(out), err
}

func (s *Service) deliver(ctx context.Context, ids []int64, d Draft) ([]Notificacion, error) {
	if d.Titulo == "" {
		return nil, apperr.Invalid("notification title is required")
	}
	out, err := s.store.Insert(ctx, ids, d)
	if err != nil {
		return nil, fmt.Errorf("store notifications: %w", err)
	}
	for _, n := range out {
		metrics.IncNotification("store")
		if s.hub != nil && s.hub.Publish(n) > 0 {
			metrics.IncNotification("sse")
		}
	}
	s.logger.Debug().Str("tipo", string(d.Tipo)).Int("recipients", len(out)).Msg("notifications delivered")
	return out, nil
}

// ListMine returns the caller's notifications.
func (s *Service) ListMine(ctx context.Context, userID int64, f Filter, p page.Request) (page.Result[Notificacion], error) {
	return s.store.ListForUser(ctx, userID, f, p.Normalize())
}

func (s *Service) CountUnread(ctx context.Context, userID int64) (int, error) {
	return s.store.CountUnread(ctx, userID)
}

func (s *Service) MarkRead(ctx context.Context, userID int64, id string) error {
	return s.store.MarkRead(ctx, userID, id)
}

func (s *Service) MarkAllRead(ctx context.Context, userID int64) (int, error) {
	return s.store.MarkAllRead(ctx, userID)
}

func (s *Service) Delete(ctx context.Context, userID int64, id string) error {
	return s.store.Delete(ctx, userID, id)
}
