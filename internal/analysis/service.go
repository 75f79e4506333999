// SPDX-License-Identifier: MIT

package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/seedlab/seedlab/internal/analysis/calc"
	"github.com/seedlab/seedlab/internal/apperr"
	"github.com/seedlab/seedlab/internal/authz"
	"github.com/seedlab/seedlab/internal/civil"
	"github.com/seedlab/seedlab/internal/lims"
	xglog "github.com/seedlab/seedlab/internal/log"
	"github.com/seedlab/seedlab/internal/lots"
	"github.com/seedlab/seedlab/internal/metrics"
	"github.com/seedlab/seedlab/internal/notify"
	"github.com/seedlab/seedlab/internal/page"
	"github.com/seedlab/seedlab/internal/telemetry"
	"github.com/seedlab/seedlab/internal/validate"
)

// LotChecker verifies lot eligibility for a new analysis.
type LotChecker interface {
	CheckEligible(ctx context.Context, loteID int64, kind lims.Kind) (lots.Lote, error)
}

// Notifier delivers in-app notifications.
type Notifier interface {
	Notify(ctx context.Context, userID int64, d notify.Draft) (notify.Notificacion, error)
	NotifyRole(ctx context.Context, role string, d notify.Draft) (int, error)
}

// Invalidator drops cached aggregates that depend on analyses.
type Invalidator interface {
	Invalidate(ctx context.Context)
}

// Service runs the analysis lifecycle.
type Service struct {
	store       *Store
	lots        LotChecker
	notifier    Notifier
	invalidator Invalidator
	tracer      trace.Tracer
	logger      zerolog.Logger
	today       func() civil.Date
}

// NewService wires the analysis service. notifier and invalidator may be nil.
func NewService(store *Store, lots LotChecker, notifier Notifier, invalidator Invalidator) *Service {
	return &Service{
		store:       store,
		lots:        lots,
		notifier:    notifier,
		invalidator: invalidator,
		tracer:      telemetry.Tracer("seedlab/analysis"),
		logger:      xglog.WithComponent("analysis"),
		today:       civil.Today,
	}
}

func principal(ctx context.Context) (authz.Principal, error) {
	p, ok := authz.PrincipalFrom(ctx)
	if !ok {
		return authz.Principal{}, apperr.Unauthorized("authentication required")
	}
	return p, nil
}

// compute validates payload for kind and returns the stored payload and result.
func compute(kind lims.Kind, payload json.RawMessage) (json.RawMessage, json.RawMessage, error) {
	trimmed := strings.TrimSpace(string(payload))
	if trimmed == "" || trimmed == "null" || trimmed == "{}" {
		return json.RawMessage("{}"), json.RawMessage("{}"), nil
	}
	res, err := calc.Compute(kind, payload)
	if err != nil {
		return nil, nil, err
	}
	out, err := json.Marshal(res)
	if err != nil {
		return nil, nil, fmt.Errorf("encode result: %w", err)
	}
	return json.RawMessage(trimmed), out, nil
}

// Preview computes the result of payload without storing anything.
func (s *Service) Preview(_ context.Context, kind lims.Kind, payload json.RawMessage) (any, error) {
	if _, err := lims.ParseKind(string(kind)); err != nil {
		return nil, apperr.Invalid("unknown kind %q", kind)
	}
	return calc.Compute(kind, payload)
}

// Create registers an analysis of kind on an active lot that lists kind.
func (s *Service) Create(ctx context.Context, kind lims.Kind, in CreateInput) (Analisis, error) {
	p, err := principal(ctx)
	if err != nil {
		return Analisis{}, err
	}
	kind, err = lims.ParseKind(string(kind))
	if err != nil {
		return Analisis{}, apperr.Invalid("unknown kind").WithField("kind", "unknown")
	}
	ctx, span := s.tracer.Start(ctx, "analysis.create", trace.WithAttributes(telemetry.AnalysisAttributes(0, in.LoteID, string(kind), "")...))
	defer span.End()

	if in.LoteID <= 0 {
		return Analisis{}, apperr.Invalid("loteId is required").WithField("loteId", "is required")
	}
	if _, err := s.lots.CheckEligible(ctx, in.LoteID, kind); err != nil {
		return Analisis{}, err
	}
	payload, result, err := compute(kind, in.Payload)
	if err != nil {
		return Analisis{}, err
	}
	id, err := s.store.Insert(ctx, Analisis{
		LoteID:      in.LoteID,
		Kind:        kind,
		Estado:      lims.EstadoRegistrado,
		FechaInicio: in.FechaInicio,
		Comentarios: strings.TrimSpace(in.Comentarios),
		CreadoPor:   p.UserID,
		Payload:     payload,
		Resultado:   result,
	})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return Analisis{}, err
	}
	metrics.IncAnalysisCreated(string(kind))
	s.invalidate(ctx)
	s.logger.Info().Int64(xglog.FieldAnalysisID, id).Int64(xglog.FieldLotID, in.LoteID).Str(xglog.FieldKind, string(kind)).
		Str(xglog.FieldUsername, p.Username).Msg("analysis created")
	return s.store.Get(ctx, id)
}

// Get returns an analysis by id.
func (s *Service) Get(ctx context.Context, id int64) (Analisis, error) {
	return s.store.Get(ctx, id)
}

// List returns a filtered page of analyses.
func (s *Service) List(ctx context.Context, f Filter, p page.Request) (page.Result[Analisis], error) {
	return s.store.List(ctx, f, p.Normalize())
}

// ListByLote returns every active analysis of a lot.
func (s *Service) ListByLote(ctx context.Context, loteID int64) ([]Analisis, error) {
	active := true
	items, err := s.store.All(ctx, Filter{LoteID: loteID, Activo: &active}, 1000)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []Analisis{}
	}
	return items, nil
}

// Export returns analyses matching f for spreadsheet export.
func (s *Service) Export(ctx context.Context, f Filter, limit uint64) ([]Analisis, error) {
	return s.store.All(ctx, f, limit)
}

// Stats aggregates active analyses.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	return s.store.Stats(ctx)
}

// CountOpenByCreator counts a user's unapproved analyses.
func (s *Service) CountOpenByCreator(ctx context.Context, userID int64) (int, error) {
	return s.store.CountOpenByCreator(ctx, userID)
}

// Update edits payload, dates and comments. When a non-admin edits an
// approved analysis it returns to pending approval.
func (s *Service) Update(ctx context.Context, id int64, in UpdateInput) (Analisis, error) {
	return s.transition(ctx, id, "update", func(p authz.Principal, a *Analisis) error {
		if in.Payload != nil {
			payload, result, err := compute(a.Kind, in.Payload)
			if err != nil {
				return err
			}
			a.Payload, a.Resultado = payload, result
		}
		if !in.FechaInicio.IsZero() {
			a.FechaInicio = in.FechaInicio
		}
		if !in.FechaFin.IsZero() {
			a.FechaFin = in.FechaFin
		}
		if !a.FechaInicio.IsZero() && !a.FechaFin.IsZero() && a.FechaFin.Before(a.FechaInicio) {
			return apperr.Invalid("fechaFin before fechaInicio").WithField("fechaFin", "must not be before fechaInicio")
		}
		if in.Comentarios != nil {
			a.Comentarios = strings.TrimSpace(*in.Comentarios)
		}
		if a.Estado == lims.EstadoAprobado && !p.IsAdmin() {
			a.Estado = lims.EstadoPendienteAprobacion
		}
		return nil
	})
}

// Start moves a registered or to-repeat analysis into progress.
func (s *Service) Start(ctx context.Context, id int64) (Analisis, error) {
	return s.transition(ctx, id, "start", func(_ authz.Principal, a *Analisis) error {
		if a.Estado != lims.EstadoRegistrado && a.Estado != lims.EstadoParaRepetir {
			return invalidTransition(a, lims.EstadoEnProceso)
		}
		a.Estado = lims.EstadoEnProceso
		if a.FechaInicio.IsZero() {
			a.FechaInicio = s.today()
		}
		return nil
	})
}

// Finalize closes the analysis. Administrators approve directly; everyone
// else sends it to pending approval.
func (s *Service) Finalize(ctx context.Context, id int64) (Analisis, error) {
	return s.transition(ctx, id, "finalize", func(p authz.Principal, a *Analisis) error {
		if a.Estado == lims.EstadoAprobado || a.Estado == lims.EstadoPendienteAprobacion {
			return invalidTransition(a, lims.EstadoPendienteAprobacion)
		}
		if !a.Calculated() {
			return apperr.Invalid("analisis %d has no computed result", a.ID).WithField("payload", "incomplete")
		}
		if a.FechaInicio.IsZero() {
			a.FechaInicio = s.today()
		}
		a.FechaFin = s.today()
		if p.IsAdmin() {
			a.Estado = lims.EstadoAprobado
		} else {
			a.Estado = lims.EstadoPendienteAprobacion
		}
		return nil
	})
}

// Approve accepts an analysis pending approval.
func (s *Service) Approve(ctx context.Context, id int64) (Analisis, error) {
	return s.transition(ctx, id, "approve", func(p authz.Principal, a *Analisis) error {
		if !p.CanApprove() {
			return apperr.Forbidden("approval requires %s", authz.ScopeApprove)
		}
		if a.Estado != lims.EstadoPendienteAprobacion {
			return invalidTransition(a, lims.EstadoAprobado)
		}
		a.Estado = lims.EstadoAprobado
		return nil
	})
}

const maxMotivoLen = 500

// MarkRepeat sends a non-approved analysis back for repetition. The optional
// motivo becomes the message of the creator's notification.
func (s *Service) MarkRepeat(ctx context.Context, id int64, in RepeatInput) (Analisis, error) {
	motivo := strings.TrimSpace(in.Motivo)
	v := validate.New()
	v.MaxLen("motivo", motivo, maxMotivoLen)
	if err := v.AppErr(); err != nil {
		return Analisis{}, err
	}
	return s.transitionNote(ctx, id, "mark_repeat", motivo, func(p authz.Principal, a *Analisis) error {
		if !p.CanApprove() {
			return apperr.Forbidden("marking for repetition requires %s", authz.ScopeApprove)
		}
		if a.Estado == lims.EstadoAprobado || a.Estado == lims.EstadoParaRepetir {
			return invalidTransition(a, lims.EstadoParaRepetir)
		}
		a.Estado = lims.EstadoParaRepetir
		return nil
	})
}

// Deactivate soft-deletes an analysis.
func (s *Service) Deactivate(ctx context.Context, id int64) error {
	if err := s.store.SetActive(ctx, id, false); err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

// Reactivate restores a soft-deleted analysis.
func (s *Service) Reactivate(ctx context.Context, id int64) error {
	if err := s.store.SetActive(ctx, id, true); err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

func invalidTransition(a *Analisis, to lims.Estado) error {
	return apperr.Conflict("analisis %d cannot move from %s to %s", a.ID, a.Estado, to).WithField("estado", string(a.Estado))
}

// transition loads the analysis, applies fn and persists the result guarded
// by the previous estado. Side effects run only when the estado changed.
func (s *Service) transition(ctx context.Context, id int64, op string, fn func(authz.Principal, *Analisis) error) (Analisis, error) {
	return s.transitionNote(ctx, id, op, "", fn)
}

// transitionNote is transition with a free-text note for the notification.
func (s *Service) transitionNote(ctx context.Context, id int64, op, note string, fn func(authz.Principal, *Analisis) error) (Analisis, error) {
	p, err := principal(ctx)
	if err != nil {
		return Analisis{}, err
	}
	ctx, span := s.tracer.Start(ctx, "analysis."+op)
	defer span.End()

	a, err := s.store.Get(ctx, id)
	if err != nil {
		return Analisis{}, err
	}
	if !a.Activo {
		return Analisis{}, apperr.Conflict("analisis %d is inactive", id)
	}
	prev := a.Estado
	if err := fn(p, &a); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return Analisis{}, err
	}
	if err := s.store.Save(ctx, a, prev); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return Analisis{}, err
	}
	span.SetAttributes(telemetry.AnalysisAttributes(a.ID, a.LoteID, string(a.Kind), string(a.Estado))...)

	if a.Estado != prev {
		metrics.IncAnalysisTransition(string(a.Kind), string(a.Estado))
		s.logger.Info().Int64(xglog.FieldAnalysisID, a.ID).Str(xglog.FieldOldState, string(prev)).Str(xglog.FieldNewState, string(a.Estado)).
			Str(xglog.FieldUsername, p.Username).Msg("analysis state changed")
		s.notifyTransition(ctx, p, a, note)
	}
	s.invalidate(ctx)
	return s.store.Get(ctx, id)
}

func (s *Service) notifyTransition(ctx context.Context, actor authz.Principal, a Analisis, note string) {
	if s.notifier == nil {
		return
	}
	id := a.ID
	var err error
	switch a.Estado {
	case lims.EstadoPendienteAprobacion:
		_, err = s.notifier.NotifyRole(ctx, authz.RoleAdmin, notify.Draft{
			Tipo:       notify.TipoAnalisisPendiente,
			Titulo:     fmt.Sprintf("%s del lote %s pendiente de aprobación", a.Kind, a.LoteFicha),
			Mensaje:    fmt.Sprintf("%s finalizó el análisis %d.", actor.Username, a.ID),
			AnalisisID: &id,
		})
	case lims.EstadoAprobado:
		if a.CreadoPor != 0 && a.CreadoPor != actor.UserID {
			_, err = s.notifier.Notify(ctx, a.CreadoPor, notify.Draft{
				Tipo:       notify.TipoAnalisisAprobado,
				Titulo:     fmt.Sprintf("%s del lote %s aprobado", a.Kind, a.LoteFicha),
				AnalisisID: &id,
			})
		}
	case lims.EstadoParaRepetir:
		if a.CreadoPor != 0 {
			msg := note
			if msg == "" {
				msg = fmt.Sprintf("%s marcó el análisis %d para repetir.", actor.Username, a.ID)
			}
			_, err = s.notifier.Notify(ctx, a.CreadoPor, notify.Draft{
				Tipo:       notify.TipoAnalisisRepetir,
				Titulo:     fmt.Sprintf("%s del lote %s marcado para repetir", a.Kind, a.LoteFicha),
				Mensaje:    msg,
				AnalisisID: &id,
			})
		}
	}
	if err != nil {
		s.logger.Warn().Err(err).Int64(xglog.FieldAnalysisID, a.ID).Msg("analysis notification failed")
	}
}

func (s *Service) invalidate(ctx context.Context) {
	if s.invalidator != nil {
		s.invalidator.Invalidate(ctx)
	}
}
