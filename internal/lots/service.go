// SPDX-License-Identifier: MIT

package lots

import (
	"context"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/seedlab/seedlab/internal/apperr"
	"github.com/seedlab/seedlab/internal/catalog"
	"github.com/seedlab/seedlab/internal/lims"
	xglog "github.com/seedlab/seedlab/internal/log"
	"github.com/seedlab/seedlab/internal/page"
	"github.com/seedlab/seedlab/internal/validate"
)

// Service applies lot rules on top of Store.
type Service struct {
	store   *Store
	catalog *catalog.Service
	logger  zerolog.Logger
}

// NewService creates a lot service. Catalog references are checked against cat.
func NewService(store *Store, cat *catalog.Service) *Service {
	return &Service{store: store, catalog: cat, logger: xglog.WithComponent("lots")}
}

func idOrZero(p *int64) int64 {
	if p == nil {
		return 0
	}
	return *p
}

func (in *Input) normalize() error {
	in.Ficha = strings.TrimSpace(in.Ficha)
	in.NomLote = strings.TrimSpace(in.NomLote)
	in.ClienteNombre = strings.TrimSpace(in.ClienteNombre)
	in.Empresa = strings.TrimSpace(in.Empresa)
	in.Observaciones = strings.TrimSpace(in.Observaciones)

	v := validate.New()
	v.NotEmpty("ficha", in.Ficha)
	v.MaxLen("ficha", in.Ficha, 50)
	v.MaxLen("nomLote", in.NomLote, 200)
	v.MaxLen("clienteNombre", in.ClienteNombre, 200)
	v.MaxLen("empresa", in.Empresa, 200)
	v.Check(in.CultivarID > 0, "cultivarId", "is required")
	v.NonNegativeFloat("kilosLimpios", in.KilosLimpios)
	v.Check(in.FechaEntrega.IsZero() || in.FechaRecibo.IsZero() || !in.FechaEntrega.Before(in.FechaRecibo),
		"fechaEntrega", "must not be before fechaRecibo")

	seen := make(map[lims.Kind]bool, len(in.TiposAnalisis))
	kinds := make([]lims.Kind, 0, len(in.TiposAnalisis))
	for _, k := range in.TiposAnalisis {
		parsed, err := lims.ParseKind(string(k))
		if err != nil {
			v.AddError("tiposAnalisis", "unknown kind "+string(k), k)
			continue
		}
		if !seen[parsed] {
			seen[parsed] = true
			kinds = append(kinds, parsed)
		}
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	in.TiposAnalisis = kinds
	return v.AppErr()
}

func (s *Service) checkRefs(ctx context.Context, in Input) error {
	if _, err := s.catalog.CheckCultivar(ctx, in.CultivarID); err != nil {
		return err
	}
	if err := s.catalog.CheckCatalogo(ctx, idOrZero(in.OrigenID), catalog.TipoOrigen); err != nil {
		return err
	}
	if err := s.catalog.CheckCatalogo(ctx, idOrZero(in.EstadoID), catalog.TipoEstado); err != nil {
		return err
	}
	return s.catalog.CheckCatalogo(ctx, idOrZero(in.DepositoID), catalog.TipoDeposito)
}

// Create registers a lot. The ficha is unique ignoring case.
func (s *Service) Create(ctx context.Context, in Input) (Lote, error) {
	if err := in.normalize(); err != nil {
		return Lote{}, err
	}
	if err := s.checkRefs(ctx, in); err != nil {
		return Lote{}, err
	}
	l, err := s.store.Create(ctx, in)
	if err != nil {
		return Lote{}, err
	}
	s.logger.Info().Int64(xglog.FieldLotID, l.ID).Str("ficha", l.Ficha).Msg("lote created")
	return l, nil
}

// Get returns a lot by id.
func (s *Service) Get(ctx context.Context, id int64) (Lote, error) {
	return s.store.Get(ctx, id)
}

// Update replaces the writable fields of a lot. Dropping a kind that still
// has active analyses is refused.
func (s *Service) Update(ctx context.Context, id int64, in Input) (Lote, error) {
	if err := in.normalize(); err != nil {
		return Lote{}, err
	}
	current, err := s.store.Get(ctx, id)
	if err != nil {
		return Lote{}, err
	}
	if err := s.checkRefs(ctx, in); err != nil {
		return Lote{}, err
	}
	keep := make(map[lims.Kind]bool, len(in.TiposAnalisis))
	for _, k := range in.TiposAnalisis {
		keep[k] = true
	}
	for _, k := range current.TiposAnalisis {
		if keep[k] {
			continue
		}
		n, err := s.store.CountActiveAnalyses(ctx, id, k)
		if err != nil {
			return Lote{}, err
		}
		if n > 0 {
			return Lote{}, apperr.Conflict("lote %d has %d active %s analyses", id, n, k).
				WithField("tiposAnalisis", "kind "+string(k)+" in use")
		}
	}
	return s.store.Update(ctx, id, in)
}

// List returns a filtered page of lots.
func (s *Service) List(ctx context.Context, f Filter, p page.Request) (page.Result[Lote], error) {
	return s.store.List(ctx, f, p.Normalize())
}

// Eligible returns active lots that list kind.
func (s *Service) Eligible(ctx context.Context, kind lims.Kind, p page.Request) (page.Result[Lote], error) {
	if _, err := lims.ParseKind(string(kind)); err != nil {
		return page.Result[Lote]{}, apperr.Invalid("unknown kind %q", kind)
	}
	active := true
	return s.store.List(ctx, Filter{Activo: &active, Kind: kind}, p.Normalize())
}

// CheckEligible verifies that a new analysis of kind may be created on the lot.
func (s *Service) CheckEligible(ctx context.Context, loteID int64, kind lims.Kind) (Lote, error) {
	l, err := s.store.Get(ctx, loteID)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindNotFound {
			return Lote{}, apperr.Invalid("lote %d not found", loteID).WithField("loteId", "not found")
		}
		return Lote{}, err
	}
	if !l.Activo {
		return Lote{}, apperr.Invalid("lote %d is inactive", loteID).WithField("loteId", "inactive")
	}
	if !l.HasKind(kind) {
		return Lote{}, apperr.Invalid("lote %d does not list %s", loteID, kind).WithField("kind", "not assigned to lote")
	}
	return l, nil
}

// Deactivate soft-deletes a lot.
func (s *Service) Deactivate(ctx context.Context, id int64) error {
	return s.store.SetActive(ctx, id, false)
}

// Reactivate restores a soft-deleted lot.
func (s *Service) Reactivate(ctx context.Context, id int64) error {
	return s.store.SetActive(ctx, id, true)
}

// CountActive counts active lots.
func (s *Service) CountActive(ctx context.Context) (int, error) {
	return s.store.CountActive(ctx)
}
