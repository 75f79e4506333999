// SPDX-License-Identifier: MIT

package catalog

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/seedlab/seedlab/internal/apperr"
	xglog "github.com/seedlab/seedlab/internal/log"
	"github.com/seedlab/seedlab/internal/page"
	"github.com/seedlab/seedlab/internal/validate"
)

// Service applies the catalog rules on top of Store.
type Service struct {
	store  *Store
	logger zerolog.Logger
}

// NewService creates a catalog service.
func NewService(store *Store) *Service {
	return &Service{store: store, logger: xglog.WithComponent("catalog")}
}

func (in *EspecieInput) normalize() error {
	in.NombreComun = strings.TrimSpace(in.NombreComun)
	in.NombreCientifico = strings.TrimSpace(in.NombreCientifico)
	v := validate.New()
	v.NotEmpty("nombreComun", in.NombreComun)
	v.MaxLen("nombreComun", in.NombreComun, 120)
	v.MaxLen("nombreCientifico", in.NombreCientifico, 200)
	return v.AppErr()
}

func (in *CultivarInput) normalize() error {
	in.Nombre = strings.TrimSpace(in.Nombre)
	v := validate.New()
	v.NotEmpty("nombre", in.Nombre)
	v.MaxLen("nombre", in.Nombre, 120)
	v.Check(in.EspecieID > 0, "especieId", "is required")
	return v.AppErr()
}

func (in *CatalogoInput) normalize() error {
	in.Valor = strings.TrimSpace(in.Valor)
	in.Tipo = Tipo(strings.ToUpper(strings.TrimSpace(string(in.Tipo))))
	v := validate.New()
	v.OneOf("tipo", string(in.Tipo), Tipos)
	v.NotEmpty("valor", in.Valor)
	v.MaxLen("valor", in.Valor, 200)
	return v.AppErr()
}

// CreateEspecie registers a species. Common names are unique ignoring case and accents.
func (s *Service) CreateEspecie(ctx context.Context, in EspecieInput) (Especie, error) {
	if err := in.normalize(); err != nil {
		return Especie{}, err
	}
	e, err := s.store.CreateEspecie(ctx, in)
	if err != nil {
		return Especie{}, err
	}
	logger := xglog.WithContext(ctx, s.logger)
	logger.Info().Int64("especie_id", e.ID).Msg("especie created")
	return e, nil
}

func (s *Service) GetEspecie(ctx context.Context, id int64) (Especie, error) {
	return s.store.GetEspecie(ctx, id)
}

func (s *Service) UpdateEspecie(ctx context.Context, id int64, in EspecieInput) (Especie, error) {
	if err := in.normalize(); err != nil {
		return Especie{}, err
	}
	return s.store.UpdateEspecie(ctx, id, in)
}

func (s *Service) ListEspecies(ctx context.Context, f Filter, p page.Request) (page.Result[Especie], error) {
	return s.store.ListEspecies(ctx, f, p)
}

// DeactivateEspecie soft-deletes a species. Species with active cultivars stay active.
func (s *Service) DeactivateEspecie(ctx context.Context, id int64) error {
	if _, err := s.store.GetEspecie(ctx, id); err != nil {
		return err
	}
	n, err := s.store.CountActiveCultivares(ctx, id)
	if err != nil {
		return err
	}
	if n > 0 {
		return apperr.Conflict("especie %d has %d active cultivares", id, n)
	}
	return s.store.SetActive(ctx, "especies", id, false)
}

func (s *Service) ReactivateEspecie(ctx context.Context, id int64) error {
	return s.store.SetActive(ctx, "especies", id, true)
}

// activeEspecie loads the species of a cultivar, which must exist and be active.
func (s *Service) activeEspecie(ctx context.Context, id int64) (Especie, error) {
	e, err := s.store.GetEspecie(ctx, id)
	if err != nil {
		return Especie{}, err
	}
	if !e.Activo {
		return Especie{}, apperr.Invalid("especie %d is inactive", id).WithField("especieId", "inactive")
	}
	return e, nil
}

// CreateCultivar registers a cultivar under an active species.
func (s *Service) CreateCultivar(ctx context.Context, in CultivarInput) (Cultivar, error) {
	if err := in.normalize(); err != nil {
		return Cultivar{}, err
	}
	e, err := s.activeEspecie(ctx, in.EspecieID)
	if err != nil {
		return Cultivar{}, err
	}
	return s.store.CreateCultivar(ctx, in, e.NombreComun)
}

func (s *Service) GetCultivar(ctx context.Context, id int64) (Cultivar, error) {
	return s.store.GetCultivar(ctx, id)
}

func (s *Service) UpdateCultivar(ctx context.Context, id int64, in CultivarInput) (Cultivar, error) {
	if err := in.normalize(); err != nil {
		return Cultivar{}, err
	}
	e, err := s.activeEspecie(ctx, in.EspecieID)
	if err != nil {
		return Cultivar{}, err
	}
	return s.store.UpdateCultivar(ctx, id, in, e.NombreComun)
}

func (s *Service) ListCultivares(ctx context.Context, f Filter, p page.Request) (page.Result[Cultivar], error) {
	return s.store.ListCultivares(ctx, f, p)
}

func (s *Service) DeactivateCultivar(ctx context.Context, id int64) error {
	return s.store.SetActive(ctx, "cultivares", id, false)
}

// ReactivateCultivar requires the parent species to be active.
func (s *Service) ReactivateCultivar(ctx context.Context, id int64) error {
	c, err := s.store.GetCultivar(ctx, id)
	if err != nil {
		return err
	}
	if _, err := s.activeEspecie(ctx, c.EspecieID); err != nil {
		return err
	}
	return s.store.SetActive(ctx, "cultivares", id, true)
}

func (s *Service) CreateCatalogo(ctx context.Context, in CatalogoInput) (Catalogo, error) {
	if err := in.normalize(); err != nil {
		return Catalogo{}, err
	}
	return s.store.CreateCatalogo(ctx, in)
}

func (s *Service) GetCatalogo(ctx context.Context, id int64) (Catalogo, error) {
	return s.store.GetCatalogo(ctx, id)
}

func (s *Service) UpdateCatalogo(ctx context.Context, id int64, in CatalogoInput) (Catalogo, error) {
	if err := in.normalize(); err != nil {
		return Catalogo{}, err
	}
	return s.store.UpdateCatalogo(ctx, id, in)
}

func (s *Service) ListCatalogos(ctx context.Context, f Filter, p page.Request) (page.Result[Catalogo], error) {
	return s.store.ListCatalogos(ctx, f, p)
}

func (s *Service) DeactivateCatalogo(ctx context.Context, id int64) error {
	return s.store.SetActive(ctx, "catalogos", id, false)
}

func (s *Service) ReactivateCatalogo(ctx context.Context, id int64) error {
	return s.store.SetActive(ctx, "catalogos", id, true)
}

// CheckCatalogo verifies that id is an active value of tipo. Zero ids pass.
func (s *Service) CheckCatalogo(ctx context.Context, id int64, tipo Tipo) error {
	if id == 0 {
		return nil
	}
	c, err := s.store.GetCatalogo(ctx, id)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindNotFound {
			return apperr.Invalid("catalogo %d not found", id)
		}
		return err
	}
	if c.Tipo != tipo {
		return apperr.Invalid("catalogo %d is %s, want %s", id, c.Tipo, tipo)
	}
	if !c.Activo {
		return apperr.Invalid("catalogo %d is inactive", id)
	}
	return nil
}

// CheckCultivar verifies that a cultivar exists and is active.
func (s *Service) CheckCultivar(ctx context.Context, id int64) (Cultivar, error) {
	c, err := s.store.GetCultivar(ctx, id)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindNotFound {
			return Cultivar{}, apperr.Invalid("cultivar %d not found", id).WithField("cultivarId", "not found")
		}
		return Cultivar{}, err
	}
	if !c.Activo {
		return Cultivar{}, apperr.Invalid("cultivar %d is inactive", id).WithField("cultivarId", "inactive")
	}
	return c, nil
}
