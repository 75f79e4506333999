// SPDX-License-Identifier: MIT

package catalog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seedlab/seedlab/internal/apperr"
	"github.com/seedlab/seedlab/internal/page"
	"github.com/seedlab/seedlab/internal/testutil"
)

func newService(t *testing.T) *Service {
	t.Helper()
	return NewService(NewStore(testutil.NewDB(t)))
}

func TestEspecieCRUDRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newService(t)

	created, err := s.CreateEspecie(ctx, EspecieInput{NombreComun: "  Trébol blanco ", NombreCientifico: "Trifolium repens"})
	require.NoError(t, err)
	assert.Equal(t, "Trébol blanco", created.NombreComun)
	assert.True(t, created.Activo)

	got, err := s.GetEspecie(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created, got)

	updated, err := s.UpdateEspecie(ctx, created.ID, EspecieInput{NombreComun: "Trébol", NombreCientifico: "Trifolium repens"})
	require.NoError(t, err)
	assert.Equal(t, "Trébol", updated.NombreComun)

	require.NoError(t, s.DeactivateEspecie(ctx, created.ID))
	got, err = s.GetEspecie(ctx, created.ID)
	require.NoError(t, err)
	assert.False(t, got.Activo)

	require.NoError(t, s.ReactivateEspecie(ctx, created.ID))

	_, err = s.GetEspecie(ctx, 9999)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestEspecieUniqueIgnoringAccentsAndCase(t *testing.T) {
	ctx := context.Background()
	s := newService(t)

	_, err := s.CreateEspecie(ctx, EspecieInput{NombreComun: "Raigrás"})
	require.NoError(t, err)
	_, err = s.CreateEspecie(ctx, EspecieInput{NombreComun: "RAIGRAS"})
	assert.ErrorIs(t, err, apperr.ErrConflict)

	_, err = s.CreateEspecie(ctx, EspecieInput{NombreComun: "   "})
	require.ErrorIs(t, err, apperr.ErrInvalid)
	assert.Contains(t, apperr.FieldsOf(err), "nombreComun")
}

func TestListEspeciesFilters(t *testing.T) {
	ctx := context.Background()
	s := newService(t)
	for _, n := range []string{"Avena", "Cebada", "Trébol rojo", "Trébol blanco"} {
		_, err := s.CreateEspecie(ctx, EspecieInput{NombreComun: n})
		require.NoError(t, err)
	}

	res, err := s.ListEspecies(ctx, Filter{Texto: "trebol"}, page.Request{Size: 1})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Total)
	require.Len(t, res.Items, 1)
	assert.Equal(t, "Trébol blanco", res.Items[0].NombreComun)

	inactive := false
	res, err = s.ListEspecies(ctx, Filter{Activo: &inactive}, page.Request{})
	require.NoError(t, err)
	assert.Zero(t, res.Total)
	assert.NotNil(t, res.Items)
}

func TestCultivarRules(t *testing.T) {
	ctx := context.Background()
	s := newService(t)

	e, err := s.CreateEspecie(ctx, EspecieInput{NombreComun: "Trigo"})
	require.NoError(t, err)

	_, err = s.CreateCultivar(ctx, CultivarInput{EspecieID: 404, Nombre: "Baguette"})
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	c, err := s.CreateCultivar(ctx, CultivarInput{EspecieID: e.ID, Nombre: "Baguette 601"})
	require.NoError(t, err)
	assert.Equal(t, "Trigo", c.EspecieNombre)

	_, err = s.CreateCultivar(ctx, CultivarInput{EspecieID: e.ID, Nombre: "baguette 601"})
	assert.ErrorIs(t, err, apperr.ErrConflict)

	err = s.DeactivateEspecie(ctx, e.ID)
	assert.ErrorIs(t, err, apperr.ErrConflict, "species with active cultivars stays active")

	require.NoError(t, s.DeactivateCultivar(ctx, c.ID))
	require.NoError(t, s.DeactivateEspecie(ctx, e.ID))

	_, err = s.CreateCultivar(ctx, CultivarInput{EspecieID: e.ID, Nombre: "Klein"})
	assert.ErrorIs(t, err, apperr.ErrInvalid)
	assert.ErrorIs(t, s.ReactivateCultivar(ctx, c.ID), apperr.ErrInvalid)

	res, err := s.ListCultivares(ctx, Filter{EspecieID: e.ID, Texto: "trigo"}, page.Request{})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Total)
}

func TestCatalogoRules(t *testing.T) {
	ctx := context.Background()
	s := newService(t)

	c, err := s.CreateCatalogo(ctx, CatalogoInput{Tipo: "origen", Valor: "Nacional"})
	require.NoError(t, err)
	assert.Equal(t, TipoOrigen, c.Tipo)

	_, err = s.CreateCatalogo(ctx, CatalogoInput{Tipo: TipoOrigen, Valor: "nacional"})
	assert.ErrorIs(t, err, apperr.ErrConflict)

	_, err = s.CreateCatalogo(ctx, CatalogoInput{Tipo: TipoDeposito, Valor: "Nacional"})
	require.NoError(t, err, "same value under another tipo is allowed")

	_, err = s.CreateCatalogo(ctx, CatalogoInput{Tipo: "COLOR", Valor: "Rojo"})
	assert.ErrorIs(t, err, apperr.ErrInvalid)

	require.NoError(t, s.CheckCatalogo(ctx, c.ID, TipoOrigen))
	assert.ErrorIs(t, s.CheckCatalogo(ctx, c.ID, TipoEstado), apperr.ErrInvalid)
	require.NoError(t, s.DeactivateCatalogo(ctx, c.ID))
	assert.ErrorIs(t, s.CheckCatalogo(ctx, c.ID, TipoOrigen), apperr.ErrInvalid)

	res, err := s.ListCatalogos(ctx, Filter{Tipo: TipoDeposito}, page.Request{})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Total)
}
