// SPDX-License-Identifier: MIT

package lots

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seedlab/seedlab/internal/apperr"
	"github.com/seedlab/seedlab/internal/catalog"
	"github.com/seedlab/seedlab/internal/civil"
	"github.com/seedlab/seedlab/internal/lims"
	"github.com/seedlab/seedlab/internal/page"
	"github.com/seedlab/seedlab/internal/persistence/sqlite"
	"github.com/seedlab/seedlab/internal/testutil"
)

type fixture struct {
	db      *sql.DB
	svc     *Service
	catalog *catalog.Service
	trebol  int64
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	db := testutil.NewDB(t)
	cat := catalog.NewService(catalog.NewStore(db))
	return fixture{
		db:      db,
		svc:     NewService(NewStore(db), cat),
		catalog: cat,
		trebol:  testutil.SeedCultivar(t, db, "Trébol blanco", "Zapicán"),
	}
}

func (f fixture) input(ficha string, kinds ...lims.Kind) Input {
	return Input{
		Ficha:         ficha,
		NomLote:       "Lote " + ficha,
		CultivarID:    f.trebol,
		ClienteNombre: "Cooperativa Agraria",
		FechaRecibo:   civil.NewDate(2024, time.March, 4),
		KilosLimpios:  120.5,
		TiposAnalisis: kinds,
	}
}

func TestLoteCRUDRoundTrip(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	origen, err := f.catalog.CreateCatalogo(ctx, catalog.CatalogoInput{Tipo: catalog.TipoOrigen, Valor: "Nacional"})
	require.NoError(t, err)

	in := f.input("F-001", lims.KindPMS, lims.KindPureza, lims.KindPMS)
	in.OrigenID = &origen.ID
	created, err := f.svc.Create(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, "F-001", created.Ficha)
	assert.Equal(t, "Zapicán", created.CultivarNombre)
	assert.Equal(t, "Trébol blanco", created.EspecieNombre)
	assert.Equal(t, "Nacional", created.Origen)
	assert.Equal(t, []lims.Kind{lims.KindPMS, lims.KindPureza}, created.TiposAnalisis)
	assert.True(t, created.Activo)
	assert.Equal(t, "2024-03-04", created.FechaRecibo.String())

	got, err := f.svc.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created, got)

	upd := f.input("F-001", lims.KindGerminacion)
	upd.Observaciones = "humedad alta"
	updated, err := f.svc.Update(ctx, created.ID, upd)
	require.NoError(t, err)
	assert.Equal(t, []lims.Kind{lims.KindGerminacion}, updated.TiposAnalisis)
	assert.Equal(t, "humedad alta", updated.Observaciones)
	assert.Nil(t, updated.OrigenID)

	require.NoError(t, f.svc.Deactivate(ctx, created.ID))
	got, err = f.svc.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.False(t, got.Activo)
	require.NoError(t, f.svc.Reactivate(ctx, created.ID))

	_, err = f.svc.Get(ctx, 424242)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.ErrorIs(t, f.svc.Deactivate(ctx, 424242), apperr.ErrNotFound)
}

func TestLoteFichaUnique(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.svc.Create(ctx, f.input("A-10"))
	require.NoError(t, err)
	_, err = f.svc.Create(ctx, f.input("a-10"))
	assert.ErrorIs(t, err, apperr.ErrConflict)
}

func TestLoteValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	bad := f.input(" ")
	bad.KilosLimpios = -1
	bad.FechaEntrega = civil.NewDate(2024, time.January, 1)
	bad.TiposAnalisis = []lims.Kind{"HUMEDAD"}
	_, err := f.svc.Create(ctx, bad)
	require.ErrorIs(t, err, apperr.ErrInvalid)
	fields := apperr.FieldsOf(err)
	assert.Contains(t, fields, "ficha")
	assert.Contains(t, fields, "kilosLimpios")
	assert.Contains(t, fields, "fechaEntrega")
	assert.Contains(t, fields, "tiposAnalisis")

	missing := f.input("B-1")
	missing.CultivarID = 999
	_, err = f.svc.Create(ctx, missing)
	assert.ErrorIs(t, err, apperr.ErrInvalid)

	deposito, err := f.catalog.CreateCatalogo(ctx, catalog.CatalogoInput{Tipo: catalog.TipoDeposito, Valor: "Cámara 2"})
	require.NoError(t, err)
	wrongTipo := f.input("B-2")
	wrongTipo.OrigenID = &deposito.ID
	_, err = f.svc.Create(ctx, wrongTipo)
	assert.ErrorIs(t, err, apperr.ErrInvalid)
}

func TestRemovingKindWithActiveAnalysesConflicts(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	l, err := f.svc.Create(ctx, f.input("C-1", lims.KindPureza, lims.KindPMS))
	require.NoError(t, err)

	ts := sqlite.FormatTime(time.Now())
	res, err := f.db.Exec(`INSERT INTO analisis (lote_id, kind, estado, creado_en, actualizado_en) VALUES (?, 'PMS', 'REGISTRADO', ?, ?)`, l.ID, ts, ts)
	require.NoError(t, err)
	analysisID, _ := res.LastInsertId()

	_, err = f.svc.Update(ctx, l.ID, f.input("C-1", lims.KindPureza))
	require.ErrorIs(t, err, apperr.ErrConflict)
	assert.Contains(t, apperr.FieldsOf(err), "tiposAnalisis")

	_, err = f.db.Exec(`UPDATE analisis SET activo = 0 WHERE id = ?`, analysisID)
	require.NoError(t, err)
	updated, err := f.svc.Update(ctx, l.ID, f.input("C-1", lims.KindPureza))
	require.NoError(t, err)
	assert.Equal(t, []lims.Kind{lims.KindPureza}, updated.TiposAnalisis)
}

func TestListFiltersAndEligible(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	raigras := testutil.SeedCultivar(t, f.db, "Raigrás", "Estanzuela 284")

	a, err := f.svc.Create(ctx, f.input("L-1", lims.KindGerminacion))
	require.NoError(t, err)
	b := f.input("L-2", lims.KindGerminacion, lims.KindPMS)
	b.CultivarID = raigras
	b.NomLote = "Semillero Peñarol"
	b.FechaRecibo = civil.NewDate(2024, time.June, 1)
	lb, err := f.svc.Create(ctx, b)
	require.NoError(t, err)
	c, err := f.svc.Create(ctx, f.input("L-3", lims.KindGerminacion))
	require.NoError(t, err)
	require.NoError(t, f.svc.Deactivate(ctx, c.ID))

	all, err := f.svc.List(ctx, Filter{}, page.Request{})
	require.NoError(t, err)
	assert.Equal(t, 3, all.Total)
	assert.Equal(t, lb.ID, all.Items[0].ID, "newest reception first")

	byText, err := f.svc.List(ctx, Filter{Texto: "PENAROL"}, page.Request{})
	require.NoError(t, err)
	require.Len(t, byText.Items, 1)
	assert.Equal(t, lb.ID, byText.Items[0].ID)

	especieID := lb.EspecieID
	byEspecie, err := f.svc.List(ctx, Filter{EspecieID: especieID}, page.Request{})
	require.NoError(t, err)
	assert.Equal(t, 1, byEspecie.Total)

	active := true
	byRange, err := f.svc.List(ctx, Filter{Activo: &active, Hasta: civil.NewDate(2024, time.April, 1)}, page.Request{})
	require.NoError(t, err)
	require.Len(t, byRange.Items, 1)
	assert.Equal(t, a.ID, byRange.Items[0].ID)

	paged, err := f.svc.List(ctx, Filter{}, page.Request{Page: 1, Size: 2})
	require.NoError(t, err)
	assert.Len(t, paged.Items, 1)
	assert.Equal(t, 3, paged.Total)

	eligible, err := f.svc.Eligible(ctx, lims.KindPMS, page.Request{})
	require.NoError(t, err)
	require.Len(t, eligible.Items, 1)
	assert.Equal(t, lb.ID, eligible.Items[0].ID)

	_, err = f.svc.Eligible(ctx, "X", page.Request{})
	assert.ErrorIs(t, err, apperr.ErrInvalid)
}

func TestCheckEligible(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	l, err := f.svc.Create(ctx, f.input("E-1", lims.KindTetrazolio))
	require.NoError(t, err)

	_, err = f.svc.CheckEligible(ctx, l.ID, lims.KindTetrazolio)
	require.NoError(t, err)
	_, err = f.svc.CheckEligible(ctx, l.ID, lims.KindDOSN)
	assert.ErrorIs(t, err, apperr.ErrInvalid)
	_, err = f.svc.CheckEligible(ctx, 777, lims.KindTetrazolio)
	assert.ErrorIs(t, err, apperr.ErrInvalid)

	require.NoError(t, f.svc.Deactivate(ctx, l.ID))
	_, err = f.svc.CheckEligible(ctx, l.ID, lims.KindTetrazolio)
	assert.ErrorIs(t, err, apperr.ErrInvalid)
}
