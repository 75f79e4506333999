// SPDX-License-Identifier: MIT

package calc

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seedlab/seedlab/internal/apperr"
	"github.com/seedlab/seedlab/internal/lims"
)

func TestPurezaPercentagesSumToHundred(t *testing.T) {
	r, err := Pureza(PurezaInput{
		PesoInicial:           50,
		SemillaPura:           47.0,
		MateriaInerte:         1.5,
		OtrosCultivos:         0.8,
		Malezas:               0.3,
		MalezasToleradas:      0.2,
		MalezasToleranciaCero: 0.05,
	})
	require.NoError(t, err)
	assert.InDelta(t, 3.0, r.MateriaInerte, 1e-9)
	assert.InDelta(t, 1.6, r.OtrosCultivos, 1e-9)
	assert.InDelta(t, 0.6, r.Malezas, 1e-9)
	assert.InDelta(t, 0.4, r.MalezasToleradas, 1e-9)
	assert.InDelta(t, 0.1, r.MalezasToleranciaCero, 1e-9)
	assert.InDelta(t, 94.3, r.SemillaPura, 1e-9)
	assert.InDelta(t, 0.3, r.PerdidaPct, 1e-9)
	assert.False(t, r.PerdidaExcedida)

	sum := r.SemillaPura + r.MateriaInerte + r.OtrosCultivos + r.Malezas + r.MalezasToleradas + r.MalezasToleranciaCero
	assert.InDelta(t, 100, sum, 1e-9)
}

func TestPurezaRemainderGoesToSemillaPura(t *testing.T) {
	r, err := Pureza(PurezaInput{PesoInicial: 3, SemillaPura: 1, MateriaInerte: 1, OtrosCultivos: 1})
	require.NoError(t, err)
	assert.InDelta(t, 33.3, r.MateriaInerte, 1e-9)
	assert.InDelta(t, 33.3, r.OtrosCultivos, 1e-9)
	assert.InDelta(t, 33.4, r.SemillaPura, 1e-9)
}

func TestPurezaNeverReportsNegativeSemillaPura(t *testing.T) {
	r, err := Pureza(PurezaInput{PesoInicial: 1, MateriaInerte: 0.3335, OtrosCultivos: 0.3335, Malezas: 0.333})
	require.NoError(t, err)
	assert.Zero(t, r.SemillaPura)
	assert.InDelta(t, 33.3, r.MateriaInerte, 1e-9)
	assert.InDelta(t, 33.4, r.OtrosCultivos, 1e-9)
	assert.InDelta(t, 33.3, r.Malezas, 1e-9)
	for _, f := range []float64{r.SemillaPura, r.MateriaInerte, r.OtrosCultivos, r.Malezas, r.MalezasToleradas, r.MalezasToleranciaCero} {
		assert.GreaterOrEqual(t, f, 0.0)
	}

	sum := r.SemillaPura + r.MateriaInerte + r.OtrosCultivos + r.Malezas + r.MalezasToleradas + r.MalezasToleranciaCero
	assert.InDelta(t, 100, sum, 1e-9)
}

func TestPurezaFlagsWeightLoss(t *testing.T) {
	r, err := Pureza(PurezaInput{PesoInicial: 100, SemillaPura: 85, MateriaInerte: 5})
	require.NoError(t, err)
	assert.InDelta(t, 10, r.PerdidaPct, 1e-9)
	assert.True(t, r.PerdidaExcedida)
}

func TestPurezaRejectsEmptySample(t *testing.T) {
	_, err := Pureza(PurezaInput{PesoInicial: 0, MateriaInerte: -1})
	require.ErrorIs(t, err, apperr.ErrInvalid)
	fields := apperr.FieldsOf(err)
	assert.Contains(t, fields, "pesoInicial")
	assert.Contains(t, fields, "materiaInerte")
}

func TestGerminacionAdjustsRemainderOntoNormales(t *testing.T) {
	r, err := Germinacion(GerminacionInput{Repeticiones: []Repeticion{
		{NumSemillas: 100, Normales: 90, Anormales: 5, Duras: 2, Frescas: 1, Muertas: 2},
		{NumSemillas: 100, Normales: 92, Anormales: 4, Duras: 2, Frescas: 1, Muertas: 1},
		{NumSemillas: 100, Normales: 88, Anormales: 6, Duras: 2, Frescas: 2, Muertas: 2},
		{NumSemillas: 100, Normales: 94, Anormales: 3, Duras: 1, Frescas: 1, Muertas: 1},
	}})
	require.NoError(t, err)
	assert.Equal(t, GerminacionResult{
		Normales:         90,
		Anormales:        5,
		Duras:            2,
		Frescas:          1,
		Muertas:          2,
		Rango:            6,
		RangoMaximo:      11,
		DentroTolerancia: true,
	}, r)
	assert.Equal(t, 100, r.Normales+r.Anormales+r.Duras+r.Frescas+r.Muertas)
}

func TestGerminacionOutOfTolerance(t *testing.T) {
	r, err := Germinacion(GerminacionInput{Repeticiones: []Repeticion{
		{NumSemillas: 50, Normales: 35, Muertas: 15},
		{NumSemillas: 50, Normales: 45, Muertas: 5},
	}})
	require.NoError(t, err)
	assert.Equal(t, 80, r.Normales)
	assert.Equal(t, 20, r.Rango)
	assert.Equal(t, 16, r.RangoMaximo)
	assert.False(t, r.DentroTolerancia)
}

func TestGerminacionValidation(t *testing.T) {
	_, err := Germinacion(GerminacionInput{})
	assert.ErrorIs(t, err, apperr.ErrInvalid)

	_, err = Germinacion(GerminacionInput{Repeticiones: []Repeticion{{NumSemillas: 100, Normales: 90}}})
	require.ErrorIs(t, err, apperr.ErrInvalid)
	assert.Contains(t, apperr.FieldsOf(err), "repeticiones[0]")
}

func TestMaxRange(t *testing.T) {
	tests := []struct {
		mean int
		want int
	}{
		{100, 5},
		{99, 5},
		{91, 11},
		{80, 16},
		{50, 20},
		{30, 18},
		{2, 6},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, MaxRange(tt.mean), "mean %d", tt.mean)
	}
	assert.Len(t, ToleranceTable(), len(toleranceTable))
}

func TestPMS(t *testing.T) {
	reps := []float64{4.0, 4.2, 3.8, 4.1, 3.9, 4.0, 4.3, 3.7}

	r, err := PMS(PMSInput{Repeticiones: reps})
	require.NoError(t, err)
	assert.InDelta(t, 4.0, r.Promedio, 1e-9)
	assert.InDelta(t, 0.2, r.Desviacion, 1e-9)
	assert.InDelta(t, 5.0, r.CV, 1e-9)
	assert.InDelta(t, 40.0, r.PMS, 1e-9)
	assert.False(t, r.CVValido)
	assert.True(t, r.RequiereMasRepeticiones)

	chaff, err := PMS(PMSInput{Repeticiones: reps, SemillaPaja: true})
	require.NoError(t, err)
	assert.Equal(t, CVUmbralPaja, chaff.Umbral)
	assert.True(t, chaff.CVValido)
	assert.False(t, chaff.RequiereMasRepeticiones)

	full, err := PMS(PMSInput{Repeticiones: append(append([]float64{}, reps...), reps...)})
	require.NoError(t, err)
	assert.False(t, full.CVValido)
	assert.False(t, full.RequiereMasRepeticiones, "16 replicates is the maximum")
}

func TestPMSReplicateBounds(t *testing.T) {
	_, err := PMS(PMSInput{Repeticiones: []float64{4, 4, 4}})
	assert.ErrorIs(t, err, apperr.ErrInvalid)

	_, err = PMS(PMSInput{Repeticiones: make([]float64, 17)})
	assert.ErrorIs(t, err, apperr.ErrInvalid)
}

func TestTetrazolio(t *testing.T) {
	r, err := Tetrazolio(TetrazolioInput{Repeticiones: []TetrazolioRep{
		{Viables: 45, NoViables: 4, Duras: 1},
		{Viables: 47, NoViables: 2, Duras: 1},
	}})
	require.NoError(t, err)
	assert.Equal(t, TetrazolioResult{TotalSemillas: 100, Viables: 92, NoViables: 6, Duras: 2, Viabilidad: 92, DurasPct: 2}, r)

	_, err = Tetrazolio(TetrazolioInput{Repeticiones: []TetrazolioRep{{}}})
	assert.ErrorIs(t, err, apperr.ErrInvalid)
}

func TestDOSN(t *testing.T) {
	r, err := DOSN(DOSNInput{GramosAnalizados: 50, Listado: []DOSNItem{
		{Especie: "Rumex crispus", Tipo: "maleza", Cantidad: 3},
		{Especie: "Lolium multiflorum", Tipo: TipoOtroCultivo, Cantidad: 2},
		{Especie: "Cuscuta", Tipo: TipoMaleza, Cantidad: 1},
	}})
	require.NoError(t, err)

	want := DOSNResult{
		Listado: []DOSNLine{
			{DOSNItem: DOSNItem{Especie: "Rumex crispus", Tipo: TipoMaleza, Cantidad: 3}, PorKg: 60},
			{DOSNItem: DOSNItem{Especie: "Lolium multiflorum", Tipo: TipoOtroCultivo, Cantidad: 2}, PorKg: 40},
			{DOSNItem: DOSNItem{Especie: "Cuscuta", Tipo: TipoMaleza, Cantidad: 1}, PorKg: 20},
		},
		TotalMalezas:       4,
		TotalOtrosCultivos: 2,
		MalezasPorKg:       80,
		OtrosCultivosPorKg: 40,
		TotalPorKg:         120,
	}
	if diff := cmp.Diff(want, r, cmpopts.EquateApprox(0, 1e-9)); diff != "" {
		t.Errorf("DOSN mismatch (-want +got):\n%s", diff)
	}

	_, err = DOSN(DOSNInput{GramosAnalizados: 10, Listado: []DOSNItem{{Especie: "x", Tipo: "OTRA"}}})
	assert.ErrorIs(t, err, apperr.ErrInvalid)
}

func TestComputeDecodesStrictly(t *testing.T) {
	res, err := Compute(lims.KindTetrazolio, []byte(`{"repeticiones":[{"viables":9,"noViables":1,"duras":0}]}`))
	require.NoError(t, err)
	assert.Equal(t, 90, res.(TetrazolioResult).Viabilidad)

	_, err = Compute(lims.KindTetrazolio, []byte(`{"repeticiones":[],"extra":1}`))
	require.ErrorIs(t, err, apperr.ErrInvalid)
	assert.Contains(t, apperr.FieldsOf(err), "payload")

	_, err = Compute(lims.KindPMS, []byte(`{"repeticiones":[]} {}`))
	assert.ErrorIs(t, err, apperr.ErrInvalid)

	_, err = Compute("HUMEDAD", []byte(`{}`))
	assert.ErrorIs(t, err, apperr.ErrInvalid)
}
