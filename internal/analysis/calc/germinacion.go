// SPDX-License-Identifier: MIT

package calc

import (
	"fmt"
	"math"

	"github.com/seedlab/seedlab/internal/validate"
)

// Repeticion is one germination replicate.
type Repeticion struct {
	NumSemillas int `json:"numSemillas"`
	Normales    int `json:"normales"`
	Anormales   int `json:"anormales"`
	Duras       int `json:"duras"`
	Frescas     int `json:"frescas"`
	Muertas     int `json:"muertas"`
}

// GerminacionInput lists the replicates of a germination test.
type GerminacionInput struct {
	Repeticiones []Repeticion `json:"repeticiones"`
}

// GerminacionResult holds integer percentages that sum to 100.
type GerminacionResult struct {
	Normales         int  `json:"normales"`
	Anormales        int  `json:"anormales"`
	Duras            int  `json:"duras"`
	Frescas          int  `json:"frescas"`
	Muertas          int  `json:"muertas"`
	Rango            int  `json:"rango"`
	RangoMaximo      int  `json:"rangoMaximo"`
	DentroTolerancia bool `json:"dentroTolerancia"`
}

// Tolerance is one row of the replicate range table.
type Tolerance struct {
	Desde       int `json:"desde"`
	Hasta       int `json:"hasta"`
	RangoMaximo int `json:"rangoMaximo"`
}

// toleranceTable is the maximum range between replicates of normal seedlings
// for four replicates of 100 seeds, by mean germination above 50%. Means below
// 50% use the row of 100 minus the mean.
var toleranceTable = []Tolerance{
	{99, 100, 5},
	{98, 98, 6},
	{97, 97, 7},
	{96, 96, 8},
	{95, 95, 9},
	{93, 94, 10},
	{91, 92, 11},
	{89, 90, 12},
	{87, 88, 13},
	{84, 86, 14},
	{81, 83, 15},
	{78, 80, 16},
	{73, 77, 17},
	{67, 72, 18},
	{56, 66, 19},
	{50, 55, 20},
}

// ToleranceTable returns a copy of the replicate range table.
func ToleranceTable() []Tolerance {
	out := make([]Tolerance, len(toleranceTable))
	copy(out, toleranceTable)
	return out
}

// MaxRange returns the tolerated replicate range for a mean germination.
func MaxRange(mean int) int {
	if mean < 50 {
		mean = 100 - mean
	}
	for _, t := range toleranceTable {
		if mean >= t.Desde && mean <= t.Hasta {
			return t.RangoMaximo
		}
	}
	return toleranceTable[0].RangoMaximo
}

// Germinacion averages replicate percentages per category. Each category is
// rounded to an integer and the remainder is adjusted onto normales.
func Germinacion(in GerminacionInput) (GerminacionResult, error) {
	v := validate.New()
	v.Check(len(in.Repeticiones) > 0, "repeticiones", "at least one replicate is required")
	for i, r := range in.Repeticiones {
		field := fmt.Sprintf("repeticiones[%d]", i)
		v.Check(r.NumSemillas > 0, field, "numSemillas must be positive")
		v.Check(r.Normales >= 0 && r.Anormales >= 0 && r.Duras >= 0 && r.Frescas >= 0 && r.Muertas >= 0,
			field, "counts must not be negative")
		v.Check(r.Normales+r.Anormales+r.Duras+r.Frescas+r.Muertas == r.NumSemillas,
			field, "counts must add up to numSemillas")
	}
	if err := v.AppErr(); err != nil {
		return GerminacionResult{}, err
	}

	n := float64(len(in.Repeticiones))
	var normales, anormales, duras, frescas, muertas float64
	minN, maxN := math.MaxFloat64, -math.MaxFloat64
	for _, r := range in.Repeticiones {
		total := float64(r.NumSemillas)
		pn := float64(r.Normales) * 100 / total
		normales += pn
		anormales += float64(r.Anormales) * 100 / total
		duras += float64(r.Duras) * 100 / total
		frescas += float64(r.Frescas) * 100 / total
		muertas += float64(r.Muertas) * 100 / total
		minN = math.Min(minN, pn)
		maxN = math.Max(maxN, pn)
	}

	res := GerminacionResult{
		Anormales: int(math.Round(anormales / n)),
		Duras:     int(math.Round(duras / n)),
		Frescas:   int(math.Round(frescas / n)),
		Muertas:   int(math.Round(muertas / n)),
	}
	res.Normales = 100 - res.Anormales - res.Duras - res.Frescas - res.Muertas
	res.Rango = int(math.Round(maxN - minN))
	res.RangoMaximo = MaxRange(int(math.Round(normales / n)))
	res.DentroTolerancia = res.Rango <= res.RangoMaximo
	return res, nil
}
