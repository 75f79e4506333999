// SPDX-License-Identifier: MIT

package calc

import "github.com/seedlab/seedlab/internal/validate"

// MaxPerdidaPct is the weight loss above which a purity sample is flagged.
const MaxPerdidaPct = 5.0

// PurezaInput holds the fraction weights in grams.
type PurezaInput struct {
	PesoInicial           float64 `json:"pesoInicial"`
	SemillaPura           float64 `json:"semillaPura"`
	MateriaInerte         float64 `json:"materiaInerte"`
	OtrosCultivos         float64 `json:"otrosCultivos"`
	Malezas               float64 `json:"malezas"`
	MalezasToleradas      float64 `json:"malezasToleradas"`
	MalezasToleranciaCero float64 `json:"malezasToleranciaCero"`
}

// PurezaResult holds fraction percentages rounded to one decimal.
type PurezaResult struct {
	PesoTotal             float64 `json:"pesoTotal"`
	SemillaPura           float64 `json:"semillaPura"`
	MateriaInerte         float64 `json:"materiaInerte"`
	OtrosCultivos         float64 `json:"otrosCultivos"`
	Malezas               float64 `json:"malezas"`
	MalezasToleradas      float64 `json:"malezasToleradas"`
	MalezasToleranciaCero float64 `json:"malezasToleranciaCero"`
	PerdidaPct            float64 `json:"perdidaPct"`
	PerdidaExcedida       bool    `json:"perdidaExcedida"`
}

// Pureza computes purity percentages over the sum of fractions. The rounded
// fractions always sum to 100; the rounding remainder lands on semilla pura
// unless that would make it negative, in which case the excess comes off the
// largest other fraction.
func Pureza(in PurezaInput) (PurezaResult, error) {
	v := validate.New()
	v.PositiveFloat("pesoInicial", in.PesoInicial)
	v.NonNegativeFloat("semillaPura", in.SemillaPura)
	v.NonNegativeFloat("materiaInerte", in.MateriaInerte)
	v.NonNegativeFloat("otrosCultivos", in.OtrosCultivos)
	v.NonNegativeFloat("malezas", in.Malezas)
	v.NonNegativeFloat("malezasToleradas", in.MalezasToleradas)
	v.NonNegativeFloat("malezasToleranciaCero", in.MalezasToleranciaCero)
	total := in.SemillaPura + in.MateriaInerte + in.OtrosCultivos + in.Malezas + in.MalezasToleradas + in.MalezasToleranciaCero
	v.Check(total > 0, "semillaPura", "fractions must weigh more than zero")
	if err := v.AppErr(); err != nil {
		return PurezaResult{}, err
	}

	pct := func(w float64) float64 { return round(w*100/total, 1) }
	r := PurezaResult{
		PesoTotal:             round(total, 4),
		MateriaInerte:         pct(in.MateriaInerte),
		OtrosCultivos:         pct(in.OtrosCultivos),
		Malezas:               pct(in.Malezas),
		MalezasToleradas:      pct(in.MalezasToleradas),
		MalezasToleranciaCero: pct(in.MalezasToleranciaCero),
	}
	r.SemillaPura = round(100-r.MateriaInerte-r.OtrosCultivos-r.Malezas-r.MalezasToleradas-r.MalezasToleranciaCero, 1)
	if r.SemillaPura < 0 {
		largest := &r.MateriaInerte
		for _, f := range []*float64{&r.OtrosCultivos, &r.Malezas, &r.MalezasToleradas, &r.MalezasToleranciaCero} {
			if *f > *largest {
				largest = f
			}
		}
		*largest = round(*largest+r.SemillaPura, 1)
		r.SemillaPura = 0
	}
	r.PerdidaPct = round((in.PesoInicial-total)/in.PesoInicial*100, 2)
	r.PerdidaExcedida = r.PerdidaPct > MaxPerdidaPct
	return r, nil
}
