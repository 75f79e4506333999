// SPDX-License-Identifier: MIT

package calc

import (
	"fmt"
	"strings"

	"github.com/seedlab/seedlab/internal/validate"
)

const (
	TipoMaleza      = "MALEZA"
	TipoOtroCultivo = "OTRO_CULTIVO"
)

// DOSNItem is one species found in the sample.
type DOSNItem struct {
	Especie  string `json:"especie"`
	Tipo     string `json:"tipo"`
	Cantidad int    `json:"cantidad"`
}

type DOSNInput struct {
	GramosAnalizados float64    `json:"gramosAnalizados"`
	Listado          []DOSNItem `json:"listado"`
}

// DOSNLine is an item with its count per kilogram.
type DOSNLine struct {
	DOSNItem
	PorKg float64 `json:"porKg"`
}

type DOSNResult struct {
	Listado            []DOSNLine `json:"listado"`
	TotalMalezas       int        `json:"totalMalezas"`
	TotalOtrosCultivos int        `json:"totalOtrosCultivos"`
	MalezasPorKg       float64    `json:"malezasPorKg"`
	OtrosCultivosPorKg float64    `json:"otrosCultivosPorKg"`
	TotalPorKg         float64    `json:"totalPorKg"`
}

// DOSN totals other seeds by type and scales counts to one kilogram.
func DOSN(in DOSNInput) (DOSNResult, error) {
	v := validate.New()
	v.PositiveFloat("gramosAnalizados", in.GramosAnalizados)
	for i := range in.Listado {
		it := &in.Listado[i]
		field := fmt.Sprintf("listado[%d]", i)
		it.Especie = strings.TrimSpace(it.Especie)
		it.Tipo = strings.ToUpper(strings.TrimSpace(it.Tipo))
		v.Check(it.Especie != "", field, "especie is required")
		v.Check(it.Tipo == TipoMaleza || it.Tipo == TipoOtroCultivo, field, "tipo must be MALEZA or OTRO_CULTIVO")
		v.Check(it.Cantidad >= 0, field, "cantidad must not be negative")
	}
	if err := v.AppErr(); err != nil {
		return DOSNResult{}, err
	}

	perKg := func(n int) float64 { return round(float64(n)/in.GramosAnalizados*1000, 2) }
	r := DOSNResult{Listado: make([]DOSNLine, 0, len(in.Listado))}
	for _, it := range in.Listado {
		r.Listado = append(r.Listado, DOSNLine{DOSNItem: it, PorKg: perKg(it.Cantidad)})
		if it.Tipo == TipoMaleza {
			r.TotalMalezas += it.Cantidad
		} else {
			r.TotalOtrosCultivos += it.Cantidad
		}
	}
	r.MalezasPorKg = perKg(r.TotalMalezas)
	r.OtrosCultivosPorKg = perKg(r.TotalOtrosCultivos)
	r.TotalPorKg = perKg(r.TotalMalezas + r.TotalOtrosCultivos)
	return r, nil
}
