// SPDX-License-Identifier: MIT

package calc

import (
	"fmt"
	"math"

	"github.com/seedlab/seedlab/internal/validate"
)

// TetrazolioRep is one tetrazolium replicate.
type TetrazolioRep struct {
	Viables   int `json:"viables"`
	NoViables int `json:"noViables"`
	Duras     int `json:"duras"`
}

type TetrazolioInput struct {
	Repeticiones []TetrazolioRep `json:"repeticiones"`
}

type TetrazolioResult struct {
	TotalSemillas int `json:"totalSemillas"`
	Viables       int `json:"viables"`
	NoViables     int `json:"noViables"`
	Duras         int `json:"duras"`
	Viabilidad    int `json:"viabilidad"`
	DurasPct      int `json:"durasPct"`
}

// Tetrazolio computes viability over all seeds tested. Hard seeds are
// reported apart and never count as viable.
func Tetrazolio(in TetrazolioInput) (TetrazolioResult, error) {
	v := validate.New()
	v.Check(len(in.Repeticiones) > 0, "repeticiones", "at least one replicate is required")
	var r TetrazolioResult
	for i, rep := range in.Repeticiones {
		v.Check(rep.Viables >= 0 && rep.NoViables >= 0 && rep.Duras >= 0,
			fmt.Sprintf("repeticiones[%d]", i), "counts must not be negative")
		r.Viables += rep.Viables
		r.NoViables += rep.NoViables
		r.Duras += rep.Duras
	}
	r.TotalSemillas = r.Viables + r.NoViables + r.Duras
	v.Check(len(in.Repeticiones) == 0 || r.TotalSemillas > 0, "repeticiones", "no seeds counted")
	if err := v.AppErr(); err != nil {
		return TetrazolioResult{}, err
	}
	total := float64(r.TotalSemillas)
	r.Viabilidad = int(math.Round(float64(r.Viables) * 100 / total))
	r.DurasPct = int(math.Round(float64(r.Duras) * 100 / total))
	return r, nil
}
