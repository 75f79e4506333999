// SPDX-License-Identifier: MIT

package calc

import (
	"fmt"
	"math"

	"github.com/seedlab/seedlab/internal/validate"
)

const (
	MinRepeticionesPMS = 8
	MaxRepeticionesPMS = 16
	CVUmbral           = 4.0
	CVUmbralPaja       = 6.0
)

// PMSInput holds the weights in grams of each 100-seed replicate.
type PMSInput struct {
	Repeticiones []float64 `json:"repeticiones"`
	SemillaPaja  bool      `json:"semillaPaja"`
}

// PMSResult is the thousand-seed weight and its dispersion.
type PMSResult struct {
	Promedio                float64 `json:"promedio"`
	Desviacion              float64 `json:"desviacion"`
	CV                      float64 `json:"cv"`
	Umbral                  float64 `json:"umbral"`
	CVValido                bool    `json:"cvValido"`
	RequiereMasRepeticiones bool    `json:"requiereMasRepeticiones"`
	PMS                     float64 `json:"pms"`
}

// PMS computes mean, sample deviation and coefficient of variation of the
// replicates. When the CV exceeds the threshold and fewer than 16 replicates
// were weighed, more replicates are required.
func PMS(in PMSInput) (PMSResult, error) {
	n := len(in.Repeticiones)
	v := validate.New()
	v.Check(n >= MinRepeticionesPMS && n <= MaxRepeticionesPMS, "repeticiones",
		fmt.Sprintf("between %d and %d replicates are required", MinRepeticionesPMS, MaxRepeticionesPMS))
	for i, w := range in.Repeticiones {
		v.PositiveFloat(fmt.Sprintf("repeticiones[%d]", i), w)
	}
	if err := v.AppErr(); err != nil {
		return PMSResult{}, err
	}

	var sum float64
	for _, w := range in.Repeticiones {
		sum += w
	}
	mean := sum / float64(n)
	var sq float64
	for _, w := range in.Repeticiones {
		sq += (w - mean) * (w - mean)
	}
	sd := math.Sqrt(sq / float64(n-1))
	cv := sd / mean * 100

	umbral := CVUmbral
	if in.SemillaPaja {
		umbral = CVUmbralPaja
	}
	return PMSResult{
		Promedio:                round(mean, 4),
		Desviacion:              round(sd, 4),
		CV:                      round(cv, 2),
		Umbral:                  umbral,
		CVValido:                cv <= umbral,
		RequiereMasRepeticiones: cv > umbral && n < MaxRepeticionesPMS,
		PMS:                     round(mean*10, 2),
	}, nil
}
