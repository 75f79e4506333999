// SPDX-License-Identifier: MIT

// Package calc computes analysis results from the raw laboratory readings.
// Every function is pure; callers persist both payload and result.
package calc

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"math"

	"github.com/seedlab/seedlab/internal/apperr"
	"github.com/seedlab/seedlab/internal/lims"
)

// Compute decodes payload for kind and returns its result.
func Compute(kind lims.Kind, payload []byte) (any, error) {
	switch kind {
	case lims.KindPureza:
		var in PurezaInput
		if err := decode(payload, &in); err != nil {
			return nil, err
		}
		return Pureza(in)
	case lims.KindGerminacion:
		var in GerminacionInput
		if err := decode(payload, &in); err != nil {
			return nil, err
		}
		return Germinacion(in)
	case lims.KindPMS:
		var in PMSInput
		if err := decode(payload, &in); err != nil {
			return nil, err
		}
		return PMS(in)
	case lims.KindTetrazolio:
		var in TetrazolioInput
		if err := decode(payload, &in); err != nil {
			return nil, err
		}
		return Tetrazolio(in)
	case lims.KindDOSN:
		var in DOSNInput
		if err := decode(payload, &in); err != nil {
			return nil, err
		}
		return DOSN(in)
	default:
		return nil, apperr.Invalid("unknown analysis kind %q", kind)
	}
}

func decode(payload []byte, dst any) error {
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return apperr.Invalid("payload: %v", err).WithField("payload", "malformed")
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return apperr.Invalid("payload: trailing data").WithField("payload", "malformed")
	}
	return nil
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
