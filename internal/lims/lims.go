// SPDX-License-Identifier: MIT

// Package lims holds the vocabulary shared by lots and analyses.
package lims

import (
	"fmt"
	"strings"
)

// Kind is an analysis type.
type Kind string

const (
	KindPureza      Kind = "PUREZA"
	KindGerminacion Kind = "GERMINACION"
	KindPMS         Kind = "PMS"
	KindTetrazolio  Kind = "TETRAZOLIO"
	KindDOSN        Kind = "DOSN"
)

// Kinds lists every analysis type in display order.
var Kinds = []Kind{KindPureza, KindGerminacion, KindPMS, KindTetrazolio, KindDOSN}

// ParseKind accepts any case.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range Kinds {
		if k == known {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown analysis kind %q", s)
}

// KindStrings returns Kinds as strings.
func KindStrings() []string {
	out := make([]string, len(Kinds))
	for i, k := range Kinds {
		out[i] = string(k)
	}
	return out
}

// Estado is the lifecycle state of an analysis.
type Estado string

const (
	EstadoRegistrado          Estado = "REGISTRADO"
	EstadoEnProceso           Estado = "EN_PROCESO"
	EstadoPendienteAprobacion Estado = "PENDIENTE_APROBACION"
	EstadoAprobado            Estado = "APROBADO"
	EstadoParaRepetir         Estado = "PARA_REPETIR"
)

// Estados lists every state.
var Estados = []Estado{
	EstadoRegistrado, EstadoEnProceso, EstadoPendienteAprobacion, EstadoAprobado, EstadoParaRepetir,
}

// ParseEstado accepts any case.
func ParseEstado(s string) (Estado, error) {
	e := Estado(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range Estados {
		if e == known {
			return e, nil
		}
	}
	return "", fmt.Errorf("unknown estado %q", s)
}

// Open reports whether an analysis in this state still counts as in progress.
func (e Estado) Open() bool {
	return e != EstadoAprobado
}
