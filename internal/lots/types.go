// SPDX-License-Identifier: MIT

// Package lots manages seed lots (Lote) received for testing.
package lots

import (
	"time"

	"github.com/seedlab/seedlab/internal/civil"
	"github.com/seedlab/seedlab/internal/lims"
)

// Lote is a seed lot received by the laboratory.
type Lote struct {
	ID             int64       `json:"id"`
	Ficha          string      `json:"ficha"`
	NomLote        string      `json:"nomLote"`
	CultivarID     int64       `json:"cultivarId"`
	CultivarNombre string      `json:"cultivarNombre"`
	EspecieID      int64       `json:"especieId"`
	EspecieNombre  string      `json:"especieNombre"`
	ClienteNombre  string      `json:"clienteNombre"`
	Empresa        string      `json:"empresa"`
	OrigenID       *int64      `json:"origenId"`
	Origen         string      `json:"origen,omitempty"`
	EstadoID       *int64      `json:"estadoId"`
	Estado         string      `json:"estado,omitempty"`
	DepositoID     *int64      `json:"depositoId"`
	Deposito       string      `json:"deposito,omitempty"`
	FechaRecibo    civil.Date  `json:"fechaRecibo"`
	FechaEntrega   civil.Date  `json:"fechaEntrega"`
	KilosLimpios   float64     `json:"kilosLimpios"`
	Observaciones  string      `json:"observaciones"`
	TiposAnalisis  []lims.Kind `json:"tiposAnalisis"`
	Activo         bool        `json:"activo"`
	CreadoEn       time.Time   `json:"creadoEn"`
	ActualizadoEn  time.Time   `json:"actualizadoEn"`
}

// HasKind reports whether the lot lists kind.
func (l Lote) HasKind(kind lims.Kind) bool {
	for _, k := range l.TiposAnalisis {
		if k == kind {
			return true
		}
	}
	return false
}

// Input carries the writable fields of a Lote.
type Input struct {
	Ficha         string      `json:"ficha"`
	NomLote       string      `json:"nomLote"`
	CultivarID    int64       `json:"cultivarId"`
	ClienteNombre string      `json:"clienteNombre"`
	Empresa       string      `json:"empresa"`
	OrigenID      *int64      `json:"origenId"`
	EstadoID      *int64      `json:"estadoId"`
	DepositoID    *int64      `json:"depositoId"`
	FechaRecibo   civil.Date  `json:"fechaRecibo"`
	FechaEntrega  civil.Date  `json:"fechaEntrega"`
	KilosLimpios  float64     `json:"kilosLimpios"`
	Observaciones string      `json:"observaciones"`
	TiposAnalisis []lims.Kind `json:"tiposAnalisis"`
}

// Filter narrows lot listings.
type Filter struct {
	Texto      string
	CultivarID int64
	EspecieID  int64
	Activo     *bool
	Kind       lims.Kind
	Desde      civil.Date
	Hasta      civil.Date
}
