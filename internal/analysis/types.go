// SPDX-License-Identifier: MIT

// Package analysis manages laboratory analyses and their approval lifecycle.
package analysis

import (
	"encoding/json"
	"time"

	"github.com/seedlab/seedlab/internal/civil"
	"github.com/seedlab/seedlab/internal/lims"
)

// Analisis is one test performed on a lot.
type Analisis struct {
	ID            int64           `json:"id"`
	LoteID        int64           `json:"loteId"`
	LoteFicha     string          `json:"loteFicha"`
	Kind          lims.Kind       `json:"kind"`
	Estado        lims.Estado     `json:"estado"`
	FechaInicio   civil.Date      `json:"fechaInicio"`
	FechaFin      civil.Date      `json:"fechaFin"`
	Comentarios   string          `json:"comentarios"`
	CreadoPor     int64           `json:"creadoPor"`
	Payload       json.RawMessage `json:"payload"`
	Resultado     json.RawMessage `json:"resultado"`
	Activo        bool            `json:"activo"`
	CreadoEn      time.Time       `json:"creadoEn"`
	ActualizadoEn time.Time       `json:"actualizadoEn"`
}

// Calculated reports whether a result has been computed from the payload.
func (a Analisis) Calculated() bool {
	return len(a.Resultado) > 0 && string(a.Resultado) != "{}" && string(a.Resultado) != "null"
}

// CreateInput registers a new analysis on a lot.
type CreateInput struct {
	LoteID      int64           `json:"loteId"`
	FechaInicio civil.Date      `json:"fechaInicio"`
	Comentarios string          `json:"comentarios"`
	Payload     json.RawMessage `json:"payload"`
}

// UpdateInput edits an analysis. A nil payload, nil comments and zero dates
// keep the stored values.
type UpdateInput struct {
	FechaInicio civil.Date      `json:"fechaInicio"`
	FechaFin    civil.Date      `json:"fechaFin"`
	Comentarios *string         `json:"comentarios"`
	Payload     json.RawMessage `json:"payload"`
}

// RepeatInput carries the approver's reason for sending an analysis back.
type RepeatInput struct {
	Motivo string `json:"motivo"`
}

// Filter narrows analysis listings.
type Filter struct {
	Kind      lims.Kind
	Estado    lims.Estado
	LoteID    int64
	CreadoPor int64
	Activo    *bool
	Texto     string
	Desde     civil.Date
	Hasta     civil.Date
}

// Stats are aggregate counts over active analyses.
type Stats struct {
	PorEstado  map[lims.Estado]int `json:"porEstado"`
	PorKind    map[lims.Kind]int   `json:"porKind"`
	Pendientes int                 `json:"pendientesAprobacion"`
}
