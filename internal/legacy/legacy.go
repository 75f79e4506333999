// SPDX-License-Identifier: MIT

// Package legacy keeps results imported from the spreadsheets used before
// the system existed. Records are read-only once imported.
package legacy

import (
	"time"

	"github.com/seedlab/seedlab/internal/civil"
)

// Legado is one historical lot result.
type Legado struct {
	ID            int64      `json:"id"`
	Ficha         string     `json:"ficha"`
	Especie       string     `json:"especie"`
	Cultivar      string     `json:"cultivar"`
	FechaRecibo   civil.Date `json:"fechaRecibo"`
	Germinacion   *float64   `json:"germinacion,omitempty"`
	Pureza        *float64   `json:"pureza,omitempty"`
	PMS           *float64   `json:"pms,omitempty"`
	Observaciones string     `json:"observaciones"`
	ArchivoOrigen string     `json:"archivoOrigen"`
	ImportadoEn   time.Time  `json:"importadoEn"`
}

// Filter narrows List.
type Filter struct {
	Texto         string
	Especie       string
	ArchivoOrigen string
	Desde         civil.Date
	Hasta         civil.Date
}
