// SPDX-License-Identifier: MIT

package legacy

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	xglog "github.com/seedlab/seedlab/internal/log"
	"github.com/seedlab/seedlab/internal/metrics"
	"github.com/seedlab/seedlab/internal/page"
)

// Skipped explains why an input row was not stored.
type Skipped struct {
	Row    int    `json:"row"`
	Ficha  string `json:"ficha,omitempty"`
	Reason string `json:"reason"`
}

// Report summarizes an import.
type Report struct {
	Archivo    string    `json:"archivo"`
	Leidas     int       `json:"leidas"`
	Insertadas int       `json:"insertadas"`
	Omitidas   []Skipped `json:"omitidas"`
}

// Row is a parsed input row. Row numbers are 1-based spreadsheet rows.
type Row struct {
	Row    int
	Record Legado
}

type Service struct {
	store  *Store
	logger zerolog.Logger
}

func NewService(store *Store) *Service {
	return &Service{store: store, logger: xglog.WithComponent("legacy")}
}

func (s *Service) Get(ctx context.Context, id int64) (Legado, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, f Filter, p page.Request) (page.Result[Legado], error) {
	f.Texto = strings.TrimSpace(f.Texto)
	return s.store.List(ctx, f, p.Normalize())
}

// Import stores rows parsed from archivo. rejected carries rows that failed
// parsing and is merged into the report.
func (s *Service) Import(ctx context.Context, archivo string, rows []Row, rejected []Skipped) (Report, error) {
	rep := Report{Archivo: archivo, Leidas: len(rows) + len(rejected), Omitidas: append([]Skipped{}, rejected...)}
	records := make([]Legado, len(rows))
	for i, r := range rows {
		r.Record.ArchivoOrigen = archivo
		records[i] = r.Record
	}
	inserted, err := s.store.InsertBatch(ctx, records)
	if err != nil {
		return Report{}, err
	}
	for i, ok := range inserted {
		if ok {
			rep.Insertadas++
			continue
		}
		rep.Omitidas = append(rep.Omitidas, Skipped{Row: rows[i].Row, Ficha: rows[i].Record.Ficha, Reason: "already imported from this file"})
	}
	metrics.RecordImport(rep.Insertadas, len(rep.Omitidas))
	s.logger.Info().Str("archivo", archivo).Int("inserted", rep.Insertadas).Int("skipped", len(rep.Omitidas)).Msg("legacy import")
	return rep, nil
}
