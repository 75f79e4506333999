// SPDX-License-Identifier: MIT

// Package excel exports lots and analyses to xlsx workbooks and imports
// historical results from them.
package excel

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"

	"github.com/seedlab/seedlab/internal/analysis"
	"github.com/seedlab/seedlab/internal/civil"
	"github.com/seedlab/seedlab/internal/legacy"
	"github.com/seedlab/seedlab/internal/lims"
	xglog "github.com/seedlab/seedlab/internal/log"
	"github.com/seedlab/seedlab/internal/lots"
	"github.com/seedlab/seedlab/internal/page"
)

// MaxExportRows bounds the number of analyses written to one workbook.
const MaxExportRows = 50000

const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type LotSource interface {
	List(ctx context.Context, f lots.Filter, p page.Request) (page.Result[lots.Lote], error)
}

type AnalysisSource interface {
	Export(ctx context.Context, f analysis.Filter, limit uint64) ([]analysis.Analisis, error)
}

type LegacyImporter interface {
	Import(ctx context.Context, archivo string, rows []legacy.Row, rejected []legacy.Skipped) (legacy.Report, error)
}

// Service builds and reads workbooks.
type Service struct {
	lots     LotSource
	analyses AnalysisSource
	legacy   LegacyImporter
	logger   zerolog.Logger
}

func NewService(l LotSource, a AnalysisSource, imp LegacyImporter) *Service {
	return &Service{lots: l, analyses: a, legacy: imp, logger: xglog.WithComponent("excel")}
}

type sheetWriter struct {
	f      *excelize.File
	header int
}

func newWorkbook() (*sheetWriter, error) {
	f := excelize.NewFile()
	style, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"DDEBF7"}, Pattern: 1},
	})
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return &sheetWriter{f: f, header: style}, nil
}

// sheet creates name (reusing the default sheet for the first one) and writes the header row.
func (w *sheetWriter) sheet(name string, first bool, header []string) error {
	if first {
		if err := w.f.SetSheetName("Sheet1", name); err != nil {
			return err
		}
	} else if _, err := w.f.NewSheet(name); err != nil {
		return err
	}
	row := make([]any, len(header))
	for i, h := range header {
		row[i] = h
	}
	if err := w.f.SetSheetRow(name, "A1", &row); err != nil {
		return err
	}
	if err := w.f.SetRowStyle(name, 1, 1, w.header); err != nil {
		return err
	}
	last, err := excelize.ColumnNumberToName(len(header))
	if err != nil {
		return err
	}
	if err := w.f.SetColWidth(name, "A", last, 16); err != nil {
		return err
	}
	return w.f.SetPanes(name, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})
}

func (w *sheetWriter) row(name string, n int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, n)
	if err != nil {
		return err
	}
	return w.f.SetSheetRow(name, cell, &values)
}

func dateCell(d civil.Date) any {
	if d.IsZero() {
		return ""
	}
	return d.String()
}

var lotHeader = []string{
	"ID", "Ficha", "Lote", "Especie", "Cultivar", "Cliente", "Empresa", "Origen", "Estado", "Depósito",
	"Fecha recibo", "Fecha entrega", "Kilos limpios", "Análisis", "Activo", "Observaciones",
}

// WriteLots writes items to a single-sheet workbook.
func WriteLots(out io.Writer, items []lots.Lote) error {
	w, err := newWorkbook()
	if err != nil {
		return err
	}
	defer func() { _ = w.f.Close() }()
	const name = "Lotes"
	if err := w.sheet(name, true, lotHeader); err != nil {
		return err
	}
	for i, l := range items {
		kinds := ""
		for j, k := range l.TiposAnalisis {
			if j > 0 {
				kinds += ", "
			}
			kinds += string(k)
		}
		if err := w.row(name, i+2, []any{
			l.ID, l.Ficha, l.NomLote, l.EspecieNombre, l.CultivarNombre, l.ClienteNombre, l.Empresa,
			l.Origen, l.Estado, l.Deposito, dateCell(l.FechaRecibo), dateCell(l.FechaEntrega),
			l.KilosLimpios, kinds, yesNo(l.Activo), l.Observaciones,
		}); err != nil {
			return err
		}
	}
	return w.f.Write(out)
}

func yesNo(b bool) string {
	if b {
		return "Sí"
	}
	return "No"
}

// resultColumn maps a result field to its column label.
type resultColumn struct {
	key   string
	label string
}

var resultColumns = map[lims.Kind][]resultColumn{
	lims.KindPureza: {
		{"semillaPura", "Semilla pura %"}, {"materiaInerte", "Materia inerte %"},
		{"otrosCultivos", "Otros cultivos %"}, {"malezas", "Malezas %"},
		{"malezasToleradas", "Malezas toleradas %"}, {"malezasToleranciaCero", "Malezas tolerancia cero %"},
		{"pesoTotal", "Peso total (g)"}, {"perdidaPct", "Pérdida %"},
	},
	lims.KindGerminacion: {
		{"normales", "Normales %"}, {"anormales", "Anormales %"}, {"duras", "Duras %"},
		{"frescas", "Frescas %"}, {"muertas", "Muertas %"}, {"rango", "Rango"},
		{"dentroTolerancia", "Dentro de tolerancia"},
	},
	lims.KindPMS: {
		{"pms", "PMS (g)"}, {"promedio", "Promedio 100 semillas"}, {"desviacion", "Desviación"},
		{"cv", "CV %"}, {"cvValido", "CV válido"},
	},
	lims.KindTetrazolio: {
		{"viabilidad", "Viabilidad %"}, {"viables", "Viables"}, {"noViables", "No viables"},
		{"duras", "Duras"}, {"durasPct", "Duras %"},
	},
	lims.KindDOSN: {
		{"totalMalezas", "Malezas"}, {"totalOtrosCultivos", "Otros cultivos"},
		{"malezasPorKg", "Malezas/kg"}, {"otrosCultivosPorKg", "Otros cultivos/kg"}, {"totalPorKg", "Total/kg"},
	},
}

var analysisHeader = []string{"ID", "Ficha", "Estado", "Fecha inicio", "Fecha fin", "Activo", "Comentarios"}

// WriteAnalyses writes items to a workbook with one sheet per analysis kind.
func WriteAnalyses(out io.Writer, items []analysis.Analisis) error {
	w, err := newWorkbook()
	if err != nil {
		return err
	}
	defer func() { _ = w.f.Close() }()

	next := map[lims.Kind]int{}
	for i, kind := range lims.Kinds {
		cols := resultColumns[kind]
		header := append([]string{}, analysisHeader...)
		for _, c := range cols {
			header = append(header, c.label)
		}
		if err := w.sheet(string(kind), i == 0, header); err != nil {
			return err
		}
		next[kind] = 2
	}
	for _, a := range items {
		cols, ok := resultColumns[a.Kind]
		if !ok {
			continue
		}
		values := []any{a.ID, a.LoteFicha, string(a.Estado), dateCell(a.FechaInicio), dateCell(a.FechaFin),
			yesNo(a.Activo), a.Comentarios}
		var result map[string]any
		if a.Calculated() {
			if err := json.Unmarshal(a.Resultado, &result); err != nil {
				return fmt.Errorf("analisis %d: decode result: %w", a.ID, err)
			}
		}
		for _, c := range cols {
			switch v := result[c.key].(type) {
			case nil:
				values = append(values, "")
			case bool:
				values = append(values, yesNo(v))
			default:
				values = append(values, v)
			}
		}
		if err := w.row(string(a.Kind), next[a.Kind], values); err != nil {
			return err
		}
		next[a.Kind]++
	}
	return w.f.Write(out)
}

// ExportLots writes every lot matching f.
func (s *Service) ExportLots(ctx context.Context, f lots.Filter, out io.Writer) (int, error) {
	var items []lots.Lote
	for p := (page.Request{Size: page.MaxSize}); ; p.Page++ {
		res, err := s.lots.List(ctx, f, p)
		if err != nil {
			return 0, err
		}
		items = append(items, res.Items...)
		if len(res.Items) < p.Size || len(items) >= res.Total {
			break
		}
	}
	if err := WriteLots(out, items); err != nil {
		return 0, err
	}
	s.logger.Info().Int("rows", len(items)).Msg("exported lots")
	return len(items), nil
}

// ExportAnalyses writes analyses matching f, at most MaxExportRows of them.
func (s *Service) ExportAnalyses(ctx context.Context, f analysis.Filter, out io.Writer) (int, error) {
	items, err := s.analyses.Export(ctx, f, MaxExportRows)
	if err != nil {
		return 0, err
	}
	if err := WriteAnalyses(out, items); err != nil {
		return 0, err
	}
	s.logger.Info().Int("rows", len(items)).Msg("exported analyses")
	return len(items), nil
}
