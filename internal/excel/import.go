// SPDX-License-Identifier: MIT

package excel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
	"go.opentelemetry.io/otel/codes"

	"github.com/seedlab/seedlab/internal/apperr"
	"github.com/seedlab/seedlab/internal/civil"
	"github.com/seedlab/seedlab/internal/legacy"
	"github.com/seedlab/seedlab/internal/normalize"
	"github.com/seedlab/seedlab/internal/telemetry"
)

var tracer = telemetry.Tracer("seedlab/excel")

// MaxImportRows bounds the data rows accepted from one workbook.
const MaxImportRows = 20000

type column int

const (
	colFicha column = iota
	colEspecie
	colCultivar
	colFecha
	colGerminacion
	colPureza
	colPMS
	colObservaciones
)

// headerAliases maps folded header text to a column.
var headerAliases = map[string]column{
	"ficha":             colFicha,
	"n ficha":           colFicha,
	"nro ficha":         colFicha,
	"especie":           colEspecie,
	"cultivar":          colCultivar,
	"variedad":          colCultivar,
	"fecha":             colFecha,
	"fecha recibo":      colFecha,
	"fecha de recibo":   colFecha,
	"fecha ingreso":     colFecha,
	"germinacion":       colGerminacion,
	"germinacion %":     colGerminacion,
	"pg":                colGerminacion,
	"pureza":            colPureza,
	"pureza %":          colPureza,
	"pms":               colPMS,
	"peso mil semillas": colPMS,
	"observaciones":     colObservaciones,
	"obs":               colObservaciones,
}

var dateLayouts = []string{"2006-01-02", "02/01/2006", "2/1/2006", "02-01-2006", "2/1/06"}

// ImportLegacy reads the first sheet of the workbook in r and stores its rows
// as legacy records tagged with the base name of archivo.
func (s *Service) ImportLegacy(ctx context.Context, archivo string, r io.Reader) (rep legacy.Report, err error) {
	ctx, span := tracer.Start(ctx, "excel.import_legacy")
	defer func() {
		span.SetAttributes(telemetry.ImportAttributes(rep.Archivo, rep.Insertadas, len(rep.Omitidas))...)
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	f, err := excelize.OpenReader(r)
	if err != nil {
		return legacy.Report{}, apperr.Invalid("not a valid xlsx workbook").WithField("file", err.Error())
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return legacy.Report{}, apperr.Invalid("workbook has no sheets").WithField("file", "empty workbook")
	}
	grid, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return legacy.Report{}, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	rows, rejected, err := ParseLegacy(grid)
	if err != nil {
		return legacy.Report{}, err
	}
	name := filepath.Base(strings.TrimSpace(archivo))
	if name == "." || name == "/" || name == "" {
		name = "import.xlsx"
	}
	return s.legacy.Import(ctx, name, rows, rejected)
}

// ParseLegacy maps a sheet grid to legacy rows. The first non-empty row is
// the header; data rows that fail validation are returned as rejected.
func ParseLegacy(grid [][]string) ([]legacy.Row, []legacy.Skipped, error) {
	headerAt := -1
	for i, r := range grid {
		if !blank(r) {
			headerAt = i
			break
		}
	}
	if headerAt < 0 {
		return nil, nil, apperr.Invalid("sheet is empty").WithField("file", "no header row")
	}
	cols := map[column]int{}
	for i, h := range grid[headerAt] {
		if c, ok := headerAliases[normalize.Fold(strings.Trim(h, " .:#"))]; ok {
			if _, dup := cols[c]; !dup {
				cols[c] = i
			}
		}
	}
	if _, ok := cols[colFicha]; !ok {
		return nil, nil, apperr.Invalid("header row has no ficha column").WithField("file", "missing ficha column")
	}
	if len(grid)-headerAt-1 > MaxImportRows {
		return nil, nil, apperr.Invalid("too many rows, at most %d are accepted", MaxImportRows).WithField("file", "too many rows")
	}

	var rows []legacy.Row
	var rejected []legacy.Skipped
	for i := headerAt + 1; i < len(grid); i++ {
		r := grid[i]
		if blank(r) {
			continue
		}
		n := i + 1
		rec, err := parseRow(r, cols)
		if err != nil {
			rejected = append(rejected, legacy.Skipped{Row: n, Ficha: rec.Ficha, Reason: err.Error()})
			continue
		}
		rows = append(rows, legacy.Row{Row: n, Record: rec})
	}
	return rows, rejected, nil
}

func blank(r []string) bool {
	for _, c := range r {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func cell(r []string, cols map[column]int, c column) string {
	i, ok := cols[c]
	if !ok || i >= len(r) {
		return ""
	}
	return strings.TrimSpace(r[i])
}

func parseRow(r []string, cols map[column]int) (legacy.Legado, error) {
	rec := legacy.Legado{
		Ficha:         cell(r, cols, colFicha),
		Especie:       cell(r, cols, colEspecie),
		Cultivar:      cell(r, cols, colCultivar),
		Observaciones: cell(r, cols, colObservaciones),
	}
	if rec.Ficha == "" {
		return rec, errors.New("ficha is empty")
	}
	if len(rec.Ficha) > 50 {
		return rec, errors.New("ficha is longer than 50 characters")
	}
	var err error
	if rec.FechaRecibo, err = parseDate(cell(r, cols, colFecha)); err != nil {
		return rec, err
	}
	if rec.Germinacion, err = parsePercent("germinacion", cell(r, cols, colGerminacion)); err != nil {
		return rec, err
	}
	if rec.Pureza, err = parsePercent("pureza", cell(r, cols, colPureza)); err != nil {
		return rec, err
	}
	if rec.PMS, err = parseNumber("pms", cell(r, cols, colPMS)); err != nil {
		return rec, err
	}
	if rec.PMS != nil && *rec.PMS <= 0 {
		return rec, errors.New("pms must be positive")
	}
	return rec, nil
}

func parseDate(v string) (civil.Date, error) {
	if v == "" {
		return civil.Date{}, nil
	}
	if serial, err := strconv.ParseFloat(v, 64); err == nil {
		t, err := excelize.ExcelDateToTime(serial, false)
		if err != nil {
			return civil.Date{}, fmt.Errorf("fecha %q is not a date", v)
		}
		return civil.Of(t), nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return civil.Of(t), nil
		}
	}
	return civil.Date{}, fmt.Errorf("fecha %q is not a date", v)
}

func parseNumber(field, v string) (*float64, error) {
	v = strings.TrimSuffix(strings.TrimSpace(v), "%")
	if v == "" || v == "-" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(v), ",", "."), 64)
	if err != nil {
		return nil, fmt.Errorf("%s %q is not a number", field, v)
	}
	return &f, nil
}

func parsePercent(field, v string) (*float64, error) {
	f, err := parseNumber(field, v)
	if err != nil || f == nil {
		return f, err
	}
	if *f < 0 || *f > 100 {
		return nil, fmt.Errorf("%s must be between 0 and 100", field)
	}
	return f, nil
}
