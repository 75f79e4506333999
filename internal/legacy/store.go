// SPDX-License-Identifier: MIT

package legacy

import (
	"context"
	"database/sql"
	"errors"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/seedlab/seedlab/internal/apperr"
	"github.com/seedlab/seedlab/internal/normalize"
	"github.com/seedlab/seedlab/internal/page"
	"github.com/seedlab/seedlab/internal/persistence/sqlite"
)

type Store struct {
	db  *sql.DB
	now func() time.Time
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now}
}

const legadoCols = `id, ficha, especie, cultivar, fecha_recibo, germinacion, pureza, pms,
	observaciones, archivo_origen, importado_en`

func nullFloat(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Float64
	return &v
}

func scanLegado(row interface{ Scan(...any) error }) (Legado, error) {
	var l Legado
	var germ, pur, pms sql.NullFloat64
	var importado string
	err := row.Scan(&l.ID, &l.Ficha, &l.Especie, &l.Cultivar, &l.FechaRecibo, &germ, &pur, &pms,
		&l.Observaciones, &l.ArchivoOrigen, &importado)
	l.Germinacion, l.Pureza, l.PMS = nullFloat(germ), nullFloat(pur), nullFloat(pms)
	l.ImportadoEn = sqlite.ParseTime(importado)
	return l, err
}

// InsertBatch stores records in one transaction. Records whose ficha was
// already imported from the same file are skipped; the result reports, per
// record, whether it was inserted.
func (s *Store) InsertBatch(ctx context.Context, records []Legado) ([]bool, error) {
	inserted := make([]bool, len(records))
	now := sqlite.FormatTime(s.now())
	err := sqlite.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO legados (ficha, especie, cultivar, fecha_recibo, germinacion, pureza, pms,
			observaciones, archivo_origen, search_key, importado_en)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (ficha, archivo_origen) DO NOTHING`)
		if err != nil {
			return err
		}
		defer func() { _ = stmt.Close() }()
		for i, r := range records {
			res, err := stmt.ExecContext(ctx, r.Ficha, r.Especie, r.Cultivar, r.FechaRecibo,
				r.Germinacion, r.Pureza, r.PMS, r.Observaciones, r.ArchivoOrigen,
				normalize.Key(r.Ficha, r.Especie, r.Cultivar), now)
			if err != nil {
				return err
			}
			n, _ := res.RowsAffected()
			inserted[i] = n == 1
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return inserted, nil
}

func (s *Store) Get(ctx context.Context, id int64) (Legado, error) {
	l, err := scanLegado(s.db.QueryRowContext(ctx, `SELECT `+legadoCols+` FROM legados WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Legado{}, apperr.NotFound("legado", id)
	}
	return l, err
}

func (s *Store) List(ctx context.Context, f Filter, p page.Request) (page.Result[Legado], error) {
	b := sqlite.Builder.Select(legadoCols).From("legados")
	if f.Texto != "" {
		b = b.Where(sqlite.Like("search_key", f.Texto))
	}
	if f.Especie != "" {
		b = b.Where("especie = ? COLLATE NOCASE", f.Especie)
	}
	if f.ArchivoOrigen != "" {
		b = b.Where(sq.Eq{"archivo_origen": f.ArchivoOrigen})
	}
	if !f.Desde.IsZero() {
		b = b.Where(sq.GtOrEq{"fecha_recibo": f.Desde.String()})
	}
	if !f.Hasta.IsZero() {
		b = b.Where(sq.LtOrEq{"fecha_recibo": f.Hasta.String()})
	}
	total, err := sqlite.Count(ctx, s.db, b)
	if err != nil {
		return page.Result[Legado]{}, err
	}
	rows, err := sqlite.Query(ctx, s.db, b.OrderBy("fecha_recibo DESC", "id DESC").Limit(p.Limit()).Offset(p.Offset()))
	if err != nil {
		return page.Result[Legado]{}, err
	}
	defer func() { _ = rows.Close() }()
	var items []Legado
	for rows.Next() {
		l, err := scanLegado(rows)
		if err != nil {
			return page.Result[Legado]{}, err
		}
		items = append(items, l)
	}
	if err := rows.Err(); err != nil {
		return page.Result[Legado]{}, err
	}
	return page.NewResult(items, p, total), nil
}
