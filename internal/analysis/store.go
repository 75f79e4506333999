// SPDX-License-Identifier: MIT

package analysis

import (
	"context"
	"database/sql"
	"errors"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/seedlab/seedlab/internal/apperr"
	"github.com/seedlab/seedlab/internal/lims"
	"github.com/seedlab/seedlab/internal/page"
	"github.com/seedlab/seedlab/internal/persistence/sqlite"
)

// Store persists analyses in SQLite.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now}
}

func baseSelect() sq.SelectBuilder {
	return sqlite.Builder.Select(
		"a.id", "a.lote_id", "l.ficha", "a.kind", "a.estado", "a.fecha_inicio", "a.fecha_fin",
		"a.comentarios", "a.creado_por", "a.payload", "a.resultado", "a.activo", "a.creado_en", "a.actualizado_en",
	).From("analisis a").Join("lotes l ON l.id = a.lote_id")
}

func scanAnalisis(row interface{ Scan(...any) error }) (Analisis, error) {
	var a Analisis
	var creadoPor sql.NullInt64
	var payload, resultado string
	var activo int
	var creado, actualizado string
	if err := row.Scan(&a.ID, &a.LoteID, &a.LoteFicha, &a.Kind, &a.Estado, &a.FechaInicio, &a.FechaFin,
		&a.Comentarios, &creadoPor, &payload, &resultado, &activo, &creado, &actualizado); err != nil {
		return a, err
	}
	a.CreadoPor = creadoPor.Int64
	a.Payload = []byte(payload)
	a.Resultado = []byte(resultado)
	a.Activo = activo == 1
	a.CreadoEn = sqlite.ParseTime(creado)
	a.ActualizadoEn = sqlite.ParseTime(actualizado)
	return a, nil
}

func jsonText(raw []byte) string {
	if len(raw) == 0 {
		return "{}"
	}
	return string(raw)
}

func nullUser(id int64) sql.NullInt64 {
	return sql.NullInt64{Int64: id, Valid: id != 0}
}

// Insert stores a new analysis and returns its id.
func (s *Store) Insert(ctx context.Context, a Analisis) (int64, error) {
	now := sqlite.FormatTime(s.now())
	res, err := s.db.ExecContext(ctx, `
	INSERT INTO analisis (lote_id, kind, estado, fecha_inicio, fecha_fin, comentarios, creado_por, payload, resultado, activo, creado_en, actualizado_en)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?)`,
		a.LoteID, a.Kind, a.Estado, a.FechaInicio, a.FechaFin, a.Comentarios, nullUser(a.CreadoPor),
		jsonText(a.Payload), jsonText(a.Resultado), now, now)
	if err != nil {
		if sqlite.IsForeignKeyViolation(err) {
			return 0, apperr.Invalid("lote %d not found", a.LoteID).WithField("loteId", "not found")
		}
		return 0, err
	}
	return res.LastInsertId()
}

// Get loads an analysis by id.
func (s *Store) Get(ctx context.Context, id int64) (Analisis, error) {
	q, args, err := baseSelect().Where(sq.Eq{"a.id": id}).ToSql()
	if err != nil {
		return Analisis{}, err
	}
	a, err := scanAnalisis(s.db.QueryRowContext(ctx, q, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return Analisis{}, apperr.NotFound("analisis", id)
	}
	return a, err
}

// Save writes the mutable fields of a, provided the stored estado is still
// prev. A concurrent transition yields a conflict.
func (s *Store) Save(ctx context.Context, a Analisis, prev lims.Estado) error {
	res, err := s.db.ExecContext(ctx, `
	UPDATE analisis SET estado = ?, fecha_inicio = ?, fecha_fin = ?, comentarios = ?, payload = ?, resultado = ?, actualizado_en = ?
	WHERE id = ? AND estado = ?`,
		a.Estado, a.FechaInicio, a.FechaFin, a.Comentarios, jsonText(a.Payload), jsonText(a.Resultado),
		sqlite.FormatTime(s.now()), a.ID, prev)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.Conflict("analisis %d changed concurrently", a.ID)
	}
	return nil
}

// SetActive flips the soft-delete flag.
func (s *Store) SetActive(ctx context.Context, id int64, active bool) error {
	res, err := s.db.ExecContext(ctx, `UPDATE analisis SET activo = ?, actualizado_en = ? WHERE id = ?`,
		sqlite.Bool(active), sqlite.FormatTime(s.now()), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.NotFound("analisis", id)
	}
	return nil
}

func applyFilter(b sq.SelectBuilder, f Filter) sq.SelectBuilder {
	if f.Kind != "" {
		b = b.Where(sq.Eq{"a.kind": f.Kind})
	}
	if f.Estado != "" {
		b = b.Where(sq.Eq{"a.estado": f.Estado})
	}
	if f.LoteID != 0 {
		b = b.Where(sq.Eq{"a.lote_id": f.LoteID})
	}
	if f.CreadoPor != 0 {
		b = b.Where(sq.Eq{"a.creado_por": f.CreadoPor})
	}
	if f.Activo != nil {
		b = b.Where(sq.Eq{"a.activo": sqlite.Bool(*f.Activo)})
	}
	if f.Texto != "" {
		b = b.Where(sqlite.Like("l.search_key", f.Texto))
	}
	const fecha = "COALESCE(a.fecha_inicio, substr(a.creado_en, 1, 10))"
	if !f.Desde.IsZero() {
		b = b.Where(fecha+" >= ?", f.Desde.String())
	}
	if !f.Hasta.IsZero() {
		b = b.Where(fecha+" <= ?", f.Hasta.String())
	}
	return b
}

// List returns a filtered page of analyses, newest first.
func (s *Store) List(ctx context.Context, f Filter, p page.Request) (page.Result[Analisis], error) {
	b := applyFilter(baseSelect(), f)
	total, err := sqlite.Count(ctx, s.db, b)
	if err != nil {
		return page.Result[Analisis]{}, err
	}
	items, err := s.query(ctx, b.OrderBy("a.creado_en DESC", "a.id DESC").Limit(p.Limit()).Offset(p.Offset()))
	if err != nil {
		return page.Result[Analisis]{}, err
	}
	return page.NewResult(items, p, total), nil
}

// All returns every analysis matching f up to limit rows, oldest first.
func (s *Store) All(ctx context.Context, f Filter, limit uint64) ([]Analisis, error) {
	return s.query(ctx, applyFilter(baseSelect(), f).OrderBy("a.kind", "a.id").Limit(limit))
}

func (s *Store) query(ctx context.Context, b sq.SelectBuilder) ([]Analisis, error) {
	rows, err := sqlite.Query(ctx, s.db, b)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []Analisis
	for rows.Next() {
		a, err := scanAnalisis(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Stats counts active analyses by estado and kind.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	st := Stats{PorEstado: map[lims.Estado]int{}, PorKind: map[lims.Kind]int{}}
	rows, err := s.db.QueryContext(ctx,
		`SELECT kind, estado, COUNT(*) FROM analisis WHERE activo = 1 GROUP BY kind, estado`)
	if err != nil {
		return st, err
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var k lims.Kind
		var e lims.Estado
		var n int
		if err := rows.Scan(&k, &e, &n); err != nil {
			return st, err
		}
		st.PorKind[k] += n
		st.PorEstado[e] += n
	}
	st.Pendientes = st.PorEstado[lims.EstadoPendienteAprobacion]
	return st, rows.Err()
}

// CountOpenByCreator counts a user's active analyses that are not approved.
func (s *Store) CountOpenByCreator(ctx context.Context, userID int64) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM analisis WHERE activo = 1 AND creado_por = ? AND estado <> ?`,
		userID, lims.EstadoAprobado).Scan(&n)
	return n, err
}
