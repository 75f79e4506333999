// SPDX-License-Identifier: MIT

package lots

import (
	"context"
	"database/sql"
	"errors"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/seedlab/seedlab/internal/apperr"
	"github.com/seedlab/seedlab/internal/lims"
	"github.com/seedlab/seedlab/internal/normalize"
	"github.com/seedlab/seedlab/internal/page"
	"github.com/seedlab/seedlab/internal/persistence/sqlite"
)

// Store provides SQLite persistence for lots.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// NewStore wraps an open, migrated database.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now}
}

const loteCols = `l.id, l.ficha, l.nom_lote, l.cultivar_id, c.nombre, e.id, e.nombre_comun,
	l.cliente_nombre, l.empresa,
	l.origen_id, COALESCE(co.valor, ''), l.estado_id, COALESCE(ce.valor, ''), l.deposito_id, COALESCE(cd.valor, ''),
	l.fecha_recibo, l.fecha_entrega, l.kilos_limpios, l.observaciones, l.activo, l.creado_en, l.actualizado_en`

func baseSelect() sq.SelectBuilder {
	return sqlite.Builder.Select(loteCols).
		From("lotes l").
		Join("cultivares c ON c.id = l.cultivar_id").
		Join("especies e ON e.id = c.especie_id").
		LeftJoin("catalogos co ON co.id = l.origen_id").
		LeftJoin("catalogos ce ON ce.id = l.estado_id").
		LeftJoin("catalogos cd ON cd.id = l.deposito_id")
}

func nullID(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
}

func scanLote(row interface{ Scan(...any) error }) (Lote, error) {
	var l Lote
	var origen, estado, deposito sql.NullInt64
	var activo int
	var creado, actualizado string
	err := row.Scan(&l.ID, &l.Ficha, &l.NomLote, &l.CultivarID, &l.CultivarNombre, &l.EspecieID, &l.EspecieNombre,
		&l.ClienteNombre, &l.Empresa,
		&origen, &l.Origen, &estado, &l.Estado, &deposito, &l.Deposito,
		&l.FechaRecibo, &l.FechaEntrega, &l.KilosLimpios, &l.Observaciones, &activo, &creado, &actualizado)
	if err != nil {
		return l, err
	}
	l.OrigenID, l.EstadoID, l.DepositoID = nullID(origen), nullID(estado), nullID(deposito)
	l.Activo = activo == 1
	l.CreadoEn = sqlite.ParseTime(creado)
	l.ActualizadoEn = sqlite.ParseTime(actualizado)
	return l, nil
}

func searchKey(in Input) string {
	return normalize.Key(in.Ficha, in.NomLote, in.ClienteNombre, in.Empresa)
}

func writeTipos(ctx context.Context, tx *sql.Tx, id int64, kinds []lims.Kind) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM lote_tipos WHERE lote_id = ?`, id); err != nil {
		return err
	}
	for _, k := range kinds {
		if _, err := tx.ExecContext(ctx, `INSERT INTO lote_tipos (lote_id, kind) VALUES (?, ?)`, id, k); err != nil {
			return err
		}
	}
	return nil
}

func mapWriteErr(err error, ficha string) error {
	if sqlite.IsUniqueViolation(err) {
		return apperr.Conflict("ficha %s already exists", ficha).WithField("ficha", "duplicate")
	}
	return err
}

// Create inserts a lot with its analysis kinds.
func (s *Store) Create(ctx context.Context, in Input) (Lote, error) {
	var id int64
	err := sqlite.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		now := sqlite.FormatTime(s.now())
		res, err := tx.ExecContext(ctx, `
		INSERT INTO lotes (ficha, nom_lote, cultivar_id, cliente_nombre, empresa, origen_id, estado_id, deposito_id,
			fecha_recibo, fecha_entrega, kilos_limpios, observaciones, search_key, activo, creado_en, actualizado_en)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?)`,
			in.Ficha, in.NomLote, in.CultivarID, in.ClienteNombre, in.Empresa, in.OrigenID, in.EstadoID, in.DepositoID,
			in.FechaRecibo, in.FechaEntrega, in.KilosLimpios, in.Observaciones, searchKey(in), now, now)
		if err != nil {
			return mapWriteErr(err, in.Ficha)
		}
		id, _ = res.LastInsertId()
		return writeTipos(ctx, tx, id, in.TiposAnalisis)
	})
	if err != nil {
		return Lote{}, err
	}
	return s.Get(ctx, id)
}

// Update replaces the writable fields and kinds of a lot.
func (s *Store) Update(ctx context.Context, id int64, in Input) (Lote, error) {
	err := sqlite.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
		UPDATE lotes SET ficha = ?, nom_lote = ?, cultivar_id = ?, cliente_nombre = ?, empresa = ?,
			origen_id = ?, estado_id = ?, deposito_id = ?, fecha_recibo = ?, fecha_entrega = ?,
			kilos_limpios = ?, observaciones = ?, search_key = ?, actualizado_en = ?
		WHERE id = ?`,
			in.Ficha, in.NomLote, in.CultivarID, in.ClienteNombre, in.Empresa, in.OrigenID, in.EstadoID, in.DepositoID,
			in.FechaRecibo, in.FechaEntrega, in.KilosLimpios, in.Observaciones, searchKey(in),
			sqlite.FormatTime(s.now()), id)
		if err != nil {
			return mapWriteErr(err, in.Ficha)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return apperr.NotFound("lote", id)
		}
		return writeTipos(ctx, tx, id, in.TiposAnalisis)
	})
	if err != nil {
		return Lote{}, err
	}
	return s.Get(ctx, id)
}

// Get loads a lot with its kinds.
func (s *Store) Get(ctx context.Context, id int64) (Lote, error) {
	q, args, err := baseSelect().Where(sq.Eq{"l.id": id}).ToSql()
	if err != nil {
		return Lote{}, err
	}
	l, err := scanLote(s.db.QueryRowContext(ctx, q, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return Lote{}, apperr.NotFound("lote", id)
	}
	if err != nil {
		return Lote{}, err
	}
	kinds, err := s.kinds(ctx, []int64{id})
	if err != nil {
		return Lote{}, err
	}
	l.TiposAnalisis = kinds[id]
	if l.TiposAnalisis == nil {
		l.TiposAnalisis = []lims.Kind{}
	}
	return l, nil
}

func (s *Store) kinds(ctx context.Context, ids []int64) (map[int64][]lims.Kind, error) {
	out := make(map[int64][]lims.Kind, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := sqlite.Query(ctx, s.db, sqlite.Builder.Select("lote_id", "kind").From("lote_tipos").
		Where(sq.Eq{"lote_id": ids}).OrderBy("lote_id", "kind"))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var id int64
		var k lims.Kind
		if err := rows.Scan(&id, &k); err != nil {
			return nil, err
		}
		out[id] = append(out[id], k)
	}
	return out, rows.Err()
}

// List returns a filtered page of lots, newest reception first.
func (s *Store) List(ctx context.Context, f Filter, p page.Request) (page.Result[Lote], error) {
	b := baseSelect()
	if f.Activo != nil {
		b = b.Where(sq.Eq{"l.activo": sqlite.Bool(*f.Activo)})
	}
	if f.Texto != "" {
		b = b.Where(sqlite.Like("l.search_key", f.Texto))
	}
	if f.CultivarID != 0 {
		b = b.Where(sq.Eq{"l.cultivar_id": f.CultivarID})
	}
	if f.EspecieID != 0 {
		b = b.Where(sq.Eq{"e.id": f.EspecieID})
	}
	if f.Kind != "" {
		b = b.Where("EXISTS (SELECT 1 FROM lote_tipos t WHERE t.lote_id = l.id AND t.kind = ?)", f.Kind)
	}
	if !f.Desde.IsZero() {
		b = b.Where(sq.GtOrEq{"l.fecha_recibo": f.Desde.String()})
	}
	if !f.Hasta.IsZero() {
		b = b.Where(sq.LtOrEq{"l.fecha_recibo": f.Hasta.String()})
	}

	total, err := sqlite.Count(ctx, s.db, b)
	if err != nil {
		return page.Result[Lote]{}, err
	}
	rows, err := sqlite.Query(ctx, s.db, b.OrderBy("l.fecha_recibo DESC", "l.id DESC").Limit(p.Limit()).Offset(p.Offset()))
	if err != nil {
		return page.Result[Lote]{}, err
	}
	defer func() { _ = rows.Close() }()

	var items []Lote
	var ids []int64
	for rows.Next() {
		l, err := scanLote(rows)
		if err != nil {
			return page.Result[Lote]{}, err
		}
		items = append(items, l)
		ids = append(ids, l.ID)
	}
	if err := rows.Err(); err != nil {
		return page.Result[Lote]{}, err
	}
	kinds, err := s.kinds(ctx, ids)
	if err != nil {
		return page.Result[Lote]{}, err
	}
	for i := range items {
		items[i].TiposAnalisis = kinds[items[i].ID]
		if items[i].TiposAnalisis == nil {
			items[i].TiposAnalisis = []lims.Kind{}
		}
	}
	return page.NewResult(items, p, total), nil
}

// SetActive flips the soft-delete flag.
func (s *Store) SetActive(ctx context.Context, id int64, active bool) error {
	res, err := s.db.ExecContext(ctx, `UPDATE lotes SET activo = ?, actualizado_en = ? WHERE id = ?`,
		sqlite.Bool(active), sqlite.FormatTime(s.now()), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.NotFound("lote", id)
	}
	return nil
}

// CountActiveAnalyses counts active analyses of kind on a lot.
func (s *Store) CountActiveAnalyses(ctx context.Context, loteID int64, kind lims.Kind) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM analisis WHERE lote_id = ? AND kind = ? AND activo = 1`, loteID, kind).Scan(&n)
	return n, err
}

// CountActive counts active lots.
func (s *Store) CountActive(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM lotes WHERE activo = 1`).Scan(&n)
	return n, err
}
