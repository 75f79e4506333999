// SPDX-License-Identifier: MIT

package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/seedlab/seedlab/internal/apperr"
	"github.com/seedlab/seedlab/internal/normalize"
	"github.com/seedlab/seedlab/internal/page"
	"github.com/seedlab/seedlab/internal/persistence/sqlite"
)

// Store provides SQLite persistence for the catalog tables.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// NewStore wraps an open, migrated database.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now}
}

func mapWriteErr(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case sqlite.IsUniqueViolation(err):
		return apperr.Conflict("%s already exists", what)
	case sqlite.IsForeignKeyViolation(err):
		return apperr.Invalid("%s references a missing record", what)
	default:
		return err
	}
}

// --- especies ---

const especieCols = "id, nombre_comun, nombre_cientifico, activo, creado_en, actualizado_en"

func scanEspecie(row interface{ Scan(...any) error }) (Especie, error) {
	var e Especie
	var activo int
	var creado, actualizado string
	if err := row.Scan(&e.ID, &e.NombreComun, &e.NombreCientifico, &activo, &creado, &actualizado); err != nil {
		return e, err
	}
	e.Activo = activo == 1
	e.CreadoEn = sqlite.ParseTime(creado)
	e.ActualizadoEn = sqlite.ParseTime(actualizado)
	return e, nil
}

// CreateEspecie inserts a species.
func (s *Store) CreateEspecie(ctx context.Context, in EspecieInput) (Especie, error) {
	now := sqlite.FormatTime(s.now())
	res, err := s.db.ExecContext(ctx, `
	INSERT INTO especies (nombre_comun, nombre_key, nombre_cientifico, search_key, activo, creado_en, actualizado_en)
	VALUES (?, ?, ?, ?, 1, ?, ?)`,
		in.NombreComun, normalize.Fold(in.NombreComun), in.NombreCientifico,
		normalize.Key(in.NombreComun, in.NombreCientifico), now, now)
	if err != nil {
		return Especie{}, mapWriteErr(err, "especie "+in.NombreComun)
	}
	id, _ := res.LastInsertId()
	return s.GetEspecie(ctx, id)
}

// GetEspecie loads a species by id.
func (s *Store) GetEspecie(ctx context.Context, id int64) (Especie, error) {
	e, err := scanEspecie(s.db.QueryRowContext(ctx, `SELECT `+especieCols+` FROM especies WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Especie{}, apperr.NotFound("especie", id)
	}
	return e, err
}

// UpdateEspecie replaces the writable fields of a species.
func (s *Store) UpdateEspecie(ctx context.Context, id int64, in EspecieInput) (Especie, error) {
	res, err := s.db.ExecContext(ctx, `
	UPDATE especies SET nombre_comun = ?, nombre_key = ?, nombre_cientifico = ?, search_key = ?, actualizado_en = ?
	WHERE id = ?`,
		in.NombreComun, normalize.Fold(in.NombreComun), in.NombreCientifico,
		normalize.Key(in.NombreComun, in.NombreCientifico), sqlite.FormatTime(s.now()), id)
	if err != nil {
		return Especie{}, mapWriteErr(err, "especie "+in.NombreComun)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return Especie{}, apperr.NotFound("especie", id)
	}
	return s.GetEspecie(ctx, id)
}

// ListEspecies returns a filtered page of species ordered by name.
func (s *Store) ListEspecies(ctx context.Context, f Filter, p page.Request) (page.Result[Especie], error) {
	b := sqlite.Builder.Select(especieCols).From("especies")
	if f.Activo != nil {
		b = b.Where(sq.Eq{"activo": sqlite.Bool(*f.Activo)})
	}
	if f.Texto != "" {
		b = b.Where(sqlite.Like("search_key", f.Texto))
	}
	total, err := sqlite.Count(ctx, s.db, b)
	if err != nil {
		return page.Result[Especie]{}, err
	}
	rows, err := sqlite.Query(ctx, s.db, b.OrderBy("nombre_key", "id").Limit(p.Limit()).Offset(p.Offset()))
	if err != nil {
		return page.Result[Especie]{}, err
	}
	defer func() { _ = rows.Close() }()

	var items []Especie
	for rows.Next() {
		e, err := scanEspecie(rows)
		if err != nil {
			return page.Result[Especie]{}, err
		}
		items = append(items, e)
	}
	return page.NewResult(items, p, total), rows.Err()
}

// --- cultivares ---

const cultivarCols = "c.id, c.especie_id, e.nombre_comun, c.nombre, c.activo, c.creado_en, c.actualizado_en"

func scanCultivar(row interface{ Scan(...any) error }) (Cultivar, error) {
	var c Cultivar
	var activo int
	var creado, actualizado string
	if err := row.Scan(&c.ID, &c.EspecieID, &c.EspecieNombre, &c.Nombre, &activo, &creado, &actualizado); err != nil {
		return c, err
	}
	c.Activo = activo == 1
	c.CreadoEn = sqlite.ParseTime(creado)
	c.ActualizadoEn = sqlite.ParseTime(actualizado)
	return c, nil
}

// CreateCultivar inserts a cultivar.
func (s *Store) CreateCultivar(ctx context.Context, in CultivarInput, especieNombre string) (Cultivar, error) {
	now := sqlite.FormatTime(s.now())
	res, err := s.db.ExecContext(ctx, `
	INSERT INTO cultivares (especie_id, nombre, nombre_key, search_key, activo, creado_en, actualizado_en)
	VALUES (?, ?, ?, ?, 1, ?, ?)`,
		in.EspecieID, in.Nombre, normalize.Fold(in.Nombre), normalize.Key(in.Nombre, especieNombre), now, now)
	if err != nil {
		return Cultivar{}, mapWriteErr(err, "cultivar "+in.Nombre)
	}
	id, _ := res.LastInsertId()
	return s.GetCultivar(ctx, id)
}

// GetCultivar loads a cultivar by id.
func (s *Store) GetCultivar(ctx context.Context, id int64) (Cultivar, error) {
	c, err := scanCultivar(s.db.QueryRowContext(ctx, `
	SELECT `+cultivarCols+` FROM cultivares c JOIN especies e ON e.id = c.especie_id WHERE c.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Cultivar{}, apperr.NotFound("cultivar", id)
	}
	return c, err
}

// UpdateCultivar replaces the writable fields of a cultivar.
func (s *Store) UpdateCultivar(ctx context.Context, id int64, in CultivarInput, especieNombre string) (Cultivar, error) {
	res, err := s.db.ExecContext(ctx, `
	UPDATE cultivares SET especie_id = ?, nombre = ?, nombre_key = ?, search_key = ?, actualizado_en = ?
	WHERE id = ?`,
		in.EspecieID, in.Nombre, normalize.Fold(in.Nombre), normalize.Key(in.Nombre, especieNombre),
		sqlite.FormatTime(s.now()), id)
	if err != nil {
		return Cultivar{}, mapWriteErr(err, "cultivar "+in.Nombre)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return Cultivar{}, apperr.NotFound("cultivar", id)
	}
	return s.GetCultivar(ctx, id)
}

// ListCultivares returns a filtered page of cultivars.
func (s *Store) ListCultivares(ctx context.Context, f Filter, p page.Request) (page.Result[Cultivar], error) {
	b := sqlite.Builder.Select(cultivarCols).From("cultivares c").Join("especies e ON e.id = c.especie_id")
	if f.Activo != nil {
		b = b.Where(sq.Eq{"c.activo": sqlite.Bool(*f.Activo)})
	}
	if f.EspecieID != 0 {
		b = b.Where(sq.Eq{"c.especie_id": f.EspecieID})
	}
	if f.Texto != "" {
		b = b.Where(sqlite.Like("c.search_key", f.Texto))
	}
	total, err := sqlite.Count(ctx, s.db, b)
	if err != nil {
		return page.Result[Cultivar]{}, err
	}
	rows, err := sqlite.Query(ctx, s.db, b.OrderBy("e.nombre_key", "c.nombre_key", "c.id").Limit(p.Limit()).Offset(p.Offset()))
	if err != nil {
		return page.Result[Cultivar]{}, err
	}
	defer func() { _ = rows.Close() }()

	var items []Cultivar
	for rows.Next() {
		c, err := scanCultivar(rows)
		if err != nil {
			return page.Result[Cultivar]{}, err
		}
		items = append(items, c)
	}
	return page.NewResult(items, p, total), rows.Err()
}

// --- catalogos ---

const catalogoCols = "id, tipo, valor, activo, creado_en, actualizado_en"

func scanCatalogo(row interface{ Scan(...any) error }) (Catalogo, error) {
	var c Catalogo
	var activo int
	var creado, actualizado string
	if err := row.Scan(&c.ID, &c.Tipo, &c.Valor, &activo, &creado, &actualizado); err != nil {
		return c, err
	}
	c.Activo = activo == 1
	c.CreadoEn = sqlite.ParseTime(creado)
	c.ActualizadoEn = sqlite.ParseTime(actualizado)
	return c, nil
}

// CreateCatalogo inserts a catalog value.
func (s *Store) CreateCatalogo(ctx context.Context, in CatalogoInput) (Catalogo, error) {
	now := sqlite.FormatTime(s.now())
	res, err := s.db.ExecContext(ctx, `
	INSERT INTO catalogos (tipo, valor, valor_key, activo, creado_en, actualizado_en)
	VALUES (?, ?, ?, 1, ?, ?)`, in.Tipo, in.Valor, normalize.Fold(in.Valor), now, now)
	if err != nil {
		return Catalogo{}, mapWriteErr(err, fmt.Sprintf("catalogo %s/%s", in.Tipo, in.Valor))
	}
	id, _ := res.LastInsertId()
	return s.GetCatalogo(ctx, id)
}

// GetCatalogo loads a catalog value by id.
func (s *Store) GetCatalogo(ctx context.Context, id int64) (Catalogo, error) {
	c, err := scanCatalogo(s.db.QueryRowContext(ctx, `SELECT `+catalogoCols+` FROM catalogos WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Catalogo{}, apperr.NotFound("catalogo", id)
	}
	return c, err
}

// UpdateCatalogo replaces the writable fields of a catalog value.
func (s *Store) UpdateCatalogo(ctx context.Context, id int64, in CatalogoInput) (Catalogo, error) {
	res, err := s.db.ExecContext(ctx, `
	UPDATE catalogos SET tipo = ?, valor = ?, valor_key = ?, actualizado_en = ? WHERE id = ?`,
		in.Tipo, in.Valor, normalize.Fold(in.Valor), sqlite.FormatTime(s.now()), id)
	if err != nil {
		return Catalogo{}, mapWriteErr(err, fmt.Sprintf("catalogo %s/%s", in.Tipo, in.Valor))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return Catalogo{}, apperr.NotFound("catalogo", id)
	}
	return s.GetCatalogo(ctx, id)
}

// ListCatalogos returns a filtered page of catalog values.
func (s *Store) ListCatalogos(ctx context.Context, f Filter, p page.Request) (page.Result[Catalogo], error) {
	b := sqlite.Builder.Select(catalogoCols).From("catalogos")
	if f.Activo != nil {
		b = b.Where(sq.Eq{"activo": sqlite.Bool(*f.Activo)})
	}
	if f.Tipo != "" {
		b = b.Where(sq.Eq{"tipo": f.Tipo})
	}
	if f.Texto != "" {
		b = b.Where(sqlite.Like("valor_key", f.Texto))
	}
	total, err := sqlite.Count(ctx, s.db, b)
	if err != nil {
		return page.Result[Catalogo]{}, err
	}
	rows, err := sqlite.Query(ctx, s.db, b.OrderBy("tipo", "valor_key", "id").Limit(p.Limit()).Offset(p.Offset()))
	if err != nil {
		return page.Result[Catalogo]{}, err
	}
	defer func() { _ = rows.Close() }()

	var items []Catalogo
	for rows.Next() {
		c, err := scanCatalogo(rows)
		if err != nil {
			return page.Result[Catalogo]{}, err
		}
		items = append(items, c)
	}
	return page.NewResult(items, p, total), rows.Err()
}

// SetActive flips the soft-delete flag on table row id.
func (s *Store) SetActive(ctx context.Context, table string, id int64, active bool) error {
	switch table {
	case "especies", "cultivares", "catalogos":
	default:
		return fmt.Errorf("catalog: unknown table %q", table)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE `+table+` SET activo = ?, actualizado_en = ? WHERE id = ?`,
		sqlite.Bool(active), sqlite.FormatTime(s.now()), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.NotFound(table, id)
	}
	return nil
}

// CountActiveCultivares counts active cultivars of a species.
func (s *Store) CountActiveCultivares(ctx context.Context, especieID int64) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM cultivares WHERE especie_id = ? AND activo = 1`, especieID).Scan(&n)
	return n, err
}
