// SPDX-License-Identifier: MIT

package users

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/seedlab/seedlab/internal/apperr"
	"github.com/seedlab/seedlab/internal/normalize"
	"github.com/seedlab/seedlab/internal/page"
	"github.com/seedlab/seedlab/internal/persistence/sqlite"
)

// Store persists users in SQLite.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now}
}

var userCols = []string{
	"id", "nombre", "apellido", "username", "email", "rol", "estado", "totp_enabled",
	"password_changed_en", "ultimo_login_en", "creado_en", "actualizado_en",
	"password_hash", "totp_secret", "totp_pending_secret",
}

func scanUser(row interface{ Scan(...any) error }) (Usuario, error) {
	var u Usuario
	var totp int
	var changed, login sql.NullString
	var creado, actualizado string
	err := row.Scan(&u.ID, &u.Nombre, &u.Apellido, &u.Username, &u.Email, &u.Rol, &u.Estado, &totp,
		&changed, &login, &creado, &actualizado, &u.PasswordHash, &u.TOTPSecret, &u.TOTPPendingSecret)
	if err != nil {
		return u, err
	}
	u.TOTPEnabled = totp == 1
	u.PasswordChangedEn = sqlite.ParseNullTime(changed)
	u.UltimoLoginEn = sqlite.ParseNullTime(login)
	u.CreadoEn = sqlite.ParseTime(creado)
	u.ActualizadoEn = sqlite.ParseTime(actualizado)
	return u, nil
}

func searchKey(u Usuario) string {
	return normalize.Key(u.Nombre, u.Apellido, u.Username, u.Email)
}

func mapWriteErr(err error) error {
	if !sqlite.IsUniqueViolation(err) {
		return err
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "usuarios.username"):
		return apperr.Conflict("username already taken").WithField("username", "duplicate")
	case strings.Contains(msg, "usuarios.email"):
		return apperr.Conflict("email already registered").WithField("email", "duplicate")
	default:
		return apperr.Conflict("user already exists")
	}
}

// Create inserts u and returns it with its id.
func (s *Store) Create(ctx context.Context, u Usuario) (Usuario, error) {
	now := sqlite.FormatTime(s.now())
	res, err := s.db.ExecContext(ctx, `
	INSERT INTO usuarios (nombre, apellido, username, email, password_hash, rol, estado, search_key, password_changed_en, creado_en, actualizado_en)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.Nombre, u.Apellido, u.Username, u.Email, u.PasswordHash, u.Rol, u.Estado, searchKey(u), now, now, now)
	if err != nil {
		return Usuario{}, mapWriteErr(err)
	}
	id, _ := res.LastInsertId()
	return s.Get(ctx, id)
}

func (s *Store) getBy(ctx context.Context, where sq.Sqlizer, notFound error) (Usuario, error) {
	q, args, err := sqlite.Builder.Select(userCols...).From("usuarios").Where(where).ToSql()
	if err != nil {
		return Usuario{}, err
	}
	u, err := scanUser(s.db.QueryRowContext(ctx, q, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return Usuario{}, notFound
	}
	return u, err
}

// Get loads a user by id.
func (s *Store) Get(ctx context.Context, id int64) (Usuario, error) {
	return s.getBy(ctx, sq.Eq{"id": id}, apperr.NotFound("usuario", id))
}

// GetByLogin loads a user by username or email, ignoring case.
func (s *Store) GetByLogin(ctx context.Context, login string) (Usuario, error) {
	login = strings.TrimSpace(login)
	return s.getBy(ctx, sq.Or{
		sq.Expr("username = ? COLLATE NOCASE", login),
		sq.Expr("email = ? COLLATE NOCASE", login),
	}, apperr.NotFound("usuario", login))
}

// List returns a filtered page of users ordered by username.
func (s *Store) List(ctx context.Context, f Filter, p page.Request) (page.Result[Usuario], error) {
	b := sqlite.Builder.Select(userCols...).From("usuarios")
	if f.Rol != "" {
		b = b.Where(sq.Eq{"rol": f.Rol})
	}
	if f.Estado != "" {
		b = b.Where(sq.Eq{"estado": f.Estado})
	}
	if f.Texto != "" {
		b = b.Where(sqlite.Like("search_key", f.Texto))
	}
	total, err := sqlite.Count(ctx, s.db, b)
	if err != nil {
		return page.Result[Usuario]{}, err
	}
	rows, err := sqlite.Query(ctx, s.db, b.OrderBy("username COLLATE NOCASE").Limit(p.Limit()).Offset(p.Offset()))
	if err != nil {
		return page.Result[Usuario]{}, err
	}
	defer func() { _ = rows.Close() }()
	var items []Usuario
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return page.Result[Usuario]{}, err
		}
		items = append(items, u)
	}
	if err := rows.Err(); err != nil {
		return page.Result[Usuario]{}, err
	}
	return page.NewResult(items, p, total), nil
}

func (s *Store) exec(ctx context.Context, id int64, q string, args ...any) error {
	res, err := s.db.ExecContext(ctx, q, args...)
	if err != nil {
		return mapWriteErr(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.NotFound("usuario", id)
	}
	return nil
}

// SetEstadoRol updates state and role together.
func (s *Store) SetEstadoRol(ctx context.Context, id int64, estado Estado, rol string) error {
	return s.exec(ctx, id, `UPDATE usuarios SET estado = ?, rol = ?, actualizado_en = ? WHERE id = ?`,
		estado, rol, sqlite.FormatTime(s.now()), id)
}

// SetEstadoRolKeepingAdmin is SetEstadoRol for a change that takes away
// administrator rights. The count and the write are one statement, so two
// concurrent demotions cannot both remove the last active administrator.
func (s *Store) SetEstadoRolKeepingAdmin(ctx context.Context, id int64, estado Estado, rol string) error {
	return sqlite.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
		UPDATE usuarios SET estado = ?, rol = ?, actualizado_en = ?
		WHERE id = ? AND (
			rol <> 'ADMIN' OR estado <> 'ACTIVO'
			OR (SELECT COUNT(*) FROM usuarios WHERE rol = 'ADMIN' AND estado = 'ACTIVO' AND id <> ?) > 0
		)`, estado, rol, sqlite.FormatTime(s.now()), id, id)
		if err != nil {
			return mapWriteErr(err)
		}
		if n, _ := res.RowsAffected(); n == 1 {
			return nil
		}
		var exists int
		err = tx.QueryRowContext(ctx, `SELECT 1 FROM usuarios WHERE id = ?`, id).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return apperr.NotFound("usuario", id)
		}
		if err != nil {
			return err
		}
		return apperr.Conflict("usuario %d is the last active administrator", id)
	})
}

// UpdateProfile writes the self-editable fields.
func (s *Store) UpdateProfile(ctx context.Context, u Usuario) error {
	return s.exec(ctx, u.ID, `UPDATE usuarios SET nombre = ?, apellido = ?, email = ?, search_key = ?, actualizado_en = ? WHERE id = ?`,
		u.Nombre, u.Apellido, u.Email, searchKey(u), sqlite.FormatTime(s.now()), u.ID)
}

// SetPassword stores a new hash.
func (s *Store) SetPassword(ctx context.Context, id int64, hash string) error {
	now := sqlite.FormatTime(s.now())
	return s.exec(ctx, id, `UPDATE usuarios SET password_hash = ?, password_changed_en = ?, actualizado_en = ? WHERE id = ?`,
		hash, now, now, id)
}

// SetPendingTOTP stores a secret awaiting confirmation.
func (s *Store) SetPendingTOTP(ctx context.Context, id int64, secret string) error {
	return s.exec(ctx, id, `UPDATE usuarios SET totp_pending_secret = ?, actualizado_en = ? WHERE id = ?`,
		secret, sqlite.FormatTime(s.now()), id)
}

// EnableTOTP promotes the pending secret to the active one.
func (s *Store) EnableTOTP(ctx context.Context, id int64, secret string) error {
	return s.exec(ctx, id, `UPDATE usuarios SET totp_enabled = 1, totp_secret = ?, totp_pending_secret = '', actualizado_en = ? WHERE id = ?`,
		secret, sqlite.FormatTime(s.now()), id)
}

// DisableTOTP clears every second-factor secret.
func (s *Store) DisableTOTP(ctx context.Context, id int64) error {
	return s.exec(ctx, id, `UPDATE usuarios SET totp_enabled = 0, totp_secret = '', totp_pending_secret = '', actualizado_en = ? WHERE id = ?`,
		sqlite.FormatTime(s.now()), id)
}

// TouchLogin records a successful login.
func (s *Store) TouchLogin(ctx context.Context, id int64) error {
	return s.exec(ctx, id, `UPDATE usuarios SET ultimo_login_en = ? WHERE id = ?`, sqlite.FormatTime(s.now()), id)
}

// CountActiveAdmins counts active administrators.
func (s *Store) CountActiveAdmins(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM usuarios WHERE rol = 'ADMIN' AND estado = 'ACTIVO'`).Scan(&n)
	return n, err
}

// CountByEstado counts users in estado.
func (s *Store) CountByEstado(ctx context.Context, estado Estado) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM usuarios WHERE estado = ?`, estado).Scan(&n)
	return n, err
}
