// SPDX-License-Identifier: MIT

package auth

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/seedlab/seedlab/internal/apperr"
	"github.com/seedlab/seedlab/internal/persistence/sqlite"
)

// Device is a browser or client exempted from the second factor until it expires.
type Device struct {
	ID          string    `json:"id"`
	UsuarioID   int64     `json:"-"`
	Nombre      string    `json:"nombre"`
	UserAgent   string    `json:"userAgent"`
	IP          string    `json:"ip"`
	CreadoEn    time.Time `json:"creadoEn"`
	UltimoUsoEn time.Time `json:"ultimoUsoEn"`
	ExpiraEn    time.Time `json:"expiraEn"`

	FingerprintHash string `json:"-"`
}

type storedCode struct {
	ID       int64
	Hash     string
	Intentos int
	ExpiraEn time.Time
}

// Store persists backup codes, trusted devices and recovery codes.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// ReplaceBackupCodes drops every backup code of the user and stores hashes.
func (s *Store) ReplaceBackupCodes(ctx context.Context, userID int64, hashes []string, now time.Time) error {
	return sqlite.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM backup_codes WHERE usuario_id = ?`, userID); err != nil {
			return err
		}
		for _, h := range hashes {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO backup_codes (usuario_id, code_hash, creado_en) VALUES (?, ?, ?)`,
				userID, h, sqlite.FormatTime(now)); err != nil {
				return err
			}
		}
		return nil
	})
}

// DeleteBackupCodes removes every backup code of the user.
func (s *Store) DeleteBackupCodes(ctx context.Context, userID int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM backup_codes WHERE usuario_id = ?`, userID)
	return err
}

// UnusedBackupCodes returns the user's codes that were never redeemed.
func (s *Store) UnusedBackupCodes(ctx context.Context, userID int64) ([]storedCode, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, code_hash FROM backup_codes WHERE usuario_id = ? AND usado_en IS NULL ORDER BY id`, userID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []storedCode
	for rows.Next() {
		var c storedCode
		if err := rows.Scan(&c.ID, &c.Hash); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// RedeemBackupCode marks a code used. It reports false when the code was
// already redeemed by a concurrent request.
func (s *Store) RedeemBackupCode(ctx context.Context, id int64, now time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE backup_codes SET usado_en = ? WHERE id = ? AND usado_en IS NULL`, sqlite.FormatTime(now), id)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n == 1, nil
}

// TrustDevice stores or refreshes the device with the same fingerprint.
func (s *Store) TrustDevice(ctx context.Context, d Device) (Device, error) {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx, `
	INSERT INTO trusted_devices (id, usuario_id, fingerprint_hash, nombre, user_agent, ip, creado_en, ultimo_uso_en, expira_en)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (usuario_id, fingerprint_hash) DO UPDATE SET
		nombre = excluded.nombre, user_agent = excluded.user_agent, ip = excluded.ip,
		ultimo_uso_en = excluded.ultimo_uso_en, expira_en = excluded.expira_en`,
		d.ID, d.UsuarioID, d.FingerprintHash, d.Nombre, d.UserAgent, d.IP,
		sqlite.FormatTime(d.CreadoEn), sqlite.FormatTime(d.UltimoUsoEn), sqlite.FormatTime(d.ExpiraEn))
	if err != nil {
		return Device{}, err
	}
	got, ok, err := s.FindDevice(ctx, d.UsuarioID, d.FingerprintHash, d.UltimoUsoEn)
	if err != nil {
		return Device{}, err
	}
	if !ok {
		return Device{}, errors.New("trusted device vanished after insert")
	}
	return got, nil
}

const deviceCols = `id, usuario_id, fingerprint_hash, nombre, user_agent, ip, creado_en, ultimo_uso_en, expira_en`

func scanDevice(row interface{ Scan(...any) error }) (Device, error) {
	var d Device
	var creado, uso, expira string
	err := row.Scan(&d.ID, &d.UsuarioID, &d.FingerprintHash, &d.Nombre, &d.UserAgent, &d.IP, &creado, &uso, &expira)
	d.CreadoEn = sqlite.ParseTime(creado)
	d.UltimoUsoEn = sqlite.ParseTime(uso)
	d.ExpiraEn = sqlite.ParseTime(expira)
	return d, err
}

// FindDevice returns the user's unexpired device with fingerprint hash fp.
func (s *Store) FindDevice(ctx context.Context, userID int64, fp string, now time.Time) (Device, bool, error) {
	d, err := scanDevice(s.db.QueryRowContext(ctx,
		`SELECT `+deviceCols+` FROM trusted_devices WHERE usuario_id = ? AND fingerprint_hash = ? AND expira_en > ?`,
		userID, fp, sqlite.FormatTime(now)))
	if errors.Is(err, sql.ErrNoRows) {
		return Device{}, false, nil
	}
	if err != nil {
		return Device{}, false, err
	}
	return d, true, nil
}

// TouchDevice records a use of the device.
func (s *Store) TouchDevice(ctx context.Context, id string, now time.Time) error {
	_, err := s.db.ExecContext(ctx, `UPDATE trusted_devices SET ultimo_uso_en = ? WHERE id = ?`, sqlite.FormatTime(now), id)
	return err
}

// ListDevices returns the user's unexpired devices, most recently used first.
func (s *Store) ListDevices(ctx context.Context, userID int64, now time.Time) ([]Device, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+deviceCols+` FROM trusted_devices WHERE usuario_id = ? AND expira_en > ? ORDER BY ultimo_uso_en DESC`,
		userID, sqlite.FormatTime(now))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	out := []Device{}
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// RevokeDevice deletes one of the user's devices.
func (s *Store) RevokeDevice(ctx context.Context, userID int64, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM trusted_devices WHERE id = ? AND usuario_id = ?`, id, userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.NotFound("trusted device", id)
	}
	return nil
}

// RevokeAllDevices deletes every device of the user.
func (s *Store) RevokeAllDevices(ctx context.Context, userID int64) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM trusted_devices WHERE usuario_id = ?`, userID)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// InsertRecovery stores a new recovery code and voids earlier unused ones.
func (s *Store) InsertRecovery(ctx context.Context, userID int64, hash string, now, expires time.Time) error {
	return sqlite.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`UPDATE recovery_codes SET usado_en = ? WHERE usuario_id = ? AND usado_en IS NULL`,
			sqlite.FormatTime(now), userID); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO recovery_codes (usuario_id, code_hash, expira_en, creado_en) VALUES (?, ?, ?, ?)`,
			userID, hash, sqlite.FormatTime(expires), sqlite.FormatTime(now))
		return err
	})
}

// ActiveRecovery returns the user's newest unused, unexpired recovery code.
func (s *Store) ActiveRecovery(ctx context.Context, userID int64, now time.Time) (storedCode, bool, error) {
	var c storedCode
	var expira string
	err := s.db.QueryRowContext(ctx, `
	SELECT id, code_hash, intentos, expira_en FROM recovery_codes
	WHERE usuario_id = ? AND usado_en IS NULL AND expira_en > ?
	ORDER BY id DESC LIMIT 1`, userID, sqlite.FormatTime(now)).Scan(&c.ID, &c.Hash, &c.Intentos, &expira)
	if errors.Is(err, sql.ErrNoRows) {
		return storedCode{}, false, nil
	}
	if err != nil {
		return storedCode{}, false, err
	}
	c.ExpiraEn = sqlite.ParseTime(expira)
	return c, true, nil
}

// RecordRecoveryAttempt increments the failed attempts of a code.
func (s *Store) RecordRecoveryAttempt(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `UPDATE recovery_codes SET intentos = intentos + 1 WHERE id = ?`, id)
	return err
}

// UseRecovery marks a recovery code used.
func (s *Store) UseRecovery(ctx context.Context, id int64, now time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE recovery_codes SET usado_en = ? WHERE id = ? AND usado_en IS NULL`, sqlite.FormatTime(now), id)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n == 1, nil
}

// Purge deletes expired devices and spent or expired recovery codes.
func (s *Store) Purge(ctx context.Context, now time.Time) (devices, codes int, err error) {
	ts := sqlite.FormatTime(now)
	res, err := s.db.ExecContext(ctx, `DELETE FROM trusted_devices WHERE expira_en <= ?`, ts)
	if err != nil {
		return 0, 0, err
	}
	d, _ := res.RowsAffected()
	res, err = s.db.ExecContext(ctx, `DELETE FROM recovery_codes WHERE expira_en <= ? OR usado_en IS NOT NULL`, ts)
	if err != nil {
		return int(d), 0, err
	}
	c, _ := res.RowsAffected()
	return int(d), int(c), nil
}
