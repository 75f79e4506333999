// SPDX-License-Identifier: MIT

package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	xglog "github.com/seedlab/seedlab/internal/log"
)

type migration struct {
	version int
	name    string
	stmts   string
}

// migrations are append-only. Never edit an applied entry; add a new version.
var migrations = []migration{
	{1, "catalog", `
	CREATE TABLE especies (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		nombre_comun TEXT NOT NULL,
		nombre_key TEXT NOT NULL UNIQUE,
		nombre_cientifico TEXT NOT NULL DEFAULT '',
		search_key TEXT NOT NULL DEFAULT '',
		activo INTEGER NOT NULL DEFAULT 1,
		creado_en TEXT NOT NULL,
		actualizado_en TEXT NOT NULL
	);

	CREATE TABLE cultivares (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		especie_id INTEGER NOT NULL REFERENCES especies(id),
		nombre TEXT NOT NULL,
		nombre_key TEXT NOT NULL,
		search_key TEXT NOT NULL DEFAULT '',
		activo INTEGER NOT NULL DEFAULT 1,
		creado_en TEXT NOT NULL,
		actualizado_en TEXT NOT NULL,
		UNIQUE (especie_id, nombre_key)
	);
	CREATE INDEX idx_cultivares_especie ON cultivares(especie_id);

	CREATE TABLE catalogos (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		tipo TEXT NOT NULL,
		valor TEXT NOT NULL,
		valor_key TEXT NOT NULL,
		activo INTEGER NOT NULL DEFAULT 1,
		creado_en TEXT NOT NULL,
		actualizado_en TEXT NOT NULL,
		UNIQUE (tipo, valor_key)
	);
	`},
	{2, "usuarios", `
	CREATE TABLE usuarios (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		nombre TEXT NOT NULL,
		apellido TEXT NOT NULL DEFAULT '',
		username TEXT NOT NULL UNIQUE COLLATE NOCASE,
		email TEXT NOT NULL UNIQUE COLLATE NOCASE,
		password_hash TEXT NOT NULL,
		rol TEXT NOT NULL CHECK(rol IN ('ADMIN', 'ANALISTA', 'OBSERVADOR')),
		estado TEXT NOT NULL CHECK(estado IN ('PENDIENTE', 'ACTIVO', 'INACTIVO')),
		totp_enabled INTEGER NOT NULL DEFAULT 0,
		totp_secret TEXT NOT NULL DEFAULT '',
		totp_pending_secret TEXT NOT NULL DEFAULT '',
		search_key TEXT NOT NULL DEFAULT '',
		password_changed_en TEXT,
		ultimo_login_en TEXT,
		creado_en TEXT NOT NULL,
		actualizado_en TEXT NOT NULL
	);

	CREATE TABLE backup_codes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		usuario_id INTEGER NOT NULL REFERENCES usuarios(id) ON DELETE CASCADE,
		code_hash TEXT NOT NULL,
		usado_en TEXT,
		creado_en TEXT NOT NULL
	);
	CREATE INDEX idx_backup_codes_usuario ON backup_codes(usuario_id);

	CREATE TABLE trusted_devices (
		id TEXT PRIMARY KEY,
		usuario_id INTEGER NOT NULL REFERENCES usuarios(id) ON DELETE CASCADE,
		fingerprint_hash TEXT NOT NULL,
		nombre TEXT NOT NULL DEFAULT '',
		user_agent TEXT NOT NULL DEFAULT '',
		ip TEXT NOT NULL DEFAULT '',
		creado_en TEXT NOT NULL,
		ultimo_uso_en TEXT NOT NULL,
		expira_en TEXT NOT NULL,
		UNIQUE (usuario_id, fingerprint_hash)
	);

	CREATE TABLE recovery_codes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		usuario_id INTEGER NOT NULL REFERENCES usuarios(id) ON DELETE CASCADE,
		code_hash TEXT NOT NULL,
		intentos INTEGER NOT NULL DEFAULT 0,
		expira_en TEXT NOT NULL,
		usado_en TEXT,
		creado_en TEXT NOT NULL
	);
	CREATE INDEX idx_recovery_codes_usuario ON recovery_codes(usuario_id);
	`},
	{3, "lotes", `
	CREATE TABLE lotes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		ficha TEXT NOT NULL UNIQUE COLLATE NOCASE,
		nom_lote TEXT NOT NULL DEFAULT '',
		cultivar_id INTEGER NOT NULL REFERENCES cultivares(id),
		cliente_nombre TEXT NOT NULL DEFAULT '',
		empresa TEXT NOT NULL DEFAULT '',
		origen_id INTEGER REFERENCES catalogos(id),
		estado_id INTEGER REFERENCES catalogos(id),
		deposito_id INTEGER REFERENCES catalogos(id),
		fecha_recibo TEXT,
		fecha_entrega TEXT,
		kilos_limpios REAL NOT NULL DEFAULT 0,
		observaciones TEXT NOT NULL DEFAULT '',
		search_key TEXT NOT NULL DEFAULT '',
		activo INTEGER NOT NULL DEFAULT 1,
		creado_en TEXT NOT NULL,
		actualizado_en TEXT NOT NULL
	);
	CREATE INDEX idx_lotes_cultivar ON lotes(cultivar_id);

	CREATE TABLE lote_tipos (
		lote_id INTEGER NOT NULL REFERENCES lotes(id) ON DELETE CASCADE,
		kind TEXT NOT NULL,
		PRIMARY KEY (lote_id, kind)
	);
	`},
	{4, "analisis", `
	CREATE TABLE analisis (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		lote_id INTEGER NOT NULL REFERENCES lotes(id),
		kind TEXT NOT NULL CHECK(kind IN ('PUREZA', 'GERMINACION', 'PMS', 'TETRAZOLIO', 'DOSN')),
		estado TEXT NOT NULL,
		fecha_inicio TEXT,
		fecha_fin TEXT,
		comentarios TEXT NOT NULL DEFAULT '',
		creado_por INTEGER REFERENCES usuarios(id),
		payload TEXT NOT NULL DEFAULT '{}',
		resultado TEXT NOT NULL DEFAULT '{}',
		activo INTEGER NOT NULL DEFAULT 1,
		creado_en TEXT NOT NULL,
		actualizado_en TEXT NOT NULL
	);
	CREATE INDEX idx_analisis_lote ON analisis(lote_id);
	CREATE INDEX idx_analisis_kind_estado ON analisis(kind, estado);
	`},
	{5, "notificaciones", `
	CREATE TABLE notificaciones (
		id TEXT PRIMARY KEY,
		usuario_id INTEGER NOT NULL REFERENCES usuarios(id) ON DELETE CASCADE,
		tipo TEXT NOT NULL,
		titulo TEXT NOT NULL,
		mensaje TEXT NOT NULL DEFAULT '',
		analisis_id INTEGER,
		leida INTEGER NOT NULL DEFAULT 0,
		creada_en TEXT NOT NULL
	);
	CREATE INDEX idx_notificaciones_usuario ON notificaciones(usuario_id, leida, creada_en);
	`},
	{6, "legados", `
	CREATE TABLE legados (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		ficha TEXT NOT NULL,
		especie TEXT NOT NULL DEFAULT '',
		cultivar TEXT NOT NULL DEFAULT '',
		fecha_recibo TEXT,
		germinacion REAL,
		pureza REAL,
		pms REAL,
		observaciones TEXT NOT NULL DEFAULT '',
		archivo_origen TEXT NOT NULL DEFAULT '',
		search_key TEXT NOT NULL DEFAULT '',
		importado_en TEXT NOT NULL,
		UNIQUE (ficha, archivo_origen)
	);
	`},
}

// Migrate applies pending migrations in order and returns how many ran.
// Each version runs in its own transaction and is recorded in schema_migrations.
func Migrate(ctx context.Context, db *sql.DB) (int, error) {
	logger := xglog.WithComponent("sqlite")

	if _, err := db.ExecContext(ctx, `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		applied_at TEXT NOT NULL
	)`); err != nil {
		return 0, fmt.Errorf("create schema_migrations: %w", err)
	}

	current, err := SchemaVersion(ctx, db)
	if err != nil {
		return 0, err
	}

	applied := 0
	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		err := WithTx(ctx, db, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, m.stmts); err != nil {
				return err
			}
			_, err := tx.ExecContext(ctx,
				`INSERT INTO schema_migrations (version, name, applied_at) VALUES (?, ?, ?)`,
				m.version, m.name, FormatTime(time.Now()))
			return err
		})
		if err != nil {
			return applied, fmt.Errorf("migration %d (%s): %w", m.version, m.name, err)
		}
		applied++
		logger.Info().Int("version", m.version).Str("name", m.name).Msg("applied migration")
	}
	return applied, nil
}

// SchemaVersion returns the highest applied migration, or 0.
func SchemaVersion(ctx context.Context, db *sql.DB) (int, error) {
	var v sql.NullInt64
	if err := db.QueryRowContext(ctx, `SELECT MAX(version) FROM schema_migrations`).Scan(&v); err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return int(v.Int64), nil
}

// LatestVersion is the version Migrate converges to.
func LatestVersion() int {
	return migrations[len(migrations)-1].version
}
