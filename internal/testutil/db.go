// SPDX-License-Identifier: MIT

// Package testutil holds fixtures shared by package tests.
// It seeds rows with plain SQL so domain packages can use it without import cycles.
package testutil

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/seedlab/seedlab/internal/authz"
	"github.com/seedlab/seedlab/internal/persistence/sqlite"
)

// NewDB opens a migrated database in a temp dir and closes it on cleanup.
func NewDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sqlite.OpenMigrated(context.Background(), filepath.Join(t.TempDir(), "lims.db"), sqlite.DefaultConfig())
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func exec(t *testing.T, db *sql.DB, q string, args ...any) int64 {
	t.Helper()
	res, err := db.Exec(q, args...)
	if err != nil {
		t.Fatalf("seed %q: %v", q, err)
	}
	id, _ := res.LastInsertId()
	return id
}

func now() string { return sqlite.FormatTime(time.Now()) }

// SeedCultivar inserts an active species and cultivar and returns the cultivar id.
func SeedCultivar(t *testing.T, db *sql.DB, especie, cultivar string) int64 {
	t.Helper()
	ts := now()
	eid := exec(t, db, `INSERT INTO especies (nombre_comun, nombre_key, search_key, creado_en, actualizado_en) VALUES (?, lower(?), lower(?), ?, ?)`,
		especie, especie, especie, ts, ts)
	return exec(t, db, `INSERT INTO cultivares (especie_id, nombre, nombre_key, search_key, creado_en, actualizado_en) VALUES (?, ?, lower(?), lower(?), ?, ?)`,
		eid, cultivar, cultivar, cultivar+" "+especie, ts, ts)
}

// SeedUser inserts an active user with a placeholder password hash.
func SeedUser(t *testing.T, db *sql.DB, username, role string) int64 {
	t.Helper()
	ts := now()
	return exec(t, db, `INSERT INTO usuarios (nombre, username, email, password_hash, rol, estado, search_key, creado_en, actualizado_en)
		VALUES (?, ?, ?, 'x', ?, 'ACTIVO', ?, ?, ?)`,
		username, username, username+"@lab.test", role, username, ts, ts)
}

// SeedLot inserts an active lot with the given analysis kinds.
func SeedLot(t *testing.T, db *sql.DB, ficha string, cultivarID int64, kinds ...string) int64 {
	t.Helper()
	ts := now()
	id := exec(t, db, `INSERT INTO lotes (ficha, nom_lote, cultivar_id, search_key, creado_en, actualizado_en) VALUES (?, ?, ?, lower(?), ?, ?)`,
		ficha, ficha, cultivarID, ficha, ts, ts)
	for _, k := range kinds {
		exec(t, db, `INSERT INTO lote_tipos (lote_id, kind) VALUES (?, ?)`, id, k)
	}
	return id
}

// As returns a context authenticated as the given user and role.
func As(userID int64, username, role string) context.Context {
	return authz.WithPrincipal(context.Background(), authz.Principal{
		UserID:   userID,
		Username: username,
		Role:     role,
		Scopes:   authz.ScopesForRole(role),
	})
}
