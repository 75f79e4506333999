// SPDX-License-Identifier: MIT

package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrateIsIdempotent(t *testing.T) {
	ctx := context.Background()
	db, err := Open(filepath.Join(t.TempDir(), "lims.db"), DefaultConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	n, err := Migrate(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, LatestVersion(), n)

	n, err = Migrate(ctx, db)
	require.NoError(t, err)
	assert.Zero(t, n)

	v, err := SchemaVersion(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, LatestVersion(), v)
}

func TestConstraintClassification(t *testing.T) {
	ctx := context.Background()
	db, err := OpenMigrated(ctx, filepath.Join(t.TempDir(), "lims.db"), DefaultConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	now := FormatTime(time.Now())
	_, err = db.ExecContext(ctx, `INSERT INTO especies (nombre_comun, nombre_key, creado_en, actualizado_en) VALUES ('Trigo', 'trigo', ?, ?)`, now, now)
	require.NoError(t, err)

	_, err = db.ExecContext(ctx, `INSERT INTO especies (nombre_comun, nombre_key, creado_en, actualizado_en) VALUES ('TRIGO', 'trigo', ?, ?)`, now, now)
	require.Error(t, err)
	assert.True(t, IsUniqueViolation(err))

	_, err = db.ExecContext(ctx, `INSERT INTO cultivares (especie_id, nombre, nombre_key, creado_en, actualizado_en) VALUES (999, 'x', 'x', ?, ?)`, now, now)
	require.Error(t, err)
	assert.True(t, IsForeignKeyViolation(err))
}

func TestVerifyIntegrityHealthy(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "lims.db")
	db, err := OpenMigrated(ctx, path, DefaultConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	for _, full := range []bool{false, true} {
		issues, err := VerifyIntegrity(ctx, db, full)
		require.NoError(t, err)
		assert.Empty(t, issues)
	}
}

func TestTimeHelpers(t *testing.T) {
	ts := time.Date(2025, 3, 1, 10, 30, 0, 0, time.UTC)
	assert.Equal(t, ts, ParseTime(FormatTime(ts)))
	assert.Nil(t, ParseNullTime(NullTime(nil)))
	got := ParseNullTime(NullTime(&ts))
	require.NotNil(t, got)
	assert.True(t, ts.Equal(*got))
	assert.True(t, ParseTime("garbage").IsZero())
}

func TestFormatTimeSortsLexically(t *testing.T) {
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	later := base.Add(500 * time.Millisecond)
	assert.Len(t, FormatTime(later), len(FormatTime(base)))
	assert.Less(t, FormatTime(base), FormatTime(later))
	assert.Less(t, FormatTime(later), FormatTime(base.Add(time.Second)))

	local := time.Date(2026, 1, 1, 9, 0, 0, 0, time.FixedZone("UYT", -3*3600))
	assert.Equal(t, "2026-01-01T12:00:00.000000000Z", FormatTime(local))
	assert.True(t, base.Equal(ParseTime(FormatTime(later)).Truncate(time.Second)))
}
