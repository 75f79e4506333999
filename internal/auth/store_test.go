// SPDX-License-Identifier: MIT

package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seedlab/seedlab/internal/testutil"
)

func TestStoreDeviceExpiryAtSubSecondBoundary(t *testing.T) {
	db := testutil.NewDB(t)
	store := NewStore(db)
	ctx := context.Background()
	uid := testutil.SeedUser(t, db, "ana", "ANALISTA")

	expira := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	d, err := store.TrustDevice(ctx, Device{
		UsuarioID:       uid,
		FingerprintHash: "fp-1",
		Nombre:          "Laboratorio",
		CreadoEn:        expira.Add(-time.Hour),
		UltimoUsoEn:     expira.Add(-time.Hour),
		ExpiraEn:        expira,
	})
	require.NoError(t, err)
	assert.True(t, expira.Equal(d.ExpiraEn))

	_, ok, err := store.FindDevice(ctx, uid, "fp-1", expira.Add(-500*time.Millisecond))
	require.NoError(t, err)
	assert.True(t, ok, "device must match just before expiry")

	_, ok, err = store.FindDevice(ctx, uid, "fp-1", expira.Add(500*time.Millisecond))
	require.NoError(t, err)
	assert.False(t, ok, "device must not match after expiry")

	list, err := store.ListDevices(ctx, uid, expira.Add(500*time.Millisecond))
	require.NoError(t, err)
	assert.Empty(t, list)

	devices, _, err := store.Purge(ctx, expira.Add(-500*time.Millisecond))
	require.NoError(t, err)
	assert.Zero(t, devices)
	devices, _, err = store.Purge(ctx, expira.Add(500*time.Millisecond))
	require.NoError(t, err)
	assert.Equal(t, 1, devices)
}

func TestStoreRecoveryExpiryAtSubSecondBoundary(t *testing.T) {
	db := testutil.NewDB(t)
	store := NewStore(db)
	ctx := context.Background()
	uid := testutil.SeedUser(t, db, "ana", "ANALISTA")

	now := time.Date(2026, 1, 1, 11, 45, 0, 0, time.UTC)
	expira := now.Add(15 * time.Minute)
	require.NoError(t, store.InsertRecovery(ctx, uid, "hash", now, expira))

	_, ok, err := store.ActiveRecovery(ctx, uid, expira.Add(-time.Millisecond))
	require.NoError(t, err)
	assert.True(t, ok)

	_, ok, err = store.ActiveRecovery(ctx, uid, expira.Add(250*time.Millisecond))
	require.NoError(t, err)
	assert.False(t, ok)
}
