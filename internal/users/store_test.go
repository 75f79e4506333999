// SPDX-License-Identifier: MIT

package users

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seedlab/seedlab/internal/apperr"
	"github.com/seedlab/seedlab/internal/testutil"
)

func TestSetEstadoRolKeepingAdminRefusesLastAdmin(t *testing.T) {
	db := testutil.NewDB(t)
	store := NewStore(db)
	ctx := context.Background()
	jefa := testutil.SeedUser(t, db, "jefa", "ADMIN")

	err := store.SetEstadoRolKeepingAdmin(ctx, jefa, EstadoActivo, "ANALISTA")
	assert.ErrorIs(t, err, apperr.ErrConflict)
	err = store.SetEstadoRolKeepingAdmin(ctx, jefa, EstadoInactivo, "ADMIN")
	assert.ErrorIs(t, err, apperr.ErrConflict)
	assert.ErrorIs(t, store.SetEstadoRolKeepingAdmin(ctx, 404, EstadoInactivo, "ADMIN"), apperr.ErrNotFound)

	u, err := store.Get(ctx, jefa)
	require.NoError(t, err)
	assert.Equal(t, "ADMIN", u.Rol)
	assert.Equal(t, EstadoActivo, u.Estado)
}

func TestConcurrentAdminDemotionsKeepOneAdmin(t *testing.T) {
	db := testutil.NewDB(t)
	store := NewStore(db)
	ctx := context.Background()
	ids := []int64{
		testutil.SeedUser(t, db, "jefa", "ADMIN"),
		testutil.SeedUser(t, db, "segunda", "ADMIN"),
	}

	errs := make([]error, len(ids))
	var wg sync.WaitGroup
	for i, id := range ids {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = store.SetEstadoRolKeepingAdmin(ctx, id, EstadoActivo, "ANALISTA")
		}()
	}
	wg.Wait()

	var ok, conflicts int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, apperr.ErrConflict):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, conflicts)

	n, err := store.CountActiveAdmins(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
