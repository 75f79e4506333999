// SPDX-License-Identifier: MIT

package users

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/seedlab/seedlab/internal/apperr"
	"github.com/seedlab/seedlab/internal/auth/password"
	"github.com/seedlab/seedlab/internal/config"
	"github.com/seedlab/seedlab/internal/notify"
	"github.com/seedlab/seedlab/internal/page"
	"github.com/seedlab/seedlab/internal/testutil"
)

func TestMain(m *testing.M) {
	password.Cost = bcrypt.MinCost
	os.Exit(m.Run())
}

type recordingRevoker struct{ revoked []int64 }

func (r *recordingRevoker) RevokeUser(_ context.Context, id int64) error {
	r.revoked = append(r.revoked, id)
	return nil
}

type fixture struct {
	svc     *Service
	notify  *notify.Service
	revoker *recordingRevoker
	adminID int64
	admin   context.Context
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	db := testutil.NewDB(t)
	n := notify.NewService(notify.NewStore(db), nil)
	r := &recordingRevoker{}
	adminID := testutil.SeedUser(t, db, "jefa", "ADMIN")
	return fixture{
		svc:     NewService(NewStore(db), r, n, nil),
		notify:  n,
		revoker: r,
		adminID: adminID,
		admin:   testutil.As(adminID, "jefa", "ADMIN"),
	}
}

func register(t *testing.T, f fixture, username string) Usuario {
	t.Helper()
	u, err := f.svc.Register(context.Background(), RegisterInput{
		Nombre: "Ana", Apellido: "Pérez", Username: username, Email: username + "@Lab.Test", Password: "semilla42",
	})
	require.NoError(t, err)
	return u
}

func TestRegisterAndApprove(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	u := register(t, f, "ana")
	assert.Equal(t, EstadoPendiente, u.Estado)
	assert.Equal(t, "ana@lab.test", u.Email)
	assert.NotEqual(t, "semilla42", u.PasswordHash)

	inbox, err := f.notify.ListMine(ctx, f.adminID, notify.Filter{}, page.Request{})
	require.NoError(t, err)
	require.Len(t, inbox.Items, 1)
	assert.Equal(t, notify.TipoUsuarioPendiente, inbox.Items[0].Tipo)

	pending, err := f.svc.CountPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, pending)

	_, err = f.svc.Approve(f.admin, u.ID, "QUIMICO")
	assert.ErrorIs(t, err, apperr.ErrInvalid)

	approved, err := f.svc.Approve(f.admin, u.ID, "analista")
	require.NoError(t, err)
	assert.Equal(t, EstadoActivo, approved.Estado)
	assert.Equal(t, "ANALISTA", approved.Rol)

	_, err = f.svc.Approve(f.admin, u.ID, "ANALISTA")
	assert.ErrorIs(t, err, apperr.ErrConflict)

	mine, err := f.notify.CountUnread(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, mine)
}

func TestRegisterValidationAndUniqueness(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	register(t, f, "ana")

	_, err := f.svc.Register(ctx, RegisterInput{Nombre: "Otra", Username: "ANA", Email: "otra@lab.test", Password: "semilla42"})
	require.ErrorIs(t, err, apperr.ErrConflict)
	assert.Contains(t, apperr.FieldsOf(err), "username")

	_, err = f.svc.Register(ctx, RegisterInput{Nombre: "Otra", Username: "otra", Email: "ANA@lab.test", Password: "semilla42"})
	require.ErrorIs(t, err, apperr.ErrConflict)
	assert.Contains(t, apperr.FieldsOf(err), "email")

	_, err = f.svc.Register(ctx, RegisterInput{Nombre: "", Username: "a b", Email: "nope", Password: "semilla42"})
	require.ErrorIs(t, err, apperr.ErrInvalid)
	fields := apperr.FieldsOf(err)
	assert.Contains(t, fields, "nombre")
	assert.Contains(t, fields, "username")
	assert.Contains(t, fields, "email")

	_, err = f.svc.Register(ctx, RegisterInput{Nombre: "X", Username: "xx1", Email: "x@lab.test", Password: "short"})
	require.ErrorIs(t, err, apperr.ErrInvalid)
	assert.Contains(t, apperr.FieldsOf(err), "password")
}

func TestReject(t *testing.T) {
	f := newFixture(t)
	u := register(t, f, "ana")

	rejected, err := f.svc.Reject(f.admin, u.ID)
	require.NoError(t, err)
	assert.Equal(t, EstadoInactivo, rejected.Estado)

	_, err = f.svc.Reject(f.admin, u.ID)
	assert.ErrorIs(t, err, apperr.ErrConflict)
}

func TestLastAdminIsProtected(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.ChangeRole(f.admin, f.adminID, "ANALISTA")
	assert.ErrorIs(t, err, apperr.ErrConflict)

	other := register(t, f, "segunda")
	_, err = f.svc.Approve(f.admin, other.ID, "ADMIN")
	require.NoError(t, err)

	demoted, err := f.svc.ChangeRole(f.admin, f.adminID, "ANALISTA")
	require.NoError(t, err)
	assert.Equal(t, "ANALISTA", demoted.Rol)
	assert.Equal(t, []int64{f.adminID}, f.revoker.revoked)

	_, err = f.svc.Deactivate(testutil.As(f.adminID, "jefa", "ADMIN"), other.ID)
	assert.ErrorIs(t, err, apperr.ErrConflict, "last active admin")

	_, err = f.svc.Deactivate(testutil.As(other.ID, "segunda", "ADMIN"), other.ID)
	assert.ErrorIs(t, err, apperr.ErrConflict, "self deactivation")
}

func TestDeactivateAndReactivate(t *testing.T) {
	f := newFixture(t)
	u := register(t, f, "ana")
	_, err := f.svc.Approve(f.admin, u.ID, "ANALISTA")
	require.NoError(t, err)

	off, err := f.svc.Deactivate(f.admin, u.ID)
	require.NoError(t, err)
	assert.Equal(t, EstadoInactivo, off.Estado)
	assert.Contains(t, f.revoker.revoked, u.ID)

	on, err := f.svc.Reactivate(f.admin, u.ID)
	require.NoError(t, err)
	assert.Equal(t, EstadoActivo, on.Estado)

	_, err = f.svc.Reactivate(f.admin, u.ID)
	assert.ErrorIs(t, err, apperr.ErrConflict)
}

func TestProfileAndPassword(t *testing.T) {
	f := newFixture(t)
	u := register(t, f, "ana")
	ctx := testutil.As(u.ID, "ana", "ANALISTA")

	me, err := f.svc.UpdateProfile(ctx, ProfileInput{Nombre: "Ana María", Apellido: "Pérez", Email: "ana.maria@lab.test"})
	require.NoError(t, err)
	assert.Equal(t, "Ana María", me.Nombre)

	found, err := f.svc.List(f.admin, Filter{Texto: "maria"}, page.Request{})
	require.NoError(t, err)
	require.Len(t, found.Items, 1)
	assert.Equal(t, u.ID, found.Items[0].ID)

	err = f.svc.ChangePassword(ctx, "wrong123", "semilla43")
	require.ErrorIs(t, err, apperr.ErrInvalid)
	assert.Contains(t, apperr.FieldsOf(err), "currentPassword")

	assert.ErrorIs(t, f.svc.ChangePassword(ctx, "semilla42", "semilla42"), apperr.ErrInvalid)
	require.NoError(t, f.svc.ChangePassword(ctx, "semilla42", "semilla43"))
	assert.Contains(t, f.revoker.revoked, u.ID)

	after, err := f.svc.Me(ctx)
	require.NoError(t, err)
	assert.True(t, password.Verify(after.PasswordHash, "semilla43"))
	assert.NotNil(t, after.PasswordChangedEn)

	_, err = f.svc.Me(context.Background())
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
}

func TestEnsureBootstrapAdmin(t *testing.T) {
	db := testutil.NewDB(t)
	svc := NewService(NewStore(db), nil, nil, nil)
	ctx := context.Background()

	created, err := svc.EnsureBootstrapAdmin(ctx, config.BootstrapConfig{})
	require.NoError(t, err)
	assert.False(t, created)

	cfg := config.BootstrapConfig{AdminUsername: "admin", AdminEmail: "admin@lab.test", AdminPassword: "cambiar123"}
	created, err = svc.EnsureBootstrapAdmin(ctx, cfg)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = svc.EnsureBootstrapAdmin(ctx, cfg)
	require.NoError(t, err)
	assert.False(t, created)

	u, err := svc.Store().GetByLogin(ctx, "ADMIN@lab.test")
	require.NoError(t, err)
	assert.Equal(t, "ADMIN", u.Rol)
	assert.Equal(t, EstadoActivo, u.Estado)
}
