// SPDX-License-Identifier: MIT

package dashboard

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seedlab/seedlab/internal/analysis"
	"github.com/seedlab/seedlab/internal/apperr"
	"github.com/seedlab/seedlab/internal/cache"
	"github.com/seedlab/seedlab/internal/lims"
	"github.com/seedlab/seedlab/internal/testutil"
)

type fakeSources struct {
	lots, stats, open int
	unread            int
	pending           int
}

func (f *fakeSources) CountActive(context.Context) (int, error) {
	f.lots++
	return 12, nil
}

func (f *fakeSources) Stats(context.Context) (analysis.Stats, error) {
	f.stats++
	return analysis.Stats{
		PorEstado:  map[lims.Estado]int{lims.EstadoEnProceso: 3, lims.EstadoPendienteAprobacion: 2},
		PorKind:    map[lims.Kind]int{lims.KindPMS: 5},
		Pendientes: 2,
	}, nil
}

func (f *fakeSources) CountOpenByCreator(_ context.Context, userID int64) (int, error) {
	f.open++
	return int(userID), nil
}

func (f *fakeSources) CountUnread(context.Context, int64) (int, error) { return f.unread, nil }

func (f *fakeSources) CountPending(context.Context) (int, error) { return f.pending, nil }

func newService(t *testing.T, c cache.Cache) (*Service, *fakeSources) {
	t.Helper()
	f := &fakeSources{unread: 4, pending: 1}
	return NewService(Sources{Lots: f, Analyses: f, Notifications: f, Users: f}, c, time.Minute), f
}

func TestGet_CachesAggregates(t *testing.T) {
	svc, f := newService(t, cache.NewMemoryCache(0))
	ctx := testutil.As(7, "ana", "ANALISTA")

	st, err := svc.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, 12, st.LotesActivos)
	assert.Equal(t, 2, st.PendientesAprobacion)
	assert.Equal(t, 3, st.AnalisisPorEstado[lims.EstadoEnProceso])
	assert.Equal(t, 5, st.AnalisisPorKind[lims.KindPMS])
	assert.Equal(t, 7, st.MisAnalisisAbiertos)
	assert.Equal(t, 4, st.NotificacionesNoLeidas)
	assert.Nil(t, st.UsuariosPendientes, "only administrators see pending users")

	f.unread = 9
	st, err = svc.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, 9, st.NotificacionesNoLeidas, "unread count is live")
	assert.Equal(t, 1, f.lots)
	assert.Equal(t, 1, f.stats)
	assert.Equal(t, 1, f.open)

	svc.Invalidate(context.Background())
	_, err = svc.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, f.stats)
	assert.Equal(t, 2, f.open)
}

func TestGet_AdminSeesPendingUsers(t *testing.T) {
	svc, _ := newService(t, cache.NewMemoryCache(0))
	st, err := svc.Get(testutil.As(1, "jefa", "ADMIN"))
	require.NoError(t, err)
	require.NotNil(t, st.UsuariosPendientes)
	assert.Equal(t, 1, *st.UsuariosPendientes)
}

func TestGet_RequiresPrincipal(t *testing.T) {
	svc, _ := newService(t, cache.NewMemoryCache(0))
	_, err := svc.Get(context.Background())
	require.ErrorIs(t, err, apperr.ErrUnauthorized)
}

func TestGet_RedisCache(t *testing.T) {
	mr := miniredis.RunT(t)
	c, err := cache.NewRedisCache(cache.RedisConfig{Addr: mr.Addr()}, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	svc, f := newService(t, c)
	ctx := testutil.As(3, "ana", "ANALISTA")
	for i := 0; i < 3; i++ {
		st, err := svc.Get(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, st.AnalisisPorEstado[lims.EstadoPendienteAprobacion])
	}
	assert.Equal(t, 1, f.stats)

	svc.Invalidate(context.Background())
	_, err = svc.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, f.stats)
}
