// SPDX-License-Identifier: MIT

package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seedlab/seedlab/internal/config"
)

func stores(t *testing.T) map[string]Store {
	t.Helper()
	b, err := OpenBadgerStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	return map[string]Store{"memory": NewMemoryStore(), "badger": b}
}

func TestStoreContract(t *testing.T) {
	for name, st := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			now := time.Now()
			require.NoError(t, st.Ping(ctx))

			s1 := Session{ID: HashToken("t1"), UserID: 1, CreatedAt: now, ExpiresAt: now.Add(time.Hour)}
			s2 := Session{ID: HashToken("t2"), UserID: 1, CreatedAt: now, ExpiresAt: now.Add(time.Hour)}
			s3 := Session{ID: HashToken("t3"), UserID: 2, CreatedAt: now, ExpiresAt: now.Add(time.Hour)}
			for _, s := range []Session{s1, s2, s3} {
				require.NoError(t, st.Put(ctx, s))
			}

			got, err := st.Take(ctx, s1.ID)
			require.NoError(t, err)
			assert.Equal(t, int64(1), got.UserID)
			_, err = st.Take(ctx, s1.ID)
			assert.ErrorIs(t, err, ErrNotFound, "refresh tokens are single use")

			n, err := st.DeleteUser(ctx, 1)
			require.NoError(t, err)
			assert.Equal(t, 1, n)
			_, err = st.Take(ctx, s2.ID)
			assert.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, st.Delete(ctx, s3.ID))
			require.NoError(t, st.Delete(ctx, s3.ID))
			_, err = st.Take(ctx, s3.ID)
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestPurgeRemovesExpired(t *testing.T) {
	for name, st := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			now := time.Now()
			require.NoError(t, st.Put(ctx, Session{ID: "short", UserID: 1, ExpiresAt: now.Add(time.Minute)}))
			require.NoError(t, st.Put(ctx, Session{ID: "long", UserID: 1, ExpiresAt: now.Add(time.Hour)}))

			n, err := st.Purge(ctx, now.Add(2*time.Minute))
			require.NoError(t, err)
			assert.Equal(t, 1, n)

			_, err = st.Take(ctx, "long")
			assert.NoError(t, err)
		})
	}
}

func TestMemoryTakeRejectsExpired(t *testing.T) {
	st := NewMemoryStore()
	st.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	require.NoError(t, st.Put(context.Background(), Session{ID: "x", ExpiresAt: time.Now().Add(time.Hour)}))
	_, err := st.Take(context.Background(), "x")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestOpenSelectsBackend(t *testing.T) {
	st, err := Open(config.AuthConfig{})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, st)

	bs, err := Open(config.AuthConfig{SessionBackend: "badger", SessionPath: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &BadgerStore{}, bs)
	require.NoError(t, bs.Close())

	_, err = Open(config.AuthConfig{SessionBackend: "etcd"})
	assert.Error(t, err)

	tok, err := NewToken()
	require.NoError(t, err)
	assert.Len(t, HashToken(tok), 64)
}
