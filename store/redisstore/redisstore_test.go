package redisstore

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/scratchspace/api"
	"github.com/momentics/scratchspace/pool"
	"github.com/momentics/scratchspace/space"
)

// setupTestStore creates a store connected to a miniredis instance
func setupTestStore(t *testing.T, namespace string) (*Store, *miniredis.Miniredis) {
	mr := miniredis.NewMiniRedis()
	require.NoError(t, mr.Start())
	t.Cleanup(mr.Close)

	s, err := New(&redis.Options{Addr: mr.Addr()}, namespace)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, mr
}

func TestNew(t *testing.T) {
	t.Run("rejects empty namespace", func(t *testing.T) {
		_, err := New(&redis.Options{Addr: "localhost:6379"}, "")
		assert.ErrorIs(t, err, api.ErrInvalidArgument)
	})

	t.Run("rejects nil options", func(t *testing.T) {
		_, err := New(nil, "ns")
		assert.ErrorIs(t, err, api.ErrInvalidArgument)
	})

	t.Run("pings", func(t *testing.T) {
		s, _ := setupTestStore(t, "ns")
		assert.NoError(t, s.Ping(context.Background()))
		assert.Equal(t, "redis:ns", s.Name())
	})
}

func TestStore_CRUD(t *testing.T) {
	ctx := context.Background()
	s, mr := setupTestStore(t, "graph")

	_, err := s.Get(ctx, "missing")
	assert.ErrorIs(t, err, api.ErrNotFound)

	require.NoError(t, s.Put(ctx, "node:1", []byte("stv 0.9 0.8")))
	require.NoError(t, s.Put(ctx, "node:2", []byte("stv 1 1")))
	require.NoError(t, mr.Set("scratch:other:node:3", "foreign"))

	raw, err := mr.Get("scratch:graph:node:1")
	require.NoError(t, err)
	assert.Equal(t, "stv 0.9 0.8", raw)

	got, err := s.Get(ctx, "node:1")
	require.NoError(t, err)
	assert.Equal(t, "stv 0.9 0.8", string(got))

	keys, err := s.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"node:1", "node:2"}, keys)

	require.NoError(t, s.Delete(ctx, "node:1"))
	require.NoError(t, s.Delete(ctx, "node:1"))
	assert.False(t, mr.Exists("scratch:graph:node:1"))
}

func TestStore_ErrorsWhenRedisDown(t *testing.T) {
	ctx := context.Background()
	s, mr := setupTestStore(t, "graph")
	mr.Close()

	assert.Error(t, s.Ping(ctx))
	_, err := s.Get(ctx, "k")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, api.ErrNotFound)
	assert.Error(t, s.Put(ctx, "k", []byte("v")))
	_, err = s.Keys(ctx)
	assert.Error(t, err)
}

func TestStore_AsPooledWorkspaceParent(t *testing.T) {
	ctx := context.Background()
	s, _ := setupTestStore(t, "graph")
	require.NoError(t, s.Put(ctx, "base", []byte("permanent")))

	p, err := pool.New(space.Factory, pool.WithCapacity(2))
	require.NoError(t, err)

	err = p.With(s, func(w api.Workspace) error {
		ws := w.(*space.Space)
		got, err := ws.Get(ctx, "base")
		require.NoError(t, err)
		assert.Equal(t, "permanent", string(got))
		return ws.Put(ctx, "scratch", []byte("temp"))
	})
	require.NoError(t, err)

	_, err = s.Get(ctx, "scratch")
	assert.ErrorIs(t, err, api.ErrNotFound, "scratch writes stay out of Redis")
}
