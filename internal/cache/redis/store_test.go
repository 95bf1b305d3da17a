package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/cd3331/pm-document-intelligence-sub000/internal/cache/redis"
	"github.com/cd3331/pm-document-intelligence-sub000/internal/domain"
)

func newStore(t *testing.T) (*redis.Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return redis.NewStore(client), mr
}

func TestStore_GetSet(t *testing.T) {
	ctx := context.Background()

	t.Run("should round trip a value and count hits", func(t *testing.T) {
		store, _ := newStore(t)
		require.NoError(t, store.Set(ctx, "ns:k", []byte(`{"text":"hi"}`), time.Minute))

		first, err := store.Get(ctx, "ns:k")
		require.NoError(t, err)
		require.Equal(t, []byte(`{"text":"hi"}`), first.Value)
		require.Equal(t, int64(1), first.HitCount)

		second, err := store.Get(ctx, "ns:k")
		require.NoError(t, err)
		require.Equal(t, int64(2), second.HitCount)
	})

	t.Run("should miss after redis expiry", func(t *testing.T) {
		store, mr := newStore(t)
		require.NoError(t, store.Set(ctx, "ns:k", []byte("v"), time.Minute))

		mr.FastForward(2 * time.Minute)

		_, err := store.Get(ctx, "ns:k")
		require.ErrorIs(t, err, domain.ErrCacheMiss)
	})

	t.Run("should not recreate a key that expired before the hit increment", func(t *testing.T) {
		store, mr := newStore(t)
		require.NoError(t, store.Set(ctx, "ns:k", []byte("v"), time.Minute))

		hits, err := redis.IncrementHits(store, ctx, "ns:k")
		require.NoError(t, err)
		require.Equal(t, int64(1), hits)

		mr.FastForward(2 * time.Minute)

		_, err = redis.IncrementHits(store, ctx, "ns:k")
		require.ErrorIs(t, err, domain.ErrCacheMiss)
		require.False(t, mr.Exists("ns:k"))

		stats, err := store.Stats(ctx, "ns:")
		require.NoError(t, err)
		require.Zero(t, stats.Entries)
	})

	t.Run("should reset hit count on overwrite", func(t *testing.T) {
		store, _ := newStore(t)
		require.NoError(t, store.Set(ctx, "ns:k", []byte("a"), time.Minute))
		_, _ = store.Get(ctx, "ns:k")
		require.NoError(t, store.Set(ctx, "ns:k", []byte("b"), time.Minute))

		entry, err := store.Get(ctx, "ns:k")

		require.NoError(t, err)
		require.Equal(t, []byte("b"), entry.Value)
		require.Equal(t, int64(1), entry.HitCount)
	})

	t.Run("should report unavailable when redis is down", func(t *testing.T) {
		store, mr := newStore(t)
		mr.Close()

		_, err := store.Get(ctx, "ns:k")
		require.ErrorIs(t, err, domain.ErrCacheUnavailable)

		err = store.Set(ctx, "ns:k", []byte("v"), time.Minute)
		require.ErrorIs(t, err, domain.ErrCacheUnavailable)
	})
}

func TestStore_Stats(t *testing.T) {
	ctx := context.Background()
	store, _ := newStore(t)

	require.NoError(t, store.Set(ctx, "ns:a", []byte("1"), time.Minute))
	require.NoError(t, store.Set(ctx, "ns:b", []byte("2"), time.Minute))
	require.NoError(t, store.Set(ctx, "other:c", []byte("3"), time.Minute))
	_, _ = store.Get(ctx, "ns:a")

	stats, err := store.Stats(ctx, "ns:")

	require.NoError(t, err)
	require.Equal(t, int64(2), stats.Entries)
	require.Equal(t, int64(1), stats.Hits)
	require.Equal(t, int64(1), stats.HitsPerEntry["ns:a"])
}
