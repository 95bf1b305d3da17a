package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cd3331/pm-document-intelligence-sub000/internal/domain"
)

func newTestStore(t *testing.T, now *time.Time) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "cache_test.db")
	s, err := New(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s.WithClock(func() time.Time { return *now })
}

func TestPutAndGet(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := newTestStore(t, &now)

	require.NoError(t, s.Set(ctx, "ns:summary:abc", []byte(`{"text":"hello"}`), time.Hour))

	entry, err := s.Get(ctx, "ns:summary:abc")
	require.NoError(t, err)
	require.Equal(t, `{"text":"hello"}`, string(entry.Value))
	require.Equal(t, int64(1), entry.HitCount)
	require.True(t, entry.CreatedAt.Equal(now))

	_, err = s.Get(ctx, "ns:summary:other")
	require.ErrorIs(t, err, domain.ErrCacheMiss)
}

func TestTTLExpiration(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := newTestStore(t, &now)

	require.NoError(t, s.Set(ctx, "k", []byte("v"), time.Minute))
	now = now.Add(time.Minute)

	_, err := s.Get(ctx, "k")
	require.ErrorIs(t, err, domain.ErrCacheMiss)

	var count int
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM cache_entries`).Scan(&count))
	require.Equal(t, 0, count, "expired entry should be evicted on read")
}

func TestOverwrite(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := newTestStore(t, &now)

	require.NoError(t, s.Set(ctx, "k", []byte("one"), time.Hour))
	require.NoError(t, s.Set(ctx, "k", []byte("two"), time.Hour))

	entry, err := s.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, "two", string(entry.Value))
}

func TestStatsAndSweep(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := newTestStore(t, &now)

	require.NoError(t, s.Set(ctx, "ns:a", []byte("1"), time.Hour))
	require.NoError(t, s.Set(ctx, "ns:b", []byte("2"), time.Second))
	require.NoError(t, s.Set(ctx, "zz:c", []byte("3"), time.Hour))
	_, _ = s.Get(ctx, "ns:a")
	_, _ = s.Get(ctx, "ns:a")

	stats, err := s.Stats(ctx, "ns:")
	require.NoError(t, err)
	require.Equal(t, int64(2), stats.Entries)
	require.Equal(t, int64(2), stats.Hits)

	now = now.Add(time.Minute)

	removed, err := s.Sweep(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, removed)

	stats, err = s.Stats(ctx, "ns:")
	require.NoError(t, err)
	require.Equal(t, int64(1), stats.Entries)
}
