// Package sqlite is a cache store backed by a SQLite file, for single-node
// deployments that want the cache to survive restarts.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/cd3331/pm-document-intelligence-sub000/internal/domain"
)

const createCacheTable = `
CREATE TABLE IF NOT EXISTS cache_entries (
	cache_key TEXT PRIMARY KEY,
	value BLOB NOT NULL,
	created_at INTEGER NOT NULL,
	expires_at INTEGER NOT NULL,
	hit_count INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_cache_expires ON cache_entries(expires_at);
`

// Store is an exact-match cache in SQLite. Timestamps are unix nanoseconds;
// expires_at = 0 means no expiry.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// New opens (or creates) the cache database at dbPath.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open cache db: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(createCacheTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate cache db: %w", err)
	}

	return &Store{db: db, now: time.Now}, nil
}

// WithClock overrides the clock. Intended for tests.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

// Get returns a live entry, deleting it instead if it has expired.
func (s *Store) Get(ctx context.Context, key string) (*domain.CacheEntry, error) {
	var (
		value     []byte
		createdAt int64
		expiresAt int64
		hits      int64
	)
	err := s.db.QueryRowContext(ctx,
		`UPDATE cache_entries SET hit_count = hit_count + 1
		 WHERE cache_key = ? AND (expires_at = 0 OR expires_at > ?)
		 RETURNING value, created_at, expires_at, hit_count`,
		key, s.now().UnixNano(),
	).Scan(&value, &createdAt, &expiresAt, &hits)
	if errors.Is(err, sql.ErrNoRows) {
		if _, delErr := s.db.ExecContext(ctx,
			`DELETE FROM cache_entries WHERE cache_key = ? AND expires_at != 0 AND expires_at <= ?`,
			key, s.now().UnixNano(),
		); delErr != nil {
			return nil, fmt.Errorf("%w: cache evict: %w", domain.ErrCacheUnavailable, delErr)
		}
		return nil, domain.ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("%w: cache get: %w", domain.ErrCacheUnavailable, err)
	}

	entry := &domain.CacheEntry{
		Key:       key,
		Value:     value,
		CreatedAt: time.Unix(0, createdAt),
		HitCount:  hits,
	}
	if expiresAt > 0 {
		entry.ExpiresAt = time.Unix(0, expiresAt)
	}
	return entry, nil
}

// Set stores a response. Last writer wins.
func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	now := s.now()
	var expiresAt int64
	if ttl > 0 {
		expiresAt = now.Add(ttl).UnixNano()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO cache_entries (cache_key, value, created_at, expires_at, hit_count)
		 VALUES (?, ?, ?, ?, 0)`,
		key, value, now.UnixNano(), expiresAt,
	)
	if err != nil {
		return fmt.Errorf("%w: cache put: %w", domain.ErrCacheUnavailable, err)
	}
	return nil
}

// Stats returns live entry and hit counts under prefix.
func (s *Store) Stats(ctx context.Context, prefix string) (*domain.CacheStats, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT cache_key, hit_count FROM cache_entries
		 WHERE substr(cache_key, 1, ?) = ? AND (expires_at = 0 OR expires_at > ?)`,
		len(prefix), prefix, s.now().UnixNano(),
	)
	if err != nil {
		return nil, fmt.Errorf("cache stats: %w", err)
	}
	defer rows.Close()

	stats := &domain.CacheStats{HitsPerEntry: make(map[string]int64)}
	for rows.Next() {
		var key string
		var hits int64
		if err := rows.Scan(&key, &hits); err != nil {
			return nil, fmt.Errorf("cache stats scan: %w", err)
		}
		stats.Entries++
		stats.Hits += hits
		stats.HitsPerEntry[key] = hits
	}
	return stats, rows.Err()
}

// Sweep removes expired entries.
func (s *Store) Sweep(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM cache_entries WHERE expires_at != 0 AND expires_at <= ?`,
		s.now().UnixNano(),
	)
	if err != nil {
		return 0, fmt.Errorf("cache sweep: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
