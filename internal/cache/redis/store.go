package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/cd3331/pm-document-intelligence-sub000/internal/domain"
	"github.com/cd3331/pm-document-intelligence-sub000/internal/observability"
)

const (
	fieldData      = "data"
	fieldCreatedAt = "created_at"
	fieldExpiresAt = "expires_at"
	fieldHitCount  = "hit_count"

	scanBatch = 256
)

// hitScript increments the hit count only while the hash exists, so a key
// that expired after the read is never recreated without a TTL.
var hitScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 1 then
	return redis.call("HINCRBY", KEYS[1], ARGV[1], 1)
end
return -1
`)

// Store implements domain.CacheStore on Redis hashes. Redis expires keys on
// its own; expires_at is also checked on read so a lagging expiry is never served.
type Store struct {
	client *redis.Client
	now    func() time.Time
}

// NewStore creates a new Redis cache store.
func NewStore(client *redis.Client) *Store {
	return &Store{
		client: client,
		now:    time.Now,
	}
}

// Get retrieves a live entry and increments its hit count.
func (s *Store) Get(ctx context.Context, key string) (*domain.CacheEntry, error) {
	fields, err := s.client.HGetAll(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrCacheMiss
		}
		return nil, fmt.Errorf("%w: hgetall failed: %w", domain.ErrCacheUnavailable, err)
	}
	if len(fields) == 0 {
		return nil, domain.ErrCacheMiss
	}

	entry := parseEntry(key, fields)
	if entry == nil {
		observability.FromContext(ctx).Warn("malformed cache hash, removing", observability.String("key", key))
		_ = s.client.Del(ctx, key).Err()
		return nil, domain.ErrCacheMiss
	}

	if entry.Expired(s.now()) {
		if delErr := s.client.Del(ctx, key).Err(); delErr != nil {
			observability.FromContext(ctx).Warn("failed to evict expired entry",
				observability.String("key", key),
				observability.Error(delErr))
		}
		return nil, domain.ErrCacheMiss
	}

	hits, err := s.incrementHits(ctx, key)
	if err != nil {
		return nil, err
	}
	entry.HitCount = hits

	return entry, nil
}

func (s *Store) incrementHits(ctx context.Context, key string) (int64, error) {
	hits, err := hitScript.Run(ctx, s.client, []string{key}, fieldHitCount).Int64()
	if err != nil {
		return 0, fmt.Errorf("%w: hit increment failed: %w", domain.ErrCacheUnavailable, err)
	}
	if hits < 0 {
		return 0, domain.ErrCacheMiss
	}
	return hits, nil
}

// Set stores a value. Concurrent writers to one key leave one complete value
// because the hash is written in a single MULTI/EXEC.
func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	now := s.now()
	var expiresAt int64
	if ttl > 0 {
		expiresAt = now.Add(ttl).UnixNano()
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, key)
	pipe.HSet(ctx, key,
		fieldData, value,
		fieldCreatedAt, now.UnixNano(),
		fieldExpiresAt, expiresAt,
		fieldHitCount, 0,
	)
	if ttl > 0 {
		pipe.PExpire(ctx, key, ttl)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%w: set failed: %w", domain.ErrCacheUnavailable, err)
	}
	return nil
}

// Stats scans keys under prefix and sums their hit counts.
func (s *Store) Stats(ctx context.Context, prefix string) (*domain.CacheStats, error) {
	stats := &domain.CacheStats{HitsPerEntry: make(map[string]int64)}

	iter := s.client.Scan(ctx, 0, prefix+"*", scanBatch).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		raw, err := s.client.HGet(ctx, key, fieldHitCount).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			return nil, fmt.Errorf("%w: hget failed: %w", domain.ErrCacheUnavailable, err)
		}
		hits, _ := strconv.ParseInt(raw, 10, 64)
		stats.Entries++
		stats.Hits += hits
		stats.HitsPerEntry[key] = hits
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("%w: scan failed: %w", domain.ErrCacheUnavailable, err)
	}

	return stats, nil
}

// Sweep is a no-op; Redis expires keys itself.
func (s *Store) Sweep(_ context.Context) (int, error) {
	return 0, nil
}

func parseEntry(key string, fields map[string]string) *domain.CacheEntry {
	data, ok := fields[fieldData]
	if !ok {
		return nil
	}

	entry := &domain.CacheEntry{Key: key, Value: []byte(data)}
	if v, parseErr := strconv.ParseInt(fields[fieldCreatedAt], 10, 64); parseErr == nil {
		entry.CreatedAt = time.Unix(0, v)
	}
	if v, parseErr := strconv.ParseInt(fields[fieldExpiresAt], 10, 64); parseErr == nil && v > 0 {
		entry.ExpiresAt = time.Unix(0, v)
	}
	if v, parseErr := strconv.ParseInt(fields[fieldHitCount], 10, 64); parseErr == nil {
		entry.HitCount = v
	}
	return entry
}
