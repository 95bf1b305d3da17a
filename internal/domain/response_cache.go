package domain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cd3331/pm-document-intelligence-sub000/internal/observability"
)

// ResponseCacheService implements ResponseCache over a CacheStore.
type ResponseCacheService struct {
	store         CacheStore
	fingerprinter Fingerprinter
}

// NewResponseCacheService creates a response cache. A nil store yields a cache
// that always misses.
func NewResponseCacheService(store CacheStore, fingerprinter Fingerprinter) *ResponseCacheService {
	return &ResponseCacheService{
		store:         store,
		fingerprinter: fingerprinter,
	}
}

// Key returns the fingerprint for a lookup.
func (s *ResponseCacheService) Key(lookup CacheLookup) string {
	return s.fingerprinter.Key(lookup)
}

// Get retrieves a cached result. Expired entries behave as misses.
func (s *ResponseCacheService) Get(ctx context.Context, lookup CacheLookup) (*TaskResult, error) {
	if s.store == nil {
		return nil, ErrCacheMiss
	}

	logger := observability.FromContext(ctx)
	key := s.Key(lookup)

	entry, err := s.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, ErrCacheMiss) {
			return nil, ErrCacheMiss
		}
		logger.Warn("cache get failed", observability.String("cache_key", key), observability.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrCacheUnavailable, err)
	}

	var result TaskResult
	if unmarshalErr := json.Unmarshal(entry.Value, &result); unmarshalErr != nil {
		// A corrupt value is unusable; treat it as absent.
		logger.Warn("discarding undecodable cache entry",
			observability.String("cache_key", key),
			observability.Error(unmarshalErr))
		return nil, ErrCacheMiss
	}

	logger.Debug("cache entry found",
		observability.String("cache_key", key),
		observability.Int64("hit_count", entry.HitCount))

	return &result, nil
}

// Set stores a result under the lookup's key.
func (s *ResponseCacheService) Set(
	ctx context.Context,
	lookup CacheLookup,
	result *TaskResult,
	ttl time.Duration,
) error {
	if result == nil {
		return errors.New("result cannot be nil")
	}
	if s.store == nil {
		return nil
	}

	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}

	key := s.Key(lookup)
	if setErr := s.store.Set(ctx, key, data, ttl); setErr != nil {
		if errors.Is(setErr, ErrCacheUnavailable) {
			return setErr
		}
		return fmt.Errorf("%w: %w", ErrCacheUnavailable, setErr)
	}

	observability.FromContext(ctx).Debug("cache entry stored",
		observability.String("cache_key", key),
		observability.Duration("ttl", ttl))
	return nil
}

// Stats returns cache metrics for this cache's namespace.
func (s *ResponseCacheService) Stats(ctx context.Context) (*CacheStats, error) {
	if s.store == nil {
		return &CacheStats{BackendHealthy: true}, nil
	}

	ns := s.fingerprinter.namespace()
	stats, err := s.store.Stats(ctx, s.fingerprinter.Prefix())
	if err != nil {
		return &CacheStats{Namespace: ns, BackendHealthy: false},
			fmt.Errorf("%w: %w", ErrCacheUnavailable, err)
	}
	stats.Namespace = ns
	stats.BackendHealthy = true
	return stats, nil
}
