// Package cache selects the response cache backend.
package cache

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/cd3331/pm-document-intelligence-sub000/internal/cache/memory"
	"github.com/cd3331/pm-document-intelligence-sub000/internal/cache/redis"
	"github.com/cd3331/pm-document-intelligence-sub000/internal/cache/sqlite"
	"github.com/cd3331/pm-document-intelligence-sub000/internal/config"
	"github.com/cd3331/pm-document-intelligence-sub000/internal/domain"
	"github.com/cd3331/pm-document-intelligence-sub000/internal/observability"
)

// Open returns the store named by cfg.Driver and a function releasing it.
// The "none" driver returns a nil store, disabling caching.
func Open(cfg *config.CacheConfig, redisCfg *config.RedisConfig) (domain.CacheStore, func(), error) {
	switch cfg.Driver {
	case "none":
		return nil, func() {}, nil
	case "", "memory":
		return memory.NewStore(), func() {}, nil
	case "redis":
		client := NewRedisClient(redisCfg)
		return redis.NewStore(client), func() { _ = client.Close() }, nil
	case "sqlite":
		s, err := sqlite.New(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { _ = s.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown cache driver %q", cfg.Driver)
	}
}

// NewRedisClient builds a client from the Redis settings.
func NewRedisClient(cfg *config.RedisConfig) *goredis.Client {
	return goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

// RunSweeper removes expired entries every interval until ctx ends.
func RunSweeper(ctx context.Context, store domain.CacheStore, interval time.Duration) {
	if store == nil || interval <= 0 {
		return
	}

	logger := observability.FromContext(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := store.Sweep(ctx)
			if err != nil {
				logger.Warn("cache sweep failed", observability.Error(err))
				continue
			}
			if removed > 0 {
				logger.Debug("cache sweep", observability.Int("removed", removed))
			}
		}
	}
}
