// Package store selects the durable prediction and feedback backend.
package store

import (
	"context"
	"fmt"

	"github.com/cd3331/pm-document-intelligence-sub000/internal/config"
	"github.com/cd3331/pm-document-intelligence-sub000/internal/domain"
	"github.com/cd3331/pm-document-intelligence-sub000/internal/store/memory"
	"github.com/cd3331/pm-document-intelligence-sub000/internal/store/postgres"
	"github.com/cd3331/pm-document-intelligence-sub000/internal/store/sqlite"
)

// Store holds both prediction and feedback records.
type Store interface {
	domain.PredictionStore
	domain.FeedbackStore
}

// Open returns the backend named by cfg.Driver and a function releasing it.
func Open(ctx context.Context, cfg *config.StoreConfig) (Store, func(), error) {
	switch cfg.Driver {
	case "", "memory":
		return memory.NewStore(), func() {}, nil
	case "sqlite":
		s, err := sqlite.New(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { _ = s.Close() }, nil
	case "postgres":
		s, err := postgres.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}
