package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cd3331/pm-document-intelligence-sub000/internal/config"
	"github.com/cd3331/pm-document-intelligence-sub000/internal/store/memory"
	"github.com/cd3331/pm-document-intelligence-sub000/internal/store/sqlite"
)

func TestOpen(t *testing.T) {
	ctx := context.Background()

	t.Run("should default to memory", func(t *testing.T) {
		s, closeFn, err := Open(ctx, &config.StoreConfig{})
		require.NoError(t, err)
		defer closeFn()
		require.IsType(t, &memory.Store{}, s)
	})

	t.Run("should open sqlite at the configured path", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "predictions.db")
		s, closeFn, err := Open(ctx, &config.StoreConfig{Driver: "sqlite", SQLitePath: path})
		require.NoError(t, err)
		defer closeFn()
		require.IsType(t, &sqlite.Store{}, s)
		require.FileExists(t, path)
	})

	t.Run("should reject unknown drivers", func(t *testing.T) {
		_, _, err := Open(ctx, &config.StoreConfig{Driver: "mongo"})
		require.Error(t, err)
	})
}
