// Command taskctl inspects the prediction store, drift, retraining signals and
// the response cache.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cd3331/pm-document-intelligence-sub000/internal/cache"
	"github.com/cd3331/pm-document-intelligence-sub000/internal/config"
	"github.com/cd3331/pm-document-intelligence-sub000/internal/domain"
	"github.com/cd3331/pm-document-intelligence-sub000/internal/observability"
	"github.com/cd3331/pm-document-intelligence-sub000/internal/store"
)

var version = "dev"

// backends opens the stores a command works on. Tests replace it.
type backends struct {
	cfg       *config.Config
	out       io.Writer
	now       func() time.Time
	openStore func(ctx context.Context) (store.Store, func(), error)
	openCache func() (domain.CacheStore, func(), error)
	events    domain.EventPublisher
}

func defaultBackends() *backends {
	cfg := config.Load()
	return &backends{
		cfg: cfg,
		out: os.Stdout,
		now: time.Now,
		openStore: func(ctx context.Context) (store.Store, func(), error) {
			return store.Open(ctx, &cfg.Store)
		},
		openCache: func() (domain.CacheStore, func(), error) {
			return cache.Open(&cfg.Cache, &cfg.Redis)
		},
		events: observability.NewEventBus(zap.NewNop()),
	}
}

func main() {
	root := newRootCmd(defaultBackends())
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd(b *backends) *cobra.Command {
	root := &cobra.Command{
		Use:           "taskctl",
		Short:         "Operate the task routing, feedback and cache subsystem",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newSummaryCmd(b),
		newDriftCmd(b),
		newRetrainCmd(b),
		newCacheCmd(b),
	)
	return root
}
