package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cd3331/pm-document-intelligence-sub000/internal/domain"
)

func newCacheCmd(b *backends) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the response cache",
	}

	sweepCmd := &cobra.Command{
		Use:   "sweep",
		Short: "Remove expired cache entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, closeFn, err := openCache(b)
			if err != nil {
				return err
			}
			defer closeFn()

			removed, err := s.Sweep(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(b.out, "Removed %d expired entries.\n", removed)
			return nil
		},
	}

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Show cache statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, closeFn, err := openCache(b)
			if err != nil {
				return err
			}
			defer closeFn()

			fp := domain.Fingerprinter{Namespace: b.cfg.Cache.Namespace}
			stats, err := domain.NewResponseCacheService(s, fp).Stats(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(b.out, "Namespace: %s\nEntries:   %d\nHits:      %d\n", stats.Namespace, stats.Entries, stats.Hits)
			return nil
		},
	}

	cmd.AddCommand(sweepCmd, statsCmd)
	return cmd
}

func openCache(b *backends) (domain.CacheStore, func(), error) {
	s, closeFn, err := b.openCache()
	if err != nil {
		return nil, nil, err
	}
	if s == nil {
		closeFn()
		return nil, nil, errors.New("caching is disabled (CACHE_DRIVER=none)")
	}
	return s, closeFn, nil
}
