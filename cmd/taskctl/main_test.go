package main

import (
	"bytes"
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	cachememory "github.com/cd3331/pm-document-intelligence-sub000/internal/cache/memory"
	"github.com/cd3331/pm-document-intelligence-sub000/internal/config"
	"github.com/cd3331/pm-document-intelligence-sub000/internal/domain"
	"github.com/cd3331/pm-document-intelligence-sub000/internal/store"
	"github.com/cd3331/pm-document-intelligence-sub000/internal/store/memory"
)

type nopEvents struct{}

func (nopEvents) Publish(context.Context, string, map[string]any) {}

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func testBackends(t *testing.T, s *memory.Store, c domain.CacheStore) (*backends, *bytes.Buffer) {
	t.Helper()
	out := &bytes.Buffer{}
	return &backends{
		cfg: &config.Config{
			Monitor:  config.MonitorConfig{MinSamples: 5, DriftThreshold: 0.05, ReportTTL: time.Minute},
			Feedback: config.FeedbackConfig{NegativeRateThreshold: 0.15, MinEvents: 5, Window: 30 * 24 * time.Hour},
			Cache:    config.CacheConfig{Namespace: "taskcache"},
		},
		out: out,
		now: func() time.Time { return now },
		openStore: func(context.Context) (store.Store, func(), error) {
			return s, func() {}, nil
		},
		openCache: func() (domain.CacheStore, func(), error) {
			return c, func() {}, nil
		},
		events: nopEvents{},
	}, out
}

func addPrediction(t *testing.T, s *memory.Store, id string, at time.Time, correct bool) {
	t.Helper()
	truth := "yes"
	prediction := "yes"
	if !correct {
		prediction = "no"
	}
	require.NoError(t, s.AppendPrediction(context.Background(), &domain.PredictionRecord{
		ID:           id,
		ModelVersion: "gpt-4o",
		TaskType:     domain.TaskSummary,
		Prediction:   prediction,
		GroundTruth:  &truth,
		LatencyMS:    100,
		Timestamp:    at,
	}))
}

func run(t *testing.T, b *backends, args ...string) error {
	t.Helper()
	root := newRootCmd(b)
	root.SetArgs(args)
	return root.Execute()
}

func TestSummaryCmd(t *testing.T) {
	t.Run("should print one row per model and task", func(t *testing.T) {
		s := memory.NewStore()
		for i := range 4 {
			addPrediction(t, s, fmt.Sprintf("p%d", i), now.Add(-time.Hour), i != 0)
		}
		b, out := testBackends(t, s, nil)

		require.NoError(t, run(t, b, "summary"))
		require.Contains(t, out.String(), "gpt-4o")
		require.Contains(t, out.String(), "0.750")
	})

	t.Run("should report an empty store", func(t *testing.T) {
		b, out := testBackends(t, memory.NewStore(), nil)

		require.NoError(t, run(t, b, "summary"))
		require.Contains(t, out.String(), "No predictions recorded.")
	})
}

func TestDriftCmd(t *testing.T) {
	t.Run("should flag an accuracy drop between adjacent windows", func(t *testing.T) {
		s := memory.NewStore()
		for i := range 10 {
			addPrediction(t, s, fmt.Sprintf("b%d", i), now.Add(-36*time.Hour), true)
			addPrediction(t, s, fmt.Sprintf("c%d", i), now.Add(-12*time.Hour), i >= 3)
		}
		b, out := testBackends(t, s, nil)

		require.NoError(t, run(t, b, "drift", "--model", "gpt-4o", "--window", "24h"))
		require.Contains(t, out.String(), "status:    drift")
	})

	t.Run("should be inconclusive without enough labeled records", func(t *testing.T) {
		s := memory.NewStore()
		addPrediction(t, s, "b0", now.Add(-36*time.Hour), true)
		b, out := testBackends(t, s, nil)

		require.NoError(t, run(t, b, "drift", "--model", "gpt-4o", "--window", "24h"))
		require.Contains(t, out.String(), "status:    inconclusive")
		require.Contains(t, out.String(), "reason:")
	})

	t.Run("should require a model", func(t *testing.T) {
		b, _ := testBackends(t, memory.NewStore(), nil)
		require.Error(t, run(t, b, "drift"))
	})
}

func TestAdjacentWindows(t *testing.T) {
	t.Run("should produce disjoint windows ending at now", func(t *testing.T) {
		baseline, current := adjacentWindows(now, time.Hour)

		require.False(t, baseline.Overlaps(current))
		require.True(t, current.Contains(now))
		require.Equal(t, baseline.End, current.Start)
		require.Equal(t, time.Hour, baseline.End.Sub(baseline.Start))
	})
}

func TestRetrainCmd(t *testing.T) {
	t.Run("should recommend retraining on a high negative rate", func(t *testing.T) {
		s := memory.NewStore()
		ctx := context.Background()
		for i := range 5 {
			rating := domain.RatingPositive
			if i < 2 {
				rating = domain.RatingNegative
			}
			require.NoError(t, s.AppendFeedback(ctx, &domain.FeedbackRecord{
				ID:             fmt.Sprintf("f%d", i),
				PredictionID:   "p",
				TaskType:       domain.TaskSummary,
				Rating:         rating,
				SpecificIssues: []string{"too-long"},
				CreatedAt:      now.Add(-time.Hour),
			}))
		}
		b, out := testBackends(t, s, nil)

		require.NoError(t, run(t, b, "retrain"))
		require.Contains(t, out.String(), "should retrain: true")
		require.Contains(t, out.String(), "too-long")
	})
}

func TestCacheCmd(t *testing.T) {
	t.Run("should sweep expired entries", func(t *testing.T) {
		clock := now
		c := cachememory.NewStore().WithClock(func() time.Time { return clock })
		require.NoError(t, c.Set(context.Background(), "taskcache:shared:a", []byte("x"), time.Minute))
		require.NoError(t, c.Set(context.Background(), "taskcache:shared:b", []byte("y"), time.Hour))
		clock = clock.Add(10 * time.Minute)
		b, out := testBackends(t, memory.NewStore(), c)

		require.NoError(t, run(t, b, "cache", "sweep"))
		require.Contains(t, out.String(), "Removed 1 expired entries.")
		require.Equal(t, 1, c.Len())
	})

	t.Run("should print stats for the namespace", func(t *testing.T) {
		c := cachememory.NewStore()
		require.NoError(t, c.Set(context.Background(), "taskcache:shared:a", []byte("x"), time.Hour))
		b, out := testBackends(t, memory.NewStore(), c)

		require.NoError(t, run(t, b, "cache", "stats"))
		require.Contains(t, out.String(), "Entries:   1")
	})

	t.Run("should fail when caching is disabled", func(t *testing.T) {
		b, _ := testBackends(t, memory.NewStore(), nil)
		require.Error(t, run(t, b, "cache", "sweep"))
	})
}
