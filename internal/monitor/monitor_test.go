package monitor_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cd3331/pm-document-intelligence-sub000/internal/domain"
	"github.com/cd3331/pm-document-intelligence-sub000/internal/monitor"
	"github.com/cd3331/pm-document-intelligence-sub000/internal/store/memory"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []string
}

func (p *recordingPublisher) Publish(_ context.Context, eventType string, _ map[string]any) {
	p.mu.Lock()
	p.events = append(p.events, eventType)
	p.mu.Unlock()
}

type failingStore struct {
	domain.PredictionStore
}

func (failingStore) QueryPredictions(context.Context, domain.PredictionFilter) ([]domain.PredictionRecord, error) {
	return nil, errors.New("store offline")
}

var (
	baseline = domain.Window{
		Start: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
	}
	current = domain.Window{
		Start: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	}
)

// seed records total labeled predictions in window, correct of which match
// their ground truth.
func seed(t *testing.T, m *monitor.Monitor, w domain.Window, prefix string, total, correct int) {
	t.Helper()
	truth := "yes"
	for i := range total {
		prediction := "yes"
		if i >= correct {
			prediction = "no"
		}
		require.NoError(t, m.Record(context.Background(), &domain.PredictionRecord{
			ID:           fmt.Sprintf("%s-%d", prefix, i),
			ModelVersion: "gpt-4o",
			TaskType:     domain.TaskRiskAssessment,
			Prediction:   prediction,
			GroundTruth:  &truth,
			LatencyMS:    100,
			Timestamp:    w.Start.Add(time.Duration(i) * time.Minute),
		}))
	}
}

func query() domain.DriftQuery {
	return domain.DriftQuery{
		ModelVersion: "gpt-4o",
		TaskType:     domain.TaskRiskAssessment,
		Baseline:     baseline,
		Current:      current,
		Threshold:    0.05,
	}
}

func TestRecord(t *testing.T) {
	m := monitor.New(memory.NewStore(), nil, monitor.Config{})

	t.Run("should accept records without optional fields", func(t *testing.T) {
		err := m.Record(context.Background(), &domain.PredictionRecord{ID: "p1", ModelVersion: "gpt-4o", TaskType: domain.TaskSummary})
		require.NoError(t, err)
	})

	t.Run("should reject records without identity", func(t *testing.T) {
		err := m.Record(context.Background(), &domain.PredictionRecord{ModelVersion: "gpt-4o"})
		require.ErrorIs(t, err, domain.ErrInvalidRequest)
	})
}

func TestAccuracyMetrics(t *testing.T) {
	ctx := context.Background()
	m := monitor.New(memory.NewStore(), nil, monitor.Config{})

	truth := "Done"
	conf := 0.9
	cost := 0.02
	records := []*domain.PredictionRecord{
		{ID: "a", Prediction: " done ", GroundTruth: &truth, Confidence: &conf, CostUSD: &cost, LatencyMS: 100},
		{ID: "b", Prediction: "pending", GroundTruth: &truth, LatencyMS: 300},
		{ID: "c", Prediction: "unlabeled", LatencyMS: 900},
	}
	for _, rec := range records {
		rec.ModelVersion = "gpt-4o"
		rec.TaskType = domain.TaskActionItems
		rec.Timestamp = current.Start.Add(time.Hour)
		require.NoError(t, m.Record(ctx, rec))
	}

	metrics, err := m.AccuracyMetrics(ctx, "gpt-4o", domain.TaskActionItems, current)
	require.NoError(t, err)
	require.Equal(t, 2, metrics.Count, "only labeled records are eligible")
	require.Equal(t, 3, metrics.Total)
	require.InDelta(t, 0.5, metrics.Accuracy, 1e-9)
	require.InDelta(t, 200, metrics.AvgLatencyMS, 1e-9)
	require.InDelta(t, 0.9, metrics.AvgConfidence, 1e-9)
	require.InDelta(t, 0.02, metrics.AvgCostUSD, 1e-9)

	t.Run("should return zero metrics for an empty window", func(t *testing.T) {
		metrics, err := m.AccuracyMetrics(ctx, "gpt-4o", domain.TaskActionItems, baseline)
		require.NoError(t, err)
		require.Zero(t, metrics.Count)
		require.Zero(t, metrics.Accuracy)
	})
}

func TestDetectDrift(t *testing.T) {
	ctx := context.Background()

	t.Run("should detect a drop beyond the threshold", func(t *testing.T) {
		events := &recordingPublisher{}
		m := monitor.New(memory.NewStore(), events, monitor.Config{MinSamples: 20})
		seed(t, m, baseline, "b", 100, 93)
		seed(t, m, current, "c", 100, 80)

		report, err := m.DetectDrift(ctx, query())
		require.NoError(t, err)
		require.True(t, report.DriftDetected)
		require.Equal(t, domain.DriftDetected, report.Status)
		require.InDelta(t, 0.13, report.AccuracyDrift, 1e-9)
		require.Equal(t, []string{domain.EventDriftDetected}, events.events)
	})

	t.Run("should be inconclusive when a window is under-populated", func(t *testing.T) {
		m := monitor.New(memory.NewStore(), nil, monitor.Config{MinSamples: 20})
		seed(t, m, baseline, "b", 40, 38)
		seed(t, m, current, "c", 8, 2)

		report, err := m.DetectDrift(ctx, query())
		require.NoError(t, err)
		require.True(t, report.Inconclusive())
		require.False(t, report.DriftDetected)
		require.NotNil(t, report.Insufficient)
		require.Equal(t, "current", report.Insufficient.Window)
		require.Equal(t, 8, report.Insufficient.Eligible)
		require.Equal(t, 20, report.Insufficient.Minimum)
	})

	t.Run("should not flag an accuracy increase", func(t *testing.T) {
		m := monitor.New(memory.NewStore(), nil, monitor.Config{MinSamples: 20})
		seed(t, m, baseline, "b", 20, 10)
		seed(t, m, current, "c", 20, 20)

		report, err := m.DetectDrift(ctx, query())
		require.NoError(t, err)
		require.Equal(t, domain.DriftNone, report.Status)
		require.Less(t, report.AccuracyDrift, 0.0)
	})

	t.Run("should reject overlapping windows", func(t *testing.T) {
		m := monitor.New(memory.NewStore(), nil, monitor.Config{})
		q := query()
		q.Current.Start = baseline.End.Add(-time.Hour)

		_, err := m.DetectDrift(ctx, q)
		require.ErrorIs(t, err, domain.ErrOverlappingWindows)
	})

	t.Run("should propagate store failures", func(t *testing.T) {
		m := monitor.New(failingStore{}, nil, monitor.Config{})
		_, err := m.DetectDrift(ctx, query())
		require.Error(t, err)
	})
}

func TestDriftMonotonicity(t *testing.T) {
	ctx := context.Background()

	previous := -1.0
	for correct := 20; correct >= 0; correct -= 4 {
		m := monitor.New(memory.NewStore(), nil, monitor.Config{MinSamples: 20, ReportTTL: -1})
		seed(t, m, baseline, "b", 20, 18)
		seed(t, m, current, "c", 20, correct)

		report, err := m.DetectDrift(ctx, query())
		require.NoError(t, err)
		require.GreaterOrEqual(t, report.AccuracyDrift, previous)
		previous = report.AccuracyDrift
	}
}

func TestDriftReportCache(t *testing.T) {
	ctx := context.Background()
	now := current.End
	m := monitor.New(memory.NewStore(), nil, monitor.Config{MinSamples: 1, ReportTTL: time.Minute}).
		WithClock(func() time.Time { return now })
	seed(t, m, baseline, "b", 10, 10)
	seed(t, m, current, "c", 10, 10)

	first, err := m.DetectDrift(ctx, query())
	require.NoError(t, err)
	require.Equal(t, domain.DriftNone, first.Status)

	seed(t, m, current, "late", 10, 0)

	t.Run("should serve the cached report within its ttl", func(t *testing.T) {
		cached, err := m.DetectDrift(ctx, query())
		require.NoError(t, err)
		require.Equal(t, first.CurrentCount, cached.CurrentCount)
	})

	t.Run("should recompute after the ttl", func(t *testing.T) {
		now = now.Add(2 * time.Minute)
		fresh, err := m.DetectDrift(ctx, query())
		require.NoError(t, err)
		require.Equal(t, 20, fresh.CurrentCount)
		require.True(t, fresh.DriftDetected)
	})
}

func TestSummaryGroups(t *testing.T) {
	ctx := context.Background()
	m := monitor.New(memory.NewStore(), nil, monitor.Config{})
	truth := "x"

	for i, pair := range []struct {
		model string
		task  domain.TaskType
	}{
		{"gpt-4o", domain.TaskSummary},
		{"gpt-4o", domain.TaskQA},
		{"gpt-3.5-turbo", domain.TaskSummary},
		{"gpt-4o", domain.TaskSummary},
	} {
		require.NoError(t, m.Record(ctx, &domain.PredictionRecord{
			ID:           fmt.Sprintf("p%d", i),
			ModelVersion: pair.model,
			TaskType:     pair.task,
			Prediction:   "x",
			GroundTruth:  &truth,
			Timestamp:    current.Start,
		}))
	}

	all, err := m.Summary(ctx, domain.SummaryFilter{Window: current})
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.Equal(t, "gpt-3.5-turbo", all[0].ModelVersion)
	require.Equal(t, 2, all[2].Count)

	onlySummary, err := m.Summary(ctx, domain.SummaryFilter{TaskType: domain.TaskSummary, Window: current})
	require.NoError(t, err)
	require.Len(t, onlySummary, 2)
}
