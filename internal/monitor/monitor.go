// Package monitor records prediction outcomes and derives accuracy metrics and
// drift verdicts from them.
package monitor

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cd3331/pm-document-intelligence-sub000/internal/domain"
	"github.com/cd3331/pm-document-intelligence-sub000/internal/observability"
)

// Config tunes drift detection.
type Config struct {
	// MinSamples is the fewest labeled records a window needs for a verdict.
	MinSamples int

	// DriftThreshold applies when a query leaves its threshold at zero.
	DriftThreshold float64

	// ReportTTL caches drift reports. Zero disables the cache.
	ReportTTL time.Duration
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		MinSamples:     20,
		DriftThreshold: 0.05,
		ReportTTL:      5 * time.Minute,
	}
}

type cachedReport struct {
	report    domain.DriftReport
	expiresAt time.Time
}

// Monitor implements domain.PerformanceMonitor over a prediction store.
type Monitor struct {
	store  domain.PredictionStore
	events domain.EventPublisher
	cfg    Config
	now    func() time.Time

	mu      sync.Mutex
	reports map[string]cachedReport
}

var _ domain.PerformanceMonitor = (*Monitor)(nil)

// New creates a performance monitor (DI constructor). events may be nil.
func New(store domain.PredictionStore, events domain.EventPublisher, cfg Config) *Monitor {
	if cfg.MinSamples <= 0 {
		cfg.MinSamples = DefaultConfig().MinSamples
	}
	if cfg.DriftThreshold <= 0 {
		cfg.DriftThreshold = DefaultConfig().DriftThreshold
	}

	return &Monitor{
		store:   store,
		events:  events,
		cfg:     cfg,
		now:     time.Now,
		reports: make(map[string]cachedReport),
	}
}

// WithClock overrides the clock. Intended for tests.
func (m *Monitor) WithClock(now func() time.Time) *Monitor {
	m.now = now
	return m
}

// Record appends a prediction. Only identity fields are required; ground
// truth, confidence and cost may be absent.
func (m *Monitor) Record(ctx context.Context, rec *domain.PredictionRecord) error {
	if rec == nil {
		return fmt.Errorf("%w: prediction record cannot be nil", domain.ErrInvalidRequest)
	}
	if rec.ID == "" || rec.ModelVersion == "" {
		return fmt.Errorf("%w: prediction record needs an id and a model version", domain.ErrInvalidRequest)
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = m.now()
	}

	if err := m.store.AppendPrediction(ctx, rec); err != nil {
		return fmt.Errorf("failed to record prediction: %w", err)
	}
	return nil
}

// AccuracyMetrics aggregates one model/task pair inside window.
func (m *Monitor) AccuracyMetrics(ctx context.Context, modelVersion string, taskType domain.TaskType, window domain.Window) (*domain.AccuracyMetrics, error) {
	recs, err := m.store.QueryPredictions(ctx, domain.PredictionFilter{
		ModelVersion: modelVersion,
		TaskType:     taskType,
		Since:        window.Start,
		Until:        window.End,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load predictions: %w", err)
	}

	metrics := aggregate(recs)
	metrics.ModelVersion = modelVersion
	metrics.TaskType = taskType
	return &metrics, nil
}

// Summary returns metrics per (model version, task type) group. Filter fields
// that are set narrow the groups.
func (m *Monitor) Summary(ctx context.Context, filter domain.SummaryFilter) ([]domain.AccuracyMetrics, error) {
	recs, err := m.store.QueryPredictions(ctx, domain.PredictionFilter{
		ModelVersion: filter.ModelVersion,
		TaskType:     filter.TaskType,
		Since:        filter.Window.Start,
		Until:        filter.Window.End,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load predictions: %w", err)
	}

	type groupKey struct {
		model string
		task  domain.TaskType
	}
	groups := make(map[groupKey][]domain.PredictionRecord)
	for _, rec := range recs {
		k := groupKey{model: rec.ModelVersion, task: rec.TaskType}
		groups[k] = append(groups[k], rec)
	}

	out := make([]domain.AccuracyMetrics, 0, len(groups))
	for k, group := range groups {
		metrics := aggregate(group)
		metrics.ModelVersion = k.model
		metrics.TaskType = k.task
		out = append(out, metrics)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ModelVersion != out[j].ModelVersion {
			return out[i].ModelVersion < out[j].ModelVersion
		}
		return out[i].TaskType < out[j].TaskType
	})
	return out, nil
}

// DetectDrift compares labeled accuracy between two disjoint windows. Drift is
// the drop from baseline to current; windows below MinSamples yield an
// inconclusive report instead of a verdict.
func (m *Monitor) DetectDrift(ctx context.Context, q domain.DriftQuery) (*domain.DriftReport, error) {
	if !q.Baseline.Valid() || !q.Current.Valid() {
		return nil, fmt.Errorf("%w: windows must end after they start", domain.ErrInvalidRequest)
	}
	if q.Baseline.Overlaps(q.Current) {
		return nil, domain.ErrOverlappingWindows
	}
	if q.Threshold <= 0 {
		q.Threshold = m.cfg.DriftThreshold
	}

	cacheKey := reportKey(q)
	if report, ok := m.cachedReport(cacheKey); ok {
		return &report, nil
	}

	var baseline, current *domain.AccuracyMetrics
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		baseline, err = m.AccuracyMetrics(gctx, q.ModelVersion, q.TaskType, q.Baseline)
		return err
	})
	g.Go(func() error {
		var err error
		current, err = m.AccuracyMetrics(gctx, q.ModelVersion, q.TaskType, q.Current)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report := domain.DriftReport{
		ModelVersion:     q.ModelVersion,
		TaskType:         q.TaskType,
		Threshold:        q.Threshold,
		BaselineAccuracy: baseline.Accuracy,
		CurrentAccuracy:  current.Accuracy,
		BaselineCount:    baseline.Count,
		CurrentCount:     current.Count,
		AccuracyDrift:    baseline.Accuracy - current.Accuracy,
		ComputedAt:       m.now(),
	}

	switch {
	case baseline.Count < m.cfg.MinSamples:
		report.Status = domain.DriftInconclusive
		report.Insufficient = &domain.InsufficientDataError{Window: "baseline", Eligible: baseline.Count, Minimum: m.cfg.MinSamples}
	case current.Count < m.cfg.MinSamples:
		report.Status = domain.DriftInconclusive
		report.Insufficient = &domain.InsufficientDataError{Window: "current", Eligible: current.Count, Minimum: m.cfg.MinSamples}
	case report.AccuracyDrift > q.Threshold:
		report.Status = domain.DriftDetected
		report.DriftDetected = true
	default:
		report.Status = domain.DriftNone
	}

	logger := observability.FromContext(ctx)
	if report.Insufficient != nil {
		logger.Info("drift check inconclusive", observability.Error(report.Insufficient))
	}
	if report.DriftDetected {
		logger.Warn("accuracy drift detected",
			observability.String("model_version", q.ModelVersion),
			observability.Float64("accuracy_drift", report.AccuracyDrift))
		if m.events != nil {
			m.events.Publish(ctx, domain.EventDriftDetected, map[string]any{
				"model_version":     q.ModelVersion,
				"task_type":         string(q.TaskType),
				"accuracy_drift":    report.AccuracyDrift,
				"baseline_accuracy": report.BaselineAccuracy,
				"current_accuracy":  report.CurrentAccuracy,
				"threshold":         q.Threshold,
			})
		}
	}

	m.storeReport(cacheKey, report)
	return &report, nil
}

func (m *Monitor) cachedReport(key string) (domain.DriftReport, bool) {
	if m.cfg.ReportTTL <= 0 {
		return domain.DriftReport{}, false
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	cached, ok := m.reports[key]
	if !ok {
		return domain.DriftReport{}, false
	}
	if !m.now().Before(cached.expiresAt) {
		delete(m.reports, key)
		return domain.DriftReport{}, false
	}
	return cached.report, true
}

func (m *Monitor) storeReport(key string, report domain.DriftReport) {
	if m.cfg.ReportTTL <= 0 {
		return
	}

	m.mu.Lock()
	m.reports[key] = cachedReport{report: report, expiresAt: m.now().Add(m.cfg.ReportTTL)}
	m.mu.Unlock()
}

func reportKey(q domain.DriftQuery) string {
	return fmt.Sprintf("%s|%s|%d-%d|%d-%d|%g", q.ModelVersion, q.TaskType,
		q.Baseline.Start.UnixNano(), q.Baseline.End.UnixNano(),
		q.Current.Start.UnixNano(), q.Current.End.UnixNano(), q.Threshold)
}

// aggregate computes metrics over the labeled records; Total counts all of them.
func aggregate(recs []domain.PredictionRecord) domain.AccuracyMetrics {
	metrics := domain.AccuracyMetrics{Total: len(recs)}

	var (
		correct              int
		confSum, costSum     float64
		confCount, costCount int
		latencySum           int64
	)
	for _, rec := range recs {
		if !rec.Labeled() {
			continue
		}
		metrics.Count++
		if rec.Correct() {
			correct++
		}
		latencySum += rec.LatencyMS
		if rec.Confidence != nil {
			confSum += *rec.Confidence
			confCount++
		}
		if rec.CostUSD != nil {
			costSum += *rec.CostUSD
			costCount++
		}
	}

	if metrics.Count == 0 {
		return metrics
	}
	metrics.Accuracy = float64(correct) / float64(metrics.Count)
	metrics.AvgLatencyMS = float64(latencySum) / float64(metrics.Count)
	if confCount > 0 {
		metrics.AvgConfidence = confSum / float64(confCount)
	}
	if costCount > 0 {
		metrics.AvgCostUSD = costSum / float64(costCount)
	}
	return metrics
}
