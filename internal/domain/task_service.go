package domain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/cd3331/pm-document-intelligence-sub000/internal/observability"
	"github.com/cd3331/pm-document-intelligence-sub000/internal/retry"
)

// TaskServiceConfig tunes the end-to-end path.
type TaskServiceConfig struct {
	CacheTTL       time.Duration
	CallTimeout    time.Duration
	Retry          retry.Policy
	CoalesceMisses bool
}

// TaskService is the subsystem's public surface: route, invoke, cache, record.
type TaskService struct {
	router         Router
	registry       ProviderRegistry
	costCalculator CostCalculator
	cache          ResponseCache
	monitor        PerformanceMonitor
	feedback       FeedbackService
	batcher        Batcher
	cfg            TaskServiceConfig
	flight         singleflight.Group
	now            func() time.Time
}

// TaskServiceDeps groups the collaborators of TaskService. Batcher may be nil.
type TaskServiceDeps struct {
	Router         Router
	Registry       ProviderRegistry
	CostCalculator CostCalculator
	Cache          ResponseCache
	Monitor        PerformanceMonitor
	Feedback       FeedbackService
	Batcher        Batcher
}

// NewTaskService creates a new task service (DI constructor).
func NewTaskService(deps TaskServiceDeps, cfg TaskServiceConfig) *TaskService {
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 60 * time.Second
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = retry.DefaultPolicy()
	}

	return &TaskService{
		router:         deps.Router,
		registry:       deps.Registry,
		costCalculator: deps.CostCalculator,
		cache:          deps.Cache,
		monitor:        deps.Monitor,
		feedback:       deps.Feedback,
		batcher:        deps.Batcher,
		cfg:            cfg,
		now:            time.Now,
	}
}

// RouteAndInvoke is the single end-to-end entry point.
func (s *TaskService) RouteAndInvoke(ctx context.Context, req *TaskRequest) (*InvokeResult, error) {
	if req == nil {
		return nil, fmt.Errorf("%w: request cannot be nil", ErrInvalidRequest)
	}

	start := s.now()
	ctx = observability.WithTaskType(ctx, string(req.TaskType))

	decision, err := s.router.Route(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("routing failed: %w", err)
	}

	ctx = observability.WithModel(ctx, decision.ModelID)
	logger := observability.FromContext(ctx)

	if decision.Cached && decision.CachedResult != nil {
		latency := s.now().Sub(start).Milliseconds()
		zero := 0.0
		id := s.recordPrediction(ctx, &PredictionRecord{
			ModelVersion: decision.CachedResult.ModelID,
			TaskType:     req.TaskType,
			Prediction:   decision.CachedResult.Text,
			LatencyMS:    latency,
			CostUSD:      &zero,
		})

		logger.Info("served from cache", observability.String("cache_key", decision.CacheKey))
		return &InvokeResult{
			PredictionID: id,
			Result:       decision.CachedResult.Text,
			ModelUsed:    decision.CachedResult.ModelID,
			Tier:         string(decision.Tier),
			Cached:       true,
			CostUSD:      0,
			LatencyMS:    latency,
		}, nil
	}

	resp, err := s.invoke(ctx, req, decision)
	if err != nil {
		logger.Error("model invocation failed", observability.Error(err))
		return nil, err
	}

	cost := s.costOf(ctx, decision.ModelID, resp.Usage)
	resp.Usage.CostUSD = &cost

	latency := resp.LatencyMS
	if latency <= 0 {
		latency = s.now().Sub(start).Milliseconds()
	}

	if s.cache != nil {
		result := &TaskResult{
			Text:      resp.Text,
			ModelID:   decision.ModelID,
			Usage:     resp.Usage,
			CreatedAt: s.now(),
		}
		if setErr := s.cache.Set(ctx, LookupFor(req), result, s.cfg.CacheTTL); setErr != nil {
			logger.Warn("failed to store in cache, continuing", observability.Error(setErr))
		}
	}

	id := s.recordPrediction(ctx, &PredictionRecord{
		ModelVersion: decision.ModelID,
		TaskType:     req.TaskType,
		Prediction:   resp.Text,
		Confidence:   resp.Confidence,
		LatencyMS:    latency,
		CostUSD:      &cost,
	})

	logger.Info("task completed",
		observability.String("tier", string(decision.Tier)),
		observability.String("rule", decision.Rule),
		observability.Float64("cost_usd", cost),
		observability.Int64("latency_ms", latency))

	return &InvokeResult{
		PredictionID: id,
		Result:       resp.Text,
		ModelUsed:    decision.ModelID,
		Tier:         string(decision.Tier),
		Cached:       false,
		CostUSD:      cost,
		LatencyMS:    latency,
	}, nil
}

// invoke dispatches the model call directly, through the batcher, or through
// the miss-coalescing group.
func (s *TaskService) invoke(ctx context.Context, req *TaskRequest, decision *RoutingDecision) (*ModelResponse, error) {
	call := func(callCtx context.Context) (*ModelResponse, error) {
		return s.invokeWithRetry(callCtx, req.TaskType, decision)
	}

	if req.Deferrable && s.batcher != nil {
		inner := call
		call = func(callCtx context.Context) (*ModelResponse, error) {
			return s.batcher.Submit(callCtx, BatchKey{TaskType: req.TaskType, ModelID: decision.ModelID}, inner)
		}
	}

	if !s.cfg.CoalesceMisses || decision.CacheKey == "" {
		return call(ctx)
	}

	// The shared call runs detached from any single caller; each waiter
	// still honours its own deadline. Attempts stay bounded by CallTimeout.
	ch := s.flight.DoChan(decision.CacheKey+"|"+decision.ModelID, func() (any, error) {
		return call(context.WithoutCancel(ctx))
	})

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("request abandoned: %w", ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		resp, _ := res.Val.(*ModelResponse)
		if res.Shared {
			observability.FromContext(ctx).Debug("coalesced concurrent cache miss")
			cp := *resp
			return &cp, nil
		}
		return resp, nil
	}
}

// invokeWithRetry wraps the model client in the retry policy, with a hard
// timeout on every attempt.
func (s *TaskService) invokeWithRetry(ctx context.Context, taskType TaskType, decision *RoutingDecision) (*ModelResponse, error) {
	unavailable := func(attempts int, err error) error {
		return &ModelUnavailableError{
			TaskType: taskType,
			ModelID:  decision.ModelID,
			Tier:     decision.Tier,
			Attempts: attempts,
			Err:      err,
		}
	}

	client, err := s.registry.GetByModel(ctx, decision.ModelID)
	if err != nil {
		return nil, unavailable(0, err)
	}
	if decision.Prompt == nil {
		return nil, unavailable(0, errors.New("no rendered prompt"))
	}

	logger := observability.FromContext(ctx)
	res, err := retry.Do(ctx, s.cfg.Retry, func(ctx context.Context, attempt int) retry.Outcome[*ModelResponse] {
		callCtx, cancel := context.WithTimeout(ctx, s.cfg.CallTimeout)
		defer cancel()

		begin := s.now()
		resp, callErr := client.Invoke(callCtx, &ModelCall{
			ModelID: decision.ModelID,
			Prompt:  *decision.Prompt,
			Timeout: s.cfg.CallTimeout,
		})
		if callErr == nil {
			if resp.LatencyMS <= 0 {
				resp.LatencyMS = s.now().Sub(begin).Milliseconds()
			}
			return retry.Ok(resp)
		}

		if ctx.Err() != nil {
			return retry.Fatal[*ModelResponse](ctx.Err())
		}

		invErr := &ModelInvocationError{ModelID: decision.ModelID, Attempt: attempt, Err: callErr}
		logger.Warn("model call failed",
			observability.Int("attempt", attempt),
			observability.Error(invErr))
		return retry.Retryable[*ModelResponse](invErr)
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("request abandoned: %w", ctx.Err())
		}
		return nil, unavailable(res.Attempts, err)
	}
	return res.Value, nil
}

func (s *TaskService) costOf(ctx context.Context, model string, usage Usage) float64 {
	if s.costCalculator == nil {
		if usage.CostUSD != nil {
			return *usage.CostUSD
		}
		return 0
	}
	cost, err := s.costCalculator.Calculate(ctx, model, usage)
	if err != nil {
		observability.FromContext(ctx).Warn("cost calculation failed", observability.Error(err))
		return 0
	}
	return cost
}

// recordPrediction is best-effort; a monitor failure never fails the request.
func (s *TaskService) recordPrediction(ctx context.Context, rec *PredictionRecord) (id string) {
	if s.monitor == nil {
		return ""
	}

	rec.ID = uuid.NewString()
	rec.Timestamp = s.now()

	logger := observability.FromContext(ctx)
	defer func() {
		if r := recover(); r != nil {
			logger.Error("prediction recording panicked", observability.Any("panic", r))
			id = ""
		}
	}()

	if err := s.monitor.Record(ctx, rec); err != nil {
		logger.Error("failed to record prediction", observability.Error(err))
		return ""
	}
	return rec.ID
}

// RecordEvaluation appends a prediction that carries ground truth, such as a
// reviewed or offline-evaluated result. These labeled records are the input
// to accuracy metrics and drift detection.
func (s *TaskService) RecordEvaluation(ctx context.Context, rec *PredictionRecord) (*PredictionRecord, error) {
	if s.monitor == nil {
		return nil, errors.New("performance monitoring is not configured")
	}
	if rec == nil {
		return nil, fmt.Errorf("%w: evaluation cannot be nil", ErrInvalidRequest)
	}
	if rec.GroundTruth == nil {
		return nil, fmt.Errorf("%w: evaluation needs a ground truth", ErrInvalidRequest)
	}

	stored := *rec
	stored.ID = uuid.NewString()
	if stored.Timestamp.IsZero() {
		stored.Timestamp = s.now()
	}

	if err := s.monitor.Record(ctx, &stored); err != nil {
		return nil, fmt.Errorf("failed to record evaluation: %w", err)
	}

	observability.FromContext(ctx).Info("evaluation recorded",
		observability.String("prediction_id", stored.ID),
		observability.String("model_version", stored.ModelVersion),
		observability.Bool("correct", stored.Correct()))
	return &stored, nil
}

// SubmitFeedback appends a feedback record for an existing prediction.
func (s *TaskService) SubmitFeedback(ctx context.Context, sub *FeedbackSubmission) (*FeedbackRecord, error) {
	if s.feedback == nil {
		return nil, errors.New("feedback collection is not configured")
	}
	return s.feedback.Submit(ctx, sub)
}

// PerformanceSummary returns accuracy metrics grouped per model version and task type.
func (s *TaskService) PerformanceSummary(ctx context.Context, filter SummaryFilter) ([]AccuracyMetrics, error) {
	if s.monitor == nil {
		return nil, errors.New("performance monitoring is not configured")
	}
	return s.monitor.Summary(ctx, filter)
}

// DetectDrift compares accuracy between two disjoint windows.
func (s *TaskService) DetectDrift(ctx context.Context, query DriftQuery) (*DriftReport, error) {
	if s.monitor == nil {
		return nil, errors.New("performance monitoring is not configured")
	}
	return s.monitor.DetectDrift(ctx, query)
}

// RetrainingRecommendation reports whether feedback warrants retraining.
func (s *TaskService) RetrainingRecommendation(ctx context.Context) (*RetrainingRecommendation, error) {
	if s.feedback == nil {
		return nil, errors.New("feedback collection is not configured")
	}
	return s.feedback.Recommendation(ctx)
}

// CacheStats returns response cache metrics.
func (s *TaskService) CacheStats(ctx context.Context) (*CacheStats, error) {
	if s.cache == nil {
		return &CacheStats{BackendHealthy: true}, nil
	}
	return s.cache.Stats(ctx)
}
