package domain

import (
	"context"
	"time"
)

// ModelClient invokes one provider's models.
type ModelClient interface {
	// Invoke sends a rendered prompt to the model and returns its text and usage.
	Invoke(ctx context.Context, call *ModelCall) (*ModelResponse, error)

	// Name returns the provider identifier.
	Name() string

	// IsModelSupported checks if the provider serves the given model.
	IsModelSupported(ctx context.Context, model string) bool

	// SupportedModels returns the models the provider serves.
	SupportedModels(ctx context.Context) []string
}

// ProviderRegistry manages available model clients.
type ProviderRegistry interface {
	// Register adds a client to the registry.
	Register(ctx context.Context, client ModelClient) error

	// Get retrieves a client by provider name.
	Get(ctx context.Context, providerName string) (ModelClient, error)

	// GetByModel retrieves the client serving a model.
	GetByModel(ctx context.Context, model string) (ModelClient, error)

	// List returns all provider names.
	List(ctx context.Context) ([]string, error)
}

// CacheEntry is a stored value with its bookkeeping.
type CacheEntry struct {
	Key       string
	Value     []byte
	CreatedAt time.Time
	ExpiresAt time.Time
	HitCount  int64
}

// Expired reports whether the entry's TTL has elapsed at now.
func (e *CacheEntry) Expired(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && !now.Before(e.ExpiresAt)
}

// CacheStore is the key-value backend of the response cache. Implementations
// return ErrCacheMiss for absent or expired keys, physically removing expired
// ones, and wrap backend failures with ErrCacheUnavailable.
type CacheStore interface {
	Get(ctx context.Context, key string) (*CacheEntry, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Stats(ctx context.Context, prefix string) (*CacheStats, error)
	Sweep(ctx context.Context) (int, error)
}

// CacheLookup holds every input that determines a cache key.
type CacheLookup struct {
	TaskType        TaskType
	DocumentType    DocumentType
	Content         string
	FewShotExamples []FewShotExample
	Options         map[string]string
	TenantID        string
}

// LookupFor builds the cache lookup for a request.
func LookupFor(req *TaskRequest) CacheLookup {
	return CacheLookup{
		TaskType:        req.TaskType,
		DocumentType:    req.DocumentType,
		Content:         req.Content,
		FewShotExamples: req.FewShotExamples,
		Options:         req.Options,
		TenantID:        req.TenantID,
	}
}

// ResponseCache maps (task, content fingerprint, options) to a prior result.
type ResponseCache interface {
	// Key returns the deterministic fingerprint for a lookup.
	Key(lookup CacheLookup) string

	// Get returns ErrCacheMiss when nothing live is stored.
	Get(ctx context.Context, lookup CacheLookup) (*TaskResult, error)

	// Set stores a result. Last writer wins.
	Set(ctx context.Context, lookup CacheLookup, result *TaskResult, ttl time.Duration) error

	// Stats returns entry and hit counts.
	Stats(ctx context.Context) (*CacheStats, error)
}

// PromptAssembler renders a task template into a provider-ready prompt.
type PromptAssembler interface {
	Assemble(taskType TaskType, docType DocumentType, content string, examples []FewShotExample) (*Prompt, error)
}

// Router selects a model for a request, consulting the cache first.
type Router interface {
	Route(ctx context.Context, req *TaskRequest) (*RoutingDecision, error)
}

// BatchKey groups compatible requests.
type BatchKey struct {
	TaskType TaskType
	ModelID  string
}

// String renders the key for logs and maps.
func (k BatchKey) String() string {
	return string(k.TaskType) + "|" + k.ModelID
}

// Invocation is one deferred model call.
type Invocation func(ctx context.Context) (*ModelResponse, error)

// Batcher accumulates deferrable invocations and dispatches them together.
type Batcher interface {
	// Submit enqueues an invocation and blocks until it completes, the caller's
	// context ends, or the latency ceiling forces an individual dispatch.
	Submit(ctx context.Context, key BatchKey, call Invocation) (*ModelResponse, error)
}

// PredictionFilter selects prediction records. Zero fields match everything.
type PredictionFilter struct {
	ModelVersion string
	TaskType     TaskType
	Since        time.Time
	Until        time.Time
}

// PredictionStore is durable append-only storage for prediction records.
type PredictionStore interface {
	AppendPrediction(ctx context.Context, rec *PredictionRecord) error
	GetPrediction(ctx context.Context, id string) (*PredictionRecord, error)
	QueryPredictions(ctx context.Context, filter PredictionFilter) ([]PredictionRecord, error)
}

// FeedbackFilter selects feedback records. Zero fields match everything.
type FeedbackFilter struct {
	PredictionID string
	Since        time.Time
	Until        time.Time
}

// FeedbackStore is durable append-only storage for feedback records.
type FeedbackStore interface {
	AppendFeedback(ctx context.Context, rec *FeedbackRecord) error
	QueryFeedback(ctx context.Context, filter FeedbackFilter) ([]FeedbackRecord, error)
}

// SummaryFilter narrows a performance summary. Empty fields group instead of filter.
type SummaryFilter struct {
	ModelVersion string
	TaskType     TaskType
	Window       Window
}

// DriftQuery parameterizes drift detection.
type DriftQuery struct {
	ModelVersion string
	TaskType     TaskType
	Baseline     Window
	Current      Window
	Threshold    float64
}

// PerformanceMonitor records predictions and derives metrics from them.
type PerformanceMonitor interface {
	Record(ctx context.Context, rec *PredictionRecord) error
	AccuracyMetrics(ctx context.Context, modelVersion string, taskType TaskType, window Window) (*AccuracyMetrics, error)
	Summary(ctx context.Context, filter SummaryFilter) ([]AccuracyMetrics, error)
	DetectDrift(ctx context.Context, query DriftQuery) (*DriftReport, error)
}

// FeedbackSubmission is the caller input for a feedback record.
type FeedbackSubmission struct {
	PredictionID   string            `json:"prediction_id"`
	Rating         Rating            `json:"rating"`
	Corrections    map[string]string `json:"corrections,omitempty"`
	SpecificIssues []string          `json:"specific_issues,omitempty"`
	SubmittedBy    string            `json:"submitted_by"`
}

// FeedbackService collects feedback and derives improvement signals.
type FeedbackService interface {
	Submit(ctx context.Context, sub *FeedbackSubmission) (*FeedbackRecord, error)
	ShouldTriggerRetraining(ctx context.Context) (bool, error)
	IdentifyImprovementOpportunities(ctx context.Context) ([]ImprovementOpportunity, error)
	Recommendation(ctx context.Context) (*RetrainingRecommendation, error)
}

// EventPublisher is the fire-and-forget notification channel.
type EventPublisher interface {
	Publish(ctx context.Context, eventType string, data map[string]any)
}

const (
	EventDriftDetected         = "model.drift_detected"
	EventRetrainingRecommended = "model.retraining_recommended"
)
