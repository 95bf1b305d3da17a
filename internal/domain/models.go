package domain

import (
	"strings"
	"time"
)

// TaskType identifies the analysis performed on a document.
type TaskType string

const (
	TaskSummary        TaskType = "summary"
	TaskActionItems    TaskType = "action-items"
	TaskRiskAssessment TaskType = "risk-assessment"
	TaskQA             TaskType = "qa"
	TaskSynthesis      TaskType = "synthesis"
)

// Known reports whether t is one of the declared task types.
func (t TaskType) Known() bool {
	switch t {
	case TaskSummary, TaskActionItems, TaskRiskAssessment, TaskQA, TaskSynthesis:
		return true
	default:
		return false
	}
}

// DocumentType is the caller-declared kind of document.
type DocumentType string

const (
	DocMeetingNotes  DocumentType = "meeting-notes"
	DocProjectPlan   DocumentType = "project-plan"
	DocStatusReport  DocumentType = "status-report"
	DocTechnicalSpec DocumentType = "technical-spec"
	DocRequirements  DocumentType = "requirements"
	DocUnknown       DocumentType = "unknown"
)

// Label returns a human-readable name for prompts.
func (d DocumentType) Label() string {
	if d == "" {
		return string(DocUnknown)
	}
	return strings.ReplaceAll(string(d), "-", " ")
}

// ComplexityTier is a coarse classification of how much reasoning a task needs.
type ComplexityTier int

const (
	ComplexitySimple ComplexityTier = iota
	ComplexityModerate
	ComplexityComplex
)

// String returns the tier name.
func (c ComplexityTier) String() string {
	switch c {
	case ComplexitySimple:
		return "SIMPLE"
	case ComplexityModerate:
		return "MODERATE"
	case ComplexityComplex:
		return "COMPLEX"
	default:
		return "UNKNOWN"
	}
}

// ModelTier names a class of model the router can select.
type ModelTier string

const (
	TierEconomy    ModelTier = "economy"
	TierReasoning  ModelTier = "reasoning"
	TierStructured ModelTier = "structured"
	TierBalanced   ModelTier = "balanced"
)

// Priorities are caller weights in [0,1]. They need not sum to 1.
type Priorities struct {
	Cost     float64 `json:"cost"     validate:"gte=0,lte=1"`
	Speed    float64 `json:"speed"    validate:"gte=0,lte=1"`
	Accuracy float64 `json:"accuracy" validate:"gte=0,lte=1"`
}

// FewShotExample is one input/output demonstration for the prompt.
type FewShotExample struct {
	Input  string `json:"input"`
	Output string `json:"output"`
}

// TaskRequest is an immutable per-invocation request.
type TaskRequest struct {
	TaskType        TaskType          `json:"task_type"`
	DocumentType    DocumentType      `json:"document_type"`
	Content         string            `json:"content"`
	Priorities      Priorities        `json:"priorities"`
	FewShotExamples []FewShotExample  `json:"few_shot_examples,omitempty"`
	Options         map[string]string `json:"options,omitempty"`
	TenantID        string            `json:"tenant_id,omitempty"`

	// Deferrable marks the request as not latency-critical, making it eligible for batching.
	Deferrable bool `json:"deferrable,omitempty"`

	// ForceModel bypasses the decision table. Used to retry on a different tier.
	ForceModel string `json:"force_model,omitempty"`
}

// Prompt is a provider-ready system/user message pair.
type Prompt struct {
	System string `json:"system"`
	User   string `json:"user"`
}

// RoutingDecision is produced per request and consumed immediately.
type RoutingDecision struct {
	ModelID    string
	Tier       ModelTier
	Rule       string
	Complexity ComplexityTier
	CacheKey   string
	Cached     bool

	// CachedResult is set on a cache hit.
	CachedResult *TaskResult

	// Prompt is nil on a cache hit.
	Prompt *Prompt
}

// Usage tracks token consumption for one model call.
type Usage struct {
	TokensIn  int      `json:"tokens_in"`
	TokensOut int      `json:"tokens_out"`
	CostUSD   *float64 `json:"cost_usd,omitempty"`
}

// ModelCall is the input to a model invocation client.
type ModelCall struct {
	ModelID string
	Prompt  Prompt
	Timeout time.Duration
}

// ModelResponse is what a model invocation client returns.
type ModelResponse struct {
	Text       string
	Usage      Usage
	LatencyMS  int64
	Confidence *float64
}

// TaskResult is the cached, serializable result of a task.
type TaskResult struct {
	Text      string    `json:"text"`
	ModelID   string    `json:"model_id"`
	Usage     Usage     `json:"usage"`
	CreatedAt time.Time `json:"created_at"`
}

// InvokeResult is the outcome of route_and_invoke.
type InvokeResult struct {
	PredictionID string  `json:"prediction_id,omitempty"`
	Result       string  `json:"result"`
	ModelUsed    string  `json:"model_used"`
	Tier         string  `json:"tier,omitempty"`
	Cached       bool    `json:"cached"`
	CostUSD      float64 `json:"cost_usd"`
	LatencyMS    int64   `json:"latency_ms"`
}

// PredictionRecord is an append-only fact about one completed invocation.
type PredictionRecord struct {
	ID           string    `json:"id"`
	ModelVersion string    `json:"model_version"`
	TaskType     TaskType  `json:"task_type"`
	Prediction   string    `json:"prediction"`
	GroundTruth  *string   `json:"ground_truth,omitempty"`
	Confidence   *float64  `json:"confidence,omitempty"`
	LatencyMS    int64     `json:"latency_ms"`
	CostUSD      *float64  `json:"cost_usd,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// Labeled reports whether the record carries ground truth.
func (p PredictionRecord) Labeled() bool {
	return p.GroundTruth != nil
}

// Correct reports whether the prediction matches its ground truth after
// trimming and case folding. Unlabeled records are never correct.
func (p PredictionRecord) Correct() bool {
	if p.GroundTruth == nil {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(p.Prediction), strings.TrimSpace(*p.GroundTruth))
}

// Rating is a user's judgement of a result.
type Rating string

const (
	RatingPositive Rating = "positive"
	RatingNeutral  Rating = "neutral"
	RatingNegative Rating = "negative"
)

// Valid reports whether r is a declared rating.
func (r Rating) Valid() bool {
	return r == RatingPositive || r == RatingNeutral || r == RatingNegative
}

// FeedbackRecord links a rating to a prediction. Immutable once created.
type FeedbackRecord struct {
	ID             string            `json:"id"`
	PredictionID   string            `json:"prediction_id"`
	TaskType       TaskType          `json:"task_type"`
	ModelVersion   string            `json:"model_version"`
	Rating         Rating            `json:"rating"`
	Corrections    map[string]string `json:"corrections,omitempty"`
	SpecificIssues []string          `json:"specific_issues,omitempty"`
	SubmittedBy    string            `json:"submitted_by"`
	CreatedAt      time.Time         `json:"created_at"`
}

// Window is a half-open time range [Start, End).
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// Overlaps reports whether two windows share any instant.
func (w Window) Overlaps(other Window) bool {
	return w.Start.Before(other.End) && other.Start.Before(w.End)
}

// Valid reports whether the window has a positive length.
func (w Window) Valid() bool {
	return w.End.After(w.Start)
}

// AccuracyMetrics aggregates prediction records in a window.
type AccuracyMetrics struct {
	ModelVersion  string   `json:"model_version"`
	TaskType      TaskType `json:"task_type"`
	Accuracy      float64  `json:"accuracy"`
	Count         int      `json:"count"`
	Total         int      `json:"total"`
	AvgConfidence float64  `json:"avg_confidence"`
	AvgLatencyMS  float64  `json:"avg_latency_ms"`
	AvgCostUSD    float64  `json:"avg_cost_usd"`
}

// DriftStatus is the tri-state verdict of drift detection.
type DriftStatus string

const (
	DriftDetected     DriftStatus = "drift"
	DriftNone         DriftStatus = "no_drift"
	DriftInconclusive DriftStatus = "inconclusive"
)

// DriftReport is derived on demand and never a source of truth.
type DriftReport struct {
	ModelVersion     string                 `json:"model_version"`
	TaskType         TaskType               `json:"task_type"`
	Status           DriftStatus            `json:"status"`
	DriftDetected    bool                   `json:"drift_detected"`
	AccuracyDrift    float64                `json:"accuracy_drift"`
	Threshold        float64                `json:"threshold"`
	BaselineAccuracy float64                `json:"baseline_accuracy"`
	CurrentAccuracy  float64                `json:"current_accuracy"`
	BaselineCount    int                    `json:"baseline_count"`
	CurrentCount     int                    `json:"current_count"`
	Insufficient     *InsufficientDataError `json:"insufficient,omitempty"`
	ComputedAt       time.Time              `json:"computed_at"`
}

// Inconclusive reports whether the report could not reach a verdict.
func (d DriftReport) Inconclusive() bool {
	return d.Status == DriftInconclusive
}

// RetrainingRecommendation is a signal for an external retraining pipeline.
type RetrainingRecommendation struct {
	ShouldRetrain bool                     `json:"should_retrain"`
	Reasons       []string                 `json:"reasons"`
	NegativeRate  float64                  `json:"negative_rate"`
	Events        int                      `json:"events"`
	Opportunities []ImprovementOpportunity `json:"opportunities,omitempty"`
}

// ImprovementOpportunity is one ranked issue/task group.
type ImprovementOpportunity struct {
	Issue          string   `json:"issue"`
	TaskType       TaskType `json:"task_type"`
	Frequency      int      `json:"frequency"`
	Negatives      int      `json:"negatives"`
	NegativeWeight float64  `json:"negative_weight"`
	Score          float64  `json:"score"`
}

// CacheStats are read-only and eventually consistent.
type CacheStats struct {
	Entries        int64            `json:"entries"`
	Hits           int64            `json:"hits"`
	HitsPerEntry   map[string]int64 `json:"hits_per_entry,omitempty"`
	Namespace      string           `json:"namespace,omitempty"`
	BackendHealthy bool             `json:"backend_healthy"`
}
