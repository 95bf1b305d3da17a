package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/cd3331/pm-document-intelligence-sub000/internal/domain"
	"github.com/cd3331/pm-document-intelligence-sub000/internal/observability"
)

const maxBodyBytes = 4 << 20

// TaskService is the surface the handler exposes over HTTP.
type TaskService interface {
	RouteAndInvoke(ctx context.Context, req *domain.TaskRequest) (*domain.InvokeResult, error)
	SubmitFeedback(ctx context.Context, sub *domain.FeedbackSubmission) (*domain.FeedbackRecord, error)
	RecordEvaluation(ctx context.Context, rec *domain.PredictionRecord) (*domain.PredictionRecord, error)
	PerformanceSummary(ctx context.Context, filter domain.SummaryFilter) ([]domain.AccuracyMetrics, error)
	DetectDrift(ctx context.Context, query domain.DriftQuery) (*domain.DriftReport, error)
	RetrainingRecommendation(ctx context.Context) (*domain.RetrainingRecommendation, error)
	CacheStats(ctx context.Context) (*domain.CacheStats, error)
}

// Handler handles HTTP requests.
type Handler struct {
	tasks     TaskService
	validator *validator.Validate
}

// NewHandler creates a new HTTP handler (DI constructor).
func NewHandler(tasks *domain.TaskService) *Handler {
	return newHandler(tasks)
}

func newHandler(tasks TaskService) *Handler {
	return &Handler{
		tasks:     tasks,
		validator: validator.New(),
	}
}

// HandleTask routes and invokes one task.
func (h *Handler) HandleTask(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req taskRequest
	if !h.decode(w, r, &req) {
		return
	}

	ctx := observability.WithTenant(observability.WithTaskType(r.Context(), req.TaskType), req.TenantID)
	logger := observability.FromContext(ctx)
	logger.Info("task request received",
		observability.String("document_type", req.DocumentType),
		observability.Int("content_bytes", len(req.Content)),
		observability.Bool("deferrable", req.Deferrable),
	)

	result, err := h.tasks.RouteAndInvoke(ctx, req.toDomain())
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	setCacheHeaders(w, result)
	writeJSON(ctx, w, http.StatusOK, result)
}

// HandleFeedback appends a feedback record.
func (h *Handler) HandleFeedback(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req feedbackRequest
	if !h.decode(w, r, &req) {
		return
	}

	rec, err := h.tasks.SubmitFeedback(r.Context(), req.toDomain())
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeJSON(r.Context(), w, http.StatusCreated, rec)
}

// HandlePredictions records a labeled evaluation of a model output.
func (h *Handler) HandlePredictions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req evaluationRequest
	if !h.decode(w, r, &req) {
		return
	}

	ctx := observability.WithModel(observability.WithTaskType(r.Context(), req.TaskType), req.ModelVersion)
	rec, err := h.tasks.RecordEvaluation(ctx, req.toDomain())
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(ctx, w, http.StatusCreated, rec)
}

// HandlePerformance returns grouped accuracy metrics.
func (h *Handler) HandlePerformance(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	since, err := parseTime(q.Get("since"))
	if err != nil {
		http.Error(w, fmt.Sprintf("invalid since: %v", err), http.StatusBadRequest)
		return
	}
	until, err := parseTime(q.Get("until"))
	if err != nil {
		http.Error(w, fmt.Sprintf("invalid until: %v", err), http.StatusBadRequest)
		return
	}

	metrics, err := h.tasks.PerformanceSummary(r.Context(), domain.SummaryFilter{
		ModelVersion: q.Get("model_version"),
		TaskType:     domain.TaskType(q.Get("task_type")),
		Window:       domain.Window{Start: since, End: until},
	})
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeJSON(r.Context(), w, http.StatusOK, performanceResponse{Metrics: metrics})
}

// HandleDrift compares accuracy between two windows.
func (h *Handler) HandleDrift(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req driftRequest
	if !h.decode(w, r, &req) {
		return
	}

	report, err := h.tasks.DetectDrift(r.Context(), req.toDomain())
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeJSON(r.Context(), w, http.StatusOK, report)
}

// HandleRetraining returns the retraining recommendation.
func (h *Handler) HandleRetraining(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	rec, err := h.tasks.RetrainingRecommendation(r.Context())
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeJSON(r.Context(), w, http.StatusOK, rec)
}

// HandleCacheStats returns response cache metrics. An unhealthy backend is
// reported in the body, not as a failure.
func (h *Handler) HandleCacheStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	stats, err := h.tasks.CacheStats(r.Context())
	if err != nil {
		observability.FromContext(r.Context()).Warn("cache stats unavailable", observability.Error(err))
		if stats == nil {
			stats = &domain.CacheStats{BackendHealthy: false}
		}
	}
	writeJSON(r.Context(), w, http.StatusOK, stats)
}

// HandleHealth handles health check requests.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(r.Context(), w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}

// decode reads and validates a JSON body, writing a 400 on failure.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return false
	}

	if err := h.validator.Struct(dst); err != nil {
		writeJSON(r.Context(), w, http.StatusBadRequest, errorResponse{Error: extractValidationErrors(err)})
		return false
	}
	return true
}

// setCacheHeaders exposes the cache outcome without changing the body.
func setCacheHeaders(w http.ResponseWriter, result *domain.InvokeResult) {
	if result.Cached {
		w.Header().Set("X-Task-Cache", "HIT")
	} else {
		w.Header().Set("X-Task-Cache", "MISS")
	}
	w.Header().Set("X-Task-Model", result.ModelUsed)
}

// statusFor maps the error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidRequest), errors.Is(err, domain.ErrOverlappingWindows):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrTemplateNotFound):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrModelUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeError(ctx context.Context, w http.ResponseWriter, err error) {
	status := statusFor(err)
	body := errorResponse{Error: err.Error()}

	var unavailable *domain.ModelUnavailableError
	if errors.As(err, &unavailable) {
		body.TaskType = string(unavailable.TaskType)
		body.Model = unavailable.ModelID
		body.Tier = string(unavailable.Tier)
		w.Header().Set("Retry-After", "5")
	}

	logger := observability.FromContext(ctx)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", observability.Int("status", status), observability.Error(err))
	} else {
		logger.Info("request rejected", observability.Int("status", status), observability.Error(err))
	}

	writeJSON(ctx, w, status, body)
}

func writeJSON(ctx context.Context, w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Already written status, can't change it, just log.
		observability.FromContext(ctx).Error("failed to encode response", observability.Error(err))
	}
}

// extractValidationErrors extracts validation error messages from validator errors.
func extractValidationErrors(err error) string {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) && len(validationErrors) > 0 {
		ve := validationErrors[0]
		return fmt.Sprintf("validation error: %s - %s", ve.Field(), ve.Tag())
	}
	return "validation error: invalid request"
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, s)
}
