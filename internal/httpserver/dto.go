package httpserver

import (
	"time"

	"github.com/cd3331/pm-document-intelligence-sub000/internal/domain"
)

type taskRequest struct {
	TaskType        string                  `json:"task_type"          validate:"required,max=64"`
	DocumentType    string                  `json:"document_type"      validate:"omitempty,max=64"`
	Content         string                  `json:"content"`
	Priorities      domain.Priorities       `json:"priorities"`
	FewShotExamples []domain.FewShotExample `json:"few_shot_examples"  validate:"max=10"`
	Options         map[string]string       `json:"options"            validate:"max=16"`
	TenantID        string                  `json:"tenant_id"          validate:"omitempty,max=128"`
	Deferrable      bool                    `json:"deferrable"`
	ForceModel      string                  `json:"force_model"        validate:"omitempty,max=128"`
}

func (r *taskRequest) toDomain() *domain.TaskRequest {
	docType := domain.DocumentType(r.DocumentType)
	if docType == "" {
		docType = domain.DocUnknown
	}
	return &domain.TaskRequest{
		TaskType:        domain.TaskType(r.TaskType),
		DocumentType:    docType,
		Content:         r.Content,
		Priorities:      r.Priorities,
		FewShotExamples: r.FewShotExamples,
		Options:         r.Options,
		TenantID:        r.TenantID,
		Deferrable:      r.Deferrable,
		ForceModel:      r.ForceModel,
	}
}

type feedbackRequest struct {
	PredictionID   string            `json:"prediction_id"   validate:"required,max=64"`
	Rating         string            `json:"rating"          validate:"required,oneof=positive neutral negative"`
	Corrections    map[string]string `json:"corrections"     validate:"max=32"`
	SpecificIssues []string          `json:"specific_issues" validate:"max=20,dive,required,max=64"`
	SubmittedBy    string            `json:"submitted_by"    validate:"omitempty,max=256"`
}

func (r *feedbackRequest) toDomain() *domain.FeedbackSubmission {
	return &domain.FeedbackSubmission{
		PredictionID:   r.PredictionID,
		Rating:         domain.Rating(r.Rating),
		Corrections:    r.Corrections,
		SpecificIssues: r.SpecificIssues,
		SubmittedBy:    r.SubmittedBy,
	}
}

type evaluationRequest struct {
	ModelVersion string     `json:"model_version" validate:"required,max=128"`
	TaskType     string     `json:"task_type"     validate:"required,max=64"`
	Prediction   string     `json:"prediction"`
	GroundTruth  *string    `json:"ground_truth"  validate:"required"`
	Confidence   *float64   `json:"confidence"    validate:"omitempty,gte=0,lte=1"`
	LatencyMS    int64      `json:"latency_ms"    validate:"gte=0"`
	CostUSD      *float64   `json:"cost_usd"      validate:"omitempty,gte=0"`
	Timestamp    *time.Time `json:"timestamp"`
}

func (r *evaluationRequest) toDomain() *domain.PredictionRecord {
	rec := &domain.PredictionRecord{
		ModelVersion: r.ModelVersion,
		TaskType:     domain.TaskType(r.TaskType),
		Prediction:   r.Prediction,
		GroundTruth:  r.GroundTruth,
		Confidence:   r.Confidence,
		LatencyMS:    r.LatencyMS,
		CostUSD:      r.CostUSD,
	}
	if r.Timestamp != nil {
		rec.Timestamp = *r.Timestamp
	}
	return rec
}

type driftRequest struct {
	ModelVersion  string    `json:"model_version"  validate:"required"`
	TaskType      string    `json:"task_type"`
	BaselineStart time.Time `json:"baseline_start" validate:"required"`
	BaselineEnd   time.Time `json:"baseline_end"   validate:"required,gtfield=BaselineStart"`
	CurrentStart  time.Time `json:"current_start"  validate:"required"`
	CurrentEnd    time.Time `json:"current_end"    validate:"required,gtfield=CurrentStart"`
	Threshold     float64   `json:"threshold"      validate:"gte=0,lte=1"`
}

func (r *driftRequest) toDomain() domain.DriftQuery {
	return domain.DriftQuery{
		ModelVersion: r.ModelVersion,
		TaskType:     domain.TaskType(r.TaskType),
		Baseline:     domain.Window{Start: r.BaselineStart, End: r.BaselineEnd},
		Current:      domain.Window{Start: r.CurrentStart, End: r.CurrentEnd},
		Threshold:    r.Threshold,
	}
}

type performanceResponse struct {
	Metrics []domain.AccuracyMetrics `json:"metrics"`
}

type errorResponse struct {
	Error    string `json:"error"`
	TaskType string `json:"task_type,omitempty"`
	Model    string `json:"model,omitempty"`
	Tier     string `json:"tier,omitempty"`
}
