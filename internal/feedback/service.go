// Package feedback collects user ratings of predictions and turns them into
// retraining signals and ranked improvement opportunities.
package feedback

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cd3331/pm-document-intelligence-sub000/internal/domain"
	"github.com/cd3331/pm-document-intelligence-sub000/internal/observability"
)

const neutralWeight = 0.5

// Config sets the retraining trigger.
type Config struct {
	// NegativeRateThreshold must be strictly exceeded.
	NegativeRateThreshold float64
	MinEvents             int
	Window                time.Duration
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		NegativeRateThreshold: 0.15,
		MinEvents:             20,
		Window:                30 * 24 * time.Hour,
	}
}

// Service implements domain.FeedbackService.
type Service struct {
	predictions domain.PredictionStore
	feedback    domain.FeedbackStore
	events      domain.EventPublisher
	cfg         Config
	now         func() time.Time
}

var _ domain.FeedbackService = (*Service)(nil)

// NewService creates a feedback service (DI constructor). events may be nil.
func NewService(predictions domain.PredictionStore, feedback domain.FeedbackStore, events domain.EventPublisher, cfg Config) *Service {
	def := DefaultConfig()
	if cfg.NegativeRateThreshold <= 0 {
		cfg.NegativeRateThreshold = def.NegativeRateThreshold
	}
	if cfg.MinEvents <= 0 {
		cfg.MinEvents = def.MinEvents
	}
	if cfg.Window <= 0 {
		cfg.Window = def.Window
	}

	return &Service{
		predictions: predictions,
		feedback:    feedback,
		events:      events,
		cfg:         cfg,
		now:         time.Now,
	}
}

// WithClock overrides the clock. Intended for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Submit appends a new feedback record. Every submission creates a distinct
// record, even for the same prediction.
func (s *Service) Submit(ctx context.Context, sub *domain.FeedbackSubmission) (*domain.FeedbackRecord, error) {
	if sub == nil {
		return nil, fmt.Errorf("%w: feedback cannot be nil", domain.ErrInvalidRequest)
	}
	if sub.PredictionID == "" {
		return nil, fmt.Errorf("%w: prediction_id is required", domain.ErrInvalidRequest)
	}
	if !sub.Rating.Valid() {
		return nil, fmt.Errorf("%w: unknown rating %q", domain.ErrInvalidRequest, sub.Rating)
	}

	pred, err := s.predictions.GetPrediction(ctx, sub.PredictionID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve prediction: %w", err)
	}

	submittedBy := strings.TrimSpace(sub.SubmittedBy)
	if submittedBy == "" {
		submittedBy = "anonymous"
	}

	rec := &domain.FeedbackRecord{
		ID:             uuid.NewString(),
		PredictionID:   pred.ID,
		TaskType:       pred.TaskType,
		ModelVersion:   pred.ModelVersion,
		Rating:         sub.Rating,
		Corrections:    sub.Corrections,
		SpecificIssues: normalizeIssues(sub.SpecificIssues),
		SubmittedBy:    submittedBy,
		CreatedAt:      s.now(),
	}
	if err := s.feedback.AppendFeedback(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to store feedback: %w", err)
	}

	observability.FromContext(ctx).Info("feedback recorded",
		observability.String("prediction_id", rec.PredictionID),
		observability.String("rating", string(rec.Rating)))
	return rec, nil
}

// ShouldTriggerRetraining reports whether the negative rate in the rolling
// window exceeds the threshold with enough events to be meaningful.
func (s *Service) ShouldTriggerRetraining(ctx context.Context) (bool, error) {
	recs, err := s.recent(ctx)
	if err != nil {
		return false, err
	}
	rate, events := negativeRate(recs)
	return s.triggered(rate, events), nil
}

// IdentifyImprovementOpportunities groups feedback by issue tag and task type
// and ranks the groups by frequency times negative-rating weight.
func (s *Service) IdentifyImprovementOpportunities(ctx context.Context) ([]domain.ImprovementOpportunity, error) {
	recs, err := s.recent(ctx)
	if err != nil {
		return nil, err
	}
	return rankOpportunities(recs), nil
}

// Recommendation combines the trigger and the opportunities. A positive
// recommendation is published on the notification channel; nothing retrains
// automatically.
func (s *Service) Recommendation(ctx context.Context) (*domain.RetrainingRecommendation, error) {
	recs, err := s.recent(ctx)
	if err != nil {
		return nil, err
	}

	rate, events := negativeRate(recs)
	rec := &domain.RetrainingRecommendation{
		ShouldRetrain: s.triggered(rate, events),
		Reasons:       []string{},
		NegativeRate:  rate,
		Events:        events,
		Opportunities: rankOpportunities(recs),
	}

	switch {
	case events < s.cfg.MinEvents:
		rec.Reasons = append(rec.Reasons, fmt.Sprintf("only %d feedback events in window, need %d", events, s.cfg.MinEvents))
	case rec.ShouldRetrain:
		rec.Reasons = append(rec.Reasons, fmt.Sprintf("negative feedback rate %.1f%% exceeds %.1f%% over %d events",
			rate*100, s.cfg.NegativeRateThreshold*100, events))
		if len(rec.Opportunities) > 0 {
			top := rec.Opportunities[0]
			rec.Reasons = append(rec.Reasons, fmt.Sprintf("top issue: %q on %s (%d reports)", top.Issue, top.TaskType, top.Frequency))
		}
	default:
		rec.Reasons = append(rec.Reasons, fmt.Sprintf("negative feedback rate %.1f%% within %.1f%% threshold",
			rate*100, s.cfg.NegativeRateThreshold*100))
	}

	if rec.ShouldRetrain && s.events != nil {
		s.events.Publish(ctx, domain.EventRetrainingRecommended, map[string]any{
			"negative_rate": rate,
			"events":        events,
			"reasons":       rec.Reasons,
		})
	}
	return rec, nil
}

func (s *Service) triggered(rate float64, events int) bool {
	return events >= s.cfg.MinEvents && rate > s.cfg.NegativeRateThreshold
}

func (s *Service) recent(ctx context.Context) ([]domain.FeedbackRecord, error) {
	now := s.now()
	recs, err := s.feedback.QueryFeedback(ctx, domain.FeedbackFilter{
		Since: now.Add(-s.cfg.Window),
		Until: now.Add(time.Nanosecond),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load feedback: %w", err)
	}
	return recs, nil
}

func negativeRate(recs []domain.FeedbackRecord) (float64, int) {
	if len(recs) == 0 {
		return 0, 0
	}
	negatives := 0
	for _, rec := range recs {
		if rec.Rating == domain.RatingNegative {
			negatives++
		}
	}
	return float64(negatives) / float64(len(recs)), len(recs)
}

func rankOpportunities(recs []domain.FeedbackRecord) []domain.ImprovementOpportunity {
	type groupKey struct {
		issue string
		task  domain.TaskType
	}
	type tally struct {
		frequency, negatives, neutrals int
	}

	groups := make(map[groupKey]*tally)
	for _, rec := range recs {
		for _, issue := range rec.SpecificIssues {
			k := groupKey{issue: issue, task: rec.TaskType}
			t, ok := groups[k]
			if !ok {
				t = &tally{}
				groups[k] = t
			}
			t.frequency++
			switch rec.Rating {
			case domain.RatingNegative:
				t.negatives++
			case domain.RatingNeutral:
				t.neutrals++
			}
		}
	}

	out := make([]domain.ImprovementOpportunity, 0, len(groups))
	for k, t := range groups {
		weight := (float64(t.negatives) + neutralWeight*float64(t.neutrals)) / float64(t.frequency)
		out = append(out, domain.ImprovementOpportunity{
			Issue:          k.issue,
			TaskType:       k.task,
			Frequency:      t.frequency,
			Negatives:      t.negatives,
			NegativeWeight: weight,
			Score:          float64(t.frequency) * weight,
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		if out[i].Frequency != out[j].Frequency {
			return out[i].Frequency > out[j].Frequency
		}
		if out[i].Issue != out[j].Issue {
			return out[i].Issue < out[j].Issue
		}
		return out[i].TaskType < out[j].TaskType
	})
	return out
}

func normalizeIssues(issues []string) []string {
	if len(issues) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(issues))
	out := make([]string, 0, len(issues))
	for _, issue := range issues {
		tag := strings.ToLower(strings.TrimSpace(issue))
		if tag == "" {
			continue
		}
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}
