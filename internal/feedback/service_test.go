package feedback_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cd3331/pm-document-intelligence-sub000/internal/domain"
	"github.com/cd3331/pm-document-intelligence-sub000/internal/feedback"
	"github.com/cd3331/pm-document-intelligence-sub000/internal/store/memory"
)

type recordingPublisher struct {
	events []string
}

func (p *recordingPublisher) Publish(_ context.Context, eventType string, _ map[string]any) {
	p.events = append(p.events, eventType)
}

var now = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

func newService(t *testing.T, events domain.EventPublisher) (*feedback.Service, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	require.NoError(t, store.AppendPrediction(context.Background(), &domain.PredictionRecord{
		ID:           "pred-1",
		ModelVersion: "gpt-4o",
		TaskType:     domain.TaskRiskAssessment,
		Prediction:   "low risk",
		Timestamp:    now.Add(-time.Hour),
	}))
	svc := feedback.NewService(store, store, events, feedback.Config{
		NegativeRateThreshold: 0.15,
		MinEvents:             20,
		Window:                30 * 24 * time.Hour,
	}).WithClock(func() time.Time { return now })
	return svc, store
}

func submitN(t *testing.T, svc *feedback.Service, n int, rating domain.Rating, issues ...string) {
	t.Helper()
	for range n {
		_, err := svc.Submit(context.Background(), &domain.FeedbackSubmission{
			PredictionID:   "pred-1",
			Rating:         rating,
			SpecificIssues: issues,
			SubmittedBy:    "pm@example.com",
		})
		require.NoError(t, err)
	}
}

func TestSubmit(t *testing.T) {
	ctx := context.Background()

	t.Run("should reject unknown predictions", func(t *testing.T) {
		svc, _ := newService(t, nil)
		_, err := svc.Submit(ctx, &domain.FeedbackSubmission{PredictionID: "missing", Rating: domain.RatingPositive})
		require.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("should reject unknown ratings", func(t *testing.T) {
		svc, _ := newService(t, nil)
		_, err := svc.Submit(ctx, &domain.FeedbackSubmission{PredictionID: "pred-1", Rating: "meh"})
		require.ErrorIs(t, err, domain.ErrInvalidRequest)
	})

	t.Run("should denormalize the prediction and keep both records", func(t *testing.T) {
		svc, store := newService(t, nil)

		first, err := svc.Submit(ctx, &domain.FeedbackSubmission{
			PredictionID:   "pred-1",
			Rating:         domain.RatingNegative,
			SpecificIssues: []string{" Missed Dependency ", "missed dependency"},
		})
		require.NoError(t, err)
		second, err := svc.Submit(ctx, &domain.FeedbackSubmission{PredictionID: "pred-1", Rating: domain.RatingPositive})
		require.NoError(t, err)

		require.NotEqual(t, first.ID, second.ID)
		require.Equal(t, domain.TaskRiskAssessment, first.TaskType)
		require.Equal(t, "gpt-4o", first.ModelVersion)
		require.Equal(t, "anonymous", first.SubmittedBy)
		require.Equal(t, []string{"missed dependency"}, first.SpecificIssues)

		recs, err := store.QueryFeedback(ctx, domain.FeedbackFilter{PredictionID: "pred-1"})
		require.NoError(t, err)
		require.Len(t, recs, 2)
	})
}

func TestShouldTriggerRetraining(t *testing.T) {
	ctx := context.Background()

	t.Run("should trigger at 4 negatives out of 20", func(t *testing.T) {
		svc, _ := newService(t, nil)
		submitN(t, svc, 16, domain.RatingPositive)
		submitN(t, svc, 4, domain.RatingNegative)

		ok, err := svc.ShouldTriggerRetraining(ctx)
		require.NoError(t, err)
		require.True(t, ok)
	})

	t.Run("should not trigger at exactly the threshold", func(t *testing.T) {
		svc, _ := newService(t, nil)
		submitN(t, svc, 17, domain.RatingPositive)
		submitN(t, svc, 3, domain.RatingNegative)

		ok, err := svc.ShouldTriggerRetraining(ctx)
		require.NoError(t, err)
		require.False(t, ok)
	})

	t.Run("should not trigger below the minimum event count", func(t *testing.T) {
		svc, _ := newService(t, nil)
		submitN(t, svc, 10, domain.RatingNegative)

		ok, err := svc.ShouldTriggerRetraining(ctx)
		require.NoError(t, err)
		require.False(t, ok)
	})

	t.Run("should ignore feedback outside the rolling window", func(t *testing.T) {
		store := memory.NewStore()
		for i := range 20 {
			require.NoError(t, store.AppendFeedback(ctx, &domain.FeedbackRecord{
				ID:        fmt.Sprintf("old-%d", i),
				Rating:    domain.RatingNegative,
				CreatedAt: now.Add(-60 * 24 * time.Hour),
			}))
		}
		svc := feedback.NewService(store, store, nil, feedback.Config{}).WithClock(func() time.Time { return now })

		ok, err := svc.ShouldTriggerRetraining(ctx)
		require.NoError(t, err)
		require.False(t, ok)
	})
}

func TestImprovementOpportunities(t *testing.T) {
	svc, _ := newService(t, nil)
	submitN(t, svc, 3, domain.RatingNegative, "missed dependency")
	submitN(t, svc, 4, domain.RatingNeutral, "too verbose")
	submitN(t, svc, 5, domain.RatingPositive, "too verbose")
	submitN(t, svc, 1, domain.RatingNegative, "wrong owner")

	opps, err := svc.IdentifyImprovementOpportunities(context.Background())
	require.NoError(t, err)
	require.Len(t, opps, 3)

	require.Equal(t, "missed dependency", opps[0].Issue)
	require.InDelta(t, 3.0, opps[0].Score, 1e-9)
	require.Equal(t, "too verbose", opps[1].Issue)
	require.Equal(t, 9, opps[1].Frequency)
	require.InDelta(t, 2.0, opps[1].Score, 1e-9)
	require.Equal(t, "wrong owner", opps[2].Issue)
}

func TestRecommendation(t *testing.T) {
	events := &recordingPublisher{}
	svc, _ := newService(t, events)
	submitN(t, svc, 16, domain.RatingPositive)
	submitN(t, svc, 4, domain.RatingNegative, "missed dependency")

	rec, err := svc.Recommendation(context.Background())
	require.NoError(t, err)
	require.True(t, rec.ShouldRetrain)
	require.Equal(t, 20, rec.Events)
	require.InDelta(t, 0.2, rec.NegativeRate, 1e-9)
	require.Len(t, rec.Reasons, 2)
	require.Equal(t, []string{domain.EventRetrainingRecommended}, events.events)
}
