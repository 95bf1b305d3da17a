// Package memory is an in-process append-only store for prediction and
// feedback records.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/cd3331/pm-document-intelligence-sub000/internal/domain"
)

// Store keeps records in insertion order.
type Store struct {
	mu          sync.RWMutex
	predictions []domain.PredictionRecord
	byID        map[string]int
	feedback    []domain.FeedbackRecord
}

var (
	_ domain.PredictionStore = (*Store)(nil)
	_ domain.FeedbackStore   = (*Store)(nil)
)

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{byID: make(map[string]int)}
}

// AppendPrediction stores a copy of rec. IDs must be unique.
func (s *Store) AppendPrediction(_ context.Context, rec *domain.PredictionRecord) error {
	if rec == nil || rec.ID == "" {
		return fmt.Errorf("%w: prediction id is required", domain.ErrInvalidRequest)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byID[rec.ID]; exists {
		return fmt.Errorf("%w: duplicate prediction id %s", domain.ErrInvalidRequest, rec.ID)
	}
	s.byID[rec.ID] = len(s.predictions)
	s.predictions = append(s.predictions, *rec)
	return nil
}

// GetPrediction returns ErrNotFound for unknown ids.
func (s *Store) GetPrediction(_ context.Context, id string) (*domain.PredictionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx, ok := s.byID[id]
	if !ok {
		return nil, fmt.Errorf("prediction %s: %w", id, domain.ErrNotFound)
	}
	rec := s.predictions[idx]
	return &rec, nil
}

// QueryPredictions returns matching records ordered by timestamp.
func (s *Store) QueryPredictions(_ context.Context, f domain.PredictionFilter) ([]domain.PredictionRecord, error) {
	s.mu.RLock()
	out := make([]domain.PredictionRecord, 0)
	for _, rec := range s.predictions {
		if f.ModelVersion != "" && rec.ModelVersion != f.ModelVersion {
			continue
		}
		if f.TaskType != "" && rec.TaskType != f.TaskType {
			continue
		}
		if !f.Since.IsZero() && rec.Timestamp.Before(f.Since) {
			continue
		}
		if !f.Until.IsZero() && !rec.Timestamp.Before(f.Until) {
			continue
		}
		out = append(out, rec)
	}
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

// AppendFeedback stores a copy of rec.
func (s *Store) AppendFeedback(_ context.Context, rec *domain.FeedbackRecord) error {
	if rec == nil || rec.ID == "" {
		return fmt.Errorf("%w: feedback id is required", domain.ErrInvalidRequest)
	}

	cp := *rec
	cp.SpecificIssues = append([]string(nil), rec.SpecificIssues...)
	if rec.Corrections != nil {
		cp.Corrections = make(map[string]string, len(rec.Corrections))
		for k, v := range rec.Corrections {
			cp.Corrections[k] = v
		}
	}

	s.mu.Lock()
	s.feedback = append(s.feedback, cp)
	s.mu.Unlock()
	return nil
}

// QueryFeedback returns matching records ordered by creation time.
func (s *Store) QueryFeedback(_ context.Context, f domain.FeedbackFilter) ([]domain.FeedbackRecord, error) {
	s.mu.RLock()
	out := make([]domain.FeedbackRecord, 0)
	for _, rec := range s.feedback {
		if f.PredictionID != "" && rec.PredictionID != f.PredictionID {
			continue
		}
		if !f.Since.IsZero() && rec.CreatedAt.Before(f.Since) {
			continue
		}
		if !f.Until.IsZero() && !rec.CreatedAt.Before(f.Until) {
			continue
		}
		out = append(out, rec)
	}
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
