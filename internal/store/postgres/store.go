// Package postgres persists prediction and feedback records in PostgreSQL.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cd3331/pm-document-intelligence-sub000/internal/domain"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS predictions (
		id TEXT PRIMARY KEY,
		model_version TEXT NOT NULL,
		task_type TEXT NOT NULL,
		prediction TEXT NOT NULL,
		ground_truth TEXT,
		confidence DOUBLE PRECISION,
		latency_ms BIGINT NOT NULL,
		cost_usd DOUBLE PRECISION,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_predictions_model_time ON predictions (model_version, task_type, created_at)`,
	`CREATE TABLE IF NOT EXISTS feedback (
		id TEXT PRIMARY KEY,
		prediction_id TEXT NOT NULL,
		task_type TEXT NOT NULL,
		model_version TEXT NOT NULL,
		rating TEXT NOT NULL,
		corrections JSONB NOT NULL DEFAULT '{}'::jsonb,
		specific_issues JSONB NOT NULL DEFAULT '[]'::jsonb,
		submitted_by TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_feedback_time ON feedback (created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_feedback_prediction ON feedback (prediction_id)`,
}

// Store wraps a PostgreSQL connection pool.
type Store struct {
	pool *pgxpool.Pool
}

var (
	_ domain.PredictionStore = (*Store)(nil)
	_ domain.FeedbackStore   = (*Store)(nil)
)

// Connect establishes a connection pool and ensures the schema exists.
func Connect(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	for _, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			pool.Close()
			return nil, fmt.Errorf("failed to migrate database: %w", err)
		}
	}

	return &Store{pool: pool}, nil
}

// Close closes the connection pool.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// AppendPrediction inserts a record.
func (s *Store) AppendPrediction(ctx context.Context, rec *domain.PredictionRecord) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO predictions (id, model_version, task_type, prediction, ground_truth, confidence, latency_ms, cost_usd, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		rec.ID, rec.ModelVersion, string(rec.TaskType), rec.Prediction,
		rec.GroundTruth, rec.Confidence, rec.LatencyMS, rec.CostUSD, rec.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to insert prediction: %w", err)
	}
	return nil
}

const predictionColumns = `id, model_version, task_type, prediction, ground_truth, confidence, latency_ms, cost_usd, created_at`

// GetPrediction returns ErrNotFound for unknown ids.
func (s *Store) GetPrediction(ctx context.Context, id string) (*domain.PredictionRecord, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+predictionColumns+` FROM predictions WHERE id = $1`, id)
	rec, err := scanPrediction(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("prediction %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get prediction: %w", err)
	}
	return rec, nil
}

// QueryPredictions returns matching records ordered by timestamp.
func (s *Store) QueryPredictions(ctx context.Context, f domain.PredictionFilter) ([]domain.PredictionRecord, error) {
	q := newQuery()
	if f.ModelVersion != "" {
		q.add("model_version = %s", f.ModelVersion)
	}
	if f.TaskType != "" {
		q.add("task_type = %s", string(f.TaskType))
	}
	q.window(f.Since, f.Until)

	rows, err := s.pool.Query(ctx,
		`SELECT `+predictionColumns+` FROM predictions`+q.where()+` ORDER BY created_at, id`, q.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query predictions: %w", err)
	}
	defer rows.Close()

	out := make([]domain.PredictionRecord, 0)
	for rows.Next() {
		rec, err := scanPrediction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan prediction: %w", err)
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

// AppendFeedback inserts a record.
func (s *Store) AppendFeedback(ctx context.Context, rec *domain.FeedbackRecord) error {
	corrections := rec.Corrections
	if corrections == nil {
		corrections = map[string]string{}
	}
	corrJSON, err := json.Marshal(corrections)
	if err != nil {
		return fmt.Errorf("failed to marshal corrections: %w", err)
	}
	issues := rec.SpecificIssues
	if issues == nil {
		issues = []string{}
	}
	issuesJSON, err := json.Marshal(issues)
	if err != nil {
		return fmt.Errorf("failed to marshal issues: %w", err)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO feedback (id, prediction_id, task_type, model_version, rating, corrections, specific_issues, submitted_by, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		rec.ID, rec.PredictionID, string(rec.TaskType), rec.ModelVersion, string(rec.Rating),
		corrJSON, issuesJSON, rec.SubmittedBy, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert feedback: %w", err)
	}
	return nil
}

// QueryFeedback returns matching records ordered by creation time.
func (s *Store) QueryFeedback(ctx context.Context, f domain.FeedbackFilter) ([]domain.FeedbackRecord, error) {
	q := newQuery()
	if f.PredictionID != "" {
		q.add("prediction_id = %s", f.PredictionID)
	}
	q.window(f.Since, f.Until)

	rows, err := s.pool.Query(ctx,
		`SELECT id, prediction_id, task_type, model_version, rating, corrections, specific_issues, submitted_by, created_at
		 FROM feedback`+q.where()+` ORDER BY created_at, id`, q.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query feedback: %w", err)
	}
	defer rows.Close()

	out := make([]domain.FeedbackRecord, 0)
	for rows.Next() {
		var (
			rec                  domain.FeedbackRecord
			taskType, rating     string
			corrJSON, issuesJSON []byte
		)
		if err := rows.Scan(&rec.ID, &rec.PredictionID, &taskType, &rec.ModelVersion, &rating,
			&corrJSON, &issuesJSON, &rec.SubmittedBy, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan feedback: %w", err)
		}
		rec.TaskType = domain.TaskType(taskType)
		rec.Rating = domain.Rating(rating)
		if err := json.Unmarshal(corrJSON, &rec.Corrections); err != nil {
			return nil, fmt.Errorf("failed to unmarshal corrections: %w", err)
		}
		if err := json.Unmarshal(issuesJSON, &rec.SpecificIssues); err != nil {
			return nil, fmt.Errorf("failed to unmarshal issues: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func scanPrediction(row pgx.Row) (*domain.PredictionRecord, error) {
	var (
		rec      domain.PredictionRecord
		taskType string
	)
	if err := row.Scan(&rec.ID, &rec.ModelVersion, &taskType, &rec.Prediction,
		&rec.GroundTruth, &rec.Confidence, &rec.LatencyMS, &rec.CostUSD, &rec.Timestamp); err != nil {
		return nil, err
	}
	rec.TaskType = domain.TaskType(taskType)
	return &rec, nil
}

// query accumulates positional conditions.
type query struct {
	conds []string
	args  []any
}

func newQuery() *query {
	return &query{}
}

func (q *query) add(cond string, arg any) {
	q.args = append(q.args, arg)
	q.conds = append(q.conds, fmt.Sprintf(cond, fmt.Sprintf("$%d", len(q.args))))
}

func (q *query) window(since, until time.Time) {
	if !since.IsZero() {
		q.add("created_at >= %s", since)
	}
	if !until.IsZero() {
		q.add("created_at < %s", until)
	}
}

func (q *query) where() string {
	if len(q.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(q.conds, " AND ")
}
