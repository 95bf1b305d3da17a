// Package sqlite persists prediction and feedback records in a SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/cd3331/pm-document-intelligence-sub000/internal/domain"
)

const createTables = `
CREATE TABLE IF NOT EXISTS predictions (
	id TEXT PRIMARY KEY,
	model_version TEXT NOT NULL,
	task_type TEXT NOT NULL,
	prediction TEXT NOT NULL,
	ground_truth TEXT,
	confidence REAL,
	latency_ms INTEGER NOT NULL,
	cost_usd REAL,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_predictions_model_time ON predictions(model_version, task_type, created_at);

CREATE TABLE IF NOT EXISTS feedback (
	id TEXT PRIMARY KEY,
	prediction_id TEXT NOT NULL,
	task_type TEXT NOT NULL,
	model_version TEXT NOT NULL,
	rating TEXT NOT NULL,
	corrections TEXT NOT NULL DEFAULT '{}',
	specific_issues TEXT NOT NULL DEFAULT '[]',
	submitted_by TEXT NOT NULL,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_feedback_time ON feedback(created_at);
CREATE INDEX IF NOT EXISTS idx_feedback_prediction ON feedback(prediction_id);
`

// Store implements the prediction and feedback stores on SQLite. Timestamps
// are stored as unix nanoseconds.
type Store struct {
	db *sql.DB
}

var (
	_ domain.PredictionStore = (*Store)(nil)
	_ domain.FeedbackStore   = (*Store)(nil)
)

// New opens the database at dbPath and runs auto-migration.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open store db: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(createTables); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate store db: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// AppendPrediction inserts a record. Existing ids are rejected.
func (s *Store) AppendPrediction(ctx context.Context, rec *domain.PredictionRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO predictions (id, model_version, task_type, prediction, ground_truth, confidence, latency_ms, cost_usd, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.ModelVersion, string(rec.TaskType), rec.Prediction,
		nullString(rec.GroundTruth), nullFloat(rec.Confidence),
		rec.LatencyMS, nullFloat(rec.CostUSD), rec.Timestamp.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("insert prediction: %w", err)
	}
	return nil
}

const predictionColumns = `id, model_version, task_type, prediction, ground_truth, confidence, latency_ms, cost_usd, created_at`

// GetPrediction returns ErrNotFound for unknown ids.
func (s *Store) GetPrediction(ctx context.Context, id string) (*domain.PredictionRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+predictionColumns+` FROM predictions WHERE id = ?`, id)
	rec, err := scanPrediction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("prediction %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get prediction: %w", err)
	}
	return rec, nil
}

// QueryPredictions returns matching records ordered by timestamp.
func (s *Store) QueryPredictions(ctx context.Context, f domain.PredictionFilter) ([]domain.PredictionRecord, error) {
	var (
		where []string
		args  []any
	)
	if f.ModelVersion != "" {
		where = append(where, "model_version = ?")
		args = append(args, f.ModelVersion)
	}
	if f.TaskType != "" {
		where = append(where, "task_type = ?")
		args = append(args, string(f.TaskType))
	}
	where, args = appendWindow(where, args, f.Since, f.Until)

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+predictionColumns+` FROM predictions`+whereClause(where)+` ORDER BY created_at, id`, args...)
	if err != nil {
		return nil, fmt.Errorf("query predictions: %w", err)
	}
	defer rows.Close()

	out := make([]domain.PredictionRecord, 0)
	for rows.Next() {
		rec, err := scanPrediction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan prediction: %w", err)
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
		return fmt.Errorf("marshal corrections: %w", err)
	}
	issues := rec.SpecificIssues
	if issues == nil {
		issues = []string{}
	}
	issuesJSON, err := json.Marshal(issues)
	if err != nil {
		return fmt.Errorf("marshal issues: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO feedback (id, prediction_id, task_type, model_version, rating, corrections, specific_issues, submitted_by, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.PredictionID, string(rec.TaskType), rec.ModelVersion, string(rec.Rating),
		string(corrJSON), string(issuesJSON), rec.SubmittedBy, rec.CreatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("insert feedback: %w", err)
	}
	return nil
}

// QueryFeedback returns matching records ordered by creation time.
func (s *Store) QueryFeedback(ctx context.Context, f domain.FeedbackFilter) ([]domain.FeedbackRecord, error) {
	var (
		where []string
		args  []any
	)
	if f.PredictionID != "" {
		where = append(where, "prediction_id = ?")
		args = append(args, f.PredictionID)
	}
	where, args = appendWindow(where, args, f.Since, f.Until)

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, prediction_id, task_type, model_version, rating, corrections, specific_issues, submitted_by, created_at
		 FROM feedback`+whereClause(where)+` ORDER BY created_at, id`, args...)
	if err != nil {
		return nil, fmt.Errorf("query feedback: %w", err)
	}
	defer rows.Close()

	out := make([]domain.FeedbackRecord, 0)
	for rows.Next() {
		var (
			rec                  domain.FeedbackRecord
			taskType, rating     string
			corrJSON, issuesJSON string
			createdAt            int64
		)
		if err := rows.Scan(&rec.ID, &rec.PredictionID, &taskType, &rec.ModelVersion, &rating,
			&corrJSON, &issuesJSON, &rec.SubmittedBy, &createdAt); err != nil {
			return nil, fmt.Errorf("scan feedback: %w", err)
		}
		rec.TaskType = domain.TaskType(taskType)
		rec.Rating = domain.Rating(rating)
		rec.CreatedAt = time.Unix(0, createdAt).UTC()
		if err := json.Unmarshal([]byte(corrJSON), &rec.Corrections); err != nil {
			return nil, fmt.Errorf("unmarshal corrections: %w", err)
		}
		if err := json.Unmarshal([]byte(issuesJSON), &rec.SpecificIssues); err != nil {
			return nil, fmt.Errorf("unmarshal issues: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPrediction(row scanner) (*domain.PredictionRecord, error) {
	var (
		rec         domain.PredictionRecord
		taskType    string
		groundTruth sql.NullString
		confidence  sql.NullFloat64
		cost        sql.NullFloat64
		createdAt   int64
	)
	if err := row.Scan(&rec.ID, &rec.ModelVersion, &taskType, &rec.Prediction,
		&groundTruth, &confidence, &rec.LatencyMS, &cost, &createdAt); err != nil {
		return nil, err
	}

	rec.TaskType = domain.TaskType(taskType)
	rec.Timestamp = time.Unix(0, createdAt).UTC()
	if groundTruth.Valid {
		rec.GroundTruth = &groundTruth.String
	}
	if confidence.Valid {
		rec.Confidence = &confidence.Float64
	}
	if cost.Valid {
		rec.CostUSD = &cost.Float64
	}
	return &rec, nil
}

func appendWindow(where []string, args []any, since, until time.Time) ([]string, []any) {
	if !since.IsZero() {
		where = append(where, "created_at >= ?")
		args = append(args, since.UnixNano())
	}
	if !until.IsZero() {
		where = append(where, "created_at < ?")
		args = append(args, until.UnixNano())
	}
	return where, args
}

func whereClause(conds []string) string {
	if len(conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(conds, " AND ")
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}
