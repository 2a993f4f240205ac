package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.RunStore = (*RunStore)(nil)

// RunStore implements driven.RunStore using PostgreSQL
type RunStore struct {
	db *DB
}

// NewRunStore creates a new RunStore
func NewRunStore(db *DB) *RunStore {
	return &RunStore{db: db}
}

// Save inserts a run or updates it if the ID already exists
func (s *RunStore) Save(ctx context.Context, run *domain.Run) error {
	query := `
		INSERT INTO runs (id, document_url, question_count, chunk_count, failed_answers,
			status, stage, failed_stage, error, started_at, duration_ms)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			stage = EXCLUDED.stage,
			chunk_count = EXCLUDED.chunk_count,
			failed_answers = EXCLUDED.failed_answers,
			status = EXCLUDED.status,
			failed_stage = EXCLUDED.failed_stage,
			error = EXCLUDED.error,
			duration_ms = EXCLUDED.duration_ms
	`

	_, err := s.db.ExecContext(ctx, query,
		run.ID,
		run.DocumentURL,
		run.QuestionCount,
		run.ChunkCount,
		run.FailedAnswers,
		string(run.Status),
		string(run.Stage),
		string(run.FailedStage),
		run.Error,
		run.StartedAt,
		run.Duration.Milliseconds(),
	)
	return err
}

// Get retrieves a run by ID
func (s *RunStore) Get(ctx context.Context, id string) (*domain.Run, error) {
	query := `
		SELECT id, document_url, question_count, chunk_count, failed_answers,
			status, stage, failed_stage, error, started_at, duration_ms
		FROM runs
		WHERE id = $1
	`

	var (
		run        domain.Run
		status      string
		stage       string
		failedStage string
		durationMS  int64
	)
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&run.ID,
		&run.DocumentURL,
		&run.QuestionCount,
		&run.ChunkCount,
		&run.FailedAnswers,
		&status,
		&stage,
		&failedStage,
		&run.Error,
		&run.StartedAt,
		&durationMS,
	)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	run.Status = domain.RunStatus(status)
	run.Stage = domain.Stage(stage)
	run.FailedStage = domain.Stage(failedStage)
	run.Duration = time.Duration(durationMS) * time.Millisecond
	return &run, nil
}

// Ping checks if the database is reachable
func (s *RunStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}
