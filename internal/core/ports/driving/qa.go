package driving

import (
	"context"

	"github.com/custodia-labs/docqa/internal/core/domain"
)

// QAService answers questions against a single document
type QAService interface {
	// Run executes one fetch -> extract -> index -> answer pipeline.
	// Request-fatal failures return a *domain.StageError; per-question
	// generation failures are folded into the answers.
	Run(ctx context.Context, req domain.RunRequest) (*domain.RunResponse, error)

	// GetRun returns the recorded audit of a run by request ID, or
	// domain.ErrNotFound when no such run was recorded
	GetRun(ctx context.Context, id string) (*domain.Run, error)
}
