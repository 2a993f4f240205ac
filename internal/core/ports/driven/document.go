package driven

import (
	"context"

	"github.com/custodia-labs/docqa/internal/core/domain"
)

// DocumentFetcher stages a document on local disk for one run
type DocumentFetcher interface {
	// Fetch downloads a URL or resolves a local path.
	// requestID is used to give staged files a unique name.
	Fetch(ctx context.Context, requestID, source string) (*domain.ScopedFile, error)
}

// TextExtractor turns a staged PDF into page texts
type TextExtractor interface {
	// Extract returns the text of each readable page, in page order
	Extract(ctx context.Context, path string) ([]domain.Page, error)
}

// EmbeddingCache remembers embeddings by model and text
type EmbeddingCache interface {
	// GetMany returns one entry per text; misses are nil
	GetMany(ctx context.Context, model string, texts []string) ([][]float32, error)

	// SetMany stores embeddings for texts (same length and order)
	SetMany(ctx context.Context, model string, texts []string, embeddings [][]float32) error

	// Ping checks if the cache backend is healthy
	Ping(ctx context.Context) error
}

// RunStore persists the audit record of each pipeline run
type RunStore interface {
	// Save inserts or updates a run
	Save(ctx context.Context, run *domain.Run) error

	// Get retrieves a run by ID
	Get(ctx context.Context, id string) (*domain.Run, error)

	// Ping checks if the store is reachable
	Ping(ctx context.Context) error
}
