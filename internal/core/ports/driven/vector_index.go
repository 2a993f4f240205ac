package driven

import (
	"context"

	"github.com/custodia-labs/docqa/internal/core/domain"
)

// VectorIndex stores chunk embeddings in named collections and answers
// nearest-neighbour queries against one collection at a time.
type VectorIndex interface {
	// CreateCollection creates the collection if it does not exist
	CreateCollection(ctx context.Context, name string, dimensions int) error

	// Insert adds entries to an existing collection
	Insert(ctx context.Context, collection string, entries []domain.IndexEntry) error

	// Search returns up to k chunks ordered by descending similarity
	Search(ctx context.Context, collection string, embedding []float32, k int) ([]domain.ScoredChunk, error)

	// DropCollection deletes the collection and everything in it.
	// Dropping a missing collection is not an error.
	DropCollection(ctx context.Context, name string) error

	// HealthCheck verifies the index is reachable
	HealthCheck(ctx context.Context) error

	// Close releases the client connection
	Close() error
}
