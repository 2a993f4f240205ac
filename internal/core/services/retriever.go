package services

import (
	"context"
	"fmt"
	"sort"

	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/runtime"
)

// Retriever finds the chunks most similar to a question
type Retriever struct {
	services *runtime.Services
	topK     int
}

// NewRetriever creates a Retriever returning topK hits by default
func NewRetriever(services *runtime.Services, topK int) *Retriever {
	if topK <= 0 {
		topK = 4
	}
	return &Retriever{services: services, topK: topK}
}

// Retrieve embeds query with the indexing model and searches collection.
// k <= 0 uses the default. Hits are ordered by descending score.
func (r *Retriever) Retrieve(ctx context.Context, collection, query string, k int) ([]domain.ScoredChunk, error) {
	if k <= 0 {
		k = r.topK
	}

	embedder := r.services.EmbeddingService()
	if embedder == nil {
		return nil, fmt.Errorf("%w: embedding service not configured", domain.ErrEmbedding)
	}
	index := r.services.VectorIndex()
	if index == nil {
		return nil, fmt.Errorf("%w: vector index not configured", domain.ErrIndex)
	}

	vector, err := embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: query: %w", domain.ErrEmbedding, err)
	}

	hits, err := index.Search(ctx, collection, vector, k)
	if err != nil {
		return nil, wrapIndex("search", err)
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Score > hits[j].Score
	})
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}
