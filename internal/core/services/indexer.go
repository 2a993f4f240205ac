package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
	"github.com/custodia-labs/docqa/internal/runtime"
)

// IndexerConfig holds settings for Indexer.
type IndexerConfig struct {
	// BatchSize is the number of texts per embedding call
	BatchSize int

	// Concurrency bounds the embedding calls in flight
	Concurrency int

	Logger *slog.Logger
}

// Indexer embeds chunks and writes them into a request-scoped collection.
// Services are resolved per call from the runtime registry.
type Indexer struct {
	services    *runtime.Services
	batchSize   int
	concurrency int
	logger      *slog.Logger
}

// NewIndexer creates a new Indexer.
func NewIndexer(services *runtime.Services, cfg IndexerConfig) *Indexer {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 64
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}

	return &Indexer{
		services:    services,
		batchSize:   cfg.BatchSize,
		concurrency: cfg.Concurrency,
		logger:      logger,
	}
}

// Index embeds every chunk and inserts them into collection, creating it
// first. Embedding failures wrap ErrEmbedding; index failures wrap ErrIndex.
func (x *Indexer) Index(ctx context.Context, collection string, chunks []*domain.Chunk) error {
	if len(chunks) == 0 {
		return domain.ErrEmptyDocument
	}

	embedder := x.services.EmbeddingService()
	if embedder == nil {
		return fmt.Errorf("%w: embedding service not configured", domain.ErrEmbedding)
	}
	index := x.services.VectorIndex()
	if index == nil {
		return fmt.Errorf("%w: vector index not configured", domain.ErrIndex)
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}

	vectors, err := x.embedAll(ctx, embedder, texts)
	if err != nil {
		return err
	}

	dimensions := len(vectors[0])
	entries := make([]domain.IndexEntry, len(chunks))
	for i, c := range chunks {
		if len(vectors[i]) != dimensions || dimensions == 0 {
			return fmt.Errorf("%w: chunk %d has %d dimensions, expected %d",
				domain.ErrEmbedding, i, len(vectors[i]), dimensions)
		}
		entries[i] = domain.IndexEntry{Chunk: c, Embedding: vectors[i]}
	}

	if err := index.CreateCollection(ctx, collection, dimensions); err != nil {
		return wrapIndex("create collection", err)
	}
	if err := index.Insert(ctx, collection, entries); err != nil {
		return wrapIndex("insert", err)
	}

	x.logger.Debug("chunks indexed",
		"collection", collection,
		"chunks", len(entries),
		"dimensions", dimensions,
	)
	return nil
}

// embedAll returns one vector per text, in input order. Cached vectors are
// reused; the rest are embedded in concurrent batches.
func (x *Indexer) embedAll(ctx context.Context, embedder driven.EmbeddingService, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	model := embedder.Model()
	cache := x.services.EmbeddingCache()

	if cache != nil {
		cached, err := cache.GetMany(ctx, model, texts)
		if err != nil {
			x.logger.Warn("embedding cache read failed", "error", err)
		} else if len(cached) == len(texts) {
			copy(vectors, cached)
		}
	}

	var missing []int
	for i, v := range vectors {
		if v == nil {
			missing = append(missing, i)
		}
	}
	if len(missing) == 0 {
		return vectors, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(x.concurrency)

	for start := 0; start < len(missing); start += x.batchSize {
		end := min(start+x.batchSize, len(missing))
		batch := missing[start:end]

		g.Go(func() error {
			batchTexts := make([]string, len(batch))
			for j, idx := range batch {
				batchTexts[j] = texts[idx]
			}

			result, err := embedder.Embed(gctx, batchTexts)
			if err != nil {
				return fmt.Errorf("%w: %w", domain.ErrEmbedding, err)
			}
			if len(result) != len(batch) {
				return fmt.Errorf("%w: got %d embeddings for %d texts",
					domain.ErrEmbedding, len(result), len(batch))
			}
			// Batches write disjoint indices
			for j, idx := range batch {
				vectors[idx] = result[j]
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if cache != nil {
		fresh := make([]string, len(missing))
		freshVectors := make([][]float32, len(missing))
		for j, idx := range missing {
			fresh[j] = texts[idx]
			freshVectors[j] = vectors[idx]
		}
		if err := cache.SetMany(ctx, model, fresh, freshVectors); err != nil {
			x.logger.Warn("embedding cache write failed", "error", err)
		}
	}

	return vectors, nil
}

func wrapIndex(op string, err error) error {
	if errors.Is(err, domain.ErrIndex) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%w: %s: %w", domain.ErrIndex, op, err)
}
