// Package memindex is an in-process VectorIndex that keeps each
// collection in memory and scores queries by cosine similarity.
package memindex

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.VectorIndex = (*Index)(nil)

type collection struct {
	dimensions int
	entries    []entry
}

type entry struct {
	chunk *domain.Chunk
	vec   []float32
	norm  float64
}

// Index holds named collections guarded by a single RWMutex
type Index struct {
	mu          sync.RWMutex
	collections map[string]*collection
}

// New creates an empty in-memory index
func New() *Index {
	return &Index{collections: make(map[string]*collection)}
}

// CreateCollection creates the collection if it does not exist
func (x *Index) CreateCollection(ctx context.Context, name string, dimensions int) error {
	if dimensions <= 0 {
		return fmt.Errorf("%w: dimensions must be positive, got %d", domain.ErrIndex, dimensions)
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	if c, ok := x.collections[name]; ok {
		if c.dimensions != dimensions {
			return fmt.Errorf("%w: collection %s exists with %d dimensions", domain.ErrIndex, name, c.dimensions)
		}
		return nil
	}
	x.collections[name] = &collection{dimensions: dimensions}
	return nil
}

// Insert appends entries; all entries are validated before any are stored
func (x *Index) Insert(ctx context.Context, name string, entries []domain.IndexEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	c, ok := x.collections[name]
	if !ok {
		return fmt.Errorf("%w: collection %s does not exist", domain.ErrIndex, name)
	}

	batch := make([]entry, 0, len(entries))
	for i, e := range entries {
		if e.Chunk == nil {
			return fmt.Errorf("%w: entry %d has no chunk", domain.ErrIndex, i)
		}
		if len(e.Embedding) != c.dimensions {
			return fmt.Errorf("%w: entry %d has %d dimensions, want %d", domain.ErrIndex, i, len(e.Embedding), c.dimensions)
		}
		batch = append(batch, entry{chunk: e.Chunk, vec: e.Embedding, norm: norm(e.Embedding)})
	}
	c.entries = append(c.entries, batch...)
	return nil
}

// Search returns up to k chunks ordered by descending cosine similarity.
// Ties keep insertion order.
func (x *Index) Search(ctx context.Context, name string, embedding []float32, k int) ([]domain.ScoredChunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	x.mu.RLock()
	defer x.mu.RUnlock()

	c, ok := x.collections[name]
	if !ok {
		return nil, fmt.Errorf("%w: collection %s does not exist", domain.ErrIndex, name)
	}
	if len(embedding) != c.dimensions {
		return nil, fmt.Errorf("%w: query has %d dimensions, want %d", domain.ErrIndex, len(embedding), c.dimensions)
	}
	if k <= 0 || len(c.entries) == 0 {
		return nil, nil
	}

	qn := norm(embedding)
	results := make([]domain.ScoredChunk, len(c.entries))
	for i, e := range c.entries {
		results[i] = domain.ScoredChunk{Chunk: e.chunk, Score: cosine(embedding, qn, e.vec, e.norm)}
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// DropCollection removes the collection; missing collections are ignored
func (x *Index) DropCollection(ctx context.Context, name string) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	delete(x.collections, name)
	return nil
}

// HealthCheck always succeeds
func (x *Index) HealthCheck(ctx context.Context) error {
	return nil
}

// Close drops every collection
func (x *Index) Close() error {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.collections = make(map[string]*collection)
	return nil
}

// Len returns the number of live collections
func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.collections)
}

func norm(v []float32) float64 {
	var s float64
	for _, f := range v {
		s += float64(f) * float64(f)
	}
	return math.Sqrt(s)
}

func cosine(a []float32, an float64, b []float32, bn float64) float64 {
	if an == 0 || bn == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot / (an * bn)
}
