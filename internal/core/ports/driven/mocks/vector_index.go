package mocks

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/custodia-labs/docqa/internal/core/domain"
)

// MockVectorIndex is a mock implementation of VectorIndex for testing.
// It records collection lifecycle calls so tests can assert isolation.
type MockVectorIndex struct {
	mu          sync.Mutex
	collections map[string][]domain.IndexEntry
	created     []string
	dropped     []string
	inserts     int
	searches    int
	insertErr   error
	searchErr   error
	createErr   error
}

// NewMockVectorIndex creates a new MockVectorIndex
func NewMockVectorIndex() *MockVectorIndex {
	return &MockVectorIndex{
		collections: make(map[string][]domain.IndexEntry),
	}
}

func (m *MockVectorIndex) CreateCollection(ctx context.Context, name string, dimensions int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	m.created = append(m.created, name)
	if _, ok := m.collections[name]; !ok {
		m.collections[name] = nil
	}
	return nil
}

func (m *MockVectorIndex) Insert(ctx context.Context, collection string, entries []domain.IndexEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inserts++
	if m.insertErr != nil {
		return m.insertErr
	}
	if _, ok := m.collections[collection]; !ok {
		return fmt.Errorf("%w: collection %s", domain.ErrNotFound, collection)
	}
	m.collections[collection] = append(m.collections[collection], entries...)
	return nil
}

func (m *MockVectorIndex) Search(ctx context.Context, collection string, embedding []float32, k int) ([]domain.ScoredChunk, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.searches++
	if m.searchErr != nil {
		return nil, m.searchErr
	}
	entries, ok := m.collections[collection]
	if !ok {
		return nil, fmt.Errorf("%w: collection %s", domain.ErrNotFound, collection)
	}

	results := make([]domain.ScoredChunk, 0, len(entries))
	for _, e := range entries {
		results = append(results, domain.ScoredChunk{Chunk: e.Chunk, Score: dot(embedding, e.Embedding)})
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if k > 0 && len(results) > k {
		results = results[:k]
	}
	return results, nil
}

func (m *MockVectorIndex) DropCollection(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dropped = append(m.dropped, name)
	delete(m.collections, name)
	return nil
}

func (m *MockVectorIndex) HealthCheck(ctx context.Context) error {
	return nil
}

func (m *MockVectorIndex) Close() error {
	return nil
}

func dot(a, b []float32) float64 {
	var s float64
	for i := 0; i < len(a) && i < len(b); i++ {
		s += float64(a[i]) * float64(b[i])
	}
	return s
}

// Helper methods for testing

func (m *MockVectorIndex) SetInsertError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.insertErr = err
}

func (m *MockVectorIndex) SetSearchError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.searchErr = err
}

func (m *MockVectorIndex) SetCreateError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createErr = err
}

// Created returns the names passed to CreateCollection
func (m *MockVectorIndex) Created() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.created...)
}

// Dropped returns the names passed to DropCollection
func (m *MockVectorIndex) Dropped() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.dropped...)
}

// Live returns the number of collections not yet dropped
func (m *MockVectorIndex) Live() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.collections)
}

// InsertCalls returns the number of Insert calls
func (m *MockVectorIndex) InsertCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.inserts
}

// Entries returns the entries currently stored in a collection
func (m *MockVectorIndex) Entries(collection string) []domain.IndexEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.IndexEntry(nil), m.collections[collection]...)
}
