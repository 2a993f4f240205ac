package mocks

import (
	"context"
	"sync"
)

// MockEmbeddingCache is an in-memory implementation of EmbeddingCache for testing
type MockEmbeddingCache struct {
	mu      sync.Mutex
	entries map[string][]float32
	hits    int
	misses  int
}

// NewMockEmbeddingCache creates a new MockEmbeddingCache
func NewMockEmbeddingCache() *MockEmbeddingCache {
	return &MockEmbeddingCache{entries: make(map[string][]float32)}
}

func (m *MockEmbeddingCache) GetMany(ctx context.Context, model string, texts []string) ([][]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if v, ok := m.entries[model+"\x00"+t]; ok {
			out[i] = v
			m.hits++
		} else {
			m.misses++
		}
	}
	return out, nil
}

func (m *MockEmbeddingCache) SetMany(ctx context.Context, model string, texts []string, embeddings [][]float32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, t := range texts {
		m.entries[model+"\x00"+t] = embeddings[i]
	}
	return nil
}

func (m *MockEmbeddingCache) Ping(ctx context.Context) error {
	return nil
}

// Hits returns the number of cache hits served
func (m *MockEmbeddingCache) Hits() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hits
}

// Len returns the number of cached embeddings
func (m *MockEmbeddingCache) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
