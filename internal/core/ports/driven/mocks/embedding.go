package mocks

import (
	"context"
	"hash/fnv"
	"sync"
)

// MockEmbeddingService is a mock implementation of EmbeddingService for testing
type MockEmbeddingService struct {
	mu          sync.Mutex
	dimensions  int
	model       string
	failNext    bool
	err         error
	embedCalls  int
	queryCalls  int
	embeddedLen int
}

// NewMockEmbeddingService creates a new MockEmbeddingService
func NewMockEmbeddingService() *MockEmbeddingService {
	return &MockEmbeddingService{
		dimensions: 16,
		model:      "mock-embedding-model",
	}
}

func (m *MockEmbeddingService) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.embedCalls++
	if err := m.takeErr(); err != nil {
		return nil, err
	}

	m.embeddedLen += len(texts)
	result := make([][]float32, len(texts))
	for i, text := range texts {
		result[i] = m.generateEmbedding(text)
	}
	return result, nil
}

func (m *MockEmbeddingService) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queryCalls++
	if err := m.takeErr(); err != nil {
		return nil, err
	}
	return m.generateEmbedding(query), nil
}

func (m *MockEmbeddingService) Dimensions() int {
	return m.dimensions
}

func (m *MockEmbeddingService) Model() string {
	return m.model
}

func (m *MockEmbeddingService) HealthCheck(ctx context.Context) error {
	return nil
}

func (m *MockEmbeddingService) Close() error {
	return nil
}

func (m *MockEmbeddingService) takeErr() error {
	if m.err != nil {
		return m.err
	}
	if m.failNext {
		m.failNext = false
		return context.DeadlineExceeded
	}
	return nil
}

// generateEmbedding generates a deterministic embedding based on text hash
func (m *MockEmbeddingService) generateEmbedding(text string) []float32 {
	h := fnv.New32a()
	h.Write([]byte(text))
	seed := h.Sum32()

	embedding := make([]float32, m.dimensions)
	for i := range embedding {
		// Generate deterministic pseudo-random values
		seed = seed*1103515245 + 12345
		embedding[i] = float32(seed%1000) / 1000.0
	}
	return embedding
}

// Helper methods for testing

func (m *MockEmbeddingService) SetFailNext(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failNext = fail
}

// SetError makes every call fail with err until cleared with nil
func (m *MockEmbeddingService) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

func (m *MockEmbeddingService) SetDimensions(dim int) {
	m.dimensions = dim
}

// EmbedCalls returns the number of Embed calls
func (m *MockEmbeddingService) EmbedCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.embedCalls
}

// QueryCalls returns the number of EmbedQuery calls
func (m *MockEmbeddingService) QueryCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.queryCalls
}

// EmbeddedTexts returns the total number of texts passed to Embed
func (m *MockEmbeddingService) EmbeddedTexts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.embeddedLen
}
