package mocks

import (
	"context"
	"sync"

	"github.com/custodia-labs/docqa/internal/core/domain"
)

// MockRunStore is a mock implementation of RunStore for testing
type MockRunStore struct {
	mu   sync.RWMutex
	runs map[string]*domain.Run
}

// NewMockRunStore creates a new MockRunStore
func NewMockRunStore() *MockRunStore {
	return &MockRunStore{runs: make(map[string]*domain.Run)}
}

func (m *MockRunStore) Save(ctx context.Context, run *domain.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *run
	m.runs[run.ID] = &cp
	return nil
}

func (m *MockRunStore) Get(ctx context.Context, id string) (*domain.Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	run, ok := m.runs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *run
	return &cp, nil
}

func (m *MockRunStore) Ping(ctx context.Context) error {
	return nil
}

// All returns every saved run
func (m *MockRunStore) All() []*domain.Run {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*domain.Run, 0, len(m.runs))
	for _, r := range m.runs {
		cp := *r
		out = append(out, &cp)
	}
	return out
}
