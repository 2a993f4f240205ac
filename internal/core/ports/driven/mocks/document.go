package mocks

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/custodia-labs/docqa/internal/core/domain"
)

// MockFetcher is a mock implementation of DocumentFetcher for testing.
// Fetch writes a small owned file into dir so tests can check cleanup.
type MockFetcher struct {
	mu    sync.Mutex
	dir   string
	err   error
	calls int
	files []*domain.ScopedFile
}

// NewMockFetcher creates a MockFetcher staging files in dir
func NewMockFetcher(dir string) *MockFetcher {
	return &MockFetcher{dir: dir}
}

func (m *MockFetcher) Fetch(ctx context.Context, requestID, source string) (*domain.ScopedFile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}

	path := filepath.Join(m.dir, requestID+".pdf")
	if err := os.WriteFile(path, []byte("%PDF-1.4 mock"), 0o600); err != nil {
		return nil, err
	}
	f := domain.NewScopedFile(path, source, 13, true)
	m.files = append(m.files, f)
	return f, nil
}

// SetError makes Fetch fail with err
func (m *MockFetcher) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls returns the number of Fetch calls
func (m *MockFetcher) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Files returns every file handed out by Fetch
func (m *MockFetcher) Files() []*domain.ScopedFile {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*domain.ScopedFile(nil), m.files...)
}

// MockExtractor is a mock implementation of TextExtractor for testing
type MockExtractor struct {
	mu    sync.Mutex
	pages []domain.Page
	err   error
	calls int
}

// NewMockExtractor returns an extractor that yields pages
func NewMockExtractor(pages ...domain.Page) *MockExtractor {
	return &MockExtractor{pages: pages}
}

func (m *MockExtractor) Extract(ctx context.Context, path string) ([]domain.Page, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return append([]domain.Page(nil), m.pages...), nil
}

// SetPages replaces the pages returned by Extract
func (m *MockExtractor) SetPages(pages ...domain.Page) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pages = pages
}

// SetError makes Extract fail with err
func (m *MockExtractor) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls returns the number of Extract calls
func (m *MockExtractor) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}
