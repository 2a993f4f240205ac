package mocks

import (
	"context"
	"strings"
	"sync"

	"github.com/custodia-labs/docqa/internal/core/ports/driven"
)

// MockLLMService is a mock implementation of LLMService for testing.
// By default it echoes the last line of the prompt's question block.
type MockLLMService struct {
	mu       sync.Mutex
	model    string
	answers  map[string]string
	failures map[string]error
	err      error
	prompts  []string
	delay    func(prompt string) <-chan struct{}
}

// NewMockLLMService creates a new MockLLMService
func NewMockLLMService() *MockLLMService {
	return &MockLLMService{
		model:    "mock-llm-model",
		answers:  make(map[string]string),
		failures: make(map[string]error),
	}
}

func (m *MockLLMService) Complete(ctx context.Context, req driven.CompletionRequest) (*driven.CompletionResponse, error) {
	m.mu.Lock()
	m.prompts = append(m.prompts, req.Prompt)
	delay := m.delay
	err := m.err
	var matched error
	for needle, e := range m.failures {
		if strings.Contains(req.Prompt, needle) {
			matched = e
			break
		}
	}
	answer := ""
	for needle, a := range m.answers {
		if strings.Contains(req.Prompt, needle) {
			answer = a
			break
		}
	}
	m.mu.Unlock()

	if delay != nil {
		select {
		case <-delay(req.Prompt):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	if matched != nil {
		return nil, matched
	}
	if answer == "" {
		answer = "answer: " + questionOf(req.Prompt)
	}
	return &driven.CompletionResponse{Content: answer}, nil
}

func (m *MockLLMService) Model() string {
	return m.model
}

func (m *MockLLMService) Ping(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.err
}

func (m *MockLLMService) Close() error {
	return nil
}

// questionOf pulls the text between "Question:" and "Answer:" out of a prompt
func questionOf(prompt string) string {
	_, rest, ok := strings.Cut(prompt, "Question:")
	if !ok {
		return strings.TrimSpace(prompt)
	}
	q, _, _ := strings.Cut(rest, "Answer:")
	return strings.TrimSpace(q)
}

// Helper methods for testing

// SetAnswer returns answer for any prompt containing needle
func (m *MockLLMService) SetAnswer(needle, answer string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.answers[needle] = answer
}

// FailOn fails any prompt containing needle with err
func (m *MockLLMService) FailOn(needle string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[needle] = err
}

// SetError fails every call with err
func (m *MockLLMService) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// SetDelay blocks each Complete call until the returned channel is closed
func (m *MockLLMService) SetDelay(fn func(prompt string) <-chan struct{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = fn
}

// Prompts returns a copy of every prompt received
func (m *MockLLMService) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.prompts))
	copy(out, m.prompts)
	return out
}

// Calls returns the number of Complete calls
func (m *MockLLMService) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.prompts)
}
