package driven

import (
	"context"
)

// CompletionRequest is a single-turn prompt for the chat model
type CompletionRequest struct {
	// SystemPrompt is sent as the system message when non-empty
	SystemPrompt string

	// Prompt is the rendered user message
	Prompt string

	// Temperature 0 asks for deterministic sampling
	Temperature float64

	// MaxTokens bounds the completion length (0 = provider default)
	MaxTokens int
}

// CompletionResponse is the model output for a CompletionRequest
type CompletionResponse struct {
	Content          string
	PromptTokens     int
	CompletionTokens int
}

// LLMService provides chat completion for answer generation
type LLMService interface {
	// Complete sends the prompt and returns the first choice
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// Model returns the model name being used
	Model() string

	// Ping verifies the LLM service is available
	Ping(ctx context.Context) error

	// Close releases resources held by the LLM service
	Close() error
}
