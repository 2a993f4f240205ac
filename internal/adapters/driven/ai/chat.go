package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
)

// Ensure ChatLLM implements LLMService
var _ driven.LLMService = (*ChatLLM)(nil)

// chatDefaults holds the base URL and model used when settings leave them empty
var chatDefaults = map[domain.AIProvider]struct {
	name    string
	baseURL string
	model   string
}{
	domain.AIProviderOpenAI: {"OpenAI", "https://api.openai.com/v1", "gpt-4o-mini"},
	domain.AIProviderGroq:   {"Groq", "https://api.groq.com/openai/v1", "llama3-70b-8192"},
	domain.AIProviderOllama: {"Ollama", "http://localhost:11434/v1", "llama3"},
}

// ChatLLM implements LLMService against any OpenAI-compatible
// /chat/completions endpoint (OpenAI, Groq, Ollama).
type ChatLLM struct {
	provider domain.AIProvider
	model    string
	api      *apiClient
}

// NewChatLLM creates a chat completion client for an OpenAI-compatible provider
func NewChatLLM(provider domain.AIProvider, apiKey, model, baseURL string) (driven.LLMService, error) {
	defaults, ok := chatDefaults[provider]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidProvider, provider)
	}
	if provider.RequiresAPIKey() && apiKey == "" {
		return nil, fmt.Errorf("%s API key is required", defaults.name)
	}
	if model == "" {
		model = defaults.model
	}
	if baseURL == "" {
		baseURL = defaults.baseURL
	}

	return &ChatLLM{
		provider: provider,
		model:    model,
		api:      newAPIClient(defaults.name, strings.TrimRight(baseURL, "/"), apiKey, 120*time.Second),
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatRequest is the request body for /chat/completions
type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Stream      bool          `json:"stream"`
}

// chatResponse is the response from /chat/completions
type chatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Index        int         `json:"index"`
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// Complete sends one prompt and returns the first choice
func (c *ChatLLM) Complete(ctx context.Context, req driven.CompletionRequest) (*driven.CompletionResponse, error) {
	messages := make([]chatMessage, 0, 2)
	if req.SystemPrompt != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.SystemPrompt})
	}
	messages = append(messages, chatMessage{Role: "user", Content: req.Prompt})

	var resp chatResponse
	err := c.api.postJSON(ctx, "/chat/completions", chatRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}, &resp)
	if err != nil {
		return nil, err
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%s returned no choices", c.api.provider)
	}

	return &driven.CompletionResponse{
		Content:          strings.TrimSpace(resp.Choices[0].Message.Content),
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
	}, nil
}

// Model returns the model name being used
func (c *ChatLLM) Model() string {
	return c.model
}

// Ping lists models to verify the endpoint and credentials
func (c *ChatLLM) Ping(ctx context.Context) error {
	return c.api.get(ctx, "/models", nil)
}

// Close releases idle connections
func (c *ChatLLM) Close() error {
	c.api.close()
	return nil
}
