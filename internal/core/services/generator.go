package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/time/rate"

	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
	"github.com/custodia-labs/docqa/internal/runtime"
)

// answerTemplate is rendered with the retrieved context and the question.
// The model emits domain.NotMentionedAnswer when the context has no answer.
const answerTemplate = `You are a helpful assistant answering questions based strictly on the provided insurance policy document.

Answer the question below using ONLY the given context. Be direct and factual. Do not say things like "according to the context." If the answer is not found, reply: "` + domain.NotMentionedAnswer + `"

Use no more than 2 sentences.

Context:
{context}

Question:
{question}

Answer:`

// GeneratorConfig holds settings for Generator.
type GeneratorConfig struct {
	// Temperature is passed to the model; 0 asks for deterministic output
	Temperature float64

	// MaxTokens bounds each answer
	MaxTokens int

	// RatePerSec limits LLM calls across all requests (0 = unlimited)
	RatePerSec float64

	// Burst is the limiter bucket size
	Burst int

	Logger *slog.Logger
}

// Generator produces one answer per question from retrieved context
type Generator struct {
	services    *runtime.Services
	limiter     *rate.Limiter
	temperature float64
	maxTokens   int
	logger      *slog.Logger
}

// NewGenerator creates a new Generator.
func NewGenerator(services *runtime.Services, cfg GeneratorConfig) *Generator {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 256
	}

	limit := rate.Inf
	if cfg.RatePerSec > 0 {
		limit = rate.Limit(cfg.RatePerSec)
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}

	return &Generator{
		services:    services,
		limiter:     rate.NewLimiter(limit, cfg.Burst),
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		logger:      logger,
	}
}

// Answer asks the LLM to answer question from hits. It never returns an
// error: failures are folded into the record's answer text.
func (g *Generator) Answer(ctx context.Context, question string, hits []domain.ScoredChunk) domain.AnswerRecord {
	llm := g.services.LLMService()
	if llm == nil {
		return domain.NewFailedAnswer(question, fmt.Errorf("%w: llm service not configured", domain.ErrGeneration))
	}

	if err := g.limiter.Wait(ctx); err != nil {
		return domain.NewFailedAnswer(question, err)
	}

	resp, err := llm.Complete(ctx, driven.CompletionRequest{
		Prompt:      RenderPrompt(JoinContext(hits), question),
		Temperature: g.temperature,
		MaxTokens:   g.maxTokens,
	})
	if err != nil {
		return domain.NewFailedAnswer(question, err)
	}

	answer := strings.TrimSpace(resp.Content)
	if answer == "" {
		return domain.NewFailedAnswer(question, fmt.Errorf("%w: empty completion from %s", domain.ErrGeneration, llm.Model()))
	}

	g.logger.Debug("answer generated",
		"model", llm.Model(),
		"context_chunks", len(hits),
		"prompt_tokens", resp.PromptTokens,
		"completion_tokens", resp.CompletionTokens,
	)
	return domain.AnswerRecord{Question: question, Answer: answer}
}

// JoinContext concatenates hit texts separated by blank lines
func JoinContext(hits []domain.ScoredChunk) string {
	parts := make([]string, 0, len(hits))
	for _, h := range hits {
		if h.Chunk != nil && h.Chunk.Content != "" {
			parts = append(parts, h.Chunk.Content)
		}
	}
	return strings.Join(parts, "\n\n")
}

// RenderPrompt fills the answer template
func RenderPrompt(contextText, question string) string {
	return strings.NewReplacer("{context}", contextText, "{question}", question).Replace(answerTemplate)
}
