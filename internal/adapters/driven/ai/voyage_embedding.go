package ai

import (
	"context"
	"fmt"
	"time"

	"github.com/custodia-labs/docqa/internal/core/ports/driven"
)

// Ensure VoyageEmbedding implements EmbeddingService
var _ driven.EmbeddingService = (*VoyageEmbedding)(nil)

// VoyageEmbedding implements EmbeddingService using the Voyage AI API.
// Documents and queries are embedded with different input types.
type VoyageEmbedding struct {
	model      string
	dimensions int
	api        *apiClient
}

// Model dimensions for Voyage embedding models
var voyageModelDimensions = map[string]int{
	"voyage-3-large": 1024,
	"voyage-3.5":     1024,
	"voyage-3":       1024,
	"voyage-3-lite":  512,
	"voyage-2":       1024,
	"voyage-large-2": 1536,
}

// NewVoyageEmbedding creates a new Voyage embedding service
func NewVoyageEmbedding(apiKey, model, baseURL string) (driven.EmbeddingService, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("Voyage API key is required")
	}
	if model == "" {
		model = "voyage-3-large"
	}
	if baseURL == "" {
		baseURL = "https://api.voyageai.com/v1"
	}

	dimensions, ok := voyageModelDimensions[model]
	if !ok {
		dimensions = 1024
	}

	return &VoyageEmbedding{
		model:      model,
		dimensions: dimensions,
		api:        newAPIClient("Voyage", baseURL, apiKey, 60*time.Second),
	}, nil
}

// voyageRequest is the request body for the Voyage embedding API
type voyageRequest struct {
	Input     []string `json:"input"`
	Model     string   `json:"model"`
	InputType string   `json:"input_type,omitempty"`
}

// Embed generates document embeddings for multiple texts
func (e *VoyageEmbedding) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return e.embed(ctx, texts, "document")
}

// EmbedQuery generates a query embedding
func (e *VoyageEmbedding) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	embeddings, err := e.embed(ctx, []string{query}, "query")
	if err != nil {
		return nil, err
	}
	return embeddings[0], nil
}

func (e *VoyageEmbedding) embed(ctx context.Context, texts []string, inputType string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	var resp embeddingResponse
	err := e.api.postJSON(ctx, "/embeddings", voyageRequest{
		Input:     texts,
		Model:     e.model,
		InputType: inputType,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return orderEmbeddings(resp.Data, len(texts))
}

// Dimensions returns the embedding dimension size
func (e *VoyageEmbedding) Dimensions() int {
	return e.dimensions
}

// Model returns the model name being used
func (e *VoyageEmbedding) Model() string {
	return e.model
}

// HealthCheck verifies the embedding service is available
func (e *VoyageEmbedding) HealthCheck(ctx context.Context) error {
	_, err := e.EmbedQuery(ctx, "health check")
	return err
}

// Close releases resources held by the embedding service
func (e *VoyageEmbedding) Close() error {
	e.api.close()
	return nil
}
