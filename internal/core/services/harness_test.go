package services

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driven/mocks"
	"github.com/custodia-labs/docqa/internal/core/ports/driving"
	"github.com/custodia-labs/docqa/internal/postprocessors"
	"github.com/custodia-labs/docqa/internal/runtime"
)

// harness wires the QA service to deterministic mocks
type harness struct {
	dir       string
	fetcher   *mocks.MockFetcher
	extractor *mocks.MockExtractor
	embedding *mocks.MockEmbeddingService
	llm       *mocks.MockLLMService
	index     *mocks.MockVectorIndex
	runs      *mocks.MockRunStore
	services  *runtime.Services
	qa        driving.QAService
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testPages() []domain.Page {
	return []domain.Page{
		{Number: 1, Text: "The grace period for premium payment is thirty days."},
		{Number: 2, Text: "Pre-existing diseases are covered after a waiting period of thirty-six months."},
		{Number: 3, Text: "Maternity expenses are covered after twenty-four months of continuous coverage."},
	}
}

func newHarness(t *testing.T, mutate func(*QAServiceConfig)) *harness {
	t.Helper()

	h := &harness{
		dir:       t.TempDir(),
		extractor: mocks.NewMockExtractor(testPages()...),
		embedding: mocks.NewMockEmbeddingService(),
		llm:       mocks.NewMockLLMService(),
		index:     mocks.NewMockVectorIndex(),
		runs:      mocks.NewMockRunStore(),
		services:  runtime.NewServices(),
	}
	h.fetcher = mocks.NewMockFetcher(h.dir)

	h.services.SetEmbeddingService(h.embedding)
	h.services.SetLLMService(h.llm)
	h.services.SetVectorIndex(h.index)
	h.services.SetRunStore(h.runs)

	logger := discardLogger()
	cfg := QAServiceConfig{
		Fetcher:   h.fetcher,
		Extractor: h.extractor,
		Pipeline:  postprocessors.DefaultPipeline(),
		Indexer:   NewIndexer(h.services, IndexerConfig{BatchSize: 2, Concurrency: 2, Logger: logger}),
		Retriever: NewRetriever(h.services, 2),
		Generator: NewGenerator(h.services, GeneratorConfig{MaxTokens: 64, Logger: logger}),
		Services:  h.services,

		MaxQuestions:      10,
		AnswerConcurrency: 3,
		FetchTimeout:      time.Second,
		IndexTimeout:      time.Second,
		AnswerTimeout:     time.Second,
		Logger:            logger,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	h.qa = NewQAService(cfg)
	return h
}
