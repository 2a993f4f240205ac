package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docqa/internal/core/domain"
)

func runRequest(questions ...string) domain.RunRequest {
	return domain.RunRequest{
		Documents: "https://example.com/policy.pdf",
		Questions: questions,
	}
}

func assertFilesReleased(t *testing.T, h *harness) {
	t.Helper()
	for _, f := range h.fetcher.Files() {
		_, err := os.Stat(f.Path)
		assert.True(t, os.IsNotExist(err), "staged file %s was not removed", f.Path)
	}
}

func TestCollectionName(t *testing.T) {
	assert.Equal(t, "docqa_0f8fad5bd9cb469fa16570867728950e",
		CollectionName("0f8fad5b-d9cb-469f-a165-70867728950e"))
}

func TestQAService_Run_Success(t *testing.T) {
	h := newHarness(t, nil)

	resp, err := h.qa.Run(context.Background(), runRequest(
		"What is the grace period?",
		"Is maternity covered?",
	))
	require.NoError(t, err)

	assert.Equal(t, []string{
		"answer: What is the grace period?",
		"answer: Is maternity covered?",
	}, resp.Answers)

	assert.Equal(t, 1, h.fetcher.Calls())
	assert.Equal(t, 1, h.extractor.Calls())
	assert.Len(t, h.index.Created(), 1)
	assert.Equal(t, h.index.Created(), h.index.Dropped())
	assert.Zero(t, h.index.Live())
	assertFilesReleased(t, h)

	runs := h.runs.All()
	require.Len(t, runs, 1)
	assert.Equal(t, domain.RunStatusSucceeded, runs[0].Status)
	assert.Equal(t, 2, runs[0].QuestionCount)
	assert.Equal(t, 3, runs[0].ChunkCount)
	assert.Zero(t, runs[0].FailedAnswers)
	assert.Equal(t, domain.StageResponding, runs[0].Stage)
	assert.Empty(t, runs[0].FailedStage)
	assert.Equal(t, CollectionName(runs[0].ID), h.index.Created()[0])
	assert.Equal(t, runs[0].ID, resp.RequestID)
}

func TestQAService_Run_PromptContainsContext(t *testing.T) {
	h := newHarness(t, nil)

	_, err := h.qa.Run(context.Background(), runRequest("What is the grace period?"))
	require.NoError(t, err)

	prompts := h.llm.Prompts()
	require.Len(t, prompts, 1)
	assert.Contains(t, prompts[0], "Context:\n")
	assert.Contains(t, prompts[0], "Question:\nWhat is the grace period?")
	assert.Contains(t, prompts[0], domain.NotMentionedAnswer)
}

func TestQAService_Run_PreservesOrder(t *testing.T) {
	h := newHarness(t, nil)

	// Earlier questions finish last
	h.llm.SetDelay(func(prompt string) <-chan struct{} {
		ch := make(chan struct{})
		delay := time.Millisecond
		switch {
		case strings.Contains(prompt, "question zero"):
			delay = 60 * time.Millisecond
		case strings.Contains(prompt, "question one"):
			delay = 30 * time.Millisecond
		}
		time.AfterFunc(delay, func() { close(ch) })
		return ch
	})

	questions := []string{"question zero", "question one", "question two", "question three"}
	resp, err := h.qa.Run(context.Background(), runRequest(questions...))
	require.NoError(t, err)

	require.Len(t, resp.Answers, len(questions))
	for i, q := range questions {
		assert.Equal(t, "answer: "+q, resp.Answers[i])
	}
}

func TestQAService_Run_QuestionFailureIsolated(t *testing.T) {
	h := newHarness(t, nil)
	h.llm.FailOn("knee surgery", errors.New("groq API returned status 503"))

	resp, err := h.qa.Run(context.Background(), runRequest(
		"What is the grace period?",
		"Does it cover knee surgery?",
		"Is maternity covered?",
	))
	require.NoError(t, err)

	assert.Equal(t, "answer: What is the grace period?", resp.Answers[0])
	assert.Equal(t, "Error answering question: groq API returned status 503", resp.Answers[1])
	assert.Equal(t, "answer: Is maternity covered?", resp.Answers[2])

	runs := h.runs.All()
	require.Len(t, runs, 1)
	assert.Equal(t, 1, runs[0].FailedAnswers)
	assert.Equal(t, domain.RunStatusSucceeded, runs[0].Status)
}

func TestQAService_Run_NotMentionedComesFromModel(t *testing.T) {
	h := newHarness(t, nil)
	h.llm.SetAnswer("dental", domain.NotMentionedAnswer)

	resp, err := h.qa.Run(context.Background(), runRequest("Is dental covered?"))
	require.NoError(t, err)
	assert.Equal(t, []string{domain.NotMentionedAnswer}, resp.Answers)
}

func TestQAService_Run_AnswerTimeoutIsPerQuestion(t *testing.T) {
	h := newHarness(t, func(cfg *QAServiceConfig) {
		cfg.AnswerTimeout = 30 * time.Millisecond
	})

	never := make(chan struct{})
	defer close(never)
	h.llm.SetDelay(func(prompt string) <-chan struct{} {
		if strings.Contains(prompt, "slow question") {
			return never
		}
		done := make(chan struct{})
		close(done)
		return done
	})

	resp, err := h.qa.Run(context.Background(), runRequest("fast question", "slow question"))
	require.NoError(t, err)

	assert.Equal(t, "answer: fast question", resp.Answers[0])
	assert.True(t, domain.IsErrorAnswer(resp.Answers[1]))
	assert.Contains(t, resp.Answers[1], context.DeadlineExceeded.Error())
}

func TestQAService_Run_InvalidRequest(t *testing.T) {
	h := newHarness(t, nil)

	tests := []struct {
		name string
		req  domain.RunRequest
	}{
		{"no documents", domain.RunRequest{Questions: []string{"q"}}},
		{"no questions", domain.RunRequest{Documents: "https://example.com/a.pdf"}},
		{"too many questions", runRequest(strings.Split("a b c d e f g h i j k", " ")...)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.qa.Run(context.Background(), tt.req)
			assert.ErrorIs(t, err, domain.ErrInvalidInput)
		})
	}

	assert.Zero(t, h.fetcher.Calls())
	assert.Empty(t, h.runs.All())
}

func TestQAService_Run_FetchFailure(t *testing.T) {
	h := newHarness(t, nil)
	h.fetcher.SetError(fmt.Errorf("%w: https://example.com/policy.pdf returned status 404", domain.ErrFetch))

	_, err := h.qa.Run(context.Background(), runRequest("q"))
	require.Error(t, err)

	assert.ErrorIs(t, err, domain.ErrFetch)
	assert.Equal(t, domain.StageFetching, domain.FailedStage(err))
	assert.Zero(t, h.extractor.Calls())
	assert.Empty(t, h.index.Created())
	assert.Zero(t, h.index.InsertCalls())
	assert.Zero(t, h.llm.Calls())

	runs := h.runs.All()
	require.Len(t, runs, 1)
	assert.Equal(t, domain.RunStatusFailed, runs[0].Status)
	assert.Equal(t, domain.StageFetching, runs[0].FailedStage)
	assert.Equal(t, domain.StageFailed, runs[0].Stage)
}

func TestQAService_Run_ExtractionFailure(t *testing.T) {
	h := newHarness(t, nil)
	h.extractor.SetError(fmt.Errorf("%w: not a PDF", domain.ErrExtraction))

	_, err := h.qa.Run(context.Background(), runRequest("q"))

	assert.ErrorIs(t, err, domain.ErrExtraction)
	assert.Equal(t, domain.StageExtracting, domain.FailedStage(err))
	assert.Empty(t, h.index.Created())
	assertFilesReleased(t, h)

	runs := h.runs.All()
	require.Len(t, runs, 1)
	assert.Equal(t, domain.StageFailed, runs[0].Stage)
	assert.Equal(t, domain.StageExtracting, runs[0].FailedStage)
}

// stalledExtractor blocks until its context ends
type stalledExtractor struct{}

func (stalledExtractor) Extract(ctx context.Context, path string) ([]domain.Page, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestQAService_Run_ExtractionTimeout(t *testing.T) {
	h := newHarness(t, func(cfg *QAServiceConfig) {
		cfg.Extractor = stalledExtractor{}
		cfg.ExtractTimeout = 20 * time.Millisecond
	})

	_, err := h.qa.Run(context.Background(), runRequest("q"))

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, domain.StageExtracting, domain.FailedStage(err))
	assert.Empty(t, h.index.Created())
	assertFilesReleased(t, h)
}

func TestQAService_Run_RunTimeoutBoundsAllStages(t *testing.T) {
	h := newHarness(t, func(cfg *QAServiceConfig) {
		cfg.RunTimeout = 200 * time.Millisecond
		cfg.AnswerTimeout = time.Minute
	})

	never := make(chan struct{})
	defer close(never)
	h.llm.SetDelay(func(prompt string) <-chan struct{} { return never })

	start := time.Now()
	_, err := h.qa.Run(context.Background(), runRequest("q1", "q2"))

	assert.Less(t, time.Since(start), 5*time.Second)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, domain.StageAnswering, domain.FailedStage(err))
	assert.Zero(t, h.index.Live())

	runs := h.runs.All()
	require.Len(t, runs, 1)
	assert.Equal(t, domain.StageFailed, runs[0].Stage)
	assert.Equal(t, domain.StageAnswering, runs[0].FailedStage)
}

func TestQAService_Run_RedactsSignedDocumentURL(t *testing.T) {
	h := newHarness(t, nil)
	signed := "https://blob.example.com/policy.pdf?sv=2023-01-03&sig=s3cr3t"
	h.fetcher.SetError(fmt.Errorf("%w: %s returned status 403", domain.ErrFetch, signed))

	_, err := h.qa.Run(context.Background(), domain.RunRequest{Documents: signed, Questions: []string{"q"}})
	require.Error(t, err)

	runs := h.runs.All()
	require.Len(t, runs, 1)
	assert.Equal(t, "https://blob.example.com/policy.pdf", runs[0].DocumentURL)
	assert.NotContains(t, runs[0].Error, "s3cr3t")
	assert.Contains(t, runs[0].Error, "returned status 403")
}

func TestQAService_GetRun(t *testing.T) {
	h := newHarness(t, nil)

	resp, err := h.qa.Run(context.Background(), runRequest("q"))
	require.NoError(t, err)

	run, err := h.qa.GetRun(context.Background(), resp.RequestID)
	require.NoError(t, err)
	assert.Equal(t, resp.RequestID, run.ID)
	assert.Equal(t, domain.RunStatusSucceeded, run.Status)

	_, err = h.qa.GetRun(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestQAService_GetRun_NoStore(t *testing.T) {
	h := newHarness(t, nil)
	h.services.SetRunStore(nil)

	_, err := h.qa.GetRun(context.Background(), "any")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestQAService_Run_EmptyDocument(t *testing.T) {
	h := newHarness(t, nil)
	h.extractor.SetPages(domain.Page{Number: 1, Text: "  \n\t "})

	_, err := h.qa.Run(context.Background(), runRequest("q"))

	assert.ErrorIs(t, err, domain.ErrEmptyDocument)
	assert.Equal(t, domain.StageExtracting, domain.FailedStage(err))
	assert.Zero(t, h.embedding.EmbedCalls())
	assert.Empty(t, h.index.Created())
	assertFilesReleased(t, h)
}

func TestQAService_Run_EmbeddingFailure(t *testing.T) {
	h := newHarness(t, nil)
	h.embedding.SetError(errors.New("voyage API returned status 500"))

	_, err := h.qa.Run(context.Background(), runRequest("q"))

	assert.ErrorIs(t, err, domain.ErrEmbedding)
	assert.Equal(t, domain.StageIndexing, domain.FailedStage(err))
	assert.Zero(t, h.llm.Calls())
	assert.Zero(t, h.index.Live())
	assertFilesReleased(t, h)
}

func TestQAService_Run_InsertFailure(t *testing.T) {
	h := newHarness(t, nil)
	h.index.SetInsertError(errors.New("milvus unavailable"))

	_, err := h.qa.Run(context.Background(), runRequest("q"))

	assert.ErrorIs(t, err, domain.ErrIndex)
	assert.Equal(t, domain.StageIndexing, domain.FailedStage(err))
	assert.Equal(t, h.index.Created(), h.index.Dropped())
	assert.Zero(t, h.index.Live())
	assertFilesReleased(t, h)
}

func TestQAService_Run_RetrievalFailureIsPerQuestion(t *testing.T) {
	h := newHarness(t, nil)
	h.index.SetSearchError(errors.New("search unavailable"))

	resp, err := h.qa.Run(context.Background(), runRequest("q1", "q2"))
	require.NoError(t, err)

	for _, a := range resp.Answers {
		assert.True(t, domain.IsErrorAnswer(a), "expected error answer, got %q", a)
	}
	assert.Zero(t, h.llm.Calls())
}

func TestQAService_Run_ConcurrentRunsAreIsolated(t *testing.T) {
	h := newHarness(t, nil)

	const runs = 5
	errs := make(chan error, runs)
	for i := 0; i < runs; i++ {
		go func() {
			_, err := h.qa.Run(context.Background(), runRequest(fmt.Sprintf("question %d", i)))
			errs <- err
		}()
	}
	for i := 0; i < runs; i++ {
		require.NoError(t, <-errs)
	}

	created := h.index.Created()
	assert.Len(t, created, runs)
	seen := make(map[string]bool)
	for _, name := range created {
		assert.False(t, seen[name], "collection %s reused", name)
		seen[name] = true
	}
	assert.Zero(t, h.index.Live())
	assertFilesReleased(t, h)
}

func TestQAService_Run_CancelledContext(t *testing.T) {
	h := newHarness(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	h.llm.SetDelay(func(prompt string) <-chan struct{} {
		cancel()
		return make(chan struct{})
	})

	_, err := h.qa.Run(ctx, runRequest("q"))

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, domain.StageAnswering, domain.FailedStage(err))
	assert.Zero(t, h.index.Live())
	assertFilesReleased(t, h)
}
