package services

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
	"github.com/custodia-labs/docqa/internal/core/ports/driving"
	"github.com/custodia-labs/docqa/internal/runtime"
)

// Ensure qaService implements QAService
var _ driving.QAService = (*qaService)(nil)

// cleanupTimeout bounds collection drops and run-store writes after a run
const cleanupTimeout = 10 * time.Second

// QAServiceConfig holds dependencies for the QA orchestrator.
type QAServiceConfig struct {
	Fetcher   driven.DocumentFetcher
	Extractor driven.TextExtractor
	Pipeline  driven.PostProcessorPipeline
	Indexer   *Indexer
	Retriever *Retriever
	Generator *Generator
	Services  *runtime.Services

	// MaxQuestions rejects larger requests (0 = unlimited)
	MaxQuestions int

	// AnswerConcurrency bounds questions answered in parallel
	AnswerConcurrency int

	// RunTimeout bounds the whole run, including every stage (0 = none)
	RunTimeout time.Duration

	FetchTimeout   time.Duration
	ExtractTimeout time.Duration
	IndexTimeout   time.Duration
	AnswerTimeout  time.Duration

	Logger *slog.Logger
}

// qaService runs the fetch → extract → index → answer pipeline.
// Each run works in its own collection, dropped before Run returns.
type qaService struct {
	fetcher   driven.DocumentFetcher
	extractor driven.TextExtractor
	pipeline  driven.PostProcessorPipeline
	indexer   *Indexer
	retriever *Retriever
	generator *Generator
	services  *runtime.Services

	maxQuestions      int
	answerConcurrency int
	runTimeout        time.Duration
	fetchTimeout      time.Duration
	extractTimeout    time.Duration
	indexTimeout      time.Duration
	answerTimeout     time.Duration
	logger            *slog.Logger
}

// NewQAService creates the pipeline orchestrator.
func NewQAService(cfg QAServiceConfig) driving.QAService {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.AnswerConcurrency <= 0 {
		cfg.AnswerConcurrency = 4
	}

	return &qaService{
		fetcher:           cfg.Fetcher,
		extractor:         cfg.Extractor,
		pipeline:          cfg.Pipeline,
		indexer:           cfg.Indexer,
		retriever:         cfg.Retriever,
		generator:         cfg.Generator,
		services:          cfg.Services,
		maxQuestions:      cfg.MaxQuestions,
		answerConcurrency: cfg.AnswerConcurrency,
		runTimeout:        cfg.RunTimeout,
		fetchTimeout:      cfg.FetchTimeout,
		extractTimeout:    cfg.ExtractTimeout,
		indexTimeout:      cfg.IndexTimeout,
		answerTimeout:     cfg.AnswerTimeout,
		logger:            logger,
	}
}

// CollectionName returns the request-scoped collection for a request ID
func CollectionName(requestID string) string {
	return "docqa_" + strings.ReplaceAll(requestID, "-", "")
}

// Run answers every question against the document. Answers[i] always
// corresponds to Questions[i]; per-question failures become error strings.
func (s *qaService) Run(ctx context.Context, req domain.RunRequest) (*domain.RunResponse, error) {
	if err := req.Validate(s.maxQuestions); err != nil {
		return nil, err
	}

	start := time.Now()
	requestID := uuid.New().String()
	logger := s.logger.With("request_id", requestID)

	// Signed URLs carry credentials in the query string
	document := domain.RedactURL(req.Documents)
	run := domain.NewRun(requestID, document, len(req.Questions), start)

	logger.Info("run started", "document", document, "questions", len(req.Questions))

	runCtx, cancel := withTimeout(ctx, s.runTimeout)
	answers, err := s.execute(runCtx, logger, requestID, req, run)
	cancel()
	if err == nil {
		err = s.advance(logger, run, domain.StageResponding)
	}

	run.Duration = time.Since(start)
	if err != nil {
		run.Status = domain.RunStatusFailed
		run.FailedStage = domain.FailedStage(err)
		if run.FailedStage == "" {
			run.FailedStage = run.Stage
		}
		run.Error = redactSource(err.Error(), req.Documents, document)
		_ = run.Advance(domain.StageFailed)
		logger.Error("run failed",
			"stage", run.FailedStage,
			"error", run.Error,
			"duration_ms", run.Duration.Milliseconds(),
		)
	} else {
		run.Status = domain.RunStatusSucceeded
		logger.Info("run completed",
			"stage", run.Stage,
			"chunks", run.ChunkCount,
			"failed_answers", run.FailedAnswers,
			"duration_ms", run.Duration.Milliseconds(),
		)
	}
	s.saveRun(ctx, logger, run)

	if err != nil {
		return nil, err
	}
	return &domain.RunResponse{RequestID: requestID, Answers: answers}, nil
}

// GetRun returns the audit record of a finished run
func (s *qaService) GetRun(ctx context.Context, id string) (*domain.Run, error) {
	store := s.services.RunStore()
	if store == nil {
		return nil, fmt.Errorf("%w: run history is not recorded", domain.ErrNotFound)
	}
	return store.Get(ctx, id)
}

// advance moves the run through the stage machine
func (s *qaService) advance(logger *slog.Logger, run *domain.Run, next domain.Stage) error {
	from := run.Stage
	if err := run.Advance(next); err != nil {
		return domain.NewStageError(from, err)
	}
	logger.Debug("run stage", "from", from, "to", next)
	return nil
}

func (s *qaService) execute(
	ctx context.Context,
	logger *slog.Logger,
	requestID string,
	req domain.RunRequest,
	run *domain.Run,
) ([]string, error) {
	// Fetching
	if err := s.advance(logger, run, domain.StageFetching); err != nil {
		return nil, err
	}
	fetchCtx, cancel := withTimeout(ctx, s.fetchTimeout)
	file, err := s.fetcher.Fetch(fetchCtx, requestID, req.Documents)
	cancel()
	if err != nil {
		return nil, domain.NewStageError(domain.StageFetching, err)
	}
	defer func() {
		if err := file.Release(); err != nil {
			logger.Warn("failed to remove staged document", "path", file.Path, "error", err)
		}
	}()
	logger.Debug("document staged", "path", file.Path, "bytes", file.Size)

	// Extracting
	if err := s.advance(logger, run, domain.StageExtracting); err != nil {
		return nil, err
	}
	extractCtx, cancel := withTimeout(ctx, s.extractTimeout)
	pages, err := s.extractor.Extract(extractCtx, file.Path)
	cancel()
	if err != nil {
		return nil, domain.NewStageError(domain.StageExtracting, err)
	}
	chunks := toDomainChunks(requestID, run.DocumentURL, s.pipeline.Process(pages))
	if len(chunks) == 0 {
		return nil, domain.NewStageError(domain.StageExtracting, domain.ErrEmptyDocument)
	}
	run.ChunkCount = len(chunks)
	logger.Debug("document chunked", "pages", len(pages), "chunks", len(chunks))

	// Indexing
	if err := s.advance(logger, run, domain.StageIndexing); err != nil {
		return nil, err
	}
	collection := CollectionName(requestID)
	defer s.dropCollection(ctx, logger, collection)

	indexCtx, cancel := withTimeout(ctx, s.indexTimeout)
	err = s.indexer.Index(indexCtx, collection, chunks)
	cancel()
	if err != nil {
		return nil, domain.NewStageError(domain.StageIndexing, err)
	}

	// Answering
	if err := s.advance(logger, run, domain.StageAnswering); err != nil {
		return nil, err
	}
	records := s.answerAll(ctx, logger, collection, req.Questions)
	if err := ctx.Err(); err != nil {
		return nil, domain.NewStageError(domain.StageAnswering, err)
	}

	answers := make([]string, len(records))
	for i, rec := range records {
		answers[i] = rec.Answer
		if rec.Failed() {
			run.FailedAnswers++
		}
	}
	return answers, nil
}

// answerAll answers questions concurrently. Results are stored by input
// index so output order never depends on completion order.
func (s *qaService) answerAll(ctx context.Context, logger *slog.Logger, collection string, questions []string) []domain.AnswerRecord {
	records := make([]domain.AnswerRecord, len(questions))

	var g errgroup.Group
	g.SetLimit(s.answerConcurrency)

	for i, question := range questions {
		g.Go(func() error {
			records[i] = s.answerOne(ctx, collection, question)
			if records[i].Failed() {
				logger.Warn("question failed", "index", i, "error", records[i].Err)
			}
			return nil
		})
	}
	_ = g.Wait()

	return records
}

func (s *qaService) answerOne(ctx context.Context, collection, question string) domain.AnswerRecord {
	ctx, cancel := withTimeout(ctx, s.answerTimeout)
	defer cancel()

	hits, err := s.retriever.Retrieve(ctx, collection, question, 0)
	if err != nil {
		return domain.NewFailedAnswer(question, err)
	}
	return s.generator.Answer(ctx, question, hits)
}

// dropCollection removes the run's collection even if ctx is already done
func (s *qaService) dropCollection(ctx context.Context, logger *slog.Logger, collection string) {
	index := s.services.VectorIndex()
	if index == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()

	if err := index.DropCollection(ctx, collection); err != nil {
		logger.Warn("failed to drop collection", "collection", collection, "error", err)
	}
}

func (s *qaService) saveRun(ctx context.Context, logger *slog.Logger, run *domain.Run) {
	store := s.services.RunStore()
	if store == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()

	if err := store.Save(ctx, run); err != nil {
		logger.Warn("failed to record run", "error", err)
	}
}

// toDomainChunks assigns IDs and source to the pipeline output
func toDomainChunks(requestID, source string, chunks []driven.Chunk) []*domain.Chunk {
	result := make([]*domain.Chunk, 0, len(chunks))
	for _, c := range chunks {
		result = append(result, &domain.Chunk{
			ID:        requestID + "-" + strconv.Itoa(c.Position),
			Content:   c.Content,
			Page:      c.Page,
			Position:  c.Position,
			StartChar: c.StartOffset,
			EndChar:   c.EndOffset,
			Source:    source,
			Metadata:  c.Metadata,
		})
	}
	return result
}

// redactSource replaces the raw document URL in msg
func redactSource(msg, raw, redacted string) string {
	if raw == "" || raw == redacted {
		return msg
	}
	return strings.ReplaceAll(msg, raw, redacted)
}

// withTimeout applies d when positive
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// String helps log the config at start-up
func (cfg QAServiceConfig) String() string {
	return fmt.Sprintf("max_questions=%d answer_concurrency=%d run_timeout=%s fetch_timeout=%s extract_timeout=%s index_timeout=%s answer_timeout=%s",
		cfg.MaxQuestions, cfg.AnswerConcurrency, cfg.RunTimeout, cfg.FetchTimeout, cfg.ExtractTimeout, cfg.IndexTimeout, cfg.AnswerTimeout)
}
