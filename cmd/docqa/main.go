package main

// @title           DocQA API
// @version         1.0
// @description     Answers natural-language questions about a PDF document using retrieval-augmented generation.

// @host      localhost:8000
// @BasePath  /
// @schemes   http https

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Team token. Format: "Bearer {token}"

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/custodia-labs/docqa/internal/adapters/driven/ai"
	"github.com/custodia-labs/docqa/internal/adapters/driven/fetcher"
	"github.com/custodia-labs/docqa/internal/adapters/driven/memindex"
	"github.com/custodia-labs/docqa/internal/adapters/driven/milvus"
	"github.com/custodia-labs/docqa/internal/adapters/driven/pdf"
	"github.com/custodia-labs/docqa/internal/adapters/driven/postgres"
	redisadapter "github.com/custodia-labs/docqa/internal/adapters/driven/redis"
	"github.com/custodia-labs/docqa/internal/adapters/driving/http"
	"github.com/custodia-labs/docqa/internal/config"
	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
	"github.com/custodia-labs/docqa/internal/core/services"
	"github.com/custodia-labs/docqa/internal/postprocessors"
	"github.com/custodia-labs/docqa/internal/runtime"
)

var version = "dev"

func main() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger := cfg.NewLogger(os.Stdout)
	slog.SetDefault(logger)
	logger.Info("docqa starting", "version", version)

	// Cancelled on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runtimeServices := runtime.NewServices()
	runtimeServices.SetCheckTTL(cfg.ReadyCacheTTL)
	defer func() {
		if err := runtimeServices.Close(); err != nil {
			logger.Warn("failed to close services", "error", err)
		}
	}()

	// ===== AI providers =====
	aiFactory := ai.NewFactory()

	embeddingService, err := aiFactory.CreateEmbeddingService(&cfg.Embedding)
	if err != nil {
		log.Fatalf("Failed to create embedding service: %v", err)
	}
	if err := runtimeServices.ValidateAndSetEmbedding(ctx, embeddingService); err != nil {
		log.Fatalf("Embedding service unreachable: %v", err)
	}
	logger.Info("embedding service ready", "provider", cfg.Embedding.Provider, "model", embeddingService.Model())

	llmService, err := aiFactory.CreateLLMService(&cfg.LLM)
	if err != nil {
		log.Fatalf("Failed to create LLM service: %v", err)
	}
	if err := runtimeServices.ValidateAndSetLLM(ctx, llmService); err != nil {
		log.Fatalf("LLM service unreachable: %v", err)
	}
	logger.Info("llm service ready", "provider", cfg.LLM.Provider, "model", llmService.Model())

	// ===== Vector index =====
	vectorIndex, err := newVectorIndex(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize vector index: %v", err)
	}
	runtimeServices.SetVectorIndex(vectorIndex)
	logger.Info("vector index ready", "backend", cfg.VectorBackend)

	// ===== Redis embedding cache (optional) =====
	if cfg.RedisURL != "" {
		client, err := redisadapter.Connect(ctx, cfg.RedisURL)
		if err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		runtimeServices.AddCloser(client)
		runtimeServices.SetEmbeddingCache(redisadapter.NewEmbeddingCache(client, cfg.EmbeddingTTL))
		logger.Info("embedding cache enabled", "ttl", cfg.EmbeddingTTL)
	}

	// ===== PostgreSQL run store (optional) =====
	if cfg.DatabaseURL != "" {
		dbConfig := postgres.DefaultConfig(cfg.DatabaseURL)
		dbConfig.MaxOpenConns = cfg.DBMaxOpenConn
		db, err := postgres.Connect(ctx, dbConfig)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		runtimeServices.AddCloser(db)
		if err := db.InitSchema(ctx); err != nil {
			log.Fatalf("Failed to initialize schema: %v", err)
		}
		runtimeServices.SetRunStore(postgres.NewRunStore(db))
		logger.Info("run store enabled")
	}

	// ===== Document intake =====
	documentFetcher, err := fetcher.New(fetcher.Config{
		ScratchDir: cfg.ScratchDir,
		MaxBytes:   cfg.FetchMaxBytes,
		MaxRetries: uint64(cfg.FetchRetries),
		Timeout:    cfg.FetchTimeout,
		AllowLocal: cfg.AllowLocalFiles,
	}, logger)
	if err != nil {
		log.Fatalf("Failed to create fetcher: %v", err)
	}
	extractor := pdf.NewExtractor(pdf.Config{Validate: true}, logger)
	pipeline := postprocessors.NewPipelineFromConfig(postprocessors.ChunkConfig{
		ChunkSize: cfg.ChunkSize,
		Overlap:   cfg.ChunkOverlap,
	}, cfg.ChunkDeduplicate)

	// ===== Services (core business logic) =====
	qaConfig := services.QAServiceConfig{
		Fetcher:   documentFetcher,
		Extractor: extractor,
		Pipeline:  pipeline,
		Indexer: services.NewIndexer(runtimeServices, services.IndexerConfig{
			BatchSize:   cfg.EmbedBatchSize,
			Concurrency: cfg.EmbedConcurrency,
			Logger:      logger,
		}),
		Retriever: services.NewRetriever(runtimeServices, cfg.RetrieveTopK),
		Generator: services.NewGenerator(runtimeServices, services.GeneratorConfig{
			Temperature: cfg.LLM.Temperature,
			MaxTokens:   cfg.LLM.MaxTokens,
			RatePerSec:  cfg.LLMRatePerSec,
			Burst:       cfg.LLMBurst,
			Logger:      logger,
		}),
		Services:          runtimeServices,
		MaxQuestions:      cfg.MaxQuestions,
		AnswerConcurrency: cfg.AnswerConcurrency,
		RunTimeout:        cfg.RunTimeout(),
		FetchTimeout:      cfg.FetchTimeout,
		ExtractTimeout:    cfg.ExtractTimeout,
		IndexTimeout:      cfg.IndexTimeout,
		AnswerTimeout:     cfg.AnswerTimeout,
		Logger:            logger,
	}
	logger.Info("pipeline configured", "config", qaConfig.String())

	qaService := services.NewQAService(qaConfig)
	authService := services.NewAuthService(cfg.TeamToken)

	// ===== HTTP server =====
	serverConfig := http.DefaultConfig()
	serverConfig.Host = cfg.Host
	serverConfig.Port = cfg.Port
	serverConfig.Version = version
	serverConfig.MaxBodyBytes = cfg.MaxBodyBytes
	serverConfig.WriteTimeout = cfg.WriteTimeout()
	serverConfig.Logger = logger

	server := http.NewServer(serverConfig, authService, qaService, runtimeServices)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("server failed", "error", err)
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received, stopping")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := server.Stop(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", "error", err)
		}
	}

	logger.Info("docqa stopped")
}

// newVectorIndex connects the configured backend
func newVectorIndex(ctx context.Context, cfg *config.Config) (driven.VectorIndex, error) {
	switch cfg.VectorBackend {
	case domain.VectorBackendMemory:
		return memindex.New(), nil
	case domain.VectorBackendMilvus:
		milvusConfig := milvus.DefaultConfig()
		milvusConfig.Address = cfg.MilvusAddress
		milvusConfig.Username = cfg.MilvusUsername
		milvusConfig.Password = cfg.MilvusPassword
		milvusConfig.Database = cfg.MilvusDatabase
		idx, err := milvus.Connect(ctx, milvusConfig)
		if err != nil {
			return nil, err
		}
		if err := idx.HealthCheck(ctx); err != nil {
			_ = idx.Close()
			return nil, err
		}
		return idx, nil
	default:
		return nil, errors.New("unknown vector backend: " + string(cfg.VectorBackend))
	}
}
