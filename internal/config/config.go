// Package config loads service settings from the environment.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/custodia-labs/docqa/internal/core/domain"
)

const (
	// unboundedQuestionBudget sizes the run deadline when MAX_QUESTIONS is 0
	unboundedQuestionBudget = 50

	writeMargin = 30 * time.Second
)

// Config holds every setting the service reads at start-up
type Config struct {
	// HTTP
	Host            string
	Port            int
	TeamToken       string
	MaxQuestions    int
	MaxBodyBytes    int64
	ShutdownTimeout time.Duration

	// ReadyCacheTTL reuses dependency probe results across /ready calls
	ReadyCacheTTL time.Duration

	// Logging
	LogLevel  string
	LogFormat string

	// AI providers
	Embedding     domain.EmbeddingSettings
	LLM           domain.LLMSettings
	LLMRatePerSec float64
	LLMBurst      int

	// Vector index
	VectorBackend  domain.VectorBackend
	MilvusAddress  string
	MilvusUsername string
	MilvusPassword string
	MilvusDatabase string

	// Optional infrastructure
	RedisURL      string
	EmbeddingTTL  time.Duration
	DatabaseURL   string
	DBMaxOpenConn int

	// Fetching
	ScratchDir      string
	FetchMaxBytes   int64
	FetchRetries    int
	AllowLocalFiles bool

	// Pipeline
	ChunkSize         int
	ChunkOverlap      int
	ChunkDeduplicate  bool
	EmbedBatchSize    int
	EmbedConcurrency  int
	RetrieveTopK      int
	AnswerConcurrency int
	FetchTimeout      time.Duration
	ExtractTimeout    time.Duration
	IndexTimeout      time.Duration
	AnswerTimeout     time.Duration
}

// Load reads the configuration from environment variables
func Load() *Config {
	embeddingProvider := domain.AIProvider(strings.ToLower(getEnv("EMBEDDING_PROVIDER", string(domain.AIProviderVoyage))))
	llmProvider := domain.AIProvider(strings.ToLower(getEnv("LLM_PROVIDER", string(domain.AIProviderGroq))))

	return &Config{
		Host:            getEnv("HOST", "0.0.0.0"),
		Port:            getEnvInt("PORT", 8000),
		TeamToken:       getEnv("TEAM_TOKEN", ""),
		MaxQuestions:    getEnvInt("MAX_QUESTIONS", 50),
		MaxBodyBytes:    getEnvInt64("MAX_BODY_BYTES", 1<<20),
		ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
		ReadyCacheTTL:   getEnvDuration("READY_CACHE_TTL", 30*time.Second),

		LogLevel:  strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat: strings.ToLower(getEnv("LOG_FORMAT", "text")),

		Embedding: domain.EmbeddingSettings{
			Provider: embeddingProvider,
			Model:    getEnv("EMBEDDING_MODEL", ""),
			APIKey:   getEnv("EMBEDDING_API_KEY", providerKey(embeddingProvider)),
			BaseURL:  getEnv("EMBEDDING_BASE_URL", ""),
		},
		LLM: domain.LLMSettings{
			Provider:    llmProvider,
			Model:       getEnv("LLM_MODEL", ""),
			APIKey:      getEnv("LLM_API_KEY", providerKey(llmProvider)),
			BaseURL:     getEnv("LLM_BASE_URL", ""),
			Temperature: getEnvFloat("LLM_TEMPERATURE", 0),
			MaxTokens:   getEnvInt("LLM_MAX_TOKENS", 256),
		},
		LLMRatePerSec: getEnvFloat("LLM_RATE_PER_SEC", 0),
		LLMBurst:      getEnvInt("LLM_BURST", 4),

		VectorBackend:  domain.VectorBackend(strings.ToLower(getEnv("VECTOR_BACKEND", string(domain.VectorBackendMemory)))),
		MilvusAddress:  getEnv("MILVUS_ADDRESS", ""),
		MilvusUsername: getEnv("MILVUS_USERNAME", ""),
		MilvusPassword: getEnv("MILVUS_PASSWORD", ""),
		MilvusDatabase: getEnv("MILVUS_DATABASE", ""),

		RedisURL:      getEnv("REDIS_URL", ""),
		EmbeddingTTL:  getEnvDuration("EMBEDDING_CACHE_TTL", 24*time.Hour),
		DatabaseURL:   getEnv("DATABASE_URL", ""),
		DBMaxOpenConn: getEnvInt("DB_MAX_OPEN_CONNS", 10),

		ScratchDir:      getEnv("SCRATCH_DIR", os.TempDir()),
		FetchMaxBytes:   getEnvInt64("FETCH_MAX_BYTES", 50<<20),
		FetchRetries:    getEnvInt("FETCH_RETRIES", 2),
		AllowLocalFiles: getEnvBool("ALLOW_LOCAL_FILES", false),

		ChunkSize:         getEnvInt("CHUNK_SIZE", 512),
		ChunkOverlap:      getEnvInt("CHUNK_OVERLAP", 50),
		ChunkDeduplicate:  getEnvBool("CHUNK_DEDUPLICATE", false),
		EmbedBatchSize:    getEnvInt("EMBED_BATCH_SIZE", 64),
		EmbedConcurrency:  getEnvInt("EMBED_CONCURRENCY", 4),
		RetrieveTopK:      getEnvInt("RETRIEVE_TOP_K", 4),
		AnswerConcurrency: getEnvInt("ANSWER_CONCURRENCY", 4),
		FetchTimeout:      getEnvDuration("FETCH_TIMEOUT", 60*time.Second),
		ExtractTimeout:    getEnvDuration("EXTRACT_TIMEOUT", 60*time.Second),
		IndexTimeout:      getEnvDuration("INDEX_TIMEOUT", 120*time.Second),
		AnswerTimeout:     getEnvDuration("ANSWER_TIMEOUT", 60*time.Second),
	}
}

// providerKey returns the conventional API key variable for a provider
func providerKey(p domain.AIProvider) string {
	switch p {
	case domain.AIProviderVoyage:
		return getEnv("VOYAGE_API_KEY", "")
	case domain.AIProviderOpenAI:
		return getEnv("OPENAI_API_KEY", "")
	case domain.AIProviderGroq:
		return getEnv("GROQ_API_KEY", "")
	default:
		return ""
	}
}

// Validate reports every missing or inconsistent setting at once
func (c *Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if c.TeamToken == "" {
		add("TEAM_TOKEN is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		add("PORT %d is out of range", c.Port)
	}

	if !c.Embedding.Provider.SupportsEmbedding() {
		add("EMBEDDING_PROVIDER %q does not provide embeddings", c.Embedding.Provider)
	} else if !c.Embedding.IsConfigured() {
		add("API key for embedding provider %q is required", c.Embedding.Provider)
	}
	if !c.LLM.Provider.SupportsChat() {
		add("LLM_PROVIDER %q does not provide chat completion", c.LLM.Provider)
	} else if !c.LLM.IsConfigured() {
		add("API key for LLM provider %q is required", c.LLM.Provider)
	}
	if c.LLM.MaxTokens <= 0 {
		add("LLM_MAX_TOKENS must be positive")
	}
	if c.LLMRatePerSec < 0 {
		add("LLM_RATE_PER_SEC must not be negative")
	}

	if !c.VectorBackend.IsValid() {
		add("VECTOR_BACKEND %q is not supported", c.VectorBackend)
	}
	if c.VectorBackend == domain.VectorBackendMilvus && c.MilvusAddress == "" {
		add("MILVUS_ADDRESS is required when VECTOR_BACKEND=milvus")
	}

	if c.ChunkSize <= 0 {
		add("CHUNK_SIZE must be positive")
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		add("CHUNK_OVERLAP must be in [0, CHUNK_SIZE)")
	}
	for name, v := range map[string]int{
		"EMBED_BATCH_SIZE":   c.EmbedBatchSize,
		"EMBED_CONCURRENCY":  c.EmbedConcurrency,
		"RETRIEVE_TOP_K":     c.RetrieveTopK,
		"ANSWER_CONCURRENCY": c.AnswerConcurrency,
	} {
		if v <= 0 {
			add("%s must be positive", name)
		}
	}
	for name, d := range map[string]time.Duration{
		"FETCH_TIMEOUT":   c.FetchTimeout,
		"EXTRACT_TIMEOUT": c.ExtractTimeout,
		"INDEX_TIMEOUT":   c.IndexTimeout,
		"ANSWER_TIMEOUT":  c.AnswerTimeout,
	} {
		if d <= 0 {
			add("%s must be positive", name)
		}
	}
	if c.FetchMaxBytes <= 0 {
		add("FETCH_MAX_BYTES must be positive")
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		add("LOG_FORMAT %q must be text or json", c.LogFormat)
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", domain.ErrInvalidInput, errors.Join(errs...))
}

// RunTimeout is the longest a single run may take: every stage timeout plus
// one answer timeout per wave of AnswerConcurrency questions.
func (c *Config) RunTimeout() time.Duration {
	questions := c.MaxQuestions
	if questions <= 0 {
		questions = unboundedQuestionBudget
	}
	concurrency := max(c.AnswerConcurrency, 1)
	waves := (questions + concurrency - 1) / concurrency

	return c.FetchTimeout + c.ExtractTimeout + c.IndexTimeout + time.Duration(waves)*c.AnswerTimeout
}

// WriteTimeout leaves room to write the response after the slowest run
func (c *Config) WriteTimeout() time.Duration {
	return c.RunTimeout() + writeMargin
}

// NewLogger builds the slog logger selected by LogLevel and LogFormat
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(c.LogLevel)}
	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var result int
		if _, err := fmt.Sscanf(value, "%d", &result); err == nil {
			return result
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		var result int64
		if _, err := fmt.Sscanf(value, "%d", &result); err == nil {
			return result
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		var result float64
		if _, err := fmt.Sscanf(value, "%g", &result); err == nil {
			return result
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go durations ("90s") or bare seconds ("90")
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	var seconds int
	if _, err := fmt.Sscanf(value, "%d", &seconds); err == nil {
		return time.Duration(seconds) * time.Second
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}
