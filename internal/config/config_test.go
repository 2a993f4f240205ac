package config

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docqa/internal/core/domain"
)

var envKeys = []string{
	"HOST", "PORT", "TEAM_TOKEN", "MAX_QUESTIONS", "MAX_BODY_BYTES", "SHUTDOWN_TIMEOUT", "READY_CACHE_TTL",
	"LOG_LEVEL", "LOG_FORMAT",
	"EMBEDDING_PROVIDER", "EMBEDDING_MODEL", "EMBEDDING_API_KEY", "EMBEDDING_BASE_URL",
	"LLM_PROVIDER", "LLM_MODEL", "LLM_API_KEY", "LLM_BASE_URL", "LLM_TEMPERATURE", "LLM_MAX_TOKENS",
	"LLM_RATE_PER_SEC", "LLM_BURST",
	"VOYAGE_API_KEY", "OPENAI_API_KEY", "GROQ_API_KEY",
	"VECTOR_BACKEND", "MILVUS_ADDRESS", "MILVUS_USERNAME", "MILVUS_PASSWORD", "MILVUS_DATABASE",
	"REDIS_URL", "EMBEDDING_CACHE_TTL", "DATABASE_URL", "DB_MAX_OPEN_CONNS",
	"SCRATCH_DIR", "FETCH_MAX_BYTES", "FETCH_RETRIES", "ALLOW_LOCAL_FILES",
	"CHUNK_SIZE", "CHUNK_OVERLAP", "CHUNK_DEDUPLICATE", "EMBED_BATCH_SIZE", "EMBED_CONCURRENCY",
	"RETRIEVE_TOP_K", "ANSWER_CONCURRENCY", "FETCH_TIMEOUT", "EXTRACT_TIMEOUT", "INDEX_TIMEOUT", "ANSWER_TIMEOUT",
}

// clearEnv blanks every variable Load reads; empty values fall back to defaults
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
}

func validEnv(t *testing.T) {
	t.Helper()
	clearEnv(t)
	t.Setenv("TEAM_TOKEN", "secret")
	t.Setenv("VOYAGE_API_KEY", "pa-test")
	t.Setenv("GROQ_API_KEY", "gsk-test")
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg := Load()

	assert.Equal(t, 8000, cfg.Port)
	assert.Equal(t, 50, cfg.MaxQuestions)
	assert.Equal(t, int64(1<<20), cfg.MaxBodyBytes)
	assert.Equal(t, domain.AIProviderVoyage, cfg.Embedding.Provider)
	assert.Equal(t, domain.AIProviderGroq, cfg.LLM.Provider)
	assert.Equal(t, 256, cfg.LLM.MaxTokens)
	assert.Zero(t, cfg.LLM.Temperature)
	assert.Equal(t, domain.VectorBackendMemory, cfg.VectorBackend)
	assert.Equal(t, 512, cfg.ChunkSize)
	assert.Equal(t, 50, cfg.ChunkOverlap)
	assert.Equal(t, 64, cfg.EmbedBatchSize)
	assert.Equal(t, 4, cfg.RetrieveTopK)
	assert.Equal(t, 4, cfg.AnswerConcurrency)
	assert.Equal(t, 60*time.Second, cfg.FetchTimeout)
	assert.Equal(t, int64(50<<20), cfg.FetchMaxBytes)
	assert.False(t, cfg.AllowLocalFiles, "local paths must be opt-in")
	assert.Equal(t, 60*time.Second, cfg.ExtractTimeout)
	assert.Equal(t, 30*time.Second, cfg.ReadyCacheTTL)
	assert.Empty(t, cfg.RedisURL)
	assert.Empty(t, cfg.DatabaseURL)
}

func TestLoad_Overrides(t *testing.T) {
	validEnv(t)
	t.Setenv("PORT", "9090")
	t.Setenv("EMBEDDING_PROVIDER", "OpenAI")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("LLM_PROVIDER", "openai")
	t.Setenv("LLM_RATE_PER_SEC", "2.5")
	t.Setenv("CHUNK_DEDUPLICATE", "yes")
	t.Setenv("INDEX_TIMEOUT", "90")
	t.Setenv("ANSWER_TIMEOUT", "1m30s")
	t.Setenv("VECTOR_BACKEND", "milvus")
	t.Setenv("MILVUS_ADDRESS", "localhost:19530")

	cfg := Load()

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, domain.AIProviderOpenAI, cfg.Embedding.Provider)
	assert.Equal(t, "sk-test", cfg.Embedding.APIKey)
	assert.Equal(t, "sk-test", cfg.LLM.APIKey)
	assert.InDelta(t, 2.5, cfg.LLMRatePerSec, 1e-9)
	assert.True(t, cfg.ChunkDeduplicate)
	assert.Equal(t, 90*time.Second, cfg.IndexTimeout)
	assert.Equal(t, 90*time.Second, cfg.AnswerTimeout)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_ProviderKeys(t *testing.T) {
	validEnv(t)

	cfg := Load()
	assert.Equal(t, "pa-test", cfg.Embedding.APIKey)
	assert.Equal(t, "gsk-test", cfg.LLM.APIKey)

	t.Setenv("LLM_API_KEY", "explicit")
	assert.Equal(t, "explicit", Load().LLM.APIKey)
}

func TestLoad_InvalidNumbersFallBack(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "not-a-number")
	t.Setenv("FETCH_TIMEOUT", "soon")

	cfg := Load()
	assert.Equal(t, 8000, cfg.Port)
	assert.Equal(t, 60*time.Second, cfg.FetchTimeout)
}

func TestLoad_AllowLocalFilesOptIn(t *testing.T) {
	clearEnv(t)
	t.Setenv("ALLOW_LOCAL_FILES", "true")

	assert.True(t, Load().AllowLocalFiles)
}

func TestConfig_RunTimeout(t *testing.T) {
	clearEnv(t)
	cfg := Load()

	// 50 questions at concurrency 4 need 13 waves of 60s answers
	want := 60*time.Second + 60*time.Second + 120*time.Second + 13*60*time.Second
	assert.Equal(t, want, cfg.RunTimeout())
	assert.Greater(t, cfg.WriteTimeout(), cfg.RunTimeout())

	cfg.MaxQuestions = 8
	cfg.AnswerConcurrency = 8
	assert.Equal(t, 300*time.Second, cfg.RunTimeout())

	cfg.MaxQuestions = 0
	cfg.AnswerConcurrency = 0
	assert.Equal(t, 240*time.Second+50*60*time.Second, cfg.RunTimeout())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantMsg string
	}{
		{"missing team token", map[string]string{"TEAM_TOKEN": ""}, "TEAM_TOKEN"},
		{"missing voyage key", map[string]string{"VOYAGE_API_KEY": ""}, "embedding provider"},
		{"missing groq key", map[string]string{"GROQ_API_KEY": ""}, "LLM provider"},
		{"groq has no embeddings", map[string]string{"EMBEDDING_PROVIDER": "groq"}, "does not provide embeddings"},
		{"voyage has no chat", map[string]string{"LLM_PROVIDER": "voyage"}, "does not provide chat"},
		{"unknown backend", map[string]string{"VECTOR_BACKEND": "weaviate"}, "VECTOR_BACKEND"},
		{"milvus without address", map[string]string{"VECTOR_BACKEND": "milvus"}, "MILVUS_ADDRESS"},
		{"overlap too large", map[string]string{"CHUNK_SIZE": "100", "CHUNK_OVERLAP": "100"}, "CHUNK_OVERLAP"},
		{"zero concurrency", map[string]string{"ANSWER_CONCURRENCY": "0"}, "ANSWER_CONCURRENCY"},
		{"bad log format", map[string]string{"LOG_FORMAT": "xml"}, "LOG_FORMAT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			validEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			err := Load().Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, domain.ErrInvalidInput))
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestValidate_OllamaNeedsNoKey(t *testing.T) {
	validEnv(t)
	t.Setenv("LLM_PROVIDER", "ollama")

	assert.NoError(t, Load().Validate())
}

func TestValidate_ReportsAllProblems(t *testing.T) {
	clearEnv(t)

	err := Load().Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TEAM_TOKEN")
	assert.Contains(t, err.Error(), "embedding provider")
	assert.Contains(t, err.Error(), "LLM provider")
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer

	cfg := &Config{LogLevel: "warn", LogFormat: "json"}
	logger := cfg.NewLogger(&buf)
	logger.Info("hidden")
	logger.Warn("shown", "request_id", "abc")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.True(t, strings.HasPrefix(out, "{"))
	assert.Contains(t, out, `"request_id":"abc"`)

	buf.Reset()
	cfg = &Config{LogLevel: "debug", LogFormat: "text"}
	cfg.NewLogger(&buf).Debug("visible")
	assert.Contains(t, buf.String(), "msg=visible")
}
