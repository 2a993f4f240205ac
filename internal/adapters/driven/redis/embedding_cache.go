package redis

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/custodia-labs/docqa/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.EmbeddingCache = (*EmbeddingCache)(nil)

const embeddingPrefix = "docqa:emb:"

// EmbeddingCache implements EmbeddingCache on Redis.
// Keys are model + SHA-256 of the text; values are little-endian float32s.
type EmbeddingCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewEmbeddingCache creates a cache; ttl <= 0 keeps entries until evicted
func NewEmbeddingCache(client *redis.Client, ttl time.Duration) *EmbeddingCache {
	return &EmbeddingCache{client: client, ttl: ttl}
}

// Connect parses a redis:// URL and verifies the server responds
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// GetMany returns cached vectors in input order; misses are nil
func (c *EmbeddingCache) GetMany(ctx context.Context, model string, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	keys := make([]string, len(texts))
	for i, t := range texts {
		keys[i] = embeddingKey(model, t)
	}

	values, err := c.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("get embeddings: %w", err)
	}

	out := make([][]float32, len(texts))
	for i, v := range values {
		s, ok := v.(string)
		if !ok {
			continue
		}
		vec, err := decodeVector([]byte(s))
		if err != nil {
			// Corrupt entries are treated as misses and overwritten later
			continue
		}
		out[i] = vec
	}
	return out, nil
}

// SetMany stores vectors in one pipeline round trip
func (c *EmbeddingCache) SetMany(ctx context.Context, model string, texts []string, embeddings [][]float32) error {
	if len(texts) != len(embeddings) {
		return fmt.Errorf("set embeddings: %d texts but %d embeddings", len(texts), len(embeddings))
	}
	if len(texts) == 0 {
		return nil
	}

	pipe := c.client.Pipeline()
	for i, t := range texts {
		pipe.Set(ctx, embeddingKey(model, t), encodeVector(embeddings[i]), c.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("set embeddings: %w", err)
	}
	return nil
}

// Ping checks if Redis is reachable
func (c *EmbeddingCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func embeddingKey(model, text string) string {
	sum := sha256.Sum256([]byte(text))
	return embeddingPrefix + model + ":" + hex.EncodeToString(sum[:])
}

func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(b []byte) ([]float32, error) {
	if len(b) == 0 || len(b)%4 != 0 {
		return nil, fmt.Errorf("invalid vector length %d", len(b))
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return v, nil
}
