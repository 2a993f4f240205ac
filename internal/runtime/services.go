package runtime

import (
	"context"
	"errors"
	"io"
	"maps"
	"sync"
	"time"

	"github.com/custodia-labs/docqa/internal/core/ports/driven"
)

// Component names reported by Check
const (
	ComponentEmbedding = "embedding"
	ComponentLLM       = "llm"
	ComponentIndex     = "vector_index"
	ComponentCache     = "embedding_cache"
	ComponentRunStore  = "run_store"
)

// Services holds the application-lifetime clients shared by every request.
// Optional services (cache, run store) may be nil.
// Thread-safe for concurrent access.
type Services struct {
	mu sync.RWMutex

	embeddingService driven.EmbeddingService
	llmService       driven.LLMService
	vectorIndex      driven.VectorIndex
	embeddingCache   driven.EmbeddingCache
	runStore         driven.RunStore

	// closers are extra resources (db pools, redis clients) released on Close
	closers []io.Closer

	// generation changes whenever a service is replaced
	generation uint64

	// Check results are reused for checkTTL; checkMu also collapses
	// concurrent probes into one round of remote calls.
	checkMu      sync.Mutex
	checkTTL     time.Duration
	lastCheck    map[string]error
	lastCheckAt  time.Time
	lastCheckGen uint64
	now          func() time.Time
}

// NewServices creates an empty Services registry
func NewServices() *Services {
	return &Services{now: time.Now}
}

// SetCheckTTL makes Check reuse its last result for d (0 disables reuse).
func (s *Services) SetCheckTTL(d time.Duration) {
	s.checkMu.Lock()
	defer s.checkMu.Unlock()
	s.checkTTL = d
	s.lastCheck = nil
}

// EmbeddingService returns the current embedding service (may be nil)
func (s *Services) EmbeddingService() driven.EmbeddingService {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.embeddingService
}

// LLMService returns the current LLM service (may be nil)
func (s *Services) LLMService() driven.LLMService {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.llmService
}

// VectorIndex returns the vector index (may be nil)
func (s *Services) VectorIndex() driven.VectorIndex {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.vectorIndex
}

// EmbeddingCache returns the embedding cache (may be nil)
func (s *Services) EmbeddingCache() driven.EmbeddingCache {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.embeddingCache
}

// RunStore returns the run store (may be nil)
func (s *Services) RunStore() driven.RunStore {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.runStore
}

// SetEmbeddingService updates the embedding service.
// Closes the old service if present.
func (s *Services) SetEmbeddingService(svc driven.EmbeddingService) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++

	if s.embeddingService != nil {
		_ = s.embeddingService.Close()
	}
	s.embeddingService = svc
}

// SetLLMService updates the LLM service.
// Closes the old service if present.
func (s *Services) SetLLMService(svc driven.LLMService) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++

	if s.llmService != nil {
		_ = s.llmService.Close()
	}
	s.llmService = svc
}

// SetVectorIndex updates the vector index.
// Closes the old index if present.
func (s *Services) SetVectorIndex(idx driven.VectorIndex) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++

	if s.vectorIndex != nil {
		_ = s.vectorIndex.Close()
	}
	s.vectorIndex = idx
}

// SetEmbeddingCache sets the optional embedding cache
func (s *Services) SetEmbeddingCache(cache driven.EmbeddingCache) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	s.embeddingCache = cache
}

// SetRunStore sets the optional run store
func (s *Services) SetRunStore(store driven.RunStore) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	s.runStore = store
}

// AddCloser registers a resource to release on Close, in reverse order
func (s *Services) AddCloser(c io.Closer) {
	if c == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closers = append(s.closers, c)
}

// Close shuts down all services. It is safe to call more than once.
func (s *Services) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	if s.embeddingService != nil {
		errs = append(errs, s.embeddingService.Close())
		s.embeddingService = nil
	}
	if s.llmService != nil {
		errs = append(errs, s.llmService.Close())
		s.llmService = nil
	}
	if s.vectorIndex != nil {
		errs = append(errs, s.vectorIndex.Close())
		s.vectorIndex = nil
	}
	s.embeddingCache = nil
	s.runStore = nil
	s.generation++

	for i := len(s.closers) - 1; i >= 0; i-- {
		errs = append(errs, s.closers[i].Close())
	}
	s.closers = nil

	return errors.Join(errs...)
}

// Check probes every configured component and returns the error of each.
// A nil map value means healthy; missing optional components are omitted.
// Within the check TTL the previous result is returned unless a service
// was replaced in between.
func (s *Services) Check(ctx context.Context) map[string]error {
	s.checkMu.Lock()
	defer s.checkMu.Unlock()

	s.mu.RLock()
	embedding, llm, index := s.embeddingService, s.llmService, s.vectorIndex
	cache, store := s.embeddingCache, s.runStore
	gen := s.generation
	s.mu.RUnlock()

	now := s.now()
	if s.checkTTL > 0 && s.lastCheck != nil && s.lastCheckGen == gen && now.Sub(s.lastCheckAt) < s.checkTTL {
		return maps.Clone(s.lastCheck)
	}

	result := make(map[string]error)
	if embedding == nil {
		result[ComponentEmbedding] = errNotConfigured
	} else {
		result[ComponentEmbedding] = embedding.HealthCheck(ctx)
	}
	if llm == nil {
		result[ComponentLLM] = errNotConfigured
	} else {
		result[ComponentLLM] = llm.Ping(ctx)
	}
	if index == nil {
		result[ComponentIndex] = errNotConfigured
	} else {
		result[ComponentIndex] = index.HealthCheck(ctx)
	}
	if cache != nil {
		result[ComponentCache] = cache.Ping(ctx)
	}
	if store != nil {
		result[ComponentRunStore] = store.Ping(ctx)
	}

	if s.checkTTL > 0 {
		s.lastCheck = maps.Clone(result)
		s.lastCheckAt = now
		s.lastCheckGen = gen
	}
	return result
}

var errNotConfigured = errors.New("not configured")

// ValidateAndSetEmbedding validates connectivity before setting embedding service
func (s *Services) ValidateAndSetEmbedding(ctx context.Context, svc driven.EmbeddingService) error {
	if svc == nil {
		s.SetEmbeddingService(nil)
		return nil
	}

	if err := svc.HealthCheck(ctx); err != nil {
		_ = svc.Close()
		return err
	}

	s.SetEmbeddingService(svc)
	return nil
}

// ValidateAndSetLLM validates connectivity before setting LLM service
func (s *Services) ValidateAndSetLLM(ctx context.Context, svc driven.LLMService) error {
	if svc == nil {
		s.SetLLMService(nil)
		return nil
	}

	if err := svc.Ping(ctx); err != nil {
		_ = svc.Close()
		return err
	}

	s.SetLLMService(svc)
	return nil
}
