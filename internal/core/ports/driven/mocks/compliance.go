package mocks

import "github.com/custodia-labs/docqa/internal/core/ports/driven"

var (
	_ driven.EmbeddingService = (*MockEmbeddingService)(nil)
	_ driven.LLMService       = (*MockLLMService)(nil)
	_ driven.VectorIndex      = (*MockVectorIndex)(nil)
	_ driven.DocumentFetcher  = (*MockFetcher)(nil)
	_ driven.TextExtractor    = (*MockExtractor)(nil)
	_ driven.EmbeddingCache   = (*MockEmbeddingCache)(nil)
	_ driven.RunStore         = (*MockRunStore)(nil)
)
