package postprocessors

import (
	"sort"
	"strings"
	"sync"

	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.PostProcessorPipeline = (*Pipeline)(nil)

// Pipeline implements PostProcessorPipeline.
// It chains multiple post-processors in order, starting with a Chunker.
type Pipeline struct {
	mu         sync.RWMutex
	processors []driven.PostProcessor
	sorted     bool
}

// NewPipeline creates a new post-processor pipeline.
func NewPipeline() *Pipeline {
	return &Pipeline{
		processors: make([]driven.PostProcessor, 0),
	}
}

// Add adds a processor to the pipeline.
// Processors are sorted by Order() before processing.
func (p *Pipeline) Add(processor driven.PostProcessor) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.processors = append(p.processors, processor)
	p.sorted = false
}

// Process applies all processors in order.
// Input is one entry per extracted page; output is the final chunk list
// with positions renumbered 0..n-1 in document order.
func (p *Pipeline) Process(pages []domain.Page) []driven.Chunk {
	p.mu.Lock()
	if !p.sorted {
		sort.SliceStable(p.processors, func(i, j int) bool {
			return p.processors[i].Order() < p.processors[j].Order()
		})
		p.sorted = true
	}
	processors := make([]driven.PostProcessor, len(p.processors))
	copy(processors, p.processors)
	p.mu.Unlock()

	// Start with one chunk per page
	chunks := make([]driven.Chunk, 0, len(pages))
	for i, page := range pages {
		chunks = append(chunks, driven.Chunk{
			Content:     page.Text,
			Page:        page.Number,
			Position:    i,
			StartOffset: 0,
			EndOffset:   len(page.Text),
		})
	}

	for _, proc := range processors {
		chunks = proc.Process(chunks)
	}

	for i := range chunks {
		chunks[i].Position = i
	}
	return chunks
}

// List returns processor names in order.
func (p *Pipeline) List() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	names := make([]string, len(p.processors))
	for i, proc := range p.processors {
		names[i] = proc.Name()
	}
	return names
}

// DefaultPipeline creates a pipeline with the default processors.
func DefaultPipeline() *Pipeline {
	return NewPipelineFromConfig(DefaultChunkConfig(), false)
}

// NewPipelineFromConfig builds the chunker + whitespace normalizer pipeline,
// optionally followed by the deduplicator.
func NewPipelineFromConfig(config ChunkConfig, deduplicate bool) *Pipeline {
	p := NewPipeline()
	p.Add(NewChunker(config))
	p.Add(NewWhitespaceNormalizer())
	if deduplicate {
		p.Add(NewDeduplicator(DefaultDeduplicatorConfig()))
	}
	return p
}

// DeduplicatorConfig configures the deduplicator.
type DeduplicatorConfig struct {
	// MinDuplicateLength is the minimum chunk length to check for duplicates
	MinDuplicateLength int
}

// DefaultDeduplicatorConfig returns sensible defaults.
func DefaultDeduplicatorConfig() DeduplicatorConfig {
	return DeduplicatorConfig{
		MinDuplicateLength: 50,
	}
}

// Deduplicator drops chunks whose normalized text already appeared earlier,
// such as running headers and footers repeated on every page.
type Deduplicator struct {
	config DeduplicatorConfig
}

// Verify interface compliance
var _ driven.PostProcessor = (*Deduplicator)(nil)

// NewDeduplicator creates a new deduplicator with the given config.
func NewDeduplicator(config DeduplicatorConfig) *Deduplicator {
	return &Deduplicator{config: config}
}

// Process removes duplicate chunks, keeping the first occurrence.
func (d *Deduplicator) Process(chunks []driven.Chunk) []driven.Chunk {
	if len(chunks) <= 1 {
		return chunks
	}

	seen := make(map[string]bool)
	var result []driven.Chunk

	for _, chunk := range chunks {
		if len(chunk.Content) < d.config.MinDuplicateLength {
			result = append(result, chunk)
			continue
		}

		normalized := strings.TrimSpace(strings.ToLower(chunk.Content))
		if !seen[normalized] {
			seen[normalized] = true
			result = append(result, chunk)
		}
	}

	return result
}

// Name returns the processor name.
func (d *Deduplicator) Name() string {
	return "deduplicator"
}

// Order returns 10 - deduplicator runs after whitespace normalization.
func (d *Deduplicator) Order() int {
	return 10
}

// WhitespaceNormalizer normalizes whitespace in chunks.
type WhitespaceNormalizer struct{}

// Verify interface compliance
var _ driven.PostProcessor = (*WhitespaceNormalizer)(nil)

// NewWhitespaceNormalizer creates a new whitespace normalizer.
func NewWhitespaceNormalizer() *WhitespaceNormalizer {
	return &WhitespaceNormalizer{}
}

// Process normalizes whitespace in chunks and drops chunks left empty.
func (w *WhitespaceNormalizer) Process(chunks []driven.Chunk) []driven.Chunk {
	result := make([]driven.Chunk, 0, len(chunks))

	for _, chunk := range chunks {
		content := strings.ReplaceAll(chunk.Content, "\r\n", "\n")
		content = strings.ReplaceAll(content, "\r", "\n")
		content = strings.ReplaceAll(content, "\t", " ")

		// Collapse runs of spaces (but preserve newlines)
		lines := strings.Split(content, "\n")
		for i, line := range lines {
			lines[i] = strings.Join(strings.Fields(line), " ")
		}
		content = strings.Join(lines, "\n")

		for strings.Contains(content, "\n\n\n") {
			content = strings.ReplaceAll(content, "\n\n\n", "\n\n")
		}

		content = strings.TrimSpace(content)

		if len(content) > 0 {
			newChunk := chunk
			newChunk.Content = content
			result = append(result, newChunk)
		}
	}

	return result
}

// Name returns the processor name.
func (w *WhitespaceNormalizer) Name() string {
	return "whitespace-normalizer"
}

// Order returns 5 - runs between chunker and deduplicator.
func (w *WhitespaceNormalizer) Order() int {
	return 5
}
