package postprocessors

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/custodia-labs/docqa/internal/core/ports/driven"
)

// ChunkConfig configures the chunker behavior.
// Sizes are measured in characters (runes), not bytes.
type ChunkConfig struct {
	// ChunkSize is the maximum characters per chunk
	ChunkSize int

	// Overlap is the character overlap carried from one chunk into the next
	Overlap int

	// Separators are tried in order; "" splits between characters
	Separators []string
}

// DefaultSeparators splits on paragraphs, then lines, then sentences, then words.
var DefaultSeparators = []string{"\n\n", "\n", ". ", " ", ""}

// DefaultChunkConfig returns sensible defaults.
func DefaultChunkConfig() ChunkConfig {
	return ChunkConfig{
		ChunkSize:  512,
		Overlap:    50,
		Separators: DefaultSeparators,
	}
}

// normalize fills unset fields and clamps the overlap below the chunk size
func (c ChunkConfig) normalize() ChunkConfig {
	if c.ChunkSize <= 0 {
		c.ChunkSize = 512
	}
	if c.Overlap < 0 {
		c.Overlap = 0
	}
	if c.Overlap >= c.ChunkSize {
		c.Overlap = c.ChunkSize / 10
	}
	if len(c.Separators) == 0 {
		c.Separators = DefaultSeparators
	}
	return c
}

// Chunker splits page text into overlapping chunks by recursively trying
// coarser separators first and falling back to finer ones for oversized pieces.
// This is typically the first processor in the pipeline (Order = 0).
type Chunker struct {
	config ChunkConfig
}

// Verify interface compliance
var _ driven.PostProcessor = (*Chunker)(nil)

// NewChunker creates a new chunker with the given config.
func NewChunker(config ChunkConfig) *Chunker {
	return &Chunker{config: config.normalize()}
}

// Config returns the effective configuration.
func (c *Chunker) Config() ChunkConfig {
	return c.config
}

// Process splits each input chunk (one per page) into bounded chunks.
func (c *Chunker) Process(chunks []driven.Chunk) []driven.Chunk {
	var result []driven.Chunk
	position := 0

	for _, chunk := range chunks {
		pieces := c.Split(chunk.Content)
		cursor := 0
		prevLen := 0
		for _, piece := range pieces {
			// Locate the piece in the source text, searching from just
			// before the overlap window of the previous piece.
			from := cursor + prevLen - c.config.Overlap*utf8.UTFMax
			if from < cursor {
				from = cursor
			}
			if from > len(chunk.Content) {
				from = len(chunk.Content)
			}
			start := chunk.StartOffset
			if idx := strings.Index(chunk.Content[from:], piece); idx >= 0 {
				cursor = from + idx
				start += cursor
			} else if idx := strings.Index(chunk.Content, piece); idx >= 0 {
				cursor = idx
				start += cursor
			}
			prevLen = len(piece)

			metadata := make(map[string]string, len(chunk.Metadata)+1)
			for k, v := range chunk.Metadata {
				metadata[k] = v
			}
			metadata["page"] = strconv.Itoa(chunk.Page)

			result = append(result, driven.Chunk{
				Content:     piece,
				Page:        chunk.Page,
				Position:    position,
				StartOffset: start,
				EndOffset:   start + len(piece),
				Metadata:    metadata,
			})
			position++
		}
	}

	return result
}

// Name returns the processor name.
func (c *Chunker) Name() string {
	return "chunker"
}

// Order returns 0 - chunker should be first.
func (c *Chunker) Order() int {
	return 0
}

// Split breaks text into trimmed, non-empty pieces of at most ChunkSize
// characters (a single unbreakable piece can exceed it only when the
// separator list has no "" fallback).
func (c *Chunker) Split(text string) []string {
	return c.splitText(text, c.config.Separators)
}

func (c *Chunker) splitText(text string, separators []string) []string {
	var final []string

	// Pick the first separator present in the text
	separator := separators[len(separators)-1]
	var rest []string
	for i, s := range separators {
		if s == "" {
			separator = s
			break
		}
		if strings.Contains(text, s) {
			separator = s
			rest = separators[i+1:]
			break
		}
	}

	splits := splitKeepSeparator(text, separator)

	var good []string
	for _, s := range splits {
		if runeLen(s) < c.config.ChunkSize {
			good = append(good, s)
			continue
		}
		if len(good) > 0 {
			final = append(final, c.merge(good)...)
			good = nil
		}
		if len(rest) == 0 {
			if t := strings.TrimSpace(s); t != "" {
				final = append(final, t)
			}
		} else {
			final = append(final, c.splitText(s, rest)...)
		}
	}
	if len(good) > 0 {
		final = append(final, c.merge(good)...)
	}
	return final
}

// merge greedily packs splits into chunks, carrying up to Overlap
// characters of trailing splits into the next chunk.
func (c *Chunker) merge(splits []string) []string {
	var docs []string
	var current []string
	total := 0

	for _, d := range splits {
		l := runeLen(d)
		if total+l > c.config.ChunkSize && len(current) > 0 {
			if doc := strings.TrimSpace(strings.Join(current, "")); doc != "" {
				docs = append(docs, doc)
			}
			for total > c.config.Overlap || (total+l > c.config.ChunkSize && total > 0) {
				total -= runeLen(current[0])
				current = current[1:]
			}
		}
		current = append(current, d)
		total += l
	}
	if doc := strings.TrimSpace(strings.Join(current, "")); doc != "" {
		docs = append(docs, doc)
	}
	return docs
}

// splitKeepSeparator splits text on sep, attaching each separator to the
// start of the piece that follows it. An empty sep splits into characters.
func splitKeepSeparator(text, sep string) []string {
	if sep == "" {
		out := make([]string, 0, utf8.RuneCountInString(text))
		for _, r := range text {
			out = append(out, string(r))
		}
		return out
	}

	parts := strings.Split(text, sep)
	out := make([]string, 0, len(parts))
	if parts[0] != "" {
		out = append(out, parts[0])
	}
	for _, p := range parts[1:] {
		out = append(out, sep+p)
	}
	return out
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
