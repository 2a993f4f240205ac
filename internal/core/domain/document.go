package domain

import (
	"os"
	"sync"
)

// Page is the raw text of one PDF page (1-based number)
type Page struct {
	Number int    `json:"number"`
	Text   string `json:"text"`
}

// Chunk is a bounded slice of extracted document text.
// Chunks are immutable once produced by the extractor.
type Chunk struct {
	ID        string            `json:"id"`
	Content   string            `json:"content"`
	Page      int               `json:"page"`
	Position  int               `json:"position"` // Chunk position within document
	StartChar int               `json:"start_char"`
	EndChar   int               `json:"end_char"`
	Source    string            `json:"source"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// IndexEntry is a chunk paired with its embedding, as stored in a vector index
type IndexEntry struct {
	Chunk     *Chunk
	Embedding []float32
}

// ScoredChunk is a retrieval hit with its similarity score (higher is closer)
type ScoredChunk struct {
	Chunk *Chunk  `json:"chunk"`
	Score float64 `json:"score"`
}

// ScopedFile is a document staged on local disk for the lifetime of one run.
// Release removes owned files and is safe to call more than once.
type ScopedFile struct {
	Path   string
	Source string
	Size   int64

	owned bool
	once  sync.Once
	err   error
}

// NewScopedFile wraps a path. Owned files are deleted on Release; borrowed
// files (caller supplied local paths) are left in place.
func NewScopedFile(path, source string, size int64, owned bool) *ScopedFile {
	return &ScopedFile{
		Path:   path,
		Source: source,
		Size:   size,
		owned:  owned,
	}
}

// Owned reports whether Release deletes the underlying file
func (f *ScopedFile) Owned() bool {
	return f.owned
}

// Release deletes the file if it is owned by this run
func (f *ScopedFile) Release() error {
	if f == nil {
		return nil
	}
	f.once.Do(func() {
		if !f.owned {
			return
		}
		if err := os.Remove(f.Path); err != nil && !os.IsNotExist(err) {
			f.err = err
		}
	})
	return f.err
}
