package pdf

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	ledongthuc "github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
)

// Ensure Extractor implements TextExtractor
var _ driven.TextExtractor = (*Extractor)(nil)

// Config holds extractor configuration
type Config struct {
	// Validate runs a structural pdfcpu check before text extraction
	Validate bool

	// MaxPages stops extraction after this many pages (0 = all)
	MaxPages int
}

// Extractor reads page text from PDF files.
// pdfcpu validates structure and counts pages; ledongthuc/pdf decodes text.
// With Validate set, files pdfcpu rejects fail with ErrExtraction.
type Extractor struct {
	config Config
	conf   *model.Configuration
	logger *slog.Logger
}

// NewExtractor creates a new PDF text extractor
func NewExtractor(config Config, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	return &Extractor{
		config: config,
		conf:   conf,
		logger: logger,
	}
}

// Extract returns one Page per page that has a content stream.
// Pages whose text cannot be decoded are returned empty.
func (e *Extractor) Extract(ctx context.Context, path string) ([]domain.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, path)
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrExtraction, err)
	}
	if info.Size() == 0 {
		return nil, fmt.Errorf("%w: empty file", domain.ErrExtraction)
	}

	limit := e.config.MaxPages
	if e.config.Validate {
		if err := api.ValidateFile(path, e.conf); err != nil {
			return nil, fmt.Errorf("%w: invalid pdf: %v", domain.ErrExtraction, err)
		}
		n, err := api.PageCountFile(path)
		if err != nil {
			return nil, fmt.Errorf("%w: count pages: %v", domain.ErrExtraction, err)
		}
		if n == 0 {
			return nil, fmt.Errorf("%w: document has no pages", domain.ErrExtraction)
		}
		// The page tree count from pdfcpu bounds the decoder loop
		if limit <= 0 || n < limit {
			limit = n
		}
	}

	return e.readPages(ctx, path, limit)
}

// readPages decodes up to limit pages (0 = all). The decoder panics on some malformed
// inputs, so panics are converted to ErrExtraction.
func (e *Extractor) readPages(ctx context.Context, path string, limit int) (pages []domain.Page, err error) {
	defer func() {
		if r := recover(); r != nil {
			pages = nil
			err = fmt.Errorf("%w: %v", domain.ErrExtraction, r)
		}
	}()

	f, reader, err := ledongthuc.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrExtraction, err)
	}
	defer f.Close()

	total := reader.NumPage()
	if limit > 0 && total > limit {
		total = limit
	}

	pages = make([]domain.Page, 0, total)
	for i := 1; i <= total; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			e.logger.Debug("skipping unreadable page", "path", path, "page", i, "error", err)
			text = ""
		}

		pages = append(pages, domain.Page{
			Number: i,
			Text:   strings.TrimSpace(text),
		})
	}
	return pages, nil
}
