package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
)

// Ensure Fetcher implements DocumentFetcher
var _ driven.DocumentFetcher = (*Fetcher)(nil)

// Config holds fetcher configuration
type Config struct {
	// ScratchDir is where downloaded documents are staged
	ScratchDir string

	// MaxBytes caps the download size (0 = unlimited)
	MaxBytes int64

	// MaxRetries is the number of retries on transient failures
	MaxRetries uint64

	// Timeout bounds a single HTTP attempt
	Timeout time.Duration

	// AllowLocal permits plain filesystem paths and file:// URLs.
	// Off by default: any token holder could read files on the server.
	AllowLocal bool
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		ScratchDir: os.TempDir(),
		MaxBytes:   50 << 20,
		MaxRetries: 2,
		Timeout:    60 * time.Second,
	}
}

// Fetcher downloads documents to uniquely named scratch files
type Fetcher struct {
	config Config
	client *http.Client
	logger *slog.Logger
}

// New creates a new Fetcher
func New(config Config, logger *slog.Logger) (*Fetcher, error) {
	if config.ScratchDir == "" {
		config.ScratchDir = os.TempDir()
	}
	if err := os.MkdirAll(config.ScratchDir, 0o700); err != nil {
		return nil, fmt.Errorf("create scratch dir: %w", err)
	}
	if config.Timeout <= 0 {
		config.Timeout = 60 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Fetcher{
		config: config,
		client: &http.Client{Timeout: config.Timeout},
		logger: logger,
	}, nil
}

// Fetch stages source on local disk. Remote documents are owned by the
// returned ScopedFile and removed on Release; local paths are borrowed.
func (f *Fetcher) Fetch(ctx context.Context, requestID, source string) (*domain.ScopedFile, error) {
	source = strings.TrimSpace(source)
	if source == "" {
		return nil, fmt.Errorf("%w: empty document source", domain.ErrInvalidInput)
	}

	u, err := url.Parse(source)
	if err == nil && (u.Scheme == "http" || u.Scheme == "https") {
		return f.download(ctx, requestID, source)
	}

	if !f.config.AllowLocal {
		return nil, fmt.Errorf("%w: unsupported document source %q", domain.ErrFetch, domain.RedactURL(source))
	}
	path := source
	if err == nil && u.Scheme == "file" {
		path = u.Path
	}
	return f.local(path)
}

// local borrows an existing file without copying it
func (f *Fetcher) local(path string) (*domain.ScopedFile, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, path)
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrFetch, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", domain.ErrFetch, path)
	}
	return domain.NewScopedFile(path, path, info.Size(), false), nil
}

// download streams the body into <scratch>/<requestID>-<uuid>.pdf with retries
func (f *Fetcher) download(ctx context.Context, requestID, source string) (*domain.ScopedFile, error) {
	name := fmt.Sprintf("%s-%s.pdf", sanitize(requestID), uuid.New().String())
	path := filepath.Join(f.config.ScratchDir, name)

	var size int64
	attempt := 0
	op := func() error {
		attempt++
		n, err := f.downloadOnce(ctx, source, path)
		if err != nil {
			f.logger.Debug("document download attempt failed",
				"source", domain.RedactURL(source), "attempt", attempt, "error", err)
			return err
		}
		size = n
		return nil
	}

	b := backoff.WithContext(
		backoff.WithMaxRetries(newBackOff(), f.config.MaxRetries), ctx)
	if err := backoff.Retry(op, b); err != nil {
		_ = os.Remove(path)
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrFetch, ctx.Err())
		}
		return nil, err
	}

	f.logger.Debug("document downloaded", "source", domain.RedactURL(source), "path", path, "bytes", size)
	return domain.NewScopedFile(path, source, size, true), nil
}

// downloadOnce performs one GET. Client errors are wrapped in
// backoff.Permanent so they are not retried.
func (f *Fetcher) downloadOnce(ctx context.Context, source, path string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return 0, backoff.Permanent(fmt.Errorf("%w: %v", domain.ErrFetch, redactError(err)))
	}
	req.Header.Set("Accept", "application/pdf, */*")

	resp, err := f.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrFetch, redactError(err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		err := fmt.Errorf("%w: %s returned status %d", domain.ErrFetch, domain.RedactURL(source), resp.StatusCode)
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return 0, err
		}
		return 0, backoff.Permanent(err)
	}

	if f.config.MaxBytes > 0 && resp.ContentLength > f.config.MaxBytes {
		return 0, backoff.Permanent(fmt.Errorf("%w: document is %d bytes, limit is %d",
			domain.ErrFetch, resp.ContentLength, f.config.MaxBytes))
	}

	out, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return 0, backoff.Permanent(fmt.Errorf("create scratch file: %w", err))
	}

	var body io.Reader = resp.Body
	if f.config.MaxBytes > 0 {
		body = io.LimitReader(resp.Body, f.config.MaxBytes+1)
	}
	n, err := io.Copy(out, body)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrFetch, err)
	}
	if f.config.MaxBytes > 0 && n > f.config.MaxBytes {
		return 0, backoff.Permanent(fmt.Errorf("%w: document exceeds %d bytes", domain.ErrFetch, f.config.MaxBytes))
	}
	return n, nil
}

func newBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 250 * time.Millisecond
	b.MaxInterval = 2 * time.Second
	return b
}

// sanitize keeps request IDs safe for use in file names
func sanitize(id string) string {
	if id == "" {
		return "doc"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, id)
}

// redactError strips the query string from the URL net/http puts in its errors
func redactError(err error) error {
	var uerr *url.Error
	if errors.As(err, &uerr) {
		uerr.URL = domain.RedactURL(uerr.URL)
	}
	return err
}
