package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// defaultMaxRetries is the number of retries on 429 and 5xx responses
const defaultMaxRetries = 3

// StatusError is a non-2xx response from a provider API
type StatusError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s API returned status %d: %s", e.Provider, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s API returned status %d", e.Provider, e.StatusCode)
}

// Retryable reports whether the request may succeed if repeated
func (e *StatusError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// apiErrorBody covers the OpenAI-style {"error": {...}} and the
// FastAPI-style {"detail": "..."} error envelopes.
type apiErrorBody struct {
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
	Detail string `json:"detail,omitempty"`
}

func (b apiErrorBody) message() string {
	if b.Error != nil && b.Error.Message != "" {
		if b.Error.Type != "" {
			return fmt.Sprintf("%s (type: %s)", b.Error.Message, b.Error.Type)
		}
		return b.Error.Message
	}
	return b.Detail
}

// apiClient is a JSON-over-HTTP client shared by the provider adapters
type apiClient struct {
	provider   string
	baseURL    string
	apiKey     string
	client     *http.Client
	maxRetries uint64
	retryWait  time.Duration
}

func newAPIClient(provider, baseURL, apiKey string, timeout time.Duration) *apiClient {
	return &apiClient{
		provider:   provider,
		baseURL:    baseURL,
		apiKey:     apiKey,
		client:     &http.Client{Timeout: timeout},
		maxRetries: defaultMaxRetries,
		retryWait:  500 * time.Millisecond,
	}
}

// postJSON sends in as JSON to path and decodes the response into out,
// retrying with exponential backoff on 429, 5xx and transport errors.
func (c *apiClient) postJSON(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}
	return c.do(ctx, http.MethodPost, path, body, out)
}

// get issues a GET and decodes the response into out (which may be nil)
func (c *apiClient) get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

func (c *apiClient) do(ctx context.Context, method, path string, body []byte, out any) error {
	op := func() error {
		err := c.once(ctx, method, path, body, out)
		var se *StatusError
		if errors.As(err, &se) && !se.Retryable() {
			return backoff.Permanent(err)
		}
		return err
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.retryWait
	b.MaxInterval = 8 * c.retryWait
	return backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(b, c.maxRetries), ctx))
}

func (c *apiClient) once(ctx context.Context, method, path string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var eb apiErrorBody
		_ = json.Unmarshal(respBody, &eb)
		return &StatusError{Provider: c.provider, StatusCode: resp.StatusCode, Message: eb.message()}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return backoff.Permanent(fmt.Errorf("failed to parse response: %w", err))
	}
	return nil
}

func (c *apiClient) close() {
	c.client.CloseIdleConnections()
}
