package domain

import (
	"errors"
	"fmt"
)

// Domain errors - used across all layers
var (
	// ErrNotFound indicates a local document path does not exist
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates the request body is invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnauthorized indicates the bearer token is missing or wrong
	ErrUnauthorized = errors.New("unauthorized")

	// ErrFetch indicates the document could not be downloaded
	ErrFetch = errors.New("document fetch failed")

	// ErrExtraction indicates the PDF could not be parsed
	ErrExtraction = errors.New("document extraction failed")

	// ErrEmptyDocument indicates extraction produced no chunks
	ErrEmptyDocument = errors.New("no content extracted from document")

	// ErrEmbedding indicates the embedding service failed
	ErrEmbedding = errors.New("embedding failed")

	// ErrIndex indicates the vector index rejected a write or query
	ErrIndex = errors.New("vector index failed")

	// ErrGeneration indicates the LLM call for a single question failed
	ErrGeneration = errors.New("answer generation failed")

	// ErrInvalidProvider indicates an unknown AI provider was specified
	ErrInvalidProvider = errors.New("invalid provider")

	// ErrInvalidTransition indicates a run skipped or repeated a pipeline stage
	ErrInvalidTransition = errors.New("invalid stage transition")

	// ErrServiceUnavailable indicates a remote service could not be reached
	ErrServiceUnavailable = errors.New("service unavailable")
)

// StageError records the pipeline stage a request failed in.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// NewStageError wraps err with the stage it occurred in. A nil err yields nil.
func NewStageError(stage Stage, err error) error {
	if err == nil {
		return nil
	}
	return &StageError{Stage: stage, Err: err}
}

// FailedStage returns the stage recorded in err, or "" if none.
func FailedStage(err error) Stage {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return ""
}

// IsClientError reports whether err was caused by the caller's document or input
// rather than by an upstream service.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrFetch) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrExtraction) ||
		errors.Is(err, ErrEmptyDocument)
}

// IsUpstreamError reports whether err came from the embedding or index services.
func IsUpstreamError(err error) bool {
	return errors.Is(err, ErrEmbedding) || errors.Is(err, ErrIndex)
}
