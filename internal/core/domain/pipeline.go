package domain

import (
	"fmt"
	"time"
)

// Stage is a state of a single pipeline run
type Stage string

const (
	StageUnauthenticated Stage = "unauthenticated"
	StageFetching        Stage = "fetching"
	StageExtracting      Stage = "extracting"
	StageIndexing        Stage = "indexing"
	StageAnswering       Stage = "answering"
	StageResponding      Stage = "responding"
	StageFailed          Stage = "failed"
)

// stageOrder lists the forward transitions of a run
var stageOrder = []Stage{
	StageUnauthenticated,
	StageFetching,
	StageExtracting,
	StageIndexing,
	StageAnswering,
	StageResponding,
}

// Next returns the stage that follows s on the success path.
// Responding and Failed are terminal and return themselves.
func (s Stage) Next() Stage {
	for i, st := range stageOrder {
		if st == s && i+1 < len(stageOrder) {
			return stageOrder[i+1]
		}
	}
	return s
}

// CanTransition reports whether a run may move from s to next.
// Failed is reachable from every non-terminal stage.
func (s Stage) CanTransition(next Stage) bool {
	if s.IsTerminal() {
		return false
	}
	if next == StageFailed {
		return true
	}
	return s.Next() == next
}

// IsTerminal returns true for Responding and Failed
func (s Stage) IsTerminal() bool {
	return s == StageResponding || s == StageFailed
}

// RunStatus is the final outcome recorded for a run
type RunStatus string

const (
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusFailed    RunStatus = "failed"
)

// Run is the audit record of one pipeline execution
type Run struct {
	ID            string        `json:"id"`
	Stage         Stage         `json:"stage"`
	DocumentURL   string        `json:"document_url"`
	QuestionCount int           `json:"question_count"`
	ChunkCount    int           `json:"chunk_count"`
	FailedAnswers int           `json:"failed_answers"`
	Status        RunStatus     `json:"status"`
	FailedStage   Stage         `json:"failed_stage,omitempty"`
	Error         string        `json:"error,omitempty"`
	StartedAt     time.Time     `json:"started_at"`
	Duration      time.Duration `json:"duration"`
}

// NewRun starts the audit record of a run in the unauthenticated stage
func NewRun(id, documentURL string, questions int, startedAt time.Time) *Run {
	return &Run{
		ID:            id,
		Stage:         StageUnauthenticated,
		DocumentURL:   documentURL,
		QuestionCount: questions,
		StartedAt:     startedAt,
	}
}

// Advance moves the run to next, rejecting transitions the stage machine forbids
func (r *Run) Advance(next Stage) error {
	if !r.Stage.CanTransition(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, r.Stage, next)
	}
	r.Stage = next
	return nil
}
