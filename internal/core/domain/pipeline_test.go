package domain

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestStage_Next(t *testing.T) {
	tests := []struct {
		from Stage
		to   Stage
	}{
		{StageUnauthenticated, StageFetching},
		{StageFetching, StageExtracting},
		{StageExtracting, StageIndexing},
		{StageIndexing, StageAnswering},
		{StageAnswering, StageResponding},
		{StageResponding, StageResponding},
		{StageFailed, StageFailed},
	}

	for _, tt := range tests {
		t.Run(string(tt.from), func(t *testing.T) {
			if got := tt.from.Next(); got != tt.to {
				t.Errorf("expected %s, got %s", tt.to, got)
			}
		})
	}
}

func TestStage_CanTransition(t *testing.T) {
	if !StageFetching.CanTransition(StageExtracting) {
		t.Error("expected fetching -> extracting")
	}
	if StageFetching.CanTransition(StageIndexing) {
		t.Error("expected fetching -> indexing to be rejected")
	}
	for _, s := range []Stage{StageUnauthenticated, StageFetching, StageExtracting, StageIndexing, StageAnswering} {
		if !s.CanTransition(StageFailed) {
			t.Errorf("expected %s -> failed", s)
		}
	}
	if StageResponding.CanTransition(StageFailed) {
		t.Error("expected terminal stage to reject transitions")
	}
	if StageFailed.CanTransition(StageFetching) {
		t.Error("expected failed to be terminal")
	}
}

func TestScopedFile_ReleaseOwned(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.pdf")
	if err := os.WriteFile(path, []byte("%PDF-1.4"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	f := NewScopedFile(path, "https://example.com/doc.pdf", 8, true)
	if err := f.Release(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("expected owned file to be removed")
	}
	// Second release is a no-op
	if err := f.Release(); err != nil {
		t.Errorf("expected idempotent release, got %v", err)
	}
}

func TestScopedFile_ReleaseBorrowed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "local.pdf")
	if err := os.WriteFile(path, []byte("%PDF-1.4"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	f := NewScopedFile(path, path, 8, false)
	if f.Owned() {
		t.Error("expected borrowed file")
	}
	if err := f.Release(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Error("expected borrowed file to be kept")
	}
}

func TestScopedFile_NilRelease(t *testing.T) {
	var f *ScopedFile
	if err := f.Release(); err != nil {
		t.Errorf("expected nil error, got %v", err)
	}
}

func TestRun_Advance(t *testing.T) {
	run := NewRun("id", "https://example.com/doc.pdf", 2, time.Now())
	if run.Stage != StageUnauthenticated {
		t.Fatalf("expected new run to be unauthenticated, got %s", run.Stage)
	}

	for _, next := range []Stage{StageFetching, StageExtracting, StageIndexing, StageAnswering, StageResponding} {
		if err := run.Advance(next); err != nil {
			t.Fatalf("advance to %s: %v", next, err)
		}
	}
	if err := run.Advance(StageFailed); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("expected terminal run to reject failure, got %v", err)
	}
	if run.Stage != StageResponding {
		t.Errorf("expected stage unchanged, got %s", run.Stage)
	}
}

func TestRun_AdvanceRejectsSkippedStage(t *testing.T) {
	run := NewRun("id", "doc.pdf", 1, time.Now())
	if err := run.Advance(StageFetching); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err := run.Advance(StageIndexing)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	if err := run.Advance(StageFailed); err != nil {
		t.Errorf("expected failure reachable from fetching, got %v", err)
	}
}
