package fswatch

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/standardbeagle/lci-cached-nav/internal/types"
)

func TestCollapseCreatedThenDeletedYieldsNoEvent(t *testing.T) {
	_, keep := collapse(types.EventCreated, types.EventDeleted)
	if keep {
		t.Fatalf("expected Created+Deleted to collapse to no event")
	}
}

func TestCollapseCreatedThenModifiedStaysCreated(t *testing.T) {
	got, keep := collapse(types.EventCreated, types.EventModified)
	if !keep || got != types.EventCreated {
		t.Fatalf("expected Created, got %v keep=%v", got, keep)
	}
}

func TestCollapseModifiedThenDeletedBecomesDeleted(t *testing.T) {
	got, keep := collapse(types.EventModified, types.EventDeleted)
	if !keep || got != types.EventDeleted {
		t.Fatalf("expected Deleted, got %v keep=%v", got, keep)
	}
}

func TestCollapseUnrelatedPairsTakeTheLatest(t *testing.T) {
	got, keep := collapse(types.EventModified, types.EventModified)
	if !keep || got != types.EventModified {
		t.Fatalf("expected Modified, got %v keep=%v", got, keep)
	}
}

func TestWatchReportsCreatedFile(t *testing.T) {
	root := t.TempDir()

	batches := make(chan []types.FileEvent, 8)
	cfg := DefaultConfig()
	cfg.DebounceInterval = 20 * time.Millisecond

	w, err := New(cfg, func(batch []types.FileEvent) { batches <- batch })
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer w.Close()

	if err := w.Watch(root); err != nil {
		t.Fatalf("Watch: %v", err)
	}

	path := filepath.Join(root, "new.go")
	if err := os.WriteFile(path, []byte("package main"), 0644); err != nil {
		t.Fatal(err)
	}

	select {
	case batch := <-batches:
		found := false
		for _, e := range batch {
			if e.FilePath == path && e.WorkspaceRoot == root {
				found = true
			}
		}
		if !found {
			t.Fatalf("expected a create event for %s, got %+v", path, batch)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for batch")
	}
}

func TestWatchIgnoresExcludedFiles(t *testing.T) {
	root := t.TempDir()
	if err := os.Mkdir(filepath.Join(root, "vendor"), 0755); err != nil {
		t.Fatal(err)
	}

	batches := make(chan []types.FileEvent, 8)
	cfg := DefaultConfig()
	cfg.DebounceInterval = 20 * time.Millisecond
	cfg.Exclude = []string{"vendor/**", "vendor"}

	w, err := New(cfg, func(batch []types.FileEvent) { batches <- batch })
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer w.Close()

	if err := w.Watch(root); err != nil {
		t.Fatalf("Watch: %v", err)
	}

	if err := os.WriteFile(filepath.Join(root, "vendor", "dep.go"), []byte("package vendor"), 0644); err != nil {
		t.Fatal(err)
	}
	// Also write a non-excluded file so we have something to wait on;
	// if the excluded file leaked through it would arrive in the same
	// or an earlier batch.
	if err := os.WriteFile(filepath.Join(root, "main.go"), []byte("package main"), 0644); err != nil {
		t.Fatal(err)
	}

	select {
	case batch := <-batches:
		for _, e := range batch {
			if filepath.Base(filepath.Dir(e.FilePath)) == "vendor" {
				t.Fatalf("expected vendor/ to be excluded, got event for %s", e.FilePath)
			}
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for batch")
	}
}
