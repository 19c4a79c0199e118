package artifact

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stockyard/stockyard/internal/storage"
)

func newTracker(t *testing.T) (*Tracker, *storage.LocalStorage) {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create local storage: %v", err)
	}
	return NewTracker(store, "uploaded/", "parsed/"), store
}

func TestDecodeKey(t *testing.T) {
	key, err := DecodeKey("uploaded/my%20products.csv")
	if err != nil {
		t.Fatalf("DecodeKey failed: %v", err)
	}
	if key != "uploaded/my products.csv" {
		t.Errorf("got %q", key)
	}

	// Plain keys pass through untouched.
	key, err = DecodeKey("uploaded/a.csv")
	if err != nil {
		t.Fatalf("DecodeKey failed: %v", err)
	}
	if key != "uploaded/a.csv" {
		t.Errorf("got %q", key)
	}
}

func TestProcessedKey(t *testing.T) {
	tracker, _ := newTracker(t)

	got, err := tracker.ProcessedKey("uploaded/a.csv")
	if err != nil {
		t.Fatalf("ProcessedKey failed: %v", err)
	}
	if got != "parsed/a.csv" {
		t.Errorf("got %q, want parsed/a.csv", got)
	}

	if _, err := tracker.ProcessedKey("other/a.csv"); !errors.Is(err, ErrNotPending) {
		t.Errorf("got %v, want ErrNotPending", err)
	}
}

func TestOpen(t *testing.T) {
	tracker, store := newTracker(t)
	ctx := context.Background()

	content := "title,price\nWidget,42\n"
	if err := store.Put(ctx, "uploaded/a.csv", "text/csv", strings.NewReader(content)); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	rc, err := tracker.Open(ctx, "uploaded/a.csv")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer rc.Close()
	got, _ := io.ReadAll(rc)
	if string(got) != content {
		t.Errorf("content mismatch: %q", got)
	}

	if _, err := tracker.Open(ctx, "parsed/a.csv"); !errors.Is(err, ErrNotPending) {
		t.Errorf("opening outside pending prefix: got %v, want ErrNotPending", err)
	}
}

func TestArchive(t *testing.T) {
	tracker, store := newTracker(t)
	ctx := context.Background()

	if err := store.Put(ctx, "uploaded/a.csv", "text/csv", strings.NewReader("data")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	if err := tracker.Archive(ctx, "uploaded/a.csv"); err != nil {
		t.Fatalf("Archive failed: %v", err)
	}

	exists, _ := store.Exists(ctx, "uploaded/a.csv")
	if exists {
		t.Error("original should be deleted after archive")
	}
	exists, _ = store.Exists(ctx, "parsed/a.csv")
	if !exists {
		t.Error("artifact should exist under processed prefix")
	}
}

func TestArchive_MissingSourceLeavesNothing(t *testing.T) {
	tracker, store := newTracker(t)
	ctx := context.Background()

	err := tracker.Archive(ctx, "uploaded/missing.csv")
	if err == nil {
		t.Fatal("expected error archiving a missing artifact")
	}

	exists, _ := store.Exists(ctx, "parsed/missing.csv")
	if exists {
		t.Error("no processed object should appear for a failed archive")
	}
}
