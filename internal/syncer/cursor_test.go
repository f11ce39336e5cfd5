package syncer

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestFileCursorStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "cursor.json")
	store := &FileCursorStore{Path: path}
	ctx := context.Background()

	_, ok, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatalf("expected no cursor before first save")
	}

	if err := store.Save(ctx, 1234); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	round, ok, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok || round != 1234 {
		t.Fatalf("expected round 1234, got %d (ok=%v)", round, ok)
	}

	// No stray tmp file after the atomic rename.
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("tmp file left behind")
	}
}

func TestFileCursorStoreCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cursor.json")
	if err := os.WriteFile(path, []byte("not json"), 0o644); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	store := &FileCursorStore{Path: path}
	if _, _, err := store.Load(context.Background()); err == nil {
		t.Fatalf("expected error for corrupt cursor file")
	}
}

func TestFileCursorStoreDisabled(t *testing.T) {
	var store *FileCursorStore
	if err := store.Save(context.Background(), 1); err != nil {
		t.Fatalf("nil store must be a no-op: %v", err)
	}
	if _, ok, err := store.Load(context.Background()); ok || err != nil {
		t.Fatalf("nil store must load nothing: %v", err)
	}
}
