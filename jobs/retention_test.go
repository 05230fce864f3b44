package jobs

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"fileconverter/storage"
)

func stageBlob(t *testing.T, blobs *storage.Local, key string, age time.Duration) {
	t.Helper()
	ctx := context.Background()
	src := filepath.Join(t.TempDir(), "blob.bin")
	if err := os.WriteFile(src, []byte("data"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := blobs.Put(ctx, src, key); err != nil {
		t.Fatalf("failed to store %s: %v", key, err)
	}
	if age > 0 {
		path, err := blobs.Get(ctx, key)
		if err != nil {
			t.Fatal(err)
		}
		past := time.Now().Add(-age)
		if err := os.Chtimes(path, past, past); err != nil {
			t.Fatalf("failed to age %s: %v", key, err)
		}
	}
}

func TestSweepOnceReclaimsBothAreas(t *testing.T) {
	ctx := context.Background()
	blobs, err := storage.NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocal failed: %v", err)
	}

	stageBlob(t, blobs, "input/old.jpg", 2*time.Hour)
	stageBlob(t, blobs, "output/old.png", 2*time.Hour)
	stageBlob(t, blobs, "output/fresh.png", 0)

	r := NewRetention(blobs, time.Hour, time.Minute)

	deleted, err := r.SweepOnce(ctx)
	if err != nil {
		t.Fatalf("SweepOnce failed: %v", err)
	}
	if deleted != 2 {
		t.Fatalf("deleted = %d, want 2", deleted)
	}
	if _, err := blobs.Get(ctx, "output/fresh.png"); err != nil {
		t.Fatalf("fresh blob should survive: %v", err)
	}

	deleted, err = r.SweepOnce(ctx)
	if err != nil {
		t.Fatalf("second SweepOnce failed: %v", err)
	}
	if deleted != 0 {
		t.Fatalf("second sweep deleted %d, want 0", deleted)
	}
}
