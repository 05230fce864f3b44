package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newLocal(t *testing.T) *Local {
	t.Helper()
	l, err := NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocal failed: %v", err)
	}
	return l
}

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "src.bin")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}
	return path
}

func TestLocalPutGetDelete(t *testing.T) {
	ctx := context.Background()
	l := newLocal(t)

	key, err := l.Put(ctx, writeTemp(t, "hello"), "input/a.txt")
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if key != "input/a.txt" {
		t.Fatalf("unexpected key %q", key)
	}

	path, err := l.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	data, _ := os.ReadFile(path)
	if string(data) != "hello" {
		t.Fatalf("unexpected content %q", data)
	}

	if !l.Delete(ctx, key) {
		t.Fatal("Delete reported nothing removed")
	}
	if _, err := l.Get(ctx, key); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	if l.Delete(ctx, key) {
		t.Fatal("second Delete should report nothing removed")
	}
}

func TestLocalUsage(t *testing.T) {
	ctx := context.Background()
	l := newLocal(t)

	l.Put(ctx, writeTemp(t, "12345"), "input/a.bin")
	l.Put(ctx, writeTemp(t, "123"), "output/b.bin")

	usage, err := l.Usage(ctx)
	if err != nil {
		t.Fatalf("Usage failed: %v", err)
	}
	if usage.FileCount != 2 {
		t.Fatalf("FileCount = %d, want 2", usage.FileCount)
	}
	if usage.Bytes != 8 {
		t.Fatalf("Bytes = %d, want 8", usage.Bytes)
	}
}

func TestLocalSweepIdempotent(t *testing.T) {
	ctx := context.Background()
	l := newLocal(t)

	l.Put(ctx, writeTemp(t, "old"), "input/old.bin")
	l.Put(ctx, writeTemp(t, "new"), "input/new.bin")

	oldPath, _ := l.Get(ctx, "input/old.bin")
	past := time.Now().Add(-2 * time.Hour)
	if err := os.Chtimes(oldPath, past, past); err != nil {
		t.Fatalf("failed to age file: %v", err)
	}

	deleted, err := l.Sweep(ctx, AreaInput, time.Hour)
	if err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("deleted = %d, want 1", deleted)
	}
	if _, err := l.Get(ctx, "input/new.bin"); err != nil {
		t.Fatalf("recent blob should survive: %v", err)
	}

	deleted, err = l.Sweep(ctx, AreaInput, time.Hour)
	if err != nil {
		t.Fatalf("second Sweep failed: %v", err)
	}
	if deleted != 0 {
		t.Fatalf("second sweep deleted %d, want 0", deleted)
	}
}
