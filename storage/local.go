package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// Local stores blobs under a root directory with one subdirectory per
// area. Get returns the stored file directly, no copy is made.
type Local struct {
	root string
}

func NewLocal(root string) (*Local, error) {
	for _, area := range []string{AreaInput, AreaOutput} {
		if err := os.MkdirAll(filepath.Join(root, area), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create storage area %s: %w", area, err)
		}
	}
	return &Local{root: root}, nil
}

func (l *Local) path(key string) string {
	// Keys are engine-generated but the filename component came from an
	// upload; refuse anything that escapes the root.
	return filepath.Join(l.root, filepath.Clean("/"+key))
}

func (l *Local) Put(ctx context.Context, localPath, key string) (string, error) {
	dest := l.path(key)
	if abs, _ := filepath.Abs(localPath); abs == dest {
		return key, nil
	}

	src, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("failed to open source file: %w", err)
	}
	defer src.Close()

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", err
	}
	dst, err := os.Create(dest)
	if err != nil {
		return "", fmt.Errorf("failed to create blob %s: %w", key, err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		os.Remove(dest)
		return "", fmt.Errorf("failed to write blob %s: %w", key, err)
	}
	return key, nil
}

func (l *Local) Get(ctx context.Context, key string) (string, error) {
	p := l.path(key)
	if _, err := os.Stat(p); err != nil {
		if os.IsNotExist(err) {
			return "", ErrNotFound
		}
		return "", err
	}
	return p, nil
}

func (l *Local) Delete(ctx context.Context, key string) bool {
	return os.Remove(l.path(key)) == nil
}

func (l *Local) Usage(ctx context.Context) (Usage, error) {
	var usage Usage
	err := filepath.Walk(l.root, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return nil
		}
		usage.Bytes += info.Size()
		usage.FileCount++
		return nil
	})
	return usage, err
}

func (l *Local) Sweep(ctx context.Context, area string, olderThan time.Duration) (int, error) {
	dir := filepath.Join(l.root, area)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}

	cutoff := time.Now().Add(-olderThan)
	deleted := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			if os.Remove(filepath.Join(dir, entry.Name())) == nil {
				deleted++
			}
		}
	}
	return deleted, nil
}
