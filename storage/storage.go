// Package storage defines the blob storage port the engine depends on
// and its local-directory and S3 implementations. Blobs are addressed
// by keys of the form "<area>/<name>" where area is "input" or
// "output"; the retention collector sweeps each area independently.
package storage

import (
	"context"
	"errors"
	"time"
)

const (
	AreaInput  = "input"
	AreaOutput = "output"
)

// ErrNotFound is returned by Get for keys that do not exist, including
// blobs already reclaimed by retention.
var ErrNotFound = errors.New("blob not found")

type Usage struct {
	Bytes     int64 `json:"bytes"`
	FileCount int   `json:"fileCount"`
}

// Storage is the port the engine, dispatcher and retention collector
// share. Implementations must tolerate concurrent operations on
// distinct keys without serializing unrelated jobs.
type Storage interface {
	// Put stores the file at localPath under key and returns the key.
	Put(ctx context.Context, localPath, key string) (string, error)

	// Get materializes the blob as a local file and returns its path.
	// Missing keys yield ErrNotFound.
	Get(ctx context.Context, key string) (string, error)

	// Delete removes the blob, reporting whether anything was removed.
	Delete(ctx context.Context, key string) bool

	// Usage reports aggregate size and file count across all areas.
	Usage(ctx context.Context) (Usage, error)

	// Sweep deletes every blob under the area whose last-modified time
	// is older than the cutoff and returns the deletion count. Running
	// it twice in succession is idempotent.
	Sweep(ctx context.Context, area string, olderThan time.Duration) (int, error)
}
