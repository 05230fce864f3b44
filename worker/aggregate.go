package worker

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"fileconverter/models"
	"fileconverter/storage"
)

// Aggregator combines the per-file outcomes of one job into a single
// deliverable. With more than one successful output the deliverable is
// a zip archive and the individual outputs are deleted afterwards,
// only the archive is retained.
type Aggregator struct {
	blobs storage.Storage
}

func NewAggregator(blobs storage.Storage) *Aggregator {
	return &Aggregator{blobs: blobs}
}

// Aggregate is order-independent over outcomes: workers may produce
// them sequentially or in parallel as long as all are present (the
// join barrier is the caller's responsibility).
func (a *Aggregator) Aggregate(ctx context.Context, job *models.Job, outcomes []models.ConversionOutcome, started time.Time) (*models.JobResult, error) {
	var outputs []models.OutputRef
	var failures []models.ConversionFailure

	for _, outcome := range outcomes {
		if outcome.Succeeded() {
			outputs = append(outputs, outcome.Outputs...)
		} else if outcome.Failure != nil {
			failures = append(failures, *outcome.Failure)
		}
	}

	if len(outputs) == 0 {
		return nil, fmt.Errorf("%w: %d file(s) attempted", models.ErrAllConversionsFailed, len(job.Inputs))
	}

	result := &models.JobResult{
		Failures:   failures,
		FileCount:  len(outputs),
		DurationMs: time.Since(started).Milliseconds(),
	}

	if len(outputs) == 1 {
		result.Type = models.ResultSingle
		result.Key = outputs[0].Key
		result.Filename = outputs[0].Filename
		return result, nil
	}

	key, filename, err := a.pack(ctx, outputs)
	if err != nil {
		return nil, err
	}

	// The archive is now the only deliverable.
	for _, out := range outputs {
		a.blobs.Delete(ctx, out.Key)
	}

	result.Type = models.ResultArchive
	result.Key = key
	result.Filename = filename
	result.DurationMs = time.Since(started).Milliseconds()
	return result, nil
}

// pack writes all outputs into one compressed archive and stores it
// under a timestamp-derived name.
func (a *Aggregator) pack(ctx context.Context, outputs []models.OutputRef) (string, string, error) {
	workDir, err := os.MkdirTemp("", "archive-")
	if err != nil {
		return "", "", fmt.Errorf("failed to create archive dir: %w", err)
	}
	defer os.RemoveAll(workDir)

	filename := fmt.Sprintf("converted_%s.zip", time.Now().Format("20060102_150405"))
	zipPath := filepath.Join(workDir, filename)

	zipFile, err := os.Create(zipPath)
	if err != nil {
		return "", "", fmt.Errorf("failed to create archive: %w", err)
	}

	zw := zip.NewWriter(zipFile)
	for _, out := range outputs {
		if err := addToArchive(ctx, zw, a.blobs, out); err != nil {
			zw.Close()
			zipFile.Close()
			return "", "", err
		}
	}
	if err := zw.Close(); err != nil {
		zipFile.Close()
		return "", "", fmt.Errorf("failed to finalize archive: %w", err)
	}
	if err := zipFile.Close(); err != nil {
		return "", "", err
	}

	key := storage.AreaOutput + "/" + filename
	if _, err := a.blobs.Put(ctx, zipPath, key); err != nil {
		return "", "", fmt.Errorf("failed to store archive: %w", err)
	}
	return key, filename, nil
}

func addToArchive(ctx context.Context, zw *zip.Writer, blobs storage.Storage, out models.OutputRef) error {
	localPath, err := blobs.Get(ctx, out.Key)
	if err != nil {
		return fmt.Errorf("failed to fetch output %s: %w", out.Key, err)
	}
	src, err := os.Open(localPath)
	if err != nil {
		return err
	}
	defer src.Close()

	entry, err := zw.Create(out.Filename)
	if err != nil {
		return err
	}
	_, err = io.Copy(entry, src)
	return err
}
