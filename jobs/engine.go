package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"fileconverter/models"
	"fileconverter/storage"
)

// RecordStore is the slice of the record store the engine needs.
type RecordStore interface {
	Create(ctx context.Context, job *models.Job) error
	Get(ctx context.Context, jobID string) (*models.Record, error)
}

// Status is the caller-facing view of a job.
type Status struct {
	JobID   string            `json:"jobId"`
	State   models.JobState   `json:"state"`
	Message string            `json:"message"`
	Result  *models.JobResult `json:"result,omitempty"`
	Error   string            `json:"error,omitempty"`
}

// Engine is the submission boundary of the conversion core. It creates
// jobs, hands them to the queue, and answers status and artifact
// queries. Job execution itself lives in the worker pool.
type Engine struct {
	records    RecordStore
	queue      Queue
	blobs      storage.Storage
	limiter    *RateLimiter // nil disables submission rate limiting
	maxRetries int
}

func NewEngine(records RecordStore, queue Queue, blobs storage.Storage, limiter *RateLimiter, maxRetries int) *Engine {
	return &Engine{
		records:    records,
		queue:      queue,
		blobs:      blobs,
		limiter:    limiter,
		maxRetries: maxRetries,
	}
}

// Submit creates one job covering the given inputs and enqueues it.
// Upstream validation (extensions, sizes, MIME sniffing) has already
// happened; Submit only records and enqueues. Safe for concurrent use.
func (e *Engine) Submit(ctx context.Context, inputs []models.InputRef, targetFormat string, metadata map[string]string) (string, error) {
	if len(inputs) == 0 {
		return "", fmt.Errorf("no inputs given")
	}
	if e.limiter != nil {
		// Submissions without a caller identity share one bucket so the
		// limit cannot be bypassed by omitting metadata.
		caller := metadata["caller"]
		if caller == "" {
			caller = "anonymous"
		}
		if !e.limiter.Allow(caller) {
			return "", models.ErrRateLimited
		}
	}

	job := &models.Job{
		ID:           uuid.NewString(),
		Inputs:       inputs,
		TargetFormat: targetFormat,
		Metadata:     metadata,
		MaxRetries:   e.maxRetries,
		CreatedAt:    time.Now().UTC(),
	}

	if err := e.records.Create(ctx, job); err != nil {
		return "", fmt.Errorf("failed to create job record: %w", err)
	}
	if err := e.queue.Push(ctx, job); err != nil {
		return "", fmt.Errorf("failed to enqueue job: %w", err)
	}
	return job.ID, nil
}

// GetStatus reports the current state of a job. Unknown ids come back
// as a distinct unknown status, not an error: the record may simply
// have expired.
func (e *Engine) GetStatus(ctx context.Context, jobID string) (*Status, error) {
	record, err := e.records.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return &Status{
			JobID:   jobID,
			State:   models.StateUnknown,
			Message: "unknown job id",
		}, nil
	}

	status := &Status{
		JobID:   record.JobID,
		State:   record.State,
		Message: record.Message,
	}
	switch record.State {
	case models.StateSuccess:
		status.Result = record.Result
	case models.StateFailed:
		status.Error = record.LastError
	}
	return status, nil
}

// FetchArtifact returns the storage key of a successful job's
// deliverable. The underlying blob is re-checked so an artifact
// reclaimed by retention reports not-found rather than a dangling key.
func (e *Engine) FetchArtifact(ctx context.Context, jobID string) (string, error) {
	record, err := e.records.Get(ctx, jobID)
	if err != nil {
		return "", err
	}
	if record == nil {
		return "", fmt.Errorf("%w: %s", models.ErrJobNotFound, jobID)
	}
	if record.State != models.StateSuccess || record.Result == nil {
		return "", fmt.Errorf("%w: job is %s", models.ErrJobNotReady, record.State)
	}

	if _, err := e.blobs.Get(ctx, record.Result.Key); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return "", fmt.Errorf("%w: %s", models.ErrArtifactNotFound, record.Result.Key)
		}
		return "", err
	}
	return record.Result.Key, nil
}
