// Package jobs owns the job lifecycle: submission, the durable record
// store, state transitions, retention, and the submission rate limit.
package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"fileconverter/models"
)

const recordKeyPrefix = "job:"

// Store keeps job records in Redis for the configured result-expiry
// window and mirrors every terminal change into Postgres when a
// database is attached. A job record is mutated only through the Mark*
// methods, each of which goes through the state transition table.
//
// Records are exclusively owned by the engine and each job executes on
// at most one worker, so a plain read-mutate-write is race-free here.
type Store struct {
	rdb *redis.Client
	db  *Database
	ttl time.Duration
}

func NewStore(rdb *redis.Client, db *Database, ttl time.Duration) *Store {
	return &Store{rdb: rdb, db: db, ttl: ttl}
}

// Create persists the initial pending record for a freshly submitted
// job. Called exactly once per job.
func (s *Store) Create(ctx context.Context, job *models.Job) error {
	now := time.Now().UTC()
	record := &models.Record{
		JobID:        job.ID,
		State:        models.StatePending,
		TargetFormat: job.TargetFormat,
		FileCount:    len(job.Inputs),
		Message:      "queued",
		CreatedAt:    now,
		UpdatedAt:    now,
		ExpiresAt:    now.Add(s.ttl),
	}
	if err := s.save(ctx, record); err != nil {
		return err
	}
	if s.db != nil {
		if err := s.db.InsertJob(ctx, job); err != nil {
			return fmt.Errorf("failed to insert job row: %w", err)
		}
	}
	return nil
}

// Get returns the record, or (nil, nil) when the id is unknown or the
// record has expired.
func (s *Store) Get(ctx context.Context, jobID string) (*models.Record, error) {
	data, err := s.rdb.Get(ctx, recordKeyPrefix+jobID).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}
	var record models.Record
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, err
	}
	return &record, nil
}

func (s *Store) MarkStarted(ctx context.Context, jobID string, attempt int) error {
	return s.update(ctx, jobID, models.StateStarted, func(r *models.Record) {
		r.RetryCount = attempt
		if attempt > 0 {
			r.Message = fmt.Sprintf("processing (attempt %d)", attempt+1)
		} else {
			r.Message = "processing"
		}
	})
}

func (s *Store) MarkSuccess(ctx context.Context, jobID string, result *models.JobResult) error {
	return s.update(ctx, jobID, models.StateSuccess, func(r *models.Record) {
		r.Result = result
		r.LastError = ""
		if len(result.Failures) > 0 {
			r.Message = fmt.Sprintf("completed with %d of %d files failed",
				len(result.Failures), r.FileCount)
		} else {
			r.Message = "completed"
		}
	})
}

func (s *Store) MarkRetryScheduled(ctx context.Context, jobID string, attempt int, cause string) error {
	return s.update(ctx, jobID, models.StateRetryScheduled, func(r *models.Record) {
		r.RetryCount = attempt
		r.LastError = cause
		r.Message = fmt.Sprintf("retry %d scheduled", attempt)
	})
}

func (s *Store) MarkFailed(ctx context.Context, jobID string, cause string) error {
	return s.update(ctx, jobID, models.StateFailed, func(r *models.Record) {
		r.LastError = cause
		r.Message = cause
	})
}

func (s *Store) update(ctx context.Context, jobID string, to models.JobState, mutate func(*models.Record)) error {
	record, err := s.Get(ctx, jobID)
	if err != nil {
		return err
	}
	if record == nil {
		return fmt.Errorf("%w: %s", models.ErrJobNotFound, jobID)
	}
	if err := record.Transition(to); err != nil {
		return err
	}
	mutate(record)
	record.UpdatedAt = time.Now().UTC()

	if err := s.save(ctx, record); err != nil {
		return err
	}
	if s.db != nil {
		if to == models.StateRetryScheduled {
			if err := s.db.IncrementRetry(ctx, jobID); err != nil {
				return err
			}
		}
		return s.db.UpdateStatus(ctx, jobID, to, record.LastError, record.Result)
	}
	return nil
}

func (s *Store) save(ctx context.Context, record *models.Record) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, recordKeyPrefix+record.JobID, payload, s.ttl).Err()
}
