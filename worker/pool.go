// Package worker runs the bounded pool that executes conversion jobs
// pulled from the durable pending queue.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"fileconverter/config"
	"fileconverter/models"
)

// Lifecycle is the slice of the job record store the pool drives.
// Every call maps to one state transition.
type Lifecycle interface {
	MarkStarted(ctx context.Context, jobID string, attempt int) error
	MarkSuccess(ctx context.Context, jobID string, result *models.JobResult) error
	MarkRetryScheduled(ctx context.Context, jobID string, attempt int, cause string) error
	MarkFailed(ctx context.Context, jobID string, cause string) error
}

// Dispatcher converts one input file.
type Dispatcher interface {
	Dispatch(ctx context.Context, input models.InputRef, targetFormat string) (models.ConversionOutcome, error)
}

type Pool struct {
	cfg        *config.Config
	rdb        *redis.Client
	queue      Queue
	lifecycle  Lifecycle
	dispatcher Dispatcher
	aggregator *Aggregator
}

func NewPool(cfg *config.Config, rdb *redis.Client, queue Queue, lifecycle Lifecycle, dispatcher Dispatcher, aggregator *Aggregator) *Pool {
	return &Pool{
		cfg:        cfg,
		rdb:        rdb,
		queue:      queue,
		lifecycle:  lifecycle,
		dispatcher: dispatcher,
		aggregator: aggregator,
	}
}

// Run starts the configured number of workers and keeps them alive
// until the context is canceled. A worker retires after its task quota
// (memory hygiene around the native codec calls) and is respawned.
func (p *Pool) Run(ctx context.Context, wg *sync.WaitGroup) {
	for i := 0; i < p.cfg.WorkerCount; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for ctx.Err() == nil {
				p.runWorker(ctx, workerID)
				if ctx.Err() == nil {
					log.Printf("[Worker %d] Recycling after %d tasks", workerID, p.cfg.MaxTasksPerWorker)
				}
			}
		}(i)
		log.Printf("Started worker %d", i)
	}
}

func (p *Pool) runWorker(ctx context.Context, workerID int) {
	tasks := 0
	for tasks < p.cfg.MaxTasksPerWorker {
		select {
		case <-ctx.Done():
			log.Printf("[Worker %d] Shutting down", workerID)
			return
		default:
		}

		// Atomic pop from pending and push to processing: this handoff
		// is what guarantees at most one worker executes a given job.
		raw, err := p.rdb.BRPopLPush(ctx, p.cfg.PendingQueue, p.cfg.ProcessingQueue, 30*time.Second).Result()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("[Worker %d] Redis error: %v", workerID, err)
			time.Sleep(5 * time.Second)
			continue
		}

		var job models.Job
		if err := json.Unmarshal([]byte(raw), &job); err != nil {
			log.Printf("[Worker %d] Failed to parse job: %v", workerID, err)
			p.queue.Ack(ctx, raw)
			continue
		}

		// Record the handoff time: staleness in the processing list is
		// judged from it, so a long pending backlog never makes a job
		// look stale the moment it is popped.
		p.rdb.HSet(ctx, p.handoffKey(), job.ID, time.Now().UTC().Format(time.RFC3339))
		p.executeJob(ctx, workerID, &job, raw)
		p.rdb.HDel(ctx, p.handoffKey(), job.ID)
		tasks++
	}
}

// executeJob drives one job to a terminal state (or a scheduled
// retry). All per-file outcomes are collected before aggregation runs;
// that join barrier is what makes partial results impossible to leak.
func (p *Pool) executeJob(ctx context.Context, workerID int, job *models.Job, raw string) {
	log.Printf("[Worker %d] Processing job %s: %d file(s) -> %s (attempt %d/%d)",
		workerID, job.ID, len(job.Inputs), job.TargetFormat, job.RetryCount+1, job.MaxRetries+1)

	if err := p.lifecycle.MarkStarted(ctx, job.ID, job.RetryCount); err != nil {
		log.Printf("[Worker %d] Failed to mark job %s started: %v", workerID, job.ID, err)
	}

	execCtx, cancel := context.WithTimeout(ctx, p.cfg.HardBudget)
	defer cancel()
	softTimer := time.AfterFunc(p.cfg.SoftBudget, func() {
		log.Printf("[Worker %d] Job %s exceeded soft budget %s", workerID, job.ID, p.cfg.SoftBudget)
	})
	defer softTimer.Stop()

	started := time.Now()

	outcomes := make([]models.ConversionOutcome, 0, len(job.Inputs))
	for _, input := range job.Inputs {
		outcome, err := p.dispatcher.Dispatch(execCtx, input, job.TargetFormat)
		if err != nil {
			p.handleFailure(ctx, workerID, job, raw,
				fmt.Sprintf("dispatch %s failed: %v", input.Filename, err),
				errors.Is(execCtx.Err(), context.DeadlineExceeded))
			return
		}
		outcomes = append(outcomes, outcome)
	}

	// Strategies classify a fired deadline as a per-file timeout, so the
	// loop runs to completion even once the budget is gone. The job must
	// still fail outright; earlier successes do not rescue it.
	if errors.Is(execCtx.Err(), context.DeadlineExceeded) {
		completed := 0
		for _, outcome := range outcomes {
			if outcome.Succeeded() {
				completed++
			}
		}
		p.handleFailure(ctx, workerID, job, raw,
			fmt.Sprintf("%d of %d conversions completed before the deadline", completed, len(job.Inputs)),
			true)
		return
	}

	result, err := p.aggregator.Aggregate(execCtx, job, outcomes, started)
	if err != nil {
		if errors.Is(err, models.ErrAllConversionsFailed) {
			// Classified per-file failures are not retried.
			p.queue.Ack(ctx, raw)
			p.queue.Fail(ctx, raw)
			if err := p.lifecycle.MarkFailed(ctx, job.ID, err.Error()); err != nil {
				log.Printf("[Worker %d] Failed to mark job %s failed: %v", workerID, job.ID, err)
			}
			log.Printf("[Worker %d] Job %s failed: all conversions failed", workerID, job.ID)
			return
		}
		p.handleFailure(ctx, workerID, job, raw,
			fmt.Sprintf("aggregation failed: %v", err),
			errors.Is(execCtx.Err(), context.DeadlineExceeded))
		return
	}

	p.queue.Ack(ctx, raw)
	if err := p.lifecycle.MarkSuccess(ctx, job.ID, result); err != nil {
		log.Printf("[Worker %d] Failed to mark job %s succeeded: %v", workerID, job.ID, err)
	}
	log.Printf("[Worker %d] Job %s completed in %.2fs: %s %s (%d output(s), %d failure(s))",
		workerID, job.ID, time.Since(started).Seconds(),
		result.Type, result.Filename, result.FileCount, len(result.Failures))
}

// handleFailure is the unclassified-error path: retry with fixed
// backoff up to the cap, unless the hard budget fired, which fails the
// job outright regardless of remaining retries.
func (p *Pool) handleFailure(ctx context.Context, workerID int, job *models.Job, raw, cause string, overBudget bool) {
	log.Printf("[Worker %d] Job %s failed: %s", workerID, job.ID, cause)
	p.queue.Ack(ctx, raw)

	if overBudget {
		p.queue.Fail(ctx, raw)
		if err := p.lifecycle.MarkFailed(ctx, job.ID, "hard execution budget exceeded: "+cause); err != nil {
			log.Printf("[Worker %d] Failed to mark job %s failed: %v", workerID, job.ID, err)
		}
		return
	}

	if job.RetryCount < job.MaxRetries {
		job.RetryCount++
		if err := p.lifecycle.MarkRetryScheduled(ctx, job.ID, job.RetryCount, cause); err != nil {
			log.Printf("[Worker %d] Failed to mark job %s retry: %v", workerID, job.ID, err)
		}
		p.queue.Requeue(job, p.cfg.RetryBackoff)
		return
	}

	p.queue.Fail(ctx, raw)
	if err := p.lifecycle.MarkFailed(ctx, job.ID, "retries exhausted: "+cause); err != nil {
		log.Printf("[Worker %d] Failed to mark job %s failed: %v", workerID, job.ID, err)
	}
	log.Printf("[Worker %d] Job %s moved to failed queue after %d retries", workerID, job.ID, job.MaxRetries)
}

// RecoveryLoop periodically requeues jobs stranded in the processing
// list, typically after a worker crash between handoff and ack.
func (p *Pool) RecoveryLoop(ctx context.Context) {
	ticker := time.NewTicker(p.cfg.RecoveryInterval)
	defer ticker.Stop()

	log.Println("[Recovery] Starting stale job recovery loop")

	for {
		select {
		case <-ctx.Done():
			log.Println("[Recovery] Shutting down")
			return
		case <-ticker.C:
			p.recoverStaleJobs(ctx)
		}
	}
}

func (p *Pool) recoverStaleJobs(ctx context.Context) {
	raws, err := p.rdb.LRange(ctx, p.cfg.ProcessingQueue, 0, -1).Result()
	if err != nil {
		log.Printf("[Recovery] Failed to read processing queue: %v", err)
		return
	}

	recovered := 0
	for _, raw := range raws {
		var job models.Job
		if err := json.Unmarshal([]byte(raw), &job); err != nil {
			continue
		}
		handoff, _ := p.rdb.HGet(ctx, p.handoffKey(), job.ID).Result()
		if !p.stale(&job, handoff, time.Now()) {
			continue
		}
		p.handleFailure(ctx, -1, &job, raw, "job stranded in processing queue", false)
		p.rdb.HDel(ctx, p.handoffKey(), job.ID)
		recovered++
	}

	if recovered > 0 {
		log.Printf("[Recovery] Recovered %d stale jobs", recovered)
	}
}

// handoffKey is the hash recording when each job left the pending list.
func (p *Pool) handoffKey() string {
	return p.cfg.ProcessingQueue + ":started"
}

// stale reports whether a processing-list entry has outlived the hard
// budget. Staleness is judged from the recorded handoff time; the
// enqueue time is only a fallback for jobs whose worker crashed before
// the handoff was recorded.
func (p *Pool) stale(job *models.Job, handoff string, now time.Time) bool {
	ref := job.EnqueuedAt
	if t, err := time.Parse(time.RFC3339, handoff); err == nil {
		ref = t
	}
	return now.Sub(ref) > p.cfg.HardBudget+time.Minute
}

// HeartbeatLoop reports pool liveness and queue depths on a fixed
// period. It has no side effects beyond logging.
func (p *Pool) HeartbeatLoop(ctx context.Context) {
	ticker := time.NewTicker(p.cfg.HeartbeatPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pending := p.rdb.LLen(ctx, p.cfg.PendingQueue).Val()
			processing := p.rdb.LLen(ctx, p.cfg.ProcessingQueue).Val()
			log.Printf("[Heartbeat] Workers alive: pending=%d processing=%d", pending, processing)
		}
	}
}
