package worker

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"fileconverter/models"
)

// Queue covers the bookkeeping side of job consumption: acknowledging
// a handled job, scheduling a retry, and parking exhausted jobs.
type Queue interface {
	// Ack removes the job's raw payload from the processing list.
	Ack(ctx context.Context, rawJSON string)

	// Requeue pushes the job back onto the pending list after the
	// backoff delay.
	Requeue(job *models.Job, delay time.Duration)

	// Fail moves the raw payload onto the failed list for inspection.
	Fail(ctx context.Context, rawJSON string)
}

type RedisQueue struct {
	rdb        *redis.Client
	pending    string
	processing string
	failed     string
}

func NewRedisQueue(rdb *redis.Client, pending, processing, failed string) *RedisQueue {
	return &RedisQueue{rdb: rdb, pending: pending, processing: processing, failed: failed}
}

func (q *RedisQueue) Ack(ctx context.Context, rawJSON string) {
	q.rdb.LRem(ctx, q.processing, 1, rawJSON)
}

func (q *RedisQueue) Requeue(job *models.Job, delay time.Duration) {
	time.AfterFunc(delay, func() {
		job.EnqueuedAt = time.Now().UTC()
		payload, err := json.Marshal(job)
		if err != nil {
			log.Printf("[Queue] Failed to marshal job %s for retry: %v", job.ID, err)
			return
		}
		if err := q.rdb.LPush(context.Background(), q.pending, payload).Err(); err != nil {
			log.Printf("[Queue] Failed to requeue job %s: %v", job.ID, err)
			return
		}
		log.Printf("[Queue] Requeued job %s (retry %d/%d) after %v",
			job.ID, job.RetryCount, job.MaxRetries, delay)
	})
}

func (q *RedisQueue) Fail(ctx context.Context, rawJSON string) {
	q.rdb.LPush(ctx, q.failed, rawJSON)
}
