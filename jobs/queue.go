package jobs

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"fileconverter/models"
)

// Queue is the engine's view of the pending job queue.
type Queue interface {
	Push(ctx context.Context, job *models.Job) error
}

// RedisQueue pushes jobs onto the durable pending list the worker pool
// consumes with BRPopLPush.
type RedisQueue struct {
	rdb     *redis.Client
	pending string
}

func NewRedisQueue(rdb *redis.Client, pendingKey string) *RedisQueue {
	return &RedisQueue{rdb: rdb, pending: pendingKey}
}

func (q *RedisQueue) Push(ctx context.Context, job *models.Job) error {
	job.EnqueuedAt = time.Now().UTC()
	payload, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return q.rdb.LPush(ctx, q.pending, payload).Err()
}
