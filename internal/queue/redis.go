package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fastpanel/fastpanel/internal/cache"
)

// Redis list keys used by RedisQueue.
const (
	RedisPending    = cache.KeyPrefix + "jobs:clients"
	RedisProcessing = cache.KeyPrefix + "jobs:clients:processing"
	RedisFailed     = cache.KeyPrefix + "jobs:clients:failed"
)

// RedisQueue is a Consumer and Producer over Redis lists for deployments
// where the API and the processor do not share a filesystem. A claimed
// job sits on the processing list until acked or failed.
type RedisQueue struct {
	r    *cache.Redis
	poll time.Duration
}

var (
	_ Consumer = (*RedisQueue)(nil)
	_ Producer = (*RedisQueue)(nil)
)

// NewRedisQueue creates a queue on r. poll bounds each blocking pop so
// Next notices cancellation.
func NewRedisQueue(r *cache.Redis, poll time.Duration) *RedisQueue {
	if poll <= 0 {
		poll = 5 * time.Second
	}
	return &RedisQueue{r: r, poll: poll}
}

// Enqueue pushes a job onto the left side of the pending list.
func (q *RedisQueue) Enqueue(ctx context.Context, job Job) error {
	if err := job.Validate(); err != nil {
		return err
	}
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("queue marshal: %w", err)
	}
	return q.r.Client().LPush(ctx, RedisPending, data).Err()
}

// Next moves the oldest pending job to the processing list and returns it.
func (q *RedisQueue) Next(ctx context.Context) (*Delivery, error) {
	for {
		raw, err := q.r.Client().BRPopLPush(ctx, RedisPending, RedisProcessing, q.poll).Result()
		if err == nil {
			return &Delivery{ID: raw, Body: []byte(raw)}, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("queue dequeue: %w", err)
		}
	}
}

// Ack drops the job from the processing list.
func (q *RedisQueue) Ack(ctx context.Context, d *Delivery) error {
	return q.r.Client().LRem(ctx, RedisProcessing, 1, d.ID).Err()
}

// Fail moves the job from the processing list to the failed list.
func (q *RedisQueue) Fail(ctx context.Context, d *Delivery, _ error) error {
	_, err := q.r.Client().TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.LRem(ctx, RedisProcessing, 1, d.ID)
		p.LPush(ctx, RedisFailed, d.ID)
		return nil
	})
	return err
}

// Recover returns jobs left on the processing list by a crashed consumer
// to the pending list. It reports how many were moved.
func (q *RedisQueue) Recover(ctx context.Context) (int, error) {
	n := 0
	for {
		err := q.r.Client().RPopLPush(ctx, RedisProcessing, RedisPending).Err()
		if errors.Is(err, redis.Nil) {
			return n, nil
		}
		if err != nil {
			return n, fmt.Errorf("queue recover: %w", err)
		}
		n++
	}
}
