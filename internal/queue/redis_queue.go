package queue

import (
	"context"

	"github.com/redis/go-redis/v9"

	"webpptx/internal/config"
)

// RedisQueue is the FIFO ready list the worker pool consumes. Only job
// identities travel through Redis; inputs and results stay on disk keyed by
// identity.
type RedisQueue struct {
	client   *redis.Client
	readyKey string
}

// NewRedisQueue builds a queue client from config.
func NewRedisQueue(cfg config.Config) *RedisQueue {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	return NewWithClient(client, cfg.QueueName)
}

// NewWithClient wraps an existing client, mainly for tests.
func NewWithClient(client *redis.Client, readyKey string) *RedisQueue {
	if readyKey == "" {
		readyKey = "jobs:ready"
	}
	return &RedisQueue{client: client, readyKey: readyKey}
}

// Enqueue appends a job identity to the tail of the ready list.
func (q *RedisQueue) Enqueue(ctx context.Context, jobID string) error {
	return q.client.RPush(ctx, q.readyKey, jobID).Err()
}

// Dequeue pops the oldest queued identity. An empty string means the queue
// is empty.
func (q *RedisQueue) Dequeue(ctx context.Context) (string, error) {
	id, err := q.client.LPop(ctx, q.readyKey).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return id, nil
}

// Depth reports how many identities are waiting.
func (q *RedisQueue) Depth(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.readyKey).Result()
}
