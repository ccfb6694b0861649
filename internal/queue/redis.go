package queue

import (
	"context"
	"errors"
	"time"

	"log/slog"

	redis "github.com/redis/go-redis/v9"
)

const redisPopTimeout = 5 * time.Second

// redisQueue stores jobs in a Redis list so they survive process restarts
// and can be shared across worker processes.
type redisQueue struct {
	client *redis.Client
	key    string
	logger *slog.Logger
}

// NewRedis constructs a Redis-backed queue and verifies connectivity.
func NewRedis(addr, password string, db int, logger *slog.Logger) (Queue, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	return &redisQueue{
		client: client,
		key:    "launchdeck:pipeline:jobs",
		logger: logger,
	}, nil
}

func (q *redisQueue) Enqueue(ctx context.Context, deploymentID string) error {
	return q.client.LPush(ctx, q.key, deploymentID).Err()
}

func (q *redisQueue) Dequeue(ctx context.Context) (string, error) {
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		result, err := q.client.BRPop(ctx, redisPopTimeout, q.key).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			q.logger.Error("redis dequeue failed", "error", err)
			// Back off briefly so a dead Redis does not spin the worker.
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(time.Second):
				continue
			}
		}
		if len(result) == 2 {
			return result[1], nil
		}
	}
}

func (q *redisQueue) Close() {
	_ = q.client.Close()
}
