package queue

import (
	"context"
	"sync"
)

const memoryQueueDepth = 1024

// memoryQueue is the in-process fallback used when no Redis address is
// configured. Jobs do not survive a process restart; startup recovery
// re-enqueues pending records to compensate.
type memoryQueue struct {
	jobs   chan string
	done   chan struct{}
	closed sync.Once
}

// NewMemory returns an in-process queue.
func NewMemory() Queue {
	return &memoryQueue{
		jobs: make(chan string, memoryQueueDepth),
		done: make(chan struct{}),
	}
}

func (q *memoryQueue) Enqueue(ctx context.Context, deploymentID string) error {
	select {
	case <-q.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	case q.jobs <- deploymentID:
		return nil
	}
}

func (q *memoryQueue) Dequeue(ctx context.Context) (string, error) {
	select {
	case <-q.done:
		return "", ErrClosed
	case <-ctx.Done():
		return "", ctx.Err()
	case id := <-q.jobs:
		return id, nil
	}
}

func (q *memoryQueue) Close() {
	q.closed.Do(func() {
		close(q.done)
	})
}
