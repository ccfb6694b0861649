package queue

import (
	"context"
	"errors"
)

// ErrClosed is returned once a queue stops accepting work.
var ErrClosed = errors.New("queue: closed")

// Queue hands deployment ids from the create path to pipeline workers. The
// id is the whole job: every other input is read back from the record store,
// which is what makes an orphaned job recoverable after a crash.
type Queue interface {
	Enqueue(ctx context.Context, deploymentID string) error
	// Dequeue blocks until a job is available or ctx is done.
	Dequeue(ctx context.Context) (string, error)
	Close()
}
