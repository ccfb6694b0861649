package queue

import (
	"context"
	"errors"
	"sync"

	"log/slog"
)

// RunFunc executes the pipeline for one deployment id.
type RunFunc func(ctx context.Context, deploymentID string) error

// Worker drains the queue with a fixed pool of goroutines. One job maps to
// one pipeline run; concurrent jobs always target distinct records, so no
// cross-record coordination is needed.
type Worker struct {
	queue       Queue
	run         RunFunc
	logger      *slog.Logger
	concurrency int
}

// NewWorker constructs a worker pool.
func NewWorker(q Queue, run RunFunc, logger *slog.Logger, concurrency int) *Worker {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Worker{queue: q, run: run, logger: logger, concurrency: concurrency}
}

// Run blocks until ctx is cancelled, processing jobs as they arrive.
func (w *Worker) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for i := 0; i < w.concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.loop(ctx)
		}()
	}
	wg.Wait()
}

func (w *Worker) loop(ctx context.Context) {
	for {
		deploymentID, err := w.queue.Dequeue(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, ErrClosed) || ctx.Err() != nil {
				return
			}
			w.logger.Error("dequeue failed", "error", err)
			continue
		}
		if err := w.run(ctx, deploymentID); err != nil {
			// The pipeline records its own failures; an error here means the
			// record could not even be updated.
			w.logger.Error("pipeline run failed", "deployment_id", deploymentID, "error", err)
		}
	}
}
