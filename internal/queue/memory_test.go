package queue

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"log/slog"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestMemoryQueueRoundTrip(t *testing.T) {
	q := NewMemory()
	defer q.Close()

	ctx := context.Background()
	for _, id := range []string{"dep-1", "dep-2", "dep-3"} {
		if err := q.Enqueue(ctx, id); err != nil {
			t.Fatalf("Enqueue(%s): %v", id, err)
		}
	}
	for _, want := range []string{"dep-1", "dep-2", "dep-3"} {
		got, err := q.Dequeue(ctx)
		if err != nil {
			t.Fatalf("Dequeue: %v", err)
		}
		if got != want {
			t.Fatalf("Dequeue = %q, want %q", got, want)
		}
	}
}

func TestMemoryQueueDequeueBlocksUntilJob(t *testing.T) {
	q := NewMemory()
	defer q.Close()

	results := make(chan string, 1)
	go func() {
		id, err := q.Dequeue(context.Background())
		if err != nil {
			results <- "error: " + err.Error()
			return
		}
		results <- id
	}()

	time.Sleep(10 * time.Millisecond)
	if err := q.Enqueue(context.Background(), "dep-42"); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	select {
	case got := <-results:
		if got != "dep-42" {
			t.Fatalf("Dequeue = %q, want dep-42", got)
		}
	case <-time.After(time.Second):
		t.Fatal("Dequeue never returned")
	}
}

func TestMemoryQueueDequeueHonorsContext(t *testing.T) {
	q := NewMemory()
	defer q.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := q.Dequeue(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Dequeue error = %v, want deadline exceeded", err)
	}
}

func TestMemoryQueueClose(t *testing.T) {
	q := NewMemory()
	q.Close()
	q.Close()

	if err := q.Enqueue(context.Background(), "dep-1"); !errors.Is(err, ErrClosed) {
		t.Fatalf("Enqueue after close = %v, want ErrClosed", err)
	}
	if _, err := q.Dequeue(context.Background()); !errors.Is(err, ErrClosed) {
		t.Fatalf("Dequeue after close = %v, want ErrClosed", err)
	}
}

func TestWorkerProcessesJobs(t *testing.T) {
	q := NewMemory()
	defer q.Close()

	processed := make(chan string, 2)
	run := func(_ context.Context, deploymentID string) error {
		processed <- deploymentID
		return nil
	}
	worker := NewWorker(q, run, discardLogger(), 2)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		worker.Run(ctx)
		close(done)
	}()

	_ = q.Enqueue(ctx, "dep-1")
	_ = q.Enqueue(ctx, "dep-2")

	seen := map[string]bool{}
	for i := 0; i < 2; i++ {
		select {
		case id := <-processed:
			seen[id] = true
		case <-time.After(time.Second):
			t.Fatal("worker never processed jobs")
		}
	}
	if !seen["dep-1"] || !seen["dep-2"] {
		t.Fatalf("processed = %v", seen)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker pool did not stop on cancel")
	}
}
