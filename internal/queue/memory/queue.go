// Package memory provides the in-process date queue shared by workers.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/andrelmbackes/rpv-crawler/internal/pipeline"
)

// ErrClosed is returned by Dequeue once the queue is closed and drained.
var ErrClosed = errors.New("queue closed")

// Queue is a bounded in-memory FIFO with context-aware operations.
type Queue struct {
	ch      chan pipeline.QueueItem
	closeMu sync.Mutex
	closed  bool
}

// NewQueue constructs a queue with the provided capacity.
func NewQueue(capacity int) *Queue {
	return &Queue{
		ch: make(chan pipeline.QueueItem, capacity),
	}
}

// Enqueue pushes a date into the queue or returns if the context ends.
// Enqueueing into a closed queue returns ErrClosed instead of panicking, so
// a late retry cannot take down a draining orchestrator. The mutex is held
// across the send; Close takes the same mutex, so a send can never race a
// concurrent close of the channel.
func (q *Queue) Enqueue(ctx context.Context, item pipeline.QueueItem) error {
	q.closeMu.Lock()
	defer q.closeMu.Unlock()
	if q.closed {
		return ErrClosed
	}

	select {
	case <-ctx.Done():
		return fmt.Errorf("enqueue canceled: %w", ctx.Err())
	case q.ch <- item:
		return nil
	}
}

// Dequeue pops the next date, respecting context cancellation. When the
// queue is closed and empty it returns ErrClosed, which workers treat as
// normal exit.
func (q *Queue) Dequeue(ctx context.Context) (pipeline.QueueItem, error) {
	select {
	case <-ctx.Done():
		return pipeline.QueueItem{}, fmt.Errorf("dequeue canceled: %w", ctx.Err())
	case item, ok := <-q.ch:
		if !ok {
			return pipeline.QueueItem{}, ErrClosed
		}
		return item, nil
	}
}

// Close closes the underlying channel so idle workers exit.
func (q *Queue) Close() {
	q.closeMu.Lock()
	defer q.closeMu.Unlock()
	if q.closed {
		return
	}
	close(q.ch)
	q.closed = true
}
