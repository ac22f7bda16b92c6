package engine

import (
	"context"
	"errors"
	"sync"

	"github.com/roach88/provstream/internal/ir"
)

// ErrQueueClosed is returned by Deliver after the engine has stopped.
var ErrQueueClosed = errors.New("window queue closed")

// DefaultQueueSize is the default capacity of the window queue.
const DefaultQueueSize = 16

// windowQueue is a bounded, thread-safe FIFO of window tables.
//
// Producers block in Enqueue while the queue is full; that is the
// backpressure policy when windows arrive faster than inference runs.
// The consumer uses TryDequeue + Wait for context-aware waiting, the same
// pattern as the engine's Run loop.
type windowQueue struct {
	mu       sync.Mutex
	tables   []ir.Table
	capacity int
	closed   bool
	notEmpty chan struct{} // buffered, size 1
	notFull  chan struct{} // buffered, size 1
}

func newWindowQueue(capacity int) *windowQueue {
	if capacity < 1 {
		capacity = 1
	}
	return &windowQueue{
		tables:   make([]ir.Table, 0, capacity),
		capacity: capacity,
		notEmpty: make(chan struct{}, 1),
		notFull:  make(chan struct{}, 1),
	}
}

// Enqueue appends a table, blocking while the queue is full.
// Returns ErrQueueClosed if the queue is or becomes closed, or ctx.Err()
// if ctx ends first.
func (q *windowQueue) Enqueue(ctx context.Context, t ir.Table) error {
	for {
		q.mu.Lock()
		if q.closed {
			q.mu.Unlock()
			return ErrQueueClosed
		}
		if len(q.tables) < q.capacity {
			q.tables = append(q.tables, t)
			signal(q.notEmpty)
			q.mu.Unlock()
			return nil
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-q.notFull:
		}
	}
}

// TryDequeue removes the front table without blocking.
func (q *windowQueue) TryDequeue() (ir.Table, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.tables) == 0 {
		return ir.Table{}, false
	}
	t := q.tables[0]
	q.tables[0] = ir.Table{} // release rows for GC
	if len(q.tables) == 1 {
		q.tables = q.tables[:0]
	} else {
		q.tables = q.tables[1:]
	}
	if !q.closed {
		signal(q.notFull)
	}
	return t, true
}

// Wait signals when tables may be available. Closed when the queue closes.
func (q *windowQueue) Wait() <-chan struct{} {
	return q.notEmpty
}

// Len returns the number of queued tables.
func (q *windowQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tables)
}

// Close rejects further Enqueues and wakes all waiters. Tables already
// queued can still be dequeued.
func (q *windowQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.notEmpty)
	close(q.notFull)
}

// signal does a non-blocking send; the size-1 buffer coalesces signals.
func signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
