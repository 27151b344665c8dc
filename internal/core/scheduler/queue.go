package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/vietddude/arbiter/internal/core/domain"
	"github.com/vietddude/arbiter/internal/metrics"
)

// ErrQueueClosed is returned by Push and Pop after Close.
var ErrQueueClosed = errors.New("queue closed")

// Queue is an unbounded FIFO of work items shared by the loop and the workers.
// Each popped item must be acknowledged with Done.
type Queue struct {
	mu      sync.Mutex
	items   []domain.WorkItem
	pending int
	closed  bool
	signal  chan struct{}
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	return &Queue{signal: make(chan struct{}, 1)}
}

// Push appends an item.
func (q *Queue) Push(item domain.WorkItem) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrQueueClosed
	}
	q.items = append(q.items, item)
	q.pending++
	pending := q.pending
	q.mu.Unlock()

	metrics.QueuePending.Set(float64(pending))
	q.wake()
	return nil
}

// Pop removes the oldest item, waiting up to timeout. ok is false on timeout.
func (q *Queue) Pop(ctx context.Context, timeout time.Duration) (item domain.WorkItem, ok bool, err error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			item = q.items[0]
			q.items[0] = domain.WorkItem{}
			q.items = q.items[1:]
			more := len(q.items) > 0
			q.mu.Unlock()

			if more {
				q.wake()
			}
			return item, true, nil
		}
		if q.closed {
			q.mu.Unlock()
			q.wake() // pass the wakeup on to the next blocked Pop
			return domain.WorkItem{}, false, ErrQueueClosed
		}
		q.mu.Unlock()

		select {
		case <-q.signal:
		case <-timer.C:
			return domain.WorkItem{}, false, nil
		case <-ctx.Done():
			return domain.WorkItem{}, false, ctx.Err()
		}
	}
}

// Done acknowledges a popped item.
func (q *Queue) Done() {
	q.mu.Lock()
	if q.pending > 0 {
		q.pending--
	}
	pending := q.pending
	q.mu.Unlock()

	metrics.QueuePending.Set(float64(pending))
}

// Pending returns items pushed but not yet acknowledged, including ones being executed.
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pending
}

// Len returns items waiting to be popped.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Drain removes and returns every waiting item. Drained items count as acknowledged.
func (q *Queue) Drain() []domain.WorkItem {
	q.mu.Lock()
	items := q.items
	q.items = nil
	q.pending -= len(items)
	if q.pending < 0 {
		q.pending = 0
	}
	pending := q.pending
	q.mu.Unlock()

	metrics.QueuePending.Set(float64(pending))
	return items
}

// Close rejects further pushes and wakes blocked Pop calls once the queue is empty.
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.wake()
}

func (q *Queue) wake() {
	select {
	case q.signal <- struct{}{}:
	default:
	}
}
