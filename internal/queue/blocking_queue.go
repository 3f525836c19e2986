// Package queue implements the bounded, blocking FIFO shared by every
// inter-filter link in the pipeline (spec.md §3 "BlockingQueue", §4.1).
package queue

import (
	"sync"
	"time"

	"github.com/jmylchreest/histreamer/internal/errors"
)

// BlockingQueue is a bounded FIFO. Push blocks while full, Pop blocks
// while empty; SetActive(false) clears the queue and wakes every blocked
// party with the zero value.
type BlockingQueue[T any] struct {
	mu       sync.Mutex
	notFull  *sync.Cond
	notEmpty *sync.Cond
	items    []T
	capacity int
	active   bool
	name     string
}

// New creates a BlockingQueue of the given capacity. name is used only
// for diagnostics when naming long-lived components for logging.
func New[T any](name string, capacity int) *BlockingQueue[T] {
	q := &BlockingQueue[T]{
		items:    make([]T, 0, capacity),
		capacity: capacity,
		active:   true,
		name:     name,
	}
	q.notFull = sync.NewCond(&q.mu)
	q.notEmpty = sync.NewCond(&q.mu)
	return q
}

// Name returns the queue's diagnostic name.
func (q *BlockingQueue[T]) Name() string { return q.name }

// Push enqueues item, blocking while the queue is full and active. It
// returns an error if the queue is or becomes inactive before space
// frees up.
func (q *BlockingQueue[T]) Push(item T) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	for q.active && len(q.items) >= q.capacity {
		q.notFull.Wait()
	}
	if !q.active {
		return errors.New("queue.Push", errors.CodeWrongState, nil)
	}
	q.items = append(q.items, item)
	q.notEmpty.Signal()
	return nil
}

// Pop dequeues the oldest item, blocking while the queue is empty and
// active. When the queue goes inactive, Pop unblocks and returns the
// zero value with ok=false.
func (q *BlockingQueue[T]) Pop() (item T, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for q.active && len(q.items) == 0 {
		q.notEmpty.Wait()
	}
	if len(q.items) == 0 {
		var zero T
		return zero, false
	}
	item = q.items[0]
	q.items = q.items[1:]
	q.notFull.Signal()
	return item, true
}

// TryPop dequeues without blocking; ok is false if the queue is empty.
func (q *BlockingQueue[T]) TryPop() (item T, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		var zero T
		return zero, false
	}
	item = q.items[0]
	q.items = q.items[1:]
	q.notFull.Signal()
	return item, true
}

// PopTimeout dequeues with a bounded wait. A negative timeout blocks
// forever, matching spec.md §5's "-1 == block forever" convention.
func (q *BlockingQueue[T]) PopTimeout(timeout time.Duration) (item T, ok bool) {
	if timeout < 0 {
		return q.Pop()
	}
	deadline := time.Now().Add(timeout)
	q.mu.Lock()
	defer q.mu.Unlock()
	for q.active && len(q.items) == 0 {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			var zero T
			return zero, false
		}
		if !condWaitTimeout(q.notEmpty, remaining) {
			var zero T
			return zero, false
		}
	}
	if len(q.items) == 0 {
		var zero T
		return zero, false
	}
	item = q.items[0]
	q.items = q.items[1:]
	q.notFull.Signal()
	return item, true
}

// SetActive toggles the active flag. Deactivating clears the queue and
// wakes every blocked Push/Pop.
func (q *BlockingQueue[T]) SetActive(active bool) {
	q.mu.Lock()
	q.active = active
	if !active {
		q.items = q.items[:0]
	}
	q.mu.Unlock()
	q.notFull.Broadcast()
	q.notEmpty.Broadcast()
}

// Len returns the current number of queued items.
func (q *BlockingQueue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Active reports whether the queue currently accepts Push/Pop.
func (q *BlockingQueue[T]) Active() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.active
}

func condWaitTimeout(cond *sync.Cond, d time.Duration) bool {
	done := make(chan struct{})
	timer := time.AfterFunc(d, func() {
		cond.L.Lock()
		close(done)
		cond.L.Unlock()
		cond.Broadcast()
	})
	cond.Wait()
	select {
	case <-done:
		timer.Stop()
		return false
	default:
		timer.Stop()
		return true
	}
}
