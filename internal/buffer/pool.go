package buffer

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jmylchreest/histreamer/internal/errors"
)

// Pool is a fixed-count set of pre-allocated buffers of identical
// capacity and meta-type (spec.md §3 "BufferPool", §4.1). Invariant: at
// most Capacity buffers exist outside the pool at any instant.
type Pool struct {
	mu       sync.Mutex
	cond     *sync.Cond
	idle     []*Buffer
	outside  int
	capacity int
	memType  MemoryType
	metaType MetaType
	bufCap   int
	active   bool

	logger *slog.Logger
}

// NewPool creates a pool of count pre-allocated buffers, each of the
// given memory type, meta type and byte capacity. The pool starts active.
func NewPool(count int, memType MemoryType, metaType MetaType, bufCap int) *Pool {
	return NewPoolWithLogger(count, memType, metaType, bufCap, nil)
}

// NewPoolWithLogger is NewPool with an explicit logger.
func NewPoolWithLogger(count int, memType MemoryType, metaType MetaType, bufCap int, logger *slog.Logger) *Pool {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Pool{
		idle:     make([]*Buffer, 0, count),
		capacity: count,
		memType:  memType,
		metaType: metaType,
		bufCap:   bufCap,
		active:   true,
		logger:   logger.With(slog.String("component", "buffer.pool")),
	}
	p.cond = sync.NewCond(&p.mu)
	for i := 0; i < count; i++ {
		p.idle = append(p.idle, p.newBuffer())
	}
	return p
}

func (p *Pool) newBuffer() *Buffer {
	b := &Buffer{
		Memory:   newMemory(p.memType, p.bufCap),
		Type:     p.metaType,
		Meta:     make(map[string]any),
		refcount: 0,
	}
	b.onFree = p.release
	return b
}

// Allocate returns the first idle buffer, blocking up to timeout if none
// is idle and the pool is active. A negative timeout blocks forever.
// Inactive pools fail fast with ErrWrongState.
func (p *Pool) Allocate(ctx context.Context, timeout time.Duration) (*Buffer, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	deadline := time.Time{}
	if timeout >= 0 {
		deadline = time.Now().Add(timeout)
	}

	for {
		if !p.active {
			return nil, errors.New("pool.Allocate", errors.CodeWrongState, nil)
		}
		if n := len(p.idle); n > 0 {
			b := p.idle[n-1]
			p.idle = p.idle[:n-1]
			p.outside++
			b.refcount = 1
			return b, nil
		}
		if ctx != nil {
			select {
			case <-ctx.Done():
				return nil, errors.New("pool.Allocate", errors.CodeTimedOut, ctx.Err())
			default:
			}
		}
		if timeout >= 0 {
			remaining := time.Until(deadline)
			if remaining <= 0 {
				return nil, errors.New("pool.Allocate", errors.CodeTimedOut, nil)
			}
			waited := waitWithTimeout(p.cond, remaining)
			if !waited {
				return nil, errors.New("pool.Allocate", errors.CodeTimedOut, nil)
			}
		} else {
			p.cond.Wait()
		}
	}
}

// release is the Buffer.onFree hook: zero the size (not the memory
// content) and return the buffer to the idle set, waking one blocked
// acquirer.
func (p *Pool) release(b *Buffer) {
	p.mu.Lock()
	b.Memory.reset()
	b.Flags = 0
	b.PTS, b.DTS, b.Duration = 0, 0, 0
	for k := range b.Meta {
		delete(b.Meta, k)
	}
	p.outside--
	p.idle = append(p.idle, b)
	p.mu.Unlock()
	p.cond.Signal()
}

// SetActive toggles the pool's active flag. Deactivating wakes all
// blocked acquirers, which then observe failure.
func (p *Pool) SetActive(active bool) {
	p.mu.Lock()
	p.active = active
	p.mu.Unlock()
	p.cond.Broadcast()
}

// OutsideCount returns how many buffers are currently checked out.
func (p *Pool) OutsideCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.outside
}

// Capacity returns the pool's fixed buffer count.
func (p *Pool) Capacity() int { return p.capacity }

// waitWithTimeout waits on cond for at most d, returning false on
// timeout. sync.Cond has no native timeout, so a watcher goroutine
// broadcasts once d elapses; this mirrors the monitor-with-predicate
// idiom described in spec.md §4.2 for Task pause/resume.
func waitWithTimeout(cond *sync.Cond, d time.Duration) bool {
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
