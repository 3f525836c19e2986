// Package fsm implements the Player and Recorder state machines
// (spec.md §4.8, SPEC_FULL.md §4.9): a single serialized-intent worker
// per machine drives every public call and every asynchronous pipeline
// event through one transition table, so state never changes outside
// that worker's goroutine.
package fsm

import (
	"log/slog"

	"github.com/jmylchreest/histreamer/internal/queue"
	"github.com/jmylchreest/histreamer/internal/task"
)

// intent is one request to the state machine: either a synchronous API
// call (done is non-nil, and the caller blocks on it) or an async event
// raised by the pipeline (done is nil).
type intent struct {
	name string
	arg  any
	done chan error
}

func syncIntent(name string, arg any) intent {
	return intent{name: name, arg: arg, done: make(chan error, 1)}
}

func asyncIntent(name string, arg any) intent {
	return intent{name: name, arg: arg}
}

// engine is the shared intent-queue plumbing behind both Player and
// Recorder (SPEC_FULL.md §4.9): one task.Task worker pops intents off a
// blocking queue and hands each to the owning machine's handle
// function, so API callers and pipeline callbacks never race on state.
type engine struct {
	q      *queue.BlockingQueue[intent]
	worker *task.Task
	handle func(intent) error
}

func newEngine(name string, depth int, logger *slog.Logger, handle func(intent) error) *engine {
	e := &engine{
		q:      queue.New[intent](name, depth),
		handle: handle,
	}
	e.worker = task.NewWithLogger(name, e.pump, logger)
	e.worker.Start()
	return e
}

func (e *engine) pump() {
	it, ok := e.q.Pop()
	if !ok {
		return
	}
	err := e.handle(it)
	if it.done != nil {
		it.done <- err
	}
}

// sync enqueues a caller-originated intent and blocks for its result,
// matching spec.md §4.8's "synchronous-with-condition-variable" API
// calls.
func (e *engine) sync(name string, arg any) error {
	it := syncIntent(name, arg)
	if err := e.q.Push(it); err != nil {
		return err
	}
	return <-it.done
}

// async enqueues a pipeline-originated intent without waiting.
func (e *engine) async(name string, arg any) {
	_ = e.q.Push(asyncIntent(name, arg))
}

func (e *engine) stop() {
	e.q.SetActive(false)
	e.worker.Stop()
}
