package colstat

import (
	"context"
	"sync"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/paveg/colstat/internal/dataset"
	"github.com/paveg/colstat/internal/execution"
	"github.com/paveg/colstat/internal/selection"
)

// Task is a unit of aggregation fed chunk by chunk during a pass.
type Task = execution.Task

// TaskFuture is the untyped result of a submitted Task.
type TaskFuture = execution.Future

// Backend runs the operations of a dataset. Evaluate and Select are
// synchronous; Submit only queues a task and Execute runs every queued
// task in one pass. A non-local backend may return from Execute before the
// pass has finished, resolving futures later.
type Backend interface {
	Evaluate(ctx context.Context, expression string, start, end int, selectionKey string) (arrow.Array, error)
	Select(ctx context.Context, name, expression string, mode selection.Mode) error
	Submit(task Task) *TaskFuture
	Execute(ctx context.Context) error
	IsLocal() bool
}

// LocalBackend runs everything in-process on the calling goroutine.
type LocalBackend struct {
	ds *dataset.Dataset
}

// NewLocalBackend returns the in-process backend of ds.
func NewLocalBackend(ds *dataset.Dataset) *LocalBackend {
	return &LocalBackend{ds: ds}
}

// Evaluate implements Backend.
func (b *LocalBackend) Evaluate(ctx context.Context, expression string, start, end int, selectionKey string) (arrow.Array, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return b.ds.EvaluateArray(expression, start, end, selectionKey)
}

// Select implements Backend.
func (b *LocalBackend) Select(ctx context.Context, name, expression string, mode selection.Mode) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return b.ds.Select(name, expression, mode)
}

// Submit implements Backend.
func (b *LocalBackend) Submit(task Task) *TaskFuture {
	return b.ds.Executor().Submit(task)
}

// Execute implements Backend.
func (b *LocalBackend) Execute(ctx context.Context) error {
	return b.ds.Executor().Execute(ctx)
}

// IsLocal implements Backend.
func (b *LocalBackend) IsLocal() bool { return true }

// DeferredBackend wraps another backend and runs each pass on its own
// goroutine, so Execute returns at once and results arrive through
// futures. It is the shape a remote proxy takes: every statistic is a
// future and only Evaluate and Select block.
type DeferredBackend struct {
	inner Backend

	mu   sync.Mutex // serializes passes
	errs chan error

	state   sync.Mutex
	idle    *sync.Cond
	running int
}

// NewDeferredBackend wraps inner.
func NewDeferredBackend(inner Backend) *DeferredBackend {
	b := &DeferredBackend{inner: inner, errs: make(chan error, 1)}
	b.idle = sync.NewCond(&b.state)
	return b
}

// Evaluate implements Backend.
func (b *DeferredBackend) Evaluate(ctx context.Context, expression string, start, end int, selectionKey string) (arrow.Array, error) {
	b.Wait()
	return b.inner.Evaluate(ctx, expression, start, end, selectionKey)
}

// Select implements Backend. It waits for running passes, since a
// selection change during a pass is rejected.
func (b *DeferredBackend) Select(ctx context.Context, name, expression string, mode selection.Mode) error {
	b.Wait()
	return b.inner.Select(ctx, name, expression, mode)
}

// Submit implements Backend.
func (b *DeferredBackend) Submit(task Task) *TaskFuture {
	return b.inner.Submit(task)
}

// Execute starts a pass over the queued tasks and returns immediately.
// Errors reach the futures; the first one is also kept for Err.
func (b *DeferredBackend) Execute(ctx context.Context) error {
	b.state.Lock()
	b.running++
	b.state.Unlock()
	go func() {
		defer b.finish()
		b.mu.Lock()
		err := b.inner.Execute(ctx)
		b.mu.Unlock()
		if err != nil {
			select {
			case b.errs <- err:
			default:
			}
		}
	}()
	return nil
}

func (b *DeferredBackend) finish() {
	b.state.Lock()
	b.running--
	if b.running == 0 {
		b.idle.Broadcast()
	}
	b.state.Unlock()
}

// Wait blocks until every started pass has finished. Passes started while
// it waits are waited for too.
func (b *DeferredBackend) Wait() {
	b.state.Lock()
	for b.running > 0 {
		b.idle.Wait()
	}
	b.state.Unlock()
}

// Err returns and clears the first error of a finished pass, if any.
func (b *DeferredBackend) Err() error {
	select {
	case err := <-b.errs:
		return err
	default:
		return nil
	}
}

// IsLocal implements Backend.
func (b *DeferredBackend) IsLocal() bool { return false }
