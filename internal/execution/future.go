package execution

import (
	"context"
	"sync"
)

// Future is the eventual result of a submitted Task.
type Future struct {
	done  chan struct{}
	once  sync.Once
	value any
	err   error
}

func newFuture() *Future {
	return &Future{done: make(chan struct{})}
}

// Resolved returns a future that already holds value.
func Resolved(value any) *Future {
	f := newFuture()
	f.resolve(value, nil)
	return f
}

// Failed returns a future that already holds err.
func Failed(err error) *Future {
	f := newFuture()
	f.resolve(nil, err)
	return f
}

func (f *Future) resolve(value any, err error) {
	f.once.Do(func() {
		f.value, f.err = value, err
		close(f.done)
	})
}

// Done is closed once the future holds a value or an error.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// IsResolved reports whether the future has completed.
func (f *Future) IsResolved() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Get blocks until the future completes.
func (f *Future) Get() (any, error) {
	<-f.done
	return f.value, f.err
}

// Wait is Get bounded by ctx.
func (f *Future) Wait(ctx context.Context) (any, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
