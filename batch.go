package colstat

import (
	"context"
	"sync"

	"github.com/paveg/colstat/internal/aggregate"
	errors "github.com/paveg/colstat/internal/errors"
)

// Future is the typed result of a statistic requested through a Batch.
type Future[T any] struct {
	bound   chan struct{}
	parts   []*TaskFuture
	bindErr error
	combine func([]any) (T, error)

	once  sync.Once
	value T
	err   error
}

func newFuture[T any](combine func([]any) (T, error)) *Future[T] {
	return &Future[T]{bound: make(chan struct{}), combine: combine}
}

func (f *Future[T]) bind(parts []*TaskFuture, err error) {
	f.parts, f.bindErr = parts, err
	close(f.bound)
}

// IsResolved reports whether Get would return without blocking.
func (f *Future[T]) IsResolved() bool {
	select {
	case <-f.bound:
	default:
		return false
	}
	for _, p := range f.parts {
		if !p.IsResolved() {
			return false
		}
	}
	return true
}

// Get waits for the pass that computes the statistic. It blocks until the
// owning Batch has executed or ctx is done.
func (f *Future[T]) Get(ctx context.Context) (T, error) {
	var zero T
	select {
	case <-f.bound:
	case <-ctx.Done():
		return zero, ctx.Err()
	}
	if f.bindErr != nil {
		return zero, f.bindErr
	}
	values := make([]any, len(f.parts))
	for i, p := range f.parts {
		v, err := p.Wait(ctx)
		if err != nil {
			return zero, err
		}
		values[i] = v
	}
	f.once.Do(func() { f.value, f.err = f.combine(values) })
	return f.value, f.err
}

// request is a statistic waiting for its batch to execute.
type request struct {
	limits []limitRequest
	// build creates one task per selection once limits are known.
	build func(limits map[limitRequest][2]float64) ([]Task, error)
	bind  func([]*TaskFuture, error)
}

// Batch collects statistics and computes them together: Execute resolves
// automatic limits, then runs every statistic in a single pass.
type Batch struct {
	d        *Dataset
	mu       sync.Mutex
	requests []request
}

// Delayed starts a batch of statistics that share one pass.
func (d *Dataset) Delayed() *Batch {
	return &Batch{d: d}
}

func (b *Batch) add(r request) {
	b.mu.Lock()
	b.requests = append(b.requests, r)
	b.mu.Unlock()
}

// fail binds a request that could not be built.
func fail[T any](err error) *Future[T] {
	f := newFuture[T](nil)
	f.bind(nil, err)
	return f
}

// Execute computes every statistic added since the last Execute. Errors
// also reach the futures of the statistics they affect.
func (b *Batch) Execute(ctx context.Context) error {
	b.mu.Lock()
	requests := b.requests
	b.requests = nil
	b.mu.Unlock()
	if len(requests) == 0 {
		return nil
	}

	var all []limitRequest
	seen := map[limitRequest]bool{}
	for _, r := range requests {
		for _, l := range r.limits {
			if !seen[l] {
				seen[l] = true
				all = append(all, l)
			}
		}
	}
	limits, err := b.resolveLimits(ctx, all)
	if err != nil {
		for _, r := range requests {
			r.bind(nil, err)
		}
		return err
	}

	for _, r := range requests {
		tasks, err := r.build(limits)
		if err != nil {
			r.bind(nil, err)
			continue
		}
		parts := make([]*TaskFuture, len(tasks))
		for i, t := range tasks {
			parts[i] = b.d.backend.Submit(t)
		}
		r.bind(parts, nil)
	}
	return b.d.backend.Execute(ctx)
}

// plan is a statistic resolved against the dataset: selection keys,
// binning dimensions and pending limit requests.
type plan struct {
	o          statOptions
	keys       []string
	shape      []int
	binLimits  []limitSpec
	valueSpecs []limitSpec
	resolution int
}

func (b *Batch) plan(op string, opts []StatOption, values int, defaultResolution int) (*plan, error) {
	o := collect(opts)
	p := &plan{o: o}
	for _, s := range o.selections {
		key, err := b.d.ds.ResolveSelection(s)
		if err != nil {
			return nil, err
		}
		p.keys = append(p.keys, key)
	}

	p.shape = broadcast(o.shape, len(o.binby), DefaultShape)
	specs := broadcast(o.limits, len(o.binby), nil)
	for d, spec := range specs {
		if p.shape[d] <= 0 {
			return nil, errors.NewInvalidInputError(op, "shape must be positive")
		}
		ls, err := parseLimit(spec)
		if err != nil {
			return nil, err
		}
		p.binLimits = append(p.binLimits, ls)
	}
	for _, spec := range broadcast(o.valueLimits, values, nil) {
		ls, err := parseLimit(spec)
		if err != nil {
			return nil, err
		}
		p.valueSpecs = append(p.valueSpecs, ls)
	}
	p.resolution = defaultResolution
	if o.resolution > 0 {
		p.resolution = o.resolution
	}
	return p, nil
}

// first is the selection computed limits are taken over.
func (p *plan) first() string { return p.keys[0] }

// requests lists the computed limits of the binning dimensions followed by
// those of the value expressions.
func (p *plan) requests(values []string) []limitRequest {
	var out []limitRequest
	for d, ls := range p.binLimits {
		if !ls.explicit {
			out = append(out, limitRequest{expression: p.o.binby[d], percent: ls.percent, selection: p.first()})
		}
	}
	for i, ls := range p.valueSpecs {
		if !ls.explicit {
			out = append(out, limitRequest{expression: values[i], percent: ls.percent, selection: p.first()})
		}
	}
	return out
}

func (p *plan) lookup(specs []limitSpec, expressions []string, resolved map[limitRequest][2]float64) [][2]float64 {
	out := make([][2]float64, len(specs))
	for i, ls := range specs {
		if ls.explicit {
			out[i] = ls.bounds
		} else {
			out[i] = resolved[limitRequest{expression: expressions[i], percent: ls.percent, selection: p.first()}]
		}
	}
	return out
}

func (p *plan) binner(resolved map[limitRequest][2]float64) (*aggregate.Binner, error) {
	if len(p.o.binby) == 0 {
		return aggregate.Scalar(), nil
	}
	binner, err := aggregate.NewBinner(p.o.binby, p.lookup(p.binLimits, p.o.binby, resolved), p.shape)
	if err != nil {
		return nil, err
	}
	for d, ls := range p.binLimits {
		if !ls.explicit {
			binner.CloseUpper(d)
		}
	}
	return binner, nil
}

// upperCloser is a task whose value histograms can include their upper
// limit.
type upperCloser interface {
	CloseUpper(axis int)
}

// stack combines per-selection grids; several selections add a leading
// dimension.
func (p *plan) stack(parts []any) (*Grid, error) {
	if !p.o.multi {
		return parts[0].(*Grid), nil
	}
	first := parts[0].(*Grid)
	out := &Grid{Shape: append([]int{len(parts)}, first.Shape...)}
	for _, part := range parts {
		out.Values = append(out.Values, part.(*Grid).Values...)
	}
	return out, nil
}

// grid queues a statistic producing one grid per selection. task builds
// the task of one selection from the binner and the value limits.
func (b *Batch) grid(op string, opts []StatOption, values []string, valueLimits bool, resolution int,
	task func(binner *aggregate.Binner, key string, limits [][2]float64, resolution int) (Task, error),
) *Future[*Grid] {
	n := 0
	if valueLimits {
		n = len(values)
	}
	p, err := b.plan(op, opts, n, resolution)
	if err != nil {
		return fail[*Grid](err)
	}
	f := newFuture(p.stack)
	b.add(request{
		limits: p.requests(values[:n]),
		build: func(resolved map[limitRequest][2]float64) ([]Task, error) {
			binner, err := p.binner(resolved)
			if err != nil {
				return nil, err
			}
			vl := p.lookup(p.valueSpecs, values[:n], resolved)
			tasks := make([]Task, len(p.keys))
			for i, key := range p.keys {
				if tasks[i], err = task(binner, key, vl, p.resolution); err != nil {
					return nil, err
				}
				if c, ok := tasks[i].(upperCloser); ok {
					for axis, ls := range p.valueSpecs {
						if !ls.explicit {
							c.CloseUpper(axis)
						}
					}
				}
			}
			return tasks, nil
		},
		bind: f.bind,
	})
	return f
}

// single queues a statistic that supports exactly one selection.
func single[T any](b *Batch, op string, opts []StatOption, task func(key string) (Task, error)) *Future[T] {
	p, err := b.plan(op, opts, 0, 0)
	if err != nil {
		return fail[T](err)
	}
	if len(p.keys) != 1 || len(p.o.binby) > 0 {
		return fail[T](errors.NewInvalidInputError(op, "supports a single selection and no binning"))
	}
	f := newFuture(func(parts []any) (T, error) { return parts[0].(T), nil })
	b.add(request{
		build: func(map[limitRequest][2]float64) ([]Task, error) {
			t, err := task(p.keys[0])
			if err != nil {
				return nil, err
			}
			return []Task{t}, nil
		},
		bind: f.bind,
	})
	return f
}
