// Package execution streams a dataset in chunks and feeds them to the
// aggregation tasks registered for a pass.
//
// Tasks submitted to an Executor are queued until Execute runs. One
// Execute drains the queue in a single pass over the filtered rows: for
// every chunk the union of expressions and selection masks needed by the
// queued tasks is evaluated once, concurrently on a bounded worker pool,
// and the chunk is then fed to each task in submission order. Each task's
// Future resolves after the pass, or fails together with every other
// future of the pass when evaluation fails or the pass is cancelled.
package execution

import (
	"context"
	stderrors "errors"
	"sync"
	"time"

	errors "github.com/paveg/colstat/internal/errors"
	"github.com/paveg/colstat/internal/expr"
	"github.com/paveg/colstat/internal/logging"
	"github.com/paveg/colstat/internal/monitoring"
	"github.com/paveg/colstat/internal/parallel"
)

// DefaultBufferSize is the number of filtered rows per chunk.
const DefaultBufferSize = 1_048_576

// Source is the data a pass streams over.
type Source interface {
	// FilteredLength returns the number of rows passing the filter and the
	// active range.
	FilteredLength() (int, error)
	// StorageRange maps filtered rows [filteredStart, filteredEnd) to the
	// smallest storage range containing them.
	StorageRange(filteredStart, filteredEnd int) (start, end int, err error)
	// FilterMask returns the filter over storage rows [start, end), or nil
	// when every row passes.
	FilterMask(start, end int) ([]bool, error)
	EvaluateChunk(expression string, start, end int) (expr.Vector, error)
	// SelectionMask returns the mask of a selection key over storage rows,
	// or nil when the key places no restriction.
	SelectionMask(key string, start, end int) ([]bool, error)
	// BeginPass marks a pass as running; the returned func ends it.
	BeginPass() (func(), error)
}

// Task consumes chunks and produces one result.
type Task interface {
	// Expressions lists the expressions Feed reads through Chunk.Values.
	Expressions() []string
	// Selections lists the selection keys Feed reads through Chunk.Mask.
	Selections() []string
	Feed(chunk *Chunk) error
	Finalize() (any, error)
}

// ProgressObserver receives the fraction of filtered rows processed.
// Returning false cancels the pass.
type ProgressObserver func(fraction float64) bool

// Options configures an Executor.
type Options struct {
	BufferSize int
	Workers    int
	Logger     *logging.Logger
	Metrics    *monitoring.MetricsCollector
}

type pendingTask struct {
	task   Task
	future *Future
}

// Executor queues tasks and runs them in shared passes.
type Executor struct {
	source     Source
	pool       *parallel.WorkerPool
	bufferSize int
	logger     *logging.Logger
	metrics    *monitoring.MetricsCollector

	mu        sync.Mutex
	pending   []pendingTask
	observers map[int]ProgressObserver
	nextID    int
}

// NewExecutor creates an executor over source.
func NewExecutor(source Source, opts Options) *Executor {
	if opts.BufferSize <= 0 {
		opts.BufferSize = DefaultBufferSize
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoopLogger()
	}
	return &Executor{
		source:     source,
		pool:       parallel.NewWorkerPool(opts.Workers),
		bufferSize: opts.BufferSize,
		logger:     opts.Logger,
		metrics:    opts.Metrics,
		observers:  map[int]ProgressObserver{},
	}
}

// BufferSize returns the number of filtered rows per chunk.
func (e *Executor) BufferSize() int {
	return e.bufferSize
}

// SetBufferSize changes the chunk size of later passes.
func (e *Executor) SetBufferSize(n int) {
	if n > 0 {
		e.mu.Lock()
		e.bufferSize = n
		e.mu.Unlock()
	}
}

// Submit queues a task for the next pass.
func (e *Executor) Submit(task Task) *Future {
	f := newFuture()
	e.mu.Lock()
	e.pending = append(e.pending, pendingTask{task: task, future: f})
	e.mu.Unlock()
	return f
}

// Pending returns the number of queued tasks.
func (e *Executor) Pending() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.pending)
}

// AddProgressObserver registers fn for every later pass and returns a func
// removing it.
func (e *Executor) AddProgressObserver(fn ProgressObserver) func() {
	e.mu.Lock()
	defer e.mu.Unlock()
	id := e.nextID
	e.nextID++
	e.observers[id] = fn
	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		delete(e.observers, id)
	}
}

func (e *Executor) progress(fraction float64) bool {
	e.mu.Lock()
	observers := make([]ProgressObserver, 0, len(e.observers))
	// registration order
	for id := 0; id < e.nextID; id++ {
		if fn, ok := e.observers[id]; ok {
			observers = append(observers, fn)
		}
	}
	e.mu.Unlock()

	keep := true
	for _, fn := range observers {
		if !fn(fraction) {
			keep = false
		}
	}
	return keep
}

// Execute runs every queued task in one pass. It returns the error that
// failed the pass, if any; the same error is delivered to every future of
// the pass. A task whose Finalize fails only fails its own future.
func (e *Executor) Execute(ctx context.Context) error {
	e.mu.Lock()
	tasks := e.pending
	e.pending = nil
	bufferSize := e.bufferSize
	e.mu.Unlock()

	if len(tasks) == 0 {
		return nil
	}

	var stats monitoring.PassStats
	start := time.Now()
	err := e.metrics.RecordPass("execute", func() (monitoring.PassStats, error) {
		err := e.run(ctx, tasks, bufferSize, &stats)
		stats.Cancelled = IsCancelled(err)
		return stats, err
	})
	e.logger.LogPass(ctx, len(tasks), stats.Chunks, int(stats.Rows), time.Since(start), err)

	if err != nil {
		for _, p := range tasks {
			p.future.resolve(nil, err)
		}
		return err
	}
	for _, p := range tasks {
		p.future.resolve(p.task.Finalize())
	}
	return nil
}

func (e *Executor) run(ctx context.Context, tasks []pendingTask, bufferSize int, stats *monitoring.PassStats) error {
	stats.Tasks = len(tasks)

	end, err := e.source.BeginPass()
	if err != nil {
		return err
	}
	defer end()

	expressions, selections := requirements(tasks)
	n, err := e.source.FilteredLength()
	if err != nil {
		return err
	}

	if n == 0 {
		if !e.progress(1) {
			return e.cancelled(ctx, 1, nil)
		}
		return nil
	}

	for fs := 0; fs < n; fs += bufferSize {
		if err := ctx.Err(); err != nil {
			return e.cancelled(ctx, float64(fs)/float64(n), err)
		}
		fe := min(fs+bufferSize, n)

		chunk, err := e.chunk(ctx, fs, fe, expressions, selections)
		if err != nil {
			if ctx.Err() != nil {
				return e.cancelled(ctx, float64(fs)/float64(n), ctx.Err())
			}
			return err
		}
		for _, p := range tasks {
			if err := p.task.Feed(chunk); err != nil {
				return err
			}
		}
		stats.Chunks++
		stats.Rows += int64(fe - fs)

		fraction := float64(fe) / float64(n)
		if !e.progress(fraction) {
			return e.cancelled(ctx, fraction, nil)
		}
	}
	return nil
}

func (e *Executor) cancelled(ctx context.Context, fraction float64, cause error) error {
	e.logger.LogCancel(ctx, fraction)
	return errors.NewCancelledError("Execute", cause)
}

// chunk evaluates everything the pass needs over filtered rows [fs, fe).
func (e *Executor) chunk(ctx context.Context, fs, fe int, expressions, selections []string) (*Chunk, error) {
	start, end, err := e.source.StorageRange(fs, fe)
	if err != nil {
		return nil, err
	}
	filter, err := e.source.FilterMask(start, end)
	if err != nil {
		return nil, err
	}

	values := make([]expr.Vector, len(expressions))
	masks := make([][]bool, len(selections))
	err = parallel.ForEach(ctx, e.pool, len(expressions)+len(selections), func(_ context.Context, i int) error {
		if i < len(expressions) {
			v, err := e.source.EvaluateChunk(expressions[i], start, end)
			values[i] = v
			return err
		}
		i -= len(expressions)
		m, err := e.source.SelectionMask(selections[i], start, end)
		masks[i] = m
		return err
	})
	if err != nil {
		return nil, err
	}

	valueMap := make(map[string]expr.Vector, len(expressions))
	for i, x := range expressions {
		valueMap[x] = values[i]
	}
	maskMap := make(map[string][]bool, len(selections))
	for i, key := range selections {
		maskMap[key] = CombineMasks(filter, masks[i])
	}
	return NewChunk(start, end, fs, filter, valueMap, maskMap), nil
}

// requirements returns the distinct expressions and selection keys of
// tasks, in first-use order.
func requirements(tasks []pendingTask) ([]string, []string) {
	var expressions, selections []string
	seenExpr := map[string]bool{}
	seenSel := map[string]bool{}
	for _, p := range tasks {
		for _, x := range p.task.Expressions() {
			if !seenExpr[x] {
				seenExpr[x] = true
				expressions = append(expressions, x)
			}
		}
		for _, s := range p.task.Selections() {
			if s != "" && !seenSel[s] {
				seenSel[s] = true
				selections = append(selections, s)
			}
		}
	}
	return expressions, selections
}

// IsCancelled reports whether err came from a cancelled pass.
func IsCancelled(err error) bool {
	return stderrors.Is(err, errors.ErrCancelled)
}
