// Package dataset ties storage columns, virtual columns, variables and
// functions to the expression evaluator, the selection engine and the
// chunk executor.
//
// A Dataset never materializes derived data: virtual columns and
// selections are evaluated per chunk of storage rows. Rows visible to
// statistics are those inside the active range that pass the
// "__filter__" selection; they are addressed by filtered index.
package dataset

import (
	"context"
	"fmt"
	"math"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/paveg/colstat/internal/column"
	"github.com/paveg/colstat/internal/config"
	errors "github.com/paveg/colstat/internal/errors"
	"github.com/paveg/colstat/internal/execution"
	"github.com/paveg/colstat/internal/expr"
	"github.com/paveg/colstat/internal/logging"
	"github.com/paveg/colstat/internal/monitoring"
	"github.com/paveg/colstat/internal/selection"
	"github.com/paveg/colstat/internal/validation"
)

// FilterName is the reserved selection restricting the visible rows.
const FilterName = "__filter__"

// Options configures a Dataset.
type Options struct {
	Name      string
	Config    config.Config
	Logger    *logging.Logger
	Metrics   *monitoring.MetricsCollector
	Allocator memory.Allocator
}

type virtualColumn struct {
	name    string
	formula string
}

// Dataset is an ordered set of equal-length columns plus derived state.
type Dataset struct {
	name string
	cfg  config.Config
	mem  memory.Allocator

	mu        sync.RWMutex
	columns   []*column.Column
	length    int
	virtual   []virtualColumn
	variables map[string]float64
	functions map[string]expr.Function

	activeFraction float64
	filtered       *FilteredIndex
	filteredGen    uint64

	currentRow    int
	pickObservers []func(row int)

	evaluator  *expr.Evaluator
	selections *selection.Engine
	executor   *execution.Executor
	passes     atomic.Int32

	logger  *logging.Logger
	metrics *monitoring.MetricsCollector
}

// New creates an empty dataset. pi and e are predefined variables.
func New(opts Options) *Dataset {
	cfg := opts.Config.WithDefaults()
	if opts.Logger == nil {
		opts.Logger = logging.FromConfig(cfg)
	}
	if opts.Name != "" {
		opts.Logger = opts.Logger.WithDataset(opts.Name)
	}
	if opts.Metrics == nil {
		opts.Metrics = monitoring.NewMetricsCollector(cfg.MetricsCollection)
	}
	if opts.Allocator == nil {
		opts.Allocator = memory.NewGoAllocator()
	}

	ds := &Dataset{
		name:           opts.Name,
		cfg:            cfg,
		mem:            opts.Allocator,
		variables:      map[string]float64{"pi": math.Pi, "e": math.E},
		functions:      map[string]expr.Function{},
		activeFraction: 1,
		currentRow:     -1,
		evaluator:      expr.NewEvaluator(opts.Allocator),
		logger:         opts.Logger,
		metrics:        opts.Metrics,
	}
	ds.selections = selection.NewEngine(selectionContext{ds}, opts.Logger)
	ds.selections.AddObserver(func(name string) {
		if name == FilterName {
			ds.resetFiltered()
		}
	})
	ds.executor = execution.NewExecutor(ds, execution.Options{
		BufferSize: cfg.ChunkSize,
		Workers:    cfg.Workers(),
		Logger:     opts.Logger,
		Metrics:    opts.Metrics,
	})
	return ds
}

// FromColumns creates a dataset holding columns.
func FromColumns(opts Options, columns ...*column.Column) (*Dataset, error) {
	ds := New(opts)
	for _, c := range columns {
		if err := ds.AddColumn(c); err != nil {
			return nil, err
		}
	}
	return ds, nil
}

// Name returns the dataset name.
func (ds *Dataset) Name() string { return ds.name }

// Config returns the configuration the dataset was created with.
func (ds *Dataset) Config() config.Config { return ds.cfg }

// Executor returns the chunk executor shared by every statistic.
func (ds *Dataset) Executor() *execution.Executor { return ds.executor }

// Selections returns the selection engine.
func (ds *Dataset) Selections() *selection.Engine { return ds.selections }

// Metrics returns the pass metrics collector.
func (ds *Dataset) Metrics() *monitoring.MetricsCollector { return ds.metrics }

// Allocator returns the allocator used for evaluated arrays.
func (ds *Dataset) Allocator() memory.Allocator { return ds.mem }

// BeginPass marks a streaming pass; mutations fail until the returned
// func runs. Concurrent read-only passes are allowed.
func (ds *Dataset) BeginPass() (func(), error) {
	ds.passes.Add(1)
	var once sync.Once
	return func() { once.Do(func() { ds.passes.Add(-1) }) }, nil
}

func (ds *Dataset) checkMutable(op string) error {
	if ds.passes.Load() > 0 {
		return errors.NewConcurrentMutationError(op)
	}
	return nil
}

// mutated drops every derived cache after a structural change.
func (ds *Dataset) mutated(op, name string) {
	ds.selections.InvalidateAll()
	ds.resetFiltered()
	ds.logger.LogMutation(context.Background(), op, name)
}

// LengthOriginal returns the number of storage rows.
func (ds *Dataset) LengthOriginal() int {
	ds.mu.RLock()
	defer ds.mu.RUnlock()
	return ds.length
}

// ActiveLength returns the number of storage rows in the active range.
func (ds *Dataset) ActiveLength() int {
	ds.mu.RLock()
	defer ds.mu.RUnlock()
	return ds.activeLengthLocked()
}

// Length returns the number of rows in the active range that pass the
// filter.
func (ds *Dataset) Length() (int, error) {
	return ds.FilteredLength()
}

func (ds *Dataset) activeLengthLocked() int {
	return int(math.Round(ds.activeFraction * float64(ds.length)))
}

// AddColumn adds or replaces a storage column. Every column must have the
// dataset's length.
func (ds *Dataset) AddColumn(c *column.Column) error {
	if err := ds.checkMutable("AddColumn"); err != nil {
		return err
	}
	ds.mu.Lock()
	if len(ds.columns) > 0 {
		if err := validation.ValidateLength(ds.length, c.Len(), "AddColumn", c.Name()); err != nil {
			ds.mu.Unlock()
			return err
		}
	}
	if i := ds.columnIndexLocked(c.Name()); i >= 0 {
		ds.columns[i].Release()
		ds.columns[i] = c
	} else {
		ds.columns = append(ds.columns, c)
	}
	ds.length = c.Len()
	ds.mu.Unlock()

	ds.mutated("AddColumn", c.Name())
	return nil
}

// RemoveColumn drops a storage column.
func (ds *Dataset) RemoveColumn(name string) error {
	if err := ds.checkMutable("RemoveColumn"); err != nil {
		return err
	}
	ds.mu.Lock()
	i := ds.columnIndexLocked(name)
	if i < 0 {
		names := ds.namesLocked()
		ds.mu.Unlock()
		return errors.NewNameErrorWithSuggestions("RemoveColumn", name, names)
	}
	ds.columns[i].Release()
	ds.columns = slices.Delete(ds.columns, i, i+1)
	if len(ds.columns) == 0 {
		ds.length = 0
	}
	ds.mu.Unlock()

	ds.mutated("RemoveColumn", name)
	return nil
}

// RenameColumn renames a storage or virtual column.
func (ds *Dataset) RenameColumn(oldName, newName string) error {
	if err := ds.checkMutable("RenameColumn"); err != nil {
		return err
	}
	ds.mu.Lock()
	if ds.resolvableLocked(newName) {
		ds.mu.Unlock()
		return errors.NewInvalidInputError("RenameColumn", fmt.Sprintf("name %q is already in use", newName))
	}
	switch i, j := ds.columnIndexLocked(oldName), ds.virtualIndexLocked(oldName); {
	case i >= 0:
		renamed := ds.columns[i].Rename(newName)
		ds.columns[i].Release()
		ds.columns[i] = renamed
	case j >= 0:
		ds.virtual[j].name = newName
	default:
		names := ds.namesLocked()
		ds.mu.Unlock()
		return errors.NewNameErrorWithSuggestions("RenameColumn", oldName, names)
	}
	ds.mu.Unlock()

	ds.mutated("RenameColumn", oldName)
	return nil
}

// Column returns a storage column.
func (ds *Dataset) Column(name string) (*column.Column, bool) {
	ds.mu.RLock()
	defer ds.mu.RUnlock()
	if i := ds.columnIndexLocked(name); i >= 0 {
		return ds.columns[i], true
	}
	return nil, false
}

// ColumnNames lists storage columns in insertion order, optionally
// followed by virtual columns. String columns are left out unless strings
// is set.
func (ds *Dataset) ColumnNames(virtual, strings bool) []string {
	ds.mu.RLock()
	defer ds.mu.RUnlock()
	var out []string
	for _, c := range ds.columns {
		if c.IsString() && !strings {
			continue
		}
		out = append(out, c.Name())
	}
	if virtual {
		for _, v := range ds.virtual {
			out = append(out, v.name)
		}
	}
	return out
}

func (ds *Dataset) columnIndexLocked(name string) int {
	for i, c := range ds.columns {
		if c.Name() == name {
			return i
		}
	}
	return -1
}

// HasColumn reports whether name is a storage or virtual column.
func (ds *Dataset) HasColumn(name string) bool {
	ds.mu.RLock()
	defer ds.mu.RUnlock()
	return ds.columnIndexLocked(name) >= 0 || ds.virtualIndexLocked(name) >= 0
}

func (ds *Dataset) resolvableLocked(name string) bool {
	if ds.columnIndexLocked(name) >= 0 || ds.virtualIndexLocked(name) >= 0 {
		return true
	}
	_, ok := ds.variables[name]
	return ok
}

func (ds *Dataset) namesLocked() []string {
	names := make([]string, 0, len(ds.columns)+len(ds.virtual)+len(ds.variables))
	for _, c := range ds.columns {
		names = append(names, c.Name())
	}
	for _, v := range ds.virtual {
		names = append(names, v.name)
	}
	for name := range ds.variables {
		names = append(names, name)
	}
	return names
}

// SetVariable defines or replaces a scalar variable. Cached selection masks
// are invalidated; results computed earlier are not.
func (ds *Dataset) SetVariable(name string, value float64) error {
	if err := ds.checkMutable("SetVariable"); err != nil {
		return err
	}
	ds.mu.Lock()
	ds.variables[name] = value
	ds.mu.Unlock()
	ds.mutated("SetVariable", name)
	return nil
}

// RemoveVariable deletes a variable.
func (ds *Dataset) RemoveVariable(name string) error {
	if err := ds.checkMutable("RemoveVariable"); err != nil {
		return err
	}
	ds.mu.Lock()
	if _, ok := ds.variables[name]; !ok {
		ds.mu.Unlock()
		return errors.NewNameError("RemoveVariable", name)
	}
	delete(ds.variables, name)
	ds.mu.Unlock()
	ds.mutated("RemoveVariable", name)
	return nil
}

// Variable returns the value of a variable.
func (ds *Dataset) Variable(name string) (float64, bool) {
	ds.mu.RLock()
	defer ds.mu.RUnlock()
	v, ok := ds.variables[name]
	return v, ok
}

// Variables returns a copy of every variable.
func (ds *Dataset) Variables() map[string]float64 {
	ds.mu.RLock()
	defer ds.mu.RUnlock()
	out := make(map[string]float64, len(ds.variables))
	for k, v := range ds.variables {
		out[k] = v
	}
	return out
}

// AddFunction registers a user function callable from expressions.
func (ds *Dataset) AddFunction(name string, fn expr.Function) error {
	if err := ds.checkMutable("AddFunction"); err != nil {
		return err
	}
	ds.mu.Lock()
	ds.functions[name] = fn
	ds.mu.Unlock()
	ds.mutated("AddFunction", name)
	return nil
}

// Function returns a registered user function.
func (ds *Dataset) Function(name string) (expr.Function, bool) {
	ds.mu.RLock()
	defer ds.mu.RUnlock()
	fn, ok := ds.functions[name]
	return fn, ok
}

// Copy returns a dataset sharing the storage columns with copies of every
// other piece of state. The current selection of every history is carried
// over; undo history is not.
func (ds *Dataset) Copy() (*Dataset, error) {
	ds.mu.RLock()
	cp := New(Options{Config: ds.cfg, Logger: ds.logger, Metrics: ds.metrics, Allocator: ds.mem})
	cp.name = ds.name
	for _, c := range ds.columns {
		cp.columns = append(cp.columns, c.Rename(c.Name()))
	}
	cp.length = ds.length
	cp.virtual = slices.Clone(ds.virtual)
	for k, v := range ds.variables {
		cp.variables[k] = v
	}
	for k, fn := range ds.functions {
		cp.functions[k] = fn
	}
	cp.activeFraction = ds.activeFraction
	ds.mu.RUnlock()

	if err := cp.selections.SetState(ds.selections.State()); err != nil {
		return nil, err
	}
	cp.executor.SetBufferSize(ds.executor.BufferSize())
	return cp, nil
}

// Release drops the dataset's references to its column arrays.
func (ds *Dataset) Release() {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	for _, c := range ds.columns {
		c.Release()
	}
	ds.columns = nil
	ds.length = 0
}
