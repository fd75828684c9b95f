// Package colstat computes statistics, histograms and selections over
// columnar datasets larger than memory by streaming fixed-size chunks
// through a shared task scheduler.
//
// A Dataset holds storage columns plus derived state: virtual columns
// (formulas evaluated per chunk), scalar variables, user functions, named
// selections with undo history, and an optional filter that changes the
// visible row count. Statistics are computed in one pass per call, or in
// one pass for a whole batch when requested through Delayed.
//
// This package is the sole public API of the module.
package colstat

import (
	"context"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/paveg/colstat/internal/column"
	"github.com/paveg/colstat/internal/config"
	"github.com/paveg/colstat/internal/dataset"
	"github.com/paveg/colstat/internal/expr"
	"github.com/paveg/colstat/internal/io"
	"github.com/paveg/colstat/internal/logging"
	"github.com/paveg/colstat/internal/monitoring"
)

// Column is a named, immutable storage column.
type Column = column.Column

// Config tunes chunking, parallelism, approximation resolution, logging
// and metrics.
type Config = config.Config

// Function is a user function callable from expressions.
type Function = expr.Function

// Vector is an evaluated expression.
type Vector = expr.Vector

// State is the persisted, data-free state of a dataset.
type State = dataset.State

// PassMetrics describes one streaming pass.
type PassMetrics = monitoring.PassMetrics

// NewColumn creates a dense column.
func NewColumn[T column.Element](name string, values []T) *Column {
	return column.New(name, values, nil)
}

// NewMaskedColumn creates a column whose rows with valid[i] == false are
// missing.
func NewMaskedColumn[T column.Element](name string, values []T, valid []bool) (*Column, error) {
	return column.NewMasked(name, values, valid, nil)
}

// Dataset is the public handle on a dataset.
type Dataset struct {
	ds      *dataset.Dataset
	backend Backend
}

// Option configures a new Dataset.
type Option func(*dataset.Options)

// WithName names the dataset in logs.
func WithName(name string) Option {
	return func(o *dataset.Options) { o.Name = name }
}

// WithConfig overrides the global configuration.
func WithConfig(cfg Config) Option {
	return func(o *dataset.Options) { o.Config = cfg }
}

// WithLogger sets the structured logger.
func WithLogger(l *logging.Logger) Option {
	return func(o *dataset.Options) { o.Logger = l }
}

// WithAllocator sets the Arrow allocator used for evaluated arrays.
func WithAllocator(mem memory.Allocator) Option {
	return func(o *dataset.Options) { o.Allocator = mem }
}

func options(opts []Option) dataset.Options {
	o := dataset.Options{Config: config.GetGlobalConfig()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func wrap(ds *dataset.Dataset) *Dataset {
	return &Dataset{ds: ds, backend: NewLocalBackend(ds)}
}

// New creates a dataset from columns of equal length.
func New(columns []*Column, opts ...Option) (*Dataset, error) {
	ds, err := dataset.FromColumns(options(opts), columns...)
	if err != nil {
		return nil, err
	}
	return wrap(ds), nil
}

// Open reads a CSV, JSON or Parquet file into a dataset.
func Open(path string, opts ...Option) (*Dataset, error) {
	ds, err := io.Open(path, options(opts))
	if err != nil {
		return nil, err
	}
	return wrap(ds), nil
}

// Release drops the dataset's column references.
func (d *Dataset) Release() { d.ds.Release() }

// Name returns the dataset name.
func (d *Dataset) Name() string { return d.ds.Name() }

// Backend returns the backend statistics run on.
func (d *Dataset) Backend() Backend { return d.backend }

// SetBackend replaces the backend, for example with a DeferredBackend.
func (d *Dataset) SetBackend(b Backend) { d.backend = b }

// Length returns the number of rows visible to statistics.
func (d *Dataset) Length() (int, error) { return d.ds.Length() }

// LengthOriginal returns the number of storage rows.
func (d *Dataset) LengthOriginal() int { return d.ds.LengthOriginal() }

// ColumnNames lists columns, optionally with virtual and string columns.
func (d *Dataset) ColumnNames(virtual, strings bool) []string {
	return d.ds.ColumnNames(virtual, strings)
}

// AddColumn adds or replaces a storage column.
func (d *Dataset) AddColumn(c *Column) error { return d.ds.AddColumn(c) }

// RemoveColumn drops a storage column.
func (d *Dataset) RemoveColumn(name string) error { return d.ds.RemoveColumn(name) }

// RenameColumn renames a storage or virtual column.
func (d *Dataset) RenameColumn(oldName, newName string) error {
	return d.ds.RenameColumn(oldName, newName)
}

// AddVirtualColumn defines a column computed from formula.
func (d *Dataset) AddVirtualColumn(name, formula string) error {
	return d.ds.AddVirtualColumn(name, formula)
}

// RemoveVirtualColumn deletes a virtual column.
func (d *Dataset) RemoveVirtualColumn(name string) error {
	return d.ds.RemoveVirtualColumn(name)
}

// VirtualColumns returns name/formula pairs in definition order.
func (d *Dataset) VirtualColumns() [][2]string { return d.ds.VirtualColumns() }

// SetVariable defines a scalar variable usable in expressions.
func (d *Dataset) SetVariable(name string, value float64) error {
	return d.ds.SetVariable(name, value)
}

// Variables returns a copy of every variable.
func (d *Dataset) Variables() map[string]float64 { return d.ds.Variables() }

// AddFunction registers a user function.
func (d *Dataset) AddFunction(name string, fn Function) error {
	return d.ds.AddFunction(name, fn)
}

// Validate checks that expression parses and every name resolves.
func (d *Dataset) Validate(expression string) error { return d.ds.Validate(expression) }

// Evaluate returns expression over filtered rows [start, end), keeping
// only rows in selection (see Selection for accepted values).
func (d *Dataset) Evaluate(ctx context.Context, expression string, start, end int, selection any) (arrow.Array, error) {
	key, err := d.ds.ResolveSelection(selection)
	if err != nil {
		return nil, err
	}
	return d.backend.Evaluate(ctx, expression, start, end, key)
}

// EvaluateRange is Evaluate without compaction: the dense result over the
// storage rows spanning [start, end) and the mask of rows that pass.
func (d *Dataset) EvaluateRange(expression string, start, end int, selection any) (Vector, []bool, error) {
	key, err := d.ds.ResolveSelection(selection)
	if err != nil {
		return Vector{}, nil, err
	}
	return d.ds.EvaluateRange(expression, start, end, key)
}

// SetActiveFraction restricts the dataset to a leading fraction of rows.
func (d *Dataset) SetActiveFraction(f float64) error { return d.ds.SetActiveFraction(f) }

// ActiveFraction returns the active fraction.
func (d *Dataset) ActiveFraction() float64 { return d.ds.ActiveFraction() }

// SetCurrentRow picks a filtered row.
func (d *Dataset) SetCurrentRow(i int) error { return d.ds.SetCurrentRow(i) }

// CurrentRow returns the picked row or -1.
func (d *Dataset) CurrentRow() int { return d.ds.CurrentRow() }

// AddPickObserver registers fn to run when the current row changes.
func (d *Dataset) AddPickObserver(fn func(row int)) { d.ds.AddPickObserver(fn) }

// Metrics returns the recorded passes when metrics collection is enabled.
func (d *Dataset) Metrics() []PassMetrics { return d.ds.Metrics().GetMetrics() }

// AddProgressObserver registers fn to receive pass progress; returning
// false cancels the pass. The returned func removes the observer.
func (d *Dataset) AddProgressObserver(fn func(fraction float64) bool) func() {
	return d.ds.Executor().AddProgressObserver(fn)
}

// Copy returns a dataset sharing storage columns with independent state.
func (d *Dataset) Copy() (*Dataset, error) {
	cp, err := d.ds.Copy()
	if err != nil {
		return nil, err
	}
	return wrap(cp), nil
}

// State captures virtual columns, variables, functions, selections and
// favorites.
func (d *Dataset) State() State { return d.ds.State() }

// SetState applies a captured state.
func (d *Dataset) SetState(st State) error { return d.ds.SetState(st) }

// SaveState writes the state as YAML or JSON, zstd compressed for .zst.
func (d *Dataset) SaveState(path string) error { return d.ds.SaveState(path) }

// LoadState reads and applies a state file.
func (d *Dataset) LoadState(path string) error { return d.ds.LoadState(path) }

// Export evaluates expressions over the filtered rows in selection and
// writes them to path; the format follows the extension.
func (d *Dataset) Export(path string, expressions []string, selection any) error {
	key, err := d.ds.ResolveSelection(selection)
	if err != nil {
		return err
	}
	return io.ExportFile(d.ds, path, expressions, key)
}
