// Package testutil provides the fixtures shared by the engine's tests:
// a leak-checking allocator and a small numeric column set with known
// statistics.
package testutil

import (
	"slices"
	"testing"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paveg/colstat/internal/column"
)

const (
	// defaultRowCount is the default number of rows in test column sets.
	defaultRowCount = 10
)

// TestMemoryContext provides a checked allocator that must be empty again
// when the test releases it.
type TestMemoryContext struct {
	Allocator *memory.CheckedAllocator
	tb        testing.TB
}

// Release asserts every allocation has been freed.
func (tmc *TestMemoryContext) Release() {
	tmc.Allocator.AssertSize(tmc.tb, 0)
}

// SetupMemoryTest creates a leak-checking allocator.
//
// Example usage:
//
//	mem := testutil.SetupMemoryTest(t)
//	defer mem.Release()
func SetupMemoryTest(tb testing.TB) *TestMemoryContext {
	tb.Helper()
	return &TestMemoryContext{
		Allocator: memory.NewCheckedAllocator(memory.NewGoAllocator()),
		tb:        tb,
	}
}

// ColumnsOption configures SquaresColumns.
type ColumnsOption func(*columnsConfig)

type columnsConfig struct {
	rowCount int
	missing  func(i int) bool
	labels   bool
}

// WithRowCount sets the number of rows.
func WithRowCount(count int) ColumnsOption {
	return func(cfg *columnsConfig) {
		cfg.rowCount = count
	}
}

// WithMissing marks the rows of m for which fn is true as missing.
func WithMissing(fn func(i int) bool) ColumnsOption {
	return func(cfg *columnsConfig) {
		cfg.missing = fn
	}
}

// WithMissingRows marks the listed rows of m as missing.
func WithMissingRows(rows ...int) ColumnsOption {
	return WithMissing(func(i int) bool { return slices.Contains(rows, i) })
}

// WithLabels adds a string column "name" holding 'a', 'b', ...
func WithLabels() ColumnsOption {
	return func(cfg *columnsConfig) {
		cfg.labels = true
	}
}

// SquaresColumns builds x = 0..n-1, y = x*x and m, a copy of x with the
// configured rows missing. With the defaults sum(x) = 45, mean(x) = 4.5,
// var(x) = 8.25 and sum(y) = 285.
func SquaresColumns(tb testing.TB, mem memory.Allocator, opts ...ColumnsOption) []*column.Column {
	tb.Helper()
	cfg := &columnsConfig{
		rowCount: defaultRowCount,
		missing:  func(int) bool { return false },
	}
	for _, opt := range opts {
		opt(cfg)
	}

	n := cfg.rowCount
	x := make([]float64, n)
	y := make([]float64, n)
	valid := make([]bool, n)
	for i := range x {
		x[i] = float64(i)
		y[i] = float64(i * i)
		valid[i] = !cfg.missing(i)
	}
	m, err := column.NewMasked("m", x, valid, mem)
	require.NoError(tb, err)

	cols := []*column.Column{column.New("x", x, mem), column.New("y", y, mem), m}
	if cfg.labels {
		names := make([]string, n)
		for i := range names {
			names[i] = string(rune('a' + i))
		}
		cols = append(cols, column.New("name", names, mem))
	}
	return cols
}

// ReleaseColumns releases every column.
func ReleaseColumns(cols []*column.Column) {
	for _, c := range cols {
		c.Release()
	}
}

// AssertFloatsInDelta compares two float slices element-wise.
func AssertFloatsInDelta(t *testing.T, expected, actual []float64, delta float64) {
	t.Helper()
	require.Len(t, actual, len(expected))
	for i := range expected {
		assert.InDelta(t, expected[i], actual[i], delta, "index %d", i)
	}
}
