package aggregate

import (
	"math"

	"github.com/paveg/colstat/internal/execution"
	"github.com/paveg/colstat/internal/expr"
)

// CountAll is the expression that counts rows rather than values.
const CountAll = "*"

// present reports per row whether an expression value is not missing.
// Strings count when valid; numbers when valid and not NaN.
func present(c *execution.Chunk, expression string) []bool {
	out := make([]bool, c.Len())
	if v, ok := c.Values(expression); ok && v.Kind == expr.KindString {
		for i := range out {
			out[i] = v.IsValid(i)
		}
		return out
	}
	for i, x := range c.Floats(expression) {
		out[i] = !math.IsNaN(x)
	}
	return out
}

// CountTask counts rows ("*") or non-missing values per cell.
type CountTask struct {
	base
	expression string
	counts     []float64
}

// NewCount creates a count task.
func NewCount(expression string, binner *Binner, selection string) *CountTask {
	b := newBase(binner, selection)
	return &CountTask{base: b, expression: expression, counts: make([]float64, b.binner.Cells())}
}

func (t *CountTask) Expressions() []string { return t.expressions(t.expression) }

func (t *CountTask) Feed(c *execution.Chunk) error {
	cells := t.bin(c)
	var ok []bool
	if t.expression != CountAll {
		ok = present(c, t.expression)
	}
	for i, cell := range cells {
		if cell >= 0 && (ok == nil || ok[i]) {
			t.counts[cell]++
		}
	}
	return nil
}

func (t *CountTask) Finalize() (any, error) {
	return &Grid{Shape: t.binner.Shape, Values: t.counts}, nil
}

// SumTask sums non-missing values per cell; empty cells are 0.
type SumTask struct {
	base
	expression string
	sums       []float64
}

// NewSum creates a sum task.
func NewSum(expression string, binner *Binner, selection string) *SumTask {
	b := newBase(binner, selection)
	return &SumTask{base: b, expression: expression, sums: make([]float64, b.binner.Cells())}
}

func (t *SumTask) Expressions() []string { return t.expressions(t.expression) }

func (t *SumTask) Feed(c *execution.Chunk) error {
	cells := t.bin(c)
	values := c.Floats(t.expression)
	for i, cell := range cells {
		if cell >= 0 && !math.IsNaN(values[i]) {
			t.sums[cell] += values[i]
		}
	}
	return nil
}

func (t *SumTask) Finalize() (any, error) {
	return &Grid{Shape: t.binner.Shape, Values: t.sums}, nil
}

// MeanTask computes sum and count in one pass; empty cells are NaN.
type MeanTask struct {
	base
	expression string
	sums       []float64
	counts     []float64
}

// NewMean creates a mean task.
func NewMean(expression string, binner *Binner, selection string) *MeanTask {
	b := newBase(binner, selection)
	n := b.binner.Cells()
	return &MeanTask{base: b, expression: expression, sums: make([]float64, n), counts: make([]float64, n)}
}

func (t *MeanTask) Expressions() []string { return t.expressions(t.expression) }

func (t *MeanTask) Feed(c *execution.Chunk) error {
	cells := t.bin(c)
	values := c.Floats(t.expression)
	for i, cell := range cells {
		if cell >= 0 && !math.IsNaN(values[i]) {
			t.sums[cell] += values[i]
			t.counts[cell]++
		}
	}
	return nil
}

func (t *MeanTask) Finalize() (any, error) {
	out := make([]float64, len(t.sums))
	for i := range out {
		if t.counts[i] == 0 {
			out[i] = math.NaN()
			continue
		}
		out[i] = t.sums[i] / t.counts[i]
	}
	return &Grid{Shape: t.binner.Shape, Values: out}, nil
}

// Extreme selects which bound a MinMaxTask reports.
type Extreme int

const (
	Min Extreme = iota
	Max
	// Both appends a trailing dimension of size 2 holding (min, max).
	Both
)

// MinMaxTask tracks per-cell extremes. Empty cells hold +Inf as min and
// -Inf as max.
type MinMaxTask struct {
	base
	expression string
	which      Extreme
	mins, maxs []float64
}

// NewMinMax creates a min/max task.
func NewMinMax(expression string, which Extreme, binner *Binner, selection string) *MinMaxTask {
	b := newBase(binner, selection)
	n := b.binner.Cells()
	t := &MinMaxTask{base: b, expression: expression, which: which,
		mins: make([]float64, n), maxs: make([]float64, n)}
	for i := range t.mins {
		t.mins[i] = math.Inf(1)
		t.maxs[i] = math.Inf(-1)
	}
	return t
}

func (t *MinMaxTask) Expressions() []string { return t.expressions(t.expression) }

func (t *MinMaxTask) Feed(c *execution.Chunk) error {
	cells := t.bin(c)
	values := c.Floats(t.expression)
	for i, cell := range cells {
		v := values[i]
		if cell < 0 || math.IsNaN(v) {
			continue
		}
		t.mins[cell] = math.Min(t.mins[cell], v)
		t.maxs[cell] = math.Max(t.maxs[cell], v)
	}
	return nil
}

func (t *MinMaxTask) Finalize() (any, error) {
	switch t.which {
	case Min:
		return &Grid{Shape: t.binner.Shape, Values: t.mins}, nil
	case Max:
		return &Grid{Shape: t.binner.Shape, Values: t.maxs}, nil
	}
	out := make([]float64, 2*len(t.mins))
	for i := range t.mins {
		out[2*i] = t.mins[i]
		out[2*i+1] = t.maxs[i]
	}
	return &Grid{Shape: appendDims(t.binner.Shape, 2), Values: out}, nil
}

// NewHistogram counts rows per cell, or sums weight per cell when weight
// is not empty.
func NewHistogram(weight string, binner *Binner, selection string) execution.Task {
	if weight == "" {
		return NewCount(CountAll, binner, selection)
	}
	return NewSum(weight, binner, selection)
}
