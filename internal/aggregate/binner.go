// Package aggregate implements the statistics computed by a streaming pass.
//
// Every statistic is an execution.Task. A Binner maps rows to cells of a
// D-dimensional grid (D = 0 gives a single cell) and each task keeps a
// per-cell partial state that merges associatively, so chunks may arrive
// in any order.
package aggregate

import (
	"fmt"
	"math"

	errors "github.com/paveg/colstat/internal/errors"
	"github.com/paveg/colstat/internal/execution"
)

// Binner assigns rows to grid cells from D binby expressions.
type Binner struct {
	Expressions []string
	Limits      [][2]float64
	Shape       []int
	// Closed marks dimensions whose upper limit is inclusive.
	Closed []bool
}

// NewBinner validates a binning. Cells are half-open [lo, hi) unless
// CloseUpper is called for a dimension.
func NewBinner(expressions []string, limits [][2]float64, shape []int) (*Binner, error) {
	if len(limits) != len(expressions) {
		return nil, errors.NewShapeMismatchError("NewBinner", "limits", len(expressions), len(limits))
	}
	if len(shape) != len(expressions) {
		return nil, errors.NewShapeMismatchError("NewBinner", "shape", len(expressions), len(shape))
	}
	for i, s := range shape {
		if s <= 0 {
			return nil, errors.NewInvalidInputError("NewBinner", fmt.Sprintf("shape of %q must be positive, got %d", expressions[i], s))
		}
		lo, hi := limits[i][0], limits[i][1]
		if math.IsNaN(lo) || math.IsNaN(hi) || !(hi > lo) {
			return nil, errors.NewInvalidInputError("NewBinner", fmt.Sprintf("limits of %q must satisfy lo < hi, got [%g, %g]", expressions[i], lo, hi))
		}
	}
	return &Binner{Expressions: expressions, Limits: limits, Shape: shape}, nil
}

// CloseUpper makes the upper limit of dimension d inclusive, so a limit
// computed as the data maximum keeps that maximum in the last bin.
func (b *Binner) CloseUpper(d int) {
	if b.Closed == nil {
		b.Closed = make([]bool, len(b.Shape))
	}
	b.Closed[d] = true
}

func (b *Binner) closed(d int) bool {
	return b.Closed != nil && b.Closed[d]
}

// Scalar returns the zero-dimensional binner.
func Scalar() *Binner {
	return &Binner{}
}

// Cells returns the number of grid cells.
func (b *Binner) Cells() int {
	n := 1
	for _, s := range b.Shape {
		n *= s
	}
	return n
}

// Bin returns the row-major cell of every chunk row, or -1 for rows that
// are masked out, missing or outside the limits.
func (b *Binner) Bin(c *execution.Chunk, mask []bool) []int {
	cells := make([]int, c.Len())
	for i := range cells {
		if mask != nil && !mask[i] {
			cells[i] = -1
		}
	}
	for d, x := range b.Expressions {
		values := c.Floats(x)
		lo, hi := b.Limits[d][0], b.Limits[d][1]
		n := float64(b.Shape[d])
		closed := b.closed(d)
		for i, v := range values {
			if cells[i] < 0 {
				continue
			}
			if math.IsNaN(v) || v < lo || v > hi || (v == hi && !closed) {
				cells[i] = -1
				continue
			}
			idx := min(int((v-lo)*n/(hi-lo)), b.Shape[d]-1)
			cells[i] = cells[i]*b.Shape[d] + idx
		}
	}
	return cells
}

// Grid is a dense row-major array of per-cell results.
type Grid struct {
	Shape  []int
	Values []float64
}

// NewGrid allocates a grid filled with fill.
func NewGrid(shape []int, fill float64) *Grid {
	n := 1
	for _, s := range shape {
		n *= s
	}
	g := &Grid{Shape: append([]int(nil), shape...), Values: make([]float64, n)}
	if fill != 0 {
		for i := range g.Values {
			g.Values[i] = fill
		}
	}
	return g
}

// At returns the value at a multi-dimensional index.
func (g *Grid) At(index ...int) float64 {
	flat := 0
	for d, i := range index {
		flat = flat*g.Shape[d] + i
	}
	return g.Values[flat]
}

// Scalar returns the single value of a zero-dimensional grid.
func (g *Grid) Scalar() float64 {
	return g.Values[0]
}

func appendDims(shape []int, extra ...int) []int {
	out := make([]int, 0, len(shape)+len(extra))
	out = append(out, shape...)
	return append(out, extra...)
}

// base holds what every binned task shares.
type base struct {
	binner    *Binner
	selection string
}

func newBase(binner *Binner, selection string) base {
	if binner == nil {
		binner = Scalar()
	}
	return base{binner: binner, selection: selection}
}

func (b *base) Selections() []string { return []string{b.selection} }

func (b *base) expressions(own ...string) []string {
	out := make([]string, 0, len(b.binner.Expressions)+len(own))
	out = append(out, b.binner.Expressions...)
	for _, x := range own {
		if x != "" && x != "*" {
			out = append(out, x)
		}
	}
	return out
}

func (b *base) bin(c *execution.Chunk) []int {
	return b.binner.Bin(c, c.Mask(b.selection))
}
