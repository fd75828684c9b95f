package colstat

import (
	"github.com/paveg/colstat/internal/aggregate"
)

// Grid is a dense row-major result. Statistics without BinBy return a
// zero-dimensional grid; read it with Scalar.
type Grid = aggregate.Grid

// NearestResult is the row closest to a point.
type NearestResult = aggregate.NearestResult

// DefaultShape is the number of bins per BinBy dimension when Shape is not
// given.
const DefaultShape = 128

// MinMax is the limit spec for the exact range of an expression.
const MinMax = "minmax"

// StatOption configures a statistic.
type StatOption func(*statOptions)

type statOptions struct {
	selections  []any
	multi       bool
	binby       []string
	limits      []any
	shape       []int
	weight      string
	valueLimits []any
	resolution  int
}

// Selection restricts the rows of a statistic on top of the filter:
// nil or false for no restriction, true for the default selection, a
// selection name, or an inline boolean expression.
func Selection(s any) StatOption {
	return func(o *statOptions) {
		o.selections = []any{s}
		o.multi = false
	}
}

// Selections computes the statistic once per selection in the same pass.
// Results gain a leading dimension of len(s).
func Selections(s ...any) StatOption {
	return func(o *statOptions) {
		o.selections = s
		o.multi = true
	}
}

// BinBy computes the statistic per cell of a grid over expressions.
func BinBy(expressions ...string) StatOption {
	return func(o *statOptions) { o.binby = expressions }
}

// Limits bounds each BinBy dimension: an explicit [2]float64 or []float64
// pair, MinMax, or a "NN%" string keeping the central NN percent. A single
// spec applies to every dimension.
func Limits(specs ...any) StatOption {
	return func(o *statOptions) { o.limits = specs }
}

// Shape sets the bins per BinBy dimension. A single value applies to every
// dimension.
func Shape(n ...int) StatOption {
	return func(o *statOptions) { o.shape = n }
}

// Weight makes Histogram sum an expression instead of counting rows.
func Weight(expression string) StatOption {
	return func(o *statOptions) { o.weight = expression }
}

// ValueLimits bounds the values histogrammed by PercentileApprox (one
// spec) and MutualInformation (one per expression). Specs are as for
// Limits; the default is MinMax.
func ValueLimits(specs ...any) StatOption {
	return func(o *statOptions) { o.valueLimits = specs }
}

// Resolution overrides the histogram resolution of PercentileApprox and
// MutualInformation, normally taken from the configuration.
func Resolution(n int) StatOption {
	return func(o *statOptions) { o.resolution = n }
}

func collect(opts []StatOption) statOptions {
	var o statOptions
	for _, opt := range opts {
		opt(&o)
	}
	if len(o.selections) == 0 {
		o.selections = []any{nil}
	}
	return o
}

// broadcast returns one entry per dimension.
func broadcast[T any](values []T, n int, fallback T) []T {
	out := make([]T, n)
	for i := range out {
		switch {
		case len(values) == 1:
			out[i] = values[0]
		case i < len(values):
			out[i] = values[i]
		default:
			out[i] = fallback
		}
	}
	return out
}
