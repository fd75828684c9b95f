// Package column provides the Arrow-backed storage columns of a dataset.
package column

import (
	"fmt"
	"math"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"golang.org/x/exp/constraints"

	errors "github.com/paveg/colstat/internal/errors"
)

// Numeric is the set of Go element types stored as numeric columns.
type Numeric interface {
	constraints.Integer | constraints.Float
}

// Element is the set of Go element types a column can be built from.
type Element interface {
	Numeric | ~bool | ~string
}

// Column is a named, immutable Arrow array. Integer columns are stored as
// Int64, floating columns as Float64. A column with nulls is a masked column.
type Column struct {
	name  string
	array arrow.Array
}

// New creates a dense column from a slice of values.
func New[T Element](name string, values []T, mem memory.Allocator) *Column {
	return &Column{name: name, array: build(values, nil, mem)}
}

// NewMasked creates a column whose rows with valid[i] == false are missing.
func NewMasked[T Element](name string, values []T, valid []bool, mem memory.Allocator) (*Column, error) {
	if len(valid) != len(values) {
		return nil, errors.NewShapeMismatchError("NewMasked", name, len(values), len(valid))
	}
	return &Column{name: name, array: build(values, valid, mem)}, nil
}

// FromArray wraps an existing array. The column takes its own reference.
func FromArray(name string, arr arrow.Array) (*Column, error) {
	switch arr.DataType().ID() {
	case arrow.FLOAT64, arrow.FLOAT32, arrow.INT64, arrow.INT32, arrow.INT16, arrow.INT8,
		arrow.UINT64, arrow.UINT32, arrow.UINT16, arrow.UINT8, arrow.BOOL, arrow.STRING:
	default:
		return nil, errors.NewInvalidInputError("FromArray",
			fmt.Sprintf("unsupported column type %s for %q", arr.DataType(), name))
	}
	arr.Retain()
	return &Column{name: name, array: arr}, nil
}

func build[T Element](values []T, valid []bool, mem memory.Allocator) arrow.Array {
	if mem == nil {
		mem = memory.NewGoAllocator()
	}
	isValid := func(i int) bool { return valid == nil || valid[i] }

	switch v := any(values).(type) {
	case []string:
		b := array.NewStringBuilder(mem)
		defer b.Release()
		b.AppendValues(v, valid)
		return b.NewArray()
	case []bool:
		b := array.NewBooleanBuilder(mem)
		defer b.Release()
		b.AppendValues(v, valid)
		return b.NewArray()
	case []float64:
		b := array.NewFloat64Builder(mem)
		defer b.Release()
		b.AppendValues(v, valid)
		return b.NewArray()
	case []float32:
		b := array.NewFloat64Builder(mem)
		defer b.Release()
		for i, x := range v {
			if isValid(i) {
				b.Append(float64(x))
			} else {
				b.AppendNull()
			}
		}
		return b.NewArray()
	}

	// Remaining element types are integers; named string/bool types fall
	// through here only if they were declared outside this package.
	b := array.NewInt64Builder(mem)
	defer b.Release()
	for i, x := range values {
		if !isValid(i) {
			b.AppendNull()
			continue
		}
		b.Append(toInt64(x))
	}
	return b.NewArray()
}

func toInt64[T Element](x T) int64 {
	switch v := any(x).(type) {
	case int:
		return int64(v)
	case int8:
		return int64(v)
	case int16:
		return int64(v)
	case int32:
		return int64(v)
	case int64:
		return v
	case uint:
		return int64(v) //nolint:gosec // row values, overflow is the caller's concern
	case uint8:
		return int64(v)
	case uint16:
		return int64(v)
	case uint32:
		return int64(v)
	case uint64:
		return int64(v) //nolint:gosec // row values, overflow is the caller's concern
	default:
		panic(fmt.Sprintf("unsupported element type: %T", x))
	}
}

// Name returns the column name
func (c *Column) Name() string {
	return c.name
}

// Len returns the number of storage rows
func (c *Column) Len() int {
	return c.array.Len()
}

// DataType returns the Arrow data type
func (c *Column) DataType() arrow.DataType {
	return c.array.DataType()
}

// Array returns the backing array. The caller must not release it.
func (c *Column) Array() arrow.Array {
	return c.array
}

// IsMasked reports whether any row is missing.
func (c *Column) IsMasked() bool {
	return c.array.NullN() > 0
}

// IsString reports whether the column holds strings.
func (c *Column) IsString() bool {
	return c.array.DataType().ID() == arrow.STRING
}

// Slice returns a zero-copy view of rows [start, end). The caller owns the
// returned reference and must release it.
func (c *Column) Slice(start, end int) arrow.Array {
	return array.NewSlice(c.array, int64(start), int64(end))
}

// Rename returns a column sharing the same data under a new name.
func (c *Column) Rename(name string) *Column {
	c.array.Retain()
	return &Column{name: name, array: c.array}
}

// Float64 returns row i as a float64 and whether it is present.
func (c *Column) Float64(i int) (float64, bool) {
	if c.array.IsNull(i) {
		return math.NaN(), false
	}
	switch a := c.array.(type) {
	case *array.Float64:
		return a.Value(i), true
	case *array.Int64:
		return float64(a.Value(i)), true
	case *array.Boolean:
		if a.Value(i) {
			return 1, true
		}
		return 0, true
	default:
		vals, valid := Float64s(c.array)
		return vals[i], valid == nil || valid[i]
	}
}

// Release drops the column's reference to its array.
func (c *Column) Release() {
	if c.array != nil {
		c.array.Release()
	}
}

// String returns a short description of the column
func (c *Column) String() string {
	return fmt.Sprintf("Column[%s]: %s (len=%d)", c.array.DataType(), c.name, c.Len())
}

// Float64s copies a numeric or boolean array into a float64 slice. The
// returned validity slice is nil when every row is present; missing rows
// hold NaN. String arrays yield nil values with validity only.
func Float64s(arr arrow.Array) ([]float64, []bool) {
	n := arr.Len()
	var valid []bool
	if arr.NullN() > 0 {
		valid = make([]bool, n)
		for i := range valid {
			valid[i] = arr.IsValid(i)
		}
	}

	var out []float64
	switch a := arr.(type) {
	case *array.Float64:
		out = append([]float64(nil), a.Float64Values()...)
	case *array.Float32:
		out = convert(a.Float32Values())
	case *array.Int64:
		out = convert(a.Int64Values())
	case *array.Int32:
		out = convert(a.Int32Values())
	case *array.Int16:
		out = convert(a.Int16Values())
	case *array.Int8:
		out = convert(a.Int8Values())
	case *array.Uint64:
		out = convert(a.Uint64Values())
	case *array.Uint32:
		out = convert(a.Uint32Values())
	case *array.Uint16:
		out = convert(a.Uint16Values())
	case *array.Uint8:
		out = convert(a.Uint8Values())
	case *array.Boolean:
		out = make([]float64, n)
		for i := range out {
			if a.Value(i) {
				out[i] = 1
			}
		}
	default:
		return nil, validity(arr)
	}

	for i, ok := range valid {
		if !ok {
			out[i] = math.NaN()
		}
	}
	return out, valid
}

func validity(arr arrow.Array) []bool {
	valid := make([]bool, arr.Len())
	for i := range valid {
		valid[i] = arr.IsValid(i)
	}
	return valid
}

func convert[T Numeric](in []T) []float64 {
	out := make([]float64, len(in))
	for i, v := range in {
		out[i] = float64(v)
	}
	return out
}
