package expr

import (
	"fmt"
	"math"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/paveg/colstat/internal/column"
)

// Kind is the element type of a Vector.
type Kind uint8

const (
	KindFloat Kind = iota
	KindBool
	KindString
)

func (k Kind) String() string {
	switch k {
	case KindFloat:
		return "float64"
	case KindBool:
		return "bool"
	default:
		return "string"
	}
}

// Vector is the evaluator's working representation of a column chunk.
// Exactly one of Floats, Bools or Strings is populated according to Kind.
// Valid is nil when every row is present. A scalar vector has length one
// and broadcasts against any length.
type Vector struct {
	Kind    Kind
	Floats  []float64
	Bools   []bool
	Strings []string
	Valid   []bool
	Scalar  bool
}

// FloatScalar returns a broadcasting numeric constant.
func FloatScalar(v float64) Vector {
	return Vector{Kind: KindFloat, Floats: []float64{v}, Scalar: true}
}

// BoolScalar returns a broadcasting boolean constant.
func BoolScalar(v bool) Vector {
	return Vector{Kind: KindBool, Bools: []bool{v}, Scalar: true}
}

// StringScalar returns a broadcasting string constant.
func StringScalar(v string) Vector {
	return Vector{Kind: KindString, Strings: []string{v}, Scalar: true}
}

// Len returns the number of rows.
func (v Vector) Len() int {
	switch v.Kind {
	case KindFloat:
		return len(v.Floats)
	case KindBool:
		return len(v.Bools)
	default:
		return len(v.Strings)
	}
}

// IsValid reports whether row i is present.
func (v Vector) IsValid(i int) bool {
	if v.Valid == nil {
		return true
	}
	if v.Scalar {
		return v.Valid[0]
	}
	return v.Valid[i]
}

// Float returns row i as a number; booleans become 0 or 1.
func (v Vector) Float(i int) float64 {
	if v.Scalar {
		i = 0
	}
	switch v.Kind {
	case KindFloat:
		return v.Floats[i]
	case KindBool:
		if v.Bools[i] {
			return 1
		}
		return 0
	default:
		return math.NaN()
	}
}

// Truth returns row i interpreted as a condition.
func (v Vector) Truth(i int) bool {
	if v.Scalar {
		i = 0
	}
	switch v.Kind {
	case KindBool:
		return v.Bools[i]
	case KindFloat:
		x := v.Floats[i]
		return x != 0 && !math.IsNaN(x)
	default:
		return v.Strings[i] != ""
	}
}

func (v Vector) str(i int) string {
	if v.Scalar {
		return v.Strings[0]
	}
	return v.Strings[i]
}

// Broadcast expands a scalar to n rows; non-scalars are returned as is.
func (v Vector) Broadcast(n int) Vector {
	if !v.Scalar {
		return v
	}
	out := Vector{Kind: v.Kind}
	switch v.Kind {
	case KindFloat:
		out.Floats = make([]float64, n)
		for i := range out.Floats {
			out.Floats[i] = v.Floats[0]
		}
	case KindBool:
		out.Bools = make([]bool, n)
		for i := range out.Bools {
			out.Bools[i] = v.Bools[0]
		}
	case KindString:
		out.Strings = make([]string, n)
		for i := range out.Strings {
			out.Strings[i] = v.Strings[0]
		}
	}
	if v.Valid != nil && !v.Valid[0] {
		out.Valid = make([]bool, n)
	}
	return out
}

// Mask converts the vector to a row mask: missing rows and false-y values
// are false.
func (v Vector) Mask(n int) []bool {
	mask := make([]bool, n)
	for i := range mask {
		mask[i] = v.IsValid(i) && v.Truth(i)
	}
	return mask
}

// AsFloats returns the rows as numbers with NaN for missing rows.
func (v Vector) AsFloats(n int) []float64 {
	if v.Kind == KindFloat && !v.Scalar && v.Valid == nil {
		return v.Floats
	}
	out := make([]float64, n)
	for i := range out {
		if v.Kind == KindString || !v.IsValid(i) {
			out[i] = math.NaN()
			continue
		}
		out[i] = v.Float(i)
	}
	return out
}

// Filter keeps the rows where mask is true.
func (v Vector) Filter(mask []bool) Vector {
	v = v.Broadcast(len(mask))
	out := Vector{Kind: v.Kind}
	if v.Valid != nil {
		out.Valid = []bool{}
	}
	for i, keep := range mask {
		if !keep {
			continue
		}
		switch v.Kind {
		case KindFloat:
			out.Floats = append(out.Floats, v.Floats[i])
		case KindBool:
			out.Bools = append(out.Bools, v.Bools[i])
		case KindString:
			out.Strings = append(out.Strings, v.Strings[i])
		}
		if v.Valid != nil {
			out.Valid = append(out.Valid, v.Valid[i])
		}
	}
	switch v.Kind {
	case KindFloat:
		if out.Floats == nil {
			out.Floats = []float64{}
		}
	case KindBool:
		if out.Bools == nil {
			out.Bools = []bool{}
		}
	case KindString:
		if out.Strings == nil {
			out.Strings = []string{}
		}
	}
	return out
}

// FromArrow copies an Arrow array into a Vector.
func FromArrow(arr arrow.Array) (Vector, error) {
	switch a := arr.(type) {
	case *array.Boolean:
		out := Vector{Kind: KindBool, Bools: make([]bool, a.Len())}
		for i := range out.Bools {
			out.Bools[i] = a.Value(i)
		}
		if a.NullN() > 0 {
			out.Valid = validity(a)
		}
		return out, nil
	case *array.String:
		out := Vector{Kind: KindString, Strings: make([]string, a.Len())}
		for i := range out.Strings {
			out.Strings[i] = a.Value(i)
		}
		if a.NullN() > 0 {
			out.Valid = validity(a)
		}
		return out, nil
	default:
		vals, valid := column.Float64s(arr)
		if vals == nil {
			return Vector{}, fmt.Errorf("unsupported array type %s", arr.DataType())
		}
		return Vector{Kind: KindFloat, Floats: vals, Valid: valid}, nil
	}
}

func validity(arr arrow.Array) []bool {
	valid := make([]bool, arr.Len())
	for i := range valid {
		valid[i] = arr.IsValid(i)
	}
	return valid
}

// ToArrow builds a new Arrow array of n rows owned by the caller.
func (v Vector) ToArrow(mem memory.Allocator, n int) arrow.Array {
	if mem == nil {
		mem = memory.NewGoAllocator()
	}
	v = v.Broadcast(n)

	switch v.Kind {
	case KindBool:
		b := array.NewBooleanBuilder(mem)
		defer b.Release()
		b.AppendValues(v.Bools, v.Valid)
		return b.NewArray()
	case KindString:
		b := array.NewStringBuilder(mem)
		defer b.Release()
		b.AppendValues(v.Strings, v.Valid)
		return b.NewArray()
	default:
		b := array.NewFloat64Builder(mem)
		defer b.Release()
		b.AppendValues(v.Floats, v.Valid)
		return b.NewArray()
	}
}
