package column

import (
	"math"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errors "github.com/paveg/colstat/internal/errors"
)

func TestNewColumn(t *testing.T) {
	mem := memory.NewGoAllocator()

	tests := []struct {
		name     string
		col      *Column
		expected arrow.Type
		length   int
	}{
		{"float64 column", New("x", []float64{1.5, 2, 3}, mem), arrow.FLOAT64, 3},
		{"float32 column", New("x", []float32{1.5, 2}, mem), arrow.FLOAT64, 2},
		{"int column", New("i", []int{1, 2, 3, 4}, mem), arrow.INT64, 4},
		{"int32 column", New("i", []int32{1, 2}, mem), arrow.INT64, 2},
		{"bool column", New("b", []bool{true, false}, mem), arrow.BOOL, 2},
		{"string column", New("s", []string{"a", "b", "c"}, mem), arrow.STRING, 3},
		{"empty column", New("e", []float64{}, mem), arrow.FLOAT64, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer tt.col.Release()
			assert.Equal(t, tt.expected, tt.col.DataType().ID())
			assert.Equal(t, tt.length, tt.col.Len())
			assert.False(t, tt.col.IsMasked())
		})
	}
}

func TestNewMasked(t *testing.T) {
	mem := memory.NewGoAllocator()

	col, err := NewMasked("m", []int64{1, 2, 3}, []bool{true, false, true}, mem)
	require.NoError(t, err)
	defer col.Release()

	assert.True(t, col.IsMasked())
	v, ok := col.Float64(1)
	assert.False(t, ok)
	assert.True(t, math.IsNaN(v))
	v, ok = col.Float64(2)
	assert.True(t, ok)
	assert.InDelta(t, 3.0, v, 0)

	_, err = NewMasked("m", []int64{1, 2}, []bool{true}, mem)
	assert.ErrorIs(t, err, errors.ErrShapeMismatch)
}

func TestFloat64s(t *testing.T) {
	mem := memory.NewGoAllocator()

	col := New("x", []int64{0, 1, 2, 3, 4}, mem)
	defer col.Release()

	slice := col.Slice(1, 4)
	defer slice.Release()

	vals, valid := Float64s(slice)
	assert.Equal(t, []float64{1, 2, 3}, vals)
	assert.Nil(t, valid)

	b := array.NewFloat64Builder(mem)
	defer b.Release()
	b.AppendValues([]float64{1, 0, 3}, []bool{true, false, true})
	arr := b.NewArray()
	defer arr.Release()

	vals, valid = Float64s(arr)
	assert.Equal(t, []bool{true, false, true}, valid)
	assert.True(t, math.IsNaN(vals[1]))

	s := New("s", []string{"a", "b"}, mem)
	defer s.Release()
	vals, valid = Float64s(s.Array())
	assert.Nil(t, vals)
	assert.Equal(t, []bool{true, true}, valid)
}

func TestFromArrayAndRename(t *testing.T) {
	mem := memory.NewGoAllocator()

	b := array.NewBooleanBuilder(mem)
	defer b.Release()
	b.AppendValues([]bool{true, false}, nil)
	arr := b.NewArray()
	defer arr.Release()

	col, err := FromArray("flag", arr)
	require.NoError(t, err)
	defer col.Release()

	renamed := col.Rename("flag2")
	defer renamed.Release()
	assert.Equal(t, "flag2", renamed.Name())
	assert.Equal(t, "flag", col.Name())

	v, ok := renamed.Float64(0)
	assert.True(t, ok)
	assert.InDelta(t, 1.0, v, 0)

	lb := array.NewListBuilder(mem, arrow.PrimitiveTypes.Int64)
	defer lb.Release()
	lb.AppendNull()
	list := lb.NewArray()
	defer list.Release()
	_, err = FromArray("list", list)
	assert.ErrorIs(t, err, errors.ErrInvalidInput)
}
