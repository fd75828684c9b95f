package selection

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errors "github.com/paveg/colstat/internal/errors"
)

func TestModeAlgebra(t *testing.T) {
	ctx := newFakeContext(10)
	prev := NewExpression("x < 5", nil, ModeReplace)

	tests := []struct {
		mode Mode
		want []int
	}{
		{ModeReplace, []int{4, 5, 6, 7, 8, 9}},
		{ModeAnd, []int{4}},
		{ModeOr, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}},
		{ModeXor, []int{0, 1, 2, 3, 5, 6, 7, 8, 9}},
		{ModeSubtract, []int{0, 1, 2, 3}},
	}
	for _, tt := range tests {
		t.Run(string(tt.mode), func(t *testing.T) {
			sel := NewExpression("x > 3", prev, tt.mode)
			mask, err := sel.Evaluate(ctx, 0, 10)
			require.NoError(t, err)
			assert.Equal(t, tt.want, rowsOf(mask))
		})
	}
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, ModeReplace, m)

	m, err = ParseMode("subtract")
	require.NoError(t, err)
	assert.Equal(t, ModeSubtract, m)

	_, err = ParseMode("nand")
	assert.ErrorIs(t, err, errors.ErrInvalidSelection)
}

func TestInverse(t *testing.T) {
	ctx := newFakeContext(6)
	inv := NewInverse(NewExpression("x < 5", nil, ModeReplace))
	mask, err := inv.Evaluate(ctx, 0, 6)
	require.NoError(t, err)
	assert.Equal(t, []int{5}, rowsOf(mask))

	all, err := NewInverse(nil).Evaluate(ctx, 2, 6)
	require.NoError(t, err)
	assert.Equal(t, []bool{true, true, true, true}, all)
}

func TestShapes(t *testing.T) {
	ctx := newFakeContext(10)

	t.Run("lasso", func(t *testing.T) {
		// triangle covering (x, x*x) for x in 1..2
		sel, err := NewLasso("x", "y", []float64{0.5, 4, 0.5}, []float64{0, 0, 20}, nil, ModeReplace)
		require.NoError(t, err)
		mask, err := sel.Evaluate(ctx, 0, 10)
		require.NoError(t, err)
		assert.Equal(t, []int{1, 2}, rowsOf(mask))
	})

	t.Run("lasso needs three vertices", func(t *testing.T) {
		_, err := NewLasso("x", "y", []float64{0, 1}, []float64{0, 1}, nil, ModeReplace)
		assert.ErrorIs(t, err, errors.ErrInvalidSelection)
	})

	t.Run("circle boundary inclusive", func(t *testing.T) {
		sel := NewCircle("x", "y", 0, 0, 2, nil, ModeReplace)
		mask, err := sel.Evaluate(ctx, 0, 10)
		require.NoError(t, err)
		// (0,0), (1,1); (2,4) is outside
		assert.Equal(t, []int{0, 1}, rowsOf(mask))
	})

	t.Run("ellipse rotated", func(t *testing.T) {
		// wide along y after a 90 degree rotation
		sel := NewEllipse("x", "y", 0, 0, 20, 6, 90, nil, ModeReplace)
		mask, err := sel.Evaluate(ctx, 0, 10)
		require.NoError(t, err)
		assert.Equal(t, []int{0, 1, 2}, rowsOf(mask))
	})

	t.Run("non missing", func(t *testing.T) {
		sel := NewNonMissing(nil, true, true, nil, ModeReplace)
		mask, err := sel.Evaluate(ctx, 0, 7)
		require.NoError(t, err)
		assert.Equal(t, []int{0, 1, 2, 4, 6}, rowsOf(mask))

		sel = NewNonMissing([]string{"x"}, true, false, nil, ModeReplace)
		mask, err = sel.Evaluate(ctx, 0, 7)
		require.NoError(t, err)
		assert.Equal(t, []int{0, 1, 2, 4, 5, 6}, rowsOf(mask))
	})
}

func TestMapRoundTrip(t *testing.T) {
	ctx := newFakeContext(10)
	lasso, err := NewLasso("x", "y", []float64{0.5, 3, 0.5}, []float64{0, 0, 10},
		NewExpression("x < 5", nil, ModeReplace), ModeOr)
	require.NoError(t, err)

	sels := []Selection{
		NewExpression("x > 3", NewExpression("x < 5", nil, ModeReplace), ModeAnd),
		lasso,
		NewCircle("x", "y", 1, 1, 3, nil, ModeReplace),
		NewEllipse("x", "y", 0, 0, 20, 2, 90, nil, ModeXor),
		NewInverse(NewExpression("x >= 8", nil, ModeReplace)),
		NewNonMissing([]string{"x", "y"}, true, false, nil, ModeReplace),
	}
	for _, sel := range sels {
		doc := sel.ToMap()
		t.Run(doc["type"].(string), func(t *testing.T) {
			back, err := FromMap(doc)
			require.NoError(t, err)
			assert.Equal(t, doc, back.ToMap())

			want, err := sel.Evaluate(ctx, 0, 10)
			require.NoError(t, err)
			got, err := back.Evaluate(ctx, 0, 10)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

func TestFromMapDecodedNumbers(t *testing.T) {
	// YAML and JSON decoders produce ints, float64s and []any.
	doc := map[string]any{
		"type": "lasso", "mode": "replace", "x": "x", "y": "y",
		"xs": []any{0.5, 3, 0.5}, "ys": []any{0, 0, 10},
	}
	sel, err := FromMap(doc)
	require.NoError(t, err)
	lasso := sel.(*Lasso)
	assert.Equal(t, []float64{0.5, 3, 0.5}, lasso.Xs)
	assert.Equal(t, []float64{0, 0, 10}, lasso.Ys)

	_, err = FromMap(map[string]any{"type": "blob"})
	assert.ErrorIs(t, err, errors.ErrInvalidSelection)

	_, err = FromMap(map[string]any{"type": "circle", "x": "x", "y": "y", "xc": "a"})
	assert.ErrorIs(t, err, errors.ErrInvalidSelection)

	sel, err = FromMap(nil)
	require.NoError(t, err)
	assert.Nil(t, sel)
}

func TestRowSet(t *testing.T) {
	rs := RowSetFromMask([]bool{true, false, true, true, false}, 10)
	assert.Equal(t, 3, rs.Cardinality())
	assert.True(t, rs.Contains(12))
	assert.False(t, rs.Contains(11))
	assert.Equal(t, 2, rs.CountRange(11, 14))
	assert.Equal(t, 1, rs.Rank(12))
	assert.Equal(t, 0, rs.Rank(0))

	row, err := rs.Select(2)
	require.NoError(t, err)
	assert.Equal(t, 13, row)

	assert.Equal(t, []bool{false, true, true, false}, rs.Mask(11, 15))

	var rows []int
	for r := range rs.Rows(11, 20) {
		rows = append(rows, r)
	}
	assert.Equal(t, []int{12, 13}, rows)

	clone := rs.Clone()
	clone.Add(100)
	assert.False(t, rs.Contains(100))
}
