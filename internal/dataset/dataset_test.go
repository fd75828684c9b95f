package dataset

import (
	"context"
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paveg/colstat/internal/aggregate"
	"github.com/paveg/colstat/internal/column"
	"github.com/paveg/colstat/internal/config"
	errors "github.com/paveg/colstat/internal/errors"
	"github.com/paveg/colstat/internal/expr"
	"github.com/paveg/colstat/internal/selection"
	"github.com/paveg/colstat/internal/testutil"
)

// newTestDataset builds 20 rows: x = 0..19, y = x*x, m = x with every
// fourth row missing, a string column, variable t = 1 and z = x + t*y.
func newTestDataset(t *testing.T) *Dataset {
	t.Helper()
	cols := testutil.SquaresColumns(t, nil,
		testutil.WithRowCount(20),
		testutil.WithMissing(func(i int) bool { return i%4 == 0 }),
		testutil.WithLabels(),
	)
	ds, err := FromColumns(Options{Name: "test", Config: config.Config{ChunkSize: 7}}, cols...)
	require.NoError(t, err)
	require.NoError(t, ds.SetVariable("t", 1))
	require.NoError(t, ds.AddVirtualColumn("z", "x + t*y"))
	t.Cleanup(ds.Release)
	return ds
}

func sum(t *testing.T, ds *Dataset, expression, selectionKey string) float64 {
	t.Helper()
	fut := ds.Executor().Submit(aggregate.NewSum(expression, aggregate.Scalar(), selectionKey))
	require.NoError(t, ds.Executor().Execute(context.Background()))
	v, err := fut.Get()
	require.NoError(t, err)
	return v.(*aggregate.Grid).Scalar()
}

func TestColumns(t *testing.T) {
	ds := newTestDataset(t)

	assert.Equal(t, 20, ds.LengthOriginal())
	assert.Equal(t, []string{"x", "y", "m"}, ds.ColumnNames(false, false))
	assert.Equal(t, []string{"x", "y", "m", "name", "z"}, ds.ColumnNames(true, true))

	err := ds.AddColumn(column.New("short", []float64{1, 2}, nil))
	assert.ErrorIs(t, err, errors.ErrShapeMismatch)

	require.NoError(t, ds.RenameColumn("y", "yy"))
	_, ok := ds.Column("yy")
	assert.True(t, ok)
	assert.ErrorIs(t, ds.RenameColumn("x", "yy"), errors.ErrInvalidInput)
	assert.ErrorIs(t, ds.RemoveColumn("nope"), errors.ErrName)
	require.NoError(t, ds.RemoveColumn("name"))
	assert.Equal(t, []string{"x", "yy", "m"}, ds.ColumnNames(false, true))
}

func TestVirtualColumns(t *testing.T) {
	ds := newTestDataset(t)

	got, err := ds.RowValues(3, "z")
	require.NoError(t, err)
	assert.Equal(t, []float64{12}, got)

	require.NoError(t, ds.SetVariable("t", 2))
	got, err = ds.RowValues(3, "z")
	require.NoError(t, err)
	assert.Equal(t, []float64{21}, got)

	t.Run("unknown identifier", func(t *testing.T) {
		err := ds.AddVirtualColumn("w", "x + nope")
		assert.ErrorIs(t, err, errors.ErrName)
	})

	t.Run("unknown function", func(t *testing.T) {
		err := ds.AddVirtualColumn("w", "frobnicate(x)")
		assert.ErrorIs(t, err, errors.ErrName)
	})

	t.Run("cycle is rejected and rolled back", func(t *testing.T) {
		require.NoError(t, ds.AddVirtualColumn("a", "x + 1"))
		require.NoError(t, ds.AddVirtualColumn("b", "a + 1"))
		err := ds.AddVirtualColumn("a", "b + 1")
		assert.ErrorIs(t, err, errors.ErrSyntax)
		assert.Contains(t, ds.VirtualColumns(), [2]string{"a", "x + 1"})

		err = ds.AddVirtualColumn("self", "self + 1")
		assert.ErrorIs(t, err, errors.ErrSyntax)
	})

	require.NoError(t, ds.RemoveVirtualColumn("z"))
	assert.ErrorIs(t, ds.RemoveVirtualColumn("z"), errors.ErrName)
}

func TestFunctions(t *testing.T) {
	ds := newTestDataset(t)
	require.NoError(t, ds.AddFunction("double", expr.FloatFunc{N: 1, Fn: func(a ...float64) float64 { return 2 * a[0] }}))
	require.NoError(t, ds.AddVirtualColumn("dx", "double(x)"))

	got, err := ds.RowValues(4, "dx", "double(y)")
	require.NoError(t, err)
	assert.Equal(t, []float64{8, 32}, got)
}

func TestFilter(t *testing.T) {
	ds := newTestDataset(t)
	require.NoError(t, ds.SetFilter("x % 2 == 0"))

	n, err := ds.Length()
	require.NoError(t, err)
	assert.Equal(t, 10, n)

	f, err := ds.Filtered()
	require.NoError(t, err)
	assert.False(t, f.IsIdentity())
	row, err := f.StorageRow(3)
	require.NoError(t, err)
	assert.Equal(t, 6, row)
	i, ok := f.FilteredRow(6)
	assert.True(t, ok)
	assert.Equal(t, 3, i)
	_, ok = f.FilteredRow(7)
	assert.False(t, ok)

	assert.Equal(t, 90.0, sum(t, ds, "x", ""))

	require.NoError(t, ds.SetFilter(""))
	n, err = ds.Length()
	require.NoError(t, err)
	assert.Equal(t, 20, n)
	assert.Equal(t, 190.0, sum(t, ds, "x", ""))
}

func TestFilteredIndexRanges(t *testing.T) {
	ds := newTestDataset(t)
	require.NoError(t, ds.SetFilter("x % 3 != 0"))
	require.NoError(t, ds.SetActiveFraction(0.75))

	f, err := ds.Filtered()
	require.NoError(t, err)
	// rows 1, 2, 4, 5, 7, 8, 10, 11, 13, 14 of the first 15
	require.Equal(t, 10, f.Len())

	for a := 0; a < f.Len(); a++ {
		for b := a + 1; b <= f.Len(); b++ {
			prev := -1
			for i := a; i < b; i++ {
				row, err := f.StorageRow(i)
				require.NoError(t, err)
				require.Greater(t, row, prev)
				require.Less(t, row, 15)
				idx, ok := f.FilteredRow(row)
				require.True(t, ok)
				require.Equal(t, i, idx)
				prev = row
			}

			start, end, err := f.StorageRange(a, b)
			require.NoError(t, err)
			passing := 0
			for _, keep := range f.Mask(start, end) {
				if keep {
					passing++
				}
			}
			require.Equal(t, b-a, passing, "[%d, %d)", a, b)
		}
	}

	_, _, err = f.StorageRange(3, 3)
	assert.ErrorIs(t, err, errors.ErrInvalidInput)
	_, err = f.StorageRow(10)
	assert.ErrorIs(t, err, errors.ErrInvalidInput)
}

func TestSelectionUndoRedoRestores(t *testing.T) {
	steps := []struct {
		expression string
		mode       selection.Mode
	}{
		{"x > 2", selection.ModeReplace},
		{"x < 15", selection.ModeAnd},
		{"x % 2 == 0", selection.ModeAnd},
		{"x == 1", selection.ModeOr},
	}

	for undos := 1; undos <= len(steps); undos++ {
		ds := newTestDataset(t)
		sums := []float64{sum(t, ds, "x", selection.Default)}
		for _, st := range steps {
			require.NoError(t, ds.Select(selection.Default, st.expression, st.mode))
			sums = append(sums, sum(t, ds, "x", selection.Default))
		}

		for i := 1; i <= undos; i++ {
			ok, err := ds.SelectionUndo(selection.Default)
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, sums[len(steps)-i], sum(t, ds, "x", selection.Default), "undo %d of %d", i, undos)
		}
		for i := undos - 1; i >= 0; i-- {
			ok, err := ds.SelectionRedo(selection.Default)
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, sums[len(steps)-i], sum(t, ds, "x", selection.Default), "redo back to %d", len(steps)-i)
		}
		assert.False(t, ds.CanRedo(selection.Default))
	}
}

func TestSelectionsThroughExecutor(t *testing.T) {
	ds := newTestDataset(t)
	require.NoError(t, ds.SetFilter("x < 10"))
	require.NoError(t, ds.Select(selection.Default, "x > 5", selection.ModeReplace))

	assert.Equal(t, 45.0, sum(t, ds, "x", ""))
	assert.Equal(t, 30.0, sum(t, ds, "x", selection.Default))

	key, err := ds.ResolveSelection("x > 7")
	require.NoError(t, err)
	assert.Equal(t, 17.0, sum(t, ds, "x", key))

	key, err = ds.ResolveSelection(true)
	require.NoError(t, err)
	assert.Equal(t, selection.Default, key)

	_, err = ds.ResolveSelection("x >")
	assert.ErrorIs(t, err, errors.ErrSyntax)
	_, err = ds.ResolveSelection(3)
	assert.ErrorIs(t, err, errors.ErrInvalidSelection)

	// a variable change reaches cached selection masks
	require.NoError(t, ds.Select("band", "x > t", selection.ModeReplace))
	assert.Equal(t, 44.0, sum(t, ds, "x", "band"))
	require.NoError(t, ds.SetVariable("t", 8))
	assert.Equal(t, 9.0, sum(t, ds, "x", "band"))
}

func TestSelectionHistory(t *testing.T) {
	ds := newTestDataset(t)

	assert.False(t, ds.CanUndo(selection.Default))
	require.NoError(t, ds.SelectNothing(selection.Default))
	assert.False(t, ds.CanUndo(selection.Default))

	require.NoError(t, ds.Select(selection.Default, "x > 5", selection.ModeReplace))
	require.NoError(t, ds.Select(selection.Default, "x < 8", selection.ModeAnd))
	assert.Equal(t, 13.0, sum(t, ds, "x", selection.Default))

	ok, err := ds.SelectionUndo(selection.Default)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, ds.CanRedo(selection.Default))
	assert.Equal(t, 175.0, sum(t, ds, "x", selection.Default))

	require.NoError(t, ds.SelectInverse(selection.Default))
	assert.False(t, ds.CanRedo(selection.Default))
	assert.Equal(t, 15.0, sum(t, ds, "x", selection.Default))

	err = ds.Select(selection.Default, "x + ", selection.ModeReplace)
	assert.ErrorIs(t, err, errors.ErrSyntax)
}

func TestShapeSelections(t *testing.T) {
	ds := newTestDataset(t)

	require.NoError(t, ds.SelectCircle("c", "x", "y", 0, 0, 2.5, selection.ModeReplace))
	assert.Equal(t, 1.0, sum(t, ds, "x", "c"))

	require.NoError(t, ds.SelectLasso("l", "x", "y", []float64{0.5, 4, 0.5}, []float64{0, 0, 20}, selection.ModeReplace))
	assert.Equal(t, 3.0, sum(t, ds, "x", "l"))

	require.NoError(t, ds.SelectNonMissing("nm", []string{"m"}, true, true, selection.ModeReplace))
	assert.Equal(t, 190.0-(0+4+8+12+16), sum(t, ds, "x", "nm"))
	assert.ErrorIs(t, ds.SelectNonMissing("nm", []string{"q"}, true, true, selection.ModeReplace), errors.ErrName)
}

func TestEvaluate(t *testing.T) {
	ds := newTestDataset(t)
	require.NoError(t, ds.SetFilter("x < 10"))

	key, err := ds.ResolveSelection("x > 6")
	require.NoError(t, err)
	v, err := ds.Evaluate("x", 0, 10, key)
	require.NoError(t, err)
	assert.Equal(t, []float64{7, 8, 9}, v.AsFloats(v.Len()))

	v, mask, err := ds.EvaluateRange("y", 2, 4, "")
	require.NoError(t, err)
	assert.Equal(t, []float64{4, 9}, v.AsFloats(2))
	assert.Equal(t, []bool{true, true}, mask)

	arr, err := ds.EvaluateArray("x * 2", 0, 3, "")
	require.NoError(t, err)
	defer arr.Release()
	assert.Equal(t, 3, arr.Len())

	_, err = ds.Evaluate("x", 0, 11, "")
	assert.ErrorIs(t, err, errors.ErrInvalidInput)

	v, err = ds.Evaluate("m", 0, 5, "")
	require.NoError(t, err)
	assert.False(t, v.IsValid(0))
	assert.True(t, v.IsValid(1))
}

func TestActiveFraction(t *testing.T) {
	ds := newTestDataset(t)
	require.NoError(t, ds.SetFilter("x < 10"))

	selectCount, pickCount := 0, 0
	ds.AddSelectionObserver(func(name string) {
		if name == selection.Default {
			selectCount++
		}
	})
	ds.AddPickObserver(func(int) { pickCount++ })

	n, err := ds.Length()
	require.NoError(t, err)
	assert.Equal(t, 10, n)

	require.NoError(t, ds.SetActiveFraction(1))
	assert.Equal(t, 0, selectCount)
	assert.Equal(t, 0, pickCount)

	require.NoError(t, ds.SetActiveFraction(0.25))
	assert.Equal(t, 1, selectCount)
	assert.Equal(t, 1, pickCount)
	n, err = ds.Length()
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, 5, ds.ActiveLength())
	assert.Equal(t, 10.0, sum(t, ds, "x", ""))

	require.NoError(t, ds.Select(selection.Default, "x > 1", selection.ModeReplace))
	assert.Equal(t, 2, selectCount)
	require.NoError(t, ds.SetActiveFraction(0.5))
	assert.Equal(t, 3, selectCount)
	assert.Equal(t, 2, pickCount)
	assert.False(t, ds.HasSelection(selection.Default))
	assert.True(t, ds.CanUndo(selection.Default))

	for _, bad := range []float64{0, -0.5, 1.5, math.NaN()} {
		assert.ErrorIs(t, ds.SetActiveFraction(bad), errors.ErrInvalidInput)
	}
}

func TestCurrentRow(t *testing.T) {
	ds := newTestDataset(t)
	require.NoError(t, ds.SetFilter("x < 10"))

	var picked []int
	ds.AddPickObserver(func(row int) { picked = append(picked, row) })

	assert.False(t, ds.HasCurrentRow())
	require.NoError(t, ds.SetCurrentRow(0))
	require.NoError(t, ds.SetCurrentRow(9))
	assert.Equal(t, 9, ds.CurrentRow())
	assert.ErrorIs(t, ds.SetCurrentRow(-1), errors.ErrInvalidInput)
	assert.ErrorIs(t, ds.SetCurrentRow(10), errors.ErrInvalidInput)

	ds.ClearCurrentRow()
	assert.False(t, ds.HasCurrentRow())
	assert.Equal(t, []int{0, 9, -1}, picked)
}

func TestConcurrentMutation(t *testing.T) {
	ds := newTestDataset(t)

	done, err := ds.BeginPass()
	require.NoError(t, err)
	assert.ErrorIs(t, ds.SetVariable("t", 3), errors.ErrConcurrentMutation)
	assert.ErrorIs(t, ds.AddVirtualColumn("w", "x"), errors.ErrConcurrentMutation)
	assert.ErrorIs(t, ds.Select(selection.Default, "x > 1", selection.ModeReplace), errors.ErrConcurrentMutation)
	done()
	done()

	require.NoError(t, ds.SetVariable("t", 3))
}

func TestCopy(t *testing.T) {
	ds := newTestDataset(t)
	require.NoError(t, ds.Select(selection.Default, "x > 15", selection.ModeReplace))

	cp, err := ds.Copy()
	require.NoError(t, err)
	require.NoError(t, cp.SetVariable("t", 5))
	require.NoError(t, cp.AddVirtualColumn("w", "z - y"))

	assert.Equal(t, 16.0+17+18+19, sum(t, cp, "x", selection.Default))
	v, ok := ds.Variable("t")
	assert.True(t, ok)
	assert.Equal(t, 1.0, v)
	assert.Len(t, ds.VirtualColumns(), 1)
	assert.Equal(t, "test", cp.Name())
}

func TestStateRoundTrip(t *testing.T) {
	ds := newTestDataset(t)
	require.NoError(t, ds.SetFilter("x < 10"))
	require.NoError(t, ds.Select(selection.Default, "x > 5", selection.ModeReplace))
	require.NoError(t, ds.Selections().FavoriteAdd("big", selection.Default))
	require.NoError(t, ds.SetActiveFraction(0.5))
	require.NoError(t, ds.Select(selection.Default, "x > 6", selection.ModeReplace))

	for _, name := range []string{"state.yaml", "state.json.zst"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)
			require.NoError(t, ds.SaveState(path))

			other := newTestDataset(t)
			require.NoError(t, other.RemoveVirtualColumn("z"))
			require.NoError(t, other.LoadState(path))

			assert.Equal(t, ds.VirtualColumns(), other.VirtualColumns())
			assert.Equal(t, ds.Variables(), other.Variables())
			assert.Equal(t, 0.5, other.ActiveFraction())
			assert.Equal(t, []string{"big"}, other.Selections().Favorites())
			n, err := other.Length()
			require.NoError(t, err)
			assert.Equal(t, 10, n)
			assert.Equal(t, 7.0+8+9, sum(t, other, "x", selection.Default))
		})
	}

	assert.Error(t, ds.LoadState(filepath.Join(t.TempDir(), "state.txt")))
}
