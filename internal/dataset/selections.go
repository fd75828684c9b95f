package dataset

import (
	"context"
	"fmt"

	errors "github.com/paveg/colstat/internal/errors"
	"github.com/paveg/colstat/internal/selection"
	"github.com/paveg/colstat/internal/validation"
)

// Select combines the rows where expression holds with the current
// selection of name.
func (ds *Dataset) Select(name, expression string, mode selection.Mode) error {
	if err := ds.checkMutable("Select"); err != nil {
		return err
	}
	return ds.selections.SelectExpression(name, expression, mode)
}

// SelectLasso selects the points of (x, y) inside a polygon.
func (ds *Dataset) SelectLasso(name, x, y string, xs, ys []float64, mode selection.Mode) error {
	if err := ds.checkMutable("SelectLasso"); err != nil {
		return err
	}
	return ds.selections.SelectLasso(name, x, y, xs, ys, mode)
}

// SelectCircle selects the points of (x, y) within r of (xc, yc).
func (ds *Dataset) SelectCircle(name, x, y string, xc, yc, r float64, mode selection.Mode) error {
	if err := ds.checkMutable("SelectCircle"); err != nil {
		return err
	}
	return ds.selections.SelectCircle(name, x, y, xc, yc, r, mode)
}

// SelectEllipse selects the points of (x, y) inside an ellipse rotated by
// angle degrees.
func (ds *Dataset) SelectEllipse(name, x, y string, xc, yc, width, height, angle float64, mode selection.Mode) error {
	if err := ds.checkMutable("SelectEllipse"); err != nil {
		return err
	}
	return ds.selections.SelectEllipse(name, x, y, xc, yc, width, height, angle, mode)
}

// SelectNonMissing drops rows where any of columns is NaN or masked. An
// empty column list means every storage column.
func (ds *Dataset) SelectNonMissing(name string, columns []string, dropNaN, dropMasked bool, mode selection.Mode) error {
	if err := ds.checkMutable("SelectNonMissing"); err != nil {
		return err
	}
	if err := validation.ValidateColumns(ds, "SelectNonMissing", columns...); err != nil {
		return err
	}
	return ds.selections.SelectNonMissing(name, columns, dropNaN, dropMasked, mode)
}

// SelectNothing clears the selection of name as an undoable step.
func (ds *Dataset) SelectNothing(name string) error {
	if err := ds.checkMutable("SelectNothing"); err != nil {
		return err
	}
	ds.selections.SelectNothing(name)
	return nil
}

// SelectInverse negates the selection of name.
func (ds *Dataset) SelectInverse(name string) error {
	if err := ds.checkMutable("SelectInverse"); err != nil {
		return err
	}
	ds.selections.SelectInverse(name)
	return nil
}

// SelectionUndo steps the history of name back.
func (ds *Dataset) SelectionUndo(name string) (bool, error) {
	if err := ds.checkMutable("SelectionUndo"); err != nil {
		return false, err
	}
	return ds.selections.Undo(name), nil
}

// SelectionRedo steps the history of name forward.
func (ds *Dataset) SelectionRedo(name string) (bool, error) {
	if err := ds.checkMutable("SelectionRedo"); err != nil {
		return false, err
	}
	return ds.selections.Redo(name), nil
}

// HasSelection reports whether name currently selects rows.
func (ds *Dataset) HasSelection(name string) bool { return ds.selections.HasSelection(name) }

// CanUndo reports whether the history of name can step back.
func (ds *Dataset) CanUndo(name string) bool { return ds.selections.CanUndo(name) }

// CanRedo reports whether the history of name can step forward.
func (ds *Dataset) CanRedo(name string) bool { return ds.selections.CanRedo(name) }

// SetFilter restricts the visible rows to those where expression holds.
// An empty expression removes the filter.
func (ds *Dataset) SetFilter(expression string) error {
	if expression == "" {
		return ds.SelectNothing(FilterName)
	}
	return ds.Select(FilterName, expression, selection.ModeReplace)
}

// AddSelectionObserver registers fn to run after any selection history
// changes.
func (ds *Dataset) AddSelectionObserver(fn func(name string)) {
	ds.selections.AddObserver(fn)
}

// ResolveSelection turns a selection argument into a key understood by
// SelectionMask:
//
//	nil, false     no restriction beyond the filter
//	true           the default selection
//	string         a selection name when one is known, otherwise an
//	               inline boolean expression
func (ds *Dataset) ResolveSelection(spec any) (string, error) {
	switch s := spec.(type) {
	case nil:
		return "", nil
	case bool:
		if s {
			return selection.Default, nil
		}
		return "", nil
	case string:
		switch {
		case s == "":
			return "", nil
		case s == selection.Default || ds.selections.Known(s):
			return s, nil
		}
		if err := ds.Validate(s); err != nil {
			ds.logger.LogSelection(context.Background(), s, "resolve", err)
			return "", err
		}
		return inlinePrefix + s, nil
	default:
		return "", errors.NewInvalidSelectionError("ResolveSelection", fmt.Sprint(spec),
			fmt.Sprintf("unsupported selection type %T", spec))
	}
}
