package colstat

import (
	"context"

	"github.com/paveg/colstat/internal/selection"
)

// Mode combines a new selection with the current one.
type Mode = selection.Mode

// Selection modes.
const (
	Replace  = selection.ModeReplace
	And      = selection.ModeAnd
	Or       = selection.ModeOr
	Xor      = selection.ModeXor
	Subtract = selection.ModeSubtract
)

// DefaultSelection is the name Selection(true) refers to.
const DefaultSelection = selection.Default

// Select combines the rows where expression holds into the selection name.
func (d *Dataset) Select(ctx context.Context, name, expression string, mode Mode) error {
	return d.backend.Select(ctx, name, expression, mode)
}

// SelectLasso selects the points of (x, y) inside the polygon xs, ys.
func (d *Dataset) SelectLasso(name, x, y string, xs, ys []float64, mode Mode) error {
	return d.ds.SelectLasso(name, x, y, xs, ys, mode)
}

// SelectCircle selects the points of (x, y) within r of (xc, yc).
func (d *Dataset) SelectCircle(name, x, y string, xc, yc, r float64, mode Mode) error {
	return d.ds.SelectCircle(name, x, y, xc, yc, r, mode)
}

// SelectEllipse selects the points of (x, y) inside an ellipse of the
// given width and height rotated by angle degrees.
func (d *Dataset) SelectEllipse(name, x, y string, xc, yc, width, height, angle float64, mode Mode) error {
	return d.ds.SelectEllipse(name, x, y, xc, yc, width, height, angle, mode)
}

// SelectNonMissing selects rows where none of columns is missing. An
// empty list checks every storage column.
func (d *Dataset) SelectNonMissing(name string, columns []string, dropNaN, dropMasked bool, mode Mode) error {
	return d.ds.SelectNonMissing(name, columns, dropNaN, dropMasked, mode)
}

// SelectNothing clears the selection name as an undoable step.
func (d *Dataset) SelectNothing(name string) error { return d.ds.SelectNothing(name) }

// SelectInverse negates the selection name.
func (d *Dataset) SelectInverse(name string) error { return d.ds.SelectInverse(name) }

// Undo steps back in the history of name and reports whether it moved.
func (d *Dataset) Undo(name string) (bool, error) { return d.ds.SelectionUndo(name) }

// Redo steps forward in the history of name and reports whether it moved.
func (d *Dataset) Redo(name string) (bool, error) { return d.ds.SelectionRedo(name) }

// CanUndo reports whether Undo would move.
func (d *Dataset) CanUndo(name string) bool { return d.ds.CanUndo(name) }

// CanRedo reports whether Redo would move.
func (d *Dataset) CanRedo(name string) bool { return d.ds.CanRedo(name) }

// HasSelection reports whether name currently selects anything.
func (d *Dataset) HasSelection(name string) bool { return d.ds.HasSelection(name) }

// SetFilter hides rows where expression does not hold; "" shows all rows.
func (d *Dataset) SetFilter(expression string) error { return d.ds.SetFilter(expression) }

// AddSelectionObserver registers fn to run after a selection changes.
func (d *Dataset) AddSelectionObserver(fn func(name string)) { d.ds.AddSelectionObserver(fn) }

// FavoriteAdd saves the current selection of from as favorite.
func (d *Dataset) FavoriteAdd(favorite, from string) error {
	return d.ds.Selections().FavoriteAdd(favorite, from)
}

// FavoriteApply makes a favorite the current selection of into.
func (d *Dataset) FavoriteApply(favorite, into string) error {
	return d.ds.Selections().FavoriteApply(favorite, into)
}

// FavoriteRemove deletes a favorite.
func (d *Dataset) FavoriteRemove(favorite string) error {
	return d.ds.Selections().FavoriteRemove(favorite)
}

// Favorites lists favorite names, sorted.
func (d *Dataset) Favorites() []string { return d.ds.Selections().Favorites() }
