package dataset

import (
	"context"
	"fmt"
	"slices"

	"github.com/paveg/colstat/internal/selection"
	"github.com/paveg/colstat/internal/validation"
)

// ActiveFraction returns the fraction of storage rows in the active range.
func (ds *Dataset) ActiveFraction() float64 {
	ds.mu.RLock()
	defer ds.mu.RUnlock()
	return ds.activeFraction
}

// SetActiveFraction restricts the dataset to its leading
// round(fraction*LengthOriginal()) rows. On an actual change every cached
// mask is dropped, the default selection is cleared as an undoable step,
// the current row is cleared and selection and pick observers fire.
func (ds *Dataset) SetActiveFraction(fraction float64) error {
	if err := validation.ValidateFraction(fraction, "SetActiveFraction"); err != nil {
		return err
	}
	if err := ds.checkMutable("SetActiveFraction"); err != nil {
		return err
	}
	ds.mu.Lock()
	if fraction == ds.activeFraction {
		ds.mu.Unlock()
		return nil
	}
	ds.activeFraction = fraction
	ds.mu.Unlock()

	ds.mutated("SetActiveFraction", fmt.Sprint(fraction))
	if ds.selections.HasSelection(selection.Default) {
		ds.selections.SelectNothing(selection.Default)
	} else {
		ds.selections.Touch(selection.Default)
	}
	ds.setCurrentRow(-1)
	return nil
}

// CurrentRow returns the picked row, or -1.
func (ds *Dataset) CurrentRow() int {
	ds.mu.RLock()
	defer ds.mu.RUnlock()
	return ds.currentRow
}

// HasCurrentRow reports whether a row is picked.
func (ds *Dataset) HasCurrentRow() bool {
	return ds.CurrentRow() >= 0
}

// SetCurrentRow picks filtered row i and notifies pick observers.
func (ds *Dataset) SetCurrentRow(i int) error {
	n, err := ds.Length()
	if err != nil {
		return err
	}
	if err := validation.ValidateIndex(i, n, "SetCurrentRow"); err != nil {
		return err
	}
	ds.setCurrentRow(i)
	return nil
}

// ClearCurrentRow removes the pick.
func (ds *Dataset) ClearCurrentRow() {
	ds.setCurrentRow(-1)
}

func (ds *Dataset) setCurrentRow(i int) {
	ds.mu.Lock()
	ds.currentRow = i
	observers := slices.Clone(ds.pickObservers)
	ds.mu.Unlock()

	ds.logger.DebugContext(context.Background(), "current row changed", "row", i)
	for _, fn := range observers {
		fn(i)
	}
}

// AddPickObserver registers fn to run when the current row changes.
func (ds *Dataset) AddPickObserver(fn func(row int)) {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	ds.pickObservers = append(ds.pickObservers, fn)
}
