package dataset

import (
	"github.com/paveg/colstat/internal/selection"
	"github.com/paveg/colstat/internal/validation"
)

// FilteredIndex maps filtered row indices to storage rows. It is monotonic
// and answered by rank/select on the filter's row set; without a filter it
// is the identity on the active range.
type FilteredIndex struct {
	rows   *selection.RowSet
	active int
}

func newFilteredIndex(rows *selection.RowSet, active int) *FilteredIndex {
	return &FilteredIndex{rows: rows, active: active}
}

// Len returns the number of filtered rows.
func (f *FilteredIndex) Len() int {
	if f.rows == nil {
		return f.active
	}
	return f.rows.Cardinality()
}

// IsIdentity reports whether every active row passes.
func (f *FilteredIndex) IsIdentity() bool {
	return f.rows == nil
}

// StorageRow returns the storage row of filtered row i.
func (f *FilteredIndex) StorageRow(i int) (int, error) {
	if err := validation.ValidateIndex(i, f.Len(), "StorageRow"); err != nil {
		return 0, err
	}
	if f.rows == nil {
		return i, nil
	}
	return f.rows.Select(i)
}

// StorageRange returns the smallest storage range holding filtered rows
// [start, end).
func (f *FilteredIndex) StorageRange(start, end int) (int, int, error) {
	if err := validation.ValidateRange(start, end, f.Len(), false, "StorageRange"); err != nil {
		return 0, 0, err
	}
	first, err := f.StorageRow(start)
	if err != nil {
		return 0, 0, err
	}
	last, err := f.StorageRow(end - 1)
	if err != nil {
		return 0, 0, err
	}
	return first, last + 1, nil
}

// FilteredRow returns the filtered index of a storage row and whether the
// row passes the filter.
func (f *FilteredIndex) FilteredRow(storage int) (int, bool) {
	if f.rows == nil {
		return storage, storage >= 0 && storage < f.active
	}
	return f.rows.Rank(storage), f.rows.Contains(storage)
}

// Mask returns which storage rows of [start, end) pass, or nil when all do.
func (f *FilteredIndex) Mask(start, end int) []bool {
	if f.rows == nil {
		return nil
	}
	return f.rows.Mask(start, end)
}
