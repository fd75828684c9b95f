package selection

import (
	"iter"

	"github.com/RoaringBitmap/roaring/v2"
)

// RowSet is a compressed set of storage row indices.
// It wraps a 32-bit roaring bitmap, so datasets are limited to 2^32 rows.
type RowSet struct {
	rb *roaring.Bitmap
}

// NewRowSet creates an empty row set.
func NewRowSet() *RowSet {
	return &RowSet{rb: roaring.New()}
}

// RowSetFromMask adds the rows start+i where mask[i] is true.
func RowSetFromMask(mask []bool, start int) *RowSet {
	rs := NewRowSet()
	rs.AddMask(mask, start)
	return rs
}

// Add adds a row.
func (r *RowSet) Add(row int) {
	r.rb.Add(uint32(row)) //nolint:gosec // rows are bounded by the dataset length
}

// AddRange adds rows [start, end).
func (r *RowSet) AddRange(start, end int) {
	r.rb.AddRange(uint64(start), uint64(end)) //nolint:gosec // non-negative row bounds
}

// AddMask adds start+i for every true mask[i].
func (r *RowSet) AddMask(mask []bool, start int) {
	runStart := -1
	for i, ok := range mask {
		switch {
		case ok && runStart < 0:
			runStart = i
		case !ok && runStart >= 0:
			r.AddRange(start+runStart, start+i)
			runStart = -1
		}
	}
	if runStart >= 0 {
		r.AddRange(start+runStart, start+len(mask))
	}
}

// Contains reports whether row is in the set.
func (r *RowSet) Contains(row int) bool {
	return r.rb.Contains(uint32(row)) //nolint:gosec // rows are bounded by the dataset length
}

// Cardinality returns the number of rows in the set.
func (r *RowSet) Cardinality() int {
	return int(r.rb.GetCardinality()) //nolint:gosec // bounded by 2^32
}

// CountRange returns how many rows of [start, end) are in the set.
func (r *RowSet) CountRange(start, end int) int {
	if end <= start {
		return 0
	}
	return r.rank(end-1) - r.rank(start-1)
}

// Rank returns the number of set rows strictly below row.
func (r *RowSet) Rank(row int) int {
	return r.rank(row - 1)
}

func (r *RowSet) rank(row int) int {
	if row < 0 {
		return 0
	}
	return int(r.rb.Rank(uint32(row))) //nolint:gosec // bounded by 2^32
}

// Select returns the i-th smallest row (0-based).
func (r *RowSet) Select(i int) (int, error) {
	v, err := r.rb.Select(uint32(i)) //nolint:gosec // callers check i < Cardinality
	return int(v), err
}

// Mask expands rows [start, end) into a boolean slice.
func (r *RowSet) Mask(start, end int) []bool {
	out := make([]bool, end-start)
	it := r.rb.Iterator()
	it.AdvanceIfNeeded(uint32(start)) //nolint:gosec // non-negative row bound
	for it.HasNext() {
		v := int(it.PeekNext())
		if v >= end {
			break
		}
		out[v-start] = true
		it.Next()
	}
	return out
}

// Rows yields the set rows in [start, end) in ascending order.
func (r *RowSet) Rows(start, end int) iter.Seq[int] {
	return func(yield func(int) bool) {
		it := r.rb.Iterator()
		it.AdvanceIfNeeded(uint32(start)) //nolint:gosec // non-negative row bound
		for it.HasNext() {
			v := int(it.Next())
			if v >= end || !yield(v) {
				return
			}
		}
	}
}

// Clone returns a deep copy of the set.
func (r *RowSet) Clone() *RowSet {
	return &RowSet{rb: r.rb.Clone()}
}

// GetSizeInBytes returns the serialized size of the set.
func (r *RowSet) GetSizeInBytes() uint64 {
	return r.rb.GetSizeInBytes()
}
