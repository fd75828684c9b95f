package dataset

import (
	"github.com/apache/arrow-go/v18/arrow"

	"github.com/paveg/colstat/internal/execution"
	"github.com/paveg/colstat/internal/expr"
	"github.com/paveg/colstat/internal/validation"
)

// EvaluateRange evaluates expression over the storage rows spanning
// filtered rows [start, end) and returns the dense result with the mask of
// rows that pass the filter and the selection key. A nil mask keeps every
// row.
func (ds *Dataset) EvaluateRange(expression string, start, end int, selectionKey string) (expr.Vector, []bool, error) {
	f, err := ds.Filtered()
	if err != nil {
		return expr.Vector{}, nil, err
	}
	if err := validation.ValidateRange(start, end, f.Len(), true, "Evaluate"); err != nil {
		return expr.Vector{}, nil, err
	}
	if start == end {
		v, err := ds.EvaluateChunk(expression, 0, 0)
		return v, nil, err
	}
	s, e, err := f.StorageRange(start, end)
	if err != nil {
		return expr.Vector{}, nil, err
	}

	done, _ := ds.BeginPass()
	defer done()

	v, err := ds.EvaluateChunk(expression, s, e)
	if err != nil {
		return expr.Vector{}, nil, err
	}
	sel, err := ds.SelectionMask(selectionKey, s, e)
	if err != nil {
		return expr.Vector{}, nil, err
	}
	return v.Broadcast(e - s), execution.CombineMasks(f.Mask(s, e), sel), nil
}

// Evaluate returns expression over filtered rows [start, end), keeping
// only rows in the selection key.
func (ds *Dataset) Evaluate(expression string, start, end int, selectionKey string) (expr.Vector, error) {
	v, mask, err := ds.EvaluateRange(expression, start, end, selectionKey)
	if err != nil || mask == nil {
		return v, err
	}
	return v.Filter(mask), nil
}

// EvaluateArray is Evaluate returning a new Arrow array owned by the
// caller.
func (ds *Dataset) EvaluateArray(expression string, start, end int, selectionKey string) (arrow.Array, error) {
	v, err := ds.Evaluate(expression, start, end, selectionKey)
	if err != nil {
		return nil, err
	}
	return v.ToArrow(ds.mem, v.Len()), nil
}

// RowValues evaluates expressions at filtered row i.
func (ds *Dataset) RowValues(i int, expressions ...string) ([]float64, error) {
	out := make([]float64, len(expressions))
	for k, x := range expressions {
		v, err := ds.Evaluate(x, i, i+1, "")
		if err != nil {
			return nil, err
		}
		out[k] = v.AsFloats(1)[0]
	}
	return out, nil
}
