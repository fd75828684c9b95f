package dataset

import (
	"math"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"

	errors "github.com/paveg/colstat/internal/errors"
	"github.com/paveg/colstat/internal/expr"
)

// exprScope resolves formula identifiers against a dataset.
type exprScope struct {
	ds *Dataset
}

func (s exprScope) Column(name string, start, end int) (arrow.Array, bool) {
	c, ok := s.ds.Column(name)
	if !ok {
		return nil, false
	}
	return c.Slice(start, end), true
}

func (s exprScope) Variable(name string) (float64, bool) { return s.ds.Variable(name) }

func (s exprScope) Virtual(name string) (string, bool) {
	s.ds.mu.RLock()
	defer s.ds.mu.RUnlock()
	if i := s.ds.virtualIndexLocked(name); i >= 0 {
		return s.ds.virtual[i].formula, true
	}
	return "", false
}

func (s exprScope) Function(name string) (expr.Function, bool) { return s.ds.Function(name) }

func (s exprScope) Names() []string {
	s.ds.mu.RLock()
	defer s.ds.mu.RUnlock()
	return s.ds.namesLocked()
}

// Validate checks that expression parses and every name in it resolves.
func (ds *Dataset) Validate(expression string) error {
	return ds.evaluator.Validate(exprScope{ds}, expression)
}

// EvaluateChunk evaluates expression over storage rows [start, end).
func (ds *Dataset) EvaluateChunk(expression string, start, end int) (expr.Vector, error) {
	return ds.evaluator.Evaluate(exprScope{ds}, expression, start, end)
}

// selectionContext lets the selection engine evaluate against the dataset.
type selectionContext struct {
	ds *Dataset
}

func (c selectionContext) Validate(expression string) error {
	return c.ds.Validate(expression)
}

func (c selectionContext) EvaluateMask(expression string, start, end int) ([]bool, error) {
	v, err := c.ds.EvaluateChunk(expression, start, end)
	if err != nil {
		return nil, err
	}
	return v.Mask(end - start), nil
}

func (c selectionContext) EvaluateFloats(expression string, start, end int) ([]float64, error) {
	v, err := c.ds.EvaluateChunk(expression, start, end)
	if err != nil {
		return nil, err
	}
	if v.Kind == expr.KindString {
		return nil, errors.NewInvalidInputError("EvaluateFloats", "expression "+expression+" is not numeric")
	}
	return v.AsFloats(end - start), nil
}

func (c selectionContext) Missing(columns []string, start, end int, dropNaN, dropMasked bool) ([]bool, error) {
	if len(columns) == 0 {
		columns = c.ds.ColumnNames(false, true)
	}
	out := make([]bool, end-start)
	for _, name := range columns {
		v, err := c.ds.EvaluateChunk(name, start, end)
		if err != nil {
			return nil, err
		}
		for i := range out {
			valid := v.IsValid(i)
			switch {
			case dropMasked && !valid:
				out[i] = true
			case dropNaN && valid && v.Kind == expr.KindFloat && math.IsNaN(v.Float(i)):
				out[i] = true
			}
		}
	}
	return out, nil
}

// FilteredLength returns the number of rows visible to statistics.
func (ds *Dataset) FilteredLength() (int, error) {
	f, err := ds.Filtered()
	if err != nil {
		return 0, err
	}
	return f.Len(), nil
}

// StorageRange maps filtered rows [start, end) to storage rows.
func (ds *Dataset) StorageRange(start, end int) (int, int, error) {
	f, err := ds.Filtered()
	if err != nil {
		return 0, 0, err
	}
	return f.StorageRange(start, end)
}

// FilterMask returns which storage rows of [start, end) pass the filter,
// or nil when all of them do.
func (ds *Dataset) FilterMask(start, end int) ([]bool, error) {
	f, err := ds.Filtered()
	if err != nil {
		return nil, err
	}
	return f.Mask(start, end), nil
}

// inlinePrefix marks a selection key holding a boolean expression.
const inlinePrefix = "expr:"

// SelectionMask returns the mask of a selection key over storage rows
// [start, end); nil means no restriction.
func (ds *Dataset) SelectionMask(key string, start, end int) ([]bool, error) {
	switch {
	case key == "":
		return nil, nil
	case strings.HasPrefix(key, inlinePrefix):
		return selectionContext{ds}.EvaluateMask(strings.TrimPrefix(key, inlinePrefix), start, end)
	default:
		return ds.selections.Mask(key, start, end)
	}
}

// Filtered returns the filtered index, building it on first use after a
// change to the filter, the data or the active range.
func (ds *Dataset) Filtered() (*FilteredIndex, error) {
	ds.mu.RLock()
	f, gen, active := ds.filtered, ds.filteredGen, ds.activeLengthLocked()
	ds.mu.RUnlock()
	if f != nil {
		return f, nil
	}

	rows, err := ds.selections.RowSet(FilterName, active, ds.executor.BufferSize())
	if err != nil {
		return nil, err
	}
	f = newFilteredIndex(rows, active)

	ds.mu.Lock()
	if ds.filteredGen == gen {
		ds.filtered = f
	}
	ds.mu.Unlock()
	return f, nil
}

func (ds *Dataset) resetFiltered() {
	ds.mu.Lock()
	ds.filtered = nil
	ds.filteredGen++
	ds.mu.Unlock()
}
