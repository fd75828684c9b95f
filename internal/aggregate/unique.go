package aggregate

import (
	"math"
	"slices"

	"github.com/paveg/colstat/internal/execution"
	"github.com/paveg/colstat/internal/expr"
)

// UniqueTask collects the distinct non-missing values of an expression.
// The result is a sorted []float64, []string or []bool depending on the
// expression's type.
type UniqueTask struct {
	base
	expression string
	floats     map[float64]struct{}
	strings    map[string]struct{}
	bools      map[bool]struct{}
	kind       expr.Kind
}

// NewUnique creates a distinct-values task.
func NewUnique(expression, selection string) *UniqueTask {
	return &UniqueTask{
		base:       newBase(nil, selection),
		expression: expression,
		floats:     map[float64]struct{}{},
		strings:    map[string]struct{}{},
		bools:      map[bool]struct{}{},
	}
}

func (t *UniqueTask) Expressions() []string { return t.expressions(t.expression) }

func (t *UniqueTask) Feed(c *execution.Chunk) error {
	v, ok := c.Values(t.expression)
	if !ok {
		return nil
	}
	t.kind = v.Kind
	mask := c.Mask(t.selection)
	v = v.Broadcast(c.Len())
	for i := 0; i < c.Len(); i++ {
		if (mask != nil && !mask[i]) || !v.IsValid(i) {
			continue
		}
		switch v.Kind {
		case expr.KindString:
			t.strings[v.Strings[i]] = struct{}{}
		case expr.KindBool:
			t.bools[v.Bools[i]] = struct{}{}
		default:
			if x := v.Floats[i]; !math.IsNaN(x) {
				t.floats[x] = struct{}{}
			}
		}
	}
	return nil
}

func (t *UniqueTask) Finalize() (any, error) {
	switch t.kind {
	case expr.KindString:
		out := make([]string, 0, len(t.strings))
		for s := range t.strings {
			out = append(out, s)
		}
		slices.Sort(out)
		return out, nil
	case expr.KindBool:
		var out []bool
		for _, b := range []bool{false, true} {
			if _, ok := t.bools[b]; ok {
				out = append(out, b)
			}
		}
		return out, nil
	default:
		out := make([]float64, 0, len(t.floats))
		for x := range t.floats {
			out = append(out, x)
		}
		slices.Sort(out)
		return out, nil
	}
}
