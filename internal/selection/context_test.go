package selection

import (
	"math"

	errors "github.com/paveg/colstat/internal/errors"
)

// fakeContext serves columns x = 0..n-1 and y = x*x with a tiny set of
// named boolean expressions.
type fakeContext struct {
	n     int
	evals int
	preds map[string]func(x float64) bool
	cols  map[string][]float64
}

func newFakeContext(n int) *fakeContext {
	xs := make([]float64, n)
	ys := make([]float64, n)
	for i := range xs {
		xs[i] = float64(i)
		ys[i] = float64(i * i)
	}
	return &fakeContext{
		n: n,
		preds: map[string]func(float64) bool{
			"x < 5":      func(x float64) bool { return x < 5 },
			"x > 3":      func(x float64) bool { return x > 3 },
			"x >= 8":     func(x float64) bool { return x >= 8 },
			"x % 2 == 0": func(x float64) bool { return math.Mod(x, 2) == 0 },
		},
		cols: map[string][]float64{"x": xs, "y": ys},
	}
}

func (c *fakeContext) Validate(expression string) error {
	if _, ok := c.preds[expression]; ok {
		return nil
	}
	if _, ok := c.cols[expression]; ok {
		return nil
	}
	return errors.NewNameError("Validate", expression)
}

func (c *fakeContext) EvaluateMask(expression string, start, end int) ([]bool, error) {
	pred, ok := c.preds[expression]
	if !ok {
		return nil, errors.NewNameError("EvaluateMask", expression)
	}
	c.evals++
	out := make([]bool, end-start)
	for i := range out {
		out[i] = pred(float64(start + i))
	}
	return out, nil
}

func (c *fakeContext) EvaluateFloats(expression string, start, end int) ([]float64, error) {
	col, ok := c.cols[expression]
	if !ok {
		return nil, errors.NewNameError("EvaluateFloats", expression)
	}
	return append([]float64(nil), col[start:end]...), nil
}

func (c *fakeContext) Missing(columns []string, start, end int, dropNaN, dropMasked bool) ([]bool, error) {
	out := make([]bool, end-start)
	// row 3 is NaN in every column, row 5 is masked
	for i := range out {
		row := start + i
		out[i] = (dropNaN && row == 3) || (dropMasked && row == 5)
	}
	return out, nil
}

func rowsOf(mask []bool) []int {
	var out []int
	for i, ok := range mask {
		if ok {
			out = append(out, i)
		}
	}
	return out
}
