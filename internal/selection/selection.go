// Package selection implements named, undoable row selections: an algebra of
// boolean masks over storage rows with per-name history and a mask cache.
package selection

import (
	"fmt"
	"math"

	errors "github.com/paveg/colstat/internal/errors"
)

// Mode combines a new selection with the previous one.
type Mode string

const (
	ModeReplace  Mode = "replace"
	ModeAnd      Mode = "and"
	ModeOr       Mode = "or"
	ModeXor      Mode = "xor"
	ModeSubtract Mode = "subtract"
)

// ParseMode validates a mode name. The empty string means replace.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case "":
		return ModeReplace, nil
	case ModeReplace, ModeAnd, ModeOr, ModeXor, ModeSubtract:
		return m, nil
	default:
		return "", errors.NewInvalidSelectionError("ParseMode", s, "unknown selection mode")
	}
}

// Context supplies the data a selection is evaluated against. Rows are
// storage rows.
type Context interface {
	Validate(expression string) error
	EvaluateMask(expression string, start, end int) ([]bool, error)
	EvaluateFloats(expression string, start, end int) ([]float64, error)
	// Missing reports rows where any of columns is NaN (dropNaN) or masked
	// (dropMasked). An empty column list means every column.
	Missing(columns []string, start, end int, dropNaN, dropMasked bool) ([]bool, error)
}

// Selection is an immutable node of the selection algebra.
type Selection interface {
	Previous() Selection
	Mode() Mode
	// Evaluate returns the mask over [start, end) combined with Previous.
	Evaluate(ctx Context, start, end int) ([]bool, error)
	ToMap() map[string]any
}

type base struct {
	previous Selection
	mode     Mode
}

func (b base) Previous() Selection { return b.previous }
func (b base) Mode() Mode          { return b.mode }

func (b base) combine(ctx Context, start, end int, current []bool) ([]bool, error) {
	if b.previous == nil || b.mode == ModeReplace {
		return current, nil
	}
	prev, err := b.previous.Evaluate(ctx, start, end)
	if err != nil {
		return nil, err
	}
	for i := range current {
		switch b.mode {
		case ModeAnd:
			current[i] = prev[i] && current[i]
		case ModeOr:
			current[i] = prev[i] || current[i]
		case ModeXor:
			current[i] = prev[i] != current[i]
		case ModeSubtract:
			current[i] = prev[i] && !current[i]
		}
	}
	return current, nil
}

func (b base) toMap(kind string, fields map[string]any) map[string]any {
	fields["type"] = kind
	fields["mode"] = string(b.mode)
	if b.previous != nil {
		fields["previous"] = b.previous.ToMap()
	}
	return fields
}

// Expression selects rows where a boolean formula is true.
type Expression struct {
	base
	Expr string
}

// NewExpression creates an expression selection.
func NewExpression(expr string, previous Selection, mode Mode) *Expression {
	return &Expression{base: base{previous: previous, mode: mode}, Expr: expr}
}

func (s *Expression) Evaluate(ctx Context, start, end int) ([]bool, error) {
	mask, err := ctx.EvaluateMask(s.Expr, start, end)
	if err != nil {
		return nil, err
	}
	return s.combine(ctx, start, end, mask)
}

func (s *Expression) ToMap() map[string]any {
	return s.toMap("expression", map[string]any{"expression": s.Expr})
}

// Lasso selects points (X, Y) inside a polygon, using the even-odd rule.
type Lasso struct {
	base
	X, Y   string
	Xs, Ys []float64
}

// NewLasso creates a polygon selection.
func NewLasso(x, y string, xs, ys []float64, previous Selection, mode Mode) (*Lasso, error) {
	if len(xs) != len(ys) || len(xs) < 3 {
		return nil, errors.NewInvalidSelectionError("SelectLasso", x+","+y,
			fmt.Sprintf("polygon needs at least 3 matching vertices, got %d and %d", len(xs), len(ys)))
	}
	return &Lasso{base: base{previous: previous, mode: mode}, X: x, Y: y, Xs: xs, Ys: ys}, nil
}

func (s *Lasso) Evaluate(ctx Context, start, end int) ([]bool, error) {
	xs, ys, err := evalPair(ctx, s.X, s.Y, start, end)
	if err != nil {
		return nil, err
	}
	mask := make([]bool, end-start)
	for i := range mask {
		mask[i] = pointInPolygon(xs[i], ys[i], s.Xs, s.Ys)
	}
	return s.combine(ctx, start, end, mask)
}

func (s *Lasso) ToMap() map[string]any {
	return s.toMap("lasso", map[string]any{"x": s.X, "y": s.Y, "xs": s.Xs, "ys": s.Ys})
}

func pointInPolygon(x, y float64, xs, ys []float64) bool {
	if math.IsNaN(x) || math.IsNaN(y) {
		return false
	}
	inside := false
	for i, j := 0, len(xs)-1; i < len(xs); j, i = i, i+1 {
		if (ys[i] > y) != (ys[j] > y) &&
			x < (xs[j]-xs[i])*(y-ys[i])/(ys[j]-ys[i])+xs[i] {
			inside = !inside
		}
	}
	return inside
}

// Circle selects points within radius R of (Xc, Yc), boundary included.
type Circle struct {
	base
	X, Y      string
	Xc, Yc, R float64
}

// NewCircle creates a circle selection.
func NewCircle(x, y string, xc, yc, r float64, previous Selection, mode Mode) *Circle {
	return &Circle{base: base{previous: previous, mode: mode}, X: x, Y: y, Xc: xc, Yc: yc, R: r}
}

func (s *Circle) Evaluate(ctx Context, start, end int) ([]bool, error) {
	xs, ys, err := evalPair(ctx, s.X, s.Y, start, end)
	if err != nil {
		return nil, err
	}
	r2 := s.R * s.R
	mask := make([]bool, end-start)
	for i := range mask {
		dx, dy := xs[i]-s.Xc, ys[i]-s.Yc
		mask[i] = dx*dx+dy*dy <= r2
	}
	return s.combine(ctx, start, end, mask)
}

func (s *Circle) ToMap() map[string]any {
	return s.toMap("circle", map[string]any{"x": s.X, "y": s.Y, "xc": s.Xc, "yc": s.Yc, "r": s.R})
}

// Ellipse selects points inside an ellipse of the given width and height
// rotated by Angle degrees around (Xc, Yc).
type Ellipse struct {
	base
	X, Y                         string
	Xc, Yc, Width, Height, Angle float64
}

// NewEllipse creates an ellipse selection.
func NewEllipse(x, y string, xc, yc, width, height, angle float64, previous Selection, mode Mode) *Ellipse {
	return &Ellipse{base: base{previous: previous, mode: mode}, X: x, Y: y,
		Xc: xc, Yc: yc, Width: width, Height: height, Angle: angle}
}

func (s *Ellipse) Evaluate(ctx Context, start, end int) ([]bool, error) {
	xs, ys, err := evalPair(ctx, s.X, s.Y, start, end)
	if err != nil {
		return nil, err
	}
	alpha := s.Angle * math.Pi / 180
	sin, cos := math.Sincos(alpha)
	xr, yr := s.Width/2, s.Height/2
	r := math.Max(xr, yr)
	a, b := xr/r, yr/r

	mask := make([]bool, end-start)
	for i := range mask {
		dx, dy := xs[i]-s.Xc, ys[i]-s.Yc
		u := (dx*cos + dy*sin) / a
		v := (dx*sin - dy*cos) / b
		mask[i] = u*u+v*v <= r*r
	}
	return s.combine(ctx, start, end, mask)
}

func (s *Ellipse) ToMap() map[string]any {
	return s.toMap("ellipse", map[string]any{"x": s.X, "y": s.Y, "xc": s.Xc, "yc": s.Yc,
		"width": s.Width, "height": s.Height, "angle": s.Angle})
}

// Inverse negates the selection it wraps. Its previous is the wrapped node,
// so history and serialization keep the full chain.
type Inverse struct {
	inner Selection
}

// NewInverse wraps inner.
func NewInverse(inner Selection) *Inverse {
	return &Inverse{inner: inner}
}

func (s *Inverse) Previous() Selection { return s.inner }
func (s *Inverse) Mode() Mode          { return ModeReplace }

func (s *Inverse) Evaluate(ctx Context, start, end int) ([]bool, error) {
	if s.inner == nil {
		mask := make([]bool, end-start)
		for i := range mask {
			mask[i] = true
		}
		return mask, nil
	}
	mask, err := s.inner.Evaluate(ctx, start, end)
	if err != nil {
		return nil, err
	}
	for i := range mask {
		mask[i] = !mask[i]
	}
	return mask, nil
}

func (s *Inverse) ToMap() map[string]any {
	m := map[string]any{"type": "inverse"}
	if s.inner != nil {
		m["selection"] = s.inner.ToMap()
	}
	return m
}

// NonMissing drops rows where any of Columns is NaN or masked.
type NonMissing struct {
	base
	Columns    []string
	DropNaN    bool
	DropMasked bool
}

// NewNonMissing creates a missing-value selection. An empty column list
// covers every column.
func NewNonMissing(columns []string, dropNaN, dropMasked bool, previous Selection, mode Mode) *NonMissing {
	return &NonMissing{base: base{previous: previous, mode: mode}, Columns: columns, DropNaN: dropNaN, DropMasked: dropMasked}
}

func (s *NonMissing) Evaluate(ctx Context, start, end int) ([]bool, error) {
	missing, err := ctx.Missing(s.Columns, start, end, s.DropNaN, s.DropMasked)
	if err != nil {
		return nil, err
	}
	mask := make([]bool, len(missing))
	for i, m := range missing {
		mask[i] = !m
	}
	return s.combine(ctx, start, end, mask)
}

func (s *NonMissing) ToMap() map[string]any {
	return s.toMap("non_missing", map[string]any{"columns": s.Columns,
		"drop_nan": s.DropNaN, "drop_masked": s.DropMasked})
}

func evalPair(ctx Context, x, y string, start, end int) ([]float64, []float64, error) {
	xs, err := ctx.EvaluateFloats(x, start, end)
	if err != nil {
		return nil, nil, err
	}
	ys, err := ctx.EvaluateFloats(y, start, end)
	if err != nil {
		return nil, nil, err
	}
	return xs, ys, nil
}
