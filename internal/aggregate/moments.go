package aggregate

import (
	"math"

	errors "github.com/paveg/colstat/internal/errors"
	"github.com/paveg/colstat/internal/execution"
)

// moments is a Welford accumulator. Two accumulators merge with Chan's
// parallel update.
type moments struct {
	n, mean, m2 float64
}

func (m *moments) add(x float64) {
	m.n++
	d := x - m.mean
	m.mean += d / m.n
	m.m2 += d * (x - m.mean)
}

func (m *moments) merge(o moments) {
	if o.n == 0 {
		return
	}
	if m.n == 0 {
		*m = o
		return
	}
	n := m.n + o.n
	d := o.mean - m.mean
	m.mean += d * o.n / n
	m.m2 += o.m2 + d*d*m.n*o.n/n
	m.n = n
}

// Moment names the statistic a MomentsTask reports.
type Moment int

const (
	// Variance is the central (population) variance E[(x-mean)^2].
	Variance Moment = iota
	// VarianceNonCentral is the legacy raw second moment E[x^2].
	VarianceNonCentral
	StdDev
)

// MomentsTask computes variance-type statistics per cell. Empty cells are
// NaN.
type MomentsTask struct {
	base
	expression string
	moment     Moment
	acc        []moments
}

// NewMoments creates a moments task.
func NewMoments(expression string, moment Moment, binner *Binner, selection string) *MomentsTask {
	b := newBase(binner, selection)
	return &MomentsTask{base: b, expression: expression, moment: moment, acc: make([]moments, b.binner.Cells())}
}

func (t *MomentsTask) Expressions() []string { return t.expressions(t.expression) }

func (t *MomentsTask) Feed(c *execution.Chunk) error {
	cells := t.bin(c)
	values := c.Floats(t.expression)
	local := make([]moments, len(t.acc))
	for i, cell := range cells {
		if cell >= 0 && !math.IsNaN(values[i]) {
			local[cell].add(values[i])
		}
	}
	for i := range local {
		t.acc[i].merge(local[i])
	}
	return nil
}

func (t *MomentsTask) Finalize() (any, error) {
	out := make([]float64, len(t.acc))
	for i, m := range t.acc {
		if m.n == 0 {
			out[i] = math.NaN()
			continue
		}
		v := m.m2 / m.n
		switch t.moment {
		case VarianceNonCentral:
			out[i] = v + m.mean*m.mean
		case StdDev:
			out[i] = math.Sqrt(v)
		default:
			out[i] = v
		}
	}
	return &Grid{Shape: t.binner.Shape, Values: out}, nil
}

// comoments accumulates the joint second moments of a pair over rows where
// both values are present.
type comoments struct {
	n, mx, my, m2x, m2y, cxy float64
}

func (m *comoments) add(x, y float64) {
	m.n++
	dx := x - m.mx
	m.mx += dx / m.n
	dy := y - m.my
	m.my += dy / m.n
	m.m2x += dx * (x - m.mx)
	m.m2y += dy * (y - m.my)
	m.cxy += dx * (y - m.my)
}

func (m *comoments) merge(o comoments) {
	if o.n == 0 {
		return
	}
	if m.n == 0 {
		*m = o
		return
	}
	n := m.n + o.n
	dx := o.mx - m.mx
	dy := o.my - m.my
	f := m.n * o.n / n
	m.m2x += o.m2x + dx*dx*f
	m.m2y += o.m2y + dy*dy*f
	m.cxy += o.cxy + dx*dy*f
	m.mx += dx * o.n / n
	m.my += dy * o.n / n
	m.n = n
}

func (m *comoments) covariance() float64 {
	if m.n == 0 {
		return math.NaN()
	}
	return m.cxy / m.n
}

func (m *comoments) correlation() float64 {
	if m.n == 0 {
		return math.NaN()
	}
	return m.cxy / math.Sqrt(m.m2x*m.m2y)
}

// CovarianceKind selects the output of a CovarianceTask.
type CovarianceKind int

const (
	// Matrix reports the N x N covariance matrix in two trailing dimensions.
	Matrix CovarianceKind = iota
	// Pair reports the covariance of exactly two expressions.
	Pair
	// Correlation reports the Pearson correlation of exactly two expressions.
	Correlation
)

// CovarianceTask computes population covariances (bias 1) per cell.
type CovarianceTask struct {
	base
	exprs []string
	kind  CovarianceKind
	// acc[cell*P+p] for every pair p = (i, j) with i <= j
	acc   []comoments
	pairs [][2]int
}

// NewCovariance creates a covariance task over exprs.
func NewCovariance(exprs []string, kind CovarianceKind, binner *Binner, selection string) (*CovarianceTask, error) {
	if len(exprs) == 0 {
		return nil, errors.NewInvalidInputError("Cov", "at least one expression is required")
	}
	if kind != Matrix && len(exprs) != 2 {
		return nil, errors.NewShapeMismatchError("Covar", "expressions", 2, len(exprs))
	}
	var pairs [][2]int
	for i := range exprs {
		for j := i; j < len(exprs); j++ {
			pairs = append(pairs, [2]int{i, j})
		}
	}
	if kind != Matrix {
		pairs = [][2]int{{0, 1}}
	}
	b := newBase(binner, selection)
	return &CovarianceTask{base: b, exprs: exprs, kind: kind, pairs: pairs,
		acc: make([]comoments, b.binner.Cells()*len(pairs))}, nil
}

func (t *CovarianceTask) Expressions() []string { return t.expressions(t.exprs...) }

func (t *CovarianceTask) Feed(c *execution.Chunk) error {
	cells := t.bin(c)
	values := make([][]float64, len(t.exprs))
	for i, x := range t.exprs {
		values[i] = c.Floats(x)
	}
	local := make([]comoments, len(t.acc))
	np := len(t.pairs)
	for row, cell := range cells {
		if cell < 0 {
			continue
		}
		for p, pair := range t.pairs {
			x, y := values[pair[0]][row], values[pair[1]][row]
			if math.IsNaN(x) || math.IsNaN(y) {
				continue
			}
			local[cell*np+p].add(x, y)
		}
	}
	for i := range local {
		t.acc[i].merge(local[i])
	}
	return nil
}

func (t *CovarianceTask) Finalize() (any, error) {
	cells := t.binner.Cells()
	np := len(t.pairs)
	if t.kind != Matrix {
		out := make([]float64, cells)
		for cell := range out {
			m := t.acc[cell*np]
			if t.kind == Correlation {
				out[cell] = m.correlation()
			} else {
				out[cell] = m.covariance()
			}
		}
		return &Grid{Shape: t.binner.Shape, Values: out}, nil
	}

	n := len(t.exprs)
	out := make([]float64, cells*n*n)
	for cell := 0; cell < cells; cell++ {
		for p, pair := range t.pairs {
			v := t.acc[cell*np+p].covariance()
			i, j := pair[0], pair[1]
			out[cell*n*n+i*n+j] = v
			out[cell*n*n+j*n+i] = v
		}
	}
	return &Grid{Shape: appendDims(t.binner.Shape, n, n), Values: out}, nil
}
