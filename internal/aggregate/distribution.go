package aggregate

import (
	"fmt"
	"math"

	errors "github.com/paveg/colstat/internal/errors"
	"github.com/paveg/colstat/internal/execution"
)

// histogram1D bins values of one expression in [lo, hi) into n bins.
// With closed set, hi itself falls in the last bin.
type histogram1D struct {
	lo, hi float64
	n      int
	closed bool
}

func (h histogram1D) index(v float64) int {
	if math.IsNaN(v) || v < h.lo || v > h.hi || (v == h.hi && !h.closed) {
		return -1
	}
	return min(int((v-h.lo)*float64(h.n)/(h.hi-h.lo)), h.n-1)
}

func checkLimits(op string, lo, hi float64, n int) error {
	if n <= 0 {
		return errors.NewInvalidInputError(op, fmt.Sprintf("shape must be positive, got %d", n))
	}
	if math.IsNaN(lo) || math.IsNaN(hi) || !(hi > lo) {
		return errors.NewInvalidInputError(op, fmt.Sprintf("limits must satisfy lo < hi, got [%g, %g]", lo, hi))
	}
	return nil
}

// MutualInformationTask estimates the mutual information of two
// expressions per cell from a shape x shape joint histogram. Cells without
// rows are NaN.
type MutualInformationTask struct {
	base
	x, y   string
	hx, hy histogram1D
	counts []float64
}

// NewMutualInformation creates a mutual information task; limits bound
// x and y, shape is the joint histogram resolution per axis.
func NewMutualInformation(x, y string, limits [2][2]float64, shape int, binner *Binner, selection string) (*MutualInformationTask, error) {
	for _, l := range limits {
		if err := checkLimits("MutualInformation", l[0], l[1], shape); err != nil {
			return nil, err
		}
	}
	b := newBase(binner, selection)
	return &MutualInformationTask{
		base:   b,
		x:      x,
		y:      y,
		hx:     histogram1D{lo: limits[0][0], hi: limits[0][1], n: shape},
		hy:     histogram1D{lo: limits[1][0], hi: limits[1][1], n: shape},
		counts: make([]float64, b.binner.Cells()*shape*shape),
	}, nil
}

// CloseUpper makes the upper limit of axis 0 (x) or 1 (y) inclusive.
func (t *MutualInformationTask) CloseUpper(axis int) {
	if axis == 0 {
		t.hx.closed = true
	} else {
		t.hy.closed = true
	}
}

func (t *MutualInformationTask) Expressions() []string { return t.expressions(t.x, t.y) }

func (t *MutualInformationTask) Feed(c *execution.Chunk) error {
	cells := t.bin(c)
	xs, ys := c.Floats(t.x), c.Floats(t.y)
	m := t.hx.n * t.hy.n
	for i, cell := range cells {
		if cell < 0 {
			continue
		}
		ix, iy := t.hx.index(xs[i]), t.hy.index(ys[i])
		if ix < 0 || iy < 0 {
			continue
		}
		t.counts[cell*m+ix*t.hy.n+iy]++
	}
	return nil
}

func (t *MutualInformationTask) Finalize() (any, error) {
	cells := t.binner.Cells()
	nx, ny := t.hx.n, t.hy.n
	out := make([]float64, cells)
	px := make([]float64, nx)
	py := make([]float64, ny)
	for cell := range out {
		joint := t.counts[cell*nx*ny : (cell+1)*nx*ny]
		clear(px)
		clear(py)
		total := 0.0
		for i := 0; i < nx; i++ {
			for j := 0; j < ny; j++ {
				c := joint[i*ny+j]
				px[i] += c
				py[j] += c
				total += c
			}
		}
		if total == 0 {
			out[cell] = math.NaN()
			continue
		}
		mi := 0.0
		for i := 0; i < nx; i++ {
			for j := 0; j < ny; j++ {
				c := joint[i*ny+j]
				if c == 0 {
					continue
				}
				// p log(p / (px py)) with counts: c/N log(c N / (cx cy))
				mi += c / total * math.Log(c*total/(px[i]*py[j]))
			}
		}
		out[cell] = mi
	}
	return &Grid{Shape: t.binner.Shape, Values: out}, nil
}

// PercentileTask approximates percentiles per cell by inverting a
// cumulative histogram, interpolating linearly inside the bin that holds
// the target. Values below or above the limits are counted at the
// boundary, so a target falling there saturates to lo or hi. Cells
// without rows are NaN.
type PercentileTask struct {
	base
	expression  string
	hist        histogram1D
	percentages []float64

	// counts holds n+2 slots per cell: underflow, the bins, overflow.
	counts []float64
}

// NewPercentile creates a percentile task. percentages are in [0, 100].
// With more than one percentage the result gets a trailing dimension.
func NewPercentile(expression string, percentages []float64, limits [2]float64, shape int, binner *Binner, selection string) (*PercentileTask, error) {
	if err := checkLimits("PercentileApprox", limits[0], limits[1], shape); err != nil {
		return nil, err
	}
	if len(percentages) == 0 {
		return nil, errors.NewInvalidInputError("PercentileApprox", "at least one percentage is required")
	}
	for _, p := range percentages {
		if math.IsNaN(p) || p < 0 || p > 100 {
			return nil, errors.NewInvalidInputError("PercentileApprox", fmt.Sprintf("percentage must be in [0, 100], got %g", p))
		}
	}
	b := newBase(binner, selection)
	return &PercentileTask{
		base:        b,
		expression:  expression,
		hist:        histogram1D{lo: limits[0], hi: limits[1], n: shape},
		percentages: percentages,
		counts:      make([]float64, b.binner.Cells()*(shape+2)),
	}, nil
}

// CloseUpper makes the upper limit inclusive; there is one axis.
func (t *PercentileTask) CloseUpper(int) { t.hist.closed = true }

func (t *PercentileTask) Expressions() []string { return t.expressions(t.expression) }

func (t *PercentileTask) Feed(c *execution.Chunk) error {
	cells := t.bin(c)
	values := c.Floats(t.expression)
	for i, cell := range cells {
		if cell < 0 {
			continue
		}
		v := values[i]
		if math.IsNaN(v) {
			continue
		}
		slot := t.hist.index(v) + 1
		if slot == 0 && v > t.hist.lo {
			slot = t.hist.n + 1
		}
		t.counts[cell*(t.hist.n+2)+slot]++
	}
	return nil
}

func (t *PercentileTask) Finalize() (any, error) {
	cells := t.binner.Cells()
	np := len(t.percentages)
	out := make([]float64, cells*np)
	for cell := 0; cell < cells; cell++ {
		stride := t.hist.n + 2
		counts := t.counts[cell*stride : (cell+1)*stride]
		for p, pct := range t.percentages {
			out[cell*np+p] = invert(counts, t.hist, pct)
		}
	}
	if np == 1 {
		return &Grid{Shape: t.binner.Shape, Values: out}, nil
	}
	return &Grid{Shape: appendDims(t.binner.Shape, np), Values: out}, nil
}

// invert returns the value below which pct percent of the counts fall.
// counts starts with the underflow slot and ends with the overflow slot.
func invert(counts []float64, h histogram1D, pct float64) float64 {
	total := 0.0
	for _, c := range counts {
		total += c
	}
	if total == 0 {
		return math.NaN()
	}
	width := (h.hi - h.lo) / float64(h.n)
	target := pct / 100 * total
	cum := counts[0]
	if cum > 0 && cum >= target {
		return h.lo
	}
	for k, c := range counts[1 : h.n+1] {
		if c > 0 && cum+c >= target {
			frac := max((target-cum)/c, 0)
			return h.lo + (float64(k)+frac)*width
		}
		cum += c
	}
	return h.hi
}

// NearestResult is the row closest to a point.
type NearestResult struct {
	// Index is the filtered row index, -1 when no row qualified.
	Index    int
	Distance float64
	Values   []float64
}

// NearestTask finds the row with the smallest Euclidean distance to a
// point. Ties go to the lowest filtered index; rows with a missing
// coordinate are skipped.
type NearestTask struct {
	base
	exprs []string
	point []float64
	best  NearestResult
}

// NewNearest creates a nearest-row task.
func NewNearest(exprs []string, point []float64, selection string) (*NearestTask, error) {
	if len(exprs) == 0 || len(exprs) != len(point) {
		return nil, errors.NewShapeMismatchError("Nearest", "point", len(exprs), len(point))
	}
	return &NearestTask{
		base:  newBase(nil, selection),
		exprs: exprs,
		point: point,
		best:  NearestResult{Index: -1, Distance: math.Inf(1)},
	}, nil
}

func (t *NearestTask) Expressions() []string { return t.expressions(t.exprs...) }

func (t *NearestTask) Feed(c *execution.Chunk) error {
	cells := t.bin(c)
	values := make([][]float64, len(t.exprs))
	for i, x := range t.exprs {
		values[i] = c.Floats(x)
	}
rows:
	for row, cell := range cells {
		if cell < 0 {
			continue
		}
		d := 0.0
		for i := range t.exprs {
			v := values[i][row]
			if math.IsNaN(v) {
				continue rows
			}
			diff := v - t.point[i]
			d += diff * diff
		}
		d = math.Sqrt(d)
		if d > t.best.Distance {
			continue
		}
		index := c.FilteredIndex(row)
		if d == t.best.Distance && t.best.Index >= 0 && index > t.best.Index {
			continue
		}
		coords := make([]float64, len(t.exprs))
		for i := range coords {
			coords[i] = values[i][row]
		}
		t.best = NearestResult{Index: index, Distance: d, Values: coords}
	}
	return nil
}

func (t *NearestTask) Finalize() (any, error) {
	return t.best, nil
}
