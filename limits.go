package colstat

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/paveg/colstat/internal/aggregate"
	errors "github.com/paveg/colstat/internal/errors"
)

// limitSpec is a parsed limits argument. Explicit limits carry bounds;
// the rest are computed from the data.
type limitSpec struct {
	explicit bool
	bounds   [2]float64
	// percent of values kept; 100 means the exact range
	percent float64
}

func parseLimit(spec any) (limitSpec, error) {
	switch s := spec.(type) {
	case nil:
		return limitSpec{percent: 100}, nil
	case [2]float64:
		return explicitLimit(s)
	case []float64:
		if len(s) != 2 {
			return limitSpec{}, errors.NewShapeMismatchError("Limits", "limits", 2, len(s))
		}
		return explicitLimit([2]float64{s[0], s[1]})
	case string:
		if s == MinMax {
			return limitSpec{percent: 100}, nil
		}
		if pct, ok := strings.CutSuffix(s, "%"); ok {
			p, err := strconv.ParseFloat(strings.TrimSpace(pct), 64)
			if err != nil || p <= 0 || p > 100 {
				return limitSpec{}, errors.NewInvalidInputError("Limits", fmt.Sprintf("invalid percentage %q", s))
			}
			return limitSpec{percent: p}, nil
		}
	}
	return limitSpec{}, errors.NewInvalidInputError("Limits", fmt.Sprintf("unsupported limits %v", spec))
}

func explicitLimit(b [2]float64) (limitSpec, error) {
	if math.IsNaN(b[0]) || math.IsNaN(b[1]) || !(b[1] > b[0]) {
		return limitSpec{}, errors.NewInvalidInputError("Limits", fmt.Sprintf("limits must satisfy lo < hi, got %v", b))
	}
	return limitSpec{explicit: true, bounds: b}, nil
}

// limitRequest asks for the computed limits of one expression.
type limitRequest struct {
	expression string
	percent    float64
	selection  string
}

// resolveLimits computes every requested range with at most two passes:
// one for min and max of all expressions, one for the percentile trims.
// An exact range ends at the data maximum, which binning keeps in the last
// bin; a degenerate range is widened by 0.5 each side.
func (b *Batch) resolveLimits(ctx context.Context, requests []limitRequest) (map[limitRequest][2]float64, error) {
	out := make(map[limitRequest][2]float64, len(requests))
	if len(requests) == 0 {
		return out, nil
	}

	type rangeKey struct{ expression, selection string }
	ranges := map[rangeKey]*TaskFuture{}
	for _, r := range requests {
		k := rangeKey{r.expression, r.selection}
		if _, ok := ranges[k]; !ok {
			ranges[k] = b.d.backend.Submit(aggregate.NewMinMax(r.expression, aggregate.Both, nil, r.selection))
		}
	}
	if err := b.d.backend.Execute(ctx); err != nil {
		return nil, err
	}
	exact := make(map[rangeKey][2]float64, len(ranges))
	for k, f := range ranges {
		v, err := f.Wait(ctx)
		if err != nil {
			return nil, err
		}
		g := v.(*Grid)
		lo, hi := g.Values[0], g.Values[1]
		if lo > hi {
			return nil, errors.NewInvalidInputError("Limits", fmt.Sprintf("no rows to compute the limits of %s", k.expression))
		}
		if lo == hi {
			exact[k] = [2]float64{lo - 0.5, hi + 0.5}
		} else {
			exact[k] = [2]float64{lo, hi}
		}
	}

	trims := map[limitRequest]*TaskFuture{}
	for _, r := range requests {
		e := exact[rangeKey{r.expression, r.selection}]
		if r.percent >= 100 {
			out[r] = e
			continue
		}
		if _, ok := trims[r]; ok {
			continue
		}
		tail := (100 - r.percent) / 2
		task, err := aggregate.NewPercentile(r.expression, []float64{tail, 100 - tail}, e,
			b.d.ds.Config().PercentileShape, nil, r.selection)
		if err != nil {
			return nil, err
		}
		task.CloseUpper(0)
		trims[r] = b.d.backend.Submit(task)
	}
	if len(trims) == 0 {
		return out, nil
	}
	if err := b.d.backend.Execute(ctx); err != nil {
		return nil, err
	}
	for r, f := range trims {
		v, err := f.Wait(ctx)
		if err != nil {
			return nil, err
		}
		g := v.(*Grid)
		lo, hi := g.Values[0], g.Values[1]
		if !(hi > lo) {
			hi = lo + (exact[rangeKey{r.expression, r.selection}][1]-lo)/float64(b.d.ds.Config().PercentileShape)
		}
		out[r] = [2]float64{lo, hi}
	}
	return out, nil
}

// Limits computes the limits of expressions. spec is as for the Limits
// option: one spec for all expressions or one per expression.
func (d *Dataset) Limits(ctx context.Context, expressions []string, spec ...any) ([][2]float64, error) {
	b := d.Delayed()
	specs := broadcast(spec, len(expressions), nil)
	parsed := make([]limitSpec, len(expressions))
	var requests []limitRequest
	for i, x := range expressions {
		ls, err := parseLimit(specs[i])
		if err != nil {
			return nil, err
		}
		parsed[i] = ls
		if !ls.explicit {
			requests = append(requests, limitRequest{expression: x, percent: ls.percent})
		}
	}
	resolved, err := b.resolveLimits(ctx, requests)
	if err != nil {
		return nil, err
	}
	out := make([][2]float64, len(expressions))
	for i, x := range expressions {
		if parsed[i].explicit {
			out[i] = parsed[i].bounds
		} else {
			out[i] = resolved[limitRequest{expression: x, percent: parsed[i].percent}]
		}
	}
	return out, nil
}
