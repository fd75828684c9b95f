package colstat

import (
	"context"

	"github.com/paveg/colstat/internal/aggregate"
)

// Count counts rows where expression is present per cell; "" or "*"
// counts rows.
func (b *Batch) Count(expression string, opts ...StatOption) *Future[*Grid] {
	if expression == "" {
		expression = aggregate.CountAll
	}
	return b.grid("Count", opts, nil, false, 0, func(binner *aggregate.Binner, key string, _ [][2]float64, _ int) (Task, error) {
		return aggregate.NewCount(expression, binner, key), nil
	})
}

// Sum sums expression per cell.
func (b *Batch) Sum(expression string, opts ...StatOption) *Future[*Grid] {
	return b.grid("Sum", opts, nil, false, 0, func(binner *aggregate.Binner, key string, _ [][2]float64, _ int) (Task, error) {
		return aggregate.NewSum(expression, binner, key), nil
	})
}

// Mean averages expression per cell.
func (b *Batch) Mean(expression string, opts ...StatOption) *Future[*Grid] {
	return b.grid("Mean", opts, nil, false, 0, func(binner *aggregate.Binner, key string, _ [][2]float64, _ int) (Task, error) {
		return aggregate.NewMean(expression, binner, key), nil
	})
}

func (b *Batch) moment(op, expression string, m aggregate.Moment, opts []StatOption) *Future[*Grid] {
	return b.grid(op, opts, nil, false, 0, func(binner *aggregate.Binner, key string, _ [][2]float64, _ int) (Task, error) {
		return aggregate.NewMoments(expression, m, binner, key), nil
	})
}

// Var is the population variance of expression per cell.
func (b *Batch) Var(expression string, opts ...StatOption) *Future[*Grid] {
	return b.moment("Var", expression, aggregate.Variance, opts)
}

// VarNonCentral is the mean of the squares of expression per cell.
func (b *Batch) VarNonCentral(expression string, opts ...StatOption) *Future[*Grid] {
	return b.moment("VarNonCentral", expression, aggregate.VarianceNonCentral, opts)
}

// Std is the population standard deviation of expression per cell.
func (b *Batch) Std(expression string, opts ...StatOption) *Future[*Grid] {
	return b.moment("Std", expression, aggregate.StdDev, opts)
}

func (b *Batch) extreme(op, expression string, which aggregate.Extreme, opts []StatOption) *Future[*Grid] {
	return b.grid(op, opts, nil, false, 0, func(binner *aggregate.Binner, key string, _ [][2]float64, _ int) (Task, error) {
		return aggregate.NewMinMax(expression, which, binner, key), nil
	})
}

// Min is the minimum of expression per cell.
func (b *Batch) Min(expression string, opts ...StatOption) *Future[*Grid] {
	return b.extreme("Min", expression, aggregate.Min, opts)
}

// Max is the maximum of expression per cell.
func (b *Batch) Max(expression string, opts ...StatOption) *Future[*Grid] {
	return b.extreme("Max", expression, aggregate.Max, opts)
}

// MinMax returns minimum and maximum in a trailing dimension of 2.
func (b *Batch) MinMax(expression string, opts ...StatOption) *Future[*Grid] {
	return b.extreme("MinMax", expression, aggregate.Both, opts)
}

func (b *Batch) covariance(op string, expressions []string, kind aggregate.CovarianceKind, opts []StatOption) *Future[*Grid] {
	return b.grid(op, opts, nil, false, 0, func(binner *aggregate.Binner, key string, _ [][2]float64, _ int) (Task, error) {
		return aggregate.NewCovariance(expressions, kind, binner, key)
	})
}

// Cov is the covariance matrix of expressions in two trailing dimensions.
func (b *Batch) Cov(expressions []string, opts ...StatOption) *Future[*Grid] {
	return b.covariance("Cov", expressions, aggregate.Matrix, opts)
}

// Covar is the covariance of x and y per cell.
func (b *Batch) Covar(x, y string, opts ...StatOption) *Future[*Grid] {
	return b.covariance("Covar", []string{x, y}, aggregate.Pair, opts)
}

// Correlation is the Pearson correlation of x and y per cell.
func (b *Batch) Correlation(x, y string, opts ...StatOption) *Future[*Grid] {
	return b.covariance("Correlation", []string{x, y}, aggregate.Correlation, opts)
}

// MutualInformation estimates the mutual information of x and y per cell
// from a joint histogram.
func (b *Batch) MutualInformation(x, y string, opts ...StatOption) *Future[*Grid] {
	return b.grid("MutualInformation", opts, []string{x, y}, true, b.d.ds.Config().MIShape,
		func(binner *aggregate.Binner, key string, limits [][2]float64, resolution int) (Task, error) {
			return aggregate.NewMutualInformation(x, y, [2][2]float64{limits[0], limits[1]}, resolution, binner, key)
		})
}

// PercentileApprox approximates percentiles in [0, 100] of expression per
// cell. Several percentages add a trailing dimension.
func (b *Batch) PercentileApprox(expression string, percentages []float64, opts ...StatOption) *Future[*Grid] {
	return b.grid("PercentileApprox", opts, []string{expression}, true, b.d.ds.Config().PercentileShape,
		func(binner *aggregate.Binner, key string, limits [][2]float64, resolution int) (Task, error) {
			return aggregate.NewPercentile(expression, percentages, limits[0], resolution, binner, key)
		})
}

// MedianApprox is PercentileApprox at 50.
func (b *Batch) MedianApprox(expression string, opts ...StatOption) *Future[*Grid] {
	return b.PercentileApprox(expression, []float64{50}, opts...)
}

// Histogram counts rows per cell of the BinBy grid, or sums the Weight
// expression.
func (b *Batch) Histogram(opts ...StatOption) *Future[*Grid] {
	o := collect(opts)
	return b.grid("Histogram", opts, nil, false, 0, func(binner *aggregate.Binner, key string, _ [][2]float64, _ int) (Task, error) {
		return aggregate.NewHistogram(o.weight, binner, key), nil
	})
}

// Nearest finds the row whose expressions are closest to point.
func (b *Batch) Nearest(expressions []string, point []float64, opts ...StatOption) *Future[NearestResult] {
	return single[NearestResult](b, "Nearest", opts, func(key string) (Task, error) {
		return aggregate.NewNearest(expressions, point, key)
	})
}

// Unique lists the distinct values of expression, sorted: a []float64,
// []string or []bool.
func (b *Batch) Unique(expression string, opts ...StatOption) *Future[any] {
	return single[any](b, "Unique", opts, func(key string) (Task, error) {
		return aggregate.NewUnique(expression, key), nil
	})
}

// now runs a one-statistic batch.
func now[T any](ctx context.Context, d *Dataset, queue func(*Batch) *Future[T]) (T, error) {
	b := d.Delayed()
	f := queue(b)
	if err := b.Execute(ctx); err != nil {
		var zero T
		return zero, err
	}
	return f.Get(ctx)
}

// Count counts rows where expression is present; "" or "*" counts rows.
func (d *Dataset) Count(ctx context.Context, expression string, opts ...StatOption) (*Grid, error) {
	return now(ctx, d, func(b *Batch) *Future[*Grid] { return b.Count(expression, opts...) })
}

// Sum sums expression.
func (d *Dataset) Sum(ctx context.Context, expression string, opts ...StatOption) (*Grid, error) {
	return now(ctx, d, func(b *Batch) *Future[*Grid] { return b.Sum(expression, opts...) })
}

// Mean averages expression.
func (d *Dataset) Mean(ctx context.Context, expression string, opts ...StatOption) (*Grid, error) {
	return now(ctx, d, func(b *Batch) *Future[*Grid] { return b.Mean(expression, opts...) })
}

// Var is the population variance of expression.
func (d *Dataset) Var(ctx context.Context, expression string, opts ...StatOption) (*Grid, error) {
	return now(ctx, d, func(b *Batch) *Future[*Grid] { return b.Var(expression, opts...) })
}

// VarNonCentral is the mean of the squares of expression.
func (d *Dataset) VarNonCentral(ctx context.Context, expression string, opts ...StatOption) (*Grid, error) {
	return now(ctx, d, func(b *Batch) *Future[*Grid] { return b.VarNonCentral(expression, opts...) })
}

// Std is the population standard deviation of expression.
func (d *Dataset) Std(ctx context.Context, expression string, opts ...StatOption) (*Grid, error) {
	return now(ctx, d, func(b *Batch) *Future[*Grid] { return b.Std(expression, opts...) })
}

// Min is the minimum of expression.
func (d *Dataset) Min(ctx context.Context, expression string, opts ...StatOption) (*Grid, error) {
	return now(ctx, d, func(b *Batch) *Future[*Grid] { return b.Min(expression, opts...) })
}

// Max is the maximum of expression.
func (d *Dataset) Max(ctx context.Context, expression string, opts ...StatOption) (*Grid, error) {
	return now(ctx, d, func(b *Batch) *Future[*Grid] { return b.Max(expression, opts...) })
}

// MinMax returns minimum and maximum in a trailing dimension of 2.
func (d *Dataset) MinMax(ctx context.Context, expression string, opts ...StatOption) (*Grid, error) {
	return now(ctx, d, func(b *Batch) *Future[*Grid] { return b.MinMax(expression, opts...) })
}

// Cov is the covariance matrix of expressions.
func (d *Dataset) Cov(ctx context.Context, expressions []string, opts ...StatOption) (*Grid, error) {
	return now(ctx, d, func(b *Batch) *Future[*Grid] { return b.Cov(expressions, opts...) })
}

// Covar is the covariance of x and y.
func (d *Dataset) Covar(ctx context.Context, x, y string, opts ...StatOption) (*Grid, error) {
	return now(ctx, d, func(b *Batch) *Future[*Grid] { return b.Covar(x, y, opts...) })
}

// Correlation is the Pearson correlation of x and y.
func (d *Dataset) Correlation(ctx context.Context, x, y string, opts ...StatOption) (*Grid, error) {
	return now(ctx, d, func(b *Batch) *Future[*Grid] { return b.Correlation(x, y, opts...) })
}

// MutualInformation estimates the mutual information of x and y.
func (d *Dataset) MutualInformation(ctx context.Context, x, y string, opts ...StatOption) (*Grid, error) {
	return now(ctx, d, func(b *Batch) *Future[*Grid] { return b.MutualInformation(x, y, opts...) })
}

// PercentileApprox approximates percentiles of expression.
func (d *Dataset) PercentileApprox(ctx context.Context, expression string, percentages []float64, opts ...StatOption) (*Grid, error) {
	return now(ctx, d, func(b *Batch) *Future[*Grid] { return b.PercentileApprox(expression, percentages, opts...) })
}

// MedianApprox approximates the median of expression.
func (d *Dataset) MedianApprox(ctx context.Context, expression string, opts ...StatOption) (*Grid, error) {
	return now(ctx, d, func(b *Batch) *Future[*Grid] { return b.MedianApprox(expression, opts...) })
}

// Histogram counts rows, or sums Weight, per cell of the BinBy grid.
func (d *Dataset) Histogram(ctx context.Context, opts ...StatOption) (*Grid, error) {
	return now(ctx, d, func(b *Batch) *Future[*Grid] { return b.Histogram(opts...) })
}

// Nearest finds the row whose expressions are closest to point.
func (d *Dataset) Nearest(ctx context.Context, expressions []string, point []float64, opts ...StatOption) (NearestResult, error) {
	return now(ctx, d, func(b *Batch) *Future[NearestResult] { return b.Nearest(expressions, point, opts...) })
}

// Unique lists the sorted distinct values of expression.
func (d *Dataset) Unique(ctx context.Context, expression string, opts ...StatOption) (any, error) {
	return now(ctx, d, func(b *Batch) *Future[any] { return b.Unique(expression, opts...) })
}
