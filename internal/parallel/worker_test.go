package parallel_test

import (
	"context"
	stderrors "errors"
	"runtime"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paveg/colstat/internal/parallel"
)

func TestNewWorkerPool(t *testing.T) {
	assert.Equal(t, runtime.NumCPU(), parallel.NewWorkerPool(0).Size())
	assert.Equal(t, runtime.NumCPU(), parallel.NewWorkerPool(-1).Size())
	assert.Equal(t, 4, parallel.NewWorkerPool(4).Size())
}

func TestProcessIndexed(t *testing.T) {
	pool := parallel.NewWorkerPool(2)
	input := []string{"a", "b", "c", "d"}

	results, err := parallel.ProcessIndexed(context.Background(), pool, input,
		func(_ context.Context, index int, value string) (string, error) {
			return value + string(rune('0'+index)), nil
		})
	require.NoError(t, err)
	assert.Equal(t, []string{"a0", "b1", "c2", "d3"}, results)
}

func TestProcessIndexedEmpty(t *testing.T) {
	results, err := parallel.ProcessIndexed(context.Background(), parallel.NewWorkerPool(2), []int{},
		func(_ context.Context, _ int, x int) (int, error) { return x, nil })
	require.NoError(t, err)
	assert.Nil(t, results)
}

func TestProcessIndexedSerial(t *testing.T) {
	pool := parallel.NewWorkerPool(1)
	var order []int
	_, err := parallel.ProcessIndexed(context.Background(), pool, []int{5, 6, 7},
		func(_ context.Context, i int, _ int) (int, error) {
			order = append(order, i)
			return i, nil
		})
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2}, order)
}

func TestProcessIndexedError(t *testing.T) {
	boom := stderrors.New("boom")
	for _, workers := range []int{1, 4} {
		pool := parallel.NewWorkerPool(workers)
		results, err := parallel.ProcessIndexed(context.Background(), pool, []int{1, 2, 3, 4},
			func(_ context.Context, _ int, x int) (int, error) {
				if x == 3 {
					return 0, boom
				}
				return x, nil
			})
		require.ErrorIs(t, err, boom)
		assert.Nil(t, results)
	}
}

func TestProcessIndexedCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := parallel.ProcessIndexed(ctx, parallel.NewWorkerPool(2), []int{1, 2, 3},
		func(_ context.Context, _ int, x int) (int, error) { return x, nil })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestForEachBoundsConcurrency(t *testing.T) {
	pool := parallel.NewWorkerPool(2)
	var active, peak atomic.Int32
	err := parallel.ForEach(context.Background(), pool, 8, func(context.Context, int) error {
		n := active.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		active.Add(-1)
		return nil
	})
	require.NoError(t, err)
	assert.LessOrEqual(t, peak.Load(), int32(2))
	assert.GreaterOrEqual(t, peak.Load(), int32(1))
}
