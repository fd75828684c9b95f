package colstat_test

import (
	"context"
	stderrors "errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paveg/colstat"
	"github.com/paveg/colstat/internal/testutil"
)

type releaseRecorder struct {
	id    int
	order *[]int
}

func (r releaseRecorder) Release() { *r.order = append(*r.order, r.id) }

func TestMemoryManager(t *testing.T) {
	t.Run("releases in reverse order", func(t *testing.T) {
		var order []int
		m := colstat.NewMemoryManager(nil)
		assert.NotNil(t, m.Allocator())
		for i := 1; i <= 3; i++ {
			m.Track(releaseRecorder{id: i, order: &order})
		}
		m.Track(nil)
		assert.Equal(t, 3, m.Count())

		m.ReleaseAll()
		assert.Equal(t, []int{3, 2, 1}, order)
		assert.Equal(t, 0, m.Count())
	})

	t.Run("concurrent tracking", func(t *testing.T) {
		var mu sync.Mutex
		var order []int
		m := colstat.NewMemoryManager(nil)
		var wg sync.WaitGroup
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				m.Track(lockedRelease{mu: &mu, order: &order, id: i})
			}(i)
		}
		wg.Wait()
		assert.Equal(t, 50, m.Count())
		m.ReleaseAll()
		assert.Len(t, order, 50)
	})
}

type lockedRelease struct {
	mu    *sync.Mutex
	order *[]int
	id    int
}

func (r lockedRelease) Release() {
	r.mu.Lock()
	*r.order = append(*r.order, r.id)
	r.mu.Unlock()
}

func TestWithMemoryManagerReleasesArrays(t *testing.T) {
	mem := testutil.SetupMemoryTest(t)
	defer mem.Release()

	ds := newDataset(t, colstat.WithAllocator(mem.Allocator), colstat.WithConfig(colstat.Config{ChunkSize: 4}))
	n, err := ds.Length()
	require.NoError(t, err)

	err = colstat.WithMemoryManager(mem.Allocator, func(m *colstat.MemoryManager) error {
		for start := 0; start < n; start += 4 {
			arr, err := ds.Evaluate(context.Background(), "x * 2", start, min(start+4, n), nil)
			if err != nil {
				return err
			}
			m.Track(arr)
		}
		assert.Equal(t, 3, m.Count())
		return nil
	})
	require.NoError(t, err)
	ds.Release()
}

func TestWithDataset(t *testing.T) {
	called := false
	err := colstat.WithDataset(func() (*colstat.Dataset, error) {
		return colstat.New([]*colstat.Column{colstat.NewColumn("a", []float64{1, 2})})
	}, func(ds *colstat.Dataset) error {
		called = true
		assert.Equal(t, 2, ds.LengthOriginal())
		return nil
	})
	require.NoError(t, err)
	assert.True(t, called)

	boom := stderrors.New("boom")
	err = colstat.WithDataset(func() (*colstat.Dataset, error) { return nil, boom }, func(*colstat.Dataset) error {
		t.Fatal("fn must not run")
		return nil
	})
	assert.ErrorIs(t, err, boom)
}
