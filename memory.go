package colstat

import (
	"sync"

	"github.com/apache/arrow-go/v18/arrow/memory"
)

// Releasable represents any resource that can be released to free memory.
//
// Datasets, columns and evaluated Arrow arrays implement it. Always call
// Release() when done with a resource:
//
//	ds, err := colstat.Open("points.parquet")
//	if err != nil {
//		return err
//	}
//	defer ds.Release()
type Releasable interface {
	Release()
}

// MemoryManager tracks resources and releases them together.
//
// It helps when many short-lived arrays are evaluated in a loop, for
// example one Evaluate call per chunk of an export. For most code a
// deferred Release is clearer.
//
// The MemoryManager is safe for concurrent use from multiple goroutines.
//
//	err := colstat.WithMemoryManager(mem, func(m *colstat.MemoryManager) error {
//		for start := 0; start < n; start += step {
//			arr, err := ds.Evaluate(ctx, "x * 2", start, min(start+step, n), nil)
//			if err != nil {
//				return err
//			}
//			m.Track(arr)
//		}
//		return nil
//	})
type MemoryManager struct {
	allocator memory.Allocator
	resources []Releasable
	mu        sync.Mutex
}

// NewMemoryManager creates a new memory manager with the given allocator
func NewMemoryManager(allocator memory.Allocator) *MemoryManager {
	if allocator == nil {
		allocator = memory.NewGoAllocator()
	}
	return &MemoryManager{allocator: allocator}
}

// Allocator returns the allocator resources should be built with.
func (m *MemoryManager) Allocator() memory.Allocator {
	return m.allocator
}

// Track adds a resource to be released by ReleaseAll.
func (m *MemoryManager) Track(resource Releasable) {
	if resource != nil {
		m.mu.Lock()
		m.resources = append(m.resources, resource)
		m.mu.Unlock()
	}
}

// Count returns the number of tracked resources
func (m *MemoryManager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.resources)
}

// ReleaseAll releases all tracked resources in reverse order of tracking
// and clears the list.
func (m *MemoryManager) ReleaseAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.resources) - 1; i >= 0; i-- {
		m.resources[i].Release()
	}
	m.resources = m.resources[:0]
}

// WithDataset runs fn on the dataset built by factory and releases it
// afterwards.
func WithDataset(factory func() (*Dataset, error), fn func(*Dataset) error) error {
	ds, err := factory()
	if err != nil {
		return err
	}
	defer ds.Release()
	return fn(ds)
}

// WithMemoryManager creates a memory manager, executes a function with it, and releases all tracked resources
func WithMemoryManager(allocator memory.Allocator, fn func(*MemoryManager) error) error {
	manager := NewMemoryManager(allocator)
	defer manager.ReleaseAll()
	return fn(manager)
}
