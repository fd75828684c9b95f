package expr

import (
	"sync"

	"github.com/cespare/xxhash/v2"
)

// DefaultCacheSize bounds the number of parsed formulas kept by a Cache.
const DefaultCacheSize = 4096

type cacheEntry struct {
	text string
	node Node
}

// Cache memoizes parsed formulas keyed by the xxhash of their text.
// Parse errors are not cached.
type Cache struct {
	mu      sync.RWMutex
	entries map[uint64]cacheEntry
	limit   int
}

// NewCache creates a cache holding at most limit formulas.
func NewCache(limit int) *Cache {
	if limit <= 0 {
		limit = DefaultCacheSize
	}
	return &Cache{entries: make(map[uint64]cacheEntry), limit: limit}
}

// Parse returns the cached tree for text, parsing it on a miss.
func (c *Cache) Parse(text string) (Node, error) {
	key := xxhash.Sum64String(text)

	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if ok && e.text == text {
		return e.node, nil
	}

	node, err := Parse(text)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if len(c.entries) >= c.limit {
		clear(c.entries)
	}
	c.entries[key] = cacheEntry{text: text, node: node}
	c.mu.Unlock()

	return node, nil
}

// Len returns the number of cached formulas.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
