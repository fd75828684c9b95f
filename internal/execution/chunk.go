package execution

import (
	"github.com/paveg/colstat/internal/expr"
)

// Chunk is one block of storage rows [Start, End) handed to every task of a
// pass. Rows outside the filter are present but masked out.
type Chunk struct {
	Start, End int
	// FilteredStart is the filtered index of the first filtered row in the
	// chunk.
	FilteredStart int

	filter []bool
	values map[string]expr.Vector
	masks  map[string][]bool
	floats map[string][]float64
	// ranks[i] counts filtered rows before offset i, built on first use.
	ranks []int
}

// NewChunk assembles a chunk from evaluated data. filter and masks use nil
// for "every row".
func NewChunk(start, end, filteredStart int, filter []bool, values map[string]expr.Vector, masks map[string][]bool) *Chunk {
	if values == nil {
		values = map[string]expr.Vector{}
	}
	if masks == nil {
		masks = map[string][]bool{}
	}
	return &Chunk{
		Start:         start,
		End:           end,
		FilteredStart: filteredStart,
		filter:        filter,
		values:        values,
		masks:         masks,
		floats:        map[string][]float64{},
	}
}

// Len returns the number of storage rows in the chunk.
func (c *Chunk) Len() int {
	return c.End - c.Start
}

// Values returns an expression evaluated over the chunk's storage rows.
// Only expressions declared by a task of the pass are present.
func (c *Chunk) Values(expression string) (expr.Vector, bool) {
	v, ok := c.values[expression]
	return v, ok
}

// Floats returns an expression as numbers, with NaN for missing rows.
func (c *Chunk) Floats(expression string) []float64 {
	if f, ok := c.floats[expression]; ok {
		return f
	}
	v, ok := c.values[expression]
	if !ok {
		return nil
	}
	f := v.AsFloats(c.Len())
	c.floats[expression] = f
	return f
}

// Mask returns the rows a task must consider for selection key: the
// filter and the selection combined. A nil mask selects every row.
func (c *Chunk) Mask(selection string) []bool {
	if m, ok := c.masks[selection]; ok {
		return m
	}
	return c.filter
}

// FilteredIndex maps a row offset within the chunk to its filtered index.
// The row must pass the filter.
func (c *Chunk) FilteredIndex(offset int) int {
	if c.filter == nil {
		return c.FilteredStart + offset
	}
	if c.ranks == nil {
		c.ranks = make([]int, len(c.filter))
		n := 0
		for i, ok := range c.filter {
			c.ranks[i] = n
			if ok {
				n++
			}
		}
	}
	return c.FilteredStart + c.ranks[offset]
}

// CombineMasks ANDs a filter and a selection mask; nil means every row.
func CombineMasks(filter, selection []bool) []bool {
	switch {
	case selection == nil:
		return filter
	case filter == nil:
		return selection
	}
	out := make([]bool, len(filter))
	for i := range out {
		out[i] = filter[i] && selection[i]
	}
	return out
}
