package expr

import (
	"sort"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/paveg/colstat/internal/column"
)

// mapScope is a minimal in-memory Scope for evaluator tests.
type mapScope struct {
	columns   map[string]*column.Column
	variables map[string]float64
	virtual   map[string]string
	functions map[string]Function
}

func newTestScope(t *testing.T) *mapScope {
	t.Helper()
	mem := memory.NewGoAllocator()

	x := make([]float64, 10)
	y := make([]float64, 10)
	for i := range x {
		x[i] = float64(i)
		y[i] = float64(i * i)
	}
	m, err := column.NewMasked("m", x, []bool{true, true, true, true, true, true, true, true, true, false}, mem)
	if err != nil {
		t.Fatal(err)
	}

	s := &mapScope{
		columns: map[string]*column.Column{
			"x":    column.New("x", x, mem),
			"y":    column.New("y", y, mem),
			"m":    m,
			"name": column.New("name", []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j"}, mem),
			"flag": column.New("flag", []bool{true, false, true, false, true, false, true, false, true, false}, mem),
		},
		variables: map[string]float64{"t": 1},
		virtual:   map[string]string{"z": "x+t*y"},
		functions: map[string]Function{},
	}
	t.Cleanup(func() {
		for _, c := range s.columns {
			c.Release()
		}
	})
	return s
}

func (s *mapScope) Column(name string, start, end int) (arrow.Array, bool) {
	c, ok := s.columns[name]
	if !ok {
		return nil, false
	}
	return c.Slice(start, end), true
}

func (s *mapScope) Variable(name string) (float64, bool) {
	v, ok := s.variables[name]
	return v, ok
}

func (s *mapScope) Virtual(name string) (string, bool) {
	f, ok := s.virtual[name]
	return f, ok
}

func (s *mapScope) Function(name string) (Function, bool) {
	f, ok := s.functions[name]
	return f, ok
}

func (s *mapScope) Names() []string {
	var out []string
	for k := range s.columns {
		out = append(out, k)
	}
	for k := range s.variables {
		out = append(out, k)
	}
	for k := range s.virtual {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// counting wraps a float function and counts invocations.
type counting struct {
	FloatFunc
	calls *int
}

func (c counting) Call(args []arrow.Array) (arrow.Array, error) {
	*c.calls++
	return c.FloatFunc.Call(args)
}

// scale is a stateful function used to exercise the kind registry.
type scale struct {
	factor float64
}

func (s *scale) Arity() int   { return 1 }
func (s *scale) Kind() string { return "test.scale" }
func (s *scale) State() map[string]any {
	return map[string]any{"factor": s.factor}
}

func (s *scale) SetState(state map[string]any) error {
	if f, ok := state["factor"].(float64); ok {
		s.factor = f
	}
	return nil
}

func (s *scale) Call(args []arrow.Array) (arrow.Array, error) {
	vals, _ := column.Float64s(args[0])
	b := array.NewFloat64Builder(memory.DefaultAllocator)
	defer b.Release()
	for _, v := range vals {
		b.Append(v * s.factor)
	}
	return b.NewArray(), nil
}
