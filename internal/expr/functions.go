package expr

import (
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/paveg/colstat/internal/column"
	errors "github.com/paveg/colstat/internal/errors"
)

// Function is a user-supplied elementwise function callable from formulas.
// Every argument array has the same length and the result must match it.
type Function interface {
	// Arity is the number of arguments, or -1 for any number.
	Arity() int
	Call(args []arrow.Array) (arrow.Array, error)
}

// StatefulFunction is a Function whose configuration survives dataset state
// round trips. Kind names the factory registered with RegisterKind.
type StatefulFunction interface {
	Function
	Kind() string
	State() map[string]any
	SetState(state map[string]any) error
}

// FloatFunc adapts a scalar float function. Rows where any argument is
// missing produce a missing result.
type FloatFunc struct {
	N  int
	Fn func(args ...float64) float64
}

// Arity implements Function.
func (f FloatFunc) Arity() int { return f.N }

// Call implements Function.
func (f FloatFunc) Call(args []arrow.Array) (arrow.Array, error) {
	n := 0
	if len(args) > 0 {
		n = args[0].Len()
	}
	cols := make([][]float64, len(args))
	valids := make([][]bool, len(args))
	for i, a := range args {
		vals, valid := column.Float64s(a)
		if vals == nil {
			return nil, fmt.Errorf("argument %d: expected numeric array, got %s", i, a.DataType())
		}
		cols[i], valids[i] = vals, valid
	}

	b := array.NewFloat64Builder(memory.DefaultAllocator)
	defer b.Release()
	row := make([]float64, len(args))
	for r := 0; r < n; r++ {
		ok := true
		for i := range cols {
			if valids[i] != nil && !valids[i][r] {
				ok = false
				break
			}
			row[i] = cols[i][r]
		}
		if !ok {
			b.AppendNull()
			continue
		}
		b.Append(f.Fn(row...))
	}
	return b.NewArray(), nil
}

var registry = struct {
	sync.RWMutex
	factories map[string]func() StatefulFunction
}{factories: make(map[string]func() StatefulFunction)}

// RegisterKind makes a stateful function kind constructible by name.
// Registering the same kind twice replaces the factory.
func RegisterKind(kind string, factory func() StatefulFunction) {
	registry.Lock()
	defer registry.Unlock()
	registry.factories[kind] = factory
}

// NewStateful builds a registered function kind and applies state to it.
func NewStateful(kind string, state map[string]any) (StatefulFunction, error) {
	registry.RLock()
	factory, ok := registry.factories[kind]
	registry.RUnlock()
	if !ok {
		return nil, errors.NewNameError("NewStateful", kind).WithHint("function kind is not registered")
	}
	fn := factory()
	if err := fn.SetState(state); err != nil {
		return nil, fmt.Errorf("restoring %s state: %w", kind, err)
	}
	return fn, nil
}

// Kinds returns the registered stateful function kinds.
func Kinds() []string {
	registry.RLock()
	defer registry.RUnlock()
	out := make([]string, 0, len(registry.factories))
	for k := range registry.factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

type builtin struct {
	arity int
	call  func(args []Vector, n int) (Vector, error)
}

func unaryMath(fn func(float64) float64) builtin {
	return builtin{arity: 1, call: func(args []Vector, n int) (Vector, error) {
		return mapFloats(n, args, func(x []float64) float64 { return fn(x[0]) })
	}}
}

func binaryMath(fn func(a, b float64) float64) builtin {
	return builtin{arity: 2, call: func(args []Vector, n int) (Vector, error) {
		return mapFloats(n, args, func(x []float64) float64 { return fn(x[0], x[1]) })
	}}
}

func predicate(fn func(float64) bool) builtin {
	return builtin{arity: 1, call: func(args []Vector, n int) (Vector, error) {
		if err := requireNumeric(args); err != nil {
			return Vector{}, err
		}
		a := args[0]
		out := Vector{Kind: KindBool, Bools: make([]bool, n)}
		for i := range out.Bools {
			// missing rows count as NaN here so isnan(m) flags masked values
			out.Bools[i] = fn(floatOrNaN(a, i))
		}
		return out, nil
	}}
}

func floatOrNaN(v Vector, i int) float64 {
	if !v.IsValid(i) {
		return math.NaN()
	}
	return v.Float(i)
}

var builtins = map[string]builtin{
	"sin":     unaryMath(math.Sin),
	"cos":     unaryMath(math.Cos),
	"tan":     unaryMath(math.Tan),
	"arcsin":  unaryMath(math.Asin),
	"arccos":  unaryMath(math.Acos),
	"arctan":  unaryMath(math.Atan),
	"sinh":    unaryMath(math.Sinh),
	"cosh":    unaryMath(math.Cosh),
	"tanh":    unaryMath(math.Tanh),
	"sqrt":    unaryMath(math.Sqrt),
	"abs":     unaryMath(math.Abs),
	"exp":     unaryMath(math.Exp),
	"log":     unaryMath(math.Log),
	"log10":   unaryMath(math.Log10),
	"log1p":   unaryMath(math.Log1p),
	"floor":   unaryMath(math.Floor),
	"ceil":    unaryMath(math.Ceil),
	"round":   unaryMath(math.RoundToEven),
	"deg2rad": unaryMath(func(x float64) float64 { return x * math.Pi / 180 }),
	"rad2deg": unaryMath(func(x float64) float64 { return x * 180 / math.Pi }),
	"arctan2": binaryMath(math.Atan2),
	"minimum": binaryMath(func(a, b float64) float64 {
		if math.IsNaN(a) || math.IsNaN(b) {
			return math.NaN()
		}
		return math.Min(a, b)
	}),
	"maximum": binaryMath(func(a, b float64) float64 {
		if math.IsNaN(a) || math.IsNaN(b) {
			return math.NaN()
		}
		return math.Max(a, b)
	}),
	"isnan":    predicate(math.IsNaN),
	"isfinite": predicate(func(x float64) bool { return !math.IsNaN(x) && !math.IsInf(x, 0) }),
	"clip": {arity: 3, call: func(args []Vector, n int) (Vector, error) {
		return mapFloats(n, args, func(x []float64) float64 {
			return math.Min(math.Max(x[0], x[1]), x[2])
		})
	}},
	"where": {arity: 3, call: where},
}

// IsBuiltin reports whether name is a built-in math function.
func IsBuiltin(name string) bool {
	_, ok := builtins[name]
	return ok
}

func requireNumeric(args []Vector) error {
	for i, a := range args {
		if a.Kind == KindString {
			return fmt.Errorf("argument %d: string values are not numeric", i)
		}
	}
	return nil
}

func mapFloats(n int, args []Vector, fn func([]float64) float64) (Vector, error) {
	if err := requireNumeric(args); err != nil {
		return Vector{}, err
	}
	out := Vector{Kind: KindFloat, Floats: make([]float64, n), Valid: combineValid(n, args...)}
	row := make([]float64, len(args))
	for i := range out.Floats {
		for j, a := range args {
			row[j] = a.Float(i)
		}
		out.Floats[i] = fn(row)
	}
	return out, nil
}

func where(args []Vector, n int) (Vector, error) {
	cond, a, b := args[0], args[1], args[2]
	if a.Kind == KindString || b.Kind == KindString {
		if a.Kind != b.Kind {
			return Vector{}, fmt.Errorf("where: branches must both be strings")
		}
		out := Vector{Kind: KindString, Strings: make([]string, n), Valid: make([]bool, n)}
		for i := range out.Strings {
			src := b
			if cond.IsValid(i) && cond.Truth(i) {
				src = a
			}
			out.Strings[i], out.Valid[i] = src.str(i), src.IsValid(i)
		}
		return out, nil
	}

	kind := KindFloat
	if a.Kind == KindBool && b.Kind == KindBool {
		kind = KindBool
	}
	out := Vector{Kind: kind, Valid: make([]bool, n)}
	if kind == KindBool {
		out.Bools = make([]bool, n)
	} else {
		out.Floats = make([]float64, n)
	}
	allValid := true
	for i := 0; i < n; i++ {
		if !cond.IsValid(i) {
			allValid = false
			continue
		}
		src := b
		if cond.Truth(i) {
			src = a
		}
		out.Valid[i] = src.IsValid(i)
		allValid = allValid && out.Valid[i]
		if kind == KindBool {
			out.Bools[i] = src.Truth(i)
		} else {
			out.Floats[i] = src.Float(i)
		}
	}
	if allValid {
		out.Valid = nil
	}
	return out, nil
}

// combineValid ANDs the validity of args; nil means every row is present.
func combineValid(n int, args ...Vector) []bool {
	var out []bool
	for _, a := range args {
		if a.Valid == nil {
			continue
		}
		if out == nil {
			out = make([]bool, n)
			for i := range out {
				out[i] = true
			}
		}
		for i := range out {
			out[i] = out[i] && a.IsValid(i)
		}
	}
	return out
}
