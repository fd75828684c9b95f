package expr

import (
	stderrors "errors"
	"fmt"
	"math"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"

	errors "github.com/paveg/colstat/internal/errors"
)

// Scope resolves the names a formula may reference.
type Scope interface {
	// Column returns rows [start, end) of a storage column. The caller
	// releases the returned array.
	Column(name string, start, end int) (arrow.Array, bool)
	Variable(name string) (float64, bool)
	Virtual(name string) (string, bool)
	Function(name string) (Function, bool)
	// Names lists every resolvable identifier, used for error hints.
	Names() []string
}

// Evaluator evaluates formulas against a Scope. It is safe for concurrent
// use; each Evaluate call keeps its own virtual column memo.
type Evaluator struct {
	cache *Cache
	mem   memory.Allocator
}

// NewEvaluator creates an evaluator with its own parse cache.
func NewEvaluator(mem memory.Allocator) *Evaluator {
	if mem == nil {
		mem = memory.NewGoAllocator()
	}
	return &Evaluator{cache: NewCache(DefaultCacheSize), mem: mem}
}

// Parse parses text through the evaluator's cache.
func (e *Evaluator) Parse(text string) (Node, error) {
	return e.cache.Parse(text)
}

// Evaluate computes text over storage rows [start, end).
func (e *Evaluator) Evaluate(scope Scope, text string, start, end int) (Vector, error) {
	node, err := e.cache.Parse(text)
	if err != nil {
		return Vector{}, err
	}
	c := &evalCall{ev: e, scope: scope, start: start, end: end, memo: map[string]Vector{}, active: map[string]bool{}}
	v, err := c.eval(node)
	if err != nil {
		return Vector{}, err
	}
	return v.Broadcast(end - start), nil
}

// EvaluateArray computes text over [start, end) as a new Arrow array owned
// by the caller.
func (e *Evaluator) EvaluateArray(scope Scope, text string, start, end int) (arrow.Array, error) {
	v, err := e.Evaluate(scope, text, start, end)
	if err != nil {
		return nil, err
	}
	return v.ToArrow(e.mem, end-start), nil
}

// Validate parses text and checks every identifier and function resolves,
// following virtual columns, without touching data.
func (e *Evaluator) Validate(scope Scope, text string) error {
	return e.validate(scope, text, map[string]bool{})
}

func (e *Evaluator) validate(scope Scope, text string, active map[string]bool) error {
	node, err := e.cache.Parse(text)
	if err != nil {
		return err
	}
	for _, fn := range Functions(node) {
		if _, ok := scope.Function(fn); !ok && !IsBuiltin(fn) {
			return errors.NewNameErrorWithSuggestions("Validate", fn, scope.Names())
		}
	}
	for _, name := range Identifiers(node) {
		if arr, ok := scope.Column(name, 0, 0); ok {
			arr.Release()
			continue
		}
		if _, ok := scope.Variable(name); ok {
			continue
		}
		formula, ok := scope.Virtual(name)
		if !ok {
			return errors.NewNameErrorWithSuggestions("Validate", name, scope.Names())
		}
		if active[name] {
			return errors.NewCycleError("Validate", []string{name, name})
		}
		active[name] = true
		err := e.validate(scope, formula, active)
		delete(active, name)
		if err != nil {
			return err
		}
	}
	return nil
}

type evalCall struct {
	ev         *Evaluator
	scope      Scope
	start, end int
	memo       map[string]Vector
	active     map[string]bool
}

func (c *evalCall) n() int { return c.end - c.start }

func (c *evalCall) eval(node Node) (Vector, error) {
	switch node := node.(type) {
	case *Number:
		return FloatScalar(node.Value), nil
	case *String:
		return StringScalar(node.Value), nil
	case *Bool:
		return BoolScalar(node.Value), nil
	case *Ident:
		return c.resolve(node.Name)
	case *Unary:
		x, err := c.eval(node.X)
		if err != nil {
			return Vector{}, err
		}
		return unary(node.Op, x)
	case *Binary:
		left, err := c.eval(node.Left)
		if err != nil {
			return Vector{}, err
		}
		right, err := c.eval(node.Right)
		if err != nil {
			return Vector{}, err
		}
		out, err := binary(node.Op, left, right, c.n())
		if err != nil {
			return Vector{}, errors.NewInvalidInputError("Evaluate", fmt.Sprintf("%s: %v", node, err))
		}
		return out, nil
	case *Call:
		return c.call(node)
	default:
		return Vector{}, fmt.Errorf("unknown node %T", node)
	}
}

func (c *evalCall) resolve(name string) (Vector, error) {
	if arr, ok := c.scope.Column(name, c.start, c.end); ok {
		defer arr.Release()
		v, err := FromArrow(arr)
		if err != nil {
			return Vector{}, errors.NewInvalidInputError("Evaluate", fmt.Sprintf("column %s: %v", name, err))
		}
		return v, nil
	}
	if value, ok := c.scope.Variable(name); ok {
		return FloatScalar(value), nil
	}
	formula, ok := c.scope.Virtual(name)
	if !ok {
		return Vector{}, errors.NewNameErrorWithSuggestions("Evaluate", name, c.scope.Names())
	}
	if v, ok := c.memo[name]; ok {
		return v, nil
	}
	if c.active[name] {
		return Vector{}, errors.NewCycleError("Evaluate", []string{name, name})
	}

	node, err := c.ev.cache.Parse(formula)
	if err != nil {
		return Vector{}, err
	}
	c.active[name] = true
	v, err := c.eval(node)
	delete(c.active, name)
	if err != nil {
		return Vector{}, err
	}
	c.memo[name] = v
	return v, nil
}

func (c *evalCall) call(node *Call) (Vector, error) {
	args := make([]Vector, len(node.Args))
	for i, a := range node.Args {
		v, err := c.eval(a)
		if err != nil {
			return Vector{}, err
		}
		args[i] = v
	}

	if fn, ok := c.scope.Function(node.Func); ok {
		return c.callUser(node, fn, args)
	}

	b, ok := builtins[node.Func]
	if !ok {
		err := errors.NewNameErrorWithSuggestions("Evaluate", node.Func, c.scope.Names())
		if arr, isCol := c.scope.Column(node.Func, 0, 0); isCol {
			arr.Release()
			err = err.WithHint("a column is not callable")
		}
		return Vector{}, err
	}
	if b.arity != len(args) {
		return Vector{}, errors.NewInvalidInputError("Evaluate",
			fmt.Sprintf("%s takes %d arguments, got %d", node.Func, b.arity, len(args)))
	}
	out, err := b.call(args, c.n())
	if err != nil {
		return Vector{}, errors.NewInvalidInputError("Evaluate", fmt.Sprintf("%s: %v", node.Func, err))
	}
	return out, nil
}

func (c *evalCall) callUser(node *Call, fn Function, args []Vector) (Vector, error) {
	if a := fn.Arity(); a >= 0 && a != len(args) {
		return Vector{}, errors.NewInvalidInputError("Evaluate",
			fmt.Sprintf("%s takes %d arguments, got %d", node.Func, a, len(args)))
	}

	n := c.n()
	arrays := make([]arrow.Array, len(args))
	for i, a := range args {
		arrays[i] = a.ToArrow(c.ev.mem, n)
	}
	defer func() {
		for _, a := range arrays {
			a.Release()
		}
	}()

	res, err := fn.Call(arrays)
	if err != nil {
		return Vector{}, &errors.EngineError{Op: "Evaluate", Name: node.Func, Kind: errors.KindInvalidInput, Message: "function call failed", Cause: err}
	}
	defer res.Release()
	if res.Len() != n {
		return Vector{}, errors.NewShapeMismatchError("Evaluate", node.Func, n, res.Len())
	}
	return FromArrow(res)
}

func unary(op UnaryOp, x Vector) (Vector, error) {
	if x.Kind == KindString {
		return Vector{}, errors.NewInvalidInputError("Evaluate", "unary operator on string values")
	}
	out := Vector{Valid: x.Valid, Scalar: x.Scalar}
	size := x.Len()

	switch op {
	case UnaryNot:
		out.Kind, out.Bools = KindBool, make([]bool, size)
		for i := range out.Bools {
			out.Bools[i] = !x.Truth(i)
		}
	case UnaryInvert:
		if x.Kind == KindBool {
			out.Kind, out.Bools = KindBool, make([]bool, size)
			for i := range out.Bools {
				out.Bools[i] = !x.Bools[i]
			}
			return out, nil
		}
		out.Kind, out.Floats = KindFloat, make([]float64, size)
		for i := range out.Floats {
			out.Floats[i] = float64(^int64(x.Float(i)))
		}
	case UnaryNeg, UnaryPos:
		sign := 1.0
		if op == UnaryNeg {
			sign = -1
		}
		out.Kind, out.Floats = KindFloat, make([]float64, size)
		for i := range out.Floats {
			out.Floats[i] = sign * x.Float(i)
		}
	}
	return out, nil
}

var errStringOperand = stderrors.New("operator not supported for string values")

func binary(op BinaryOp, l, r Vector, n int) (Vector, error) {
	scalar := l.Scalar && r.Scalar
	size := n
	if scalar {
		size = 1
	}
	valid := combineValid(size, l, r)
	if scalar && valid != nil {
		valid = []bool{l.IsValid(0) && r.IsValid(0)}
	}

	if l.Kind == KindString || r.Kind == KindString {
		return compareStrings(op, l, r, size, valid, scalar)
	}

	switch {
	case op.isComparison():
		out := Vector{Kind: KindBool, Bools: make([]bool, size), Valid: valid, Scalar: scalar}
		for i := range out.Bools {
			out.Bools[i] = compare(op, l.Float(i), r.Float(i))
		}
		return out, nil

	case op == OpAnd || op == OpOr || (l.Kind == KindBool && r.Kind == KindBool && (op == OpBitAnd || op == OpBitOr || op == OpBitXor)):
		out := Vector{Kind: KindBool, Bools: make([]bool, size), Valid: valid, Scalar: scalar}
		for i := range out.Bools {
			a, b := l.Truth(i), r.Truth(i)
			switch op {
			case OpAnd, OpBitAnd:
				out.Bools[i] = a && b
			case OpOr, OpBitOr:
				out.Bools[i] = a || b
			default:
				out.Bools[i] = a != b
			}
		}
		return out, nil
	}

	out := Vector{Kind: KindFloat, Floats: make([]float64, size), Valid: valid, Scalar: scalar}
	for i := range out.Floats {
		out.Floats[i] = arith(op, l.Float(i), r.Float(i))
	}
	return out, nil
}

func compare(op BinaryOp, a, b float64) bool {
	//nolint:exhaustive // comparisons only
	switch op {
	case OpEq:
		return a == b
	case OpNe:
		return a != b
	case OpLt:
		return a < b
	case OpLe:
		return a <= b
	case OpGt:
		return a > b
	default:
		return a >= b
	}
}

func arith(op BinaryOp, a, b float64) float64 {
	//nolint:exhaustive // arithmetic and bitwise only
	switch op {
	case OpAdd:
		return a + b
	case OpSub:
		return a - b
	case OpMul:
		return a * b
	case OpDiv:
		return a / b
	case OpMod:
		// floored modulo: the result takes the divisor's sign
		m := math.Mod(a, b)
		if m != 0 && (m < 0) != (b < 0) {
			m += b
		}
		return m
	case OpPow:
		return math.Pow(a, b)
	case OpBitAnd:
		return float64(int64(a) & int64(b))
	case OpBitOr:
		return float64(int64(a) | int64(b))
	default:
		return float64(int64(a) ^ int64(b))
	}
}

func compareStrings(op BinaryOp, l, r Vector, size int, valid []bool, scalar bool) (Vector, error) {
	if l.Kind != KindString || r.Kind != KindString || !op.isComparison() {
		return Vector{}, errStringOperand
	}
	out := Vector{Kind: KindBool, Bools: make([]bool, size), Valid: valid, Scalar: scalar}
	for i := range out.Bools {
		a, b := l.str(i), r.str(i)
		//nolint:exhaustive // comparisons only
		switch op {
		case OpEq:
			out.Bools[i] = a == b
		case OpNe:
			out.Bools[i] = a != b
		case OpLt:
			out.Bools[i] = a < b
		case OpLe:
			out.Bools[i] = a <= b
		case OpGt:
			out.Bools[i] = a > b
		default:
			out.Bools[i] = a >= b
		}
	}
	return out, nil
}
