// Package expr parses and evaluates the formula language used for virtual
// columns, selections and statistic arguments.
package expr

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// NodeType represents the type of a parsed node
type NodeType int

const (
	NodeIdent NodeType = iota
	NodeNumber
	NodeString
	NodeBool
	NodeUnary
	NodeBinary
	NodeCall
)

// Node is an immutable parsed formula.
type Node interface {
	Type() NodeType
	String() string
}

// Ident references a column, variable or virtual column by name.
type Ident struct {
	Name string
}

func (n *Ident) Type() NodeType { return NodeIdent }
func (n *Ident) String() string { return n.Name }

// Number is a numeric literal.
type Number struct {
	Value float64
}

func (n *Number) Type() NodeType { return NodeNumber }
func (n *Number) String() string { return strconv.FormatFloat(n.Value, 'g', -1, 64) }

// String is a string literal.
type String struct {
	Value string
}

func (n *String) Type() NodeType { return NodeString }
func (n *String) String() string { return strconv.Quote(n.Value) }

// Bool is a True/False literal.
type Bool struct {
	Value bool
}

func (n *Bool) Type() NodeType { return NodeBool }
func (n *Bool) String() string {
	if n.Value {
		return "True"
	}
	return "False"
}

// UnaryOp represents unary operations
type UnaryOp int

const (
	UnaryNeg UnaryOp = iota
	UnaryPos
	UnaryInvert // ~
	UnaryNot    // not
)

// Unary applies a prefix operator.
type Unary struct {
	Op UnaryOp
	X  Node
}

func (n *Unary) Type() NodeType { return NodeUnary }
func (n *Unary) String() string {
	switch n.Op {
	case UnaryNeg:
		return fmt.Sprintf("(-%s)", n.X)
	case UnaryPos:
		return fmt.Sprintf("(+%s)", n.X)
	case UnaryInvert:
		return fmt.Sprintf("(~%s)", n.X)
	default:
		return fmt.Sprintf("(not %s)", n.X)
	}
}

// BinaryOp represents binary operations
type BinaryOp int

const (
	OpAdd BinaryOp = iota
	OpSub
	OpMul
	OpDiv
	OpMod
	OpPow
	OpEq
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
	OpBitAnd
	OpBitOr
	OpBitXor
	OpAnd
	OpOr
)

var binaryOpText = [...]string{
	OpAdd: "+", OpSub: "-", OpMul: "*", OpDiv: "/", OpMod: "%", OpPow: "**",
	OpEq: "==", OpNe: "!=", OpLt: "<", OpLe: "<=", OpGt: ">", OpGe: ">=",
	OpBitAnd: "&", OpBitOr: "|", OpBitXor: "^", OpAnd: "and", OpOr: "or",
}

func (op BinaryOp) String() string { return binaryOpText[op] }

func (op BinaryOp) isComparison() bool { return op >= OpEq && op <= OpGe }

// Binary applies an infix operator.
type Binary struct {
	Op          BinaryOp
	Left, Right Node
}

func (n *Binary) Type() NodeType { return NodeBinary }
func (n *Binary) String() string {
	return fmt.Sprintf("(%s %s %s)", n.Left, n.Op, n.Right)
}

// Call invokes a named function.
type Call struct {
	Func string
	Args []Node
}

func (n *Call) Type() NodeType { return NodeCall }
func (n *Call) String() string {
	args := make([]string, len(n.Args))
	for i, a := range n.Args {
		args[i] = a.String()
	}
	return fmt.Sprintf("%s(%s)", n.Func, strings.Join(args, ", "))
}

// Identifiers returns the distinct identifier names referenced by n, sorted.
// Function names are not included.
func Identifiers(n Node) []string {
	seen := map[string]struct{}{}
	walk(n, func(node Node) {
		if id, ok := node.(*Ident); ok {
			seen[id.Name] = struct{}{}
		}
	})
	return sortedKeys(seen)
}

// Functions returns the distinct function names called by n, sorted.
func Functions(n Node) []string {
	seen := map[string]struct{}{}
	walk(n, func(node Node) {
		if c, ok := node.(*Call); ok {
			seen[c.Func] = struct{}{}
		}
	})
	return sortedKeys(seen)
}

func walk(n Node, visit func(Node)) {
	visit(n)
	switch n := n.(type) {
	case *Unary:
		walk(n.X, visit)
	case *Binary:
		walk(n.Left, visit)
		walk(n.Right, visit)
	case *Call:
		for _, a := range n.Args {
			walk(a, visit)
		}
	}
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
