// Package errors provides standardized error types for engine operations.
// EngineError carries the operation, the offending name, a Kind used for
// errors.Is matching and an optional wrapped cause.
package errors

import (
	"fmt"
	"sort"
	"strings"
)

// Kind classifies an EngineError.
type Kind int

const (
	KindUnknown Kind = iota
	KindSyntax
	KindName
	KindShapeMismatch
	KindCancelled
	KindInvalidSelection
	KindConcurrentMutation
	KindInvalidInput
)

func (k Kind) String() string {
	switch k {
	case KindSyntax:
		return "syntax error"
	case KindName:
		return "name error"
	case KindShapeMismatch:
		return "shape mismatch"
	case KindCancelled:
		return "cancelled"
	case KindInvalidSelection:
		return "invalid selection"
	case KindConcurrentMutation:
		return "concurrent mutation"
	case KindInvalidInput:
		return "invalid input"
	default:
		return "error"
	}
}

// EngineError represents standardized errors across all engine operations
type EngineError struct {
	Op      string // Operation name (e.g., "Evaluate", "Select", "Count")
	Name    string // Column, variable, selection or function name if applicable
	Kind    Kind
	Message string // Human-readable error description
	Hint    string
	Cause   error // Underlying error cause
}

// Error implements the error interface
func (e *EngineError) Error() string {
	var b strings.Builder
	if e.Name != "" {
		fmt.Fprintf(&b, "%s failed on '%s': %s", e.Op, e.Name, e.Message)
	} else {
		fmt.Fprintf(&b, "%s failed: %s", e.Op, e.Message)
	}
	if e.Hint != "" {
		fmt.Fprintf(&b, " (Hint: %s)", e.Hint)
	}
	if e.Cause != nil {
		fmt.Fprintf(&b, ": %v", e.Cause)
	}
	return b.String()
}

// Unwrap returns the underlying cause for error wrapping support
func (e *EngineError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an EngineError of the same kind. Sentinels
// carry only a Kind, so errors.Is(err, ErrName) matches any name error.
func (e *EngineError) Is(target error) bool {
	t, ok := target.(*EngineError)
	if !ok {
		return false
	}
	if t.Op == "" && t.Name == "" && t.Message == "" {
		return e.Kind == t.Kind
	}
	return e.Kind == t.Kind && e.Op == t.Op && e.Name == t.Name && e.Message == t.Message
}

// WithHint returns a copy of the error carrying a hint for the caller.
func (e *EngineError) WithHint(hint string) *EngineError {
	c := *e
	c.Hint = hint
	return &c
}

// Common error constructors for consistent error creation

// NewSyntaxError creates an error for an expression that cannot be parsed.
func NewSyntaxError(op, text, message string) *EngineError {
	return &EngineError{
		Op:      op,
		Name:    text,
		Kind:    KindSyntax,
		Message: message,
	}
}

// NewNameError creates an error for an identifier that resolves to nothing.
func NewNameError(op, name string) *EngineError {
	return &EngineError{
		Op:      op,
		Name:    name,
		Kind:    KindName,
		Message: "name is not defined",
	}
}

// NewNameErrorWithSuggestions adds a "did you mean" hint picked from the
// available names by edit distance.
func NewNameErrorWithSuggestions(op, name string, available []string) *EngineError {
	err := NewNameError(op, name)
	if best := closest(name, available); best != "" {
		return err.WithHint(fmt.Sprintf("did you mean '%s'?", best))
	}
	return err
}

// NewCycleError creates an error for a virtual column that depends on itself.
func NewCycleError(op string, path []string) *EngineError {
	return &EngineError{
		Op:      op,
		Name:    path[0],
		Kind:    KindSyntax,
		Message: "virtual column cycle: " + strings.Join(path, " -> "),
	}
}

// NewShapeMismatchError creates an error for columns of differing length.
func NewShapeMismatchError(op, name string, want, got int) *EngineError {
	return &EngineError{
		Op:      op,
		Name:    name,
		Kind:    KindShapeMismatch,
		Message: fmt.Sprintf("expected length %d, got %d", want, got),
	}
}

// NewInvalidSelectionError creates an error for a bad selection reference.
func NewInvalidSelectionError(op, name, message string) *EngineError {
	return &EngineError{
		Op:      op,
		Name:    name,
		Kind:    KindInvalidSelection,
		Message: message,
	}
}

// NewInvalidInputError creates an error for invalid operation inputs
func NewInvalidInputError(op, message string) *EngineError {
	return &EngineError{
		Op:      op,
		Kind:    KindInvalidInput,
		Message: message,
	}
}

// NewIndexError creates an error for an out-of-range row index.
func NewIndexError(op string, index, length int) *EngineError {
	return &EngineError{
		Op:      op,
		Kind:    KindInvalidInput,
		Message: fmt.Sprintf("index %d out of range [0, %d)", index, length),
	}
}

// NewCancelledError creates an error for a pass stopped by an observer or
// by its context.
func NewCancelledError(op string, cause error) *EngineError {
	return &EngineError{
		Op:      op,
		Kind:    KindCancelled,
		Message: "pass cancelled",
		Cause:   cause,
	}
}

// NewConcurrentMutationError creates an error for a mutation attempted while
// a pass is reading the dataset.
func NewConcurrentMutationError(op string) *EngineError {
	return &EngineError{
		Op:      op,
		Kind:    KindConcurrentMutation,
		Message: "dataset cannot be modified while a pass is running",
	}
}

// Wrap attaches op context to cause keeping the cause's kind when it is an
// EngineError.
func Wrap(op string, cause error) error {
	if cause == nil {
		return nil
	}
	kind := KindUnknown
	if ee, ok := cause.(*EngineError); ok {
		kind = ee.Kind
	}
	return &EngineError{Op: op, Kind: kind, Message: "operation failed", Cause: cause}
}

// Predefined error variables for errors.Is matching by kind
var (
	ErrSyntax             = &EngineError{Kind: KindSyntax}
	ErrName               = &EngineError{Kind: KindName}
	ErrShapeMismatch      = &EngineError{Kind: KindShapeMismatch}
	ErrCancelled          = &EngineError{Kind: KindCancelled}
	ErrInvalidSelection   = &EngineError{Kind: KindInvalidSelection}
	ErrConcurrentMutation = &EngineError{Kind: KindConcurrentMutation}
	ErrInvalidInput       = &EngineError{Kind: KindInvalidInput}
)

func closest(name string, candidates []string) string {
	if len(candidates) == 0 {
		return ""
	}
	sorted := append([]string(nil), candidates...)
	sort.Strings(sorted)

	best, bestDist := "", len(name)/2+2
	for _, c := range sorted {
		if d := levenshtein(name, c); d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}

func levenshtein(a, b string) int {
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		cur[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			cur[j] = min(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}
