package errors_test

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/paveg/colstat/internal/errors"
	"github.com/stretchr/testify/assert"
)

func TestEngineError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *errors.EngineError
		expected string
	}{
		{
			name:     "Error with name",
			err:      &errors.EngineError{Op: "Evaluate", Name: "hoeba", Message: "name is not defined"},
			expected: "Evaluate failed on 'hoeba': name is not defined",
		},
		{
			name:     "Error without name",
			err:      &errors.EngineError{Op: "Execute", Message: "pass cancelled"},
			expected: "Execute failed: pass cancelled",
		},
		{
			name:     "Error with hint",
			err:      &errors.EngineError{Op: "Evaluate", Name: "xx", Message: "name is not defined", Hint: "did you mean 'x'?"},
			expected: "Evaluate failed on 'xx': name is not defined (Hint: did you mean 'x'?)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestEngineError_Unwrap(t *testing.T) {
	cause := stderrors.New("underlying error")
	err := errors.NewCancelledError("Execute", cause)

	assert.Equal(t, cause, err.Unwrap())
	assert.ErrorIs(t, err, cause)
}

func TestEngineError_IsMatchesKind(t *testing.T) {
	err := errors.NewNameError("Evaluate", "hoeba")
	wrapped := fmt.Errorf("count: %w", err)

	assert.ErrorIs(t, wrapped, errors.ErrName)
	assert.NotErrorIs(t, wrapped, errors.ErrSyntax)
	assert.ErrorIs(t, errors.NewSyntaxError("Parse", "x/", "unexpected end"), errors.ErrSyntax)
	assert.ErrorIs(t, errors.NewCycleError("AddVirtualColumn", []string{"a", "b", "a"}), errors.ErrSyntax)
	assert.ErrorIs(t, errors.NewConcurrentMutationError("AddColumn"), errors.ErrConcurrentMutation)
	assert.ErrorIs(t, errors.NewIndexError("SetCurrentRow", 30, 20), errors.ErrInvalidInput)
}

func TestEngineError_IsExact(t *testing.T) {
	err1 := errors.NewNameError("Evaluate", "a")
	err2 := errors.NewNameError("Evaluate", "a")
	err3 := errors.NewNameError("Evaluate", "b")

	assert.True(t, err1.Is(err2))
	assert.False(t, err1.Is(err3))
	assert.False(t, err1.Is(stderrors.New("different error")))
}

func TestNewNameErrorWithSuggestions(t *testing.T) {
	err := errors.NewNameErrorWithSuggestions("Evaluate", "xx", []string{"y", "x", "z"})
	assert.Equal(t, "did you mean 'x'?", err.Hint)

	err = errors.NewNameErrorWithSuggestions("Evaluate", "hoeba", []string{"x", "y"})
	assert.Empty(t, err.Hint)
}

func TestNewCycleError(t *testing.T) {
	err := errors.NewCycleError("AddVirtualColumn", []string{"a", "b", "a"})
	assert.Equal(t, "AddVirtualColumn failed on 'a': virtual column cycle: a -> b -> a", err.Error())
}

func TestWrapKeepsKind(t *testing.T) {
	err := errors.Wrap("Count", errors.NewShapeMismatchError("AddColumn", "x", 10, 3))
	assert.ErrorIs(t, err, errors.ErrShapeMismatch)
	assert.NoError(t, errors.Wrap("Count", nil))
}
