package validation_test

import (
	"math"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errors "github.com/paveg/colstat/internal/errors"
	"github.com/paveg/colstat/internal/validation"
)

// mockColumns implements ColumnProvider for testing.
type mockColumns []string

func (m mockColumns) HasColumn(name string) bool { return slices.Contains(m, name) }

func (m mockColumns) ColumnNames(bool, bool) []string { return m }

func TestColumnValidator(t *testing.T) {
	ds := mockColumns{"x", "y", "label"}

	t.Run("Valid columns", func(t *testing.T) {
		require.NoError(t, validation.ValidateColumns(ds, "SelectNonMissing", "x", "label"))
	})

	t.Run("Unknown column", func(t *testing.T) {
		err := validation.NewColumnValidator(ds, "SelectNonMissing", "x", "lable").Validate()
		require.Error(t, err)
		assert.ErrorIs(t, err, errors.ErrName)

		var engErr *errors.EngineError
		require.ErrorAs(t, err, &engErr)
		assert.Equal(t, "SelectNonMissing", engErr.Op)
		assert.Contains(t, err.Error(), "label")
	})
}

func TestLengthValidator(t *testing.T) {
	require.NoError(t, validation.ValidateLength(5, 5, "AddColumn", "x"))

	err := validation.ValidateLength(5, 3, "AddColumn", "x")
	assert.ErrorIs(t, err, errors.ErrShapeMismatch)
}

func TestIndexValidator(t *testing.T) {
	tests := []struct {
		name    string
		index   int
		length  int
		wantErr bool
	}{
		{"first", 0, 3, false},
		{"last", 2, 3, false},
		{"negative", -1, 3, true},
		{"past end", 3, 3, true},
		{"empty", 0, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validation.ValidateIndex(tt.index, tt.length, "SetCurrentRow")
			if tt.wantErr {
				assert.ErrorIs(t, err, errors.ErrInvalidInput)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRangeValidator(t *testing.T) {
	tests := []struct {
		name       string
		start, end int
		allowEmpty bool
		want       error
	}{
		{"full", 0, 10, false, nil},
		{"empty allowed", 4, 4, true, nil},
		{"empty rejected", 4, 4, false, errors.ErrInvalidInput},
		{"reversed", 5, 4, true, errors.ErrInvalidInput},
		{"negative start", -1, 4, true, errors.ErrInvalidInput},
		{"past end", 0, 11, true, errors.ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validation.ValidateRange(tt.start, tt.end, 10, tt.allowEmpty, "Evaluate")
			if tt.want == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.want)
			}
		})
	}
}

func TestFractionValidator(t *testing.T) {
	for _, f := range []float64{0.01, 0.5, 1} {
		assert.NoError(t, validation.ValidateFraction(f, "SetActiveFraction"))
	}
	for _, f := range []float64{0, -0.5, 1.5, math.NaN()} {
		assert.ErrorIs(t, validation.ValidateFraction(f, "SetActiveFraction"), errors.ErrInvalidInput)
	}
}

func TestCompoundValidator(t *testing.T) {
	ds := mockColumns{"x"}

	ok := validation.NewCompoundValidator(
		validation.NewColumnValidator(ds, "op", "x"),
		validation.NewIndexValidator(0, 1, "op"),
	)
	require.NoError(t, ok.Validate())

	first := validation.NewCompoundValidator(
		validation.NewIndexValidator(5, 1, "op"),
		validation.NewColumnValidator(ds, "op", "nope"),
	)
	assert.ErrorIs(t, first.Validate(), errors.ErrInvalidInput)
}
