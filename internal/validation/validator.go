// Package validation provides reusable argument checks for dataset
// operations: column existence, length consistency, index and range
// bounds. Each failure maps to the engine error kind callers test for.
package validation

import (
	"fmt"
	"math"

	errors "github.com/paveg/colstat/internal/errors"
)

// Validator interface for input validation
type Validator interface {
	Validate() error
}

// ColumnProvider is anything that can report its column names.
type ColumnProvider interface {
	HasColumn(name string) bool
	ColumnNames(virtual, strings bool) []string
}

// ColumnValidator checks that columns exist.
type ColumnValidator struct {
	ds      ColumnProvider
	columns []string
	op      string
}

// NewColumnValidator creates a validator for column operations
func NewColumnValidator(ds ColumnProvider, op string, columns ...string) *ColumnValidator {
	return &ColumnValidator{ds: ds, columns: columns, op: op}
}

// Validate returns a name error with close matches for the first unknown
// column.
func (v *ColumnValidator) Validate() error {
	for _, column := range v.columns {
		if !v.ds.HasColumn(column) {
			return errors.NewNameErrorWithSuggestions(v.op, column, v.ds.ColumnNames(true, true))
		}
	}
	return nil
}

// LengthValidator checks that a column has the dataset's row count.
type LengthValidator struct {
	expected int
	actual   int
	op       string
	name     string
}

// NewLengthValidator creates a validator for length consistency
func NewLengthValidator(expected, actual int, op, name string) *LengthValidator {
	return &LengthValidator{expected: expected, actual: actual, op: op, name: name}
}

func (v *LengthValidator) Validate() error {
	if v.expected != v.actual {
		return errors.NewShapeMismatchError(v.op, v.name, v.expected, v.actual)
	}
	return nil
}

// IndexValidator checks 0 <= index < length.
type IndexValidator struct {
	index  int
	length int
	op     string
}

// NewIndexValidator creates a validator for index operations
func NewIndexValidator(index, length int, op string) *IndexValidator {
	return &IndexValidator{index: index, length: length, op: op}
}

func (v *IndexValidator) Validate() error {
	if v.index < 0 || v.index >= v.length {
		return errors.NewIndexError(v.op, v.index, v.length)
	}
	return nil
}

// RangeValidator checks a half-open row range [start, end) against a
// length. Empty ranges pass only when allowEmpty is set.
type RangeValidator struct {
	start, end int
	length     int
	allowEmpty bool
	op         string
}

// NewRangeValidator creates a validator for row ranges.
func NewRangeValidator(start, end, length int, allowEmpty bool, op string) *RangeValidator {
	return &RangeValidator{start: start, end: end, length: length, allowEmpty: allowEmpty, op: op}
}

func (v *RangeValidator) Validate() error {
	switch {
	case v.start < 0:
		return errors.NewIndexError(v.op, v.start, v.length)
	case v.end > v.length:
		return errors.NewIndexError(v.op, v.end, v.length)
	case v.start > v.end, v.start == v.end && !v.allowEmpty:
		return errors.NewInvalidInputError(v.op, fmt.Sprintf("empty or reversed range [%d, %d)", v.start, v.end))
	}
	return nil
}

// FractionValidator checks a fraction lies in (0, 1].
type FractionValidator struct {
	fraction float64
	op       string
}

// NewFractionValidator creates a validator for fractions of the row count.
func NewFractionValidator(fraction float64, op string) *FractionValidator {
	return &FractionValidator{fraction: fraction, op: op}
}

func (v *FractionValidator) Validate() error {
	if math.IsNaN(v.fraction) || v.fraction <= 0 || v.fraction > 1 {
		return errors.NewInvalidInputError(v.op, fmt.Sprintf("fraction must be in (0, 1], got %g", v.fraction))
	}
	return nil
}

// CompoundValidator combines multiple validators
type CompoundValidator struct {
	validators []Validator
}

// NewCompoundValidator creates a validator that checks multiple conditions
func NewCompoundValidator(validators ...Validator) *CompoundValidator {
	return &CompoundValidator{validators: validators}
}

// Validate runs all validators and returns the first error encountered
func (v *CompoundValidator) Validate() error {
	for _, validator := range v.validators {
		if err := validator.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Convenience validation functions

// ValidateColumns is a convenience function for column validation
func ValidateColumns(ds ColumnProvider, op string, columns ...string) error {
	return NewColumnValidator(ds, op, columns...).Validate()
}

// ValidateLength is a convenience function for length validation
func ValidateLength(expected, actual int, op, name string) error {
	return NewLengthValidator(expected, actual, op, name).Validate()
}

// ValidateIndex is a convenience function for index validation
func ValidateIndex(index, length int, op string) error {
	return NewIndexValidator(index, length, op).Validate()
}

// ValidateRange is a convenience function for row range validation.
func ValidateRange(start, end, length int, allowEmpty bool, op string) error {
	return NewRangeValidator(start, end, length, allowEmpty, op).Validate()
}

// ValidateFraction is a convenience function for fraction validation.
func ValidateFraction(fraction float64, op string) error {
	return NewFractionValidator(fraction, op).Validate()
}
