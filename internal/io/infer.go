package io

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/paveg/colstat/internal/column"
)

const (
	// Boolean string constants
	trueStr  = "true"
	falseStr = "false"
)

type cellType int

const (
	typeString cellType = iota
	typeBool
	typeInt64
	typeFloat64
)

// inferType returns the most specific type every present cell parses as.
// Columns with no present cell are strings.
func inferType(cells []string, present []bool) cellType {
	canBeInt, canBeFloat, canBeBool := true, true, true
	seen := false
	for i, value := range cells {
		if !present[i] {
			continue
		}
		seen = true
		if canBeBool {
			lower := strings.ToLower(value)
			canBeBool = lower == trueStr || lower == falseStr
		}
		if canBeInt {
			_, err := strconv.ParseInt(value, 10, 64)
			canBeInt = err == nil
		}
		if canBeFloat {
			_, err := strconv.ParseFloat(value, 64)
			canBeFloat = err == nil
		}
		if !canBeBool && !canBeFloat {
			break
		}
	}

	switch {
	case !seen:
		return typeString
	case canBeBool:
		return typeBool
	case canBeInt:
		return typeInt64
	case canBeFloat:
		return typeFloat64
	default:
		return typeString
	}
}

// buildColumn parses cells as the inferred type. Cells that are not
// present become missing rows.
func buildColumn(name string, cells []string, present []bool, mem memory.Allocator) (*column.Column, error) {
	allPresent := true
	for _, p := range present {
		allPresent = allPresent && p
	}
	valid := present
	if allPresent {
		valid = nil
	}

	switch inferType(cells, present) {
	case typeBool:
		values := make([]bool, len(cells))
		for i, v := range cells {
			values[i] = present[i] && strings.EqualFold(v, trueStr)
		}
		return masked(name, values, valid, mem)
	case typeInt64:
		values := make([]int64, len(cells))
		for i, v := range cells {
			if present[i] {
				values[i], _ = strconv.ParseInt(v, 10, 64)
			}
		}
		return masked(name, values, valid, mem)
	case typeFloat64:
		values := make([]float64, len(cells))
		for i, v := range cells {
			if present[i] {
				values[i], _ = strconv.ParseFloat(v, 64)
			}
		}
		return masked(name, values, valid, mem)
	default:
		return masked(name, cells, valid, mem)
	}
}

func masked[T column.Element](name string, values []T, valid []bool, mem memory.Allocator) (*column.Column, error) {
	if valid == nil {
		return column.New(name, values, mem), nil
	}
	return column.NewMasked(name, values, valid, mem)
}

// cell renders row i of arr; ok is false for a missing row.
func cell(arr arrow.Array, i int) (string, bool) {
	if arr.IsNull(i) {
		return "", false
	}
	switch a := arr.(type) {
	case *array.String:
		return a.Value(i), true
	case *array.Int64:
		return strconv.FormatInt(a.Value(i), 10), true
	case *array.Int32:
		return strconv.FormatInt(int64(a.Value(i)), 10), true
	case *array.Float64:
		return strconv.FormatFloat(a.Value(i), 'g', -1, 64), true
	case *array.Float32:
		return strconv.FormatFloat(float64(a.Value(i)), 'g', -1, 32), true
	case *array.Boolean:
		return strconv.FormatBool(a.Value(i)), true
	default:
		return a.ValueStr(i), true
	}
}

func checkLengths(columns []*column.Column) (int, error) {
	if len(columns) == 0 {
		return 0, nil
	}
	n := columns[0].Len()
	for _, c := range columns[1:] {
		if c.Len() != n {
			return 0, fmt.Errorf("column %q has %d rows, expected %d", c.Name(), c.Len(), n)
		}
	}
	return n, nil
}
