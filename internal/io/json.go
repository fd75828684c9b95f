package io

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"

	"github.com/paveg/colstat/internal/column"
)

// Read reads JSON rows into columns sorted by key. Absent keys and nulls
// are missing.
func (r *JSONReader) Read() ([]*column.Column, error) {
	var (
		records []map[string]any
		err     error
	)
	switch r.options.Format {
	case JSONArray:
		records, err = r.readArray()
	case JSONLines:
		records, err = r.readLines()
	default:
		return nil, fmt.Errorf("unsupported JSON format: %d", r.options.Format)
	}
	if err != nil {
		return nil, err
	}
	return r.columns(records)
}

func (r *JSONReader) readArray() ([]map[string]any, error) {
	dec := json.NewDecoder(r.reader)
	dec.UseNumber()
	var records []map[string]any
	if err := dec.Decode(&records); err != nil {
		return nil, fmt.Errorf("unmarshaling JSON array: %w", err)
	}
	if r.options.MaxRecords > 0 && len(records) > r.options.MaxRecords {
		records = records[:r.options.MaxRecords]
	}
	return records, nil
}

func (r *JSONReader) readLines() ([]map[string]any, error) {
	scanner := bufio.NewScanner(r.reader)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	var records []map[string]any
	for lineNum := 1; scanner.Scan(); lineNum++ {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		dec := json.NewDecoder(strings.NewReader(line))
		dec.UseNumber()
		var record map[string]any
		if err := dec.Decode(&record); err != nil {
			return nil, fmt.Errorf("unmarshaling JSON line %d: %w", lineNum, err)
		}
		records = append(records, record)
		if r.options.MaxRecords > 0 && len(records) >= r.options.MaxRecords {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning JSON lines: %w", err)
	}
	return records, nil
}

func (r *JSONReader) columns(records []map[string]any) ([]*column.Column, error) {
	if len(records) == 0 {
		return nil, nil
	}
	var names []string
	seen := make(map[string]bool)
	for _, record := range records {
		for key := range record {
			if !seen[key] {
				seen[key] = true
				names = append(names, key)
			}
		}
	}
	sort.Strings(names)

	out := make([]*column.Column, 0, len(names))
	for _, name := range names {
		cells := make([]string, len(records))
		present := make([]bool, len(records))
		for i, record := range records {
			cells[i], present[i] = jsonCell(record[name])
		}
		c, err := buildColumn(name, cells, present, r.mem)
		if err != nil {
			releaseAll(out)
			return nil, fmt.Errorf("creating column %s: %w", name, err)
		}
		out = append(out, c)
	}
	return out, nil
}

func jsonCell(v any) (string, bool) {
	switch x := v.(type) {
	case nil:
		return "", false
	case string:
		return x, true
	case json.Number:
		return x.String(), true
	case bool:
		return strconv.FormatBool(x), true
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x), true
		}
		return string(b), true
	}
}

// Write writes the columns as JSON rows. Missing values and NaN are null.
func (w *JSONWriter) Write(columns []*column.Column) error {
	n, err := checkLengths(columns)
	if err != nil {
		return err
	}
	bw := bufio.NewWriter(w.writer)
	if w.options.Format == JSONArray {
		bw.WriteByte('[')
	}
	for i := 0; i < n; i++ {
		if i > 0 && w.options.Format == JSONArray {
			bw.WriteByte(',')
		}
		row, err := jsonRow(columns, i)
		if err != nil {
			return fmt.Errorf("encoding row %d: %w", i, err)
		}
		bw.Write(row)
		if w.options.Format == JSONLines {
			bw.WriteByte('\n')
		}
	}
	if w.options.Format == JSONArray {
		bw.WriteString("]\n")
	}
	return bw.Flush()
}

// jsonRow encodes one row as an object with keys in column order.
func jsonRow(columns []*column.Column, i int) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for j, c := range columns {
		if j > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(c.Name())
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		value, err := json.Marshal(jsonValue(c.Array(), i))
		if err != nil {
			return nil, err
		}
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func jsonValue(arr arrow.Array, i int) any {
	if arr.IsNull(i) {
		return nil
	}
	switch a := arr.(type) {
	case *array.Float64:
		if v := a.Value(i); !math.IsNaN(v) && !math.IsInf(v, 0) {
			return v
		}
		return nil
	case *array.Int64:
		return a.Value(i)
	case *array.Boolean:
		return a.Value(i)
	default:
		s, _ := cell(arr, i)
		return s
	}
}
