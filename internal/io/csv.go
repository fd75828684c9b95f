package io

import (
	"encoding/csv"
	"fmt"
	"slices"

	"github.com/paveg/colstat/internal/column"
)

// Read reads CSV data into columns. Empty cells and NullValues are missing.
func (r *CSVReader) Read() ([]*column.Column, error) {
	csvReader := csv.NewReader(r.reader)
	csvReader.Comma = r.options.Delimiter
	csvReader.Comment = r.options.Comment
	csvReader.TrimLeadingSpace = r.options.SkipInitialSpace
	csvReader.FieldsPerRecord = -1

	records, err := csvReader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading CSV: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	var headers []string
	rows := records
	if r.options.Header {
		headers, rows = records[0], records[1:]
	} else {
		headers = make([]string, len(records[0]))
		for i := range headers {
			headers[i] = fmt.Sprintf("column_%d", i)
		}
	}

	out := make([]*column.Column, 0, len(headers))
	for i, header := range headers {
		cells := make([]string, len(rows))
		present := make([]bool, len(rows))
		for j, row := range rows {
			if i < len(row) {
				cells[j] = row[i]
				present[j] = row[i] != "" && !slices.Contains(r.options.NullValues, row[i])
			}
		}
		c, err := buildColumn(header, cells, present, r.mem)
		if err != nil {
			releaseAll(out)
			return nil, fmt.Errorf("creating column %s: %w", header, err)
		}
		out = append(out, c)
	}
	return out, nil
}

// Write writes the columns as CSV. Missing rows are empty cells.
func (w *CSVWriter) Write(columns []*column.Column) error {
	n, err := checkLengths(columns)
	if err != nil {
		return err
	}
	csvWriter := csv.NewWriter(w.writer)
	csvWriter.Comma = w.options.Delimiter

	if w.options.Header {
		headers := make([]string, len(columns))
		for i, c := range columns {
			headers[i] = c.Name()
		}
		if err := csvWriter.Write(headers); err != nil {
			return fmt.Errorf("writing headers: %w", err)
		}
	}

	row := make([]string, len(columns))
	for i := 0; i < n; i++ {
		for j, c := range columns {
			row[j], _ = cell(c.Array(), i)
		}
		if err := csvWriter.Write(row); err != nil {
			return fmt.Errorf("writing row %d: %w", i, err)
		}
	}
	csvWriter.Flush()
	return csvWriter.Error()
}

func releaseAll(columns []*column.Column) {
	for _, c := range columns {
		c.Release()
	}
}
