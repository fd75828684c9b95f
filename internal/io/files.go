package io

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/paveg/colstat/internal/column"
	"github.com/paveg/colstat/internal/dataset"
	errors "github.com/paveg/colstat/internal/errors"
)

// ReadFile reads a .csv, .json, .jsonl/.ndjson or .parquet file with
// default options.
func ReadFile(path string, mem memory.Allocator) ([]*column.Column, error) {
	f, err := os.Open(path) //nolint:gosec // path is chosen by the caller
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	var reader DataReader
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".csv":
		reader = NewCSVReader(f, DefaultCSVOptions(), mem)
	case ".json":
		reader = NewJSONReader(f, DefaultJSONOptions(), mem)
	case ".jsonl", ".ndjson":
		reader = NewJSONReader(f, JSONOptions{Format: JSONLines}, mem)
	case ".parquet":
		reader = NewParquetReader(f, DefaultParquetOptions(), mem)
	default:
		return nil, errors.NewInvalidInputError("ReadFile", fmt.Sprintf("unsupported file type %q", ext))
	}
	return reader.Read()
}

// WriteFile writes columns to path in the format its extension names.
func WriteFile(path string, columns []*column.Column) error {
	return create(path, func(w DataWriter) error { return w.Write(columns) })
}

// ExportFile is Export to a file whose extension names the format.
func ExportFile(ds *dataset.Dataset, path string, expressions []string, selectionKey string) error {
	return create(path, func(w DataWriter) error { return Export(ds, w, expressions, nil, selectionKey) })
}

func create(path string, fn func(DataWriter) error) (err error) {
	ext := strings.ToLower(filepath.Ext(path))
	if !slices.Contains([]string{".csv", ".json", ".jsonl", ".ndjson", ".parquet"}, ext) {
		return errors.NewInvalidInputError("WriteFile", fmt.Sprintf("unsupported file type %q", ext))
	}
	f, err := os.Create(path) //nolint:gosec // path is chosen by the caller
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	var writer DataWriter
	switch ext {
	case ".csv":
		writer = NewCSVWriter(f, DefaultCSVOptions())
	case ".json":
		writer = NewJSONWriter(f, DefaultJSONOptions())
	case ".jsonl", ".ndjson":
		writer = NewJSONWriter(f, JSONOptions{Format: JSONLines})
	default:
		writer = NewParquetWriter(f, DefaultParquetOptions())
	}
	return fn(writer)
}

// Open reads path into a new dataset.
func Open(path string, opts dataset.Options) (*dataset.Dataset, error) {
	if opts.Name == "" {
		opts.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	columns, err := ReadFile(path, opts.Allocator)
	if err != nil {
		return nil, err
	}
	ds, err := dataset.FromColumns(opts, columns...)
	if err != nil {
		releaseAll(columns)
		return nil, err
	}
	return ds, nil
}

// Export evaluates expressions over the filtered rows of ds that pass the
// selection key and writes them with w. Columns are named after their
// expressions unless names is given.
func Export(ds *dataset.Dataset, w DataWriter, expressions, names []string, selectionKey string) error {
	if names != nil && len(names) != len(expressions) {
		return errors.NewShapeMismatchError("Export", "names", len(expressions), len(names))
	}
	n, err := ds.Length()
	if err != nil {
		return err
	}

	columns := make([]*column.Column, 0, len(expressions))
	defer func() { releaseAll(columns) }()
	for i, x := range expressions {
		arr, err := ds.EvaluateArray(x, 0, n, selectionKey)
		if err != nil {
			return fmt.Errorf("evaluating %s: %w", x, err)
		}
		name := x
		if names != nil {
			name = names[i]
		}
		c, err := column.FromArray(name, arr)
		arr.Release()
		if err != nil {
			return err
		}
		columns = append(columns, c)
	}
	return w.Write(columns)
}
