package io

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/file"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"

	"github.com/paveg/colstat/internal/column"
)

// Read reads Parquet data into columns. Multi-chunk columns are
// concatenated.
func (r *ParquetReader) Read() ([]*column.Column, error) {
	data, err := io.ReadAll(r.reader)
	if err != nil {
		return nil, fmt.Errorf("reading data: %w", err)
	}

	pqReader, err := file.NewParquetReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("creating parquet file reader: %w", err)
	}
	defer pqReader.Close()

	arrowReader, err := pqarrow.NewFileReader(pqReader, pqarrow.ArrowReadProperties{}, r.mem)
	if err != nil {
		return nil, fmt.Errorf("creating arrow file reader: %w", err)
	}
	table, err := arrowReader.ReadTable(context.Background())
	if err != nil {
		return nil, fmt.Errorf("reading table: %w", err)
	}
	defer table.Release()

	out := make([]*column.Column, 0, table.NumCols())
	for i := range int(table.NumCols()) {
		c, err := r.column(table.Column(i))
		if err != nil {
			releaseAll(out)
			return nil, fmt.Errorf("converting column %s: %w", table.Column(i).Name(), err)
		}
		out = append(out, c)
	}
	return out, nil
}

func (r *ParquetReader) column(col *arrow.Column) (*column.Column, error) {
	chunks := col.Data().Chunks()
	var arr arrow.Array
	switch len(chunks) {
	case 0:
		arr = array.MakeArrayOfNull(r.mem, col.DataType(), 0)
	case 1:
		arr = chunks[0]
		arr.Retain()
	default:
		var err error
		arr, err = array.Concatenate(chunks, r.mem)
		if err != nil {
			return nil, err
		}
	}
	defer arr.Release()
	return column.FromArray(col.Name(), arr)
}

var codecs = map[string]compress.Compression{
	"snappy":       compress.Codecs.Snappy,
	"gzip":         compress.Codecs.Gzip,
	"lz4":          compress.Codecs.Lz4Raw,
	"zstd":         compress.Codecs.Zstd,
	"uncompressed": compress.Codecs.Uncompressed,
}

// Write writes the columns as one Parquet file. Missing rows are nulls.
func (w *ParquetWriter) Write(columns []*column.Column) error {
	n, err := checkLengths(columns)
	if err != nil {
		return err
	}
	compression, ok := codecs[w.options.Compression]
	if !ok {
		return fmt.Errorf("unsupported parquet compression %q", w.options.Compression)
	}
	batch := w.options.BatchSize
	if batch <= 0 {
		batch = DefaultBatchSize
	}

	fields := make([]arrow.Field, len(columns))
	cols := make([]arrow.Column, len(columns))
	for i, c := range columns {
		fields[i] = arrow.Field{Name: c.Name(), Type: c.DataType(), Nullable: true}
		chunked := arrow.NewChunked(c.DataType(), []arrow.Array{c.Array()})
		cols[i] = *arrow.NewColumn(fields[i], chunked)
		chunked.Release()
	}
	schema := arrow.NewSchema(fields, nil)
	table := array.NewTable(schema, cols, int64(n))
	defer table.Release()
	for i := range cols {
		cols[i].Release()
	}

	props := parquet.NewWriterProperties(
		parquet.WithCompression(compression),
		parquet.WithBatchSize(int64(batch)),
	)
	writer, err := pqarrow.NewFileWriter(schema, sinkOnly{w.writer}, props, pqarrow.DefaultWriterProps())
	if err != nil {
		return fmt.Errorf("creating file writer: %w", err)
	}
	if err := writer.WriteTable(table, int64(batch)); err != nil {
		writer.Close()
		return fmt.Errorf("writing table: %w", err)
	}
	return writer.Close()
}

// sinkOnly hides Close from pqarrow, which closes a sink that has one.
// The caller owns the underlying writer.
type sinkOnly struct{ io.Writer }
