package io_test

import (
	"bytes"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paveg/colstat/internal/column"
	"github.com/paveg/colstat/internal/io"
)

func parquetColumns(t *testing.T, mem memory.Allocator) []*column.Column {
	t.Helper()
	m, err := column.NewMasked("m", []float64{1, 2, 3, 4}, []bool{true, false, true, true}, mem)
	require.NoError(t, err)
	return []*column.Column{
		column.New("id", []int64{1, 2, 3, 4}, mem),
		m,
		column.New("name", []string{"a", "b", "c", "d"}, mem),
		column.New("flag", []bool{true, false, true, false}, mem),
	}
}

func TestParquetRoundTrip(t *testing.T) {
	mem := memory.NewGoAllocator()
	columns := parquetColumns(t, mem)
	defer release(columns)

	for _, compression := range []string{"snappy", "gzip", "zstd", "uncompressed"} {
		t.Run(compression, func(t *testing.T) {
			opts := io.DefaultParquetOptions()
			opts.Compression = compression
			opts.BatchSize = 3

			var buf bytes.Buffer
			require.NoError(t, io.NewParquetWriter(&buf, opts).Write(columns))

			back, err := io.NewParquetReader(bytes.NewReader(buf.Bytes()), opts, mem).Read()
			require.NoError(t, err)
			defer release(back)

			assert.Equal(t, names(columns), names(back))
			assert.Equal(t, 4, back[0].Len())
			assert.Equal(t, int64(4), back[0].Array().(*array.Int64).Value(3))
			assert.Equal(t, 1, back[1].Array().NullN())
			assert.Equal(t, arrow.STRING, back[2].DataType().ID())
			assert.Equal(t, "c", back[2].Array().(*array.String).Value(2))
		})
	}
}

type closingBuffer struct {
	bytes.Buffer
	closed bool
}

func (b *closingBuffer) Close() error {
	b.closed = true
	return nil
}

func TestParquetWriterLeavesSinkOpen(t *testing.T) {
	mem := memory.NewGoAllocator()
	columns := parquetColumns(t, mem)
	defer release(columns)

	var sink closingBuffer
	require.NoError(t, io.NewParquetWriter(&sink, io.DefaultParquetOptions()).Write(columns))
	assert.False(t, sink.closed)

	back, err := io.NewParquetReader(bytes.NewReader(sink.Bytes()), io.DefaultParquetOptions(), mem).Read()
	require.NoError(t, err)
	defer release(back)
	assert.Equal(t, names(columns), names(back))
}

func TestParquetErrors(t *testing.T) {
	mem := memory.NewGoAllocator()
	columns := parquetColumns(t, mem)
	defer release(columns)

	opts := io.DefaultParquetOptions()
	opts.Compression = "brotli-9000"
	assert.Error(t, io.NewParquetWriter(&bytes.Buffer{}, opts).Write(columns))

	_, err := io.NewParquetReader(bytes.NewReader([]byte("not parquet")), io.DefaultParquetOptions(), mem).Read()
	assert.Error(t, err)
}
