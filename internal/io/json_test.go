package io_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paveg/colstat/internal/column"
	"github.com/paveg/colstat/internal/io"
)

func TestJSONReader(t *testing.T) {
	mem := memory.NewGoAllocator()

	t.Run("array", func(t *testing.T) {
		data := `[{"b": 1, "a": "x"}, {"b": 2.5, "a": "y", "c": true}, {"b": null}]`
		columns, err := io.NewJSONReader(strings.NewReader(data), io.DefaultJSONOptions(), mem).Read()
		require.NoError(t, err)
		defer release(columns)

		assert.Equal(t, []string{"a", "b", "c"}, names(columns))
		assert.Equal(t, arrow.FLOAT64, columns[1].DataType().ID())
		assert.Equal(t, 1, columns[1].Array().NullN())
		assert.Equal(t, arrow.BOOL, columns[2].DataType().ID())
		assert.Equal(t, 2, columns[2].Array().NullN())
	})

	t.Run("lines with limit", func(t *testing.T) {
		data := "{\"x\": 1}\n\n{\"x\": 2}\n{\"x\": 3}\n"
		opts := io.JSONOptions{Format: io.JSONLines, MaxRecords: 2}
		columns, err := io.NewJSONReader(strings.NewReader(data), opts, mem).Read()
		require.NoError(t, err)
		defer release(columns)

		require.Len(t, columns, 1)
		assert.Equal(t, 2, columns[0].Len())
		assert.Equal(t, int64(2), columns[0].Array().(*array.Int64).Value(1))
	})

	t.Run("bad line", func(t *testing.T) {
		opts := io.JSONOptions{Format: io.JSONLines}
		_, err := io.NewJSONReader(strings.NewReader("{\"x\": 1}\n{oops\n"), opts, mem).Read()
		assert.ErrorContains(t, err, "line 2")
	})

	t.Run("empty array", func(t *testing.T) {
		columns, err := io.NewJSONReader(strings.NewReader("[]"), io.DefaultJSONOptions(), mem).Read()
		require.NoError(t, err)
		assert.Empty(t, columns)
	})
}

func TestJSONWriter(t *testing.T) {
	mem := memory.NewGoAllocator()
	m, err := column.NewMasked("m", []float64{1.5, 0}, []bool{true, false}, mem)
	require.NoError(t, err)
	columns := []*column.Column{
		column.New("x", []int64{1, 2}, mem),
		m,
		column.New("ok", []bool{true, false}, mem),
	}
	defer release(columns)

	var buf bytes.Buffer
	require.NoError(t, io.NewJSONWriter(&buf, io.JSONOptions{Format: io.JSONLines}).Write(columns))
	assert.Equal(t, "{\"x\":1,\"m\":1.5,\"ok\":true}\n{\"x\":2,\"m\":null,\"ok\":false}\n", buf.String())

	buf.Reset()
	require.NoError(t, io.NewJSONWriter(&buf, io.DefaultJSONOptions()).Write(columns))
	back, err := io.NewJSONReader(&buf, io.DefaultJSONOptions(), mem).Read()
	require.NoError(t, err)
	defer release(back)
	assert.Equal(t, []string{"m", "ok", "x"}, names(back))
	assert.Equal(t, 1, back[0].Array().NullN())
}
