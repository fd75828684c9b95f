package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCSV(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "points.csv")
	data := "x,y,label\n0,0,a\n1,1,b\n2,4,c\n3,9,d\n4,16,e\n5,25,f\n6,36,g\n7,49,h\n8,64,i\n9,81,j\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestDescribe(t *testing.T) {
	path := writeCSV(t)

	out, err := run(t, "describe", path, "--json")
	require.NoError(t, err)
	var rows []summary
	require.NoError(t, json.Unmarshal([]byte(out), &rows))
	require.Len(t, rows, 2)
	assert.Equal(t, "x", rows[0].Column)
	assert.Equal(t, 10.0, rows[0].Count)
	assert.InDelta(t, 4.5, rows[0].Mean, 1e-12)
	assert.Equal(t, 81.0, rows[1].Max)

	out, err = run(t, "describe", path, "x * 2", "--filter", "x >= 5")
	require.NoError(t, err)
	assert.Contains(t, out, "x * 2")
	assert.Contains(t, out, "14")
}

func TestStat(t *testing.T) {
	path := writeCSV(t)

	out, err := run(t, "stat", path, "sum", "x", "--selection", "y > 10", "--json")
	require.NoError(t, err)
	var res struct {
		Shape  []int     `json:"shape"`
		Values []float64 `json:"values"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, []float64{39}, res.Values)

	out, err = run(t, "stat", path, "count", "x", "--binby", "x", "--shape", "2", "--limits", "0:10")
	require.NoError(t, err)
	assert.Contains(t, out, "[0]")
	assert.Contains(t, out, "[1]")

	out, err = run(t, "stat", path, "mean", "k * x", "--var", "k=2", "--json")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.InDelta(t, 9.0, res.Values[0], 1e-12)

	_, err = run(t, "stat", path, "mode", "x")
	assert.ErrorContains(t, err, "unknown statistic")
	_, err = run(t, "stat", path, "sum", "nope")
	assert.Error(t, err)
	_, err = run(t, "stat", path, "sum", "x", "--var", "k")
	assert.Error(t, err)
}

func TestHistogram(t *testing.T) {
	path := writeCSV(t)

	out, err := run(t, "histogram", path, "x", "--shape", "5", "--limits", "0:10", "--json")
	require.NoError(t, err)
	var bins []bin
	require.NoError(t, json.Unmarshal([]byte(out), &bins))
	require.Len(t, bins, 5)
	for _, b := range bins {
		assert.Equal(t, 2.0, b.Value)
	}
	assert.Equal(t, 8.0, bins[4].Lo)

	out, err = run(t, "histogram", path, "x", "--shape", "2", "--weight", "y", "--virtual", "big=y > 20", "--selection", "big")
	require.NoError(t, err)
	assert.Contains(t, out, "VALUE")
}

func TestExport(t *testing.T) {
	path := writeCSV(t)
	target := filepath.Join(t.TempDir(), "out.csv")

	out, err := run(t, "export", path, target, "--expr", "x,label", "--selection", "x > 7")
	require.NoError(t, err)
	assert.Contains(t, out, "wrote")

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "x,label\n8,i\n9,j\n", string(data))
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "Version:")
}

func TestParseLimitFlag(t *testing.T) {
	tests := []struct {
		in      string
		want    any
		wantErr bool
	}{
		{"minmax", "minmax", false},
		{"95%", "95%", false},
		{"-1:2.5", [2]float64{-1, 2.5}, false},
		{"a:1", nil, true},
		{"1:b", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseLimitFlag(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCellIndex(t *testing.T) {
	assert.Equal(t, "[1,2]", cellIndex([]int{2, 3}, 5))
	assert.Equal(t, "[0]", cellIndex([]int{4}, 0))
}
