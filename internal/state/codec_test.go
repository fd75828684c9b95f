package state

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errors "github.com/paveg/colstat/internal/errors"
)

type doc struct {
	Name      string                    `json:"name" yaml:"name"`
	Variables map[string]float64        `json:"variables" yaml:"variables"`
	Nested    map[string]map[string]any `json:"nested" yaml:"nested"`
}

func sample() doc {
	return doc{
		Name:      "example",
		Variables: map[string]float64{"t": 1.5},
		Nested: map[string]map[string]any{
			"default": {"type": "expression", "expression": "x > 5", "mode": "replace"},
		},
	}
}

func TestFormatFor(t *testing.T) {
	tests := []struct {
		path       string
		format     Format
		compressed bool
	}{
		{"state.json", JSON, false},
		{"state.yaml", YAML, false},
		{"state.YML", YAML, false},
		{"dir/state.json.zst", JSON, true},
		{"state.yaml.zst", YAML, true},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			format, compressed, err := FormatFor(tt.path)
			require.NoError(t, err)
			assert.Equal(t, tt.format, format)
			assert.Equal(t, tt.compressed, compressed)
		})
	}

	_, _, err := FormatFor("state.txt")
	assert.ErrorIs(t, err, errors.ErrInvalidInput)
}

func TestEncodeDecode(t *testing.T) {
	for _, format := range []Format{YAML, JSON} {
		for _, compress := range []bool{false, true} {
			t.Run(format.String(), func(t *testing.T) {
				var buf bytes.Buffer
				require.NoError(t, Encode(&buf, sample(), format, compress))

				var got doc
				require.NoError(t, Decode(&buf, &got, format, compress))
				assert.Equal(t, "example", got.Name)
				assert.Equal(t, 1.5, got.Variables["t"])
				assert.Equal(t, "x > 5", got.Nested["default"]["expression"])
			})
		}
	}
}

func TestSaveLoad(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"s.json", "s.yaml", "s.json.zst", "s.yml.zst"} {
		path := filepath.Join(dir, name)
		require.NoError(t, Save(path, sample()))

		var got doc
		require.NoError(t, Load(path, &got))
		assert.Equal(t, sample().Variables, got.Variables, name)
	}

	var got doc
	assert.Error(t, Load(filepath.Join(dir, "missing.json"), &got))
}

func TestDecodeCorrupt(t *testing.T) {
	var got doc
	err := Decode(bytes.NewBufferString("{not json"), &got, JSON, false)
	assert.Error(t, err)
	err = Decode(bytes.NewBufferString("plain"), &got, YAML, true)
	assert.Error(t, err)
}
