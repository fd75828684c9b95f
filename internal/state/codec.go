// Package state reads and writes dataset state documents as YAML or JSON,
// optionally zstd compressed.
package state

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
	"gopkg.in/yaml.v3"

	errors "github.com/paveg/colstat/internal/errors"
)

// Format is a document encoding.
type Format int

const (
	YAML Format = iota
	JSON
)

func (f Format) String() string {
	if f == JSON {
		return "json"
	}
	return "yaml"
}

// compressedExt marks zstd compressed files.
const compressedExt = ".zst"

// FormatFor derives the encoding from a file name: .json, .yaml or .yml,
// optionally followed by .zst.
func FormatFor(path string) (Format, bool, error) {
	compressed := strings.HasSuffix(path, compressedExt)
	base := strings.TrimSuffix(path, compressedExt)
	switch strings.ToLower(filepath.Ext(base)) {
	case ".json":
		return JSON, compressed, nil
	case ".yaml", ".yml":
		return YAML, compressed, nil
	default:
		return 0, false, errors.NewInvalidInputError("FormatFor",
			fmt.Sprintf("unsupported state file %q: use .json, .yaml or .yml, optionally with .zst", path))
	}
}

// Encode writes v to w.
func Encode(w io.Writer, v any, format Format, compress bool) (err error) {
	var data []byte
	switch format {
	case JSON:
		data, err = json.MarshalIndent(v, "", "  ")
	default:
		data, err = yaml.Marshal(v)
	}
	if err != nil {
		return fmt.Errorf("encoding %s state: %w", format, err)
	}
	if !compress {
		_, err = w.Write(data)
		return err
	}

	zw, err := zstd.NewWriter(w)
	if err != nil {
		return fmt.Errorf("creating zstd writer: %w", err)
	}
	if _, err := zw.Write(data); err != nil {
		zw.Close()
		return fmt.Errorf("compressing state: %w", err)
	}
	return zw.Close()
}

// Decode reads a document from r into v.
func Decode(r io.Reader, v any, format Format, compressed bool) error {
	if compressed {
		zr, err := zstd.NewReader(r)
		if err != nil {
			return fmt.Errorf("creating zstd reader: %w", err)
		}
		defer zr.Close()
		r = zr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("reading state: %w", err)
	}
	switch format {
	case JSON:
		err = json.Unmarshal(data, v)
	default:
		err = yaml.Unmarshal(data, v)
	}
	if err != nil {
		return fmt.Errorf("decoding %s state: %w", format, err)
	}
	return nil
}

// Save writes v to path in the format its name implies.
func Save(path string, v any) error {
	format, compressed, err := FormatFor(path)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := Encode(&buf, v, format, compressed); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0o644) //nolint:gosec // state files are not secret
}

// Load reads path into v in the format its name implies.
func Load(path string, v any) error {
	format, compressed, err := FormatFor(path)
	if err != nil {
		return err
	}
	f, err := os.Open(path) //nolint:gosec // path is chosen by the caller
	if err != nil {
		return fmt.Errorf("opening state file: %w", err)
	}
	defer f.Close()
	return Decode(f, v, format, compressed)
}
