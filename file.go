package terrain

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/gzip"
)

func isGzipped(data []byte) bool {
	return len(data) >= 2 && data[0] == 0x1f && data[1] == 0x8b
}

// ReadTile reads a whole tile body and decodes it. Gzip compressed bodies, as
// served by most terrain servers, are inflated first.
func ReadTile(r io.Reader, opts DecodeOptions) (*QuantizedMeshTile, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading tile: %w", err)
	}
	if isGzipped(data) {
		zr, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("opening gzip stream: %w", err)
		}
		defer zr.Close()
		if data, err = io.ReadAll(zr); err != nil {
			return nil, fmt.Errorf("inflating tile: %w", err)
		}
	}
	return DecodeWithOptions(data, opts)
}

func ReadTileFile(path string, opts DecodeOptions) (*QuantizedMeshTile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	t, err := ReadTile(f, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// WriteTileFile encodes the tile to path, gzip compressed when gzipped is set.
func WriteTileFile(path string, t *QuantizedMeshTile, gzipped bool) error {
	data, err := Encode(t)
	if err != nil {
		return err
	}
	if gzipped {
		var buf bytes.Buffer
		zw := gzip.NewWriter(&buf)
		if _, err := zw.Write(data); err != nil {
			return err
		}
		if err := zw.Close(); err != nil {
			return err
		}
		data = buf.Bytes()
	}
	return os.WriteFile(path, data, 0644)
}
