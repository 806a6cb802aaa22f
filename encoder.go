package terrain

import (
	"bytes"
	"encoding/binary"
	"io"
)

type countingWriter struct {
	w io.Writer
	n int64
}

func (cw *countingWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	cw.n += int64(n)
	return n, err
}

// Encode serializes the tile in quantized-mesh-1.0 layout.
func Encode(t *QuantizedMeshTile) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := t.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (t *QuantizedMeshTile) WriteTo(writer io.Writer) (int64, error) {
	cw := &countingWriter{w: writer}
	err := t.write(cw)
	return cw.n, err
}

func (t *QuantizedMeshTile) write(cw *countingWriter) error {
	if !t.Vertices.valid() {
		return ErrVertexLength
	}
	vertexCount := t.Vertices.VertexCount()
	width := indexWidth(vertexCount)

	runs := []Indices{t.Triangles, t.Edges.West, t.Edges.South, t.Edges.East, t.Edges.North}
	for _, ind := range runs {
		if ind != nil && ind.BytesPerIndex() != width {
			return ErrIndexWidth
		}
	}
	if indexCount(t.Triangles)%3 != 0 {
		return ErrTriangleCount
	}
	if t.Normals != nil && len(t.Normals.Encoded) != 2*vertexCount {
		return ErrNormalsLength
	}

	if err := binary.Write(cw, byteOrder, t.Header); err != nil {
		return err
	}

	if err := binary.Write(cw, byteOrder, uint32(vertexCount)); err != nil {
		return err
	}
	for _, channel := range [][]uint16{t.Vertices.U, t.Vertices.V, t.Vertices.Height} {
		if err := binary.Write(cw, byteOrder, encodeVertexChannel(channel)); err != nil {
			return err
		}
	}

	padding := calcPadding(int(cw.n), width)
	if padding > 0 {
		buf := bytes.Repeat([]byte{QUANTIZED_MESH_PADDING_BYTE}, padding)
		if _, err := cw.Write(buf); err != nil {
			return err
		}
	}

	if err := binary.Write(cw, byteOrder, uint32(t.TriangleCount())); err != nil {
		return err
	}
	switch ti := t.Triangles.(type) {
	case Indices16:
		data, err := ti.encodeIndices()
		if err != nil {
			return err
		}
		if err := binary.Write(cw, byteOrder, []uint16(data)); err != nil {
			return err
		}
	case Indices32:
		data, err := ti.encodeIndices()
		if err != nil {
			return err
		}
		if err := binary.Write(cw, byteOrder, []uint32(data)); err != nil {
			return err
		}
	}

	for _, ind := range runs[1:] {
		if err := writeEdgeIndices(cw, ind); err != nil {
			return err
		}
	}

	return t.writeExtensions(cw)
}

func writeEdgeIndices(writer io.Writer, ind Indices) error {
	if err := binary.Write(writer, byteOrder, uint32(indexCount(ind))); err != nil {
		return err
	}
	switch ei := ind.(type) {
	case Indices16:
		return binary.Write(writer, byteOrder, []uint16(ei))
	case Indices32:
		return binary.Write(writer, byteOrder, []uint32(ei))
	}
	return nil
}

func writeExtension(writer io.Writer, head ExtensionHeader, payload []byte) error {
	head.ExtensionLength = uint32(len(payload))
	if err := binary.Write(writer, byteOrder, head); err != nil {
		return err
	}
	_, err := writer.Write(payload)
	return err
}

func (t *QuantizedMeshTile) writeExtensions(writer io.Writer) error {
	if t.Normals != nil {
		if err := writeExtension(writer, EXT_LIGHT_HEADER, t.Normals.Encoded); err != nil {
			return err
		}
	}
	if t.WaterMask != nil {
		if err := writeExtension(writer, EXT_WATERMASK_HEADER, t.WaterMask.Mask); err != nil {
			return err
		}
	}
	if t.Metadata != nil {
		if err := writeExtension(writer, EXT_METADATA_HEADER, t.Metadata.payload()); err != nil {
			return err
		}
	}
	return nil
}
