package terrain

import (
	"fmt"
	"math"

	vec3d "github.com/flywave/go3d/float64/vec3"
)

// tileReader is the cursor shared by all decode stages of one Decode call.
type tileReader struct {
	data  []byte
	pos   int
	stage Stage
}

func newTileReader(data []byte) *tileReader {
	return &tileReader{data: data, stage: StageHeader}
}

func (r *tileReader) remaining() int {
	return len(r.data) - r.pos
}

func (r *tileReader) fail(format string, args ...interface{}) error {
	return &MalformedTileError{
		Stage:  r.stage,
		Offset: r.pos,
		Reason: fmt.Sprintf(format, args...),
	}
}

// need checks n bytes are left before anything is read or allocated.
func (r *tileReader) need(n uint64, what string) error {
	if n > uint64(r.remaining()) {
		return r.fail("%s needs %d bytes, %d remaining", what, n, r.remaining())
	}
	return nil
}

func (r *tileReader) align(unit int) (int, error) {
	padding := calcPadding(r.pos, unit)
	if err := r.need(uint64(padding), "index alignment"); err != nil {
		return 0, err
	}
	r.pos += padding
	return padding, nil
}

func (r *tileReader) readUint8(what string) (uint8, error) {
	if err := r.need(1, what); err != nil {
		return 0, err
	}
	v := r.data[r.pos]
	r.pos++
	return v, nil
}

func (r *tileReader) readUint32(what string) (uint32, error) {
	if err := r.need(4, what); err != nil {
		return 0, err
	}
	v := byteOrder.Uint32(r.data[r.pos:])
	r.pos += 4
	return v, nil
}

func (r *tileReader) readFloat32(what string) (float32, error) {
	v, err := r.readUint32(what)
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(v), nil
}

func (r *tileReader) readFloat64(what string) (float64, error) {
	if err := r.need(8, what); err != nil {
		return 0, err
	}
	v := math.Float64frombits(byteOrder.Uint64(r.data[r.pos:]))
	r.pos += 8
	return v, nil
}

func (r *tileReader) readVec3(what string) (vec3d.T, error) {
	var v vec3d.T
	if err := r.need(24, what); err != nil {
		return v, err
	}
	for i := range v {
		v[i] = math.Float64frombits(byteOrder.Uint64(r.data[r.pos:]))
		r.pos += 8
	}
	return v, nil
}

func (r *tileReader) readUint16s(count uint64, what string) ([]uint16, error) {
	if err := r.need(count*2, what); err != nil {
		return nil, err
	}
	values := make([]uint16, count)
	for i := range values {
		values[i] = byteOrder.Uint16(r.data[r.pos:])
		r.pos += 2
	}
	return values, nil
}

func (r *tileReader) readUint32s(count uint64, what string) ([]uint32, error) {
	if err := r.need(count*4, what); err != nil {
		return nil, err
	}
	values := make([]uint32, count)
	for i := range values {
		values[i] = byteOrder.Uint32(r.data[r.pos:])
		r.pos += 4
	}
	return values, nil
}

// readIndices reads count indices of the given width (2 or 4 bytes).
func (r *tileReader) readIndices(count uint64, width int, what string) (Indices, error) {
	if width == 4 {
		values, err := r.readUint32s(count, what)
		if err != nil {
			return nil, err
		}
		return Indices32(values), nil
	}
	values, err := r.readUint16s(count, what)
	if err != nil {
		return nil, err
	}
	return Indices16(values), nil
}

// readBytes copies n bytes so the decoded tile never aliases the input buffer.
func (r *tileReader) readBytes(n uint64, what string) ([]byte, error) {
	if err := r.need(n, what); err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, r.data[r.pos:])
	r.pos += int(n)
	return out, nil
}
