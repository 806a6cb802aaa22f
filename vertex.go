package terrain

// VertexData holds the quantized vertex channels, one value per vertex in each.
type VertexData struct {
	U      []uint16
	V      []uint16
	Height []uint16
}

func (vd *VertexData) VertexCount() int {
	return len(vd.U)
}

func (vd *VertexData) valid() bool {
	return len(vd.U) == len(vd.V) && len(vd.U) == len(vd.Height)
}

func readVertexData(r *tileReader) (VertexData, error) {
	r.stage = StageVertices
	count, err := r.readUint32("vertex count")
	if err != nil {
		return VertexData{}, err
	}

	// u, v and height are stored as three consecutive runs, not per vertex.
	data, err := r.readUint16s(3*uint64(count), "vertex data")
	if err != nil {
		return VertexData{}, err
	}
	n := int(count)
	vd := VertexData{
		U:      data[:n:n],
		V:      data[n : 2*n : 2*n],
		Height: data[2*n:],
	}
	decodeVertexChannel(vd.U)
	decodeVertexChannel(vd.V)
	decodeVertexChannel(vd.Height)
	return vd, nil
}

func decodeVertexChannel(values []uint16) {
	acc := 0
	for i, raw := range values {
		acc += decodeZigZag(raw)
		values[i] = uint16(acc)
	}
}

func encodeVertexChannel(values []uint16) []uint16 {
	out := make([]uint16, len(values))
	prev := uint16(0)
	for i, v := range values {
		// deltas wrap at 16 bits, matching the uint16 accumulator on decode
		out[i] = encodeZigZag(int(int16(v - prev)))
		prev = v
	}
	return out
}

func encodeZigZag(i int) uint16 {
	n := int32(i)
	return uint16((n << 1) ^ (n >> 31))
}

func decodeZigZag(encoded uint16) int {
	unsignedEncoded := int(encoded)
	return unsignedEncoded>>1 ^ -(unsignedEncoded & 1)
}
