package terrain

// Indices is a run of vertex indices stored 16 or 32 bits wide.
type Indices interface {
	GetIndexCount() int
	GetIndex(i int) int
	BytesPerIndex() int
}

type Indices16 []uint16

func (ind Indices16) GetIndexCount() int {
	return len(ind)
}

func (ind Indices16) GetIndex(i int) int {
	return int(ind[i])
}

func (ind Indices16) BytesPerIndex() int {
	return 2
}

// decodeIndices reverses high-water-mark coding in place.
func (ind Indices16) decodeIndices() {
	highest := uint16(0)
	for i, code := range ind {
		ind[i] = highest - code
		if code == 0 {
			highest++
		}
	}
}

func (ind Indices16) encodeIndices() (Indices16, error) {
	out := make(Indices16, len(ind))
	highest := uint32(0)
	for i, index := range ind {
		if uint32(index) > highest {
			return nil, ErrIndexNotEncodable
		}
		code := highest - uint32(index)
		out[i] = uint16(code)
		if code == 0 {
			highest++
		}
	}
	return out, nil
}

type Indices32 []uint32

func (ind Indices32) GetIndexCount() int {
	return len(ind)
}

func (ind Indices32) GetIndex(i int) int {
	return int(ind[i])
}

func (ind Indices32) BytesPerIndex() int {
	return 4
}

func (ind Indices32) decodeIndices() {
	highest := uint32(0)
	for i, code := range ind {
		ind[i] = highest - code
		if code == 0 {
			highest++
		}
	}
}

func (ind Indices32) encodeIndices() (Indices32, error) {
	out := make(Indices32, len(ind))
	highest := uint64(0)
	for i, index := range ind {
		if uint64(index) > highest {
			return nil, ErrIndexNotEncodable
		}
		code := highest - uint64(index)
		out[i] = uint32(code)
		if code == 0 {
			highest++
		}
	}
	return out, nil
}

// NewIndices copies values into the width a tile with vertexCount vertices uses.
func NewIndices(vertexCount int, values []int) Indices {
	if indexWidth(vertexCount) == 4 {
		out := make(Indices32, len(values))
		for i, v := range values {
			out[i] = uint32(v)
		}
		return out
	}
	out := make(Indices16, len(values))
	for i, v := range values {
		out[i] = uint16(v)
	}
	return out
}

// EdgeIndices lists the vertices lying on each tile border, used to build skirts.
type EdgeIndices struct {
	West  Indices
	South Indices
	East  Indices
	North Indices
}

// indexWidth returns the byte width of triangle and edge indices.
func indexWidth(vertexCount int) int {
	if vertexCount > QUANTIZED_MESH_INDEX16_MAX_VERTICES {
		return 4
	}
	return 2
}

func indexCount(ind Indices) int {
	if ind == nil {
		return 0
	}
	return ind.GetIndexCount()
}

func calcPadding(offset, paddingUnit int) int {
	padding := offset % paddingUnit
	if padding != 0 {
		padding = paddingUnit - padding
	}
	return padding
}
