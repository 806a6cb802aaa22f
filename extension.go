package terrain

import (
	"encoding/json"

	vec3d "github.com/flywave/go3d/float64/vec3"
	"go.uber.org/zap"
)

var (
	EXT_LIGHT_HEADER     = ExtensionHeader{ExtensionId: QUANTIZED_MESH_LIGHT_EXTENSION_ID}
	EXT_WATERMASK_HEADER = ExtensionHeader{ExtensionId: QUANTIZED_MESH_WATERMASK_EXTENSION_ID}
	EXT_METADATA_HEADER  = ExtensionHeader{ExtensionId: QUANTIZED_MESH_METADATA_EXTENSION_ID}
)

type ExtensionHeader struct {
	ExtensionId     uint8
	ExtensionLength uint32
}

// OctEncodedVertexNormals keeps one (x, y) byte pair per vertex.
type OctEncodedVertexNormals struct {
	Encoded []byte
}

func NewOctEncodedVertexNormals(normals []vec3d.T) *OctEncodedVertexNormals {
	enc := make([]byte, 2*len(normals))
	for i, n := range normals {
		xy := OctEncode(n)
		enc[2*i] = xy[0]
		enc[2*i+1] = xy[1]
	}
	return &OctEncodedVertexNormals{Encoded: enc}
}

func (n *OctEncodedVertexNormals) Len() int {
	return len(n.Encoded) / 2
}

// Normal decodes the unit normal of vertex i.
func (n *OctEncodedVertexNormals) Normal(i int) vec3d.T {
	return OctDecode(n.Encoded[2*i], n.Encoded[2*i+1])
}

func (n *OctEncodedVertexNormals) Decode() []vec3d.T {
	out := make([]vec3d.T, n.Len())
	for i := range out {
		out[i] = n.Normal(i)
	}
	return out
}

// WaterMask is either a single byte covering the whole tile (0 land, 255 water)
// or a 256x256 grid ordered north to south, west to east.
type WaterMask struct {
	Mask []byte
}

func (w *WaterMask) IsUniform() bool {
	return len(w.Mask) == 1
}

// At returns the mask value for pixel (x, y), x from the west and y from the north.
// A uniform mask returns its single value everywhere. Out of range pixels read 0.
func (w *WaterMask) At(x, y int) uint8 {
	if w.IsUniform() {
		return w.Mask[0]
	}
	if len(w.Mask) != QUANTIZED_MESH_WATERMASK_TILEPXS {
		return 0
	}
	if x < 0 || y < 0 || x >= QUANTIZED_MESH_WATERMASK_SIZE || y >= QUANTIZED_MESH_WATERMASK_SIZE {
		return 0
	}
	return w.Mask[y*QUANTIZED_MESH_WATERMASK_SIZE+x]
}

func (w *WaterMask) IsWater(x, y int) bool {
	return w.At(x, y) != 0
}

type Metadata struct {
	Json json.RawMessage
}

// MetadataContent is the JSON document carried by the metadata extension.
type MetadataContent struct {
	Available [][]*Available `json:"available,omitempty"`
}

func (m *Metadata) Decode() (*MetadataContent, error) {
	c := new(MetadataContent)
	if err := json.Unmarshal(m.Json, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (m *Metadata) payload() []byte {
	buf := make([]byte, 4+len(m.Json))
	byteOrder.PutUint32(buf, uint32(len(m.Json)))
	copy(buf[4:], m.Json)
	return buf
}

func parseMetadata(payload []byte) *Metadata {
	if len(payload) < 4 {
		return nil
	}
	jsonLen := byteOrder.Uint32(payload)
	if uint64(jsonLen) > uint64(len(payload)-4) {
		return nil
	}
	return &Metadata{Json: json.RawMessage(payload[4 : 4+jsonLen])}
}

// readExtensions consumes the trailer until the buffer is exhausted.
func (t *QuantizedMeshTile) readExtensions(r *tileReader, opts DecodeOptions) error {
	r.stage = StageExtensions
	vertexCount := t.Vertices.VertexCount()
	for r.remaining() > 0 {
		var h ExtensionHeader
		var err error
		start := r.pos
		if h.ExtensionId, err = r.readUint8("extension id"); err != nil {
			return err
		}
		if h.ExtensionLength, err = r.readUint32("extension length"); err != nil {
			return err
		}
		payload, err := r.readBytes(uint64(h.ExtensionLength), "extension payload")
		if err != nil {
			return err
		}
		t.Extensions = append(t.Extensions, h)

		switch h.ExtensionId {
		case QUANTIZED_MESH_LIGHT_EXTENSION_ID:
			if len(payload) != 2*vertexCount {
				if opts.Strict {
					return &MalformedTileError{
						Stage:  StageExtensions,
						Offset: start,
						Reason: "normals length does not match vertex count",
					}
				}
				Logger().Debug("dropping vertex normals",
					zap.Uint32("length", h.ExtensionLength),
					zap.Int("vertices", vertexCount))
				continue
			}
			t.Normals = &OctEncodedVertexNormals{Encoded: payload}
		case QUANTIZED_MESH_WATERMASK_EXTENSION_ID:
			t.WaterMask = &WaterMask{Mask: payload}
		case QUANTIZED_MESH_METADATA_EXTENSION_ID:
			md := parseMetadata(payload)
			if md == nil {
				Logger().Debug("dropping metadata", zap.Uint32("length", h.ExtensionLength))
				continue
			}
			t.Metadata = md
		default:
			Logger().Debug("skipping unknown extension",
				zap.Uint8("id", h.ExtensionId),
				zap.Uint32("length", h.ExtensionLength))
		}
	}
	return nil
}
