package terrain

import (
	"encoding/binary"
	"strings"

	vec3d "github.com/flywave/go3d/float64/vec3"
)

const (
	QUANTIZED_COORDINATE_SIZE             = 32767
	QUANTIZED_MESH_HEADER_SIZE            = 88
	QUANTIZED_MESH_INDEX16_MAX_VERTICES   = 65536
	QUANTIZED_MESH_LIGHT_EXTENSION_ID     = 1
	QUANTIZED_MESH_WATERMASK_EXTENSION_ID = 2
	QUANTIZED_MESH_METADATA_EXTENSION_ID  = 4
	QUANTIZED_MESH_WATERMASK_SIZE         = 256
	QUANTIZED_MESH_WATERMASK_TILEPXS      = QUANTIZED_MESH_WATERMASK_SIZE * QUANTIZED_MESH_WATERMASK_SIZE
	QUANTIZED_MESH_PADDING_BYTE           = 0xCA
)

type TerrainExtensionFlag uint32

const (
	Ext_None            TerrainExtensionFlag = 0
	Ext_Light           TerrainExtensionFlag = 1
	Ext_WaterMask       TerrainExtensionFlag = 2
	Ext_Light_WaterMask TerrainExtensionFlag = Ext_Light | Ext_WaterMask
	Ext_Metadata        TerrainExtensionFlag = 4
)

const BaseMime = "application/vnd.quantized-mesh"

// ContentType returns the media type announcing the given extensions.
func ContentType(flag TerrainExtensionFlag) string {
	ext := extensionNames(flag)
	if len(ext) == 0 {
		return BaseMime
	}
	return BaseMime + ";extensions=" + strings.Join(ext, "-")
}

func extensionNames(flag TerrainExtensionFlag) []string {
	var ext []string
	if (flag & Ext_Light) > 0 {
		ext = append(ext, "octvertexnormals")
	}
	if (flag & Ext_WaterMask) > 0 {
		ext = append(ext, "watermask")
	}
	if (flag & Ext_Metadata) > 0 {
		ext = append(ext, "metadata")
	}
	return ext
}

var (
	byteOrder = binary.LittleEndian
)

type BoundingSphere struct {
	Center vec3d.T
	Radius float64
}

// Header is the fixed 88 byte block at the start of every tile. Its field order
// matches the wire layout.
type Header struct {
	Center vec3d.T

	MinimumHeight float32
	MaximumHeight float32

	BoundingSphere BoundingSphere

	HorizonOcclusionPoint vec3d.T
}

// QuantizedMeshTile is one fully decoded tile. Normals, WaterMask and Metadata
// are nil when the tile does not carry them.
type QuantizedMeshTile struct {
	Header     Header
	Vertices   VertexData
	Triangles  Indices
	Edges      EdgeIndices
	Normals    *OctEncodedVertexNormals
	WaterMask  *WaterMask
	Metadata   *Metadata
	Extensions []ExtensionHeader
}

type DecodeOptions struct {
	// Strict rejects normals of the wrong length and indices past the vertex count.
	Strict bool
}

// Decode parses a complete quantized-mesh tile. It holds no state between calls
// and is safe for concurrent use on distinct buffers.
func Decode(data []byte) (*QuantizedMeshTile, error) {
	return DecodeWithOptions(data, DecodeOptions{})
}

func DecodeWithOptions(data []byte, opts DecodeOptions) (*QuantizedMeshTile, error) {
	var err error
	r := newTileReader(data)
	t := new(QuantizedMeshTile)

	if t.Header, err = readHeader(r); err != nil {
		return nil, err
	}
	if t.Vertices, err = readVertexData(r); err != nil {
		return nil, err
	}

	width := indexWidth(t.Vertices.VertexCount())
	r.stage = StageTriangles
	if _, err = r.align(width); err != nil {
		return nil, err
	}
	if t.Triangles, err = readTriangles(r, width); err != nil {
		return nil, err
	}
	if t.Edges, err = readEdges(r, width); err != nil {
		return nil, err
	}
	if err = t.readExtensions(r, opts); err != nil {
		return nil, err
	}

	if opts.Strict {
		if err = t.checkIndexRange(); err != nil {
			return nil, err
		}
	}
	return t, nil
}

func readHeader(r *tileReader) (Header, error) {
	var h Header
	var err error
	r.stage = StageHeader
	if err = r.need(QUANTIZED_MESH_HEADER_SIZE, "header"); err != nil {
		return h, err
	}
	if h.Center, err = r.readVec3("center"); err != nil {
		return h, err
	}
	if h.MinimumHeight, err = r.readFloat32("minimum height"); err != nil {
		return h, err
	}
	if h.MaximumHeight, err = r.readFloat32("maximum height"); err != nil {
		return h, err
	}
	if h.BoundingSphere.Center, err = r.readVec3("bounding sphere center"); err != nil {
		return h, err
	}
	if h.BoundingSphere.Radius, err = r.readFloat64("bounding sphere radius"); err != nil {
		return h, err
	}
	if h.HorizonOcclusionPoint, err = r.readVec3("horizon occlusion point"); err != nil {
		return h, err
	}
	return h, nil
}

func readTriangles(r *tileReader, width int) (Indices, error) {
	r.stage = StageTriangles
	count, err := r.readUint32("triangle count")
	if err != nil {
		return nil, err
	}
	ind, err := r.readIndices(3*uint64(count), width, "triangle indices")
	if err != nil {
		return nil, err
	}
	switch ti := ind.(type) {
	case Indices16:
		ti.decodeIndices()
	case Indices32:
		ti.decodeIndices()
	}
	return ind, nil
}

func readEdges(r *tileReader, width int) (EdgeIndices, error) {
	var e EdgeIndices
	edges := []struct {
		stage Stage
		dst   *Indices
	}{
		{StageWestEdge, &e.West},
		{StageSouthEdge, &e.South},
		{StageEastEdge, &e.East},
		{StageNorthEdge, &e.North},
	}
	for _, edge := range edges {
		r.stage = edge.stage
		count, err := r.readUint32("edge vertex count")
		if err != nil {
			return e, err
		}
		if *edge.dst, err = r.readIndices(uint64(count), width, "edge indices"); err != nil {
			return e, err
		}
	}
	return e, nil
}

func (t *QuantizedMeshTile) checkIndexRange() error {
	vertexCount := t.Vertices.VertexCount()
	runs := []struct {
		stage Stage
		ind   Indices
	}{
		{StageTriangles, t.Triangles},
		{StageWestEdge, t.Edges.West},
		{StageSouthEdge, t.Edges.South},
		{StageEastEdge, t.Edges.East},
		{StageNorthEdge, t.Edges.North},
	}
	for _, run := range runs {
		for i := 0; i < indexCount(run.ind); i++ {
			if run.ind.GetIndex(i) >= vertexCount {
				return &MalformedTileError{
					Stage:  run.stage,
					Reason: "index out of range of vertex count",
				}
			}
		}
	}
	return nil
}

func (t *QuantizedMeshTile) TriangleCount() int {
	return indexCount(t.Triangles) / 3
}

func (t *QuantizedMeshTile) Faces() [][3]int {
	tri := t.TriangleCount()
	inds := make([][3]int, tri)
	for i := 0; i < tri; i++ {
		inds[i][0] = t.Triangles.GetIndex(i * 3)
		inds[i][1] = t.Triangles.GetIndex(i*3 + 1)
		inds[i][2] = t.Triangles.GetIndex(i*3 + 2)
	}
	return inds
}

func (t *QuantizedMeshTile) ExtensionFlags() TerrainExtensionFlag {
	flag := Ext_None
	if t.Normals != nil {
		flag |= Ext_Light
	}
	if t.WaterMask != nil {
		flag |= Ext_WaterMask
	}
	if t.Metadata != nil {
		flag |= Ext_Metadata
	}
	return flag
}

func (t *QuantizedMeshTile) ContentType() string {
	return ContentType(t.ExtensionFlags())
}
