package terrain

import (
	"math"

	"github.com/flywave/go-proj"
	tin "github.com/flywave/go-tin"
	vec3d "github.com/flywave/go3d/float64/vec3"
	"github.com/paulmach/orb"
)

// MeshData is a triangle mesh with longitude and latitude in degrees and
// height in meters.
type MeshData struct {
	BBox     [2][3]float64
	Vertices [][3]float64
	Normals  [][3]float64
	Faces    [][3]int
}

func NewMeshData() *MeshData {
	return &MeshData{
		BBox: [2][3]float64{vec3d.MaxVal, vec3d.MinVal},
	}
}

// AppendMesh adds the faces of a TIN. A mesh that only holds triangles is
// decomposed into shared vertices first. Normals are kept only while every
// appended mesh carries one per vertex.
func (m *MeshData) AppendMesh(mesh *tin.Mesh) {
	vertices, faces := mesh.Vertices, mesh.Faces
	decomposed := false
	if len(faces) == 0 && len(mesh.Triangles) > 0 {
		vertices, faces = decomposeTriangles(mesh.Triangles)
		decomposed = true
	}

	count := len(m.Vertices)
	for _, f := range faces {
		m.Faces = append(m.Faces, [3]int{count + int(f[0]), count + int(f[1]), count + int(f[2])})
	}

	if !decomposed && len(m.Normals) == count && len(mesh.Normals) == len(vertices) {
		for _, n := range mesh.Normals {
			m.Normals = append(m.Normals, [3]float64(n))
		}
	} else {
		m.Normals = nil
	}

	for _, v := range vertices {
		m.Vertices = append(m.Vertices, [3]float64(v))
		m.BBox[0] = vec3d.Min((*vec3d.T)(&m.BBox[0]), (*vec3d.T)(&v))
		m.BBox[1] = vec3d.Max((*vec3d.T)(&m.BBox[1]), (*vec3d.T)(&v))
	}
}

func decomposeTriangles(triangles []tin.Triangle) ([]tin.Vertex, []tin.Face) {
	lookup := make(map[tin.Vertex]tin.VertexIndex)
	vertices := make([]tin.Vertex, 0, len(triangles))
	faces := make([]tin.Face, len(triangles))
	for t := range triangles {
		for i, v := range triangles[t] {
			idx, ok := lookup[v]
			if !ok {
				idx = tin.VertexIndex(len(vertices))
				lookup[v] = idx
				vertices = append(vertices, v)
			}
			faces[t][i] = idx
		}
	}
	return vertices, faces
}

func quantizeCoordinate(v, min, max float64) uint16 {
	if max <= min {
		return 0
	}
	q := math.Round((v - min) / (max - min) * QUANTIZED_COORDINATE_SIZE)
	return uint16(clamp(q, 0, QUANTIZED_COORDINATE_SIZE))
}

// NewTileFromMesh quantizes mesh into a tile covering bounds. Vertices are
// renumbered in order of first use by the faces, so the triangle indices are
// always high-water-mark encodable, and vertices no face uses are dropped.
// A zero bounds falls back to the mesh extent.
func NewTileFromMesh(mesh *MeshData, bounds orb.Bound) (*QuantizedMeshTile, error) {
	if len(mesh.Faces) == 0 {
		return nil, ErrEmptyMesh
	}

	remap := make([]int, len(mesh.Vertices))
	for i := range remap {
		remap[i] = -1
	}
	order := make([]int, 0, len(mesh.Vertices))
	triangles := make([]int, 0, 3*len(mesh.Faces))
	for _, f := range mesh.Faces {
		for _, src := range f {
			if src < 0 || src >= len(mesh.Vertices) {
				return nil, ErrFaceIndex
			}
			if remap[src] < 0 {
				remap[src] = len(order)
				order = append(order, src)
			}
			triangles = append(triangles, remap[src])
		}
	}

	vertices := make([]vec3d.T, len(order))
	lo, hi := vec3d.MaxVal, vec3d.MinVal
	for i, src := range order {
		vertices[i] = mesh.Vertices[src]
		lo = vec3d.Min(&lo, &vertices[i])
		hi = vec3d.Max(&hi, &vertices[i])
	}

	if bounds == (orb.Bound{}) {
		bounds = orb.Bound{Min: orb.Point{lo[0], lo[1]}, Max: orb.Point{hi[0], hi[1]}}
	}
	if !(bounds.Max[0] > bounds.Min[0] && bounds.Max[1] > bounds.Min[1]) {
		return nil, ErrTileBounds
	}

	t := new(QuantizedMeshTile)
	if err := t.setHeader(vertices, lo[2], hi[2]); err != nil {
		return nil, err
	}

	count := len(vertices)
	t.Vertices = VertexData{
		U:      make([]uint16, count),
		V:      make([]uint16, count),
		Height: make([]uint16, count),
	}
	for i, v := range vertices {
		t.Vertices.U[i] = quantizeCoordinate(v[0], bounds.Min[0], bounds.Max[0])
		t.Vertices.V[i] = quantizeCoordinate(v[1], bounds.Min[1], bounds.Max[1])
		t.Vertices.Height[i] = quantizeCoordinate(v[2], lo[2], hi[2])
	}

	t.Triangles = NewIndices(count, triangles)
	t.Edges = collectEdges(&t.Vertices, triangles)

	if len(mesh.Normals) == len(mesh.Vertices) {
		normals := make([]vec3d.T, count)
		for i, src := range order {
			n := vec3d.T(mesh.Normals[src])
			normals[i] = n.Normalized()
		}
		t.Normals = NewOctEncodedVertexNormals(normals)
	}
	return t, nil
}

// setHeader derives the header from the geographic vertices of the tile.
func (t *QuantizedMeshTile) setHeader(vertices []vec3d.T, minHeight, maxHeight float64) error {
	t.Header.MinimumHeight = float32(minHeight)
	t.Header.MaximumHeight = float32(maxHeight)

	ecef := make([]vec3d.T, len(vertices))
	lo, hi := vec3d.MaxVal, vec3d.MinVal
	for i, v := range vertices {
		x, y, z, err := proj.Lonlat2Ecef(v[0], v[1], v[2])
		if err != nil {
			return err
		}
		ecef[i] = vec3d.T{x, y, z}
		lo = vec3d.Min(&lo, &ecef[i])
		hi = vec3d.Max(&hi, &ecef[i])
	}

	t.Header.Center = vec3d.Interpolate(&lo, &hi, 0.5)
	t.Header.BoundingSphere = NewBoundingSphere(ecef)
	t.Header.HorizonOcclusionPoint = HorizonOcclusionPoint(ecef, t.Header.BoundingSphere)
	return nil
}

// collectEdges lists the vertices on each tile border in order of first use.
func collectEdges(vd *VertexData, triangles []int) EdgeIndices {
	const (
		west = 1 << iota
		south
		east
		north
	)
	var w, s, e, n []int
	seen := make([]uint8, vd.VertexCount())
	for _, i := range triangles {
		u, v := vd.U[i], vd.V[i]
		if u == 0 && seen[i]&west == 0 {
			seen[i] |= west
			w = append(w, i)
		}
		if u == QUANTIZED_COORDINATE_SIZE && seen[i]&east == 0 {
			seen[i] |= east
			e = append(e, i)
		}
		if v == 0 && seen[i]&south == 0 {
			seen[i] |= south
			s = append(s, i)
		}
		if v == QUANTIZED_COORDINATE_SIZE && seen[i]&north == 0 {
			seen[i] |= north
			n = append(n, i)
		}
	}
	count := vd.VertexCount()
	return EdgeIndices{
		West:  NewIndices(count, w),
		South: NewIndices(count, s),
		East:  NewIndices(count, e),
		North: NewIndices(count, n),
	}
}
