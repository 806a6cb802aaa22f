package terrain

import (
	"math"

	"github.com/flywave/go-proj"
	vec3d "github.com/flywave/go3d/float64/vec3"
	"github.com/paulmach/orb"
)

const defaultTileSize = 256

// GlobalGeodetic is the EPSG:4326 TMS tiling scheme, origin at the bottom left.
type GlobalGeodetic struct {
	TileSize int

	resFact    float64
	levelZeroX int
	levelZeroY int
}

// NewGlobalGeodetic returns the scheme used by quantized-mesh layers when
// tmsCompatible is set (two tiles at level 0), otherwise a single root tile.
func NewGlobalGeodetic(tmsCompatible bool) *GlobalGeodetic {
	if tmsCompatible {
		return &GlobalGeodetic{TileSize: defaultTileSize, resFact: 180.0 / defaultTileSize, levelZeroX: 2, levelZeroY: 1}
	}
	return &GlobalGeodetic{TileSize: defaultTileSize, resFact: 360.0 / defaultTileSize, levelZeroX: 1, levelZeroY: 1}
}

// Resolution is degrees per pixel at the given zoom.
func (g *GlobalGeodetic) Resolution(zoom int) float64 {
	return g.resFact / math.Exp2(float64(zoom))
}

func (g *GlobalGeodetic) TileBounds(x, y, zoom int) orb.Bound {
	span := float64(g.TileSize) * g.Resolution(zoom)
	return orb.Bound{
		Min: orb.Point{float64(x)*span - 180, float64(y)*span - 90},
		Max: orb.Point{float64(x+1)*span - 180, float64(y+1)*span - 90},
	}
}

func (g *GlobalGeodetic) LonLatToTile(lon, lat float64, zoom int) (int, int) {
	res := g.Resolution(zoom)
	px := (180 + lon) / res
	py := (90 + lat) / res
	return pixelsToTile(px, g.TileSize), pixelsToTile(py, g.TileSize)
}

func pixelsToTile(p float64, tileSize int) int {
	if p <= 0 {
		return 0
	}
	return int(math.Ceil(p/float64(tileSize))) - 1
}

func (g *GlobalGeodetic) TilesAtZoom(zoom int) (int, int) {
	return g.levelZeroX << uint(zoom), g.levelZeroY << uint(zoom)
}

func lerp(p, q, time float64) float64 {
	return (1.0-time)*p + time*q
}

func dequantizeCoordinate(v uint16, min float64, max float64) float64 {
	return lerp(min, max, float64(v)/QUANTIZED_COORDINATE_SIZE)
}

// Coordinates maps every vertex to longitude, latitude and height using the
// tile bounds and the header height range.
func (t *QuantizedMeshTile) Coordinates(bounds orb.Bound) [][3]float64 {
	minH := float64(t.Header.MinimumHeight)
	maxH := float64(t.Header.MaximumHeight)
	vecs := make([][3]float64, t.Vertices.VertexCount())
	for i := range vecs {
		vecs[i] = [3]float64{
			dequantizeCoordinate(t.Vertices.U[i], bounds.Min[0], bounds.Max[0]),
			dequantizeCoordinate(t.Vertices.V[i], bounds.Min[1], bounds.Max[1]),
			dequantizeCoordinate(t.Vertices.Height[i], minH, maxH),
		}
	}
	return vecs
}

// ECEF returns the vertices as earth-centered, earth-fixed positions in meters.
func (t *QuantizedMeshTile) ECEF(bounds orb.Bound) ([]vec3d.T, error) {
	coords := t.Coordinates(bounds)
	out := make([]vec3d.T, len(coords))
	for i, c := range coords {
		x, y, z, err := proj.Lonlat2Ecef(c[0], c[1], c[2])
		if err != nil {
			return nil, err
		}
		out[i] = vec3d.T{x, y, z}
	}
	return out, nil
}
