package terrain

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"
)

var ErrNoTileTemplate = errors.New("layer has no tile url template")

type Available struct {
	StartX uint32 `json:"startX"`
	StartY uint32 `json:"startY"`
	EndX   uint32 `json:"endX"`
	EndY   uint32 `json:"endY"`
}

// Contains reports whether tile (x, y) falls in the range.
func (a *Available) Contains(x, y uint32) bool {
	return x >= a.StartX && x <= a.EndX && y >= a.StartY && y <= a.EndY
}

// LayerJson is the layer.json document published next to a terrain tileset.
type LayerJson struct {
	Tilejson    string         `json:"tilejson"`
	Name        *string        `json:"name,omitempty"`
	Version     string         `json:"version,omitempty"`
	Format      string         `json:"format,omitempty"`
	Attribution interface{}    `json:"attribution,omitempty"`
	Scheme      string         `json:"scheme"`
	Tiles       []string       `json:"tiles"`
	Minzoom     *int           `json:"minzoom,omitempty"`
	Maxzoom     *int           `json:"maxzoom,omitempty"`
	Bounds      []float64      `json:"bounds,omitempty"`
	Projection  string         `json:"projection"`
	Available   [][]*Available `json:"available"`
	Extensions  []string       `json:"extensions,omitempty"`
}

func NewLayerJson(name string, minzoom int, maxzoom int, available [][]*Available, tiles []string, flag TerrainExtensionFlag) *LayerJson {
	var ext []string
	if (flag & Ext_Light) > 0 {
		ext = append(ext, "octvertexnormals")
		ext = append(ext, "vertexnormals")
	}
	if (flag & Ext_WaterMask) > 0 {
		ext = append(ext, "watermask")
	}
	if (flag & Ext_Metadata) > 0 {
		ext = append(ext, "metadata")
	}

	return &LayerJson{
		Tilejson:   "2.1.0",
		Name:       &name,
		Version:    "1.0.0",
		Format:     "quantized-mesh-1.0",
		Scheme:     "tms",
		Tiles:      tiles,
		Minzoom:    &minzoom,
		Maxzoom:    &maxzoom,
		Bounds:     []float64{-180, -90, 180, 90},
		Projection: "EPSG:4326",
		Available:  available,
		Extensions: ext,
	}
}

func ParseLayerJson(data []byte) (*LayerJson, error) {
	l := new(LayerJson)
	if err := json.Unmarshal(data, l); err != nil {
		return nil, err
	}
	return l, nil
}

// ExtensionFlags maps the advertised extension names to flags.
func (l *LayerJson) ExtensionFlags() TerrainExtensionFlag {
	flag := Ext_None
	for _, e := range l.Extensions {
		switch e {
		case "octvertexnormals", "vertexnormals":
			flag |= Ext_Light
		case "watermask":
			flag |= Ext_WaterMask
		case "metadata":
			flag |= Ext_Metadata
		}
	}
	return flag
}

// IsAvailable reports whether the layer advertises tile (x, y) at zoom.
func (l *LayerJson) IsAvailable(zoom int, x, y uint32) bool {
	if zoom < 0 || zoom >= len(l.Available) {
		return false
	}
	for _, a := range l.Available[zoom] {
		if a != nil && a.Contains(x, y) {
			return true
		}
	}
	return false
}

// TileURL expands the first tile template, relative to the layer.json location.
func (l *LayerJson) TileURL(zoom, x, y int) (string, error) {
	if len(l.Tiles) == 0 {
		return "", ErrNoTileTemplate
	}
	r := strings.NewReplacer(
		"{z}", strconv.Itoa(zoom),
		"{x}", strconv.Itoa(x),
		"{y}", strconv.Itoa(y),
		"{version}", l.Version,
	)
	return r.Replace(l.Tiles[0]), nil
}
