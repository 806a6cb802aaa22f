// qmtile inspects quantized-mesh terrain tiles.
package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"

	terrain "github.com/flywave/qmtile"
	"github.com/flywave/qmtile/internal/config"
	"github.com/flywave/qmtile/internal/logger"
)

func main() {
	config.ParseFlags()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	terrain.SetLogger(logger.Log.Named("terrain"))

	if flag.NArg() < 1 {
		printUsage()
		os.Exit(1)
	}

	command := flag.Arg(0)
	args := flag.Args()[1:]

	switch command {
	case "info":
		err = cmdInfo(cfg, args)
	case "vertices", "v":
		err = cmdVertices(cfg, args)
	case "normals", "n":
		err = cmdNormals(cfg, args)
	case "url":
		err = cmdURL(args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		logger.Log.Error("command failed", zap.String("command", command), zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`qmtile - quantized-mesh terrain tile inspector

Usage:
  qmtile [-config file] [-debug] [-strict] [-n N] [-log file] <command> [options]

Commands:
  info <file.terrain>                    Show header, counts and extensions
  vertices [-tile z/x/y] [-ecef] <file>  List vertices (quantized, lon/lat/height or ECEF)
  normals <file.terrain>                 List decoded vertex normals
  url <layer.json> <z> <x> <y>           Expand the tile url template of a layer

Examples:
  qmtile info 9_533_383.terrain
  qmtile -n 10 vertices -tile 9/533/383 9_533_383.terrain
  qmtile url layer.json 14 24297 10735`)
}

func loadTile(cfg *config.Config, path string) (*terrain.QuantizedMeshTile, error) {
	tile, err := terrain.ReadTileFile(path, terrain.DecodeOptions{Strict: cfg.Decode.Strict})
	if err != nil {
		return nil, err
	}
	logger.Log.Debug("decoded tile",
		zap.String("path", path),
		zap.Int("vertices", tile.Vertices.VertexCount()),
		zap.Int("triangles", tile.TriangleCount()))
	return tile, nil
}

func cmdInfo(cfg *config.Config, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: qmtile info <file.terrain>")
	}
	tile, err := loadTile(cfg, args[0])
	if err != nil {
		return err
	}

	h := tile.Header
	fmt.Printf("Tile:            %s\n", args[0])
	fmt.Printf("Content type:    %s\n", tile.ContentType())
	fmt.Printf("Center:          %.3f %.3f %.3f\n", h.Center[0], h.Center[1], h.Center[2])
	fmt.Printf("Height range:    %.3f .. %.3f\n", h.MinimumHeight, h.MaximumHeight)
	fmt.Printf("Bounding sphere: %.3f %.3f %.3f r=%.3f\n",
		h.BoundingSphere.Center[0], h.BoundingSphere.Center[1], h.BoundingSphere.Center[2], h.BoundingSphere.Radius)
	fmt.Printf("Horizon point:   %.6f %.6f %.6f\n",
		h.HorizonOcclusionPoint[0], h.HorizonOcclusionPoint[1], h.HorizonOcclusionPoint[2])
	fmt.Printf("Vertices:        %d\n", tile.Vertices.VertexCount())
	fmt.Printf("Triangles:       %d (%d byte indices)\n", tile.TriangleCount(), tile.Triangles.BytesPerIndex())
	fmt.Printf("Edges:           west %d, south %d, east %d, north %d\n",
		tile.Edges.West.GetIndexCount(), tile.Edges.South.GetIndexCount(),
		tile.Edges.East.GetIndexCount(), tile.Edges.North.GetIndexCount())

	if len(tile.Extensions) > 0 {
		fmt.Println()
		fmt.Println("Extensions:")
		for _, e := range tile.Extensions {
			fmt.Printf("  id %-3d %d bytes\n", e.ExtensionId, e.ExtensionLength)
		}
	}
	if tile.WaterMask != nil {
		if tile.WaterMask.IsUniform() {
			fmt.Printf("Water mask:      uniform %d\n", tile.WaterMask.Mask[0])
		} else {
			fmt.Printf("Water mask:      %d bytes\n", len(tile.WaterMask.Mask))
		}
	}
	if tile.Metadata != nil {
		fmt.Printf("Metadata:        %s\n", tile.Metadata.Json)
	}
	return nil
}

func parseTileID(s string) (z, x, y int, err error) {
	parts := strings.Split(s, "/")
	if len(parts) != 3 {
		return 0, 0, 0, fmt.Errorf("tile must be z/x/y, got %q", s)
	}
	vals := make([]int, 3)
	for i, p := range parts {
		if vals[i], err = strconv.Atoi(p); err != nil {
			return 0, 0, 0, fmt.Errorf("tile must be z/x/y: %w", err)
		}
	}
	return vals[0], vals[1], vals[2], nil
}

func limitRows(cfg *config.Config, n int) int {
	if cfg.Output.Limit > 0 && cfg.Output.Limit < n {
		return cfg.Output.Limit
	}
	return n
}

func cmdVertices(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("vertices", flag.ExitOnError)
	tileID := fs.String("tile", "", "Tile address z/x/y for geographic output")
	ecef := fs.Bool("ecef", false, "Print earth-centered coordinates (needs -tile)")
	fs.Parse(args)

	if fs.NArg() < 1 {
		return fmt.Errorf("usage: qmtile vertices [-tile z/x/y] [-ecef] <file.terrain>")
	}
	tile, err := loadTile(cfg, fs.Arg(0))
	if err != nil {
		return err
	}
	n := limitRows(cfg, tile.Vertices.VertexCount())
	prec := cfg.Output.Precision

	if *tileID == "" {
		for i := 0; i < n; i++ {
			fmt.Printf("%d\t%d\t%d\t%d\n", i, tile.Vertices.U[i], tile.Vertices.V[i], tile.Vertices.Height[i])
		}
		return nil
	}

	z, x, y, err := parseTileID(*tileID)
	if err != nil {
		return err
	}
	bounds := terrain.NewGlobalGeodetic(cfg.Decode.TMSCompatible).TileBounds(x, y, z)

	if *ecef {
		pts, err := tile.ECEF(bounds)
		if err != nil {
			return err
		}
		for i := 0; i < n; i++ {
			fmt.Printf("%d\t%.*f\t%.*f\t%.*f\n", i, prec, pts[i][0], prec, pts[i][1], prec, pts[i][2])
		}
		return nil
	}

	coords := tile.Coordinates(bounds)
	for i := 0; i < n; i++ {
		fmt.Printf("%d\t%.*f\t%.*f\t%.*f\n", i, prec, coords[i][0], prec, coords[i][1], prec, coords[i][2])
	}
	return nil
}

func cmdNormals(cfg *config.Config, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: qmtile normals <file.terrain>")
	}
	tile, err := loadTile(cfg, args[0])
	if err != nil {
		return err
	}
	if tile.Normals == nil {
		return fmt.Errorf("%s has no vertex normals", args[0])
	}
	prec := cfg.Output.Precision
	n := limitRows(cfg, tile.Normals.Len())
	for i := 0; i < n; i++ {
		v := tile.Normals.Normal(i)
		fmt.Printf("%d\t%.*f\t%.*f\t%.*f\n", i, prec, v[0], prec, v[1], prec, v[2])
	}
	return nil
}

func cmdURL(args []string) error {
	if len(args) < 4 {
		return fmt.Errorf("usage: qmtile url <layer.json> <z> <x> <y>")
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	layer, err := terrain.ParseLayerJson(data)
	if err != nil {
		return fmt.Errorf("parsing %s: %w", args[0], err)
	}
	z, x, y, err := parseTileID(strings.Join(args[1:4], "/"))
	if err != nil {
		return err
	}
	if !layer.IsAvailable(z, uint32(x), uint32(y)) {
		logger.Log.Warn("tile not advertised as available", zap.Int("z", z), zap.Int("x", x), zap.Int("y", y))
	}
	url, err := layer.TileURL(z, x, y)
	if err != nil {
		return err
	}
	fmt.Println(url)
	return nil
}
