package terrain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedTile matches every decode failure, see MalformedTileError.
var ErrMalformedTile = errors.New("malformed quantized-mesh tile")

// Encoder errors.
var (
	ErrVertexLength      = errors.New("u, v and height channels differ in length")
	ErrIndexWidth        = errors.New("index width does not match vertex count")
	ErrIndexNotEncodable = errors.New("triangle indices are not high-water-mark encodable")
	ErrTriangleCount     = errors.New("triangle index count is not a multiple of 3")
	ErrNormalsLength     = errors.New("normals length does not match vertex count")

	ErrEmptyMesh  = errors.New("mesh has no faces")
	ErrFaceIndex  = errors.New("face references a missing vertex")
	ErrTileBounds = errors.New("tile bounds have no area")
)

// Stage names the decode step a MalformedTileError was raised in.
type Stage string

const (
	StageHeader     Stage = "header"
	StageVertices   Stage = "vertices"
	StageTriangles  Stage = "triangles"
	StageWestEdge   Stage = "west edge"
	StageSouthEdge  Stage = "south edge"
	StageEastEdge   Stage = "east edge"
	StageNorthEdge  Stage = "north edge"
	StageExtensions Stage = "extensions"
)

// MalformedTileError reports where decoding stopped and why.
type MalformedTileError struct {
	Stage  Stage
	Offset int
	Reason string
}

func (e *MalformedTileError) Error() string {
	var b strings.Builder
	b.WriteString(ErrMalformedTile.Error())

	if e.Stage != "" {
		b.WriteString(" at ")
		b.WriteString(string(e.Stage))
	}

	fmt.Fprintf(&b, " (offset %d)", e.Offset)

	if e.Reason != "" {
		b.WriteString(": ")
		b.WriteString(e.Reason)
	}

	return b.String()
}

func (e *MalformedTileError) Is(target error) bool {
	return target == ErrMalformedTile
}
