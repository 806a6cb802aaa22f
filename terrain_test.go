package terrain

import (
	"bytes"
	"encoding/binary"
	"errors"
	"sync"
	"testing"

	vec3d "github.com/flywave/go3d/float64/vec3"
)

func testHeader() Header {
	return Header{
		Center:        vec3d.T{4510467.5, 618830.25, 4448290.0},
		MinimumHeight: 12.5,
		MaximumHeight: 845.25,
		BoundingSphere: BoundingSphere{
			Center: vec3d.T{4510467.5, 618830.25, 4448290.0},
			Radius: 2204.75,
		},
		HorizonOcclusionPoint: vec3d.T{0.7, 0.1, 0.69},
	}
}

// writeRawTile writes the header, vertexCount and the given already-encoded
// vertex codes. Callers append the index section themselves.
func writeRawTile(buf *bytes.Buffer, vertexCount uint32, codes []uint16) {
	binary.Write(buf, binary.LittleEndian, testHeader())
	binary.Write(buf, binary.LittleEndian, vertexCount)
	binary.Write(buf, binary.LittleEndian, codes)
}

func writeEmptyEdges(buf *bytes.Buffer) {
	for i := 0; i < 4; i++ {
		binary.Write(buf, binary.LittleEndian, uint32(0))
	}
}

func writeExt(buf *bytes.Buffer, id uint8, payload []byte) {
	buf.WriteByte(id)
	binary.Write(buf, binary.LittleEndian, uint32(len(payload)))
	buf.Write(payload)
}

// createTestTile builds the two triangle, four vertex tile described by the
// high-water-mark codes 0 0 0 1 0 1.
func createTestTile() []byte {
	buf := new(bytes.Buffer)
	u := []int{0, 32767, 0, 32767}
	v := []int{0, 0, 32767, 32767}
	h := []int{100, 200, 300, 400}

	var codes []uint16
	for _, channel := range [][]int{u, v, h} {
		prev := 0
		for _, value := range channel {
			codes = append(codes, encodeZigZag(value-prev))
			prev = value
		}
	}
	writeRawTile(buf, 4, codes)

	binary.Write(buf, binary.LittleEndian, uint32(2))
	binary.Write(buf, binary.LittleEndian, []uint16{0, 0, 0, 1, 0, 1})
	writeEmptyEdges(buf)
	return buf.Bytes()
}

func sampleTile() *QuantizedMeshTile {
	return &QuantizedMeshTile{
		Header: testHeader(),
		Vertices: VertexData{
			U:      []uint16{0, 32767, 0, 32767, 16383},
			V:      []uint16{0, 0, 32767, 32767, 16383},
			Height: []uint16{0, 1200, 32767, 9000, 500},
		},
		Triangles: Indices16{0, 1, 2, 2, 1, 3, 0, 4, 1},
		Edges: EdgeIndices{
			West:  Indices16{0, 2},
			South: Indices16{0, 1},
			East:  Indices16{1, 3},
			North: Indices16{2, 3},
		},
	}
}

func TestDecodeTwoTriangles(t *testing.T) {
	tile, err := Decode(createTestTile())
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	if tile.Header != testHeader() {
		t.Errorf("header mismatch: %+v", tile.Header)
	}
	if tile.Vertices.VertexCount() != 4 {
		t.Fatalf("expected 4 vertices, got %d", tile.Vertices.VertexCount())
	}
	if tile.TriangleCount() != 2 {
		t.Fatalf("expected 2 triangles, got %d", tile.TriangleCount())
	}

	want := Indices16{0, 1, 2, 2, 3, 3}
	got, ok := tile.Triangles.(Indices16)
	if !ok {
		t.Fatalf("expected 16 bit indices, got %T", tile.Triangles)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("index %d: expected %d, got %d", i, want[i], got[i])
		}
	}

	for name, e := range map[string]Indices{"west": tile.Edges.West, "south": tile.Edges.South, "east": tile.Edges.East, "north": tile.Edges.North} {
		if e.GetIndexCount() != 0 {
			t.Errorf("%s edge: expected no indices, got %d", name, e.GetIndexCount())
		}
	}
	if tile.Normals != nil {
		t.Error("expected no normals")
	}
	if tile.WaterMask != nil {
		t.Error("expected no water mask")
	}
	if len(tile.Extensions) != 0 {
		t.Errorf("expected no extensions, got %d", len(tile.Extensions))
	}
	if tile.ContentType() != BaseMime {
		t.Errorf("unexpected content type %s", tile.ContentType())
	}
}

func TestDecodeVertexRuns(t *testing.T) {
	tile, err := Decode(createTestTile())
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	tests := []struct {
		name string
		got  []uint16
		want []uint16
	}{
		{"u", tile.Vertices.U, []uint16{0, 32767, 0, 32767}},
		{"v", tile.Vertices.V, []uint16{0, 0, 32767, 32767}},
		{"height", tile.Vertices.Height, []uint16{100, 200, 300, 400}},
	}
	for _, tc := range tests {
		for i := range tc.want {
			if tc.got[i] != tc.want[i] {
				t.Errorf("%s[%d]: expected %d, got %d", tc.name, i, tc.want[i], tc.got[i])
			}
		}
	}
}

func TestDecodeDoesNotAliasInput(t *testing.T) {
	buf := new(bytes.Buffer)
	buf.Write(createTestTile())
	writeExt(buf, QUANTIZED_MESH_WATERMASK_EXTENSION_ID, []byte{255})
	data := buf.Bytes()

	tile, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	data[len(data)-1] = 0
	if tile.WaterMask.Mask[0] != 255 {
		t.Error("water mask shares memory with the input buffer")
	}
}

func TestIndexWidthBoundary(t *testing.T) {
	tests := []struct {
		vertexCount int
		want        int
	}{
		{0, 2},
		{4, 2},
		{65535, 2},
		{65536, 2},
		{65537, 4},
		{1 << 20, 4},
	}
	for _, tc := range tests {
		if got := indexWidth(tc.vertexCount); got != tc.want {
			t.Errorf("indexWidth(%d) = %d, expected %d", tc.vertexCount, got, tc.want)
		}
	}
}

func TestDecode65536VerticesUses16BitIndices(t *testing.T) {
	buf := new(bytes.Buffer)
	writeRawTile(buf, 65536, make([]uint16, 3*65536))
	binary.Write(buf, binary.LittleEndian, uint32(1))
	binary.Write(buf, binary.LittleEndian, []uint16{0, 0, 0})
	writeEmptyEdges(buf)

	tile, err := Decode(buf.Bytes())
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if _, ok := tile.Triangles.(Indices16); !ok {
		t.Errorf("expected Indices16, got %T", tile.Triangles)
	}
}

func TestDecode65537VerticesUses32BitIndices(t *testing.T) {
	const vertexCount = 65537
	buf := new(bytes.Buffer)
	writeRawTile(buf, vertexCount, make([]uint16, 3*vertexCount))

	// 88 + 4 + 6*65537 leaves the cursor 2 bytes past a 4 byte boundary.
	if buf.Len()%4 != 2 {
		t.Fatalf("unexpected fixture alignment %d", buf.Len()%4)
	}
	buf.Write([]byte{0xCA, 0xCA})

	binary.Write(buf, binary.LittleEndian, uint32(1))
	binary.Write(buf, binary.LittleEndian, []uint32{0, 0, 1})
	binary.Write(buf, binary.LittleEndian, uint32(1))
	binary.Write(buf, binary.LittleEndian, []uint32{65536})
	for i := 0; i < 3; i++ {
		binary.Write(buf, binary.LittleEndian, uint32(0))
	}

	tile, err := Decode(buf.Bytes())
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	tri, ok := tile.Triangles.(Indices32)
	if !ok {
		t.Fatalf("expected Indices32, got %T", tile.Triangles)
	}
	if tri[0] != 0 || tri[1] != 1 || tri[2] != 1 {
		t.Errorf("unexpected triangle %v", tri)
	}
	if tile.Edges.West.GetIndexCount() != 1 || tile.Edges.West.GetIndex(0) != 65536 {
		t.Errorf("unexpected west edge %v", tile.Edges.West)
	}
	if tile.Edges.West.BytesPerIndex() != 4 {
		t.Errorf("expected 4 byte edge indices, got %d", tile.Edges.West.BytesPerIndex())
	}
}

func TestUnknownExtensionSkipped(t *testing.T) {
	filler := []byte("arbitrary filler bytes")
	mask := []byte{0}

	buf := new(bytes.Buffer)
	buf.Write(createTestTile())
	writeExt(buf, 99, filler)
	writeExt(buf, QUANTIZED_MESH_WATERMASK_EXTENSION_ID, mask)

	tile, err := Decode(buf.Bytes())
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if tile.Normals != nil {
		t.Error("unknown extension populated normals")
	}

	// The water mask after the unknown entry is only read correctly when the
	// cursor moved exactly 1+4+len(filler) bytes.
	if tile.WaterMask == nil || !bytes.Equal(tile.WaterMask.Mask, mask) {
		t.Fatalf("unexpected water mask %+v", tile.WaterMask)
	}
	if len(tile.Extensions) != 2 {
		t.Fatalf("expected 2 extension headers, got %d", len(tile.Extensions))
	}
	if tile.Extensions[0].ExtensionId != 99 || tile.Extensions[0].ExtensionLength != uint32(len(filler)) {
		t.Errorf("unexpected first extension %+v", tile.Extensions[0])
	}
}

func TestUnknownExtensionOnly(t *testing.T) {
	buf := new(bytes.Buffer)
	buf.Write(createTestTile())
	writeExt(buf, 99, bytes.Repeat([]byte{0xff}, 13))

	tile, err := Decode(buf.Bytes())
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if tile.Normals != nil || tile.WaterMask != nil || tile.Metadata != nil {
		t.Error("unknown extension populated a known field")
	}
}

func TestNormalsLengthMismatch(t *testing.T) {
	buf := new(bytes.Buffer)
	buf.Write(createTestTile())
	writeExt(buf, QUANTIZED_MESH_LIGHT_EXTENSION_ID, []byte{1, 2, 3})
	data := buf.Bytes()

	tile, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if tile.Normals != nil {
		t.Error("expected normals to be absent")
	}
	if len(tile.Extensions) != 1 {
		t.Errorf("expected extension header to be recorded, got %d", len(tile.Extensions))
	}

	_, err = DecodeWithOptions(data, DecodeOptions{Strict: true})
	if !errors.Is(err, ErrMalformedTile) {
		t.Errorf("strict decode: expected ErrMalformedTile, got %v", err)
	}
}

func TestNormalsDecoded(t *testing.T) {
	normals := []vec3d.T{{0, 0, 1}, {1, 0, 0}, {0, 1, 0}, {0, 0, -1}}
	enc := NewOctEncodedVertexNormals(normals)

	buf := new(bytes.Buffer)
	buf.Write(createTestTile())
	writeExt(buf, QUANTIZED_MESH_LIGHT_EXTENSION_ID, enc.Encoded)

	tile, err := Decode(buf.Bytes())
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if tile.Normals == nil {
		t.Fatal("expected normals")
	}
	if tile.Normals.Len() != 4 {
		t.Fatalf("expected 4 normals, got %d", tile.Normals.Len())
	}
	for i, n := range tile.Normals.Decode() {
		if d := vec3d.Sub(&n, &normals[i]); d.Length() > 0.02 {
			t.Errorf("normal %d: expected %v, got %v", i, normals[i], n)
		}
	}
	if tile.ExtensionFlags() != Ext_Light {
		t.Errorf("expected Ext_Light, got %d", tile.ExtensionFlags())
	}
}

func TestTruncationDetected(t *testing.T) {
	data := createTestTile()
	for cut := 0; cut < len(data); cut++ {
		tile, err := Decode(data[:cut])
		if err == nil {
			t.Fatalf("cut at %d: expected error, got tile %+v", cut, tile)
		}
		if !errors.Is(err, ErrMalformedTile) {
			t.Fatalf("cut at %d: expected ErrMalformedTile, got %v", cut, err)
		}
		if tile != nil {
			t.Fatalf("cut at %d: expected no partial tile", cut)
		}
	}
}

func TestTruncationStage(t *testing.T) {
	data := createTestTile()
	// header 88, vertices 4+24, triangles 4+12, edges 4 each
	tests := []struct {
		cut  int
		want Stage
	}{
		{0, StageHeader},
		{87, StageHeader},
		{90, StageVertices},
		{100, StageVertices},
		{116, StageTriangles},
		{125, StageTriangles},
		{132, StageWestEdge},
		{136, StageSouthEdge},
		{140, StageEastEdge},
		{147, StageNorthEdge},
	}
	for _, tc := range tests {
		_, err := Decode(data[:tc.cut])
		var mErr *MalformedTileError
		if !errors.As(err, &mErr) {
			t.Fatalf("cut at %d: expected MalformedTileError, got %v", tc.cut, err)
		}
		if mErr.Stage != tc.want {
			t.Errorf("cut at %d: expected stage %q, got %q", tc.cut, tc.want, mErr.Stage)
		}
	}
}

func TestTruncatedExtension(t *testing.T) {
	buf := new(bytes.Buffer)
	buf.Write(createTestTile())
	writeExt(buf, QUANTIZED_MESH_WATERMASK_EXTENSION_ID, make([]byte, 64))
	data := buf.Bytes()

	for _, cut := range []int{len(data) - 1, len(data) - 64, len(data) - 66} {
		_, err := Decode(data[:cut])
		var mErr *MalformedTileError
		if !errors.As(err, &mErr) {
			t.Fatalf("cut at %d: expected MalformedTileError, got %v", cut, err)
		}
		if mErr.Stage != StageExtensions {
			t.Errorf("cut at %d: expected extensions stage, got %q", cut, mErr.Stage)
		}
	}
}

func TestHugeCountRejectedBeforeAllocation(t *testing.T) {
	buf := new(bytes.Buffer)
	binary.Write(buf, binary.LittleEndian, testHeader())
	binary.Write(buf, binary.LittleEndian, uint32(0xffffffff))

	_, err := Decode(buf.Bytes())
	var mErr *MalformedTileError
	if !errors.As(err, &mErr) || mErr.Stage != StageVertices {
		t.Fatalf("expected vertices MalformedTileError, got %v", err)
	}
}

func TestStrictIndexRange(t *testing.T) {
	buf := new(bytes.Buffer)
	writeRawTile(buf, 3, make([]uint16, 9))
	binary.Write(buf, binary.LittleEndian, uint32(1))
	binary.Write(buf, binary.LittleEndian, []uint16{0, 0, 0})
	binary.Write(buf, binary.LittleEndian, uint32(1))
	binary.Write(buf, binary.LittleEndian, []uint16{7})
	for i := 0; i < 3; i++ {
		binary.Write(buf, binary.LittleEndian, uint32(0))
	}
	data := buf.Bytes()

	if _, err := Decode(data); err != nil {
		t.Fatalf("lenient decode failed: %v", err)
	}
	_, err := DecodeWithOptions(data, DecodeOptions{Strict: true})
	var mErr *MalformedTileError
	if !errors.As(err, &mErr) || mErr.Stage != StageWestEdge {
		t.Fatalf("expected west edge MalformedTileError, got %v", err)
	}
}

func TestDecodeConcurrent(t *testing.T) {
	data, err := Encode(sampleTile())
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tile, err := Decode(data)
			if err != nil {
				errs <- err
				return
			}
			if tile.TriangleCount() != 3 {
				errs <- errors.New("wrong triangle count")
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

func TestFaces(t *testing.T) {
	tile := sampleTile()
	faces := tile.Faces()
	if len(faces) != 3 {
		t.Fatalf("expected 3 faces, got %d", len(faces))
	}
	if faces[1] != [3]int{2, 1, 3} {
		t.Errorf("unexpected face %v", faces[1])
	}
}

func TestMime(t *testing.T) {
	tests := []struct {
		flag TerrainExtensionFlag
		want string
	}{
		{Ext_None, "application/vnd.quantized-mesh"},
		{Ext_Light, "application/vnd.quantized-mesh;extensions=octvertexnormals"},
		{Ext_Light_WaterMask, "application/vnd.quantized-mesh;extensions=octvertexnormals-watermask"},
		{Ext_WaterMask | Ext_Metadata, "application/vnd.quantized-mesh;extensions=watermask-metadata"},
	}
	for _, tc := range tests {
		if got := ContentType(tc.flag); got != tc.want {
			t.Errorf("ContentType(%d) = %s, expected %s", tc.flag, got, tc.want)
		}
	}
}

func TestMalformedTileErrorMessage(t *testing.T) {
	err := &MalformedTileError{Stage: StageTriangles, Offset: 120, Reason: "short"}
	want := "malformed quantized-mesh tile at triangles (offset 120): short"
	if err.Error() != want {
		t.Errorf("expected %q, got %q", want, err.Error())
	}
}
