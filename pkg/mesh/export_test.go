package mesh

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/deadsy/sdfx/render"
	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

func TestFlat(t *testing.T) {
	f := unitCube().Flat()
	if f.TriangleCount() != 12 {
		t.Errorf("TriangleCount() = %d, want 12", f.TriangleCount())
	}
	if f.VertexCount() != 36 {
		t.Errorf("VertexCount() = %d, want 36", f.VertexCount())
	}
	if len(f.Vertices) != len(f.Normals) {
		t.Fatalf("vertices length %d != normals length %d", len(f.Vertices), len(f.Normals))
	}
	// First triangle is on the bottom face.
	for j := 0; j < 3; j++ {
		if nz := f.Normals[j*3+2]; nz != -1 {
			t.Errorf("bottom vertex %d normal z = %v, want -1", j, nz)
		}
	}
}

func TestTriangles3RoundTrip(t *testing.T) {
	cube := unitCube()
	tris := cube.Triangles3()
	if len(tris) != 12 {
		t.Fatalf("Triangles3() returned %d triangles", len(tris))
	}
	m := FromTriangles(tris).Clean(Exact())
	if m.VertexCount() != 8 || !m.IsSolid() {
		t.Errorf("round trip gave %d points, solid=%v", m.VertexCount(), m.IsSolid())
	}
	if !almostEqual(m.Volume(), cube.Volume()) {
		t.Errorf("Volume() = %v, want %v", m.Volume(), cube.Volume())
	}
}

func TestSaveSTL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cube.stl")
	if err := unitCube().SaveSTL(path); err != nil {
		t.Fatalf("SaveSTL() error = %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	// Binary STL: 80 byte header, 4 byte count, 50 bytes per triangle.
	if want := int64(84 + 50*12); info.Size() != want {
		t.Errorf("file size = %d, want %d", info.Size(), want)
	}

	if err := New().SaveSTL(filepath.Join(t.TempDir(), "empty.stl")); err == nil {
		t.Error("SaveSTL on an empty mesh should fail")
	}
}

func TestMarchingCubesBox(t *testing.T) {
	box, err := sdf.Box3D(v3.Vec{X: 10, Y: 10, Z: 10}, 0)
	if err != nil {
		t.Fatalf("Box3D: %v", err)
	}
	tris := render.ToTriangles(box, render.NewMarchingCubesUniform(64))
	m := FromTriangles(tris).Clean(Exact())
	if m.IsEmpty() {
		t.Fatal("marching cubes mesh is empty")
	}
	// Marching cubes bevels the box edges, so only loose agreement is
	// expected.
	if v := math.Abs(m.Volume()); math.Abs(v-1000)/1000 > 0.1 {
		t.Errorf("|Volume()| = %v, want ~1000", v)
	}
	if a := m.Area(); math.Abs(a-600)/600 > 0.1 {
		t.Errorf("Area() = %v, want ~600", a)
	}
	t.Logf("marching cubes box: %d points, %d triangles, %d open edges",
		m.VertexCount(), m.TriangleCount(), m.OpenEdgeCount())
}
