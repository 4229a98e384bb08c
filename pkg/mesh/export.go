package mesh

import (
	"fmt"

	"github.com/deadsy/sdfx/render"
	"github.com/deadsy/sdfx/sdf"

	"github.com/chazu/solidmesh/pkg/geom"
)

// Flat is a mesh unrolled into render buffers. Vertices has 3 floats per
// vertex, Normals 3 floats per vertex, Indices 3 uint32s per triangle.
// Every triangle gets its own three vertices so normals stay faceted.
type Flat struct {
	Vertices []float32 `json:"vertices"` // [x0,y0,z0, x1,y1,z1, ...]
	Normals  []float32 `json:"normals"`  // [nx0,ny0,nz0, ...]
	Indices  []uint32  `json:"indices"`  // [i0,i1,i2, ...] triangles
}

// VertexCount returns the number of vertices.
func (f *Flat) VertexCount() int {
	return len(f.Vertices) / 3
}

// TriangleCount returns the number of triangles.
func (f *Flat) TriangleCount() int {
	return len(f.Indices) / 3
}

// Flat unrolls the mesh into render buffers.
func (m *Mesh) Flat() *Flat {
	numVerts := len(m.Triangles) * 3
	f := &Flat{
		Vertices: make([]float32, 0, numVerts*3),
		Normals:  make([]float32, 0, numVerts*3),
		Indices:  make([]uint32, 0, numVerts),
	}

	normals := m.Normals()
	for i, t := range m.Triangles {
		n := normals[i]
		nx, ny, nz := float32(n.X), float32(n.Y), float32(n.Z)
		for j := 0; j < 3; j++ {
			v := m.Points[t[j]]
			f.Vertices = append(f.Vertices, float32(v.X), float32(v.Y), float32(v.Z))
			f.Normals = append(f.Normals, nx, ny, nz)
			f.Indices = append(f.Indices, uint32(i*3+j))
		}
	}
	return f
}

// FromTriangles builds an unmerged mesh from sdfx triangles, three points
// per triangle. Call Clean to weld shared corners.
func FromTriangles(tris []*sdf.Triangle3) *Mesh {
	m := &Mesh{
		Points:    make([]geom.Point3, 0, len(tris)*3),
		Triangles: make([]Triangle, 0, len(tris)),
	}
	for _, t := range tris {
		if t == nil {
			continue
		}
		base := len(m.Points)
		m.Points = append(m.Points, t[0], t[1], t[2])
		m.Triangles = append(m.Triangles, Triangle{base, base + 1, base + 2})
	}
	return m
}

// Triangles3 returns the mesh as sdfx triangles.
func (m *Mesh) Triangles3() []*sdf.Triangle3 {
	out := make([]*sdf.Triangle3, len(m.Triangles))
	for i := range m.Triangles {
		a, b, c := m.Corners(i)
		out[i] = &sdf.Triangle3{a, b, c}
	}
	return out
}

// SaveSTL writes the mesh to path as binary STL.
func (m *Mesh) SaveSTL(path string) error {
	if m.IsEmpty() {
		return fmt.Errorf("mesh: save %s: mesh is empty", path)
	}
	if err := render.SaveSTL(path, m.Triangles3()); err != nil {
		return fmt.Errorf("mesh: save %s: %w", path, err)
	}
	return nil
}
