// Package mesh holds the indexed triangle mesh assembled from triangulated
// polygons and the read-only measurements taken from it: area, volume,
// slopes, open edges and orientation.
package mesh

import (
	"github.com/chazu/solidmesh/pkg/geom"
)

// Triangle is three indices into Mesh.Points.
type Triangle [3]int

// Mesh is an indexed triangle mesh. Points are appended as polygons are
// added; triangle indices are global into Points.
type Mesh struct {
	Points    []geom.Point3 `json:"points"`
	Triangles []Triangle    `json:"triangles"`
}

// New returns an empty mesh.
func New() *Mesh {
	return &Mesh{}
}

// VertexCount returns the number of points.
func (m *Mesh) VertexCount() int {
	return len(m.Points)
}

// TriangleCount returns the number of triangles.
func (m *Mesh) TriangleCount() int {
	return len(m.Triangles)
}

// IsEmpty returns true if the mesh has no points or no triangles.
func (m *Mesh) IsEmpty() bool {
	return m == nil || len(m.Points) == 0 || len(m.Triangles) == 0
}

// Append adds points and triangles whose indices were already offset by
// the mesh's point count at the time they were produced.
func (m *Mesh) Append(points []geom.Point3, tris []Triangle) {
	m.Points = append(m.Points, points...)
	m.Triangles = append(m.Triangles, tris...)
}

// Corners returns the three points of triangle i.
func (m *Mesh) Corners(i int) (a, b, c geom.Point3) {
	t := m.Triangles[i]
	return m.Points[t[0]], m.Points[t[1]], m.Points[t[2]]
}
