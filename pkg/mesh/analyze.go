package mesh

import (
	"github.com/chazu/solidmesh/pkg/geom"
)

// Zenith is the vertical reference for slopes.
var Zenith = geom.Point3{X: 0, Y: 0, Z: 1}

// Area returns the total surface area.
func (m *Mesh) Area() float64 {
	if m.IsEmpty() {
		return 0
	}
	var sum float64
	for i := range m.Triangles {
		a, b, c := m.Corners(i)
		sum += b.Sub(a).Cross(c.Sub(a)).Length() / 2
	}
	return sum
}

// Volume returns the signed enclosed volume by the divergence theorem,
// summing the tetrahedra spanned by the origin and each triangle. The
// result is meaningful only when the mesh is closed and consistently
// oriented; outward counter-clockwise faces give a positive volume.
func (m *Mesh) Volume() float64 {
	if m.IsEmpty() {
		return 0
	}
	var sum float64
	for i := range m.Triangles {
		a, b, c := m.Corners(i)
		sum += a.Dot(b.Cross(c))
	}
	return sum / 6
}

// Normals returns the unit normal of each triangle in order. A triangle
// with no area gets the zero vector.
func (m *Mesh) Normals() []geom.Point3 {
	out := make([]geom.Point3, len(m.Triangles))
	for i := range m.Triangles {
		a, b, c := m.Corners(i)
		n := b.Sub(a).Cross(c.Sub(a))
		if l := n.Length(); l > 0 {
			out[i] = n.MulScalar(1 / l)
		}
	}
	return out
}

// Slopes returns, for each triangle in order, the angle in degrees between
// its normal and Zenith. Triangles with no area yield NaN.
func (m *Mesh) Slopes() []float64 {
	normals := m.Normals()
	out := make([]float64, len(normals))
	for i, n := range normals {
		out[i] = geom.VectorAngle(n, Zenith)
	}
	return out
}

// Edge is an undirected mesh edge with A < B.
type Edge struct {
	A, B int
}

func newEdge(a, b int) Edge {
	if a > b {
		a, b = b, a
	}
	return Edge{A: a, B: b}
}

// edgeUse counts how often an undirected edge appears, and in which
// direction it first appeared.
type edgeUse struct {
	count    int
	forward  int // uses as A->B
	from, to int // first direction seen
}

// edgeUses walks every triangle edge. order lists edges by first
// appearance so callers iterate deterministically.
func (m *Mesh) edgeUses() (uses map[Edge]*edgeUse, order []Edge) {
	uses = make(map[Edge]*edgeUse, len(m.Triangles)*3/2)
	for _, t := range m.Triangles {
		for k := 0; k < 3; k++ {
			from, to := t[k], t[(k+1)%3]
			e := newEdge(from, to)
			u, ok := uses[e]
			if !ok {
				u = &edgeUse{from: from, to: to}
				uses[e] = u
				order = append(order, e)
			}
			u.count++
			if from == e.A {
				u.forward++
			}
		}
	}
	return uses, order
}

// OpenEdges returns the edges used by exactly one triangle, oriented as
// in that triangle, in order of first appearance.
func (m *Mesh) OpenEdges() [][2]int {
	uses, order := m.edgeUses()
	var out [][2]int
	for _, e := range order {
		if u := uses[e]; u.count == 1 {
			out = append(out, [2]int{u.from, u.to})
		}
	}
	return out
}

// OpenEdgeCount returns the number of edges used by exactly one triangle.
func (m *Mesh) OpenEdgeCount() int {
	uses, _ := m.edgeUses()
	n := 0
	for _, u := range uses {
		if u.count == 1 {
			n++
		}
	}
	return n
}

// IsSolid reports whether the mesh is non-empty and has no open edges.
func (m *Mesh) IsSolid() bool {
	if m.IsEmpty() {
		return false
	}
	return m.OpenEdgeCount() == 0
}

// IsConsistentlyOriented reports whether every edge shared by two
// triangles is traversed once in each direction, and no edge is shared by
// more than two. Open edges do not affect the result.
func (m *Mesh) IsConsistentlyOriented() bool {
	uses, _ := m.edgeUses()
	for _, u := range uses {
		switch u.count {
		case 1:
		case 2:
			if u.forward != 1 {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// Polyline is a chain of points. A closed loop repeats its first point at
// the end.
type Polyline []geom.Point3

// Closed reports whether the polyline ends where it starts.
func (p Polyline) Closed() bool {
	return len(p) > 2 && p[0] == p[len(p)-1]
}

// BoundaryEdges chains the open edges into polylines. Edges that meet at a
// shared point are joined; each hole in the surface comes back as one
// closed polyline.
func (m *Mesh) BoundaryEdges() []Polyline {
	open := m.OpenEdges()
	if len(open) == 0 {
		return nil
	}

	at := make(map[int][]int)
	for i, e := range open {
		at[e[0]] = append(at[e[0]], i)
		at[e[1]] = append(at[e[1]], i)
	}
	used := make([]bool, len(open))

	// next returns an unused edge at v and its far end.
	next := func(v int) (int, bool) {
		for _, i := range at[v] {
			if used[i] {
				continue
			}
			used[i] = true
			if open[i][0] == v {
				return open[i][1], true
			}
			return open[i][0], true
		}
		return 0, false
	}

	var out []Polyline
	for i, e := range open {
		if used[i] {
			continue
		}
		used[i] = true
		chain := []int{e[0], e[1]}

		for chain[len(chain)-1] != chain[0] {
			v, ok := next(chain[len(chain)-1])
			if !ok {
				break
			}
			chain = append(chain, v)
		}
		if chain[len(chain)-1] != chain[0] {
			var head []int
			for v := chain[0]; ; {
				w, ok := next(v)
				if !ok {
					break
				}
				head = append(head, w)
				v = w
			}
			for l, r := 0, len(head)-1; l < r; l, r = l+1, r-1 {
				head[l], head[r] = head[r], head[l]
			}
			chain = append(head, chain...)
		}

		line := make(Polyline, len(chain))
		for k, v := range chain {
			line[k] = m.Points[v]
		}
		out = append(out, line)
	}
	return out
}

