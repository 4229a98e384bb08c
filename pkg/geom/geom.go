// Package geom defines the polygon data model consumed by the mesher:
// points, rings, polygons with holes and multipolygons, plus the plane
// math (Newell normals, local 2D frames) used to triangulate them.
//
// Rings are always stored open: the closing point that repeats the first
// point is stripped at construction time by NewRing.
package geom

import (
	"errors"

	v2 "github.com/deadsy/sdfx/vec/v2"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// ErrDegenerateGeometry is returned when a ring has too few distinct points
// or its points are collinear, so no plane can be derived from it.
var ErrDegenerateGeometry = errors.New("degenerate geometry")

// Point3 is a position in model space.
type Point3 = v3.Vec

// Point2 is a position in a polygon's local plane frame.
type Point2 = v2.Vec

// Ring is an ordered, open loop of points. The edge from the last point
// back to the first is implied.
type Ring []Point3

// NewRing copies pts into a canonical open ring. Consecutive bit-identical
// points are collapsed and any trailing points equal to the first point are
// dropped, so callers may pass closed or open sequences interchangeably.
func NewRing(pts []Point3) Ring {
	r := make(Ring, 0, len(pts))
	for _, p := range pts {
		if len(r) > 0 && r[len(r)-1] == p {
			continue
		}
		r = append(r, p)
	}
	for len(r) > 1 && r[len(r)-1] == r[0] {
		r = r[:len(r)-1]
	}
	return r
}

// Closed returns a copy of the ring with the first point appended.
func (r Ring) Closed() []Point3 {
	if len(r) == 0 {
		return nil
	}
	out := make([]Point3, 0, len(r)+1)
	out = append(out, r...)
	return append(out, r[0])
}

// Extent returns the length of the diagonal of the ring's bounding box.
func (r Ring) Extent() float64 {
	if len(r) == 0 {
		return 0
	}
	lo, hi := r[0], r[0]
	for _, p := range r[1:] {
		lo = Point3{X: min(lo.X, p.X), Y: min(lo.Y, p.Y), Z: min(lo.Z, p.Z)}
		hi = Point3{X: max(hi.X, p.X), Y: max(hi.Y, p.Y), Z: max(hi.Z, p.Z)}
	}
	return hi.Sub(lo).Length()
}

// Polygon is an outer ring with zero or more holes, all in one plane.
type Polygon struct {
	Outer Ring
	Holes []Ring
}

// NewPolygon builds a polygon from raw point sequences, normalizing every
// ring with NewRing.
func NewPolygon(outer []Point3, holes ...[]Point3) Polygon {
	p := Polygon{Outer: NewRing(outer)}
	for _, h := range holes {
		p.Holes = append(p.Holes, NewRing(h))
	}
	return p
}

// Normal returns the unit normal of the outer ring.
func (p Polygon) Normal() (Point3, error) {
	return Normal(p.Outer)
}

// IsTriangle reports whether the polygon is a bare triangle that needs no
// triangulation.
func (p Polygon) IsTriangle() bool {
	return len(p.Outer) == 3 && len(p.Holes) == 0
}

// PointCount returns the number of points across all rings.
func (p Polygon) PointCount() int {
	n := len(p.Outer)
	for _, h := range p.Holes {
		n += len(h)
	}
	return n
}

// MultiPolygon is an ordered list of polygon parts, e.g. the faces of a
// building shell.
type MultiPolygon []Polygon
