// Package tessellate turns polygons with holes into triangles and folds
// the triangles of a multipolygon into one indexed mesh. Each polygon is
// projected into its own plane, handed to a solver.Solver, and the
// resulting indices are mapped back onto the original 3D points.
package tessellate

import (
	"context"
	"fmt"

	"github.com/chazu/solidmesh/pkg/geom"
	"github.com/chazu/solidmesh/pkg/mesh"
	"github.com/chazu/solidmesh/pkg/solver"
)

// Face is the triangulation of one polygon. Triangle indices are already
// offset to their final position in the mesh being assembled.
type Face struct {
	Points    []geom.Point3
	Triangles []mesh.Triangle
}

// shift adds n to every triangle index.
func (f *Face) shift(n int) {
	if n == 0 {
		return
	}
	for i := range f.Triangles {
		f.Triangles[i][0] += n
		f.Triangles[i][1] += n
		f.Triangles[i][2] += n
	}
}

// TriangulatePolygon triangulates p. Points come back in ring order, outer
// ring first then each hole, and triangle indices are offset by offset.
//
// A bare triangle is emitted as is without calling s. Otherwise every ring
// is projected into the outer ring's plane, using the outer ring's first
// point as the shared origin, and s is called once with the ring segments
// and one interior point per hole.
func TriangulatePolygon(ctx context.Context, s solver.Solver, p geom.Polygon, offset int) (Face, error) {
	n, err := geom.Normal(p.Outer)
	if err != nil {
		return Face{}, fmt.Errorf("tessellate: outer ring: %w", err)
	}

	if p.IsTriangle() {
		return Face{
			Points:    append([]geom.Point3(nil), p.Outer...),
			Triangles: []mesh.Triangle{{offset, offset + 1, offset + 2}},
		}, nil
	}

	origin := p.Outer[0]
	pts3 := make([]geom.Point3, 0, p.PointCount())
	var in solver.Input

	pts3 = append(pts3, p.Outer...)
	in.Points = geom.Project(p.Outer, n, origin)
	in.Segments = ringSegments(0, len(p.Outer))

	for hi, h := range p.Holes {
		if len(h) < 3 {
			return Face{}, fmt.Errorf("tessellate: hole %d: %w: ring has %d points", hi, geom.ErrDegenerateGeometry, len(h))
		}
		h2 := geom.Project(h, n, origin)
		ip, err := InteriorPointOf(ctx, s, h2)
		if err != nil {
			return Face{}, fmt.Errorf("tessellate: hole %d: %w", hi, err)
		}
		in.Segments = append(in.Segments, ringSegments(len(in.Points), len(h))...)
		in.Points = append(in.Points, h2...)
		in.Holes = append(in.Holes, ip)
		pts3 = append(pts3, h...)
	}

	tris, err := s.Triangulate(ctx, in)
	if err != nil {
		return Face{}, fmt.Errorf("tessellate: %w", err)
	}

	face := Face{Points: pts3, Triangles: make([]mesh.Triangle, 0, len(tris))}
	for _, t := range tris {
		for _, v := range t {
			if v < 0 || v >= len(pts3) {
				return Face{}, fmt.Errorf("tessellate: %w: triangle index %d out of range for %d points", solver.ErrSolverFailure, v, len(pts3))
			}
		}
		face.Triangles = append(face.Triangles, mesh.Triangle{t[0], t[1], t[2]})
	}
	face.shift(offset)
	return face, nil
}

// InteriorPointOf returns a point strictly inside the 2D ring. The ring is
// triangulated on its own and the centroid of the first triangle is used.
func InteriorPointOf(ctx context.Context, s solver.Solver, ring []geom.Point2) (geom.Point2, error) {
	tris, err := s.Triangulate(ctx, solver.Input{
		Points:   ring,
		Segments: ringSegments(0, len(ring)),
	})
	if err != nil {
		return geom.Point2{}, err
	}
	if len(tris) == 0 {
		return geom.Point2{}, fmt.Errorf("%w: no triangles for interior point", solver.ErrSolverFailure)
	}
	t := tris[0]
	for _, v := range t {
		if v < 0 || v >= len(ring) {
			return geom.Point2{}, fmt.Errorf("%w: triangle index %d out of range for %d points", solver.ErrSolverFailure, v, len(ring))
		}
	}
	a, b, c := ring[t[0]], ring[t[1]], ring[t[2]]
	return geom.Point2{X: (a.X + b.X + c.X) / 3, Y: (a.Y + b.Y + c.Y) / 3}, nil
}

// ringSegments links n consecutive points starting at start into a closed
// loop.
func ringSegments(start, n int) []solver.Segment {
	segs := make([]solver.Segment, n)
	for i := 0; i < n; i++ {
		segs[i] = solver.Segment{start + i, start + (i+1)%n}
	}
	return segs
}
