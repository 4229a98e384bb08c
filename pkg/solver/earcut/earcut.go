// Package earcut implements the solver.Solver interface with ear clipping.
// Segment loops are classified into outer boundaries and holes using the
// hole marker points, each hole is bridged into the outer boundary that
// contains it, and the resulting simple polygon is clipped ear by ear.
package earcut

import (
	"context"
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	"github.com/chazu/solidmesh/pkg/geom"
	"github.com/chazu/solidmesh/pkg/solver"
)

// Compile-time interface check.
var _ solver.Solver = (*Earcut)(nil)

// checkInterval is how many clipping steps run between context checks.
const checkInterval = 256

// Earcut implements solver.Solver. It keeps no state between calls and is
// safe for concurrent use.
type Earcut struct{}

// New returns a new Earcut solver.
func New() *Earcut {
	return &Earcut{}
}

// loop is one closed chain of segments.
type loop struct {
	idx  []int    // point indices in traversal order
	ring orb.Ring // closed copy for containment tests
	area float64  // unsigned area
}

// region is an outer loop with the holes that fall inside it.
type region struct {
	outer *loop
	holes []*loop
}

// Triangulate triangulates in. Segments must form closed simple loops.
// Output triangles keep the winding of the outer loop they belong to.
func (e *Earcut) Triangulate(ctx context.Context, in solver.Input) ([]solver.Triangle, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("earcut: %w", err)
	}

	loops, err := buildLoops(in)
	if err != nil {
		return nil, err
	}

	var out []solver.Triangle
	for _, r := range assignHoles(in.Holes, loops) {
		tris, err := cutRegion(ctx, in.Points, r)
		if err != nil {
			return nil, err
		}
		out = append(out, tris...)
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("%w: earcut: no triangles produced", solver.ErrSolverFailure)
	}
	return out, nil
}

// buildLoops walks the segment graph into closed loops. Every point that
// appears in a segment must have exactly two incident segments.
func buildLoops(in solver.Input) ([]*loop, error) {
	n := len(in.Points)
	if len(in.Segments) == 0 {
		return nil, fmt.Errorf("%w: earcut: no segments", solver.ErrSolverFailure)
	}

	incident := make(map[int][]int)
	for s, seg := range in.Segments {
		a, b := seg[0], seg[1]
		if a < 0 || a >= n || b < 0 || b >= n {
			return nil, fmt.Errorf("%w: earcut: segment %d (%d,%d) out of range for %d points", solver.ErrSolverFailure, s, a, b, n)
		}
		if a == b {
			return nil, fmt.Errorf("%w: earcut: segment %d is a single point", solver.ErrSolverFailure, s)
		}
		incident[a] = append(incident[a], s)
		incident[b] = append(incident[b], s)
	}
	for _, seg := range in.Segments {
		for _, v := range seg {
			if d := len(incident[v]); d != 2 {
				return nil, fmt.Errorf("%w: earcut: point %d has %d segments, want 2", solver.ErrSolverFailure, v, d)
			}
		}
	}

	used := make([]bool, len(in.Segments))
	var loops []*loop
	for s, seg := range in.Segments {
		if used[s] {
			continue
		}
		used[s] = true

		start, cur := seg[0], seg[1]
		idx := []int{start}
		for cur != start {
			idx = append(idx, cur)
			next := -1
			for _, cand := range incident[cur] {
				if !used[cand] {
					next = cand
					break
				}
			}
			if next < 0 {
				return nil, fmt.Errorf("%w: earcut: open chain at point %d", solver.ErrSolverFailure, cur)
			}
			used[next] = true
			if in.Segments[next][0] == cur {
				cur = in.Segments[next][1]
			} else {
				cur = in.Segments[next][0]
			}
		}
		if len(idx) < 3 {
			return nil, fmt.Errorf("%w: earcut: loop through point %d has %d points", solver.ErrSolverFailure, start, len(idx))
		}
		loops = append(loops, newLoop(in.Points, idx))
	}
	return loops, nil
}

func newLoop(pts []geom.Point2, idx []int) *loop {
	ring := make(orb.Ring, 0, len(idx)+1)
	for _, i := range idx {
		ring = append(ring, orb.Point{pts[i].X, pts[i].Y})
	}
	ring = append(ring, ring[0])
	return &loop{
		idx:  idx,
		ring: ring,
		area: math.Abs(signedArea(pts, idx)),
	}
}

// assignHoles marks the innermost loop around each hole point as a hole and
// attaches every hole to the smallest non-hole loop that contains it. Holes
// outside every outer loop carve nothing and are dropped.
func assignHoles(holePts []geom.Point2, loops []*loop) []region {
	isHole := make([]bool, len(loops))
	for _, h := range holePts {
		pt := orb.Point{h.X, h.Y}
		best := -1
		for i, l := range loops {
			if !planar.RingContains(l.ring, pt) {
				continue
			}
			if best < 0 || l.area < loops[best].area {
				best = i
			}
		}
		if best >= 0 {
			isHole[best] = true
		}
	}

	var regions []region
	regionOf := make(map[int]int)
	for i, l := range loops {
		if !isHole[i] {
			regionOf[i] = len(regions)
			regions = append(regions, region{outer: l})
		}
	}

	for i, h := range loops {
		if !isHole[i] {
			continue
		}
		probe := h.ring[0]
		best := -1
		for j, o := range loops {
			if isHole[j] || o.area <= h.area || !planar.RingContains(o.ring, probe) {
				continue
			}
			if best < 0 || o.area < loops[best].area {
				best = j
			}
		}
		if best >= 0 {
			r := &regions[regionOf[best]]
			r.holes = append(r.holes, h)
		}
	}
	return regions
}

// cutRegion triangulates one outer loop minus its holes.
func cutRegion(ctx context.Context, pts []geom.Point2, r region) ([]solver.Triangle, error) {
	c := &cutter{ctx: ctx}

	outer := linkedList(pts, r.outer.idx, true)
	if outer == nil || outer.next == outer.prev {
		return nil, nil
	}
	if len(r.holes) > 0 {
		outer = eliminateHoles(pts, r.holes, outer)
	}

	c.earcutLinked(outer, 0)
	if c.err != nil {
		return nil, c.err
	}

	// The clipper always works counter-clockwise; restore the input winding.
	if r.outer.ring.Orientation() == orb.CW {
		for i := range c.tris {
			c.tris[i][1], c.tris[i][2] = c.tris[i][2], c.tris[i][1]
		}
	}
	return c.tris, nil
}

// signedArea is the shoelace area of the loop; positive when
// counter-clockwise.
func signedArea(pts []geom.Point2, idx []int) float64 {
	var sum float64
	for k, i := range idx {
		j := idx[(k+1)%len(idx)]
		sum += pts[i].X*pts[j].Y - pts[j].X*pts[i].Y
	}
	return sum / 2
}
