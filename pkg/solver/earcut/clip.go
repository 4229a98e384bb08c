package earcut

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/chazu/solidmesh/pkg/geom"
	"github.com/chazu/solidmesh/pkg/solver"
)

// node is a vertex in a circular doubly linked polygon.
type node struct {
	i          int // index into the input points
	x, y       float64
	prev, next *node
	steiner    bool
}

// cutter accumulates triangles for one region.
type cutter struct {
	ctx   context.Context
	tris  []solver.Triangle
	steps int
	err   error
}

func (c *cutter) cancelled() bool {
	if c.err != nil {
		return true
	}
	c.steps++
	if c.steps%checkInterval == 0 {
		if err := c.ctx.Err(); err != nil {
			c.err = fmt.Errorf("earcut: %w", err)
		}
	}
	return c.err != nil
}

// linkedList builds a circular list over idx, wound counter-clockwise when
// ccw is set and clockwise otherwise.
func linkedList(pts []geom.Point2, idx []int, ccw bool) *node {
	var last *node
	if ccw == (signedArea(pts, idx) > 0) {
		for _, i := range idx {
			last = insertNode(i, pts[i], last)
		}
	} else {
		for k := len(idx) - 1; k >= 0; k-- {
			last = insertNode(idx[k], pts[idx[k]], last)
		}
	}
	if last != nil && equals(last, last.next) {
		removeNode(last)
		last = last.next
	}
	return last
}

// earcutLinked clips ears off the polygon starting at ear. When no ear can
// be found it retries with collinear points filtered (pass 1), then with
// local self-intersections cured (pass 2), then by splitting the polygon.
func (c *cutter) earcutLinked(ear *node, pass int) {
	if ear == nil {
		return
	}
	stop := ear
	for ear.prev != ear.next {
		if c.cancelled() {
			return
		}
		prev, next := ear.prev, ear.next

		if isEar(ear) {
			c.tris = append(c.tris, solver.Triangle{prev.i, ear.i, next.i})
			removeNode(ear)
			ear = next.next
			stop = next.next
			continue
		}

		ear = next
		if ear == stop {
			switch pass {
			case 0:
				c.earcutLinked(filterPoints(ear, nil), 1)
			case 1:
				ear = c.cureLocalIntersections(filterPoints(ear, nil))
				c.earcutLinked(ear, 2)
			case 2:
				c.splitEarcut(ear)
			}
			return
		}
	}
}

// isEar reports whether ear is convex and no other vertex lies inside the
// triangle it forms with its neighbours.
func isEar(ear *node) bool {
	a, b, cc := ear.prev, ear, ear.next
	if area(a, b, cc) >= 0 {
		return false
	}

	x0, x1 := math.Min(a.x, math.Min(b.x, cc.x)), math.Max(a.x, math.Max(b.x, cc.x))
	y0, y1 := math.Min(a.y, math.Min(b.y, cc.y)), math.Max(a.y, math.Max(b.y, cc.y))

	for p := cc.next; p != a; p = p.next {
		if p.x >= x0 && p.x <= x1 && p.y >= y0 && p.y <= y1 &&
			pointInTriangle(a.x, a.y, b.x, b.y, cc.x, cc.y, p.x, p.y) &&
			area(p.prev, p, p.next) >= 0 {
			return false
		}
	}
	return true
}

func (c *cutter) cureLocalIntersections(start *node) *node {
	p := start
	for {
		a, b := p.prev, p.next.next
		if !equals(a, b) && intersects(a, p, p.next, b) && locallyInside(a, b) && locallyInside(b, a) {
			c.tris = append(c.tris, solver.Triangle{a.i, p.i, b.i})
			removeNode(p)
			removeNode(p.next)
			p = b
			start = b
		}
		p = p.next
		if p == start {
			break
		}
	}
	return filterPoints(p, nil)
}

func (c *cutter) splitEarcut(start *node) {
	a := start
	for {
		for b := a.next.next; b != a.prev; b = b.next {
			if a.i != b.i && isValidDiagonal(a, b) {
				other := splitPolygon(a, b)
				a = filterPoints(a, a.next)
				other = filterPoints(other, other.next)
				c.earcutLinked(a, 0)
				c.earcutLinked(other, 0)
				return
			}
		}
		a = a.next
		if a == start {
			return
		}
	}
}

// filterPoints removes duplicate and collinear vertices between start and
// end.
func filterPoints(start, end *node) *node {
	if start == nil {
		return nil
	}
	if end == nil {
		end = start
	}
	p := start
	for {
		again := false
		if !p.steiner && (equals(p, p.next) || area(p.prev, p, p.next) == 0) {
			removeNode(p)
			p = p.prev
			end = p
			if p == p.next {
				break
			}
			again = true
		} else {
			p = p.next
		}
		if !again && p == end {
			break
		}
	}
	return end
}

// ---------------------------------------------------------------------------
// Hole elimination
// ---------------------------------------------------------------------------

// eliminateHoles links every hole into the outer polygon, leftmost hole
// first, producing a single weakly simple polygon.
func eliminateHoles(pts []geom.Point2, holes []*loop, outer *node) *node {
	var queue []*node
	for _, h := range holes {
		list := linkedList(pts, h.idx, false)
		if list == nil {
			continue
		}
		if list == list.next {
			list.steiner = true
		}
		queue = append(queue, leftmost(list))
	}
	sort.SliceStable(queue, func(i, j int) bool {
		return queue[i].x < queue[j].x
	})
	for _, h := range queue {
		outer = eliminateHole(h, outer)
	}
	return outer
}

func eliminateHole(hole, outer *node) *node {
	bridge := findHoleBridge(hole, outer)
	if bridge == nil {
		return outer
	}
	bridgeReverse := splitPolygon(bridge, hole)
	filterPoints(bridgeReverse, bridgeReverse.next)
	return filterPoints(bridge, bridge.next)
}

// findHoleBridge finds an outer vertex visible from the hole's leftmost
// point by casting a ray towards -x.
func findHoleBridge(hole, outer *node) *node {
	hx, hy := hole.x, hole.y
	qx := math.Inf(-1)
	var m *node

	p := outer
	for {
		if hy <= p.y && hy >= p.next.y && p.next.y != p.y {
			x := p.x + (hy-p.y)*(p.next.x-p.x)/(p.next.y-p.y)
			if x <= hx && x > qx {
				qx = x
				if p.x < p.next.x {
					m = p
				} else {
					m = p.next
				}
				if x == hx {
					return m
				}
			}
		}
		p = p.next
		if p == outer {
			break
		}
	}
	if m == nil {
		return nil
	}

	// Look for points inside the triangle (hole point, ray hit, m); the
	// one with the smallest angle to the ray is the bridge.
	stop := m
	mx, my := m.x, m.y
	tanMin := math.Inf(1)
	p = m
	for {
		if hx >= p.x && p.x >= mx && hx != p.x {
			ax, cx := qx, hx
			if hy < my {
				ax, cx = hx, qx
			}
			if pointInTriangle(ax, hy, mx, my, cx, hy, p.x, p.y) {
				tan := math.Abs(hy-p.y) / (hx - p.x)
				if locallyInside(p, hole) &&
					(tan < tanMin || (tan == tanMin && (p.x > m.x || (p.x == m.x && sectorContainsSector(m, p))))) {
					m = p
					tanMin = tan
				}
			}
		}
		p = p.next
		if p == stop {
			break
		}
	}
	return m
}

func sectorContainsSector(m, p *node) bool {
	return area(m.prev, m, p.prev) < 0 && area(p.next, m, m.next) < 0
}

func leftmost(start *node) *node {
	best := start
	for p := start.next; p != start; p = p.next {
		if p.x < best.x || (p.x == best.x && p.y < best.y) {
			best = p
		}
	}
	return best
}

// ---------------------------------------------------------------------------
// Predicates
// ---------------------------------------------------------------------------

// area is twice the signed area of pqr, negative for a counter-clockwise
// turn.
func area(p, q, r *node) float64 {
	return (q.y-p.y)*(r.x-q.x) - (q.x-p.x)*(r.y-q.y)
}

func equals(a, b *node) bool {
	return a.x == b.x && a.y == b.y
}

func pointInTriangle(ax, ay, bx, by, cx, cy, px, py float64) bool {
	return (cx-px)*(ay-py) >= (ax-px)*(cy-py) &&
		(ax-px)*(by-py) >= (bx-px)*(ay-py) &&
		(bx-px)*(cy-py) >= (cx-px)*(by-py)
}

// isValidDiagonal reports whether a-b can split the polygon in two.
func isValidDiagonal(a, b *node) bool {
	return a.next.i != b.i && a.prev.i != b.i && !intersectsPolygon(a, b) &&
		(locallyInside(a, b) && locallyInside(b, a) && middleInside(a, b) &&
			(area(a.prev, a, b.prev) != 0 || area(a, b.prev, b) != 0) ||
			equals(a, b) && area(a.prev, a, a.next) > 0 && area(b.prev, b, b.next) > 0)
}

func sign(v float64) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}

// intersects reports whether segments p1-q1 and p2-q2 intersect.
func intersects(p1, q1, p2, q2 *node) bool {
	o1 := sign(area(p1, q1, p2))
	o2 := sign(area(p1, q1, q2))
	o3 := sign(area(p2, q2, p1))
	o4 := sign(area(p2, q2, q1))

	if o1 != o2 && o3 != o4 {
		return true
	}
	if o1 == 0 && onSegment(p1, p2, q1) {
		return true
	}
	if o2 == 0 && onSegment(p1, q2, q1) {
		return true
	}
	if o3 == 0 && onSegment(p2, p1, q2) {
		return true
	}
	if o4 == 0 && onSegment(p2, q1, q2) {
		return true
	}
	return false
}

// onSegment reports whether q lies within the bounding box of p-r.
func onSegment(p, q, r *node) bool {
	return q.x <= math.Max(p.x, r.x) && q.x >= math.Min(p.x, r.x) &&
		q.y <= math.Max(p.y, r.y) && q.y >= math.Min(p.y, r.y)
}

func intersectsPolygon(a, b *node) bool {
	p := a
	for {
		if p.i != a.i && p.next.i != a.i && p.i != b.i && p.next.i != b.i && intersects(p, p.next, a, b) {
			return true
		}
		p = p.next
		if p == a {
			return false
		}
	}
}

// locallyInside reports whether the diagonal a-b starts into the polygon
// interior at a.
func locallyInside(a, b *node) bool {
	if area(a.prev, a, a.next) < 0 {
		return area(a, b, a.next) >= 0 && area(a, a.prev, b) >= 0
	}
	return area(a, b, a.prev) < 0 || area(a, a.next, b) < 0
}

// middleInside reports whether the midpoint of a-b is inside the polygon.
func middleInside(a, b *node) bool {
	inside := false
	px, py := (a.x+b.x)/2, (a.y+b.y)/2
	p := a
	for {
		if (p.y > py) != (p.next.y > py) && p.next.y != p.y &&
			px < (p.next.x-p.x)*(py-p.y)/(p.next.y-p.y)+p.x {
			inside = !inside
		}
		p = p.next
		if p == a {
			return inside
		}
	}
}

// ---------------------------------------------------------------------------
// List surgery
// ---------------------------------------------------------------------------

// splitPolygon links a to b with a doubled diagonal, splitting the list in
// two. It returns the copy of b on the second list.
func splitPolygon(a, b *node) *node {
	a2 := &node{i: a.i, x: a.x, y: a.y}
	b2 := &node{i: b.i, x: b.x, y: b.y}
	an, bp := a.next, b.prev

	a.next = b
	b.prev = a

	a2.next = an
	an.prev = a2

	b2.next = a2
	a2.prev = b2

	bp.next = b2
	b2.prev = bp

	return b2
}

func insertNode(i int, pt geom.Point2, last *node) *node {
	p := &node{i: i, x: pt.X, y: pt.Y}
	if last == nil {
		p.prev = p
		p.next = p
	} else {
		p.next = last.next
		p.prev = last
		last.next.prev = p
		last.next = p
	}
	return p
}

func removeNode(p *node) {
	p.next.prev = p.prev
	p.prev.next = p.next
}
