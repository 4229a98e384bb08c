package mesh

import (
	"fmt"
	"math"

	"github.com/chazu/solidmesh/pkg/geom"
)

// Tolerance selects how Clean decides two points are the same vertex.
// The zero value is an exact bit-for-bit match.
type Tolerance struct {
	dist float64
}

// Exact merges only bit-identical points.
func Exact() Tolerance {
	return Tolerance{}
}

// Within merges points closer than d. A non-positive or NaN d is exact.
func Within(d float64) Tolerance {
	if !(d > 0) || math.IsInf(d, 0) {
		return Tolerance{}
	}
	return Tolerance{dist: d}
}

// IsExact reports whether t is an exact match policy.
func (t Tolerance) IsExact() bool {
	return t.dist == 0
}

// Distance returns the merge distance, 0 for exact.
func (t Tolerance) Distance() float64 {
	return t.dist
}

func (t Tolerance) String() string {
	if t.IsExact() {
		return "exact"
	}
	return fmt.Sprintf("within %g", t.dist)
}

// Clean returns a copy of m with coincident points merged under tol.
// Triangles are remapped onto the surviving points; a triangle that ends up
// referencing the same point twice is dropped, and points no triangle uses
// are removed. Surviving points keep their first-seen order. An empty mesh
// is returned unchanged.
func (m *Mesh) Clean(tol Tolerance) *Mesh {
	if m.IsEmpty() {
		return m
	}

	var remap []int
	var merged []geom.Point3
	if tol.IsExact() {
		remap, merged = mergeExact(m.Points)
	} else {
		remap, merged = mergeWithin(m.Points, tol.dist)
	}

	tris := make([]Triangle, 0, len(m.Triangles))
	for _, t := range m.Triangles {
		a, b, c := remap[t[0]], remap[t[1]], remap[t[2]]
		if a == b || b == c || a == c {
			continue
		}
		tris = append(tris, Triangle{a, b, c})
	}

	return compact(merged, tris)
}

type bitKey [3]uint64

func mergeExact(pts []geom.Point3) ([]int, []geom.Point3) {
	remap := make([]int, len(pts))
	seen := make(map[bitKey]int, len(pts))
	out := make([]geom.Point3, 0, len(pts))
	for i, p := range pts {
		k := bitKey{math.Float64bits(p.X), math.Float64bits(p.Y), math.Float64bits(p.Z)}
		if j, ok := seen[k]; ok {
			remap[i] = j
			continue
		}
		seen[k] = len(out)
		remap[i] = len(out)
		out = append(out, p)
	}
	return remap, out
}

type cellKey [3]int64

// mergeWithin snaps each point to the first earlier representative within
// d. Representatives are bucketed in a grid of cell size d so only the 27
// surrounding cells need to be searched.
func mergeWithin(pts []geom.Point3, d float64) ([]int, []geom.Point3) {
	cell := func(p geom.Point3) cellKey {
		return cellKey{
			int64(math.Floor(p.X / d)),
			int64(math.Floor(p.Y / d)),
			int64(math.Floor(p.Z / d)),
		}
	}

	remap := make([]int, len(pts))
	grid := make(map[cellKey][]int)
	out := make([]geom.Point3, 0, len(pts))
	d2 := d * d

	for i, p := range pts {
		c := cell(p)
		found := -1
	search:
		for dx := int64(-1); dx <= 1; dx++ {
			for dy := int64(-1); dy <= 1; dy++ {
				for dz := int64(-1); dz <= 1; dz++ {
					for _, j := range grid[cellKey{c[0] + dx, c[1] + dy, c[2] + dz}] {
						if q := out[j].Sub(p); q.Dot(q) <= d2 {
							found = j
							break search
						}
					}
				}
			}
		}
		if found >= 0 {
			remap[i] = found
			continue
		}
		grid[c] = append(grid[c], len(out))
		remap[i] = len(out)
		out = append(out, p)
	}
	return remap, out
}

// compact drops points not referenced by any triangle.
func compact(pts []geom.Point3, tris []Triangle) *Mesh {
	used := make([]bool, len(pts))
	for _, t := range tris {
		used[t[0]], used[t[1]], used[t[2]] = true, true, true
	}

	idx := make([]int, len(pts))
	out := &Mesh{Points: make([]geom.Point3, 0, len(pts))}
	for i, p := range pts {
		if used[i] {
			idx[i] = len(out.Points)
			out.Points = append(out.Points, p)
		}
	}

	out.Triangles = make([]Triangle, len(tris))
	for ti, t := range tris {
		out.Triangles[ti] = Triangle{idx[t[0]], idx[t[1]], idx[t[2]]}
	}
	return out
}
