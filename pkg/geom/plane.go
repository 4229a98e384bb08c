package geom

import (
	"fmt"
	"math"
)

// normalEpsilon scales the degeneracy test for Newell normals. The raw
// Newell vector has units of area, so it is compared to the squared extent.
const normalEpsilon = 1e-12

// axisEpsilon is the smallest normal component Basis will divide by.
const axisEpsilon = 0.001

// Normal estimates the unit normal of a ring with Newell's method. The
// normal follows the right-hand rule over the ring's winding.
func Normal(r Ring) (Point3, error) {
	if len(r) < 3 {
		return Point3{}, fmt.Errorf("%w: ring has %d points, need at least 3", ErrDegenerateGeometry, len(r))
	}

	var n Point3
	for i, cur := range r {
		next := r[(i+1)%len(r)]
		n.X += (cur.Y - next.Y) * (cur.Z + next.Z)
		n.Y += (cur.Z - next.Z) * (cur.X + next.X)
		n.Z += (cur.X - next.X) * (cur.Y + next.Y)
	}

	l := n.Length()
	ext := r.Extent()
	if l == 0 || math.IsNaN(l) || math.IsInf(l, 0) || l <= normalEpsilon*ext*ext {
		return Point3{}, fmt.Errorf("%w: no normal, points are collinear or coincident", ErrDegenerateGeometry)
	}
	return n.MulScalar(1 / l), nil
}

// Basis returns two unit axes spanning the plane orthogonal to n. The
// x axis is solved from whichever of the z or y components is safely away
// from zero, checked in that order, so the division is well conditioned.
// The returned frame (x, y, n) is right-handed.
func Basis(n Point3) (x, y Point3) {
	switch {
	case math.Abs(n.Z) > axisEpsilon:
		x = Point3{X: 1, Y: 0, Z: -n.X / n.Z}
	case math.Abs(n.Y) > axisEpsilon:
		x = Point3{X: 1, Y: -n.X / n.Y, Z: 0}
	default:
		x = Point3{X: -n.Y / n.X, Y: 1, Z: 0}
	}
	x = x.Normalize()
	y = n.Cross(x)
	return x, y
}

// Project maps pts orthogonally onto the plane with normal n, expressed in
// the Basis frame centred at origin. Out-of-plane offsets are discarded.
func Project(pts []Point3, n, origin Point3) []Point2 {
	xAxis, yAxis := Basis(n)
	out := make([]Point2, len(pts))
	for i, p := range pts {
		d := p.Sub(origin)
		out[i] = Point2{X: d.Dot(xAxis), Y: d.Dot(yAxis)}
	}
	return out
}

// Unproject maps local plane coordinates back into model space. Points
// produced by Project come back exactly only when the source was planar.
func Unproject(pts []Point2, n, origin Point3) []Point3 {
	xAxis, yAxis := Basis(n)
	out := make([]Point3, len(pts))
	for i, p := range pts {
		out[i] = origin.Add(xAxis.MulScalar(p.X)).Add(yAxis.MulScalar(p.Y))
	}
	return out
}

// PlaneDistance returns the signed distance from p to the plane through
// origin with unit normal n.
func PlaneDistance(p, n, origin Point3) float64 {
	return p.Sub(origin).Dot(n)
}

// VectorAngle returns the angle between a and b in degrees. The cosine is
// clamped to [-1, 1] so parallel vectors do not fall outside acos's domain.
// Zero-length input yields NaN.
func VectorAngle(a, b Point3) float64 {
	norms := a.Length() * b.Length()
	if norms == 0 {
		return math.NaN()
	}
	cos := a.Dot(b) / norms
	cos = math.Max(-1, math.Min(1, cos))
	return math.Acos(cos) * 180 / math.Pi
}
