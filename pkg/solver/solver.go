// Package solver defines the constrained 2D triangulation backend used by
// the mesher. Implementations (earcut) sit behind this interface so the
// backend can be swapped without touching the tessellation code.
package solver

import (
	"context"
	"errors"

	"github.com/chazu/solidmesh/pkg/geom"
)

// ErrSolverFailure is returned when a solver rejects its input or cannot
// produce a triangulation for it.
var ErrSolverFailure = errors.New("solver failure")

// Segment is a constrained edge between two point indices.
type Segment [2]int

// Triangle is three point indices.
type Triangle [3]int

// Input is a planar straight-line graph to triangulate.
type Input struct {
	// Points are the 2D vertices. Triangle indices refer to this slice.
	Points []geom.Point2
	// Segments are boundary edges that must appear in the output.
	Segments []Segment
	// Holes are points strictly inside regions that must stay empty.
	Holes []geom.Point2
}

// Solver is the abstract constrained triangulation interface.
type Solver interface {
	// Triangulate returns triangles over in.Points that respect
	// in.Segments and leave the regions marked by in.Holes empty.
	Triangulate(ctx context.Context, in Input) ([]Triangle, error)
}

// Func adapts a plain function to the Solver interface.
type Func func(ctx context.Context, in Input) ([]Triangle, error)

// Triangulate calls f.
func (f Func) Triangulate(ctx context.Context, in Input) ([]Triangle, error) {
	return f(ctx, in)
}
