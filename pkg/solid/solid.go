// Package solid is the caller-facing entry point: it builds a cleaned mesh
// from a multipolygon and answers volume, solidity, surface area, slope and
// boundary queries against it. Geometry problems never surface as errors;
// an input with no usable faces simply yields an empty mesh.
package solid

import (
	"context"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/chazu/solidmesh/pkg/geom"
	"github.com/chazu/solidmesh/pkg/mesh"
	"github.com/chazu/solidmesh/pkg/solver"
	"github.com/chazu/solidmesh/pkg/tessellate"
)

// Options configures Analyze.
type Options struct {
	// Tolerance controls vertex merging. The zero value merges only
	// bit-identical points.
	Tolerance mesh.Tolerance
	// Solver overrides the default earcut triangulator.
	Solver solver.Solver
	// Workers triangulates parts concurrently when above 1.
	Workers int
	// SolveTimeout bounds each solver call.
	SolveTimeout time.Duration
	// Logger is used for debug output. Defaults to a no-op logger.
	Logger *zap.Logger
}

// Solid is an analysed multipolygon. All measures are computed once in
// Analyze; a Solid is read-only afterwards and safe for concurrent use.
type Solid struct {
	mesh     *mesh.Mesh
	failures []*tessellate.PartError
	tol      mesh.Tolerance

	area      float64
	volume    float64
	openEdges int
	oriented  bool
	slopes    []float64
}

// Analyze triangulates mp, merges vertices under opts.Tolerance and
// measures the result.
func Analyze(ctx context.Context, mp geom.MultiPolygon, opts Options) *Solid {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	m, failures := tessellate.Build(ctx, mp, tessellate.Options{
		Solver:       opts.Solver,
		Workers:      opts.Workers,
		SolveTimeout: opts.SolveTimeout,
		Logger:       log,
	})
	m = m.Clean(opts.Tolerance)

	s := &Solid{mesh: m, failures: failures, tol: opts.Tolerance}
	if !m.IsEmpty() {
		s.area = m.Area()
		s.volume = m.Volume()
		s.openEdges = m.OpenEdgeCount()
		s.oriented = m.IsConsistentlyOriented()
		s.slopes = m.Slopes()
	}

	log.Debug("analyzed geometry",
		zap.Int("parts", len(mp)),
		zap.Int("skipped", len(failures)),
		zap.Stringer("tolerance", opts.Tolerance),
		zap.Int("points", m.VertexCount()),
		zap.Int("triangles", m.TriangleCount()),
		zap.Int("open_edges", s.openEdges),
	)
	return s
}

// Mesh returns the cleaned mesh. Callers must not modify it.
func (s *Solid) Mesh() *mesh.Mesh {
	return s.mesh
}

// Failures lists the parts that contributed no geometry.
func (s *Solid) Failures() []*tessellate.PartError {
	return s.failures
}

// IsEmpty reports whether no part produced geometry.
func (s *Solid) IsEmpty() bool {
	return s.mesh.IsEmpty()
}

// Volume returns the signed enclosed volume, 0 for an empty mesh. The value
// only means something when IsSolid and IsOriented both hold.
func (s *Solid) Volume() float64 {
	return s.volume
}

// IsSolid reports whether the mesh is non-empty and closed.
func (s *Solid) IsSolid() bool {
	return !s.mesh.IsEmpty() && s.openEdges == 0
}

// IsOriented reports whether shared edges are traversed in opposite
// directions by their two triangles.
func (s *Solid) IsOriented() bool {
	return !s.mesh.IsEmpty() && s.oriented
}

// SurfaceArea returns the total triangle area, 0 for an empty mesh.
func (s *Solid) SurfaceArea() float64 {
	return s.area
}

// Slope returns the slope in degrees of the first triangle. ok is false
// when the mesh is empty.
func (s *Solid) Slope() (deg float64, ok bool) {
	if len(s.slopes) == 0 {
		return 0, false
	}
	return s.slopes[0], true
}

// Slopes returns the slope of every triangle in mesh order.
func (s *Solid) Slopes() []float64 {
	return append([]float64(nil), s.slopes...)
}

// OpenEdgeCount returns the number of edges used by one triangle only.
func (s *Solid) OpenEdgeCount() int {
	return s.openEdges
}

// BoundaryEdges returns the open edges chained into polylines.
func (s *Solid) BoundaryEdges() []mesh.Polyline {
	if s.openEdges == 0 {
		return nil
	}
	return s.mesh.BoundaryEdges()
}

// Report is a JSON summary of a Solid.
type Report struct {
	Tolerance      string                  `json:"tolerance"`
	Points         int                     `json:"points"`
	Triangles      int                     `json:"triangles"`
	Empty          bool                    `json:"empty"`
	SurfaceArea    float64                 `json:"surface_area"`
	Volume         float64                 `json:"volume"`
	Solid          bool                    `json:"solid"`
	Oriented       bool                    `json:"oriented"`
	VolumeReliable bool                    `json:"volume_reliable"`
	OpenEdgeCount  int                     `json:"open_edge_count"`
	Slope          *float64                `json:"slope"`
	Failures       []*tessellate.PartError `json:"failures,omitempty"`
}

// Report summarises s. Slope is nil when there is no slope to report.
func (s *Solid) Report() Report {
	r := Report{
		Tolerance:     s.tol.String(),
		Points:        s.mesh.VertexCount(),
		Triangles:     s.mesh.TriangleCount(),
		Empty:         s.IsEmpty(),
		SurfaceArea:   s.SurfaceArea(),
		Volume:        s.Volume(),
		Solid:         s.IsSolid(),
		Oriented:      s.IsOriented(),
		OpenEdgeCount: s.OpenEdgeCount(),
		Failures:      s.failures,
	}
	r.VolumeReliable = r.Solid && r.Oriented
	if deg, ok := s.Slope(); ok && !math.IsNaN(deg) {
		r.Slope = &deg
	}
	return r
}

// Volume analyses mp and returns its volume.
func Volume(ctx context.Context, mp geom.MultiPolygon, opts Options) float64 {
	return Analyze(ctx, mp, opts).Volume()
}

// IsSolid analyses mp and reports whether it is closed.
func IsSolid(ctx context.Context, mp geom.MultiPolygon, opts Options) bool {
	return Analyze(ctx, mp, opts).IsSolid()
}

// SurfaceArea analyses mp and returns its surface area.
func SurfaceArea(ctx context.Context, mp geom.MultiPolygon, opts Options) float64 {
	return Analyze(ctx, mp, opts).SurfaceArea()
}

// Slope analyses mp and returns the slope of its first triangle.
func Slope(ctx context.Context, mp geom.MultiPolygon, opts Options) (float64, bool) {
	return Analyze(ctx, mp, opts).Slope()
}

// BoundaryEdges analyses mp and returns its open edges as polylines.
func BoundaryEdges(ctx context.Context, mp geom.MultiPolygon, opts Options) []mesh.Polyline {
	return Analyze(ctx, mp, opts).BoundaryEdges()
}
