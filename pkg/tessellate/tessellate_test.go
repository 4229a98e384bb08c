package tessellate_test

import (
	"context"
	"errors"
	"math"
	"sync/atomic"
	"testing"
	"time"

	"github.com/chazu/solidmesh/pkg/geom"
	"github.com/chazu/solidmesh/pkg/mesh"
	"github.com/chazu/solidmesh/pkg/solver"
	"github.com/chazu/solidmesh/pkg/solver/earcut"
	"github.com/chazu/solidmesh/pkg/tessellate"
)

func abs(x float64) float64 {
	return math.Abs(x)
}

func p3(x, y, z float64) geom.Point3 {
	return geom.Point3{X: x, Y: y, Z: z}
}

// countingSolver wraps earcut and counts calls.
type countingSolver struct {
	calls atomic.Int64
	inner solver.Solver
}

var _ solver.Solver = (*countingSolver)(nil)

func newCountingSolver() *countingSolver {
	return &countingSolver{inner: earcut.New()}
}

func (c *countingSolver) Triangulate(ctx context.Context, in solver.Input) ([]solver.Triangle, error) {
	c.calls.Add(1)
	return c.inner.Triangulate(ctx, in)
}

// square returns an axis-aligned square of side s at height z, wound
// counter-clockwise seen from above.
func square(x, y, z, s float64) []geom.Point3 {
	return []geom.Point3{p3(x, y, z), p3(x+s, y, z), p3(x+s, y+s, z), p3(x, y+s, z)}
}

// cubeFaces returns the six outward-wound faces of the unit cube.
func cubeFaces() geom.MultiPolygon {
	return geom.MultiPolygon{
		geom.NewPolygon([]geom.Point3{p3(0, 0, 0), p3(0, 1, 0), p3(1, 1, 0), p3(1, 0, 0)}), // bottom
		geom.NewPolygon([]geom.Point3{p3(0, 0, 1), p3(1, 0, 1), p3(1, 1, 1), p3(0, 1, 1)}), // top
		geom.NewPolygon([]geom.Point3{p3(0, 0, 0), p3(1, 0, 0), p3(1, 0, 1), p3(0, 0, 1)}), // front
		geom.NewPolygon([]geom.Point3{p3(0, 1, 0), p3(0, 1, 1), p3(1, 1, 1), p3(1, 1, 0)}), // back
		geom.NewPolygon([]geom.Point3{p3(0, 0, 0), p3(0, 0, 1), p3(0, 1, 1), p3(0, 1, 0)}), // left
		geom.NewPolygon([]geom.Point3{p3(1, 0, 0), p3(1, 1, 0), p3(1, 1, 1), p3(1, 0, 1)}), // right
	}
}

func meshArea(f tessellate.Face) float64 {
	m := &mesh.Mesh{Points: f.Points}
	for _, t := range f.Triangles {
		m.Triangles = append(m.Triangles, t)
	}
	return m.Area()
}

func TestTriangleFastPath(t *testing.T) {
	s := newCountingSolver()
	p := geom.NewPolygon([]geom.Point3{p3(0, 0, 0), p3(1, 0, 0), p3(0, 1, 0), p3(0, 0, 0)})

	face, err := tessellate.TriangulatePolygon(context.Background(), s, p, 7)
	if err != nil {
		t.Fatalf("TriangulatePolygon() error = %v", err)
	}
	if s.calls.Load() != 0 {
		t.Errorf("solver called %d times for a bare triangle", s.calls.Load())
	}
	if len(face.Triangles) != 1 || face.Triangles[0] != (mesh.Triangle{7, 8, 9}) {
		t.Errorf("Triangles = %v, want [[7 8 9]]", face.Triangles)
	}
	for i, want := range p.Outer {
		if face.Points[i] != want {
			t.Errorf("Points[%d] = %v, want %v", i, face.Points[i], want)
		}
	}
}

func TestTriangulateSquare(t *testing.T) {
	tests := []struct {
		name string
		pts  []geom.Point3
	}{
		{"horizontal", square(0, 0, 0, 2)},
		{"closed ring", append(square(0, 0, 0, 2), p3(0, 0, 0))},
		{"vertical", []geom.Point3{p3(0, 0, 0), p3(2, 0, 0), p3(2, 0, 2), p3(0, 0, 2)}},
		{"yz plane", []geom.Point3{p3(3, 0, 0), p3(3, 2, 0), p3(3, 2, 2), p3(3, 0, 2)}},
		{"tilted", []geom.Point3{p3(0, 0, 0), p3(2, 0, 0), p3(2, 2, 2), p3(0, 2, 2)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := geom.NewPolygon(tt.pts)
			face, err := tessellate.TriangulatePolygon(context.Background(), earcut.New(), p, 0)
			if err != nil {
				t.Fatalf("TriangulatePolygon() error = %v", err)
			}
			if len(face.Triangles) != 2 {
				t.Fatalf("expected 2 triangles, got %d", len(face.Triangles))
			}
			if len(face.Points) != 4 {
				t.Errorf("expected 4 points, got %d", len(face.Points))
			}
			want := p.Outer[1].Sub(p.Outer[0]).Length() * p.Outer[3].Sub(p.Outer[0]).Length()
			if got := meshArea(face); abs(got-want) > 1e-9 {
				t.Errorf("area = %v, want %v", got, want)
			}
		})
	}
}

func TestTriangulateKeepsRingWinding(t *testing.T) {
	// Counter-clockwise from above: every triangle should face up.
	p := geom.NewPolygon(square(0, 0, 0, 1))
	face, err := tessellate.TriangulatePolygon(context.Background(), earcut.New(), p, 0)
	if err != nil {
		t.Fatalf("TriangulatePolygon() error = %v", err)
	}
	m := &mesh.Mesh{Points: face.Points, Triangles: face.Triangles}
	for i, s := range m.Slopes() {
		if abs(s) > 1e-9 {
			t.Errorf("slope[%d] = %v, want 0", i, s)
		}
	}
}

func TestTriangulateWithHole(t *testing.T) {
	p := geom.NewPolygon(
		square(0, 0, 5, 4),
		[]geom.Point3{p3(1, 1, 5), p3(1, 2, 5), p3(2, 2, 5), p3(2, 1, 5)},
	)
	face, err := tessellate.TriangulatePolygon(context.Background(), earcut.New(), p, 10)
	if err != nil {
		t.Fatalf("TriangulatePolygon() error = %v", err)
	}
	if len(face.Points) != 8 {
		t.Errorf("expected 8 points, got %d", len(face.Points))
	}
	for _, tri := range face.Triangles {
		for _, v := range tri {
			if v < 10 || v >= 18 {
				t.Fatalf("triangle %v has index outside [10,18)", tri)
			}
		}
	}
	shifted := tessellate.Face{Points: face.Points}
	for _, tri := range face.Triangles {
		shifted.Triangles = append(shifted.Triangles, mesh.Triangle{tri[0] - 10, tri[1] - 10, tri[2] - 10})
	}
	if got := meshArea(shifted); abs(got-15) > 1e-9 {
		t.Errorf("area = %v, want 15", got)
	}
}

func TestInteriorPointOf(t *testing.T) {
	ring := []geom.Point2{{X: 0, Y: 0}, {X: 4, Y: 0}, {X: 4, Y: 1}, {X: 1, Y: 1}, {X: 1, Y: 4}, {X: 0, Y: 4}}
	ip, err := tessellate.InteriorPointOf(context.Background(), earcut.New(), ring)
	if err != nil {
		t.Fatalf("InteriorPointOf() error = %v", err)
	}
	inLeg := ip.X > 0 && ip.X < 1 && ip.Y > 0 && ip.Y < 4
	inFoot := ip.X > 0 && ip.X < 4 && ip.Y > 0 && ip.Y < 1
	if !inLeg && !inFoot {
		t.Errorf("interior point %v is outside the L shaped ring", ip)
	}
}

func TestTriangulateErrors(t *testing.T) {
	tests := []struct {
		name string
		p    geom.Polygon
		want error
	}{
		{
			name: "collinear outer",
			p:    geom.NewPolygon([]geom.Point3{p3(0, 0, 0), p3(1, 0, 0), p3(2, 0, 0), p3(3, 0, 0)}),
			want: geom.ErrDegenerateGeometry,
		},
		{
			name: "collinear triangle",
			p:    geom.NewPolygon([]geom.Point3{p3(0, 0, 0), p3(1, 1, 1), p3(2, 2, 2)}),
			want: geom.ErrDegenerateGeometry,
		},
		{
			name: "two point ring",
			p:    geom.NewPolygon([]geom.Point3{p3(0, 0, 0), p3(1, 0, 0)}),
			want: geom.ErrDegenerateGeometry,
		},
		{
			name: "short hole",
			p:    geom.NewPolygon(square(0, 0, 0, 4), []geom.Point3{p3(1, 1, 0), p3(2, 2, 0)}),
			want: geom.ErrDegenerateGeometry,
		},
		{
			name: "collinear hole",
			p:    geom.NewPolygon(square(0, 0, 0, 4), []geom.Point3{p3(1, 1, 0), p3(2, 1, 0), p3(3, 1, 0)}),
			want: solver.ErrSolverFailure,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tessellate.TriangulatePolygon(context.Background(), earcut.New(), tt.p, 0)
			if !errors.Is(err, tt.want) {
				t.Errorf("TriangulatePolygon() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestTriangulateRejectsBadSolverIndices(t *testing.T) {
	bad := solver.Func(func(ctx context.Context, in solver.Input) ([]solver.Triangle, error) {
		return []solver.Triangle{{0, 1, 99}}, nil
	})
	_, err := tessellate.TriangulatePolygon(context.Background(), bad, geom.NewPolygon(square(0, 0, 0, 1)), 0)
	if !errors.Is(err, solver.ErrSolverFailure) {
		t.Errorf("error = %v, want ErrSolverFailure", err)
	}
}

func TestBuildCube(t *testing.T) {
	m, failures := tessellate.Build(context.Background(), cubeFaces(), tessellate.Options{})
	if len(failures) != 0 {
		t.Fatalf("unexpected failures: %v", failures)
	}
	if m.TriangleCount() != 12 {
		t.Errorf("TriangleCount() = %d, want 12", m.TriangleCount())
	}
	if m.VertexCount() != 24 {
		t.Errorf("VertexCount() = %d, want 24 before cleaning", m.VertexCount())
	}

	c := m.Clean(mesh.Exact())
	if !c.IsSolid() {
		t.Errorf("cleaned cube should be solid, %d open edges", c.OpenEdgeCount())
	}
	if abs(c.Volume()-1) > 1e-9 {
		t.Errorf("Volume() = %v, want 1", c.Volume())
	}
	if abs(c.Area()-6) > 1e-9 {
		t.Errorf("Area() = %v, want 6", c.Area())
	}
	if !c.IsConsistentlyOriented() {
		t.Error("cube should be consistently oriented")
	}
}

func TestBuildSkipsDegenerateParts(t *testing.T) {
	mp := geom.MultiPolygon{
		geom.NewPolygon([]geom.Point3{p3(0, 0, 0), p3(1, 0, 0), p3(2, 0, 0)}),
		geom.NewPolygon(square(0, 0, 0, 1)),
		geom.NewPolygon([]geom.Point3{p3(5, 5, 5)}),
	}
	m, failures := tessellate.Build(context.Background(), mp, tessellate.Options{})
	if m.VertexCount() != 4 || m.TriangleCount() != 2 {
		t.Errorf("mesh has %d points %d triangles, want 4 and 2", m.VertexCount(), m.TriangleCount())
	}
	if abs(m.Area()-1) > 1e-9 {
		t.Errorf("Area() = %v, want 1", m.Area())
	}
	if len(failures) != 2 {
		t.Fatalf("expected 2 failures, got %v", failures)
	}
	if failures[0].Part != 0 || failures[1].Part != 2 {
		t.Errorf("failed parts = %d, %d, want 0, 2", failures[0].Part, failures[1].Part)
	}
	for _, f := range failures {
		if f.Kind() != tessellate.KindDegenerate {
			t.Errorf("part %d kind = %s, want degenerate", f.Part, f.Kind())
		}
	}
}

func TestBuildEmpty(t *testing.T) {
	m, failures := tessellate.Build(context.Background(), nil, tessellate.Options{})
	if !m.IsEmpty() || len(failures) != 0 {
		t.Errorf("Build(nil) = %+v, %v", m, failures)
	}

	bad := geom.MultiPolygon{geom.NewPolygon([]geom.Point3{p3(0, 0, 0), p3(1, 1, 1), p3(2, 2, 2)})}
	m, failures = tessellate.Build(context.Background(), bad, tessellate.Options{})
	if !m.IsEmpty() {
		t.Error("mesh of only degenerate parts should be empty")
	}
	if len(failures) != 1 {
		t.Errorf("expected 1 failure, got %d", len(failures))
	}
}

func TestBuildParallelMatchesSequential(t *testing.T) {
	var mp geom.MultiPolygon
	for i := 0; i < 40; i++ {
		x := float64(i)
		mp = append(mp,
			geom.NewPolygon(square(x, 0, 0, 1)),
			geom.NewPolygon(square(x, 0, 1, 1), []geom.Point3{p3(x+0.25, 0.25, 1), p3(x+0.25, 0.75, 1), p3(x+0.75, 0.75, 1), p3(x+0.75, 0.25, 1)}),
		)
	}
	mp = append(mp, geom.NewPolygon([]geom.Point3{p3(0, 0, 0), p3(1, 0, 0)}))

	seq, seqFail := tessellate.Build(context.Background(), mp, tessellate.Options{})
	par, parFail := tessellate.Build(context.Background(), mp, tessellate.Options{Workers: 8})

	if len(seq.Points) != len(par.Points) || len(seq.Triangles) != len(par.Triangles) {
		t.Fatalf("sizes differ: seq %d/%d par %d/%d",
			len(seq.Points), len(seq.Triangles), len(par.Points), len(par.Triangles))
	}
	for i := range seq.Points {
		if seq.Points[i] != par.Points[i] {
			t.Fatalf("point %d differs: %v vs %v", i, seq.Points[i], par.Points[i])
		}
	}
	for i := range seq.Triangles {
		if seq.Triangles[i] != par.Triangles[i] {
			t.Fatalf("triangle %d differs: %v vs %v", i, seq.Triangles[i], par.Triangles[i])
		}
	}
	if len(seqFail) != 1 || len(parFail) != 1 || seqFail[0].Part != parFail[0].Part {
		t.Errorf("failures differ: %v vs %v", seqFail, parFail)
	}
}

func TestBuildSolveTimeout(t *testing.T) {
	slow := solver.Func(func(ctx context.Context, in solver.Input) ([]solver.Triangle, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	mp := geom.MultiPolygon{
		geom.NewPolygon(square(0, 0, 0, 1)),
		geom.NewPolygon([]geom.Point3{p3(0, 0, 0), p3(1, 0, 0), p3(0, 1, 0)}),
	}
	m, failures := tessellate.Build(context.Background(), mp, tessellate.Options{
		Solver:       slow,
		SolveTimeout: 20 * time.Millisecond,
	})
	if len(failures) != 1 || failures[0].Kind() != tessellate.KindTimeout {
		t.Fatalf("expected one timeout failure, got %v", failures)
	}
	// The triangle takes the fast path and never reaches the solver.
	if m.TriangleCount() != 1 {
		t.Errorf("TriangleCount() = %d, want 1", m.TriangleCount())
	}
}

func TestBuildSolverFailureKind(t *testing.T) {
	failing := solver.Func(func(ctx context.Context, in solver.Input) ([]solver.Triangle, error) {
		return nil, solver.ErrSolverFailure
	})
	_, failures := tessellate.Build(context.Background(),
		geom.MultiPolygon{geom.NewPolygon(square(0, 0, 0, 1))},
		tessellate.Options{Solver: failing})
	if len(failures) != 1 || failures[0].Kind() != tessellate.KindSolver {
		t.Fatalf("expected one solver failure, got %v", failures)
	}
	if !errors.Is(failures[0], solver.ErrSolverFailure) {
		t.Error("PartError should unwrap to ErrSolverFailure")
	}
}

func TestBuildCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, failures := tessellate.Build(ctx, geom.MultiPolygon{geom.NewPolygon(square(0, 0, 0, 1))}, tessellate.Options{})
	if len(failures) != 1 || failures[0].Kind() != tessellate.KindCanceled {
		t.Fatalf("expected one canceled failure, got %v", failures)
	}
}

func TestPartErrorJSON(t *testing.T) {
	pe := &tessellate.PartError{Part: 3, Err: geom.ErrDegenerateGeometry}
	b, err := pe.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON() error = %v", err)
	}
	want := `{"part":3,"kind":"degenerate","message":"degenerate geometry"}`
	if string(b) != want {
		t.Errorf("MarshalJSON() = %s, want %s", b, want)
	}
}
