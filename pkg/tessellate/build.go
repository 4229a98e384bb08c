package tessellate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/chazu/solidmesh/pkg/geom"
	"github.com/chazu/solidmesh/pkg/mesh"
	"github.com/chazu/solidmesh/pkg/solver"
	"github.com/chazu/solidmesh/pkg/solver/earcut"
)

// Options configures Build. The zero value triangulates sequentially with
// the earcut solver and no timeout.
type Options struct {
	// Solver triangulates each projected polygon. Defaults to earcut.
	Solver solver.Solver
	// Workers is the number of parts triangulated at once. Values below 2
	// run sequentially.
	Workers int
	// SolveTimeout bounds each solver call. Zero means no bound.
	SolveTimeout time.Duration
	// Logger receives one debug line per skipped part.
	Logger *zap.Logger
}

func (o Options) withDefaults() Options {
	if o.Solver == nil {
		o.Solver = earcut.New()
	}
	if o.SolveTimeout > 0 {
		o.Solver = timeoutSolver{s: o.Solver, d: o.SolveTimeout}
	}
	if o.Workers < 1 {
		o.Workers = 1
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

// FailureKind classifies why a part was skipped.
type FailureKind string

const (
	KindDegenerate FailureKind = "degenerate"
	KindSolver     FailureKind = "solver"
	KindTimeout    FailureKind = "timeout"
	KindCanceled   FailureKind = "canceled"
)

// PartError records a part that contributed no geometry.
type PartError struct {
	Part int
	Err  error
}

func (e *PartError) Error() string {
	return fmt.Sprintf("part %d: %v", e.Part, e.Err)
}

func (e *PartError) Unwrap() error {
	return e.Err
}

// Kind classifies the failure.
func (e *PartError) Kind() FailureKind {
	switch {
	case errors.Is(e.Err, context.DeadlineExceeded):
		return KindTimeout
	case errors.Is(e.Err, context.Canceled):
		return KindCanceled
	case errors.Is(e.Err, geom.ErrDegenerateGeometry):
		return KindDegenerate
	default:
		return KindSolver
	}
}

// MarshalJSON encodes the part index, kind and message.
func (e *PartError) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Part    int         `json:"part"`
		Kind    FailureKind `json:"kind"`
		Message string      `json:"message"`
	}{e.Part, e.Kind(), e.Err.Error()})
}

// Build triangulates every part of mp and appends the results to one mesh
// in input order. Parts that cannot be triangulated are skipped and
// reported in the returned failure list; Build itself never fails. When no
// part survives the mesh is empty.
//
// With Options.Workers above 1 parts are triangulated concurrently, but
// they are still folded in input order so point and triangle order match a
// sequential build exactly.
func Build(ctx context.Context, mp geom.MultiPolygon, opts Options) (*mesh.Mesh, []*PartError) {
	opts = opts.withDefaults()
	log := opts.Logger

	faces := make([]Face, len(mp))
	errs := make([]error, len(mp))

	if opts.Workers > 1 && len(mp) > 1 {
		var g errgroup.Group
		g.SetLimit(opts.Workers)
		for i := range mp {
			g.Go(func() error {
				faces[i], errs[i] = TriangulatePolygon(ctx, opts.Solver, mp[i], 0)
				return nil
			})
		}
		_ = g.Wait()
	} else {
		for i := range mp {
			faces[i], errs[i] = TriangulatePolygon(ctx, opts.Solver, mp[i], 0)
		}
	}

	m := mesh.New()
	var failures []*PartError
	for i := range mp {
		if errs[i] != nil {
			pe := &PartError{Part: i, Err: errs[i]}
			failures = append(failures, pe)
			log.Debug("skipping part",
				zap.Int("part", i),
				zap.String("kind", string(pe.Kind())),
				zap.Error(errs[i]),
			)
			continue
		}
		f := faces[i]
		f.shift(m.VertexCount())
		m.Append(f.Points, f.Triangles)
	}

	log.Debug("built mesh",
		zap.Int("parts", len(mp)),
		zap.Int("skipped", len(failures)),
		zap.Int("points", m.VertexCount()),
		zap.Int("triangles", m.TriangleCount()),
	)
	return m, failures
}

// timeoutSolver bounds each call of s by d. A solver that ignores its
// context is abandoned when the deadline passes.
type timeoutSolver struct {
	s solver.Solver
	d time.Duration
}

func (t timeoutSolver) Triangulate(ctx context.Context, in solver.Input) ([]solver.Triangle, error) {
	ctx, cancel := context.WithTimeout(ctx, t.d)
	defer cancel()

	type result struct {
		tris []solver.Triangle
		err  error
	}
	done := make(chan result, 1)
	go func() {
		tris, err := t.s.Triangulate(ctx, in)
		done <- result{tris, err}
	}()

	select {
	case r := <-done:
		return r.tris, r.err
	case <-ctx.Done():
		return nil, fmt.Errorf("solve: %w", ctx.Err())
	}
}
