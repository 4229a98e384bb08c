package engine

import (
	"context"
	"errors"
	"fmt"
	"math"

	zygo "github.com/glycerine/zygomys/zygo"

	"github.com/chazu/solidmesh/pkg/geom"
	"github.com/chazu/solidmesh/pkg/mesh"
	"github.com/chazu/solidmesh/pkg/solid"
)

// scope is the per-evaluation state shared by the builtins. Builtins run
// on the evaluating goroutine only, so it needs no locking.
type scope struct {
	ctx     context.Context
	feature geom.MultiPolygon
	opts    solid.Options
	cache   map[analysisKey]*solid.Solid
}

// analysisKey identifies a geometry by its backing array. Builtin values
// are never mutated, so equal keys mean equal geometry.
type analysisKey struct {
	first *geom.Polygon
	n     int
	tol   mesh.Tolerance
}

func newScope(ctx context.Context, feature geom.MultiPolygon, opts solid.Options) *scope {
	return &scope{
		ctx:     ctx,
		feature: feature,
		opts:    opts,
		cache:   make(map[analysisKey]*solid.Solid),
	}
}

// analyze resolves the geometry and :tolerance of a measure call and
// returns the analysed solid, reusing earlier results within the same
// evaluation.
func (s *scope) analyze(fn string, args []zygo.Sexp) (*solid.Solid, error) {
	ka := parseArgs(args)

	mp := s.feature
	switch len(ka.positional) {
	case 0:
	case 1:
		g, err := toGeometry(ka.positional[0])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", fn, err)
		}
		mp = g
	default:
		return nil, fmt.Errorf("%s: expected at most one geometry, got %d arguments", fn, len(ka.positional))
	}

	opts := s.opts
	if v, ok := ka.keywords["tolerance"]; ok {
		tol, err := toTolerance(v)
		if err != nil {
			return nil, fmt.Errorf("%s: tolerance: %w", fn, err)
		}
		opts.Tolerance = tol
	}

	key := analysisKey{n: len(mp), tol: opts.Tolerance}
	if len(mp) > 0 {
		key.first = &mp[0]
	}
	if sol, ok := s.cache[key]; ok {
		return sol, nil
	}

	sol := solid.Analyze(s.ctx, mp, opts)
	if err := s.ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", fn, err)
	}
	s.cache[key] = sol
	return sol, nil
}

// toTolerance reads a :tolerance value. nil, :exact and 0 mean exact
// matching; a positive number merges points within that distance.
func toTolerance(v zygo.Sexp) (mesh.Tolerance, error) {
	if v == zygo.SexpNull {
		return mesh.Exact(), nil
	}
	if name, ok := isKW(v); ok {
		if name == "exact" {
			return mesh.Exact(), nil
		}
		return mesh.Tolerance{}, fmt.Errorf("unknown tolerance :%s", name)
	}
	d, err := toFloat64(v)
	if err != nil {
		return mesh.Tolerance{}, err
	}
	if d < 0 || math.IsNaN(d) {
		return mesh.Tolerance{}, errors.New("must not be negative")
	}
	return mesh.Within(d), nil
}

// registerBuiltins installs the geometry builtins into env. Source must go
// through preprocessSource first so :keywords and kebab-case names match.
func registerBuiltins(env *zygo.Zlisp, s *scope) {
	for name, fn := range map[string]func(*zygo.Zlisp, string, []zygo.Sexp) (zygo.Sexp, error){
		"geometry":     s.geometry,
		"pt":           point,
		"ring":         ring,
		"polygon":      polygon,
		"multipolygon": multipolygon,
		"part_count":   partCount,
		"issue_count":  s.issueCount,

		"volume":          s.volume,
		"is_solid":        s.isSolid,
		"is_oriented":     s.isOriented,
		"surface_area":    s.surfaceArea,
		"slope":           s.slope,
		"open_edge_count": s.openEdgeCount,
		"boundary_edges":  s.boundaryEdges,
	} {
		env.AddFunction(name, fn)
	}
}

// (geometry) returns the feature being evaluated.
func (s *scope) geometry(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
	if len(args) != 0 {
		return zygo.SexpNull, errors.New("geometry: takes no arguments")
	}
	return &sexpGeometry{mp: s.feature}, nil
}

// (pt x y) or (pt x y z)
func point(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
	if len(args) != 2 && len(args) != 3 {
		return zygo.SexpNull, fmt.Errorf("pt: expected 2 or 3 coordinates, got %d", len(args))
	}
	var c [3]float64
	for i, a := range args {
		f, err := toFloat64(a)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("pt: coordinate %d: %w", i, err)
		}
		c[i] = f
	}
	return &sexpPoint{p: geom.Point3{X: c[0], Y: c[1], Z: c[2]}}, nil
}

// (ring p1 p2 p3 ...) or (ring [p1 p2 p3 ...]). A repeated closing point
// is dropped.
func ring(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
	pts, err := toPoints(args)
	if err != nil {
		return zygo.SexpNull, fmt.Errorf("ring: %w", err)
	}
	return &sexpRing{r: geom.NewRing(pts)}, nil
}

// (polygon outer hole...)
func polygon(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
	if len(args) == 0 {
		return zygo.SexpNull, errors.New("polygon: expected an outer ring")
	}
	rings := make([]geom.Ring, len(args))
	for i, a := range args {
		r, err := toRing(a)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("polygon: ring %d: %w", i, err)
		}
		rings[i] = r
	}
	return &sexpPolygon{p: geom.Polygon{Outer: rings[0], Holes: rings[1:]}}, nil
}

// (multipolygon part...) where each part is a polygon or a multipolygon.
func multipolygon(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
	var mp geom.MultiPolygon
	for i, a := range args {
		g, err := toGeometry(a)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("multipolygon: part %d: %w", i, err)
		}
		mp = append(mp, g...)
	}
	return &sexpGeometry{mp: mp}, nil
}

// (part-count [geometry])
func partCount(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
	if len(args) != 1 {
		return zygo.SexpNull, errors.New("part-count: expected one geometry")
	}
	g, err := toGeometry(args[0])
	if err != nil {
		return zygo.SexpNull, fmt.Errorf("part-count: %w", err)
	}
	return &zygo.SexpInt{Val: int64(len(g))}, nil
}

// (issue-count [geometry]) counts validation findings.
func (s *scope) issueCount(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
	mp := s.feature
	if len(args) > 0 {
		g, err := toGeometry(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("issue-count: %w", err)
		}
		mp = g
	}
	return &zygo.SexpInt{Val: int64(len(geom.Validate(mp)))}, nil
}

// (volume [geometry] :tolerance d)
func (s *scope) volume(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
	sol, err := s.analyze("volume", args)
	if err != nil {
		return zygo.SexpNull, err
	}
	return &zygo.SexpFloat{Val: sol.Volume()}, nil
}

// (is-solid [geometry] :tolerance d)
func (s *scope) isSolid(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
	sol, err := s.analyze("is-solid", args)
	if err != nil {
		return zygo.SexpNull, err
	}
	return &zygo.SexpBool{Val: sol.IsSolid()}, nil
}

// (is-oriented [geometry] :tolerance d)
func (s *scope) isOriented(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
	sol, err := s.analyze("is-oriented", args)
	if err != nil {
		return zygo.SexpNull, err
	}
	return &zygo.SexpBool{Val: sol.IsOriented()}, nil
}

// (surface-area [geometry] :tolerance d)
func (s *scope) surfaceArea(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
	sol, err := s.analyze("surface-area", args)
	if err != nil {
		return zygo.SexpNull, err
	}
	return &zygo.SexpFloat{Val: sol.SurfaceArea()}, nil
}

// (slope [geometry] :tolerance d) returns nil for empty or degenerate
// geometry.
func (s *scope) slope(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
	sol, err := s.analyze("slope", args)
	if err != nil {
		return zygo.SexpNull, err
	}
	deg, ok := sol.Slope()
	if !ok || math.IsNaN(deg) {
		return zygo.SexpNull, nil
	}
	return &zygo.SexpFloat{Val: deg}, nil
}

// (open-edge-count [geometry] :tolerance d)
func (s *scope) openEdgeCount(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
	sol, err := s.analyze("open-edge-count", args)
	if err != nil {
		return zygo.SexpNull, err
	}
	return &zygo.SexpInt{Val: int64(sol.OpenEdgeCount())}, nil
}

// (boundary-edges [geometry] :tolerance d) returns an array of polylines,
// each an array of points.
func (s *scope) boundaryEdges(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
	sol, err := s.analyze("boundary-edges", args)
	if err != nil {
		return zygo.SexpNull, err
	}
	lines := sol.BoundaryEdges()
	out := make([]zygo.Sexp, len(lines))
	for i, l := range lines {
		out[i] = pointArray(env, l)
	}
	return &zygo.SexpArray{Val: out, Env: env}, nil
}
