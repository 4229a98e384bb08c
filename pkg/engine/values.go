package engine

import (
	"fmt"
	"strings"

	zygo "github.com/glycerine/zygomys/zygo"

	"github.com/chazu/solidmesh/pkg/geom"
)

// Custom Sexp types carry geometry between builtins.

type sexpPoint struct {
	p geom.Point3
}

func (s *sexpPoint) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(pt %g %g %g)", s.p.X, s.p.Y, s.p.Z)
}
func (s *sexpPoint) Type() *zygo.RegisteredType { return nil }

type sexpRing struct {
	r geom.Ring
}

func (s *sexpRing) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("<ring %d points>", len(s.r))
}
func (s *sexpRing) Type() *zygo.RegisteredType { return nil }

type sexpPolygon struct {
	p geom.Polygon
}

func (s *sexpPolygon) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("<polygon %d points, %d holes>", len(s.p.Outer), len(s.p.Holes))
}
func (s *sexpPolygon) Type() *zygo.RegisteredType { return nil }

type sexpGeometry struct {
	mp geom.MultiPolygon
}

func (s *sexpGeometry) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("<multipolygon %d parts>", len(s.mp))
}
func (s *sexpGeometry) Type() *zygo.RegisteredType { return nil }

// kwArgs separates keyword arguments from positional arguments.
type kwArgs struct {
	positional []zygo.Sexp
	keywords   map[string]zygo.Sexp
}

func isKW(s zygo.Sexp) (string, bool) {
	str, ok := s.(*zygo.SexpStr)
	if !ok || !strings.HasPrefix(str.S, kwPrefix) {
		return "", false
	}
	return str.S[len(kwPrefix):], true
}

// parseArgs splits args into positional values and :keyword value pairs.
// A trailing keyword with no value maps to SexpNull.
func parseArgs(args []zygo.Sexp) kwArgs {
	ka := kwArgs{keywords: make(map[string]zygo.Sexp)}
	for i := 0; i < len(args); i++ {
		name, ok := isKW(args[i])
		if !ok {
			ka.positional = append(ka.positional, args[i])
			continue
		}
		if i+1 < len(args) {
			ka.keywords[name] = args[i+1]
			i++
		} else {
			ka.keywords[name] = zygo.SexpNull
		}
	}
	return ka
}

func toFloat64(s zygo.Sexp) (float64, error) {
	switch v := s.(type) {
	case *zygo.SexpInt:
		return float64(v.Val), nil
	case *zygo.SexpFloat:
		return v.Val, nil
	}
	return 0, fmt.Errorf("expected number, got %T", s)
}

// sexpListToSlice flattens a list or array argument into its elements.
func sexpListToSlice(s zygo.Sexp) ([]zygo.Sexp, error) {
	switch v := s.(type) {
	case *zygo.SexpArray:
		return v.Val, nil
	case *zygo.SexpPair:
		return zygo.ListToArray(v)
	case *zygo.SexpSentinel:
		if v == zygo.SexpNull {
			return nil, nil
		}
	}
	return nil, fmt.Errorf("expected list or array, got %T", s)
}

// toPoints accepts points given inline or as one list or array.
func toPoints(args []zygo.Sexp) ([]geom.Point3, error) {
	if len(args) == 1 {
		if _, ok := args[0].(*sexpPoint); !ok {
			items, err := sexpListToSlice(args[0])
			if err != nil {
				return nil, err
			}
			args = items
		}
	}
	pts := make([]geom.Point3, len(args))
	for i, a := range args {
		p, ok := a.(*sexpPoint)
		if !ok {
			return nil, fmt.Errorf("point %d: expected point, got %T", i, a)
		}
		pts[i] = p.p
	}
	return pts, nil
}

func toRing(s zygo.Sexp) (geom.Ring, error) {
	switch v := s.(type) {
	case *sexpRing:
		return v.r, nil
	default:
		pts, err := toPoints([]zygo.Sexp{s})
		if err != nil {
			return nil, err
		}
		return geom.NewRing(pts), nil
	}
}

func toGeometry(s zygo.Sexp) (geom.MultiPolygon, error) {
	switch v := s.(type) {
	case *sexpGeometry:
		return v.mp, nil
	case *sexpPolygon:
		return geom.MultiPolygon{v.p}, nil
	}
	return nil, fmt.Errorf("expected geometry, got %T", s)
}

func pointArray(env *zygo.Zlisp, pts []geom.Point3) *zygo.SexpArray {
	items := make([]zygo.Sexp, len(pts))
	for i, p := range pts {
		items[i] = &sexpPoint{p: p}
	}
	return &zygo.SexpArray{Val: items, Env: env}
}

// toGo converts an evaluation result into a plain Go value. Points become
// [3]float64, rings [][3]float64 and geometry geom.MultiPolygon.
func toGo(s zygo.Sexp) any {
	switch v := s.(type) {
	case nil:
		return nil
	case *zygo.SexpSentinel:
		if v == zygo.SexpNull {
			return nil
		}
	case *zygo.SexpFloat:
		return v.Val
	case *zygo.SexpInt:
		return v.Val
	case *zygo.SexpBool:
		return v.Val
	case *zygo.SexpStr:
		return v.S
	case *zygo.SexpArray:
		return sliceToGo(v.Val)
	case *zygo.SexpPair:
		items, err := zygo.ListToArray(v)
		if err == nil {
			return sliceToGo(items)
		}
	case *sexpPoint:
		return [3]float64{v.p.X, v.p.Y, v.p.Z}
	case *sexpRing:
		return ringToGo(v.r)
	case *sexpPolygon:
		return geom.MultiPolygon{v.p}
	case *sexpGeometry:
		return v.mp
	}
	return s.SexpString(nil)
}

func sliceToGo(items []zygo.Sexp) []any {
	out := make([]any, len(items))
	for i, it := range items {
		out[i] = toGo(it)
	}
	return out
}

func ringToGo(r geom.Ring) [][3]float64 {
	out := make([][3]float64, len(r))
	for i, p := range r {
		out[i] = [3]float64{p.X, p.Y, p.Z}
	}
	return out
}
