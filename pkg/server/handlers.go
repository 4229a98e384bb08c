package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/chazu/solidmesh/pkg/engine"
	"github.com/chazu/solidmesh/pkg/geom"
	"github.com/chazu/solidmesh/pkg/mesh"
	"github.com/chazu/solidmesh/pkg/solid"
	"github.com/chazu/solidmesh/pkg/source"
)

// FeatureReport is the /v1/analyze result for one feature.
type FeatureReport struct {
	Name   string       `json:"name,omitempty"`
	Report solid.Report `json:"report"`
	Issues []geom.Issue `json:"issues,omitempty"`
}

// FeatureMesh is the /v1/mesh result for one feature.
type FeatureMesh struct {
	Name     string          `json:"name,omitempty"`
	Mesh     *mesh.Flat      `json:"mesh"`
	Boundary source.Geometry `json:"boundary"`
}

// FeatureValue is the /v1/eval result for one feature.
type FeatureValue struct {
	Name   string             `json:"name,omitempty"`
	Value  any                `json:"value"`
	Errors []engine.EvalError `json:"errors,omitempty"`
}

type evalRequest struct {
	Expr    string          `json:"expr"`
	GeoJSON json.RawMessage `json:"geojson"`
}

func (s *Server) healthz(c *gin.Context) {
	writeJSON(c, http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) analyze(c *gin.Context) {
	opts, ok := s.requestOptions(c)
	if !ok {
		return
	}
	features, ok := readFeatures(c)
	if !ok {
		return
	}

	out := make([]FeatureReport, len(features))
	for i, f := range features {
		sol := solid.Analyze(c.Request.Context(), f.Geometry, opts)
		out[i] = FeatureReport{
			Name:   f.Name(),
			Report: sol.Report(),
			Issues: geom.Validate(f.Geometry),
		}
	}
	writeJSON(c, http.StatusOK, gin.H{"features": out})
}

func (s *Server) mesh(c *gin.Context) {
	opts, ok := s.requestOptions(c)
	if !ok {
		return
	}
	features, ok := readFeatures(c)
	if !ok {
		return
	}

	out := make([]FeatureMesh, len(features))
	for i, f := range features {
		sol := solid.Analyze(c.Request.Context(), f.Geometry, opts)
		out[i] = FeatureMesh{
			Name:     f.Name(),
			Mesh:     sol.Mesh().Flat(),
			Boundary: source.MultiLineString(sol.BoundaryEdges()),
		}
	}
	writeJSON(c, http.StatusOK, gin.H{"features": out})
}

func (s *Server) eval(c *gin.Context) {
	opts, ok := s.requestOptions(c)
	if !ok {
		return
	}
	body, ok := readBody(c)
	if !ok {
		return
	}
	var req evalRequest
	if err := json.Unmarshal(body, &req); err != nil {
		abort(c, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}
	if req.Expr == "" {
		abort(c, http.StatusBadRequest, errors.New("expr is required"))
		return
	}

	// An expression with no geometry runs once against an empty feature.
	features := []source.Feature{{}}
	if len(req.GeoJSON) > 0 && string(req.GeoJSON) != "null" {
		fs, err := source.Decode(req.GeoJSON)
		if err != nil {
			abort(c, http.StatusBadRequest, err)
			return
		}
		features = fs
	}

	eng := s.newEngine(opts)
	out := make([]FeatureValue, len(features))
	for i, f := range features {
		v, evalErrs, err := eng.Evaluate(c.Request.Context(), req.Expr, f.Geometry)
		if err != nil {
			s.log.Warn("evaluation failed",
				zap.String("request_id", c.GetString(requestIDKey)),
				zap.Int("feature", i),
				zap.Error(err))
			abort(c, http.StatusUnprocessableEntity, fmt.Errorf("feature %d: %w", i, err))
			return
		}
		out[i] = FeatureValue{Name: f.Name(), Value: JSONValue(v), Errors: evalErrs}
	}
	writeJSON(c, http.StatusOK, gin.H{"features": out})
}

// requestOptions applies the optional tolerance query parameter.
func (s *Server) requestOptions(c *gin.Context) (solid.Options, bool) {
	opts := s.opts.Analysis
	opts.Logger = s.log
	raw, ok := c.GetQuery("tolerance")
	if !ok {
		return opts, true
	}
	d, err := strconv.ParseFloat(raw, 64)
	if err != nil || d < 0 {
		abort(c, http.StatusBadRequest, fmt.Errorf("invalid tolerance %q", raw))
		return opts, false
	}
	opts.Tolerance = mesh.Within(d)
	return opts, true
}

func readBody(c *gin.Context) ([]byte, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, MaxBodyBytes))
	if err != nil {
		abort(c, http.StatusRequestEntityTooLarge, err)
		return nil, false
	}
	return body, true
}

func readFeatures(c *gin.Context) ([]source.Feature, bool) {
	body, ok := readBody(c)
	if !ok {
		return nil, false
	}
	fs, err := source.Decode(body)
	if err != nil {
		abort(c, http.StatusBadRequest, err)
		return nil, false
	}
	return fs, true
}

// JSONValue replaces geometry in an evaluation result with its GeoJSON form.
func JSONValue(v any) any {
	switch v := v.(type) {
	case geom.MultiPolygon:
		return source.MultiPolygon(v)
	case []any:
		out := make([]any, len(v))
		for i, it := range v {
			out[i] = JSONValue(it)
		}
		return out
	}
	return v
}

func abort(c *gin.Context, status int, err error) {
	_ = c.Error(err)
	writeJSON(c, status, gin.H{
		"error":      err.Error(),
		"request_id": c.GetString(requestIDKey),
	})
	c.Abort()
}

// writeJSON encodes with goccy/go-json rather than gin's default codec.
func writeJSON(c *gin.Context, status int, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		_ = c.Error(err)
		c.Data(http.StatusInternalServerError, "application/json; charset=utf-8",
			[]byte(`{"error":"encode response"}`))
		return
	}
	c.Data(status, "application/json; charset=utf-8", b)
}
