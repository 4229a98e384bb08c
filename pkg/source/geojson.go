// Package source reads 3D polygon geometry from GeoJSON. Positions keep
// their third coordinate; two-dimensional positions are placed at z = 0.
// Polygon and MultiPolygon geometries are accepted, bare or wrapped in a
// Feature or FeatureCollection.
package source

import (
	"errors"
	"fmt"
	"os"

	"github.com/goccy/go-json"

	"github.com/chazu/solidmesh/pkg/geom"
	"github.com/chazu/solidmesh/pkg/mesh"
)

// ErrUnsupported is returned for GeoJSON types other than Polygon,
// MultiPolygon, Feature and FeatureCollection.
var ErrUnsupported = errors.New("unsupported geojson type")

// Feature is one decoded geometry with its GeoJSON id and properties.
type Feature struct {
	ID         any
	Properties map[string]any
	Geometry   geom.MultiPolygon
}

// Name returns the feature's "name" property, its id, or "" in that order.
func (f Feature) Name() string {
	if n, ok := f.Properties["name"].(string); ok {
		return n
	}
	if f.ID != nil {
		return fmt.Sprint(f.ID)
	}
	return ""
}

type position []float64

type object struct {
	Type        string          `json:"type"`
	ID          any             `json:"id,omitempty"`
	Properties  map[string]any  `json:"properties,omitempty"`
	Geometry    json.RawMessage `json:"geometry,omitempty"`
	Features    []object        `json:"features,omitempty"`
	Coordinates json.RawMessage `json:"coordinates,omitempty"`
}

// Decode parses a GeoJSON document into features. A bare geometry becomes
// a single feature with no properties.
func Decode(data []byte) ([]Feature, error) {
	var o object
	if err := json.Unmarshal(data, &o); err != nil {
		return nil, fmt.Errorf("source: decode: %w", err)
	}
	return decodeObject(o)
}

// ReadFile decodes the GeoJSON file at path.
func ReadFile(path string) ([]Feature, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("source: %w", err)
	}
	fs, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%w (%s)", err, path)
	}
	return fs, nil
}

func decodeObject(o object) ([]Feature, error) {
	switch o.Type {
	case "FeatureCollection":
		var out []Feature
		for i, f := range o.Features {
			if f.Type != "Feature" {
				return nil, fmt.Errorf("source: feature %d: %w %q", i, ErrUnsupported, f.Type)
			}
			fs, err := decodeObject(f)
			if err != nil {
				return nil, fmt.Errorf("source: feature %d: %w", i, err)
			}
			out = append(out, fs...)
		}
		return out, nil

	case "Feature":
		if len(o.Geometry) == 0 || string(o.Geometry) == "null" {
			return []Feature{{ID: o.ID, Properties: o.Properties}}, nil
		}
		var g object
		if err := json.Unmarshal(o.Geometry, &g); err != nil {
			return nil, fmt.Errorf("source: geometry: %w", err)
		}
		mp, err := decodeGeometry(g)
		if err != nil {
			return nil, err
		}
		return []Feature{{ID: o.ID, Properties: o.Properties, Geometry: mp}}, nil

	default:
		mp, err := decodeGeometry(o)
		if err != nil {
			return nil, err
		}
		return []Feature{{Geometry: mp}}, nil
	}
}

func decodeGeometry(g object) (geom.MultiPolygon, error) {
	switch g.Type {
	case "Polygon":
		var rings [][]position
		if err := json.Unmarshal(g.Coordinates, &rings); err != nil {
			return nil, fmt.Errorf("source: polygon coordinates: %w", err)
		}
		p, err := polygon(rings)
		if err != nil {
			return nil, err
		}
		return geom.MultiPolygon{p}, nil

	case "MultiPolygon":
		var polys [][][]position
		if err := json.Unmarshal(g.Coordinates, &polys); err != nil {
			return nil, fmt.Errorf("source: multipolygon coordinates: %w", err)
		}
		mp := make(geom.MultiPolygon, 0, len(polys))
		for i, rings := range polys {
			p, err := polygon(rings)
			if err != nil {
				return nil, fmt.Errorf("source: part %d: %w", i, err)
			}
			mp = append(mp, p)
		}
		return mp, nil
	}
	return nil, fmt.Errorf("source: %w %q", ErrUnsupported, g.Type)
}

func polygon(rings [][]position) (geom.Polygon, error) {
	if len(rings) == 0 {
		return geom.Polygon{}, errors.New("source: polygon has no rings")
	}
	pts := make([][]geom.Point3, len(rings))
	for i, r := range rings {
		pts[i] = make([]geom.Point3, len(r))
		for j, pos := range r {
			switch {
			case len(pos) < 2:
				return geom.Polygon{}, fmt.Errorf("source: ring %d position %d has %d coordinates", i, j, len(pos))
			case len(pos) == 2:
				pts[i][j] = geom.Point3{X: pos[0], Y: pos[1]}
			default:
				pts[i][j] = geom.Point3{X: pos[0], Y: pos[1], Z: pos[2]}
			}
		}
	}
	return geom.NewPolygon(pts[0], pts[1:]...), nil
}

// Geometry is a GeoJSON geometry object for output.
type Geometry struct {
	Type        string `json:"type"`
	Coordinates any    `json:"coordinates"`
}

// MultiLineString encodes polylines as a 3D GeoJSON MultiLineString.
func MultiLineString(lines []mesh.Polyline) Geometry {
	coords := make([][][3]float64, len(lines))
	for i, l := range lines {
		coords[i] = make([][3]float64, len(l))
		for j, p := range l {
			coords[i][j] = [3]float64{p.X, p.Y, p.Z}
		}
	}
	return Geometry{Type: "MultiLineString", Coordinates: coords}
}

// MultiPolygon encodes mp as a 3D GeoJSON MultiPolygon with closed rings.
func MultiPolygon(mp geom.MultiPolygon) Geometry {
	ring := func(r geom.Ring) [][3]float64 {
		out := make([][3]float64, 0, len(r)+1)
		for _, p := range r.Closed() {
			out = append(out, [3]float64{p.X, p.Y, p.Z})
		}
		return out
	}
	coords := make([][][][3]float64, len(mp))
	for i, p := range mp {
		coords[i] = append(coords[i], ring(p.Outer))
		for _, h := range p.Holes {
			coords[i] = append(coords[i], ring(h))
		}
	}
	return Geometry{Type: "MultiPolygon", Coordinates: coords}
}
