package geom

import (
	"fmt"
	"math"
)

// planarTolerance is the largest plane distance, relative to the ring
// extent, that still counts as planar.
const planarTolerance = 1e-6

// Severity indicates whether a finding stops a part from meshing or is
// merely advisory.
type Severity int

const (
	SeverityError   Severity = iota // the part will be skipped
	SeverityWarning                 // the part meshes, results may be off
)

func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	default:
		return fmt.Sprintf("Severity(%d)", int(s))
	}
}

// MarshalText encodes the severity by name.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Issue describes a single finding about the input geometry.
// Ring is 0 for the outer ring and i+1 for hole i.
type Issue struct {
	Part     int      `json:"part"`
	Ring     int      `json:"ring"`
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
}

func (i Issue) Error() string {
	return fmt.Sprintf("[%s] part %d ring %d: %s", i.Severity, i.Part, i.Ring, i.Message)
}

// Validate inspects every part of mp and reports rings that cannot be
// meshed (errors) or that will mesh with approximations (warnings). It never
// mutates its input; the mesher still runs best-effort on invalid parts.
func Validate(mp MultiPolygon) []Issue {
	var issues []Issue
	for i, p := range mp {
		issues = append(issues, validatePolygon(i, p)...)
	}
	return issues
}

func validatePolygon(part int, p Polygon) []Issue {
	var issues []Issue

	n, err := p.Normal()
	if err != nil {
		return append(issues, Issue{
			Part:     part,
			Ring:     0,
			Message:  err.Error(),
			Severity: SeverityError,
		})
	}

	origin := p.Outer[0]
	ext := p.Outer.Extent()
	if d := maxPlaneDistance(p.Outer, n, origin); d > planarTolerance*ext {
		issues = append(issues, Issue{
			Part:     part,
			Ring:     0,
			Message:  fmt.Sprintf("outer ring is not planar (max offset %.6g)", d),
			Severity: SeverityWarning,
		})
	}

	for h, hole := range p.Holes {
		if len(hole) < 3 {
			issues = append(issues, Issue{
				Part:     part,
				Ring:     h + 1,
				Message:  fmt.Sprintf("hole has %d points, need at least 3", len(hole)),
				Severity: SeverityError,
			})
			continue
		}
		if d := maxPlaneDistance(hole, n, origin); d > planarTolerance*ext {
			issues = append(issues, Issue{
				Part:     part,
				Ring:     h + 1,
				Message:  fmt.Sprintf("hole is not coplanar with outer ring (max offset %.6g)", d),
				Severity: SeverityWarning,
			})
		}
	}

	return issues
}

func maxPlaneDistance(r Ring, n, origin Point3) float64 {
	var d float64
	for _, p := range r {
		d = math.Max(d, math.Abs(PlaneDistance(p, n, origin)))
	}
	return d
}
