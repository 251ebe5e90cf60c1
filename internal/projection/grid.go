package projection

import (
	"math"

	"github.com/star/droidsat/internal/skymath"
)

// gridStep is the largest angular length, in degrees, of one grid segment.
const gridStep = 5.0

// GridKind says which family of grid line a segment belongs to.
type GridKind string

const (
	GridElevation GridKind = "elevation" // circle of constant elevation
	GridAzimuth   GridKind = "azimuth"   // meridian of constant azimuth
)

// GridSegment is one straight piece of a grid line.
type GridSegment struct {
	Kind  GridKind `json:"kind"`
	Value float64  `json:"value_deg"` // elevation or azimuth the line follows
	From  Point    `json:"from"`
	To    Point    `json:"to"`
}

// grid builds elevation circles and azimuth meridians every GridDensity
// degrees, the part below the horizon included. A segment is dropped when
// either endpoint is not finite or lies outside the clip margin.
func (s Scene) grid(p *Projector) []GridSegment {
	if s.GridDensity <= 0 {
		return nil
	}
	step := math.Min(gridStep, s.GridDensity)
	var segs []GridSegment

	keep := func(kind GridKind, value float64, a, b Point) {
		if !a.Finite() || !b.Finite() {
			return
		}
		if !p.Within(a, s.ClipMargin) || !p.Within(b, s.ClipMargin) {
			return
		}
		segs = append(segs, GridSegment{Kind: kind, Value: value, From: a, To: b})
	}

	for el := -90 + s.GridDensity; el < 90; el += s.GridDensity {
		theta := el * skymath.Deg2Rad
		prev := p.Project(0, theta)
		for az := step; az <= 360+1e-9; az += step {
			next := p.Project(az*skymath.Deg2Rad, theta)
			keep(GridElevation, el, prev, next)
			prev = next
		}
	}

	for az := 0.0; az < 360-1e-9; az += s.GridDensity {
		lambda := az * skymath.Deg2Rad
		prev := p.Project(lambda, -90*skymath.Deg2Rad)
		for el := -90 + step; el <= 90+1e-9; el += step {
			next := p.Project(lambda, el*skymath.Deg2Rad)
			keep(GridAzimuth, az, prev, next)
			prev = next
		}
	}

	return segs
}
