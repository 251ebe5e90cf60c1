package propagation

import (
	"fmt"
	"strings"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"

	"github.com/star/droidsat/internal/skymath"
	"github.com/star/droidsat/internal/transform"
)

// go-satellite's Propagate takes the Satellite by value, so SGP4 error codes
// never reach the caller. Failures are detected from the output instead:
// NaN/Inf or a radius no orbit can have.

// SGP4Propagator wraps the go-satellite library for a single satellite.
type SGP4Propagator struct {
	sat     satellite.Satellite
	noradID int
}

// NewSGP4Propagator creates an SGP4 propagator from TLE lines.
//
// The lines are checked before they reach the library, because go-satellite
// calls log.Fatal on malformed input.
func NewSGP4Propagator(line1, line2 string, noradID int) (*SGP4Propagator, error) {
	if err := validateTLELines(line1, line2); err != nil {
		return nil, fmt.Errorf("invalid TLE for NORAD %d: %w", noradID, err)
	}

	sat := satellite.TLEToSat(line1, line2, satellite.GravityWGS84)
	if sat.Error != 0 {
		return nil, fmt.Errorf("sgp4 init failed for NORAD %d: code=%d %s", noradID, sat.Error, sat.ErrorStr)
	}
	return &SGP4Propagator{sat: sat, noradID: noradID}, nil
}

func validateTLELines(line1, line2 string) error {
	line1 = strings.TrimSpace(line1)
	line2 = strings.TrimSpace(line2)

	if len(line1) != 69 {
		return fmt.Errorf("line1 length %d, expected 69", len(line1))
	}
	if len(line2) != 69 {
		return fmt.Errorf("line2 length %d, expected 69", len(line2))
	}
	if line1[0] != '1' {
		return fmt.Errorf("line1 must start with '1', got '%c'", line1[0])
	}
	if line2[0] != '2' {
		return fmt.Errorf("line2 must start with '2', got '%c'", line2[0])
	}
	return nil
}

// Propagate returns the TEME state vector (km, km/s) at t, truncated to
// whole seconds.
func (p *SGP4Propagator) Propagate(t time.Time) (transform.StateVector, error) {
	t = t.UTC()
	pos, vel := satellite.Propagate(p.sat, t.Year(), int(t.Month()), t.Day(), t.Hour(), t.Minute(), t.Second())

	sv := transform.StateVector{
		Position: skymath.Vector{X: pos.X, Y: pos.Y, Z: pos.Z},
		Velocity: skymath.Vector{X: vel.X, Y: vel.Y, Z: vel.Z},
	}
	// A rotation about Z preserves the radius, so the ECEF bounds apply to TEME.
	if !transform.ValidPosition(sv.Position) {
		return transform.StateVector{}, fmt.Errorf("sgp4 propagation failed for NORAD %d: position %+v km", p.noradID, sv.Position)
	}
	return sv, nil
}
