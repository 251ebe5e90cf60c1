package projection

import (
	"github.com/star/droidsat/internal/metrics"
	"github.com/star/droidsat/internal/skymath"
)

// Scene is the display configuration a frame is rendered with.
type Scene struct {
	Radius      float64 // projection radius, pixels
	Width       float64
	Height      float64
	GridDensity float64 // degrees between grid lines; <= 0 disables the grid
	ClipMargin  float64 // pixels outside the viewport that still count as visible
	TargetID    int     // 0 means no target
	SelectedID  int     // 0 means no selection
}

// SkyObject is one body as supplied by a position provider. Angles are in
// radians.
type SkyObject struct {
	ID        int
	Name      string
	Azimuth   float64
	Elevation float64
	Sunlit    bool
}

// Marker is a projected SkyObject with the flags a renderer needs to pick a
// paint style.
type Marker struct {
	ID       int     `json:"id"`
	Name     string  `json:"name"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Target   bool    `json:"target"`
	Sunlit   bool    `json:"sunlit"`
	Selected bool    `json:"selected"`
}

// Frame is the geometry for one redraw.
type Frame struct {
	Width   float64       `json:"width"`
	Height  float64       `json:"height"`
	Heading float64       `json:"heading_deg"`
	Pitch   float64       `json:"pitch_deg"`
	Markers []Marker      `json:"markers"`
	Grid    []GridSegment `json:"grid"`
	Skipped int           `json:"skipped"`
}

// Render projects objects and the alt/az grid around center. Objects whose
// image is not finite or falls outside the clip margin are left out and
// counted in Frame.Skipped; the slice may be a snapshot that is being
// replaced concurrently, so Render never indexes past what it was given.
func (s Scene) Render(center Center, objects []SkyObject) Frame {
	p := NewProjector(s.Radius, s.Width, s.Height)
	p.SetCenter(center.Heading, center.Pitch)

	frame := Frame{
		Width:   s.Width,
		Height:  s.Height,
		Heading: center.Heading * skymath.Rad2Deg,
		Pitch:   center.Pitch * skymath.Rad2Deg,
		Markers: make([]Marker, 0, len(objects)),
	}

	for _, obj := range objects {
		pt := p.Project(obj.Azimuth, obj.Elevation)
		if !pt.Finite() || !p.Within(pt, s.ClipMargin) {
			frame.Skipped++
			continue
		}
		frame.Markers = append(frame.Markers, Marker{
			ID:       obj.ID,
			Name:     obj.Name,
			X:        pt.X,
			Y:        pt.Y,
			Target:   s.TargetID != 0 && obj.ID == s.TargetID,
			Sunlit:   obj.Sunlit,
			Selected: s.SelectedID != 0 && obj.ID == s.SelectedID,
		})
	}

	frame.Grid = s.grid(p)

	metrics.IncFramesRendered()
	if frame.Skipped > 0 {
		metrics.AddMarkersSkipped(frame.Skipped)
	}
	return frame
}
