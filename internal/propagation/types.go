package propagation

import (
	"time"

	"github.com/star/droidsat/internal/projection"
)

// SkyPosition is one satellite as seen by the observer at a single instant.
type SkyPosition struct {
	NORADID   int     `json:"norad_id"`
	Name      string  `json:"name"`
	Azimuth   float64 `json:"azimuth"`   // radians, 0 = North, clockwise
	Elevation float64 `json:"elevation"` // radians
	RangeKm   float64 `json:"range_km"`
	Sunlit    bool    `json:"sunlit"`
}

// Snapshot holds the sky positions of every satellite that propagated
// successfully at one instant, ordered by NORAD ID.
type Snapshot struct {
	Timestamp time.Time     `json:"timestamp"`
	Positions []SkyPosition `json:"positions"`
}

// Objects converts the snapshot into projection input.
func (s *Snapshot) Objects() []projection.SkyObject {
	if s == nil {
		return nil
	}
	objs := make([]projection.SkyObject, len(s.Positions))
	for i, p := range s.Positions {
		objs[i] = projection.SkyObject{
			ID:        p.NORADID,
			Name:      p.Name,
			Azimuth:   p.Azimuth,
			Elevation: p.Elevation,
			Sunlit:    p.Sunlit,
		}
	}
	return objs
}

// PropConfig holds propagation configuration loaded from environment variables.
type PropConfig struct {
	Workers int // worker pool size (default: runtime.NumCPU())
}
