package tracker

import (
	"time"

	"github.com/star/droidsat/internal/projection"
)

// SkyFrame is a projected frame stamped with the time of the snapshot it
// was rendered from. Timestamp is zero before the first snapshot; the frame
// then carries only the grid.
type SkyFrame struct {
	Timestamp time.Time `json:"timestamp"`
	projection.Frame
}

// View renders the current snapshot around the shared orientation.
type View struct {
	tracker     *Tracker
	orientation *projection.Orientation
	scene       projection.Scene
}

func NewView(tracker *Tracker, orientation *projection.Orientation, scene projection.Scene) *View {
	return &View{tracker: tracker, orientation: orientation, scene: scene}
}

func (v *View) Orientation() *projection.Orientation { return v.orientation }

// Frame renders one frame. It reads the snapshot pointer and the
// orientation once each, so a concurrent refresh or sensor update only
// affects the next frame.
func (v *View) Frame() SkyFrame {
	snap := v.tracker.Snapshot()
	f := SkyFrame{Frame: v.scene.Render(v.orientation.Center(), snap.Objects())}
	if snap != nil {
		f.Timestamp = snap.Timestamp
	}
	return f
}
