// Package sim runs the orrery: a simulation state value, the messages that
// update it, the pure per-frame step, and the engine goroutine that drives
// frames and fans them out to subscribers.
package sim

import (
	"time"

	"github.com/Strangeisit/hoticeteaoreryproject/internal/clock"
)

// HighlightDuration is how long a picked body stays highlighted.
const HighlightDuration = 300 * time.Millisecond

// StarRotationPerFrame is the starfield's rotation about the y axis per frame (rad).
const StarRotationPerFrame = 0.0001

// State is the whole mutable simulation state. It is a value: messages and
// Step return modified copies.
type State struct {
	Clock          clock.Clock
	OrbitsVisible  bool
	LabelsVisible  bool
	Selected       string    // last picked or selected body
	HighlightUntil time.Time // Selected is drawn highlighted until this instant
	StarRotation   float64
	Frame          uint64
}

// NewState returns the initial state: time zero at the given speed, orbits
// hidden, labels shown.
func NewState(speed float64) State {
	return State{
		Clock:         clock.New(speed),
		OrbitsVisible: false,
		LabelsVisible: true,
	}
}

// Highlight returns the highlighted body at instant now, or "".
func (s State) Highlight(now time.Time) string {
	if s.Selected == "" || !now.Before(s.HighlightUntil) {
		return ""
	}
	return s.Selected
}

// Snapshot is the JSON view of a State.
type Snapshot struct {
	Frame         uint64  `json:"frame"`
	Time          float64 `json:"t"`
	Date          string  `json:"date"`
	Speed         float64 `json:"speed"`
	Paused        bool    `json:"paused"`
	OrbitsVisible bool    `json:"orbits_visible"`
	LabelsVisible bool    `json:"labels_visible"`
	Selected      string  `json:"selected,omitempty"`
	StarRotation  float64 `json:"star_rotation"`
}

// Snapshot converts s into its JSON view.
func (s State) Snapshot() Snapshot {
	return Snapshot{
		Frame:         s.Frame,
		Time:          s.Clock.Time,
		Date:          s.Clock.Date().UTC().Format(time.DateOnly),
		Speed:         s.Clock.Speed,
		Paused:        s.Clock.Paused(),
		OrbitsVisible: s.OrbitsVisible,
		LabelsVisible: s.LabelsVisible,
		Selected:      s.Selected,
		StarRotation:  s.StarRotation,
	}
}
