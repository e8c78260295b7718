package sim

import (
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/Strangeisit/hoticeteaoreryproject/internal/bodies"
	"github.com/Strangeisit/hoticeteaoreryproject/internal/orbit"
	"github.com/Strangeisit/hoticeteaoreryproject/internal/scene"
)

// Frame holds the positions of all bodies at one simulation step.
type Frame struct {
	Seq           uint64
	Time          float64 // simulated years
	Speed         float64
	Date          time.Time
	Bodies        []BodyPosition
	StarRotation  float64
	OrbitsVisible bool
	LabelsVisible bool
	Highlight     string
	Selected      string
	WallTime      time.Time
}

// BodyPosition is one body's place in a frame.
type BodyPosition struct {
	Name        string
	MeanAnomaly float64
	Position    r3.Vec
}

// Positions returns the body positions in registry order.
func (f *Frame) Positions() []r3.Vec {
	out := make([]r3.Vec, len(f.Bodies))
	for i, b := range f.Bodies {
		out[i] = b.Position
	}
	return out
}

// SceneUpdate converts the frame into the scene's per-frame update.
func (f *Frame) SceneUpdate() scene.Update {
	return scene.Update{
		Positions:     f.Positions(),
		StarRotation:  f.StarRotation,
		OrbitsVisible: f.OrbitsVisible,
		LabelsVisible: f.LabelsVisible,
		Highlight:     f.Highlight,
	}
}

// StepConfig controls how Step places bodies.
type StepConfig struct {
	Method       orbit.Method
	InitialPhase bool // add each body's initial mean anomaly to the phase
}

// Step advances the clock by one frame and solves every body's position at
// the new simulated time. It is pure: the same inputs always give the same
// frame.
func Step(s State, reg *bodies.Registry, cfg StepConfig, now time.Time) (State, *Frame) {
	s.Clock = s.Clock.Advance()
	s.StarRotation += StarRotationPerFrame
	s.Frame++

	return s, Render(s, reg, cfg, now)
}

// Render solves every body's position for s without advancing time.
func Render(s State, reg *bodies.Registry, cfg StepConfig, now time.Time) *Frame {
	all := reg.All()
	f := &Frame{
		Seq:           s.Frame,
		Time:          s.Clock.Time,
		Speed:         s.Clock.Speed,
		Date:          s.Clock.Date(),
		Bodies:        make([]BodyPosition, len(all)),
		StarRotation:  s.StarRotation,
		OrbitsVisible: s.OrbitsVisible,
		LabelsVisible: s.LabelsVisible,
		Highlight:     s.Highlight(now),
		Selected:      s.Selected,
		WallTime:      now,
	}
	for i, b := range all {
		ma := b.MeanAnomaly(s.Clock.Time, cfg.InitialPhase)
		f.Bodies[i] = BodyPosition{
			Name:        b.Name,
			MeanAnomaly: ma,
			Position:    cfg.Method.Solve(b.Elements, ma),
		}
	}
	return f
}
