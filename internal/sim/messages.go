package sim

import "time"

// Message is a state update produced by user input. Messages are applied by
// the engine goroutine between frames.
type Message interface {
	Apply(State) State
	Kind() string
}

// SetSpeed replaces the speed factor (clamped to the clock's range).
type SetSpeed struct{ Value float64 }

func (m SetSpeed) Apply(s State) State {
	s.Clock = s.Clock.WithSpeed(m.Value)
	return s
}
func (SetSpeed) Kind() string { return "speed" }

// ToggleOrbits flips orbit path visibility.
type ToggleOrbits struct{}

func (ToggleOrbits) Apply(s State) State {
	s.OrbitsVisible = !s.OrbitsVisible
	return s
}
func (ToggleOrbits) Kind() string { return "toggle_orbits" }

// ToggleLabels flips label visibility.
type ToggleLabels struct{}

func (ToggleLabels) Apply(s State) State {
	s.LabelsVisible = !s.LabelsVisible
	return s
}
func (ToggleLabels) Kind() string { return "toggle_labels" }

// SetOrbitsVisible sets orbit path visibility.
type SetOrbitsVisible struct{ Visible bool }

func (m SetOrbitsVisible) Apply(s State) State {
	s.OrbitsVisible = m.Visible
	return s
}
func (SetOrbitsVisible) Kind() string { return "orbits" }

// SetLabelsVisible sets label visibility.
type SetLabelsVisible struct{ Visible bool }

func (m SetLabelsVisible) Apply(s State) State {
	s.LabelsVisible = m.Visible
	return s
}
func (SetLabelsVisible) Kind() string { return "labels" }

// Select marks a body as picked and highlights it from At for
// HighlightDuration. An empty Name clears the selection.
type Select struct {
	Name string
	At   time.Time
}

func (m Select) Apply(s State) State {
	s.Selected = m.Name
	if m.Name == "" {
		s.HighlightUntil = time.Time{}
	} else {
		s.HighlightUntil = m.At.Add(HighlightDuration)
	}
	return s
}
func (Select) Kind() string { return "select" }
