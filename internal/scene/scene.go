// Package scene composes the orrery's visual scene once at startup and keeps
// the handles the render loop and interaction layer act on.
//
// A Scene is not safe for concurrent mutation: Apply, SetOrbitsVisible,
// SetLabelsVisible and Pick are called from the simulation goroutine only.
// Description returns an immutable snapshot that may be shared freely.
package scene

import (
	"math"
	"math/rand"

	"github.com/lucasb-eyer/go-colorful"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/Strangeisit/hoticeteaoreryproject/internal/bodies"
	"github.com/Strangeisit/hoticeteaoreryproject/internal/orbit"
)

// Fixed scene styling.
const (
	SunRadius      = 0.06
	SunColor       = "#ffff00"
	OrbitColor     = "#cf5f57"
	StarColor      = "#888888"
	StarSize       = 0.05
	HighlightColor = "#ff0000"
	LabelOffsetZ   = 0.1
)

// Config controls scene construction.
type Config struct {
	StarCount     int     // number of background stars (default 30000)
	StarSeed      int64   // seed for star placement
	StarExtent    float64 // edge length of the cube stars are scattered in (default 100)
	OrbitSegments int     // points per orbit loop (default 100)
	Method        orbit.Method
}

// DefaultConfig returns the standard scene configuration.
func DefaultConfig() Config {
	return Config{
		StarCount:     30000,
		StarSeed:      1,
		StarExtent:    100,
		OrbitSegments: orbit.DefaultPathSegments,
		Method:        orbit.MeanAnomaly,
	}
}

// Mesh is a sphere drawn for the star or an orbiting body.
type Mesh struct {
	Name        string
	Kind        bodies.Kind
	Radius      float64
	Color       colorful.Color
	Position    r3.Vec
	Highlighted bool
}

// DisplayColor is the colour to draw the mesh with, accounting for highlight.
func (m *Mesh) DisplayColor() colorful.Color {
	if m.Highlighted {
		return mustHex(HighlightColor)
	}
	return m.Color
}

// Starfield is the static background point cloud. It rotates about the y axis.
type Starfield struct {
	Points   []r3.Vec
	Color    colorful.Color
	Size     float64
	Rotation float64
}

// Scene is the composed scene graph.
type Scene struct {
	Stars  *Starfield
	Sun    *Mesh
	Bodies []*Mesh // same order as the registry
	Orbits *Collection[*OrbitPath]
	Labels *Collection[*Label]

	byName map[string]int
	desc   *Description
}

// Build composes the scene for every body in reg.
func Build(reg *bodies.Registry, cfg Config) *Scene {
	def := DefaultConfig()
	if cfg.StarCount < 0 {
		cfg.StarCount = 0
	}
	if cfg.StarExtent <= 0 {
		cfg.StarExtent = def.StarExtent
	}
	if cfg.OrbitSegments < 1 {
		cfg.OrbitSegments = def.OrbitSegments
	}

	s := &Scene{
		Stars: newStarfield(cfg.StarCount, cfg.StarSeed, cfg.StarExtent),
		Sun: &Mesh{
			Name:   "Sun",
			Radius: SunRadius,
			Color:  mustHex(SunColor),
		},
		Orbits: NewCollection[*OrbitPath]("orbits", false),
		Labels: NewCollection[*Label]("labels", true),
		byName: make(map[string]int, reg.Len()),
	}

	orbitColor := mustHex(OrbitColor)
	for i, b := range reg.All() {
		col, err := colorful.Hex(b.Color)
		if err != nil {
			col = orbitColor
		}
		s.Bodies = append(s.Bodies, &Mesh{
			Name:   b.Name,
			Kind:   b.Kind,
			Radius: b.Size,
			Color:  col,
		})
		s.byName[b.Name] = i

		s.Orbits.Add(&OrbitPath{
			Body:   b.Name,
			Points: orbit.Path(b.Elements, cfg.OrbitSegments, cfg.Method),
			Color:  orbitColor,
		})
		s.Labels.Add(&Label{
			Text:     b.Name,
			Position: r3.Vec{X: b.Elements.A, Z: LabelOffsetZ},
		})
	}

	s.desc = s.describe()
	return s
}

func newStarfield(n int, seed int64, extent float64) *Starfield {
	rng := rand.New(rand.NewSource(seed))
	pts := make([]r3.Vec, n)
	for i := range pts {
		pts[i] = r3.Vec{
			X: (rng.Float64() - 0.5) * extent,
			Y: (rng.Float64() - 0.5) * extent,
			Z: (rng.Float64() - 0.5) * extent,
		}
	}
	return &Starfield{Points: pts, Color: mustHex(StarColor), Size: StarSize}
}

// Update carries one frame's worth of changes for the scene.
type Update struct {
	Positions     []r3.Vec // index-aligned with Bodies
	StarRotation  float64
	OrbitsVisible bool
	LabelsVisible bool
	Highlight     string // body name, empty for none
}

// Apply moves meshes and labels to the frame's positions and syncs
// visibility and highlight state.
func (s *Scene) Apply(u Update) {
	labels := s.Labels.Items()
	for i, m := range s.Bodies {
		if i >= len(u.Positions) {
			break
		}
		m.Position = u.Positions[i]
		m.Highlighted = u.Highlight != "" && m.Name == u.Highlight
		labels[i].Position = u.Positions[i]
	}
	s.Stars.Rotation = u.StarRotation
	s.SetOrbitsVisible(u.OrbitsVisible)
	s.SetLabelsVisible(u.LabelsVisible)
}

// SetOrbitsVisible shows or hides every orbit path.
func (s *Scene) SetOrbitsVisible(v bool) {
	s.Orbits.SetVisible(v)
}

// SetLabelsVisible shows or hides every label.
func (s *Scene) SetLabelsVisible(v bool) {
	s.Labels.SetVisible(v)
}

// Mesh returns the mesh for a body name.
func (s *Scene) Mesh(name string) (*Mesh, bool) {
	i, ok := s.byName[name]
	if !ok {
		return nil, false
	}
	return s.Bodies[i], true
}

// StarPosition returns star i rotated by the current starfield rotation.
func (s *Scene) StarPosition(i int) r3.Vec {
	return RotateY(s.Stars.Points[i], s.Stars.Rotation)
}

// RotateY rotates p by angle radians about the y axis.
func RotateY(p r3.Vec, angle float64) r3.Vec {
	sr, cr := math.Sincos(angle)
	return r3.Vec{X: p.X*cr + p.Z*sr, Y: p.Y, Z: -p.X*sr + p.Z*cr}
}

func mustHex(s string) colorful.Color {
	c, err := colorful.Hex(s)
	if err != nil {
		panic("scene: bad colour constant " + s)
	}
	return c
}
