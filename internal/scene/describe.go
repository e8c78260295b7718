package scene

import "gonum.org/v1/gonum/spatial/r3"

// Description is the static part of the scene in a form clients can
// render from. Built once; never mutated.
type Description struct {
	Sun            MeshInfo    `json:"sun"`
	Bodies         []MeshInfo  `json:"bodies"`
	Orbits         []PathInfo  `json:"orbits"`
	OrbitsVisible  bool        `json:"orbits_visible"`
	Labels         []LabelInfo `json:"labels"`
	LabelsVisible  bool        `json:"labels_visible"`
	Stars          StarInfo    `json:"stars"`
	Camera         CameraInfo  `json:"camera"`
	HighlightColor string      `json:"highlight_color"`
}

type MeshInfo struct {
	Name   string     `json:"name"`
	Kind   string     `json:"kind,omitempty"`
	Radius float64    `json:"radius"`
	Color  string     `json:"color"`
	P      [3]float64 `json:"p"`
}

type PathInfo struct {
	Body   string       `json:"body"`
	Color  string       `json:"color"`
	Points [][3]float64 `json:"points"`
}

type LabelInfo struct {
	Text string     `json:"text"`
	P    [3]float64 `json:"p"`
}

type StarInfo struct {
	Count  int          `json:"count"`
	Color  string       `json:"color"`
	Size   float64      `json:"size"`
	Points [][3]float32 `json:"points,omitempty"`
}

type CameraInfo struct {
	Position [3]float64 `json:"position"`
	Target   [3]float64 `json:"target"`
	FOV      float64    `json:"fov"`
	Near     float64    `json:"near"`
	Far      float64    `json:"far"`
}

// Description returns the static scene snapshot. With stars false the star
// points are omitted (count, colour and size are kept).
func (s *Scene) Description(stars bool) Description {
	d := *s.desc
	if !stars {
		d.Stars.Points = nil
	}
	return d
}

func (s *Scene) describe() *Description {
	d := &Description{
		Sun: MeshInfo{
			Name:   s.Sun.Name,
			Radius: s.Sun.Radius,
			Color:  s.Sun.Color.Hex(),
		},
		OrbitsVisible:  s.Orbits.Visible(),
		LabelsVisible:  s.Labels.Visible(),
		HighlightColor: HighlightColor,
		Stars: StarInfo{
			Count: len(s.Stars.Points),
			Color: s.Stars.Color.Hex(),
			Size:  s.Stars.Size,
		},
	}

	for _, m := range s.Bodies {
		d.Bodies = append(d.Bodies, MeshInfo{
			Name:   m.Name,
			Kind:   string(m.Kind),
			Radius: m.Radius,
			Color:  m.Color.Hex(),
			P:      Array(m.Position),
		})
	}
	for _, p := range s.Orbits.Items() {
		pts := make([][3]float64, len(p.Points))
		for i, v := range p.Points {
			pts[i] = Array(v)
		}
		d.Orbits = append(d.Orbits, PathInfo{Body: p.Body, Color: p.Color.Hex(), Points: pts})
	}
	for _, l := range s.Labels.Items() {
		d.Labels = append(d.Labels, LabelInfo{Text: l.Text, P: Array(l.Position)})
	}

	d.Stars.Points = make([][3]float32, len(s.Stars.Points))
	for i, p := range s.Stars.Points {
		d.Stars.Points[i] = [3]float32{float32(p.X), float32(p.Y), float32(p.Z)}
	}

	cam := DefaultCamera(1)
	d.Camera = CameraInfo{
		Position: Array(cam.Position),
		Target:   Array(cam.Target),
		FOV:      cam.FOV,
		Near:     cam.Near,
		Far:      cam.Far,
	}
	return d
}

// Array converts a vector to its wire form.
func Array(v r3.Vec) [3]float64 {
	return [3]float64{v.X, v.Y, v.Z}
}

// Vec converts a wire-form triple to a vector.
func Vec(a [3]float64) r3.Vec {
	return r3.Vec{X: a[0], Y: a[1], Z: a[2]}
}
