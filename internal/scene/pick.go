package scene

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Hit is the result of a successful pick.
type Hit struct {
	Mesh     *Mesh
	Distance float64 // along the ray
}

// Pick returns the body mesh nearest to the ray origin that the ray
// intersects. The star is not pickable.
func (s *Scene) Pick(ray Ray) (Hit, bool) {
	best := Hit{Distance: math.Inf(1)}
	for _, m := range s.Bodies {
		if t, ok := intersectSphere(ray, m.Position, m.Radius); ok && t < best.Distance {
			best = Hit{Mesh: m, Distance: t}
		}
	}
	return best, best.Mesh != nil
}

// intersectSphere returns the distance along ray to the first intersection
// with the sphere, ignoring hits behind the origin.
func intersectSphere(ray Ray, center r3.Vec, radius float64) (float64, bool) {
	oc := r3.Sub(ray.Origin, center)
	b := r3.Dot(oc, ray.Dir)
	c := r3.Dot(oc, oc) - radius*radius
	disc := b*b - c
	if disc < 0 {
		return 0, false
	}
	sq := math.Sqrt(disc)
	t := -b - sq
	if t < 0 {
		t = -b + sq
	}
	if t < 0 {
		return 0, false
	}
	return t, true
}

// Nearest returns the body whose projection through cam falls closest to
// the device coordinates (x, y), within maxDist in NDC units. It is used
// where bodies are too small to hit exactly, such as character-cell
// displays.
func (s *Scene) Nearest(cam Camera, x, y, maxDist float64) (*Mesh, bool) {
	var best *Mesh
	bestD := maxDist
	for _, m := range s.Bodies {
		p, ok := cam.Project(m.Position)
		if !ok {
			continue
		}
		dx, dy := (p.X-x)*cam.Aspect, p.Y-y
		if d := math.Hypot(dx, dy); d <= bestD {
			best, bestD = m, d
		}
	}
	return best, best != nil
}
