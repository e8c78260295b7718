package scene

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Camera is a perspective camera looking from Position at Target.
type Camera struct {
	Position r3.Vec
	Target   r3.Vec
	Up       r3.Vec
	FOV      float64 // vertical field of view in degrees
	Aspect   float64
	Near     float64
	Far      float64
}

// DefaultCamera returns the initial viewpoint: slightly above the ecliptic,
// three units out, looking at the star.
func DefaultCamera(aspect float64) Camera {
	if !(aspect > 0) {
		aspect = 1
	}
	return Camera{
		Position: r3.Vec{X: 0, Y: 0.5, Z: 3},
		Up:       r3.Vec{Y: 1},
		FOV:      75,
		Aspect:   aspect,
		Near:     0.1,
		Far:      1000,
	}
}

// Ray is a half-line from Origin along the unit vector Dir.
type Ray struct {
	Origin r3.Vec
	Dir    r3.Vec
}

// At returns the point at distance t along the ray.
func (r Ray) At(t float64) r3.Vec {
	return r3.Add(r.Origin, r3.Scale(t, r.Dir))
}

// basis returns the camera's right, up and forward unit vectors.
func (c Camera) basis() (right, up, forward r3.Vec) {
	forward = r3.Unit(r3.Sub(c.Target, c.Position))
	worldUp := c.Up
	if r3.Norm(worldUp) == 0 {
		worldUp = r3.Vec{Y: 1}
	}
	right = r3.Cross(forward, worldUp)
	if r3.Norm(right) < 1e-12 {
		// Looking straight along the up vector; pick any perpendicular.
		right = r3.Cross(forward, r3.Vec{Z: 1})
	}
	right = r3.Unit(right)
	up = r3.Cross(right, forward)
	return right, up, forward
}

func (c Camera) tanHalfFOV() float64 {
	return math.Tan(c.FOV * math.Pi / 360)
}

// Ray returns the world-space ray through normalised device coordinates
// (x, y), both in [-1, 1] with +y up.
func (c Camera) Ray(x, y float64) Ray {
	right, up, forward := c.basis()
	th := c.tanHalfFOV()
	dir := r3.Add(forward, r3.Add(
		r3.Scale(x*th*c.Aspect, right),
		r3.Scale(y*th, up),
	))
	return Ray{Origin: c.Position, Dir: r3.Unit(dir)}
}

// Project maps a world point to normalised device coordinates. The third
// component is the view depth. ok is false when the point is outside the
// near/far range.
func (c Camera) Project(p r3.Vec) (ndc r3.Vec, ok bool) {
	right, up, forward := c.basis()
	d := r3.Sub(p, c.Position)
	depth := r3.Dot(d, forward)
	if depth < c.Near || depth > c.Far {
		return r3.Vec{}, false
	}
	th := c.tanHalfFOV()
	return r3.Vec{
		X: r3.Dot(d, right) / (depth * th * c.Aspect),
		Y: r3.Dot(d, up) / (depth * th),
		Z: depth,
	}, true
}

// Orbit returns the camera rotated around its target by the given azimuth
// (about the up axis) and elevation deltas in radians. Elevation is clamped
// short of the poles.
func (c Camera) Orbit(dAzimuth, dElevation float64) Camera {
	off := r3.Sub(c.Position, c.Target)
	dist := r3.Norm(off)
	if dist == 0 {
		return c
	}
	az := math.Atan2(off.X, off.Z) + dAzimuth
	el := math.Asin(off.Y/dist) + dElevation
	const limit = math.Pi/2 - 0.01
	el = math.Max(-limit, math.Min(limit, el))

	se, ce := math.Sincos(el)
	sa, ca := math.Sincos(az)
	c.Position = r3.Add(c.Target, r3.Vec{X: dist * ce * sa, Y: dist * se, Z: dist * ce * ca})
	return c
}

// Zoom scales the distance to the target by factor, keeping it within
// [Near, Far/2].
func (c Camera) Zoom(factor float64) Camera {
	off := r3.Sub(c.Position, c.Target)
	dist := r3.Norm(off)
	if dist == 0 || !(factor > 0) {
		return c
	}
	nd := math.Max(c.Near*2, math.Min(c.Far/2, dist*factor))
	c.Position = r3.Add(c.Target, r3.Scale(nd/dist, off))
	return c
}
