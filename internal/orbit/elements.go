// Package orbit converts Keplerian orbital elements into Cartesian positions
// around the focus body.
//
// All angles are radians. Positions are in the same length unit as the
// semi-major axis (astronomical units for the built-in catalog).
package orbit

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Elements holds the six classical orbital elements of a closed orbit.
type Elements struct {
	A  float64 // semi-major axis
	E  float64 // eccentricity, 0 <= E < 1
	I  float64 // inclination (rad)
	Om float64 // longitude of ascending node (rad)
	W  float64 // argument of periapsis (rad)
	M0 float64 // mean anomaly at t = 0 (rad)
}

// Validate reports whether the elements describe a closed ellipse.
func (el Elements) Validate() error {
	if !(el.A > 0) || math.IsInf(el.A, 0) {
		return fmt.Errorf("semi-major axis must be positive and finite, got %v", el.A)
	}
	if !(el.E >= 0 && el.E < 1) {
		return fmt.Errorf("eccentricity must be in [0, 1), got %v", el.E)
	}
	angles := []struct {
		name string
		v    float64
	}{{"i", el.I}, {"om", el.Om}, {"w", el.W}, {"ma", el.M0}}
	for _, a := range angles {
		if math.IsNaN(a.v) || math.IsInf(a.v, 0) {
			return fmt.Errorf("angle %s must be finite, got %v", a.name, a.v)
		}
	}
	return nil
}

// At returns the position for mean anomaly ma using the mean-anomaly
// approximation (see Position).
func (el Elements) At(ma float64) r3.Vec {
	return Position(el.A, el.E, el.I, el.Om, el.W, ma)
}

// Periapsis returns the closest approach distance a(1-e).
func (el Elements) Periapsis() float64 {
	return el.A * (1 - el.E)
}

// Apoapsis returns the farthest distance a(1+e).
func (el Elements) Apoapsis() float64 {
	return el.A * (1 + el.E)
}

// MeanAnomaly returns the mean anomaly after t time units for an orbit with
// the given period. With withPhase false the initial mean anomaly is ignored
// and every body starts at ma = 0.
func (el Elements) MeanAnomaly(t, period float64, withPhase bool) float64 {
	ma := 2 * math.Pi * t / period
	if withPhase {
		ma += el.M0
	}
	return ma
}

// Deg converts degrees to radians.
func Deg(deg float64) float64 {
	return deg * math.Pi / 180
}

// ToDeg converts radians to degrees.
func ToDeg(rad float64) float64 {
	return rad * 180 / math.Pi
}
