package orbit

import (
	"fmt"
	"math"
	"strings"

	"github.com/soniakeys/meeus/v3/kepler"
	"github.com/soniakeys/unit"
	"gonum.org/v1/gonum/spatial/r3"
)

// Method selects how the anomaly along the orbit is derived from the mean anomaly.
type Method int

const (
	// MeanAnomaly uses the mean anomaly directly as the true anomaly. Exact
	// only for circular orbits; good enough for an illustrative view.
	MeanAnomaly Method = iota
	// Kepler solves Kepler's equation for the eccentric anomaly and places
	// the body at its true anomaly.
	Kepler
)

func (m Method) String() string {
	switch m {
	case MeanAnomaly:
		return "mean_anomaly"
	case Kepler:
		return "kepler"
	default:
		return fmt.Sprintf("method(%d)", int(m))
	}
}

// ParseMethod parses a method name as produced by Method.String.
// "approximate" is accepted as an alias of mean_anomaly.
func ParseMethod(s string) (Method, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "mean_anomaly", "approximate", "":
		return MeanAnomaly, nil
	case "kepler":
		return Kepler, nil
	default:
		return MeanAnomaly, fmt.Errorf("unknown orbit method %q", s)
	}
}

// Position returns the position of a body on the orbit (a, e, i, om, w) at
// mean anomaly ma, treating ma as the true anomaly.
//
// The in-plane point (r cos ma, r sin ma) is rotated by w, tilted by i
// about the node line and finally rotated by om. Any real input is accepted;
// nonsensical elements yield non-finite or degenerate positions.
func Position(a, e, i, om, w, ma float64) r3.Vec {
	r := Radius(a, e, ma)
	return rotate(r*math.Cos(ma), r*math.Sin(ma), i, om, w)
}

// Radius is the conic-section distance a(1-e²)/(1+e·cos nu).
func Radius(a, e, nu float64) float64 {
	return a * (1 - e*e) / (1 + e*math.Cos(nu))
}

// KeplerPosition is Position with the true anomaly obtained from Kepler's
// equation M = E - e sin E.
func KeplerPosition(a, e, i, om, w, ma float64) r3.Vec {
	m := math.Mod(ma, 2*math.Pi)
	if m < 0 {
		m += 2 * math.Pi
	}
	ea := kepler.Kepler3(e, unit.Angle(m))
	nu := kepler.True(ea, e).Rad()
	r := kepler.Radius(ea, e, a)
	return rotate(r*math.Cos(nu), r*math.Sin(nu), i, om, w)
}

// Solve returns the position of el at mean anomaly ma using method m.
func (m Method) Solve(el Elements, ma float64) r3.Vec {
	if m == Kepler {
		return KeplerPosition(el.A, el.E, el.I, el.Om, el.W, ma)
	}
	return Position(el.A, el.E, el.I, el.Om, el.W, ma)
}

func rotate(xp, yp, i, om, w float64) r3.Vec {
	sw, cw := math.Sincos(w)
	x2 := xp*cw - yp*sw
	y2 := xp*sw + yp*cw

	si, ci := math.Sincos(i)
	z := y2 * si
	y3 := y2 * ci

	so, co := math.Sincos(om)
	return r3.Vec{
		X: x2*co - y3*so,
		Y: x2*so + y3*co,
		Z: z,
	}
}
