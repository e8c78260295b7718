// Package clock implements the simulated-time accumulator that drives the orrery.
//
// Simulated time is measured in years so that it can be divided directly by
// orbital periods. The clock advances once per rendered frame by
// BaseIncrement scaled by a user-controlled speed factor; negative speeds run
// time backwards and zero pauses it.
package clock

import (
	"math"
	"time"

	"github.com/soniakeys/meeus/v3/julian"
)

const (
	// BaseIncrement is the simulated time added per frame at speed 1.
	BaseIncrement = 0.01

	MinSpeed     = -2.0
	MaxSpeed     = 2.0
	DefaultSpeed = 0.0025

	// J2000 is the Julian day used as simulated time zero for calendar display.
	J2000 = 2451545.0

	daysPerYear = 365.25
)

// Clock is a value type; Advance and WithSpeed return updated copies.
type Clock struct {
	Time  float64 // simulated years since start
	Speed float64 // multiplier of BaseIncrement per frame
}

// New returns a clock at time zero with the given speed, clamped to range.
func New(speed float64) Clock {
	return Clock{Speed: ClampSpeed(speed)}
}

// Advance moves the clock forward by one frame.
func (c Clock) Advance() Clock {
	c.Time += BaseIncrement * c.Speed
	return c
}

// WithSpeed returns c with its speed replaced by the clamped value.
func (c Clock) WithSpeed(speed float64) Clock {
	c.Speed = ClampSpeed(speed)
	return c
}

// Paused reports whether the clock is stopped.
func (c Clock) Paused() bool {
	return c.Speed == 0
}

// Date maps simulated time onto a calendar date counted from J2000.
// Only meaningful for display.
func (c Clock) Date() time.Time {
	return julian.JDToTime(J2000 + c.Time*daysPerYear)
}

// ClampSpeed limits speed to [MinSpeed, MaxSpeed]. NaN becomes 0.
func ClampSpeed(speed float64) float64 {
	if math.IsNaN(speed) {
		return 0
	}
	return math.Max(MinSpeed, math.Min(MaxSpeed, speed))
}
