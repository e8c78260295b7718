package clock

import (
	"math"
	"testing"
	"time"
)

func TestAdvance(t *testing.T) {
	c := New(DefaultSpeed)
	for i := 0; i < 1000; i++ {
		c = c.Advance()
	}
	want := 1000 * BaseIncrement * DefaultSpeed
	if math.Abs(c.Time-want) > 1e-12 {
		t.Errorf("time after 1000 frames = %v, want %v", c.Time, want)
	}
}

func TestAdvance_Reverse(t *testing.T) {
	c := New(1)
	for i := 0; i < 10; i++ {
		c = c.Advance()
	}
	c = c.WithSpeed(-1)
	for i := 0; i < 10; i++ {
		c = c.Advance()
	}
	if math.Abs(c.Time) > 1e-12 {
		t.Errorf("time after forward and reverse = %v, want 0", c.Time)
	}

	c = c.Advance()
	if c.Time >= 0 {
		t.Errorf("time = %v, want negative", c.Time)
	}
}

func TestAdvance_Paused(t *testing.T) {
	c := Clock{Time: 3.5}
	if !c.Paused() {
		t.Fatal("zero speed should be paused")
	}
	if got := c.Advance().Time; got != 3.5 {
		t.Errorf("paused clock moved to %v", got)
	}
}

func TestAdvance_DoesNotMutateReceiver(t *testing.T) {
	c := New(1)
	_ = c.Advance()
	if c.Time != 0 {
		t.Errorf("receiver mutated: %v", c.Time)
	}
}

func TestClampSpeed(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{0, 0},
		{DefaultSpeed, DefaultSpeed},
		{-1.5, -1.5},
		{2, 2},
		{5, MaxSpeed},
		{-7, MinSpeed},
		{math.Inf(1), MaxSpeed},
		{math.NaN(), 0},
	}
	for _, tt := range tests {
		if got := ClampSpeed(tt.in); got != tt.want {
			t.Errorf("ClampSpeed(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestDate(t *testing.T) {
	c := Clock{}
	want := time.Date(2000, 1, 1, 12, 0, 0, 0, time.UTC)
	if d := c.Date().Sub(want); d < -time.Second || d > time.Second {
		t.Errorf("Date() at t=0 = %v, want %v", c.Date(), want)
	}

	c.Time = 1
	want = want.Add(time.Duration(365.25 * 24 * float64(time.Hour)))
	if d := c.Date().Sub(want); d < -time.Second || d > time.Second {
		t.Errorf("Date() at t=1 = %v, want %v", c.Date(), want)
	}
}
