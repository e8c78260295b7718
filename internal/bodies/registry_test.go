package bodies

import (
	"math"
	"strings"
	"testing"

	"github.com/Strangeisit/hoticeteaoreryproject/internal/orbit"
)

func TestDefaultCatalog(t *testing.T) {
	r := Default()

	if r.Len() != 8 {
		t.Fatalf("Len() = %d, want 8", r.Len())
	}
	if got := len(r.OfKind(KindPlanet)); got != 5 {
		t.Errorf("planets = %d, want 5", got)
	}
	if got := len(r.OfKind(KindHazardous)); got != 3 {
		t.Errorf("hazardous = %d, want 3", got)
	}

	wantOrder := []string{"Mercury", "Venus", "Earth", "Mars", "Jupiter",
		"1566 Icarus (1949 MA)", "1620 Geographos (1951 RA)", "1862 Apollo (1932 HA)"}
	for i, b := range r.All() {
		if b.Name != wantOrder[i] {
			t.Errorf("body %d = %q, want %q", i, b.Name, wantOrder[i])
		}
	}
}

func TestDefaultCatalog_Units(t *testing.T) {
	r := Default()

	mercury, ok := r.Get("Mercury")
	if !ok {
		t.Fatal("Mercury missing")
	}
	// Planet inclination is given in degrees, the other angles in radians.
	if math.Abs(mercury.Elements.I-orbit.Deg(7)) > 1e-12 {
		t.Errorf("Mercury i = %v rad, want %v", mercury.Elements.I, orbit.Deg(7))
	}
	if math.Abs(mercury.Elements.W-0.509) > 1e-12 {
		t.Errorf("Mercury w = %v rad, want 0.509", mercury.Elements.W)
	}
	if mercury.Size != 0.02 || mercury.Color != "#aaaaaa" {
		t.Errorf("Mercury display = (%v, %q)", mercury.Size, mercury.Color)
	}

	icarus, ok := r.Get("1566 Icarus (1949 MA)")
	if !ok {
		t.Fatal("Icarus missing")
	}
	if math.Abs(icarus.Elements.M0-orbit.Deg(160.86)) > 1e-12 {
		t.Errorf("Icarus ma = %v rad, want %v", icarus.Elements.M0, orbit.Deg(160.86))
	}
	if icarus.Size != DefaultHazardousSize || icarus.Color != DefaultHazardousColor {
		t.Errorf("Icarus display = (%v, %q), want defaults", icarus.Size, icarus.Color)
	}
	if icarus.Kind != KindHazardous {
		t.Errorf("Icarus kind = %q", icarus.Kind)
	}
}

func TestDefaultCatalog_Invariants(t *testing.T) {
	for _, b := range Default().All() {
		if b.Elements.E < 0 || b.Elements.E >= 1 {
			t.Errorf("%s: e = %v", b.Name, b.Elements.E)
		}
		if b.Elements.A <= 0 || b.Period <= 0 {
			t.Errorf("%s: a = %v period = %v", b.Name, b.Elements.A, b.Period)
		}
		if b.Name != strings.TrimSpace(b.Name) {
			t.Errorf("name %q not trimmed", b.Name)
		}
	}
}

func TestRegistry_Lookup(t *testing.T) {
	r := Default()
	if _, ok := r.Get("  Mars "); !ok {
		t.Error("Get should trim whitespace")
	}
	if _, ok := r.Get("Pluto"); ok {
		t.Error("Get(Pluto) should miss")
	}
	if r.Index("Earth") != 2 {
		t.Errorf("Index(Earth) = %d, want 2", r.Index("Earth"))
	}
	if r.Index("Pluto") != -1 {
		t.Errorf("Index(Pluto) = %d, want -1", r.Index("Pluto"))
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "open orbit",
			yaml: "planets:\n  - {name: X, a: 1, e: 1.2, period: 1}\n",
			want: "eccentricity",
		},
		{
			name: "zero period",
			yaml: "planets:\n  - {name: X, a: 1, e: 0.1, period: 0}\n",
			want: "period",
		},
		{
			name: "duplicate",
			yaml: "planets:\n  - {name: X, a: 1, period: 1}\nhazardous:\n  - {name: ' X ', a: 1, period: 1}\n",
			want: "duplicate",
		},
		{
			name: "bad angle",
			yaml: "planets:\n  - {name: X, a: 1, period: 1, i: 7grad}\n",
			want: "invalid angle",
		},
		{
			name: "unknown field",
			yaml: "planets:\n  - {name: X, a: 1, period: 1, mass: 3}\n",
			want: "mass",
		},
		{
			name: "empty name",
			yaml: "planets:\n  - {a: 1, period: 1}\n",
			want: "empty name",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(strings.NewReader(tt.yaml))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %q, want substring %q", err, tt.want)
			}
		})
	}
}

func TestParseAngle(t *testing.T) {
	tests := []struct {
		in      string
		want    float64
		wantErr bool
	}{
		{"90", math.Pi / 2, false},
		{"90deg", math.Pi / 2, false},
		{"1.5rad", 1.5, false},
		{"-0.25 rad", -0.25, false},
		{"1e1deg", orbit.Deg(10), false},
		{"abc", 0, true},
		{"10 turns", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseAngle(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if math.Abs(float64(got)-tt.want) > 1e-12 {
				t.Errorf("ParseAngle(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestBody_MeanAnomaly(t *testing.T) {
	earth, _ := Default().Get("Earth")
	if got := earth.MeanAnomaly(0, true); math.Abs(got-1.754) > 1e-12 {
		t.Errorf("MeanAnomaly(0, phase) = %v, want 1.754", got)
	}
	if got := earth.MeanAnomaly(0.5, false); math.Abs(got-math.Pi) > 1e-12 {
		t.Errorf("MeanAnomaly(0.5) = %v, want pi", got)
	}
}
