package bodies

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Strangeisit/hoticeteaoreryproject/internal/orbit"
)

type catalog struct {
	Planets   []catalogEntry `yaml:"planets"`
	Hazardous []catalogEntry `yaml:"hazardous"`
}

type catalogEntry struct {
	Name   string  `yaml:"name"`
	A      float64 `yaml:"a"`
	E      float64 `yaml:"e"`
	I      Angle   `yaml:"i"`
	MA     Angle   `yaml:"ma"`
	W      Angle   `yaml:"w"`
	Om     Angle   `yaml:"om"`
	Period float64 `yaml:"period"`
	Size   float64 `yaml:"size"`
	Color  string  `yaml:"color"`
}

func (e catalogEntry) body(kind Kind, size float64, color string) Body {
	if e.Size > 0 {
		size = e.Size
	}
	if e.Color != "" {
		color = e.Color
	}
	return Body{
		Name: e.Name,
		Kind: kind,
		Elements: orbit.Elements{
			A:  e.A,
			E:  e.E,
			I:  float64(e.I),
			Om: float64(e.Om),
			W:  float64(e.W),
			M0: float64(e.MA),
		},
		Period: e.Period,
		Size:   size,
		Color:  color,
	}
}

// Angle is an angle in radians that decodes from YAML scalars such as
// "7.0deg", "0.509rad" or a bare number of degrees.
type Angle float64

var angleRe = regexp.MustCompile(`^([-+]?[0-9]*\.?[0-9]+(?:[eE][-+]?[0-9]+)?)\s*(deg|rad)?$`)

// ParseAngle parses an angle literal into radians.
func ParseAngle(s string) (Angle, error) {
	m := angleRe.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return 0, fmt.Errorf("invalid angle %q", s)
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, fmt.Errorf("invalid angle %q: %w", s, err)
	}
	if m[2] == "rad" {
		return Angle(v), nil
	}
	return Angle(orbit.Deg(v)), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (a *Angle) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: angle must be a scalar", n.Line)
	}
	v, err := ParseAngle(n.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", n.Line, err)
	}
	*a = v
	return nil
}
