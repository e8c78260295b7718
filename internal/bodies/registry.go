// Package bodies holds the static table of orbiting bodies shown by the orrery.
//
// The table is compiled into the binary as a YAML catalog and parsed once.
// Bodies are immutable after load and live for the lifetime of the process.
package bodies

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/Strangeisit/hoticeteaoreryproject/internal/orbit"
)

// Kind classifies a body for display.
type Kind string

const (
	KindPlanet    Kind = "planet"
	KindHazardous Kind = "pha" // potentially hazardous asteroid
)

// Default display attributes for bodies that do not set their own.
const (
	DefaultHazardousSize  = 0.006
	DefaultHazardousColor = "#cf5f57"
	DefaultPlanetSize     = 0.03
	DefaultPlanetColor    = "#ffffff"
)

// Body is one orbiting object: orbital elements plus display attributes.
type Body struct {
	Name     string
	Kind     Kind
	Elements orbit.Elements
	Period   float64 // orbital period in years
	Size     float64 // visual radius
	Color    string  // "#rrggbb"
}

// MeanAnomaly returns the body's mean anomaly after t years.
func (b Body) MeanAnomaly(t float64, withPhase bool) float64 {
	return b.Elements.MeanAnomaly(t, b.Period, withPhase)
}

// Registry is an ordered, read-only set of bodies. Safe for concurrent reads.
type Registry struct {
	bodies []Body
	byName map[string]int
}

// New builds a registry from bodies, validating each one.
func New(list []Body) (*Registry, error) {
	r := &Registry{
		bodies: make([]Body, 0, len(list)),
		byName: make(map[string]int, len(list)),
	}
	for _, b := range list {
		b.Name = strings.TrimSpace(b.Name)
		if b.Name == "" {
			return nil, errors.New("body with empty name")
		}
		if _, dup := r.byName[b.Name]; dup {
			return nil, fmt.Errorf("duplicate body %q", b.Name)
		}
		if err := b.Elements.Validate(); err != nil {
			return nil, fmt.Errorf("body %q: %w", b.Name, err)
		}
		if !(b.Period > 0) {
			return nil, fmt.Errorf("body %q: period must be positive, got %v", b.Name, b.Period)
		}
		r.byName[b.Name] = len(r.bodies)
		r.bodies = append(r.bodies, b)
	}
	return r, nil
}

// All returns the bodies in catalog order. The slice must not be modified.
func (r *Registry) All() []Body {
	return r.bodies
}

// Len returns the number of bodies.
func (r *Registry) Len() int {
	return len(r.bodies)
}

// Get looks up a body by name.
func (r *Registry) Get(name string) (Body, bool) {
	i, ok := r.byName[strings.TrimSpace(name)]
	if !ok {
		return Body{}, false
	}
	return r.bodies[i], true
}

// Index returns the catalog position of name, or -1.
func (r *Registry) Index(name string) int {
	if i, ok := r.byName[strings.TrimSpace(name)]; ok {
		return i
	}
	return -1
}

// OfKind returns the bodies of the given kind in catalog order.
func (r *Registry) OfKind(k Kind) []Body {
	var out []Body
	for _, b := range r.bodies {
		if b.Kind == k {
			out = append(out, b)
		}
	}
	return out
}

//go:embed catalog.yaml
var catalogYAML []byte

var loadDefault = sync.OnceValues(func() (*Registry, error) {
	return Load(bytes.NewReader(catalogYAML))
})

// Default returns the built-in catalog. It panics if the embedded catalog is
// invalid, which can only happen through a bad edit of catalog.yaml.
func Default() *Registry {
	r, err := loadDefault()
	if err != nil {
		panic(fmt.Sprintf("bodies: embedded catalog: %v", err))
	}
	return r
}

// Load parses a YAML catalog with "planets" and "hazardous" sections.
func Load(rd io.Reader) (*Registry, error) {
	var cat catalog
	dec := yaml.NewDecoder(rd)
	dec.KnownFields(true)
	if err := dec.Decode(&cat); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}

	list := make([]Body, 0, len(cat.Planets)+len(cat.Hazardous))
	for _, e := range cat.Planets {
		list = append(list, e.body(KindPlanet, DefaultPlanetSize, DefaultPlanetColor))
	}
	for _, e := range cat.Hazardous {
		list = append(list, e.body(KindHazardous, DefaultHazardousSize, DefaultHazardousColor))
	}
	return New(list)
}
