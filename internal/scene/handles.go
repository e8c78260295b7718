package scene

import (
	"github.com/lucasb-eyer/go-colorful"
	"gonum.org/v1/gonum/spatial/r3"
)

// Handle is a scene object whose visibility can be toggled.
type Handle interface {
	SetVisible(bool)
	Visible() bool
}

// OrbitPath is a closed polyline tracing one body's orbit.
type OrbitPath struct {
	Body    string
	Points  []r3.Vec
	Color   colorful.Color
	visible bool
}

func (p *OrbitPath) SetVisible(v bool) { p.visible = v }
func (p *OrbitPath) Visible() bool     { return p.visible }

// Label is a text marker that follows a body.
type Label struct {
	Text     string
	Position r3.Vec
	visible  bool
}

func (l *Label) SetVisible(v bool) { l.visible = v }
func (l *Label) Visible() bool     { return l.visible }

// Collection is a named group of handles toggled together. New items take
// the collection's current visibility.
type Collection[T Handle] struct {
	name    string
	items   []T
	visible bool
}

// NewCollection creates an empty collection with initial visibility.
func NewCollection[T Handle](name string, visible bool) *Collection[T] {
	return &Collection[T]{name: name, visible: visible}
}

// Name returns the collection name.
func (c *Collection[T]) Name() string { return c.name }

// Add appends a handle and applies the collection's visibility to it.
func (c *Collection[T]) Add(h T) {
	h.SetVisible(c.visible)
	c.items = append(c.items, h)
}

// Items returns the handles in insertion order.
func (c *Collection[T]) Items() []T { return c.items }

// Len returns the number of handles.
func (c *Collection[T]) Len() int { return len(c.items) }

// Visible reports the collection's visibility.
func (c *Collection[T]) Visible() bool { return c.visible }

// SetVisible sets every handle's visibility. It is a no-op when nothing changes.
func (c *Collection[T]) SetVisible(v bool) {
	if v == c.visible {
		return
	}
	c.visible = v
	for _, h := range c.items {
		h.SetVisible(v)
	}
}

// Toggle flips the collection's visibility and returns the new state.
func (c *Collection[T]) Toggle() bool {
	c.SetVisible(!c.visible)
	return c.visible
}
