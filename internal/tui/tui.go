// Package tui draws the orrery in a terminal and turns key presses and
// mouse clicks into simulation messages.
package tui

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/lucasb-eyer/go-colorful"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/Strangeisit/hoticeteaoreryproject/internal/bodies"
	"github.com/Strangeisit/hoticeteaoreryproject/internal/clock"
	"github.com/Strangeisit/hoticeteaoreryproject/internal/scene"
	"github.com/Strangeisit/hoticeteaoreryproject/internal/sim"
)

const (
	redrawInterval = 16 * time.Millisecond

	SpeedStep  = 0.0025 // per '[' or ']'
	OrbitStep  = 0.05   // camera rotation per arrow key (rad)
	ZoomFactor = 1.15   // per '-'; '+' uses the inverse
	PickRadius = 0.08   // NDC distance a click may miss a body by
	MaxStars   = 800    // stars drawn; the terminal cannot resolve more

	starFadeDepth = 100.0
)

// Engine is the part of the simulation engine the terminal UI drives.
type Engine interface {
	Latest() *sim.Frame
	State() sim.State
	Send(msg sim.Message) bool
	PickNearest(ctx context.Context, cam scene.Camera, x, y, maxDist float64) (sim.PickResult, error)
	Scene(stars bool) scene.Description
}

// App is the terminal front end. All methods must be called from the
// goroutine running Run.
type App struct {
	screen tcell.Screen
	engine Engine
	logger *slog.Logger

	desc   scene.Description
	colors []colorful.Color // body colours, registry order
	stars  []r3.Vec
	cam    scene.Camera

	width, height int
	resumeSpeed   float64 // speed restored when unpausing
	status        string

	// Last speed sent and the engine speed seen when sending it. While the
	// engine still reports observed, the message is queued and keys step
	// from speed.
	speed    float64
	observed float64
	pending  bool
}

// New creates the UI on an initialised screen.
func New(screen tcell.Screen, engine Engine, logger *slog.Logger) *App {
	a := &App{
		screen:      screen,
		engine:      engine,
		logger:      logger.With("component", "tui"),
		desc:        engine.Scene(true),
		resumeSpeed: clock.DefaultSpeed,
	}

	for _, b := range a.desc.Bodies {
		c, err := colorful.Hex(b.Color)
		if err != nil {
			c = colorful.Color{R: 1, G: 1, B: 1}
		}
		a.colors = append(a.colors, c)
	}

	pts := a.desc.Stars.Points
	if len(pts) > MaxStars {
		pts = pts[:MaxStars]
	}
	for _, p := range pts {
		a.stars = append(a.stars, r3.Vec{X: float64(p[0]), Y: float64(p[1]), Z: float64(p[2])})
	}

	a.width, a.height = screen.Size()
	a.cam = scene.DefaultCamera(a.aspect())
	a.cam.Position = scene.Vec(a.desc.Camera.Position)
	a.cam.Target = scene.Vec(a.desc.Camera.Target)
	return a
}

// Run polls events and redraws until ctx is done or the user quits.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	events := make(chan tcell.Event, 100)
	go func() {
		for {
			ev := a.screen.PollEvent()
			if ev == nil {
				return
			}
			select {
			case events <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()

	ticker := time.NewTicker(redrawInterval)
	defer ticker.Stop()

	a.Draw()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-events:
			if !a.HandleEvent(ctx, ev) {
				return nil
			}
		case <-ticker.C:
			a.Draw()
		}
	}
}

// Camera returns the current view.
func (a *App) Camera() scene.Camera {
	return a.cam
}

// HandleEvent applies one terminal event. It returns false when the user
// asked to quit.
func (a *App) HandleEvent(ctx context.Context, ev tcell.Event) bool {
	switch ev := ev.(type) {
	case *tcell.EventKey:
		return a.handleKey(ev)

	case *tcell.EventMouse:
		if ev.Buttons()&tcell.Button1 != 0 {
			x, y := ev.Position()
			a.pick(ctx, x, y)
		}

	case *tcell.EventResize:
		a.width, a.height = a.screen.Size()
		a.cam.Aspect = a.aspect()
		a.screen.Sync()
	}
	return true
}

func (a *App) handleKey(ev *tcell.EventKey) bool {
	switch ev.Key() {
	case tcell.KeyEscape, tcell.KeyCtrlC:
		return false
	case tcell.KeyLeft:
		a.cam = a.cam.Orbit(-OrbitStep, 0)
	case tcell.KeyRight:
		a.cam = a.cam.Orbit(OrbitStep, 0)
	case tcell.KeyUp:
		a.cam = a.cam.Orbit(0, OrbitStep)
	case tcell.KeyDown:
		a.cam = a.cam.Orbit(0, -OrbitStep)
	case tcell.KeyRune:
		switch ev.Rune() {
		case 'q':
			return false
		case '[':
			a.setSpeed(a.currentSpeed() - SpeedStep)
		case ']':
			a.setSpeed(a.currentSpeed() + SpeedStep)
		case 'r':
			a.setSpeed(-a.currentSpeed())
		case ' ':
			if speed := a.currentSpeed(); speed != 0 {
				a.resumeSpeed = speed
				a.setSpeed(0)
			} else {
				a.setSpeed(a.resumeSpeed)
			}
		case 'o':
			a.send(sim.ToggleOrbits{})
		case 'l':
			a.send(sim.ToggleLabels{})
		case '+', '=':
			a.cam = a.cam.Zoom(1 / ZoomFactor)
		case '-', '_':
			a.cam = a.cam.Zoom(ZoomFactor)
		}
	}
	return true
}

// currentSpeed returns the speed keys should step from: the last speed sent
// while it is still queued, otherwise the engine's.
func (a *App) currentSpeed() float64 {
	cur := a.engine.State().Clock.Speed
	if a.pending && cur == a.observed && cur != a.speed {
		return a.speed
	}
	a.pending = false
	a.observed = cur
	return cur
}

func (a *App) setSpeed(v float64) {
	v = clock.ClampSpeed(v)
	if !a.engine.Send(sim.SetSpeed{Value: v}) {
		a.status = "busy, input dropped"
		return
	}
	a.speed, a.pending = v, true
}

func (a *App) send(msg sim.Message) {
	if !a.engine.Send(msg) {
		a.status = "busy, input dropped"
	}
}

func (a *App) pick(ctx context.Context, x, y int) {
	nx, ny := a.cellToNDC(x, y)
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()

	res, err := a.engine.PickNearest(ctx, a.cam, nx, ny, PickRadius)
	switch {
	case err != nil:
		a.logger.Warn("pick failed", "error", err)
		a.status = "pick failed"
	case res.Hit:
		a.status = "picked " + res.Name
	default:
		a.status = ""
	}
}

// aspect is the view's width over height, treating a cell as twice as
// tall as it is wide.
func (a *App) aspect() float64 {
	if a.height == 0 {
		return 1
	}
	return float64(a.width) / float64(2*a.height)
}

// cellToNDC returns the device coordinates of a cell's centre.
func (a *App) cellToNDC(x, y int) (float64, float64) {
	nx := (float64(x)+0.5)/float64(a.width)*2 - 1
	ny := 1 - (float64(y)+0.5)/float64(a.height)*2
	return nx, ny
}

// project returns the cell showing world point p.
func (a *App) project(p r3.Vec) (x, y int, depth float64, ok bool) {
	ndc, ok := a.cam.Project(p)
	if !ok || math.Abs(ndc.X) > 1 || math.Abs(ndc.Y) > 1 {
		return 0, 0, 0, false
	}
	x = int(math.Floor((ndc.X + 1) / 2 * float64(a.width)))
	y = int(math.Floor((1 - ndc.Y) / 2 * float64(a.height)))
	if x >= a.width {
		x = a.width - 1
	}
	if y >= a.height {
		y = a.height - 1
	}
	return x, y, ndc.Z, true
}

// Draw renders the latest frame.
func (a *App) Draw() {
	a.screen.Clear()
	f := a.engine.Latest()
	if f == nil {
		a.drawText(0, 0, "waiting for first frame...", tcell.StyleDefault)
		a.screen.Show()
		return
	}

	a.drawStars(f.StarRotation)
	if f.OrbitsVisible {
		a.drawOrbits()
	}

	sun := a.desc.Sun
	if x, y, _, ok := a.project(scene.Vec(sun.P)); ok {
		a.screen.SetContent(x, y, '@', nil, styleFor(hexColor(sun.Color)).Bold(true))
	}

	highlight := hexColor(scene.HighlightColor)
	for i, b := range f.Bodies {
		x, y, _, ok := a.project(b.Position)
		if !ok {
			continue
		}
		col := a.colors[i]
		if b.Name == f.Highlight {
			col = highlight
		}
		glyph := 'o'
		if i < len(a.desc.Bodies) && a.desc.Bodies[i].Kind == string(bodies.KindHazardous) {
			glyph = '*'
		}
		a.screen.SetContent(x, y, glyph, nil, styleFor(col))
		if f.LabelsVisible {
			a.drawText(x+2, y, b.Name, styleFor(col.BlendLab(colorful.Color{R: 1, G: 1, B: 1}, 0.5)))
		}
	}

	a.drawStatus(f)
	a.screen.Show()
}

func (a *App) drawStars(rotation float64) {
	base := hexColor(a.desc.Stars.Color)
	black := colorful.Color{}
	for _, p := range a.stars {
		x, y, depth, ok := a.project(scene.RotateY(p, rotation))
		if !ok {
			continue
		}
		fade := math.Min(0.85, depth/starFadeDepth)
		a.screen.SetContent(x, y, '.', nil, styleFor(base.BlendLab(black, fade)))
	}
}

func (a *App) drawOrbits() {
	for _, o := range a.desc.Orbits {
		style := styleFor(hexColor(o.Color))
		for _, p := range o.Points {
			if x, y, _, ok := a.project(scene.Vec(p)); ok {
				a.screen.SetContent(x, y, '·', nil, style)
			}
		}
	}
}

func (a *App) drawStatus(f *sim.Frame) {
	state := "running"
	if f.Speed == 0 {
		state = "paused"
	}
	line := fmt.Sprintf(" %s  t=%.3fy  speed=%+.4f  %s", f.Date.UTC().Format(time.DateOnly), f.Time, f.Speed, state)
	if f.Selected != "" {
		line += "  selected=" + f.Selected
	}
	if a.status != "" {
		line += "  [" + a.status + "]"
	}
	bar := tcell.StyleDefault.Reverse(true)
	for x := 0; x < a.width; x++ {
		a.screen.SetContent(x, 0, ' ', nil, bar)
	}
	a.drawText(0, 0, line, bar)

	help := " [ ] speed  r reverse  space pause  o orbits  l labels  arrows rotate  +/- zoom  click pick  q quit"
	a.drawText(0, a.height-1, help, tcell.StyleDefault.Dim(true))
}

func (a *App) drawText(x, y int, s string, style tcell.Style) {
	for _, r := range s {
		if x >= a.width {
			return
		}
		if x >= 0 {
			a.screen.SetContent(x, y, r, nil, style)
		}
		x++
	}
}

func styleFor(c colorful.Color) tcell.Style {
	r, g, b := c.Clamped().RGB255()
	return tcell.StyleDefault.
		Background(tcell.ColorBlack).
		Foreground(tcell.NewRGBColor(int32(r), int32(g), int32(b)))
}

func hexColor(s string) colorful.Color {
	c, err := colorful.Hex(s)
	if err != nil {
		return colorful.Color{R: 1, G: 1, B: 1}
	}
	return c
}
