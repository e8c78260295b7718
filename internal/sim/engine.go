package sim

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Strangeisit/hoticeteaoreryproject/internal/bodies"
	"github.com/Strangeisit/hoticeteaoreryproject/internal/metrics"
	"github.com/Strangeisit/hoticeteaoreryproject/internal/scene"
)

// ErrNotRunning is returned by requests that need the engine loop when it
// has stopped.
var ErrNotRunning = errors.New("simulation engine not running")

// Config holds engine configuration loaded from environment variables.
type Config struct {
	FrameInterval    time.Duration // Time between frames (default: 16ms)
	InboxSize        int           // Buffered control messages (default: 64)
	SubscriberBuffer int           // Frames buffered per subscriber (default: 4)
	Step             StepConfig
}

// DefaultConfig returns the standard engine configuration.
func DefaultConfig() Config {
	return Config{
		FrameInterval:    16 * time.Millisecond,
		InboxSize:        64,
		SubscriberBuffer: 4,
		Step:             StepConfig{InitialPhase: true},
	}
}

// PickResult reports which body, if any, a pick selected.
type PickResult struct {
	Hit      bool
	Name     string
	Distance float64
}

type pickRequest struct {
	query func(*scene.Scene) (*scene.Mesh, float64, bool)
	reply chan PickResult
}

// Engine owns the simulation state and the scene's mutable transforms.
// Only the Run goroutine touches them; every other method is safe for
// concurrent use.
type Engine struct {
	reg    *bodies.Registry
	scene  *scene.Scene
	config Config
	logger *slog.Logger
	now    func() time.Time

	inbox chan Message
	picks chan pickRequest

	st      State // owned by Run
	state   atomic.Pointer[State]
	latest  atomic.Pointer[Frame]
	running atomic.Bool

	mu     sync.Mutex
	subs   map[int]chan *Frame
	nextID int
}

// NewEngine creates an engine starting from initial. Call Run to start it.
func NewEngine(reg *bodies.Registry, sc *scene.Scene, initial State, config Config, logger *slog.Logger) *Engine {
	def := DefaultConfig()
	if config.FrameInterval <= 0 {
		config.FrameInterval = def.FrameInterval
	}
	if config.InboxSize < 1 {
		config.InboxSize = def.InboxSize
	}
	if config.SubscriberBuffer < 1 {
		config.SubscriberBuffer = def.SubscriberBuffer
	}

	e := &Engine{
		reg:    reg,
		scene:  sc,
		config: config,
		logger: logger.With("component", "sim"),
		now:    time.Now,
		inbox:  make(chan Message, config.InboxSize),
		picks:  make(chan pickRequest),
		st:     initial,
		subs:   make(map[int]chan *Frame),
	}
	e.storeState()
	metrics.SetBodies(reg.Len())

	logger.Info("simulation initialized",
		"bodies", reg.Len(),
		"frame_interval_ms", config.FrameInterval.Milliseconds(),
		"method", config.Step.Method.String(),
		"initial_phase", config.Step.InitialPhase,
		"speed", initial.Clock.Speed,
	)
	return e
}

// Run drives the render loop until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) {
	e.running.Store(true)
	defer e.running.Store(false)

	e.sync(Render(e.st, e.reg, e.config.Step, e.now()))

	ticker := time.NewTicker(e.config.FrameInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("simulation stopped", "frame", e.st.Frame, "t", e.st.Clock.Time)
			return

		case msg := <-e.inbox:
			e.apply(msg)

		case req := <-e.picks:
			e.pick(req)

		case <-ticker.C:
			e.tick()
		}
	}
}

// Tick steps one frame synchronously. It must not be called while Run is
// active; it exists for callers that drive frames themselves.
func (e *Engine) Tick() *Frame {
	e.drain()
	return e.tick()
}

func (e *Engine) tick() *Frame {
	start := time.Now()
	var f *Frame
	e.st, f = Step(e.st, e.reg, e.config.Step, e.now())
	e.sync(f)
	metrics.RecordFrame(time.Since(start), f.Time, f.Speed)
	return f
}

// drain applies queued messages without blocking.
func (e *Engine) drain() {
	for {
		select {
		case msg := <-e.inbox:
			e.apply(msg)
		default:
			return
		}
	}
}

// sync pushes a frame into the scene and out to readers.
func (e *Engine) sync(f *Frame) {
	e.scene.Apply(f.SceneUpdate())
	e.storeState()
	e.latest.Store(f)
	e.publish(f)
}

func (e *Engine) apply(msg Message) {
	e.st = msg.Apply(e.st)
	e.scene.SetOrbitsVisible(e.st.OrbitsVisible)
	e.scene.SetLabelsVisible(e.st.LabelsVisible)
	e.storeState()
	e.logger.Debug("message applied",
		"type", msg.Kind(),
		"speed", e.st.Clock.Speed,
		"orbits_visible", e.st.OrbitsVisible,
		"labels_visible", e.st.LabelsVisible,
	)
}

func (e *Engine) pick(req pickRequest) {
	m, dist, ok := req.query(e.scene)
	if !ok {
		metrics.IncPick("miss")
		req.reply <- PickResult{}
		return
	}
	metrics.IncPick("hit")
	e.apply(Select{Name: m.Name, At: e.now()})
	e.logger.Info("body picked", "name", m.Name, "distance", dist)
	req.reply <- PickResult{Hit: true, Name: m.Name, Distance: dist}
}

func (e *Engine) storeState() {
	st := e.st
	e.state.Store(&st)
}

// Send queues a message for the next frame without blocking. It returns
// false if the inbox is full and the message was dropped.
func (e *Engine) Send(msg Message) bool {
	select {
	case e.inbox <- msg:
		metrics.IncControl(msg.Kind(), "accepted")
		return true
	default:
		metrics.IncControl(msg.Kind(), "dropped")
		e.logger.Warn("control inbox full, message dropped", "type", msg.Kind())
		return false
	}
}

// Pick casts ray into the scene and selects the nearest body hit.
func (e *Engine) Pick(ctx context.Context, ray scene.Ray) (PickResult, error) {
	return e.query(ctx, func(sc *scene.Scene) (*scene.Mesh, float64, bool) {
		hit, ok := sc.Pick(ray)
		return hit.Mesh, hit.Distance, ok
	})
}

// PickNearest selects the body projected closest to device coordinates
// (x, y) within maxDist.
func (e *Engine) PickNearest(ctx context.Context, cam scene.Camera, x, y, maxDist float64) (PickResult, error) {
	return e.query(ctx, func(sc *scene.Scene) (*scene.Mesh, float64, bool) {
		m, ok := sc.Nearest(cam, x, y, maxDist)
		return m, 0, ok
	})
}

func (e *Engine) query(ctx context.Context, q func(*scene.Scene) (*scene.Mesh, float64, bool)) (PickResult, error) {
	if !e.running.Load() {
		return PickResult{}, ErrNotRunning
	}
	req := pickRequest{query: q, reply: make(chan PickResult, 1)}
	select {
	case e.picks <- req:
	case <-ctx.Done():
		return PickResult{}, ctx.Err()
	}
	select {
	case res := <-req.reply:
		return res, nil
	case <-ctx.Done():
		return PickResult{}, ctx.Err()
	}
}

// Subscribe returns a channel receiving every new frame and a function to
// cancel the subscription. Frames are dropped for subscribers that fall
// behind.
func (e *Engine) Subscribe() (<-chan *Frame, func()) {
	ch := make(chan *Frame, e.config.SubscriberBuffer)

	e.mu.Lock()
	id := e.nextID
	e.nextID++
	e.subs[id] = ch
	metrics.SetSubscribers(len(e.subs))
	e.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			e.mu.Lock()
			delete(e.subs, id)
			metrics.SetSubscribers(len(e.subs))
			e.mu.Unlock()
			close(ch)
		})
	}
}

func (e *Engine) publish(f *Frame) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, ch := range e.subs {
		select {
		case ch <- f:
		default:
			metrics.IncFramesDropped()
		}
	}
}

// Latest returns the most recent frame, or nil before the first one.
func (e *Engine) Latest() *Frame {
	return e.latest.Load()
}

// State returns a copy of the current simulation state.
func (e *Engine) State() State {
	return *e.state.Load()
}

// Ready reports whether the loop is running and has produced a frame.
func (e *Engine) Ready() bool {
	return e.running.Load() && e.latest.Load() != nil
}

// Registry returns the bodies the engine simulates.
func (e *Engine) Registry() *bodies.Registry {
	return e.reg
}

// Scene returns the static scene description.
func (e *Engine) Scene(stars bool) scene.Description {
	return e.scene.Description(stars)
}

// Config returns the engine configuration.
func (e *Engine) Config() Config {
	return e.config
}
