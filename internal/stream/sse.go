// Package stream implements Server-Sent Events (SSE) streaming of simulation
// frames. Clients connect via GET /api/v1/stream/frames and receive the
// engine's latest frame at the requested rate, optionally with trails drawn
// from the frame history.
//
// SSE message format:
//
//	data: {"type":"frame","seq":42,"t":0.42,"date":"2000-06-03","bodies":[...]}\n\n
//
// First message is always metadata:
//
//	data: {"type":"metadata","bodies":[...],"base_increment":0.01,"method":"mean_anomaly"}\n\n
//
// Keep-alive comments (:\n\n) are sent every KeepaliveInterval to prevent timeout.
// Reconnecting clients receive a fresh metadata message on each connection.
package stream

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/Strangeisit/hoticeteaoreryproject/internal/bodies"
	"github.com/Strangeisit/hoticeteaoreryproject/internal/clock"
	"github.com/Strangeisit/hoticeteaoreryproject/internal/httputil"
	"github.com/Strangeisit/hoticeteaoreryproject/internal/metrics"
	"github.com/Strangeisit/hoticeteaoreryproject/internal/scene"
	"github.com/Strangeisit/hoticeteaoreryproject/internal/sim"
)

// Stream query bounds.
const (
	DefaultFPS = 30
	MaxFPS     = 60
	MaxTrail   = 120
)

// Config holds streaming configuration loaded from environment variables.
type Config struct {
	MaxConcurrentPerIP int           // Max concurrent streams per IP (default: 10).
	MaxTotal           int           // Max concurrent streams overall (default: 1000).
	BandwidthLimit     int           // Bytes per second per stream, 0 for unlimited (default: 1048576).
	KeepaliveInterval  time.Duration // Keep-alive ping interval (default: 30s).
	TrustProxy         bool          // Use X-Forwarded-For / X-Real-IP for the client IP.
}

// Source supplies frames and the static data sent in the metadata message.
type Source interface {
	Latest() *sim.Frame
	Registry() *bodies.Registry
	Config() sim.Config
}

// Trails supplies recent frames, oldest first.
type Trails interface {
	Recent(count int) []*sim.Frame
}

// Handler manages SSE streaming connections.
type Handler struct {
	src     Source
	trails  Trails
	config  Config
	limiter *streamLimiter
	logger  *slog.Logger
}

// NewHandler creates a new streaming handler. trails may be nil, in which
// case trail requests yield no trail points.
// Zero or negative limits and intervals take their defaults.
func NewHandler(src Source, trails Trails, config Config, logger *slog.Logger) *Handler {
	if config.MaxConcurrentPerIP < 1 {
		config.MaxConcurrentPerIP = 10
	}
	if config.MaxTotal < 1 {
		config.MaxTotal = 1000
	}
	if config.KeepaliveInterval <= 0 {
		config.KeepaliveInterval = 30 * time.Second
	}
	return &Handler{
		src:     src,
		trails:  trails,
		config:  config,
		limiter: newStreamLimiter(config.MaxConcurrentPerIP, config.MaxTotal),
		logger:  logger.With("component", "stream"),
	}
}

// Active returns the number of open streams.
func (h *Handler) Active() int {
	return h.limiter.active()
}

// HandleFrames serves the SSE frame stream.
// GET /api/v1/stream/frames?fps=30&trail=0
func (h *Handler) HandleFrames(w http.ResponseWriter, r *http.Request) {
	fps, ok := intParam(w, r, "fps", DefaultFPS, 1, MaxFPS)
	if !ok {
		return
	}
	trail, ok := intParam(w, r, "trail", 0, 0, MaxTrail)
	if !ok {
		return
	}

	// Rate limiting: enforce concurrent stream limit per IP.
	ip := httputil.ClientIP(r, h.config.TrustProxy)
	key := httputil.LimitKey(ip)
	if !h.limiter.acquire(key) {
		metrics.IncStreamErrors("rate_limit")
		h.logger.Warn("stream rate limit exceeded",
			"remote_ip", ip,
			"current_count", h.limiter.count(key),
		)
		w.Header().Set("Retry-After", "30")
		writeError(w, http.StatusTooManyRequests, "too many concurrent streams")
		return
	}

	metrics.IncStreamConnections("connect")
	metrics.IncStreamsActive()

	startTime := time.Now()
	h.logger.Info("stream connected",
		"remote_ip", ip,
		"user_agent", r.Header.Get("User-Agent"),
		"fps", fps,
		"trail", trail,
	)

	c := &client{
		w:      w,
		rc:     http.NewResponseController(w),
		ip:     ip,
		logger: h.logger,
	}
	if h.config.BandwidthLimit > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(h.config.BandwidthLimit), h.config.BandwidthLimit)
	}

	defer func() {
		h.limiter.release(key)
		metrics.IncStreamConnections("disconnect")
		metrics.DecStreamsActive()
		h.logger.Info("stream disconnected",
			"remote_ip", ip,
			"duration_seconds", int(time.Since(startTime).Seconds()),
			"messages", c.messagesSent,
			"bytes", c.bytesSent,
		)
	}()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering.
	w.WriteHeader(http.StatusOK)
	if err := c.rc.Flush(); err != nil {
		metrics.IncStreamErrors("flush_unsupported")
		h.logger.Error("streaming not supported by response writer", "error", err)
		return
	}

	// Clear the server's default WriteTimeout for this connection.
	if err := c.rc.SetWriteDeadline(time.Time{}); err != nil {
		h.logger.Debug("could not clear write deadline", "error", err)
	}

	// Jittered retry interval (3-7s) spreads reconnects after a restart.
	fmt.Fprintf(w, "retry: %d\n\n", 3000+rand.Intn(4000))
	if err := c.rc.Flush(); err != nil {
		return
	}

	ctx := r.Context()
	if err := c.sendJSON(ctx, h.metadata()); err != nil {
		metrics.IncStreamErrors("send_error")
		h.logger.Warn("stream send error (metadata)", "remote_ip", ip, "error", err)
		return
	}

	ticker := time.NewTicker(time.Second / time.Duration(fps))
	defer ticker.Stop()

	keepaliveTicker := time.NewTicker(h.config.KeepaliveInterval)
	defer keepaliveTicker.Stop()

	var lastSeq uint64
	var sent bool
	for {
		select {
		case <-ctx.Done():
			return

		case <-ticker.C:
			f := h.src.Latest()
			if f == nil || (sent && f.Seq == lastSeq) {
				continue
			}

			var trailFrames []*sim.Frame
			if trail > 0 && h.trails != nil {
				trailFrames = h.trails.Recent(trail)
			}

			data, err := json.Marshal(buildFrameMessage(f, trailFrames))
			if err != nil {
				metrics.IncStreamErrors("marshal_error")
				h.logger.Warn("stream marshal error", "remote_ip", ip, "error", err)
				continue
			}
			if err := c.sendRaw(ctx, data); err != nil {
				metrics.IncStreamErrors("send_error")
				h.logger.Warn("stream send error", "remote_ip", ip, "error", err)
				return
			}
			lastSeq, sent = f.Seq, true

			// Reset keepalive since we just sent data.
			keepaliveTicker.Reset(h.config.KeepaliveInterval)

		case <-keepaliveTicker.C:
			if err := c.sendKeepalive(); err != nil {
				metrics.IncStreamErrors("send_error")
				h.logger.Warn("stream keepalive error", "remote_ip", ip, "error", err)
				return
			}
		}
	}
}

func (h *Handler) metadata() metadataMessage {
	all := h.src.Registry().All()
	list := make([]bodyMeta, len(all))
	for i, b := range all {
		list[i] = bodyMeta{
			Name:  b.Name,
			Kind:  string(b.Kind),
			Size:  b.Size,
			Color: b.Color,
		}
	}
	cfg := h.src.Config()
	return metadataMessage{
		Type:            "metadata",
		Bodies:          list,
		BaseIncrement:   clock.BaseIncrement,
		FrameIntervalMs: cfg.FrameInterval.Milliseconds(),
		Method:          cfg.Step.Method.String(),
		InitialPhase:    cfg.Step.InitialPhase,
	}
}

// buildFrameMessage formats a frame into the SSE payload. If trailFrames is
// non-empty, each body includes its past positions (oldest first).
func buildFrameMessage(f *sim.Frame, trailFrames []*sim.Frame) frameMessage {
	var trailIndex map[string][][3]float64
	if len(trailFrames) > 0 {
		trailIndex = make(map[string][][3]float64, len(f.Bodies))
		for _, tf := range trailFrames {
			for _, b := range tf.Bodies {
				trailIndex[b.Name] = append(trailIndex[b.Name], scene.Array(b.Position))
			}
		}
	}

	list := make([]bodyPayload, len(f.Bodies))
	for i, b := range f.Bodies {
		list[i] = bodyPayload{
			Name: b.Name,
			P:    scene.Array(b.Position),
		}
		if tr, ok := trailIndex[b.Name]; ok {
			list[i].Tr = tr
		}
	}
	return frameMessage{
		Type:          "frame",
		Seq:           f.Seq,
		T:             f.Time,
		Date:          f.Date.UTC().Format(time.DateOnly),
		Speed:         f.Speed,
		OrbitsVisible: f.OrbitsVisible,
		LabelsVisible: f.LabelsVisible,
		Highlight:     f.Highlight,
		Selected:      f.Selected,
		StarRotation:  f.StarRotation,
		Bodies:        list,
	}
}

func intParam(w http.ResponseWriter, r *http.Request, name string, def, lo, hi int) (int, bool) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, true
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < lo || n > hi {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid %s parameter, must be %d-%d", name, lo, hi))
		return 0, false
	}
	return n, true
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// SSE message payload types.

type metadataMessage struct {
	Type            string     `json:"type"`
	Bodies          []bodyMeta `json:"bodies"`
	BaseIncrement   float64    `json:"base_increment"`
	FrameIntervalMs int64      `json:"frame_interval_ms"`
	Method          string     `json:"method"`
	InitialPhase    bool       `json:"initial_phase"`
}

type bodyMeta struct {
	Name  string  `json:"name"`
	Kind  string  `json:"kind"`
	Size  float64 `json:"size"`
	Color string  `json:"color"`
}

type frameMessage struct {
	Type          string        `json:"type"`
	Seq           uint64        `json:"seq"`
	T             float64       `json:"t"`
	Date          string        `json:"date"`
	Speed         float64       `json:"speed"`
	OrbitsVisible bool          `json:"orbits"`
	LabelsVisible bool          `json:"labels"`
	Highlight     string        `json:"highlight,omitempty"`
	Selected      string        `json:"selected,omitempty"`
	StarRotation  float64       `json:"stars"`
	Bodies        []bodyPayload `json:"bodies"`
}

type bodyPayload struct {
	Name string       `json:"name"`
	P    [3]float64   `json:"p"`
	Tr   [][3]float64 `json:"tr,omitempty"`
}
