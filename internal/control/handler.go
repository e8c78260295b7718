package control

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/Strangeisit/hoticeteaoreryproject/internal/bodies"
	"github.com/Strangeisit/hoticeteaoreryproject/internal/httputil"
	"github.com/Strangeisit/hoticeteaoreryproject/internal/metrics"
	"github.com/Strangeisit/hoticeteaoreryproject/internal/scene"
	"github.com/Strangeisit/hoticeteaoreryproject/internal/sim"
)

// Engine receives decoded control messages.
type Engine interface {
	Send(msg sim.Message) bool
	Pick(ctx context.Context, ray scene.Ray) (sim.PickResult, error)
	Registry() *bodies.Registry
}

// Config holds control configuration loaded from environment variables.
type Config struct {
	Rate            float64       // Messages per second per IP (default: 20).
	Burst           int           // Burst size per IP (default: 40).
	TrustProxy      bool          // Use X-Forwarded-For / X-Real-IP for the client IP.
	MaxMessageBytes int64         // Largest accepted message (default: 4096).
	PingInterval    time.Duration // WebSocket ping interval (default: 30s).
	PickTimeout     time.Duration // Max wait for a pick answer (default: 2s).
	AllowedOrigins  []string      // Extra WebSocket origins; "*" allows any.
}

// DefaultConfig returns the standard control configuration.
func DefaultConfig() Config {
	return Config{
		Rate:            20,
		Burst:           40,
		MaxMessageBytes: 4096,
		PingInterval:    30 * time.Second,
		PickTimeout:     2 * time.Second,
	}
}

// Reply is the response to one control message.
type Reply struct {
	Type     string  `json:"type"` // accepted, ignored, picked or error
	Request  string  `json:"request,omitempty"`
	Hit      *bool   `json:"hit,omitempty"`
	Name     string  `json:"name,omitempty"`
	Distance float64 `json:"distance,omitempty"`
	Error    string  `json:"error,omitempty"`
}

// Handler serves POST /api/v1/control and the control WebSocket.
type Handler struct {
	engine   Engine
	config   Config
	limiter  *IPRateLimiter
	upgrader websocket.Upgrader
	logger   *slog.Logger
	now      func() time.Time
}

// NewHandler creates a control handler. Zero config fields take defaults.
func NewHandler(engine Engine, config Config, logger *slog.Logger) *Handler {
	def := DefaultConfig()
	if config.Rate <= 0 {
		config.Rate = def.Rate
	}
	if config.Burst < 1 {
		config.Burst = def.Burst
	}
	if config.MaxMessageBytes <= 0 {
		config.MaxMessageBytes = def.MaxMessageBytes
	}
	if config.PingInterval <= 0 {
		config.PingInterval = def.PingInterval
	}
	if config.PickTimeout <= 0 {
		config.PickTimeout = def.PickTimeout
	}

	h := &Handler{
		engine:  engine,
		config:  config,
		limiter: NewIPRateLimiter(rate.Limit(config.Rate), config.Burst, 10*time.Minute),
		logger:  logger.With("component", "control"),
		now:     time.Now,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

// RunSweeper drops idle rate limit buckets every interval until ctx is done.
func (h *Handler) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := h.limiter.Sweep(now); n > 0 {
				h.logger.Debug("rate limit buckets swept", "dropped", n, "remaining", h.limiter.Len())
			}
		}
	}
}

// HandlePost serves POST /api/v1/control. Fire-and-forget messages answer
// 202 Accepted; picks answer 200 with the result.
func (h *Handler) HandlePost(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.config.MaxMessageBytes)
	data, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeReply(w, http.StatusRequestEntityTooLarge, errorReply("", "message too large"))
			return
		}
		h.logger.Debug("control body read failed", "error", err)
		writeReply(w, http.StatusBadRequest, errorReply("", "failed to read message"))
		return
	}

	ip := httputil.ClientIP(r, h.config.TrustProxy)
	status, reply := h.process(r.Context(), ip, data)
	writeReply(w, status, reply)
}

// HandleWS serves GET /api/v1/control/ws. Each text frame carries one
// message; every message gets a reply frame.
func (h *Handler) HandleWS(w http.ResponseWriter, r *http.Request) {
	ip := httputil.ClientIP(r, h.config.TrustProxy)
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written an HTTP error.
		h.logger.Warn("websocket upgrade failed", "remote_ip", ip, "error", err)
		return
	}
	defer conn.Close()

	start := time.Now()
	h.logger.Info("control connected", "remote_ip", ip, "user_agent", r.Header.Get("User-Agent"))

	pongWait := 2 * h.config.PingInterval
	conn.SetReadLimit(h.config.MaxMessageBytes)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go h.ping(ctx, conn)

	var handled int
	defer func() {
		h.logger.Info("control disconnected",
			"remote_ip", ip,
			"messages", handled,
			"duration_seconds", int(time.Since(start).Seconds()),
		)
	}()

	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Warn("control read error", "remote_ip", ip, "error", err)
			}
			return
		}
		if mt != websocket.TextMessage {
			continue
		}
		conn.SetReadDeadline(time.Now().Add(pongWait))

		_, reply := h.process(ctx, ip, data)
		handled++
		conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := conn.WriteJSON(reply); err != nil {
			h.logger.Warn("control write error", "remote_ip", ip, "error", err)
			return
		}
	}
}

// ping keeps the connection alive. WriteControl may run concurrently with
// the reader's writes.
func (h *Handler) ping(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(h.config.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(10*time.Second)); err != nil {
				return
			}
		}
	}
}

// process rate limits, decodes and dispatches one message.
func (h *Handler) process(ctx context.Context, ip string, data []byte) (int, Reply) {
	if !h.limiter.Allow(httputil.LimitKey(ip)) {
		metrics.IncControl("any", "rate_limited")
		h.logger.Warn("control rate limit exceeded", "remote_ip", ip)
		return http.StatusTooManyRequests, errorReply("", "rate limit exceeded")
	}

	cmd, err := Decode(data, h.now(), h.logger)
	if err != nil {
		kind := cmd.Type
		if errors.Is(err, ErrUnknownType) || kind == "" {
			kind = "unknown"
		}
		metrics.IncControl(kind, "invalid")
		h.logger.Debug("invalid control message", "remote_ip", ip, "error", err)
		return http.StatusBadRequest, errorReply(cmd.Type, err.Error())
	}

	if sel, ok := cmd.Message.(sim.Select); ok && sel.Name != "" {
		if _, known := h.engine.Registry().Get(sel.Name); !known {
			metrics.IncControl(cmd.Type, "invalid")
			return http.StatusBadRequest, errorReply(cmd.Type, fmt.Sprintf("unknown body %q", sel.Name))
		}
	}

	switch {
	case cmd.Ignored:
		metrics.IncControl(cmd.Type, "ignored")
		return http.StatusAccepted, Reply{Type: "ignored", Request: cmd.Type}

	case cmd.Pick != nil:
		pctx, cancel := context.WithTimeout(ctx, h.config.PickTimeout)
		defer cancel()
		res, err := h.engine.Pick(pctx, cmd.Pick.Ray())
		if err != nil {
			h.logger.Warn("pick failed", "remote_ip", ip, "error", err)
			return http.StatusServiceUnavailable, errorReply(cmd.Type, err.Error())
		}
		hit := res.Hit
		return http.StatusOK, Reply{
			Type:     "picked",
			Request:  cmd.Type,
			Hit:      &hit,
			Name:     res.Name,
			Distance: res.Distance,
		}

	default:
		if !h.engine.Send(cmd.Message) {
			return http.StatusServiceUnavailable, errorReply(cmd.Type, "control queue full")
		}
		return http.StatusAccepted, Reply{Type: "accepted", Request: cmd.Type}
	}
}

// checkOrigin accepts same-host origins, requests without an Origin header
// and any configured origin.
func (h *Handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, o := range h.config.AllowedOrigins {
		if o == "*" || o == origin {
			return true
		}
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return u.Host == r.Host
}

func errorReply(request, msg string) Reply {
	return Reply{Type: "error", Request: request, Error: msg}
}

func writeReply(w http.ResponseWriter, status int, reply Reply) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(reply)
}
