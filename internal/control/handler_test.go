package control

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"testing/iotest"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/Strangeisit/hoticeteaoreryproject/internal/bodies"
	"github.com/Strangeisit/hoticeteaoreryproject/internal/scene"
	"github.com/Strangeisit/hoticeteaoreryproject/internal/sim"
)

type fakeEngine struct {
	mu      sync.Mutex
	sent    []sim.Message
	full    bool
	pick    sim.PickResult
	pickErr error
	rays    []scene.Ray
}

func (f *fakeEngine) Send(msg sim.Message) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.full {
		return false
	}
	f.sent = append(f.sent, msg)
	return true
}

func (f *fakeEngine) Pick(_ context.Context, ray scene.Ray) (sim.PickResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rays = append(f.rays, ray)
	return f.pick, f.pickErr
}

func (f *fakeEngine) Registry() *bodies.Registry {
	return bodies.Default()
}

func (f *fakeEngine) messages() []sim.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sim.Message(nil), f.sent...)
}

func post(h *Handler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/control", strings.NewReader(body))
	req.RemoteAddr = "192.0.2.10:4000"
	w := httptest.NewRecorder()
	h.HandlePost(w, req)
	return w
}

func decodeReply(t *testing.T, w *httptest.ResponseRecorder) Reply {
	t.Helper()
	var r Reply
	require.NoError(t, json.NewDecoder(w.Body).Decode(&r))
	return r
}

func TestHandlePost(t *testing.T) {
	eng := &fakeEngine{}
	h := NewHandler(eng, DefaultConfig(), testLogger())

	tests := []struct {
		name   string
		body   string
		status int
		typ    string
	}{
		{"speed", `{"type":"speed","value":0.5}`, http.StatusAccepted, "accepted"},
		{"toggle", `{"type":"toggle_orbits"}`, http.StatusAccepted, "accepted"},
		{"lenient visible", `{"type":"labels","visible":"off"}`, http.StatusAccepted, "ignored"},
		{"select", `{"type":"select","name":"Mars"}`, http.StatusAccepted, "accepted"},
		{"select unknown body", `{"type":"select","name":"Pluto"}`, http.StatusBadRequest, "error"},
		{"clear selection", `{"type":"select","name":""}`, http.StatusAccepted, "accepted"},
		{"unknown", `{"type":"explode"}`, http.StatusBadRequest, "error"},
		{"garbage", `not json`, http.StatusBadRequest, "error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := post(h, tt.body)
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
			assert.Equal(t, tt.typ, decodeReply(t, w).Type)
		})
	}

	msgs := eng.messages()
	require.Len(t, msgs, 4)
	assert.Equal(t, sim.SetSpeed{Value: 0.5}, msgs[0])
	assert.Equal(t, sim.ToggleOrbits{}, msgs[1])
	assert.Equal(t, "Mars", msgs[2].(sim.Select).Name)
	assert.Equal(t, "", msgs[3].(sim.Select).Name)
}

func TestHandlePost_Pick(t *testing.T) {
	eng := &fakeEngine{pick: sim.PickResult{Hit: true, Name: "Earth", Distance: 2.5}}
	h := NewHandler(eng, DefaultConfig(), testLogger())

	w := post(h, `{"type":"pick","x":0.1,"y":-0.1}`)
	require.Equal(t, http.StatusOK, w.Code)
	r := decodeReply(t, w)
	assert.Equal(t, "picked", r.Type)
	require.NotNil(t, r.Hit)
	assert.True(t, *r.Hit)
	assert.Equal(t, "Earth", r.Name)
	assert.Equal(t, 2.5, r.Distance)
	assert.Len(t, eng.rays, 1)

	eng.pick = sim.PickResult{}
	r = decodeReply(t, post(h, `{"type":"pick","x":0,"y":0}`))
	require.NotNil(t, r.Hit)
	assert.False(t, *r.Hit)
	assert.Empty(t, r.Name)

	eng.pickErr = sim.ErrNotRunning
	w = post(h, `{"type":"pick","x":0,"y":0}`)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestHandlePost_QueueFull(t *testing.T) {
	h := NewHandler(&fakeEngine{full: true}, DefaultConfig(), testLogger())
	w := post(h, `{"type":"toggle_labels"}`)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestHandlePost_TooLarge(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxMessageBytes = 16
	h := NewHandler(&fakeEngine{}, cfg, testLogger())
	w := post(h, `{"type":"select","name":"`+strings.Repeat("x", 64)+`"}`)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestHandlePost_ReadError(t *testing.T) {
	h := NewHandler(&fakeEngine{}, DefaultConfig(), testLogger())
	req := httptest.NewRequest(http.MethodPost, "/api/v1/control", iotest.ErrReader(io.ErrUnexpectedEOF))
	req.RemoteAddr = "192.0.2.10:4000"
	w := httptest.NewRecorder()
	h.HandlePost(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "error", decodeReply(t, w).Type)
}

func TestHandlePost_RateLimit(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Rate = 0.001
	cfg.Burst = 2
	h := NewHandler(&fakeEngine{}, cfg, testLogger())

	assert.Equal(t, http.StatusAccepted, post(h, `{"type":"toggle_orbits"}`).Code)
	assert.Equal(t, http.StatusAccepted, post(h, `{"type":"toggle_orbits"}`).Code)
	assert.Equal(t, http.StatusTooManyRequests, post(h, `{"type":"toggle_orbits"}`).Code)
}

func TestIPRateLimiter(t *testing.T) {
	l := NewIPRateLimiter(rate.Limit(0.001), 1, time.Minute)

	assert.True(t, l.Allow("a"))
	assert.False(t, l.Allow("a"))
	assert.True(t, l.Allow("b"), "keys have separate buckets")
	assert.Same(t, l.GetLimiter("a"), l.GetLimiter("a"))

	assert.Equal(t, 0, l.Sweep(time.Now()))
	assert.Equal(t, 2, l.Sweep(time.Now().Add(2*time.Minute)))
	assert.Equal(t, 0, l.Len())
}

func TestCheckOrigin(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AllowedOrigins = []string{"https://viewer.example"}
	h := NewHandler(&fakeEngine{}, cfg, testLogger())

	tests := []struct {
		origin string
		want   bool
	}{
		{"", true},
		{"http://orrery.local", true},
		{"https://viewer.example", true},
		{"https://evil.example", false},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "http://orrery.local/api/v1/control/ws", nil)
		if tt.origin != "" {
			r.Header.Set("Origin", tt.origin)
		}
		assert.Equal(t, tt.want, h.checkOrigin(r), tt.origin)
	}
}

func TestHandleWS(t *testing.T) {
	eng := &fakeEngine{pick: sim.PickResult{Hit: true, Name: "Apollo", Distance: 1}}
	h := NewHandler(eng, DefaultConfig(), testLogger())
	srv := httptest.NewServer(http.HandlerFunc(h.HandleWS))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	exchange := func(msg string) Reply {
		t.Helper()
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(msg)))
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		var r Reply
		require.NoError(t, conn.ReadJSON(&r))
		return r
	}

	r := exchange(`{"type":"speed","value":-2}`)
	assert.Equal(t, "accepted", r.Type)
	assert.Equal(t, "speed", r.Request)

	r = exchange(`{"type":"pick","x":0,"y":0}`)
	assert.Equal(t, "picked", r.Type)
	assert.Equal(t, "Apollo", r.Name)

	// Errors are reported without closing the connection.
	r = exchange(`{"type":"nope"}`)
	assert.Equal(t, "error", r.Type)

	r = exchange(`{"type":"orbits","visible":"maybe"}`)
	assert.Equal(t, "ignored", r.Type)

	assert.Equal(t, []sim.Message{sim.SetSpeed{Value: -2}}, eng.messages())
}
