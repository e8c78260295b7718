package stream

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/time/rate"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/Strangeisit/hoticeteaoreryproject/internal/bodies"
	"github.com/Strangeisit/hoticeteaoreryproject/internal/history"
	"github.com/Strangeisit/hoticeteaoreryproject/internal/scene"
	"github.com/Strangeisit/hoticeteaoreryproject/internal/sim"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))
}

func testEngine() *sim.Engine {
	reg := bodies.Default()
	cfg := scene.DefaultConfig()
	cfg.StarCount = 10
	return sim.NewEngine(reg, scene.Build(reg, cfg), sim.NewState(1), sim.DefaultConfig(), testLogger())
}

func testConfig() Config {
	return Config{
		MaxConcurrentPerIP: 10,
		BandwidthLimit:     1048576,
		KeepaliveInterval:  30 * time.Second,
	}
}

// TestBuildFrameMessage verifies the frame payload structure.
func TestBuildFrameMessage(t *testing.T) {
	f := &sim.Frame{
		Seq:           7,
		Time:          0.07,
		Date:          time.Date(2000, 1, 26, 12, 0, 0, 0, time.UTC),
		OrbitsVisible: true,
		Highlight:     "Mars",
		Bodies: []sim.BodyPosition{
			{Name: "Mars", Position: r3.Vec{X: 1.5}},
			{Name: "Icarus", Position: r3.Vec{Y: 1}},
		},
	}

	msg := buildFrameMessage(f, nil)

	if msg.Type != "frame" {
		t.Errorf("type = %q, want frame", msg.Type)
	}
	if msg.Seq != 7 || msg.T != 0.07 {
		t.Errorf("seq, t = %d, %v", msg.Seq, msg.T)
	}
	if msg.Date != "2000-01-26" {
		t.Errorf("date = %q, want 2000-01-26", msg.Date)
	}
	if !msg.OrbitsVisible || msg.LabelsVisible || msg.Highlight != "Mars" {
		t.Errorf("flags = %+v", msg)
	}
	if len(msg.Bodies) != 2 {
		t.Fatalf("bodies = %d, want 2", len(msg.Bodies))
	}
	if msg.Bodies[0].P != [3]float64{1.5, 0, 0} {
		t.Errorf("bodies[0].p = %v", msg.Bodies[0].P)
	}
	if msg.Bodies[0].Tr != nil {
		t.Error("trail present without trail frames")
	}
}

// TestBuildFrameMessage_Trails verifies trail points are grouped by body, oldest first.
func TestBuildFrameMessage_Trails(t *testing.T) {
	mk := func(seq uint64, x float64) *sim.Frame {
		return &sim.Frame{Seq: seq, Bodies: []sim.BodyPosition{
			{Name: "Venus", Position: r3.Vec{X: x}},
			{Name: "Earth", Position: r3.Vec{X: -x}},
		}}
	}
	trail := []*sim.Frame{mk(1, 0.1), mk(2, 0.2), mk(3, 0.3)}

	msg := buildFrameMessage(trail[2], trail)

	want := [][3]float64{{0.1, 0, 0}, {0.2, 0, 0}, {0.3, 0, 0}}
	got := msg.Bodies[0].Tr
	if len(got) != len(want) {
		t.Fatalf("Venus trail = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Venus trail[%d] = %v, want %v", i, got[i], want[i])
		}
	}
	if msg.Bodies[1].Tr[0] != [3]float64{-0.1, 0, 0} {
		t.Errorf("Earth trail[0] = %v", msg.Bodies[1].Tr[0])
	}
}

// TestFrameMessageJSON verifies the JSON field names.
func TestFrameMessageJSON(t *testing.T) {
	msg := frameMessage{
		Type:   "frame",
		Seq:    3,
		Date:   "2000-01-12",
		Bodies: []bodyPayload{{Name: "Earth", P: [3]float64{1, 0, 0}}},
	}

	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatal(err)
	}

	var parsed map[string]any
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatal(err)
	}

	for _, key := range []string{"type", "seq", "t", "date", "speed", "orbits", "labels", "stars", "bodies"} {
		if _, ok := parsed[key]; !ok {
			t.Errorf("missing key %q in %s", key, data)
		}
	}
	if _, ok := parsed["highlight"]; ok {
		t.Error("empty highlight should be omitted")
	}

	list := parsed["bodies"].([]any)
	b := list[0].(map[string]any)
	if b["name"] != "Earth" {
		t.Errorf("bodies[0].name = %v", b["name"])
	}
	if _, ok := b["tr"]; ok {
		t.Error("empty trail should be omitted")
	}
}

// readEvents parses SSE data lines into JSON objects.
func readEvents(t *testing.T, body string) []map[string]any {
	t.Helper()
	var out []map[string]any
	scanner := bufio.NewScanner(strings.NewReader(body))
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var msg map[string]any
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &msg); err != nil {
			t.Errorf("invalid JSON in SSE data line: %v", err)
			continue
		}
		out = append(out, msg)
	}
	return out
}

// TestSSEStream verifies the wire format, the metadata message and that an
// unchanged frame is sent only once.
func TestSSEStream(t *testing.T) {
	e := testEngine()
	e.Tick()

	handler := NewHandler(e, nil, testConfig(), testLogger())

	req := httptest.NewRequest("GET", "/api/v1/stream/frames?fps=60", nil)
	req.RemoteAddr = "127.0.0.1:12345"
	ctx, cancel := context.WithTimeout(req.Context(), 300*time.Millisecond)
	defer cancel()
	req = req.WithContext(ctx)

	w := httptest.NewRecorder()
	handler.HandleFrames(w, req)

	resp := w.Result()
	if resp.Header.Get("Content-Type") != "text/event-stream" {
		t.Errorf("Content-Type = %q, want text/event-stream", resp.Header.Get("Content-Type"))
	}
	if resp.Header.Get("Cache-Control") != "no-cache" {
		t.Errorf("Cache-Control = %q, want no-cache", resp.Header.Get("Cache-Control"))
	}

	body := w.Body.String()
	events := readEvents(t, body)
	if len(events) != 2 {
		t.Fatalf("got %d events, want metadata + one frame:\n%s", len(events), body)
	}

	meta := events[0]
	if meta["type"] != "metadata" {
		t.Fatalf("first event type = %v, want metadata", meta["type"])
	}
	if n := len(meta["bodies"].([]any)); n != bodies.Default().Len() {
		t.Errorf("metadata bodies = %d, want %d", n, bodies.Default().Len())
	}
	if meta["method"] != "mean_anomaly" || meta["base_increment"].(float64) != 0.01 {
		t.Errorf("metadata = %v", meta)
	}

	frame := events[1]
	if frame["type"] != "frame" || frame["seq"].(float64) != 1 {
		t.Errorf("frame event = %v", frame)
	}

	for _, line := range strings.Split(body, "\n") {
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, "data: ") && !strings.HasPrefix(line, "retry: ") && line != ":" {
			t.Errorf("unexpected SSE line: %q", line)
		}
	}

	if handler.Active() != 0 {
		t.Errorf("active streams after disconnect = %d", handler.Active())
	}
}

// TestSSEStream_Trails verifies trail points come from the history.
func TestSSEStream_Trails(t *testing.T) {
	e := testEngine()
	ring := history.NewRing(10, testLogger())
	for i := 0; i < 4; i++ {
		ring.Push(e.Tick())
	}

	handler := NewHandler(e, ring, testConfig(), testLogger())

	req := httptest.NewRequest("GET", "/api/v1/stream/frames?fps=60&trail=3", nil)
	req.RemoteAddr = "127.0.0.1:12345"
	ctx, cancel := context.WithTimeout(req.Context(), 200*time.Millisecond)
	defer cancel()
	w := httptest.NewRecorder()
	handler.HandleFrames(w, req.WithContext(ctx))

	events := readEvents(t, w.Body.String())
	if len(events) < 2 {
		t.Fatalf("got %d events", len(events))
	}
	list := events[1]["bodies"].([]any)
	for _, item := range list {
		b := item.(map[string]any)
		tr, _ := b["tr"].([]any)
		if len(tr) != 3 {
			t.Errorf("%v trail length = %d, want 3", b["name"], len(tr))
		}
	}
}

// TestSSEStream_NoFrameYet verifies that only metadata is sent before the
// engine has produced a frame.
func TestSSEStream_NoFrameYet(t *testing.T) {
	handler := NewHandler(testEngine(), nil, testConfig(), testLogger())

	req := httptest.NewRequest("GET", "/api/v1/stream/frames?fps=60", nil)
	req.RemoteAddr = "127.0.0.1:12345"
	ctx, cancel := context.WithTimeout(req.Context(), 100*time.Millisecond)
	defer cancel()
	w := httptest.NewRecorder()
	handler.HandleFrames(w, req.WithContext(ctx))

	events := readEvents(t, w.Body.String())
	if len(events) != 1 || events[0]["type"] != "metadata" {
		t.Errorf("events = %v, want metadata only", events)
	}
}

// TestSSEStream_ZeroConfig verifies that an unset Config streams with
// default limits and keepalive interval.
func TestSSEStream_ZeroConfig(t *testing.T) {
	e := testEngine()
	e.Tick()
	handler := NewHandler(e, nil, Config{}, testLogger())

	if handler.config.KeepaliveInterval != 30*time.Second {
		t.Errorf("keepalive = %v, want 30s", handler.config.KeepaliveInterval)
	}
	if handler.config.MaxConcurrentPerIP != 10 || handler.config.MaxTotal != 1000 {
		t.Errorf("limits = %d/%d, want 10/1000", handler.config.MaxConcurrentPerIP, handler.config.MaxTotal)
	}

	req := httptest.NewRequest("GET", "/api/v1/stream/frames?fps=60", nil)
	req.RemoteAddr = "127.0.0.1:12345"
	ctx, cancel := context.WithTimeout(req.Context(), 100*time.Millisecond)
	defer cancel()
	w := httptest.NewRecorder()
	handler.HandleFrames(w, req.WithContext(ctx))

	events := readEvents(t, w.Body.String())
	if len(events) != 2 || events[1]["type"] != "frame" {
		t.Errorf("events = %v, want metadata + one frame", events)
	}
}

// TestRateLimiting verifies per-IP concurrent stream limits.
func TestRateLimiting(t *testing.T) {
	limiter := newStreamLimiter(3, 0)

	for i := 0; i < 3; i++ {
		if !limiter.acquire("10.0.0.1") {
			t.Fatalf("acquire %d should succeed", i+1)
		}
	}

	if limiter.acquire("10.0.0.1") {
		t.Error("acquire beyond limit should fail")
	}

	if !limiter.acquire("10.0.0.2") {
		t.Error("different IP should not be rate limited")
	}

	limiter.release("10.0.0.1")
	if !limiter.acquire("10.0.0.1") {
		t.Error("acquire after release should succeed")
	}

	if c := limiter.count("10.0.0.1"); c != 3 {
		t.Errorf("count = %d, want 3", c)
	}
	if c := limiter.count("10.0.0.2"); c != 1 {
		t.Errorf("count = %d, want 1", c)
	}
	if a := limiter.active(); a != 4 {
		t.Errorf("active = %d, want 4", a)
	}
}

// TestRateLimitingGlobalCap verifies the overall stream cap.
func TestRateLimitingGlobalCap(t *testing.T) {
	limiter := newStreamLimiter(10, 2)
	if !limiter.acquire("a") || !limiter.acquire("b") {
		t.Fatal("acquire under the global cap should succeed")
	}
	if limiter.acquire("c") {
		t.Error("acquire beyond the global cap should fail")
	}
}

// TestRateLimitingConcurrent verifies rate limiter thread safety.
func TestRateLimitingConcurrent(t *testing.T) {
	limiter := newStreamLimiter(100, 0)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if limiter.acquire("10.0.0.1") {
				defer limiter.release("10.0.0.1")
				time.Sleep(10 * time.Millisecond)
			}
		}()
	}
	wg.Wait()

	if c := limiter.count("10.0.0.1"); c != 0 {
		t.Errorf("count after all released = %d, want 0", c)
	}
}

// TestRateLimitHTTPResponse verifies 429 when the limit is exceeded, with
// IPv6 clients in the same /64 sharing one budget.
func TestRateLimitHTTPResponse(t *testing.T) {
	e := testEngine()
	e.Tick()
	handler := NewHandler(e, nil, Config{
		MaxConcurrentPerIP: 1,
		KeepaliveInterval:  30 * time.Second,
	}, testLogger())

	ready := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		req := httptest.NewRequest("GET", "/api/v1/stream/frames", nil)
		req.RemoteAddr = "[2001:db8::1]:12345"
		ctx, cancel := context.WithCancel(req.Context())
		req = req.WithContext(ctx)
		w := httptest.NewRecorder()

		go func() {
			time.Sleep(50 * time.Millisecond)
			close(ready)
			time.Sleep(200 * time.Millisecond)
			cancel()
		}()

		handler.HandleFrames(w, req)
	}()

	<-ready

	req := httptest.NewRequest("GET", "/api/v1/stream/frames", nil)
	req.RemoteAddr = "[2001:db8::2]:54321"
	w := httptest.NewRecorder()
	handler.HandleFrames(w, req)

	if w.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want %d", w.Code, http.StatusTooManyRequests)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After header")
	}

	<-done
}

// TestInvalidQueryParams verifies error responses for bad fps/trail values.
func TestInvalidQueryParams(t *testing.T) {
	handler := NewHandler(testEngine(), nil, testConfig(), testLogger())

	tests := []struct {
		name  string
		query string
	}{
		{"fps zero", "?fps=0"},
		{"fps too large", "?fps=61"},
		{"fps non-numeric", "?fps=abc"},
		{"negative trail", "?trail=-1"},
		{"trail too large", "?trail=121"},
		{"trail non-numeric", "?trail=xyz"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/api/v1/stream/frames"+tt.query, nil)
			req.RemoteAddr = "127.0.0.1:12345"
			w := httptest.NewRecorder()
			handler.HandleFrames(w, req)

			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
			}
			if handler.Active() != 0 {
				t.Error("rejected request holds a stream slot")
			}
		})
	}
}

// TestThrottle verifies the per-stream bandwidth limiter.
func TestThrottle(t *testing.T) {
	c := &client{limiter: rate.NewLimiter(1, 10), logger: testLogger()}

	// Oversized messages are charged the burst instead of failing.
	if err := c.throttle(context.Background(), 50); err != nil {
		t.Fatalf("first throttle: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := c.throttle(ctx, 5); err == nil {
		t.Error("throttle with exhausted budget and cancelled context should fail")
	}

	unlimited := &client{logger: testLogger()}
	if err := unlimited.throttle(ctx, 1<<20); err != nil {
		t.Errorf("unlimited throttle: %v", err)
	}
}
