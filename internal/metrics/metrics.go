package metrics

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orrery_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"path", "method", "code"},
	)

	httpDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "orrery_http_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)

	framesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "orrery_frames_total",
		Help: "Total number of simulation frames stepped.",
	})

	frameStepSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "orrery_frame_step_seconds",
		Help:    "Time spent computing one simulation frame.",
		Buckets: []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05},
	})

	framesDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "orrery_frames_dropped_total",
		Help: "Frames not delivered to a subscriber whose buffer was full.",
	})

	simTime = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "orrery_sim_time_years",
		Help: "Current simulated time in years.",
	})

	simSpeed = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "orrery_sim_speed",
		Help: "Current simulation speed factor.",
	})

	bodiesCount = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "orrery_bodies",
		Help: "Number of bodies in the registry.",
	})

	subscribersActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "orrery_frame_subscribers",
		Help: "Number of active frame subscribers.",
	})

	controlMessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orrery_control_messages_total",
			Help: "Control messages by type and outcome.",
		},
		[]string{"type", "result"},
	)

	picksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orrery_picks_total",
			Help: "Pick requests by result (hit, miss).",
		},
		[]string{"result"},
	)

	streamConnectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orrery_stream_connections_total",
			Help: "SSE stream connection events.",
		},
		[]string{"event"},
	)

	streamsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "orrery_streams_active",
		Help: "Number of open SSE streams.",
	})

	streamMessagesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "orrery_stream_messages_total",
		Help: "SSE data messages sent.",
	})

	streamBytesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "orrery_stream_bytes_total",
		Help: "Bytes written to SSE streams.",
	})

	streamErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orrery_stream_errors_total",
			Help: "SSE stream errors by reason.",
		},
		[]string{"reason"},
	)

	historyFrames = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "orrery_history_frames",
		Help: "Frames held in the trail history.",
	})
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpDurationSeconds,
		framesTotal,
		frameStepSeconds,
		framesDropped,
		simTime,
		simSpeed,
		bodiesCount,
		subscribersActive,
		controlMessagesTotal,
		picksTotal,
		streamConnectionsTotal,
		streamsActive,
		streamMessagesTotal,
		streamBytesTotal,
		streamErrorsTotal,
		historyFrames,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordFrame records one simulation step.
func RecordFrame(d time.Duration, t, speed float64) {
	framesTotal.Inc()
	frameStepSeconds.Observe(d.Seconds())
	simTime.Set(t)
	simSpeed.Set(speed)
}

func IncFramesDropped() { framesDropped.Inc() }
func SetBodies(n int) { bodiesCount.Set(float64(n)) }
func SetSubscribers(n int) { subscribersActive.Set(float64(n)) }
func SetHistoryFrames(n int) { historyFrames.Set(float64(n)) }
func IncPick(result string) { picksTotal.WithLabelValues(result).Inc() }
func IncStreamMessages() { streamMessagesTotal.Inc() }
func AddStreamBytes(n int64) { streamBytesTotal.Add(float64(n)) }
func IncStreamErrors(r string) { streamErrorsTotal.WithLabelValues(r).Inc() }
func IncStreamConnections(e string) { streamConnectionsTotal.WithLabelValues(e).Inc() }
func IncStreamsActive() { streamsActive.Inc() }
func DecStreamsActive() { streamsActive.Dec() }

// IncControl counts a control message. result is one of accepted, dropped,
// ignored, invalid or limited.
func IncControl(msgType, result string) {
	controlMessagesTotal.WithLabelValues(msgType, result).Inc()
}

// knownRoutes are the exact paths reported as their own label.
var knownRoutes = map[string]bool{
	"/":                     true,
	"/healthz":              true,
	"/readyz":               true,
	"/metrics":              true,
	"/app.js":               true,
	"/styles.css":           true,
	"/index.html":           true,
	"/api/v1/bodies":        true,
	"/api/v1/scene":         true,
	"/api/v1/state":         true,
	"/api/v1/frame":         true,
	"/api/v1/frames/recent": true,
	"/api/v1/solve":         true,
	"/api/v1/control":       true,
	"/api/v1/control/ws":    true,
	"/api/v1/stream/frames": true,
}

// normalizeRoute maps a request path to a bounded set of metric labels so
// that scanners cannot blow up label cardinality.
func normalizeRoute(path string) string {
	if knownRoutes[path] {
		return path
	}
	if rest, ok := strings.CutPrefix(path, "/api/v1/bodies/"); ok && rest != "" && !strings.Contains(rest, "/") {
		return "/api/v1/bodies/{name}"
	}
	return "other"
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Flush implements http.Flusher for SSE streams.
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Hijack implements http.Hijacker for websocket upgrades.
func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("hijack not supported")
	}
	return h.Hijack()
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// Middleware records request count and duration for each request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		code := strconv.Itoa(rw.statusCode)
		route := normalizeRoute(r.URL.Path)

		httpRequestsTotal.WithLabelValues(route, r.Method, code).Inc()
		httpDurationSeconds.WithLabelValues(route, r.Method).Observe(duration)
	})
}
