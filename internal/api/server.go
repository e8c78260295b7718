package api

import (
	"bufio"
	"errors"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/Strangeisit/hoticeteaoreryproject/internal/auth"
	"github.com/Strangeisit/hoticeteaoreryproject/internal/control"
	"github.com/Strangeisit/hoticeteaoreryproject/internal/health"
	"github.com/Strangeisit/hoticeteaoreryproject/internal/history"
	"github.com/Strangeisit/hoticeteaoreryproject/internal/metrics"
	"github.com/Strangeisit/hoticeteaoreryproject/internal/sim"
	"github.com/Strangeisit/hoticeteaoreryproject/internal/stream"
)

// Server holds the HTTP server and its dependencies.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates a configured HTTP server.
func NewServer(
	addr string,
	logger *slog.Logger,
	authCfg auth.Config,
	engine *sim.Engine,
	ring *history.Ring,
	streamHandler *stream.Handler,
	controlHandler *control.Handler,
	webFS fs.FS,
) *Server {
	mux := http.NewServeMux()
	routes(mux, logger, engine, ring, streamHandler, controlHandler, webFS)

	// Build middleware chain: metrics -> logging -> auth -> mux.
	var handler http.Handler = mux
	handler = auth.Middleware(authCfg)(handler)
	handler = loggingMiddleware(logger)(handler)
	handler = metrics.Middleware(handler)

	return &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadTimeout:       10 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      10 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		logger: logger,
	}
}

// routes registers every endpoint on mux.
func routes(
	mux *http.ServeMux,
	logger *slog.Logger,
	engine *sim.Engine,
	ring *history.Ring,
	streamHandler *stream.Handler,
	controlHandler *control.Handler,
	webFS fs.FS,
) {
	mux.HandleFunc("GET /healthz", health.Healthz)
	mux.HandleFunc("GET /readyz", health.Readyz(engine.Ready))
	mux.Handle("GET /metrics", metrics.Handler())

	mux.HandleFunc("GET /api/v1/bodies", bodiesHandler(engine.Registry()))
	mux.HandleFunc("GET /api/v1/bodies/{name}", bodyHandler(engine))
	mux.HandleFunc("GET /api/v1/scene", sceneHandler(engine))
	mux.HandleFunc("GET /api/v1/state", stateHandler(engine))
	mux.HandleFunc("GET /api/v1/frame", frameHandler(engine))
	mux.HandleFunc("GET /api/v1/frames/recent", recentFramesHandler(ring))
	mux.HandleFunc("GET /api/v1/solve", solveHandler(logger))

	if streamHandler != nil {
		mux.HandleFunc("GET /api/v1/stream/frames", streamHandler.HandleFrames)
	}
	if controlHandler != nil {
		mux.HandleFunc("POST /api/v1/control", controlHandler.HandlePost)
		mux.HandleFunc("GET /api/v1/control/ws", controlHandler.HandleWS)
	}

	if webFS != nil {
		mux.Handle("GET /", http.FileServerFS(webFS))
	}
}

// HTTPServer returns the underlying *http.Server for external control (e.g. shutdown).
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// probePath returns true for health/readiness probe paths that should not log at INFO.
func probePath(path string) bool {
	return path == "/healthz" || path == "/readyz" || path == "/metrics"
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.statusCode = code
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Flush() {
	if f, ok := sr.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (sr *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := sr.ResponseWriter.(http.Hijacker); ok {
		sr.statusCode = http.StatusSwitchingProtocols
		return h.Hijack()
	}
	return nil, nil, errors.New("hijacking not supported")
}

func (sr *statusRecorder) Unwrap() http.ResponseWriter {
	return sr.ResponseWriter
}

func loggingMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sr := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(sr, r)

			duration := time.Since(start)
			level := slog.LevelInfo
			if probePath(r.URL.Path) {
				level = slog.LevelDebug
			}

			logger.Log(r.Context(), level, "request",
				"component", "api",
				"method", r.Method,
				"path", r.URL.Path,
				"status", strconv.Itoa(sr.statusCode),
				"duration_ms", duration.Milliseconds(),
				"remote_ip", r.RemoteAddr,
			)
		})
	}
}
