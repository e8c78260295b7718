package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/Strangeisit/hoticeteaoreryproject/internal/bodies"
	"github.com/Strangeisit/hoticeteaoreryproject/internal/history"
	"github.com/Strangeisit/hoticeteaoreryproject/internal/orbit"
	"github.com/Strangeisit/hoticeteaoreryproject/internal/scene"
	"github.com/Strangeisit/hoticeteaoreryproject/internal/sim"
)

// Largest n accepted by /api/v1/frames/recent.
const maxRecentFrames = 600

type bodyResponse struct {
	Name      string  `json:"name"`
	Kind      string  `json:"kind"`
	A         float64 `json:"a"`
	E         float64 `json:"e"`
	I         float64 `json:"i"`
	Om        float64 `json:"om"`
	W         float64 `json:"w"`
	MA        float64 `json:"ma"`
	Period    float64 `json:"period"`
	Periapsis float64 `json:"periapsis"`
	Apoapsis  float64 `json:"apoapsis"`
	Size      float64 `json:"size"`
	Color     string  `json:"color"`

	// Only set for single-body lookups.
	Position    *[3]float64 `json:"p,omitempty"`
	MeanAnomaly *float64    `json:"mean_anomaly,omitempty"`
}

func newBodyResponse(b bodies.Body) bodyResponse {
	el := b.Elements
	return bodyResponse{
		Name:      b.Name,
		Kind:      string(b.Kind),
		A:         el.A,
		E:         el.E,
		I:         el.I,
		Om:        el.Om,
		W:         el.W,
		MA:        el.M0,
		Period:    b.Period,
		Periapsis: el.Periapsis(),
		Apoapsis:  el.Apoapsis(),
		Size:      b.Size,
		Color:     b.Color,
	}
}

// bodiesHandler serves GET /api/v1/bodies. Angles are radians.
func bodiesHandler(reg *bodies.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		kind := r.URL.Query().Get("kind")
		out := make([]bodyResponse, 0, reg.Len())
		for _, b := range reg.All() {
			if kind != "" && string(b.Kind) != kind {
				continue
			}
			out = append(out, newBodyResponse(b))
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"count":  len(out),
			"bodies": out,
		})
	}
}

// bodyHandler serves GET /api/v1/bodies/{name} with the body's current
// position.
func bodyHandler(engine *sim.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := r.PathValue("name")
		reg := engine.Registry()
		b, ok := reg.Get(name)
		if !ok {
			writeError(w, http.StatusNotFound, fmt.Sprintf("body %q not found", name))
			return
		}
		resp := newBodyResponse(b)
		if f := engine.Latest(); f != nil {
			bp := f.Bodies[reg.Index(b.Name)]
			p := scene.Array(bp.Position)
			resp.Position = &p
			resp.MeanAnomaly = &bp.MeanAnomaly
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// sceneHandler serves GET /api/v1/scene. Star positions are only included
// with ?stars=true.
func sceneHandler(engine *sim.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stars := false
		if v := r.URL.Query().Get("stars"); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid stars parameter, must be a boolean")
				return
			}
			stars = b
		}
		writeJSON(w, http.StatusOK, engine.Scene(stars))
	}
}

// stateHandler serves GET /api/v1/state.
func stateHandler(engine *sim.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, engine.State().Snapshot())
	}
}

type framePosition struct {
	Name        string     `json:"name"`
	MeanAnomaly float64    `json:"mean_anomaly"`
	P           [3]float64 `json:"p"`
}

type frameResponse struct {
	Seq           uint64          `json:"seq"`
	T             float64         `json:"t"`
	Date          string          `json:"date"`
	Speed         float64         `json:"speed"`
	OrbitsVisible bool            `json:"orbits_visible"`
	LabelsVisible bool            `json:"labels_visible"`
	Highlight     string          `json:"highlight,omitempty"`
	Selected      string          `json:"selected,omitempty"`
	StarRotation  float64         `json:"star_rotation"`
	WallTime      string          `json:"wall_time"`
	Bodies        []framePosition `json:"bodies"`
}

func newFrameResponse(f *sim.Frame) frameResponse {
	list := make([]framePosition, len(f.Bodies))
	for i, b := range f.Bodies {
		list[i] = framePosition{Name: b.Name, MeanAnomaly: b.MeanAnomaly, P: scene.Array(b.Position)}
	}
	return frameResponse{
		Seq:           f.Seq,
		T:             f.Time,
		Date:          f.Date.UTC().Format(time.DateOnly),
		Speed:         f.Speed,
		OrbitsVisible: f.OrbitsVisible,
		LabelsVisible: f.LabelsVisible,
		Highlight:     f.Highlight,
		Selected:      f.Selected,
		StarRotation:  f.StarRotation,
		WallTime:      f.WallTime.UTC().Format(time.RFC3339Nano),
		Bodies:        list,
	}
}

// frameHandler serves GET /api/v1/frame, the most recent frame.
func frameHandler(engine *sim.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f := engine.Latest()
		if f == nil {
			writeError(w, http.StatusServiceUnavailable, "no frame rendered yet")
			return
		}
		writeJSON(w, http.StatusOK, newFrameResponse(f))
	}
}

// recentFramesHandler serves GET /api/v1/frames/recent?n=60.
func recentFramesHandler(ring *history.Ring) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ring == nil {
			writeError(w, http.StatusServiceUnavailable, "frame history disabled")
			return
		}
		n := 60
		if v := r.URL.Query().Get("n"); v != "" {
			parsed, err := strconv.Atoi(v)
			if err != nil || parsed < 1 || parsed > maxRecentFrames {
				writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid n parameter, must be 1-%d", maxRecentFrames))
				return
			}
			n = parsed
		}

		frames := ring.Recent(n)
		out := make([]frameResponse, len(frames))
		for i, f := range frames {
			out[i] = newFrameResponse(f)
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"count":   len(out),
			"history": ring.Stats(),
			"frames":  out,
		})
	}
}

type solveResponse struct {
	Method    string     `json:"method"`
	Unit      string     `json:"unit"`
	P         [3]float64 `json:"p"`
	R         float64    `json:"r"`
	Periapsis float64    `json:"periapsis"`
	Apoapsis  float64    `json:"apoapsis"`
}

// solveHandler serves GET /api/v1/solve, a stateless position lookup:
// ?a=1&e=0.1&i=7&om=0&w=0&ma=90&unit=deg&method=kepler
// a and e are required; angles default to 0 and to radians.
func solveHandler(logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		unit := q.Get("unit")
		if unit == "" {
			unit = "rad"
		}
		if unit != "rad" && unit != "deg" {
			writeError(w, http.StatusBadRequest, "invalid unit parameter, must be deg or rad")
			return
		}
		method, err := orbit.ParseMethod(q.Get("method"))
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		vals := make(map[string]float64, 6)
		for _, name := range []string{"a", "e", "i", "om", "w", "ma"} {
			v := q.Get(name)
			if v == "" {
				if name == "a" || name == "e" {
					writeError(w, http.StatusBadRequest, fmt.Sprintf("missing %s parameter", name))
					return
				}
				continue
			}
			f, err := strconv.ParseFloat(v, 64)
			if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
				writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid %s parameter, must be a finite number", name))
				return
			}
			if unit == "deg" && name != "a" && name != "e" {
				f = orbit.Deg(f)
			}
			vals[name] = f
		}

		el := orbit.Elements{A: vals["a"], E: vals["e"], I: vals["i"], Om: vals["om"], W: vals["w"], M0: vals["ma"]}
		if err := el.Validate(); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		p := method.Solve(el, el.M0)
		logger.Debug("solve", "component", "api", "method", method.String(), "a", el.A, "e", el.E)
		writeJSON(w, http.StatusOK, solveResponse{
			Method:    method.String(),
			Unit:      unit,
			P:         scene.Array(p),
			R:         r3.Norm(p),
			Periapsis: el.Periapsis(),
			Apoapsis:  el.Apoapsis(),
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
