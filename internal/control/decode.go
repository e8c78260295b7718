// Package control turns client control messages into simulation messages.
//
// Messages arrive as JSON objects with a "type" field, either posted to
// /api/v1/control or sent over the /api/v1/control/ws WebSocket:
//
//	{"type":"speed","value":0.5}
//	{"type":"toggle_orbits"}
//	{"type":"labels","visible":false}
//	{"type":"select","name":"Mars"}
//	{"type":"pick","x":0.12,"y":-0.4,"camera":{"position":[0,0.5,3],"target":[0,0,0]}}
//
// Visibility messages whose "visible" is not a boolean are logged and
// ignored rather than rejected.
package control

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/Strangeisit/hoticeteaoreryproject/internal/scene"
	"github.com/Strangeisit/hoticeteaoreryproject/internal/sim"
)

// Message types.
const (
	TypeSpeed        = "speed"
	TypeToggleOrbits = "toggle_orbits"
	TypeToggleLabels = "toggle_labels"
	TypeOrbits       = "orbits"
	TypeLabels       = "labels"
	TypeSelect       = "select"
	TypePick         = "pick"
)

var (
	ErrUnknownType = errors.New("unknown message type")
	ErrInvalid     = errors.New("invalid message")
)

// Command is a decoded control message. Exactly one of Message and Pick is
// set, unless the message was ignored.
type Command struct {
	Type    string
	Message sim.Message
	Pick    *PickRequest
	Ignored bool
}

// PickRequest asks for the body under normalized device coordinates
// (X, Y), each in [-1, 1] with +Y up, as seen from Camera.
type PickRequest struct {
	X, Y   float64
	Camera scene.Camera
}

// Ray returns the pick ray through the requested point.
func (p PickRequest) Ray() scene.Ray {
	return p.Camera.Ray(p.X, p.Y)
}

// CameraSpec is the optional wire form of the client's camera. Missing
// fields keep the default camera's values.
type CameraSpec struct {
	Position *[3]float64 `json:"position"`
	Target   *[3]float64 `json:"target"`
	FOV      *float64    `json:"fov"`
	Aspect   *float64    `json:"aspect"`
}

// Camera returns the default camera with the given fields overridden.
func (c *CameraSpec) Camera() scene.Camera {
	aspect := 1.0
	if c != nil && c.Aspect != nil {
		aspect = *c.Aspect
	}
	cam := scene.DefaultCamera(aspect)
	if c == nil {
		return cam
	}
	if c.Position != nil {
		cam.Position = scene.Vec(*c.Position)
	}
	if c.Target != nil {
		cam.Target = scene.Vec(*c.Target)
	}
	if c.FOV != nil && *c.FOV > 0 && *c.FOV < 180 {
		cam.FOV = *c.FOV
	}
	return cam
}

type wireMessage struct {
	Type    string          `json:"type"`
	Value   *float64        `json:"value"`
	Visible json.RawMessage `json:"visible"`
	Name    *string         `json:"name"`
	X       *float64        `json:"x"`
	Y       *float64        `json:"y"`
	Camera  *CameraSpec     `json:"camera"`
}

// Decode parses one control message. now stamps selections so their
// highlight expires on time.
func Decode(data []byte, now time.Time, logger *slog.Logger) (Command, error) {
	var m wireMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return Command{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	cmd := Command{Type: m.Type}

	switch m.Type {
	case TypeSpeed:
		if m.Value == nil || math.IsNaN(*m.Value) {
			return cmd, fmt.Errorf("%w: speed requires a numeric value", ErrInvalid)
		}
		cmd.Message = sim.SetSpeed{Value: *m.Value}

	case TypeToggleOrbits:
		cmd.Message = sim.ToggleOrbits{}

	case TypeToggleLabels:
		cmd.Message = sim.ToggleLabels{}

	case TypeOrbits, TypeLabels:
		visible, ok := boolParam(m.Visible)
		if !ok {
			logger.Warn(`parameter "visible" must be a boolean`,
				"type", m.Type,
				"visible", string(m.Visible),
			)
			cmd.Ignored = true
			return cmd, nil
		}
		if m.Type == TypeOrbits {
			cmd.Message = sim.SetOrbitsVisible{Visible: visible}
		} else {
			cmd.Message = sim.SetLabelsVisible{Visible: visible}
		}

	case TypeSelect:
		name := ""
		if m.Name != nil {
			name = *m.Name
		}
		cmd.Message = sim.Select{Name: name, At: now}

	case TypePick:
		if m.X == nil || m.Y == nil {
			return cmd, fmt.Errorf("%w: pick requires x and y", ErrInvalid)
		}
		if math.Abs(*m.X) > 1 || math.Abs(*m.Y) > 1 {
			return cmd, fmt.Errorf("%w: pick coordinates must be in [-1, 1]", ErrInvalid)
		}
		cmd.Pick = &PickRequest{X: *m.X, Y: *m.Y, Camera: m.Camera.Camera()}

	case "":
		return cmd, fmt.Errorf("%w: missing type", ErrInvalid)

	default:
		return cmd, fmt.Errorf("%w %q", ErrUnknownType, m.Type)
	}
	return cmd, nil
}

func boolParam(raw json.RawMessage) (bool, bool) {
	switch string(bytes.TrimSpace(raw)) {
	case "true":
		return true, true
	case "false":
		return false, true
	default:
		return false, false
	}
}
