package pipeline

import (
	"github.com/pkg/errors"
	"gocv.io/x/gocv"

	"github.com/ayusman/haarlens/internal/detector"
)

// State is the pipeline state.
type State int

const (
	// Idle means no source is open.
	Idle State = iota
	// LiveRunning means a camera is open and feeding the pipeline.
	LiveRunning
	// FileRunning means a still image is loaded and feeding the pipeline.
	FileRunning
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case LiveRunning:
		return "live"
	case FileRunning:
		return "file"
	default:
		return "unknown"
	}
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Running reports whether a source is active.
func (s State) Running() bool {
	return s == LiveRunning || s == FileRunning
}

// Mode selects which kind of source feeds the pipeline.
type Mode int

const (
	// Live reads frames from a camera.
	Live Mode = iota
	// File reads frames from a still image.
	File
)

func (m Mode) String() string {
	if m == File {
		return "file"
	}
	return "live"
}

// MarshalText encodes the mode by name.
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// ParseMode accepts "live" or "file".
func ParseMode(s string) (Mode, error) {
	switch s {
	case "live":
		return Live, nil
	case "file":
		return File, nil
	}
	return Live, errors.Errorf("unknown mode %q", s)
}

// Affordances lists which user controls make sense in the current state.
type Affordances struct {
	Start        bool `json:"start"`
	Stop         bool `json:"stop"`
	LoadImage    bool `json:"load_image"`
	Reset        bool `json:"reset"`
	CameraSelect bool `json:"camera_select"`
	Snapshot     bool `json:"snapshot"`
}

// Status is a point-in-time view of the controller.
type Status struct {
	State       State           `json:"state"`
	Mode        Mode            `json:"mode"`
	Source      string          `json:"source,omitempty"`
	Device      int             `json:"device"`
	Cameras     []int           `json:"cameras"`
	Classifier  detector.Kind   `json:"classifier"`
	Model       string          `json:"model"`
	Params      detector.Params `json:"params"`
	Detections  int             `json:"detections"`
	Frames      int             `json:"frames"`
	SessionID   string          `json:"session_id,omitempty"`
	Message     string          `json:"message"`
	Affordances Affordances     `json:"affordances"`
}

// Observer receives pipeline output. Frames and statuses arrive in the order
// of the transitions that produced them, one callback at a time and never
// while the controller lock is held. Observers may call back into the
// controller; the resulting events are delivered after the current one.
type Observer interface {
	// Display receives the annotated frame. The frame is only valid for the
	// duration of the call; clone it to keep it.
	Display(frame *gocv.Mat)
	// StatusChanged receives the status after a transition or a counter change.
	StatusChanged(status Status)
}

// History records detection sessions. A nil History disables recording.
type History interface {
	StartSession(mode, source, classifier string) (string, error)
	EndSession(id string, frames, peakDetections int) error
	RecordSnapshot(sessionID, path string, detections int) error
}
