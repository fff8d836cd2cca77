// Package pipeline drives the capture, detect, annotate and display cycle and
// owns the source state machine.
package pipeline

import (
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"

	"github.com/ayusman/haarlens/internal/capture"
	"github.com/ayusman/haarlens/internal/detector"
)

// Default tick cadence.
const (
	DefaultLiveInterval = 10 * time.Millisecond
	DefaultFileInterval = 50 * time.Millisecond
)

var (
	// ErrNoCamera is returned when live capture is requested with no camera detected.
	ErrNoCamera = errors.New("no camera detected")
	// ErrNotRunning is returned by operations that need an active source or frame.
	ErrNotRunning = errors.New("pipeline is not running")
)

// Options configures a Controller.
type Options struct {
	Cameras      *capture.CameraSource
	Classifier   detector.Classifier
	History      History
	Log          logrus.FieldLogger
	LiveInterval time.Duration
	FileInterval time.Duration
	// DefaultKind is loaded by New. Empty means face.
	DefaultKind detector.Kind
	// SnapshotDir receives snapshots saved without an explicit path.
	SnapshotDir string
	// CameraFPS is requested from a camera when live capture starts. Zero
	// leaves the camera default.
	CameraFPS int
}

// Controller is the pipeline state machine. All methods are safe for
// concurrent use; ticks are serialized by Run.
type Controller struct {
	cameras      *capture.CameraSource
	classifier   detector.Classifier
	custom       *detector.CustomParams
	history      History
	log          logrus.FieldLogger
	liveInterval time.Duration
	fileInterval time.Duration
	snapshotDir  string
	cameraFPS    int

	mu         sync.Mutex
	state      State
	mode       Mode
	source     capture.FrameSource
	device     int
	available  []int
	params     detector.Params
	customPath string
	lastFrame  *gocv.Mat
	detections int
	message    string

	sessionID string
	frames    int
	peak      int

	obsMu     sync.RWMutex
	observers []Observer

	// Observer events, queued under mu and delivered in order by flush.
	pending  []event
	draining bool

	wake chan struct{}
}

// New creates a controller in the Idle state, enumerates cameras and loads
// the default classifier. Load failures are reported in the status message.
func New(opts Options) *Controller {
	log := opts.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	if opts.Cameras == nil {
		opts.Cameras = capture.NewCameraSource(capture.DefaultProbeSlots)
	}
	if opts.LiveInterval <= 0 {
		opts.LiveInterval = DefaultLiveInterval
	}
	if opts.FileInterval <= 0 {
		opts.FileInterval = DefaultFileInterval
	}
	if opts.DefaultKind == "" {
		opts.DefaultKind = detector.KindFace
	}

	c := &Controller{
		cameras:      opts.Cameras,
		classifier:   opts.Classifier,
		custom:       detector.NewCustomParams(),
		history:      opts.History,
		log:          log.WithField("component", "pipeline"),
		liveInterval: opts.LiveInterval,
		fileInterval: opts.FileInterval,
		snapshotDir:  opts.SnapshotDir,
		cameraFPS:    opts.CameraFPS,
		device:       -1,
		wake:         make(chan struct{}, 1),
	}

	c.mu.Lock()
	c.refreshLocked()
	if len(c.available) == 0 {
		c.message = ErrNoCamera.Error()
	} else {
		c.message = "ready"
	}
	if err := c.selectPredefinedLocked(opts.DefaultKind); err != nil {
		c.message = err.Error()
	}
	c.mu.Unlock()

	return c
}

// Subscribe registers an observer for frames and status changes.
func (c *Controller) Subscribe(o Observer) {
	c.obsMu.Lock()
	defer c.obsMu.Unlock()
	c.observers = append(c.observers, o)
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Status returns a snapshot of the controller.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.statusLocked()
}

func (c *Controller) statusLocked() Status {
	st := Status{
		State:      c.state,
		Mode:       c.mode,
		Device:     c.device,
		Cameras:    append([]int{}, c.available...),
		Classifier: c.classifier.Kind(),
		Model:      c.classifier.ModelName(),
		Params:     c.activeParamsLocked(),
		Detections: c.detections,
		Frames:     c.frames,
		SessionID:  c.sessionID,
		Message:    c.message,
	}
	if c.source != nil {
		st.Source = c.source.Name()
	}
	st.Affordances = Affordances{
		Start:        c.state == Idle && len(c.available) > 0,
		Stop:         c.state == LiveRunning,
		LoadImage:    c.state == Idle,
		Reset:        c.state == FileRunning,
		CameraSelect: c.state == Idle,
		Snapshot:     c.state.Running() && c.lastFrame != nil,
	}
	return st
}

// Cameras returns the device indices found by the last enumeration.
func (c *Controller) Cameras() []int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]int{}, c.available...)
}

// RefreshCameras re-probes the device slots.
func (c *Controller) RefreshCameras() []int {
	c.mu.Lock()
	c.refreshLocked()
	if len(c.available) == 0 && c.state == Idle {
		c.message = ErrNoCamera.Error()
	}
	cams := append([]int{}, c.available...)
	c.queueStatusLocked()
	c.mu.Unlock()

	c.flush()
	return cams
}

// refreshLocked enumerates devices. The open device is busy and may fail to
// probe, so it is kept in the list while live.
func (c *Controller) refreshLocked() {
	found := c.cameras.Enumerate()
	if c.state == LiveRunning && !containsInt(found, c.device) {
		found = append(found, c.device)
		sort.Ints(found)
	}
	c.available = found
	c.log.WithField("cameras", found).Debug("cameras enumerated")
}

func containsInt(list []int, v int) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

// SelectLive opens camera device and starts live detection. A running
// source is released first.
func (c *Controller) SelectLive(device int) error {
	c.mu.Lock()

	if len(c.available) == 0 {
		c.message = ErrNoCamera.Error()
		c.log.Warn("live capture requested with no camera detected")
		c.queueStatusLocked()
		c.mu.Unlock()
		c.flush()
		return ErrNoCamera
	}

	c.closeSourceLocked()

	cam, err := c.cameras.Open(device)
	if err != nil {
		c.message = fmt.Sprintf("camera %d unavailable", device)
		c.log.WithField("device", device).WithError(err).Warn("camera open failed")
		c.queueStatusLocked()
		c.mu.Unlock()
		c.flush()
		return err
	}

	if c.cameraFPS > 0 {
		cam.SetFPS(c.cameraFPS)
	}

	c.source = capture.NewLiveSource(cam)
	c.state = LiveRunning
	c.mode = Live
	c.device = device
	c.message = fmt.Sprintf("camera %d running", device)
	c.startSessionLocked()
	c.log.WithFields(logrus.Fields{"device": device, "fps": cam.FPS(), "state": c.state}).Info("live capture started")

	c.queueStatusLocked()
	c.mu.Unlock()

	c.kick()
	c.flush()
	return nil
}

// SelectFile loads the image at path and starts detection on it. The
// current source is only replaced once the image has decoded.
func (c *Controller) SelectFile(path string) error {
	src, err := capture.OpenStatic(path)

	c.mu.Lock()
	if err != nil {
		c.message = fmt.Sprintf("could not load image %s", filepath.Base(path))
		c.log.WithField("path", path).WithError(err).Warn("image load failed")
		c.queueStatusLocked()
		c.mu.Unlock()
		c.flush()
		return err
	}

	c.closeSourceLocked()

	c.source = src
	c.state = FileRunning
	c.mode = File
	c.message = fmt.Sprintf("image %s loaded", src.Name())
	c.startSessionLocked()
	c.log.WithFields(logrus.Fields{"path": path, "state": c.state}).Info("image loaded")

	c.queueStatusLocked()
	c.mu.Unlock()

	c.kick()
	c.flush()
	return nil
}

// Stop releases the camera and returns to Idle. It is a no-op unless live.
func (c *Controller) Stop() error {
	c.mu.Lock()
	if c.state != LiveRunning {
		c.mu.Unlock()
		return nil
	}
	c.closeSourceLocked()
	c.message = "stopped"
	c.log.WithField("state", c.state).Info("live capture stopped")
	c.queueStatusLocked()
	c.mu.Unlock()

	c.flush()
	return nil
}

// Reset drops the loaded image and returns to Idle. It is a no-op unless a file is loaded.
func (c *Controller) Reset() error {
	c.mu.Lock()
	if c.state != FileRunning {
		c.mu.Unlock()
		return nil
	}
	c.closeSourceLocked()
	c.message = "reset"
	c.log.WithField("state", c.state).Info("image cleared")
	c.queueStatusLocked()
	c.mu.Unlock()

	c.flush()
	return nil
}

// Shutdown releases whatever source is active.
func (c *Controller) Shutdown() {
	c.mu.Lock()
	if c.source == nil {
		c.mu.Unlock()
		return
	}
	c.closeSourceLocked()
	c.message = "stopped"
	c.queueStatusLocked()
	c.mu.Unlock()

	c.flush()
}

// closeSourceLocked releases the active source, clears frame state and ends
// the history session. The state becomes Idle.
func (c *Controller) closeSourceLocked() {
	if c.source != nil {
		if err := c.source.Close(); err != nil {
			c.log.WithField("source", c.source.Name()).WithError(err).Warn("error releasing source")
		}
		c.source = nil
	}
	if c.lastFrame != nil {
		c.lastFrame.Close()
		c.lastFrame = nil
	}
	c.endSessionLocked()
	c.state = Idle
	c.device = -1
	c.detections = 0
	c.frames = 0
	c.peak = 0
}

func (c *Controller) startSessionLocked() {
	c.frames = 0
	c.peak = 0
	c.sessionID = ""
	if c.history == nil {
		return
	}
	id, err := c.history.StartSession(c.mode.String(), c.source.Name(), string(c.classifier.Kind()))
	if err != nil {
		c.log.WithError(err).Warn("failed to record session")
		return
	}
	c.sessionID = id
}

func (c *Controller) endSessionLocked() {
	if c.history == nil || c.sessionID == "" {
		c.sessionID = ""
		return
	}
	if err := c.history.EndSession(c.sessionID, c.frames, c.peak); err != nil {
		c.log.WithField("session", c.sessionID).WithError(err).Warn("failed to close session")
	}
	c.sessionID = ""
}

// kick wakes Run so a new source starts ticking without waiting out an idle interval.
func (c *Controller) kick() {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// SelectClassifier activates a predefined kind, or the last loaded custom model.
// If a predefined model fails to load the face model is used and the error returned.
func (c *Controller) SelectClassifier(kind detector.Kind) error {
	c.mu.Lock()

	var err error
	if kind == detector.KindCustom {
		err = c.reloadCustomLocked()
	} else {
		err = c.selectPredefinedLocked(kind)
	}
	if err != nil {
		c.message = err.Error()
	} else {
		c.message = fmt.Sprintf("%s classifier active", kind)
	}

	c.queueStatusLocked()
	c.mu.Unlock()

	c.flush()
	return err
}

func (c *Controller) selectPredefinedLocked(kind detector.Kind) error {
	before := c.classifier.Kind()
	params, err := c.classifier.LoadPredefined(kind)
	if err != nil && errors.Is(err, detector.ErrUnknownKind) {
		return err
	}
	// When neither kind nor the face fallback loaded, the previous model is
	// still active and keeps its parameters.
	if err == nil || c.classifier.Kind() != before || before == "" {
		c.params = params
	}
	if err != nil {
		c.log.WithField("kind", kind).WithError(err).Warn("classifier unavailable")
		return err
	}
	c.log.WithField("kind", kind).Info("classifier selected")
	return nil
}

func (c *Controller) reloadCustomLocked() error {
	if c.customPath == "" {
		return errors.Wrap(detector.ErrModelLoad, "no custom classifier loaded")
	}
	if _, err := c.classifier.LoadCustom(c.customPath); err != nil {
		return err
	}
	return nil
}

// LoadCustomClassifier loads a user model and makes it active. It returns the
// model's file name. On failure the previous model stays active.
func (c *Controller) LoadCustomClassifier(path string) (string, error) {
	c.mu.Lock()

	name, err := c.classifier.LoadCustom(path)
	if err != nil {
		c.message = fmt.Sprintf("could not load classifier %s", filepath.Base(path))
	} else {
		c.customPath = path
		c.message = fmt.Sprintf("custom classifier %s loaded", name)
	}

	c.queueStatusLocked()
	c.mu.Unlock()

	c.flush()
	return name, err
}

// SetScaleFactor updates the custom parameter set.
func (c *Controller) SetScaleFactor(v float64) {
	c.custom.SetScaleFactor(v)
	c.publishStatus()
}

// SetMinNeighbors updates the custom parameter set.
func (c *Controller) SetMinNeighbors(n int) {
	c.custom.SetMinNeighbors(n)
	c.publishStatus()
}

// SetMinSize updates the custom parameter set with a square window of edge pixels.
func (c *Controller) SetMinSize(edge int) {
	c.custom.SetMinSize(edge)
	c.publishStatus()
}

// CustomParams returns the current custom parameter set.
func (c *Controller) CustomParams() detector.Params {
	return c.custom.Get()
}

// activeParamsLocked returns the parameters used on the next tick.
func (c *Controller) activeParamsLocked() detector.Params {
	if c.classifier.Kind() == detector.KindCustom {
		return c.custom.Get()
	}
	return c.params
}

// Snapshot writes the last annotated frame to path and returns the path
// used. An empty path generates a name under the snapshot directory.
func (c *Controller) Snapshot(path string) (string, error) {
	c.mu.Lock()
	if c.lastFrame == nil {
		c.mu.Unlock()
		return "", errors.Wrap(ErrNotRunning, "no frame to save")
	}
	frame := c.lastFrame.Clone()
	sessionID := c.sessionID
	detections := c.detections
	c.mu.Unlock()
	defer frame.Close()

	if path == "" {
		path = filepath.Join(c.snapshotDir, fmt.Sprintf("snapshot-%s.png", time.Now().Format("20060102-150405.000")))
	}

	if err := capture.SaveImage(path, frame); err != nil {
		c.log.WithField("path", path).WithError(err).Warn("snapshot failed")
		c.setMessage(fmt.Sprintf("could not save %s", filepath.Base(path)))
		return "", err
	}

	if c.history != nil && sessionID != "" {
		if err := c.history.RecordSnapshot(sessionID, path, detections); err != nil {
			c.log.WithField("path", path).WithError(err).Warn("failed to record snapshot")
		}
	}

	c.log.WithField("path", path).Info("snapshot saved")
	c.setMessage(fmt.Sprintf("saved %s", filepath.Base(path)))
	return path, nil
}

func (c *Controller) setMessage(msg string) {
	c.mu.Lock()
	c.message = msg
	c.queueStatusLocked()
	c.mu.Unlock()
	c.flush()
}
