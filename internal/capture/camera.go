// Package capture provides camera capture, frame sources and image file I/O using GoCV (OpenCV).
package capture

import (
	"sync"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// Default camera settings
const (
	DefaultFPS    = 30
	DefaultWidth  = 640
	DefaultHeight = 480

	// DefaultProbeSlots is the number of device indices tried by Enumerate.
	DefaultProbeSlots = 3
)

// ErrDeviceUnavailable is returned when a capture device cannot be opened or has gone away.
var ErrDeviceUnavailable = errors.New("capture device unavailable")

// Camera defines the interface for camera capture implementations.
type Camera interface {
	Open() error
	// Close releases the device. Calling it on a closed camera is a no-op.
	Close() error
	// ReadFrame pulls the next frame. ok is false when the stream ended or the
	// device disconnected; the caller owns the returned Mat.
	ReadFrame() (frame *gocv.Mat, ok bool)
	SetFPS(fps int)
	FPS() int
	IsOpen() bool
	DeviceID() int
}

// cameraImpl manages video capture from a camera device using GoCV.
type cameraImpl struct {
	deviceID int
	capture  *gocv.VideoCapture
	mu       sync.Mutex
	running  bool
	fps      int
}

// NewCamera creates a new Camera with the given device ID.
func NewCamera(deviceID int) Camera {
	return &cameraImpl{
		deviceID: deviceID,
		fps:      DefaultFPS,
		running:  false,
		capture:  nil,
	}
}

// Open opens the camera for capturing frames.
// It requests 640x480 for performance.
func (c *cameraImpl) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return nil
	}

	capture, err := gocv.OpenVideoCapture(c.deviceID)
	if err != nil {
		return errors.Wrapf(ErrDeviceUnavailable, "device %d: %v", c.deviceID, err)
	}
	if !capture.IsOpened() {
		capture.Close()
		return errors.Wrapf(ErrDeviceUnavailable, "device %d did not open", c.deviceID)
	}

	capture.Set(gocv.VideoCaptureFrameWidth, DefaultWidth)
	capture.Set(gocv.VideoCaptureFrameHeight, DefaultHeight)
	capture.Set(gocv.VideoCaptureFPS, float64(c.fps))

	c.capture = capture
	c.running = true

	return nil
}

// Close closes the camera and releases resources.
func (c *cameraImpl) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running || c.capture == nil {
		c.running = false
		return nil
	}

	err := c.capture.Close()
	c.capture = nil
	c.running = false

	return err
}

// ReadFrame reads a single frame from the camera.
// A failed or empty read reports ok=false rather than an error.
func (c *cameraImpl) ReadFrame() (*gocv.Mat, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running || c.capture == nil {
		return nil, false
	}

	mat := gocv.NewMat()
	if ok := c.capture.Read(&mat); !ok || mat.Empty() {
		mat.Close()
		return nil, false
	}

	return &mat, true
}

// SetFPS sets the frames per second for capture.
// Values less than or equal to 0 are ignored.
func (c *cameraImpl) SetFPS(fps int) {
	if fps <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.fps = fps

	if c.capture != nil {
		c.capture.Set(gocv.VideoCaptureFPS, float64(fps))
	}
}

// FPS returns the current frames per second setting.
func (c *cameraImpl) FPS() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.fps
}

// IsOpen returns true if the camera is currently open and running.
func (c *cameraImpl) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.running
}

// DeviceID returns the device index this camera was created for.
func (c *cameraImpl) DeviceID() int {
	return c.deviceID
}

// Opener constructs an unopened Camera for a device index.
type Opener func(deviceID int) Camera

// CameraSource enumerates and opens capture devices.
type CameraSource struct {
	newCamera Opener
	slots     int
}

// NewCameraSource returns a CameraSource probing slots device indices with real cameras.
func NewCameraSource(slots int) *CameraSource {
	return NewCameraSourceWith(NewCamera, slots)
}

// NewCameraSourceWith returns a CameraSource using newCamera to build devices.
// Slots less than or equal to 0 use DefaultProbeSlots.
func NewCameraSourceWith(newCamera Opener, slots int) *CameraSource {
	if slots <= 0 {
		slots = DefaultProbeSlots
	}
	return &CameraSource{newCamera: newCamera, slots: slots}
}

// Enumerate tries to open each probe slot and immediately releases it.
// It returns the indices that opened; an empty slice means no camera, not an error.
func (s *CameraSource) Enumerate() []int {
	available := make([]int, 0, s.slots)
	for id := 0; id < s.slots; id++ {
		cam := s.newCamera(id)
		if err := cam.Open(); err != nil {
			continue
		}
		cam.Close()
		available = append(available, id)
	}
	return available
}

// Open opens the device at deviceID. The caller owns the returned camera until Close.
func (s *CameraSource) Open(deviceID int) (Camera, error) {
	if deviceID < 0 {
		return nil, errors.Wrapf(ErrDeviceUnavailable, "invalid device index %d", deviceID)
	}

	cam := s.newCamera(deviceID)
	if err := cam.Open(); err != nil {
		if !errors.Is(err, ErrDeviceUnavailable) {
			err = errors.Wrapf(ErrDeviceUnavailable, "device %d: %v", deviceID, err)
		}
		return nil, err
	}
	return cam, nil
}
