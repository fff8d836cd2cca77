package capture

import (
	"sync"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// MockCamera plays back pre-recorded frames for testing
type MockCamera struct {
	deviceID     int
	frames       []*gocv.Mat
	index        int
	loop         bool
	mu           sync.Mutex
	running      bool
	unavailable  bool
	disconnected bool
	opens        int
	fps          int
}

func NewMockCamera(frames []*gocv.Mat, loop bool) *MockCamera {
	return &MockCamera{
		frames: frames,
		loop:   loop,
	}
}

// NewUnavailableCamera returns a MockCamera whose Open always fails.
func NewUnavailableCamera(deviceID int) *MockCamera {
	return &MockCamera{deviceID: deviceID, unavailable: true}
}

func (c *MockCamera) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.unavailable {
		return errors.Wrapf(ErrDeviceUnavailable, "mock device %d", c.deviceID)
	}
	c.running = true
	c.disconnected = false
	c.index = 0
	c.opens++
	return nil
}

func (c *MockCamera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.running = false
	return nil
}

func (c *MockCamera) ReadFrame() (*gocv.Mat, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running || c.disconnected || len(c.frames) == 0 {
		return nil, false
	}

	if c.index >= len(c.frames) {
		if !c.loop {
			return nil, false
		}
		c.index = 0
	}

	// Clone the frame so the original isn't modified
	frame := c.frames[c.index].Clone()
	c.index++

	return &frame, true
}

// SetFPS records fps; values less than or equal to 0 are ignored.
func (c *MockCamera) SetFPS(fps int) {
	if fps <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fps = fps
}

func (c *MockCamera) FPS() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fps == 0 {
		return DefaultFPS
	}
	return c.fps
}

func (c *MockCamera) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}
func (c *MockCamera) DeviceID() int { return c.deviceID }

// Disconnect simulates the device being unplugged: reads fail until the next Open.
func (c *MockCamera) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disconnected = true
}

// Opens reports how many times Open succeeded.
func (c *MockCamera) Opens() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.opens
}

// SetFrames replaces the frame sequence
func (c *MockCamera) SetFrames(frames []*gocv.Mat) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = frames
	c.index = 0
}

// Reset restarts playback from the beginning
func (c *MockCamera) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.index = 0
}

// MockRig is a set of fake device slots. Slots without an attached camera fail to open.
type MockRig struct {
	mu      sync.Mutex
	devices map[int]*MockCamera
}

// NewMockRig returns an empty rig: every slot is unavailable.
func NewMockRig() *MockRig {
	return &MockRig{devices: make(map[int]*MockCamera)}
}

// Attach plugs cam into slot id.
func (r *MockRig) Attach(id int, cam *MockCamera) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cam.mu.Lock()
	cam.deviceID = id
	cam.mu.Unlock()
	r.devices[id] = cam
}

// Detach unplugs slot id; an open camera in that slot stops delivering frames.
func (r *MockRig) Detach(id int) {
	r.mu.Lock()
	cam, ok := r.devices[id]
	delete(r.devices, id)
	r.mu.Unlock()

	if ok {
		cam.Disconnect()
	}
}

// Opener returns an Opener resolving slots against the rig.
func (r *MockRig) Opener() Opener {
	return func(deviceID int) Camera {
		r.mu.Lock()
		defer r.mu.Unlock()
		if cam, ok := r.devices[deviceID]; ok {
			return cam
		}
		return NewUnavailableCamera(deviceID)
	}
}
