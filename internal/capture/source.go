package capture

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// ErrFrameLost is returned by a FrameSource that can no longer deliver frames.
var ErrFrameLost = errors.New("frame source lost")

// FrameSource supplies the next frame to the detection pipeline.
type FrameSource interface {
	// Next returns the next frame. The caller owns the returned Mat and must close it.
	Next() (*gocv.Mat, error)
	// Close releases the underlying device or image. It is safe to call more than once.
	Close() error
	// Name describes the source for status messages and history.
	Name() string
}

// LiveSource reads frames from an open camera.
type LiveSource struct {
	cam Camera
}

// NewLiveSource wraps an open camera. The source takes ownership of cam.
func NewLiveSource(cam Camera) *LiveSource {
	return &LiveSource{cam: cam}
}

// Next pulls a frame from the camera. A failed read is reported as ErrFrameLost.
func (s *LiveSource) Next() (*gocv.Mat, error) {
	frame, ok := s.cam.ReadFrame()
	if !ok {
		return nil, errors.Wrapf(ErrFrameLost, "camera %d", s.cam.DeviceID())
	}
	return frame, nil
}

// Close releases the camera.
func (s *LiveSource) Close() error {
	return s.cam.Close()
}

// Name returns "camera <index>".
func (s *LiveSource) Name() string {
	return fmt.Sprintf("camera %d", s.cam.DeviceID())
}

// StaticSource repeatedly yields copies of a single still image.
type StaticSource struct {
	mu     sync.Mutex
	img    gocv.Mat
	name   string
	closed bool
}

// OpenStatic loads the image at path. It fails with ErrImageLoad if the file
// is missing or not decodable.
func OpenStatic(path string) (*StaticSource, error) {
	img, err := LoadImage(path)
	if err != nil {
		img.Close()
		return nil, err
	}
	return NewStaticSource(img, filepath.Base(path)), nil
}

// NewStaticSource wraps an already decoded image. The source takes ownership of img.
func NewStaticSource(img gocv.Mat, name string) *StaticSource {
	return &StaticSource{img: img, name: name}
}

// Next returns a copy of the image so callers may draw on it.
func (s *StaticSource) Next() (*gocv.Mat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.img.Empty() {
		return nil, errors.Wrapf(ErrFrameLost, "image %s", s.name)
	}

	frame := s.img.Clone()
	return &frame, nil
}

// Close releases the image.
func (s *StaticSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.img.Close()
}

// Name returns the image file name.
func (s *StaticSource) Name() string {
	return s.name
}
