package detector

import (
	"image"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// MockDetector is a test implementation of the Classifier interface.
// It allows tests to control the detection results.
type MockDetector struct {
	mu         sync.Mutex
	boxes      []image.Rectangle
	err        error
	loadErr    map[Kind]error
	customErr  error
	kind       Kind
	model      string
	lastParams Params
	calls      int
}

// NewMockDetector creates a new MockDetector with the face model active.
func NewMockDetector() *MockDetector {
	_, file, _ := Preset(KindFace)
	return &MockDetector{
		kind:    KindFace,
		model:   file,
		loadErr: make(map[Kind]error),
	}
}

// SetBoxes sets the boxes that will be returned by Detect.
func (m *MockDetector) SetBoxes(boxes []image.Rectangle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.boxes = boxes
}

// SetError sets the error that will be returned by Detect.
func (m *MockDetector) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// FailLoad makes LoadPredefined(kind) fail with ErrModelLoad.
func (m *MockDetector) FailLoad(kind Kind) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loadErr[kind] = errors.Wrapf(ErrModelLoad, "mock %s", kind)
}

// FailCustom makes LoadCustom fail with ErrModelLoad.
func (m *MockDetector) FailCustom() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.customErr = errors.Wrap(ErrModelLoad, "mock custom")
}

// Detect returns the pre-configured boxes or error and records params.
func (m *MockDetector) Detect(frame *gocv.Mat, params Params) ([]image.Rectangle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	m.lastParams = params

	if frame == nil || frame.Empty() {
		return nil, errors.Wrap(ErrDetection, "empty frame")
	}
	if m.err != nil {
		return nil, m.err
	}

	boxes := make([]image.Rectangle, len(m.boxes))
	copy(boxes, m.boxes)
	return boxes, nil
}

// LoadPredefined switches the mock kind. A configured failure falls back to
// face, or keeps the current model when face is failing too.
func (m *MockDetector) LoadPredefined(kind Kind) (Params, error) {
	params, file, ok := Preset(kind)
	if !ok {
		return Params{}, errors.Wrapf(ErrUnknownKind, "%q", kind)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.loadErr[kind]; err != nil {
		faceParams, faceFile, _ := Preset(KindFace)
		if kind != KindFace && m.loadErr[KindFace] == nil {
			m.kind = KindFace
			m.model = faceFile
		}
		return faceParams, err
	}

	m.kind = kind
	m.model = file
	return params, nil
}

// LoadCustom switches to the custom kind unless FailCustom was called.
func (m *MockDetector) LoadCustom(path string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.customErr != nil {
		return "", m.customErr
	}
	m.kind = KindCustom
	m.model = filepath.Base(path)
	return m.model, nil
}

// Kind returns the active mock kind.
func (m *MockDetector) Kind() Kind {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.kind
}

// ModelName returns the active mock model name.
func (m *MockDetector) ModelName() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.model
}

// LastParams returns the params passed to the most recent Detect call.
func (m *MockDetector) LastParams() Params {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastParams
}

// Calls returns how many times Detect was called.
func (m *MockDetector) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Close is a no-op for the mock detector.
func (m *MockDetector) Close() error {
	return nil
}
