// Package detector runs Haar-cascade object detection on video frames.
package detector

import (
	"image"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

var (
	// ErrModelLoad is returned when a cascade model is missing or cannot be parsed.
	ErrModelLoad = errors.New("classifier model could not be loaded")
	// ErrDetection is returned when a frame cannot be processed (nil, empty or unsupported type).
	ErrDetection = errors.New("detection failed")
	// ErrUnknownKind is returned for a classifier kind that has no preset.
	ErrUnknownKind = errors.New("unknown classifier kind")
)

// Detector defines the interface for object detection implementations.
type Detector interface {
	// Detect runs the active model over frame using params and returns the
	// matched regions in frame pixel coordinates. It returns an empty slice,
	// never nil, when nothing matches.
	Detect(frame *gocv.Mat, params Params) ([]image.Rectangle, error)

	// Close releases any resources held by the detector.
	Close() error
}

// Classifier is a Detector whose model can be swapped at runtime.
type Classifier interface {
	Detector

	// LoadPredefined activates the bundled model for kind and returns its preset.
	// On failure it falls back to KindFace and still returns a non-nil error.
	LoadPredefined(kind Kind) (Params, error)

	// LoadCustom activates a user supplied model file and returns its file name.
	// On failure the previously active model is kept.
	LoadCustom(path string) (string, error)

	// Kind returns the kind of the active model.
	Kind() Kind

	// ModelName returns the file name of the active model, or "" if none is loaded.
	ModelName() string
}
