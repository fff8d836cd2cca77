package detector

import (
	"bytes"
	"image"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"
)

// modelHeaderSize is how much of a model file is inspected before handing it to OpenCV.
const modelHeaderSize = 4096

// CascadeDetector implements Classifier with an OpenCV Haar cascade.
type CascadeDetector struct {
	dir        string
	log        logrus.FieldLogger
	mu         sync.Mutex
	classifier gocv.CascadeClassifier
	loaded     bool
	kind       Kind
	model      string
}

// NewCascadeDetector creates a detector resolving predefined models under dir.
// No model is loaded until LoadPredefined or LoadCustom succeeds.
func NewCascadeDetector(dir string, log logrus.FieldLogger) *CascadeDetector {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &CascadeDetector{
		dir: dir,
		log: log.WithField("component", "detector"),
	}
}

// LoadPredefined activates the bundled model for kind.
//
// If that model cannot be loaded the detector falls back to the face model and
// returns the face preset together with an error wrapping ErrModelLoad. If the
// face model cannot be loaded either, the previously active model is kept.
func (d *CascadeDetector) LoadPredefined(kind Kind) (Params, error) {
	params, file, ok := Preset(kind)
	if !ok {
		return Params{}, errors.Wrapf(ErrUnknownKind, "%q", kind)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	err := d.loadLocked(filepath.Join(d.dir, file))
	if err == nil {
		d.kind = kind
		d.model = file
		d.log.WithFields(logrus.Fields{"kind": kind, "model": file}).Info("classifier loaded")
		return params, nil
	}

	d.log.WithFields(logrus.Fields{"kind": kind, "model": file}).WithError(err).Warn("classifier load failed")

	faceParams, faceFile, _ := Preset(KindFace)
	if kind != KindFace {
		if ferr := d.loadLocked(filepath.Join(d.dir, faceFile)); ferr == nil {
			d.kind = KindFace
			d.model = faceFile
			d.log.WithField("model", faceFile).Info("fell back to face classifier")
			return faceParams, errors.Wrapf(err, "%s, fell back to %s", kind, KindFace)
		}
	}

	return faceParams, errors.Wrapf(err, "%s", kind)
}

// LoadCustom activates the model at path and returns its file name.
// On failure the previously active model stays in place.
func (d *CascadeDetector) LoadCustom(path string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.loadLocked(path); err != nil {
		d.log.WithField("path", path).WithError(err).Warn("custom classifier load failed")
		return "", err
	}

	d.kind = KindCustom
	d.model = filepath.Base(path)
	d.log.WithField("model", d.model).Info("custom classifier loaded")
	return d.model, nil
}

// loadLocked swaps in the model at path. The active classifier is only
// replaced once the new one has loaded.
func (d *CascadeDetector) loadLocked(path string) error {
	if err := checkModelFile(path); err != nil {
		return err
	}

	next := gocv.NewCascadeClassifier()
	if !next.Load(path) {
		next.Close()
		return errors.Wrapf(ErrModelLoad, "%s: rejected by OpenCV", path)
	}

	if d.loaded {
		d.classifier.Close()
	}
	d.classifier = next
	d.loaded = true
	return nil
}

// checkModelFile rejects files that are missing or are not OpenCV storage documents.
func checkModelFile(path string) error {
	if path == "" {
		return errors.Wrap(ErrModelLoad, "empty path")
	}

	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(ErrModelLoad, "%s: %v", path, err)
	}
	defer f.Close()

	head := make([]byte, modelHeaderSize)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return errors.Wrapf(ErrModelLoad, "%s: %v", path, err)
	}
	if !bytes.Contains(head[:n], []byte("<opencv_storage>")) {
		return errors.Wrapf(ErrModelLoad, "%s: not an OpenCV cascade file", path)
	}
	return nil
}

// Detect converts frame to grayscale and runs multi-scale detection with the clamped params.
func (d *CascadeDetector) Detect(frame *gocv.Mat, params Params) ([]image.Rectangle, error) {
	if frame == nil || frame.Empty() {
		return nil, errors.Wrap(ErrDetection, "empty frame")
	}

	gray := gocv.NewMat()
	defer gray.Close()

	switch frame.Type() {
	case gocv.MatTypeCV8UC1:
		frame.CopyTo(&gray)
	case gocv.MatTypeCV8UC3:
		gocv.CvtColor(*frame, &gray, gocv.ColorBGRToGray)
	case gocv.MatTypeCV8UC4:
		gocv.CvtColor(*frame, &gray, gocv.ColorBGRAToGray)
	default:
		return nil, errors.Wrapf(ErrDetection, "unsupported frame type %v", frame.Type())
	}

	p := params.Clamp()

	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.loaded {
		return nil, errors.Wrap(ErrModelLoad, "no classifier loaded")
	}

	rects := d.classifier.DetectMultiScaleWithParams(gray, p.ScaleFactor, p.MinNeighbors, 0, p.MinSize, image.Point{})

	bounds := image.Rect(0, 0, frame.Cols(), frame.Rows())
	boxes := make([]image.Rectangle, 0, len(rects))
	for _, r := range rects {
		if r = r.Intersect(bounds); !r.Empty() {
			boxes = append(boxes, r)
		}
	}

	return boxes, nil
}

// Kind returns the kind of the active model.
func (d *CascadeDetector) Kind() Kind {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.kind
}

// ModelName returns the file name of the active model.
func (d *CascadeDetector) ModelName() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.model
}

// Close releases the active classifier.
func (d *CascadeDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.loaded {
		return nil
	}
	d.loaded = false
	return d.classifier.Close()
}
