package server

import (
	"image"
	"image/color"
	"net/http"
	"sync"
	"time"

	"github.com/mattn/go-mjpeg"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"

	"github.com/ayusman/haarlens/internal/pipeline"
)

// Display region defaults.
const (
	DefaultDisplayWidth  = 640
	DefaultDisplayHeight = 480
	// streamInterval bounds how often a single viewer is sent a frame.
	streamInterval = 33 * time.Millisecond
)

// Display is the presentation sink of the pipeline. It letterboxes each
// annotated frame into a fixed region, encodes it as JPEG and publishes it
// on an MJPEG stream.
type Display struct {
	width  int
	height int
	stream *mjpeg.Stream
	log    logrus.FieldLogger

	mu   sync.RWMutex
	last []byte
}

// NewDisplay creates a display of width x height pixels.
func NewDisplay(width, height int, log logrus.FieldLogger) *Display {
	if width <= 0 {
		width = DefaultDisplayWidth
	}
	if height <= 0 {
		height = DefaultDisplayHeight
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Display{
		width:  width,
		height: height,
		stream: mjpeg.NewStreamWithInterval(streamInterval),
		log:    log.WithField("component", "display"),
	}
}

// Size returns the display region.
func (d *Display) Size() image.Point {
	return image.Pt(d.width, d.height)
}

// Display renders frame into the display region.
func (d *Display) Display(frame *gocv.Mat) {
	if frame == nil || frame.Empty() {
		return
	}

	fitted, err := FitToRegion(*frame, d.width, d.height)
	if err != nil {
		d.log.WithError(err).Warn("frame not displayed")
		return
	}
	defer fitted.Close()

	d.publish(fitted)
}

// StatusChanged blanks the region when the pipeline goes idle.
func (d *Display) StatusChanged(st pipeline.Status) {
	if st.State.Running() {
		return
	}
	d.Clear()
}

// Clear shows an empty region.
func (d *Display) Clear() {
	blank := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), d.height, d.width, gocv.MatTypeCV8UC3)
	defer blank.Close()
	d.publish(blank)
}

func (d *Display) publish(img gocv.Mat) {
	buf, err := gocv.IMEncode(".jpg", img)
	if err != nil {
		d.log.WithError(err).Warn("jpeg encoding failed")
		return
	}
	data := buf.GetBytes()
	buf.Close()

	d.mu.Lock()
	d.last = data
	d.mu.Unlock()

	if err := d.stream.Update(data); err != nil {
		d.log.WithError(err).Debug("stream update failed")
	}
}

// Frame returns the last published JPEG, or nil if nothing was displayed yet.
func (d *Display) Frame() []byte {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.last
}

// Viewers returns how many clients are watching the stream.
func (d *Display) Viewers() int {
	return d.stream.NWatch()
}

// Stream returns the MJPEG handler.
func (d *Display) Stream() http.Handler {
	return d.stream
}

// Close ends the stream for all viewers.
func (d *Display) Close() error {
	return d.stream.Close()
}

// FitToRegion scales src to fit inside width x height preserving its aspect
// ratio, and centers it on a black background of exactly that size.
func FitToRegion(src gocv.Mat, width, height int) (gocv.Mat, error) {
	if src.Empty() {
		return gocv.NewMat(), errors.New("empty frame")
	}
	if width < 1 || height < 1 {
		return gocv.NewMat(), errors.Errorf("invalid region %dx%d", width, height)
	}

	w, h := src.Cols(), src.Rows()
	ratio := float64(width) / float64(w)
	if r := float64(height) / float64(h); r < ratio {
		ratio = r
	}
	newW := int(float64(w)*ratio + 0.5)
	newH := int(float64(h)*ratio + 0.5)
	if newW < 1 {
		newW = 1
	}
	if newH < 1 {
		newH = 1
	}
	if newW > width {
		newW = width
	}
	if newH > height {
		newH = height
	}

	resized := gocv.NewMat()
	defer resized.Close()

	interp := gocv.InterpolationLinear
	if newW < w {
		interp = gocv.InterpolationArea
	}
	gocv.Resize(src, &resized, image.Pt(newW, newH), 0, 0, interp)

	top := (height - newH) / 2
	left := (width - newW) / 2

	dst := gocv.NewMat()
	gocv.CopyMakeBorder(resized, &dst, top, height-newH-top, left, width-newW-left, gocv.BorderConstant, color.RGBA{})
	return dst, nil
}
