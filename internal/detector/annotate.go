package detector

import (
	"image"
	"image/color"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// BoxColor is the outline color for detections (green in BGR order).
var BoxColor = color.RGBA{R: 0, G: 255, B: 0, A: 0}

// BoxThickness is the outline width in pixels.
const BoxThickness = 2

// Annotate draws an outline for every box onto frame in place.
func Annotate(frame *gocv.Mat, boxes []image.Rectangle) error {
	if frame == nil || frame.Empty() {
		return errors.Wrap(ErrDetection, "cannot annotate empty frame")
	}
	for _, b := range boxes {
		gocv.Rectangle(frame, b, BoxColor, BoxThickness)
	}
	return nil
}
