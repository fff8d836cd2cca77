package capture

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// ErrImageLoad is returned when an image file is missing or cannot be decoded.
var ErrImageLoad = errors.New("image could not be loaded")

// ErrImageSave is returned when an image cannot be encoded or written.
var ErrImageSave = errors.New("image could not be saved")

// LoadImage reads and decodes the image at path as a 3-channel BGR Mat.
// The caller owns the returned Mat.
func LoadImage(path string) (gocv.Mat, error) {
	if path == "" {
		return gocv.NewMat(), errors.Wrap(ErrImageLoad, "empty path")
	}
	if _, err := os.Stat(path); err != nil {
		return gocv.NewMat(), errors.Wrapf(ErrImageLoad, "%s: %v", path, err)
	}

	img := gocv.IMRead(path, gocv.IMReadColor)
	if img.Empty() {
		return img, errors.Wrapf(ErrImageLoad, "%s: not a decodable image", path)
	}
	return img, nil
}

// SaveImage encodes img according to the extension of path and writes it,
// creating parent directories as needed.
func SaveImage(path string, img gocv.Mat) error {
	if img.Empty() {
		return errors.Wrap(ErrImageSave, "empty image")
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return errors.Wrapf(ErrImageSave, "%s: %v", path, err)
		}
	}
	if ok := gocv.IMWrite(path, img); !ok {
		return errors.Wrapf(ErrImageSave, "%s: encoder refused image", path)
	}
	return nil
}
