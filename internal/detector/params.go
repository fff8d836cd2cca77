package detector

import (
	"image"
	"sync"

	"github.com/pkg/errors"
)

// Kind identifies a classifier model family.
type Kind string

const (
	// KindFace detects frontal faces. It is the fallback for every other kind.
	KindFace Kind = "face"
	// KindEye detects eyes.
	KindEye Kind = "eye"
	// KindSmile detects smiling mouths.
	KindSmile Kind = "smile"
	// KindUpperBody detects head and shoulders.
	KindUpperBody Kind = "upperbody"
	// KindFullBody detects standing people.
	KindFullBody Kind = "fullbody"
	// KindProfileFace detects faces seen from the side.
	KindProfileFace Kind = "profileface"
	// KindCustom is a user supplied model tuned through CustomParams.
	KindCustom Kind = "custom"
)

// MinScaleFactor is the value a scale factor at or below 1.0 is clamped to.
const MinScaleFactor = 1.01

// Params controls multi-scale cascade detection.
type Params struct {
	// ScaleFactor is the shrink ratio between pyramid levels. Must be > 1.0;
	// smaller means more levels, slower and more thorough.
	ScaleFactor float64 `json:"scale_factor"`
	// MinNeighbors is how many overlapping raw hits a region needs to be kept.
	// Higher means fewer false positives.
	MinNeighbors int `json:"min_neighbors"`
	// MinSize is the smallest window, in pixels, considered during detection.
	MinSize image.Point `json:"min_size"`
}

// Clamp returns p moved to the nearest valid values.
func (p Params) Clamp() Params {
	if p.ScaleFactor <= 1.0 {
		p.ScaleFactor = MinScaleFactor
	}
	if p.MinNeighbors < 0 {
		p.MinNeighbors = 0
	}
	if p.MinSize.X < 1 {
		p.MinSize.X = 1
	}
	if p.MinSize.Y < 1 {
		p.MinSize.Y = 1
	}
	return p
}

type preset struct {
	file   string
	params Params
}

var presets = map[Kind]preset{
	KindFace:        {file: "haarcascade_frontalface_default.xml", params: Params{ScaleFactor: 1.05, MinNeighbors: 3, MinSize: image.Pt(30, 30)}},
	KindEye:         {file: "haarcascade_eye.xml", params: Params{ScaleFactor: 1.1, MinNeighbors: 5, MinSize: image.Pt(20, 20)}},
	KindSmile:       {file: "haarcascade_smile.xml", params: Params{ScaleFactor: 1.1, MinNeighbors: 15, MinSize: image.Pt(25, 25)}},
	KindUpperBody:   {file: "haarcascade_upperbody.xml", params: Params{ScaleFactor: 1.05, MinNeighbors: 3, MinSize: image.Pt(50, 50)}},
	KindFullBody:    {file: "haarcascade_fullbody.xml", params: Params{ScaleFactor: 1.05, MinNeighbors: 3, MinSize: image.Pt(50, 50)}},
	KindProfileFace: {file: "haarcascade_profileface.xml", params: Params{ScaleFactor: 1.1, MinNeighbors: 3, MinSize: image.Pt(30, 30)}},
}

// DefaultCustomParams is the starting point of the custom parameter set.
var DefaultCustomParams = Params{ScaleFactor: 1.05, MinNeighbors: 3, MinSize: image.Pt(30, 30)}

// Kinds returns the predefined kinds in display order. KindCustom is not included.
func Kinds() []Kind {
	return []Kind{KindFace, KindEye, KindSmile, KindUpperBody, KindFullBody, KindProfileFace}
}

// Preset returns the parameters and model file for a predefined kind.
func Preset(kind Kind) (Params, string, bool) {
	p, ok := presets[kind]
	if !ok {
		return Params{}, "", false
	}
	return p.params, p.file, true
}

// ParseKind validates s as a classifier kind, custom included.
func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	if k == KindCustom {
		return k, nil
	}
	if _, ok := presets[k]; !ok {
		return "", errors.Wrapf(ErrUnknownKind, "%q", s)
	}
	return k, nil
}

// CustomParams is the one mutable parameter set. Each setter is independent;
// concurrent writers resolve last-write-wins.
type CustomParams struct {
	mu sync.RWMutex
	p  Params
}

// NewCustomParams returns a set initialised to DefaultCustomParams.
func NewCustomParams() *CustomParams {
	return &CustomParams{p: DefaultCustomParams}
}

// SetScaleFactor stores v, clamped to a valid scale factor.
func (c *CustomParams) SetScaleFactor(v float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.p.ScaleFactor = v
	c.p = c.p.Clamp()
}

// SetMinNeighbors stores n, clamped to zero or more.
func (c *CustomParams) SetMinNeighbors(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.p.MinNeighbors = n
	c.p = c.p.Clamp()
}

// SetMinSize sets a square minimum window of edge pixels.
func (c *CustomParams) SetMinSize(edge int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.p.MinSize = image.Pt(edge, edge)
	c.p = c.p.Clamp()
}

// Get returns a copy of the current values.
func (c *CustomParams) Get() Params {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.p
}
