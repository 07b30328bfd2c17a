// Package match scores video frames against a reference lineup card using
// hue/saturation histogram correlation.
package match

import (
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

// Region is a fractional sub-rectangle of an image.
type Region struct {
	Top    float64
	Bottom float64
	Left   float64
	Right  float64
}

// DefaultRegion covers the lineup card panel of the broadcast graphic.
var DefaultRegion = Region{Top: 0.07, Bottom: 0.92, Left: 0.215, Right: 0.574}

// Validate checks that the bounds describe a non-empty area inside [0, 1].
func (r Region) Validate() error {
	if !(r.Top >= 0 && r.Top < r.Bottom && r.Bottom <= 1) {
		return fmt.Errorf("%w: vertical bounds %.3f..%.3f", ErrRegion, r.Top, r.Bottom)
	}
	if !(r.Left >= 0 && r.Left < r.Right && r.Right <= 1) {
		return fmt.Errorf("%w: horizontal bounds %.3f..%.3f", ErrRegion, r.Left, r.Right)
	}
	return nil
}

// Rect converts the fractional bounds to pixels of b, truncating each edge.
func (r Region) Rect(b image.Rectangle) image.Rectangle {
	h, w := b.Dy(), b.Dx()
	return image.Rect(
		b.Min.X+int(float64(w)*r.Left),
		b.Min.Y+int(float64(h)*r.Top),
		b.Min.X+int(float64(w)*r.Right),
		b.Min.Y+int(float64(h)*r.Bottom),
	)
}

// Crop returns the region of img as a new NRGBA image.
func (r Region) Crop(img image.Image) *image.NRGBA {
	return imaging.Crop(img, r.Rect(img.Bounds()))
}
