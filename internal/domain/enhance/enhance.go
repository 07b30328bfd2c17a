// Package enhance prepares captured stills for text recognition.
package enhance

import (
	"image"

	"github.com/disintegration/imaging"
)

// Defaults for the preprocessing chain.
const (
	DefaultScale  = 9
	DefaultCutoff = 150
	DefaultGain   = 1.5
)

// Options tunes Preprocess.
type Options struct {
	// Scale is the integer upscaling factor applied before binarization.
	Scale int
	// Cutoff is used as the binarization threshold when the image has a
	// single intensity level and Otsu's method has nothing to separate.
	// OpenCV's BINARY+OTSU picks 0 there and turns any non-zero flat image
	// white; here a flat image darker than Cutoff stays black.
	Cutoff uint8
	// Gain multiplies every output intensity, saturating at 255.
	Gain float64
}

// DefaultOptions returns the preprocessing defaults.
func DefaultOptions() Options {
	return Options{Scale: DefaultScale, Cutoff: DefaultCutoff, Gain: DefaultGain}
}

// Preprocess upscales img with a cubic filter, converts it to grayscale,
// binarizes it with Otsu's threshold and applies a linear gain.
func Preprocess(img image.Image, opts Options) *image.Gray {
	if opts.Scale < 1 {
		opts.Scale = 1
	}
	b := img.Bounds()
	var src image.Image = img
	if opts.Scale > 1 && !b.Empty() {
		src = imaging.Resize(img, b.Dx()*opts.Scale, b.Dy()*opts.Scale, imaging.CatmullRom)
	}

	gray := toGray(imaging.Grayscale(src))
	t, ok := Otsu(gray)
	if !ok {
		t = opts.Cutoff
	}

	lut := binaryLUT(t, opts.Gain)
	for i, v := range gray.Pix {
		gray.Pix[i] = lut[v]
	}
	return gray
}

func toGray(n *image.NRGBA) *image.Gray {
	b := n.Bounds()
	g := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		row := n.Pix[y*n.Stride:]
		out := g.Pix[y*g.Stride:]
		for x := 0; x < b.Dx(); x++ {
			out[x] = row[x*4]
		}
	}
	return g
}

// binaryLUT maps intensities above t to 255 and the rest to 0, then scales by gain.
func binaryLUT(t uint8, gain float64) [256]uint8 {
	var lut [256]uint8
	hi := saturate(255 * gain)
	lo := saturate(0)
	for v := 0; v < 256; v++ {
		if v > int(t) {
			lut[v] = hi
		} else {
			lut[v] = lo
		}
	}
	return lut
}

func saturate(v float64) uint8 {
	switch {
	case v <= 0:
		return 0
	case v >= 255:
		return 255
	default:
		return uint8(v + 0.5)
	}
}
