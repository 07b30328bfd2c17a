package match

import (
	"image"
	"math"

	"github.com/disintegration/imaging"
	colorful "github.com/lucasb-eyer/go-colorful"
	"gonum.org/v1/gonum/stat"
)

// Histogram dimensions on the 8-bit HSV scale: hue in half degrees, saturation 0..255.
const (
	HueBins = 180
	SatBins = 256
)

// Signature is a joint hue/saturation histogram normalized to [0, 1].
type Signature struct {
	bins []float64
}

// Len returns the number of bins.
func (s Signature) Len() int { return len(s.bins) }

// Compute builds the signature of img. The result does not depend on the
// image resolution because the histogram is min-max normalized.
func Compute(img image.Image) Signature {
	src, ok := img.(*image.NRGBA)
	if !ok {
		src = imaging.Clone(img)
	}

	bins := make([]float64, HueBins*SatBins)
	b := src.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := src.Pix[(y-b.Min.Y)*src.Stride:]
		for x := 0; x < b.Dx(); x++ {
			p := row[x*4 : x*4+3]
			h, s := hueSat(p[0], p[1], p[2])
			bins[h*SatBins+s]++
		}
	}
	normalizeMinMax(bins)
	return Signature{bins: bins}
}

// hueSat maps an RGB pixel to its hue and saturation bin.
func hueSat(r, g, b uint8) (int, int) {
	c := colorful.Color{R: float64(r) / 255, G: float64(g) / 255, B: float64(b) / 255}
	h, s, _ := c.Hsv()

	hb := int(math.Round(h / 2))
	if hb >= HueBins {
		hb -= HueBins // hue is circular; 359.5 degrees lands in the first bin
	}
	sb := int(math.Round(s * 255))
	if sb >= SatBins {
		sb = SatBins - 1
	}
	return hb, sb
}

func normalizeMinMax(v []float64) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, x := range v {
		lo = math.Min(lo, x)
		hi = math.Max(hi, x)
	}
	span := hi - lo
	for i := range v {
		if span == 0 {
			v[i] = 0
			continue
		}
		v[i] = (v[i] - lo) / span
	}
}

// Correlate returns the Pearson correlation of two signatures in [-1, 1].
// Undefined correlations (mismatched sizes or a constant histogram) score 0.
func Correlate(a, b Signature) float64 {
	if len(a.bins) == 0 || len(a.bins) != len(b.bins) {
		return 0
	}
	c := stat.Correlation(a.bins, b.bins, nil)
	if math.IsNaN(c) || math.IsInf(c, 0) {
		return 0
	}
	return c
}
