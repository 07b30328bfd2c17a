package enhance

import "image"

// Otsu returns the threshold that maximizes between-class variance of the
// intensity histogram. ok is false when the image has fewer than two
// distinct intensities.
func Otsu(g *image.Gray) (threshold uint8, ok bool) {
	var hist [256]int
	b := g.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := g.Pix[(y-b.Min.Y)*g.Stride:]
		for x := 0; x < b.Dx(); x++ {
			hist[row[x]]++
		}
	}

	total, levels := 0, 0
	sum := 0.0
	for v, n := range hist {
		if n > 0 {
			levels++
		}
		total += n
		sum += float64(v * n)
	}
	if levels < 2 {
		return 0, false
	}

	var (
		best    float64 = -1
		wBack   int
		sumBack float64
	)
	for t := 0; t < 256; t++ {
		wBack += hist[t]
		if wBack == 0 {
			continue
		}
		wFore := total - wBack
		if wFore == 0 {
			break
		}
		sumBack += float64(t * hist[t])
		mBack := sumBack / float64(wBack)
		mFore := (sum - sumBack) / float64(wFore)
		d := mBack - mFore
		between := float64(wBack) * float64(wFore) * d * d
		if between > best {
			best = between
			threshold = uint8(t)
		}
	}
	return threshold, true
}
