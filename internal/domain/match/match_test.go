package match

import (
	"errors"
	"image"
	"image/color"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	. "github.com/smartystreets/goconvey/convey"
)

func solid(w, h int, c color.Color) *image.NRGBA {
	return imaging.New(w, h, c)
}

// card paints the default region of a w x h frame with c over a black background.
func card(w, h int, c color.Color) *image.NRGBA {
	frame := solid(w, h, color.Black)
	r := DefaultRegion.Rect(frame.Bounds())
	return imaging.Paste(frame, solid(r.Dx(), r.Dy(), c), r.Min)
}

var (
	red  = color.NRGBA{R: 255, A: 255}
	blue = color.NRGBA{B: 255, A: 255}
)

func TestRegion(t *testing.T) {
	Convey("Given the default region", t, func() {
		Convey("When mapped onto a 1000x1000 frame", func() {
			r := DefaultRegion.Rect(image.Rect(0, 0, 1000, 1000))

			Convey("Then each edge is truncated to whole pixels", func() {
				So(r, ShouldResemble, image.Rect(215, 70, 574, 920))
			})
		})

		Convey("When mapped onto a 1920x1080 frame", func() {
			r := DefaultRegion.Rect(image.Rect(0, 0, 1920, 1080))

			Convey("Then the broadcast card area is selected", func() {
				So(r.Min.X, ShouldEqual, 412)
				So(r.Min.Y, ShouldEqual, 75)
				So(r.Max.X, ShouldEqual, 1102)
				So(r.Max.Y, ShouldEqual, 993)
			})
		})

		Convey("When cropping", func() {
			crop := DefaultRegion.Crop(solid(1000, 1000, red))

			Convey("Then the crop has the region size", func() {
				So(crop.Bounds().Dx(), ShouldEqual, 359)
				So(crop.Bounds().Dy(), ShouldEqual, 850)
			})
		})
	})

	Convey("Given inverted bounds", t, func() {
		r := Region{Top: 0.5, Bottom: 0.4, Left: 0.1, Right: 0.2}

		Convey("Then validation fails", func() {
			So(errors.Is(r.Validate(), ErrRegion), ShouldBeTrue)
		})
	})
}

func TestHueSat(t *testing.T) {
	Convey("Given primary colors", t, func() {
		Convey("Then hue is stored in half degrees and saturation on 0..255", func() {
			h, s := hueSat(255, 0, 0)
			So(h, ShouldEqual, 0)
			So(s, ShouldEqual, 255)

			h, s = hueSat(0, 255, 0)
			So(h, ShouldEqual, 60)
			So(s, ShouldEqual, 255)

			h, s = hueSat(0, 0, 255)
			So(h, ShouldEqual, 120)
			So(s, ShouldEqual, 255)
		})

		Convey("Then grays have zero saturation", func() {
			_, s := hueSat(128, 128, 128)
			So(s, ShouldEqual, 0)
		})

		Convey("Then hues just below 360 degrees wrap to the first bin", func() {
			h, _ := hueSat(255, 0, 1)
			So(h, ShouldBeBetweenOrEqual, 0, HueBins-1)
		})
	})
}

func TestSignature(t *testing.T) {
	Convey("Given images of the same content at different sizes", t, func() {
		a := Compute(solid(40, 40, red))
		b := Compute(solid(400, 300, red))

		Convey("Then their signatures correlate perfectly", func() {
			So(a.Len(), ShouldEqual, HueBins*SatBins)
			So(Correlate(a, b), ShouldAlmostEqual, 1.0, 1e-9)
		})
	})

	Convey("Given images of different hues", t, func() {
		a := Compute(solid(40, 40, red))
		b := Compute(solid(40, 40, blue))

		Convey("Then the correlation is close to zero", func() {
			So(Correlate(a, b), ShouldBeLessThan, 0.01)
		})
	})

	Convey("Given a degenerate signature", t, func() {
		empty := Compute(image.NewNRGBA(image.Rect(0, 0, 0, 0)))
		full := Compute(solid(10, 10, red))

		Convey("Then the correlation is 0 instead of NaN", func() {
			So(Correlate(empty, full), ShouldEqual, 0.0)
			So(Correlate(Signature{}, full), ShouldEqual, 0.0)
		})
	})
}

func TestMatcher(t *testing.T) {
	Convey("Given a matcher built from a red card template", t, func() {
		m, err := NewMatcher(solid(359, 850, red))
		So(err, ShouldBeNil)

		Convey("When a frame shows the card in the region", func() {
			score, ok := m.Match(card(1000, 1000, red))

			Convey("Then it is a candidate", func() {
				So(score, ShouldBeGreaterThan, DefaultThreshold)
				So(ok, ShouldBeTrue)
			})
		})

		Convey("When a frame shows something else", func() {
			score, ok := m.Match(card(1000, 1000, blue))

			Convey("Then it is rejected", func() {
				So(score, ShouldBeLessThan, DefaultThreshold)
				So(ok, ShouldBeFalse)
			})
		})

		Convey("When the score equals the threshold", func() {
			Convey("Then it is not accepted", func() {
				So(m.Accept(DefaultThreshold), ShouldBeFalse)
				So(m.Accept(DefaultThreshold+1e-9), ShouldBeTrue)
			})
		})
	})

	Convey("Given options", t, func() {
		region := Region{Top: 0, Bottom: 0.5, Left: 0, Right: 0.5}
		m, err := NewMatcher(solid(10, 10, red), WithThreshold(0.5), WithRegion(region))

		Convey("Then they are applied", func() {
			So(err, ShouldBeNil)
			So(m.Threshold(), ShouldEqual, 0.5)
			So(m.Region(), ShouldResemble, region)
		})
	})

	Convey("Given an invalid region option", t, func() {
		_, err := NewMatcher(solid(10, 10, red), WithRegion(Region{Top: 1, Bottom: 0.5, Left: 0, Right: 1}))

		Convey("Then construction fails", func() {
			So(errors.Is(err, ErrRegion), ShouldBeTrue)
		})
	})

	Convey("Given a missing template file", t, func() {
		_, err := LoadTemplate(filepath.Join(t.TempDir(), "missing.png"))

		Convey("Then ErrTemplate is returned", func() {
			So(errors.Is(err, ErrTemplate), ShouldBeTrue)
		})
	})

	Convey("Given a template file on disk", t, func() {
		path := filepath.Join(t.TempDir(), "template.png")
		So(imaging.Save(solid(20, 20, red), path), ShouldBeNil)

		m, err := LoadTemplate(path)

		Convey("Then the matcher accepts the same content", func() {
			So(err, ShouldBeNil)
			_, ok := m.Match(card(200, 200, red))
			So(ok, ShouldBeTrue)
		})
	})
}
