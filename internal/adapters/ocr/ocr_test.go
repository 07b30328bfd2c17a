package ocr_test

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/okian/lineup/internal/adapters/ocr"
	"github.com/okian/lineup/internal/domain/enhance"
	. "github.com/smartystreets/goconvey/convey"
)

type fakeReader struct {
	lines []string
	err   error
	got   image.Image
}

func (f *fakeReader) ReadLines(_ context.Context, png []byte) ([]string, error) {
	img, err := imaging.Decode(bytes.NewReader(png))
	if err != nil {
		return nil, err
	}
	f.got = img
	return f.lines, f.err
}

func TestTokens(t *testing.T) {
	Convey("Given engine lines from a lineup card", t, func() {
		lines := []string{
			"FC SEOUL",
			"",
			"1  Kim  Minjae",
			"7. Son",
			"  10 ",
			"Lee",
			"SUBSTITUTES",
		}

		Convey("Then numbers are split from names and blanks dropped", func() {
			So(ocr.Tokens(lines), ShouldResemble, []string{
				"FC SEOUL",
				"1", "Kim Minjae",
				"7", "Son",
				"10",
				"Lee",
				"SUBSTITUTES",
			})
		})
	})

	Convey("Given team names containing digits", t, func() {
		Convey("Then long numeric prefixes are kept whole", func() {
			So(ocr.Tokens([]string{"1860 Munich"}), ShouldResemble, []string{"1860 Munich"})
		})

		Convey("Then a team line starting with a number is kept whole", func() {
			So(ocr.Tokens([]string{"", "1. FC Köln", "1 Schwäbe", "4. Hübers"}), ShouldResemble,
				[]string{"1. FC Köln", "1", "Schwäbe", "4", "Hübers"})
		})
	})
}

func TestRecognizer(t *testing.T) {
	Convey("Given a recognizer over a fake engine", t, func() {
		reader := &fakeReader{lines: []string{"ULSAN", "9 Park"}}
		r := ocr.NewRecognizer(reader, enhance.Options{Scale: 3, Cutoff: 150, Gain: 1.5})
		region := imaging.New(10, 4, color.White)

		tokens, err := r.Recognize(context.Background(), region)

		Convey("Then tokens come back in reading order", func() {
			So(err, ShouldBeNil)
			So(tokens, ShouldResemble, []string{"ULSAN", "9", "Park"})
		})

		Convey("Then the engine sees the upscaled image", func() {
			So(reader.got.Bounds().Dx(), ShouldEqual, 30)
			So(reader.got.Bounds().Dy(), ShouldEqual, 12)
		})
	})

	Convey("Given an engine failure", t, func() {
		reader := &fakeReader{err: errors.New("tessdata missing")}
		r := ocr.NewRecognizer(reader, enhance.DefaultOptions())

		_, err := r.Recognize(context.Background(), imaging.New(2, 2, color.Black))

		Convey("Then ErrEngine is returned", func() {
			So(errors.Is(err, ocr.ErrEngine), ShouldBeTrue)
		})
	})
}
