package video

import (
	"bytes"
	"context"
	"errors"
	"image"
	"io"
	"path/filepath"
	"testing"

	"github.com/okian/lineup/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(logger.WithWriter(io.Discard)); err != nil {
		panic(err)
	}
}

const probeJSON = `{
  "streams": [
    {"index": 0, "codec_type": "audio", "sample_rate": "48000"},
    {"index": 1, "codec_type": "video", "width": 1920, "height": 1080,
     "nb_frames": "90000", "avg_frame_rate": "30000/1001"}
  ],
  "format": {"filename": "match.mp4", "duration": "3003.000000"}
}`

func TestParseProbe(t *testing.T) {
	Convey("Given ffprobe output with audio and video streams", t, func() {
		info, err := parseProbe(probeJSON)

		Convey("Then the video stream is described", func() {
			So(err, ShouldBeNil)
			So(info.Width, ShouldEqual, 1920)
			So(info.Height, ShouldEqual, 1080)
			So(info.Frames, ShouldEqual, 90000)
			So(info.FPS, ShouldAlmostEqual, 29.97, 0.01)
		})
	})

	Convey("Given output without a video stream", t, func() {
		_, err := parseProbe(`{"streams":[{"codec_type":"audio"}]}`)

		Convey("Then ErrDecode is returned", func() {
			So(errors.Is(err, ErrDecode), ShouldBeTrue)
		})
	})

	Convey("Given malformed output", t, func() {
		_, err := parseProbe(`not json`)

		Convey("Then ErrDecode is returned", func() {
			So(errors.Is(err, ErrDecode), ShouldBeTrue)
		})
	})

	Convey("Given frame rate strings", t, func() {
		So(parseRate("25/1"), ShouldEqual, 25.0)
		So(parseRate("0/0"), ShouldEqual, 0.0)
		So(parseRate("50"), ShouldEqual, 50.0)
		So(parseRate(""), ShouldEqual, 0.0)
	})
}

// rawFrames encodes n 2x1 RGBA frames whose red channel is the frame number.
func rawFrames(n int) []byte {
	var b bytes.Buffer
	for i := 1; i <= n; i++ {
		b.Write([]byte{byte(i), 0, 0, 255, byte(i), 0, 0, 255})
	}
	return b.Bytes()
}

func red(img image.Image) uint8 {
	return img.(*image.NRGBA).Pix[0]
}

func TestSource(t *testing.T) {
	ctx := context.Background()

	Convey("Given a raw stream of five frames", t, func() {
		src := newSource(bytes.NewReader(rawFrames(5)), 2, 1)

		Convey("When reading sequentially", func() {
			f1, err1 := src.Next(ctx)
			f2, err2 := src.Next(ctx)

			Convey("Then indices start at 1 and increase", func() {
				So(err1, ShouldBeNil)
				So(err2, ShouldBeNil)
				So(f1.Index, ShouldEqual, 1)
				So(f2.Index, ShouldEqual, 2)
				So(red(f2.Image), ShouldEqual, uint8(2))
				So(f2.Image.Bounds(), ShouldResemble, image.Rect(0, 0, 2, 1))
			})
		})

		Convey("When skipping two frames after the first", func() {
			_, _ = src.Next(ctx)
			So(src.Skip(ctx, 2), ShouldBeNil)
			f, err := src.Next(ctx)

			Convey("Then the next frame is index 4", func() {
				So(err, ShouldBeNil)
				So(f.Index, ShouldEqual, 4)
				So(red(f.Image), ShouldEqual, uint8(4))
			})
		})

		Convey("When skipping past the end", func() {
			So(src.Skip(ctx, 10), ShouldBeNil)
			_, err := src.Next(ctx)

			Convey("Then the stream is exhausted", func() {
				So(err, ShouldEqual, io.EOF)
				So(src.Index(), ShouldEqual, 5)
			})
		})

		Convey("When all frames are read", func() {
			for i := 0; i < 5; i++ {
				_, err := src.Next(ctx)
				So(err, ShouldBeNil)
			}
			_, err := src.Next(ctx)

			Convey("Then io.EOF is returned", func() {
				So(err, ShouldEqual, io.EOF)
			})
		})
	})

	Convey("Given a stream with a truncated final frame", t, func() {
		data := rawFrames(2)
		src := newSource(bytes.NewReader(data[:len(data)-3]), 2, 1)

		_, err1 := src.Next(ctx)
		_, err2 := src.Next(ctx)

		Convey("Then the partial frame is treated as end of stream", func() {
			So(err1, ShouldBeNil)
			So(err2, ShouldEqual, io.EOF)
		})
	})

	Convey("Given a failing reader", t, func() {
		pr, pw := io.Pipe()
		_ = pw.CloseWithError(errors.New("moov atom not found"))
		src := newSource(pr, 2, 1)

		_, err := src.Next(ctx)

		Convey("Then ErrDecode wraps the failure", func() {
			So(errors.Is(err, ErrDecode), ShouldBeTrue)
			So(err.Error(), ShouldContainSubstring, "moov atom not found")
		})
	})

	Convey("Given a cancelled context", t, func() {
		src := newSource(bytes.NewReader(rawFrames(1)), 2, 1)
		cctx, cancel := context.WithCancel(ctx)
		cancel()

		_, err := src.Next(cctx)

		Convey("Then the context error is returned", func() {
			So(errors.Is(err, context.Canceled), ShouldBeTrue)
		})
	})

	Convey("Given a source closed twice", t, func() {
		calls := 0
		src := newSource(bytes.NewReader(nil), 2, 1)
		src.stop = func() { calls++ }

		So(src.Close(), ShouldBeNil)
		So(src.Close(), ShouldBeNil)

		Convey("Then the decoder is stopped once", func() {
			So(calls, ShouldEqual, 1)
		})
	})
}

func TestExtractor(t *testing.T) {
	Convey("Given an extractor", t, func() {
		dir := t.TempDir()
		e := NewExtractor(dir)

		Convey("Then stills are named by frame index under the video name", func() {
			So(e.StillPath("/videos/final.mp4", 160), ShouldEqual, filepath.Join(dir, "final", "capture_160.png"))
		})

		Convey("When the index is not 1-based", func() {
			_, err := e.Extract(context.Background(), "final.mp4", 0)

			Convey("Then ErrExtract is returned", func() {
				So(errors.Is(err, ErrExtract), ShouldBeTrue)
			})
		})
	})
}
