package service_test

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/okian/lineup/internal/adapters/objectstore"
	"github.com/okian/lineup/internal/adapters/repository"
	service "github.com/okian/lineup/internal/app"
	"github.com/okian/lineup/internal/domain/match"
	"github.com/okian/lineup/internal/domain/model"
	"github.com/okian/lineup/internal/domain/roster"
	"github.com/okian/lineup/internal/domain/scan"
	. "github.com/smartystreets/goconvey/convey"
)

var cardColor = color.NRGBA{R: 230, G: 20, B: 20, A: 255}

// cardSource shows the lineup card on every frame.
type cardSource struct {
	total, idx int
	frame      image.Image
}

func (s *cardSource) Next(ctx context.Context) (model.Frame, error) {
	if err := ctx.Err(); err != nil {
		return model.Frame{}, err
	}
	if s.idx >= s.total {
		return model.Frame{}, io.EOF
	}
	s.idx++
	return model.Frame{Index: s.idx, Image: s.frame}, nil
}

func (s *cardSource) Skip(_ context.Context, n int) error {
	s.idx = min(s.idx+n, s.total)
	return nil
}

func (s *cardSource) Close() error { return nil }

type cardDecoder struct {
	frame  image.Image
	opened []string
}

func (d *cardDecoder) Open(_ context.Context, path string) (scan.FrameSource, error) {
	d.opened = append(d.opened, path)
	return &cardSource{total: 1000, frame: d.frame}, nil
}

type stillWriter struct {
	dir   string
	frame image.Image
}

func (w *stillWriter) Extract(_ context.Context, _ string, index int) (string, error) {
	path := filepath.Join(w.dir, fmt.Sprintf("capture_%d.png", index))
	return path, imaging.Save(w.frame, path)
}

type scriptedOCR struct {
	script [][]string
	calls  int
}

func (r *scriptedOCR) Recognize(context.Context, image.Image) ([]string, error) {
	i := min(r.calls, len(r.script)-1)
	r.calls++
	return r.script[i], nil
}

func TestService_EndToEnd(t *testing.T) {
	Convey("Given a service wired to the real pipeline", t, func() {
		ctx := context.Background()

		frame := imaging.New(100, 100, color.Black)
		r := match.DefaultRegion.Rect(frame.Bounds())
		card := imaging.Paste(frame, imaging.New(r.Dx(), r.Dy(), cardColor), r.Min)
		m, err := match.NewMatcher(imaging.New(36, 85, cardColor))
		So(err, ShouldBeNil)

		videos := t.TempDir()
		So(os.WriteFile(filepath.Join(videos, "match_2024.mp4"), []byte("video"), 0o600), ShouldBeNil)

		teamA := []string{"TeamA", "7", "Kim", "9", "Lee"}
		teamB := []string{"TeamB", "SUBSTITUTES", "1", "Park", "4", "Choi"}
		store := repository.NewMemoryStore()
		decoder := &cardDecoder{frame: card}

		var svc *service.Service
		pipeline, err := scan.New(scan.Deps{
			Decoder:    decoder,
			Extractor:  &stillWriter{dir: t.TempDir(), frame: card},
			Recognizer: &scriptedOCR{script: [][]string{teamA, teamA, teamB, teamB}},
			Store:      store,
		},
			scan.WithMatcher(m),
			scan.WithParser(roster.NewParser(roster.WithSize(2))),
			scan.WithStateObserver(func(id string, st scan.State) { svc.ObserveState(id, st) }),
		)
		So(err, ShouldBeNil)

		svc = service.New(pipeline, objectstore.NewLocalFetcher(videos), store,
			service.WithDefaultPrefix("match_"))
		So(svc.Start(ctx), ShouldBeNil)
		defer func() { _ = svc.Stop(ctx) }()

		Convey("When the latest video is processed", func() {
			job, err := svc.Process(ctx, "")
			So(err, ShouldBeNil)

			Convey("Then both rosters are confirmed and stored once", func() {
				So(job.Status, ShouldEqual, service.StatusSucceeded)
				So(job.Stage, ShouldEqual, scan.StateStoppedSuccess)
				So(job.Video, ShouldEqual, "match_2024.mp4")
				So(job.Result.Unique, ShouldEqual, 2)
				So(decoder.opened, ShouldResemble, []string{filepath.Join(videos, "match_2024.mp4")})

				teams, err := svc.Teams(ctx)
				So(err, ShouldBeNil)
				So(teams, ShouldResemble, []string{"TeamA", "TeamB"})

				a, err := svc.Roster(ctx, "TeamA")
				So(err, ShouldBeNil)
				So(a.Frame, ShouldEqual, 160)
				So(a.Names, ShouldResemble, []string{"Kim", "Lee"})
				So(a.Numbers, ShouldResemble, []string{"7", "9"})

				b, err := svc.Roster(ctx, "TeamB")
				So(err, ShouldBeNil)
				So(b.Frame, ShouldEqual, 720)
				So(b.Names, ShouldResemble, []string{"Park", "Choi"})
			})

			Convey("Then the local video is left in place", func() {
				_, err := os.Stat(filepath.Join(videos, "match_2024.mp4"))
				So(err, ShouldBeNil)
			})
		})

		Convey("When no video matches the prefix", func() {
			job, err := svc.Process(ctx, "highlights_")

			Convey("Then the job fails with no objects", func() {
				So(err, ShouldBeNil)
				So(job.Status, ShouldEqual, service.StatusFailed)
				So(job.Error, ShouldContainSubstring, objectstore.ErrNoObjects.Error())
			})
		})
	})
}
