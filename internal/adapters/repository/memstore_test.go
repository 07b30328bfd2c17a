package repository_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/okian/lineup/internal/adapters/repository"
	"github.com/okian/lineup/internal/domain/dedupe"
	"github.com/okian/lineup/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func roster(team string, created time.Time, names ...string) model.Roster {
	nums := make([]string, len(names))
	for i := range names {
		nums[i] = string(rune('1' + i))
	}
	return model.Roster{TeamName: team, Names: names, Numbers: nums, CreatedAt: created}
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	t0 := time.Date(2024, 3, 1, 19, 0, 0, 0, time.UTC)

	Convey("Given an empty memory store", t, func() {
		s := repository.NewMemoryStore()
		var _ repository.Store = s
		var _ dedupe.Store = s

		Convey("When a roster is inserted", func() {
			r := roster("Seoul", t0, "Kim", "Lee")
			So(s.Insert(ctx, r), ShouldBeNil)

			Convey("Then it exists by key", func() {
				ok, err := s.Exists(ctx, r.Key())
				So(err, ShouldBeNil)
				So(ok, ShouldBeTrue)

				n, _ := s.Count(ctx)
				So(n, ShouldEqual, 1)
			})

			Convey("Then a second insert of the same key is a duplicate", func() {
				err := s.Insert(ctx, r)
				So(errors.Is(err, repository.ErrDuplicate), ShouldBeTrue)
				So(errors.Is(err, dedupe.ErrDuplicate), ShouldBeTrue)
			})

			Convey("Then it can be found by team", func() {
				got, err := s.Find(ctx, "Seoul")
				So(err, ShouldBeNil)
				So(got.Names, ShouldResemble, []string{"Kim", "Lee"})
			})
		})

		Convey("When a team has several rosters", func() {
			So(s.Insert(ctx, roster("Seoul", t0, "Kim")), ShouldBeNil)
			So(s.Insert(ctx, roster("Seoul", t0.Add(time.Hour), "Park")), ShouldBeNil)
			So(s.Insert(ctx, roster("Ulsan", t0, "Choi")), ShouldBeNil)

			Convey("Then Find returns the newest one", func() {
				got, err := s.Find(ctx, "Seoul")
				So(err, ShouldBeNil)
				So(got.Names, ShouldResemble, []string{"Park"})
			})

			Convey("Then Teams lists distinct names in order", func() {
				teams, err := s.Teams(ctx)
				So(err, ShouldBeNil)
				So(teams, ShouldResemble, []string{"Seoul", "Ulsan"})
			})
		})

		Convey("When looking up an unknown team", func() {
			_, err := s.Find(ctx, "Busan")

			Convey("Then ErrNotFound is returned", func() {
				So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
			})
		})

		Convey("When the same roster is inserted concurrently", func() {
			r := roster("Seoul", t0, "Kim")
			var wg sync.WaitGroup
			var mu sync.Mutex
			ok := 0
			for i := 0; i < 20; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					if s.Insert(ctx, r) == nil {
						mu.Lock()
						ok++
						mu.Unlock()
					}
				}()
			}
			wg.Wait()

			Convey("Then exactly one insert wins", func() {
				So(ok, ShouldEqual, 1)
				n, _ := s.Count(ctx)
				So(n, ShouldEqual, 1)
			})
		})

		Convey("Then Close is a no-op", func() {
			So(s.Close(ctx), ShouldBeNil)
		})
	})
}
