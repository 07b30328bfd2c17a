package dedupe_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"

	"github.com/okian/lineup/internal/domain/dedupe"
	"github.com/okian/lineup/internal/domain/model"
	"github.com/okian/lineup/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(logger.WithWriter(io.Discard)); err != nil {
		panic(err)
	}
}

// fakeStore records inserts by key.
type fakeStore struct {
	mu        sync.Mutex
	rows      map[model.DetectionKey]model.Roster
	existsErr error
	insertErr error
	inserts   int
}

func newFakeStore() *fakeStore {
	return &fakeStore{rows: map[model.DetectionKey]model.Roster{}}
}

func (s *fakeStore) Exists(_ context.Context, key model.DetectionKey) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.existsErr != nil {
		return false, s.existsErr
	}
	_, ok := s.rows[key]
	return ok, nil
}

func (s *fakeStore) Insert(_ context.Context, r model.Roster) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inserts++
	if s.insertErr != nil {
		return s.insertErr
	}
	if _, ok := s.rows[r.Key()]; ok {
		return fmt.Errorf("%w: %s", dedupe.ErrDuplicate, r.TeamName)
	}
	s.rows[r.Key()] = r
	return nil
}

func team(name string) model.Roster {
	return model.Roster{
		TeamName: name,
		Names:    []string{"Kim", "Lee"},
		Numbers:  []string{"1", "2"},
	}
}

func TestInMemoryCounter(t *testing.T) {
	ctx := context.Background()

	Convey("Given an unbounded counter", t, func() {
		c := dedupe.NewInMemoryCounter(dedupe.WithMaxSize(0))

		Convey("When a key is observed repeatedly", func() {
			So(c.Observe(ctx, "a"), ShouldEqual, 1)
			So(c.Observe(ctx, "a"), ShouldEqual, 2)
			So(c.Observe(ctx, "b"), ShouldEqual, 1)

			Convey("Then counts are tracked per key", func() {
				So(c.Count(ctx, "a"), ShouldEqual, 2)
				So(c.Count(ctx, "b"), ShouldEqual, 1)
				So(c.Count(ctx, "c"), ShouldEqual, 0)
				So(c.Size(), ShouldEqual, int64(2))
			})
		})
	})

	Convey("Given a counter bounded to 2 keys", t, func() {
		c := dedupe.NewInMemoryCounter(dedupe.WithMaxSize(2))
		c.Observe(ctx, "a")
		c.Observe(ctx, "b")
		c.Observe(ctx, "b")

		Convey("When a third key arrives", func() {
			c.Observe(ctx, "c")

			Convey("Then the oldest key is evicted", func() {
				So(c.Size(), ShouldEqual, int64(2))
				So(c.Count(ctx, "a"), ShouldEqual, 0)
				So(c.Count(ctx, "b"), ShouldEqual, 2)
				So(c.Count(ctx, "c"), ShouldEqual, 1)
			})

			Convey("Then an evicted key starts over", func() {
				So(c.Observe(ctx, "a"), ShouldEqual, 1)
				So(c.Count(ctx, "b"), ShouldEqual, 0)
			})
		})
	})

	Convey("Given concurrent observers", t, func() {
		c := dedupe.NewInMemoryCounter()
		var wg sync.WaitGroup
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				c.Observe(ctx, "shared")
			}()
		}
		wg.Wait()

		Convey("Then no increment is lost", func() {
			So(c.Count(ctx, "shared"), ShouldEqual, 50)
		})
	})
}

func TestController(t *testing.T) {
	ctx := context.Background()

	Convey("Given a controller with default policy", t, func() {
		store := newFakeStore()
		c := dedupe.NewController(store)

		Convey("When a roster is seen for the first time", func() {
			out, err := c.Observe(ctx, team("Seoul"), 80)

			Convey("Then it is pending and nothing is stored", func() {
				So(err, ShouldBeNil)
				So(out.Decision, ShouldEqual, dedupe.DecisionPending)
				So(out.Count, ShouldEqual, 1)
				So(store.inserts, ShouldEqual, 0)
				So(c.Unique(), ShouldEqual, 0)
			})
		})

		Convey("When the same roster is seen again", func() {
			_, _ = c.Observe(ctx, team("Seoul"), 80)
			out, err := c.Observe(ctx, team("Seoul"), 160)

			Convey("Then it is confirmed at the second frame", func() {
				So(err, ShouldBeNil)
				So(out.Decision, ShouldEqual, dedupe.DecisionConfirmed)
				So(out.Persisted, ShouldBeTrue)
				So(out.Skip, ShouldEqual, dedupe.DefaultProcessSkip)
				So(out.Unique, ShouldEqual, 1)
				So(out.Roster.Frame, ShouldEqual, 160)
				So(out.Roster.CreatedAt.IsZero(), ShouldBeFalse)
				So(store.rows[team("Seoul").Key()].Frame, ShouldEqual, 160)
			})

			Convey("And seen a third time", func() {
				out, err := c.Observe(ctx, team("Seoul"), 240)

				Convey("Then it stays pending and is stored once", func() {
					So(err, ShouldBeNil)
					So(out.Decision, ShouldEqual, dedupe.DecisionPending)
					So(out.Count, ShouldEqual, 3)
					So(store.inserts, ShouldEqual, 1)
					So(c.Unique(), ShouldEqual, 1)
				})
			})
		})

		Convey("When two distinct rosters are confirmed", func() {
			for _, name := range []string{"Seoul", "Seoul", "Ulsan"} {
				_, err := c.Observe(ctx, team(name), 1)
				So(err, ShouldBeNil)
			}
			out, err := c.Observe(ctx, team("Ulsan"), 2)

			Convey("Then the controller signals stop", func() {
				So(err, ShouldBeNil)
				So(out.Decision, ShouldEqual, dedupe.DecisionStop)
				So(out.Unique, ShouldEqual, 2)
				So(out.Skip, ShouldEqual, 0)
				So(c.Done(), ShouldBeTrue)
				So(len(store.rows), ShouldEqual, 2)
			})
		})
	})

	Convey("Given a roster already in the store", t, func() {
		store := newFakeStore()
		store.rows[team("Seoul").Key()] = team("Seoul")
		c := dedupe.NewController(store, dedupe.WithConfirmThreshold(1))

		out, err := c.Observe(ctx, team("Seoul"), 80)

		Convey("Then it is confirmed without an insert", func() {
			So(err, ShouldBeNil)
			So(out.Decision, ShouldEqual, dedupe.DecisionConfirmed)
			So(out.Persisted, ShouldBeFalse)
			So(out.Unique, ShouldEqual, 1)
			So(store.inserts, ShouldEqual, 0)
		})
	})

	Convey("Given a store that reports a duplicate on insert", t, func() {
		store := newFakeStore()
		store.insertErr = fmt.Errorf("%w: race", dedupe.ErrDuplicate)
		c := dedupe.NewController(store, dedupe.WithConfirmThreshold(1), dedupe.WithTargetRosters(1))

		out, err := c.Observe(ctx, team("Seoul"), 80)

		Convey("Then the duplicate is a no-op", func() {
			So(err, ShouldBeNil)
			So(out.Persisted, ShouldBeFalse)
			So(out.Decision, ShouldEqual, dedupe.DecisionStop)
		})
	})

	Convey("Given a failing store", t, func() {
		store := newFakeStore()
		c := dedupe.NewController(store, dedupe.WithConfirmThreshold(1))

		Convey("When Exists fails", func() {
			store.existsErr = errors.New("connection refused")
			_, err := c.Observe(ctx, team("Seoul"), 80)

			Convey("Then ErrStore is returned and nothing is counted", func() {
				So(errors.Is(err, dedupe.ErrStore), ShouldBeTrue)
				So(c.Unique(), ShouldEqual, 0)
			})
		})

		Convey("When Insert fails", func() {
			store.insertErr = errors.New("disk full")
			_, err := c.Observe(ctx, team("Seoul"), 80)

			Convey("Then ErrStore is returned", func() {
				So(errors.Is(err, dedupe.ErrStore), ShouldBeTrue)
				So(c.Unique(), ShouldEqual, 0)
			})
		})
	})

	Convey("Given custom options", t, func() {
		store := newFakeStore()
		counter := dedupe.NewInMemoryCounter()
		c := dedupe.NewController(store,
			dedupe.WithConfirmThreshold(3),
			dedupe.WithProcessSkip(900),
			dedupe.WithTargetRosters(3),
			dedupe.WithCounter(counter))

		var out dedupe.Outcome
		for i := 0; i < 3; i++ {
			out, _ = c.Observe(ctx, team("Seoul"), i)
		}

		Convey("Then they drive the decision", func() {
			So(out.Decision, ShouldEqual, dedupe.DecisionConfirmed)
			So(out.Skip, ShouldEqual, 900)
			So(counter.Count(ctx, team("Seoul").Key()), ShouldEqual, 3)
		})
	})

	Convey("Given a controller whose counter holds one key", t, func() {
		c := dedupe.NewController(newFakeStore(), dedupe.WithCounterSize(1))

		_, _ = c.Observe(ctx, team("Seoul"), 80)
		_, _ = c.Observe(ctx, team("Busan"), 160)
		out, err := c.Observe(ctx, team("Seoul"), 240)

		Convey("Then the evicted key starts counting again", func() {
			So(err, ShouldBeNil)
			So(out.Decision, ShouldEqual, dedupe.DecisionPending)
			So(out.Count, ShouldEqual, 1)
		})
	})

	Convey("Given decisions", t, func() {
		Convey("Then they have readable names", func() {
			So(dedupe.DecisionPending.String(), ShouldEqual, "pending")
			So(dedupe.DecisionConfirmed.String(), ShouldEqual, "confirmed")
			So(dedupe.DecisionStop.String(), ShouldEqual, "stop")
		})
	})
}
