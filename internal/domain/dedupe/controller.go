package dedupe

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/okian/lineup/internal/domain/model"
	"github.com/okian/lineup/pkg/logger"
)

// Controller defaults.
const (
	DefaultConfirmThreshold = 2
	DefaultTargetRosters    = 2
	DefaultProcessSkip      = 400
)

// Store is the persistence the controller needs.
type Store interface {
	Exists(ctx context.Context, key model.DetectionKey) (bool, error)
	// Insert persists r. It returns an error wrapping ErrDuplicate when the
	// key is already stored.
	Insert(ctx context.Context, r model.Roster) error
}

// Decision is the controller's verdict on one parsed roster.
type Decision int

const (
	// DecisionPending means the roster has not reached the confirm threshold.
	DecisionPending Decision = iota
	// DecisionConfirmed means the roster was confirmed; skip Outcome.Skip frames.
	DecisionConfirmed
	// DecisionStop means the target number of unique rosters was reached.
	DecisionStop
)

func (d Decision) String() string {
	switch d {
	case DecisionPending:
		return "pending"
	case DecisionConfirmed:
		return "confirmed"
	case DecisionStop:
		return "stop"
	default:
		return fmt.Sprintf("decision(%d)", int(d))
	}
}

// Outcome reports what Observe decided.
type Outcome struct {
	Decision Decision
	// Count is the occurrence count of the roster's key after this observation.
	Count int
	// Persisted is true when this call inserted the roster.
	Persisted bool
	// Unique is the number of confirmed rosters in this scan so far.
	Unique int
	// Skip is the number of frames to discard before sampling again.
	Skip int
	// Roster is the observed roster, stamped with the frame when confirmed.
	Roster model.Roster
}

// Controller owns the occurrence counter and unique-roster count of a single
// scan. It is not safe for concurrent use; create one per scan.
type Controller struct {
	store       Store
	counter     Counter
	log         logger.Logger
	confirmAt   int
	target      int
	processSkip int
	counterSize int
	unique      int
}

// NewController creates a scan-scoped controller writing confirmed rosters to store.
func NewController(store Store, opts ...Option) *Controller {
	c := &Controller{
		store:       store,
		confirmAt:   DefaultConfirmThreshold,
		target:      DefaultTargetRosters,
		processSkip: DefaultProcessSkip,
		counterSize: defaultMaxSize,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.counter == nil {
		c.counter = NewInMemoryCounter(WithMaxSize(c.counterSize))
	}
	if c.log == nil {
		c.log = logger.Get().Named("dedupe")
	}
	return c
}

// Unique returns the number of rosters confirmed so far.
func (c *Controller) Unique() int { return c.unique }

// Done reports whether the target was reached.
func (c *Controller) Done() bool { return c.unique >= c.target }

// Observe records one parsed roster seen at frame. A roster is confirmed when
// its count reaches the confirm threshold exactly, so later repeats of the same
// key stay pending. Confirmation persists the roster unless it already exists.
func (c *Controller) Observe(ctx context.Context, r model.Roster, frame int) (Outcome, error) {
	key := r.Key()
	count := c.counter.Observe(ctx, key)
	out := Outcome{Decision: DecisionPending, Count: count, Unique: c.unique, Roster: r}
	if count != c.confirmAt {
		c.log.Debug(ctx, "roster pending",
			logger.String("team", r.TeamName),
			logger.Int("count", count),
			logger.Int("frame", frame))
		return out, nil
	}

	r.Frame = frame
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	out.Roster = r

	persisted, err := c.persist(ctx, key, r)
	if err != nil {
		return out, err
	}
	out.Persisted = persisted

	c.unique++
	out.Unique = c.unique
	c.log.Info(ctx, "roster confirmed",
		logger.String("team", r.TeamName),
		logger.Int("frame", frame),
		logger.Bool("persisted", persisted),
		logger.Int("unique", c.unique))

	if c.Done() {
		out.Decision = DecisionStop
		return out, nil
	}
	out.Decision = DecisionConfirmed
	out.Skip = c.processSkip
	return out, nil
}

func (c *Controller) persist(ctx context.Context, key model.DetectionKey, r model.Roster) (bool, error) {
	exists, err := c.store.Exists(ctx, key)
	if err != nil {
		return false, fmt.Errorf("%w: exists %q: %v", ErrStore, r.TeamName, err)
	}
	if exists {
		c.log.Info(ctx, "roster already stored", logger.String("team", r.TeamName))
		return false, nil
	}

	err = c.store.Insert(ctx, r)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrDuplicate):
		c.log.Info(ctx, "duplicate insert ignored", logger.String("team", r.TeamName))
		return false, nil
	default:
		return false, fmt.Errorf("%w: insert %q: %v", ErrStore, r.TeamName, err)
	}
}
