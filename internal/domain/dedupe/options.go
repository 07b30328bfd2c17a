package dedupe

import "github.com/okian/lineup/pkg/logger"

// CounterOption applies a configuration option to the in-memory counter.
type CounterOption func(*inMemoryCounter)

// WithMaxSize bounds the number of tracked keys.
// If maxSize > 0 the oldest key is evicted first; otherwise the counter is unbounded.
func WithMaxSize(maxSize int) CounterOption {
	return func(c *inMemoryCounter) {
		c.maxSize = maxSize
	}
}

// Option applies a configuration option to the Controller.
type Option func(*Controller)

// WithConfirmThreshold sets the occurrence count at which a roster is confirmed.
func WithConfirmThreshold(n int) Option {
	return func(c *Controller) {
		c.confirmAt = n
	}
}

// WithTargetRosters sets the number of unique confirmed rosters that ends a scan.
func WithTargetRosters(n int) Option {
	return func(c *Controller) {
		c.target = n
	}
}

// WithProcessSkip sets how many frames to skip after a confirmation.
func WithProcessSkip(n int) Option {
	return func(c *Controller) {
		c.processSkip = n
	}
}

// WithCounter replaces the default in-memory counter.
func WithCounter(counter Counter) Option {
	return func(c *Controller) {
		c.counter = counter
	}
}

// WithCounterSize bounds the controller's own counter. It has no effect
// together with WithCounter.
func WithCounterSize(n int) Option {
	return func(c *Controller) {
		c.counterSize = n
	}
}

// WithLogger sets the logger.
func WithLogger(log logger.Logger) Option {
	return func(c *Controller) {
		c.log = log
	}
}
