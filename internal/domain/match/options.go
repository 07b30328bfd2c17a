package match

// Option applies a configuration option to the Matcher.
type Option func(*Matcher)

// WithThreshold sets the strict lower bound a score must exceed to match.
func WithThreshold(threshold float64) Option {
	return func(m *Matcher) {
		m.threshold = threshold
	}
}

// WithRegion sets the region of each frame compared against the template.
func WithRegion(r Region) Option {
	return func(m *Matcher) {
		m.region = r
	}
}
