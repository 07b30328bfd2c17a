package scan

import (
	"github.com/okian/lineup/internal/domain/dedupe"
	"github.com/okian/lineup/internal/domain/match"
	"github.com/okian/lineup/internal/domain/roster"
	"github.com/okian/lineup/pkg/logger"
)

// Option applies a configuration option to the Pipeline.
type Option func(*Pipeline)

// WithTemplatePath sets the reference image loaded at the start of every scan.
func WithTemplatePath(path string) Option {
	return func(p *Pipeline) {
		p.templatePath = path
	}
}

// WithMatcher uses a prebuilt matcher instead of loading the template per scan.
func WithMatcher(m *match.Matcher) Option {
	return func(p *Pipeline) {
		p.matcher = m
	}
}

// WithMatchOptions configures the matcher built from the template path.
func WithMatchOptions(opts ...match.Option) Option {
	return func(p *Pipeline) {
		p.matchOpts = append(p.matchOpts, opts...)
	}
}

// WithFrameSkip sets the sampling stride.
func WithFrameSkip(n int) Option {
	return func(p *Pipeline) {
		p.frameSkip = n
	}
}

// WithParser sets the roster parser.
func WithParser(parser *roster.Parser) Option {
	return func(p *Pipeline) {
		p.parser = parser
	}
}

// WithControllerOptions configures the controller created for each scan.
func WithControllerOptions(opts ...dedupe.Option) Option {
	return func(p *Pipeline) {
		p.ctrlOpts = append(p.ctrlOpts, opts...)
	}
}

// WithSink sets the progress event sink.
func WithSink(s Sink) Option {
	return func(p *Pipeline) {
		p.sink = s
	}
}

// WithLogger sets the logger.
func WithLogger(log logger.Logger) Option {
	return func(p *Pipeline) {
		p.log = log
	}
}

// WithStateObserver registers a callback invoked on every state transition.
func WithStateObserver(fn func(scanID string, s State)) Option {
	return func(p *Pipeline) {
		p.observe = fn
	}
}
