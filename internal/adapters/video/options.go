package video

import "github.com/okian/lineup/pkg/logger"

// Option configures a Decoder or Extractor.
type Option func(*logger.Logger)

// WithLogger sets the logger.
func WithLogger(log logger.Logger) Option {
	return func(l *logger.Logger) {
		*l = log
	}
}
