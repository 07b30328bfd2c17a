package scan

import "errors"

var (
	// ErrCancelled is returned when the scan context ends before a terminal state.
	ErrCancelled = errors.New("scan cancelled")
	// ErrStill marks a still image that could not be read. Recoverable.
	ErrStill = errors.New("unreadable still")
	// ErrRecognize marks an OCR failure on a candidate. Recoverable.
	ErrRecognize = errors.New("text recognition failed")
	// ErrConfig is returned by New for missing collaborators.
	ErrConfig = errors.New("invalid pipeline configuration")
)
