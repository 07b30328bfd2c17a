package video

import "errors"

var (
	// ErrDecode marks an unreadable video stream. Fatal to a scan.
	ErrDecode = errors.New("video decode failed")
	// ErrExtract marks a failed still extraction. Recoverable.
	ErrExtract = errors.New("frame extraction failed")
)
