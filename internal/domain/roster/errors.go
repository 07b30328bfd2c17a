package roster

import "errors"

// Sentinel kinds for parse rejections. Both are recoverable for a scan.
var (
	ErrTooFewTokens = errors.New("token sequence too short")
	ErrRosterSize   = errors.New("roster size mismatch")
	ErrSizePolicy   = errors.New("unknown roster size policy")
)
