package dedupe

import "errors"

var (
	// ErrDuplicate is returned by a Store when the key is already persisted.
	// The controller treats it as a no-op.
	ErrDuplicate = errors.New("roster already stored")
	// ErrStore wraps any other storage failure. It is fatal to the scan.
	ErrStore = errors.New("roster store failure")
)
