package match

import "errors"

// Sentinel kinds for matcher errors.
var (
	ErrTemplate = errors.New("template image unavailable")
	ErrRegion   = errors.New("invalid region of interest")
)
