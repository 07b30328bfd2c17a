package scanctl

import (
	"errors"
	"io"
	"time"
)

var (
	// ErrUsage reports an unknown command or a missing flag.
	ErrUsage = errors.New("usage")
	// ErrScanUnsuccessful is returned when a waited scan ends failed or cancelled.
	ErrScanUnsuccessful = errors.New("scan did not succeed")
)

// Config holds the parsed command line.
type Config struct {
	Command string

	BaseURL      string        // Base URL of the scanner service
	Timeout      time.Duration // Per-request HTTP timeout
	PollInterval time.Duration // Delay between status polls while waiting
	WaitTimeout  time.Duration // Upper bound on waiting for a scan
	JSON         bool          // Print raw JSON instead of a summary
	Verbose      bool          // Log every poll

	Prefix string // scan: object key prefix, empty for the server default
	Wait   bool   // scan: poll until the scan finishes
	ID     string // status: scan identifier
	Team   string // roster: team name

	Out io.Writer
}
