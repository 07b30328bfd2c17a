package scanctl

import "time"

// Defaults for flags.
const (
	DefaultBaseURL      = "http://localhost:8000"
	DefaultTimeout      = 30 * time.Second
	DefaultPollInterval = 2 * time.Second
	DefaultWaitTimeout  = 30 * time.Minute
)

// Commands understood by Run.
const (
	CommandScan   = "scan"
	CommandStatus = "status"
	CommandTeams  = "teams"
	CommandRoster = "roster"
	CommandHelp   = "help"
)

const maxErrorBody = 1 << 12
