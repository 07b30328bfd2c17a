package scanctl

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/okian/lineup/pkg/logger"
)

// SetupLogging initializes the logger on stderr so stdout stays parseable.
func SetupLogging(verbose bool) error {
	if err := logger.Init(logger.WithFormat(logger.FormatConsole), logger.WithWriter(os.Stderr)); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	if verbose {
		return logger.SetLevelString("debug")
	}
	return nil
}

// Parse reads the command name followed by its flags.
func Parse(args []string, out io.Writer) (*Config, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("%w: missing command", ErrUsage)
	}

	cfg := &Config{Command: args[0], Out: out}
	fs := flag.NewFlagSet(cfg.Command, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&cfg.BaseURL, "url", DefaultBaseURL, "Base URL of the scanner service")
	fs.DurationVar(&cfg.Timeout, "timeout", DefaultTimeout, "HTTP request timeout")
	fs.BoolVar(&cfg.JSON, "json", false, "Print raw JSON")
	fs.BoolVar(&cfg.Verbose, "verbose", false, "Enable verbose logging")

	switch cfg.Command {
	case CommandScan:
		fs.StringVar(&cfg.Prefix, "prefix", "", "Object key prefix (server default when empty)")
		fs.BoolVar(&cfg.Wait, "wait", false, "Poll until the scan finishes")
		fs.DurationVar(&cfg.PollInterval, "poll", DefaultPollInterval, "Status poll interval")
		fs.DurationVar(&cfg.WaitTimeout, "wait-timeout", DefaultWaitTimeout, "Maximum time to wait")
	case CommandStatus:
		fs.StringVar(&cfg.ID, "id", "", "Scan identifier")
	case CommandRoster:
		fs.StringVar(&cfg.Team, "team", "", "Team name")
	case CommandTeams:
	case CommandHelp, "-h", "-help", "--help":
		cfg.Command = CommandHelp
		return cfg, nil
	default:
		return nil, fmt.Errorf("%w: unknown command %q", ErrUsage, cfg.Command)
	}

	if err := fs.Parse(args[1:]); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUsage, err)
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("%w: unexpected argument %q", ErrUsage, fs.Arg(0))
	}

	switch {
	case cfg.Command == CommandStatus && cfg.ID == "":
		return nil, fmt.Errorf("%w: status requires -id", ErrUsage)
	case cfg.Command == CommandRoster && cfg.Team == "":
		return nil, fmt.Errorf("%w: roster requires -team", ErrUsage)
	case cfg.Timeout <= 0:
		return nil, fmt.Errorf("%w: -timeout must be positive", ErrUsage)
	case cfg.Wait && cfg.PollInterval <= 0:
		return nil, fmt.Errorf("%w: -poll must be positive", ErrUsage)
	}
	return cfg, nil
}

// ShowHelp prints usage information.
func ShowHelp(w io.Writer) {
	_, _ = io.WriteString(w, `scanctl - operator client for the lineup scanner

Usage:
  scanctl <command> [options]

Commands:
  scan     Submit a scan of the newest video under a prefix
  status   Show one scan
  teams    List teams with a stored roster
  roster   Show the stored roster of a team

Common options:
  -url string        Base URL of the service (default "http://localhost:8000")
  -timeout duration  HTTP request timeout (default 30s)
  -json              Print raw JSON
  -verbose           Enable verbose logging

scan options:
  -prefix string          Object key prefix (server default when empty)
  -wait                   Poll until the scan finishes
  -poll duration          Status poll interval (default 2s)
  -wait-timeout duration  Maximum time to wait (default 30m)

status options:
  -id string     Scan identifier

roster options:
  -team string   Team name

Examples:
  scanctl scan -prefix uploadedVideos/ -wait
  scanctl status -id 6f1c0c2e-5a3b-4d84-9f4e-3d7a4c1b2a10
  scanctl roster -team "FC Seoul"
`)
}
