package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/okian/lineup/internal/scanctl"
)

func main() {
	cfg, err := scanctl.Parse(os.Args[1:], os.Stdout)
	if err != nil {
		os.Stderr.WriteString(err.Error() + "\n\n")
		scanctl.ShowHelp(os.Stderr)
		os.Exit(2)
	}

	if err := scanctl.SetupLogging(cfg.Verbose); err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := scanctl.Run(ctx, cfg); err != nil {
		os.Stderr.WriteString("scanctl: " + err.Error() + "\n")
		if errors.Is(err, scanctl.ErrUsage) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}
