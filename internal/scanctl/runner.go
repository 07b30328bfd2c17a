package scanctl

import (
	"context"
	"fmt"
	"time"

	service "github.com/okian/lineup/internal/app"
	"github.com/okian/lineup/pkg/logger"
)

// Run executes the configured command against the service.
func Run(ctx context.Context, cfg *Config) error {
	if cfg.Command == CommandHelp {
		ShowHelp(cfg.Out)
		return nil
	}

	client := NewClient(cfg.BaseURL, cfg.Timeout)
	logger.Get().Debug(ctx, "running command",
		logger.String("command", cfg.Command),
		logger.String("baseURL", cfg.BaseURL))

	switch cfg.Command {
	case CommandScan:
		return runScan(ctx, cfg, client)
	case CommandStatus:
		job, err := client.Scan(ctx, cfg.ID)
		if err != nil {
			return err
		}
		return printJob(cfg, job)
	case CommandTeams:
		teams, err := client.Teams(ctx)
		if err != nil {
			return err
		}
		return printTeams(cfg, teams)
	case CommandRoster:
		r, err := client.Roster(ctx, cfg.Team)
		if err != nil {
			return err
		}
		return printRoster(cfg, r)
	}
	return fmt.Errorf("%w: unknown command %q", ErrUsage, cfg.Command)
}

func runScan(ctx context.Context, cfg *Config, client *Client) error {
	if err := client.Health(ctx); err != nil {
		return fmt.Errorf("service health check failed: %w", err)
	}

	job, err := client.Submit(ctx, cfg.Prefix)
	if err != nil {
		return fmt.Errorf("submit scan: %w", err)
	}
	logger.Get().Info(ctx, "scan submitted", logger.String("id", job.ID), logger.String("prefix", job.Prefix))

	if !cfg.Wait {
		return printJob(cfg, job)
	}

	job, err = waitForScan(ctx, cfg, client, job.ID)
	if err != nil {
		return err
	}
	if err := printJob(cfg, job); err != nil {
		return err
	}
	switch job.Status {
	case service.StatusSucceeded, service.StatusPartial:
		return nil
	}
	return fmt.Errorf("%w: %s %s", ErrScanUnsuccessful, job.Status, job.Error)
}

// waitForScan polls the scan until it reaches a terminal status.
func waitForScan(ctx context.Context, cfg *Config, client *Client, id string) (service.Job, error) {
	if cfg.WaitTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.WaitTimeout)
		defer cancel()
	}

	ticker := time.NewTicker(cfg.PollInterval)
	defer ticker.Stop()

	var last service.Job
	for {
		job, err := client.Scan(ctx, id)
		if err != nil {
			return last, fmt.Errorf("poll scan %s: %w", id, err)
		}
		if job.Stage != last.Stage || job.Status != last.Status {
			logger.Get().Info(ctx, "scan progress",
				logger.String("id", id),
				logger.String("status", string(job.Status)),
				logger.String("stage", job.Stage.String()))
		} else {
			logger.Get().Debug(ctx, "scan unchanged", logger.String("id", id))
		}
		last = job
		if job.Status.Finished() {
			return job, nil
		}

		select {
		case <-ctx.Done():
			return last, fmt.Errorf("wait for scan %s: %w", id, ctx.Err())
		case <-ticker.C:
		}
	}
}
