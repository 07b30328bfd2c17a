package scanctl

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	service "github.com/okian/lineup/internal/app"
	"github.com/okian/lineup/internal/domain/model"
)

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printJob(cfg *Config, job service.Job) error {
	if cfg.JSON {
		return printJSON(cfg.Out, job)
	}

	tw := tabwriter.NewWriter(cfg.Out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "id:\t%s\n", job.ID)
	fmt.Fprintf(tw, "status:\t%s\n", job.Status)
	fmt.Fprintf(tw, "stage:\t%s\n", job.Stage)
	if job.Prefix != "" {
		fmt.Fprintf(tw, "prefix:\t%s\n", job.Prefix)
	}
	if job.Video != "" {
		fmt.Fprintf(tw, "video:\t%s\n", job.Video)
	}
	if job.Error != "" {
		fmt.Fprintf(tw, "error:\t%s\n", job.Error)
	}
	if res := job.Result; res != nil {
		fmt.Fprintf(tw, "frames:\t%d read, %d sampled, %d skipped\n", res.FramesRead, res.FramesSampled, res.FramesSkipped)
		fmt.Fprintf(tw, "candidates:\t%d\n", res.Candidates)
		fmt.Fprintf(tw, "rosters:\t%d unique, %d persisted\n", res.Unique, res.Persisted)
		fmt.Fprintf(tw, "duration:\t%s\n", res.Duration)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if job.Result != nil {
		for _, r := range job.Result.Rosters {
			fmt.Fprintln(cfg.Out)
			if err := writeRoster(cfg.Out, r); err != nil {
				return err
			}
		}
	}
	return nil
}

func printTeams(cfg *Config, teams []string) error {
	if cfg.JSON {
		if teams == nil {
			teams = []string{}
		}
		return printJSON(cfg.Out, map[string][]string{"teams": teams})
	}
	if len(teams) == 0 {
		_, err := fmt.Fprintln(cfg.Out, "no rosters stored")
		return err
	}
	_, err := fmt.Fprintln(cfg.Out, strings.Join(teams, "\n"))
	return err
}

func printRoster(cfg *Config, r model.Roster) error {
	if cfg.JSON {
		return printJSON(cfg.Out, r)
	}
	return writeRoster(cfg.Out, r)
}

// writeRoster prints the team header and one numbered player per line.
func writeRoster(w io.Writer, r model.Roster) error {
	fmt.Fprintf(w, "%s (frame %d)\n", r.TeamName, r.Frame)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for i, name := range r.Names {
		num := ""
		if i < len(r.Numbers) {
			num = r.Numbers[i]
		}
		fmt.Fprintf(tw, "  %s\t%s\n", num, name)
	}
	return tw.Flush()
}
