package cli

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/me/mfalite/pkg/model"
)

func newStatusCmd() *cobra.Command {
	var watch bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show server health (admin)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := requireIdentity(); err != nil {
				return err
			}

			if err := printServerStatus(cmd); err != nil {
				return err
			}
			if !watch {
				return nil
			}

			// The dashboard refreshes server health every 30 seconds.
			ticker := time.NewTicker(30 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-cmd.Context().Done():
					return nil
				case <-ticker.C:
					fmt.Fprintln(cmd.OutOrStdout())
					if err := printServerStatus(cmd); err != nil {
						return err
					}
				}
			}
		},
	}

	cmd.Flags().BoolVar(&watch, "watch", false, "Refresh every 30s until interrupted")
	return cmd
}

func printServerStatus(cmd *cobra.Command) error {
	resp, err := client.Get(cmd.Context(), "/server-status/default")
	if err != nil {
		return fmt.Errorf("fetch server status: %w", err)
	}
	var status model.ServerStatus
	if err := resp.Decode(&status); err != nil {
		return fmt.Errorf("parse server status: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Status:  %s\n", status.Status)
	if status.Uptime > 0 {
		fmt.Fprintf(out, "Up:      since %s\n", humanize.Time(time.UnixMilli(status.Uptime)))
	}
	fmt.Fprintf(out, "CPU:     %.0f%%\n", status.CPUUsage)
	fmt.Fprintf(out, "Memory:  %.0fGB used of %.0fGB\n", status.MemoryUsed, status.MemoryUsed+status.MemoryAvailable)
	fmt.Fprintf(out, "Disk:    %.0fGB used of %.0fGB\n", status.DiskSpaceUsed, status.DiskSpaceUsed+status.DiskSpaceAvailable)

	if len(status.Config) > 0 {
		keys := make([]string, 0, len(status.Config))
		for k := range status.Config {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		fmt.Fprintln(out, "Config:")
		for _, k := range keys {
			fmt.Fprintf(out, "  %s: %v\n", k, status.Config[k])
		}
	}
	return nil
}

func newUsageCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "usage",
		Short: "Show per-user run statistics (admin)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := requireIdentity(); err != nil {
				return err
			}

			resp, err := client.Get(cmd.Context(), "/run-stats/default")
			if err != nil {
				return fmt.Errorf("fetch run stats: %w", err)
			}
			var stats model.RunStats
			if err := resp.Decode(&stats); err != nil {
				return fmt.Errorf("parse run stats: %w", err)
			}
			if len(stats.RunCounts) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No run activity recorded.")
				return nil
			}

			// Roll counters keyed "user|product|status" up per user.
			type totals struct{ started, completed, errored int64 }
			perUser := make(map[string]*totals)
			for key, count := range stats.RunCounts {
				parts := strings.SplitN(key, "|", 3)
				if len(parts) != 3 {
					continue
				}
				t := perUser[parts[0]]
				if t == nil {
					t = &totals{}
					perUser[parts[0]] = t
				}
				switch parts[2] {
				case model.ReportStarted:
					t.started += count
				case model.ReportCompleted:
					t.completed += count
				case model.ReportError:
					t.errored += count
				}
			}

			users := make([]string, 0, len(perUser))
			for u := range perUser {
				users = append(users, u)
			}
			sort.Strings(users)

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%-28s  %8s  %10s  %7s\n", "USER", "STARTED", "COMPLETED", "ERRORS")
			for _, u := range users {
				t := perUser[u]
				fmt.Fprintf(out, "%-28s  %8d  %10d  %7d\n", u, t.started, t.completed, t.errored)
			}
			return nil
		},
	}
}
