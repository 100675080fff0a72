package cli

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/me/mfalite/pkg/model"
)

func newReportsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reports",
		Short: "Browse analysis reports",
	}
	cmd.AddCommand(
		newReportsListCmd(),
		newReportsDeleteCmd(),
		newReportsDownloadCmd(),
		newReportsShowCmd(),
		newReportsFetchCmd(),
	)
	return cmd
}

func newReportsListCmd() *cobra.Command {
	var userID string
	var watch bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List reports",
		RunE: func(cmd *cobra.Command, args []string) error {
			u, err := requireIdentity()
			if err != nil {
				return err
			}
			if userID == "" {
				userID = u.ID
			}

			if err := printReports(cmd, userID); err != nil {
				return err
			}
			if !watch {
				return nil
			}

			// Same cadence as the dashboard's report table refresh. The
			// ticker is released when the command is interrupted.
			ticker := time.NewTicker(10 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-cmd.Context().Done():
					return nil
				case <-ticker.C:
					fmt.Fprintln(cmd.OutOrStdout())
					if err := printReports(cmd, userID); err != nil {
						return err
					}
				}
			}
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "List another user's reports (admin)")
	cmd.Flags().BoolVar(&watch, "watch", false, "Refresh every 10s until interrupted")
	return cmd
}

func printReports(cmd *cobra.Command, userID string) error {
	resp, err := client.Get(cmd.Context(), "/reports?user_id="+userID)
	if err != nil {
		return fmt.Errorf("list reports: %w", err)
	}
	var reports []model.Report
	if !resp.NoContent {
		if err := resp.Decode(&reports); err != nil {
			return fmt.Errorf("parse reports: %w", err)
		}
	}
	if len(reports) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No reports found.")
		return nil
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%-20s  %-16s  %-10s  %-28s  %s\n", "ID", "PRODUCT", "STATUS", "INPUTS", "STARTED")
	for _, r := range reports {
		started := humanize.Time(time.UnixMilli(r.StartDatetime))
		fmt.Fprintf(out, "%-20s  %-16s  %-10s  %-28s  %s\n",
			r.ID, r.Product, r.Status, strings.Join(r.InputFiles, ","), started)
	}
	return nil
}

func newReportsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <report_id>",
		Short: "Delete a report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := requireIdentity(); err != nil {
				return err
			}
			if _, err := client.Delete(cmd.Context(), "/report/"+args[0]); err != nil {
				return fmt.Errorf("delete report: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted report %s\n", args[0])
			return nil
		},
	}
}

func newReportsDownloadCmd() *cobra.Command {
	var outPath string

	cmd := &cobra.Command{
		Use:   "download <report_id>",
		Short: "Download a report's output archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := requireIdentity(); err != nil {
				return err
			}
			id := args[0]
			if outPath == "" {
				outPath = id + "-output.zip"
			}

			resp, err := client.Get(cmd.Context(), "/report/"+id+"-output.zip")
			if err != nil {
				return fmt.Errorf("download report: %w", err)
			}
			if err := os.WriteFile(outPath, resp.Bytes(), 0o644); err != nil {
				return fmt.Errorf("write archive: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved %s (%s)\n", outPath, humanize.Bytes(uint64(len(resp.Bytes()))))
			return nil
		},
	}

	cmd.Flags().StringVarP(&outPath, "out", "o", "", "Output path (default <report_id>-output.zip)")
	return cmd
}

func newReportsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <report_id>",
		Short: "Print a report's bio-interpreter summary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := requireIdentity(); err != nil {
				return err
			}

			// The summary is optional output; absence is not an error.
			result := client.GetRaw(cmd.Context(), "/report/"+args[0]+"-BioInterpreter.md")
			if result == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "No bio-interpreter summary available for this report.")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), result.Text())
			return nil
		},
	}
}

func newReportsFetchCmd() *cobra.Command {
	var outPath string

	cmd := &cobra.Command{
		Use:   "fetch <report_id> <file>",
		Short: "Fetch a file from a report's working directory",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			u, err := requireIdentity()
			if err != nil {
				return err
			}
			reportID, file := args[0], args[1]

			result := client.GetRaw(cmd.Context(), "/report-path/"+u.ID+"/work/"+reportID+"/"+file)
			if result == nil {
				fmt.Fprintf(cmd.OutOrStdout(), "%s is not available for report %s.\n", file, reportID)
				return nil
			}

			if outPath == "" {
				fmt.Fprint(cmd.OutOrStdout(), result.Text())
				return nil
			}
			if err := os.WriteFile(outPath, result.Bytes(), 0o644); err != nil {
				return fmt.Errorf("write file: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved %s\n", outPath)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outPath, "out", "o", "", "Write to a file instead of stdout")
	return cmd
}
