package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/me/mfalite/pkg/api"
	"github.com/me/mfalite/pkg/model"
)

func newRunCmd() *cobra.Command {
	var product string
	var inputs []string
	var title string
	var bioInterpreter bool
	var wait bool
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Submit an MFA analysis run",
		Long: `Submit input files to an analysis product. The run is tagged with a
client-generated ID and shows up under 'mfa reports' once the server
accepts it.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			u, err := requireIdentity()
			if err != nil {
				return err
			}
			if product == "" {
				return fmt.Errorf("--product is required (see 'mfa roles list')")
			}
			if len(inputs) == 0 {
				return fmt.Errorf("at least one --input is required (see 'mfa inputs list')")
			}

			roles, err := fetchRoles(cmd)
			if err != nil {
				return err
			}
			products, hasBioInterpreter := model.ProductRoles(roles, u)
			var selected *model.Role
			for i := range products {
				if products[i].ID == product {
					selected = &products[i]
				}
			}
			if selected == nil {
				return fmt.Errorf("product %q is not available to this account", product)
			}
			if bioInterpreter && !hasBioInterpreter {
				return fmt.Errorf("the bio-interpreter option is not available to this account")
			}

			if title == "" {
				title = inputs[0]
			}
			req := model.RunRequest{
				ID:             api.NewTimestampID(),
				Product:        selected.ID,
				BioInterpreter: bioInterpreter,
				Title:          title,
				UserID:         u.ID,
				InputFiles:     inputs,
				OutputDir:      "output_dir",
			}
			logger.Info("submitting run", "id", req.ID, "product", req.Product)

			resp, err := client.Post(cmd.Context(), "/run", req)
			if err != nil {
				return fmt.Errorf("submit run: %w", err)
			}
			var report model.Report
			if err := resp.Decode(&report); err != nil {
				return fmt.Errorf("parse response: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Run submitted: %s (%s)\n", report.ID, report.Status)

			if !wait {
				return nil
			}
			return waitForReport(cmd, u.ID, report.ID, timeout)
		},
	}

	cmd.Flags().StringVar(&product, "product", "", "Analysis product role ID")
	cmd.Flags().StringSliceVar(&inputs, "input", nil, "Input file ID (repeatable)")
	cmd.Flags().StringVar(&title, "title", "", "Run title (defaults to the first input)")
	cmd.Flags().BoolVar(&bioInterpreter, "bio-interpreter", false, "Run the bio-interpreter stage")
	cmd.Flags().BoolVar(&wait, "wait", false, "Block until the run finishes")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Minute, "Give up waiting after this long")
	return cmd
}

// waitForReport polls the report list until the run reaches a terminal
// status. The interval matches the dashboard's report refresh.
func waitForReport(cmd *cobra.Command, userID, reportID string, timeout time.Duration) error {
	const pollInterval = 10 * time.Second

	deadline := time.Now().Add(timeout)
	lastStatus := ""
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		report, err := findReport(cmd, userID, reportID)
		if err != nil {
			return err
		}
		if report != nil {
			if report.Status != lastStatus {
				fmt.Fprintf(cmd.ErrOrStderr(), "Status: %s\n", report.Status)
				lastStatus = report.Status
			}
			if report.Done() {
				if report.Status == model.ReportError {
					return fmt.Errorf("run %s failed", reportID)
				}
				return nil
			}
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("timeout waiting for run %s", reportID)
		}

		select {
		case <-cmd.Context().Done():
			return cmd.Context().Err()
		case <-ticker.C:
		}
	}
}

func findReport(cmd *cobra.Command, userID, reportID string) (*model.Report, error) {
	resp, err := client.Get(cmd.Context(), "/reports?user_id="+userID)
	if err != nil {
		return nil, fmt.Errorf("poll run: %w", err)
	}
	var reports []model.Report
	if !resp.NoContent {
		if err := resp.Decode(&reports); err != nil {
			return nil, fmt.Errorf("parse reports: %w", err)
		}
	}
	for i := range reports {
		if reports[i].ID == reportID {
			return &reports[i], nil
		}
	}
	return nil, nil
}
