package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/me/mfalite/pkg/model"
)

func newAssumeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "assume <user_id>",
		Short: "Impersonate another user (admin)",
		Long: `Exchange the current session for one acting as the given user. The
previous session is replaced; log in again to return to your own account.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := requireIdentity(); err != nil {
				return err
			}

			resp, err := client.Post(cmd.Context(), "/assume-role", map[string]string{
				"userId": args[0],
			})
			if err != nil {
				return fmt.Errorf("assume user: %w", err)
			}
			var login model.LoginResponse
			if err := resp.Decode(&login); err != nil {
				return fmt.Errorf("parse response: %w", err)
			}

			identity, err := model.IdentityFromToken(login.AccessToken)
			if err != nil {
				return err
			}
			if err := store.SetIdentity(identity); err != nil {
				return fmt.Errorf("persist session: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Now acting as %s\n", identity.ID)
			return nil
		},
	}
}
