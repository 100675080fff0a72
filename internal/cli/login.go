package cli

import (
	"fmt"
	"net/url"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/me/mfalite/pkg/model"
)

// readPassword is a test seam for term.ReadPassword.
var readPassword = func() ([]byte, error) {
	return term.ReadPassword(int(os.Stdin.Fd()))
}

func newLoginCmd() *cobra.Command {
	var email string
	var password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Authenticate with the MFALite server",
		Long:  "Exchange credentials for an access token and persist the session locally.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if email == "" {
				return fmt.Errorf("--email is required")
			}
			if password == "" {
				var err error
				password, err = promptPassword(cmd, "Password: ")
				if err != nil {
					return err
				}
			}

			// The backend accepts the login as either email or username,
			// so both fields carry the same value.
			resp, err := client.PostForm(cmd.Context(), "/login", url.Values{
				"email":    {email},
				"username": {email},
				"password": {password},
			})
			if err != nil {
				return fmt.Errorf("login failed: %w", err)
			}

			var login model.LoginResponse
			if err := resp.Decode(&login); err != nil {
				return fmt.Errorf("parse login response: %w", err)
			}
			if login.AccessToken == "" {
				return fmt.Errorf("login response carries no access token")
			}

			identity, err := model.IdentityFromToken(login.AccessToken)
			if err != nil {
				return err
			}
			if err := store.SetIdentity(identity); err != nil {
				return fmt.Errorf("persist session: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s (%s)\n", identity.ID, identity.Email)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Account email or username")
	cmd.Flags().StringVar(&password, "password", "", "Password (prompted if omitted)")
	return cmd
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Discard the local session",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := store.SetIdentity(nil); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out.")
			return nil
		},
	}
}

func promptPassword(cmd *cobra.Command, prompt string) (string, error) {
	fmt.Fprint(cmd.ErrOrStderr(), prompt)
	pw, err := readPassword()
	fmt.Fprintln(cmd.ErrOrStderr())
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(pw), nil
}
