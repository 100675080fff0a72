package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newSignupCmd() *cobra.Command {
	var email string
	var password string

	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Request a new account",
		RunE: func(cmd *cobra.Command, args []string) error {
			if email == "" {
				return fmt.Errorf("--email is required")
			}
			if password == "" {
				var err error
				password, err = promptPassword(cmd, "Choose a password: ")
				if err != nil {
					return err
				}
			}
			if len(password) < 9 {
				return fmt.Errorf("password must be at least 9 characters long")
			}

			if _, err := client.Post(cmd.Context(), "/signup", map[string]string{
				"email":    email,
				"password": password,
			}); err != nil {
				return fmt.Errorf("signup failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Signup requested for %s. Check your email for next steps.\n", email)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Account email")
	cmd.Flags().StringVar(&password, "password", "", "Password (prompted if omitted)")
	return cmd
}

func newForgotPasswordCmd() *cobra.Command {
	var email string

	cmd := &cobra.Command{
		Use:   "forgot-password",
		Short: "Request a password reset email",
		RunE: func(cmd *cobra.Command, args []string) error {
			if email == "" {
				return fmt.Errorf("--email is required")
			}
			if _, err := client.Post(cmd.Context(), "/forgot-password", map[string]string{
				"email": email,
			}); err != nil {
				return fmt.Errorf("request reset: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "If %s has an account, a reset email is on the way.\n", email)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Account email")
	return cmd
}
