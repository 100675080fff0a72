package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the current session",
		RunE: func(cmd *cobra.Command, args []string) error {
			u, err := requireIdentity()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "User:  %s\n", u.ID)
			fmt.Fprintf(out, "Email: %s\n", u.Email)
			if u.Fullname != "" {
				fmt.Fprintf(out, "Name:  %s\n", u.Fullname)
			}
			fmt.Fprintf(out, "Roles: %s\n", strings.Join(u.Roles, ", "))
			fmt.Fprintf(out, "Admin: %v\n", u.IsAdmin())
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show server build metadata",
		RunE: func(cmd *cobra.Command, args []string) error {
			store.LoadVersion(cmd.Context())
			v := store.Version()
			if v == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "Server version: unavailable")
				return nil
			}
			if v.Build != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "Server version: %s (build %s)\n", v.Version, v.Build)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "Server version: %s\n", v.Version)
			}
			return nil
		},
	}
}
