package cli

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/spf13/cobra"

	"github.com/me/mfalite/pkg/model"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

func newUsersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Manage user accounts (admin)",
	}
	cmd.AddCommand(newUsersListCmd(), newUsersAddCmd(), newUsersUpdateCmd(), newUsersDeleteCmd())
	return cmd
}

func newUsersListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := requireIdentity(); err != nil {
				return err
			}
			if err := store.RefreshRoster(cmd.Context()); err != nil {
				return err
			}

			users := store.Users()
			if len(users) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No users found.")
				return nil
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%-24s  %-28s  %-24s  %s\n", "ID", "EMAIL", "NAME", "ROLES")
			for _, u := range users {
				fmt.Fprintf(out, "%-24s  %-28s  %-24s  %s\n", u.ID, u.Email, u.Fullname, strings.Join(u.Roles, ","))
			}
			return nil
		},
	}
}

func newUsersAddCmd() *cobra.Command {
	var email, fullname, password string
	var roles []string

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create an account",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := requireIdentity(); err != nil {
				return err
			}
			if !emailPattern.MatchString(email) {
				return fmt.Errorf("invalid email address: %q", email)
			}
			if password == "" {
				var err error
				password, err = promptPassword(cmd, "Password for new account: ")
				if err != nil {
					return err
				}
			}
			if len(password) < 9 {
				return fmt.Errorf("password must be at least 9 characters long")
			}

			// Account IDs are the email address.
			upsert := model.UserUpsert{
				ID:           email,
				Email:        email,
				Fullname:     fullname,
				Roles:        roles,
				PasswordHash: model.HashPassword(password),
			}
			resp, err := client.Post(cmd.Context(), "/user", upsert)
			if err != nil {
				return fmt.Errorf("create user: %w", err)
			}

			var created model.User
			if err := resp.Decode(&created); err != nil {
				return fmt.Errorf("parse response: %w", err)
			}
			store.MutateRoster(func(roster []model.User) []model.User {
				return append(roster, created)
			})
			fmt.Fprintf(cmd.OutOrStdout(), "Created user %s\n", created.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Account email (becomes the user ID)")
	cmd.Flags().StringVar(&fullname, "name", "", "Full name")
	cmd.Flags().StringSliceVar(&roles, "role", nil, "Role to assign (repeatable)")
	cmd.Flags().StringVar(&password, "password", "", "Password (prompted if omitted)")
	return cmd
}

func newUsersUpdateCmd() *cobra.Command {
	var email, fullname, password string
	var roles []string

	cmd := &cobra.Command{
		Use:   "update <user_id>",
		Short: "Update an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := requireIdentity(); err != nil {
				return err
			}
			id := args[0]

			// Start from the cached record so unset flags keep their value.
			current, ok := store.UserByID(id)
			if !ok {
				if err := store.RefreshRoster(cmd.Context()); err != nil {
					return err
				}
				if current, ok = store.UserByID(id); !ok {
					return fmt.Errorf("unknown user %q", id)
				}
			}

			upsert := model.UserUpsert{
				ID:       id,
				Email:    current.Email,
				Fullname: current.Fullname,
				Roles:    current.Roles,
			}
			if email != "" {
				upsert.Email = email
			}
			if fullname != "" {
				upsert.Fullname = fullname
			}
			if cmd.Flags().Changed("role") {
				upsert.Roles = roles
			}
			if cmd.Flags().Changed("password") {
				if password == "" {
					p, err := promptPassword(cmd, "New password: ")
					if err != nil {
						return err
					}
					password = p
				}
				if len(password) < 9 {
					return fmt.Errorf("password must be at least 9 characters long")
				}
				upsert.PasswordHash = model.HashPassword(password)
			}

			resp, err := client.Put(cmd.Context(), "/user/"+id, upsert)
			if err != nil {
				return fmt.Errorf("update user: %w", err)
			}
			var updated model.User
			if err := resp.Decode(&updated); err != nil {
				return fmt.Errorf("parse response: %w", err)
			}
			store.MutateRoster(func(roster []model.User) []model.User {
				for i := range roster {
					if roster[i].ID == id {
						roster[i] = updated
					}
				}
				return roster
			})
			fmt.Fprintf(cmd.OutOrStdout(), "Updated user %s\n", id)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "New email")
	cmd.Flags().StringVar(&fullname, "name", "", "New full name")
	cmd.Flags().StringSliceVar(&roles, "role", nil, "Replacement role set (repeatable)")
	cmd.Flags().StringVar(&password, "password", "", "New password (prompted if empty)")
	return cmd
}

func newUsersDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <user_id>",
		Short: "Delete an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := requireIdentity(); err != nil {
				return err
			}
			id := args[0]
			if _, err := client.Delete(cmd.Context(), "/user/"+id); err != nil {
				return fmt.Errorf("delete user: %w", err)
			}
			store.MutateRoster(func(roster []model.User) []model.User {
				out := roster[:0]
				for _, u := range roster {
					if u.ID != id {
						out = append(out, u)
					}
				}
				return out
			})
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted user %s\n", id)
			return nil
		},
	}
}
