package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/me/mfalite/pkg/model"
)

func newRolesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "roles",
		Short: "Manage roles and products (admin)",
	}
	cmd.AddCommand(newRolesListCmd(), newRolesAddCmd(), newRolesUpdateCmd(), newRolesDeleteCmd())
	return cmd
}

func fetchRoles(cmd *cobra.Command) ([]model.Role, error) {
	resp, err := client.Get(cmd.Context(), "/roles")
	if err != nil {
		return nil, fmt.Errorf("fetch roles: %w", err)
	}
	var roles []model.Role
	if !resp.NoContent {
		if err := resp.Decode(&roles); err != nil {
			return nil, fmt.Errorf("parse roles: %w", err)
		}
	}
	return roles, nil
}

func newRolesListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List roles",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := requireIdentity(); err != nil {
				return err
			}
			roles, err := fetchRoles(cmd)
			if err != nil {
				return err
			}
			if len(roles) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No roles found.")
				return nil
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%-20s  %-24s  %-10s  %s\n", "ID", "TITLE", "TYPE", "DESCRIPTION")
			for _, r := range roles {
				fmt.Fprintf(out, "%-20s  %-24s  %-10s  %s\n", r.ID, r.Title, r.Type, r.Description)
			}
			return nil
		},
	}
}

func newRolesAddCmd() *cobra.Command {
	var role model.Role

	cmd := &cobra.Command{
		Use:   "add <role_id>",
		Short: "Create a role",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := requireIdentity(); err != nil {
				return err
			}
			role.ID = args[0]
			if role.Title == "" {
				role.Title = role.ID
			}
			resp, err := client.Post(cmd.Context(), "/role", role)
			if err != nil {
				return fmt.Errorf("create role: %w", err)
			}
			var created model.Role
			if err := resp.Decode(&created); err != nil {
				return fmt.Errorf("parse response: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created role %s\n", created.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&role.Title, "title", "", "Display title (defaults to the ID)")
	cmd.Flags().StringVar(&role.Type, "type", "", `Role type ("product" marks an orderable analysis)`)
	cmd.Flags().StringVar(&role.Description, "description", "", "Description")
	return cmd
}

func newRolesUpdateCmd() *cobra.Command {
	var role model.Role

	cmd := &cobra.Command{
		Use:   "update <role_id>",
		Short: "Update a role",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := requireIdentity(); err != nil {
				return err
			}
			id := args[0]

			roles, err := fetchRoles(cmd)
			if err != nil {
				return err
			}
			updated := model.Role{ID: id}
			for _, r := range roles {
				if r.ID == id {
					updated = r
				}
			}
			if cmd.Flags().Changed("title") {
				updated.Title = role.Title
			}
			if cmd.Flags().Changed("type") {
				updated.Type = role.Type
			}
			if cmd.Flags().Changed("description") {
				updated.Description = role.Description
			}

			if _, err := client.Put(cmd.Context(), "/role/"+id, updated); err != nil {
				return fmt.Errorf("update role: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated role %s\n", id)
			return nil
		},
	}

	cmd.Flags().StringVar(&role.Title, "title", "", "New display title")
	cmd.Flags().StringVar(&role.Type, "type", "", "New role type")
	cmd.Flags().StringVar(&role.Description, "description", "", "New description")
	return cmd
}

func newRolesDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <role_id>",
		Short: "Delete a role",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := requireIdentity(); err != nil {
				return err
			}
			if _, err := client.Delete(cmd.Context(), "/role/"+args[0]); err != nil {
				return fmt.Errorf("delete role: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted role %s\n", args[0])
			return nil
		},
	}
}
