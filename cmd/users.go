package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/koopa0/ragctl/internal/api"
)

// NewUsersCmd creates the users command group.
func NewUsersCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Manage backend user accounts",
	}
	cmd.AddCommand(
		newUsersListCmd(a),
		newUsersCreateCmd(a),
		newUsersUpdateCmd(a),
		newUsersDeleteCmd(a),
	)
	return cmd
}

func newUsersListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List user accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			users, err := a.client.ListUsers(cmd.Context())
			if err != nil {
				return err
			}
			if len(users) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No users.")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tUSERNAME\tROLE\tACTIVE")
			for _, u := range users {
				fmt.Fprintf(w, "%s\t%s\t%s\t%t\n", u.ID, u.Username, u.Role, u.Active)
			}
			return w.Flush()
		},
	}
}

func newUsersCreateCmd(a *app) *cobra.Command {
	var password, role string

	cmd := &cobra.Command{
		Use:   "create <username>",
		Short: "Create a user account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			created, err := a.client.CreateUser(cmd.Context(), args[0], password, role)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %s (%s)\n", created.Username, created.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&password, "password", "", "initial password (required)")
	cmd.Flags().StringVar(&role, "role", "viewer", "account role")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newUsersUpdateCmd(a *app) *cobra.Command {
	var role string
	var active bool

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update a user's role or active flag",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			updated, err := a.client.UpdateUser(cmd.Context(), api.User{
				ID:     args[0],
				Role:   role,
				Active: active,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "updated %s\n", updated.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&role, "role", "viewer", "account role")
	cmd.Flags().BoolVar(&active, "active", true, "whether the account may sign in")
	return cmd
}

func newUsersDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a user account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.client.DeleteUser(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
			return nil
		},
	}
}
