package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"mediaflow/internal/access"
	"mediaflow/internal/api"
	"mediaflow/internal/jobs"
	"mediaflow/internal/users"
)

func newUsersCommand(ctx *commandContext) *cobra.Command {
	usersCmd := &cobra.Command{
		Use:   "users",
		Short: "Manage principals directly in the database",
	}
	usersCmd.AddCommand(newUsersAddCommand(ctx))
	usersCmd.AddCommand(newUsersListCommand(ctx))
	return usersCmd
}

func newUsersAddCommand(ctx *commandContext) *cobra.Command {
	var (
		organization string
		role         string
		email        string
		token        string
	)
	cmd := &cobra.Command{
		Use:   "add <username>",
		Short: "Create or update a user and print a fresh bearer token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			username := strings.TrimSpace(args[0])
			if username == "" {
				return fmt.Errorf("username is required")
			}
			if strings.TrimSpace(organization) == "" {
				return fmt.Errorf("--organization is required")
			}
			parsedRole, ok := access.ParseRole(role)
			if !ok {
				return fmt.Errorf("unknown role %q (want one of %v)", role, access.Roles)
			}
			if token == "" {
				generated, err := users.GenerateToken()
				if err != nil {
					return err
				}
				token = generated
			}
			user := &users.User{
				Username:     username,
				Email:        strings.TrimSpace(email),
				Organization: strings.TrimSpace(organization),
				Role:         parsedRole,
				TokenHash:    users.HashToken(token),
			}
			err := ctx.withStores(cmd.Context(), func(c context.Context, _ *jobs.Store, store *users.Store) error {
				return store.Upsert(c, user)
			})
			if err != nil {
				return fmt.Errorf("save user: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "User %s (%s) saved in %s as %s\n", user.Username, user.ID, user.Organization, user.Role)
			fmt.Fprintf(out, "Token: %s\n", token)
			fmt.Fprintln(out, "The token is not stored in plain text; keep it now.")
			return nil
		},
	}
	cmd.Flags().StringVarP(&organization, "organization", "o", "", "Organization (tenant) of the user")
	cmd.Flags().StringVarP(&role, "role", "r", string(access.RoleViewer), "Role: viewer, editor or admin")
	cmd.Flags().StringVar(&email, "email", "", "Contact email")
	cmd.Flags().StringVar(&token, "token", "", "Use this token instead of generating one")
	return cmd
}

func newUsersListCommand(ctx *commandContext) *cobra.Command {
	var organization string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List users, optionally for one organization",
		RunE: func(cmd *cobra.Command, args []string) error {
			var list []*users.User
			err := ctx.withStores(cmd.Context(), func(c context.Context, _ *jobs.Store, store *users.Store) error {
				var err error
				list, err = store.ListByOrganization(c, strings.TrimSpace(organization))
				return err
			})
			if err != nil {
				return fmt.Errorf("list users: %w", err)
			}
			out := cmd.OutOrStdout()
			dtos := api.FromUsers(list)
			if ctx.flags.json {
				return writeJSON(out, api.UserListResponse{Users: dtos})
			}
			if len(dtos) == 0 {
				fmt.Fprintln(out, "No users")
				return nil
			}
			rows := make([][]string, 0, len(dtos))
			for _, u := range dtos {
				rows = append(rows, []string{u.ID, u.Username, u.Organization, u.Role, u.Email})
			}
			fmt.Fprintln(out, renderTable([]string{"ID", "Username", "Organization", "Role", "Email"}, rows, nil))
			return nil
		},
	}
	cmd.Flags().StringVarP(&organization, "organization", "o", "", "Only list users of this organization")
	return cmd
}
