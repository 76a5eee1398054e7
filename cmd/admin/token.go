package main

import (
	"fmt"
	"time"

	"github.com/rockymount114/City-Workflow/internal/middleware"
	"github.com/rockymount114/City-Workflow/internal/seed"

	"github.com/spf13/cobra"
)

func newTokenCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue API access tokens",
	}
	cmd.AddCommand(newTokenIssueCommand())
	return cmd
}

func newTokenIssueCommand() *cobra.Command {
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "issue <email>",
		Short: "Print a bearer token for an active user",
		Long: `Print a bearer token for an active user.

The token carries the user's current role. Role changes made later still
apply, because the API reloads the user on every request.

Example:
  admin token issue approver@city.gov --ttl 8h`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := connect()
			if err != nil {
				return err
			}
			u, err := userByEmail(cmd.Context(), e, args[0])
			if err != nil {
				return err
			}
			if !u.IsActive {
				return fmt.Errorf("%s is deactivated", u.Email)
			}
			if u.IsLocked(time.Now()) {
				return fmt.Errorf("%s is locked until %s", u.Email, u.LockedUntil.Format(time.RFC3339))
			}
			token, jti, err := middleware.IssueToken(e.cfg, u.ID, u.Role, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.ErrOrStderr(), "jti:", jti)
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}

func newCatalogCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "catalog",
		Short: "Create missing built-in applications",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := connect()
			if err != nil {
				return err
			}
			created, err := seed.Catalog(e.db)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✅ %d application(s) created\n", created)
			return nil
		},
	}
}
