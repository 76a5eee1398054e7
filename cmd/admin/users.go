package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/rockymount114/City-Workflow/internal/models"
	"github.com/rockymount114/City-Workflow/internal/repository"
	"github.com/rockymount114/City-Workflow/internal/validation"

	"github.com/spf13/cobra"
)

func newUsersCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "List and change user accounts",
	}
	cmd.AddCommand(newUsersListCommand(), newUsersPromoteCommand(), newUsersUnlockCommand(),
		newUsersCreateCommand(), newUsersPasswordCommand())
	return cmd
}

func newUsersListCommand() *cobra.Command {
	var role, search string
	var page, size int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List users",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := connect()
			if err != nil {
				return err
			}
			res, err := e.users.List(cmd.Context(), repository.UserFilter{
				Role:   models.Role(role),
				Search: search,
				Page:   repository.Page{Number: page, Size: size},
			})
			if err != nil {
				return err
			}
			now := time.Now()
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tEMAIL\tNAME\tROLE\tDEPARTMENT\tACTIVE\tLOCKED")
			for _, u := range res.Items {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%t\t%t\n",
					u.ID, u.Email, u.FullName(), u.Role, u.Department, u.IsActive, u.IsLocked(now))
			}
			if err := w.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "page %d, %d of %d users\n", res.Page, len(res.Items), res.Total)
			return nil
		},
	}
	cmd.Flags().StringVar(&role, "role", "", "filter by role")
	cmd.Flags().StringVarP(&search, "query", "q", "", "search e-mail and name")
	cmd.Flags().IntVar(&page, "page", 1, "page number")
	cmd.Flags().IntVar(&size, "page-size", 50, "page size")
	return cmd
}

func newUsersPromoteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "promote <email> <role>",
		Short: "Change a user's role",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := connect()
			if err != nil {
				return err
			}
			u, err := userByEmail(cmd.Context(), e, args[0])
			if err != nil {
				return err
			}
			role := args[1]
			updated, err := e.users.Update(cmd.Context(), cliActor, u.ID, validation.UserPatch{Role: &role})
			if err != nil {
				return describe(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✅ %s (ID: %d) is now %s\n", updated.Email, updated.ID, updated.Role)
			return nil
		},
	}
}

func newUsersUnlockCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "unlock <email>",
		Short: "Clear a lockout and failed login counter",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := connect()
			if err != nil {
				return err
			}
			u, err := userByEmail(cmd.Context(), e, args[0])
			if err != nil {
				return err
			}
			if _, err := e.users.Unlock(cmd.Context(), cliActor, u.ID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✅ unlocked %s\n", u.Email)
			return nil
		},
	}
}

func newUsersCreateCommand() *cobra.Command {
	var in validation.UserInput
	cmd := &cobra.Command{
		Use:   "create <email>",
		Short: "Create a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := connect()
			if err != nil {
				return err
			}
			in.Email = args[0]
			if in.Password == "" {
				in.Password = os.Getenv("ADMIN_USER_PASSWORD")
			}
			u, err := e.users.Create(cmd.Context(), cliActor, in)
			if err != nil {
				return describe(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✅ created %s (ID: %d, role %s)\n", u.Email, u.ID, u.Role)
			return nil
		},
	}
	cmd.Flags().StringVar(&in.FirstName, "first-name", "", "first name (required)")
	cmd.Flags().StringVar(&in.LastName, "last-name", "", "last name (required)")
	cmd.Flags().StringVar(&in.Role, "role", string(models.RoleApplicant), "role")
	cmd.Flags().StringVar(&in.Department, "department", "", "department")
	cmd.Flags().StringVar(&in.EmployeeID, "employee-id", "", "employee ID (EMP000000)")
	cmd.Flags().StringVar(&in.Password, "password", "", "password (defaults to $ADMIN_USER_PASSWORD)")
	return cmd
}

func newUsersPasswordCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "set-password <email>",
		Short: "Set a user's password from $ADMIN_USER_PASSWORD",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			password := os.Getenv("ADMIN_USER_PASSWORD")
			if password == "" {
				return fmt.Errorf("ADMIN_USER_PASSWORD is not set")
			}
			e, err := connect()
			if err != nil {
				return err
			}
			u, err := userByEmail(cmd.Context(), e, args[0])
			if err != nil {
				return err
			}
			if _, err := e.users.Update(cmd.Context(), cliActor, u.ID, validation.UserPatch{Password: &password}); err != nil {
				return describe(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✅ password updated for %s\n", u.Email)
			return nil
		},
	}
}

func userByEmail(ctx context.Context, e *env, email string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	u, err := e.repos.Users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, fmt.Errorf("no user with e-mail %s", email)
	}
	return u, nil
}

// describe expands field errors so they are readable on a terminal.
func describe(err error) error {
	var appErr *models.AppError
	if !errors.As(err, &appErr) || len(appErr.Fields) == 0 {
		return err
	}
	fields := make([]string, 0, len(appErr.Fields))
	for field := range appErr.Fields {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	var b strings.Builder
	b.WriteString(appErr.Message)
	for _, field := range fields {
		fmt.Fprintf(&b, "\n  %s: %s", field, strings.Join(appErr.Fields[field], "; "))
	}
	return errors.New(b.String())
}
