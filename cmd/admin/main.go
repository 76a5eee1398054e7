// Command admin manages users and access tokens from the command line.
package main

import (
	"fmt"
	"os"

	"github.com/rockymount114/City-Workflow/internal/bootstrap"
	"github.com/rockymount114/City-Workflow/internal/config"
	"github.com/rockymount114/City-Workflow/internal/models"
	"github.com/rockymount114/City-Workflow/internal/repository"
	"github.com/rockymount114/City-Workflow/internal/service"

	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

// cliActor is recorded on audit rows written by this tool.
var cliActor = models.Actor{
	Principal: models.Principal{Role: models.RoleAdmin},
	Meta:      models.RequestMeta{IPAddress: "cli", UserAgent: "city-workflow-admin"},
}

// env is the runtime shared by every subcommand.
type env struct {
	cfg   *config.Config
	db    *gorm.DB
	repos repository.Repos
	users *service.UserService
}

func connect() (*env, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	// Redis is wired so cached users are invalidated by changes made here.
	db, _, err := bootstrap.InitRuntime(cfg, bootstrap.Options{})
	if err != nil {
		return nil, err
	}
	repos := repository.NewRepos(db)
	return &env{
		cfg:   cfg,
		db:    db,
		repos: repos,
		users: service.NewUserService(repos.Users, repository.NewTransactor(db), cfg.EmailDomain),
	}, nil
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "admin",
		Short:         "City Workflow administration",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(newUsersCommand(), newTokenCommand(), newCatalogCommand())
	return cmd
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
