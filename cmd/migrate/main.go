// Command migrate applies, inspects and rolls back the workflow schema.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/rockymount114/City-Workflow/internal/config"
	"github.com/rockymount114/City-Workflow/internal/database"

	"gorm.io/gorm"
)

const usageText = `usage: migrate [-yes] <command> [args]

commands:
  up              apply pending SQL migrations (postgres)
  auto            run gorm AutoMigrate for every model (not in production)
  status          show the schema mode and pending migrations
  down <version>  revert one applied migration (-yes required in production)`

type runner struct {
	ctx context.Context
	cfg *config.Config
	db  *gorm.DB
	yes bool
}

func main() {
	yes := flag.Bool("yes", false, "Confirm destructive commands in production")
	flag.Usage = func() { fmt.Fprintln(os.Stderr, usageText) }
	flag.Parse()

	if err := run(*yes, flag.Args()); err != nil {
		log.Fatal(err)
	}
}

func run(yes bool, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("%s", usageText)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	db, err := database.Open(cfg)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	r := &runner{ctx: context.Background(), cfg: cfg, db: db, yes: yes}

	commands := map[string]func([]string) error{
		"up":     r.up,
		"auto":   r.auto,
		"status": r.status,
		"down":   r.down,
	}
	cmd, ok := commands[strings.ToLower(strings.TrimSpace(args[0]))]
	if !ok {
		return fmt.Errorf("unknown command %q\n%s", args[0], usageText)
	}
	return cmd(args[1:])
}

func (r *runner) up([]string) error {
	if r.cfg.DBDriver != "postgres" {
		return fmt.Errorf("SQL migrations require postgres; use 'auto' for %s", r.cfg.DBDriver)
	}
	if err := database.RunMigrations(r.ctx, r.db); err != nil {
		return fmt.Errorf("sql migrations failed: %w", err)
	}
	log.Println("sql migrations applied")
	return r.status(nil)
}

func (r *runner) auto([]string) error {
	r.cfg.DBSchemaMode = database.SchemaModeAuto
	if err := database.ApplySchema(r.ctx, r.db, r.cfg); err != nil {
		return fmt.Errorf("auto schema apply failed: %w", err)
	}
	log.Println("automigrations applied")
	return nil
}

func (r *runner) status([]string) error {
	status, err := database.GetSchemaStatus(r.ctx, r.db, r.cfg)
	if err != nil {
		return fmt.Errorf("schema status failed: %w", err)
	}
	log.Printf("mode=%s env=%s driver=%s run_sql=%t run_auto=%t applied=%d pending=%d",
		status.Mode, status.Environment, status.Driver, status.WillRunSQL, status.WillRunAutoMigrate,
		len(status.AppliedVersions), len(status.PendingMigrations))
	for _, m := range status.PendingMigrations {
		log.Printf("pending: %s", m.String())
	}
	return nil
}

func (r *runner) down(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: migrate down <version>")
	}
	version, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid version %q: %w", args[0], err)
	}
	if r.cfg.IsProduction() && !r.yes {
		return fmt.Errorf("refusing to roll back migration %d in %s without -yes", version, r.cfg.Env)
	}
	if err := database.RollbackMigration(r.ctx, r.db, version); err != nil {
		return fmt.Errorf("rollback failed: %w", err)
	}
	log.Printf("rolled back migration %d", version)
	return nil
}
