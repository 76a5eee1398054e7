package seed

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/rockymount114/City-Workflow/internal/middleware"
	"github.com/rockymount114/City-Workflow/internal/models"

	"gorm.io/gorm"
)

// Options configuration for the seeder
type Options struct {
	NumUsers    int
	NumRequests int
	ShouldClean bool
	// DryRun builds entities without writing them.
	DryRun bool
	// MaxDays bounds how far back request timestamps go.
	MaxDays     int
	EmailDomain string
	// RandSeed makes a run reproducible when non-zero.
	RandSeed int64
}

// Result counts what a run created.
type Result struct {
	Applications int
	Users        int
	Requests     int
}

// Seed fills the database with the catalog, users of every role and
// requests in every state.
func Seed(db *gorm.DB, opts Options) (Result, error) {
	var res Result
	if opts.ShouldClean && !opts.DryRun {
		if err := clearData(db); err != nil {
			return res, fmt.Errorf("clean: %w", err)
		}
	}

	f, err := NewFactory(db, opts)
	if err != nil {
		return res, err
	}

	var apps []models.Application
	if opts.DryRun {
		apps, err = catalogModels()
	} else {
		if res.Applications, err = Catalog(db); err != nil {
			return res, err
		}
		err = db.Preload("CustomFields").Where("is_active = ?", true).Order("id").Find(&apps).Error
	}
	if err != nil {
		return res, err
	}
	if len(apps) == 0 {
		return res, errors.New("no active applications to request")
	}

	// One approver per workflow role signs every decided step.
	approvers := map[models.Role]*models.User{}
	for _, role := range []models.Role{models.RoleApproverL1, models.RoleApproverL2, models.RoleAdmin} {
		u, err := f.CreateUser(role)
		if err != nil {
			return res, fmt.Errorf("create %s: %w", role, err)
		}
		approvers[role] = u
		res.Users++
	}

	applicants := make([]*models.User, 0, opts.NumUsers)
	for i := 0; i < opts.NumUsers; i++ {
		u, err := f.CreateUser(models.RoleApplicant)
		if err != nil {
			return res, fmt.Errorf("create applicant: %w", err)
		}
		applicants = append(applicants, u)
		res.Users++
	}
	if len(applicants) == 0 {
		return res, nil
	}

	for i := 0; i < opts.NumRequests; i++ {
		applicant := applicants[f.rng.Intn(len(applicants))]
		app := &apps[f.rng.Intn(len(apps))]
		if _, err := f.CreateRequest(applicant, app, approvers); err != nil {
			return res, fmt.Errorf("create request: %w", err)
		}
		res.Requests++
	}

	middleware.Logger.Info("seed complete",
		slog.Int("applications", res.Applications),
		slog.Int("users", res.Users),
		slog.Int("requests", res.Requests),
		slog.Bool("dry_run", opts.DryRun))
	return res, nil
}

// catalogModels builds the catalog without a database, with synthetic IDs.
func catalogModels() ([]models.Application, error) {
	entries, err := LoadCatalog()
	if err != nil {
		return nil, err
	}
	apps := make([]models.Application, 0, len(entries))
	for i, e := range entries {
		in, err := e.Input()
		if err != nil {
			return nil, err
		}
		app, err := in.Build()
		if err != nil {
			return nil, fmt.Errorf("catalog entry %q: %w", e.Name, err)
		}
		app.ID = uint(i + 1)
		apps = append(apps, *app)
	}
	return apps, nil
}

// clearData removes workflow data, dependents first. Audit rows are kept.
func clearData(db *gorm.DB) error {
	for _, m := range []any{&models.ApprovalStep{}, &models.ApplicationRequest{}, &models.ApplicationField{}, &models.Application{}} {
		if err := db.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(m).Error; err != nil {
			return err
		}
	}
	// Accounts that can administer the system survive a clean.
	return db.Where("role <> ?", models.RoleAdmin).Delete(&models.User{}).Error
}
