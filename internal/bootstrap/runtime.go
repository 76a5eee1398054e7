// Package bootstrap wires the database and Redis for the command-line
// entry points and creates the development root admin.
package bootstrap

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/rockymount114/City-Workflow/internal/cache"
	"github.com/rockymount114/City-Workflow/internal/config"
	"github.com/rockymount114/City-Workflow/internal/database"
	"github.com/rockymount114/City-Workflow/internal/middleware"
	"github.com/rockymount114/City-Workflow/internal/models"
	"github.com/rockymount114/City-Workflow/internal/seed"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const defaultRootEmail = "admin@city.gov"

// Options control runtime initialization behavior.
type Options struct {
	// SeedCatalog upserts the built-in application catalog.
	SeedCatalog bool
}

// InitRuntime connects to DB and Redis and optionally seeds the catalog.
func InitRuntime(cfg *config.Config, opts Options) (*gorm.DB, *redis.Client, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("database connection failed: %w", err)
	}

	// Init Redis (may result in nil client if unreachable)
	cache.InitRedis(cfg.RedisURL)
	r := cache.GetClient()

	if err := EnsureDevRootAdmin(cfg, db); err != nil {
		return nil, nil, fmt.Errorf("failed to bootstrap development root admin: %w", err)
	}

	if opts.SeedCatalog {
		if _, err := seed.Catalog(db); err != nil {
			return nil, nil, fmt.Errorf("failed to seed application catalog: %w", err)
		}
	}

	return db, r, nil
}

// EnsureDevRootAdmin creates or re-activates an ADMIN account in
// development when DEV_BOOTSTRAP_ROOT is set. An existing account keeps
// its password.
func EnsureDevRootAdmin(cfg *config.Config, db *gorm.DB) error {
	if cfg == nil || db == nil {
		return nil
	}
	if !strings.EqualFold(cfg.Env, "development") || !cfg.DevBootstrapRoot {
		return nil
	}

	email := strings.TrimSpace(strings.ToLower(cfg.DevRootEmail))
	if email == "" {
		email = defaultRootEmail
	}
	password := cfg.DevRootPassword
	if password == "" {
		return errors.New("DEV_ROOT_PASSWORD must be set when DEV_BOOTSTRAP_ROOT is enabled")
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		var root models.User
		findErr := tx.Where("email = ?", email).First(&root).Error
		switch {
		case errors.Is(findErr, gorm.ErrRecordNotFound):
			hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
			if err != nil {
				return fmt.Errorf("hash root password: %w", err)
			}
			root = models.User{
				Email:        email,
				PasswordHash: string(hash),
				FirstName:    "Root",
				LastName:     "Admin",
				Role:         models.RoleAdmin,
				Department:   "IT",
				IsActive:     true,
			}
			return tx.Create(&root).Error
		case findErr != nil:
			return findErr
		default:
			return tx.Model(&root).Updates(map[string]any{
				"role":                  models.RoleAdmin,
				"is_active":             true,
				"failed_login_attempts": 0,
				"locked_until":          nil,
			}).Error
		}
	})
	if err != nil {
		return err
	}

	middleware.Logger.Info("development root admin ensured", slog.String("email", email))
	return nil
}
