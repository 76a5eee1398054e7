// Package testutil provides shared fixtures for package tests.
package testutil

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/rockymount114/City-Workflow/internal/models"
)

// NewSQLiteDB returns a migrated in-memory database private to t.
// Foreign keys are enforced so cascades behave as on postgres.
func NewSQLiteDB(t testing.TB, migrate ...interface{}) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=1", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if len(migrate) > 0 {
		if err := db.AutoMigrate(migrate...); err != nil {
			t.Fatalf("automigrate: %v", err)
		}
	}
	return db
}

// AllModels lists every persisted model, referenced tables first.
func AllModels() []interface{} {
	return []interface{}{
		&models.User{},
		&models.Application{},
		&models.ApplicationField{},
		&models.ApplicationRequest{},
		&models.ApprovalStep{},
		&models.AuditLog{},
	}
}

// CreateUser inserts an active user with role.
func CreateUser(t testing.TB, db *gorm.DB, email string, role models.Role) *models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("TestPassword12!"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	u := &models.User{
		Email:        email,
		PasswordHash: string(hash),
		FirstName:    "Test",
		LastName:     string(role),
		Role:         role,
		IsActive:     true,
	}
	if err := db.Create(u).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

// CreateApplication inserts an active application with workflow.
func CreateApplication(t testing.TB, db *gorm.DB, name string, workflow ...models.Role) *models.Application {
	t.Helper()
	app := &models.Application{
		Name:             name,
		IsActive:         true,
		RequiresApproval: len(workflow) > 0,
		ApprovalWorkflow: workflow,
	}
	if err := db.Create(app).Error; err != nil {
		t.Fatalf("create application: %v", err)
	}
	return app
}

// CreateRequest inserts a request for app by user with status at level,
// together with a pending step row for that level when it is pending.
func CreateRequest(t testing.TB, db *gorm.DB, user *models.User, app *models.Application, status models.RequestStatus, level int, createdAt time.Time) *models.ApplicationRequest {
	t.Helper()
	chain := app.WorkflowSnapshot()
	req := &models.ApplicationRequest{
		UserID:           user.ID,
		ApplicationID:    app.ID,
		Status:           status,
		CurrentLevel:     level,
		ApprovalWorkflow: chain,
		RequestType:      models.RequestNewAccount,
		Environment:      models.EnvironmentProd,
		Justification:    "Access is required to perform daily duties for the department.",
		RequestedRoles:   models.StringList{"Viewer"},
		CreatedAt:        createdAt,
		UpdatedAt:        createdAt,
	}
	if status.IsTerminal() {
		decided := createdAt.Add(2 * time.Hour)
		req.DecidedAt = &decided
	}
	if err := db.Create(req).Error; err != nil {
		t.Fatalf("create request: %v", err)
	}
	if status.IsPending() && level > 0 && level <= len(chain) {
		step := &models.ApprovalStep{
			RequestID:    req.ID,
			Level:        level,
			RequiredRole: chain[level-1],
			Status:       models.StepPending,
		}
		if err := db.Create(step).Error; err != nil {
			t.Fatalf("create step: %v", err)
		}
	}
	return req
}
