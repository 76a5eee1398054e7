package database

import "github.com/rockymount114/City-Workflow/internal/models"

// PersistentModels returns the authoritative set of schema-managed GORM models.
// Order matters for AutoMigrate: referenced tables first.
func PersistentModels() []interface{} {
	return []interface{}{
		&models.User{},
		&models.Application{},
		&models.ApplicationField{},
		&models.ApplicationRequest{},
		&models.ApprovalStep{},
		&models.AuditLog{},
	}
}
