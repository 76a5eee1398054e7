package repository

import (
	"context"
	"errors"

	"github.com/rockymount114/City-Workflow/internal/models"

	"gorm.io/gorm"
)

const (
	msgApplicationExists = "Application with this name already exists"
	msgApplicationInUse  = "Application name already in use"
)

// ApplicationRepository defines persistence operations for applications and
// their custom fields.
type ApplicationRepository interface {
	List(ctx context.Context, activeOnly bool) ([]models.Application, error)
	GetByID(ctx context.Context, id uint) (*models.Application, error)
	GetByName(ctx context.Context, name string) (*models.Application, error)
	Create(ctx context.Context, app *models.Application) error
	Update(ctx context.Context, app *models.Application, fields []models.ApplicationField, replaceFields bool) error
	Delete(ctx context.Context, id uint) error
}

type applicationRepository struct {
	db *gorm.DB
}

// NewApplicationRepository returns a new ApplicationRepository implementation.
func NewApplicationRepository(db *gorm.DB) ApplicationRepository {
	return &applicationRepository{db: db}
}

func orderedFields(db *gorm.DB) *gorm.DB {
	return db.Order("display_order ASC")
}

func (r *applicationRepository) List(ctx context.Context, activeOnly bool) ([]models.Application, error) {
	var apps []models.Application
	q := r.db.WithContext(ctx).Preload("CustomFields", orderedFields).Order("created_at DESC").Order("id DESC")
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}
	if err := q.Find(&apps).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return apps, nil
}

func (r *applicationRepository) GetByID(ctx context.Context, id uint) (*models.Application, error) {
	var app models.Application
	if err := r.db.WithContext(ctx).Preload("CustomFields", orderedFields).First(&app, id).Error; err != nil {
		return nil, notFoundOr(err, "Application", id)
	}
	return &app, nil
}

// GetByName returns nil when no application has exactly name.
func (r *applicationRepository) GetByName(ctx context.Context, name string) (*models.Application, error) {
	var app models.Application
	if err := r.db.WithContext(ctx).Where("name = ?", name).First(&app).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, models.NewInternalError(err)
	}
	return &app, nil
}

// Create inserts app together with its CustomFields.
func (r *applicationRepository) Create(ctx context.Context, app *models.Application) error {
	if err := r.db.WithContext(ctx).Create(app).Error; err != nil {
		if isUniqueConstraintError(err) {
			return models.NewConflictError(msgApplicationExists)
		}
		return models.NewInternalError(err)
	}
	return nil
}

// Update writes the scalar columns of app and, when replaceFields is set,
// swaps its custom fields for fields.
func (r *applicationRepository) Update(ctx context.Context, app *models.Application, fields []models.ApplicationField, replaceFields bool) error {
	db := r.db.WithContext(ctx)
	res := db.Model(app).
		Select("name", "description", "is_active", "requires_approval", "approval_workflow", "updated_at").
		Updates(app)
	if res.Error != nil {
		if isUniqueConstraintError(res.Error) {
			return models.NewConflictError(msgApplicationInUse)
		}
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Application", app.ID)
	}

	if !replaceFields {
		return nil
	}
	if err := db.Where("application_id = ?", app.ID).Delete(&models.ApplicationField{}).Error; err != nil {
		return models.NewInternalError(err)
	}
	for i := range fields {
		fields[i].ID = 0
		fields[i].ApplicationID = app.ID
	}
	if len(fields) > 0 {
		if err := db.Create(&fields).Error; err != nil {
			if isUniqueConstraintError(err) {
				return models.NewValidationError("Custom field order values must be unique")
			}
			return models.NewInternalError(err)
		}
	}
	app.CustomFields = fields
	return nil
}

// Delete removes the application, its fields, its requests and their
// approval steps. Callers run it inside a transaction.
func (r *applicationRepository) Delete(ctx context.Context, id uint) error {
	db := r.db.WithContext(ctx)
	requestIDs := db.Model(&models.ApplicationRequest{}).Select("id").Where("application_id = ?", id)

	if err := db.Where("request_id IN (?)", requestIDs).Delete(&models.ApprovalStep{}).Error; err != nil {
		return models.NewInternalError(err)
	}
	if err := db.Where("application_id = ?", id).Delete(&models.ApplicationRequest{}).Error; err != nil {
		return models.NewInternalError(err)
	}
	if err := db.Where("application_id = ?", id).Delete(&models.ApplicationField{}).Error; err != nil {
		return models.NewInternalError(err)
	}
	res := db.Delete(&models.Application{}, id)
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Application", id)
	}
	return nil
}
