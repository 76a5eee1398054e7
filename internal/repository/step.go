package repository

import (
	"context"

	"github.com/rockymount114/City-Workflow/internal/models"

	"gorm.io/gorm"
)

// StepRepository defines persistence operations for approval steps.
type StepRepository interface {
	Create(ctx context.Context, step *models.ApprovalStep) error
	Get(ctx context.Context, requestID uint, level int) (*models.ApprovalStep, error)
	Update(ctx context.Context, step *models.ApprovalStep) error
	ListByRequest(ctx context.Context, requestID uint) ([]models.ApprovalStep, error)
}

type stepRepository struct {
	db *gorm.DB
}

// NewStepRepository returns a new StepRepository implementation.
func NewStepRepository(db *gorm.DB) StepRepository {
	return &stepRepository{db: db}
}

func (r *stepRepository) Create(ctx context.Context, step *models.ApprovalStep) error {
	if err := r.db.WithContext(ctx).Create(step).Error; err != nil {
		if isUniqueConstraintError(err) {
			return models.NewConflictError("Approval step already exists for this level")
		}
		return models.NewInternalError(err)
	}
	return nil
}

func (r *stepRepository) Get(ctx context.Context, requestID uint, level int) (*models.ApprovalStep, error) {
	var step models.ApprovalStep
	err := r.db.WithContext(ctx).
		Where("request_id = ? AND level = ?", requestID, level).
		First(&step).Error
	if err != nil {
		return nil, notFoundOr(err, "Approval step", level)
	}
	return &step, nil
}

func (r *stepRepository) Update(ctx context.Context, step *models.ApprovalStep) error {
	res := r.db.WithContext(ctx).Model(step).
		Select("status", "last_action", "approver_id", "delegated_to_id", "comments", "acted_at", "updated_at").
		Updates(step)
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Approval step", step.ID)
	}
	return nil
}

func (r *stepRepository) ListByRequest(ctx context.Context, requestID uint) ([]models.ApprovalStep, error) {
	var steps []models.ApprovalStep
	if err := r.db.WithContext(ctx).Where("request_id = ?", requestID).Order("level ASC").Find(&steps).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return steps, nil
}
