package repository

import (
	"context"

	"github.com/rockymount114/City-Workflow/internal/models"

	"gorm.io/gorm"
)

// AuditFilter narrows audit log listings.
type AuditFilter struct {
	EntityType models.EntityType
	EntityID   uint
	ActorID    uint
	Page       Page
}

// AuditRepository appends and reads audit rows. Rows are never updated
// or deleted.
type AuditRepository interface {
	Create(ctx context.Context, entry *models.AuditLog) error
	List(ctx context.Context, f AuditFilter) ([]models.AuditLog, int64, error)
}

type auditRepository struct {
	db *gorm.DB
}

// NewAuditRepository returns a new AuditRepository implementation.
func NewAuditRepository(db *gorm.DB) AuditRepository {
	return &auditRepository{db: db}
}

func (r *auditRepository) Create(ctx context.Context, entry *models.AuditLog) error {
	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *auditRepository) List(ctx context.Context, f AuditFilter) ([]models.AuditLog, int64, error) {
	q := r.db.WithContext(ctx).Model(&models.AuditLog{})
	if f.EntityType != "" {
		q = q.Where("entity_type = ?", f.EntityType)
	}
	if f.EntityID != 0 {
		q = q.Where("entity_id = ?", f.EntityID)
	}
	if f.ActorID != 0 {
		q = q.Where("actor_id = ?", f.ActorID)
	}
	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}
	var entries []models.AuditLog
	if err := paginate(q, f.Page).Order("created_at DESC").Order("id DESC").Find(&entries).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}
	return entries, total, nil
}
