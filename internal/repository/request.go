package repository

import (
	"context"

	"github.com/rockymount114/City-Workflow/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RequestFilter narrows request listings.
type RequestFilter struct {
	UserID        uint
	ApplicationID uint
	Status        models.RequestStatus
	Page          Page
}

// QueueFilter selects the pending requests whose current step a caller may
// decide: steps delegated to UserID, plus undelegated steps requiring one
// of Roles at a level no higher than MaxLevel (0 means any level). All
// selects every pending request.
type QueueFilter struct {
	UserID   uint
	Roles    []models.Role
	MaxLevel int
	All      bool
	Page     Page
}

// RequestRepository defines persistence operations for access requests.
type RequestRepository interface {
	Create(ctx context.Context, req *models.ApplicationRequest) error
	GetByID(ctx context.Context, id uint) (*models.ApplicationRequest, error)
	GetForUpdate(ctx context.Context, id uint) (*models.ApplicationRequest, error)
	Update(ctx context.Context, req *models.ApplicationRequest) error
	List(ctx context.Context, f RequestFilter) ([]models.ApplicationRequest, int64, error)
	Queue(ctx context.Context, f QueueFilter) ([]models.ApplicationRequest, int64, error)
}

type requestRepository struct {
	db *gorm.DB
}

// NewRequestRepository returns a new RequestRepository implementation.
func NewRequestRepository(db *gorm.DB) RequestRepository {
	return &requestRepository{db: db}
}

func orderedSteps(db *gorm.DB) *gorm.DB {
	return db.Order("level ASC")
}

func (r *requestRepository) Create(ctx context.Context, req *models.ApplicationRequest) error {
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(req).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

// GetByID loads the request with its applicant, application (with custom
// fields) and steps.
func (r *requestRepository) GetByID(ctx context.Context, id uint) (*models.ApplicationRequest, error) {
	var req models.ApplicationRequest
	err := r.db.WithContext(ctx).
		Preload("User").
		Preload("Application").
		Preload("Application.CustomFields", orderedFields).
		Preload("Steps", orderedSteps).
		First(&req, id).Error
	if err != nil {
		return nil, notFoundOr(err, "Request", id)
	}
	return &req, nil
}

// GetForUpdate loads the bare request row and locks it until the enclosing
// transaction ends. SQLite ignores the lock and serializes writers itself.
func (r *requestRepository) GetForUpdate(ctx context.Context, id uint) (*models.ApplicationRequest, error) {
	var req models.ApplicationRequest
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&req, id).Error
	if err != nil {
		return nil, notFoundOr(err, "Request", id)
	}
	return &req, nil
}

func (r *requestRepository) Update(ctx context.Context, req *models.ApplicationRequest) error {
	res := r.db.WithContext(ctx).Model(req).
		Select("status", "current_level", "justification", "requested_roles", "field_values", "decided_at", "updated_at").
		Updates(req)
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Request", req.ID)
	}
	return nil
}

func (r *requestRepository) List(ctx context.Context, f RequestFilter) ([]models.ApplicationRequest, int64, error) {
	q := r.db.WithContext(ctx).Model(&models.ApplicationRequest{})
	if f.UserID != 0 {
		q = q.Where("user_id = ?", f.UserID)
	}
	if f.ApplicationID != 0 {
		q = q.Where("application_id = ?", f.ApplicationID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	return r.page(q.Session(&gorm.Session{}), f.Page)
}

func (r *requestRepository) Queue(ctx context.Context, f QueueFilter) ([]models.ApplicationRequest, int64, error) {
	q := r.db.WithContext(ctx).Model(&models.ApplicationRequest{}).
		Joins("JOIN approval_steps ON approval_steps.request_id = application_requests.id "+
			"AND approval_steps.level = application_requests.current_level").
		Where("application_requests.status IN ?", []models.RequestStatus{models.RequestSubmitted, models.RequestUnderReview}).
		Where("approval_steps.status = ?", models.StepPending)

	if !f.All {
		mine := r.db.Where("approval_steps.delegated_to_id = ?", f.UserID)
		if len(f.Roles) > 0 {
			byRole := r.db.Where("approval_steps.delegated_to_id IS NULL").
				Where("approval_steps.required_role IN ?", f.Roles)
			if f.MaxLevel > 0 {
				byRole = byRole.Where("approval_steps.level <= ?", f.MaxLevel)
			}
			mine = mine.Or(byRole)
		}
		q = q.Where(mine)
	}
	return r.page(q.Session(&gorm.Session{}), f.Page)
}

func (r *requestRepository) page(q *gorm.DB, p Page) ([]models.ApplicationRequest, int64, error) {
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}

	var reqs []models.ApplicationRequest
	err := paginate(q, p).
		Preload("User").
		Preload("Application").
		Order("application_requests.created_at DESC").
		Order("application_requests.id DESC").
		Find(&reqs).Error
	if err != nil {
		return nil, 0, models.NewInternalError(err)
	}
	return reqs, total, nil
}
