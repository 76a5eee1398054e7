package repository

import (
	"context"
	"time"

	"github.com/rockymount114/City-Workflow/internal/models"
	"github.com/rockymount114/City-Workflow/internal/observability"

	"gorm.io/gorm"
)

// ApplicationCount is one row of the top-applications ranking.
type ApplicationCount struct {
	Name  string `json:"name"`
	Count int64  `json:"count"`
}

// RequestPoint is the slice of a request the analytics need.
type RequestPoint struct {
	Status    models.RequestStatus
	CreatedAt time.Time
	DecidedAt *time.Time
}

// StatsRepository runs the aggregate queries behind the admin dashboard
// and analytics.
type StatsRepository interface {
	CountUsers(ctx context.Context) (int64, error)
	CountApplications(ctx context.Context) (int64, error)
	CountRequests(ctx context.Context, since time.Time, statuses ...models.RequestStatus) (int64, error)
	TopApplications(ctx context.Context, since time.Time, limit int) ([]ApplicationCount, error)
	RequestActivity(ctx context.Context, since time.Time) ([]RequestPoint, error)
}

type statsRepository struct {
	db *gorm.DB
}

// NewStatsRepository returns a new StatsRepository implementation.
func NewStatsRepository(db *gorm.DB) StatsRepository {
	return &statsRepository{db: db}
}

func (r *statsRepository) CountUsers(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&models.User{}).Count(&n).Error; err != nil {
		return 0, models.NewInternalError(err)
	}
	return n, nil
}

func (r *statsRepository) CountApplications(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&models.Application{}).Count(&n).Error; err != nil {
		return 0, models.NewInternalError(err)
	}
	return n, nil
}

// CountRequests counts requests created at or after since (zero means all
// time) whose status is one of statuses (none means any).
func (r *statsRepository) CountRequests(ctx context.Context, since time.Time, statuses ...models.RequestStatus) (int64, error) {
	defer observability.TrackQuery("count", "application_requests")()

	q := r.db.WithContext(ctx).Model(&models.ApplicationRequest{})
	if !since.IsZero() {
		q = q.Where("created_at >= ?", since)
	}
	if len(statuses) > 0 {
		q = q.Where("status IN ?", statuses)
	}
	var n int64
	if err := q.Count(&n).Error; err != nil {
		return 0, models.NewInternalError(err)
	}
	return n, nil
}

// TopApplications ranks applications by requests created since.
func (r *statsRepository) TopApplications(ctx context.Context, since time.Time, limit int) ([]ApplicationCount, error) {
	defer observability.TrackQuery("top_applications", "application_requests")()

	var rows []ApplicationCount
	err := r.db.WithContext(ctx).
		Table("application_requests").
		Select("applications.name AS name, COUNT(application_requests.id) AS count").
		Joins("JOIN applications ON applications.id = application_requests.application_id").
		Where("application_requests.created_at >= ?", since).
		Group("applications.id, applications.name").
		Order("count DESC").
		Order("applications.name ASC").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return rows, nil
}

// RequestActivity returns status and timing of requests created since.
func (r *statsRepository) RequestActivity(ctx context.Context, since time.Time) ([]RequestPoint, error) {
	defer observability.TrackQuery("activity", "application_requests")()

	var rows []RequestPoint
	err := r.db.WithContext(ctx).
		Model(&models.ApplicationRequest{}).
		Select("status, created_at, decided_at").
		Where("created_at >= ?", since).
		Scan(&rows).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return rows, nil
}
