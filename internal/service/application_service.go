package service

import (
	"context"

	"github.com/rockymount114/City-Workflow/internal/cache"
	"github.com/rockymount114/City-Workflow/internal/featureflags"
	"github.com/rockymount114/City-Workflow/internal/models"
	"github.com/rockymount114/City-Workflow/internal/notifications"
	"github.com/rockymount114/City-Workflow/internal/repository"
	"github.com/rockymount114/City-Workflow/internal/validation"
)

// ApplicationService manages application definitions.
type ApplicationService struct {
	apps   repository.ApplicationRepository
	tx     repository.Transactor
	events events
}

// NewApplicationService wires the service. pub may be nil.
func NewApplicationService(apps repository.ApplicationRepository, tx repository.Transactor, pub EventPublisher, flags *featureflags.Manager) *ApplicationService {
	return &ApplicationService{apps: apps, tx: tx, events: events{pub: pub, flags: flags}}
}

// List returns applications newest first. activeOnly hides inactive ones.
func (s *ApplicationService) List(ctx context.Context, activeOnly bool) ([]models.Application, error) {
	return s.apps.List(ctx, activeOnly)
}

// Get returns one application with its custom fields.
func (s *ApplicationService) Get(ctx context.Context, id uint) (*models.Application, error) {
	return s.apps.GetByID(ctx, id)
}

// Create validates in and stores the application with an audit entry.
func (s *ApplicationService) Create(ctx context.Context, actor models.Actor, in validation.ApplicationInput) (*models.Application, error) {
	in.Normalize()
	app, err := in.Build()
	if err != nil {
		return nil, err
	}

	existing, err := s.apps.GetByName(ctx, app.Name)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, models.NewConflictError("Application with this name already exists")
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context, r repository.Repos) error {
		if err := r.Applications.Create(ctx, app); err != nil {
			return err
		}
		return r.Audit.Create(ctx, actor.NewAuditLog(models.AuditCreate, models.EntityApplication, app.ID, nil, map[string]any{
			"name":             app.Name,
			"requiresApproval": app.RequiresApproval,
			"approvalWorkflow": app.ApprovalWorkflow,
		}))
	})
	if err != nil {
		return nil, err
	}

	s.changed(ctx, app, "created")
	return app, nil
}

// Update applies a partial update. Custom fields are replaced as a set
// when the patch carries them.
func (s *ApplicationService) Update(ctx context.Context, actor models.Actor, id uint, patch validation.ApplicationPatch) (*models.Application, error) {
	var app *models.Application
	err := s.tx.WithinTx(ctx, func(ctx context.Context, r repository.Repos) error {
		var err error
		app, err = r.Applications.GetByID(ctx, id)
		if err != nil {
			return err
		}
		before := app.AuditSnapshot()
		oldName := app.Name

		fields, replace, err := patch.Apply(app)
		if err != nil {
			return err
		}
		if app.Name != oldName {
			other, err := r.Applications.GetByName(ctx, app.Name)
			if err != nil {
				return err
			}
			if other != nil && other.ID != app.ID {
				return models.NewConflictError("Application name already in use")
			}
		}

		if err := r.Applications.Update(ctx, app, fields, replace); err != nil {
			return err
		}
		return r.Audit.Create(ctx, actor.NewAuditLog(models.AuditUpdate, models.EntityApplication, app.ID, before, app.AuditSnapshot()))
	})
	if err != nil {
		return nil, err
	}

	s.changed(ctx, app, "updated")
	return app, nil
}

// Delete removes the application with its fields, requests and steps.
func (s *ApplicationService) Delete(ctx context.Context, actor models.Actor, id uint) error {
	var app *models.Application
	err := s.tx.WithinTx(ctx, func(ctx context.Context, r repository.Repos) error {
		var err error
		app, err = r.Applications.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if err := r.Applications.Delete(ctx, id); err != nil {
			return err
		}
		return r.Audit.Create(ctx, actor.NewAuditLog(models.AuditDelete, models.EntityApplication, id, map[string]any{
			"name":             app.Name,
			"requiresApproval": app.RequiresApproval,
		}, nil))
	})
	if err != nil {
		return err
	}

	s.changed(ctx, app, "deleted")
	return nil
}

func (s *ApplicationService) changed(ctx context.Context, app *models.Application, change string) {
	cache.InvalidateStats(ctx)
	s.events.toAdmins(ctx, notifications.EventApplicationChanged, map[string]any{
		"applicationId": app.ID,
		"name":          app.Name,
		"change":        change,
	})
}
