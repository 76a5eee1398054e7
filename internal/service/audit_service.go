package service

import (
	"context"

	"github.com/rockymount114/City-Workflow/internal/models"
	"github.com/rockymount114/City-Workflow/internal/repository"
)

// AuditService reads the audit log. Entries are written by the services
// that perform the audited mutations.
type AuditService struct {
	audit repository.AuditRepository
}

// NewAuditService wires the service.
func NewAuditService(audit repository.AuditRepository) *AuditService {
	return &AuditService{audit: audit}
}

// List returns a page of audit entries, newest first.
func (s *AuditService) List(ctx context.Context, f repository.AuditFilter) (*PageResult[models.AuditLog], error) {
	if f.EntityType != "" {
		switch f.EntityType {
		case models.EntityApplication, models.EntityUser, models.EntityRequest:
		default:
			return nil, models.NewValidationError("entityType must be one of APPLICATION, USER, REQUEST")
		}
	}
	entries, total, err := s.audit.List(ctx, f)
	if err != nil {
		return nil, err
	}
	return newPage(entries, total, f.Page), nil
}
