package service

import (
	"context"
	"time"

	"github.com/rockymount114/City-Workflow/internal/cache"
	"github.com/rockymount114/City-Workflow/internal/featureflags"
	"github.com/rockymount114/City-Workflow/internal/models"
	"github.com/rockymount114/City-Workflow/internal/notifications"
	"github.com/rockymount114/City-Workflow/internal/observability"
	"github.com/rockymount114/City-Workflow/internal/repository"
	"github.com/rockymount114/City-Workflow/internal/validation"
	"github.com/rockymount114/City-Workflow/internal/workflow"
)

// RequestService handles the applicant side of access requests and the
// read paths approvers use.
type RequestService struct {
	repos  repository.Repos
	tx     repository.Transactor
	events events
	now    func() time.Time
}

// NewRequestService wires the service. pub may be nil.
func NewRequestService(repos repository.Repos, tx repository.Transactor, pub EventPublisher, flags *featureflags.Manager) *RequestService {
	return &RequestService{repos: repos, tx: tx, events: events{pub: pub, flags: flags}, now: time.Now}
}

// Submit files a new request. Applications without approval levels
// approve it immediately; otherwise it waits at level 1.
func (s *RequestService) Submit(ctx context.Context, actor models.Actor, in validation.RequestInput) (*models.ApplicationRequest, error) {
	if err := in.Validate().Err(); err != nil {
		return nil, err
	}

	app, err := s.repos.Applications.GetByID(ctx, in.ApplicationID)
	if err != nil {
		return nil, err
	}
	if !app.IsActive {
		errs := models.FieldErrors{}
		errs.Add("applicationId", "Application is not accepting requests")
		return nil, errs.Err()
	}
	if err := validation.CheckFieldValues(app.CustomFields, in.FieldValues).Err(); err != nil {
		return nil, err
	}

	chain := app.WorkflowSnapshot()
	state := workflow.Initial(len(chain))
	req := &models.ApplicationRequest{
		UserID:           actor.UserID,
		ApplicationID:    app.ID,
		Status:           state.Status,
		CurrentLevel:     state.Level,
		ApprovalWorkflow: chain,
		RequestType:      models.RequestType(in.RequestType),
		Environment:      models.Environment(in.Environment),
		Justification:    in.Justification,
		RequestedRoles:   models.StringList(in.RequestedRoles),
		FieldValues:      models.JSONMap(in.FieldValues),
	}
	if state.Status.IsTerminal() {
		now := s.now()
		req.DecidedAt = &now
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context, r repository.Repos) error {
		if err := r.Requests.Create(ctx, req); err != nil {
			return err
		}
		if !state.Status.IsTerminal() {
			role, err := workflow.RequiredRole(chain, state.Level)
			if err != nil {
				return models.NewInternalError(err)
			}
			step := &models.ApprovalStep{RequestID: req.ID, Level: state.Level, RequiredRole: role, Status: models.StepPending}
			if err := r.Steps.Create(ctx, step); err != nil {
				return err
			}
		}
		return r.Audit.Create(ctx, actor.NewAuditLog(models.AuditSubmit, models.EntityRequest, req.ID, nil, req.AuditSnapshot()))
	})
	if err != nil {
		return nil, err
	}

	observability.RequestsSubmitted.WithLabelValues(string(req.Status)).Inc()
	cache.InvalidateStats(ctx)
	payload := requestEventPayload(req, app.Name)
	s.events.toUser(ctx, req.UserID, notifications.EventRequestSubmitted, payload)
	if req.Status.IsTerminal() {
		s.events.toUser(ctx, req.UserID, notifications.EventRequestDecided, payload)
	} else {
		s.events.toAdmins(ctx, notifications.EventApprovalNeeded, payload)
	}

	return s.repos.Requests.GetByID(ctx, req.ID)
}

// Resubmit returns a request awaiting changes to review at the level that
// asked for them, optionally replacing justification and field values.
func (s *RequestService) Resubmit(ctx context.Context, actor models.Actor, id uint, in validation.ResubmitInput) (*models.ApplicationRequest, error) {
	if err := in.Validate().Err(); err != nil {
		return nil, err
	}

	var req *models.ApplicationRequest
	var appName string
	err := s.tx.WithinTx(ctx, func(ctx context.Context, r repository.Repos) error {
		var err error
		req, err = r.Requests.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if req.UserID != actor.UserID {
			return models.NewForbiddenError("Only the applicant can resubmit this request")
		}
		app, err := r.Applications.GetByID(ctx, req.ApplicationID)
		if err != nil {
			return err
		}
		appName = app.Name

		next, err := workflow.Resubmit(stateOf(req))
		if err != nil {
			return err
		}

		before := req.AuditSnapshot()
		if in.Justification != nil {
			req.Justification = *in.Justification
		}
		if in.FieldValues != nil {
			if err := validation.CheckFieldValues(app.CustomFields, in.FieldValues).Err(); err != nil {
				return err
			}
			req.FieldValues = models.JSONMap(in.FieldValues)
		}
		req.Status = next.Status
		req.CurrentLevel = next.Level
		if err := r.Requests.Update(ctx, req); err != nil {
			return err
		}

		step, err := r.Steps.Get(ctx, req.ID, req.CurrentLevel)
		if err != nil {
			return err
		}
		// The approver's comment stays on the step; the applicant's note
		// goes to the audit entry.
		step.Status = models.StepPending
		if err := r.Steps.Update(ctx, step); err != nil {
			return err
		}

		after := req.AuditSnapshot()
		if in.Comments != "" {
			after["comments"] = in.Comments
		}
		return r.Audit.Create(ctx, actor.NewAuditLog(models.AuditResubmit, models.EntityRequest, req.ID, before, after))
	})
	if err != nil {
		return nil, err
	}

	cache.InvalidateStats(ctx)
	s.events.toAdmins(ctx, notifications.EventApprovalNeeded, requestEventPayload(req, appName))
	return s.repos.Requests.GetByID(ctx, req.ID)
}

// ListMine returns the caller's own requests, newest first.
func (s *RequestService) ListMine(ctx context.Context, p models.Principal, status models.RequestStatus, page repository.Page) (*PageResult[models.ApplicationRequest], error) {
	reqs, total, err := s.repos.Requests.List(ctx, repository.RequestFilter{UserID: p.UserID, Status: status, Page: page})
	if err != nil {
		return nil, err
	}
	return newPage(reqs, total, page), nil
}

// Detail returns a request with its steps. The applicant, any approver
// and admins may read it.
func (s *RequestService) Detail(ctx context.Context, p models.Principal, id uint) (*models.ApplicationRequest, error) {
	req, err := s.repos.Requests.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.UserID != p.UserID && !p.Role.IsApprover() {
		return nil, models.NewForbiddenError("You do not have access to this request")
	}
	return req, nil
}

// Queue returns the pending requests whose current step p may decide.
func (s *RequestService) Queue(ctx context.Context, p models.Principal, page repository.Page) (*PageResult[models.ApplicationRequest], error) {
	f, err := QueueFor(p)
	if err != nil {
		return nil, err
	}
	f.Page = page
	reqs, total, err := s.repos.Requests.Queue(ctx, f)
	if err != nil {
		return nil, err
	}
	return newPage(reqs, total, page), nil
}

// QueueFor derives the queue filter for p from the approval rules: the
// roles p satisfies and the highest level p may act at.
func QueueFor(p models.Principal) (repository.QueueFilter, error) {
	if !p.Role.IsApprover() {
		return repository.QueueFilter{}, models.NewForbiddenError("Insufficient permissions")
	}
	if p.IsAdmin() {
		return repository.QueueFilter{UserID: p.UserID, All: true}, nil
	}

	f := repository.QueueFilter{UserID: p.UserID}
	for _, r := range workflow.WorkflowRoles {
		if workflow.Satisfies(p.Role, r) {
			f.Roles = append(f.Roles, r)
		}
	}
	// 0 means unbounded; a role limited to the first level is capped at 1.
	if !workflow.CanApproveAtLevel(p.Role, 2) {
		f.MaxLevel = 1
	}
	return f, nil
}

func requestEventPayload(req *models.ApplicationRequest, appName string) map[string]any {
	return map[string]any{
		"requestId":       req.ID,
		"applicationId":   req.ApplicationID,
		"applicationName": appName,
		"userId":          req.UserID,
		"status":          req.Status,
		"currentLevel":    req.CurrentLevel,
	}
}
