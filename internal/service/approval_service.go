package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/rockymount114/City-Workflow/internal/cache"
	"github.com/rockymount114/City-Workflow/internal/featureflags"
	"github.com/rockymount114/City-Workflow/internal/middleware"
	"github.com/rockymount114/City-Workflow/internal/models"
	"github.com/rockymount114/City-Workflow/internal/notifications"
	"github.com/rockymount114/City-Workflow/internal/observability"
	"github.com/rockymount114/City-Workflow/internal/repository"
	"github.com/rockymount114/City-Workflow/internal/validation"
	"github.com/rockymount114/City-Workflow/internal/workflow"
)

// ApprovalService records approver decisions on requests.
type ApprovalService struct {
	repos  repository.Repos
	tx     repository.Transactor
	flags  *featureflags.Manager
	events events
	now    func() time.Time
}

// NewApprovalService wires the service. pub may be nil.
func NewApprovalService(repos repository.Repos, tx repository.Transactor, pub EventPublisher, flags *featureflags.Manager) *ApprovalService {
	return &ApprovalService{repos: repos, tx: tx, flags: flags, events: events{pub: pub, flags: flags}, now: time.Now}
}

// decision is what Act hands from the transaction to the notifications.
type decision struct {
	req        *models.ApplicationRequest
	appName    string
	transition workflow.Transition
}

// Act applies an approver's decision to the current level of request id.
// The request row is locked for the duration so concurrent approvers are
// serialized; the step, the request, the next step and the audit row are
// written in the same transaction.
func (s *ApprovalService) Act(ctx context.Context, actor models.Actor, id uint, in validation.ApprovalInput) (*models.ApplicationRequest, error) {
	ctx, span := observability.StartServiceSpan(ctx, "ApprovalService", "Act")
	var err error
	defer func() { observability.EndSpan(span, err) }()

	cmd := in.Command()
	defer func() { observability.ApprovalActions.WithLabelValues(string(cmd.Action), outcome(err)).Inc() }()

	if err = cmd.Validate().Err(); err != nil {
		return nil, err
	}
	if cmd.Action == models.ActionDelegate && !s.flags.Enabled(featureflags.Delegation, actor.Principal) {
		err = models.NewForbiddenError("Delegation is disabled")
		return nil, err
	}

	var d decision
	err = s.tx.WithinTx(ctx, func(ctx context.Context, r repository.Repos) error {
		var err error
		d, err = s.decide(ctx, r, actor, id, cmd)
		return err
	})
	if err != nil {
		return nil, err
	}

	middleware.Logger.InfoContext(ctx, "approval action applied",
		slog.Uint64("request_id", uint64(id)),
		slog.String("action", string(cmd.Action)),
		slog.Int("level", d.transition.From.Level),
		slog.String("status", string(d.transition.To.Status)))

	cache.InvalidateStats(ctx)
	s.notify(ctx, d, cmd)

	var req *models.ApplicationRequest
	req, err = s.repos.Requests.GetByID(ctx, id)
	return req, err
}

func (s *ApprovalService) decide(ctx context.Context, r repository.Repos, actor models.Actor, id uint, cmd workflow.Command) (decision, error) {
	req, err := r.Requests.GetForUpdate(ctx, id)
	if err != nil {
		return decision{}, err
	}
	app, err := r.Applications.GetByID(ctx, req.ApplicationID)
	if err != nil {
		return decision{}, err
	}

	// The chain captured at submission governs, whatever the application
	// looks like now.
	t, err := workflow.Apply(stateOf(req), cmd)
	if err != nil {
		return decision{}, err
	}

	step, err := r.Steps.Get(ctx, req.ID, req.CurrentLevel)
	if err != nil {
		return decision{}, err
	}
	if err := workflow.Authorize(actor.Principal, workflow.Assignment{
		Level:        step.Level,
		RequiredRole: step.RequiredRole,
		DelegatedTo:  step.DelegatedToID,
	}); err != nil {
		return decision{}, err
	}

	if t.DelegateTo != nil {
		if err := checkDelegate(ctx, r, actor, *t.DelegateTo, step.Level, s.now()); err != nil {
			return decision{}, err
		}
	}

	now := s.now()
	action := cmd.Action
	approver := actor.UserID
	step.Status = t.Step
	step.LastAction = &action
	step.ApproverID = &approver
	step.Comments = cmd.Comments
	step.ActedAt = &now
	if t.DelegateTo != nil {
		step.DelegatedToID = t.DelegateTo
	}
	if err := r.Steps.Update(ctx, step); err != nil {
		return decision{}, err
	}

	before := req.AuditSnapshot()
	req.Status = t.To.Status
	req.CurrentLevel = t.To.Level
	if t.Terminal() {
		req.DecidedAt = &now
	}
	if err := r.Requests.Update(ctx, req); err != nil {
		return decision{}, err
	}

	if t.OpenNext {
		role, err := workflow.RequiredRole(req.ApprovalWorkflow, t.To.Level)
		if err != nil {
			return decision{}, models.NewInternalError(err)
		}
		next := &models.ApprovalStep{RequestID: req.ID, Level: t.To.Level, RequiredRole: role, Status: models.StepPending}
		if err := r.Steps.Create(ctx, next); err != nil {
			return decision{}, err
		}
	}

	after := req.AuditSnapshot()
	after["level"] = t.From.Level
	if cmd.Comments != "" {
		after["comments"] = cmd.Comments
	}
	if t.DelegateTo != nil {
		after["delegatedTo"] = *t.DelegateTo
	}
	entry := actor.NewAuditLog(models.AuditActionFor(cmd.Action), models.EntityRequest, req.ID, before, after)
	if err := r.Audit.Create(ctx, entry); err != nil {
		return decision{}, err
	}

	return decision{req: req, appName: app.Name, transition: t}, nil
}

// stateOf is req's position in the chain it was submitted under.
func stateOf(req *models.ApplicationRequest) workflow.State {
	return workflow.State{Status: req.Status, Level: req.CurrentLevel, Levels: len(req.ApprovalWorkflow)}
}

// checkDelegate verifies the delegate is an active account able to act at
// level.
func checkDelegate(ctx context.Context, r repository.Repos, actor models.Actor, targetID uint, level int, now time.Time) error {
	errs := models.FieldErrors{}
	if targetID == actor.UserID {
		errs.Add("delegateTo", "You cannot delegate a step to yourself")
		return errs.Err()
	}
	target, err := r.Users.GetByID(ctx, targetID)
	if err != nil {
		if models.IsCode(err, models.CodeNotFound) {
			errs.Add("delegateTo", "Delegate user not found")
			return errs.Err()
		}
		return err
	}
	switch {
	case !target.IsActive || target.IsLocked(now):
		errs.Add("delegateTo", "Delegate user is not active")
	case !workflow.CanDelegateTo(target.Role, level):
		errs.Add("delegateTo", fmt.Sprintf("Delegate user cannot approve at level %d", level))
	}
	return errs.Err()
}

func (s *ApprovalService) notify(ctx context.Context, d decision, cmd workflow.Command) {
	payload := requestEventPayload(d.req, d.appName)
	payload["action"] = cmd.Action
	if cmd.Comments != "" {
		payload["comments"] = cmd.Comments
	}

	switch {
	case d.transition.Terminal():
		s.events.toUser(ctx, d.req.UserID, notifications.EventRequestDecided, payload)
	case cmd.Action == models.ActionRequestChanges:
		s.events.toUser(ctx, d.req.UserID, notifications.EventChangesRequested, payload)
	case cmd.Action == models.ActionDelegate:
		s.events.toUser(ctx, *d.transition.DelegateTo, notifications.EventRequestDelegated, payload)
	case d.transition.OpenNext:
		s.events.toAdmins(ctx, notifications.EventApprovalNeeded, payload)
	}
}

// outcome labels an approval attempt for metrics.
func outcome(err error) string {
	if err == nil {
		return "applied"
	}
	var appErr *models.AppError
	if !errors.As(err, &appErr) {
		return "error"
	}
	switch appErr.Code {
	case models.CodeForbidden:
		return "forbidden"
	case models.CodeConflict:
		return "conflict"
	case models.CodeValidation, models.CodeNotFound:
		return "invalid"
	default:
		return "error"
	}
}
