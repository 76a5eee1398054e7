// Package workflow implements approval sequencing for access requests.
//
// Given an application's ordered approval workflow and a request's current
// level, the package decides which role must act, whether a caller may act,
// and what state an action leads to. It performs no I/O; callers persist the
// returned Transition.
package workflow

import (
	"fmt"
	"strings"

	"github.com/rockymount114/City-Workflow/internal/models"
)

// MaxLevels bounds the length of an approval workflow.
const MaxLevels = 5

// WorkflowRoles are the only roles allowed inside an approval workflow.
var WorkflowRoles = []models.Role{models.RoleAdmin, models.RoleApproverL1, models.RoleApproverL2}

// IsWorkflowRole reports whether r may appear in an approval workflow.
func IsWorkflowRole(r models.Role) bool {
	for _, allowed := range WorkflowRoles {
		if r == allowed {
			return true
		}
	}
	return false
}

// CanApproveAtLevel reports whether role may act at the 1-based level.
// ADMIN and APPROVER_L2 act at any level, APPROVER_L1 only at level 1.
func CanApproveAtLevel(role models.Role, level int) bool {
	if level < 1 {
		return false
	}
	switch role {
	case models.RoleAdmin, models.RoleApproverL2:
		return true
	case models.RoleApproverL1:
		return level == 1
	default:
		return false
	}
}

// Satisfies reports whether an actor holding role covers a step that
// requires required.
func Satisfies(role, required models.Role) bool {
	switch role {
	case models.RoleAdmin:
		return true
	case models.RoleApproverL2:
		return required == models.RoleApproverL2 || required == models.RoleApproverL1
	case models.RoleApproverL1:
		return required == models.RoleApproverL1
	}
	return false
}

// RequiredRole returns the role configured at the 1-based level.
func RequiredRole(workflow []models.Role, level int) (models.Role, error) {
	if level < 1 || level > len(workflow) {
		return "", fmt.Errorf("level %d outside workflow of %d steps", level, len(workflow))
	}
	return workflow[level-1], nil
}

// CheckWorkflow validates an application's approval workflow.
// Duplicate roles are allowed; an empty workflow is only valid when the
// application does not require approval.
func CheckWorkflow(workflow []models.Role, requiresApproval bool) models.FieldErrors {
	errs := models.FieldErrors{}
	if requiresApproval && len(workflow) == 0 {
		errs.Add("approvalWorkflow", "At least one approval level is required when approval is required")
	}
	if len(workflow) > MaxLevels {
		errs.Add("approvalWorkflow", fmt.Sprintf("At most %d approval levels are allowed", MaxLevels))
	}
	for i, r := range workflow {
		if !IsWorkflowRole(r) {
			errs.Add(fmt.Sprintf("approvalWorkflow.%d", i),
				fmt.Sprintf("Invalid role %q: must be one of ADMIN, APPROVER_L1, APPROVER_L2", r))
		}
	}
	return errs
}

// State is the approval-relevant part of a request.
type State struct {
	Status models.RequestStatus
	// Level is the 1-based level awaiting a decision.
	Level int
	// Levels is the length of the application's workflow.
	Levels int
}

// Initial returns the state of a freshly submitted request.
func Initial(levels int) State {
	if levels == 0 {
		return State{Status: models.RequestApproved}
	}
	return State{Status: models.RequestSubmitted, Level: 1, Levels: levels}
}

// Command is an approver's decision on the current level.
type Command struct {
	Action     models.ApprovalAction
	Comments   string
	DelegateTo *uint
}

// Validate checks the payload before anything else is looked at.
func (c Command) Validate() models.FieldErrors {
	errs := models.FieldErrors{}
	switch c.Action {
	case models.ActionApprove:
	case models.ActionReject, models.ActionRequestChanges:
		if strings.TrimSpace(c.Comments) == "" {
			errs.Add("comments", "Comments are required for reject and request changes actions")
		}
	case models.ActionDelegate:
		if c.DelegateTo == nil || *c.DelegateTo == 0 {
			errs.Add("delegateTo", "Delegate user is required for delegate action")
		}
	default:
		errs.Add("action", "Action must be one of APPROVE, REJECT, REQUEST_CHANGES, DELEGATE")
	}
	return errs
}

// Transition is the outcome of applying a command.
type Transition struct {
	From State
	To   State
	// Step is the new status of the step row at From.Level.
	Step models.StepStatus
	// OpenNext is set when a step row for To.Level must be created.
	OpenNext bool
	// DelegateTo is the new assignee of the current step on DELEGATE.
	DelegateTo *uint
}

// Terminal reports whether the transition decided the request.
func (t Transition) Terminal() bool { return t.To.Status.IsTerminal() }

// Apply computes the transition for cmd from s. The command must already
// be valid; Apply still rejects malformed input.
func Apply(s State, cmd Command) (Transition, error) {
	if err := cmd.Validate().Err(); err != nil {
		return Transition{}, err
	}
	if s.Status.IsTerminal() {
		return Transition{}, models.NewConflictError(fmt.Sprintf("Request is already %s", s.Status))
	}
	if s.Status == models.RequestChangesRequested {
		return Transition{}, models.NewConflictError("Request is awaiting changes from the applicant")
	}
	if s.Level < 1 || s.Level > s.Levels {
		return Transition{}, models.NewConflictError("Request has no pending approval step")
	}

	t := Transition{From: s, To: s}
	switch cmd.Action {
	case models.ActionApprove:
		t.Step = models.StepApproved
		if s.Level == s.Levels {
			t.To.Status = models.RequestApproved
		} else {
			t.To.Status = models.RequestUnderReview
			t.To.Level = s.Level + 1
			t.OpenNext = true
		}
	case models.ActionReject:
		t.Step = models.StepRejected
		t.To.Status = models.RequestRejected
	case models.ActionRequestChanges:
		t.Step = models.StepChangesRequested
		t.To.Status = models.RequestChangesRequested
	case models.ActionDelegate:
		t.Step = models.StepPending
		t.DelegateTo = cmd.DelegateTo
	}
	return t, nil
}

// Resubmit returns a request awaiting changes to review at the same level.
func Resubmit(s State) (State, error) {
	if s.Status != models.RequestChangesRequested {
		return State{}, models.NewConflictError("Only requests awaiting changes can be resubmitted")
	}
	next := s
	if s.Level <= 1 {
		next.Status = models.RequestSubmitted
	} else {
		next.Status = models.RequestUnderReview
	}
	return next, nil
}

// Assignment describes who may decide the current step.
type Assignment struct {
	Level        int
	RequiredRole models.Role
	DelegatedTo  *uint
}

// Authorize checks that p may act on the step described by a.
// A delegated step can only be decided by the delegate or an admin.
func Authorize(p models.Principal, a Assignment) error {
	if a.DelegatedTo != nil && *a.DelegatedTo != p.UserID && !p.IsAdmin() {
		return models.NewForbiddenError("This approval step has been delegated to another user")
	}
	if a.DelegatedTo != nil && *a.DelegatedTo == p.UserID {
		if !CanApproveAtLevel(p.Role, a.Level) {
			return models.NewForbiddenError(fmt.Sprintf("Role %s cannot approve at level %d", p.Role, a.Level))
		}
		return nil
	}
	if !CanApproveAtLevel(p.Role, a.Level) {
		return models.NewForbiddenError(fmt.Sprintf("Role %s cannot approve at level %d", p.Role, a.Level))
	}
	if !Satisfies(p.Role, a.RequiredRole) {
		return models.NewForbiddenError(fmt.Sprintf("Level %d requires role %s", a.Level, a.RequiredRole))
	}
	return nil
}

// CanDelegateTo reports whether a user with role can receive a step at level.
func CanDelegateTo(role models.Role, level int) bool {
	return CanApproveAtLevel(role, level)
}
