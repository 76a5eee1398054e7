package validation

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/rockymount114/City-Workflow/internal/models"
	"github.com/rockymount114/City-Workflow/internal/workflow"
)

const (
	minJustification = 50
	maxJustification = 2000
)

// RequestInput is an applicant's access request.
type RequestInput struct {
	ApplicationID  uint           `json:"applicationId"`
	RequestType    string         `json:"requestType"`
	Environment    string         `json:"environment"`
	Justification  string         `json:"justification"`
	RequestedRoles []string       `json:"requestedRoles"`
	FieldValues    map[string]any `json:"fieldValues"`
}

// Validate checks everything that does not depend on the application.
func (in *RequestInput) Validate() models.FieldErrors {
	errs := models.FieldErrors{}
	in.Justification = strings.TrimSpace(in.Justification)

	if in.ApplicationID == 0 {
		errs.Add("applicationId", "Application is required")
	}
	switch models.RequestType(in.RequestType) {
	case models.RequestNewAccount, models.RequestExistingAccount, models.RequestLockAccount:
	default:
		errs.Add("requestType", "Request type must be one of NEW_ACCOUNT, EXISTING_ACCOUNT, LOCK_ACCOUNT")
	}
	switch models.Environment(in.Environment) {
	case models.EnvironmentProd, models.EnvironmentTest, models.EnvironmentBoth:
	default:
		errs.Add("environment", "Environment must be one of PROD, TEST, BOTH")
	}

	n := utf8.RuneCountInString(in.Justification)
	if n < minJustification {
		errs.Add("justification", fmt.Sprintf("Justification must be at least %d characters", minJustification))
	} else if n > maxJustification {
		errs.Add("justification", fmt.Sprintf("Justification must be at most %d characters", maxJustification))
	}

	roles := in.RequestedRoles[:0]
	for _, r := range in.RequestedRoles {
		if r = strings.TrimSpace(r); r != "" {
			roles = append(roles, r)
		}
	}
	in.RequestedRoles = roles
	if len(roles) == 0 {
		errs.Add("requestedRoles", "At least one role must be requested")
	}
	return errs
}

// CheckFieldValues validates submitted values against the application's
// custom fields. Values for unknown fields are rejected.
func CheckFieldValues(fields []models.ApplicationField, values map[string]any) models.FieldErrors {
	errs := models.FieldErrors{}
	known := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		known[f.Name] = struct{}{}
		path := "fieldValues." + f.Name
		v, present := values[f.Name]
		if !present || v == nil || v == "" {
			if f.Required {
				errs.Add(path, fmt.Sprintf("%s is required", f.Label))
			}
			continue
		}
		spec, err := f.Spec()
		if err != nil {
			errs.Add(path, "Field definition is invalid")
			continue
		}
		if err := spec.CheckValue(v); err != nil {
			errs.Add(path, fmt.Sprintf("%s %s", f.Label, err.Error()))
		}
	}
	for name := range values {
		if _, ok := known[name]; !ok {
			errs.Add("fieldValues."+name, "Unknown field")
		}
	}
	return errs
}

// ApprovalInput is the body of an approval action.
type ApprovalInput struct {
	Action     string `json:"action"`
	Comments   string `json:"comments"`
	DelegateTo *uint  `json:"delegateTo"`
}

// Command converts the input to a workflow command.
func (in ApprovalInput) Command() workflow.Command {
	return workflow.Command{
		Action:     models.ApprovalAction(strings.ToUpper(strings.TrimSpace(in.Action))),
		Comments:   strings.TrimSpace(in.Comments),
		DelegateTo: in.DelegateTo,
	}
}

// ResubmitInput optionally replaces the editable parts of a request.
type ResubmitInput struct {
	Justification *string        `json:"justification"`
	FieldValues   map[string]any `json:"fieldValues"`
	Comments      string         `json:"comments"`
}

// Validate checks the replacement justification when present.
func (in *ResubmitInput) Validate() models.FieldErrors {
	errs := models.FieldErrors{}
	if in.Justification != nil {
		j := strings.TrimSpace(*in.Justification)
		in.Justification = &j
		n := utf8.RuneCountInString(j)
		if n < minJustification || n > maxJustification {
			errs.Add("justification", fmt.Sprintf("Justification must be between %d and %d characters", minJustification, maxJustification))
		}
	}
	return errs
}
