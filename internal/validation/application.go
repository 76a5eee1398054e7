package validation

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/rockymount114/City-Workflow/internal/models"
	"github.com/rockymount114/City-Workflow/internal/workflow"
)

const (
	maxApplicationName        = 100
	maxApplicationDescription = 500
	maxFieldName              = 100
	maxFieldLabel             = 200
	maxCustomFields           = 50
)

var fieldNameRegex = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_]*$`)

// FieldInput is a custom field definition as submitted by an admin.
type FieldInput struct {
	Name     string          `json:"name"`
	Label    string          `json:"label"`
	Type     string          `json:"type"`
	Required bool            `json:"required"`
	Order    int             `json:"order"`
	Config   json.RawMessage `json:"config,omitempty"`
}

// ApplicationInput is the payload for creating an application.
type ApplicationInput struct {
	Name             string       `json:"name"`
	Description      string       `json:"description"`
	IsActive         *bool        `json:"isActive"`
	RequiresApproval *bool        `json:"requiresApproval"`
	ApprovalWorkflow []string     `json:"approvalWorkflow"`
	CustomFields     []FieldInput `json:"customFields"`
}

// Normalize trims free-text fields in place.
func (in *ApplicationInput) Normalize() {
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)
	for i := range in.CustomFields {
		in.CustomFields[i].Name = strings.TrimSpace(in.CustomFields[i].Name)
		in.CustomFields[i].Label = strings.TrimSpace(in.CustomFields[i].Label)
	}
}

// Build validates the input and returns the application it describes.
func (in ApplicationInput) Build() (*models.Application, error) {
	errs := models.FieldErrors{}
	checkApplicationName(errs, in.Name)
	checkDescription(errs, in.Description)

	requiresApproval := true
	if in.RequiresApproval != nil {
		requiresApproval = *in.RequiresApproval
	}
	isActive := true
	if in.IsActive != nil {
		isActive = *in.IsActive
	}

	roles := toRoles(in.ApprovalWorkflow)
	errs.Merge("", workflow.CheckWorkflow(roles, requiresApproval))

	fields, fieldErrs := BuildFields(in.CustomFields)
	errs.Merge("", fieldErrs)

	if err := errs.Err(); err != nil {
		return nil, err
	}
	return &models.Application{
		Name:             in.Name,
		Description:      in.Description,
		IsActive:         isActive,
		RequiresApproval: requiresApproval,
		ApprovalWorkflow: roles,
		CustomFields:     fields,
	}, nil
}

// ApplicationPatch is the payload for a partial application update.
// Absent fields are left unchanged; customFields replaces the whole set.
type ApplicationPatch struct {
	Name             *string       `json:"name"`
	Description      *string       `json:"description"`
	IsActive         *bool         `json:"isActive"`
	RequiresApproval *bool         `json:"requiresApproval"`
	ApprovalWorkflow *[]string     `json:"approvalWorkflow"`
	CustomFields     *[]FieldInput `json:"customFields"`
}

// Apply validates the patch against app and writes the changes into it.
// It returns the replacement custom fields when the patch carries them.
func (p ApplicationPatch) Apply(app *models.Application) ([]models.ApplicationField, bool, error) {
	errs := models.FieldErrors{}
	if p.Name != nil {
		name := strings.TrimSpace(*p.Name)
		checkApplicationName(errs, name)
		app.Name = name
	}
	if p.Description != nil {
		desc := strings.TrimSpace(*p.Description)
		checkDescription(errs, desc)
		app.Description = desc
	}
	if p.IsActive != nil {
		app.IsActive = *p.IsActive
	}
	if p.RequiresApproval != nil {
		app.RequiresApproval = *p.RequiresApproval
	}
	if p.ApprovalWorkflow != nil {
		app.ApprovalWorkflow = toRoles(*p.ApprovalWorkflow)
	}
	if p.RequiresApproval != nil || p.ApprovalWorkflow != nil {
		errs.Merge("", workflow.CheckWorkflow(app.ApprovalWorkflow, app.RequiresApproval))
	}

	var fields []models.ApplicationField
	replace := p.CustomFields != nil
	if replace {
		inputs := *p.CustomFields
		for i := range inputs {
			inputs[i].Name = strings.TrimSpace(inputs[i].Name)
			inputs[i].Label = strings.TrimSpace(inputs[i].Label)
		}
		var fieldErrs models.FieldErrors
		fields, fieldErrs = BuildFields(inputs)
		errs.Merge("", fieldErrs)
	}

	if err := errs.Err(); err != nil {
		return nil, false, err
	}
	return fields, replace, nil
}

// BuildFields validates custom field inputs and converts them to models.
func BuildFields(inputs []FieldInput) ([]models.ApplicationField, models.FieldErrors) {
	errs := models.FieldErrors{}
	if len(inputs) > maxCustomFields {
		errs.Add("customFields", fmt.Sprintf("At most %d custom fields are allowed", maxCustomFields))
		return nil, errs
	}

	names := make(map[string]struct{}, len(inputs))
	orders := make(map[int]struct{}, len(inputs))
	fields := make([]models.ApplicationField, 0, len(inputs))
	for i, in := range inputs {
		path := fmt.Sprintf("customFields.%d", i)
		switch {
		case in.Name == "":
			errs.Add(path+".name", "Field name is required")
		case utf8.RuneCountInString(in.Name) > maxFieldName:
			errs.Add(path+".name", fmt.Sprintf("Field name must be at most %d characters", maxFieldName))
		case !fieldNameRegex.MatchString(in.Name):
			errs.Add(path+".name", "Field name must start with a letter and contain only letters, digits and underscores")
		}
		if _, dup := names[in.Name]; dup && in.Name != "" {
			errs.Add(path+".name", "Field names must be unique")
		}
		names[in.Name] = struct{}{}

		if in.Label == "" {
			errs.Add(path+".label", "Field label is required")
		} else if utf8.RuneCountInString(in.Label) > maxFieldLabel {
			errs.Add(path+".label", fmt.Sprintf("Field label must be at most %d characters", maxFieldLabel))
		}

		if in.Order < 0 {
			errs.Add(path+".order", "Order must not be negative")
		}
		if _, dup := orders[in.Order]; dup {
			errs.Add(path+".order", "Order must be unique within the application")
		}
		orders[in.Order] = struct{}{}

		spec, err := models.DecodeFieldSpec(models.FieldType(in.Type), in.Config)
		if err != nil {
			errs.Add(path+".type", err.Error())
			continue
		}
		if err := spec.Validate(); err != nil {
			errs.Add(path+".config", err.Error())
			continue
		}

		field := models.ApplicationField{
			Name:     in.Name,
			Label:    in.Label,
			Required: in.Required,
			Order:    in.Order,
		}
		if err := field.SetSpec(spec); err != nil {
			errs.Add(path+".config", err.Error())
			continue
		}
		fields = append(fields, field)
	}
	return fields, errs
}

func checkApplicationName(errs models.FieldErrors, name string) {
	if name == "" {
		errs.Add("name", "Application name is required")
	} else if utf8.RuneCountInString(name) > maxApplicationName {
		errs.Add("name", fmt.Sprintf("Application name must be at most %d characters", maxApplicationName))
	}
}

func checkDescription(errs models.FieldErrors, desc string) {
	if utf8.RuneCountInString(desc) > maxApplicationDescription {
		errs.Add("description", fmt.Sprintf("Description must be at most %d characters", maxApplicationDescription))
	}
}

// toRoles keeps tokens verbatim; unknown tokens are reported by CheckWorkflow.
func toRoles(tokens []string) models.RoleList {
	roles := make(models.RoleList, len(tokens))
	for i, tok := range tokens {
		roles[i] = models.Role(tok)
	}
	return roles
}
