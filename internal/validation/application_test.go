package validation

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rockymount114/City-Workflow/internal/models"
)

func fieldErrorsOf(t *testing.T, err error) map[string][]string {
	t.Helper()
	var appErr *models.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, models.CodeValidation, appErr.Code)
	return appErr.Fields
}

func boolPtr(v bool) *bool { return &v }

func TestApplicationInputBuild(t *testing.T) {
	in := ApplicationInput{
		Name:             "GIS Portal",
		Description:      "Mapping",
		ApprovalWorkflow: []string{"APPROVER_L1", "APPROVER_L2"},
		CustomFields: []FieldInput{
			{Name: "layer", Label: "Layer", Type: "SELECT", Required: true, Order: 1, Config: json.RawMessage(`{"options":["Parcels","Zoning"]}`)},
			{Name: "manager", Label: "Manager email", Type: "EMAIL", Order: 2},
		},
	}

	app, err := in.Build()
	require.NoError(t, err)
	assert.True(t, app.IsActive)
	assert.True(t, app.RequiresApproval)
	assert.Equal(t, models.RoleList{models.RoleApproverL1, models.RoleApproverL2}, app.ApprovalWorkflow)
	require.Len(t, app.CustomFields, 2)
	assert.Equal(t, models.FieldSelect, app.CustomFields[0].Type)
	assert.Equal(t, models.FieldEmail, app.CustomFields[1].Type)
}

func TestApplicationInputRejectsUnknownWorkflowRole(t *testing.T) {
	in := ApplicationInput{Name: "Payroll", ApprovalWorkflow: []string{"APPROVER_L1", "APPLICANT", "approver_l2"}}
	_, err := in.Build()
	fields := fieldErrorsOf(t, err)
	assert.Contains(t, fields, "approvalWorkflow.1")
	assert.Contains(t, fields, "approvalWorkflow.2")
	assert.NotContains(t, fields, "approvalWorkflow.0")
}

func TestApplicationInputWorkflowRules(t *testing.T) {
	_, err := ApplicationInput{Name: "Payroll"}.Build()
	assert.Contains(t, fieldErrorsOf(t, err), "approvalWorkflow")

	app, err := ApplicationInput{Name: "Intranet", RequiresApproval: boolPtr(false)}.Build()
	require.NoError(t, err)
	assert.False(t, app.RequiresApproval)
	assert.Empty(t, app.ApprovalWorkflow)

	app, err = ApplicationInput{Name: "Finance", ApprovalWorkflow: []string{"APPROVER_L2", "APPROVER_L2"}}.Build()
	require.NoError(t, err)
	assert.Len(t, app.ApprovalWorkflow, 2)
}

func TestApplicationInputFieldErrors(t *testing.T) {
	in := ApplicationInput{
		Name:             strings.Repeat("x", 101),
		Description:      strings.Repeat("d", 501),
		ApprovalWorkflow: []string{"ADMIN"},
		CustomFields: []FieldInput{
			{Name: "1bad", Label: "Bad", Type: "TEXT", Order: 1},
			{Name: "dup", Label: "", Type: "TEXT", Order: 1},
			{Name: "dup", Label: "Dup", Type: "SIGNATURE", Order: 2},
			{Name: "choice", Label: "Choice", Type: "SELECT", Order: 3, Config: json.RawMessage(`{"options":[]}`)},
			{Name: "count", Label: "Count", Type: "NUMBER", Order: 4, Config: json.RawMessage(`{"pattern":"x"}`)},
		},
	}
	_, err := in.Build()
	fields := fieldErrorsOf(t, err)
	for _, key := range []string{
		"name", "description",
		"customFields.0.name",
		"customFields.1.label", "customFields.1.order",
		"customFields.2.name", "customFields.2.type",
		"customFields.3.config",
		"customFields.4.type",
	} {
		assert.Contains(t, fields, key)
	}
}

func TestApplicationPatchApply(t *testing.T) {
	app := &models.Application{
		Name:             "GIS Portal",
		IsActive:         true,
		RequiresApproval: true,
		ApprovalWorkflow: models.RoleList{models.RoleApproverL1},
	}
	name := "  GIS Portal v2 "
	fields := []FieldInput{{Name: "reason", Label: "Reason", Type: "TEXT", Order: 1}}

	replacement, replace, err := ApplicationPatch{
		Name:         &name,
		IsActive:     boolPtr(false),
		CustomFields: &fields,
	}.Apply(app)
	require.NoError(t, err)
	assert.True(t, replace)
	require.Len(t, replacement, 1)
	assert.Equal(t, "GIS Portal v2", app.Name)
	assert.False(t, app.IsActive)

	empty := []string{}
	_, _, err = ApplicationPatch{ApprovalWorkflow: &empty}.Apply(app)
	assert.Contains(t, fieldErrorsOf(t, err), "approvalWorkflow")

	_, replace, err = ApplicationPatch{RequiresApproval: boolPtr(false), ApprovalWorkflow: &empty}.Apply(app)
	require.NoError(t, err)
	assert.False(t, replace)
}

func TestRequestInputValidate(t *testing.T) {
	valid := RequestInput{
		ApplicationID:  1,
		RequestType:    "NEW_ACCOUNT",
		Environment:    "PROD",
		Justification:  strings.Repeat("j", 60),
		RequestedRoles: []string{"Viewer", " "},
	}
	assert.Empty(t, valid.Validate())
	assert.Equal(t, []string{"Viewer"}, valid.RequestedRoles)

	bad := RequestInput{RequestType: "DELETE_ACCOUNT", Environment: "DEV", Justification: "too short"}
	errs := bad.Validate()
	for _, key := range []string{"applicationId", "requestType", "environment", "justification", "requestedRoles"} {
		assert.Contains(t, errs, key)
	}
}

func TestCheckFieldValues(t *testing.T) {
	var layer, count models.ApplicationField
	layer.Name, layer.Label, layer.Required = "layer", "Layer", true
	require.NoError(t, layer.SetSpec(models.SelectSpec{Options: []string{"Parcels"}}))
	count.Name, count.Label = "count", "Count"
	limit := 3.0
	require.NoError(t, count.SetSpec(models.NumberSpec{Max: &limit}))
	fields := []models.ApplicationField{layer, count}

	assert.Empty(t, CheckFieldValues(fields, map[string]any{"layer": "Parcels"}))

	errs := CheckFieldValues(fields, map[string]any{"count": 9.0, "extra": "x"})
	assert.Contains(t, errs, "fieldValues.layer")
	assert.Contains(t, errs, "fieldValues.count")
	assert.Contains(t, errs, "fieldValues.extra")
}

func TestApprovalInputCommand(t *testing.T) {
	cmd := ApprovalInput{Action: " reject ", Comments: "  missing cost center  "}.Command()
	assert.Equal(t, models.ActionReject, cmd.Action)
	assert.Equal(t, "missing cost center", cmd.Comments)
	assert.Empty(t, cmd.Validate())

	cmd = ApprovalInput{Action: "REQUEST_CHANGES", Comments: "   "}.Command()
	assert.Contains(t, cmd.Validate(), "comments")
}

func TestUserInputValidate(t *testing.T) {
	in := UserInput{
		Email:      " Jane.Doe@City.gov ",
		Password:   "SecurePass12!",
		FirstName:  "Jane",
		LastName:   "Doe",
		Role:       "approver_l1",
		EmployeeID: "EMP000123",
	}
	assert.Empty(t, in.Validate("city.gov"))
	assert.Equal(t, "jane.doe@city.gov", in.Email)
	assert.Equal(t, "APPROVER_L1", in.Role)

	bad := UserInput{Email: "jane@gmail.com", Password: "short", Role: "ROOT", EmployeeID: "123"}
	errs := bad.Validate("city.gov")
	for _, key := range []string{"email", "password", "firstName", "lastName", "role", "employeeId"} {
		assert.Contains(t, errs, key)
	}
}

func TestUserPatchApply(t *testing.T) {
	u := &models.User{FirstName: "Jane", Role: models.RoleApplicant, IsActive: true}
	role := "APPROVER_L2"
	pw := "AnotherPass12!"
	password, err := UserPatch{Role: &role, IsActive: boolPtr(false), Password: &pw}.Apply(u)
	require.NoError(t, err)
	assert.Equal(t, models.RoleApproverL2, u.Role)
	assert.False(t, u.IsActive)
	assert.Equal(t, pw, password)

	bad := "GOD"
	_, err = UserPatch{Role: &bad}.Apply(u)
	assert.Contains(t, fieldErrorsOf(t, err), "role")
}
