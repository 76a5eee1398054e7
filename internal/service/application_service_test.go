package service

import (
	"context"
	"testing"

	"github.com/rockymount114/City-Workflow/internal/models"
	"github.com/rockymount114/City-Workflow/internal/notifications"
	"github.com/rockymount114/City-Workflow/internal/repository"
	"github.com/rockymount114/City-Workflow/internal/validation"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gisInput() validation.ApplicationInput {
	return validation.ApplicationInput{
		Name:             "  GIS Portal ",
		Description:      "Parcel and zoning maps",
		ApprovalWorkflow: []string{"APPROVER_L1", "APPROVER_L2"},
		CustomFields: []validation.FieldInput{
			{Name: "supervisor", Label: "Supervisor e-mail", Type: "EMAIL", Required: true, Order: 1},
			{Name: "layers", Label: "Layers", Type: "SELECT", Order: 2, Config: []byte(`{"options":["parcels","zoning"],"multiple":true}`)},
		},
	}
}

func TestApplicationService_Create(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, "")
	admin := env.user(t, "admin@city.gov", models.RoleAdmin)
	ctx := context.Background()

	app, err := env.apps.Create(ctx, actorOf(admin), gisInput())
	require.NoError(t, err)
	assert.NotZero(t, app.ID)
	assert.Equal(t, "GIS Portal", app.Name)
	assert.True(t, app.IsActive)
	assert.True(t, app.RequiresApproval)
	assert.Equal(t, models.RoleList{models.RoleApproverL1, models.RoleApproverL2}, app.ApprovalWorkflow)
	require.Len(t, app.CustomFields, 2)

	entries, _, err := env.repos.Audit.List(ctx, repository.AuditFilter{EntityType: models.EntityApplication, EntityID: app.ID})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, models.AuditCreate, entries[0].Action)
	assert.Equal(t, admin.ID, entries[0].ActorID)
	assert.Equal(t, "GIS Portal", entries[0].NewValues["name"])
	assert.Equal(t, true, entries[0].NewValues["requiresApproval"])
	assert.Equal(t, "10.1.2.3", entries[0].IPAddress)

	ev := env.pub.last()
	assert.True(t, ev.admin)
	assert.Equal(t, notifications.EventApplicationChanged, ev.event.Type)
}

func TestApplicationService_CreateDuplicateName(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, "")
	admin := env.user(t, "admin@city.gov", models.RoleAdmin)
	ctx := context.Background()

	in := gisInput()
	in.IsActive = boolPtr(false)
	_, err := env.apps.Create(ctx, actorOf(admin), in)
	require.NoError(t, err)

	_, err = env.apps.Create(ctx, actorOf(admin), gisInput())
	appErr := assertCode(t, err, models.CodeConflict)
	assert.Equal(t, "Application with this name already exists", appErr.Message)

	lower := gisInput()
	lower.Name = "gis portal"
	_, err = env.apps.Create(ctx, actorOf(admin), lower)
	require.NoError(t, err, "names are case-sensitive")
}

func TestApplicationService_CreateValidation(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, "")
	admin := env.user(t, "admin@city.gov", models.RoleAdmin)

	tests := []struct {
		name   string
		mutate func(*validation.ApplicationInput)
		field  string
	}{
		{"unknown workflow role", func(in *validation.ApplicationInput) { in.ApprovalWorkflow = []string{"APPROVER_L3"} }, "approvalWorkflow.0"},
		{"applicant in workflow", func(in *validation.ApplicationInput) { in.ApprovalWorkflow = []string{"APPLICANT"} }, "approvalWorkflow.0"},
		{"empty workflow requiring approval", func(in *validation.ApplicationInput) { in.ApprovalWorkflow = nil }, "approvalWorkflow"},
		{"blank name", func(in *validation.ApplicationInput) { in.Name = "   " }, "name"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := gisInput()
			tt.mutate(&in)
			_, err := env.apps.Create(context.Background(), actorOf(admin), in)
			assertValidationError(t, err, tt.field)
		})
	}

	apps, err := env.apps.List(context.Background(), false)
	require.NoError(t, err)
	assert.Empty(t, apps)
}

func TestApplicationService_Update(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, "")
	admin := env.user(t, "admin@city.gov", models.RoleAdmin)
	ctx := context.Background()

	app, err := env.apps.Create(ctx, actorOf(admin), gisInput())
	require.NoError(t, err)
	other := gisInput()
	other.Name = "Permit Tracker"
	_, err = env.apps.Create(ctx, actorOf(admin), other)
	require.NoError(t, err)

	_, err = env.apps.Update(ctx, actorOf(admin), app.ID, validation.ApplicationPatch{Name: strPtr("Permit Tracker")})
	appErr := assertCode(t, err, models.CodeConflict)
	assert.Equal(t, "Application name already in use", appErr.Message)

	updated, err := env.apps.Update(ctx, actorOf(admin), app.ID, validation.ApplicationPatch{
		Description:      strPtr("Maps"),
		ApprovalWorkflow: &[]string{"ADMIN"},
		CustomFields:     &[]validation.FieldInput{},
	})
	require.NoError(t, err)
	assert.Equal(t, "GIS Portal", updated.Name, "unchanged fields stay")
	assert.Equal(t, "Maps", updated.Description)
	assert.Equal(t, models.RoleList{models.RoleAdmin}, updated.ApprovalWorkflow)

	fetched, err := env.apps.Get(ctx, app.ID)
	require.NoError(t, err)
	assert.Empty(t, fetched.CustomFields)

	entries, _, err := env.repos.Audit.List(ctx, repository.AuditFilter{EntityType: models.EntityApplication, EntityID: app.ID})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, models.AuditUpdate, entries[0].Action)
	assert.Equal(t, "Parcel and zoning maps", entries[0].OldValues["description"])
	assert.Equal(t, "Maps", entries[0].NewValues["description"])

	_, err = env.apps.Update(ctx, actorOf(admin), 9999, validation.ApplicationPatch{})
	assertCode(t, err, models.CodeNotFound)
}

func TestApplicationService_DeleteCascades(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, "")
	admin := env.user(t, "admin@city.gov", models.RoleAdmin)
	applicant := env.user(t, "applicant@city.gov", models.RoleApplicant)
	ctx := context.Background()

	in := gisInput()
	in.CustomFields = nil
	app, err := env.apps.Create(ctx, actorOf(admin), in)
	require.NoError(t, err)
	req := env.submit(t, applicant, app)

	require.NoError(t, env.apps.Delete(ctx, actorOf(admin), app.ID))

	_, err = env.apps.Get(ctx, app.ID)
	assertCode(t, err, models.CodeNotFound)
	_, err = env.repos.Requests.GetByID(ctx, req.ID)
	assertCode(t, err, models.CodeNotFound)
	steps, err := env.repos.Steps.ListByRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Empty(t, steps)

	entries, _, err := env.repos.Audit.List(ctx, repository.AuditFilter{EntityType: models.EntityApplication, EntityID: app.ID, Page: repository.Page{}})
	require.NoError(t, err)
	require.NotEmpty(t, entries)
	assert.Equal(t, models.AuditDelete, entries[0].Action)
	assert.Equal(t, "GIS Portal", entries[0].OldValues["name"])

	err = env.apps.Delete(ctx, actorOf(admin), app.ID)
	assertCode(t, err, models.CodeNotFound)
}
