package repository

import (
	"context"
	"testing"
	"time"

	"github.com/rockymount114/City-Workflow/internal/models"
	"github.com/rockymount114/City-Workflow/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplicationRepository_CreateAndDuplicateName(t *testing.T) {
	db := testutil.NewSQLiteDB(t, testutil.AllModels()...)
	repo := NewApplicationRepository(db)
	ctx := context.Background()

	app := &models.Application{
		Name:             "GIS Portal",
		IsActive:         true,
		RequiresApproval: true,
		ApprovalWorkflow: models.RoleList{models.RoleApproverL1, models.RoleApproverL2},
		CustomFields: []models.ApplicationField{
			{Name: "department", Label: "Department", Type: models.FieldText, Order: 2},
			{Name: "env", Label: "Environment", Type: models.FieldSelect, Order: 1, Config: models.RawConfig(`{"options":["PROD","TEST"]}`)},
		},
	}
	require.NoError(t, repo.Create(ctx, app))
	require.NotZero(t, app.ID)

	got, err := repo.GetByID(ctx, app.ID)
	require.NoError(t, err)
	require.Len(t, got.CustomFields, 2)
	assert.Equal(t, "env", got.CustomFields[0].Name)
	assert.Equal(t, models.RoleList{models.RoleApproverL1, models.RoleApproverL2}, got.ApprovalWorkflow)

	byName, err := repo.GetByName(ctx, "GIS Portal")
	require.NoError(t, err)
	require.NotNil(t, byName)
	missing, err := repo.GetByName(ctx, "gis portal")
	require.NoError(t, err)
	assert.Nil(t, missing)

	inactive := &models.Application{Name: "Legacy ERP", IsActive: false, ApprovalWorkflow: models.RoleList{}}
	require.NoError(t, repo.Create(ctx, inactive))
	err = repo.Create(ctx, &models.Application{Name: "Legacy ERP", ApprovalWorkflow: models.RoleList{}})
	require.Error(t, err)
	assert.True(t, models.IsCode(err, models.CodeConflict))
	assert.Equal(t, "Application with this name already exists", err.Error())
}

func TestApplicationRepository_UpdateReplacesFields(t *testing.T) {
	db := testutil.NewSQLiteDB(t, testutil.AllModels()...)
	repo := NewApplicationRepository(db)
	ctx := context.Background()

	app := testutil.CreateApplication(t, db, "Permits", models.RoleApproverL1)
	other := testutil.CreateApplication(t, db, "Payroll", models.RoleAdmin)

	app.Description = "Building permits"
	app.IsActive = false
	fields := []models.ApplicationField{{Name: "badge", Label: "Badge", Type: models.FieldNumber, Order: 1}}
	require.NoError(t, repo.Update(ctx, app, fields, true))

	got, err := repo.GetByID(ctx, app.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)
	assert.Equal(t, "Building permits", got.Description)
	require.Len(t, got.CustomFields, 1)
	assert.Equal(t, "badge", got.CustomFields[0].Name)

	require.NoError(t, repo.Update(ctx, got, nil, true))
	got, err = repo.GetByID(ctx, app.ID)
	require.NoError(t, err)
	assert.Empty(t, got.CustomFields)

	got.Name = other.Name
	err = repo.Update(ctx, got, nil, false)
	assert.True(t, models.IsCode(err, models.CodeConflict))
	assert.Equal(t, "Application name already in use", err.Error())
}

func TestApplicationRepository_DeleteCascades(t *testing.T) {
	db := testutil.NewSQLiteDB(t, testutil.AllModels()...)
	repo := NewApplicationRepository(db)
	ctx := context.Background()

	applicant := testutil.CreateUser(t, db, "applicant@city.gov", models.RoleApplicant)
	app := testutil.CreateApplication(t, db, "GIS Portal", models.RoleApproverL1, models.RoleApproverL2)
	keep := testutil.CreateApplication(t, db, "Payroll", models.RoleApproverL1)
	testutil.CreateRequest(t, db, applicant, app, models.RequestSubmitted, 1, time.Now())
	testutil.CreateRequest(t, db, applicant, app, models.RequestUnderReview, 2, time.Now())
	kept := testutil.CreateRequest(t, db, applicant, keep, models.RequestSubmitted, 1, time.Now())

	require.NoError(t, NewTransactor(db).WithinTx(ctx, func(ctx context.Context, r Repos) error {
		return r.Applications.Delete(ctx, app.ID)
	}))

	_, err := repo.GetByID(ctx, app.ID)
	assert.True(t, models.IsCode(err, models.CodeNotFound))

	var requests, steps int64
	require.NoError(t, db.Model(&models.ApplicationRequest{}).Count(&requests).Error)
	require.NoError(t, db.Model(&models.ApprovalStep{}).Count(&steps).Error)
	assert.Equal(t, int64(1), requests)
	assert.Equal(t, int64(1), steps)

	var remaining models.ApprovalStep
	require.NoError(t, db.First(&remaining).Error)
	assert.Equal(t, kept.ID, remaining.RequestID)

	err = repo.Delete(ctx, app.ID)
	assert.True(t, models.IsCode(err, models.CodeNotFound))
}

func TestApplicationRepository_ListNewestFirst(t *testing.T) {
	db := testutil.NewSQLiteDB(t, testutil.AllModels()...)
	repo := NewApplicationRepository(db)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	for i, name := range []string{"Accela", "Zoning Viewer", "Munis"} {
		app := &models.Application{
			Name:             name,
			IsActive:         name != "Munis",
			ApprovalWorkflow: models.RoleList{},
			CreatedAt:        base.Add(time.Duration(i) * time.Hour),
		}
		require.NoError(t, repo.Create(ctx, app))
	}

	names := func(apps []models.Application) []string {
		out := make([]string, len(apps))
		for i, a := range apps {
			out[i] = a.Name
		}
		return out
	}

	all, err := repo.List(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"Munis", "Zoning Viewer", "Accela"}, names(all))

	active, err := repo.List(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"Zoning Viewer", "Accela"}, names(active))
}
