package seed

import (
	"testing"

	"github.com/rockymount114/City-Workflow/internal/models"
	"github.com/rockymount114/City-Workflow/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCatalog_EntriesBuild(t *testing.T) {
	entries, err := LoadCatalog()
	require.NoError(t, err)
	require.NotEmpty(t, entries)

	names := map[string]bool{}
	for _, e := range entries {
		assert.False(t, names[e.Name], "duplicate catalog entry %q", e.Name)
		names[e.Name] = true

		in, err := e.Input()
		require.NoError(t, err, e.Name)
		app, err := in.Build()
		require.NoError(t, err, e.Name)
		assert.Len(t, app.CustomFields, len(e.CustomFields), e.Name)
	}
}

func TestLoadCatalog_NoApprovalEntryHasEmptyWorkflow(t *testing.T) {
	entries, err := LoadCatalog()
	require.NoError(t, err)

	for _, e := range entries {
		if e.RequiresApproval != nil && !*e.RequiresApproval {
			assert.Empty(t, e.ApprovalWorkflow, e.Name)
		}
	}
}

func TestCatalog_Idempotent(t *testing.T) {
	db := testutil.NewSQLiteDB(t, testutil.AllModels()...)

	entries, err := LoadCatalog()
	require.NoError(t, err)

	created, err := Catalog(db)
	require.NoError(t, err)
	assert.Equal(t, len(entries), created)

	created, err = Catalog(db)
	require.NoError(t, err)
	assert.Zero(t, created)

	var count int64
	require.NoError(t, db.Model(&models.Application{}).Count(&count).Error)
	assert.Equal(t, int64(len(entries)), count)
}

func TestCatalog_KeepsAdminEdits(t *testing.T) {
	db := testutil.NewSQLiteDB(t, testutil.AllModels()...)
	_, err := Catalog(db)
	require.NoError(t, err)

	require.NoError(t, db.Model(&models.Application{}).
		Where("name = ?", "GIS Portal").
		Update("description", "Edited by an admin").Error)

	_, err = Catalog(db)
	require.NoError(t, err)

	var app models.Application
	require.NoError(t, db.Where("name = ?", "GIS Portal").First(&app).Error)
	assert.Equal(t, "Edited by an admin", app.Description)
}
