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

func TestStatsRepository(t *testing.T) {
	db := testutil.NewSQLiteDB(t, testutil.AllModels()...)
	repo := NewStatsRepository(db)
	ctx := context.Background()

	applicant := testutil.CreateUser(t, db, "applicant@city.gov", models.RoleApplicant)
	testutil.CreateUser(t, db, "admin@city.gov", models.RoleAdmin)
	gis := testutil.CreateApplication(t, db, "GIS Portal", models.RoleApproverL1)
	payroll := testutil.CreateApplication(t, db, "Payroll", models.RoleApproverL1)

	now := time.Now()
	old := now.AddDate(0, 0, -60)
	testutil.CreateRequest(t, db, applicant, gis, models.RequestApproved, 1, now.Add(-48*time.Hour))
	testutil.CreateRequest(t, db, applicant, gis, models.RequestSubmitted, 1, now.Add(-time.Hour))
	testutil.CreateRequest(t, db, applicant, payroll, models.RequestRejected, 1, now.Add(-24*time.Hour))
	testutil.CreateRequest(t, db, applicant, payroll, models.RequestSubmitted, 1, old)
	testutil.CreateRequest(t, db, applicant, payroll, models.RequestSubmitted, 1, old)

	users, err := repo.CountUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), users)

	apps, err := repo.CountApplications(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), apps)

	since := now.AddDate(0, 0, -30)
	all, err := repo.CountRequests(ctx, since)
	require.NoError(t, err)
	assert.Equal(t, int64(3), all)

	pending, err := repo.CountRequests(ctx, time.Time{}, models.RequestSubmitted, models.RequestUnderReview)
	require.NoError(t, err)
	assert.Equal(t, int64(3), pending)

	top, err := repo.TopApplications(ctx, since, 5)
	require.NoError(t, err)
	assert.Equal(t, []ApplicationCount{{Name: "GIS Portal", Count: 2}, {Name: "Payroll", Count: 1}}, top)

	activity, err := repo.RequestActivity(ctx, since)
	require.NoError(t, err)
	require.Len(t, activity, 3)
	decided := 0
	for _, p := range activity {
		if p.DecidedAt != nil {
			decided++
			assert.InDelta(t, 2*time.Hour, p.DecidedAt.Sub(p.CreatedAt), float64(time.Second))
		}
	}
	assert.Equal(t, 2, decided)
}
