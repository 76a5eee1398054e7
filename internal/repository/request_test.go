package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rockymount114/City-Workflow/internal/models"
	"github.com/rockymount114/City-Workflow/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requestIDs(reqs []models.ApplicationRequest) []uint {
	ids := make([]uint, len(reqs))
	for i, r := range reqs {
		ids[i] = r.ID
	}
	return ids
}

func TestRequestRepository_Queue(t *testing.T) {
	db := testutil.NewSQLiteDB(t, testutil.AllModels()...)
	repo := NewRequestRepository(db)
	ctx := context.Background()

	applicant := testutil.CreateUser(t, db, "applicant@city.gov", models.RoleApplicant)
	l1 := testutil.CreateUser(t, db, "l1@city.gov", models.RoleApproverL1)
	other := testutil.CreateUser(t, db, "other@city.gov", models.RoleApproverL1)
	gis := testutil.CreateApplication(t, db, "GIS Portal", models.RoleApproverL1, models.RoleApproverL2)
	payroll := testutil.CreateApplication(t, db, "Payroll", models.RoleAdmin)

	base := time.Now().Add(-time.Hour)
	atLevel1 := testutil.CreateRequest(t, db, applicant, gis, models.RequestSubmitted, 1, base)
	atLevel2 := testutil.CreateRequest(t, db, applicant, gis, models.RequestUnderReview, 2, base.Add(time.Minute))
	testutil.CreateRequest(t, db, applicant, gis, models.RequestApproved, 2, base.Add(2*time.Minute))
	adminOnly := testutil.CreateRequest(t, db, applicant, payroll, models.RequestSubmitted, 1, base.Add(3*time.Minute))
	delegated := testutil.CreateRequest(t, db, applicant, gis, models.RequestSubmitted, 1, base.Add(4*time.Minute))
	require.NoError(t, db.Model(&models.ApprovalStep{}).
		Where("request_id = ?", delegated.ID).
		Update("delegated_to_id", other.ID).Error)

	tests := []struct {
		name   string
		filter QueueFilter
		want   []uint
	}{
		{
			name:   "approver L1 sees only undelegated level 1 steps",
			filter: QueueFilter{UserID: l1.ID, Roles: []models.Role{models.RoleApproverL1}, MaxLevel: 1},
			want:   []uint{atLevel1.ID},
		},
		{
			name:   "delegate sees the delegated step",
			filter: QueueFilter{UserID: other.ID, Roles: []models.Role{models.RoleApproverL1}, MaxLevel: 1},
			want:   []uint{delegated.ID, atLevel1.ID},
		},
		{
			name:   "approver L2 covers L1 and L2 steps",
			filter: QueueFilter{UserID: 999, Roles: []models.Role{models.RoleApproverL1, models.RoleApproverL2}},
			want:   []uint{atLevel2.ID, atLevel1.ID},
		},
		{
			name:   "admin sees every pending request",
			filter: QueueFilter{UserID: 1, All: true},
			want:   []uint{delegated.ID, adminOnly.ID, atLevel2.ID, atLevel1.ID},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reqs, total, err := repo.Queue(ctx, tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.want, requestIDs(reqs))
			assert.Equal(t, int64(len(tt.want)), total)
		})
	}
}

func TestRequestRepository_GetByIDLoadsRelations(t *testing.T) {
	db := testutil.NewSQLiteDB(t, testutil.AllModels()...)
	repo := NewRequestRepository(db)
	ctx := context.Background()

	applicant := testutil.CreateUser(t, db, "applicant@city.gov", models.RoleApplicant)
	app := testutil.CreateApplication(t, db, "GIS Portal", models.RoleApproverL1, models.RoleApproverL2)
	req := testutil.CreateRequest(t, db, applicant, app, models.RequestSubmitted, 1, time.Now())

	got, err := repo.GetByID(ctx, req.ID)
	require.NoError(t, err)
	require.NotNil(t, got.User)
	require.NotNil(t, got.Application)
	assert.Equal(t, "GIS Portal", got.Application.Name)
	require.Len(t, got.Steps, 1)
	assert.Equal(t, models.RoleApproverL1, got.Steps[0].RequiredRole)

	_, err = repo.GetByID(ctx, 12345)
	assert.True(t, models.IsCode(err, models.CodeNotFound))
}

func TestRequestRepository_ListByUserPaginates(t *testing.T) {
	db := testutil.NewSQLiteDB(t, testutil.AllModels()...)
	repo := NewRequestRepository(db)

	mine := testutil.CreateUser(t, db, "mine@city.gov", models.RoleApplicant)
	theirs := testutil.CreateUser(t, db, "theirs@city.gov", models.RoleApplicant)
	app := testutil.CreateApplication(t, db, "Permits", models.RoleApproverL1)
	start := time.Now().Add(-time.Hour)
	for i := 0; i < 3; i++ {
		testutil.CreateRequest(t, db, mine, app, models.RequestSubmitted, 1, start.Add(time.Duration(i)*time.Minute))
	}
	testutil.CreateRequest(t, db, theirs, app, models.RequestSubmitted, 1, start)

	reqs, total, err := repo.List(context.Background(), RequestFilter{UserID: mine.ID, Page: Page{Number: 2, Size: 2}})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, reqs, 1)
	assert.Equal(t, mine.ID, reqs[0].UserID)
}

func TestStepRepository_UniquePerLevel(t *testing.T) {
	db := testutil.NewSQLiteDB(t, testutil.AllModels()...)
	steps := NewStepRepository(db)
	ctx := context.Background()

	applicant := testutil.CreateUser(t, db, "applicant@city.gov", models.RoleApplicant)
	app := testutil.CreateApplication(t, db, "GIS Portal", models.RoleApproverL1, models.RoleApproverL2)
	req := testutil.CreateRequest(t, db, applicant, app, models.RequestSubmitted, 1, time.Now())

	err := steps.Create(ctx, &models.ApprovalStep{RequestID: req.ID, Level: 1, RequiredRole: models.RoleApproverL1, Status: models.StepPending})
	assert.True(t, models.IsCode(err, models.CodeConflict))

	step, err := steps.Get(ctx, req.ID, 1)
	require.NoError(t, err)
	action := models.ActionApprove
	step.Status = models.StepApproved
	step.LastAction = &action
	require.NoError(t, steps.Update(ctx, step))

	list, err := steps.ListByRequest(ctx, req.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, models.StepApproved, list[0].Status)
}

func TestTransactor_RollsBackOnError(t *testing.T) {
	db := testutil.NewSQLiteDB(t, testutil.AllModels()...)
	ctx := context.Background()
	boom := errors.New("boom")

	err := NewTransactor(db).WithinTx(ctx, func(ctx context.Context, r Repos) error {
		if err := r.Applications.Create(ctx, &models.Application{Name: "Temp", ApprovalWorkflow: models.RoleList{}}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	found, err := NewApplicationRepository(db).GetByName(ctx, "Temp")
	require.NoError(t, err)
	assert.Nil(t, found)
}
