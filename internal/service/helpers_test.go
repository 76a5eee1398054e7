package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/rockymount114/City-Workflow/internal/featureflags"
	"github.com/rockymount114/City-Workflow/internal/models"
	"github.com/rockymount114/City-Workflow/internal/notifications"
	"github.com/rockymount114/City-Workflow/internal/repository"
	"github.com/rockymount114/City-Workflow/internal/testutil"
	"github.com/rockymount114/City-Workflow/internal/validation"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var justification = strings.Repeat("Needs access to maintain parcel layers. ", 2)

// assertCode asserts that err is an AppError with code.
func assertCode(t *testing.T, err error, code string) *models.AppError {
	t.Helper()
	require.Error(t, err)
	var appErr *models.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %T: %v", err, err)
	assert.Equal(t, code, appErr.Code, appErr.Message)
	return appErr
}

func assertValidationError(t *testing.T, err error, fields ...string) {
	t.Helper()
	appErr := assertCode(t, err, models.CodeValidation)
	for _, f := range fields {
		assert.Contains(t, appErr.Fields, f)
	}
}

type publishedEvent struct {
	userID uint
	admin  bool
	event  notifications.Event
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (p *recordingPublisher) PublishUser(_ context.Context, userID uint, ev notifications.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{userID: userID, event: ev})
	return nil
}

func (p *recordingPublisher) PublishAdmins(_ context.Context, ev notifications.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{admin: true, event: ev})
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.event.Type
	}
	return out
}

func (p *recordingPublisher) last() publishedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.events[len(p.events)-1]
}

type testEnv struct {
	db        *gorm.DB
	repos     repository.Repos
	pub       *recordingPublisher
	apps      *ApplicationService
	users     *UserService
	requests  *RequestService
	approvals *ApprovalService
}

func newTestEnv(t *testing.T, flags string) *testEnv {
	t.Helper()
	db := testutil.NewSQLiteDB(t, testutil.AllModels()...)
	repos := repository.NewRepos(db)
	tx := repository.NewTransactor(db)
	pub := &recordingPublisher{}
	ff := featureflags.NewManager(flags)

	users := NewUserService(repos.Users, tx, "city.gov")
	users.hashCost = 4
	return &testEnv{
		db:        db,
		repos:     repos,
		pub:       pub,
		apps:      NewApplicationService(repos.Applications, tx, pub, ff),
		users:     users,
		requests:  NewRequestService(repos, tx, pub, ff),
		approvals: NewApprovalService(repos, tx, pub, ff),
	}
}

func (e *testEnv) user(t *testing.T, email string, role models.Role) *models.User {
	return testutil.CreateUser(t, e.db, email, role)
}

func (e *testEnv) submit(t *testing.T, applicant *models.User, app *models.Application) *models.ApplicationRequest {
	t.Helper()
	req, err := e.requests.Submit(context.Background(), actorOf(applicant), validation.RequestInput{
		ApplicationID:  app.ID,
		RequestType:    string(models.RequestNewAccount),
		Environment:    string(models.EnvironmentProd),
		Justification:  justification,
		RequestedRoles: []string{"Editor"},
	})
	require.NoError(t, err)
	return req
}

func (e *testEnv) act(u *models.User, id uint, action models.ApprovalAction, comments string) (*models.ApplicationRequest, error) {
	return e.approvals.Act(context.Background(), actorOf(u), id, validation.ApprovalInput{Action: string(action), Comments: comments})
}

func (e *testEnv) auditCount(t *testing.T, entity models.EntityType, id uint) int64 {
	t.Helper()
	_, total, err := e.repos.Audit.List(context.Background(), repository.AuditFilter{EntityType: entity, EntityID: id})
	require.NoError(t, err)
	return total
}

func actorOf(u *models.User) models.Actor {
	return models.Actor{
		Principal: models.Principal{UserID: u.ID, Role: u.Role},
		Meta:      models.RequestMeta{IPAddress: "10.1.2.3", UserAgent: "service-test", RequestID: "req-test"},
	}
}

func boolPtr(v bool) *bool { return &v }

func strPtr(v string) *string { return &v }

func uintPtr(v uint) *uint { return &v }
