// Package seed provides helpers to create test and demo data for the
// application database. These helpers are intended for development and
// testing only.
package seed

import (
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/rockymount114/City-Workflow/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// DefaultPassword is the password of every seeded user.
const DefaultPassword = "Seeded-Passw0rd!"

var departments = []string{
	"Planning", "Public Works", "Finance", "Police", "Fire", "Parks and Recreation", "IT", "Utilities",
}

// Factory builds domain entities and persists them to the database.
// It is a thin helper used by the seeder and tests.
type Factory struct {
	db   *gorm.DB
	opts Options
	rng  *rand.Rand
	hash string
	// seq keeps seeded e-mails and employee IDs unique within a run.
	seq int
	// synthetic ID counter when running in DryRun mode
	nextID uint
}

// NewFactory creates a new Factory bound to the provided Gorm DB.
func NewFactory(db *gorm.DB, opts Options) (*Factory, error) {
	seed := opts.RandSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	gofakeit.Seed(seed)

	// One hash for every seeded account keeps large seeds fast.
	hash, err := bcrypt.GenerateFromPassword([]byte(DefaultPassword), bcrypt.MinCost)
	if err != nil {
		return nil, fmt.Errorf("hash seed password: %w", err)
	}
	rng := rand.New(rand.NewSource(seed))
	return &Factory{
		db:     db,
		opts:   opts,
		rng:    rng,
		hash:   string(hash),
		seq:    rng.Intn(900000),
		nextID: 1000,
	}, nil
}

func (f *Factory) maxDays() int {
	if f.opts.MaxDays <= 0 {
		return 180
	}
	return f.opts.MaxDays
}

// randomPast returns a time within the last MaxDays days.
func (f *Factory) randomPast() time.Time {
	offset := time.Duration(f.rng.Int63n(int64(f.maxDays()) * int64(24*time.Hour)))
	return time.Now().Add(-offset).Truncate(time.Second)
}

// BuildUser returns an unsaved active user with the given role.
func (f *Factory) BuildUser(role models.Role, overrides ...func(*models.User)) *models.User {
	f.seq++
	first := gofakeit.FirstName()
	last := gofakeit.LastName()
	local := strings.ToLower(fmt.Sprintf("%s.%s%d", first, last, f.seq))
	local = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '.' {
			return r
		}
		return -1
	}, local)

	domain := f.opts.EmailDomain
	if domain == "" {
		domain = "city.gov"
	}
	empID := fmt.Sprintf("EMP%06d", f.seq%1000000)
	u := &models.User{
		Email:        local + "@" + domain,
		PasswordHash: f.hash,
		FirstName:    first,
		LastName:     last,
		Role:         role,
		Department:   departments[f.rng.Intn(len(departments))],
		EmployeeID:   &empID,
		IsActive:     true,
	}
	for _, o := range overrides {
		o(u)
	}
	return u
}

// CreateUser persists a user built by BuildUser.
func (f *Factory) CreateUser(role models.Role, overrides ...func(*models.User)) (*models.User, error) {
	u := f.BuildUser(role, overrides...)
	if f.opts.DryRun {
		u.ID = f.nextID
		f.nextID++
		return u, nil
	}
	if err := f.db.Create(u).Error; err != nil {
		return nil, err
	}
	return u, nil
}

// FieldValues returns values that satisfy every field of app.
func (f *Factory) FieldValues(app *models.Application) (map[string]any, error) {
	values := make(map[string]any, len(app.CustomFields))
	for i := range app.CustomFields {
		field := &app.CustomFields[i]
		if !field.Required && f.rng.Intn(2) == 0 {
			continue
		}
		spec, err := field.Spec()
		if err != nil {
			return nil, err
		}
		values[field.Name] = f.valueFor(spec)
	}
	return values, nil
}

func (f *Factory) valueFor(spec models.FieldSpec) any {
	switch s := spec.(type) {
	case models.TextSpec:
		n := 8
		if s.MinLength != nil && *s.MinLength > n {
			n = *s.MinLength
		}
		if s.MaxLength != nil && *s.MaxLength < n {
			n = *s.MaxLength
		}
		return strings.ToUpper(gofakeit.LetterN(uint(n)))
	case models.EmailSpec:
		return strings.ToLower(gofakeit.FirstName()) + "@city.gov"
	case models.PhoneSpec:
		return fmt.Sprintf("(%03d) 555-%04d", 200+f.rng.Intn(700), f.rng.Intn(10000))
	case models.NumberSpec:
		lo, hi := 1.0, 100.0
		if s.Min != nil {
			lo = *s.Min
		}
		if s.Max != nil {
			hi = *s.Max
		}
		if hi < lo {
			hi = lo
		}
		return float64(int(lo) + f.rng.Intn(int(hi-lo)+1))
	case models.DateSpec:
		d := time.Now().AddDate(0, 0, f.rng.Intn(30))
		if s.NotBefore != "" {
			if lo, err := time.Parse(models.DateLayout, s.NotBefore); err == nil && d.Before(lo) {
				d = lo
			}
		}
		return d.Format(models.DateLayout)
	case models.SelectSpec:
		opt := s.Options[f.rng.Intn(len(s.Options))]
		if s.Multiple {
			return []any{opt}
		}
		return opt
	case models.CheckboxSpec:
		return f.rng.Intn(2) == 0
	}
	return nil
}

var outcomeWeights = []struct {
	status models.RequestStatus
	weight int
}{
	{models.RequestSubmitted, 3},
	{models.RequestUnderReview, 2},
	{models.RequestChangesRequested, 1},
	{models.RequestApproved, 4},
	{models.RequestRejected, 2},
}

func (f *Factory) pickStatus(levels int) models.RequestStatus {
	if levels == 0 {
		return models.RequestApproved
	}
	total := 0
	for _, o := range outcomeWeights {
		total += o.weight
	}
	n := f.rng.Intn(total)
	for _, o := range outcomeWeights {
		if n < o.weight {
			if o.status == models.RequestUnderReview && levels < 2 {
				return models.RequestSubmitted
			}
			return o.status
		}
		n -= o.weight
	}
	return models.RequestSubmitted
}

// BuildRequest returns an unsaved request by applicant for app with a
// random outcome and the approval steps that outcome implies. approvers
// maps each workflow role to a user who signs the decided steps.
func (f *Factory) BuildRequest(applicant *models.User, app *models.Application, approvers map[models.Role]*models.User) (*models.ApplicationRequest, error) {
	values, err := f.FieldValues(app)
	if err != nil {
		return nil, err
	}

	chain := app.WorkflowSnapshot()
	levels := len(chain)
	status := f.pickStatus(levels)
	created := f.randomPast()

	req := &models.ApplicationRequest{
		UserID:           applicant.ID,
		ApplicationID:    app.ID,
		Status:           status,
		ApprovalWorkflow: chain,
		RequestType:      models.RequestNewAccount,
		Environment:      []models.Environment{models.EnvironmentProd, models.EnvironmentTest, models.EnvironmentBoth}[f.rng.Intn(3)],
		Justification:    gofakeit.Sentence(14),
		RequestedRoles:   models.StringList{[]string{"Viewer", "Editor", "Analyst", "Supervisor"}[f.rng.Intn(4)]},
		FieldValues:      models.JSONMap(values),
		CreatedAt:        created,
		UpdatedAt:        created,
	}
	if f.rng.Intn(5) == 0 {
		req.RequestType = models.RequestExistingAccount
	}
	for len([]rune(req.Justification)) < 50 {
		req.Justification += " " + gofakeit.Sentence(6)
	}
	if levels == 0 {
		req.DecidedAt = &created
		return req, nil
	}

	// reached is the last level that has a step row.
	reached := 1
	switch status {
	case models.RequestUnderReview:
		reached = 2 + f.rng.Intn(levels-1)
	case models.RequestApproved:
		reached = levels
	case models.RequestRejected, models.RequestChangesRequested:
		reached = 1 + f.rng.Intn(levels)
	}
	req.CurrentLevel = reached

	at := created
	for level := 1; level <= reached; level++ {
		role := chain[level-1]
		step := models.ApprovalStep{
			Level:        level,
			RequiredRole: role,
			Status:       models.StepPending,
			CreatedAt:    at,
			UpdatedAt:    at,
		}
		last := level == reached
		var action models.ApprovalAction
		switch {
		case !last || status == models.RequestApproved:
			step.Status, action = models.StepApproved, models.ActionApprove
		case status == models.RequestRejected:
			step.Status, action = models.StepRejected, models.ActionReject
			step.Comments = "Access not justified for this role."
		case status == models.RequestChangesRequested:
			step.Status, action = models.StepChangesRequested, models.ActionRequestChanges
			step.Comments = "Please add your supervisor's approval."
		}
		if action != "" {
			at = at.Add(time.Duration(1+f.rng.Intn(48)) * time.Hour)
			acted := at
			step.ActedAt = &acted
			step.LastAction = &action
			step.UpdatedAt = acted
			if approver, ok := approvers[role]; ok {
				step.ApproverID = &approver.ID
			}
		}
		req.Steps = append(req.Steps, step)
	}

	if status.IsTerminal() {
		decided := at
		req.DecidedAt = &decided
	}
	req.UpdatedAt = at
	return req, nil
}

// CreateRequest persists a request built by BuildRequest with its steps.
func (f *Factory) CreateRequest(applicant *models.User, app *models.Application, approvers map[models.Role]*models.User) (*models.ApplicationRequest, error) {
	req, err := f.BuildRequest(applicant, app, approvers)
	if err != nil {
		return nil, err
	}
	if f.opts.DryRun {
		req.ID = f.nextID
		f.nextID++
		return req, nil
	}
	if err := f.db.Create(req).Error; err != nil {
		return nil, err
	}
	return req, nil
}
