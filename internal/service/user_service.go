package service

import (
	"context"
	"time"

	"github.com/rockymount114/City-Workflow/internal/cache"
	"github.com/rockymount114/City-Workflow/internal/models"
	"github.com/rockymount114/City-Workflow/internal/repository"
	"github.com/rockymount114/City-Workflow/internal/validation"

	"golang.org/x/crypto/bcrypt"
)

// PasswordHashCost is the bcrypt cost for stored passwords.
const PasswordHashCost = 12

// UserService is the admin user management surface.
type UserService struct {
	users       repository.UserRepository
	tx          repository.Transactor
	emailDomain string
	hashCost    int
}

// NewUserService wires the service. emailDomain restricts new accounts.
func NewUserService(users repository.UserRepository, tx repository.Transactor, emailDomain string) *UserService {
	return &UserService{users: users, tx: tx, emailDomain: emailDomain, hashCost: PasswordHashCost}
}

// HashPassword hashes a password at PasswordHashCost.
func HashPassword(password string) (string, error) {
	return hashPassword(password, PasswordHashCost)
}

func hashPassword(password string, cost int) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", models.NewInternalError(err)
	}
	return string(hash), nil
}

// List returns a page of users.
func (s *UserService) List(ctx context.Context, f repository.UserFilter) (*PageResult[models.User], error) {
	if f.Role != "" {
		role, ok := models.ParseRole(string(f.Role))
		if !ok {
			return nil, models.NewValidationError("Unknown role filter")
		}
		f.Role = role
	}
	users, total, err := s.users.List(ctx, f)
	if err != nil {
		return nil, err
	}
	return newPage(users, total, f.Page), nil
}

// Get returns one user.
func (s *UserService) Get(ctx context.Context, id uint) (*models.User, error) {
	return s.users.GetByID(ctx, id)
}

// Create validates in and stores a new account.
func (s *UserService) Create(ctx context.Context, actor models.Actor, in validation.UserInput) (*models.User, error) {
	if errs := in.Validate(s.emailDomain); len(errs) > 0 {
		return nil, models.NewFieldValidationError(errs)
	}

	existing, err := s.users.GetByEmail(ctx, in.Email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, models.NewConflictError("User with this email already exists")
	}

	hash, err := hashPassword(in.Password, s.hashCost)
	if err != nil {
		return nil, err
	}
	user := &models.User{
		Email:        in.Email,
		PasswordHash: hash,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Role:         models.Role(in.Role),
		Department:   in.Department,
		IsActive:     in.IsActive == nil || *in.IsActive,
	}
	if in.EmployeeID != "" {
		id := in.EmployeeID
		user.EmployeeID = &id
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context, r repository.Repos) error {
		if err := r.Users.Create(ctx, user); err != nil {
			return err
		}
		return r.Audit.Create(ctx, actor.NewAuditLog(models.AuditCreate, models.EntityUser, user.ID, nil, user.AuditSnapshot()))
	})
	if err != nil {
		return nil, err
	}
	cache.InvalidateStats(ctx)
	return user, nil
}

// Update applies a partial update. Admins cannot demote or deactivate
// their own account.
func (s *UserService) Update(ctx context.Context, actor models.Actor, id uint, patch validation.UserPatch) (*models.User, error) {
	var user *models.User
	err := s.tx.WithinTx(ctx, func(ctx context.Context, r repository.Repos) error {
		var err error
		user, err = r.Users.GetByID(ctx, id)
		if err != nil {
			return err
		}
		before := user.AuditSnapshot()

		password, err := patch.Apply(user)
		if err != nil {
			return err
		}
		if user.ID == actor.UserID && (user.Role != actor.Role || !user.IsActive) {
			return models.NewValidationError("You cannot change your own role or deactivate yourself")
		}
		if err := r.Users.Update(ctx, user); err != nil {
			return err
		}

		after := user.AuditSnapshot()
		if password != "" {
			hash, err := hashPassword(password, s.hashCost)
			if err != nil {
				return err
			}
			if err := r.Users.SetPassword(ctx, user.ID, hash); err != nil {
				return err
			}
			after["passwordChanged"] = true
		}
		return r.Audit.Create(ctx, actor.NewAuditLog(models.AuditUpdate, models.EntityUser, user.ID, before, after))
	})
	if err != nil {
		return nil, err
	}
	// After commit, so a concurrent cache fill cannot read the old row.
	cache.InvalidateUser(ctx, id)
	cache.InvalidateStats(ctx)
	return user, nil
}

// Delete removes a user together with their requests.
func (s *UserService) Delete(ctx context.Context, actor models.Actor, id uint) error {
	if id == actor.UserID {
		return models.NewValidationError("You cannot delete your own account")
	}
	err := s.tx.WithinTx(ctx, func(ctx context.Context, r repository.Repos) error {
		user, err := r.Users.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if err := r.Users.Delete(ctx, id); err != nil {
			return err
		}
		return r.Audit.Create(ctx, actor.NewAuditLog(models.AuditDelete, models.EntityUser, id, user.AuditSnapshot(), nil))
	})
	if err != nil {
		return err
	}
	cache.InvalidateUser(ctx, id)
	cache.InvalidateStats(ctx)
	return nil
}

// Unlock clears failed login attempts and any lockout.
func (s *UserService) Unlock(ctx context.Context, actor models.Actor, id uint) (*models.User, error) {
	var user *models.User
	err := s.tx.WithinTx(ctx, func(ctx context.Context, r repository.Repos) error {
		var err error
		user, err = r.Users.GetByID(ctx, id)
		if err != nil {
			return err
		}
		before := map[string]any{
			"failedLoginAttempts": user.FailedLoginAttempts,
			"locked":              user.IsLocked(time.Now()),
		}
		user.FailedLoginAttempts = 0
		user.LockedUntil = nil
		if err := r.Users.Update(ctx, user); err != nil {
			return err
		}
		return r.Audit.Create(ctx, actor.NewAuditLog(models.AuditUnlock, models.EntityUser, id, before, map[string]any{
			"failedLoginAttempts": 0,
			"locked":              false,
		}))
	})
	if err != nil {
		return nil, err
	}
	cache.InvalidateUser(ctx, id)
	return user, nil
}
