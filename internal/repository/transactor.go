package repository

import (
	"context"

	"gorm.io/gorm"
)

// Repos bundles every repository bound to one database handle, either the
// pool or an open transaction.
type Repos struct {
	Applications ApplicationRepository
	Users        UserRepository
	Requests     RequestRepository
	Steps        StepRepository
	Audit        AuditRepository
	Stats        StatsRepository
}

// NewRepos binds all repositories to db.
func NewRepos(db *gorm.DB) Repos {
	return Repos{
		Applications: NewApplicationRepository(db),
		Users:        NewUserRepository(db),
		Requests:     NewRequestRepository(db),
		Steps:        NewStepRepository(db),
		Audit:        NewAuditRepository(db),
		Stats:        NewStatsRepository(db),
	}
}

// Transactor runs a function against repositories sharing one transaction.
// The transaction commits when fn returns nil and rolls back otherwise.
// Inside fn only the supplied Repos may touch the database. Errors that
// are not already AppErrors, such as a failed commit, come back as internal
// errors.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, r Repos) error) error
}

type gormTransactor struct {
	db *gorm.DB
}

// NewTransactor returns a Transactor over db.
func NewTransactor(db *gorm.DB) Transactor {
	return &gormTransactor{db: db}
}

func (t *gormTransactor) WithinTx(ctx context.Context, fn func(ctx context.Context, r Repos) error) error {
	err := t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ctx, NewRepos(tx))
	})
	return internal(err)
}
