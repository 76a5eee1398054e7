// Package models contains the persisted domain types of the access-request
// workflow and the API error envelope.
package models

import (
	"strings"
	"time"
)

// Role is the authorization role of a user.
type Role string

const (
	RoleAdmin      Role = "ADMIN"
	RoleApproverL1 Role = "APPROVER_L1"
	RoleApproverL2 Role = "APPROVER_L2"
	RoleApplicant  Role = "APPLICANT"
)

// AllRoles lists every user role.
var AllRoles = []Role{RoleAdmin, RoleApproverL1, RoleApproverL2, RoleApplicant}

// ParseRole normalizes s and reports whether it names a known role.
func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range AllRoles {
		if r == known {
			return r, true
		}
	}
	return "", false
}

// IsApprover reports whether the role can act on approval steps.
func (r Role) IsApprover() bool {
	return r == RoleAdmin || r == RoleApproverL1 || r == RoleApproverL2
}

// User is a city employee known to the system.
type User struct {
	ID                  uint       `gorm:"primaryKey" json:"id"`
	Email               string     `gorm:"size:255;not null;uniqueIndex" json:"email"`
	PasswordHash        string     `gorm:"not null" json:"-"`
	FirstName           string     `gorm:"size:100;not null" json:"firstName"`
	LastName            string     `gorm:"size:100;not null" json:"lastName"`
	Role                Role       `gorm:"type:varchar(20);not null;default:'APPLICANT';index" json:"role"`
	Department          string     `gorm:"size:100" json:"department"`
	EmployeeID          *string    `gorm:"size:20;uniqueIndex" json:"employeeId,omitempty"`
	IsActive            bool       `gorm:"not null" json:"isActive"`
	FailedLoginAttempts int        `gorm:"not null;default:0" json:"failedLoginAttempts"`
	LockedUntil         *time.Time `json:"lockedUntil,omitempty"`
	LastLoginAt         *time.Time `json:"lastLoginAt,omitempty"`
	CreatedAt           time.Time  `json:"createdAt"`
	UpdatedAt           time.Time  `json:"updatedAt"`
}

// TableName specifies the table name for GORM.
func (User) TableName() string {
	return "users"
}

// FullName joins first and last name.
func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// IsLocked reports whether the account is locked at now.
func (u *User) IsLocked(now time.Time) bool {
	return u.LockedUntil != nil && u.LockedUntil.After(now)
}

// AuditSnapshot is the value recorded in audit logs for a user.
func (u *User) AuditSnapshot() map[string]any {
	return map[string]any{
		"email":      u.Email,
		"firstName":  u.FirstName,
		"lastName":   u.LastName,
		"role":       u.Role,
		"department": u.Department,
		"isActive":   u.IsActive,
	}
}
