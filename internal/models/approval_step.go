package models

import "time"

// ApprovalAction is a decision an approver submits for a step.
type ApprovalAction string

const (
	ActionApprove        ApprovalAction = "APPROVE"
	ActionReject         ApprovalAction = "REJECT"
	ActionRequestChanges ApprovalAction = "REQUEST_CHANGES"
	ActionDelegate       ApprovalAction = "DELEGATE"
)

// StepStatus is the state of one approval level.
type StepStatus string

const (
	StepPending          StepStatus = "PENDING"
	StepApproved         StepStatus = "APPROVED"
	StepRejected         StepStatus = "REJECTED"
	StepChangesRequested StepStatus = "CHANGES_REQUESTED"
)

// ApprovalStep is one required sign-off of a request. A row exists only
// for levels the request has reached.
type ApprovalStep struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	RequestID     uint            `gorm:"not null;uniqueIndex:idx_approval_steps_level,priority:1" json:"requestId"`
	Level         int             `gorm:"not null;uniqueIndex:idx_approval_steps_level,priority:2" json:"level"`
	RequiredRole  Role            `gorm:"type:varchar(20);not null" json:"requiredRole"`
	Status        StepStatus      `gorm:"type:varchar(20);not null;default:'PENDING';index" json:"status"`
	LastAction    *ApprovalAction `gorm:"type:varchar(20)" json:"lastAction,omitempty"`
	ApproverID    *uint           `gorm:"index" json:"approverId,omitempty"`
	DelegatedToID *uint           `gorm:"index" json:"delegatedToId,omitempty"`
	Comments      string          `gorm:"type:text" json:"comments,omitempty"`
	ActedAt       *time.Time      `json:"actedAt,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// TableName specifies the table name for GORM.
func (ApprovalStep) TableName() string {
	return "approval_steps"
}
