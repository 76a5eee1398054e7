package models

import "time"

// RequestStatus is the lifecycle state of an ApplicationRequest.
type RequestStatus string

const (
	RequestSubmitted        RequestStatus = "SUBMITTED"
	RequestUnderReview      RequestStatus = "UNDER_REVIEW"
	RequestChangesRequested RequestStatus = "CHANGES_REQUESTED"
	RequestApproved         RequestStatus = "APPROVED"
	RequestRejected         RequestStatus = "REJECTED"
)

// IsTerminal reports whether no further approval action may change the status.
func (s RequestStatus) IsTerminal() bool {
	return s == RequestApproved || s == RequestRejected
}

// IsPending reports whether the request waits on an approver.
func (s RequestStatus) IsPending() bool {
	return s == RequestSubmitted || s == RequestUnderReview
}

// RequestType says what the applicant wants done with the account.
type RequestType string

const (
	RequestNewAccount      RequestType = "NEW_ACCOUNT"
	RequestExistingAccount RequestType = "EXISTING_ACCOUNT"
	RequestLockAccount     RequestType = "LOCK_ACCOUNT"
)

// Environment is the target environment of the requested access.
type Environment string

const (
	EnvironmentProd Environment = "PROD"
	EnvironmentTest Environment = "TEST"
	EnvironmentBoth Environment = "BOTH"
)

// ApplicationRequest is an applicant's request for access to an application.
type ApplicationRequest struct {
	ID               uint           `gorm:"primaryKey" json:"id"`
	UserID           uint           `gorm:"not null;index" json:"userId"`
	User             *User          `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"user,omitempty"`
	ApplicationID    uint           `gorm:"not null;index" json:"applicationId"`
	Application      *Application   `gorm:"foreignKey:ApplicationID" json:"application,omitempty"`
	Status           RequestStatus  `gorm:"type:varchar(20);not null;default:'SUBMITTED';index" json:"status"`
	CurrentLevel     int            `gorm:"not null;default:0" json:"currentLevel"`
	// ApprovalWorkflow is the application's chain as it was at submission;
	// later edits to the application do not move requests already filed.
	ApprovalWorkflow RoleList       `gorm:"type:text;not null;default:'[]'" json:"approvalWorkflow"`
	RequestType      RequestType    `gorm:"type:varchar(20);not null" json:"requestType"`
	Environment      Environment    `gorm:"type:varchar(10);not null" json:"environment"`
	Justification    string         `gorm:"type:text;not null" json:"justification"`
	RequestedRoles   StringList     `gorm:"type:text;not null" json:"requestedRoles"`
	FieldValues      JSONMap        `gorm:"type:text" json:"fieldValues"`
	DecidedAt        *time.Time     `json:"decidedAt,omitempty"`
	Steps            []ApprovalStep `gorm:"foreignKey:RequestID;constraint:OnDelete:CASCADE" json:"steps,omitempty"`
	CreatedAt        time.Time      `gorm:"index" json:"createdAt"`
	UpdatedAt        time.Time      `json:"updatedAt"`
}

// TableName specifies the table name for GORM.
func (ApplicationRequest) TableName() string {
	return "application_requests"
}

// AuditSnapshot is the value recorded in audit logs for a request.
func (r *ApplicationRequest) AuditSnapshot() map[string]any {
	return map[string]any{
		"status":        r.Status,
		"currentLevel":  r.CurrentLevel,
		"applicationId": r.ApplicationID,
		"userId":        r.UserID,
	}
}
