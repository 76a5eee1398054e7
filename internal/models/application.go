package models

import "time"

// Application is a city system employees can request access to.
type Application struct {
	ID               uint                 `gorm:"primaryKey" json:"id"`
	Name             string               `gorm:"size:100;not null;uniqueIndex" json:"name"`
	Description      string               `gorm:"size:500" json:"description"`
	IsActive         bool                 `gorm:"not null" json:"isActive"`
	RequiresApproval bool                 `gorm:"not null" json:"requiresApproval"`
	ApprovalWorkflow RoleList             `gorm:"type:text;not null" json:"approvalWorkflow"`
	CustomFields     []ApplicationField   `gorm:"foreignKey:ApplicationID;constraint:OnDelete:CASCADE" json:"customFields"`
	Requests         []ApplicationRequest `gorm:"foreignKey:ApplicationID;constraint:OnDelete:CASCADE" json:"-"`
	CreatedAt        time.Time            `json:"createdAt"`
	UpdatedAt        time.Time            `json:"updatedAt"`
}

// TableName specifies the table name for GORM.
func (Application) TableName() string {
	return "applications"
}

// WorkflowSnapshot copies the chain a new request must pass. It is empty
// when the application needs no approval.
func (a *Application) WorkflowSnapshot() RoleList {
	out := RoleList{}
	if a.RequiresApproval {
		out = append(out, a.ApprovalWorkflow...)
	}
	return out
}

// AuditSnapshot is the value recorded in audit logs for an application.
func (a *Application) AuditSnapshot() map[string]any {
	workflow := make([]string, len(a.ApprovalWorkflow))
	for i, r := range a.ApprovalWorkflow {
		workflow[i] = string(r)
	}
	return map[string]any{
		"name":             a.Name,
		"description":      a.Description,
		"isActive":         a.IsActive,
		"requiresApproval": a.RequiresApproval,
		"approvalWorkflow": workflow,
		"customFields":     len(a.CustomFields),
	}
}
