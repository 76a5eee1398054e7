package models

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

// AuditAction names the kind of mutation recorded.
type AuditAction string

const (
	AuditCreate         AuditAction = "CREATE"
	AuditUpdate         AuditAction = "UPDATE"
	AuditDelete         AuditAction = "DELETE"
	AuditUnlock         AuditAction = "UNLOCK"
	AuditSubmit         AuditAction = "SUBMIT"
	AuditResubmit       AuditAction = "RESUBMIT"
	AuditApprove        AuditAction = "APPROVE"
	AuditReject         AuditAction = "REJECT"
	AuditRequestChanges AuditAction = "REQUEST_CHANGES"
	AuditDelegate       AuditAction = "DELEGATE"
)

// AuditActionFor maps an approval action to its audit action.
func AuditActionFor(a ApprovalAction) AuditAction {
	return AuditAction(a)
}

// EntityType names the audited table.
type EntityType string

const (
	EntityApplication EntityType = "APPLICATION"
	EntityUser        EntityType = "USER"
	EntityRequest     EntityType = "REQUEST"
)

// ErrAuditImmutable is returned when something tries to change an audit row.
var ErrAuditImmutable = errors.New("audit log entries are append-only")

// AuditLog is an append-only record of a mutation.
type AuditLog struct {
	ID         uint        `gorm:"primaryKey" json:"id"`
	ActorID    uint        `gorm:"not null;index" json:"actorId"`
	Action     AuditAction `gorm:"type:varchar(30);not null;index" json:"action"`
	EntityType EntityType  `gorm:"type:varchar(20);not null;index:idx_audit_logs_entity,priority:1" json:"entityType"`
	EntityID   uint        `gorm:"not null;index:idx_audit_logs_entity,priority:2" json:"entityId"`
	OldValues  JSONMap     `gorm:"type:text" json:"oldValues,omitempty"`
	NewValues  JSONMap     `gorm:"type:text" json:"newValues,omitempty"`
	IPAddress  string      `gorm:"size:64;not null" json:"ipAddress"`
	UserAgent  string      `gorm:"size:512" json:"userAgent"`
	RequestID  string      `gorm:"size:64" json:"requestId,omitempty"`
	CreatedAt  time.Time   `gorm:"index" json:"createdAt"`
}

// TableName specifies the table name for GORM.
func (AuditLog) TableName() string {
	return "audit_logs"
}

// BeforeUpdate keeps rows write-once.
func (AuditLog) BeforeUpdate(*gorm.DB) error { return ErrAuditImmutable }

// BeforeDelete keeps rows write-once.
func (AuditLog) BeforeDelete(*gorm.DB) error { return ErrAuditImmutable }
