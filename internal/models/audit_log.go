package models

import (
	"time"

	"gorm.io/datatypes"
)

// AdminAuditLog records a resource state change together with the computed
// field-level diff. EventID references the AdminEventLog that triggered it.
type AdminAuditLog struct {
	ID            uint           `gorm:"primaryKey;autoIncrement" json:"id"`
	EventID       uint           `gorm:"not null;index" json:"event_id"`
	Timestamp     time.Time      `gorm:"not null;index" json:"timestamp"`
	ResourceType  string         `gorm:"size:128;not null;index:idx_audit_resource" json:"resource_type"`
	ResourceID    string         `gorm:"size:128;not null;index:idx_audit_resource" json:"resource_id"`
	Action        string         `gorm:"size:64;not null" json:"action"`
	PreviousState datatypes.JSON `json:"previous_state"`
	NewState      datatypes.JSON `json:"new_state"`
	Changes       datatypes.JSON `gorm:"not null" json:"changes"`
	AuditMetadata datatypes.JSON `gorm:"not null" json:"audit_metadata"`
}

// TableName pins the table name used by the admin store.
func (AdminAuditLog) TableName() string { return "admin_audit_log" }
