package models

import (
	"time"

	"gorm.io/datatypes"
)

// AdminSession represents one authenticated browser/device session.
// Rows are deactivated, never deleted, outside of retention cleanup.
type AdminSession struct {
	ID              uint           `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID          uint           `gorm:"not null;index" json:"user_id"`
	SessionID       string         `gorm:"size:36;uniqueIndex;not null" json:"session_id"`
	IPAddress       string         `gorm:"size:45;not null" json:"ip_address"`
	UserAgent       string         `gorm:"size:512;not null" json:"user_agent"`
	DeviceInfo      datatypes.JSON `gorm:"not null" json:"device_info"`
	CreatedAt       time.Time      `gorm:"not null" json:"created_at"`
	LastActivity    time.Time      `gorm:"not null;index" json:"last_activity"`
	IsActive        bool           `gorm:"not null;default:true;index" json:"is_active"`
	SessionMetadata datatypes.JSON `gorm:"not null" json:"session_metadata"`
}

// TableName pins the table name used by the admin store.
func (AdminSession) TableName() string { return "admin_session" }
