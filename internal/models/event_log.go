package models

import (
	"time"

	"gorm.io/datatypes"
)

// EventType enumerates the administrative and authentication actions that are logged.
type EventType string

const (
	EventTypeLogin       EventType = "login"
	EventTypeLogout      EventType = "logout"
	EventTypeFailedLogin EventType = "failed_login"
	EventTypeCreate      EventType = "create"
	EventTypeUpdate      EventType = "update"
	EventTypeDelete      EventType = "delete"
)

// IsMutation reports whether events of this type are followed by an audit entry.
func (t EventType) IsMutation() bool {
	switch t {
	case EventTypeCreate, EventTypeUpdate, EventTypeDelete:
		return true
	}
	return false
}

// EventStatus is the outcome of a logged action.
type EventStatus string

const (
	EventStatusSuccess EventStatus = "success"
	EventStatusFailure EventStatus = "failure"
)

// AdminEventLog records one administrative or authentication action.
type AdminEventLog struct {
	ID           uint           `gorm:"primaryKey;autoIncrement" json:"id"`
	Timestamp    time.Time      `gorm:"not null;index" json:"timestamp"`
	EventType    EventType      `gorm:"size:32;not null;index" json:"event_type"`
	Status       EventStatus    `gorm:"size:16;not null" json:"status"`
	UserID       uint           `gorm:"index" json:"user_id"`
	SessionID    string         `gorm:"size:36;index" json:"session_id"`
	IPAddress    string         `gorm:"size:45" json:"ip_address"`
	UserAgent    string         `gorm:"size:512" json:"user_agent"`
	ResourceType *string        `gorm:"size:128" json:"resource_type,omitempty"`
	ResourceID   *string        `gorm:"size:128" json:"resource_id,omitempty"`
	Details      datatypes.JSON `gorm:"not null" json:"details"`
}

// TableName pins the table name used by the admin store.
func (AdminEventLog) TableName() string { return "admin_event_log" }
