package models

import (
	"time"
)

// Base contains common columns for admin tables with mutable rows
type Base struct {
	ID        uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	CreatedAt time.Time  `gorm:"not null" json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

// JSONMap is the decoded form of a JSON object column.
type JSONMap = map[string]any
