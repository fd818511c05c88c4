package models

import "time"

// AdminTokenBlacklist is a revoked bearer token. Only the SHA-256 digest of
// the token is stored.
type AdminTokenBlacklist struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	TokenHash string    `gorm:"size:64;uniqueIndex;not null" json:"token_hash"`
	RevokedAt time.Time `gorm:"not null" json:"revoked_at"`
	ExpiresAt time.Time `gorm:"not null;index" json:"expires_at"`
}

// TableName pins the table name used by the admin store.
func (AdminTokenBlacklist) TableName() string { return "admin_token_blacklist" }
