package models

// AdminUser is an operator allowed to sign in to the admin interface.
type AdminUser struct {
	Base
	Username       string  `gorm:"size:20;uniqueIndex;not null" json:"username"`
	Email          *string `gorm:"size:255;uniqueIndex" json:"email,omitempty"`
	HashedPassword string  `gorm:"not null" json:"-"`
	IsSuperuser    bool    `gorm:"not null" json:"is_superuser"`
}

// TableName pins the table name used by the admin store.
func (AdminUser) TableName() string { return "admin_user" }
