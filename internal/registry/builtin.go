package registry

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	apperrors "crudadmin/internal/errors"
	"crudadmin/internal/models"
	"crudadmin/internal/services"
)

// Names of the built-in views.
const (
	AdminUserView    = "AdminUser"
	AdminSessionView = "AdminSession"
)

// AdminUserCreate is the create schema for admin users.
type AdminUserCreate struct {
	Username    string `json:"username" form:"username" binding:"required,admin_username"`
	Email       string `json:"email" form:"email" binding:"omitempty,email,max=255"`
	Password    string `json:"password" form:"password" binding:"required,admin_password"`
	IsSuperuser bool   `json:"is_superuser" form:"is_superuser"`
}

// AdminUserUpdate is the update schema for admin users. Nil fields are left unchanged.
type AdminUserUpdate struct {
	Username    *string `json:"username" form:"username" binding:"omitempty,admin_username"`
	Email       *string `json:"email" form:"email" binding:"omitempty,email,max=255"`
	Password    *string `json:"password" form:"password" binding:"omitempty,admin_password"`
	IsSuperuser *bool   `json:"is_superuser" form:"is_superuser"`
}

// NewAdminUserView exposes admin users. Passwords are hashed on write and
// never projected.
func NewAdminUserView(db *gorm.DB, users services.AdminUserServicer) (*ModelView[models.AdminUser, AdminUserCreate, AdminUserUpdate], error) {
	taken := func(ctx context.Context, username string, self uint) error {
		existing, err := users.GetByUsername(ctx, username)
		if errors.Is(err, apperrors.ErrUserNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if existing.ID != self {
			return apperrors.NewValidationError(map[string]string{"username": "Username is already taken"})
		}
		return nil
	}

	return NewModelView(db, ViewConfig[models.AdminUser, AdminUserCreate, AdminUserUpdate]{
		Name:    AdminUserView,
		Project: models.ProjectAdminUser,
		Build: func(ctx context.Context, in *AdminUserCreate) (*models.AdminUser, error) {
			if err := taken(ctx, in.Username, 0); err != nil {
				return nil, err
			}
			hash, err := users.HashPassword(in.Password)
			if err != nil {
				return nil, err
			}
			user := &models.AdminUser{
				Username:       in.Username,
				HashedPassword: hash,
				IsSuperuser:    in.IsSuperuser,
			}
			if email := strings.ToLower(strings.TrimSpace(in.Email)); email != "" {
				user.Email = &email
			}
			return user, nil
		},
		Apply: func(ctx context.Context, user *models.AdminUser, in *AdminUserUpdate) error {
			if in.Username != nil {
				if err := taken(ctx, *in.Username, user.ID); err != nil {
					return err
				}
				user.Username = *in.Username
			}
			if in.Email != nil {
				email := strings.ToLower(strings.TrimSpace(*in.Email))
				user.Email = &email
				if email == "" {
					user.Email = nil
				}
			}
			if in.Password != nil {
				hash, err := users.HashPassword(*in.Password)
				if err != nil {
					return err
				}
				user.HashedPassword = hash
			}
			if in.IsSuperuser != nil {
				user.IsSuperuser = *in.IsSuperuser
			}
			return nil
		},
		AllowDelete: true,
	})
}

// NewAdminSessionView exposes sessions read-only. Revocation goes through
// the session endpoints so the session manager stays the only writer.
func NewAdminSessionView(db *gorm.DB) (*ModelView[models.AdminSession, struct{}, struct{}], error) {
	return NewModelView(db, ViewConfig[models.AdminSession, struct{}, struct{}]{
		Name:    AdminSessionView,
		Project: models.ProjectAdminSession,
	})
}
