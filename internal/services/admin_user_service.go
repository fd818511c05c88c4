package services

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	apperrors "crudadmin/internal/errors"
	"crudadmin/internal/logger"
	"crudadmin/internal/models"
	"crudadmin/internal/validator"
)

// dummyHash is compared against when the user does not exist so that
// unknown usernames take as long as wrong passwords.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("crudadmin-dummy-password"), bcrypt.DefaultCost)

// adminUserService handles admin user accounts.
type adminUserService struct {
	db   *gorm.DB
	cost int
}

// NewAdminUserService creates a new AdminUserServicer.
func NewAdminUserService(db *gorm.DB) AdminUserServicer {
	return &adminUserService{db: db, cost: bcrypt.DefaultCost}
}

// NewAdminUserServiceWithCost is NewAdminUserService with a custom bcrypt cost.
func NewAdminUserServiceWithCost(db *gorm.DB, cost int) AdminUserServicer {
	return &adminUserService{db: db, cost: cost}
}

// HashPassword returns the bcrypt hash of password.
func (s *adminUserService) HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return "", apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return string(hash), nil
}

// CreateUser registers a new admin user
func (s *adminUserService) CreateUser(ctx context.Context, in NewAdminUser) (*models.AdminUser, error) {
	username := NormalizeSubject(in.Username)
	fields := map[string]string{}
	if !validator.IsAdminUsername(username) {
		fields["username"] = "Username must be 2-20 lowercase letters or digits"
	}
	if len(in.Password) < validator.MinPasswordLength {
		fields["password"] = "Password must be at least 8 characters"
	}
	if len(fields) > 0 {
		return nil, apperrors.NewValidationError(fields)
	}

	db := s.db.WithContext(ctx)

	// Check if the username is taken
	var count int64
	if err := db.Model(&models.AdminUser{}).Where("username = ?", username).Count(&count).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if count > 0 {
		return nil, apperrors.ErrDuplicateUsername
	}

	hash, err := s.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	user := &models.AdminUser{
		Username:       username,
		HashedPassword: hash,
		IsSuperuser:    in.IsSuperuser,
	}
	if email := NormalizeSubject(in.Email); email != "" {
		user.Email = &email
	}

	if err := db.Create(user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, s.duplicateError(ctx, user)
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return user, nil
}

// duplicateError names the unique column an insert of user lost a race on.
// The username check runs first and is also the fallback.
func (s *adminUserService) duplicateError(ctx context.Context, user *models.AdminUser) error {
	if user.Email == nil || s.exists(ctx, "username = ?", user.Username) {
		return apperrors.ErrDuplicateUsername
	}
	if s.exists(ctx, "email = ?", *user.Email) {
		return apperrors.ErrDuplicateEmail
	}
	return apperrors.ErrDuplicateUsername
}

func (s *adminUserService) exists(ctx context.Context, query string, arg any) bool {
	var n int64
	if err := s.db.WithContext(ctx).Model(&models.AdminUser{}).Where(query, arg).Count(&n).Error; err != nil {
		return false
	}
	return n > 0
}

// Authenticate checks credentials. Every failure, including an unknown user,
// returns ErrInvalidCredentials.
func (s *adminUserService) Authenticate(ctx context.Context, usernameOrEmail, password string) (*models.AdminUser, error) {
	user, err := s.ResolveSubject(ctx, usernameOrEmail)
	if err != nil {
		if errors.Is(err, apperrors.ErrUserNotFound) {
			_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
			return nil, apperrors.ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.HashedPassword), []byte(password)); err != nil {
		return nil, apperrors.ErrInvalidCredentials
	}
	return user, nil
}

// GetByID retrieves an admin user by ID
func (s *adminUserService) GetByID(ctx context.Context, id uint) (*models.AdminUser, error) {
	var user models.AdminUser
	if err := s.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, notFoundOr(err)
	}
	return &user, nil
}

// GetByUsername retrieves an admin user by username
func (s *adminUserService) GetByUsername(ctx context.Context, username string) (*models.AdminUser, error) {
	var user models.AdminUser
	err := s.db.WithContext(ctx).
		Where("username = ?", NormalizeSubject(username)).
		First(&user).Error
	if err != nil {
		return nil, notFoundOr(err)
	}
	return &user, nil
}

// NormalizeSubject returns the canonical form of a username or email as
// typed at login. Lookups and failed-login grouping both use it.
func NormalizeSubject(subject string) string {
	return strings.ToLower(strings.TrimSpace(subject))
}

func (s *adminUserService) ResolveSubject(ctx context.Context, subject string) (*models.AdminUser, error) {
	subject = NormalizeSubject(subject)
	if subject == "" {
		return nil, apperrors.ErrUserNotFound
	}
	if !strings.Contains(subject, "@") {
		return s.GetByUsername(ctx, subject)
	}

	var user models.AdminUser
	if err := s.db.WithContext(ctx).Where("email = ?", subject).First(&user).Error; err != nil {
		return nil, notFoundOr(err)
	}
	return &user, nil
}

// EnsureInitialAdmin creates the bootstrap superuser when no admin user
// exists yet. It reports whether a user was created.
func (s *adminUserService) EnsureInitialAdmin(ctx context.Context, username, password string) (bool, error) {
	if username == "" || password == "" {
		return false, nil
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.AdminUser{}).Count(&count).Error; err != nil {
		return false, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if count > 0 {
		return false, nil
	}

	user, err := s.CreateUser(ctx, NewAdminUser{Username: username, Password: password, IsSuperuser: true})
	if err != nil {
		return false, err
	}
	logger.Get().Infow("created initial admin user", "username", user.Username, "user_id", user.ID)
	return true, nil
}

func notFoundOr(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperrors.ErrUserNotFound
	}
	return apperrors.Wrap(apperrors.ErrInternalServer, err)
}
