package services

import (
	"context"
	"time"

	"crudadmin/internal/models"
	"crudadmin/internal/pagination"
)

// RequestContext carries the client details captured from an inbound request.
type RequestContext struct {
	IPAddress string
	UserAgent string
}

// Token types embedded in the token_type claim.
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// TokenData is the decoded content of a verified token.
type TokenData struct {
	// UsernameOrEmail is the normalized subject identity.
	UsernameOrEmail string
	UserID          uint
	SessionID       string
	TokenType       string
	ExpiresAt       time.Time
}

// TokenServicer issues, verifies and revokes signed bearer tokens.
type TokenServicer interface {
	// CreateAccessToken signs an access token. A non-positive ttl uses the configured access TTL.
	CreateAccessToken(data TokenData, ttl time.Duration) (string, error)
	CreateRefreshToken(data TokenData) (string, error)
	// VerifyToken fails with ErrInvalidToken, ErrTokenExpired or ErrTokenRevoked.
	VerifyToken(ctx context.Context, token string) (*TokenData, error)
	BlacklistToken(ctx context.Context, token string) error
	PurgeExpired(ctx context.Context) (int64, error)
	AccessTokenTTL() time.Duration
	RefreshTokenTTL() time.Duration
}

// BlacklistStore persists digests of revoked tokens.
type BlacklistStore interface {
	// Add records a digest; adding an existing digest is not an error.
	Add(ctx context.Context, tokenHash string, expiresAt time.Time) error
	Contains(ctx context.Context, tokenHash string) (bool, error)
	// PurgeExpired removes entries for tokens that expired before the cutoff.
	PurgeExpired(ctx context.Context, before time.Time) (int64, error)
}

// SessionServicer manages server-side admin sessions.
type SessionServicer interface {
	CreateSession(ctx context.Context, rc RequestContext, userID uint, metadata map[string]any) (*models.AdminSession, error)
	ValidateSession(ctx context.Context, sessionID string) (bool, error)
	GetSession(ctx context.Context, sessionID string) (*models.AdminSession, error)
	UpdateActivity(ctx context.Context, sessionID string) error
	TerminateSession(ctx context.Context, sessionID string) error
	GetUserSessions(ctx context.Context, userID uint, activeOnly bool) ([]models.AdminSession, error)
	CountSessions(ctx context.Context) (total int64, active int64, err error)
	CleanupExpiredSessions(ctx context.Context) (int64, error)
	PurgeInactiveSessions(ctx context.Context, before time.Time) (int64, error)
}

// LogEventParams describes one event log entry.
type LogEventParams struct {
	EventType    models.EventType
	Status       models.EventStatus
	UserID       uint
	SessionID    string
	Request      RequestContext
	ResourceType string
	ResourceID   string
	Details      map[string]any
}

// AuditLogParams describes one audit entry tied to an event.
type AuditLogParams struct {
	EventID       uint
	ResourceType  string
	ResourceID    string
	Action        string
	PreviousState map[string]any
	NewState      map[string]any
	Metadata      map[string]any
}

// ActivityFilter bounds GetUserActivity by timestamp; nil means unbounded.
type ActivityFilter struct {
	Start *time.Time
	End   *time.Time
}

// AlertDetails identifies the source of a security alert.
type AlertDetails struct {
	IPAddress string `json:"ip_address"`
	Username  string `json:"username"`
	Attempts  int    `json:"attempts"`
}

// SecurityAlert is a suspicious pattern found in the event log.
type SecurityAlert struct {
	Type     string       `json:"type"`
	Severity string       `json:"severity"`
	Details  AlertDetails `json:"details"`
}

// CleanupResult reports how many log rows a retention pass removed.
type CleanupResult struct {
	Events int64 `json:"events"`
	Audits int64 `json:"audits"`
}

// EventServicer persists and queries the event and audit logs.
type EventServicer interface {
	LogEvent(ctx context.Context, p LogEventParams) (*models.AdminEventLog, error)
	CreateAuditLog(ctx context.Context, p AuditLogParams) (*models.AdminAuditLog, error)
	GetUserActivity(ctx context.Context, userID uint, filter ActivityFilter, window pagination.Window) (*pagination.ListResponse[models.AdminEventLog], error)
	GetResourceHistory(ctx context.Context, resourceType, resourceID string, window pagination.Window) (*pagination.ListResponse[models.AdminAuditLog], error)
	GetSecurityAlerts(ctx context.Context, lookbackHours int) ([]SecurityAlert, error)
	CleanupOldLogs(ctx context.Context, retentionDays int) (*CleanupResult, error)
}

// NewAdminUser is the input for creating an admin user.
type NewAdminUser struct {
	Username    string
	Email       string
	Password    string
	IsSuperuser bool
}

// AdminUserServicer manages admin operator accounts.
type AdminUserServicer interface {
	CreateUser(ctx context.Context, in NewAdminUser) (*models.AdminUser, error)
	Authenticate(ctx context.Context, usernameOrEmail, password string) (*models.AdminUser, error)
	GetByID(ctx context.Context, id uint) (*models.AdminUser, error)
	GetByUsername(ctx context.Context, username string) (*models.AdminUser, error)
	// ResolveSubject looks a token subject up by email when it contains "@", otherwise by username.
	ResolveSubject(ctx context.Context, subject string) (*models.AdminUser, error)
	HashPassword(password string) (string, error)
	EnsureInitialAdmin(ctx context.Context, username, password string) (bool, error)
}

// Principal is the authenticated admin behind a request.
type Principal struct {
	User    *models.AdminUser
	Session *models.AdminSession
	Token   *TokenData
}

// LoginResult is returned by a successful login.
type LoginResult struct {
	User         *models.AdminUser
	Session      *models.AdminSession
	AccessToken  string
	RefreshToken string
}

// LogoutParams names the credentials a client presented at logout.
type LogoutParams struct {
	AccessToken  string
	RefreshToken string
	SessionID    string
}

// AuthServicer ties credentials, tokens and sessions into the login flow.
type AuthServicer interface {
	Login(ctx context.Context, rc RequestContext, username, password string) (*LoginResult, error)
	// Logout revokes the tokens and terminates the session. It returns the
	// decoded access token when it was still valid, for attribution.
	Logout(ctx context.Context, p LogoutParams) (*TokenData, error)
	Refresh(ctx context.Context, refreshToken string) (string, *TokenData, error)
	Authenticate(ctx context.Context, accessToken, sessionID string) (*Principal, error)
}
