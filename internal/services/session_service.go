package services

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"
	"unicode/utf8"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"crudadmin/internal/device"
	apperrors "crudadmin/internal/errors"
	"crudadmin/internal/logger"
	"crudadmin/internal/models"
	"crudadmin/internal/uuid"
)

// SessionConfig controls the session cap and idle timeout.
type SessionConfig struct {
	MaxSessions int
	Timeout     time.Duration
}

// sessionService handles admin session lifecycle.
type sessionService struct {
	db    *gorm.DB
	cfg   SessionConfig
	locks *userLocks
	now   func() time.Time
}

// NewSessionService creates a new SessionServicer.
func NewSessionService(db *gorm.DB, cfg SessionConfig) SessionServicer {
	if cfg.MaxSessions <= 0 {
		cfg.MaxSessions = 5
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Minute
	}
	return &sessionService{
		db:    db,
		cfg:   cfg,
		locks: newUserLocks(),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// CreateSession stores a new active session for userID. When the user is
// already at the cap, the oldest active sessions by last activity are
// deactivated in the same transaction so the new one fits.
func (s *sessionService) CreateSession(ctx context.Context, rc RequestContext, userID uint, metadata map[string]any) (*models.AdminSession, error) {
	unlock := s.locks.lock(userID)
	defer unlock()

	deviceInfo, err := json.Marshal(device.Parse(rc.UserAgent).Map())
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrSessionCreationFailed, err)
	}
	if metadata == nil {
		metadata = map[string]any{}
	}
	meta, err := json.Marshal(metadata)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrSessionCreationFailed, err)
	}

	now := s.now()
	session := &models.AdminSession{
		UserID:          userID,
		SessionID:       uuid.New(),
		IPAddress:       rc.IPAddress,
		UserAgent:       truncate(rc.UserAgent, 512),
		DeviceInfo:      datatypes.JSON(deviceInfo),
		CreatedAt:       now,
		LastActivity:    now,
		IsActive:        true,
		SessionMetadata: datatypes.JSON(meta),
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var active int64
		if err := tx.Model(&models.AdminSession{}).
			Where("user_id = ? AND is_active = ?", userID, true).
			Count(&active).Error; err != nil {
			return err
		}

		if excess := int(active) - s.cfg.MaxSessions + 1; excess > 0 {
			var oldest []uint
			if err := tx.Model(&models.AdminSession{}).
				Where("user_id = ? AND is_active = ?", userID, true).
				Order("last_activity ASC, id ASC").
				Limit(excess).
				Pluck("id", &oldest).Error; err != nil {
				return err
			}
			if len(oldest) > 0 {
				if err := tx.Model(&models.AdminSession{}).
					Where("id IN ?", oldest).
					Update("is_active", false).Error; err != nil {
					return err
				}
				logger.Get().Infow("evicted sessions over cap",
					"user_id", userID,
					"evicted", len(oldest),
					"max_sessions", s.cfg.MaxSessions,
				)
			}
		}

		return tx.Create(session).Error
	})
	if err != nil {
		logger.Get().Errorw("failed to create session", "error", err, "user_id", userID)
		return nil, apperrors.Wrap(apperrors.ErrSessionCreationFailed, err)
	}

	return session, nil
}

// ValidateSession reports whether the session exists, is active and has
// been used within the idle timeout. A timed-out session is deactivated on
// the spot.
func (s *sessionService) ValidateSession(ctx context.Context, sessionID string) (bool, error) {
	if sessionID == "" {
		return false, nil
	}

	var session models.AdminSession
	err := s.db.WithContext(ctx).Where("session_id = ?", sessionID).First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		logger.Get().Errorw("failed to load session", "error", err, "session_id", sessionID)
		return false, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if !session.IsActive {
		return false, nil
	}

	if s.now().Sub(session.LastActivity) > s.cfg.Timeout {
		if err := s.deactivate(ctx, sessionID); err != nil {
			logger.Get().Warnw("failed to deactivate timed out session", "error", err, "session_id", sessionID)
		}
		return false, nil
	}
	return true, nil
}

// GetSession returns the session row regardless of its state.
func (s *sessionService) GetSession(ctx context.Context, sessionID string) (*models.AdminSession, error) {
	var session models.AdminSession
	if err := s.db.WithContext(ctx).Where("session_id = ?", sessionID).First(&session).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrSessionNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &session, nil
}

// UpdateActivity touches last_activity. It never moves the timestamp backwards
// and is a no-op for unknown or inactive sessions.
func (s *sessionService) UpdateActivity(ctx context.Context, sessionID string) error {
	now := s.now()
	err := s.db.WithContext(ctx).Model(&models.AdminSession{}).
		Where("session_id = ? AND is_active = ? AND last_activity < ?", sessionID, true, now).
		Update("last_activity", now).Error
	if err != nil {
		logger.Get().Errorw("failed to update session activity", "error", err, "session_id", sessionID)
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return nil
}

// TerminateSession deactivates the session. Unknown or already inactive
// sessions are left as they are.
func (s *sessionService) TerminateSession(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	if err := s.deactivate(ctx, sessionID); err != nil {
		logger.Get().Errorw("failed to terminate session", "error", err, "session_id", sessionID)
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return nil
}

func (s *sessionService) deactivate(ctx context.Context, sessionID string) error {
	return s.db.WithContext(ctx).Model(&models.AdminSession{}).
		Where("session_id = ? AND is_active = ?", sessionID, true).
		Update("is_active", false).Error
}

// GetUserSessions lists a user's sessions, most recently used first.
func (s *sessionService) GetUserSessions(ctx context.Context, userID uint, activeOnly bool) ([]models.AdminSession, error) {
	var sessions []models.AdminSession
	q := s.db.WithContext(ctx).Where("user_id = ?", userID)
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}
	if err := q.Order("last_activity DESC, id DESC").Find(&sessions).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return sessions, nil
}

// CountSessions returns the number of stored and active sessions.
func (s *sessionService) CountSessions(ctx context.Context) (int64, int64, error) {
	var total, active int64
	db := s.db.WithContext(ctx)
	if err := db.Model(&models.AdminSession{}).Count(&total).Error; err != nil {
		return 0, 0, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if err := db.Model(&models.AdminSession{}).Where("is_active = ?", true).Count(&active).Error; err != nil {
		return 0, 0, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return total, active, nil
}

// CleanupExpiredSessions deactivates every active session idle for longer
// than the timeout and returns how many were deactivated.
func (s *sessionService) CleanupExpiredSessions(ctx context.Context) (int64, error) {
	cutoff := s.now().Add(-s.cfg.Timeout)
	res := s.db.WithContext(ctx).Model(&models.AdminSession{}).
		Where("is_active = ? AND last_activity < ?", true, cutoff).
		Update("is_active", false)
	if res.Error != nil {
		logger.Get().Errorw("failed to sweep idle sessions", "error", res.Error)
		return 0, apperrors.Wrap(apperrors.ErrInternalServer, res.Error)
	}
	return res.RowsAffected, nil
}

// PurgeInactiveSessions hard-deletes inactive sessions last used before the
// cutoff. Only retention cleanup calls it.
func (s *sessionService) PurgeInactiveSessions(ctx context.Context, before time.Time) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("is_active = ? AND last_activity < ?", false, before.UTC()).
		Delete(&models.AdminSession{})
	if res.Error != nil {
		return 0, apperrors.Wrap(apperrors.ErrInternalServer, res.Error)
	}
	return res.RowsAffected, nil
}

// userLocks serializes session creation per user within this process.
type userLocks struct {
	mu    sync.Mutex
	locks map[uint]*userLock
}

type userLock struct {
	mu   sync.Mutex
	refs int
}

func newUserLocks() *userLocks {
	return &userLocks{locks: make(map[uint]*userLock)}
}

func (l *userLocks) lock(userID uint) func() {
	l.mu.Lock()
	ul, ok := l.locks[userID]
	if !ok {
		ul = &userLock{}
		l.locks[userID] = ul
	}
	ul.refs++
	l.mu.Unlock()

	ul.mu.Lock()
	return func() {
		ul.mu.Unlock()
		l.mu.Lock()
		ul.refs--
		if ul.refs == 0 {
			delete(l.locks, userID)
		}
		l.mu.Unlock()
	}
}

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
