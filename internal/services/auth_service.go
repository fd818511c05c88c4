package services

import (
	"context"
	"errors"

	apperrors "crudadmin/internal/errors"
	"crudadmin/internal/logger"
)

// authService coordinates credentials, sessions and tokens.
type authService struct {
	users    AdminUserServicer
	sessions SessionServicer
	tokens   TokenServicer
}

// NewAuthService creates a new AuthServicer.
func NewAuthService(users AdminUserServicer, sessions SessionServicer, tokens TokenServicer) AuthServicer {
	return &authService{users: users, sessions: sessions, tokens: tokens}
}

// Login verifies credentials, opens a session and issues tokens bound to
// it. The session is created first; if signing fails afterwards the session
// is terminated, so no token is ever handed out without a live session.
func (s *authService) Login(ctx context.Context, rc RequestContext, username, password string) (*LoginResult, error) {
	user, err := s.users.Authenticate(ctx, username, password)
	if err != nil {
		return nil, err
	}

	session, err := s.sessions.CreateSession(ctx, rc, user.ID, map[string]any{
		"login_type": "password",
		"username":   user.Username,
	})
	if err != nil {
		return nil, err
	}

	data := TokenData{
		UsernameOrEmail: user.Username,
		UserID:          user.ID,
		SessionID:       session.SessionID,
	}

	access, err := s.tokens.CreateAccessToken(data, 0)
	if err != nil {
		s.abortLogin(ctx, session.SessionID)
		return nil, apperrors.Wrap(apperrors.ErrSessionCreationFailed, err)
	}

	refresh, err := s.tokens.CreateRefreshToken(data)
	if err != nil {
		if berr := s.tokens.BlacklistToken(ctx, access); berr != nil {
			logger.Get().Errorw("failed to revoke access token of aborted login", "error", berr)
		}
		s.abortLogin(ctx, session.SessionID)
		return nil, apperrors.Wrap(apperrors.ErrSessionCreationFailed, err)
	}

	return &LoginResult{
		User:         user,
		Session:      session,
		AccessToken:  access,
		RefreshToken: refresh,
	}, nil
}

func (s *authService) abortLogin(ctx context.Context, sessionID string) {
	if err := s.sessions.TerminateSession(context.WithoutCancel(ctx), sessionID); err != nil {
		logger.Get().Errorw("failed to terminate session of aborted login", "error", err, "session_id", sessionID)
	}
}

// Logout blacklists whatever tokens were presented and terminates the
// session. Calling it again with the same credentials is harmless.
func (s *authService) Logout(ctx context.Context, p LogoutParams) (*TokenData, error) {
	var data *TokenData
	if p.AccessToken != "" {
		if d, err := s.tokens.VerifyToken(ctx, p.AccessToken); err == nil {
			data = d
		}
		if err := s.tokens.BlacklistToken(ctx, p.AccessToken); err != nil {
			return data, err
		}
	}
	if p.RefreshToken != "" {
		if err := s.tokens.BlacklistToken(ctx, p.RefreshToken); err != nil {
			return data, err
		}
	}

	sessionID := p.SessionID
	if sessionID == "" && data != nil {
		sessionID = data.SessionID
	}
	if err := s.sessions.TerminateSession(ctx, sessionID); err != nil {
		return data, err
	}
	return data, nil
}

// Refresh mints a new access token from a refresh token whose session is
// still valid.
func (s *authService) Refresh(ctx context.Context, refreshToken string) (string, *TokenData, error) {
	data, err := s.tokens.VerifyToken(ctx, refreshToken)
	if err != nil {
		return "", nil, err
	}
	if data.TokenType != TokenTypeRefresh {
		return "", nil, apperrors.WithMessage(apperrors.ErrInvalidToken, "Not a refresh token")
	}

	valid, err := s.sessions.ValidateSession(ctx, data.SessionID)
	if err != nil {
		return "", nil, err
	}
	if !valid {
		return "", nil, apperrors.ErrInvalidSession
	}

	access, err := s.tokens.CreateAccessToken(TokenData{
		UsernameOrEmail: data.UsernameOrEmail,
		UserID:          data.UserID,
		SessionID:       data.SessionID,
	}, 0)
	if err != nil {
		return "", nil, err
	}
	if err := s.sessions.UpdateActivity(ctx, data.SessionID); err != nil {
		logger.Get().Warnw("failed to touch session on refresh", "error", err, "session_id", data.SessionID)
	}
	return access, data, nil
}

// Authenticate resolves the principal behind an access token and session id.
// The token's session claim must name the presented session.
func (s *authService) Authenticate(ctx context.Context, accessToken, sessionID string) (*Principal, error) {
	data, err := s.tokens.VerifyToken(ctx, accessToken)
	if err != nil {
		return nil, err
	}
	if data.TokenType != TokenTypeAccess {
		return nil, apperrors.ErrInvalidToken
	}
	if sessionID == "" || data.SessionID != sessionID {
		return nil, apperrors.ErrInvalidSession
	}

	valid, err := s.sessions.ValidateSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !valid {
		return nil, apperrors.ErrInvalidSession
	}

	user, err := s.users.ResolveSubject(ctx, data.UsernameOrEmail)
	if err != nil {
		if errors.Is(err, apperrors.ErrUserNotFound) {
			return nil, apperrors.ErrUnauthorized
		}
		return nil, err
	}
	if data.UserID != 0 && user.ID != data.UserID {
		return nil, apperrors.ErrUnauthorized
	}

	if err := s.sessions.UpdateActivity(ctx, sessionID); err != nil {
		logger.Get().Warnw("failed to touch session", "error", err, "session_id", sessionID)
	}
	session, err := s.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	return &Principal{User: user, Session: session, Token: data}, nil
}
