package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	apperrors "crudadmin/internal/errors"
	"crudadmin/internal/logger"
)

const tokenIssuer = "crudadmin"

// TokenConfig holds the signing parameters for the token service.
type TokenConfig struct {
	SecretKey  string
	Algorithm  string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// adminClaims is the JWT payload. The subject is the username (or email).
type adminClaims struct {
	UserID    uint   `json:"uid"`
	SessionID string `json:"sid"`
	TokenType string `json:"token_type"`
	jwt.RegisteredClaims
}

// tokenService handles signing, verification and revocation of bearer tokens.
type tokenService struct {
	key       []byte
	method    jwt.SigningMethod
	cfg       TokenConfig
	blacklist BlacklistStore
	now       func() time.Time
}

// NewTokenService creates a new TokenServicer.
func NewTokenService(cfg TokenConfig, blacklist BlacklistStore) (TokenServicer, error) {
	method := jwt.GetSigningMethod(strings.ToUpper(cfg.Algorithm))
	if _, ok := method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unsupported signing algorithm %q", cfg.Algorithm)
	}
	if cfg.SecretKey == "" {
		return nil, fmt.Errorf("signing secret is required")
	}
	return &tokenService{
		key:       []byte(cfg.SecretKey),
		method:    method,
		cfg:       cfg,
		blacklist: blacklist,
		now:       func() time.Time { return time.Now().UTC() },
	}, nil
}

// HashToken returns the SHA-256 hex digest of a token string.
func HashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// StripBearer removes an optional "Bearer " prefix from a cookie or header value.
func StripBearer(value string) string {
	value = strings.TrimSpace(value)
	if len(value) > 7 && strings.EqualFold(value[:7], "bearer ") {
		return strings.TrimSpace(value[7:])
	}
	return value
}

func (s *tokenService) AccessTokenTTL() time.Duration  { return s.cfg.AccessTTL }
func (s *tokenService) RefreshTokenTTL() time.Duration { return s.cfg.RefreshTTL }

// CreateAccessToken signs a short-lived access token for the given identity.
func (s *tokenService) CreateAccessToken(data TokenData, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = s.cfg.AccessTTL
	}
	return s.sign(data, TokenTypeAccess, ttl)
}

// CreateRefreshToken signs a long-lived refresh token for the given identity.
func (s *tokenService) CreateRefreshToken(data TokenData) (string, error) {
	return s.sign(data, TokenTypeRefresh, s.cfg.RefreshTTL)
}

func (s *tokenService) sign(data TokenData, tokenType string, ttl time.Duration) (string, error) {
	subject := strings.ToLower(strings.TrimSpace(data.UsernameOrEmail))
	if subject == "" {
		return "", apperrors.WithMessage(apperrors.ErrInvalidInput, "token subject is required")
	}

	now := s.now()
	claims := &adminClaims{
		UserID:    data.UserID,
		SessionID: data.SessionID,
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    tokenIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(s.method, claims).SignedString(s.key)
	if err != nil {
		return "", apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return signed, nil
}

func (s *tokenService) parse(token string, opts ...jwt.ParserOption) (*adminClaims, error) {
	opts = append(opts,
		jwt.WithValidMethods([]string{s.method.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithTimeFunc(s.now),
	)
	claims := &adminClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return s.key, nil
	}, opts...)
	if err != nil {
		return nil, err
	}
	if !parsed.Valid {
		return nil, jwt.ErrTokenUnverifiable
	}
	return claims, nil
}

// VerifyToken checks signature, expiry and the blacklist, in that order.
func (s *tokenService) VerifyToken(ctx context.Context, token string) (*TokenData, error) {
	token = StripBearer(token)
	if token == "" {
		return nil, apperrors.ErrInvalidToken
	}

	claims, err := s.parse(token)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, apperrors.ErrTokenExpired
		}
		return nil, apperrors.Wrap(apperrors.ErrInvalidToken, err)
	}
	if claims.Subject == "" || (claims.TokenType != TokenTypeAccess && claims.TokenType != TokenTypeRefresh) {
		return nil, apperrors.ErrInvalidToken
	}

	revoked, err := s.blacklist.Contains(ctx, HashToken(token))
	if err != nil {
		logger.Get().Errorw("failed to check token blacklist", "error", err)
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if revoked {
		return nil, apperrors.ErrTokenRevoked
	}

	return &TokenData{
		UsernameOrEmail: claims.Subject,
		UserID:          claims.UserID,
		SessionID:       claims.SessionID,
		TokenType:       claims.TokenType,
		ExpiresAt:       claims.ExpiresAt.Time,
	}, nil
}

// BlacklistToken records the token as revoked. Revoking the same token twice
// is not an error. The entry keeps the token's own expiry so it can be purged
// once the token could no longer validate anyway.
func (s *tokenService) BlacklistToken(ctx context.Context, token string) error {
	token = StripBearer(token)
	if token == "" {
		return nil
	}

	expiresAt := s.now().Add(s.cfg.RefreshTTL)
	if claims, err := s.parse(token, jwt.WithoutClaimsValidation()); err == nil && claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}

	if err := s.blacklist.Add(ctx, HashToken(token), expiresAt); err != nil {
		logger.Get().Errorw("failed to blacklist token", "error", err)
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return nil
}

// PurgeExpired removes blacklist entries for tokens past their expiry.
func (s *tokenService) PurgeExpired(ctx context.Context) (int64, error) {
	n, err := s.blacklist.PurgeExpired(ctx, s.now())
	if err != nil {
		return 0, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return n, nil
}
