package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	apperrors "crudadmin/internal/errors"
	"crudadmin/internal/services"
)

// Cookie and header names carrying admin credentials.
const (
	AccessTokenCookie  = "access_token"
	RefreshTokenCookie = "refresh_token"
	SessionCookie      = "session_id"
	SessionHeader      = "X-Session-ID"
)

const principalKey = "admin.principal"

// RequestContext captures the client IP and user agent of the request.
func RequestContext(c *gin.Context) services.RequestContext {
	return services.RequestContext{
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	}
}

// AccessToken returns the bearer token from the access_token cookie or the
// Authorization header, without the "Bearer " prefix.
func AccessToken(c *gin.Context) string {
	if v, err := c.Cookie(AccessTokenCookie); err == nil && v != "" {
		return services.StripBearer(v)
	}
	header := c.GetHeader("Authorization")
	parts := strings.SplitN(header, " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}

// SessionID returns the session id from the session_id cookie or X-Session-ID header.
func SessionID(c *gin.Context) string {
	if v, err := c.Cookie(SessionCookie); err == nil && v != "" {
		return v
	}
	return c.GetHeader(SessionHeader)
}

// CurrentPrincipal returns the authenticated admin set by AuthMiddleware.
func CurrentPrincipal(c *gin.Context) (*services.Principal, bool) {
	v, ok := c.Get(principalKey)
	if !ok {
		return nil, false
	}
	p, ok := v.(*services.Principal)
	return p, ok && p != nil
}

// SetPrincipal stores the authenticated admin on the context.
func SetPrincipal(c *gin.Context, p *services.Principal) {
	c.Set(principalKey, p)
	c.Set("userID", p.User.ID)
}

// AuthMiddleware requires a valid access token and a valid session that the
// token is bound to, and sets the principal on the context.
func AuthMiddleware(auth services.AuthServicer) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := AccessToken(c)
		if token == "" {
			abortUnauthorized(c, apperrors.ErrUnauthorized)
			return
		}

		principal, err := auth.Authenticate(c.Request.Context(), token, SessionID(c))
		if err != nil {
			var appErr *apperrors.AppError
			if errors.As(err, &appErr) && appErr.StatusCode == http.StatusUnauthorized {
				abortUnauthorized(c, appErr)
				return
			}
			_ = c.Error(err)
			c.Abort()
			return
		}

		SetPrincipal(c, principal)
		c.Next()
	}
}

func abortUnauthorized(c *gin.Context, appErr *apperrors.AppError) {
	c.AbortWithStatusJSON(appErr.StatusCode, gin.H{
		"error": gin.H{
			"code":    appErr.Code,
			"message": appErr.Message,
		},
	})
}
