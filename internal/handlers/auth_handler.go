package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "crudadmin/internal/errors"
	"crudadmin/internal/middleware"
	"crudadmin/internal/models"
	"crudadmin/internal/services"
	"crudadmin/internal/validator"
)

// CookieConfig controls the attributes of admin cookies.
type CookieConfig struct {
	Path   string
	Secure bool
}

// AuthHandler handles login, logout and token refresh
type AuthHandler struct {
	auth    services.AuthServicer
	tokens  services.TokenServicer
	cookies CookieConfig
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(auth services.AuthServicer, tokens services.TokenServicer, cookies CookieConfig) *AuthHandler {
	if cookies.Path == "" {
		cookies.Path = "/"
	}
	return &AuthHandler{auth: auth, tokens: tokens, cookies: cookies}
}

// LoginRequest represents the login form or JSON payload
type LoginRequest struct {
	Username string `json:"username" form:"username" binding:"required"`
	Password string `json:"password" form:"password" binding:"required"`
}

// RefreshRequest optionally carries the refresh token in the body
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" form:"refresh_token"`
}

// LoginResponse is returned after a successful login
type LoginResponse struct {
	User      map[string]any `json:"user"`
	SessionID string         `json:"session_id"`
	ExpiresIn int            `json:"expires_in"`
}

// RefreshResponse is returned after a successful refresh
type RefreshResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

// Login authenticates an admin user and opens a session
// @Summary     Log in
// @Description Authenticate with username and password. Sets access_token, session_id and refresh_token cookies.
// @Tags        auth
// @Accept      json,x-www-form-urlencoded
// @Produce     json
// @Param       request body LoginRequest true "Credentials"
// @Success     200 {object} LoginResponse
// @Failure     401 {object} ErrorResponse "Invalid credentials"
// @Failure     422 {object} ErrorResponse "Missing fields"
// @Router      /login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBind(&req); err != nil {
		respondWithError(c, validator.AsValidationError(err))
		return
	}
	middleware.AddActionDetails(c, map[string]any{"username": services.NormalizeSubject(req.Username)})

	result, err := h.auth.Login(c.Request.Context(), middleware.RequestContext(c), req.Username, req.Password)
	if err != nil {
		respondWithError(c, err)
		return
	}
	middleware.SetActionActor(c, result.User.ID, result.Session.SessionID)

	accessAge := h.tokens.AccessTokenTTL()
	h.setCookie(c, middleware.AccessTokenCookie, "Bearer "+result.AccessToken, accessAge)
	h.setCookie(c, middleware.SessionCookie, result.Session.SessionID, accessAge)
	h.setCookie(c, middleware.RefreshTokenCookie, result.RefreshToken, h.tokens.RefreshTokenTTL())

	c.JSON(http.StatusOK, LoginResponse{
		User:      models.ProjectAdminUser(result.User),
		SessionID: result.Session.SessionID,
		ExpiresIn: int(accessAge.Seconds()),
	})
}

// Logout revokes the presented tokens and ends the session
// @Summary     Log out
// @Description Blacklist the access and refresh tokens, terminate the session and clear cookies. Safe to repeat.
// @Tags        auth
// @Produce     json
// @Success     200 {object} MessageResponse
// @Router      /logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	refresh, _ := c.Cookie(middleware.RefreshTokenCookie)
	data, err := h.auth.Logout(c.Request.Context(), services.LogoutParams{
		AccessToken:  middleware.AccessToken(c),
		RefreshToken: refresh,
		SessionID:    middleware.SessionID(c),
	})
	if data != nil {
		middleware.SetActionActor(c, data.UserID, data.SessionID)
	}

	h.clearCookies(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: "Logged out"})
}

// Refresh issues a new access token
// @Summary     Refresh access token
// @Description Exchange a refresh token (cookie or body) for a new access token while the session is valid.
// @Tags        auth
// @Accept      json
// @Produce     json
// @Param       request body RefreshRequest false "Refresh token when no cookie is sent"
// @Success     200 {object} RefreshResponse
// @Failure     401 {object} ErrorResponse "Invalid token or session"
// @Router      /refresh [post]
func (h *AuthHandler) Refresh(c *gin.Context) {
	token, _ := c.Cookie(middleware.RefreshTokenCookie)
	if token == "" {
		var req RefreshRequest
		_ = c.ShouldBind(&req)
		token = req.RefreshToken
	}
	if token == "" {
		respondWithError(c, apperrors.ErrUnauthorized)
		return
	}

	access, data, err := h.auth.Refresh(c.Request.Context(), token)
	if err != nil {
		respondWithError(c, err)
		return
	}

	accessAge := h.tokens.AccessTokenTTL()
	h.setCookie(c, middleware.AccessTokenCookie, "Bearer "+access, accessAge)
	h.setCookie(c, middleware.SessionCookie, data.SessionID, accessAge)

	c.JSON(http.StatusOK, RefreshResponse{AccessToken: access, ExpiresIn: int(accessAge.Seconds())})
}

// Me returns the current admin user and session
// @Summary     Current admin
// @Tags        auth
// @Produce     json
// @Success     200 {object} map[string]interface{}
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Router      /me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	p, err := currentPrincipal(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"user":    models.ProjectAdminUser(p.User),
		"session": models.ProjectAdminSession(p.Session),
	})
}

func (h *AuthHandler) setCookie(c *gin.Context, name, value string, maxAge time.Duration) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     h.cookies.Path,
		MaxAge:   int(maxAge.Seconds()),
		HttpOnly: true,
		Secure:   h.cookies.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *AuthHandler) clearCookies(c *gin.Context) {
	for _, name := range []string{middleware.AccessTokenCookie, middleware.SessionCookie, middleware.RefreshTokenCookie} {
		http.SetCookie(c.Writer, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     h.cookies.Path,
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   h.cookies.Secure,
			SameSite: http.SameSiteLaxMode,
		})
	}
}
