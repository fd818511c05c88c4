package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "crudadmin/internal/errors"
	"crudadmin/internal/models"
	"crudadmin/internal/services"
)

// SessionHandler lists and revokes admin sessions
type SessionHandler struct {
	sessions services.SessionServicer
}

// NewSessionHandler creates a new SessionHandler
func NewSessionHandler(sessions services.SessionServicer) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

// ResourceID resolves the action logger resource id from the route.
func (h *SessionHandler) ResourceID(c *gin.Context) string {
	return c.Param("session_id")
}

// Fetch loads the projected session for audit snapshots.
func (h *SessionHandler) Fetch(c *gin.Context, id string) (map[string]any, error) {
	s, err := h.sessions.GetSession(c.Request.Context(), id)
	if err != nil {
		return nil, err
	}
	return models.ProjectAdminSession(s), nil
}

// List returns the current admin's sessions
// @Summary     My sessions
// @Tags        sessions
// @Produce     json
// @Param       all query bool false "Include inactive sessions"
// @Success     200 {object} map[string]interface{}
// @Router      /sessions [get]
func (h *SessionHandler) List(c *gin.Context) {
	p, err := currentPrincipal(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	activeOnly := c.Query("all") != "true"
	sessions, err := h.sessions.GetUserSessions(c.Request.Context(), p.User.ID, activeOnly)
	if err != nil {
		respondWithError(c, err)
		return
	}

	out := make([]map[string]any, 0, len(sessions))
	for i := range sessions {
		item := models.ProjectAdminSession(&sessions[i])
		item["current"] = sessions[i].SessionID == p.Session.SessionID
		out = append(out, item)
	}
	c.JSON(http.StatusOK, gin.H{"data": out, "total_count": len(out)})
}

// Revoke terminates a session. Admins may revoke their own sessions;
// superusers may revoke any.
// @Summary     Revoke session
// @Tags        sessions
// @Produce     json
// @Param       session_id path string true "Session id"
// @Success     200 {object} MessageResponse
// @Failure     403 {object} ErrorResponse "Not your session"
// @Failure     404 {object} ErrorResponse "Session not found"
// @Router      /sessions/{session_id} [delete]
func (h *SessionHandler) Revoke(c *gin.Context) {
	p, err := currentPrincipal(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	ctx := c.Request.Context()
	session, err := h.sessions.GetSession(ctx, c.Param("session_id"))
	if err != nil {
		respondWithError(c, err)
		return
	}
	if session.UserID != p.User.ID && !p.User.IsSuperuser {
		respondWithError(c, apperrors.ErrForbidden)
		return
	}

	if err := h.sessions.TerminateSession(ctx, session.SessionID); err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: "Session revoked"})
}
