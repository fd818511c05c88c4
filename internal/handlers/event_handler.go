package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "crudadmin/internal/errors"
	"crudadmin/internal/export"
	"crudadmin/internal/pagination"
	"crudadmin/internal/services"
	"crudadmin/internal/validator"
)

// maxExportRows caps the number of rows written to one workbook.
const maxExportRows = 10000

// EventHandler exposes the event and audit logs
type EventHandler struct {
	events services.EventServicer
}

// NewEventHandler creates a new EventHandler
func NewEventHandler(events services.EventServicer) *EventHandler {
	return &EventHandler{events: events}
}

// ActivityQuery holds the filters for user activity
type ActivityQuery struct {
	pagination.Window
	Start string `form:"start"`
	End   string `form:"end"`
}

func (q ActivityQuery) filter() (services.ActivityFilter, error) {
	var f services.ActivityFilter
	fields := map[string]string{}
	for name, raw := range map[string]string{"start": q.Start, "end": q.End} {
		if raw == "" {
			continue
		}
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			fields[name] = "Value should be an RFC 3339 timestamp"
			continue
		}
		if name == "start" {
			f.Start = &ts
		} else {
			f.End = &ts
		}
	}
	if len(fields) > 0 {
		return f, apperrors.NewValidationError(fields)
	}
	return f, nil
}

// targetUser parses :user_id and checks that the caller may read it.
func targetUser(c *gin.Context) (uint, error) {
	p, err := currentPrincipal(c)
	if err != nil {
		return 0, err
	}
	userID, err := parsePathID(c, "user_id")
	if err != nil {
		return 0, err
	}
	if userID != p.User.ID && !p.User.IsSuperuser {
		return 0, apperrors.ErrForbidden
	}
	return userID, nil
}

// UserActivity returns a user's events, newest first
// @Summary     User activity
// @Tags        events
// @Produce     json
// @Param       user_id path  int    true  "Admin user id"
// @Param       start   query string false "RFC 3339 lower bound"
// @Param       end     query string false "RFC 3339 upper bound"
// @Param       limit   query int    false "Page size (default 50)"
// @Param       offset  query int    false "Offset"
// @Success     200 {object} map[string]interface{}
// @Router      /events/users/{user_id} [get]
func (h *EventHandler) UserActivity(c *gin.Context) {
	userID, err := targetUser(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	var q ActivityQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondWithError(c, validator.AsValidationError(err))
		return
	}
	filter, err := q.filter()
	if err != nil {
		respondWithError(c, err)
		return
	}

	resp, err := h.events.GetUserActivity(c.Request.Context(), userID, filter, q.Window)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ExportUserActivity downloads a user's events as XLSX
// @Summary     Export user activity
// @Tags        events
// @Produce     application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param       user_id path  int    true  "Admin user id"
// @Param       start   query string false "RFC 3339 lower bound"
// @Param       end     query string false "RFC 3339 upper bound"
// @Success     200 {file} file
// @Router      /events/users/{user_id}/export [get]
func (h *EventHandler) ExportUserActivity(c *gin.Context) {
	userID, err := targetUser(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	var q ActivityQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondWithError(c, validator.AsValidationError(err))
		return
	}
	filter, err := q.filter()
	if err != nil {
		respondWithError(c, err)
		return
	}

	resp, err := h.events.GetUserActivity(c.Request.Context(), userID, filter, pagination.Window{Limit: maxExportRows})
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.Header("Content-Type", export.ContentType)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q",
		export.Filename(fmt.Sprintf("events_user%d", userID), time.Now())))
	if err := export.Events(c.Writer, resp.Data); err != nil {
		respondWithError(c, apperrors.Wrap(apperrors.ErrInternalServer, err))
	}
}

// ResourceHistory returns the audit trail of a resource
// @Summary     Resource history
// @Tags        events
// @Produce     json
// @Param       type   path  string true  "Resource type"
// @Param       id     path  string true  "Resource id"
// @Param       limit  query int    false "Page size (default 50)"
// @Param       offset query int    false "Offset"
// @Success     200 {object} map[string]interface{}
// @Router      /events/resources/{type}/{id} [get]
func (h *EventHandler) ResourceHistory(c *gin.Context) {
	var w pagination.Window
	if err := c.ShouldBindQuery(&w); err != nil {
		respondWithError(c, validator.AsValidationError(err))
		return
	}
	resp, err := h.events.GetResourceHistory(c.Request.Context(), c.Param("type"), c.Param("id"), w)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ExportResourceHistory downloads the audit trail of a resource as XLSX
// @Summary     Export resource history
// @Tags        events
// @Produce     application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param       type path string true "Resource type"
// @Param       id   path string true "Resource id"
// @Success     200 {file} file
// @Router      /events/resources/{type}/{id}/export [get]
func (h *EventHandler) ExportResourceHistory(c *gin.Context) {
	resourceType, resourceID := c.Param("type"), c.Param("id")
	resp, err := h.events.GetResourceHistory(c.Request.Context(), resourceType, resourceID, pagination.Window{Limit: maxExportRows})
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.Header("Content-Type", export.ContentType)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q",
		export.Filename("audit_"+filenameSafe(resourceType)+"_"+filenameSafe(resourceID), time.Now())))
	if err := export.Audits(c.Writer, resp.Data); err != nil {
		respondWithError(c, apperrors.Wrap(apperrors.ErrInternalServer, err))
	}
}

// filenameSafe keeps letters, digits, dashes and underscores.
func filenameSafe(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, s)
}

// SecurityAlerts reports repeated failed logins. Superusers only.
// @Summary     Security alerts
// @Tags        events
// @Produce     json
// @Param       hours query int false "Lookback window in hours (default 24)"
// @Success     200 {object} map[string]interface{}
// @Failure     403 {object} ErrorResponse "Superuser required"
// @Router      /events/alerts [get]
func (h *EventHandler) SecurityAlerts(c *gin.Context) {
	p, err := currentPrincipal(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	if !p.User.IsSuperuser {
		respondWithError(c, apperrors.ErrForbidden)
		return
	}

	hours := services.DefaultLookbackHours
	if raw := c.Query("hours"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			respondWithError(c, apperrors.NewValidationError(map[string]string{"hours": "Value should be a positive integer"}))
			return
		}
		hours = n
	}

	alerts, err := h.events.GetSecurityAlerts(c.Request.Context(), hours)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"alerts": alerts, "lookback_hours": hours})
}
