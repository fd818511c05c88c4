package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "crudadmin/internal/errors"
	"crudadmin/internal/logger"
	"crudadmin/internal/models"
	"crudadmin/internal/services"
)

const actionRecordKey = "admin.action"

// ResourceFetcher loads the current state of a resource for audit snapshots.
type ResourceFetcher func(c *gin.Context, id string) (map[string]any, error)

// ActionSpec describes the action a wrapped handler performs.
type ActionSpec struct {
	EventType models.EventType
	// ResourceType is used unless ResourceTypeFrom is set.
	ResourceType     string
	ResourceTypeFrom func(c *gin.Context) string
	// ResourceID extracts the target id from the request, if any.
	ResourceID func(c *gin.Context) string
	// Fetch loads state before update/delete and after update.
	Fetch ResourceFetcher
}

func (s ActionSpec) resourceType(c *gin.Context) string {
	if s.ResourceTypeFrom != nil {
		return s.ResourceTypeFrom(c)
	}
	return s.ResourceType
}

// ActionLogger records an event, and for mutations an audit entry, after
// each wrapped handler runs. It only observes: the handler's response is
// never changed and logging failures are reported to the application log.
type ActionLogger struct {
	events  services.EventServicer
	enabled bool
}

// NewActionLogger creates an ActionLogger. When enabled is false Wrap
// returns handlers unchanged.
func NewActionLogger(events services.EventServicer, enabled bool) *ActionLogger {
	return &ActionLogger{events: events, enabled: enabled}
}

type resourceChange struct {
	id      string
	prev    map[string]any
	next    map[string]any
	hasPrev bool
}

type actionRecord struct {
	userID    uint
	sessionID string
	hasActor  bool
	failed    bool
	reason    string
	details   map[string]any
	resources []resourceChange
}

func actionRecordFor(c *gin.Context) *actionRecord {
	if v, ok := c.Get(actionRecordKey); ok {
		if rec, ok := v.(*actionRecord); ok {
			return rec
		}
	}
	rec := &actionRecord{details: map[string]any{}}
	c.Set(actionRecordKey, rec)
	return rec
}

// SetActionActor attributes the action to a user and session. Login and
// logout use it because they run without an authenticated principal.
func SetActionActor(c *gin.Context, userID uint, sessionID string) {
	rec := actionRecordFor(c)
	rec.userID, rec.sessionID, rec.hasActor = userID, sessionID, true
}

// SetActionFailure marks the action as failed with err as the reason.
func SetActionFailure(c *gin.Context, err error) {
	rec := actionRecordFor(c)
	rec.failed = true
	if err == nil {
		return
	}
	rec.reason = err.Error()

	var verr *apperrors.ValidationError
	if errors.As(err, &verr) {
		rec.details["fields"] = verr.Fields
	}
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		rec.details["error_code"] = appErr.Code
	}
}

// AddActionDetails merges details into the event's details blob.
func AddActionDetails(c *gin.Context, details map[string]any) {
	rec := actionRecordFor(c)
	for k, v := range details {
		rec.details[k] = v
	}
}

// AddActionResource records a resource touched by the action with its
// states. A nil prev for the request's own resource is filled from the
// state fetched before the handler ran.
func AddActionResource(c *gin.Context, id string, prev, next map[string]any) {
	rec := actionRecordFor(c)
	rec.resources = append(rec.resources, resourceChange{id: id, prev: prev, next: next, hasPrev: prev != nil})
}

// Wrap instruments h according to spec.
func (l *ActionLogger) Wrap(spec ActionSpec, h gin.HandlerFunc) gin.HandlerFunc {
	if l == nil || !l.enabled || l.events == nil {
		return h
	}

	return func(c *gin.Context) {
		var id string
		if spec.ResourceID != nil {
			id = spec.ResourceID(c)
		}

		var prev map[string]any
		if id != "" && spec.Fetch != nil &&
			(spec.EventType == models.EventTypeUpdate || spec.EventType == models.EventTypeDelete) {
			if state, err := spec.Fetch(c, id); err == nil {
				prev = state
			}
		}

		errCount := len(c.Errors)
		defer func() {
			if r := recover(); r != nil {
				SetActionFailure(c, fmt.Errorf("panic: %v", r))
				l.observe(c, spec, id, prev, errCount, http.StatusInternalServerError)
				panic(r)
			}
		}()

		h(c)
		l.observe(c, spec, id, prev, errCount, c.Writer.Status())
	}
}

func (l *ActionLogger) observe(c *gin.Context, spec ActionSpec, id string, prev map[string]any, errCount, status int) {
	rec := actionRecordFor(c)
	ctx := context.WithoutCancel(c.Request.Context())
	resourceType := spec.resourceType(c)

	userID, sessionID := rec.userID, rec.sessionID
	if !rec.hasActor {
		if p, ok := CurrentPrincipal(c); ok {
			userID = p.User.ID
			sessionID = p.Session.SessionID
		}
	}

	details := make(map[string]any, len(rec.details)+2)
	for k, v := range rec.details {
		details[k] = v
	}

	params := services.LogEventParams{
		EventType:    spec.EventType,
		Status:       models.EventStatusSuccess,
		UserID:       userID,
		SessionID:    sessionID,
		Request:      RequestContext(c),
		ResourceType: resourceType,
		ResourceID:   id,
		Details:      details,
	}

	newErrors := len(c.Errors) > errCount
	if rec.failed || newErrors || status >= http.StatusBadRequest {
		reason := rec.reason
		if reason == "" && newErrors {
			reason = c.Errors.Last().Error()
		}
		if reason == "" {
			reason = http.StatusText(status)
		}
		details["reason"] = reason
		details["status_code"] = status

		params.Status = models.EventStatusFailure
		if spec.EventType == models.EventTypeLogin {
			params.EventType = models.EventTypeFailedLogin
		}
		l.logEvent(ctx, params)
		return
	}

	resources := rec.resources
	if len(resources) == 0 && id != "" {
		resources = []resourceChange{{id: id}}
	}
	for i := range resources {
		r := &resources[i]
		if r.id != id {
			continue
		}
		if !r.hasPrev {
			r.prev = prev
		}
		if r.next == nil && spec.EventType == models.EventTypeUpdate && spec.Fetch != nil {
			if state, err := spec.Fetch(c, id); err == nil {
				r.next = state
			}
		}
	}

	switch len(resources) {
	case 0:
	case 1:
		params.ResourceID = resources[0].id
	default:
		ids := make([]string, 0, len(resources))
		for _, r := range resources {
			ids = append(ids, r.id)
		}
		params.ResourceID = ""
		details["resource_ids"] = ids
		details["count"] = len(ids)
	}

	event := l.logEvent(ctx, params)
	if event == nil || !spec.EventType.IsMutation() {
		return
	}

	metadata := map[string]any{
		"ip_address": params.Request.IPAddress,
		"user_agent": params.Request.UserAgent,
		"method":     c.Request.Method,
		"path":       c.Request.URL.Path,
	}
	for _, r := range resources {
		_, err := l.events.CreateAuditLog(ctx, services.AuditLogParams{
			EventID:       event.ID,
			ResourceType:  resourceType,
			ResourceID:    r.id,
			Action:        string(spec.EventType),
			PreviousState: r.prev,
			NewState:      r.next,
			Metadata:      metadata,
		})
		if err != nil {
			logger.Get().Errorw("audit log failed after committed action",
				"error", err,
				"event_id", event.ID,
				"resource_type", resourceType,
				"resource_id", r.id,
			)
		}
	}
}

func (l *ActionLogger) logEvent(ctx context.Context, p services.LogEventParams) *models.AdminEventLog {
	event, err := l.events.LogEvent(ctx, p)
	if err != nil {
		logger.Get().Errorw("event log failed after action",
			"error", err,
			"event_type", p.EventType,
			"status", p.Status,
			"resource_type", p.ResourceType,
			"resource_id", p.ResourceID,
		)
		return nil
	}
	return event
}
