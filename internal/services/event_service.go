package services

import (
	"bytes"
	"context"
	"encoding/json"
	"reflect"
	"sort"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	apperrors "crudadmin/internal/errors"
	"crudadmin/internal/logger"
	"crudadmin/internal/models"
	"crudadmin/internal/pagination"
)

// Alert parameters for repeated failed logins.
const (
	AlertMultipleFailedLogins = "multiple_failed_logins"
	AlertSeverityHigh         = "high"
	FailedLoginThreshold      = 5
	DefaultLookbackHours      = 24
)

// Change is the old/new pair recorded for one differing field.
type Change struct {
	Old any `json:"old"`
	New any `json:"new"`
}

// eventService persists the event and audit logs.
type eventService struct {
	db  *gorm.DB
	now func() time.Time
}

// NewEventService creates a new EventServicer.
func NewEventService(db *gorm.DB) EventServicer {
	return &eventService{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
}

// LogEvent stores one event. Persistence failures are returned to the caller.
func (s *eventService) LogEvent(ctx context.Context, p LogEventParams) (*models.AdminEventLog, error) {
	details, err := encodeObject(p.Details)
	if err != nil {
		logger.Get().Errorw("failed to serialize event details", "error", err, "event_type", p.EventType)
		return nil, apperrors.Wrap(apperrors.ErrEventLogging, err)
	}

	status := p.Status
	if status == "" {
		status = models.EventStatusSuccess
	}

	entry := &models.AdminEventLog{
		Timestamp:    s.now(),
		EventType:    p.EventType,
		Status:       status,
		UserID:       p.UserID,
		SessionID:    p.SessionID,
		IPAddress:    p.Request.IPAddress,
		UserAgent:    truncate(p.Request.UserAgent, 512),
		ResourceType: optional(p.ResourceType),
		ResourceID:   optional(p.ResourceID),
		Details:      details,
	}

	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		logger.Get().Errorw("failed to log event",
			"error", err,
			"event_type", p.EventType,
			"status", status,
			"user_id", p.UserID,
			"session_id", p.SessionID,
		)
		return nil, apperrors.Wrap(apperrors.ErrEventLogging, err)
	}
	return entry, nil
}

// CreateAuditLog stores the state change of one resource together with the
// field-level diff between the two states.
func (s *eventService) CreateAuditLog(ctx context.Context, p AuditLogParams) (*models.AdminAuditLog, error) {
	prev, err := normalizeJSON(p.PreviousState)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrEventLogging, err)
	}
	next, err := normalizeJSON(p.NewState)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrEventLogging, err)
	}

	prevJSON, err := encodeState(prev)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrEventLogging, err)
	}
	nextJSON, err := encodeState(next)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrEventLogging, err)
	}
	changes, err := json.Marshal(ComputeChanges(prev, next))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrEventLogging, err)
	}
	metadata, err := encodeObject(p.Metadata)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrEventLogging, err)
	}

	entry := &models.AdminAuditLog{
		EventID:       p.EventID,
		Timestamp:     s.now(),
		ResourceType:  p.ResourceType,
		ResourceID:    p.ResourceID,
		Action:        p.Action,
		PreviousState: prevJSON,
		NewState:      nextJSON,
		Changes:       datatypes.JSON(changes),
		AuditMetadata: metadata,
	}

	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		logger.Get().Errorw("failed to create audit log",
			"error", err,
			"event_id", p.EventID,
			"resource_type", p.ResourceType,
			"resource_id", p.ResourceID,
		)
		return nil, apperrors.Wrap(apperrors.ErrEventLogging, err)
	}
	return entry, nil
}

// ComputeChanges returns an entry for every key whose value differs between
// the two states. A nil state is treated as empty.
func ComputeChanges(prev, next map[string]any) map[string]Change {
	changes := map[string]Change{}
	seen := make(map[string]struct{}, len(prev)+len(next))
	for _, state := range []map[string]any{prev, next} {
		for k := range state {
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}
			oldV, newV := prev[k], next[k]
			if !reflect.DeepEqual(oldV, newV) {
				changes[k] = Change{Old: oldV, New: newV}
			}
		}
	}
	return changes
}

// GetUserActivity returns a user's events, newest first.
func (s *eventService) GetUserActivity(ctx context.Context, userID uint, filter ActivityFilter, window pagination.Window) (*pagination.ListResponse[models.AdminEventLog], error) {
	q := s.db.WithContext(ctx).Model(&models.AdminEventLog{}).Where("user_id = ?", userID)
	if filter.Start != nil {
		q = q.Where("timestamp >= ?", filter.Start.UTC())
	}
	if filter.End != nil {
		q = q.Where("timestamp <= ?", filter.End.UTC())
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var events []models.AdminEventLog
	if err := q.Order("timestamp DESC, id DESC").Scopes(window.Scope()).Find(&events).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	resp := pagination.NewListResponse(events, total)
	return &resp, nil
}

// GetResourceHistory returns the audit trail of one resource, newest first.
func (s *eventService) GetResourceHistory(ctx context.Context, resourceType, resourceID string, window pagination.Window) (*pagination.ListResponse[models.AdminAuditLog], error) {
	q := s.db.WithContext(ctx).Model(&models.AdminAuditLog{}).
		Where("resource_type = ? AND resource_id = ?", resourceType, resourceID)

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var audits []models.AdminAuditLog
	if err := q.Order("timestamp DESC, id DESC").Scopes(window.Scope()).Find(&audits).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	resp := pagination.NewListResponse(audits, total)
	return &resp, nil
}

// GetSecurityAlerts groups failed logins in the lookback window by client IP
// and attempted username and reports every group at or over the threshold.
func (s *eventService) GetSecurityAlerts(ctx context.Context, lookbackHours int) ([]SecurityAlert, error) {
	if lookbackHours <= 0 {
		lookbackHours = DefaultLookbackHours
	}
	cutoff := s.now().Add(-time.Duration(lookbackHours) * time.Hour)

	var failed []models.AdminEventLog
	err := s.db.WithContext(ctx).
		Select("ip_address", "details").
		Where("event_type = ? AND status = ? AND timestamp >= ?",
			models.EventTypeFailedLogin, models.EventStatusFailure, cutoff).
		Find(&failed).Error
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	type key struct{ ip, username string }
	counts := map[key]int{}
	for _, ev := range failed {
		k := key{ip: ev.IPAddress, username: "unknown"}
		if k.ip == "" {
			k.ip = "unknown"
		}
		if name, ok := models.DecodeJSON(ev.Details)["username"].(string); ok && name != "" {
			k.username = name
		}
		counts[k]++
	}

	alerts := []SecurityAlert{}
	for k, n := range counts {
		if n < FailedLoginThreshold {
			continue
		}
		alerts = append(alerts, SecurityAlert{
			Type:     AlertMultipleFailedLogins,
			Severity: AlertSeverityHigh,
			Details:  AlertDetails{IPAddress: k.ip, Username: k.username, Attempts: n},
		})
	}
	sort.Slice(alerts, func(i, j int) bool {
		a, b := alerts[i].Details, alerts[j].Details
		if a.Attempts != b.Attempts {
			return a.Attempts > b.Attempts
		}
		if a.IPAddress != b.IPAddress {
			return a.IPAddress < b.IPAddress
		}
		return a.Username < b.Username
	})
	return alerts, nil
}

// CleanupOldLogs deletes events and audits older than the retention window.
// Both deletes run in one transaction.
func (s *eventService) CleanupOldLogs(ctx context.Context, retentionDays int) (*CleanupResult, error) {
	if retentionDays <= 0 {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "retention days must be positive")
	}
	cutoff := s.now().AddDate(0, 0, -retentionDays)

	result := &CleanupResult{}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		audits := tx.Where("timestamp < ?", cutoff).Delete(&models.AdminAuditLog{})
		if audits.Error != nil {
			return audits.Error
		}
		events := tx.Where("timestamp < ?", cutoff).Delete(&models.AdminEventLog{})
		if events.Error != nil {
			return events.Error
		}
		result.Audits = audits.RowsAffected
		result.Events = events.RowsAffected
		return nil
	})
	if err != nil {
		logger.Get().Errorw("failed to clean up old logs", "error", err, "retention_days", retentionDays)
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return result, nil
}

// normalizeJSON round-trips a map through encoding/json so that times become
// RFC 3339 strings, text marshalers (big numbers, UUIDs) become their text
// form, and numbers compare by their literal value.
func normalizeJSON(m map[string]any) (map[string]any, error) {
	if m == nil {
		return nil, nil
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var out map[string]any
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

// encodeObject serializes m, storing an empty object for nil.
func encodeObject(m map[string]any) (datatypes.JSON, error) {
	if m == nil {
		return datatypes.JSON("{}"), nil
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(raw), nil
}

// encodeState serializes m, storing NULL for a missing state.
func encodeState(m map[string]any) (datatypes.JSON, error) {
	if m == nil {
		return nil, nil
	}
	return encodeObject(m)
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
