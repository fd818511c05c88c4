package models

import (
	"encoding/json"

	"gorm.io/datatypes"
)

// Explicit struct-to-map projections used for audit snapshots and list views.

// DecodeJSON returns the object stored in a JSON column, or nil when empty or malformed.
func DecodeJSON(raw datatypes.JSON) map[string]any {
	if len(raw) == 0 {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}

// ProjectAdminUser returns the audit-safe fields of an admin user. The
// password hash is never included.
func ProjectAdminUser(u *AdminUser) map[string]any {
	return map[string]any{
		"id":           u.ID,
		"username":     u.Username,
		"email":        u.Email,
		"is_superuser": u.IsSuperuser,
		"created_at":   u.CreatedAt,
		"updated_at":   u.UpdatedAt,
	}
}

// ProjectAdminSession returns the fields of a session row.
func ProjectAdminSession(s *AdminSession) map[string]any {
	return map[string]any{
		"id":               s.ID,
		"user_id":          s.UserID,
		"session_id":       s.SessionID,
		"ip_address":       s.IPAddress,
		"user_agent":       s.UserAgent,
		"device_info":      DecodeJSON(s.DeviceInfo),
		"created_at":       s.CreatedAt,
		"last_activity":    s.LastActivity,
		"is_active":        s.IsActive,
		"session_metadata": DecodeJSON(s.SessionMetadata),
	}
}
