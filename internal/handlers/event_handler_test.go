package handlers

import (
	"bytes"
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"

	apperrors "crudadmin/internal/errors"
	"crudadmin/internal/export"
	"crudadmin/internal/models"
	"crudadmin/internal/pagination"
	"crudadmin/internal/services"
)

type mockEventService struct {
	getUserActivityFn    func(userID uint, filter services.ActivityFilter, w pagination.Window) (*pagination.ListResponse[models.AdminEventLog], error)
	getResourceHistoryFn func(rtype, rid string, w pagination.Window) (*pagination.ListResponse[models.AdminAuditLog], error)
	getSecurityAlertsFn  func(hours int) ([]services.SecurityAlert, error)
}

func (m *mockEventService) LogEvent(context.Context, services.LogEventParams) (*models.AdminEventLog, error) {
	return &models.AdminEventLog{ID: 1}, nil
}

func (m *mockEventService) CreateAuditLog(context.Context, services.AuditLogParams) (*models.AdminAuditLog, error) {
	return &models.AdminAuditLog{ID: 1}, nil
}

func (m *mockEventService) GetUserActivity(_ context.Context, userID uint, filter services.ActivityFilter, w pagination.Window) (*pagination.ListResponse[models.AdminEventLog], error) {
	if m.getUserActivityFn != nil {
		return m.getUserActivityFn(userID, filter, w)
	}
	resp := pagination.NewListResponse[models.AdminEventLog](nil, 0)
	return &resp, nil
}

func (m *mockEventService) GetResourceHistory(_ context.Context, rtype, rid string, w pagination.Window) (*pagination.ListResponse[models.AdminAuditLog], error) {
	if m.getResourceHistoryFn != nil {
		return m.getResourceHistoryFn(rtype, rid, w)
	}
	resp := pagination.NewListResponse[models.AdminAuditLog](nil, 0)
	return &resp, nil
}

func (m *mockEventService) GetSecurityAlerts(_ context.Context, hours int) ([]services.SecurityAlert, error) {
	if m.getSecurityAlertsFn != nil {
		return m.getSecurityAlertsFn(hours)
	}
	return []services.SecurityAlert{}, nil
}

func (m *mockEventService) CleanupOldLogs(context.Context, int) (*services.CleanupResult, error) {
	return &services.CleanupResult{}, nil
}

func setupEventRouter(handler *EventHandler, p *services.Principal) *gin.Engine {
	r := gin.New()
	r.Use(injectPrincipal(p))
	r.GET("/events/users/:user_id", handler.UserActivity)
	r.GET("/events/users/:user_id/export", handler.ExportUserActivity)
	r.GET("/events/resources/:type/:id", handler.ResourceHistory)
	r.GET("/events/resources/:type/:id/export", handler.ExportResourceHistory)
	r.GET("/events/alerts", handler.SecurityAlerts)
	return r
}

func TestEventHandler_UserActivity(t *testing.T) {
	t.Run("passes filter and window", func(t *testing.T) {
		var gotUser uint
		var gotFilter services.ActivityFilter
		var gotWindow pagination.Window
		svc := &mockEventService{
			getUserActivityFn: func(userID uint, filter services.ActivityFilter, w pagination.Window) (*pagination.ListResponse[models.AdminEventLog], error) {
				gotUser, gotFilter, gotWindow = userID, filter, w
				resp := pagination.NewListResponse([]models.AdminEventLog{{ID: 5, UserID: userID}}, 12)
				return &resp, nil
			},
		}
		r := setupEventRouter(NewEventHandler(svc), testPrincipal(1, false))

		rec := doRequest(r, http.MethodGet, "/events/users/1?start=2024-01-01T00:00:00Z&limit=5&offset=10", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if gotUser != 1 {
			t.Errorf("expected user 1, got %d", gotUser)
		}
		if gotFilter.Start == nil || !gotFilter.Start.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)) {
			t.Errorf("unexpected start filter: %v", gotFilter.Start)
		}
		if gotFilter.End != nil {
			t.Error("expected no end filter")
		}
		if gotWindow.Limit != 5 || gotWindow.Offset != 10 {
			t.Errorf("unexpected window: %+v", gotWindow)
		}
		if parseJSON(t, rec)["total_count"] != float64(12) {
			t.Error("expected total_count 12")
		}
	})

	t.Run("rejects malformed timestamps", func(t *testing.T) {
		r := setupEventRouter(NewEventHandler(&mockEventService{}), testPrincipal(1, false))

		rec := doRequest(r, http.MethodGet, "/events/users/1?end=yesterday", "")

		if rec.Code != http.StatusUnprocessableEntity {
			t.Fatalf("expected 422, got %d", rec.Code)
		}
		fields := parseJSON(t, rec)["error"].(map[string]interface{})["fields"].(map[string]interface{})
		if _, ok := fields["end"]; !ok {
			t.Errorf("expected end field error, got %v", fields)
		}
	})

	t.Run("forbids other users for non-superusers", func(t *testing.T) {
		r := setupEventRouter(NewEventHandler(&mockEventService{}), testPrincipal(1, false))

		rec := doRequest(r, http.MethodGet, "/events/users/2", "")

		if rec.Code != http.StatusForbidden {
			t.Fatalf("expected 403, got %d", rec.Code)
		}
	})

	t.Run("superuser reads any user", func(t *testing.T) {
		r := setupEventRouter(NewEventHandler(&mockEventService{}), testPrincipal(1, true))

		rec := doRequest(r, http.MethodGet, "/events/users/2", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
	})

	t.Run("rejects invalid user id", func(t *testing.T) {
		r := setupEventRouter(NewEventHandler(&mockEventService{}), testPrincipal(1, true))

		rec := doRequest(r, http.MethodGet, "/events/users/abc", "")

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "INVALID_INPUT")
	})
}

func TestEventHandler_ExportResourceHistory(t *testing.T) {
	var gotType, gotID string
	var gotWindow pagination.Window
	svc := &mockEventService{
		getResourceHistoryFn: func(rtype, rid string, w pagination.Window) (*pagination.ListResponse[models.AdminAuditLog], error) {
			gotType, gotID, gotWindow = rtype, rid, w
			resp := pagination.NewListResponse([]models.AdminAuditLog{
				{ID: 3, EventID: 9, ResourceType: rtype, ResourceID: rid, Action: "update", Timestamp: time.Now().UTC()},
				{ID: 2, EventID: 8, ResourceType: rtype, ResourceID: rid, Action: "create", Timestamp: time.Now().UTC()},
			}, 2)
			return &resp, nil
		},
	}
	r := setupEventRouter(NewEventHandler(svc), testPrincipal(1, false))

	rec := doRequest(r, http.MethodGet, "/events/resources/Account/42/export", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if gotType != "Account" || gotID != "42" || gotWindow.Limit != maxExportRows {
		t.Errorf("unexpected query %q %q %+v", gotType, gotID, gotWindow)
	}
	if ct := rec.Header().Get("Content-Type"); ct != export.ContentType {
		t.Errorf("unexpected content type %q", ct)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "audit_Account_42_") {
		t.Errorf("unexpected content disposition %q", cd)
	}
	f, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	if err != nil {
		t.Fatalf("response is not a workbook: %v", err)
	}
	defer f.Close()
	rows, err := f.GetRows("Audit")
	if err != nil {
		t.Fatalf("failed to read rows: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected header plus two rows, got %d rows", len(rows))
	}
	if rows[1][5] != "update" || rows[2][5] != "create" {
		t.Errorf("expected newest first, got %v / %v", rows[1], rows[2])
	}
}

func TestEventHandler_ExportResourceHistoryError(t *testing.T) {
	svc := &mockEventService{
		getResourceHistoryFn: func(string, string, pagination.Window) (*pagination.ListResponse[models.AdminAuditLog], error) {
			return nil, apperrors.ErrInternalServer
		},
	}
	r := setupEventRouter(NewEventHandler(svc), testPrincipal(1, false))

	rec := doRequest(r, http.MethodGet, "/events/resources/Account/42/export", "")

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
}

func TestFilenameSafe(t *testing.T) {
	if got := filenameSafe(`a"b/../c d`); got != "a_b____c_d" {
		t.Errorf("unexpected sanitized name %q", got)
	}
}

func TestEventHandler_ExportUserActivity(t *testing.T) {
	svc := &mockEventService{
		getUserActivityFn: func(userID uint, _ services.ActivityFilter, _ pagination.Window) (*pagination.ListResponse[models.AdminEventLog], error) {
			resp := pagination.NewListResponse([]models.AdminEventLog{
				{ID: 1, UserID: userID, EventType: models.EventTypeLogin, Status: models.EventStatusSuccess, Timestamp: time.Now().UTC()},
			}, 1)
			return &resp, nil
		},
	}
	r := setupEventRouter(NewEventHandler(svc), testPrincipal(1, false))

	rec := doRequest(r, http.MethodGet, "/events/users/1/export", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != export.ContentType {
		t.Errorf("unexpected content type %q", ct)
	}
	f, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	if err != nil {
		t.Fatalf("response is not a workbook: %v", err)
	}
	defer f.Close()
	rows, err := f.GetRows("Events")
	if err != nil {
		t.Fatalf("failed to read rows: %v", err)
	}
	if len(rows) != 2 {
		t.Errorf("expected header plus one row, got %d rows", len(rows))
	}
}

func TestEventHandler_ResourceHistory(t *testing.T) {
	var gotType, gotID string
	svc := &mockEventService{
		getResourceHistoryFn: func(rtype, rid string, _ pagination.Window) (*pagination.ListResponse[models.AdminAuditLog], error) {
			gotType, gotID = rtype, rid
			resp := pagination.NewListResponse([]models.AdminAuditLog{{ID: 1}}, 1)
			return &resp, nil
		},
	}
	r := setupEventRouter(NewEventHandler(svc), testPrincipal(1, false))

	rec := doRequest(r, http.MethodGet, "/events/resources/Account/42", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if gotType != "Account" || gotID != "42" {
		t.Errorf("unexpected resource %q/%q", gotType, gotID)
	}
}

func TestEventHandler_SecurityAlerts(t *testing.T) {
	t.Run("superuser gets alerts with default window", func(t *testing.T) {
		var gotHours int
		svc := &mockEventService{
			getSecurityAlertsFn: func(hours int) ([]services.SecurityAlert, error) {
				gotHours = hours
				return []services.SecurityAlert{{
					Type:     services.AlertMultipleFailedLogins,
					Severity: services.AlertSeverityHigh,
					Details:  services.AlertDetails{IPAddress: "10.0.0.1", Username: "admin", Attempts: 6},
				}}, nil
			},
		}
		r := setupEventRouter(NewEventHandler(svc), testPrincipal(1, true))

		rec := doRequest(r, http.MethodGet, "/events/alerts", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if gotHours != services.DefaultLookbackHours {
			t.Errorf("expected default lookback, got %d", gotHours)
		}
		alerts := parseJSON(t, rec)["alerts"].([]interface{})
		if len(alerts) != 1 {
			t.Fatalf("expected one alert, got %d", len(alerts))
		}
		details := alerts[0].(map[string]interface{})["details"].(map[string]interface{})
		if details["attempts"] != float64(6) {
			t.Errorf("expected 6 attempts, got %v", details["attempts"])
		}
	})

	t.Run("custom hours", func(t *testing.T) {
		var gotHours int
		svc := &mockEventService{
			getSecurityAlertsFn: func(hours int) ([]services.SecurityAlert, error) {
				gotHours = hours
				return nil, nil
			},
		}
		r := setupEventRouter(NewEventHandler(svc), testPrincipal(1, true))

		rec := doRequest(r, http.MethodGet, "/events/alerts?hours=6", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if gotHours != 6 {
			t.Errorf("expected 6, got %d", gotHours)
		}
	})

	t.Run("rejects non-positive hours", func(t *testing.T) {
		r := setupEventRouter(NewEventHandler(&mockEventService{}), testPrincipal(1, true))

		rec := doRequest(r, http.MethodGet, "/events/alerts?hours=0", "")

		if rec.Code != http.StatusUnprocessableEntity {
			t.Fatalf("expected 422, got %d", rec.Code)
		}
	})

	t.Run("non-superuser is forbidden", func(t *testing.T) {
		r := setupEventRouter(NewEventHandler(&mockEventService{}), testPrincipal(1, false))

		rec := doRequest(r, http.MethodGet, "/events/alerts", "")

		if rec.Code != http.StatusForbidden {
			t.Fatalf("expected 403, got %d", rec.Code)
		}
	})
}
