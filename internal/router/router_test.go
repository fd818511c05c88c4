package router

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"crudadmin/internal/demo"
	"crudadmin/internal/export"
	"crudadmin/internal/handlers"
	"crudadmin/internal/models"
	"crudadmin/internal/registry"
	"crudadmin/internal/services"
	"crudadmin/internal/testutil"
	"crudadmin/internal/validator"
)

func init() {
	gin.SetMode(gin.TestMode)
	validator.Register()
}

type testServer struct {
	t      *testing.T
	engine *gin.Engine
	db     *gorm.DB
	events services.EventServicer
}

func newTestServer(t *testing.T, opts ...func(*Deps)) *testServer {
	t.Helper()
	db := testutil.SetupTestDB(t)
	t.Cleanup(func() { testutil.TeardownTestDB(t, db) })

	tokens, err := services.NewTokenService(services.TokenConfig{
		SecretKey:  "router-test-secret",
		Algorithm:  "HS256",
		AccessTTL:  30 * time.Minute,
		RefreshTTL: 24 * time.Hour,
	}, services.NewBlacklistStore(db))
	require.NoError(t, err)

	users := services.NewAdminUserServiceWithCost(db, bcrypt.MinCost)
	sessions := services.NewSessionService(db, services.SessionConfig{MaxSessions: 5, Timeout: 30 * time.Minute})
	events := services.NewEventService(db)
	auth := services.NewAuthService(users, sessions, tokens)

	_, err = users.CreateUser(context.Background(), services.NewAdminUser{Username: "admin", Password: "password123", IsSuperuser: true})
	require.NoError(t, err)
	_, err = users.CreateUser(context.Background(), services.NewAdminUser{Username: "viewer", Password: "password123"})
	require.NoError(t, err)

	reg := registry.New()
	userView, err := registry.NewAdminUserView(db, users)
	require.NoError(t, err)
	sessionView, err := registry.NewAdminSessionView(db)
	require.NoError(t, err)
	reg.MustRegister(userView, sessionView)
	require.NoError(t, demo.RegisterViews(reg, db))

	deps := Deps{
		MountPath:   "admin",
		Auth:        auth,
		Tokens:      tokens,
		Sessions:    sessions,
		Events:      events,
		Registry:    reg,
		TrackEvents: true,
		Cookies:     handlers.CookieConfig{Path: "/admin"},
	}
	for _, opt := range opts {
		opt(&deps)
	}
	engine := New(deps)
	return &testServer{t: t, engine: engine, db: db, events: events}
}

func (s *testServer) do(method, path, body string, cookies []*http.Cookie) *httptest.ResponseRecorder {
	s.t.Helper()
	return s.doWithHeaders(method, path, body, cookies, nil)
}

func (s *testServer) doWithHeaders(method, path, body string, cookies []*http.Cookie, headers map[string]string) *httptest.ResponseRecorder {
	s.t.Helper()
	var reader io.Reader = http.NoBody
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("User-Agent", "router-test")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	s.engine.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) login(username string) []*http.Cookie {
	s.t.Helper()
	rec := s.do(http.MethodPost, "/admin/login", fmt.Sprintf(`{"username":%q,"password":"password123"}`, username), nil)
	require.Equal(s.t, http.StatusOK, rec.Code, rec.Body.String())
	return rec.Result().Cookies()
}

func body(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func errCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	e, _ := body(t, rec)["error"].(map[string]any)
	code, _ := e["code"].(string)
	return code
}

func (s *testServer) eventsOfType(eventType models.EventType) []models.AdminEventLog {
	s.t.Helper()
	var out []models.AdminEventLog
	require.NoError(s.t, s.db.Where("event_type = ?", eventType).Order("id").Find(&out).Error)
	return out
}

func TestHealthAndSwaggerDisabled(t *testing.T) {
	s := newTestServer(t)

	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/health", "", nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/swagger/index.html", "", nil).Code)
}

func TestLoginSetsCookiesAndAuthenticates(t *testing.T) {
	s := newTestServer(t)

	cookies := s.login("admin")

	byName := map[string]*http.Cookie{}
	for _, c := range cookies {
		byName[c.Name] = c
	}
	require.Contains(t, byName, "access_token")
	require.Contains(t, byName, "session_id")
	require.Contains(t, byName, "refresh_token")
	assert.Equal(t, 1800, byName["access_token"].MaxAge)
	assert.Equal(t, 1800, byName["session_id"].MaxAge)
	assert.Equal(t, 86400, byName["refresh_token"].MaxAge)
	assert.True(t, byName["access_token"].HttpOnly)
	assert.Equal(t, "/admin", byName["access_token"].Path)

	rec := s.do(http.MethodGet, "/admin/me", "", cookies)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	user := body(t, rec)["user"].(map[string]any)
	assert.Equal(t, "admin", user["username"])

	logins := s.eventsOfType(models.EventTypeLogin)
	require.Len(t, logins, 1)
	assert.Equal(t, models.EventStatusSuccess, logins[0].Status)
	assert.Equal(t, byName["session_id"].Value, logins[0].SessionID)
}

func TestProtectedRoutesRequireAuth(t *testing.T) {
	s := newTestServer(t)

	for _, path := range []string{"/admin/", "/admin/me", "/admin/models", "/admin/sessions", "/admin/events/alerts", "/admin/events/resources/Account/1/export"} {
		rec := s.do(http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
		assert.Equal(t, "UNAUTHORIZED", errCode(t, rec), path)
	}
}

func TestFailedLoginsRaiseAlert(t *testing.T) {
	s := newTestServer(t)

	for i := 0; i < services.FailedLoginThreshold; i++ {
		rec := s.do(http.MethodPost, "/admin/login", `{"username":"admin","password":"wrong-password"}`, nil)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "INVALID_CREDENTIALS", errCode(t, rec))
	}

	failed := s.eventsOfType(models.EventTypeFailedLogin)
	require.Len(t, failed, services.FailedLoginThreshold)
	assert.Equal(t, models.EventStatusFailure, failed[0].Status)
	assert.Equal(t, "admin", models.DecodeJSON(failed[0].Details)["username"])

	cookies := s.login("admin")
	rec := s.do(http.MethodGet, "/admin/events/alerts", "", cookies)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	alerts := body(t, rec)["alerts"].([]any)
	require.Len(t, alerts, 1)
	details := alerts[0].(map[string]any)["details"].(map[string]any)
	assert.Equal(t, "admin", details["username"])
	assert.Equal(t, float64(services.FailedLoginThreshold), details["attempts"])
}

func (s *testServer) alerts(cookies []*http.Cookie) []map[string]any {
	s.t.Helper()
	rec := s.do(http.MethodGet, "/admin/events/alerts", "", cookies)
	require.Equal(s.t, http.StatusOK, rec.Code, rec.Body.String())
	var out []map[string]any
	for _, a := range body(s.t, rec)["alerts"].([]any) {
		out = append(out, a.(map[string]any)["details"].(map[string]any))
	}
	return out
}

func TestFailedLoginsIgnoreForwardedForFromUntrustedPeer(t *testing.T) {
	s := newTestServer(t)

	for i := 0; i < services.FailedLoginThreshold; i++ {
		rec := s.doWithHeaders(http.MethodPost, "/admin/login", `{"username":"admin","password":"wrong-password"}`, nil,
			map[string]string{"X-Forwarded-For": fmt.Sprintf("203.0.113.%d", i+1)})
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	}

	for _, ev := range s.eventsOfType(models.EventTypeFailedLogin) {
		assert.Equal(t, "192.0.2.1", ev.IPAddress)
	}

	alerts := s.alerts(s.login("admin"))
	require.Len(t, alerts, 1)
	assert.Equal(t, "192.0.2.1", alerts[0]["ip_address"])
	assert.Equal(t, float64(services.FailedLoginThreshold), alerts[0]["attempts"])
}

func TestForwardedForHonouredFromTrustedProxy(t *testing.T) {
	s := newTestServer(t, func(d *Deps) { d.TrustedProxies = []string{"192.0.2.1"} })

	rec := s.doWithHeaders(http.MethodPost, "/admin/login", `{"username":"admin","password":"wrong-password"}`, nil,
		map[string]string{"X-Forwarded-For": "203.0.113.9"})
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	failed := s.eventsOfType(models.EventTypeFailedLogin)
	require.Len(t, failed, 1)
	assert.Equal(t, "203.0.113.9", failed[0].IPAddress)
}

func TestFailedLoginsGroupUsernameVariants(t *testing.T) {
	s := newTestServer(t)

	for _, name := range []string{"admin", "Admin", "ADMIN", "aDmin", " admin "} {
		rec := s.do(http.MethodPost, "/admin/login", fmt.Sprintf(`{"username":%q,"password":"wrong-password"}`, name), nil)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	}

	alerts := s.alerts(s.login("admin"))
	require.Len(t, alerts, 1)
	assert.Equal(t, "admin", alerts[0]["username"])
	assert.Equal(t, float64(5), alerts[0]["attempts"])
}

func TestModelCRUDIsAudited(t *testing.T) {
	s := newTestServer(t)
	cookies := s.login("admin")

	rec := s.do(http.MethodPost, "/admin/models/Account", `{"name":"Ops Wallet","type":"cash","balance":100}`, cookies)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	id := fmt.Sprint(body(t, rec)["data"].(map[string]any)["id"])

	rec = s.do(http.MethodPatch, "/admin/models/Account/"+id, `{"name":"Treasury"}`, cookies)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(http.MethodGet, "/admin/events/resources/Account/"+id, "", cookies)
	require.Equal(t, http.StatusOK, rec.Code)
	history := body(t, rec)
	assert.Equal(t, float64(2), history["total_count"])

	var update models.AdminAuditLog
	require.NoError(t, s.db.Where("resource_type = ? AND resource_id = ? AND action = ?", "Account", id, "update").First(&update).Error)
	changes := models.DecodeJSON(update.Changes)
	require.Contains(t, changes, "name")
	assert.Equal(t, map[string]any{"old": "Ops Wallet", "new": "Treasury"}, changes["name"])
	assert.NotContains(t, changes, "balance")

	var event models.AdminEventLog
	require.NoError(t, s.db.First(&event, update.EventID).Error)
	assert.Equal(t, models.EventTypeUpdate, event.EventType)
	require.NotNil(t, event.ResourceID)
	assert.Equal(t, id, *event.ResourceID)

	rec = s.do(http.MethodDelete, "/admin/models/Account/"+id, "", cookies)
	require.Equal(t, http.StatusOK, rec.Code)
	var deleted models.AdminAuditLog
	require.NoError(t, s.db.Where("resource_id = ? AND action = ?", id, "delete").First(&deleted).Error)
	assert.Equal(t, "Treasury", models.DecodeJSON(deleted.PreviousState)["name"])
	assert.Nil(t, models.DecodeJSON(deleted.NewState))
}

func TestValidationFailureIsLogged(t *testing.T) {
	s := newTestServer(t)
	cookies := s.login("admin")

	rec := s.do(http.MethodPost, "/admin/models/Account", `{"type":"gold"}`, cookies)

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	fields := body(t, rec)["error"].(map[string]any)["fields"].(map[string]any)
	assert.Contains(t, fields, "name")
	assert.Contains(t, fields, "type")

	creates := s.eventsOfType(models.EventTypeCreate)
	require.Len(t, creates, 1)
	assert.Equal(t, models.EventStatusFailure, creates[0].Status)
	var audits int64
	s.db.Model(&models.AdminAuditLog{}).Count(&audits)
	assert.Zero(t, audits)
}

func TestResourceHistoryExport(t *testing.T) {
	s := newTestServer(t)
	cookies := s.login("admin")

	rec := s.do(http.MethodPost, "/admin/models/Account", `{"name":"Ops Wallet","type":"cash","balance":100}`, cookies)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	id := fmt.Sprint(body(t, rec)["data"].(map[string]any)["id"])

	rec = s.do(http.MethodGet, "/admin/events/resources/Account/"+id+"/export", "", cookies)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, export.ContentType, rec.Header().Get("Content-Type"))

	f, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("Audit")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "create", rows[1][5])
}

func TestUnknownModelAndRow(t *testing.T) {
	s := newTestServer(t)
	cookies := s.login("admin")

	rec := s.do(http.MethodGet, "/admin/models/Ghost", "", cookies)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "MODEL_NOT_REGISTERED", errCode(t, rec))

	rec = s.do(http.MethodGet, "/admin/models/Account/4242", "", cookies)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", errCode(t, rec))
}

func TestLogoutRevokesTokens(t *testing.T) {
	s := newTestServer(t)
	cookies := s.login("admin")

	rec := s.do(http.MethodPost, "/admin/logout", "", cookies)
	require.Equal(t, http.StatusOK, rec.Code)
	for _, c := range rec.Result().Cookies() {
		assert.True(t, c.MaxAge < 0, "cookie %s should be cleared", c.Name)
	}

	rec = s.do(http.MethodGet, "/admin/me", "", cookies)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "TOKEN_REVOKED", errCode(t, rec))

	rec = s.do(http.MethodPost, "/admin/refresh", "", cookies)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "TOKEN_REVOKED", errCode(t, rec))

	logouts := s.eventsOfType(models.EventTypeLogout)
	require.Len(t, logouts, 1)
	assert.NotZero(t, logouts[0].UserID)

	rec = s.do(http.MethodPost, "/admin/logout", "", cookies)
	assert.Equal(t, http.StatusOK, rec.Code, "logout is idempotent")
}

func TestRefreshKeepsSession(t *testing.T) {
	s := newTestServer(t)
	cookies := s.login("admin")

	var refresh *http.Cookie
	for _, c := range cookies {
		if c.Name == "refresh_token" {
			refresh = c
		}
	}
	require.NotNil(t, refresh)

	rec := s.do(http.MethodPost, "/admin/refresh", "", []*http.Cookie{refresh})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.NotEmpty(t, body(t, rec)["access_token"])

	rec = s.do(http.MethodGet, "/admin/me", "", rec.Result().Cookies())
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestSessionRevocation(t *testing.T) {
	s := newTestServer(t)
	first := s.login("admin")
	second := s.login("admin")
	viewer := s.login("viewer")

	rec := s.do(http.MethodGet, "/admin/sessions", "", first)
	require.Equal(t, http.StatusOK, rec.Code)
	list := body(t, rec)["data"].([]any)
	require.Len(t, list, 2)

	var secondID string
	for _, c := range second {
		if c.Name == "session_id" {
			secondID = c.Value
		}
	}
	require.NotEmpty(t, secondID)

	rec = s.do(http.MethodDelete, "/admin/sessions/"+secondID, "", viewer)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(http.MethodDelete, "/admin/sessions/"+secondID, "", first)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(http.MethodGet, "/admin/me", "", second)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "INVALID_SESSION", errCode(t, rec))

	var audit models.AdminAuditLog
	require.NoError(t, s.db.Where("resource_type = ? AND resource_id = ?", registry.AdminSessionView, secondID).First(&audit).Error)
	assert.Equal(t, true, models.DecodeJSON(audit.PreviousState)["is_active"])
	assert.Equal(t, false, models.DecodeJSON(audit.NewState)["is_active"])
}

func TestDashboard(t *testing.T) {
	s := newTestServer(t)
	cookies := s.login("admin")

	rec := s.do(http.MethodGet, "/admin/", "", cookies)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	result := body(t, rec)
	assert.Len(t, result["models"].([]any), 4)
	sessions := result["sessions"].(map[string]any)
	assert.Equal(t, float64(1), sessions["active"])
}
