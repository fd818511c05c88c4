package middleware

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"crudadmin/internal/models"
	"crudadmin/internal/services"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func doRequest(r *gin.Engine, method, path, body string, mutate ...func(*http.Request)) *httptest.ResponseRecorder {
	var reader io.Reader = http.NoBody
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, m := range mutate {
		m(req)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func parseBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var result map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse response body: %v", err)
	}
	return result
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	errObj, ok := parseBody(t, rec)["error"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected error object in %s", rec.Body.String())
	}
	code, _ := errObj["code"].(string)
	return code
}

func testPrincipal(userID uint, sessionID string) *services.Principal {
	return &services.Principal{
		User:    &models.AdminUser{Base: models.Base{ID: userID}, Username: "admin"},
		Session: &models.AdminSession{SessionID: sessionID, IsActive: true},
		Token:   &services.TokenData{UserID: userID, SessionID: sessionID, TokenType: services.TokenTypeAccess},
	}
}
