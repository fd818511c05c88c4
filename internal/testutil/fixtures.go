package testutil

import (
	"encoding/json"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"crudadmin/internal/hostapp"
	"crudadmin/internal/models"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// TestPassword is the password of every fixture admin user.
const TestPassword = "password123"

// counter provides unique values across fixtures within a test run.
var counter atomic.Int64

func nextID() int64 {
	return counter.Add(1)
}

// CreateTestAdminUser creates an admin user with a unique username.
func CreateTestAdminUser(t *testing.T, db *gorm.DB) *models.AdminUser {
	t.Helper()
	return CreateTestAdminUserWithName(t, db, fmt.Sprintf("admin%d", nextID()))
}

// CreateTestAdminUserWithName creates an admin user with the given username
// and TestPassword.
func CreateTestAdminUserWithName(t *testing.T, db *gorm.DB, username string) *models.AdminUser {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(TestPassword), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	user := &models.AdminUser{
		Username:       username,
		HashedPassword: string(hash),
		IsSuperuser:    true,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to create test admin user: %v", err)
	}
	return user
}

// CreateTestSession inserts an active session last used at lastActivity.
func CreateTestSession(t *testing.T, db *gorm.DB, userID uint, lastActivity time.Time) *models.AdminSession {
	t.Helper()

	session := &models.AdminSession{
		UserID:          userID,
		SessionID:       fmt.Sprintf("test-session-%d", nextID()),
		IPAddress:       "127.0.0.1",
		UserAgent:       "testutil",
		DeviceInfo:      datatypes.JSON(`{}`),
		CreatedAt:       lastActivity.UTC(),
		LastActivity:    lastActivity.UTC(),
		IsActive:        true,
		SessionMetadata: datatypes.JSON(`{}`),
	}
	if err := db.Create(session).Error; err != nil {
		t.Fatalf("failed to create test session: %v", err)
	}
	return session
}

// CreateTestEvent inserts an event with the given timestamp and details.
func CreateTestEvent(t *testing.T, db *gorm.DB, eventType models.EventType, status models.EventStatus, userID uint, ts time.Time, details map[string]any) *models.AdminEventLog {
	t.Helper()

	raw := []byte(`{}`)
	if details != nil {
		var err error
		if raw, err = json.Marshal(details); err != nil {
			t.Fatalf("failed to marshal event details: %v", err)
		}
	}

	event := &models.AdminEventLog{
		Timestamp: ts.UTC(),
		EventType: eventType,
		Status:    status,
		UserID:    userID,
		IPAddress: "10.0.0.1",
		Details:   datatypes.JSON(raw),
	}
	if err := db.Create(event).Error; err != nil {
		t.Fatalf("failed to create test event: %v", err)
	}
	return event
}

// CreateTestAudit inserts an audit entry for the given event and timestamp.
func CreateTestAudit(t *testing.T, db *gorm.DB, eventID uint, resourceType, resourceID string, ts time.Time) *models.AdminAuditLog {
	t.Helper()

	audit := &models.AdminAuditLog{
		EventID:       eventID,
		Timestamp:     ts.UTC(),
		ResourceType:  resourceType,
		ResourceID:    resourceID,
		Action:        string(models.EventTypeUpdate),
		Changes:       datatypes.JSON(`{}`),
		AuditMetadata: datatypes.JSON(`{}`),
	}
	if err := db.Create(audit).Error; err != nil {
		t.Fatalf("failed to create test audit: %v", err)
	}
	return audit
}

// CreateTestAccount creates a host application account.
func CreateTestAccount(t *testing.T, db *gorm.DB) *hostapp.Account {
	t.Helper()

	account := &hostapp.Account{
		Name:     fmt.Sprintf("Test Account %d", nextID()),
		Type:     hostapp.AccountTypeCash,
		Currency: "USD",
		IsActive: true,
	}
	if err := db.Create(account).Error; err != nil {
		t.Fatalf("failed to create test account: %v", err)
	}
	return account
}

// CreateTestTransaction creates a pending host application transaction.
func CreateTestTransaction(t *testing.T, db *gorm.DB, accountID uint, amount int64) *hostapp.Transaction {
	t.Helper()

	tx := &hostapp.Transaction{
		AccountID: accountID,
		Amount:    amount,
		Status:    hostapp.TransactionStatusPending,
		Date:      time.Now().UTC(),
	}
	if err := db.Create(tx).Error; err != nil {
		t.Fatalf("failed to create test transaction: %v", err)
	}
	return tx
}
