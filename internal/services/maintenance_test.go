package services

import (
	"context"
	"testing"
	"time"

	"gorm.io/gorm"

	"crudadmin/internal/models"
	"crudadmin/internal/testutil"
)

func newTestMaintenance(t *testing.T, trackEvents bool) (*Maintenance, *gorm.DB) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	t.Cleanup(func() { testutil.TeardownTestDB(t, db) })

	tokens, err := NewTokenService(TokenConfig{
		SecretKey:  "maintenance-secret",
		Algorithm:  "HS256",
		AccessTTL:  time.Minute,
		RefreshTTL: time.Hour,
	}, NewBlacklistStore(db))
	testutil.AssertNoError(t, err)

	return &Maintenance{
		Sessions:      NewSessionService(db, SessionConfig{MaxSessions: 5, Timeout: 30 * time.Minute}),
		Events:        NewEventService(db),
		Tokens:        tokens,
		Interval:      time.Hour,
		RetentionDays: 90,
		TrackEvents:   trackEvents,
	}, db
}

func TestMaintenanceSweepSessions(t *testing.T) {
	m, db := newTestMaintenance(t, true)
	idle := testutil.CreateTestSession(t, db, 1, time.Now().UTC().Add(-time.Hour))

	m.SweepSessions(context.Background())

	var stored models.AdminSession
	db.First(&stored, idle.ID)
	if stored.IsActive {
		t.Error("expected idle session to be deactivated")
	}
}

func TestMaintenanceApplyRetention(t *testing.T) {
	m, db := newTestMaintenance(t, true)
	old := time.Now().UTC().AddDate(0, 0, -120)
	testutil.CreateTestEvent(t, db, models.EventTypeLogin, models.EventStatusSuccess, 1, old, nil)
	testutil.CreateTestEvent(t, db, models.EventTypeLogin, models.EventStatusSuccess, 1, time.Now().UTC(), nil)
	stale := testutil.CreateTestSession(t, db, 1, old)
	db.Model(stale).Update("is_active", false)
	db.Create(&models.AdminTokenBlacklist{TokenHash: "expired", RevokedAt: old, ExpiresAt: old})

	m.ApplyRetention(context.Background())

	var events, sessions, blacklisted int64
	db.Model(&models.AdminEventLog{}).Count(&events)
	db.Model(&models.AdminSession{}).Count(&sessions)
	db.Model(&models.AdminTokenBlacklist{}).Count(&blacklisted)
	if events != 1 {
		t.Errorf("expected 1 event left, got %d", events)
	}
	if sessions != 0 {
		t.Errorf("expected stale session purged, got %d", sessions)
	}
	if blacklisted != 0 {
		t.Errorf("expected expired blacklist entry purged, got %d", blacklisted)
	}
}

func TestMaintenanceRetentionSkipsLogsWhenTrackingDisabled(t *testing.T) {
	m, db := newTestMaintenance(t, false)
	testutil.CreateTestEvent(t, db, models.EventTypeLogin, models.EventStatusSuccess, 1, time.Now().UTC().AddDate(0, 0, -120), nil)

	m.ApplyRetention(context.Background())

	var events int64
	db.Model(&models.AdminEventLog{}).Count(&events)
	if events != 1 {
		t.Errorf("expected logs to be kept, got %d", events)
	}
}

func TestMaintenanceRunStopsOnCancel(t *testing.T) {
	m, _ := newTestMaintenance(t, true)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("maintenance loop did not stop")
	}
}
