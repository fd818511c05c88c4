package services

import (
	"context"
	"testing"
	"time"

	"crudadmin/internal/testutil"
)

func TestGormBlacklistStore(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	store := NewBlacklistStore(db)
	ctx := context.Background()
	now := time.Now().UTC()

	testutil.AssertNoError(t, store.Add(ctx, "digest-a", now.Add(time.Hour)))
	testutil.AssertNoError(t, store.Add(ctx, "digest-a", now.Add(2*time.Hour)))
	testutil.AssertNoError(t, store.Add(ctx, "digest-b", now.Add(-time.Hour)))

	ok, err := store.Contains(ctx, "digest-a")
	testutil.AssertNoError(t, err)
	if !ok {
		t.Error("expected digest-a to be blacklisted")
	}
	ok, err = store.Contains(ctx, "digest-c")
	testutil.AssertNoError(t, err)
	if ok {
		t.Error("expected digest-c to be absent")
	}

	n, err := store.PurgeExpired(ctx, now)
	testutil.AssertNoError(t, err)
	if n != 1 {
		t.Errorf("expected 1 purged, got %d", n)
	}
	if ok, _ := store.Contains(ctx, "digest-b"); ok {
		t.Error("expected digest-b to be purged")
	}
}

func TestHashToken(t *testing.T) {
	a, b := HashToken("token"), HashToken("token")
	if a != b || len(a) != 64 {
		t.Errorf("expected stable sha256 hex digest, got %q", a)
	}
	if HashToken("other") == a {
		t.Error("expected distinct digests")
	}
}
