package store

import (
	"testing"
	"time"

	"github.com/dukerupert/hearth/internal/database"
)

func setupSessionTestDB(t *testing.T) (*SessionStore, *HouseholdStore, int64, int64, int64) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		t.Fatalf("enable foreign keys: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	us := NewUserStore(db)
	ps := NewProfileStore(db)
	hs := NewHouseholdStore(db)

	user, err := us.Create("alice@example.com", "Alice", "hash")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	profile, err := ps.Create("Alice", nil, nil, &user.ID)
	if err != nil {
		t.Fatalf("create profile: %v", err)
	}
	household, err := hs.Create("Smith Family", nil, profile.ID)
	if err != nil {
		t.Fatalf("create household: %v", err)
	}
	return NewSessionStore(db), hs, user.ID, profile.ID, household.ID
}

func TestSessionLifecycle(t *testing.T) {
	ss, _, userID, _, householdID := setupSessionTestDB(t)

	sess, err := ss.Create(userID, householdID, time.Hour)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if sess.Token == "" {
		t.Fatal("expected non-empty token")
	}

	got, err := ss.GetByToken(sess.Token)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if got == nil || got.UserID != userID || got.HouseholdID != householdID {
		t.Fatalf("got = %+v, want user %d household %d", got, userID, householdID)
	}

	if err := ss.Delete(sess.Token); err != nil {
		t.Fatalf("delete session: %v", err)
	}
	got, err = ss.GetByToken(sess.Token)
	if err != nil {
		t.Fatalf("get after delete: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil after delete, got %+v", got)
	}
}

func TestSessionExpiry(t *testing.T) {
	ss, _, userID, _, householdID := setupSessionTestDB(t)

	sess, err := ss.Create(userID, householdID, -time.Minute)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	got, err := ss.GetByToken(sess.Token)
	if err != nil {
		t.Fatalf("get expired session: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil for expired session, got %+v", got)
	}

	n, err := ss.DeleteExpired()
	if err != nil {
		t.Fatalf("delete expired: %v", err)
	}
	if n != 1 {
		t.Errorf("deleted = %d, want 1", n)
	}
}

func TestSessionSwitchHousehold(t *testing.T) {
	ss, hs, userID, profileID, householdID := setupSessionTestDB(t)

	sess, err := ss.Create(userID, householdID, time.Hour)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	second, err := hs.Create("Second House", nil, profileID)
	if err != nil {
		t.Fatalf("create second household: %v", err)
	}

	if err := ss.SwitchHousehold(sess.ID, second.ID); err != nil {
		t.Fatalf("switch household: %v", err)
	}
	got, _ := ss.GetByToken(sess.Token)
	if got.HouseholdID != second.ID {
		t.Errorf("household = %d, want %d", got.HouseholdID, second.ID)
	}
}
