package auth

import (
	"context"
	"testing"
)

func TestWithAuthAndFromContext(t *testing.T) {
	ac := AuthContext{
		UserID:      1,
		ProfileID:   4,
		HouseholdID: 2,
		Role:        "admin",
		SessionID:   3,
	}

	ctx := WithAuth(context.Background(), ac)
	got, ok := FromContext(ctx)
	if !ok {
		t.Fatal("expected AuthContext in context")
	}
	if got.UserID != 1 {
		t.Errorf("UserID = %d, want 1", got.UserID)
	}
	if got.ProfileID != 4 {
		t.Errorf("ProfileID = %d, want 4", got.ProfileID)
	}
	if got.HouseholdID != 2 {
		t.Errorf("HouseholdID = %d, want 2", got.HouseholdID)
	}
	if got.Role != "admin" {
		t.Errorf("Role = %q, want %q", got.Role, "admin")
	}
	if got.SessionID != 3 {
		t.Errorf("SessionID = %d, want 3", got.SessionID)
	}
}

func TestFromContextMissing(t *testing.T) {
	_, ok := FromContext(context.Background())
	if ok {
		t.Error("expected false for missing AuthContext")
	}
}

func TestHouseholdID(t *testing.T) {
	ctx := WithAuth(context.Background(), AuthContext{HouseholdID: 42})
	if HouseholdID(ctx) != 42 {
		t.Errorf("HouseholdID = %d, want 42", HouseholdID(ctx))
	}
}

func TestHouseholdIDMissing(t *testing.T) {
	if HouseholdID(context.Background()) != 0 {
		t.Error("expected 0 for missing context")
	}
}

func TestUserID(t *testing.T) {
	ctx := WithAuth(context.Background(), AuthContext{UserID: 7})
	if UserID(ctx) != 7 {
		t.Errorf("UserID = %d, want 7", UserID(ctx))
	}
}

func TestProfileID(t *testing.T) {
	ctx := WithAuth(context.Background(), AuthContext{ProfileID: 9})
	if ProfileID(ctx) != 9 {
		t.Errorf("ProfileID = %d, want 9", ProfileID(ctx))
	}
}

func TestCanManageMembers(t *testing.T) {
	cases := []struct {
		role string
		want bool
	}{
		{"owner", true},
		{"admin", true},
		{"member", false},
		{"", false},
	}
	for _, tc := range cases {
		ctx := WithAuth(context.Background(), AuthContext{Role: tc.role})
		if got := CanManageMembers(ctx); got != tc.want {
			t.Errorf("CanManageMembers(%q) = %v, want %v", tc.role, got, tc.want)
		}
	}
}

func TestCanManageMembersMissing(t *testing.T) {
	if CanManageMembers(context.Background()) {
		t.Error("expected false for missing context")
	}
}
