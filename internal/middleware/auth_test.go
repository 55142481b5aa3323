package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dukerupert/hearth/internal/auth"
	"github.com/dukerupert/hearth/internal/database"
	"github.com/dukerupert/hearth/internal/model"
	"github.com/dukerupert/hearth/internal/store"
)

type authFixture struct {
	sessions   *store.SessionStore
	profiles   *store.ProfileStore
	households *store.HouseholdStore
	session    *model.Session
	profile    *model.Profile
	household  *model.Household
}

func setupAuthTest(t *testing.T) *authFixture {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	users := store.NewUserStore(db)
	profiles := store.NewProfileStore(db)
	households := store.NewHouseholdStore(db)
	sessions := store.NewSessionStore(db)

	u, err := users.Create("alice@example.com", "Alice", "hash")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	p, err := profiles.Create("Alice", nil, nil, &u.ID)
	if err != nil {
		t.Fatalf("create profile: %v", err)
	}
	h, err := households.Create("Smiths", nil, p.ID)
	if err != nil {
		t.Fatalf("create household: %v", err)
	}
	sess, err := sessions.Create(u.ID, h.ID, time.Hour)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	return &authFixture{
		sessions:   sessions,
		profiles:   profiles,
		households: households,
		session:    sess,
		profile:    p,
		household:  h,
	}
}

func TestRequireAuthValidSession(t *testing.T) {
	f := setupAuthTest(t)

	var got auth.AuthContext
	handler := RequireAuth(f.sessions, f.profiles, f.households)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got, _ = auth.FromContext(r.Context())
		}),
	)

	req := httptest.NewRequest("GET", "/api/me", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: f.session.Token})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got.ProfileID != f.profile.ID {
		t.Errorf("ProfileID = %d, want %d", got.ProfileID, f.profile.ID)
	}
	if got.HouseholdID != f.household.ID {
		t.Errorf("HouseholdID = %d, want %d", got.HouseholdID, f.household.ID)
	}
	if got.Role != model.RoleOwner {
		t.Errorf("Role = %q, want owner", got.Role)
	}
}

func TestRequireAuthMissingCookie(t *testing.T) {
	f := setupAuthTest(t)

	handler := RequireAuth(f.sessions, f.profiles, f.households)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Error("handler should not be reached")
		}),
	)

	req := httptest.NewRequest("GET", "/api/me", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestRequireAuthUnknownToken(t *testing.T) {
	f := setupAuthTest(t)

	handler := RequireAuth(f.sessions, f.profiles, f.households)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Error("handler should not be reached")
		}),
	)

	req := httptest.NewRequest("GET", "/api/me", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "bogus"})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestRequireAuthExpiredSession(t *testing.T) {
	f := setupAuthTest(t)

	expired, err := f.sessions.Create(f.session.UserID, f.household.ID, -time.Minute)
	if err != nil {
		t.Fatalf("create expired session: %v", err)
	}

	handler := RequireAuth(f.sessions, f.profiles, f.households)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Error("handler should not be reached")
		}),
	)

	req := httptest.NewRequest("GET", "/api/me", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: expired.Token})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}
