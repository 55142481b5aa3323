package handler

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dukerupert/hearth/internal/auth"
	"github.com/dukerupert/hearth/internal/database"
	"github.com/dukerupert/hearth/internal/middleware"
	"github.com/dukerupert/hearth/internal/store"
)

func setupAuthHandler(t *testing.T) (*AuthHandler, *sql.DB) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		t.Fatalf("enable foreign keys: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	h := NewAuthHandler(
		store.NewUserStore(db),
		store.NewProfileStore(db),
		store.NewHouseholdStore(db),
		store.NewSessionStore(db),
		slog.New(slog.DiscardHandler),
	)
	return h, db
}

func postJSON(handler http.HandlerFunc, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func sessionCookie(rec *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == middleware.SessionCookieName {
			return c
		}
	}
	return nil
}

func TestRegisterCreatesAccountProfileAndHousehold(t *testing.T) {
	h, _ := setupAuthHandler(t)

	rec := postJSON(h.Register, `{"email":"Alice@Example.com","password":"supersecret"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body.String())
	}

	var body struct {
		User struct {
			Email string `json:"email"`
		} `json:"user"`
		Profile struct {
			Name string `json:"name"`
		} `json:"profile"`
		Household struct {
			Name string `json:"name"`
		} `json:"household"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body.User.Email != "alice@example.com" {
		t.Errorf("email = %q, want lowercased", body.User.Email)
	}
	// Name defaults to the email's local part, household to "<name>'s household".
	if body.Profile.Name != "alice" {
		t.Errorf("profile name = %q, want alice", body.Profile.Name)
	}
	if body.Household.Name != "alice's household" {
		t.Errorf("household name = %q", body.Household.Name)
	}

	cookie := sessionCookie(rec)
	if cookie == nil || cookie.Value == "" {
		t.Fatal("expected session cookie")
	}
	if !cookie.HttpOnly {
		t.Error("session cookie should be HttpOnly")
	}
}

func TestRegisterRejectsWeakInput(t *testing.T) {
	h, _ := setupAuthHandler(t)

	rec := postJSON(h.Register, `{"email":"not-an-email","password":"supersecret"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad email status = %d, want 400", rec.Code)
	}

	rec = postJSON(h.Register, `{"email":"a@example.com","password":"short"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("short password status = %d, want 400", rec.Code)
	}
}

func TestRegisterDuplicateEmailConflicts(t *testing.T) {
	h, _ := setupAuthHandler(t)

	if rec := postJSON(h.Register, `{"email":"a@example.com","password":"supersecret"}`); rec.Code != http.StatusCreated {
		t.Fatalf("first register = %d", rec.Code)
	}
	rec := postJSON(h.Register, `{"email":"a@example.com","password":"othersecret"}`)
	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", rec.Code)
	}
}

func TestLogin(t *testing.T) {
	h, _ := setupAuthHandler(t)

	if rec := postJSON(h.Register, `{"email":"a@example.com","password":"supersecret"}`); rec.Code != http.StatusCreated {
		t.Fatalf("register = %d", rec.Code)
	}

	rec := postJSON(h.Login, `{"email":"a@example.com","password":"supersecret"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if sessionCookie(rec) == nil {
		t.Error("expected session cookie on login")
	}

	rec = postJSON(h.Login, `{"email":"a@example.com","password":"wrongpassword"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("wrong password status = %d, want 401", rec.Code)
	}

	rec = postJSON(h.Login, `{"email":"nobody@example.com","password":"supersecret"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("unknown email status = %d, want 401", rec.Code)
	}
}

func TestLogoutClearsSession(t *testing.T) {
	h, db := setupAuthHandler(t)

	reg := postJSON(h.Register, `{"email":"a@example.com","password":"supersecret"}`)
	cookie := sessionCookie(reg)
	if cookie == nil {
		t.Fatal("no session cookie from register")
	}

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	h.Logout(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	sessions := store.NewSessionStore(db)
	sess, err := sessions.GetByToken(cookie.Value)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if sess != nil {
		t.Error("session survived logout")
	}

	cleared := sessionCookie(rec)
	if cleared == nil || cleared.MaxAge != -1 {
		t.Errorf("expected expired cookie, got %+v", cleared)
	}
}

func TestSwitchHouseholdRequiresMembership(t *testing.T) {
	h, db := setupAuthHandler(t)

	reg := postJSON(h.Register, `{"email":"a@example.com","password":"supersecret"}`)
	if reg.Code != http.StatusCreated {
		t.Fatalf("register = %d", reg.Code)
	}

	// A household the caller does not belong to.
	ps := store.NewProfileStore(db)
	hs := store.NewHouseholdStore(db)
	stranger, _ := ps.Create("Stranger", nil, nil, nil)
	foreign, _ := hs.Create("Elsewhere", nil, stranger.ID)

	profile, _ := ps.GetByUserID(1)
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(
		`{"household_id":`+idStr(foreign.ID)+`}`))
	req = req.WithContext(auth.WithAuth(req.Context(), auth.AuthContext{
		UserID:    1,
		ProfileID: profile.ID,
		SessionID: 1,
	}))
	rec := httptest.NewRecorder()
	h.SwitchHousehold(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403: %s", rec.Code, rec.Body.String())
	}
}
