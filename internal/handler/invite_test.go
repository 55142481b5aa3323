package handler

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dukerupert/hearth/internal/auth"
	"github.com/dukerupert/hearth/internal/database"
	"github.com/dukerupert/hearth/internal/email"
	"github.com/dukerupert/hearth/internal/invite"
	"github.com/dukerupert/hearth/internal/model"
	"github.com/dukerupert/hearth/internal/store"
)

type inviteFixture struct {
	handler    *InviteHandler
	issuer     *invite.Issuer
	households *store.HouseholdStore

	owner   *model.Profile
	invitee *model.Profile
	h       *model.Household
}

func setupInviteFixture(t *testing.T) *inviteFixture {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		t.Fatalf("enable foreign keys: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	us := store.NewUserStore(db)
	ps := store.NewProfileStore(db)
	hs := store.NewHouseholdStore(db)

	newUserProfile := func(name, email string) *model.Profile {
		user, err := us.Create(email, name, "hash")
		if err != nil {
			t.Fatalf("create user %s: %v", email, err)
		}
		p, err := ps.Create(name, nil, nil, &user.ID)
		if err != nil {
			t.Fatalf("create profile %s: %v", name, err)
		}
		return p
	}

	owner := newUserProfile("Owner", "owner@example.com")
	invitee := newUserProfile("Newcomer", "new@example.com")

	h, err := hs.Create("Smith Family", nil, owner.ID)
	if err != nil {
		t.Fatalf("create household: %v", err)
	}

	issuer := invite.NewIssuer([]byte("test-invite-secret"), time.Hour)
	// Empty Postmark token: Send falls back to returning the raw token.
	emails := email.NewClient("", "", "http://localhost")
	handler := NewInviteHandler(issuer, emails, us, ps, hs, slog.New(slog.DiscardHandler))

	return &inviteFixture{
		handler:    handler,
		issuer:     issuer,
		households: hs,
		owner:      owner,
		invitee:    invitee,
		h:          h,
	}
}

func (f *inviteFixture) request(method, target string, body []byte, p *model.Profile, role string) *http.Request {
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	return req.WithContext(auth.WithAuth(req.Context(), auth.AuthContext{
		UserID:      *p.UserID,
		ProfileID:   p.ID,
		HouseholdID: f.h.ID,
		Role:        role,
	}))
}

func TestInviteSendReturnsTokenWithoutEmail(t *testing.T) {
	f := setupInviteFixture(t)

	rec := httptest.NewRecorder()
	body := []byte(`{"email":"new@example.com","role":"member"}`)
	f.handler.Send(rec, f.request(http.MethodPost, "/api/invites", body, f.owner, model.RoleOwner))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp["status"] != "created" || resp["token"] == "" {
		t.Fatalf("response = %v", resp)
	}

	claims, err := f.issuer.Verify(resp["token"])
	if err != nil {
		t.Fatalf("verify issued token: %v", err)
	}
	if claims.HouseholdID != f.h.ID || claims.Email != "new@example.com" || claims.Role != model.RoleMember {
		t.Errorf("claims = %+v", claims)
	}
}

func TestInviteSendRequiresManager(t *testing.T) {
	f := setupInviteFixture(t)

	rec := httptest.NewRecorder()
	body := []byte(`{"email":"new@example.com"}`)
	f.handler.Send(rec, f.request(http.MethodPost, "/api/invites", body, f.owner, model.RoleMember))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
}

func TestInviteSendRejectsOwnerRole(t *testing.T) {
	f := setupInviteFixture(t)

	rec := httptest.NewRecorder()
	body := []byte(`{"email":"new@example.com","role":"owner"}`)
	f.handler.Send(rec, f.request(http.MethodPost, "/api/invites", body, f.owner, model.RoleOwner))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if got := errorBody(t, rec); got != "Invalid data" {
		t.Errorf("error = %q", got)
	}
}

func TestInviteAcceptJoinsHousehold(t *testing.T) {
	f := setupInviteFixture(t)

	token, err := f.issuer.Issue(f.h.ID, "new@example.com", model.RoleMember)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	rec := httptest.NewRecorder()
	body, _ := json.Marshal(map[string]string{"token": token})
	f.handler.Accept(rec, f.request(http.MethodPost, "/api/invites/accept", body, f.invitee, model.RoleMember))
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	m, err := f.households.GetMember(f.h.ID, f.invitee.ID)
	if err != nil {
		t.Fatalf("get member: %v", err)
	}
	if m == nil || m.Role != model.RoleMember {
		t.Errorf("membership = %+v", m)
	}
}

func TestInviteAcceptWrongEmailRejected(t *testing.T) {
	f := setupInviteFixture(t)

	token, err := f.issuer.Issue(f.h.ID, "someone-else@example.com", model.RoleMember)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	rec := httptest.NewRecorder()
	body, _ := json.Marshal(map[string]string{"token": token})
	f.handler.Accept(rec, f.request(http.MethodPost, "/api/invites/accept", body, f.invitee, model.RoleMember))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403: %s", rec.Code, rec.Body.String())
	}

	m, err := f.households.GetMember(f.h.ID, f.invitee.ID)
	if err != nil {
		t.Fatalf("get member: %v", err)
	}
	if m != nil {
		t.Errorf("invitee joined despite email mismatch: %+v", m)
	}
}

func TestInviteInfo(t *testing.T) {
	f := setupInviteFixture(t)

	token, err := f.issuer.Issue(f.h.ID, "new@example.com", model.RoleAdmin)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	rec := httptest.NewRecorder()
	f.handler.Info(rec, httptest.NewRequest(http.MethodGet, "/api/invites/info?token="+token, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp["household"] != "Smith Family" || resp["email"] != "new@example.com" || resp["role"] != model.RoleAdmin {
		t.Errorf("response = %v", resp)
	}

	rec = httptest.NewRecorder()
	f.handler.Info(rec, httptest.NewRequest(http.MethodGet, "/api/invites/info?token=garbage", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad token status = %d, want 400", rec.Code)
	}
}
