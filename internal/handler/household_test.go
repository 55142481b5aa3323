package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/dukerupert/hearth/internal/auth"
	"github.com/dukerupert/hearth/internal/database"
	"github.com/dukerupert/hearth/internal/model"
	"github.com/dukerupert/hearth/internal/store"
)

type householdFixture struct {
	mux        *http.ServeMux
	households *store.HouseholdStore
	profiles   *store.ProfileStore

	owner  *model.Profile
	admin  *model.Profile
	member *model.Profile
	h      *model.Household
}

// setupHouseholdFixture builds a household with an owner, an admin and a
// plain member, routed the same way the server routes member management.
func setupHouseholdFixture(t *testing.T) *householdFixture {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		t.Fatalf("enable foreign keys: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	hs := store.NewHouseholdStore(db)
	ps := store.NewProfileStore(db)
	us := store.NewUserStore(db)

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
	admin := newUserProfile("Admin", "admin@example.com")
	member := newUserProfile("Member", "member@example.com")

	h, err := hs.Create("Smith Family", nil, owner.ID)
	if err != nil {
		t.Fatalf("create household: %v", err)
	}
	if _, err := hs.AddMember(h.ID, admin.ID, model.RoleAdmin); err != nil {
		t.Fatalf("add admin: %v", err)
	}
	if _, err := hs.AddMember(h.ID, member.ID, model.RoleMember); err != nil {
		t.Fatalf("add member: %v", err)
	}

	handler := NewHouseholdHandler(hs, ps, nil, slog.New(slog.DiscardHandler))
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/households/{id}", handler.Get)
	mux.HandleFunc("DELETE /api/households/{id}", handler.Delete)
	mux.HandleFunc("GET /api/households/{id}/members", handler.ListMembers)
	mux.HandleFunc("POST /api/households/{id}/members", handler.AddMember)
	mux.HandleFunc("PUT /api/households/{id}/members/{profileID}", handler.UpdateMemberRole)
	mux.HandleFunc("DELETE /api/households/{id}/members/{profileID}", handler.RemoveMember)

	return &householdFixture{
		mux:        mux,
		households: hs,
		profiles:   ps,
		owner:      owner,
		admin:      admin,
		member:     member,
		h:          h,
	}
}

func (f *householdFixture) do(t *testing.T, as *model.Profile, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("{}")
	} else {
		reader = strings.NewReader(body)
	}
	var userID int64
	if as.UserID != nil {
		userID = *as.UserID
	}
	req := httptest.NewRequest(method, path, reader)
	req = req.WithContext(auth.WithAuth(req.Context(), auth.AuthContext{
		UserID:      userID,
		ProfileID:   as.ID,
		HouseholdID: f.h.ID,
	}))
	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, req)
	return rec
}

func errorBody(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal error body %q: %v", rec.Body.String(), err)
	}
	return body["error"]
}

func idPath(h *model.Household, suffix string) string {
	return "/api/households/" + strconv.FormatInt(h.ID, 10) + suffix
}

func idStr(id int64) string {
	return strconv.FormatInt(id, 10)
}

func TestRemoveOwnerRejected(t *testing.T) {
	f := setupHouseholdFixture(t)

	rec := f.do(t, f.admin, http.MethodDelete, idPath(f.h, "/members/"+idStr(f.owner.ID)), "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if got := errorBody(t, rec); got != "Cannot remove household owner" {
		t.Errorf("error = %q, want %q", got, "Cannot remove household owner")
	}

	// The owner is still a member.
	m, _ := f.households.GetMember(f.h.ID, f.owner.ID)
	if m == nil || m.Role != model.RoleOwner {
		t.Errorf("owner membership = %+v, want intact owner", m)
	}
}

func TestChangeOwnerRoleRejected(t *testing.T) {
	f := setupHouseholdFixture(t)

	rec := f.do(t, f.owner, http.MethodPut, idPath(f.h, "/members/"+idStr(f.owner.ID)), `{"role":"member"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if got := errorBody(t, rec); got != "Cannot change owner role" {
		t.Errorf("error = %q, want %q", got, "Cannot change owner role")
	}
}

func TestInvalidRoleRejected(t *testing.T) {
	f := setupHouseholdFixture(t)

	newcomer, _ := f.profiles.Create("Newcomer", nil, nil, nil)

	rec := f.do(t, f.owner, http.MethodPost, idPath(f.h, "/members"),
		`{"profile_id":`+idStr(newcomer.ID)+`,"role":"owner"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if got := errorBody(t, rec); got != "Invalid data" {
		t.Errorf("error = %q, want %q", got, "Invalid data")
	}

	rec = f.do(t, f.owner, http.MethodPut, idPath(f.h, "/members/"+idStr(f.member.ID)), `{"role":"overlord"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if got := errorBody(t, rec); got != "Invalid data" {
		t.Errorf("error = %q, want %q", got, "Invalid data")
	}
}

func TestAddUnknownProfileRejected(t *testing.T) {
	f := setupHouseholdFixture(t)

	rec := f.do(t, f.owner, http.MethodPost, idPath(f.h, "/members"), `{"profile_id":9999,"role":"member"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if got := errorBody(t, rec); got != "Invalid data" {
		t.Errorf("error = %q, want %q", got, "Invalid data")
	}
}

func TestMemberCannotManageOthers(t *testing.T) {
	f := setupHouseholdFixture(t)

	rec := f.do(t, f.member, http.MethodDelete, idPath(f.h, "/members/"+idStr(f.admin.ID)), "")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
}

func TestMemberCanRemoveSelf(t *testing.T) {
	f := setupHouseholdFixture(t)

	rec := f.do(t, f.member, http.MethodDelete, idPath(f.h, "/members/"+idStr(f.member.ID)), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	m, _ := f.households.GetMember(f.h.ID, f.member.ID)
	if m != nil {
		t.Errorf("membership still present: %+v", m)
	}
}

func TestAdminCanPromoteAndDemote(t *testing.T) {
	f := setupHouseholdFixture(t)

	rec := f.do(t, f.admin, http.MethodPut, idPath(f.h, "/members/"+idStr(f.member.ID)), `{"role":"admin"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("promote status = %d: %s", rec.Code, rec.Body.String())
	}
	m, _ := f.households.GetMember(f.h.ID, f.member.ID)
	if m.Role != model.RoleAdmin {
		t.Errorf("role = %q, want admin", m.Role)
	}

	rec = f.do(t, f.admin, http.MethodPut, idPath(f.h, "/members/"+idStr(f.member.ID)), `{"role":"member"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("demote status = %d: %s", rec.Code, rec.Body.String())
	}
}

func TestDeleteOnlyHouseholdRejected(t *testing.T) {
	f := setupHouseholdFixture(t)

	rec := f.do(t, f.owner, http.MethodDelete, idPath(f.h, ""), "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400: %s", rec.Code, rec.Body.String())
	}
	if got := errorBody(t, rec); got != "Cannot delete your only household" {
		t.Errorf("error = %q, want %q", got, "Cannot delete your only household")
	}
}

func TestDeleteWithSecondHouseholdAllowed(t *testing.T) {
	f := setupHouseholdFixture(t)

	if _, err := f.households.Create("Second House", nil, f.owner.ID); err != nil {
		t.Fatalf("create second household: %v", err)
	}

	rec := f.do(t, f.owner, http.MethodDelete, idPath(f.h, ""), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	gone, _ := f.households.GetByID(f.h.ID)
	if gone != nil {
		t.Errorf("household still present: %+v", gone)
	}
}

func TestNonMemberCannotSeeHousehold(t *testing.T) {
	f := setupHouseholdFixture(t)

	stranger, _ := f.profiles.Create("Stranger", nil, nil, nil)
	rec := f.do(t, stranger, http.MethodGet, idPath(f.h, ""), "")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
}
