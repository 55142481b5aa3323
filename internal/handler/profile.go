package handler

import (
	"encoding/json"
	"net/http"
	"regexp"
	"strings"

	"github.com/dukerupert/hearth/internal/auth"
	"github.com/dukerupert/hearth/internal/model"
	"github.com/dukerupert/hearth/internal/store"
)

var hexColorRegexp = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

type ProfileHandler struct {
	profiles   *store.ProfileStore
	households *store.HouseholdStore
}

func NewProfileHandler(ps *store.ProfileStore, hs *store.HouseholdStore) *ProfileHandler {
	return &ProfileHandler{profiles: ps, households: hs}
}

// List returns the profiles of the caller's active household.
func (h *ProfileHandler) List(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())
	profiles, err := h.profiles.ListByHousehold(ac.HouseholdID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list profiles")
		return
	}
	if profiles == nil {
		profiles = []model.Profile{}
	}
	writeJSON(w, http.StatusOK, profiles)
}

// Create adds a dependent profile (no linked user) to the active household.
// Only owners and admins may add profiles.
func (h *ProfileHandler) Create(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())
	if !auth.CanManageMembers(r.Context()) {
		writeError(w, http.StatusForbidden, "only owners and admins can add profiles")
		return
	}

	var req struct {
		Name  string  `json:"name"`
		Image *string `json:"image"`
		Color *string `json:"color"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	if req.Color != nil && !hexColorRegexp.MatchString(*req.Color) {
		writeError(w, http.StatusBadRequest, "color must be a hex color (e.g. #FF0000)")
		return
	}

	profile, err := h.profiles.Create(req.Name, req.Image, req.Color, nil)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create profile")
		return
	}
	if _, err := h.households.AddMember(ac.HouseholdID, profile.ID, model.RoleMember); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to add profile to household")
		return
	}

	writeJSON(w, http.StatusCreated, profile)
}

// Update edits a profile in the active household. Members may edit their own
// profile; owners and admins may edit any.
func (h *ProfileHandler) Update(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	if id != ac.ProfileID && !auth.CanManageMembers(r.Context()) {
		writeError(w, http.StatusForbidden, "cannot edit another member's profile")
		return
	}

	member, err := h.households.GetMember(ac.HouseholdID, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to check membership")
		return
	}
	if member == nil {
		writeError(w, http.StatusNotFound, "profile not found in your household")
		return
	}

	var req struct {
		Name  string  `json:"name"`
		Image *string `json:"image"`
		Color *string `json:"color"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	if req.Color != nil && !hexColorRegexp.MatchString(*req.Color) {
		writeError(w, http.StatusBadRequest, "color must be a hex color (e.g. #FF0000)")
		return
	}

	profile, err := h.profiles.Update(id, req.Name, req.Image, req.Color)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to update profile")
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// Delete removes a dependent profile from the active household. Profiles with
// a linked account are removed through member management instead.
func (h *ProfileHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())
	if !auth.CanManageMembers(r.Context()) {
		writeError(w, http.StatusForbidden, "only owners and admins can delete profiles")
		return
	}
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	member, err := h.households.GetMember(ac.HouseholdID, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to check membership")
		return
	}
	if member == nil {
		writeError(w, http.StatusNotFound, "profile not found in your household")
		return
	}

	profile, err := h.profiles.GetByID(id)
	if err != nil || profile == nil {
		writeError(w, http.StatusNotFound, "profile not found")
		return
	}
	if profile.UserID != nil {
		writeError(w, http.StatusBadRequest, "cannot delete a profile with a linked account")
		return
	}

	if err := h.profiles.Delete(id); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to delete profile")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
