package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/dukerupert/hearth/internal/auth"
	"github.com/dukerupert/hearth/internal/model"
	"github.com/dukerupert/hearth/internal/store"
	"github.com/dukerupert/hearth/internal/websocket"
)

type HouseholdHandler struct {
	households *store.HouseholdStore
	profiles   *store.ProfileStore
	hub        *websocket.Hub
	logger     *slog.Logger
}

func NewHouseholdHandler(hs *store.HouseholdStore, ps *store.ProfileStore, hub *websocket.Hub, logger *slog.Logger) *HouseholdHandler {
	return &HouseholdHandler{households: hs, profiles: ps, hub: hub, logger: logger}
}

func (h *HouseholdHandler) broadcast(householdID int64, msg websocket.Message) {
	if h.hub != nil {
		h.hub.Broadcast(householdID, msg)
	}
}

func (h *HouseholdHandler) List(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())
	households, err := h.households.ListHouseholdsForUser(ac.UserID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list households")
		return
	}
	if households == nil {
		households = []model.Household{}
	}
	writeJSON(w, http.StatusOK, households)
}

func (h *HouseholdHandler) Create(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())

	var req struct {
		Name        string  `json:"name"`
		Description *string `json:"description"`
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

	household, err := h.households.Create(req.Name, req.Description, ac.ProfileID)
	if err != nil {
		h.logger.Error("create household", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create household")
		return
	}

	writeJSON(w, http.StatusCreated, household)
}

func (h *HouseholdHandler) Get(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	member, err := h.households.GetMember(id, ac.ProfileID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to check membership")
		return
	}
	if member == nil {
		writeError(w, http.StatusForbidden, "not a member of that household")
		return
	}

	household, err := h.households.GetByID(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get household")
		return
	}
	if household == nil {
		writeError(w, http.StatusNotFound, "household not found")
		return
	}
	writeJSON(w, http.StatusOK, household)
}

func (h *HouseholdHandler) Update(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	member, err := h.households.GetMember(id, ac.ProfileID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to check membership")
		return
	}
	if member == nil || (member.Role != model.RoleOwner && member.Role != model.RoleAdmin) {
		writeError(w, http.StatusForbidden, "only owners and admins can update the household")
		return
	}

	var req struct {
		Name        string  `json:"name"`
		Description *string `json:"description"`
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

	household, err := h.households.Update(id, req.Name, req.Description)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to update household")
		return
	}

	h.broadcast(id, websocket.NewMessage("household", "updated", id, nil))
	writeJSON(w, http.StatusOK, household)
}

// Delete removes a household. Only its owner may, and never their last one:
// a user must always keep at least one household.
func (h *HouseholdHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	member, err := h.households.GetMember(id, ac.ProfileID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to check membership")
		return
	}
	if member == nil || member.Role != model.RoleOwner {
		writeError(w, http.StatusForbidden, "only the owner can delete a household")
		return
	}

	households, err := h.households.ListHouseholdsForUser(ac.UserID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list households")
		return
	}
	if len(households) <= 1 {
		writeError(w, http.StatusBadRequest, "Cannot delete your only household")
		return
	}

	if err := h.households.Delete(id); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to delete household")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *HouseholdHandler) ListMembers(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	member, err := h.households.GetMember(id, ac.ProfileID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to check membership")
		return
	}
	if member == nil {
		writeError(w, http.StatusForbidden, "not a member of that household")
		return
	}

	members, err := h.households.ListMembers(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list members")
		return
	}
	if members == nil {
		members = []model.HouseholdMember{}
	}
	writeJSON(w, http.StatusOK, members)
}

// AddMember attaches an existing profile to the household. Only owners and
// admins may, and the owner role can never be granted this way.
func (h *HouseholdHandler) AddMember(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	caller, err := h.households.GetMember(id, ac.ProfileID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to check membership")
		return
	}
	if caller == nil || (caller.Role != model.RoleOwner && caller.Role != model.RoleAdmin) {
		writeError(w, http.StatusForbidden, "only owners and admins can manage members")
		return
	}

	var req struct {
		ProfileID int64  `json:"profile_id"`
		Role      string `json:"role"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Role == "" {
		req.Role = model.RoleMember
	}
	if req.Role != model.RoleAdmin && req.Role != model.RoleMember {
		writeError(w, http.StatusBadRequest, "Invalid data")
		return
	}

	profile, err := h.profiles.GetByID(req.ProfileID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to look up profile")
		return
	}
	if profile == nil {
		writeError(w, http.StatusBadRequest, "Invalid data")
		return
	}

	existing, err := h.households.GetMember(id, req.ProfileID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to check membership")
		return
	}
	if existing != nil {
		writeError(w, http.StatusConflict, "profile is already a member")
		return
	}

	added, err := h.households.AddMember(id, req.ProfileID, req.Role)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to add member")
		return
	}

	h.broadcast(id, websocket.NewMessage("household_member", "added", added.ID, nil))
	writeJSON(w, http.StatusCreated, added)
}

// UpdateMemberRole changes a member's role between admin and member. The
// owner's role is immutable, and nobody can be promoted to owner.
func (h *HouseholdHandler) UpdateMemberRole(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	profileID, err := strconv.ParseInt(r.PathValue("profileID"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid profile id")
		return
	}

	caller, err := h.households.GetMember(id, ac.ProfileID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to check membership")
		return
	}
	if caller == nil || (caller.Role != model.RoleOwner && caller.Role != model.RoleAdmin) {
		writeError(w, http.StatusForbidden, "only owners and admins can manage members")
		return
	}

	var req struct {
		Role string `json:"role"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Role != model.RoleAdmin && req.Role != model.RoleMember {
		writeError(w, http.StatusBadRequest, "Invalid data")
		return
	}

	target, err := h.households.GetMember(id, profileID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to look up member")
		return
	}
	if target == nil {
		writeError(w, http.StatusNotFound, "member not found")
		return
	}
	if target.Role == model.RoleOwner {
		writeError(w, http.StatusBadRequest, "Cannot change owner role")
		return
	}

	updated, err := h.households.UpdateMemberRole(id, profileID, req.Role)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to update role")
		return
	}

	h.broadcast(id, websocket.NewMessage("household_member", "updated", updated.ID, nil))
	writeJSON(w, http.StatusOK, updated)
}

// RemoveMember detaches a profile from the household. The owner cannot be
// removed; members may remove themselves, otherwise owner/admin only.
func (h *HouseholdHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	profileID, err := strconv.ParseInt(r.PathValue("profileID"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid profile id")
		return
	}

	caller, err := h.households.GetMember(id, ac.ProfileID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to check membership")
		return
	}
	if caller == nil {
		writeError(w, http.StatusForbidden, "not a member of that household")
		return
	}
	isSelf := profileID == ac.ProfileID
	if !isSelf && caller.Role != model.RoleOwner && caller.Role != model.RoleAdmin {
		writeError(w, http.StatusForbidden, "only owners and admins can manage members")
		return
	}

	target, err := h.households.GetMember(id, profileID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to look up member")
		return
	}
	if target == nil {
		writeError(w, http.StatusNotFound, "member not found")
		return
	}
	if target.Role == model.RoleOwner {
		writeError(w, http.StatusBadRequest, "Cannot remove household owner")
		return
	}

	if err := h.households.RemoveMember(id, profileID); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to remove member")
		return
	}

	h.broadcast(id, websocket.NewMessage("household_member", "removed", target.ID, nil))
	writeJSON(w, http.StatusOK, map[string]string{"status": "removed"})
}
