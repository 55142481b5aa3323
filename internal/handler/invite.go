package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/hearth/internal/auth"
	"github.com/dukerupert/hearth/internal/email"
	"github.com/dukerupert/hearth/internal/invite"
	"github.com/dukerupert/hearth/internal/model"
	"github.com/dukerupert/hearth/internal/store"
)

type InviteHandler struct {
	issuer     *invite.Issuer
	emails     *email.Client
	users      *store.UserStore
	profiles   *store.ProfileStore
	households *store.HouseholdStore
	logger     *slog.Logger
}

func NewInviteHandler(issuer *invite.Issuer, ec *email.Client, us *store.UserStore, ps *store.ProfileStore, hs *store.HouseholdStore, logger *slog.Logger) *InviteHandler {
	return &InviteHandler{
		issuer:     issuer,
		emails:     ec,
		users:      us,
		profiles:   ps,
		households: hs,
		logger:     logger,
	}
}

// Send issues an invite token for the active household and emails it. Only
// owners and admins can invite, and nobody can be invited as owner.
func (h *InviteHandler) Send(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())
	if !auth.CanManageMembers(r.Context()) {
		writeError(w, http.StatusForbidden, "only owners and admins can invite members")
		return
	}

	var req struct {
		Email string `json:"email"`
		Role  string `json:"role"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || !strings.Contains(req.Email, "@") {
		writeError(w, http.StatusBadRequest, "a valid email is required")
		return
	}
	if req.Role == "" {
		req.Role = model.RoleMember
	}
	if req.Role != model.RoleAdmin && req.Role != model.RoleMember {
		writeError(w, http.StatusBadRequest, "Invalid data")
		return
	}

	household, err := h.households.GetByID(ac.HouseholdID)
	if err != nil || household == nil {
		writeError(w, http.StatusInternalServerError, "failed to load household")
		return
	}

	token, err := h.issuer.Issue(ac.HouseholdID, req.Email, req.Role)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to issue invite")
		return
	}

	if h.emails.Configured() {
		if err := h.emails.SendInvite(req.Email, token, household.Name); err != nil {
			h.logger.Error("send invite email", "error", err)
			writeError(w, http.StatusInternalServerError, "failed to send invite email")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "sent"})
		return
	}

	// No mail configured: hand the token back so it can be shared manually.
	writeJSON(w, http.StatusOK, map[string]string{"status": "created", "token": token})
}

// Info describes a pending invite without redeeming it, so a client can show
// what the token is for before the user signs in.
func (h *InviteHandler) Info(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		writeError(w, http.StatusBadRequest, "token is required")
		return
	}

	claims, err := h.issuer.Verify(token)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid or expired invite")
		return
	}

	household, err := h.households.GetByID(claims.HouseholdID)
	if err != nil || household == nil {
		writeError(w, http.StatusNotFound, "household no longer exists")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"household": household.Name,
		"email":     claims.Email,
		"role":      claims.Role,
	})
}

// Accept redeems an invite for the signed-in caller. The invite's email must
// match the caller's account, and their profile joins with the invited role.
func (h *InviteHandler) Accept(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())

	var req struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	claims, err := h.issuer.Verify(req.Token)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid or expired invite")
		return
	}

	user, err := h.users.GetByID(ac.UserID)
	if err != nil || user == nil {
		writeError(w, http.StatusInternalServerError, "failed to load account")
		return
	}
	if !strings.EqualFold(user.Email, claims.Email) {
		writeError(w, http.StatusForbidden, "invite was issued for a different email")
		return
	}

	existing, err := h.households.GetMember(claims.HouseholdID, ac.ProfileID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to check membership")
		return
	}
	if existing != nil {
		writeError(w, http.StatusConflict, "already a member of that household")
		return
	}

	member, err := h.households.AddMember(claims.HouseholdID, ac.ProfileID, claims.Role)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to join household")
		return
	}

	writeJSON(w, http.StatusCreated, member)
}
