package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dukerupert/hearth/internal/auth"
	"github.com/dukerupert/hearth/internal/authz"
	"github.com/dukerupert/hearth/internal/model"
	"github.com/dukerupert/hearth/internal/store"
	"github.com/dukerupert/hearth/internal/websocket"
)

type PensionAccountHandler struct {
	accounts *store.PensionAccountStore
	resolver *authz.Resolver
	hub      *websocket.Hub
	logger   *slog.Logger
}

func NewPensionAccountHandler(as *store.PensionAccountStore, resolver *authz.Resolver, hub *websocket.Hub, logger *slog.Logger) *PensionAccountHandler {
	return &PensionAccountHandler{accounts: as, resolver: resolver, hub: hub, logger: logger}
}

func (h *PensionAccountHandler) broadcast(householdID int64, msg websocket.Message) {
	if h.hub != nil {
		h.hub.Broadcast(householdID, msg)
	}
}

func (h *PensionAccountHandler) resolve(r *http.Request) (*authz.Context, error) {
	ac, _ := auth.FromContext(r.Context())
	return h.resolver.Resolve(ac.UserID, ac.HouseholdID)
}

func (h *PensionAccountHandler) checkAccess(actx *authz.Context, accountID int64) error {
	ownerIDs, err := h.accounts.OwnerIDs(accountID)
	if err != nil {
		return err
	}
	return actx.CheckOwnerAccess(ownerIDs)
}

func (h *PensionAccountHandler) List(w http.ResponseWriter, r *http.Request) {
	actx, err := h.resolve(r)
	if err != nil {
		writeAuthzError(w, err)
		return
	}

	accounts, err := h.accounts.ListVisible(actx.ProfileIDs())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list accounts")
		return
	}
	if accounts == nil {
		accounts = []model.PensionAccount{}
	}
	writeJSON(w, http.StatusOK, accounts)
}

func (h *PensionAccountHandler) Create(w http.ResponseWriter, r *http.Request) {
	actx, err := h.resolve(r)
	if err != nil {
		writeAuthzError(w, err)
		return
	}

	var req struct {
		Name         string  `json:"name"`
		Provider     string  `json:"provider"`
		CurrentValue float64 `json:"current_value"`
		OwnerIDs     []int64 `json:"owner_ids"`
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
	if err := actx.ValidateOwnerSet(req.OwnerIDs); err != nil {
		writeAuthzError(w, err)
		return
	}

	account, err := h.accounts.Create(req.Name, req.Provider, req.CurrentValue)
	if err != nil {
		h.logger.Error("create pension account", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create account")
		return
	}
	if len(req.OwnerIDs) > 0 {
		if err := h.accounts.ReplaceOwners(account.ID, req.OwnerIDs); err != nil {
			writeError(w, http.StatusInternalServerError, "failed to set owners")
			return
		}
	}

	h.broadcast(actx.Active.ID, websocket.NewMessage("pension_account", "created", account.ID, nil))
	writeJSON(w, http.StatusCreated, account)
}

func (h *PensionAccountHandler) Get(w http.ResponseWriter, r *http.Request) {
	actx, err := h.resolve(r)
	if err != nil {
		writeAuthzError(w, err)
		return
	}
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	account, err := h.accounts.GetByID(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get account")
		return
	}
	if account == nil {
		writeError(w, http.StatusNotFound, "account not found")
		return
	}
	if err := h.checkAccess(actx, id); err != nil {
		writeAuthzError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, account)
}

func (h *PensionAccountHandler) Update(w http.ResponseWriter, r *http.Request) {
	actx, err := h.resolve(r)
	if err != nil {
		writeAuthzError(w, err)
		return
	}
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	existing, err := h.accounts.GetByID(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get account")
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "account not found")
		return
	}
	if err := h.checkAccess(actx, id); err != nil {
		writeAuthzError(w, err)
		return
	}

	var req struct {
		Name         string  `json:"name"`
		Provider     string  `json:"provider"`
		CurrentValue float64 `json:"current_value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		req.Name = existing.Name
	}

	account, err := h.accounts.Update(id, req.Name, req.Provider, req.CurrentValue)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to update account")
		return
	}

	h.broadcast(actx.Active.ID, websocket.NewMessage("pension_account", "updated", id, nil))
	writeJSON(w, http.StatusOK, account)
}

func (h *PensionAccountHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actx, err := h.resolve(r)
	if err != nil {
		writeAuthzError(w, err)
		return
	}
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	if err := h.checkAccess(actx, id); err != nil {
		writeAuthzError(w, err)
		return
	}
	if err := h.accounts.Delete(id); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to delete account")
		return
	}

	h.broadcast(actx.Active.ID, websocket.NewMessage("pension_account", "deleted", id, nil))
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *PensionAccountHandler) GetOwners(w http.ResponseWriter, r *http.Request) {
	actx, err := h.resolve(r)
	if err != nil {
		writeAuthzError(w, err)
		return
	}
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	if err := h.checkAccess(actx, id); err != nil {
		writeAuthzError(w, err)
		return
	}

	owners, err := h.accounts.Owners(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list owners")
		return
	}
	if owners == nil {
		owners = []model.Profile{}
	}
	writeJSON(w, http.StatusOK, owners)
}

func (h *PensionAccountHandler) PutOwners(w http.ResponseWriter, r *http.Request) {
	actx, err := h.resolve(r)
	if err != nil {
		writeAuthzError(w, err)
		return
	}
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	account, err := h.accounts.GetByID(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get account")
		return
	}
	if account == nil {
		writeError(w, http.StatusNotFound, "account not found")
		return
	}
	if err := h.checkAccess(actx, id); err != nil {
		writeAuthzError(w, err)
		return
	}

	var req struct {
		OwnerIDs []int64 `json:"owner_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if err := actx.ValidateOwnerSet(req.OwnerIDs); err != nil {
		writeAuthzError(w, err)
		return
	}

	if err := h.accounts.ReplaceOwners(id, req.OwnerIDs); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to replace owners")
		return
	}

	owners, err := h.accounts.Owners(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list owners")
		return
	}
	if owners == nil {
		owners = []model.Profile{}
	}

	h.broadcast(actx.Active.ID, websocket.NewMessage("pension_account", "owners_changed", id, nil))
	writeJSON(w, http.StatusOK, owners)
}

func (h *PensionAccountHandler) ListDeposits(w http.ResponseWriter, r *http.Request) {
	actx, err := h.resolve(r)
	if err != nil {
		writeAuthzError(w, err)
		return
	}
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	if err := h.checkAccess(actx, id); err != nil {
		writeAuthzError(w, err)
		return
	}

	deposits, err := h.accounts.ListDeposits(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list deposits")
		return
	}
	if deposits == nil {
		deposits = []model.PensionDeposit{}
	}
	writeJSON(w, http.StatusOK, deposits)
}

// AddDeposit records a contribution and bumps the account's current value.
func (h *PensionAccountHandler) AddDeposit(w http.ResponseWriter, r *http.Request) {
	actx, err := h.resolve(r)
	if err != nil {
		writeAuthzError(w, err)
		return
	}
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	account, err := h.accounts.GetByID(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get account")
		return
	}
	if account == nil {
		writeError(w, http.StatusNotFound, "account not found")
		return
	}
	if err := h.checkAccess(actx, id); err != nil {
		writeAuthzError(w, err)
		return
	}

	var req struct {
		Amount      float64 `json:"amount"`
		Note        string  `json:"note"`
		DepositedAt string  `json:"deposited_at"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Amount <= 0 {
		writeError(w, http.StatusBadRequest, "amount must be positive")
		return
	}

	depositedAt := time.Now().UTC()
	if req.DepositedAt != "" {
		parsed, err := time.Parse(time.RFC3339, req.DepositedAt)
		if err != nil {
			writeError(w, http.StatusBadRequest, "deposited_at must be RFC3339 format")
			return
		}
		depositedAt = parsed
	}

	deposit, err := h.accounts.AddDeposit(id, req.Amount, req.Note, depositedAt)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to add deposit")
		return
	}

	h.broadcast(actx.Active.ID, websocket.NewMessage("pension_account", "deposit_added", id, nil))
	writeJSON(w, http.StatusCreated, deposit)
}
