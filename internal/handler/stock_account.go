package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/dukerupert/hearth/internal/auth"
	"github.com/dukerupert/hearth/internal/authz"
	"github.com/dukerupert/hearth/internal/model"
	"github.com/dukerupert/hearth/internal/store"
	"github.com/dukerupert/hearth/internal/websocket"
)

type StockAccountHandler struct {
	accounts *store.StockAccountStore
	resolver *authz.Resolver
	hub      *websocket.Hub
	logger   *slog.Logger
}

func NewStockAccountHandler(as *store.StockAccountStore, resolver *authz.Resolver, hub *websocket.Hub, logger *slog.Logger) *StockAccountHandler {
	return &StockAccountHandler{accounts: as, resolver: resolver, hub: hub, logger: logger}
}

func (h *StockAccountHandler) broadcast(householdID int64, msg websocket.Message) {
	if h.hub != nil {
		h.hub.Broadcast(householdID, msg)
	}
}

// resolve builds the caller's authorization context from the session.
func (h *StockAccountHandler) resolve(r *http.Request) (*authz.Context, error) {
	ac, _ := auth.FromContext(r.Context())
	return h.resolver.Resolve(ac.UserID, ac.HouseholdID)
}

// checkAccess loads the owner set and gates access to the account.
func (h *StockAccountHandler) checkAccess(actx *authz.Context, accountID int64) error {
	ownerIDs, err := h.accounts.OwnerIDs(accountID)
	if err != nil {
		return err
	}
	return actx.CheckOwnerAccess(ownerIDs)
}

func (h *StockAccountHandler) List(w http.ResponseWriter, r *http.Request) {
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
		accounts = []model.StockAccount{}
	}
	writeJSON(w, http.StatusOK, accounts)
}

func (h *StockAccountHandler) Create(w http.ResponseWriter, r *http.Request) {
	actx, err := h.resolve(r)
	if err != nil {
		writeAuthzError(w, err)
		return
	}

	var req struct {
		Name         string  `json:"name"`
		AccountType  string  `json:"account_type"`
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
	if req.AccountType == "" {
		req.AccountType = "brokerage"
	}
	if err := actx.ValidateOwnerSet(req.OwnerIDs); err != nil {
		writeAuthzError(w, err)
		return
	}

	account, err := h.accounts.Create(req.Name, req.AccountType, req.CurrentValue)
	if err != nil {
		h.logger.Error("create stock account", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create account")
		return
	}
	if len(req.OwnerIDs) > 0 {
		if err := h.accounts.ReplaceOwners(account.ID, req.OwnerIDs); err != nil {
			writeError(w, http.StatusInternalServerError, "failed to set owners")
			return
		}
	}

	h.broadcast(actx.Active.ID, websocket.NewMessage("stock_account", "created", account.ID, nil))
	writeJSON(w, http.StatusCreated, account)
}

func (h *StockAccountHandler) Get(w http.ResponseWriter, r *http.Request) {
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

func (h *StockAccountHandler) Update(w http.ResponseWriter, r *http.Request) {
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
		AccountType  string  `json:"account_type"`
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
	if req.AccountType == "" {
		req.AccountType = existing.AccountType
	}

	account, err := h.accounts.Update(id, req.Name, req.AccountType, req.CurrentValue)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to update account")
		return
	}

	h.broadcast(actx.Active.ID, websocket.NewMessage("stock_account", "updated", id, nil))
	writeJSON(w, http.StatusOK, account)
}

func (h *StockAccountHandler) Delete(w http.ResponseWriter, r *http.Request) {
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

	h.broadcast(actx.Active.ID, websocket.NewMessage("stock_account", "deleted", id, nil))
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// GetOwners returns the owner profiles of the account.
func (h *StockAccountHandler) GetOwners(w http.ResponseWriter, r *http.Request) {
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

// PutOwners replaces the account's entire owner set. The replacement is
// all-or-nothing: one invalid profile id rejects the whole request.
func (h *StockAccountHandler) PutOwners(w http.ResponseWriter, r *http.Request) {
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

	h.broadcast(actx.Active.ID, websocket.NewMessage("stock_account", "owners_changed", id, nil))
	writeJSON(w, http.StatusOK, owners)
}

func (h *StockAccountHandler) ListHoldings(w http.ResponseWriter, r *http.Request) {
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

	holdings, err := h.accounts.ListHoldings(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list holdings")
		return
	}
	if holdings == nil {
		holdings = []model.StockHolding{}
	}
	writeJSON(w, http.StatusOK, holdings)
}

func (h *StockAccountHandler) CreateHolding(w http.ResponseWriter, r *http.Request) {
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

	var req struct {
		Symbol    string  `json:"symbol"`
		Name      string  `json:"name"`
		Quantity  float64 `json:"quantity"`
		UnitPrice float64 `json:"unit_price"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	req.Symbol = strings.ToUpper(strings.TrimSpace(req.Symbol))
	if req.Symbol == "" {
		writeError(w, http.StatusBadRequest, "symbol is required")
		return
	}
	if req.Quantity < 0 {
		writeError(w, http.StatusBadRequest, "quantity cannot be negative")
		return
	}

	holding, err := h.accounts.CreateHolding(id, req.Symbol, req.Name, req.Quantity, req.UnitPrice)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create holding")
		return
	}

	h.broadcast(actx.Active.ID, websocket.NewMessage("stock_holding", "created", holding.ID, nil))
	writeJSON(w, http.StatusCreated, holding)
}

func (h *StockAccountHandler) UpdateHolding(w http.ResponseWriter, r *http.Request) {
	actx, holding, ok := h.loadHolding(w, r)
	if !ok {
		return
	}

	var req struct {
		Symbol    string  `json:"symbol"`
		Name      string  `json:"name"`
		Quantity  float64 `json:"quantity"`
		UnitPrice float64 `json:"unit_price"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	req.Symbol = strings.ToUpper(strings.TrimSpace(req.Symbol))
	if req.Symbol == "" {
		req.Symbol = holding.Symbol
	}
	if req.Quantity < 0 {
		writeError(w, http.StatusBadRequest, "quantity cannot be negative")
		return
	}

	updated, err := h.accounts.UpdateHolding(holding.ID, req.Symbol, req.Name, req.Quantity, req.UnitPrice)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to update holding")
		return
	}

	h.broadcast(actx.Active.ID, websocket.NewMessage("stock_holding", "updated", holding.ID, nil))
	writeJSON(w, http.StatusOK, updated)
}

func (h *StockAccountHandler) DeleteHolding(w http.ResponseWriter, r *http.Request) {
	actx, holding, ok := h.loadHolding(w, r)
	if !ok {
		return
	}

	if err := h.accounts.DeleteHolding(holding.ID); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to delete holding")
		return
	}

	h.broadcast(actx.Active.ID, websocket.NewMessage("stock_holding", "deleted", holding.ID, nil))
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// RecordPrice appends a price observation and moves the holding's unit price.
func (h *StockAccountHandler) RecordPrice(w http.ResponseWriter, r *http.Request) {
	actx, holding, ok := h.loadHolding(w, r)
	if !ok {
		return
	}

	var req struct {
		Price float64 `json:"price"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Price < 0 {
		writeError(w, http.StatusBadRequest, "price cannot be negative")
		return
	}

	price, err := h.accounts.RecordPrice(holding.ID, req.Price)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to record price")
		return
	}

	h.broadcast(actx.Active.ID, websocket.NewMessage("stock_holding", "price_recorded", holding.ID, nil))
	writeJSON(w, http.StatusCreated, price)
}

func (h *StockAccountHandler) ListPrices(w http.ResponseWriter, r *http.Request) {
	_, holding, ok := h.loadHolding(w, r)
	if !ok {
		return
	}

	limit := 90
	if s := r.URL.Query().Get("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 && n <= 1000 {
			limit = n
		}
	}

	prices, err := h.accounts.ListPrices(holding.ID, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list prices")
		return
	}
	if prices == nil {
		prices = []model.StockPrice{}
	}
	writeJSON(w, http.StatusOK, prices)
}

// loadHolding resolves the caller, loads the holding from the path, and
// checks access through the parent account's owner set.
func (h *StockAccountHandler) loadHolding(w http.ResponseWriter, r *http.Request) (*authz.Context, *model.StockHolding, bool) {
	actx, err := h.resolve(r)
	if err != nil {
		writeAuthzError(w, err)
		return nil, nil, false
	}

	holdingID, err := strconv.ParseInt(r.PathValue("holdingID"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid holding id")
		return nil, nil, false
	}

	holding, err := h.accounts.GetHolding(holdingID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get holding")
		return nil, nil, false
	}
	if holding == nil {
		writeError(w, http.StatusNotFound, "holding not found")
		return nil, nil, false
	}

	if err := h.checkAccess(actx, holding.AccountID); err != nil {
		writeAuthzError(w, err)
		return nil, nil, false
	}
	return actx, holding, true
}
