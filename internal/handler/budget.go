package handler

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/dukerupert/hearth/internal/auth"
	"github.com/dukerupert/hearth/internal/model"
	"github.com/dukerupert/hearth/internal/report"
	"github.com/dukerupert/hearth/internal/store"
	"github.com/dukerupert/hearth/internal/websocket"
)

type BudgetHandler struct {
	budget  *store.BudgetStore
	reports *report.Service
	hub     *websocket.Hub
}

func NewBudgetHandler(bs *store.BudgetStore, rs *report.Service, hub *websocket.Hub) *BudgetHandler {
	return &BudgetHandler{budget: bs, reports: rs, hub: hub}
}

func (h *BudgetHandler) broadcast(householdID int64, msg websocket.Message) {
	if h.hub != nil {
		h.hub.Broadcast(householdID, msg)
	}
}

func (h *BudgetHandler) ListGroups(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())
	groups, err := h.budget.ListGroups(ac.HouseholdID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list groups")
		return
	}
	if groups == nil {
		groups = []model.BudgetCategoryGroup{}
	}
	writeJSON(w, http.StatusOK, groups)
}

func (h *BudgetHandler) CreateGroup(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())

	var req struct {
		Name      string `json:"name"`
		SortOrder int    `json:"sort_order"`
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

	group, err := h.budget.CreateGroup(ac.HouseholdID, req.Name, req.SortOrder)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create group")
		return
	}

	h.broadcast(ac.HouseholdID, websocket.NewMessage("budget_group", "created", group.ID, nil))
	writeJSON(w, http.StatusCreated, group)
}

func (h *BudgetHandler) UpdateGroup(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	group, err := h.budget.GetGroup(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get group")
		return
	}
	if group == nil || group.HouseholdID != ac.HouseholdID {
		writeError(w, http.StatusNotFound, "group not found")
		return
	}

	var req struct {
		Name      string `json:"name"`
		SortOrder int    `json:"sort_order"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		req.Name = group.Name
	}

	updated, err := h.budget.UpdateGroup(id, req.Name, req.SortOrder)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to update group")
		return
	}

	h.broadcast(ac.HouseholdID, websocket.NewMessage("budget_group", "updated", id, nil))
	writeJSON(w, http.StatusOK, updated)
}

func (h *BudgetHandler) DeleteGroup(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	group, err := h.budget.GetGroup(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get group")
		return
	}
	if group == nil || group.HouseholdID != ac.HouseholdID {
		writeError(w, http.StatusNotFound, "group not found")
		return
	}

	if err := h.budget.DeleteGroup(id); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to delete group")
		return
	}

	h.broadcast(ac.HouseholdID, websocket.NewMessage("budget_group", "deleted", id, nil))
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *BudgetHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())
	categories, err := h.budget.ListCategories(ac.HouseholdID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list categories")
		return
	}
	if categories == nil {
		categories = []model.BudgetCategory{}
	}
	writeJSON(w, http.StatusOK, categories)
}

func (h *BudgetHandler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())

	var req struct {
		GroupID      int64   `json:"group_id"`
		Name         string  `json:"name"`
		MonthlyLimit float64 `json:"monthly_limit"`
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

	group, err := h.budget.GetGroup(req.GroupID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get group")
		return
	}
	if group == nil || group.HouseholdID != ac.HouseholdID {
		writeError(w, http.StatusBadRequest, "group not found in your household")
		return
	}

	category, err := h.budget.CreateCategory(req.GroupID, req.Name, req.MonthlyLimit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create category")
		return
	}

	h.broadcast(ac.HouseholdID, websocket.NewMessage("budget_category", "created", category.ID, nil))
	writeJSON(w, http.StatusCreated, category)
}

func (h *BudgetHandler) UpdateCategory(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	category, ok := h.loadCategory(w, ac.HouseholdID, id)
	if !ok {
		return
	}

	var req struct {
		Name         string  `json:"name"`
		MonthlyLimit float64 `json:"monthly_limit"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		req.Name = category.Name
	}

	updated, err := h.budget.UpdateCategory(id, req.Name, req.MonthlyLimit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to update category")
		return
	}

	h.broadcast(ac.HouseholdID, websocket.NewMessage("budget_category", "updated", id, nil))
	writeJSON(w, http.StatusOK, updated)
}

// DeleteCategory removes a category; its past transactions survive with a
// null category and show up as uncategorized spend.
func (h *BudgetHandler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	if _, ok := h.loadCategory(w, ac.HouseholdID, id); !ok {
		return
	}

	if err := h.budget.DeleteCategory(id); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to delete category")
		return
	}

	h.broadcast(ac.HouseholdID, websocket.NewMessage("budget_category", "deleted", id, nil))
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *BudgetHandler) loadCategory(w http.ResponseWriter, householdID, id int64) (*model.BudgetCategory, bool) {
	category, err := h.budget.GetCategory(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get category")
		return nil, false
	}
	if category == nil {
		writeError(w, http.StatusNotFound, "category not found")
		return nil, false
	}
	group, err := h.budget.GetGroup(category.GroupID)
	if err != nil || group == nil || group.HouseholdID != householdID {
		writeError(w, http.StatusNotFound, "category not found")
		return nil, false
	}
	return category, true
}

func (h *BudgetHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())

	to := time.Now().UTC()
	from := to.AddDate(0, -1, 0)
	if s := r.URL.Query().Get("from"); s != "" {
		parsed, err := time.Parse("2006-01-02", s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "from must be YYYY-MM-DD")
			return
		}
		from = parsed
	}
	if s := r.URL.Query().Get("to"); s != "" {
		parsed, err := time.Parse("2006-01-02", s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "to must be YYYY-MM-DD")
			return
		}
		to = parsed.AddDate(0, 0, 1)
	}

	txns, err := h.budget.ListTransactions(ac.HouseholdID, from, to)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list transactions")
		return
	}
	if txns == nil {
		txns = []model.BudgetTransaction{}
	}
	writeJSON(w, http.StatusOK, txns)
}

func (h *BudgetHandler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())

	var req struct {
		CategoryID  *int64  `json:"category_id"`
		Description string  `json:"description"`
		Amount      float64 `json:"amount"`
		OccurredAt  string  `json:"occurred_at"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Amount == 0 {
		writeError(w, http.StatusBadRequest, "amount is required")
		return
	}
	if req.CategoryID != nil {
		if _, ok := h.loadCategory(w, ac.HouseholdID, *req.CategoryID); !ok {
			return
		}
	}

	occurredAt := time.Now().UTC()
	if req.OccurredAt != "" {
		parsed, err := time.Parse(time.RFC3339, req.OccurredAt)
		if err != nil {
			writeError(w, http.StatusBadRequest, "occurred_at must be RFC3339 format")
			return
		}
		occurredAt = parsed
	}

	txn, err := h.budget.CreateTransaction(ac.HouseholdID, req.CategoryID, req.Description, req.Amount, occurredAt)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create transaction")
		return
	}

	h.broadcast(ac.HouseholdID, websocket.NewMessage("budget_transaction", "created", txn.ID, nil))
	writeJSON(w, http.StatusCreated, txn)
}

func (h *BudgetHandler) DeleteTransaction(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	txn, err := h.budget.GetTransaction(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get transaction")
		return
	}
	if txn == nil || txn.HouseholdID != ac.HouseholdID {
		writeError(w, http.StatusNotFound, "transaction not found")
		return
	}

	if err := h.budget.DeleteTransaction(id); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to delete transaction")
		return
	}

	h.broadcast(ac.HouseholdID, websocket.NewMessage("budget_transaction", "deleted", id, nil))
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// Summary returns the month's per-category spend against limits.
func (h *BudgetHandler) Summary(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())

	ref := time.Now().UTC()
	if s := r.URL.Query().Get("month"); s != "" {
		parsed, err := time.Parse("2006-01", s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "month must be YYYY-MM")
			return
		}
		ref = parsed
	}

	summary, err := h.reports.MonthlyBudget(ac.HouseholdID, ref)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to compute summary")
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
