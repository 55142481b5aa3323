package handler

import (
	"net/http"
	"strconv"

	"github.com/dukerupert/hearth/internal/auth"
	"github.com/dukerupert/hearth/internal/authz"
	"github.com/dukerupert/hearth/internal/model"
	"github.com/dukerupert/hearth/internal/report"
	"github.com/dukerupert/hearth/internal/store"
)

type NetWorthHandler struct {
	reports   *report.Service
	snapshots *store.NetWorthStore
	resolver  *authz.Resolver
}

func NewNetWorthHandler(rs *report.Service, ns *store.NetWorthStore, resolver *authz.Resolver) *NetWorthHandler {
	return &NetWorthHandler{reports: rs, snapshots: ns, resolver: resolver}
}

// Summary computes the caller's current net worth from everything visible in
// their active household.
func (h *NetWorthHandler) Summary(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())
	actx, err := h.resolver.Resolve(ac.UserID, ac.HouseholdID)
	if err != nil {
		writeAuthzError(w, err)
		return
	}

	summary, err := h.reports.NetWorth(actx.ProfileIDs())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to compute net worth")
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// Snapshot persists the current net worth as a point-in-time record. History
// hangs off the user, so it survives household switches.
func (h *NetWorthHandler) Snapshot(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())
	actx, err := h.resolver.Resolve(ac.UserID, ac.HouseholdID)
	if err != nil {
		writeAuthzError(w, err)
		return
	}

	snap, err := h.reports.Snapshot(ac.UserID, actx.ProfileIDs())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to take snapshot")
		return
	}
	writeJSON(w, http.StatusCreated, snap)
}

// History lists the caller's snapshots, newest first.
func (h *NetWorthHandler) History(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())

	limit := 52
	if s := r.URL.Query().Get("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 && n <= 1000 {
			limit = n
		}
	}

	snaps, err := h.snapshots.ListSnapshots(ac.UserID, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list snapshots")
		return
	}
	if snaps == nil {
		snaps = []model.NetWorthSnapshot{}
	}
	writeJSON(w, http.StatusOK, snaps)
}
