package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/hearth/internal/auth"
	"github.com/dukerupert/hearth/internal/authz"
	"github.com/dukerupert/hearth/internal/model"
	"github.com/dukerupert/hearth/internal/store"
	"github.com/dukerupert/hearth/internal/websocket"
)

type MiscAssetHandler struct {
	assets   *store.MiscAssetStore
	resolver *authz.Resolver
	hub      *websocket.Hub
	logger   *slog.Logger
}

func NewMiscAssetHandler(as *store.MiscAssetStore, resolver *authz.Resolver, hub *websocket.Hub, logger *slog.Logger) *MiscAssetHandler {
	return &MiscAssetHandler{assets: as, resolver: resolver, hub: hub, logger: logger}
}

func (h *MiscAssetHandler) broadcast(householdID int64, msg websocket.Message) {
	if h.hub != nil {
		h.hub.Broadcast(householdID, msg)
	}
}

func (h *MiscAssetHandler) resolve(r *http.Request) (*authz.Context, error) {
	ac, _ := auth.FromContext(r.Context())
	return h.resolver.Resolve(ac.UserID, ac.HouseholdID)
}

func (h *MiscAssetHandler) checkAccess(actx *authz.Context, assetID int64) error {
	ownerIDs, err := h.assets.OwnerIDs(assetID)
	if err != nil {
		return err
	}
	return actx.CheckOwnerAccess(ownerIDs)
}

func (h *MiscAssetHandler) List(w http.ResponseWriter, r *http.Request) {
	actx, err := h.resolve(r)
	if err != nil {
		writeAuthzError(w, err)
		return
	}

	assets, err := h.assets.ListVisible(actx.ProfileIDs())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list assets")
		return
	}
	if assets == nil {
		assets = []model.MiscAsset{}
	}
	writeJSON(w, http.StatusOK, assets)
}

func (h *MiscAssetHandler) Create(w http.ResponseWriter, r *http.Request) {
	actx, err := h.resolve(r)
	if err != nil {
		writeAuthzError(w, err)
		return
	}

	var req struct {
		Name      string  `json:"name"`
		AssetType string  `json:"asset_type"`
		Value     float64 `json:"value"`
		OwnerIDs  []int64 `json:"owner_ids"`
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
	if req.AssetType == "" {
		req.AssetType = model.AssetTypeAsset
	}
	if req.AssetType != model.AssetTypeAsset && req.AssetType != model.AssetTypeLiability {
		writeError(w, http.StatusBadRequest, "asset_type must be asset or liability")
		return
	}
	if err := actx.ValidateOwnerSet(req.OwnerIDs); err != nil {
		writeAuthzError(w, err)
		return
	}

	asset, err := h.assets.Create(req.Name, req.AssetType, req.Value)
	if err != nil {
		h.logger.Error("create asset", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create asset")
		return
	}
	if len(req.OwnerIDs) > 0 {
		if err := h.assets.ReplaceOwners(asset.ID, req.OwnerIDs); err != nil {
			writeError(w, http.StatusInternalServerError, "failed to set owners")
			return
		}
	}

	h.broadcast(actx.Active.ID, websocket.NewMessage("misc_asset", "created", asset.ID, nil))
	writeJSON(w, http.StatusCreated, asset)
}

func (h *MiscAssetHandler) Get(w http.ResponseWriter, r *http.Request) {
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

	asset, err := h.assets.GetByID(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get asset")
		return
	}
	if asset == nil {
		writeError(w, http.StatusNotFound, "asset not found")
		return
	}
	if err := h.checkAccess(actx, id); err != nil {
		writeAuthzError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, asset)
}

func (h *MiscAssetHandler) Update(w http.ResponseWriter, r *http.Request) {
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

	existing, err := h.assets.GetByID(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get asset")
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "asset not found")
		return
	}
	if err := h.checkAccess(actx, id); err != nil {
		writeAuthzError(w, err)
		return
	}

	var req struct {
		Name      string  `json:"name"`
		AssetType string  `json:"asset_type"`
		Value     float64 `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		req.Name = existing.Name
	}
	if req.AssetType == "" {
		req.AssetType = existing.AssetType
	}
	if req.AssetType != model.AssetTypeAsset && req.AssetType != model.AssetTypeLiability {
		writeError(w, http.StatusBadRequest, "asset_type must be asset or liability")
		return
	}

	asset, err := h.assets.Update(id, req.Name, req.AssetType, req.Value)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to update asset")
		return
	}

	h.broadcast(actx.Active.ID, websocket.NewMessage("misc_asset", "updated", id, nil))
	writeJSON(w, http.StatusOK, asset)
}

func (h *MiscAssetHandler) Delete(w http.ResponseWriter, r *http.Request) {
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
	if err := h.assets.Delete(id); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to delete asset")
		return
	}

	h.broadcast(actx.Active.ID, websocket.NewMessage("misc_asset", "deleted", id, nil))
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *MiscAssetHandler) GetOwners(w http.ResponseWriter, r *http.Request) {
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

	owners, err := h.assets.Owners(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list owners")
		return
	}
	if owners == nil {
		owners = []model.Profile{}
	}
	writeJSON(w, http.StatusOK, owners)
}

func (h *MiscAssetHandler) PutOwners(w http.ResponseWriter, r *http.Request) {
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

	asset, err := h.assets.GetByID(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get asset")
		return
	}
	if asset == nil {
		writeError(w, http.StatusNotFound, "asset not found")
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

	if err := h.assets.ReplaceOwners(id, req.OwnerIDs); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to replace owners")
		return
	}

	owners, err := h.assets.Owners(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list owners")
		return
	}
	if owners == nil {
		owners = []model.Profile{}
	}

	h.broadcast(actx.Active.ID, websocket.NewMessage("misc_asset", "owners_changed", id, nil))
	writeJSON(w, http.StatusOK, owners)
}
