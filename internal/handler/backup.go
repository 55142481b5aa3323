package handler

import (
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/dukerupert/hearth/internal/auth"
	"github.com/dukerupert/hearth/internal/backup"
	"github.com/dukerupert/hearth/internal/model"
	"github.com/dukerupert/hearth/internal/store"
)

// maxArchiveSize caps uploaded restore archives at 256 MiB.
const maxArchiveSize = 256 << 20

type BackupHandler struct {
	exporter *backup.Exporter
	restorer *backup.Restorer
	manager  *backup.Manager
	backups  *store.BackupStore
	settings *store.SettingsStore
	users    *store.UserStore
	logger   *slog.Logger
}

func NewBackupHandler(e *backup.Exporter, rs *backup.Restorer, m *backup.Manager, bs *store.BackupStore, ss *store.SettingsStore, us *store.UserStore, logger *slog.Logger) *BackupHandler {
	return &BackupHandler{
		exporter: e,
		restorer: rs,
		manager:  m,
		backups:  bs,
		settings: ss,
		users:    us,
		logger:   logger,
	}
}

// requireManager gates backup operations to owners and admins.
func (h *BackupHandler) requireManager(w http.ResponseWriter, r *http.Request) bool {
	if !auth.CanManageMembers(r.Context()) {
		writeError(w, http.StatusForbidden, "only owners and admins can manage backups")
		return false
	}
	return true
}

// Export streams a full backup archive as a zip download.
func (h *BackupHandler) Export(w http.ResponseWriter, r *http.Request) {
	if !h.requireManager(w, r) {
		return
	}
	ac, _ := auth.FromContext(r.Context())

	createdBy := ""
	if user, err := h.users.GetByID(ac.UserID); err == nil && user != nil {
		createdBy = user.Email
	}

	// Buffer the archive so a mid-export failure yields a clean error
	// response instead of a truncated download.
	var buf bytes.Buffer
	meta, err := h.exporter.Export(r.Context(), &buf, createdBy)
	if err != nil {
		h.logger.Error("export backup", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to export backup")
		return
	}

	filename := fmt.Sprintf("hearth-backup-%s.zip", meta.BackupDate.Format("2006-01-02"))
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	io.Copy(w, &buf)
}

// Restore replaces the entire dataset from an uploaded archive. The archive
// is validated completely before anything is deleted; failures at that stage
// are the client's fault and leave the data untouched.
func (h *BackupHandler) Restore(w http.ResponseWriter, r *http.Request) {
	if !h.requireManager(w, r) {
		return
	}

	archive, err := readArchiveUpload(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "No file uploaded")
		return
	}

	meta, err := h.restorer.Restore(r.Context(), bytes.NewReader(archive), int64(len(archive)))
	if err != nil {
		h.writeRestoreError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message":  "Backup restored successfully",
		"metadata": meta,
	})
}

func (h *BackupHandler) writeRestoreError(w http.ResponseWriter, err error) {
	var verr *backup.UnsupportedVersionError
	var aerr *backup.InvalidArchiveError
	switch {
	case errors.Is(err, backup.ErrMissingMetadata):
		writeError(w, http.StatusBadRequest, "Invalid backup: missing metadata.json")
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, "Unsupported schema version: "+verr.Version)
	case errors.As(err, &aerr):
		writeError(w, http.StatusBadRequest, "Invalid backup: "+aerr.Msg)
	case errors.Is(err, backup.ErrRestoreInProgress):
		writeError(w, http.StatusConflict, "a restore is already in progress")
	default:
		// Mutation-stage failures surface the underlying message so the
		// operator can see how far the restore got.
		h.logger.Error("restore backup", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// readArchiveUpload accepts either a multipart "file" field or a raw body.
func readArchiveUpload(r *http.Request) ([]byte, error) {
	r.Body = http.MaxBytesReader(nil, r.Body, maxArchiveSize)

	if err := r.ParseMultipartForm(maxArchiveSize); err == nil {
		file, _, err := r.FormFile("file")
		if err != nil {
			return nil, err
		}
		defer file.Close()
		return io.ReadAll(file)
	}

	data, err := io.ReadAll(r.Body)
	if err != nil || len(data) == 0 {
		return nil, fmt.Errorf("empty body")
	}
	return data, nil
}

// OffsiteStatus returns the offsite manager's state.
func (h *BackupHandler) OffsiteStatus(w http.ResponseWriter, r *http.Request) {
	if !h.requireManager(w, r) {
		return
	}
	ac, _ := auth.FromContext(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         h.manager.Status(),
		"has_cached_key": h.manager.HasCachedKey(ac.HouseholdID),
	})
}

// OffsiteHistory lists the household's offsite backup records.
func (h *BackupHandler) OffsiteHistory(w http.ResponseWriter, r *http.Request) {
	if !h.requireManager(w, r) {
		return
	}
	ac, _ := auth.FromContext(r.Context())

	limit := 50
	if s := r.URL.Query().Get("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}

	records, err := h.backups.List(ac.HouseholdID, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list backups")
		return
	}
	if records == nil {
		records = []model.Backup{}
	}
	writeJSON(w, http.StatusOK, records)
}

// OffsiteRunNow triggers an immediate encrypted offsite backup. The
// passphrase is cached in memory so scheduled backups can reuse it.
func (h *BackupHandler) OffsiteRunNow(w http.ResponseWriter, r *http.Request) {
	if !h.requireManager(w, r) {
		return
	}
	ac, _ := auth.FromContext(r.Context())

	var req struct {
		Passphrase string `json:"passphrase"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Passphrase == "" {
		writeError(w, http.StatusBadRequest, "passphrase is required")
		return
	}

	id, err := h.manager.RunNow(r.Context(), ac.HouseholdID, req.Passphrase)
	if err != nil {
		h.logger.Error("offsite backup", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if settings, err := h.settings.GetBackupSettings(ac.HouseholdID); err == nil {
		if salt, err := hex.DecodeString(settings["backup_passphrase_salt"]); err == nil {
			h.manager.CacheKey(ac.HouseholdID, req.Passphrase, salt)
		}
	}

	writeJSON(w, http.StatusAccepted, map[string]any{"backup_id": id})
}

// OffsiteRestore downloads, decrypts and applies an offsite backup.
func (h *BackupHandler) OffsiteRestore(w http.ResponseWriter, r *http.Request) {
	if !h.requireManager(w, r) {
		return
	}
	ac, _ := auth.FromContext(r.Context())
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	var req struct {
		Passphrase string `json:"passphrase"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Passphrase == "" {
		writeError(w, http.StatusBadRequest, "passphrase is required")
		return
	}

	meta, err := h.manager.Restore(r.Context(), id, ac.HouseholdID, req.Passphrase)
	if err != nil {
		h.writeRestoreError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "restored",
		"metadata": meta,
	})
}

// OffsiteDownload streams the encrypted archive for local safekeeping.
func (h *BackupHandler) OffsiteDownload(w http.ResponseWriter, r *http.Request) {
	if !h.requireManager(w, r) {
		return
	}
	ac, _ := auth.FromContext(r.Context())
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	body, size, err := h.manager.Download(r.Context(), id, ac.HouseholdID)
	if err != nil {
		writeError(w, http.StatusNotFound, "backup not available")
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="backup-%d.zip.enc"`, id))
	if size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
	}
	w.WriteHeader(http.StatusOK)
	io.Copy(w, body)
}

// GetSettings returns the household's backup_* settings with the passphrase
// salt elided.
func (h *BackupHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	if !h.requireManager(w, r) {
		return
	}
	ac, _ := auth.FromContext(r.Context())

	settings, err := h.settings.GetBackupSettings(ac.HouseholdID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get settings")
		return
	}
	settings["backup_passphrase_configured"] = "false"
	if settings["backup_passphrase_salt"] != "" {
		settings["backup_passphrase_configured"] = "true"
	}
	delete(settings, "backup_passphrase_salt")
	writeJSON(w, http.StatusOK, settings)
}

// UpdateSettings saves backup schedule, retention and S3 settings. Setting a
// passphrase generates a fresh salt; S3 changes hot-reload the manager.
func (h *BackupHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	if !h.requireManager(w, r) {
		return
	}
	ac, _ := auth.FromContext(r.Context())

	var req struct {
		Enabled       *bool   `json:"enabled"`
		ScheduleHour  *int    `json:"schedule_hour"`
		RetentionDays *int    `json:"retention_days"`
		Passphrase    *string `json:"passphrase"`
		S3Endpoint    *string `json:"s3_endpoint"`
		S3Bucket      *string `json:"s3_bucket"`
		S3Region      *string `json:"s3_region"`
		S3AccessKey   *string `json:"s3_access_key"`
		S3SecretKey   *string `json:"s3_secret_key"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	values := map[string]string{}
	if req.Enabled != nil {
		values["backup_enabled"] = strconv.FormatBool(*req.Enabled)
	}
	if req.ScheduleHour != nil {
		if *req.ScheduleHour < 0 || *req.ScheduleHour > 23 {
			writeError(w, http.StatusBadRequest, "schedule_hour must be 0-23")
			return
		}
		values["backup_schedule_hour"] = strconv.Itoa(*req.ScheduleHour)
	}
	if req.RetentionDays != nil {
		if *req.RetentionDays < 1 || *req.RetentionDays > 3650 {
			writeError(w, http.StatusBadRequest, "retention_days must be 1-3650")
			return
		}
		values["backup_retention_days"] = strconv.Itoa(*req.RetentionDays)
	}
	if req.Passphrase != nil {
		if len(*req.Passphrase) < 12 {
			writeError(w, http.StatusBadRequest, "passphrase must be at least 12 characters")
			return
		}
		salt := make([]byte, 16)
		if _, err := rand.Read(salt); err != nil {
			writeError(w, http.StatusInternalServerError, "failed to generate salt")
			return
		}
		values["backup_passphrase_salt"] = hex.EncodeToString(salt)
		h.manager.CacheKey(ac.HouseholdID, *req.Passphrase, salt)
	}
	if req.S3Endpoint != nil {
		values["s3_endpoint"] = *req.S3Endpoint
	}
	if req.S3Bucket != nil {
		values["s3_bucket"] = *req.S3Bucket
	}
	if req.S3Region != nil {
		values["s3_region"] = *req.S3Region
	}
	if req.S3AccessKey != nil {
		values["s3_access_key"] = *req.S3AccessKey
	}
	if req.S3SecretKey != nil {
		values["s3_secret_key"] = *req.S3SecretKey
	}

	if len(values) == 0 {
		writeError(w, http.StatusBadRequest, "no settings to update")
		return
	}

	if err := h.settings.SetMany(ac.HouseholdID, values); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to save settings")
		return
	}

	if req.S3Endpoint != nil || req.S3Bucket != nil || req.S3Region != nil || req.S3AccessKey != nil || req.S3SecretKey != nil {
		s3s, err := h.settings.GetS3Settings(ac.HouseholdID)
		if err == nil {
			h.manager.UpdateS3Config(backup.S3Config{
				Endpoint:  s3s["s3_endpoint"],
				Bucket:    s3s["s3_bucket"],
				Region:    s3s["s3_region"],
				AccessKey: s3s["s3_access_key"],
				SecretKey: s3s["s3_secret_key"],
			})
		}
	}

	h.GetSettings(w, r)
}
