package backup

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/dukerupert/hearth/internal/model"
	"github.com/dukerupert/hearth/internal/store"
)

// s3Client is an interface for testability.
type s3Client interface {
	PutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, input *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, input *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Config holds S3-compatible storage configuration.
type S3Config struct {
	Endpoint  string
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string
}

// State represents the offsite backup manager state.
type State string

const (
	StateIdle     State = "idle"
	StateRunning  State = "running"
	StateDisabled State = "disabled"
	StateError    State = "error"
)

// Status holds the current offsite backup status.
type Status struct {
	State      State      `json:"state"`
	LastBackup *time.Time `json:"last_backup,omitempty"`
	Error      string     `json:"error,omitempty"`
	InProgress bool       `json:"in_progress"`
}

// StatusCallback is called whenever the offsite backup state changes.
type StatusCallback func(Status)

// cachedCreds stores passphrase and salt for scheduled backups (memory only).
type cachedCreds struct {
	passphrase string
	salt       []byte
}

// Manager manages encrypted offsite backups in S3-compatible storage. Each
// offsite backup is a full archive produced by the Exporter, encrypted with a
// household passphrase; offsite restore feeds the decrypted archive through
// the Restorer.
type Manager struct {
	mu       sync.RWMutex
	s3cfg    S3Config
	status   Status
	callback StatusCallback

	exporter *Exporter
	restorer *Restorer
	backups  *store.BackupStore
	settings *store.SettingsStore
	client   s3Client
	logger   *slog.Logger

	cachedCreds map[int64]*cachedCreds // householdID -> cached credentials

	cancel context.CancelFunc
	done   chan struct{}
}

// NewManager creates an offsite backup manager.
func NewManager(s3cfg S3Config, exporter *Exporter, restorer *Restorer, bs *store.BackupStore, ss *store.SettingsStore, logger *slog.Logger, callback StatusCallback) *Manager {
	m := &Manager{
		s3cfg:       s3cfg,
		exporter:    exporter,
		restorer:    restorer,
		backups:     bs,
		settings:    ss,
		logger:      logger.With("component", "offsite"),
		callback:    callback,
		cachedCreds: make(map[int64]*cachedCreds),
		status:      Status{State: StateDisabled},
	}

	if s3cfg.Bucket != "" && s3cfg.AccessKey != "" && s3cfg.SecretKey != "" {
		m.client = newS3Client(s3cfg)
		m.status.State = StateIdle
	}

	return m
}

func newS3Client(cfg S3Config) *s3.Client {
	opts := s3.Options{
		Region:       cfg.Region,
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		UsePathStyle: true,
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}
	return s3.New(opts)
}

// UpdateS3Config hot-reloads the S3 configuration.
func (m *Manager) UpdateS3Config(s3cfg S3Config) {
	m.mu.Lock()
	m.s3cfg = s3cfg
	if s3cfg.Bucket != "" && s3cfg.AccessKey != "" && s3cfg.SecretKey != "" {
		m.client = newS3Client(s3cfg)
		m.status.State = StateIdle
	} else {
		m.client = nil
		m.status.State = StateDisabled
	}
	status := m.status
	m.mu.Unlock()
	if m.callback != nil {
		m.callback(status)
	}
}

// Start begins the scheduled backup loop.
func (m *Manager) Start(ctx context.Context) {
	m.mu.Lock()
	if m.status.State == StateDisabled {
		m.mu.Unlock()
		return
	}
	ctx, m.cancel = context.WithCancel(ctx)
	m.done = make(chan struct{})
	m.mu.Unlock()

	go func() {
		defer close(m.done)
		ticker := time.NewTicker(1 * time.Minute)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.checkSchedule(ctx, time.Now().UTC())
			}
		}
	}()
}

// Stop gracefully stops the backup manager.
func (m *Manager) Stop() {
	m.mu.RLock()
	cancel := m.cancel
	done := m.done
	m.mu.RUnlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

// Status returns the current offsite backup status.
func (m *Manager) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

func (m *Manager) setStatus(s Status) {
	m.mu.Lock()
	m.status = s
	m.mu.Unlock()
	if m.callback != nil {
		m.callback(s)
	}
}

// CacheKey caches the passphrase and salt for scheduled backups.
func (m *Manager) CacheKey(householdID int64, passphrase string, salt []byte) {
	m.mu.Lock()
	m.cachedCreds[householdID] = &cachedCreds{passphrase: passphrase, salt: salt}
	m.mu.Unlock()
}

// HasCachedKey returns whether credentials are cached for the household.
func (m *Manager) HasCachedKey(householdID int64) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.cachedCreds[householdID]
	return ok
}

// checkSchedule runs the scheduled backup for every household that enabled
// one and whose configured hour matches now.
func (m *Manager) checkSchedule(ctx context.Context, now time.Time) {
	ids, err := m.settings.ListHouseholdsWithSetting("backup_enabled", "true")
	if err != nil {
		m.logger.Error("list scheduled households", "error", err)
		return
	}

	for _, householdID := range ids {
		m.runScheduledBackup(ctx, householdID, now)
	}
}

func (m *Manager) runScheduledBackup(ctx context.Context, householdID int64, now time.Time) {
	settings, err := m.settings.GetBackupSettings(householdID)
	if err != nil {
		m.logger.Error("get backup settings", "household_id", householdID, "error", err)
		return
	}

	hour, _ := strconv.Atoi(settings["backup_schedule_hour"])
	if now.Hour() != hour || now.Minute() != 0 {
		return
	}

	m.mu.RLock()
	creds, hasCached := m.cachedCreds[householdID]
	m.mu.RUnlock()

	if !hasCached {
		m.logger.Warn("skipping scheduled backup, no cached credentials", "household_id", householdID)
		return
	}

	if _, err := m.runBackup(ctx, householdID, creds.passphrase, creds.salt); err != nil {
		m.logger.Error("scheduled backup failed", "household_id", householdID, "error", err)
	}

	retentionDays, _ := strconv.Atoi(settings["backup_retention_days"])
	if retentionDays <= 0 {
		retentionDays = 30
	}
	if err := m.Cleanup(ctx, householdID, retentionDays); err != nil {
		m.logger.Error("cleanup failed", "household_id", householdID, "error", err)
	}
}

// RunNow runs an offsite backup immediately with the provided passphrase.
func (m *Manager) RunNow(ctx context.Context, householdID int64, passphrase string) (int64, error) {
	m.mu.RLock()
	client := m.client
	m.mu.RUnlock()
	if client == nil {
		return 0, fmt.Errorf("backup not configured: S3 credentials missing")
	}

	settings, err := m.settings.GetBackupSettings(householdID)
	if err != nil {
		return 0, fmt.Errorf("get backup settings: %w", err)
	}

	saltHex := settings["backup_passphrase_salt"]
	if saltHex == "" {
		return 0, fmt.Errorf("backup passphrase not configured")
	}

	salt, err := hex.DecodeString(saltHex)
	if err != nil {
		return 0, fmt.Errorf("decode salt: %w", err)
	}

	return m.runBackup(ctx, householdID, passphrase, salt)
}

func (m *Manager) runBackup(ctx context.Context, householdID int64, passphrase string, salt []byte) (int64, error) {
	m.mu.RLock()
	client := m.client
	bucket := m.s3cfg.Bucket
	m.mu.RUnlock()

	if client == nil {
		return 0, fmt.Errorf("backup not configured: S3 credentials missing")
	}

	m.setStatus(Status{State: StateRunning, InProgress: true})

	timestamp := time.Now().UTC().Format("2006-01-02T150405Z")
	filename := fmt.Sprintf("backup-%s.zip.enc", timestamp)
	s3Key := fmt.Sprintf("%d/%s", householdID, filename)

	record, err := m.backups.Create(householdID, filename, s3Key)
	if err != nil {
		m.setStatus(Status{State: StateError, Error: err.Error()})
		return 0, fmt.Errorf("create backup record: %w", err)
	}

	m.backups.UpdateStatus(record.ID, model.BackupStatusUploading, "")

	tmpDir := os.TempDir()
	archive := filepath.Join(tmpDir, fmt.Sprintf("hearth-backup-%d.zip", record.ID))
	encFile := filepath.Join(tmpDir, fmt.Sprintf("hearth-backup-%d.zip.enc", record.ID))
	defer os.Remove(archive)
	defer os.Remove(encFile)

	fail := func(err error, msg string) (int64, error) {
		m.backups.UpdateStatus(record.ID, model.BackupStatusFailed, err.Error())
		m.setStatus(Status{State: StateError, Error: err.Error()})
		return 0, fmt.Errorf("%s: %w", msg, err)
	}

	out, err := os.Create(archive)
	if err != nil {
		return fail(err, "create archive file")
	}
	if _, err := m.exporter.Export(ctx, out, "scheduled"); err != nil {
		out.Close()
		return fail(err, "export archive")
	}
	if err := out.Close(); err != nil {
		return fail(err, "close archive file")
	}

	if err := EncryptFile(archive, encFile, passphrase, salt); err != nil {
		return fail(err, "encrypt")
	}

	encData, err := os.Open(encFile)
	if err != nil {
		return fail(err, "open encrypted file")
	}
	defer encData.Close()

	stat, _ := encData.Stat()

	_, err = client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(s3Key),
		Body:          encData,
		ContentLength: aws.Int64(stat.Size()),
	})
	if err != nil {
		return fail(err, "upload to s3")
	}

	m.backups.UpdateCompleted(record.ID, stat.Size())

	now := time.Now().UTC()
	m.setStatus(Status{State: StateIdle, LastBackup: &now})

	return record.ID, nil
}

// Restore downloads an offsite backup, decrypts it and applies it through
// the restorer. The server keeps running; no process restart is needed.
func (m *Manager) Restore(ctx context.Context, backupID, householdID int64, passphrase string) (*Metadata, error) {
	m.mu.RLock()
	client := m.client
	bucket := m.s3cfg.Bucket
	m.mu.RUnlock()

	if client == nil {
		return nil, fmt.Errorf("backup not configured")
	}

	record, err := m.backups.GetByID(backupID, householdID)
	if err != nil {
		return nil, fmt.Errorf("get backup: %w", err)
	}
	if record == nil {
		return nil, fmt.Errorf("backup not found")
	}

	tmpDir := os.TempDir()
	encFile := filepath.Join(tmpDir, fmt.Sprintf("hearth-restore-%d.zip.enc", backupID))
	archive := filepath.Join(tmpDir, fmt.Sprintf("hearth-restore-%d.zip", backupID))
	defer os.Remove(encFile)
	defer os.Remove(archive)

	result, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(record.S3Key),
	})
	if err != nil {
		return nil, fmt.Errorf("download from s3: %w", err)
	}
	defer result.Body.Close()

	outFile, err := os.Create(encFile)
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	if _, err := io.Copy(outFile, result.Body); err != nil {
		outFile.Close()
		return nil, fmt.Errorf("write downloaded file: %w", err)
	}
	outFile.Close()

	if err := DecryptFile(encFile, archive, passphrase); err != nil {
		return nil, fmt.Errorf("decrypt backup: %w", err)
	}

	f, err := os.Open(archive)
	if err != nil {
		return nil, fmt.Errorf("open decrypted archive: %w", err)
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat decrypted archive: %w", err)
	}

	meta, err := m.restorer.Restore(ctx, f, stat.Size())
	if err != nil {
		return nil, err
	}

	m.logger.Info("offsite restore complete", "backup_id", backupID)
	return meta, nil
}

// Download streams an encrypted backup from S3.
func (m *Manager) Download(ctx context.Context, backupID, householdID int64) (io.ReadCloser, int64, error) {
	m.mu.RLock()
	client := m.client
	bucket := m.s3cfg.Bucket
	m.mu.RUnlock()

	if client == nil {
		return nil, 0, fmt.Errorf("backup not configured")
	}

	record, err := m.backups.GetByID(backupID, householdID)
	if err != nil {
		return nil, 0, fmt.Errorf("get backup: %w", err)
	}
	if record == nil {
		return nil, 0, fmt.Errorf("backup not found")
	}

	result, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(record.S3Key),
	})
	if err != nil {
		return nil, 0, fmt.Errorf("download from s3: %w", err)
	}

	return result.Body, record.SizeBytes, nil
}

// Cleanup deletes offsite backups older than the retention period.
func (m *Manager) Cleanup(ctx context.Context, householdID int64, retentionDays int) error {
	m.mu.RLock()
	client := m.client
	bucket := m.s3cfg.Bucket
	m.mu.RUnlock()

	if client == nil {
		return nil
	}

	before := time.Now().UTC().AddDate(0, 0, -retentionDays)
	keys, err := m.backups.DeleteOlderThan(householdID, before)
	if err != nil {
		return fmt.Errorf("delete old backups: %w", err)
	}

	for _, key := range keys {
		if _, err := client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(bucket),
			Key:    aws.String(key),
		}); err != nil {
			m.logger.Error("failed to delete s3 object", "key", key, "error", err)
		}
	}

	return nil
}
