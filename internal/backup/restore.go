package backup

import (
	"archive/zip"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
)

// ErrRestoreInProgress is returned when a restore is already running. Only
// one restore may execute at a time.
var ErrRestoreInProgress = errors.New("restore already in progress")

// InvalidArchiveError reports an archive that failed validation. No database
// mutation has happened when one is returned.
type InvalidArchiveError struct {
	Msg string
	Err error
}

func (e *InvalidArchiveError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid backup: %s: %v", e.Msg, e.Err)
	}
	return "invalid backup: " + e.Msg
}

func (e *InvalidArchiveError) Unwrap() error { return e.Err }

// UnsupportedVersionError reports an archive whose schemaVersion does not
// match SchemaVersion.
type UnsupportedVersionError struct {
	Version string
}

func (e *UnsupportedVersionError) Error() string {
	return "unsupported schema version: " + e.Version
}

// ErrMissingMetadata reports an archive without a metadata.json entry.
var ErrMissingMetadata = &InvalidArchiveError{Msg: "missing metadata.json"}

// Restorer replaces the full dataset from a backup archive. Restore is
// all-or-nothing: the archive is validated completely before any row is
// touched, and all deletes and inserts run in one transaction.
type Restorer struct {
	db     *sql.DB
	logger *slog.Logger

	mu sync.Mutex
}

func NewRestorer(db *sql.DB, logger *slog.Logger) *Restorer {
	return &Restorer{db: db, logger: logger.With("component", "restore")}
}

// pendingTable is a validated table file waiting to be applied.
type pendingTable struct {
	name   string
	insert insertFunc
	count  int
}

// Restore applies the archive read from r. On any validation error the
// database is untouched; on any execution error the transaction rolls back.
func (rs *Restorer) Restore(ctx context.Context, r io.ReaderAt, size int64) (*Metadata, error) {
	if !rs.mu.TryLock() {
		return nil, ErrRestoreInProgress
	}
	defer rs.mu.Unlock()

	meta, pending, err := rs.validate(r, size)
	if err != nil {
		return nil, err
	}

	tx, err := rs.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin restore transaction: %w", err)
	}
	defer tx.Rollback()

	if err := run(ctx, tx, pending); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit restore: %w", err)
	}

	rs.logger.Info("restore complete",
		"backup_date", meta.BackupDate,
		"created_by", meta.CreatedBy)
	return meta, nil
}

// validate parses the archive fully without touching the database. Every
// table file must decode cleanly; a missing table file means an empty table.
func (rs *Restorer) validate(r io.ReaderAt, size int64) (*Metadata, []pendingTable, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, nil, &InvalidArchiveError{Msg: "not a zip archive", Err: err}
	}

	files := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		files[f.Name] = f
	}

	mf, ok := files["metadata.json"]
	if !ok {
		return nil, nil, ErrMissingMetadata
	}
	data, err := readZipFile(mf)
	if err != nil {
		return nil, nil, &InvalidArchiveError{Msg: "read metadata.json", Err: err}
	}
	var meta Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, nil, &InvalidArchiveError{Msg: "parse metadata.json", Err: err}
	}
	if meta.SchemaVersion != SchemaVersion {
		return nil, nil, &UnsupportedVersionError{Version: meta.SchemaVersion}
	}

	pending := make([]pendingTable, 0, len(tables))
	for _, t := range tables {
		var data []byte
		if f, ok := files[t.name+".json"]; ok {
			data, err = readZipFile(f)
			if err != nil {
				return nil, nil, &InvalidArchiveError{Msg: "read " + t.name + ".json", Err: err}
			}
		}
		insert, n, err := t.decode(data)
		if err != nil {
			return nil, nil, &InvalidArchiveError{Msg: "malformed " + t.name + ".json", Err: err}
		}
		pending = append(pending, pendingTable{name: t.name, insert: insert, count: n})
	}

	return &meta, pending, nil
}

// run clears the archived tables in reverse dependency order, then inserts
// the pending rows in forward order. Tables the archive does not cover but
// that reference archived rows are removed by ON DELETE CASCADE.
func run(ctx context.Context, ex execer, pending []pendingTable) error {
	for i := len(pending) - 1; i >= 0; i-- {
		if _, err := ex.ExecContext(ctx, "DELETE FROM "+pending[i].name); err != nil {
			return fmt.Errorf("clear %s: %w", pending[i].name, err)
		}
	}
	for _, p := range pending {
		if err := p.insert(ctx, ex); err != nil {
			return err
		}
	}
	return nil
}

func readZipFile(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
