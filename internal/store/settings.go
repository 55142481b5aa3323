package store

import (
	"database/sql"
	"fmt"
)

// SettingsStore holds per-household operational key/value settings: backup
// schedule, retention, passphrase salt, S3 credentials.
type SettingsStore struct {
	db *sql.DB
}

func NewSettingsStore(db *sql.DB) *SettingsStore {
	return &SettingsStore{db: db}
}

func (s *SettingsStore) Get(householdID int64, key string) (string, error) {
	var value string
	err := s.db.QueryRow(
		`SELECT value FROM settings WHERE household_id = ? AND key = ?`,
		householdID, key,
	).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get setting %q: %w", key, err)
	}
	return value, nil
}

func (s *SettingsStore) Set(householdID int64, key, value string) error {
	_, err := s.db.Exec(
		`INSERT INTO settings (household_id, key, value) VALUES (?, ?, ?)
		 ON CONFLICT (household_id, key) DO UPDATE SET value = excluded.value`,
		householdID, key, value,
	)
	if err != nil {
		return fmt.Errorf("set setting %q: %w", key, err)
	}
	return nil
}

// SetMany upserts several keys in one transaction.
func (s *SettingsStore) SetMany(householdID int64, values map[string]string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for key, value := range values {
		if _, err := tx.Exec(
			`INSERT INTO settings (household_id, key, value) VALUES (?, ?, ?)
			 ON CONFLICT (household_id, key) DO UPDATE SET value = excluded.value`,
			householdID, key, value,
		); err != nil {
			return fmt.Errorf("set setting %q: %w", key, err)
		}
	}
	return tx.Commit()
}

// GetPrefixed returns all settings for the household whose key starts with
// the given prefix.
func (s *SettingsStore) GetPrefixed(householdID int64, prefix string) (map[string]string, error) {
	rows, err := s.db.Query(
		`SELECT key, value FROM settings WHERE household_id = ? AND key LIKE ?`,
		householdID, prefix+"%",
	)
	if err != nil {
		return nil, fmt.Errorf("get settings %q: %w", prefix, err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("scan setting: %w", err)
		}
		out[key] = value
	}
	return out, rows.Err()
}

// ListHouseholdsWithSetting returns the ids of every household whose stored
// value for key equals value.
func (s *SettingsStore) ListHouseholdsWithSetting(key, value string) ([]int64, error) {
	rows, err := s.db.Query(
		`SELECT household_id FROM settings WHERE key = ? AND value = ? ORDER BY household_id`,
		key, value,
	)
	if err != nil {
		return nil, fmt.Errorf("list households with %q: %w", key, err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan household id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// GetBackupSettings returns every backup_* setting for the household.
func (s *SettingsStore) GetBackupSettings(householdID int64) (map[string]string, error) {
	return s.GetPrefixed(householdID, "backup_")
}

// GetS3Settings returns every s3_* setting for the household.
func (s *SettingsStore) GetS3Settings(householdID int64) (map[string]string, error) {
	return s.GetPrefixed(householdID, "s3_")
}
