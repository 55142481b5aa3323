package store

import (
	"database/sql"
	"fmt"

	"github.com/dukerupert/hearth/internal/model"
)

// The three ownable resource families (stock accounts, pension accounts, misc
// assets) share the same owner join-table shape: (id, <resource>_id,
// profile_id). These helpers take the table and column names as compile-time
// constants from the resource stores.

func listOwnerProfiles(db *sql.DB, joinTable, fkCol string, resourceID int64) ([]model.Profile, error) {
	query := fmt.Sprintf(
		`SELECT p.id, p.name, p.image, p.color, p.user_id, p.created_at, p.updated_at
		 FROM profiles p
		 JOIN %s o ON p.id = o.profile_id
		 WHERE o.%s = ?
		 ORDER BY p.name ASC`,
		joinTable, fkCol,
	)
	rows, err := db.Query(query, resourceID)
	if err != nil {
		return nil, fmt.Errorf("list owners from %s: %w", joinTable, err)
	}
	defer rows.Close()

	var profiles []model.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan owner profile: %w", err)
		}
		profiles = append(profiles, *p)
	}
	return profiles, rows.Err()
}

func ownerProfileIDs(db *sql.DB, joinTable, fkCol string, resourceID int64) ([]int64, error) {
	query := fmt.Sprintf(`SELECT profile_id FROM %s WHERE %s = ? ORDER BY profile_id ASC`, joinTable, fkCol)
	rows, err := db.Query(query, resourceID)
	if err != nil {
		return nil, fmt.Errorf("list owner ids from %s: %w", joinTable, err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan owner id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// replaceOwners swaps the resource's owner set for the given profile ids.
// Delete and insert run in one transaction; a failure leaves the previous
// owner set intact.
func replaceOwners(db *sql.DB, joinTable, fkCol string, resourceID int64, profileIDs []int64) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		fmt.Sprintf(`DELETE FROM %s WHERE %s = ?`, joinTable, fkCol),
		resourceID,
	); err != nil {
		return fmt.Errorf("clear owners in %s: %w", joinTable, err)
	}

	for _, pid := range profileIDs {
		if _, err := tx.Exec(
			fmt.Sprintf(`INSERT INTO %s (%s, profile_id) VALUES (?, ?)`, joinTable, fkCol),
			resourceID, pid,
		); err != nil {
			return fmt.Errorf("insert owner %d in %s: %w", pid, joinTable, err)
		}
	}

	return tx.Commit()
}
