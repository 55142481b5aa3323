package store

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/dukerupert/hearth/internal/model"
)

type MiscAssetStore struct {
	db *sql.DB
}

func NewMiscAssetStore(db *sql.DB) *MiscAssetStore {
	return &MiscAssetStore{db: db}
}

const miscAssetCols = `id, name, asset_type, value, created_at, updated_at`

func scanMiscAsset(scanner interface{ Scan(...any) error }) (*model.MiscAsset, error) {
	var a model.MiscAsset
	err := scanner.Scan(&a.ID, &a.Name, &a.AssetType, &a.Value, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *MiscAssetStore) Create(name, assetType string, value float64) (*model.MiscAsset, error) {
	result, err := s.db.Exec(
		`INSERT INTO misc_assets (name, asset_type, value) VALUES (?, ?, ?)`,
		name, assetType, value,
	)
	if err != nil {
		return nil, fmt.Errorf("insert misc asset: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *MiscAssetStore) GetByID(id int64) (*model.MiscAsset, error) {
	row := s.db.QueryRow(`SELECT `+miscAssetCols+` FROM misc_assets WHERE id = ?`, id)
	a, err := scanMiscAsset(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get misc asset: %w", err)
	}
	return a, nil
}

func (s *MiscAssetStore) Update(id int64, name, assetType string, value float64) (*model.MiscAsset, error) {
	_, err := s.db.Exec(
		`UPDATE misc_assets SET name = ?, asset_type = ?, value = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		name, assetType, value, id,
	)
	if err != nil {
		return nil, fmt.Errorf("update misc asset: %w", err)
	}
	return s.GetByID(id)
}

func (s *MiscAssetStore) Delete(id int64) error {
	_, err := s.db.Exec(`DELETE FROM misc_assets WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete misc asset: %w", err)
	}
	return nil
}

func (s *MiscAssetStore) ListVisible(profileIDs []int64) ([]model.MiscAsset, error) {
	query := `SELECT DISTINCT a.id, a.name, a.asset_type, a.value, a.created_at, a.updated_at
	 FROM misc_assets a
	 LEFT JOIN misc_asset_owners o ON a.id = o.asset_id
	 WHERE o.id IS NULL`
	args := make([]any, 0, len(profileIDs))
	if len(profileIDs) > 0 {
		query += ` OR o.profile_id IN (?` + strings.Repeat(",?", len(profileIDs)-1) + `)`
		for _, id := range profileIDs {
			args = append(args, id)
		}
	}
	query += ` ORDER BY a.name ASC`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list misc assets: %w", err)
	}
	defer rows.Close()

	var assets []model.MiscAsset
	for rows.Next() {
		a, err := scanMiscAsset(rows)
		if err != nil {
			return nil, fmt.Errorf("scan misc asset: %w", err)
		}
		assets = append(assets, *a)
	}
	return assets, rows.Err()
}

func (s *MiscAssetStore) Owners(assetID int64) ([]model.Profile, error) {
	return listOwnerProfiles(s.db, "misc_asset_owners", "asset_id", assetID)
}

func (s *MiscAssetStore) OwnerIDs(assetID int64) ([]int64, error) {
	return ownerProfileIDs(s.db, "misc_asset_owners", "asset_id", assetID)
}

func (s *MiscAssetStore) ReplaceOwners(assetID int64, profileIDs []int64) error {
	return replaceOwners(s.db, "misc_asset_owners", "asset_id", assetID, profileIDs)
}
