package store

import (
	"database/sql"
	"fmt"

	"github.com/dukerupert/hearth/internal/model"
)

type NetWorthStore struct {
	db *sql.DB
}

func NewNetWorthStore(db *sql.DB) *NetWorthStore {
	return &NetWorthStore{db: db}
}

func (s *NetWorthStore) CreateSnapshot(userID int64, totalAssets, totalLiabilities, netWorth float64) (*model.NetWorthSnapshot, error) {
	result, err := s.db.Exec(
		`INSERT INTO net_worth_snapshots (user_id, total_assets, total_liabilities, net_worth)
		 VALUES (?, ?, ?, ?)`,
		userID, totalAssets, totalLiabilities, netWorth,
	)
	if err != nil {
		return nil, fmt.Errorf("insert snapshot: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	var snap model.NetWorthSnapshot
	row := s.db.QueryRow(
		`SELECT id, user_id, total_assets, total_liabilities, net_worth, taken_at
		 FROM net_worth_snapshots WHERE id = ?`, id,
	)
	if err := row.Scan(&snap.ID, &snap.UserID, &snap.TotalAssets, &snap.TotalLiabilities, &snap.NetWorth, &snap.TakenAt); err != nil {
		return nil, fmt.Errorf("get snapshot: %w", err)
	}
	return &snap, nil
}

func (s *NetWorthStore) ListSnapshots(userID int64, limit int) ([]model.NetWorthSnapshot, error) {
	rows, err := s.db.Query(
		`SELECT id, user_id, total_assets, total_liabilities, net_worth, taken_at
		 FROM net_worth_snapshots WHERE user_id = ? ORDER BY taken_at DESC, id DESC LIMIT ?`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	var snaps []model.NetWorthSnapshot
	for rows.Next() {
		var snap model.NetWorthSnapshot
		if err := rows.Scan(&snap.ID, &snap.UserID, &snap.TotalAssets, &snap.TotalLiabilities, &snap.NetWorth, &snap.TakenAt); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		snaps = append(snaps, snap)
	}
	return snaps, rows.Err()
}
