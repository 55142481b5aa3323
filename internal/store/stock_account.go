package store

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/dukerupert/hearth/internal/model"
)

type StockAccountStore struct {
	db *sql.DB
}

func NewStockAccountStore(db *sql.DB) *StockAccountStore {
	return &StockAccountStore{db: db}
}

const stockAccountCols = `id, name, account_type, current_value, created_at, updated_at`

func scanStockAccount(scanner interface{ Scan(...any) error }) (*model.StockAccount, error) {
	var a model.StockAccount
	err := scanner.Scan(&a.ID, &a.Name, &a.AccountType, &a.CurrentValue, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *StockAccountStore) Create(name, accountType string, currentValue float64) (*model.StockAccount, error) {
	result, err := s.db.Exec(
		`INSERT INTO stock_accounts (name, account_type, current_value) VALUES (?, ?, ?)`,
		name, accountType, currentValue,
	)
	if err != nil {
		return nil, fmt.Errorf("insert stock account: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *StockAccountStore) GetByID(id int64) (*model.StockAccount, error) {
	row := s.db.QueryRow(`SELECT `+stockAccountCols+` FROM stock_accounts WHERE id = ?`, id)
	a, err := scanStockAccount(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get stock account: %w", err)
	}
	return a, nil
}

func (s *StockAccountStore) Update(id int64, name, accountType string, currentValue float64) (*model.StockAccount, error) {
	_, err := s.db.Exec(
		`UPDATE stock_accounts SET name = ?, account_type = ?, current_value = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		name, accountType, currentValue, id,
	)
	if err != nil {
		return nil, fmt.Errorf("update stock account: %w", err)
	}
	return s.GetByID(id)
}

func (s *StockAccountStore) Delete(id int64) error {
	_, err := s.db.Exec(`DELETE FROM stock_accounts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete stock account: %w", err)
	}
	return nil
}

// ListVisible returns accounts owned by any of the given profiles, plus
// accounts with no owners at all (visible to everyone until claimed).
func (s *StockAccountStore) ListVisible(profileIDs []int64) ([]model.StockAccount, error) {
	return listVisibleStockAccounts(s.db, profileIDs)
}

func listVisibleStockAccounts(db *sql.DB, profileIDs []int64) ([]model.StockAccount, error) {
	query := `SELECT DISTINCT a.id, a.name, a.account_type, a.current_value, a.created_at, a.updated_at
	 FROM stock_accounts a
	 LEFT JOIN stock_account_owners o ON a.id = o.account_id
	 WHERE o.id IS NULL`
	args := make([]any, 0, len(profileIDs))
	if len(profileIDs) > 0 {
		query += ` OR o.profile_id IN (?` + strings.Repeat(",?", len(profileIDs)-1) + `)`
		for _, id := range profileIDs {
			args = append(args, id)
		}
	}
	query += ` ORDER BY a.name ASC`

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list stock accounts: %w", err)
	}
	defer rows.Close()

	var accounts []model.StockAccount
	for rows.Next() {
		a, err := scanStockAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan stock account: %w", err)
		}
		accounts = append(accounts, *a)
	}
	return accounts, rows.Err()
}

func (s *StockAccountStore) Owners(accountID int64) ([]model.Profile, error) {
	return listOwnerProfiles(s.db, "stock_account_owners", "account_id", accountID)
}

func (s *StockAccountStore) OwnerIDs(accountID int64) ([]int64, error) {
	return ownerProfileIDs(s.db, "stock_account_owners", "account_id", accountID)
}

func (s *StockAccountStore) ReplaceOwners(accountID int64, profileIDs []int64) error {
	return replaceOwners(s.db, "stock_account_owners", "account_id", accountID, profileIDs)
}

const stockHoldingCols = `id, account_id, symbol, name, quantity, unit_price, created_at, updated_at`

func scanStockHolding(scanner interface{ Scan(...any) error }) (*model.StockHolding, error) {
	var h model.StockHolding
	err := scanner.Scan(&h.ID, &h.AccountID, &h.Symbol, &h.Name, &h.Quantity, &h.UnitPrice, &h.CreatedAt, &h.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &h, nil
}

func (s *StockAccountStore) CreateHolding(accountID int64, symbol, name string, quantity, unitPrice float64) (*model.StockHolding, error) {
	result, err := s.db.Exec(
		`INSERT INTO stock_holdings (account_id, symbol, name, quantity, unit_price) VALUES (?, ?, ?, ?, ?)`,
		accountID, symbol, name, quantity, unitPrice,
	)
	if err != nil {
		return nil, fmt.Errorf("insert holding: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetHolding(id)
}

func (s *StockAccountStore) GetHolding(id int64) (*model.StockHolding, error) {
	row := s.db.QueryRow(`SELECT `+stockHoldingCols+` FROM stock_holdings WHERE id = ?`, id)
	h, err := scanStockHolding(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get holding: %w", err)
	}
	return h, nil
}

func (s *StockAccountStore) UpdateHolding(id int64, symbol, name string, quantity, unitPrice float64) (*model.StockHolding, error) {
	_, err := s.db.Exec(
		`UPDATE stock_holdings SET symbol = ?, name = ?, quantity = ?, unit_price = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		symbol, name, quantity, unitPrice, id,
	)
	if err != nil {
		return nil, fmt.Errorf("update holding: %w", err)
	}
	return s.GetHolding(id)
}

func (s *StockAccountStore) DeleteHolding(id int64) error {
	_, err := s.db.Exec(`DELETE FROM stock_holdings WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete holding: %w", err)
	}
	return nil
}

func (s *StockAccountStore) ListHoldings(accountID int64) ([]model.StockHolding, error) {
	rows, err := s.db.Query(
		`SELECT `+stockHoldingCols+` FROM stock_holdings WHERE account_id = ? ORDER BY symbol ASC`,
		accountID,
	)
	if err != nil {
		return nil, fmt.Errorf("list holdings: %w", err)
	}
	defer rows.Close()

	var holdings []model.StockHolding
	for rows.Next() {
		h, err := scanStockHolding(rows)
		if err != nil {
			return nil, fmt.Errorf("scan holding: %w", err)
		}
		holdings = append(holdings, *h)
	}
	return holdings, rows.Err()
}

// RecordPrice appends a price observation and updates the holding's current
// unit price in one transaction.
func (s *StockAccountStore) RecordPrice(holdingID int64, price float64) (*model.StockPrice, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.Exec(
		`INSERT INTO stock_price_history (holding_id, price) VALUES (?, ?)`,
		holdingID, price,
	)
	if err != nil {
		return nil, fmt.Errorf("insert price: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	if _, err := tx.Exec(
		`UPDATE stock_holdings SET unit_price = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		price, holdingID,
	); err != nil {
		return nil, fmt.Errorf("update holding price: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	var p model.StockPrice
	row := s.db.QueryRow(`SELECT id, holding_id, price, recorded_at FROM stock_price_history WHERE id = ?`, id)
	if err := row.Scan(&p.ID, &p.HoldingID, &p.Price, &p.RecordedAt); err != nil {
		return nil, fmt.Errorf("get price: %w", err)
	}
	return &p, nil
}

func (s *StockAccountStore) ListPrices(holdingID int64, limit int) ([]model.StockPrice, error) {
	rows, err := s.db.Query(
		`SELECT id, holding_id, price, recorded_at FROM stock_price_history
		 WHERE holding_id = ? ORDER BY recorded_at DESC LIMIT ?`,
		holdingID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list prices: %w", err)
	}
	defer rows.Close()

	var prices []model.StockPrice
	for rows.Next() {
		var p model.StockPrice
		if err := rows.Scan(&p.ID, &p.HoldingID, &p.Price, &p.RecordedAt); err != nil {
			return nil, fmt.Errorf("scan price: %w", err)
		}
		prices = append(prices, p)
	}
	return prices, rows.Err()
}
