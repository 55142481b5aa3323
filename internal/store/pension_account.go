package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/dukerupert/hearth/internal/model"
)

type PensionAccountStore struct {
	db *sql.DB
}

func NewPensionAccountStore(db *sql.DB) *PensionAccountStore {
	return &PensionAccountStore{db: db}
}

const pensionAccountCols = `id, name, provider, current_value, created_at, updated_at`

func scanPensionAccount(scanner interface{ Scan(...any) error }) (*model.PensionAccount, error) {
	var a model.PensionAccount
	err := scanner.Scan(&a.ID, &a.Name, &a.Provider, &a.CurrentValue, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *PensionAccountStore) Create(name, provider string, currentValue float64) (*model.PensionAccount, error) {
	result, err := s.db.Exec(
		`INSERT INTO pension_accounts (name, provider, current_value) VALUES (?, ?, ?)`,
		name, provider, currentValue,
	)
	if err != nil {
		return nil, fmt.Errorf("insert pension account: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *PensionAccountStore) GetByID(id int64) (*model.PensionAccount, error) {
	row := s.db.QueryRow(`SELECT `+pensionAccountCols+` FROM pension_accounts WHERE id = ?`, id)
	a, err := scanPensionAccount(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get pension account: %w", err)
	}
	return a, nil
}

func (s *PensionAccountStore) Update(id int64, name, provider string, currentValue float64) (*model.PensionAccount, error) {
	_, err := s.db.Exec(
		`UPDATE pension_accounts SET name = ?, provider = ?, current_value = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		name, provider, currentValue, id,
	)
	if err != nil {
		return nil, fmt.Errorf("update pension account: %w", err)
	}
	return s.GetByID(id)
}

func (s *PensionAccountStore) Delete(id int64) error {
	_, err := s.db.Exec(`DELETE FROM pension_accounts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete pension account: %w", err)
	}
	return nil
}

// ListVisible mirrors StockAccountStore.ListVisible for pension accounts.
func (s *PensionAccountStore) ListVisible(profileIDs []int64) ([]model.PensionAccount, error) {
	query := `SELECT DISTINCT a.id, a.name, a.provider, a.current_value, a.created_at, a.updated_at
	 FROM pension_accounts a
	 LEFT JOIN pension_account_owners o ON a.id = o.account_id
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
		return nil, fmt.Errorf("list pension accounts: %w", err)
	}
	defer rows.Close()

	var accounts []model.PensionAccount
	for rows.Next() {
		a, err := scanPensionAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan pension account: %w", err)
		}
		accounts = append(accounts, *a)
	}
	return accounts, rows.Err()
}

func (s *PensionAccountStore) Owners(accountID int64) ([]model.Profile, error) {
	return listOwnerProfiles(s.db, "pension_account_owners", "account_id", accountID)
}

func (s *PensionAccountStore) OwnerIDs(accountID int64) ([]int64, error) {
	return ownerProfileIDs(s.db, "pension_account_owners", "account_id", accountID)
}

func (s *PensionAccountStore) ReplaceOwners(accountID int64, profileIDs []int64) error {
	return replaceOwners(s.db, "pension_account_owners", "account_id", accountID, profileIDs)
}

// AddDeposit records a deposit and bumps the account's current value by the
// deposit amount in one transaction.
func (s *PensionAccountStore) AddDeposit(accountID int64, amount float64, note string, depositedAt time.Time) (*model.PensionDeposit, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.Exec(
		`INSERT INTO pension_deposits (account_id, amount, note, deposited_at) VALUES (?, ?, ?, ?)`,
		accountID, amount, note, depositedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert deposit: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	if _, err := tx.Exec(
		`UPDATE pension_accounts SET current_value = current_value + ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		amount, accountID,
	); err != nil {
		return nil, fmt.Errorf("update account value: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	var d model.PensionDeposit
	row := s.db.QueryRow(`SELECT id, account_id, amount, note, deposited_at FROM pension_deposits WHERE id = ?`, id)
	if err := row.Scan(&d.ID, &d.AccountID, &d.Amount, &d.Note, &d.DepositedAt); err != nil {
		return nil, fmt.Errorf("get deposit: %w", err)
	}
	return &d, nil
}

func (s *PensionAccountStore) ListDeposits(accountID int64) ([]model.PensionDeposit, error) {
	rows, err := s.db.Query(
		`SELECT id, account_id, amount, note, deposited_at FROM pension_deposits
		 WHERE account_id = ? ORDER BY deposited_at DESC`,
		accountID,
	)
	if err != nil {
		return nil, fmt.Errorf("list deposits: %w", err)
	}
	defer rows.Close()

	var deposits []model.PensionDeposit
	for rows.Next() {
		var d model.PensionDeposit
		if err := rows.Scan(&d.ID, &d.AccountID, &d.Amount, &d.Note, &d.DepositedAt); err != nil {
			return nil, fmt.Errorf("scan deposit: %w", err)
		}
		deposits = append(deposits, d)
	}
	return deposits, rows.Err()
}
