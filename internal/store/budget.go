package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/hearth/internal/model"
)

type BudgetStore struct {
	db *sql.DB
}

func NewBudgetStore(db *sql.DB) *BudgetStore {
	return &BudgetStore{db: db}
}

func (s *BudgetStore) CreateGroup(householdID int64, name string, sortOrder int) (*model.BudgetCategoryGroup, error) {
	result, err := s.db.Exec(
		`INSERT INTO budget_category_groups (household_id, name, sort_order) VALUES (?, ?, ?)`,
		householdID, name, sortOrder,
	)
	if err != nil {
		return nil, fmt.Errorf("insert budget group: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetGroup(id)
}

func (s *BudgetStore) GetGroup(id int64) (*model.BudgetCategoryGroup, error) {
	var g model.BudgetCategoryGroup
	err := s.db.QueryRow(
		`SELECT id, household_id, name, sort_order FROM budget_category_groups WHERE id = ?`, id,
	).Scan(&g.ID, &g.HouseholdID, &g.Name, &g.SortOrder)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get budget group: %w", err)
	}
	return &g, nil
}

func (s *BudgetStore) UpdateGroup(id int64, name string, sortOrder int) (*model.BudgetCategoryGroup, error) {
	_, err := s.db.Exec(
		`UPDATE budget_category_groups SET name = ?, sort_order = ? WHERE id = ?`,
		name, sortOrder, id,
	)
	if err != nil {
		return nil, fmt.Errorf("update budget group: %w", err)
	}
	return s.GetGroup(id)
}

// DeleteGroup removes the group and its categories; transactions referencing
// those categories keep their history with the category reference nulled.
func (s *BudgetStore) DeleteGroup(id int64) error {
	_, err := s.db.Exec(`DELETE FROM budget_category_groups WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete budget group: %w", err)
	}
	return nil
}

func (s *BudgetStore) ListGroups(householdID int64) ([]model.BudgetCategoryGroup, error) {
	rows, err := s.db.Query(
		`SELECT id, household_id, name, sort_order FROM budget_category_groups
		 WHERE household_id = ? ORDER BY sort_order ASC, name ASC`,
		householdID,
	)
	if err != nil {
		return nil, fmt.Errorf("list budget groups: %w", err)
	}
	defer rows.Close()

	var groups []model.BudgetCategoryGroup
	for rows.Next() {
		var g model.BudgetCategoryGroup
		if err := rows.Scan(&g.ID, &g.HouseholdID, &g.Name, &g.SortOrder); err != nil {
			return nil, fmt.Errorf("scan budget group: %w", err)
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

func (s *BudgetStore) CreateCategory(groupID int64, name string, monthlyLimit float64) (*model.BudgetCategory, error) {
	result, err := s.db.Exec(
		`INSERT INTO budget_categories (group_id, name, monthly_limit) VALUES (?, ?, ?)`,
		groupID, name, monthlyLimit,
	)
	if err != nil {
		return nil, fmt.Errorf("insert budget category: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetCategory(id)
}

func (s *BudgetStore) GetCategory(id int64) (*model.BudgetCategory, error) {
	var c model.BudgetCategory
	err := s.db.QueryRow(
		`SELECT id, group_id, name, monthly_limit FROM budget_categories WHERE id = ?`, id,
	).Scan(&c.ID, &c.GroupID, &c.Name, &c.MonthlyLimit)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get budget category: %w", err)
	}
	return &c, nil
}

func (s *BudgetStore) UpdateCategory(id int64, name string, monthlyLimit float64) (*model.BudgetCategory, error) {
	_, err := s.db.Exec(
		`UPDATE budget_categories SET name = ?, monthly_limit = ? WHERE id = ?`,
		name, monthlyLimit, id,
	)
	if err != nil {
		return nil, fmt.Errorf("update budget category: %w", err)
	}
	return s.GetCategory(id)
}

// DeleteCategory removes the category. The ON DELETE SET NULL constraint on
// budget_transactions turns its transactions uncategorized rather than
// deleting them.
func (s *BudgetStore) DeleteCategory(id int64) error {
	_, err := s.db.Exec(`DELETE FROM budget_categories WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete budget category: %w", err)
	}
	return nil
}

func (s *BudgetStore) ListCategories(householdID int64) ([]model.BudgetCategory, error) {
	rows, err := s.db.Query(
		`SELECT c.id, c.group_id, c.name, c.monthly_limit
		 FROM budget_categories c
		 JOIN budget_category_groups g ON c.group_id = g.id
		 WHERE g.household_id = ?
		 ORDER BY g.sort_order ASC, c.name ASC`,
		householdID,
	)
	if err != nil {
		return nil, fmt.Errorf("list budget categories: %w", err)
	}
	defer rows.Close()

	var categories []model.BudgetCategory
	for rows.Next() {
		var c model.BudgetCategory
		if err := rows.Scan(&c.ID, &c.GroupID, &c.Name, &c.MonthlyLimit); err != nil {
			return nil, fmt.Errorf("scan budget category: %w", err)
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

func (s *BudgetStore) CreateTransaction(householdID int64, categoryID *int64, description string, amount float64, occurredAt time.Time) (*model.BudgetTransaction, error) {
	result, err := s.db.Exec(
		`INSERT INTO budget_transactions (household_id, category_id, description, amount, occurred_at)
		 VALUES (?, ?, ?, ?, ?)`,
		householdID, categoryID, description, amount, occurredAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert transaction: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetTransaction(id)
}

func (s *BudgetStore) GetTransaction(id int64) (*model.BudgetTransaction, error) {
	var t model.BudgetTransaction
	err := s.db.QueryRow(
		`SELECT id, household_id, category_id, description, amount, occurred_at
		 FROM budget_transactions WHERE id = ?`, id,
	).Scan(&t.ID, &t.HouseholdID, &t.CategoryID, &t.Description, &t.Amount, &t.OccurredAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get transaction: %w", err)
	}
	return &t, nil
}

func (s *BudgetStore) DeleteTransaction(id int64) error {
	_, err := s.db.Exec(`DELETE FROM budget_transactions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	return nil
}

// ListTransactions returns the household's transactions within [from, to),
// newest first.
func (s *BudgetStore) ListTransactions(householdID int64, from, to time.Time) ([]model.BudgetTransaction, error) {
	rows, err := s.db.Query(
		`SELECT id, household_id, category_id, description, amount, occurred_at
		 FROM budget_transactions
		 WHERE household_id = ? AND occurred_at >= ? AND occurred_at < ?
		 ORDER BY occurred_at DESC`,
		householdID, from, to,
	)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var txns []model.BudgetTransaction
	for rows.Next() {
		var t model.BudgetTransaction
		if err := rows.Scan(&t.ID, &t.HouseholdID, &t.CategoryID, &t.Description, &t.Amount, &t.OccurredAt); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		txns = append(txns, t)
	}
	return txns, rows.Err()
}
