package store

import (
	"testing"
	"time"

	"github.com/dukerupert/hearth/internal/database"
)

func setupBudgetTestDB(t *testing.T) (*BudgetStore, int64) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		t.Fatalf("enable foreign keys: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	ps := NewProfileStore(db)
	hs := NewHouseholdStore(db)
	profile, err := ps.Create("Alice", nil, nil, nil)
	if err != nil {
		t.Fatalf("create profile: %v", err)
	}
	household, err := hs.Create("Smith Family", nil, profile.ID)
	if err != nil {
		t.Fatalf("create household: %v", err)
	}
	return NewBudgetStore(db), household.ID
}

func TestBudgetGroupsAndCategories(t *testing.T) {
	bs, hid := setupBudgetTestDB(t)

	group, err := bs.CreateGroup(hid, "Essentials", 1)
	if err != nil {
		t.Fatalf("create group: %v", err)
	}
	if group.Name != "Essentials" || group.SortOrder != 1 {
		t.Errorf("group = %+v", group)
	}

	cat, err := bs.CreateCategory(group.ID, "Groceries", 400)
	if err != nil {
		t.Fatalf("create category: %v", err)
	}
	if cat.GroupID != group.ID || cat.MonthlyLimit != 400 {
		t.Errorf("category = %+v", cat)
	}

	updated, err := bs.UpdateCategory(cat.ID, "Food", 450)
	if err != nil {
		t.Fatalf("update category: %v", err)
	}
	if updated.Name != "Food" || updated.MonthlyLimit != 450 {
		t.Errorf("updated = %+v", updated)
	}

	cats, err := bs.ListCategories(hid)
	if err != nil {
		t.Fatalf("list categories: %v", err)
	}
	if len(cats) != 1 {
		t.Fatalf("category count = %d, want 1", len(cats))
	}

	if _, err := bs.UpdateGroup(group.ID, "Essentials", 2); err != nil {
		t.Fatalf("update group: %v", err)
	}

	if err := bs.DeleteGroup(group.ID); err != nil {
		t.Fatalf("delete group: %v", err)
	}
	cats, _ = bs.ListCategories(hid)
	if len(cats) != 0 {
		t.Errorf("categories survived group delete: %d", len(cats))
	}
}

func TestBudgetTransactions(t *testing.T) {
	bs, hid := setupBudgetTestDB(t)

	group, _ := bs.CreateGroup(hid, "Essentials", 1)
	cat, _ := bs.CreateCategory(group.ID, "Groceries", 400)

	march := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	txn, err := bs.CreateTransaction(hid, &cat.ID, "weekly shop", 82.40, march)
	if err != nil {
		t.Fatalf("create transaction: %v", err)
	}
	if txn.CategoryID == nil || *txn.CategoryID != cat.ID {
		t.Errorf("category_id = %v, want %d", txn.CategoryID, cat.ID)
	}

	// Uncategorized spend is allowed.
	if _, err := bs.CreateTransaction(hid, nil, "cash withdrawal", 50, march.AddDate(0, 0, 1)); err != nil {
		t.Fatalf("create uncategorized transaction: %v", err)
	}
	// Outside the query window below.
	if _, err := bs.CreateTransaction(hid, &cat.ID, "old shop", 30, march.AddDate(0, -2, 0)); err != nil {
		t.Fatalf("create old transaction: %v", err)
	}

	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)
	txns, err := bs.ListTransactions(hid, from, to)
	if err != nil {
		t.Fatalf("list transactions: %v", err)
	}
	if len(txns) != 2 {
		t.Fatalf("transaction count = %d, want 2", len(txns))
	}

	if err := bs.DeleteTransaction(txn.ID); err != nil {
		t.Fatalf("delete transaction: %v", err)
	}
	got, err := bs.GetTransaction(txn.ID)
	if err != nil {
		t.Fatalf("get after delete: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil after delete, got %+v", got)
	}
}

func TestBudgetCategoryDeleteKeepsTransactions(t *testing.T) {
	bs, hid := setupBudgetTestDB(t)

	group, _ := bs.CreateGroup(hid, "Essentials", 1)
	cat, _ := bs.CreateCategory(group.ID, "Groceries", 400)

	when := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	txn, _ := bs.CreateTransaction(hid, &cat.ID, "shop", 20, when)

	if err := bs.DeleteCategory(cat.ID); err != nil {
		t.Fatalf("delete category: %v", err)
	}

	got, err := bs.GetTransaction(txn.ID)
	if err != nil {
		t.Fatalf("get transaction: %v", err)
	}
	if got == nil {
		t.Fatal("transaction deleted with category")
	}
	if got.CategoryID != nil {
		t.Errorf("category_id = %v, want nil after category delete", got.CategoryID)
	}
}
