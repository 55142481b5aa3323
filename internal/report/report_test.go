package report

import (
	"database/sql"
	"testing"
	"time"

	"github.com/dukerupert/hearth/internal/database"
	"github.com/dukerupert/hearth/internal/model"
	"github.com/dukerupert/hearth/internal/store"
)

func setupReportService(t *testing.T) (*Service, *store.BudgetStore, *sql.DB) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		t.Fatalf("enable foreign keys: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	budget := store.NewBudgetStore(db)
	svc := NewService(
		store.NewStockAccountStore(db),
		store.NewPensionAccountStore(db),
		store.NewMiscAssetStore(db),
		budget,
		store.NewNetWorthStore(db),
	)
	return svc, budget, db
}

func TestSummarize(t *testing.T) {
	stocks := []model.StockAccount{{CurrentValue: 1000.10}, {CurrentValue: 2000.20}}
	pensions := []model.PensionAccount{{CurrentValue: 5000}}
	assets := []model.MiscAsset{
		{AssetType: model.AssetTypeAsset, Value: 8000},
		{AssetType: model.AssetTypeLiability, Value: 3000.30},
	}

	s := Summarize(stocks, pensions, assets)

	if s.StockValue != 3000.30 {
		t.Errorf("StockValue = %v, want 3000.30", s.StockValue)
	}
	if s.PensionValue != 5000 {
		t.Errorf("PensionValue = %v, want 5000", s.PensionValue)
	}
	if s.TotalAssets != 16000.30 {
		t.Errorf("TotalAssets = %v, want 16000.30", s.TotalAssets)
	}
	if s.TotalLiabilities != 3000.30 {
		t.Errorf("TotalLiabilities = %v, want 3000.30", s.TotalLiabilities)
	}
	if s.NetWorth != 13000 {
		t.Errorf("NetWorth = %v, want 13000", s.NetWorth)
	}
}

func TestSummarizeEmpty(t *testing.T) {
	s := Summarize(nil, nil, nil)
	if s.NetWorth != 0 || s.TotalAssets != 0 || s.TotalLiabilities != 0 {
		t.Errorf("empty summary not zero: %+v", s)
	}
}

func TestSummarizeExactAccumulation(t *testing.T) {
	// 0.1 added ten times must be exactly 1 with decimal arithmetic.
	assets := make([]model.MiscAsset, 10)
	for i := range assets {
		assets[i] = model.MiscAsset{AssetType: model.AssetTypeAsset, Value: 0.1}
	}
	s := Summarize(nil, nil, assets)
	if s.TotalAssets != 1 {
		t.Errorf("TotalAssets = %v, want 1", s.TotalAssets)
	}
}

func TestMonthlyBudget(t *testing.T) {
	svc, budget, db := setupReportService(t)

	if _, err := db.Exec(`INSERT INTO households (id, name) VALUES (1, 'Home')`); err != nil {
		t.Fatalf("insert household: %v", err)
	}

	group, err := budget.CreateGroup(1, "Essentials", 0)
	if err != nil {
		t.Fatalf("create group: %v", err)
	}
	food, err := budget.CreateCategory(group.ID, "Food", 500)
	if err != nil {
		t.Fatalf("create category: %v", err)
	}
	rent, err := budget.CreateCategory(group.ID, "Rent", 1200)
	if err != nil {
		t.Fatalf("create category: %v", err)
	}

	march := time.Date(2026, time.March, 15, 0, 0, 0, 0, time.UTC)
	if _, err := budget.CreateTransaction(1, &food.ID, "groceries", 120.50, march); err != nil {
		t.Fatalf("create transaction: %v", err)
	}
	if _, err := budget.CreateTransaction(1, &food.ID, "takeaway", 30.25, march.AddDate(0, 0, 3)); err != nil {
		t.Fatalf("create transaction: %v", err)
	}
	if _, err := budget.CreateTransaction(1, nil, "misc", 10, march); err != nil {
		t.Fatalf("create transaction: %v", err)
	}
	// Outside the month, must not count.
	if _, err := budget.CreateTransaction(1, &food.ID, "april groceries", 99, march.AddDate(0, 1, 0)); err != nil {
		t.Fatalf("create transaction: %v", err)
	}

	summary, err := svc.MonthlyBudget(1, march)
	if err != nil {
		t.Fatalf("monthly budget: %v", err)
	}

	if summary.Month != "2026-03" {
		t.Errorf("Month = %q, want 2026-03", summary.Month)
	}
	if summary.TotalLimit != 1700 {
		t.Errorf("TotalLimit = %v, want 1700", summary.TotalLimit)
	}
	if summary.TotalSpent != 160.75 {
		t.Errorf("TotalSpent = %v, want 160.75", summary.TotalSpent)
	}
	if summary.Uncategorized != 10 {
		t.Errorf("Uncategorized = %v, want 10", summary.Uncategorized)
	}

	byID := make(map[int64]CategorySummary)
	for _, c := range summary.Categories {
		byID[c.CategoryID] = c
	}
	if got := byID[food.ID]; got.Spent != 150.75 || got.Remaining != 349.25 {
		t.Errorf("food spent/remaining = %v/%v, want 150.75/349.25", got.Spent, got.Remaining)
	}
	if got := byID[rent.ID]; got.Spent != 0 || got.Remaining != 1200 {
		t.Errorf("rent spent/remaining = %v/%v, want 0/1200", got.Spent, got.Remaining)
	}
}

func TestServiceSnapshot(t *testing.T) {
	svc, _, db := setupReportService(t)

	stmts := []string{
		`INSERT INTO users (id, email, name, password_hash) VALUES (1, 'ana@example.com', 'Ana', 'h')`,
		`INSERT INTO profiles (id, name, user_id) VALUES (1, 'Ana', 1)`,
		`INSERT INTO stock_accounts (id, name, current_value) VALUES (1, 'Brokerage', 1500)`,
		`INSERT INTO stock_account_owners (account_id, profile_id) VALUES (1, 1)`,
		`INSERT INTO misc_assets (id, name, asset_type, value) VALUES (1, 'Loan', 'liability', 500)`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	snap, err := svc.Snapshot(1, []int64{1})
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if snap.TotalAssets != 1500 {
		t.Errorf("TotalAssets = %v, want 1500", snap.TotalAssets)
	}
	if snap.TotalLiabilities != 500 {
		t.Errorf("TotalLiabilities = %v, want 500", snap.TotalLiabilities)
	}
	if snap.NetWorth != 1000 {
		t.Errorf("NetWorth = %v, want 1000", snap.NetWorth)
	}
}
