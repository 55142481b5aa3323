package store

import (
	"testing"
	"time"

	"github.com/dukerupert/hearth/internal/database"
)

func setupPensionTestDB(t *testing.T) (*PensionAccountStore, *ProfileStore) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		t.Fatalf("enable foreign keys: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewPensionAccountStore(db), NewProfileStore(db)
}

func TestPensionAccountCRUD(t *testing.T) {
	as, _ := setupPensionTestDB(t)

	acct, err := as.Create("Workplace Pension", "Aviva", 42000)
	if err != nil {
		t.Fatalf("create account: %v", err)
	}
	if acct.Provider != "Aviva" || acct.CurrentValue != 42000 {
		t.Errorf("account = %+v", acct)
	}

	updated, err := as.Update(acct.ID, "Workplace Pension", "Nest", 43000)
	if err != nil {
		t.Fatalf("update account: %v", err)
	}
	if updated.Provider != "Nest" || updated.CurrentValue != 43000 {
		t.Errorf("updated = %+v", updated)
	}

	if err := as.Delete(acct.ID); err != nil {
		t.Fatalf("delete account: %v", err)
	}
	got, _ := as.GetByID(acct.ID)
	if got != nil {
		t.Errorf("expected nil after delete, got %+v", got)
	}
}

func TestPensionDepositBumpsValue(t *testing.T) {
	as, _ := setupPensionTestDB(t)

	acct, _ := as.Create("SIPP", "Vanguard", 1000)

	dep, err := as.AddDeposit(acct.ID, 250, "monthly contribution", time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("add deposit: %v", err)
	}
	if dep.Amount != 250 || dep.Note != "monthly contribution" {
		t.Errorf("deposit = %+v", dep)
	}

	got, _ := as.GetByID(acct.ID)
	if got.CurrentValue != 1250 {
		t.Errorf("value = %v, want 1250", got.CurrentValue)
	}

	if _, err := as.AddDeposit(acct.ID, 100, "", time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)); err != nil {
		t.Fatalf("second deposit: %v", err)
	}
	deposits, err := as.ListDeposits(acct.ID)
	if err != nil {
		t.Fatalf("list deposits: %v", err)
	}
	if len(deposits) != 2 {
		t.Fatalf("deposit count = %d, want 2", len(deposits))
	}
	// Newest first.
	if !deposits[0].DepositedAt.After(deposits[1].DepositedAt) {
		t.Errorf("deposits not ordered newest first: %v, %v", deposits[0].DepositedAt, deposits[1].DepositedAt)
	}
}

func TestPensionAccountVisibility(t *testing.T) {
	as, ps := setupPensionTestDB(t)

	alice, _ := ps.Create("Alice", nil, nil, nil)
	bob, _ := ps.Create("Bob", nil, nil, nil)

	mine, _ := as.Create("Alice SIPP", "Vanguard", 100)
	if err := as.ReplaceOwners(mine.ID, []int64{alice.ID}); err != nil {
		t.Fatalf("replace owners: %v", err)
	}

	visible, err := as.ListVisible([]int64{bob.ID})
	if err != nil {
		t.Fatalf("list visible: %v", err)
	}
	if len(visible) != 0 {
		t.Errorf("bob sees %d accounts, want 0", len(visible))
	}

	visible, _ = as.ListVisible([]int64{alice.ID, bob.ID})
	if len(visible) != 1 {
		t.Errorf("combined visibility = %d accounts, want 1", len(visible))
	}
}
