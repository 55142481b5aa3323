package store

import (
	"testing"

	"github.com/dukerupert/hearth/internal/database"
)

func setupNetWorthTestDB(t *testing.T) (*NetWorthStore, int64) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		t.Fatalf("enable foreign keys: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	us := NewUserStore(db)
	user, err := us.Create("alice@example.com", "Alice", "hash")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	return NewNetWorthStore(db), user.ID
}

func TestNetWorthSnapshots(t *testing.T) {
	ns, userID := setupNetWorthTestDB(t)

	snap, err := ns.CreateSnapshot(userID, 20000, 5000, 15000)
	if err != nil {
		t.Fatalf("create snapshot: %v", err)
	}
	if snap.TotalAssets != 20000 || snap.TotalLiabilities != 5000 || snap.NetWorth != 15000 {
		t.Errorf("snapshot = %+v", snap)
	}

	if _, err := ns.CreateSnapshot(userID, 21000, 5000, 16000); err != nil {
		t.Fatalf("second snapshot: %v", err)
	}

	snaps, err := ns.ListSnapshots(userID, 10)
	if err != nil {
		t.Fatalf("list snapshots: %v", err)
	}
	if len(snaps) != 2 {
		t.Fatalf("snapshot count = %d, want 2", len(snaps))
	}

	limited, err := ns.ListSnapshots(userID, 1)
	if err != nil {
		t.Fatalf("list limited: %v", err)
	}
	if len(limited) != 1 {
		t.Fatalf("limited count = %d, want 1", len(limited))
	}
	if limited[0].NetWorth != 16000 {
		t.Errorf("latest net worth = %v, want 16000", limited[0].NetWorth)
	}
}
