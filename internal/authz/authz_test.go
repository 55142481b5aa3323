package authz

import (
	"errors"
	"testing"

	"github.com/dukerupert/hearth/internal/database"
	"github.com/dukerupert/hearth/internal/model"
	"github.com/dukerupert/hearth/internal/store"
)

func testContext(ids ...int64) *Context {
	profiles := make(map[int64]model.Profile, len(ids))
	for _, id := range ids {
		profiles[id] = model.Profile{ID: id}
	}
	return &Context{
		Active:   model.Household{ID: 1, Name: "Test"},
		Profiles: profiles,
	}
}

func TestCheckOwnerAccessEmptySet(t *testing.T) {
	c := testContext(1, 2)
	if err := c.CheckOwnerAccess(nil); err != nil {
		t.Errorf("empty owner set should be accessible, got %v", err)
	}
}

func TestCheckOwnerAccessIntersection(t *testing.T) {
	c := testContext(1, 2)
	if err := c.CheckOwnerAccess([]int64{9, 2}); err != nil {
		t.Errorf("intersecting owner set should be accessible, got %v", err)
	}
}

func TestCheckOwnerAccessDisjoint(t *testing.T) {
	c := testContext(1, 2)
	err := c.CheckOwnerAccess([]int64{8, 9})
	if !errors.Is(err, ErrForbidden) {
		t.Errorf("disjoint owner set: err = %v, want ErrForbidden", err)
	}
}

func TestValidateOwnerSetAllMembers(t *testing.T) {
	c := testContext(1, 2, 3)
	if err := c.ValidateOwnerSet([]int64{1, 3}); err != nil {
		t.Errorf("valid owner set rejected: %v", err)
	}
}

func TestValidateOwnerSetForeignID(t *testing.T) {
	c := testContext(1, 2)
	err := c.ValidateOwnerSet([]int64{1, 99})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("err = %v, want ValidationError", err)
	}
}

func TestValidateOwnerSetDuplicate(t *testing.T) {
	c := testContext(1, 2)
	err := c.ValidateOwnerSet([]int64{1, 1})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("err = %v, want ValidationError", err)
	}
}

func TestValidateOwnerSetEmpty(t *testing.T) {
	c := testContext(1)
	if err := c.ValidateOwnerSet(nil); err != nil {
		t.Errorf("empty proposed set should validate, got %v", err)
	}
}

func setupResolver(t *testing.T) (*Resolver, *store.UserStore, *store.ProfileStore, *store.HouseholdStore) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	ps := store.NewProfileStore(db)
	hs := store.NewHouseholdStore(db)
	return NewResolver(ps, hs), store.NewUserStore(db), ps, hs
}

func TestResolve(t *testing.T) {
	r, us, ps, hs := setupResolver(t)

	u, err := us.Create("alice@example.com", "Alice", "hash")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	p, err := ps.Create("Alice", nil, nil, &u.ID)
	if err != nil {
		t.Fatalf("create profile: %v", err)
	}
	h, err := hs.Create("Smiths", nil, p.ID)
	if err != nil {
		t.Fatalf("create household: %v", err)
	}
	// A dependent without a login.
	kid, err := ps.Create("Kid", nil, nil, nil)
	if err != nil {
		t.Fatalf("create kid profile: %v", err)
	}
	if _, err := hs.AddMember(h.ID, kid.ID, model.RoleMember); err != nil {
		t.Fatalf("add kid: %v", err)
	}

	c, err := r.Resolve(u.ID, h.ID)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if c.Profile.ID != p.ID {
		t.Errorf("profile = %d, want %d", c.Profile.ID, p.ID)
	}
	if c.Active.ID != h.ID {
		t.Errorf("active household = %d, want %d", c.Active.ID, h.ID)
	}
	if len(c.Profiles) != 2 {
		t.Errorf("household profiles = %d, want 2", len(c.Profiles))
	}
	if !c.HasProfile(kid.ID) {
		t.Error("expected dependent profile in household set")
	}
}

func TestResolveDefaultsToFirstHousehold(t *testing.T) {
	r, us, ps, hs := setupResolver(t)

	u, _ := us.Create("bob@example.com", "Bob", "hash")
	p, _ := ps.Create("Bob", nil, nil, &u.ID)
	h, err := hs.Create("Bobs", nil, p.ID)
	if err != nil {
		t.Fatalf("create household: %v", err)
	}

	// Pass a household id the caller does not belong to.
	c, err := r.Resolve(u.ID, 999)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if c.Active.ID != h.ID {
		t.Errorf("active household = %d, want fallback %d", c.Active.ID, h.ID)
	}
}

func TestResolveNoProfile(t *testing.T) {
	r, us, _, _ := setupResolver(t)

	u, _ := us.Create("nobody@example.com", "Nobody", "hash")
	_, err := r.Resolve(u.ID, 0)
	if !errors.Is(err, ErrForbidden) {
		t.Errorf("err = %v, want ErrForbidden", err)
	}
}
