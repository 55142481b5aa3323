// Package authz implements the household/ownership authorization model.
// There is no ACL table: a caller may touch a financial resource only if the
// resource's owner profiles intersect the profiles of the caller's active
// household, or the resource has no owners yet.
package authz

import (
	"errors"
	"fmt"

	"github.com/dukerupert/hearth/internal/model"
	"github.com/dukerupert/hearth/internal/store"
)

// ErrForbidden means the caller's identity resolved but the required
// household relationship is missing.
var ErrForbidden = errors.New("forbidden")

// ValidationError is a rejected input or illegal state transition; the
// message names the violated rule and maps to a 400 at the handler boundary.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// Context is the caller's authorization context for a single request: their
// own profile, every household they belong to, the active household, and the
// full profile set of that active household keyed by profile id. It is
// resolved fresh per request and discarded with it.
type Context struct {
	Profile    *model.Profile
	Households []model.Household
	Active     model.Household
	Profiles   map[int64]model.Profile
}

// HasProfile reports whether the profile id belongs to the active household.
func (c *Context) HasProfile(id int64) bool {
	_, ok := c.Profiles[id]
	return ok
}

// ProfileIDs returns the active household's profile ids.
func (c *Context) ProfileIDs() []int64 {
	ids := make([]int64, 0, len(c.Profiles))
	for id := range c.Profiles {
		ids = append(ids, id)
	}
	return ids
}

// CheckOwnerAccess gates both reading and replacing a resource's owner set.
// An empty owner set is always accessible (nothing to protect yet); otherwise
// at least one current owner must be a profile in the active household.
func (c *Context) CheckOwnerAccess(currentOwnerIDs []int64) error {
	if len(currentOwnerIDs) == 0 {
		return nil
	}
	for _, id := range currentOwnerIDs {
		if c.HasProfile(id) {
			return nil
		}
	}
	return ErrForbidden
}

// ValidateOwnerSet checks a proposed replacement owner list. Every id must be
// a profile of the active household; one foreign id rejects the whole set.
func (c *Context) ValidateOwnerSet(proposed []int64) error {
	seen := make(map[int64]struct{}, len(proposed))
	for _, id := range proposed {
		if _, dup := seen[id]; dup {
			return &ValidationError{Msg: fmt.Sprintf("duplicate profile id %d", id)}
		}
		seen[id] = struct{}{}
		if !c.HasProfile(id) {
			return &ValidationError{Msg: fmt.Sprintf("profile %d is not a member of your household", id)}
		}
	}
	return nil
}

// Resolver builds authorization contexts from the store layer.
type Resolver struct {
	profiles   *store.ProfileStore
	households *store.HouseholdStore
}

func NewResolver(ps *store.ProfileStore, hs *store.HouseholdStore) *Resolver {
	return &Resolver{profiles: ps, households: hs}
}

// Resolve loads the caller's context. The active household is the one
// matching activeHouseholdID when the caller belongs to it, otherwise the
// first of the caller's households. A caller with no profile or no household
// cannot be authorized for anything and gets ErrForbidden.
func (r *Resolver) Resolve(userID, activeHouseholdID int64) (*Context, error) {
	profile, err := r.profiles.GetByUserID(userID)
	if err != nil {
		return nil, fmt.Errorf("resolve profile: %w", err)
	}
	if profile == nil {
		return nil, ErrForbidden
	}

	households, err := r.households.ListHouseholdsForUser(userID)
	if err != nil {
		return nil, fmt.Errorf("resolve households: %w", err)
	}
	if len(households) == 0 {
		return nil, ErrForbidden
	}

	active := households[0]
	for _, h := range households {
		if h.ID == activeHouseholdID {
			active = h
			break
		}
	}

	members, err := r.profiles.ListByHousehold(active.ID)
	if err != nil {
		return nil, fmt.Errorf("resolve household profiles: %w", err)
	}
	profileSet := make(map[int64]model.Profile, len(members))
	for _, p := range members {
		profileSet[p.ID] = p
	}

	return &Context{
		Profile:    profile,
		Households: households,
		Active:     active,
		Profiles:   profileSet,
	}, nil
}
