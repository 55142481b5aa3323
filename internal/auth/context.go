package auth

import "context"

type contextKey struct{}

// AuthContext carries the resolved caller identity for one request: the user,
// their own profile, the session's active household, and the caller's role in
// that household. It is built by the auth middleware and never outlives the
// request.
type AuthContext struct {
	UserID      int64
	ProfileID   int64
	HouseholdID int64
	Role        string
	SessionID   int64
}

func WithAuth(ctx context.Context, ac AuthContext) context.Context {
	return context.WithValue(ctx, contextKey{}, ac)
}

func FromContext(ctx context.Context) (AuthContext, bool) {
	ac, ok := ctx.Value(contextKey{}).(AuthContext)
	return ac, ok
}

func HouseholdID(ctx context.Context) int64 {
	ac, ok := FromContext(ctx)
	if !ok {
		return 0
	}
	return ac.HouseholdID
}

func UserID(ctx context.Context) int64 {
	ac, ok := FromContext(ctx)
	if !ok {
		return 0
	}
	return ac.UserID
}

func ProfileID(ctx context.Context) int64 {
	ac, ok := FromContext(ctx)
	if !ok {
		return 0
	}
	return ac.ProfileID
}

// CanManageMembers reports whether the caller holds a member-management role
// (owner or admin) in the active household.
func CanManageMembers(ctx context.Context) bool {
	ac, ok := FromContext(ctx)
	if !ok {
		return false
	}
	return ac.Role == "owner" || ac.Role == "admin"
}
