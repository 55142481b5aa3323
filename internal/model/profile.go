package model

import "time"

// Profile is a person within a household. Profiles with a non-nil UserID are
// linked to a login-capable account; the rest are dependents without a login.
type Profile struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Image     *string   `json:"image"`
	Color     *string   `json:"color"`
	UserID    *int64    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasUser reports whether the profile is linked to an authenticated account.
func (p *Profile) HasUser() bool {
	return p.UserID != nil
}
