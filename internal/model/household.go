package model

import "time"

// Member roles. RoleOwner is assigned exactly once, at household creation, to
// the creator's profile; member-management operations can never grant, change,
// or remove it.
const (
	RoleOwner  = "owner"
	RoleAdmin  = "admin"
	RoleMember = "member"
)

type Household struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type HouseholdMember struct {
	ID          int64     `json:"id"`
	HouseholdID int64     `json:"household_id"`
	ProfileID   int64     `json:"profile_id"`
	Role        string    `json:"role"`
	JoinedAt    time.Time `json:"joined_at"`
}
