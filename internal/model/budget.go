package model

import "time"

type BudgetCategoryGroup struct {
	ID          int64  `json:"id"`
	HouseholdID int64  `json:"household_id"`
	Name        string `json:"name"`
	SortOrder   int    `json:"sort_order"`
}

type BudgetCategory struct {
	ID           int64   `json:"id"`
	GroupID      int64   `json:"group_id"`
	Name         string  `json:"name"`
	MonthlyLimit float64 `json:"monthly_limit"`
}

// BudgetTransaction keeps its history even when its category is deleted; the
// category reference is nulled and the transaction becomes uncategorized.
type BudgetTransaction struct {
	ID          int64     `json:"id"`
	HouseholdID int64     `json:"household_id"`
	CategoryID  *int64    `json:"category_id"`
	Description string    `json:"description"`
	Amount      float64   `json:"amount"`
	OccurredAt  time.Time `json:"occurred_at"`
}
