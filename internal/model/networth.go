package model

import "time"

type NetWorthSnapshot struct {
	ID               int64     `json:"id"`
	UserID           int64     `json:"user_id"`
	TotalAssets      float64   `json:"total_assets"`
	TotalLiabilities float64   `json:"total_liabilities"`
	NetWorth         float64   `json:"net_worth"`
	TakenAt          time.Time `json:"taken_at"`
}
