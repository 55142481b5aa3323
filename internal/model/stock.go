package model

import "time"

type StockAccount struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	AccountType  string    `json:"account_type"`
	CurrentValue float64   `json:"current_value"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type StockHolding struct {
	ID        int64     `json:"id"`
	AccountID int64     `json:"account_id"`
	Symbol    string    `json:"symbol"`
	Name      string    `json:"name"`
	Quantity  float64   `json:"quantity"`
	UnitPrice float64   `json:"unit_price"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type StockPrice struct {
	ID         int64     `json:"id"`
	HoldingID  int64     `json:"holding_id"`
	Price      float64   `json:"price"`
	RecordedAt time.Time `json:"recorded_at"`
}
