package model

import "time"

const (
	AssetTypeAsset     = "asset"
	AssetTypeLiability = "liability"
)

// MiscAsset covers anything that isn't a stock or pension account: property,
// vehicles, loans, credit card balances. Liabilities carry AssetTypeLiability
// and subtract from net worth.
type MiscAsset struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	AssetType string    `json:"asset_type"`
	Value     float64   `json:"value"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
