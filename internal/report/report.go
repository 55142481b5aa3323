// Package report computes net worth and budget summaries. All monetary
// arithmetic uses decimal values so repeated summing stays exact.
package report

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dukerupert/hearth/internal/model"
	"github.com/dukerupert/hearth/internal/store"
)

// NetWorthSummary breaks the caller's visible holdings down by source.
type NetWorthSummary struct {
	StockValue       float64 `json:"stock_value"`
	PensionValue     float64 `json:"pension_value"`
	OtherAssets      float64 `json:"other_assets"`
	TotalAssets      float64 `json:"total_assets"`
	TotalLiabilities float64 `json:"total_liabilities"`
	NetWorth         float64 `json:"net_worth"`
}

// CategorySummary is one budget category's spend for a month.
type CategorySummary struct {
	CategoryID   int64   `json:"category_id"`
	GroupID      int64   `json:"group_id"`
	Name         string  `json:"name"`
	MonthlyLimit float64 `json:"monthly_limit"`
	Spent        float64 `json:"spent"`
	Remaining    float64 `json:"remaining"`
}

// BudgetSummary is a household's budget position for one month.
type BudgetSummary struct {
	Month         string            `json:"month"`
	Categories    []CategorySummary `json:"categories"`
	Uncategorized float64           `json:"uncategorized"`
	TotalSpent    float64           `json:"total_spent"`
	TotalLimit    float64           `json:"total_limit"`
}

// Service aggregates store data into summaries.
type Service struct {
	stocks    *store.StockAccountStore
	pensions  *store.PensionAccountStore
	assets    *store.MiscAssetStore
	budget    *store.BudgetStore
	snapshots *store.NetWorthStore
}

func NewService(stocks *store.StockAccountStore, pensions *store.PensionAccountStore, assets *store.MiscAssetStore, budget *store.BudgetStore, snapshots *store.NetWorthStore) *Service {
	return &Service{
		stocks:    stocks,
		pensions:  pensions,
		assets:    assets,
		budget:    budget,
		snapshots: snapshots,
	}
}

// NetWorth sums every account and asset visible to the given profiles.
// Liability-type assets count against the total.
func (s *Service) NetWorth(profileIDs []int64) (*NetWorthSummary, error) {
	stocks, err := s.stocks.ListVisible(profileIDs)
	if err != nil {
		return nil, fmt.Errorf("list stock accounts: %w", err)
	}
	pensions, err := s.pensions.ListVisible(profileIDs)
	if err != nil {
		return nil, fmt.Errorf("list pension accounts: %w", err)
	}
	assets, err := s.assets.ListVisible(profileIDs)
	if err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}
	return Summarize(stocks, pensions, assets), nil
}

// Snapshot computes the user's current net worth and persists it.
func (s *Service) Snapshot(userID int64, profileIDs []int64) (*model.NetWorthSnapshot, error) {
	summary, err := s.NetWorth(profileIDs)
	if err != nil {
		return nil, err
	}
	return s.snapshots.CreateSnapshot(userID, summary.TotalAssets, summary.TotalLiabilities, summary.NetWorth)
}

// Summarize computes a net worth breakdown from already-loaded records.
func Summarize(stocks []model.StockAccount, pensions []model.PensionAccount, assets []model.MiscAsset) *NetWorthSummary {
	var stockTotal, pensionTotal, otherAssets, liabilities decimal.Decimal

	for _, a := range stocks {
		stockTotal = stockTotal.Add(decimal.NewFromFloat(a.CurrentValue))
	}
	for _, a := range pensions {
		pensionTotal = pensionTotal.Add(decimal.NewFromFloat(a.CurrentValue))
	}
	for _, a := range assets {
		v := decimal.NewFromFloat(a.Value)
		if a.AssetType == model.AssetTypeLiability {
			liabilities = liabilities.Add(v)
		} else {
			otherAssets = otherAssets.Add(v)
		}
	}

	totalAssets := stockTotal.Add(pensionTotal).Add(otherAssets)
	netWorth := totalAssets.Sub(liabilities)

	return &NetWorthSummary{
		StockValue:       stockTotal.InexactFloat64(),
		PensionValue:     pensionTotal.InexactFloat64(),
		OtherAssets:      otherAssets.InexactFloat64(),
		TotalAssets:      totalAssets.InexactFloat64(),
		TotalLiabilities: liabilities.InexactFloat64(),
		NetWorth:         netWorth.InexactFloat64(),
	}
}

// MonthlyBudget sums the household's transactions for the month containing
// ref against each category's limit. Transactions whose category was deleted
// land in Uncategorized.
func (s *Service) MonthlyBudget(householdID int64, ref time.Time) (*BudgetSummary, error) {
	from := time.Date(ref.Year(), ref.Month(), 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)

	categories, err := s.budget.ListCategories(householdID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	txns, err := s.budget.ListTransactions(householdID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}

	spent := make(map[int64]decimal.Decimal, len(categories))
	var uncategorized, totalSpent decimal.Decimal
	for _, t := range txns {
		amount := decimal.NewFromFloat(t.Amount)
		totalSpent = totalSpent.Add(amount)
		if t.CategoryID == nil {
			uncategorized = uncategorized.Add(amount)
			continue
		}
		spent[*t.CategoryID] = spent[*t.CategoryID].Add(amount)
	}

	var totalLimit decimal.Decimal
	out := make([]CategorySummary, 0, len(categories))
	for _, c := range categories {
		limit := decimal.NewFromFloat(c.MonthlyLimit)
		totalLimit = totalLimit.Add(limit)
		catSpent := spent[c.ID]
		out = append(out, CategorySummary{
			CategoryID:   c.ID,
			GroupID:      c.GroupID,
			Name:         c.Name,
			MonthlyLimit: limit.InexactFloat64(),
			Spent:        catSpent.InexactFloat64(),
			Remaining:    limit.Sub(catSpent).InexactFloat64(),
		})
	}

	return &BudgetSummary{
		Month:         from.Format("2006-01"),
		Categories:    out,
		Uncategorized: uncategorized.InexactFloat64(),
		TotalSpent:    totalSpent.InexactFloat64(),
		TotalLimit:    totalLimit.InexactFloat64(),
	}, nil
}
