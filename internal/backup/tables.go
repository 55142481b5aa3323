package backup

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Archive row shapes. These mirror the database columns exactly (including
// password hashes) rather than the API models, so a restored dataset is
// byte-for-byte complete. Temporal fields round-trip as ISO-8601 strings via
// time.Time; monetary fields are plain numbers.

type userRow struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"password_hash"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type profileRow struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Image     *string   `json:"image"`
	Color     *string   `json:"color"`
	UserID    *int64    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type householdRow struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type householdMemberRow struct {
	ID          int64     `json:"id"`
	HouseholdID int64     `json:"household_id"`
	ProfileID   int64     `json:"profile_id"`
	Role        string    `json:"role"`
	JoinedAt    time.Time `json:"joined_at"`
}

type stockAccountRow struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	AccountType  string    `json:"account_type"`
	CurrentValue float64   `json:"current_value"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type ownerRow struct {
	ID         int64 `json:"id"`
	ResourceID int64 `json:"resource_id"`
	ProfileID  int64 `json:"profile_id"`
}

type stockHoldingRow struct {
	ID        int64     `json:"id"`
	AccountID int64     `json:"account_id"`
	Symbol    string    `json:"symbol"`
	Name      string    `json:"name"`
	Quantity  float64   `json:"quantity"`
	UnitPrice float64   `json:"unit_price"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type stockPriceRow struct {
	ID         int64     `json:"id"`
	HoldingID  int64     `json:"holding_id"`
	Price      float64   `json:"price"`
	RecordedAt time.Time `json:"recorded_at"`
}

type pensionAccountRow struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Provider     string    `json:"provider"`
	CurrentValue float64   `json:"current_value"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type pensionDepositRow struct {
	ID          int64     `json:"id"`
	AccountID   int64     `json:"account_id"`
	Amount      float64   `json:"amount"`
	Note        string    `json:"note"`
	DepositedAt time.Time `json:"deposited_at"`
}

type miscAssetRow struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	AssetType string    `json:"asset_type"`
	Value     float64   `json:"value"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type snapshotRow struct {
	ID               int64     `json:"id"`
	UserID           int64     `json:"user_id"`
	TotalAssets      float64   `json:"total_assets"`
	TotalLiabilities float64   `json:"total_liabilities"`
	NetWorth         float64   `json:"net_worth"`
	TakenAt          time.Time `json:"taken_at"`
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// table binds one archive document to its database table: how to export its
// rows and how to decode-then-insert them. The decode step runs during
// validation, before any mutation; the returned insert closure runs later.
type table struct {
	name   string
	export func(ctx context.Context, q queryer) (any, int, error)
	decode func(data []byte) (insertFunc, int, error)
}

type insertFunc func(ctx context.Context, ex execer) error

// tables lists the fourteen archived tables in dependency order, parents
// first. Restore inserts in this order and deletes in exact reverse; any
// reordering of a parent/child pair breaks foreign-key constraints.
var tables = []table{
	{
		name: "users",
		export: exportRows(`SELECT id, email, name, password_hash, created_at, updated_at FROM users ORDER BY id`,
			func(rows *sql.Rows) (userRow, error) {
				var r userRow
				err := rows.Scan(&r.ID, &r.Email, &r.Name, &r.PasswordHash, &r.CreatedAt, &r.UpdatedAt)
				return r, err
			}),
		decode: decodeRows(`users`, []string{"id", "email", "name", "password_hash", "created_at", "updated_at"},
			func(r userRow) []any {
				return []any{r.ID, r.Email, r.Name, r.PasswordHash, r.CreatedAt, r.UpdatedAt}
			}),
	},
	{
		name: "profiles",
		export: exportRows(`SELECT id, name, image, color, user_id, created_at, updated_at FROM profiles ORDER BY id`,
			func(rows *sql.Rows) (profileRow, error) {
				var r profileRow
				err := rows.Scan(&r.ID, &r.Name, &r.Image, &r.Color, &r.UserID, &r.CreatedAt, &r.UpdatedAt)
				return r, err
			}),
		decode: decodeRows(`profiles`, []string{"id", "name", "image", "color", "user_id", "created_at", "updated_at"},
			func(r profileRow) []any {
				return []any{r.ID, r.Name, r.Image, r.Color, r.UserID, r.CreatedAt, r.UpdatedAt}
			}),
	},
	{
		name: "households",
		export: exportRows(`SELECT id, name, description, created_at, updated_at FROM households ORDER BY id`,
			func(rows *sql.Rows) (householdRow, error) {
				var r householdRow
				err := rows.Scan(&r.ID, &r.Name, &r.Description, &r.CreatedAt, &r.UpdatedAt)
				return r, err
			}),
		decode: decodeRows(`households`, []string{"id", "name", "description", "created_at", "updated_at"},
			func(r householdRow) []any {
				return []any{r.ID, r.Name, r.Description, r.CreatedAt, r.UpdatedAt}
			}),
	},
	{
		name: "household_members",
		export: exportRows(`SELECT id, household_id, profile_id, role, joined_at FROM household_members ORDER BY id`,
			func(rows *sql.Rows) (householdMemberRow, error) {
				var r householdMemberRow
				err := rows.Scan(&r.ID, &r.HouseholdID, &r.ProfileID, &r.Role, &r.JoinedAt)
				return r, err
			}),
		decode: decodeRows(`household_members`, []string{"id", "household_id", "profile_id", "role", "joined_at"},
			func(r householdMemberRow) []any {
				return []any{r.ID, r.HouseholdID, r.ProfileID, r.Role, r.JoinedAt}
			}),
	},
	{
		name: "stock_accounts",
		export: exportRows(`SELECT id, name, account_type, current_value, created_at, updated_at FROM stock_accounts ORDER BY id`,
			func(rows *sql.Rows) (stockAccountRow, error) {
				var r stockAccountRow
				err := rows.Scan(&r.ID, &r.Name, &r.AccountType, &r.CurrentValue, &r.CreatedAt, &r.UpdatedAt)
				return r, err
			}),
		decode: decodeRows(`stock_accounts`, []string{"id", "name", "account_type", "current_value", "created_at", "updated_at"},
			func(r stockAccountRow) []any {
				return []any{r.ID, r.Name, r.AccountType, r.CurrentValue, r.CreatedAt, r.UpdatedAt}
			}),
	},
	{
		name: "stock_account_owners",
		export: exportRows(`SELECT id, account_id, profile_id FROM stock_account_owners ORDER BY id`,
			func(rows *sql.Rows) (ownerRow, error) {
				var r ownerRow
				err := rows.Scan(&r.ID, &r.ResourceID, &r.ProfileID)
				return r, err
			}),
		decode: decodeRows(`stock_account_owners`, []string{"id", "account_id", "profile_id"},
			func(r ownerRow) []any {
				return []any{r.ID, r.ResourceID, r.ProfileID}
			}),
	},
	{
		name: "stock_holdings",
		export: exportRows(`SELECT id, account_id, symbol, name, quantity, unit_price, created_at, updated_at FROM stock_holdings ORDER BY id`,
			func(rows *sql.Rows) (stockHoldingRow, error) {
				var r stockHoldingRow
				err := rows.Scan(&r.ID, &r.AccountID, &r.Symbol, &r.Name, &r.Quantity, &r.UnitPrice, &r.CreatedAt, &r.UpdatedAt)
				return r, err
			}),
		decode: decodeRows(`stock_holdings`, []string{"id", "account_id", "symbol", "name", "quantity", "unit_price", "created_at", "updated_at"},
			func(r stockHoldingRow) []any {
				return []any{r.ID, r.AccountID, r.Symbol, r.Name, r.Quantity, r.UnitPrice, r.CreatedAt, r.UpdatedAt}
			}),
	},
	{
		name: "stock_price_history",
		export: exportRows(`SELECT id, holding_id, price, recorded_at FROM stock_price_history ORDER BY id`,
			func(rows *sql.Rows) (stockPriceRow, error) {
				var r stockPriceRow
				err := rows.Scan(&r.ID, &r.HoldingID, &r.Price, &r.RecordedAt)
				return r, err
			}),
		decode: decodeRows(`stock_price_history`, []string{"id", "holding_id", "price", "recorded_at"},
			func(r stockPriceRow) []any {
				return []any{r.ID, r.HoldingID, r.Price, r.RecordedAt}
			}),
	},
	{
		name: "pension_accounts",
		export: exportRows(`SELECT id, name, provider, current_value, created_at, updated_at FROM pension_accounts ORDER BY id`,
			func(rows *sql.Rows) (pensionAccountRow, error) {
				var r pensionAccountRow
				err := rows.Scan(&r.ID, &r.Name, &r.Provider, &r.CurrentValue, &r.CreatedAt, &r.UpdatedAt)
				return r, err
			}),
		decode: decodeRows(`pension_accounts`, []string{"id", "name", "provider", "current_value", "created_at", "updated_at"},
			func(r pensionAccountRow) []any {
				return []any{r.ID, r.Name, r.Provider, r.CurrentValue, r.CreatedAt, r.UpdatedAt}
			}),
	},
	{
		name: "pension_account_owners",
		export: exportRows(`SELECT id, account_id, profile_id FROM pension_account_owners ORDER BY id`,
			func(rows *sql.Rows) (ownerRow, error) {
				var r ownerRow
				err := rows.Scan(&r.ID, &r.ResourceID, &r.ProfileID)
				return r, err
			}),
		decode: decodeRows(`pension_account_owners`, []string{"id", "account_id", "profile_id"},
			func(r ownerRow) []any {
				return []any{r.ID, r.ResourceID, r.ProfileID}
			}),
	},
	{
		name: "pension_deposits",
		export: exportRows(`SELECT id, account_id, amount, note, deposited_at FROM pension_deposits ORDER BY id`,
			func(rows *sql.Rows) (pensionDepositRow, error) {
				var r pensionDepositRow
				err := rows.Scan(&r.ID, &r.AccountID, &r.Amount, &r.Note, &r.DepositedAt)
				return r, err
			}),
		decode: decodeRows(`pension_deposits`, []string{"id", "account_id", "amount", "note", "deposited_at"},
			func(r pensionDepositRow) []any {
				return []any{r.ID, r.AccountID, r.Amount, r.Note, r.DepositedAt}
			}),
	},
	{
		name: "misc_assets",
		export: exportRows(`SELECT id, name, asset_type, value, created_at, updated_at FROM misc_assets ORDER BY id`,
			func(rows *sql.Rows) (miscAssetRow, error) {
				var r miscAssetRow
				err := rows.Scan(&r.ID, &r.Name, &r.AssetType, &r.Value, &r.CreatedAt, &r.UpdatedAt)
				return r, err
			}),
		decode: decodeRows(`misc_assets`, []string{"id", "name", "asset_type", "value", "created_at", "updated_at"},
			func(r miscAssetRow) []any {
				return []any{r.ID, r.Name, r.AssetType, r.Value, r.CreatedAt, r.UpdatedAt}
			}),
	},
	{
		name: "misc_asset_owners",
		export: exportRows(`SELECT id, asset_id, profile_id FROM misc_asset_owners ORDER BY id`,
			func(rows *sql.Rows) (ownerRow, error) {
				var r ownerRow
				err := rows.Scan(&r.ID, &r.ResourceID, &r.ProfileID)
				return r, err
			}),
		decode: decodeRows(`misc_asset_owners`, []string{"id", "asset_id", "profile_id"},
			func(r ownerRow) []any {
				return []any{r.ID, r.ResourceID, r.ProfileID}
			}),
	},
	{
		name: "net_worth_snapshots",
		export: exportRows(`SELECT id, user_id, total_assets, total_liabilities, net_worth, taken_at FROM net_worth_snapshots ORDER BY id`,
			func(rows *sql.Rows) (snapshotRow, error) {
				var r snapshotRow
				err := rows.Scan(&r.ID, &r.UserID, &r.TotalAssets, &r.TotalLiabilities, &r.NetWorth, &r.TakenAt)
				return r, err
			}),
		decode: decodeRows(`net_worth_snapshots`, []string{"id", "user_id", "total_assets", "total_liabilities", "net_worth", "taken_at"},
			func(r snapshotRow) []any {
				return []any{r.ID, r.UserID, r.TotalAssets, r.TotalLiabilities, r.NetWorth, r.TakenAt}
			}),
	},
}

// exportRows builds a table export function from a query and a row scanner.
func exportRows[T any](query string, scan func(*sql.Rows) (T, error)) func(context.Context, queryer) (any, int, error) {
	return func(ctx context.Context, q queryer) (any, int, error) {
		rows, err := q.QueryContext(ctx, query)
		if err != nil {
			return nil, 0, err
		}
		defer rows.Close()

		out := make([]T, 0)
		for rows.Next() {
			r, err := scan(rows)
			if err != nil {
				return nil, 0, err
			}
			out = append(out, r)
		}
		if err := rows.Err(); err != nil {
			return nil, 0, err
		}
		return out, len(out), nil
	}
}

// decodeRows builds a table decode function. The JSON array is decoded during
// validation; the returned closure bulk-inserts the captured rows.
func decodeRows[T any](tableName string, cols []string, args func(T) []any) func([]byte) (insertFunc, int, error) {
	return func(data []byte) (insertFunc, int, error) {
		var rowsData []T
		if len(data) > 0 {
			if err := json.Unmarshal(data, &rowsData); err != nil {
				return nil, 0, fmt.Errorf("parse %s.json: %w", tableName, err)
			}
		}
		insert := func(ctx context.Context, ex execer) error {
			values := make([][]any, len(rowsData))
			for i, r := range rowsData {
				values[i] = args(r)
			}
			return bulkInsert(ctx, ex, tableName, cols, values)
		}
		return insert, len(rowsData), nil
	}
}

// sqlite caps bound parameters per statement; stay well under the default.
const maxInsertParams = 900

// bulkInsert writes rows with multi-row INSERT statements, chunked to respect
// the parameter limit. Zero rows is a no-op.
func bulkInsert(ctx context.Context, ex execer, tableName string, cols []string, rows [][]any) error {
	if len(rows) == 0 {
		return nil
	}

	rowsPerStmt := maxInsertParams / len(cols)
	if rowsPerStmt < 1 {
		rowsPerStmt = 1
	}

	placeholder := "(?" + strings.Repeat(",?", len(cols)-1) + ")"
	prefix := fmt.Sprintf("INSERT INTO %s (%s) VALUES ", tableName, strings.Join(cols, ", "))

	for start := 0; start < len(rows); start += rowsPerStmt {
		end := start + rowsPerStmt
		if end > len(rows) {
			end = len(rows)
		}
		chunk := rows[start:end]

		placeholders := make([]string, len(chunk))
		args := make([]any, 0, len(chunk)*len(cols))
		for i, row := range chunk {
			placeholders[i] = placeholder
			args = append(args, row...)
		}

		if _, err := ex.ExecContext(ctx, prefix+strings.Join(placeholders, ", "), args...); err != nil {
			return fmt.Errorf("insert into %s: %w", tableName, err)
		}
	}
	return nil
}
