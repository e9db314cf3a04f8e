// Package model defines the core domain types shared across portman.
// All monetary values use shopspring/decimal — never float64 for money.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction types recorded in the ledger. Only TypeBuy and TypeSell
// participate in position recomputation; the rest are tracked separately.
const (
	TypeBuy         = "buy"
	TypeSell        = "sell"
	TypeDividend    = "dividend"
	TypeSplit       = "split"
	TypeTransferIn  = "transfer_in"
	TypeTransferOut = "transfer_out"
)

// ValidTransactionType reports whether t is a recognized transaction type.
func ValidTransactionType(t string) bool {
	switch t {
	case TypeBuy, TypeSell, TypeDividend, TypeSplit, TypeTransferIn, TypeTransferOut:
		return true
	}
	return false
}

// Cash movement types.
const (
	MovementDeposit    = "deposit"
	MovementWithdrawal = "withdrawal"
)

// Transaction is one ledger event for a portfolio. Mutations to buy/sell
// transactions trigger a full position recomputation for the portfolio.
type Transaction struct {
	ID          string          `json:"id" db:"id"`
	PortfolioID string          `json:"portfolio_id" db:"portfolio_id"`
	Symbol      string          `json:"symbol" db:"symbol"`
	Type        string          `json:"transaction_type" db:"transaction_type"`
	Quantity    decimal.Decimal `json:"quantity" db:"quantity"`
	Price       decimal.Decimal `json:"price" db:"price"`
	Fees        decimal.Decimal `json:"fees" db:"fees"`
	Timestamp   time.Time       `json:"transaction_date" db:"transaction_date"`
	Notes       string          `json:"notes,omitempty" db:"notes"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at" db:"updated_at"`
}

// Portfolio groups transactions, positions, cash, and dividends for one
// user. Name is unique per user.
type Portfolio struct {
	ID          string    `json:"id" db:"id"`
	UserID      string    `json:"user_id" db:"user_id"`
	Name        string    `json:"name" db:"name"`
	Description string    `json:"description,omitempty" db:"description"`
	Currency    string    `json:"currency" db:"currency"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// Asset is lookup metadata for one symbol. Created minimally the first
// time a symbol is referenced; CurrentPrice is supplied externally and
// never computed here.
type Asset struct {
	Symbol         string           `json:"symbol" db:"symbol"`
	Name           string           `json:"name,omitempty" db:"name"`
	Sector         string           `json:"sector,omitempty" db:"sector"`
	Industry       string           `json:"industry,omitempty" db:"industry"`
	Country        string           `json:"country,omitempty" db:"country"`
	Currency       string           `json:"currency,omitempty" db:"currency"`
	Exchange       string           `json:"exchange,omitempty" db:"exchange"`
	CurrentPrice   *decimal.Decimal `json:"current_price,omitempty" db:"current_price"`
	PriceUpdatedAt *time.Time       `json:"price_updated_at,omitempty" db:"price_updated_at"`
	CreatedAt      time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at" db:"updated_at"`
}

// Position is the persisted holding record for one symbol in one
// portfolio. Only quantity and average cost are stored; everything else
// is derived on read.
type Position struct {
	ID          string          `json:"id" db:"id"`
	PortfolioID string          `json:"portfolio_id" db:"portfolio_id"`
	Symbol      string          `json:"symbol" db:"symbol"`
	Quantity    decimal.Decimal `json:"quantity" db:"quantity"`
	AverageCost decimal.Decimal `json:"average_cost" db:"average_cost"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at" db:"updated_at"`
}

// PositionView is a position enriched with derived valuation fields and
// asset metadata. Recomputed on every read, never stored.
type PositionView struct {
	Position

	TotalCost                 decimal.Decimal  `json:"total_cost"`
	CurrentPrice              *decimal.Decimal `json:"current_price,omitempty"`
	CurrentValue              *decimal.Decimal `json:"current_value,omitempty"`
	UnrealizedGainLoss        *decimal.Decimal `json:"unrealized_gain_loss,omitempty"`
	UnrealizedGainLossPercent *decimal.Decimal `json:"unrealized_gain_loss_percent,omitempty"`

	AssetName     string `json:"asset_name,omitempty"`
	AssetSector   string `json:"asset_sector,omitempty"`
	AssetIndustry string `json:"asset_industry,omitempty"`
}

// MarketValue returns the value used in summaries and allocations:
// current value when priced, cost basis otherwise.
func (v PositionView) MarketValue() decimal.Decimal {
	if v.CurrentValue != nil {
		return *v.CurrentValue
	}
	return v.TotalCost
}

// CashMovement records one deposit or withdrawal.
type CashMovement struct {
	ID           string          `json:"id" db:"id"`
	PortfolioID  string          `json:"portfolio_id" db:"portfolio_id"`
	Amount       decimal.Decimal `json:"amount" db:"amount"`
	Type         string          `json:"type" db:"type"`
	MovementDate time.Time       `json:"movement_date" db:"movement_date"`
	Notes        string          `json:"notes,omitempty" db:"notes"`
	CreatedAt    time.Time       `json:"created_at" db:"created_at"`
}

// Dividend records one dividend payment received.
type Dividend struct {
	ID           string          `json:"id" db:"id"`
	PortfolioID  string          `json:"portfolio_id" db:"portfolio_id"`
	Symbol       string          `json:"symbol" db:"symbol"`
	Amount       decimal.Decimal `json:"amount" db:"amount"`
	DividendDate time.Time       `json:"dividend_date" db:"dividend_date"`
	DividendType string          `json:"dividend_type,omitempty" db:"dividend_type"`
	CreatedAt    time.Time       `json:"created_at" db:"created_at"`
}

// PortfolioSummary aggregates positions, cash, and dividend income.
// Invariant: TotalValue = Σ position market value + CashBalance.
type PortfolioSummary struct {
	PortfolioID          string          `json:"portfolio_id"`
	PortfolioName        string          `json:"portfolio_name"`
	TotalValue           decimal.Decimal `json:"total_value"`
	TotalCost            decimal.Decimal `json:"total_cost"`
	TotalGainLoss        decimal.Decimal `json:"total_gain_loss"`
	TotalGainLossPercent decimal.Decimal `json:"total_gain_loss_percent"`
	CashBalance          decimal.Decimal `json:"cash_balance"`
	PositionCount        int             `json:"position_count"`
	TransactionCount     int             `json:"transaction_count"`
	DividendIncome       decimal.Decimal `json:"dividend_income"`
	LastUpdated          time.Time       `json:"last_updated"`
}

// AllocationBucket is one grouping of positions by a shared asset
// attribute (sector or industry) with its share of portfolio value.
type AllocationBucket struct {
	Category      string          `json:"category"`
	TotalValue    decimal.Decimal `json:"total_value"`
	Percentage    decimal.Decimal `json:"percentage"`
	PositionCount int             `json:"position_count"`
}
