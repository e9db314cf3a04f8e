// Package store defines the persistence interface for portman.
// Implementations include PostgreSQL (source of truth), Redis (read-through
// cache), and in-memory (for testing).
package store

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Tanaka97/portman/internal/model"
)

// ErrNotFound is returned when a requested record does not exist or is
// not visible to the requesting user.
var ErrNotFound = errors.New("store: not found")

// ErrDuplicateName is returned when a portfolio name is already taken by
// the same user.
var ErrDuplicateName = errors.New("store: portfolio name already exists")

// TransactionFilter narrows ListTransactions. Zero fields are ignored.
type TransactionFilter struct {
	PortfolioID string
	Symbol      string
	Type        string
	Limit       int
}

// DividendFilter narrows ListDividends. Zero fields are ignored.
type DividendFilter struct {
	PortfolioID string
	Symbol      string
	From        *time.Time
	To          *time.Time
	Limit       int
}

// Store is the persistence interface. PostgreSQL is the source of truth;
// Redis provides a read-through cache layer.
type Store interface {
	// --- Portfolios ---

	// CreatePortfolio persists a new portfolio. Returns ErrDuplicateName
	// when the user already has a portfolio with the same name.
	CreatePortfolio(ctx context.Context, p *model.Portfolio) error

	// GetPortfolio retrieves one of userID's portfolios by ID.
	GetPortfolio(ctx context.Context, userID, id string) (*model.Portfolio, error)

	// ListPortfolios returns all of userID's portfolios, newest first.
	ListPortfolios(ctx context.Context, userID string) ([]model.Portfolio, error)

	// UpdatePortfolio persists changed portfolio fields.
	UpdatePortfolio(ctx context.Context, p *model.Portfolio) error

	// DeletePortfolio removes a portfolio and all records that hang off it
	// (transactions, positions, cash movements, dividends).
	DeletePortfolio(ctx context.Context, userID, id string) error

	// --- Transaction ledger ---

	// InsertTransaction appends a ledger record.
	InsertTransaction(ctx context.Context, tx *model.Transaction) error

	// GetTransaction retrieves a transaction by ID.
	GetTransaction(ctx context.Context, id string) (*model.Transaction, error)

	// ListTransactions returns transactions matching the filter, newest
	// first.
	ListTransactions(ctx context.Context, f TransactionFilter) ([]model.Transaction, error)

	// UpdateTransaction persists changed transaction fields.
	UpdateTransaction(ctx context.Context, tx *model.Transaction) error

	// DeleteTransaction removes a transaction.
	DeleteTransaction(ctx context.Context, id string) error

	// ListTradeEvents returns the portfolio's buy/sell transactions in
	// timestamp-ascending order — the recomputation engine's input feed.
	ListTradeEvents(ctx context.Context, portfolioID string) ([]model.Transaction, error)

	// CountTransactions returns the number of transactions recorded for a
	// portfolio, all types included.
	CountTransactions(ctx context.Context, portfolioID string) (int, error)

	// --- Positions ---

	// ReplacePositions swaps the portfolio's entire position snapshot in a
	// single atomic step. Readers never observe a partial snapshot.
	ReplacePositions(ctx context.Context, portfolioID string, positions []model.Position) error

	// ListPositions returns the portfolio's current snapshot, optionally
	// filtered by symbol, ordered by symbol.
	ListPositions(ctx context.Context, portfolioID, symbol string) ([]model.Position, error)

	// GetPosition retrieves a position record by ID.
	GetPosition(ctx context.Context, id string) (*model.Position, error)

	// --- Assets ---

	// GetOrCreateAsset returns the asset for symbol, creating a minimal
	// record when none exists.
	GetOrCreateAsset(ctx context.Context, symbol string) (*model.Asset, error)

	// GetAsset retrieves asset metadata by symbol.
	GetAsset(ctx context.Context, symbol string) (*model.Asset, error)

	// ListAssets returns all known assets ordered by symbol.
	ListAssets(ctx context.Context) ([]model.Asset, error)

	// UpdateAsset persists changed asset metadata.
	UpdateAsset(ctx context.Context, a *model.Asset) error

	// SearchAssets matches symbol or name, case-insensitive substring.
	SearchAssets(ctx context.Context, query string) ([]model.Asset, error)

	// SetAssetPrice records an externally supplied quote for symbol.
	SetAssetPrice(ctx context.Context, symbol string, price decimal.Decimal, at time.Time) error

	// --- Cash movements ---

	// InsertCashMovement records a deposit or withdrawal.
	InsertCashMovement(ctx context.Context, m *model.CashMovement) error

	// GetCashMovement retrieves a cash movement by ID.
	GetCashMovement(ctx context.Context, id string) (*model.CashMovement, error)

	// ListCashMovements returns a portfolio's movements, newest first.
	ListCashMovements(ctx context.Context, portfolioID string) ([]model.CashMovement, error)

	// DeleteCashMovement removes a cash movement.
	DeleteCashMovement(ctx context.Context, id string) error

	// GetCashBalance returns deposits minus withdrawals.
	GetCashBalance(ctx context.Context, portfolioID string) (decimal.Decimal, error)

	// --- Dividends ---

	// InsertDividend records a dividend payment.
	InsertDividend(ctx context.Context, dv *model.Dividend) error

	// GetDividend retrieves a dividend by ID.
	GetDividend(ctx context.Context, id string) (*model.Dividend, error)

	// ListDividends returns dividends matching the filter, newest first.
	ListDividends(ctx context.Context, f DividendFilter) ([]model.Dividend, error)

	// DeleteDividend removes a dividend record.
	DeleteDividend(ctx context.Context, id string) error

	// TotalDividendIncome sums dividend amounts for a portfolio within the
	// optional date range.
	TotalDividendIncome(ctx context.Context, portfolioID string, from, to *time.Time) (decimal.Decimal, error)
}
