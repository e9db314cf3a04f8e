package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/Tanaka97/portman/internal/model"
)

// PostgresStore implements Store using PostgreSQL as the source of truth.
// All monetary values are stored as NUMERIC for exact decimal precision.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func notFound(err error, what, id string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s %s: %w", what, id, ErrNotFound)
	}
	return fmt.Errorf("%s %s: %w", what, id, err)
}

// --- Portfolios ---

func (s *PostgresStore) CreatePortfolio(ctx context.Context, p *model.Portfolio) error {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM portfolios WHERE user_id = $1 AND name = $2)`,
		p.UserID, p.Name).Scan(&exists)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("portfolio %q: %w", p.Name, ErrDuplicateName)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO portfolios (id, user_id, name, description, currency, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		p.ID, p.UserID, p.Name, p.Description, p.Currency, p.CreatedAt, p.UpdatedAt,
	)
	return err
}

func (s *PostgresStore) GetPortfolio(ctx context.Context, userID, id string) (*model.Portfolio, error) {
	var p model.Portfolio
	err := s.pool.QueryRow(ctx,
		`SELECT id, user_id, name, COALESCE(description, ''), currency, created_at, updated_at
		 FROM portfolios WHERE id = $1 AND user_id = $2`, id, userID).
		Scan(&p.ID, &p.UserID, &p.Name, &p.Description, &p.Currency, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, notFound(err, "portfolio", id)
	}
	return &p, nil
}

func (s *PostgresStore) ListPortfolios(ctx context.Context, userID string) ([]model.Portfolio, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, name, COALESCE(description, ''), currency, created_at, updated_at
		 FROM portfolios WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var portfolios []model.Portfolio
	for rows.Next() {
		var p model.Portfolio
		if err := rows.Scan(&p.ID, &p.UserID, &p.Name, &p.Description, &p.Currency,
			&p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		portfolios = append(portfolios, p)
	}
	return portfolios, rows.Err()
}

func (s *PostgresStore) UpdatePortfolio(ctx context.Context, p *model.Portfolio) error {
	var taken bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM portfolios WHERE user_id = $1 AND name = $2 AND id <> $3)`,
		p.UserID, p.Name, p.ID).Scan(&taken)
	if err != nil {
		return err
	}
	if taken {
		return fmt.Errorf("portfolio %q: %w", p.Name, ErrDuplicateName)
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE portfolios
		 SET name = $3, description = $4, currency = $5, updated_at = $6
		 WHERE id = $1 AND user_id = $2`,
		p.ID, p.UserID, p.Name, p.Description, p.Currency, p.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("portfolio %s: %w", p.ID, ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) DeletePortfolio(ctx context.Context, userID, id string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, table := range []string{"transactions", "positions", "cash_movements", "dividends"} {
		if _, err := tx.Exec(ctx,
			fmt.Sprintf(`DELETE FROM %s WHERE portfolio_id = $1`, table), id); err != nil {
			return err
		}
	}

	tag, err := tx.Exec(ctx,
		`DELETE FROM portfolios WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("portfolio %s: %w", id, ErrNotFound)
	}
	return tx.Commit(ctx)
}

// --- Transaction ledger ---

const transactionColumns = `id, portfolio_id, symbol, transaction_type,
	quantity::TEXT, price::TEXT, fees::TEXT,
	transaction_date, COALESCE(notes, ''), created_at, updated_at`

func (s *PostgresStore) InsertTransaction(ctx context.Context, t *model.Transaction) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO transactions (id, portfolio_id, symbol, transaction_type,
		                           quantity, price, fees, transaction_date, notes,
		                           created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5::NUMERIC, $6::NUMERIC, $7::NUMERIC, $8, $9, $10, $11)`,
		t.ID, t.PortfolioID, t.Symbol, t.Type,
		t.Quantity.String(), t.Price.String(), t.Fees.String(),
		t.Timestamp, t.Notes, t.CreatedAt, t.UpdatedAt,
	)
	return err
}

func (s *PostgresStore) GetTransaction(ctx context.Context, id string) (*model.Transaction, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE id = $1`, id)

	t, err := scanTransaction(row)
	if err != nil {
		return nil, notFound(err, "transaction", id)
	}
	return t, nil
}

func (s *PostgresStore) ListTransactions(ctx context.Context, f TransactionFilter) ([]model.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE 1=1`
	var args []any

	if f.PortfolioID != "" {
		args = append(args, f.PortfolioID)
		query += fmt.Sprintf(` AND portfolio_id = $%d`, len(args))
	}
	if f.Symbol != "" {
		args = append(args, f.Symbol)
		query += fmt.Sprintf(` AND symbol = $%d`, len(args))
	}
	if f.Type != "" {
		args = append(args, f.Type)
		query += fmt.Sprintf(` AND transaction_type = $%d`, len(args))
	}
	query += ` ORDER BY transaction_date DESC`
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanTransactions(rows)
}

func (s *PostgresStore) UpdateTransaction(ctx context.Context, t *model.Transaction) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE transactions
		 SET symbol = $2, transaction_type = $3, quantity = $4::NUMERIC,
		     price = $5::NUMERIC, fees = $6::NUMERIC, transaction_date = $7,
		     notes = $8, updated_at = $9
		 WHERE id = $1`,
		t.ID, t.Symbol, t.Type, t.Quantity.String(), t.Price.String(), t.Fees.String(),
		t.Timestamp, t.Notes, t.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("transaction %s: %w", t.ID, ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) DeleteTransaction(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM transactions WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("transaction %s: %w", id, ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) ListTradeEvents(ctx context.Context, portfolioID string) ([]model.Transaction, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+transactionColumns+`
		 FROM transactions
		 WHERE portfolio_id = $1 AND transaction_type IN ('buy', 'sell')
		 ORDER BY transaction_date, created_at, id`, portfolioID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanTransactions(rows)
}

func (s *PostgresStore) CountTransactions(ctx context.Context, portfolioID string) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM transactions WHERE portfolio_id = $1`, portfolioID).
		Scan(&count)
	return count, err
}

// --- Positions ---

// ReplacePositions swaps the snapshot inside one database transaction, so
// concurrent readers see either the old rows or the new rows in full.
func (s *PostgresStore) ReplacePositions(ctx context.Context, portfolioID string, positions []model.Position) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`DELETE FROM positions WHERE portfolio_id = $1`, portfolioID); err != nil {
		return err
	}

	for _, p := range positions {
		if _, err := tx.Exec(ctx,
			`INSERT INTO positions (id, portfolio_id, symbol, quantity, average_cost, created_at, updated_at)
			 VALUES ($1, $2, $3, $4::NUMERIC, $5::NUMERIC, $6, $7)`,
			p.ID, p.PortfolioID, p.Symbol,
			p.Quantity.String(), p.AverageCost.String(),
			p.CreatedAt, p.UpdatedAt,
		); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

const positionColumns = `id, portfolio_id, symbol, quantity::TEXT, average_cost::TEXT, created_at, updated_at`

func (s *PostgresStore) ListPositions(ctx context.Context, portfolioID, symbol string) ([]model.Position, error) {
	query := `SELECT ` + positionColumns + ` FROM positions WHERE portfolio_id = $1`
	args := []any{portfolioID}
	if symbol != "" {
		args = append(args, symbol)
		query += ` AND symbol = $2`
	}
	query += ` ORDER BY symbol`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var positions []model.Position
	for rows.Next() {
		var p model.Position
		var qty, avgCost string
		if err := rows.Scan(&p.ID, &p.PortfolioID, &p.Symbol, &qty, &avgCost,
			&p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		p.Quantity, _ = decimal.NewFromString(qty)
		p.AverageCost, _ = decimal.NewFromString(avgCost)
		positions = append(positions, p)
	}
	return positions, rows.Err()
}

func (s *PostgresStore) GetPosition(ctx context.Context, id string) (*model.Position, error) {
	var p model.Position
	var qty, avgCost string
	err := s.pool.QueryRow(ctx,
		`SELECT `+positionColumns+` FROM positions WHERE id = $1`, id).
		Scan(&p.ID, &p.PortfolioID, &p.Symbol, &qty, &avgCost, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, notFound(err, "position", id)
	}
	p.Quantity, _ = decimal.NewFromString(qty)
	p.AverageCost, _ = decimal.NewFromString(avgCost)
	return &p, nil
}

// --- Assets ---

const assetColumns = `symbol, COALESCE(name, ''), COALESCE(sector, ''), COALESCE(industry, ''),
	COALESCE(country, ''), COALESCE(currency, ''), COALESCE(exchange, ''),
	current_price::TEXT, price_updated_at, created_at, updated_at`

func scanAsset(row pgx.Row) (*model.Asset, error) {
	var a model.Asset
	var price *string
	if err := row.Scan(&a.Symbol, &a.Name, &a.Sector, &a.Industry,
		&a.Country, &a.Currency, &a.Exchange,
		&price, &a.PriceUpdatedAt, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	if price != nil {
		d, _ := decimal.NewFromString(*price)
		a.CurrentPrice = &d
	}
	return &a, nil
}

func (s *PostgresStore) GetOrCreateAsset(ctx context.Context, symbol string) (*model.Asset, error) {
	a, err := s.GetAsset(ctx, symbol)
	if err == nil {
		return a, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	now := time.Now().UTC()
	// ON CONFLICT guards the race with the same symbol arriving twice.
	_, err = s.pool.Exec(ctx,
		`INSERT INTO assets (symbol, created_at, updated_at)
		 VALUES ($1, $2, $3) ON CONFLICT (symbol) DO NOTHING`,
		symbol, now, now)
	if err != nil {
		return nil, err
	}
	return s.GetAsset(ctx, symbol)
}

func (s *PostgresStore) GetAsset(ctx context.Context, symbol string) (*model.Asset, error) {
	a, err := scanAsset(s.pool.QueryRow(ctx,
		`SELECT `+assetColumns+` FROM assets WHERE symbol = $1`, symbol))
	if err != nil {
		return nil, notFound(err, "asset", symbol)
	}
	return a, nil
}

func (s *PostgresStore) ListAssets(ctx context.Context) ([]model.Asset, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+assetColumns+` FROM assets ORDER BY symbol`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectAssets(rows)
}

func (s *PostgresStore) UpdateAsset(ctx context.Context, a *model.Asset) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE assets
		 SET name = $2, sector = $3, industry = $4, country = $5,
		     currency = $6, exchange = $7, updated_at = $8
		 WHERE symbol = $1`,
		a.Symbol, a.Name, a.Sector, a.Industry, a.Country,
		a.Currency, a.Exchange, a.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("asset %s: %w", a.Symbol, ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) SearchAssets(ctx context.Context, query string) ([]model.Asset, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+assetColumns+`
		 FROM assets
		 WHERE symbol ILIKE '%' || $1 || '%' OR name ILIKE '%' || $1 || '%'
		 ORDER BY symbol LIMIT 50`, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectAssets(rows)
}

func (s *PostgresStore) SetAssetPrice(ctx context.Context, symbol string, price decimal.Decimal, at time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE assets
		 SET current_price = $2::NUMERIC, price_updated_at = $3, updated_at = $3
		 WHERE symbol = $1`,
		symbol, price.String(), at,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("asset %s: %w", symbol, ErrNotFound)
	}
	return nil
}

func collectAssets(rows pgx.Rows) ([]model.Asset, error) {
	var assets []model.Asset
	for rows.Next() {
		a, err := scanAsset(rows)
		if err != nil {
			return nil, err
		}
		assets = append(assets, *a)
	}
	return assets, rows.Err()
}

// --- Cash movements ---

func (s *PostgresStore) InsertCashMovement(ctx context.Context, m *model.CashMovement) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO cash_movements (id, portfolio_id, amount, type, movement_date, notes, created_at)
		 VALUES ($1, $2, $3::NUMERIC, $4, $5, $6, $7)`,
		m.ID, m.PortfolioID, m.Amount.String(), m.Type, m.MovementDate, m.Notes, m.CreatedAt,
	)
	return err
}

func (s *PostgresStore) GetCashMovement(ctx context.Context, id string) (*model.CashMovement, error) {
	var m model.CashMovement
	var amount string
	err := s.pool.QueryRow(ctx,
		`SELECT id, portfolio_id, amount::TEXT, type, movement_date, COALESCE(notes, ''), created_at
		 FROM cash_movements WHERE id = $1`, id).
		Scan(&m.ID, &m.PortfolioID, &amount, &m.Type, &m.MovementDate, &m.Notes, &m.CreatedAt)
	if err != nil {
		return nil, notFound(err, "cash movement", id)
	}
	m.Amount, _ = decimal.NewFromString(amount)
	return &m, nil
}

func (s *PostgresStore) ListCashMovements(ctx context.Context, portfolioID string) ([]model.CashMovement, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, portfolio_id, amount::TEXT, type, movement_date, COALESCE(notes, ''), created_at
		 FROM cash_movements WHERE portfolio_id = $1 ORDER BY movement_date DESC`, portfolioID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var movements []model.CashMovement
	for rows.Next() {
		var m model.CashMovement
		var amount string
		if err := rows.Scan(&m.ID, &m.PortfolioID, &amount, &m.Type,
			&m.MovementDate, &m.Notes, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.Amount, _ = decimal.NewFromString(amount)
		movements = append(movements, m)
	}
	return movements, rows.Err()
}

func (s *PostgresStore) DeleteCashMovement(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM cash_movements WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("cash movement %s: %w", id, ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) GetCashBalance(ctx context.Context, portfolioID string) (decimal.Decimal, error) {
	var balance string
	err := s.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(CASE WHEN type = 'deposit' THEN amount ELSE -amount END), 0)::TEXT
		 FROM cash_movements WHERE portfolio_id = $1`, portfolioID).
		Scan(&balance)
	if err != nil {
		return decimal.Zero, err
	}
	b, _ := decimal.NewFromString(balance)
	return b, nil
}

// --- Dividends ---

func (s *PostgresStore) InsertDividend(ctx context.Context, dv *model.Dividend) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO dividends (id, portfolio_id, symbol, amount, dividend_date, dividend_type, created_at)
		 VALUES ($1, $2, $3, $4::NUMERIC, $5, $6, $7)`,
		dv.ID, dv.PortfolioID, dv.Symbol, dv.Amount.String(),
		dv.DividendDate, dv.DividendType, dv.CreatedAt,
	)
	return err
}

func (s *PostgresStore) GetDividend(ctx context.Context, id string) (*model.Dividend, error) {
	var dv model.Dividend
	var amount string
	err := s.pool.QueryRow(ctx,
		`SELECT id, portfolio_id, symbol, amount::TEXT, dividend_date, COALESCE(dividend_type, ''), created_at
		 FROM dividends WHERE id = $1`, id).
		Scan(&dv.ID, &dv.PortfolioID, &dv.Symbol, &amount,
			&dv.DividendDate, &dv.DividendType, &dv.CreatedAt)
	if err != nil {
		return nil, notFound(err, "dividend", id)
	}
	dv.Amount, _ = decimal.NewFromString(amount)
	return &dv, nil
}

func (s *PostgresStore) ListDividends(ctx context.Context, f DividendFilter) ([]model.Dividend, error) {
	query := `SELECT id, portfolio_id, symbol, amount::TEXT, dividend_date, COALESCE(dividend_type, ''), created_at
	          FROM dividends WHERE 1=1`
	var args []any

	if f.PortfolioID != "" {
		args = append(args, f.PortfolioID)
		query += fmt.Sprintf(` AND portfolio_id = $%d`, len(args))
	}
	if f.Symbol != "" {
		args = append(args, f.Symbol)
		query += fmt.Sprintf(` AND symbol = $%d`, len(args))
	}
	if f.From != nil {
		args = append(args, *f.From)
		query += fmt.Sprintf(` AND dividend_date >= $%d`, len(args))
	}
	if f.To != nil {
		args = append(args, *f.To)
		query += fmt.Sprintf(` AND dividend_date <= $%d`, len(args))
	}
	query += ` ORDER BY dividend_date DESC`
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var dividends []model.Dividend
	for rows.Next() {
		var dv model.Dividend
		var amount string
		if err := rows.Scan(&dv.ID, &dv.PortfolioID, &dv.Symbol, &amount,
			&dv.DividendDate, &dv.DividendType, &dv.CreatedAt); err != nil {
			return nil, err
		}
		dv.Amount, _ = decimal.NewFromString(amount)
		dividends = append(dividends, dv)
	}
	return dividends, rows.Err()
}

func (s *PostgresStore) DeleteDividend(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM dividends WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("dividend %s: %w", id, ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) TotalDividendIncome(ctx context.Context, portfolioID string, from, to *time.Time) (decimal.Decimal, error) {
	query := `SELECT COALESCE(SUM(amount), 0)::TEXT FROM dividends WHERE portfolio_id = $1`
	args := []any{portfolioID}

	if from != nil {
		args = append(args, *from)
		query += fmt.Sprintf(` AND dividend_date >= $%d`, len(args))
	}
	if to != nil {
		args = append(args, *to)
		query += fmt.Sprintf(` AND dividend_date <= $%d`, len(args))
	}

	var total string
	if err := s.pool.QueryRow(ctx, query, args...).Scan(&total); err != nil {
		return decimal.Zero, err
	}
	t, _ := decimal.NewFromString(total)
	return t, nil
}

// scanTransaction reads one transaction row.
func scanTransaction(row pgx.Row) (*model.Transaction, error) {
	var t model.Transaction
	var qty, price, fees string
	if err := row.Scan(&t.ID, &t.PortfolioID, &t.Symbol, &t.Type,
		&qty, &price, &fees,
		&t.Timestamp, &t.Notes, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	t.Quantity, _ = decimal.NewFromString(qty)
	t.Price, _ = decimal.NewFromString(price)
	t.Fees, _ = decimal.NewFromString(fees)
	return &t, nil
}

func scanTransactions(rows pgx.Rows) ([]model.Transaction, error) {
	var transactions []model.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, *t)
	}
	return transactions, rows.Err()
}
