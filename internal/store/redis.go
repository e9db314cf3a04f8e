package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/Tanaka97/portman/internal/metrics"
	"github.com/Tanaka97/portman/internal/model"
)

// CachedStore wraps a primary Store (PostgreSQL) with a Redis read-through
// cache. Writes go to the primary store and invalidate the cache; reads
// check Redis first then fall back to the primary.
//
// Only the hot read paths are cached: position snapshots per portfolio and
// asset metadata per symbol. Everything else passes through.
type CachedStore struct {
	primary Store
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

func positionsKey(portfolioID string) string { return fmt.Sprintf("positions:%s", portfolioID) }
func assetKey(symbol string) string          { return fmt.Sprintf("asset:%s", symbol) }

// --- Positions (read-through, invalidated on snapshot replacement) ---

func (s *CachedStore) ReplacePositions(ctx context.Context, portfolioID string, positions []model.Position) error {
	if err := s.primary.ReplacePositions(ctx, portfolioID, positions); err != nil {
		return err
	}
	// Invalidate; next read repopulates from the fresh snapshot.
	s.rdb.Del(ctx, positionsKey(portfolioID))
	return nil
}

func (s *CachedStore) ListPositions(ctx context.Context, portfolioID, symbol string) ([]model.Position, error) {
	// Only the full snapshot is cached; symbol-filtered reads pass through.
	if symbol != "" {
		return s.primary.ListPositions(ctx, portfolioID, symbol)
	}

	data, err := s.rdb.Get(ctx, positionsKey(portfolioID)).Bytes()
	if err == nil {
		var positions []model.Position
		if json.Unmarshal(data, &positions) == nil {
			metrics.CacheHits.WithLabelValues("hit").Inc()
			return positions, nil
		}
	}
	metrics.CacheHits.WithLabelValues("miss").Inc()

	positions, err := s.primary.ListPositions(ctx, portfolioID, "")
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(positions); err == nil {
		s.rdb.Set(ctx, positionsKey(portfolioID), data, s.ttl)
	}
	return positions, nil
}

func (s *CachedStore) GetPosition(ctx context.Context, id string) (*model.Position, error) {
	return s.primary.GetPosition(ctx, id)
}

// --- Assets (read-through, invalidated on metadata or price updates) ---

func (s *CachedStore) GetAsset(ctx context.Context, symbol string) (*model.Asset, error) {
	data, err := s.rdb.Get(ctx, assetKey(symbol)).Bytes()
	if err == nil {
		var a model.Asset
		if json.Unmarshal(data, &a) == nil {
			metrics.CacheHits.WithLabelValues("hit").Inc()
			return &a, nil
		}
	}
	metrics.CacheHits.WithLabelValues("miss").Inc()

	a, err := s.primary.GetAsset(ctx, symbol)
	if err != nil {
		return nil, err
	}

	s.cacheAsset(ctx, a)
	return a, nil
}

func (s *CachedStore) GetOrCreateAsset(ctx context.Context, symbol string) (*model.Asset, error) {
	a, err := s.primary.GetOrCreateAsset(ctx, symbol)
	if err != nil {
		return nil, err
	}
	s.cacheAsset(ctx, a)
	return a, nil
}

func (s *CachedStore) UpdateAsset(ctx context.Context, a *model.Asset) error {
	if err := s.primary.UpdateAsset(ctx, a); err != nil {
		return err
	}
	s.rdb.Del(ctx, assetKey(a.Symbol))
	return nil
}

func (s *CachedStore) SetAssetPrice(ctx context.Context, symbol string, price decimal.Decimal, at time.Time) error {
	if err := s.primary.SetAssetPrice(ctx, symbol, price, at); err != nil {
		return err
	}
	s.rdb.Del(ctx, assetKey(symbol))
	return nil
}

func (s *CachedStore) cacheAsset(ctx context.Context, a *model.Asset) {
	if data, err := json.Marshal(a); err == nil {
		s.rdb.Set(ctx, assetKey(a.Symbol), data, s.ttl)
	}
}

// --- Passthrough (not cached) ---

func (s *CachedStore) CreatePortfolio(ctx context.Context, p *model.Portfolio) error {
	return s.primary.CreatePortfolio(ctx, p)
}

func (s *CachedStore) GetPortfolio(ctx context.Context, userID, id string) (*model.Portfolio, error) {
	return s.primary.GetPortfolio(ctx, userID, id)
}

func (s *CachedStore) ListPortfolios(ctx context.Context, userID string) ([]model.Portfolio, error) {
	return s.primary.ListPortfolios(ctx, userID)
}

func (s *CachedStore) UpdatePortfolio(ctx context.Context, p *model.Portfolio) error {
	return s.primary.UpdatePortfolio(ctx, p)
}

func (s *CachedStore) DeletePortfolio(ctx context.Context, userID, id string) error {
	if err := s.primary.DeletePortfolio(ctx, userID, id); err != nil {
		return err
	}
	s.rdb.Del(ctx, positionsKey(id))
	return nil
}

func (s *CachedStore) InsertTransaction(ctx context.Context, t *model.Transaction) error {
	return s.primary.InsertTransaction(ctx, t)
}

func (s *CachedStore) GetTransaction(ctx context.Context, id string) (*model.Transaction, error) {
	return s.primary.GetTransaction(ctx, id)
}

func (s *CachedStore) ListTransactions(ctx context.Context, f TransactionFilter) ([]model.Transaction, error) {
	return s.primary.ListTransactions(ctx, f)
}

func (s *CachedStore) UpdateTransaction(ctx context.Context, t *model.Transaction) error {
	return s.primary.UpdateTransaction(ctx, t)
}

func (s *CachedStore) DeleteTransaction(ctx context.Context, id string) error {
	return s.primary.DeleteTransaction(ctx, id)
}

func (s *CachedStore) ListTradeEvents(ctx context.Context, portfolioID string) ([]model.Transaction, error) {
	return s.primary.ListTradeEvents(ctx, portfolioID)
}

func (s *CachedStore) CountTransactions(ctx context.Context, portfolioID string) (int, error) {
	return s.primary.CountTransactions(ctx, portfolioID)
}

func (s *CachedStore) ListAssets(ctx context.Context) ([]model.Asset, error) {
	return s.primary.ListAssets(ctx)
}

func (s *CachedStore) SearchAssets(ctx context.Context, query string) ([]model.Asset, error) {
	return s.primary.SearchAssets(ctx, query)
}

func (s *CachedStore) InsertCashMovement(ctx context.Context, m *model.CashMovement) error {
	return s.primary.InsertCashMovement(ctx, m)
}

func (s *CachedStore) GetCashMovement(ctx context.Context, id string) (*model.CashMovement, error) {
	return s.primary.GetCashMovement(ctx, id)
}

func (s *CachedStore) ListCashMovements(ctx context.Context, portfolioID string) ([]model.CashMovement, error) {
	return s.primary.ListCashMovements(ctx, portfolioID)
}

func (s *CachedStore) DeleteCashMovement(ctx context.Context, id string) error {
	return s.primary.DeleteCashMovement(ctx, id)
}

func (s *CachedStore) GetCashBalance(ctx context.Context, portfolioID string) (decimal.Decimal, error) {
	return s.primary.GetCashBalance(ctx, portfolioID)
}

func (s *CachedStore) InsertDividend(ctx context.Context, dv *model.Dividend) error {
	return s.primary.InsertDividend(ctx, dv)
}

func (s *CachedStore) GetDividend(ctx context.Context, id string) (*model.Dividend, error) {
	return s.primary.GetDividend(ctx, id)
}

func (s *CachedStore) ListDividends(ctx context.Context, f DividendFilter) ([]model.Dividend, error) {
	return s.primary.ListDividends(ctx, f)
}

func (s *CachedStore) DeleteDividend(ctx context.Context, id string) error {
	return s.primary.DeleteDividend(ctx, id)
}

func (s *CachedStore) TotalDividendIncome(ctx context.Context, portfolioID string, from, to *time.Time) (decimal.Decimal, error) {
	return s.primary.TotalDividendIncome(ctx, portfolioID, from, to)
}
