package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Tanaka97/portman/internal/model"
)

// MemoryStore implements Store with in-memory maps. Used for testing
// and development. Not suitable for production (no persistence).
type MemoryStore struct {
	mu         sync.RWMutex
	portfolios map[string]*model.Portfolio
	ledger     []model.Transaction
	positions  map[string][]model.Position // portfolioID → snapshot, swapped wholesale
	assets     map[string]*model.Asset
	cash       []model.CashMovement
	dividends  []model.Dividend
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		portfolios: make(map[string]*model.Portfolio),
		positions:  make(map[string][]model.Position),
		assets:     make(map[string]*model.Asset),
	}
}

// --- Portfolios ---

func (s *MemoryStore) CreatePortfolio(_ context.Context, p *model.Portfolio) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.portfolios {
		if existing.UserID == p.UserID && existing.Name == p.Name {
			return fmt.Errorf("portfolio %q: %w", p.Name, ErrDuplicateName)
		}
	}

	// Store a copy to avoid external mutation.
	copy := *p
	s.portfolios[p.ID] = &copy
	return nil
}

func (s *MemoryStore) GetPortfolio(_ context.Context, userID, id string) (*model.Portfolio, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.portfolios[id]
	if !ok || p.UserID != userID {
		return nil, fmt.Errorf("portfolio %s: %w", id, ErrNotFound)
	}
	copy := *p
	return &copy, nil
}

func (s *MemoryStore) ListPortfolios(_ context.Context, userID string) ([]model.Portfolio, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.Portfolio
	for _, p := range s.portfolios {
		if p.UserID == userID {
			result = append(result, *p)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

func (s *MemoryStore) UpdatePortfolio(_ context.Context, p *model.Portfolio) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.portfolios[p.ID]
	if !ok || existing.UserID != p.UserID {
		return fmt.Errorf("portfolio %s: %w", p.ID, ErrNotFound)
	}
	for _, other := range s.portfolios {
		if other.ID != p.ID && other.UserID == p.UserID && other.Name == p.Name {
			return fmt.Errorf("portfolio %q: %w", p.Name, ErrDuplicateName)
		}
	}
	copy := *p
	s.portfolios[p.ID] = &copy
	return nil
}

func (s *MemoryStore) DeletePortfolio(_ context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.portfolios[id]
	if !ok || p.UserID != userID {
		return fmt.Errorf("portfolio %s: %w", id, ErrNotFound)
	}
	delete(s.portfolios, id)
	delete(s.positions, id)

	s.ledger = filterTransactions(s.ledger, id)
	s.cash = filterCash(s.cash, id)
	s.dividends = filterDividends(s.dividends, id)
	return nil
}

func filterTransactions(in []model.Transaction, portfolioID string) []model.Transaction {
	out := in[:0]
	for _, tx := range in {
		if tx.PortfolioID != portfolioID {
			out = append(out, tx)
		}
	}
	return out
}

func filterCash(in []model.CashMovement, portfolioID string) []model.CashMovement {
	out := in[:0]
	for _, m := range in {
		if m.PortfolioID != portfolioID {
			out = append(out, m)
		}
	}
	return out
}

func filterDividends(in []model.Dividend, portfolioID string) []model.Dividend {
	out := in[:0]
	for _, dv := range in {
		if dv.PortfolioID != portfolioID {
			out = append(out, dv)
		}
	}
	return out
}

// --- Transaction ledger ---

func (s *MemoryStore) InsertTransaction(_ context.Context, tx *model.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ledger = append(s.ledger, *tx)
	return nil
}

func (s *MemoryStore) GetTransaction(_ context.Context, id string) (*model.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, tx := range s.ledger {
		if tx.ID == id {
			copy := tx
			return &copy, nil
		}
	}
	return nil, fmt.Errorf("transaction %s: %w", id, ErrNotFound)
}

func (s *MemoryStore) ListTransactions(_ context.Context, f TransactionFilter) ([]model.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.Transaction
	for _, tx := range s.ledger {
		if f.PortfolioID != "" && tx.PortfolioID != f.PortfolioID {
			continue
		}
		if f.Symbol != "" && tx.Symbol != f.Symbol {
			continue
		}
		if f.Type != "" && tx.Type != f.Type {
			continue
		}
		result = append(result, tx)
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Timestamp.After(result[j].Timestamp)
	})
	if f.Limit > 0 && len(result) > f.Limit {
		result = result[:f.Limit]
	}
	return result, nil
}

func (s *MemoryStore) UpdateTransaction(_ context.Context, tx *model.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.ledger {
		if s.ledger[i].ID == tx.ID {
			s.ledger[i] = *tx
			return nil
		}
	}
	return fmt.Errorf("transaction %s: %w", tx.ID, ErrNotFound)
}

func (s *MemoryStore) DeleteTransaction(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.ledger {
		if s.ledger[i].ID == id {
			s.ledger = append(s.ledger[:i], s.ledger[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("transaction %s: %w", id, ErrNotFound)
}

func (s *MemoryStore) ListTradeEvents(_ context.Context, portfolioID string) ([]model.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.Transaction
	for _, tx := range s.ledger {
		if tx.PortfolioID != portfolioID {
			continue
		}
		if tx.Type != model.TypeBuy && tx.Type != model.TypeSell {
			continue
		}
		result = append(result, tx)
	}
	sort.SliceStable(result, func(i, j int) bool {
		if !result[i].Timestamp.Equal(result[j].Timestamp) {
			return result[i].Timestamp.Before(result[j].Timestamp)
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

func (s *MemoryStore) CountTransactions(_ context.Context, portfolioID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, tx := range s.ledger {
		if tx.PortfolioID == portfolioID {
			count++
		}
	}
	return count, nil
}

// --- Positions ---

// ReplacePositions swaps the whole snapshot under one lock acquisition;
// a concurrent reader sees either the old slice or the new one, never a
// mix of both.
func (s *MemoryStore) ReplacePositions(_ context.Context, portfolioID string, positions []model.Position) error {
	snapshot := make([]model.Position, len(positions))
	copy(snapshot, positions)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.positions[portfolioID] = snapshot
	return nil
}

func (s *MemoryStore) ListPositions(_ context.Context, portfolioID, symbol string) ([]model.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.Position
	for _, p := range s.positions[portfolioID] {
		if symbol != "" && p.Symbol != symbol {
			continue
		}
		result = append(result, p)
	}
	return result, nil
}

func (s *MemoryStore) GetPosition(_ context.Context, id string) (*model.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, snapshot := range s.positions {
		for _, p := range snapshot {
			if p.ID == id {
				copy := p
				return &copy, nil
			}
		}
	}
	return nil, fmt.Errorf("position %s: %w", id, ErrNotFound)
}

// --- Assets ---

func (s *MemoryStore) GetOrCreateAsset(_ context.Context, symbol string) (*model.Asset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if a, ok := s.assets[symbol]; ok {
		copy := *a
		return &copy, nil
	}

	now := time.Now().UTC()
	a := &model.Asset{Symbol: symbol, CreatedAt: now, UpdatedAt: now}
	s.assets[symbol] = a
	copy := *a
	return &copy, nil
}

func (s *MemoryStore) GetAsset(_ context.Context, symbol string) (*model.Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.assets[symbol]
	if !ok {
		return nil, fmt.Errorf("asset %s: %w", symbol, ErrNotFound)
	}
	copy := *a
	return &copy, nil
}

func (s *MemoryStore) ListAssets(_ context.Context) ([]model.Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]model.Asset, 0, len(s.assets))
	for _, a := range s.assets {
		result = append(result, *a)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Symbol < result[j].Symbol })
	return result, nil
}

func (s *MemoryStore) UpdateAsset(_ context.Context, a *model.Asset) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.assets[a.Symbol]; !ok {
		return fmt.Errorf("asset %s: %w", a.Symbol, ErrNotFound)
	}
	copy := *a
	s.assets[a.Symbol] = &copy
	return nil
}

func (s *MemoryStore) SearchAssets(_ context.Context, query string) ([]model.Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	q := strings.ToUpper(query)
	var result []model.Asset
	for _, a := range s.assets {
		if strings.Contains(a.Symbol, q) || strings.Contains(strings.ToUpper(a.Name), q) {
			result = append(result, *a)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Symbol < result[j].Symbol })
	return result, nil
}

func (s *MemoryStore) SetAssetPrice(_ context.Context, symbol string, price decimal.Decimal, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.assets[symbol]
	if !ok {
		return fmt.Errorf("asset %s: %w", symbol, ErrNotFound)
	}
	a.CurrentPrice = &price
	a.PriceUpdatedAt = &at
	a.UpdatedAt = at
	return nil
}

// --- Cash movements ---

func (s *MemoryStore) InsertCashMovement(_ context.Context, m *model.CashMovement) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cash = append(s.cash, *m)
	return nil
}

func (s *MemoryStore) GetCashMovement(_ context.Context, id string) (*model.CashMovement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, m := range s.cash {
		if m.ID == id {
			copy := m
			return &copy, nil
		}
	}
	return nil, fmt.Errorf("cash movement %s: %w", id, ErrNotFound)
}

func (s *MemoryStore) ListCashMovements(_ context.Context, portfolioID string) ([]model.CashMovement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.CashMovement
	for _, m := range s.cash {
		if m.PortfolioID == portfolioID {
			result = append(result, m)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].MovementDate.After(result[j].MovementDate)
	})
	return result, nil
}

func (s *MemoryStore) DeleteCashMovement(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.cash {
		if s.cash[i].ID == id {
			s.cash = append(s.cash[:i], s.cash[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("cash movement %s: %w", id, ErrNotFound)
}

func (s *MemoryStore) GetCashBalance(_ context.Context, portfolioID string) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	balance := decimal.Zero
	for _, m := range s.cash {
		if m.PortfolioID != portfolioID {
			continue
		}
		if m.Type == model.MovementDeposit {
			balance = balance.Add(m.Amount)
		} else {
			balance = balance.Sub(m.Amount)
		}
	}
	return balance, nil
}

// --- Dividends ---

func (s *MemoryStore) InsertDividend(_ context.Context, dv *model.Dividend) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.dividends = append(s.dividends, *dv)
	return nil
}

func (s *MemoryStore) GetDividend(_ context.Context, id string) (*model.Dividend, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, dv := range s.dividends {
		if dv.ID == id {
			copy := dv
			return &copy, nil
		}
	}
	return nil, fmt.Errorf("dividend %s: %w", id, ErrNotFound)
}

func (s *MemoryStore) ListDividends(_ context.Context, f DividendFilter) ([]model.Dividend, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.Dividend
	for _, dv := range s.dividends {
		if f.PortfolioID != "" && dv.PortfolioID != f.PortfolioID {
			continue
		}
		if f.Symbol != "" && dv.Symbol != f.Symbol {
			continue
		}
		if f.From != nil && dv.DividendDate.Before(*f.From) {
			continue
		}
		if f.To != nil && dv.DividendDate.After(*f.To) {
			continue
		}
		result = append(result, dv)
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].DividendDate.After(result[j].DividendDate)
	})
	if f.Limit > 0 && len(result) > f.Limit {
		result = result[:f.Limit]
	}
	return result, nil
}

func (s *MemoryStore) DeleteDividend(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.dividends {
		if s.dividends[i].ID == id {
			s.dividends = append(s.dividends[:i], s.dividends[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("dividend %s: %w", id, ErrNotFound)
}

func (s *MemoryStore) TotalDividendIncome(ctx context.Context, portfolioID string, from, to *time.Time) (decimal.Decimal, error) {
	dividends, err := s.ListDividends(ctx, DividendFilter{PortfolioID: portfolioID, From: from, To: to})
	if err != nil {
		return decimal.Zero, err
	}

	total := decimal.Zero
	for _, dv := range dividends {
		total = total.Add(dv.Amount)
	}
	return total, nil
}
