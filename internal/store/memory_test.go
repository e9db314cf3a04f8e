package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Tanaka97/portman/internal/model"
)

func d(f float64) decimal.Decimal { return decimal.NewFromFloat(f) }

func newPortfolio(t *testing.T, s *MemoryStore, userID, name string) *model.Portfolio {
	t.Helper()
	now := time.Now().UTC()
	p := &model.Portfolio{
		ID:        name + "-id",
		UserID:    userID,
		Name:      name,
		Currency:  "USD",
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.CreatePortfolio(context.Background(), p); err != nil {
		t.Fatalf("CreatePortfolio: %v", err)
	}
	return p
}

func TestMemoryStoreDuplicatePortfolioName(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	newPortfolio(t, s, "u1", "growth")

	err := s.CreatePortfolio(ctx, &model.Portfolio{ID: "other", UserID: "u1", Name: "growth"})
	if !errors.Is(err, ErrDuplicateName) {
		t.Fatalf("expected ErrDuplicateName, got %v", err)
	}

	// Same name under a different user is fine.
	if err := s.CreatePortfolio(ctx, &model.Portfolio{ID: "p2", UserID: "u2", Name: "growth"}); err != nil {
		t.Fatalf("cross-user name should be allowed: %v", err)
	}
}

func TestMemoryStorePortfolioScopedToUser(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	p := newPortfolio(t, s, "u1", "growth")

	if _, err := s.GetPortfolio(ctx, "u2", p.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for wrong user, got %v", err)
	}
	if _, err := s.GetPortfolio(ctx, "u1", p.ID); err != nil {
		t.Fatalf("owner read failed: %v", err)
	}
}

func TestMemoryStoreReplacePositionsSwapsSnapshot(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	p := newPortfolio(t, s, "u1", "growth")

	first := []model.Position{
		{ID: "pos1", PortfolioID: p.ID, Symbol: "AAPL", Quantity: d(10), AverageCost: d(150)},
		{ID: "pos2", PortfolioID: p.ID, Symbol: "MSFT", Quantity: d(5), AverageCost: d(300)},
	}
	if err := s.ReplacePositions(ctx, p.ID, first); err != nil {
		t.Fatalf("ReplacePositions: %v", err)
	}

	second := []model.Position{
		{ID: "pos3", PortfolioID: p.ID, Symbol: "AAPL", Quantity: d(4), AverageCost: d(150)},
	}
	if err := s.ReplacePositions(ctx, p.ID, second); err != nil {
		t.Fatalf("ReplacePositions: %v", err)
	}

	got, err := s.ListPositions(ctx, p.ID, "")
	if err != nil {
		t.Fatalf("ListPositions: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected old snapshot fully replaced, got %d positions", len(got))
	}
	if got[0].Symbol != "AAPL" || !got[0].Quantity.Equal(d(4)) {
		t.Fatalf("unexpected position after swap: %+v", got[0])
	}

	// Stale rows from the first snapshot must be unreachable.
	if _, err := s.GetPosition(ctx, "pos2"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected dropped position to be gone, got %v", err)
	}
}

func TestMemoryStoreReplacePositionsDetachesCallerSlice(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	p := newPortfolio(t, s, "u1", "growth")

	snapshot := []model.Position{
		{ID: "pos1", PortfolioID: p.ID, Symbol: "AAPL", Quantity: d(10), AverageCost: d(150)},
	}
	if err := s.ReplacePositions(ctx, p.ID, snapshot); err != nil {
		t.Fatalf("ReplacePositions: %v", err)
	}
	snapshot[0].Quantity = d(999)

	got, _ := s.ListPositions(ctx, p.ID, "")
	if !got[0].Quantity.Equal(d(10)) {
		t.Fatal("stored snapshot aliased the caller's slice")
	}
}

func TestMemoryStoreDeletePortfolioCascades(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	p := newPortfolio(t, s, "u1", "growth")

	now := time.Now().UTC()
	if err := s.InsertTransaction(ctx, &model.Transaction{
		ID: "t1", PortfolioID: p.ID, Symbol: "AAPL", Type: model.TypeBuy,
		Quantity: d(10), Price: d(150), Fees: decimal.Zero,
		Timestamp: now, CreatedAt: now, UpdatedAt: now,
	}); err != nil {
		t.Fatalf("InsertTransaction: %v", err)
	}
	if err := s.ReplacePositions(ctx, p.ID, []model.Position{
		{ID: "pos1", PortfolioID: p.ID, Symbol: "AAPL", Quantity: d(10), AverageCost: d(150)},
	}); err != nil {
		t.Fatalf("ReplacePositions: %v", err)
	}
	if err := s.InsertCashMovement(ctx, &model.CashMovement{
		ID: "c1", PortfolioID: p.ID, Amount: d(1000), Type: model.MovementDeposit,
		MovementDate: now, CreatedAt: now,
	}); err != nil {
		t.Fatalf("InsertCashMovement: %v", err)
	}
	if err := s.InsertDividend(ctx, &model.Dividend{
		ID: "dv1", PortfolioID: p.ID, Symbol: "AAPL", Amount: d(12),
		DividendDate: now, CreatedAt: now,
	}); err != nil {
		t.Fatalf("InsertDividend: %v", err)
	}

	if err := s.DeletePortfolio(ctx, "u1", p.ID); err != nil {
		t.Fatalf("DeletePortfolio: %v", err)
	}

	if txs, _ := s.ListTransactions(ctx, TransactionFilter{PortfolioID: p.ID}); len(txs) != 0 {
		t.Fatalf("transactions survived cascade: %d", len(txs))
	}
	if positions, _ := s.ListPositions(ctx, p.ID, ""); len(positions) != 0 {
		t.Fatalf("positions survived cascade: %d", len(positions))
	}
	if movements, _ := s.ListCashMovements(ctx, p.ID); len(movements) != 0 {
		t.Fatalf("cash movements survived cascade: %d", len(movements))
	}
	if dividends, _ := s.ListDividends(ctx, DividendFilter{PortfolioID: p.ID}); len(dividends) != 0 {
		t.Fatalf("dividends survived cascade: %d", len(dividends))
	}
}

func TestMemoryStoreCashBalance(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	p := newPortfolio(t, s, "u1", "growth")

	now := time.Now().UTC()
	movements := []model.CashMovement{
		{ID: "c1", PortfolioID: p.ID, Amount: d(1000), Type: model.MovementDeposit, MovementDate: now},
		{ID: "c2", PortfolioID: p.ID, Amount: d(250.50), Type: model.MovementWithdrawal, MovementDate: now},
		{ID: "c3", PortfolioID: p.ID, Amount: d(100), Type: model.MovementDeposit, MovementDate: now},
	}
	for i := range movements {
		if err := s.InsertCashMovement(ctx, &movements[i]); err != nil {
			t.Fatalf("InsertCashMovement: %v", err)
		}
	}

	balance, err := s.GetCashBalance(ctx, p.ID)
	if err != nil {
		t.Fatalf("GetCashBalance: %v", err)
	}
	if !balance.Equal(d(849.50)) {
		t.Fatalf("balance = %s, want 849.5", balance)
	}
}

func TestMemoryStoreListTradeEventsOrderAndFilter(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	p := newPortfolio(t, s, "u1", "growth")

	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	txs := []model.Transaction{
		{ID: "t3", PortfolioID: p.ID, Symbol: "AAPL", Type: model.TypeSell,
			Quantity: d(2), Price: d(180), Timestamp: base.Add(48 * time.Hour)},
		{ID: "t1", PortfolioID: p.ID, Symbol: "AAPL", Type: model.TypeBuy,
			Quantity: d(10), Price: d(150), Timestamp: base},
		{ID: "t2", PortfolioID: p.ID, Symbol: "AAPL", Type: model.TypeDividend,
			Quantity: d(1), Price: d(5), Timestamp: base.Add(24 * time.Hour)},
	}
	for i := range txs {
		if err := s.InsertTransaction(ctx, &txs[i]); err != nil {
			t.Fatalf("InsertTransaction: %v", err)
		}
	}

	events, err := s.ListTradeEvents(ctx, p.ID)
	if err != nil {
		t.Fatalf("ListTradeEvents: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected only buy/sell events, got %d", len(events))
	}
	if events[0].ID != "t1" || events[1].ID != "t3" {
		t.Fatalf("events not in timestamp order: %s, %s", events[0].ID, events[1].ID)
	}
}

func TestMemoryStoreDividendFilterByDateRange(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	p := newPortfolio(t, s, "u1", "growth")

	dates := []time.Time{
		time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 4, 15, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 7, 15, 0, 0, 0, 0, time.UTC),
	}
	for i, date := range dates {
		if err := s.InsertDividend(ctx, &model.Dividend{
			ID: string(rune('a' + i)), PortfolioID: p.ID, Symbol: "AAPL",
			Amount: d(10), DividendDate: date,
		}); err != nil {
			t.Fatalf("InsertDividend: %v", err)
		}
	}

	from := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	got, err := s.ListDividends(ctx, DividendFilter{PortfolioID: p.ID, From: &from, To: &to})
	if err != nil {
		t.Fatalf("ListDividends: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 dividend in range, got %d", len(got))
	}

	total, err := s.TotalDividendIncome(ctx, p.ID, &from, nil)
	if err != nil {
		t.Fatalf("TotalDividendIncome: %v", err)
	}
	if !total.Equal(d(20)) {
		t.Fatalf("income = %s, want 20", total)
	}
}
