// Package costbasis implements the average-cost recomputation fold that
// rebuilds a portfolio's open positions from its full transaction history.
//
// The fold is the only correctness mechanism: after any buy/sell mutation
// the whole history is replayed from scratch. There is no incremental
// update path. This keeps the engine a pure function of the ordered event
// sequence — replaying the same history always produces the same map.
//
// Accounting method is average cost basis (not FIFO or specific-lot):
//   - buy:  quantity += q; totalCost += q*price + fees
//   - sell: totalCost is reduced by the fraction of the holding sold,
//     then reduced by the sell fees; quantity -= q
//
// Fees are asymmetric on purpose: buy fees increase cost basis
// proportionally with the lot, sell fees come off the remaining basis.
//
// Selling more than the current holding is accepted, not rejected. The
// quantity goes non-positive and Materialize drops the symbol. This
// absorbs data-entry slack in imported broker histories; the recorded
// cost can run negative in between without ever surfacing.
//
// All monetary values use shopspring/decimal — never float64 for money.
package costbasis

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/Tanaka97/portman/internal/model"
)

// State is the running holding for one symbol during and after the fold.
type State struct {
	Quantity  decimal.Decimal
	TotalCost decimal.Decimal
}

// AverageCost returns TotalCost / Quantity, or zero when the quantity is
// not positive.
func (s State) AverageCost() decimal.Decimal {
	if s.Quantity.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero
	}
	return s.TotalCost.Div(s.Quantity)
}

// Recompute folds a portfolio's transaction history into per-symbol
// holding states. Only buy and sell transactions participate; every other
// type is skipped without error.
//
// Events are replayed in timestamp order with creation time and ID as
// stable tie-breakers, so identical histories always fold to identical
// states regardless of input slice order. The input is not modified.
func Recompute(events []model.Transaction) map[string]State {
	ordered := make([]model.Transaction, len(events))
	copy(ordered, events)
	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if !a.Timestamp.Equal(b.Timestamp) {
			return a.Timestamp.Before(b.Timestamp)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})

	states := make(map[string]State)

	for _, tx := range ordered {
		if tx.Type != model.TypeBuy && tx.Type != model.TypeSell {
			continue
		}

		st := states[tx.Symbol]

		switch tx.Type {
		case model.TypeBuy:
			st.Quantity = st.Quantity.Add(tx.Quantity)
			st.TotalCost = st.TotalCost.Add(tx.Quantity.Mul(tx.Price)).Add(tx.Fees)

		case model.TypeSell:
			if st.Quantity.IsPositive() {
				// Remove the sold fraction of the basis, then the fees.
				sold := tx.Quantity.Div(st.Quantity)
				st.TotalCost = st.TotalCost.Sub(st.TotalCost.Mul(sold))
				st.TotalCost = st.TotalCost.Sub(tx.Fees)
			}
			st.Quantity = st.Quantity.Sub(tx.Quantity)
		}

		states[tx.Symbol] = st
	}

	return states
}

// Materialize converts folded states into persistable position records for
// one portfolio. Symbols whose quantity is not positive are dropped; the
// result is ordered by symbol so snapshots are deterministic.
//
// Record IDs and timestamps are assigned by the caller before persisting.
func Materialize(portfolioID string, states map[string]State) []model.Position {
	symbols := make([]string, 0, len(states))
	for sym, st := range states {
		if st.Quantity.IsPositive() {
			symbols = append(symbols, sym)
		}
	}
	sort.Strings(symbols)

	positions := make([]model.Position, 0, len(symbols))
	for _, sym := range symbols {
		st := states[sym]
		positions = append(positions, model.Position{
			PortfolioID: portfolioID,
			Symbol:      sym,
			Quantity:    st.Quantity,
			AverageCost: st.AverageCost(),
		})
	}
	return positions
}
