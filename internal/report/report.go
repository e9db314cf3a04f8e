// Package report implements the aggregation engine: it turns materialized
// positions plus externally supplied prices, cash, and dividend totals
// into portfolio summaries and allocation breakdowns.
//
// Everything here is a pure computation over inputs the caller already
// fetched. No I/O, no partial results — an aggregation either has all of
// its inputs or it is not computed at all.
package report

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Tanaka97/portman/internal/model"
)

// Allocation dimensions.
const (
	DimensionSector   = "sector"
	DimensionIndustry = "industry"
)

var hundred = decimal.NewFromInt(100)

// EnrichPosition derives the valuation fields for one persisted position.
// asset may be zero-valued when no metadata exists; price is nil when the
// symbol has no externally supplied quote.
func EnrichPosition(p model.Position, asset model.Asset, price *decimal.Decimal) model.PositionView {
	view := model.PositionView{
		Position:      p,
		TotalCost:     p.Quantity.Mul(p.AverageCost),
		AssetName:     asset.Name,
		AssetSector:   asset.Sector,
		AssetIndustry: asset.Industry,
	}

	if price == nil {
		return view
	}

	value := p.Quantity.Mul(*price)
	gain := value.Sub(view.TotalCost)
	view.CurrentPrice = price
	view.CurrentValue = &value
	view.UnrealizedGainLoss = &gain

	if view.TotalCost.IsPositive() {
		pct := gain.Div(view.TotalCost).Mul(hundred)
		view.UnrealizedGainLossPercent = &pct
	}
	return view
}

// BuildSummary aggregates enriched positions with cash and dividend
// totals. Cash contributes to total value but never to gain/loss;
// unpriced positions fall back to cost, contributing zero gain.
func BuildSummary(
	p model.Portfolio,
	views []model.PositionView,
	cashBalance decimal.Decimal,
	dividendIncome decimal.Decimal,
	transactionCount int,
) model.PortfolioSummary {
	totalValue := decimal.Zero
	totalCost := decimal.Zero

	for _, v := range views {
		totalCost = totalCost.Add(v.TotalCost)
		totalValue = totalValue.Add(v.MarketValue())
	}

	gainLoss := totalValue.Sub(totalCost)
	gainLossPct := decimal.Zero
	if totalCost.IsPositive() {
		gainLossPct = gainLoss.Div(totalCost).Mul(hundred)
	}

	return model.PortfolioSummary{
		PortfolioID:          p.ID,
		PortfolioName:        p.Name,
		TotalValue:           totalValue.Add(cashBalance),
		TotalCost:            totalCost,
		TotalGainLoss:        gainLoss,
		TotalGainLossPercent: gainLossPct,
		CashBalance:          cashBalance,
		PositionCount:        len(views),
		TransactionCount:     transactionCount,
		DividendIncome:       dividendIncome,
		LastUpdated:          time.Now().UTC(),
	}
}

// Allocate groups positions by the asset attribute named by dimension.
// Positions without the attribute land in "Unknown". Buckets are ordered
// by value descending, category ascending on ties, and their percentages
// sum to 100 whenever the total value is positive.
func Allocate(views []model.PositionView, dimension string) []model.AllocationBucket {
	type agg struct {
		value decimal.Decimal
		count int
	}

	groups := make(map[string]*agg)
	total := decimal.Zero

	for _, v := range views {
		category := v.AssetSector
		if dimension == DimensionIndustry {
			category = v.AssetIndustry
		}
		if category == "" {
			category = "Unknown"
		}

		g, ok := groups[category]
		if !ok {
			g = &agg{}
			groups[category] = g
		}
		value := v.MarketValue()
		g.value = g.value.Add(value)
		g.count++
		total = total.Add(value)
	}

	buckets := make([]model.AllocationBucket, 0, len(groups))
	for category, g := range groups {
		pct := decimal.Zero
		if total.IsPositive() {
			pct = g.value.Div(total).Mul(hundred)
		}
		buckets = append(buckets, model.AllocationBucket{
			Category:      category,
			TotalValue:    g.value,
			Percentage:    pct,
			PositionCount: g.count,
		})
	}

	sort.Slice(buckets, func(i, j int) bool {
		if !buckets[i].TotalValue.Equal(buckets[j].TotalValue) {
			return buckets[i].TotalValue.GreaterThan(buckets[j].TotalValue)
		}
		return buckets[i].Category < buckets[j].Category
	})

	return buckets
}

// ComprehensiveAllocation is the independent union of the sector and
// industry groupings over the same position set.
type ComprehensiveAllocation struct {
	BySector   []model.AllocationBucket `json:"by_sector"`
	ByIndustry []model.AllocationBucket `json:"by_industry"`
}

// AllocateAll computes both allocation dimensions.
func AllocateAll(views []model.PositionView) ComprehensiveAllocation {
	return ComprehensiveAllocation{
		BySector:   Allocate(views, DimensionSector),
		ByIndustry: Allocate(views, DimensionIndustry),
	}
}
