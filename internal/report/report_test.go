package report

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/Tanaka97/portman/internal/model"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func pos(symbol string, qty, avgCost float64) model.Position {
	return model.Position{
		ID:          "pos-" + symbol,
		PortfolioID: "pf1",
		Symbol:      symbol,
		Quantity:    d(qty),
		AverageCost: d(avgCost),
	}
}

func view(symbol string, qty, avgCost float64, price *decimal.Decimal, sector, industry string) model.PositionView {
	return EnrichPosition(pos(symbol, qty, avgCost), model.Asset{
		Symbol:   symbol,
		Sector:   sector,
		Industry: industry,
	}, price)
}

// --- Position enrichment ---

func TestEnrichPosition_WithPrice(t *testing.T) {
	price := d(180)
	v := view("AAPL", 10, 150, &price, "Technology", "Consumer Electronics")

	if !v.TotalCost.Equal(d(1500)) {
		t.Errorf("expected total cost 1500, got %s", v.TotalCost)
	}
	if v.CurrentValue == nil || !v.CurrentValue.Equal(d(1800)) {
		t.Errorf("expected current value 1800, got %v", v.CurrentValue)
	}
	if v.UnrealizedGainLoss == nil || !v.UnrealizedGainLoss.Equal(d(300)) {
		t.Errorf("expected gain 300, got %v", v.UnrealizedGainLoss)
	}
	if v.UnrealizedGainLossPercent == nil || !v.UnrealizedGainLossPercent.Equal(d(20)) {
		t.Errorf("expected gain 20%%, got %v", v.UnrealizedGainLossPercent)
	}
}

func TestEnrichPosition_WithoutPrice(t *testing.T) {
	v := view("AAPL", 10, 150, nil, "", "")

	if v.CurrentValue != nil || v.UnrealizedGainLoss != nil {
		t.Error("unpriced position must not carry derived market fields")
	}
	if !v.MarketValue().Equal(d(1500)) {
		t.Errorf("unpriced position falls back to cost, got %s", v.MarketValue())
	}
}

func TestEnrichPosition_ZeroCostNoPercent(t *testing.T) {
	price := d(10)
	v := view("FREE", 5, 0, &price, "", "")

	if v.UnrealizedGainLossPercent != nil {
		t.Errorf("zero cost basis must not yield a percentage, got %s", *v.UnrealizedGainLossPercent)
	}
}

// --- Summary ---

func TestBuildSummary_AccountingIdentity(t *testing.T) {
	p1 := d(180)
	p2 := d(250)
	views := []model.PositionView{
		view("AAPL", 10, 150, &p1, "Technology", ""),
		view("TSLA", 4, 200, &p2, "Automotive", ""),
	}

	summary := BuildSummary(model.Portfolio{ID: "pf1", Name: "Core"}, views, d(500), d(42.5), 7)

	// total_value - total_gain_loss - cash_balance == total_cost
	lhs := summary.TotalValue.Sub(summary.TotalGainLoss).Sub(summary.CashBalance)
	if !lhs.Equal(summary.TotalCost) {
		t.Errorf("accounting identity violated: %s != %s", lhs, summary.TotalCost)
	}

	// 10*180 + 4*250 + 500 cash = 3300.
	if !summary.TotalValue.Equal(d(3300)) {
		t.Errorf("expected total value 3300, got %s", summary.TotalValue)
	}
	if !summary.TotalCost.Equal(d(2300)) {
		t.Errorf("expected total cost 2300, got %s", summary.TotalCost)
	}
	if summary.PositionCount != 2 || summary.TransactionCount != 7 {
		t.Errorf("unexpected counts: %d positions, %d transactions",
			summary.PositionCount, summary.TransactionCount)
	}
	if !summary.DividendIncome.Equal(d(42.5)) {
		t.Errorf("expected dividend income 42.5, got %s", summary.DividendIncome)
	}
}

func TestBuildSummary_UnpricedFallsBackToCost(t *testing.T) {
	views := []model.PositionView{
		view("AAPL", 10, 150, nil, "", ""),
	}

	summary := BuildSummary(model.Portfolio{ID: "pf1"}, views, decimal.Zero, decimal.Zero, 1)

	if !summary.TotalValue.Equal(d(1500)) {
		t.Errorf("expected total value 1500, got %s", summary.TotalValue)
	}
	if !summary.TotalGainLoss.IsZero() {
		t.Errorf("cost fallback must contribute zero gain, got %s", summary.TotalGainLoss)
	}
}

func TestBuildSummary_EmptyPortfolio(t *testing.T) {
	summary := BuildSummary(model.Portfolio{ID: "pf1"}, nil, d(1000), decimal.Zero, 0)

	if !summary.TotalValue.Equal(d(1000)) {
		t.Errorf("cash-only portfolio value should be 1000, got %s", summary.TotalValue)
	}
	if !summary.TotalGainLossPercent.IsZero() {
		t.Errorf("zero cost must yield 0%% gain, got %s", summary.TotalGainLossPercent)
	}
}

// --- Allocation ---

func TestAllocate_PercentagesSumToHundred(t *testing.T) {
	p1, p2, p3 := d(100), d(50), d(20)
	views := []model.PositionView{
		view("AAPL", 10, 90, &p1, "Technology", "Hardware"),
		view("MSFT", 20, 40, &p2, "Technology", "Software"),
		view("JNJ", 15, 18, &p3, "Healthcare", "Pharma"),
	}

	buckets := Allocate(views, DimensionSector)

	sum := decimal.Zero
	for _, b := range buckets {
		sum = sum.Add(b.Percentage)
	}
	if sum.Sub(d(100)).Abs().GreaterThan(d(0.0000001)) {
		t.Errorf("percentages must sum to 100, got %s", sum)
	}
}

func TestAllocate_GroupsAndOrders(t *testing.T) {
	p1, p2, p3 := d(100), d(50), d(20)
	views := []model.PositionView{
		view("AAPL", 10, 90, &p1, "Technology", "Hardware"),  // 1000
		view("MSFT", 20, 40, &p2, "Technology", "Software"),  // 1000
		view("JNJ", 15, 18, &p3, "Healthcare", "Pharma"),     // 300
	}

	buckets := Allocate(views, DimensionSector)
	if len(buckets) != 2 {
		t.Fatalf("expected 2 sector buckets, got %d", len(buckets))
	}
	if buckets[0].Category != "Technology" {
		t.Errorf("expected Technology first, got %s", buckets[0].Category)
	}
	if !buckets[0].TotalValue.Equal(d(2000)) {
		t.Errorf("expected Technology value 2000, got %s", buckets[0].TotalValue)
	}
	if buckets[0].PositionCount != 2 || buckets[1].PositionCount != 1 {
		t.Errorf("unexpected counts: %d, %d", buckets[0].PositionCount, buckets[1].PositionCount)
	}
}

func TestAllocate_TiesOrderedByCategory(t *testing.T) {
	p := d(10)
	views := []model.PositionView{
		view("BBB", 10, 10, &p, "Utilities", ""),
		view("AAA", 10, 10, &p, "Energy", ""),
	}

	buckets := Allocate(views, DimensionSector)
	if buckets[0].Category != "Energy" || buckets[1].Category != "Utilities" {
		t.Errorf("equal values must order by category: got [%s %s]",
			buckets[0].Category, buckets[1].Category)
	}
}

func TestAllocate_MissingAttributeIsUnknown(t *testing.T) {
	views := []model.PositionView{
		view("MYST", 10, 100, nil, "", ""),
	}

	buckets := Allocate(views, DimensionIndustry)
	if len(buckets) != 1 || buckets[0].Category != "Unknown" {
		t.Fatalf("expected single Unknown bucket, got %+v", buckets)
	}
	if !buckets[0].Percentage.Equal(d(100)) {
		t.Errorf("single bucket owns 100%%, got %s", buckets[0].Percentage)
	}
}

func TestAllocate_EmptyPositions(t *testing.T) {
	buckets := Allocate(nil, DimensionSector)
	if len(buckets) != 0 {
		t.Errorf("expected no buckets, got %d", len(buckets))
	}
}

func TestAllocateAll_IndependentDimensions(t *testing.T) {
	p1, p2 := d(100), d(50)
	views := []model.PositionView{
		view("AAPL", 10, 90, &p1, "Technology", "Hardware"),
		view("MSFT", 20, 40, &p2, "Technology", "Software"),
	}

	all := AllocateAll(views)
	if len(all.BySector) != 1 {
		t.Errorf("expected 1 sector bucket, got %d", len(all.BySector))
	}
	if len(all.ByIndustry) != 2 {
		t.Errorf("expected 2 industry buckets, got %d", len(all.ByIndustry))
	}
}
