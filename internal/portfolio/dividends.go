package portfolio

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Tanaka97/portman/internal/model"
	"github.com/Tanaka97/portman/internal/store"
)

// DividendRequest is the JSON body for recording a dividend payment.
type DividendRequest struct {
	PortfolioID  string          `json:"portfolio_id"`
	Symbol       string          `json:"symbol"`
	Amount       decimal.Decimal `json:"amount"`
	DividendDate *time.Time      `json:"dividend_date"`
	DividendType string          `json:"dividend_type"`
}

// CreateDividend handles POST /api/v1/dividends
// Dividend income is tracked separately from the trade ledger and never
// affects cost basis.
func (s *Service) CreateDividend(w http.ResponseWriter, r *http.Request) {
	var req DividendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	req.Symbol = strings.ToUpper(strings.TrimSpace(req.Symbol))
	if req.PortfolioID == "" {
		writeError(w, "portfolio_id is required", http.StatusBadRequest)
		return
	}
	if req.Symbol == "" {
		writeError(w, "symbol is required", http.StatusBadRequest)
		return
	}
	if !req.Amount.IsPositive() {
		writeError(w, "amount must be positive", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	if _, err := s.store.GetPortfolio(ctx, userID(r), req.PortfolioID); err != nil {
		writeError(w, "portfolio not found", http.StatusNotFound)
		return
	}
	if _, err := s.store.GetOrCreateAsset(ctx, req.Symbol); err != nil {
		writeError(w, "failed to register asset", http.StatusInternalServerError)
		return
	}

	now := time.Now().UTC()
	date := now
	if req.DividendDate != nil {
		date = req.DividendDate.UTC()
	}
	dividendType := req.DividendType
	if dividendType == "" {
		dividendType = "cash"
	}
	dv := &model.Dividend{
		ID:           uuid.New().String(),
		PortfolioID:  req.PortfolioID,
		Symbol:       req.Symbol,
		Amount:       req.Amount,
		DividendDate: date,
		DividendType: dividendType,
		CreatedAt:    now,
	}

	if err := s.store.InsertDividend(ctx, dv); err != nil {
		writeError(w, "failed to record dividend", http.StatusInternalServerError)
		return
	}

	slog.Info("dividend recorded",
		"id", dv.ID, "portfolio", dv.PortfolioID, "symbol", dv.Symbol, "amount", dv.Amount.String())
	respondJSON(w, http.StatusCreated, dv)
}

// ListDividends handles GET /api/v1/dividends
// Filters: portfolio_id (required), symbol, start_date, end_date.
func (s *Service) ListDividends(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	portfolioID := q.Get("portfolio_id")
	if portfolioID == "" {
		writeError(w, "portfolio_id is required", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	if _, err := s.store.GetPortfolio(ctx, userID(r), portfolioID); err != nil {
		writeError(w, "portfolio not found", http.StatusNotFound)
		return
	}

	from, err := parseDateParam(q.Get("start_date"))
	if err != nil {
		writeError(w, "invalid start_date, expected YYYY-MM-DD", http.StatusBadRequest)
		return
	}
	to, err := parseDateParam(q.Get("end_date"))
	if err != nil {
		writeError(w, "invalid end_date, expected YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	dividends, err := s.store.ListDividends(ctx, store.DividendFilter{
		PortfolioID: portfolioID,
		Symbol:      strings.ToUpper(strings.TrimSpace(q.Get("symbol"))),
		From:        from,
		To:          to,
	})
	if err != nil {
		writeError(w, "failed to list dividends", http.StatusInternalServerError)
		return
	}
	if dividends == nil {
		dividends = []model.Dividend{}
	}
	respondJSON(w, http.StatusOK, dividends)
}

// GetDividend handles GET /api/v1/dividends/{dividendID}
func (s *Service) GetDividend(w http.ResponseWriter, r *http.Request) {
	dv, ok := s.ownedDividend(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, dv)
}

// DeleteDividend handles DELETE /api/v1/dividends/{dividendID}
func (s *Service) DeleteDividend(w http.ResponseWriter, r *http.Request) {
	dv, ok := s.ownedDividend(w, r)
	if !ok {
		return
	}

	if err := s.store.DeleteDividend(r.Context(), dv.ID); err != nil {
		writeError(w, "failed to delete dividend", http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "dividend deleted"})
}

// GetDividendTotal handles GET /api/v1/dividends/total/{portfolioID}
// Optional start_date / end_date bound the income window.
func (s *Service) GetDividendTotal(w http.ResponseWriter, r *http.Request) {
	portfolioID := chi.URLParam(r, "portfolioID")

	ctx := r.Context()
	if _, err := s.store.GetPortfolio(ctx, userID(r), portfolioID); err != nil {
		writeError(w, "portfolio not found", http.StatusNotFound)
		return
	}

	q := r.URL.Query()
	from, err := parseDateParam(q.Get("start_date"))
	if err != nil {
		writeError(w, "invalid start_date, expected YYYY-MM-DD", http.StatusBadRequest)
		return
	}
	to, err := parseDateParam(q.Get("end_date"))
	if err != nil {
		writeError(w, "invalid end_date, expected YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	total, err := s.store.TotalDividendIncome(ctx, portfolioID, from, to)
	if err != nil {
		writeError(w, "failed to compute dividend income", http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"portfolio_id": portfolioID,
		"total_income": total,
	})
}

// SymbolDividends is one symbol's aggregate dividend income.
type SymbolDividends struct {
	Symbol string          `json:"symbol"`
	Total  decimal.Decimal `json:"total"`
	Count  int             `json:"count"`
}

// GetDividendsBySymbol handles GET /api/v1/dividends/by-symbol/{portfolioID}
// Groups a portfolio's dividend history by symbol, ordered by total
// income descending.
func (s *Service) GetDividendsBySymbol(w http.ResponseWriter, r *http.Request) {
	portfolioID := chi.URLParam(r, "portfolioID")

	ctx := r.Context()
	if _, err := s.store.GetPortfolio(ctx, userID(r), portfolioID); err != nil {
		writeError(w, "portfolio not found", http.StatusNotFound)
		return
	}

	dividends, err := s.store.ListDividends(ctx, store.DividendFilter{PortfolioID: portfolioID})
	if err != nil {
		writeError(w, "failed to list dividends", http.StatusInternalServerError)
		return
	}

	totals := make(map[string]*SymbolDividends)
	for _, dv := range dividends {
		agg, ok := totals[dv.Symbol]
		if !ok {
			agg = &SymbolDividends{Symbol: dv.Symbol, Total: decimal.Zero}
			totals[dv.Symbol] = agg
		}
		agg.Total = agg.Total.Add(dv.Amount)
		agg.Count++
	}

	result := make([]SymbolDividends, 0, len(totals))
	for _, agg := range totals {
		result = append(result, *agg)
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].Total.Equal(result[j].Total) {
			return result[i].Total.GreaterThan(result[j].Total)
		}
		return result[i].Symbol < result[j].Symbol
	})
	respondJSON(w, http.StatusOK, result)
}

func (s *Service) ownedDividend(w http.ResponseWriter, r *http.Request) (*model.Dividend, bool) {
	dv, err := s.store.GetDividend(r.Context(), chi.URLParam(r, "dividendID"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, "dividend not found", http.StatusNotFound)
		} else {
			writeError(w, "failed to load dividend", http.StatusInternalServerError)
		}
		return nil, false
	}
	if _, err := s.store.GetPortfolio(r.Context(), userID(r), dv.PortfolioID); err != nil {
		writeError(w, "dividend not found", http.StatusNotFound)
		return nil, false
	}
	return dv, true
}

// parseDateParam parses an optional YYYY-MM-DD query parameter.
func parseDateParam(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
