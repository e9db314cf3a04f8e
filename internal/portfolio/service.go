// Package portfolio provides the HTTP handlers and business logic for
// portfolio management: the transaction ledger, derived position
// snapshots, aggregation reports, assets, cash, and dividends.
//
// All monetary values use shopspring/decimal — never float64 for money.
package portfolio

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Tanaka97/portman/internal/costbasis"
	"github.com/Tanaka97/portman/internal/metrics"
	"github.com/Tanaka97/portman/internal/model"
	"github.com/Tanaka97/portman/internal/report"
	"github.com/Tanaka97/portman/internal/store"
)

// Service handles portfolio operations. Ledger mutations are serialized
// per portfolio so each recomputation folds a consistent ledger
// (single-instance; for horizontal scaling, replace with distributed
// locking or database-level advisory locks).
type Service struct {
	store store.Store
	locks *portfolioLocks
	wsHub *WSHub // optional WebSocket hub for real-time broadcasts
}

// NewService creates a new portfolio service.
// Pass nil for hub if WebSocket broadcasting is not needed.
func NewService(st store.Store, hub *WSHub) *Service {
	return &Service{
		store: st,
		locks: newPortfolioLocks(),
		wsHub: hub,
	}
}

// --- Identity ---

type contextKey string

const userIDKey contextKey = "userID"

// RequireUser extracts the caller identity from the X-User-ID header.
// Requests without one are rejected; there is no implicit default user.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := strings.TrimSpace(r.Header.Get("X-User-ID"))
		if userID == "" {
			writeError(w, "X-User-ID header is required", http.StatusUnauthorized)
			return
		}
		ctx := context.WithValue(r.Context(), userIDKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func userID(r *http.Request) string {
	id, _ := r.Context().Value(userIDKey).(string)
	return id
}

// --- Request types ---

// PortfolioRequest is the JSON body for portfolio create/update.
type PortfolioRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Currency    string `json:"currency"`
}

// --- Portfolio handlers ---

// CreatePortfolio handles POST /api/v1/portfolios
func (s *Service) CreatePortfolio(w http.ResponseWriter, r *http.Request) {
	var req PortfolioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, "name is required", http.StatusBadRequest)
		return
	}
	if req.Currency == "" {
		req.Currency = "USD"
	}

	now := time.Now().UTC()
	p := &model.Portfolio{
		ID:          uuid.New().String(),
		UserID:      userID(r),
		Name:        req.Name,
		Description: req.Description,
		Currency:    req.Currency,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.store.CreatePortfolio(r.Context(), p); err != nil {
		if errors.Is(err, store.ErrDuplicateName) {
			writeError(w, "a portfolio with this name already exists", http.StatusConflict)
			return
		}
		writeError(w, "failed to create portfolio", http.StatusInternalServerError)
		return
	}

	slog.Info("portfolio created", "id", p.ID, "user", p.UserID, "name", p.Name)
	respondJSON(w, http.StatusCreated, p)
}

// ListPortfolios handles GET /api/v1/portfolios
func (s *Service) ListPortfolios(w http.ResponseWriter, r *http.Request) {
	portfolios, err := s.store.ListPortfolios(r.Context(), userID(r))
	if err != nil {
		writeError(w, "failed to list portfolios", http.StatusInternalServerError)
		return
	}
	if portfolios == nil {
		portfolios = []model.Portfolio{}
	}
	respondJSON(w, http.StatusOK, portfolios)
}

// GetPortfolio handles GET /api/v1/portfolios/{portfolioID}
func (s *Service) GetPortfolio(w http.ResponseWriter, r *http.Request) {
	p, err := s.store.GetPortfolio(r.Context(), userID(r), chi.URLParam(r, "portfolioID"))
	if err != nil {
		writeError(w, "portfolio not found", http.StatusNotFound)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

// UpdatePortfolio handles PUT /api/v1/portfolios/{portfolioID}
func (s *Service) UpdatePortfolio(w http.ResponseWriter, r *http.Request) {
	p, err := s.store.GetPortfolio(r.Context(), userID(r), chi.URLParam(r, "portfolioID"))
	if err != nil {
		writeError(w, "portfolio not found", http.StatusNotFound)
		return
	}

	var req PortfolioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if name := strings.TrimSpace(req.Name); name != "" {
		p.Name = name
	}
	if req.Description != "" {
		p.Description = req.Description
	}
	if req.Currency != "" {
		p.Currency = req.Currency
	}
	p.UpdatedAt = time.Now().UTC()

	if err := s.store.UpdatePortfolio(r.Context(), p); err != nil {
		if errors.Is(err, store.ErrDuplicateName) {
			writeError(w, "a portfolio with this name already exists", http.StatusConflict)
			return
		}
		writeError(w, "failed to update portfolio", http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

// DeletePortfolio handles DELETE /api/v1/portfolios/{portfolioID}
// Deletes the portfolio and everything under it: transactions, positions,
// cash movements, and dividends.
func (s *Service) DeletePortfolio(w http.ResponseWriter, r *http.Request) {
	portfolioID := chi.URLParam(r, "portfolioID")

	unlock := s.locks.Lock(portfolioID)
	defer unlock.Unlock()

	if err := s.store.DeletePortfolio(r.Context(), userID(r), portfolioID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, "portfolio not found", http.StatusNotFound)
			return
		}
		writeError(w, "failed to delete portfolio", http.StatusInternalServerError)
		return
	}

	slog.Info("portfolio deleted", "id", portfolioID, "user", userID(r))
	respondJSON(w, http.StatusOK, map[string]string{"message": "portfolio deleted"})
}

// --- Reports ---

// GetSummary handles GET /api/v1/portfolios/{portfolioID}/summary
func (s *Service) GetSummary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, err := s.store.GetPortfolio(ctx, userID(r), chi.URLParam(r, "portfolioID"))
	if err != nil {
		writeError(w, "portfolio not found", http.StatusNotFound)
		return
	}

	views, err := s.enrichedPositions(ctx, p.ID)
	if err != nil {
		writeError(w, "failed to load positions", http.StatusInternalServerError)
		return
	}

	cashBalance, err := s.store.GetCashBalance(ctx, p.ID)
	if err != nil {
		writeError(w, "failed to load cash balance", http.StatusInternalServerError)
		return
	}
	dividendIncome, err := s.store.TotalDividendIncome(ctx, p.ID, nil, nil)
	if err != nil {
		writeError(w, "failed to load dividend income", http.StatusInternalServerError)
		return
	}
	transactionCount, err := s.store.CountTransactions(ctx, p.ID)
	if err != nil {
		writeError(w, "failed to count transactions", http.StatusInternalServerError)
		return
	}

	summary := report.BuildSummary(*p, views, cashBalance, dividendIncome, transactionCount)
	respondJSON(w, http.StatusOK, summary)
}

// GetAllocation handles GET /api/v1/portfolios/{portfolioID}/allocation
// Returns both sector and industry breakdowns.
func (s *Service) GetAllocation(w http.ResponseWriter, r *http.Request) {
	views, ok := s.allocationViews(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, report.AllocateAll(views))
}

// GetSectorAllocation handles GET /api/v1/portfolios/{portfolioID}/allocation/sector
func (s *Service) GetSectorAllocation(w http.ResponseWriter, r *http.Request) {
	views, ok := s.allocationViews(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, report.Allocate(views, report.DimensionSector))
}

// GetIndustryAllocation handles GET /api/v1/portfolios/{portfolioID}/allocation/industry
func (s *Service) GetIndustryAllocation(w http.ResponseWriter, r *http.Request) {
	views, ok := s.allocationViews(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, report.Allocate(views, report.DimensionIndustry))
}

func (s *Service) allocationViews(w http.ResponseWriter, r *http.Request) ([]model.PositionView, bool) {
	ctx := r.Context()
	p, err := s.store.GetPortfolio(ctx, userID(r), chi.URLParam(r, "portfolioID"))
	if err != nil {
		writeError(w, "portfolio not found", http.StatusNotFound)
		return nil, false
	}
	views, err := s.enrichedPositions(ctx, p.ID)
	if err != nil {
		writeError(w, "failed to load positions", http.StatusInternalServerError)
		return nil, false
	}
	return views, true
}

// enrichedPositions loads the position snapshot and joins each row with
// its asset metadata and latest supplied price.
func (s *Service) enrichedPositions(ctx context.Context, portfolioID string) ([]model.PositionView, error) {
	positions, err := s.store.ListPositions(ctx, portfolioID, "")
	if err != nil {
		return nil, err
	}

	views := make([]model.PositionView, 0, len(positions))
	for _, p := range positions {
		var asset model.Asset
		var price *decimal.Decimal
		if a, err := s.store.GetAsset(ctx, p.Symbol); err == nil {
			asset = *a
			price = a.CurrentPrice
		}
		views = append(views, report.EnrichPosition(p, asset, price))
	}
	return views, nil
}

// --- Recomputation ---

// recomputePositions rebuilds the position snapshot for one portfolio
// from its full trade ledger. The caller must hold the portfolio lock.
func (s *Service) recomputePositions(ctx context.Context, portfolioID string) error {
	start := time.Now()

	events, err := s.store.ListTradeEvents(ctx, portfolioID)
	if err != nil {
		metrics.RecomputeRuns.WithLabelValues("error").Inc()
		return err
	}

	states := costbasis.Recompute(events)
	positions := costbasis.Materialize(portfolioID, states)

	now := time.Now().UTC()
	for i := range positions {
		positions[i].ID = uuid.New().String()
		positions[i].CreatedAt = now
		positions[i].UpdatedAt = now
		// Register the symbol so reports can join asset metadata.
		if _, err := s.store.GetOrCreateAsset(ctx, positions[i].Symbol); err != nil {
			slog.Warn("asset registration failed during recompute",
				"symbol", positions[i].Symbol, "err", err)
		}
	}

	if err := s.store.ReplacePositions(ctx, portfolioID, positions); err != nil {
		metrics.RecomputeRuns.WithLabelValues("error").Inc()
		return err
	}

	metrics.RecomputeRuns.WithLabelValues("ok").Inc()
	metrics.RecomputeLatency.Observe(time.Since(start).Seconds())

	slog.Info("positions recomputed",
		"portfolio", portfolioID,
		"events", len(events),
		"positions", len(positions),
		"took", time.Since(start).String(),
	)

	if s.wsHub != nil {
		s.wsHub.Broadcast(WSMessage{
			Type:          "positions_updated",
			PortfolioID:   portfolioID,
			PositionCount: len(positions),
		})
	}
	return nil
}

// --- JSON helpers ---

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
