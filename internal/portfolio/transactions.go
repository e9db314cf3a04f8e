package portfolio

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Tanaka97/portman/internal/metrics"
	"github.com/Tanaka97/portman/internal/model"
	"github.com/Tanaka97/portman/internal/store"
)

// TransactionRequest is the JSON body for transaction create/update.
type TransactionRequest struct {
	PortfolioID string          `json:"portfolio_id"`
	Symbol      string          `json:"symbol"`
	Type        string          `json:"transaction_type"`
	Quantity    decimal.Decimal `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
	Fees        decimal.Decimal `json:"fees"`
	Timestamp   *time.Time      `json:"transaction_date"`
	Notes       string          `json:"notes"`
}

// TransactionResponse wraps a transaction with the snapshot refresh
// outcome. A mutation is never rolled back when recomputation fails;
// the snapshot is simply reported stale until the next mutation.
type TransactionResponse struct {
	model.Transaction
	PositionRefresh string `json:"position_refresh,omitempty"`
}

func (req *TransactionRequest) validate() string {
	req.Symbol = strings.ToUpper(strings.TrimSpace(req.Symbol))
	if req.PortfolioID == "" {
		return "portfolio_id is required"
	}
	if req.Symbol == "" {
		return "symbol is required"
	}
	if !model.ValidTransactionType(req.Type) {
		return "invalid transaction_type: " + req.Type
	}
	if !req.Quantity.IsPositive() {
		return "quantity must be positive"
	}
	if req.Price.IsNegative() {
		return "price must not be negative"
	}
	if req.Fees.IsNegative() {
		return "fees must not be negative"
	}
	return ""
}

// CreateTransaction handles POST /api/v1/transactions
// Records the ledger event, then rebuilds the portfolio's position
// snapshot from the full ledger.
func (s *Service) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req TransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if msg := req.validate(); msg != "" {
		writeError(w, msg, http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	if _, err := s.store.GetPortfolio(ctx, userID(r), req.PortfolioID); err != nil {
		writeError(w, "portfolio not found", http.StatusNotFound)
		return
	}

	unlock := s.locks.Lock(req.PortfolioID)
	defer unlock.Unlock()

	if _, err := s.store.GetOrCreateAsset(ctx, req.Symbol); err != nil {
		writeError(w, "failed to register asset", http.StatusInternalServerError)
		return
	}

	now := time.Now().UTC()
	ts := now
	if req.Timestamp != nil {
		ts = req.Timestamp.UTC()
	}
	t := &model.Transaction{
		ID:          uuid.New().String(),
		PortfolioID: req.PortfolioID,
		Symbol:      req.Symbol,
		Type:        req.Type,
		Quantity:    req.Quantity,
		Price:       req.Price,
		Fees:        req.Fees,
		Timestamp:   ts,
		Notes:       req.Notes,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.store.InsertTransaction(ctx, t); err != nil {
		writeError(w, "failed to record transaction", http.StatusInternalServerError)
		return
	}
	metrics.TransactionsTotal.WithLabelValues(t.Type).Inc()

	slog.Info("transaction recorded",
		"id", t.ID,
		"portfolio", t.PortfolioID,
		"symbol", t.Symbol,
		"type", t.Type,
		"qty", t.Quantity.String(),
		"price", t.Price.String(),
	)

	resp := TransactionResponse{Transaction: *t}
	if err := s.recomputePositions(ctx, t.PortfolioID); err != nil {
		slog.Warn("position recompute failed, snapshot is stale",
			"portfolio", t.PortfolioID, "err", err)
		resp.PositionRefresh = "stale"
	}
	respondJSON(w, http.StatusCreated, resp)
}

// ListTransactions handles GET /api/v1/transactions
// Filters: portfolio_id (required), symbol, type, limit.
func (s *Service) ListTransactions(w http.ResponseWriter, r *http.Request) {
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

	limit := 0
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	transactions, err := s.store.ListTransactions(ctx, store.TransactionFilter{
		PortfolioID: portfolioID,
		Symbol:      strings.ToUpper(strings.TrimSpace(q.Get("symbol"))),
		Type:        q.Get("type"),
		Limit:       limit,
	})
	if err != nil {
		writeError(w, "failed to list transactions", http.StatusInternalServerError)
		return
	}
	if transactions == nil {
		transactions = []model.Transaction{}
	}
	respondJSON(w, http.StatusOK, transactions)
}

// GetTransaction handles GET /api/v1/transactions/{transactionID}
func (s *Service) GetTransaction(w http.ResponseWriter, r *http.Request) {
	t, ok := s.ownedTransaction(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, t)
}

// UpdateTransaction handles PUT /api/v1/transactions/{transactionID}
// Rewrites the ledger event in place, then rebuilds the snapshot.
func (s *Service) UpdateTransaction(w http.ResponseWriter, r *http.Request) {
	t, ok := s.ownedTransaction(w, r)
	if !ok {
		return
	}

	var req TransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	// Updates stay within the original portfolio.
	req.PortfolioID = t.PortfolioID
	if msg := req.validate(); msg != "" {
		writeError(w, msg, http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	unlock := s.locks.Lock(t.PortfolioID)
	defer unlock.Unlock()

	if _, err := s.store.GetOrCreateAsset(ctx, req.Symbol); err != nil {
		writeError(w, "failed to register asset", http.StatusInternalServerError)
		return
	}

	t.Symbol = req.Symbol
	t.Type = req.Type
	t.Quantity = req.Quantity
	t.Price = req.Price
	t.Fees = req.Fees
	if req.Timestamp != nil {
		t.Timestamp = req.Timestamp.UTC()
	}
	t.Notes = req.Notes
	t.UpdatedAt = time.Now().UTC()

	if err := s.store.UpdateTransaction(ctx, t); err != nil {
		writeError(w, "failed to update transaction", http.StatusInternalServerError)
		return
	}

	resp := TransactionResponse{Transaction: *t}
	if err := s.recomputePositions(ctx, t.PortfolioID); err != nil {
		slog.Warn("position recompute failed, snapshot is stale",
			"portfolio", t.PortfolioID, "err", err)
		resp.PositionRefresh = "stale"
	}
	respondJSON(w, http.StatusOK, resp)
}

// DeleteTransaction handles DELETE /api/v1/transactions/{transactionID}
// Removes the ledger event, then rebuilds the snapshot without it.
func (s *Service) DeleteTransaction(w http.ResponseWriter, r *http.Request) {
	t, ok := s.ownedTransaction(w, r)
	if !ok {
		return
	}

	ctx := r.Context()
	unlock := s.locks.Lock(t.PortfolioID)
	defer unlock.Unlock()

	if err := s.store.DeleteTransaction(ctx, t.ID); err != nil {
		writeError(w, "failed to delete transaction", http.StatusInternalServerError)
		return
	}

	slog.Info("transaction deleted", "id", t.ID, "portfolio", t.PortfolioID)

	resp := map[string]string{"message": "transaction deleted"}
	if err := s.recomputePositions(ctx, t.PortfolioID); err != nil {
		slog.Warn("position recompute failed, snapshot is stale",
			"portfolio", t.PortfolioID, "err", err)
		resp["position_refresh"] = "stale"
	}
	respondJSON(w, http.StatusOK, resp)
}

// ownedTransaction loads the transaction from the URL and verifies its
// portfolio belongs to the caller.
func (s *Service) ownedTransaction(w http.ResponseWriter, r *http.Request) (*model.Transaction, bool) {
	t, err := s.store.GetTransaction(r.Context(), chi.URLParam(r, "transactionID"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, "transaction not found", http.StatusNotFound)
		} else {
			writeError(w, "failed to load transaction", http.StatusInternalServerError)
		}
		return nil, false
	}
	if _, err := s.store.GetPortfolio(r.Context(), userID(r), t.PortfolioID); err != nil {
		writeError(w, "transaction not found", http.StatusNotFound)
		return nil, false
	}
	return t, true
}
