package portfolio

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Tanaka97/portman/internal/model"
	"github.com/Tanaka97/portman/internal/store"
)

// CashMovementRequest is the JSON body for recording a deposit or
// withdrawal.
type CashMovementRequest struct {
	PortfolioID  string          `json:"portfolio_id"`
	Amount       decimal.Decimal `json:"amount"`
	Type         string          `json:"type"`
	MovementDate *time.Time      `json:"movement_date"`
	Notes        string          `json:"notes"`
}

// CreateCashMovement handles POST /api/v1/cash
func (s *Service) CreateCashMovement(w http.ResponseWriter, r *http.Request) {
	var req CashMovementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.PortfolioID == "" {
		writeError(w, "portfolio_id is required", http.StatusBadRequest)
		return
	}
	if req.Type != model.MovementDeposit && req.Type != model.MovementWithdrawal {
		writeError(w, "type must be deposit or withdrawal", http.StatusBadRequest)
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

	now := time.Now().UTC()
	date := now
	if req.MovementDate != nil {
		date = req.MovementDate.UTC()
	}
	m := &model.CashMovement{
		ID:           uuid.New().String(),
		PortfolioID:  req.PortfolioID,
		Amount:       req.Amount,
		Type:         req.Type,
		MovementDate: date,
		Notes:        req.Notes,
		CreatedAt:    now,
	}

	if err := s.store.InsertCashMovement(ctx, m); err != nil {
		writeError(w, "failed to record cash movement", http.StatusInternalServerError)
		return
	}

	slog.Info("cash movement recorded",
		"id", m.ID, "portfolio", m.PortfolioID, "type", m.Type, "amount", m.Amount.String())
	respondJSON(w, http.StatusCreated, m)
}

// ListCashMovements handles GET /api/v1/cash?portfolio_id=
func (s *Service) ListCashMovements(w http.ResponseWriter, r *http.Request) {
	portfolioID := r.URL.Query().Get("portfolio_id")
	if portfolioID == "" {
		writeError(w, "portfolio_id is required", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	if _, err := s.store.GetPortfolio(ctx, userID(r), portfolioID); err != nil {
		writeError(w, "portfolio not found", http.StatusNotFound)
		return
	}

	movements, err := s.store.ListCashMovements(ctx, portfolioID)
	if err != nil {
		writeError(w, "failed to list cash movements", http.StatusInternalServerError)
		return
	}
	if movements == nil {
		movements = []model.CashMovement{}
	}
	respondJSON(w, http.StatusOK, movements)
}

// GetCashMovement handles GET /api/v1/cash/{movementID}
func (s *Service) GetCashMovement(w http.ResponseWriter, r *http.Request) {
	m, ok := s.ownedCashMovement(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, m)
}

// DeleteCashMovement handles DELETE /api/v1/cash/{movementID}
func (s *Service) DeleteCashMovement(w http.ResponseWriter, r *http.Request) {
	m, ok := s.ownedCashMovement(w, r)
	if !ok {
		return
	}

	if err := s.store.DeleteCashMovement(r.Context(), m.ID); err != nil {
		writeError(w, "failed to delete cash movement", http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "cash movement deleted"})
}

// GetCashBalance handles GET /api/v1/cash/balance/{portfolioID}
// Balance is the sum of deposits minus withdrawals.
func (s *Service) GetCashBalance(w http.ResponseWriter, r *http.Request) {
	portfolioID := chi.URLParam(r, "portfolioID")

	ctx := r.Context()
	if _, err := s.store.GetPortfolio(ctx, userID(r), portfolioID); err != nil {
		writeError(w, "portfolio not found", http.StatusNotFound)
		return
	}

	balance, err := s.store.GetCashBalance(ctx, portfolioID)
	if err != nil {
		writeError(w, "failed to compute cash balance", http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"portfolio_id": portfolioID,
		"balance":      balance,
	})
}

func (s *Service) ownedCashMovement(w http.ResponseWriter, r *http.Request) (*model.CashMovement, bool) {
	m, err := s.store.GetCashMovement(r.Context(), chi.URLParam(r, "movementID"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, "cash movement not found", http.StatusNotFound)
		} else {
			writeError(w, "failed to load cash movement", http.StatusInternalServerError)
		}
		return nil, false
	}
	if _, err := s.store.GetPortfolio(r.Context(), userID(r), m.PortfolioID); err != nil {
		writeError(w, "cash movement not found", http.StatusNotFound)
		return nil, false
	}
	return m, true
}
