package portfolio

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/Tanaka97/portman/internal/model"
	"github.com/Tanaka97/portman/internal/report"
	"github.com/Tanaka97/portman/internal/store"
)

// ListPositions handles GET /api/v1/positions
// Returns the derived snapshot for one portfolio, enriched with asset
// metadata and valuation when a price is known. Positions are never
// written here; they only change through ledger mutations.
func (s *Service) ListPositions(w http.ResponseWriter, r *http.Request) {
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

	symbol := strings.ToUpper(strings.TrimSpace(q.Get("symbol")))
	positions, err := s.store.ListPositions(ctx, portfolioID, symbol)
	if err != nil {
		writeError(w, "failed to list positions", http.StatusInternalServerError)
		return
	}

	views := make([]model.PositionView, 0, len(positions))
	for _, p := range positions {
		views = append(views, s.enrichOne(r, p))
	}
	respondJSON(w, http.StatusOK, views)
}

// GetPosition handles GET /api/v1/positions/{positionID}
func (s *Service) GetPosition(w http.ResponseWriter, r *http.Request) {
	p, err := s.store.GetPosition(r.Context(), chi.URLParam(r, "positionID"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, "position not found", http.StatusNotFound)
		} else {
			writeError(w, "failed to load position", http.StatusInternalServerError)
		}
		return
	}
	if _, err := s.store.GetPortfolio(r.Context(), userID(r), p.PortfolioID); err != nil {
		writeError(w, "position not found", http.StatusNotFound)
		return
	}
	respondJSON(w, http.StatusOK, s.enrichOne(r, *p))
}

func (s *Service) enrichOne(r *http.Request, p model.Position) model.PositionView {
	var asset model.Asset
	var price *decimal.Decimal
	if a, err := s.store.GetAsset(r.Context(), p.Symbol); err == nil {
		asset = *a
		price = a.CurrentPrice
	}
	return report.EnrichPosition(p, asset, price)
}
