package portfolio

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/Tanaka97/portman/internal/model"
	"github.com/Tanaka97/portman/internal/store"
)

// AssetRequest is the JSON body for asset create/update.
type AssetRequest struct {
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Sector   string `json:"sector"`
	Industry string `json:"industry"`
	Country  string `json:"country"`
	Currency string `json:"currency"`
	Exchange string `json:"exchange"`
}

// PriceRequest is the JSON body for PUT /assets/{symbol}/price. Prices
// come from an external feed; the service never computes them.
type PriceRequest struct {
	Price decimal.Decimal `json:"price"`
}

// CreateAsset handles POST /api/v1/assets
// Creates the asset if needed and fills in whatever metadata was sent.
func (s *Service) CreateAsset(w http.ResponseWriter, r *http.Request) {
	var req AssetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	req.Symbol = strings.ToUpper(strings.TrimSpace(req.Symbol))
	if req.Symbol == "" {
		writeError(w, "symbol is required", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	a, err := s.store.GetOrCreateAsset(ctx, req.Symbol)
	if err != nil {
		writeError(w, "failed to create asset", http.StatusInternalServerError)
		return
	}

	applyAssetMetadata(a, req)
	a.UpdatedAt = time.Now().UTC()
	if err := s.store.UpdateAsset(ctx, a); err != nil {
		writeError(w, "failed to save asset metadata", http.StatusInternalServerError)
		return
	}

	slog.Info("asset saved", "symbol", a.Symbol, "sector", a.Sector)
	respondJSON(w, http.StatusCreated, a)
}

// ListAssets handles GET /api/v1/assets
func (s *Service) ListAssets(w http.ResponseWriter, r *http.Request) {
	assets, err := s.store.ListAssets(r.Context())
	if err != nil {
		writeError(w, "failed to list assets", http.StatusInternalServerError)
		return
	}
	if assets == nil {
		assets = []model.Asset{}
	}
	respondJSON(w, http.StatusOK, assets)
}

// SearchAssets handles GET /api/v1/assets/search?q=
func (s *Service) SearchAssets(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		writeError(w, "q is required", http.StatusBadRequest)
		return
	}

	assets, err := s.store.SearchAssets(r.Context(), query)
	if err != nil {
		writeError(w, "failed to search assets", http.StatusInternalServerError)
		return
	}
	if assets == nil {
		assets = []model.Asset{}
	}
	respondJSON(w, http.StatusOK, assets)
}

// GetAsset handles GET /api/v1/assets/{symbol}
func (s *Service) GetAsset(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(chi.URLParam(r, "symbol"))
	a, err := s.store.GetAsset(r.Context(), symbol)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, "asset not found", http.StatusNotFound)
		} else {
			writeError(w, "failed to load asset", http.StatusInternalServerError)
		}
		return
	}
	respondJSON(w, http.StatusOK, a)
}

// UpdateAsset handles PUT /api/v1/assets/{symbol}
func (s *Service) UpdateAsset(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(chi.URLParam(r, "symbol"))
	a, err := s.store.GetAsset(r.Context(), symbol)
	if err != nil {
		writeError(w, "asset not found", http.StatusNotFound)
		return
	}

	var req AssetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	applyAssetMetadata(a, req)
	a.UpdatedAt = time.Now().UTC()
	if err := s.store.UpdateAsset(r.Context(), a); err != nil {
		writeError(w, "failed to update asset", http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, a)
}

// SetAssetPrice handles PUT /api/v1/assets/{symbol}/price
// This is the entry point for the external price feed. Valuations in
// summaries and allocations use the latest supplied price.
func (s *Service) SetAssetPrice(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(chi.URLParam(r, "symbol"))

	var req PriceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Price.IsNegative() {
		writeError(w, "price must not be negative", http.StatusBadRequest)
		return
	}

	now := time.Now().UTC()
	if err := s.store.SetAssetPrice(r.Context(), symbol, req.Price, now); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, "asset not found", http.StatusNotFound)
		} else {
			writeError(w, "failed to update price", http.StatusInternalServerError)
		}
		return
	}

	slog.Info("asset price updated", "symbol", symbol, "price", req.Price.String())

	if s.wsHub != nil {
		s.wsHub.Broadcast(WSMessage{
			Type:   "price_updated",
			Symbol: symbol,
			Price:  req.Price.String(),
		})
	}

	a, err := s.store.GetAsset(r.Context(), symbol)
	if err != nil {
		writeError(w, "failed to load asset", http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, a)
}

func applyAssetMetadata(a *model.Asset, req AssetRequest) {
	if req.Name != "" {
		a.Name = req.Name
	}
	if req.Sector != "" {
		a.Sector = req.Sector
	}
	if req.Industry != "" {
		a.Industry = req.Industry
	}
	if req.Country != "" {
		a.Country = req.Country
	}
	if req.Currency != "" {
		a.Currency = req.Currency
	}
	if req.Exchange != "" {
		a.Exchange = req.Exchange
	}
}
