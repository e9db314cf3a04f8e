package portfolio

import "github.com/go-chi/chi/v5"

// Routes builds the /api/v1 route tree. Everything except the WebSocket
// endpoint requires a caller identity.
func (s *Service) Routes() chi.Router {
	r := chi.NewRouter()

	// WebSocket endpoint for real-time position updates.
	if s.wsHub != nil {
		r.Get("/ws", s.wsHub.HandleWS)
	}

	r.Group(func(r chi.Router) {
		r.Use(RequireUser)

		r.Route("/portfolios", func(r chi.Router) {
			r.Post("/", s.CreatePortfolio)
			r.Get("/", s.ListPortfolios)
			r.Get("/{portfolioID}", s.GetPortfolio)
			r.Put("/{portfolioID}", s.UpdatePortfolio)
			r.Delete("/{portfolioID}", s.DeletePortfolio)
			r.Get("/{portfolioID}/summary", s.GetSummary)
			r.Get("/{portfolioID}/allocation", s.GetAllocation)
			r.Get("/{portfolioID}/allocation/sector", s.GetSectorAllocation)
			r.Get("/{portfolioID}/allocation/industry", s.GetIndustryAllocation)
		})

		r.Route("/transactions", func(r chi.Router) {
			r.Post("/", s.CreateTransaction)
			r.Get("/", s.ListTransactions)
			r.Get("/{transactionID}", s.GetTransaction)
			r.Put("/{transactionID}", s.UpdateTransaction)
			r.Delete("/{transactionID}", s.DeleteTransaction)
		})

		r.Route("/positions", func(r chi.Router) {
			r.Get("/", s.ListPositions)
			r.Get("/{positionID}", s.GetPosition)
		})

		r.Route("/assets", func(r chi.Router) {
			r.Post("/", s.CreateAsset)
			r.Get("/", s.ListAssets)
			r.Get("/search", s.SearchAssets)
			r.Get("/{symbol}", s.GetAsset)
			r.Put("/{symbol}", s.UpdateAsset)
			r.Put("/{symbol}/price", s.SetAssetPrice)
		})

		r.Route("/cash", func(r chi.Router) {
			r.Post("/", s.CreateCashMovement)
			r.Get("/", s.ListCashMovements)
			r.Get("/balance/{portfolioID}", s.GetCashBalance)
			r.Get("/{movementID}", s.GetCashMovement)
			r.Delete("/{movementID}", s.DeleteCashMovement)
		})

		r.Route("/dividends", func(r chi.Router) {
			r.Post("/", s.CreateDividend)
			r.Get("/", s.ListDividends)
			r.Get("/total/{portfolioID}", s.GetDividendTotal)
			r.Get("/by-symbol/{portfolioID}", s.GetDividendsBySymbol)
			r.Get("/{dividendID}", s.GetDividend)
			r.Delete("/{dividendID}", s.DeleteDividend)
		})

		r.Post("/import", s.ImportTransactions)
	})

	return r
}
