package portfolio

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Tanaka97/portman/internal/importer"
	"github.com/Tanaka97/portman/internal/metrics"
	"github.com/Tanaka97/portman/internal/model"
)

// ImportRequest is the JSON body for POST /api/v1/import.
type ImportRequest struct {
	PortfolioID  string `json:"portfolio_id"`
	BrokerFormat string `json:"broker_format"`
	CSVData      string `json:"csv_data"`
}

// ImportResponse reports the outcome of a CSV import. Failed rows never
// abort the batch; they are listed and the rest imports.
type ImportResponse struct {
	Success         bool                `json:"success"`
	ImportedCount   int                 `json:"imported_count"`
	FailedCount     int                 `json:"failed_count"`
	Errors          []string            `json:"errors"`
	Transactions    []model.Transaction `json:"transactions"`
	PositionRefresh string              `json:"position_refresh,omitempty"`
}

// ImportTransactions handles POST /api/v1/import
// Parses a broker CSV export and records each trade row through the
// standard ledger path. The position snapshot is rebuilt once at the
// end of the batch, not per row.
func (s *Service) ImportTransactions(w http.ResponseWriter, r *http.Request) {
	var req ImportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.PortfolioID == "" {
		writeError(w, "portfolio_id is required", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	if _, err := s.store.GetPortfolio(ctx, userID(r), req.PortfolioID); err != nil {
		writeError(w, "portfolio not found", http.StatusNotFound)
		return
	}

	rows, rowErrs, err := importer.Parse(req.BrokerFormat, strings.NewReader(req.CSVData))
	if err != nil {
		if errors.Is(err, importer.ErrEmptyCSV) {
			writeError(w, "CSV file is empty", http.StatusBadRequest)
			return
		}
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	unlock := s.locks.Lock(req.PortfolioID)
	defer unlock.Unlock()

	resp := ImportResponse{
		Success:      true,
		Errors:       []string{},
		Transactions: []model.Transaction{},
	}
	for _, re := range rowErrs {
		resp.Errors = append(resp.Errors, re.Error())
		metrics.ImportedRows.WithLabelValues("failed").Inc()
	}

	now := time.Now().UTC()
	for i, row := range rows {
		if _, err := s.store.GetOrCreateAsset(ctx, row.Symbol); err != nil {
			resp.Errors = append(resp.Errors, "symbol "+row.Symbol+": "+err.Error())
			metrics.ImportedRows.WithLabelValues("failed").Inc()
			continue
		}

		// Broker dates are day-granular, so same-day rows tie on
		// Timestamp. Spacing CreatedAt preserves file order through the
		// recompute sort.
		stamp := now.Add(time.Duration(i) * time.Microsecond)
		t := model.Transaction{
			ID:          uuid.New().String(),
			PortfolioID: req.PortfolioID,
			Symbol:      row.Symbol,
			Type:        row.Type,
			Quantity:    row.Quantity,
			Price:       row.Price,
			Fees:        row.Fees,
			Timestamp:   row.Timestamp,
			Notes:       row.Notes,
			CreatedAt:   stamp,
			UpdatedAt:   stamp,
		}
		if err := s.store.InsertTransaction(ctx, &t); err != nil {
			resp.Errors = append(resp.Errors, "symbol "+row.Symbol+": "+err.Error())
			metrics.ImportedRows.WithLabelValues("failed").Inc()
			continue
		}
		metrics.ImportedRows.WithLabelValues("imported").Inc()
		metrics.TransactionsTotal.WithLabelValues(t.Type).Inc()
		resp.Transactions = append(resp.Transactions, t)
	}
	resp.ImportedCount = len(resp.Transactions)
	resp.FailedCount = len(resp.Errors)

	slog.Info("CSV import finished",
		"portfolio", req.PortfolioID,
		"format", req.BrokerFormat,
		"imported", resp.ImportedCount,
		"failed", resp.FailedCount,
	)

	if resp.ImportedCount > 0 {
		if err := s.recomputePositions(ctx, req.PortfolioID); err != nil {
			slog.Warn("position recompute failed after import, snapshot is stale",
				"portfolio", req.PortfolioID, "err", err)
			resp.PositionRefresh = "stale"
		}
	}
	respondJSON(w, http.StatusOK, resp)
}
