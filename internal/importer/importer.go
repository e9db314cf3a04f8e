// Package importer normalizes broker CSV exports into ledger transactions.
//
// Three formats are supported: "robinhood", "interactivebrokers", and
// "generic". Unknown format names fall back to generic, which auto-detects
// columns by case-insensitive substring match. Non-trade rows are skipped
// silently; rows that should be trades but cannot be parsed are collected
// as row errors and the import continues.
package importer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Tanaka97/portman/internal/model"
)

// ErrEmptyCSV is returned when the input has no data rows.
var ErrEmptyCSV = errors.New("importer: CSV file is empty")

// Row is one normalized trade parsed from a broker export.
type Row struct {
	Symbol    string
	Type      string
	Quantity  decimal.Decimal
	Price     decimal.Decimal
	Fees      decimal.Decimal
	Timestamp time.Time
	Notes     string
}

// RowError records why a single CSV row could not be imported.
type RowError struct {
	Row    int    `json:"row"`
	Reason string `json:"reason"`
}

func (e RowError) Error() string {
	return fmt.Sprintf("Row %d: %s", e.Row, e.Reason)
}

// Parse reads a broker CSV export and returns the trade rows it contains.
// The returned error reports input-level failures only; per-row problems
// come back in the RowError slice.
func Parse(format string, r io.Reader) ([]Row, []RowError, error) {
	header, records, err := readRecords(r)
	if err != nil {
		return nil, nil, err
	}
	if len(records) == 0 {
		return nil, nil, ErrEmptyCSV
	}

	switch strings.ToLower(format) {
	case "robinhood":
		rows, rowErrs := parseRobinhood(records)
		return rows, rowErrs, nil
	case "interactivebrokers":
		rows, rowErrs := parseIBKR(records)
		return rows, rowErrs, nil
	default:
		rows, rowErrs := parseGeneric(header, records)
		return rows, rowErrs, nil
	}
}

// readRecords reads the CSV into header-keyed maps, one per data row.
// The header is returned separately because column resolution depends on
// file order.
func readRecords(r io.Reader) ([]string, []map[string]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1 // broker exports are not always rectangular
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, nil, ErrEmptyCSV
	}
	if err != nil {
		return nil, nil, fmt.Errorf("importer: reading CSV header: %w", err)
	}

	var records []map[string]string
	for {
		fields, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("importer: reading CSV: %w", err)
		}
		row := make(map[string]string, len(header))
		for i, name := range header {
			if i < len(fields) {
				row[name] = fields[i]
			}
		}
		records = append(records, row)
	}
	return header, records, nil
}

// parseRobinhood handles Robinhood activity exports. Fees are absent from
// the standard export so they are always zero.
func parseRobinhood(records []map[string]string) ([]Row, []RowError) {
	var rows []Row
	var rowErrs []RowError

	for i, rec := range records {
		n := i + 1

		activityType := strings.ToLower(strings.TrimSpace(rec["Activity Type"]))
		if activityType != model.TypeBuy && activityType != model.TypeSell {
			continue
		}

		symbol := strings.ToUpper(strings.TrimSpace(rec["Symbol"]))
		if symbol == "" {
			rowErrs = append(rowErrs, RowError{Row: n, Reason: "missing symbol"})
			continue
		}

		quantity, err := parseAbs(rec["Quantity"])
		if err != nil {
			rowErrs = append(rowErrs, RowError{Row: n, Reason: "invalid quantity: " + rec["Quantity"]})
			continue
		}
		price, err := parseAbs(rec["Price"])
		if err != nil {
			rowErrs = append(rowErrs, RowError{Row: n, Reason: "invalid price: " + rec["Price"]})
			continue
		}

		dateStr := rec["Activity Date"]
		if dateStr == "" {
			dateStr = rec["Process Date"]
		}

		rows = append(rows, Row{
			Symbol:    symbol,
			Type:      activityType,
			Quantity:  quantity,
			Price:     price,
			Fees:      decimal.Zero,
			Timestamp: parseDate(dateStr),
			Notes:     "Imported from Robinhood: " + rec["Description"],
		})
	}
	return rows, rowErrs
}

// parseIBKR handles Interactive Brokers flex exports, where the trade side
// is embedded in the Description column.
func parseIBKR(records []map[string]string) ([]Row, []RowError) {
	var rows []Row
	var rowErrs []RowError

	for i, rec := range records {
		n := i + 1

		description := strings.ToLower(rec["Description"])
		var tradeType string
		switch {
		case strings.Contains(description, "buy"):
			tradeType = model.TypeBuy
		case strings.Contains(description, "sell"):
			tradeType = model.TypeSell
		default:
			continue
		}

		symbol := strings.ToUpper(strings.TrimSpace(rec["Symbol"]))
		if symbol == "" {
			rowErrs = append(rowErrs, RowError{Row: n, Reason: "missing symbol"})
			continue
		}

		quantity, err := parseAbs(rec["Quantity"])
		if err != nil {
			rowErrs = append(rowErrs, RowError{Row: n, Reason: "invalid quantity: " + rec["Quantity"]})
			continue
		}
		price, err := parseAbs(rec["Price"])
		if err != nil {
			rowErrs = append(rowErrs, RowError{Row: n, Reason: "invalid price: " + rec["Price"]})
			continue
		}
		fees, err := parseAbs(rec["Fees"])
		if err != nil {
			fees = decimal.Zero
		}

		rows = append(rows, Row{
			Symbol:    symbol,
			Type:      tradeType,
			Quantity:  quantity,
			Price:     price,
			Fees:      fees,
			Timestamp: parseDate(rec["TradeDate"]),
			Notes:     "Imported from IBKR: " + rec["Description"],
		})
	}
	return rows, rowErrs
}

// parseGeneric handles arbitrary exports with date/symbol/type/quantity/
// price/fees columns, matched case-insensitively by substring.
func parseGeneric(header []string, records []map[string]string) ([]Row, []RowError) {
	columns := mapColumns(header)

	var rows []Row
	var rowErrs []RowError

	for i, rec := range records {
		n := i + 1

		symbol := strings.ToUpper(strings.TrimSpace(rec[columns["symbol"]]))
		if symbol == "" {
			rowErrs = append(rowErrs, RowError{Row: n, Reason: "missing symbol"})
			continue
		}

		tradeType := strings.ToLower(strings.TrimSpace(rec[columns["type"]]))
		if tradeType != model.TypeBuy && tradeType != model.TypeSell {
			rowErrs = append(rowErrs, RowError{Row: n, Reason: "invalid transaction type '" + tradeType + "'"})
			continue
		}

		quantity, err := parseAbs(rec[columns["quantity"]])
		if err != nil {
			rowErrs = append(rowErrs, RowError{Row: n, Reason: "invalid quantity: " + rec[columns["quantity"]]})
			continue
		}
		price, err := parseAbs(rec[columns["price"]])
		if err != nil {
			rowErrs = append(rowErrs, RowError{Row: n, Reason: "invalid price: " + rec[columns["price"]]})
			continue
		}
		fees := decimal.Zero
		if col, ok := columns["fees"]; ok && rec[col] != "" {
			fees, err = parseAbs(rec[col])
			if err != nil {
				rowErrs = append(rowErrs, RowError{Row: n, Reason: "invalid fees: " + rec[col]})
				continue
			}
		}

		rows = append(rows, Row{
			Symbol:    symbol,
			Type:      tradeType,
			Quantity:  quantity,
			Price:     price,
			Fees:      fees,
			Timestamp: parseDate(rec[columns["date"]]),
			Notes:     fmt.Sprintf("Imported from CSV row %d", n),
		})
	}
	return rows, rowErrs
}

// mapColumns resolves logical field names to the export's actual column
// headers. Exact matches win; otherwise the first header in file order
// containing the name as a case-insensitive substring is used, so the
// choice is stable when several headers could match.
func mapColumns(header []string) map[string]string {
	columns := make(map[string]string)
	for _, key := range []string{"date", "symbol", "type", "quantity", "price", "fees"} {
		for _, col := range header {
			if strings.EqualFold(strings.TrimSpace(col), key) {
				columns[key] = col
				break
			}
		}
		if _, ok := columns[key]; ok {
			continue
		}
		for _, col := range header {
			if strings.Contains(strings.ToLower(col), key) {
				columns[key] = col
				break
			}
		}
	}
	return columns
}

func parseAbs(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, nil
	}
	// Broker exports wrap negatives in $ signs and commas sometimes.
	s = strings.NewReplacer("$", "", ",", "", "(", "-", ")", "").Replace(s)
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, err
	}
	return d.Abs(), nil
}

var dateFormats = []string{
	"2006-01-02",
	"1/2/2006",
	"2/1/2006",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"1/2/2006 15:04:05",
}

// parseDate tries the broker date formats in order; a date that matches
// none of them falls back to the current time so the row still imports.
func parseDate(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Now().UTC()
	}
	for _, format := range dateFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	slog.Warn("could not parse CSV date, using current time", "value", s)
	return time.Now().UTC()
}
