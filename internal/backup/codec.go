package backup

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"warungku/backend/internal/domain"
	"warungku/backend/internal/store"
)

// FormatVersion tags exported snapshot documents. Older files with a
// smaller version are still accepted on import: the collections they
// carry are shaped by the same schema ladder.
const FormatVersion = 3

// Snapshot is the full-dataset backup document. Its scope is stocks and
// transactions; customers, debt payments and consignments are not part
// of the format.
type Snapshot struct {
	Version      int                      `json:"version"`
	ExportedAt   time.Time                `json:"exportedAt"`
	Stocks       []domain.StockItem       `json:"stocks"`
	Transactions []domain.SaleTransaction `json:"transactions"`
}

func New(stocks []domain.StockItem, sales []domain.SaleTransaction, at time.Time) Snapshot {
	if stocks == nil {
		stocks = []domain.StockItem{}
	}
	if sales == nil {
		sales = []domain.SaleTransaction{}
	}
	return Snapshot{
		Version:      FormatVersion,
		ExportedAt:   at,
		Stocks:       stocks,
		Transactions: sales,
	}
}

// Validate checks the document shape. Both core collections must be
// present; empty is fine, absent is not.
func (s Snapshot) Validate() error {
	if s.Stocks == nil || s.Transactions == nil {
		return fmt.Errorf("%w: missing core collections", store.ErrInvalidFormat)
	}
	return nil
}

// FileName returns the advertised download name for a snapshot taken on
// the given day.
func FileName(at time.Time) string {
	return fmt.Sprintf("backup-stok-%s.json", at.UTC().Format("2006-01-02"))
}

func Encode(w io.Writer, snap Snapshot) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(snap)
}

// Decode parses a snapshot document. Timestamps come back as native
// time values; a document missing either core collection is rejected
// with ErrInvalidFormat.
func Decode(r io.Reader) (Snapshot, error) {
	var raw struct {
		Version      int                       `json:"version"`
		ExportedAt   time.Time                 `json:"exportedAt"`
		Stocks       *[]domain.StockItem       `json:"stocks"`
		Transactions *[]domain.SaleTransaction `json:"transactions"`
	}
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return Snapshot{}, fmt.Errorf("%w: %v", store.ErrInvalidFormat, err)
	}
	if raw.Stocks == nil || raw.Transactions == nil {
		return Snapshot{}, fmt.Errorf("%w: missing core collections", store.ErrInvalidFormat)
	}
	return Snapshot{
		Version:      raw.Version,
		ExportedAt:   raw.ExportedAt,
		Stocks:       *raw.Stocks,
		Transactions: *raw.Transactions,
	}, nil
}
