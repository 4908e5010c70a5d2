package domain

import "time"

// StockItem is a warehouse row. Quantity is mutated only through
// coordinator operations (checkout, void, consignment, manual adjust).
type StockItem struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	SKU       string    `json:"sku"`
	Category  string    `json:"category"`
	Unit      string    `json:"unit"`
	Quantity  int       `json:"quantity"`
	Price     int64     `json:"price"`
	CostPrice int64     `json:"costPrice"`
	MinStock  int       `json:"minStock"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// LineItem is a price/cost snapshot captured at sale time. StockID is a
// weak reference: the stock row may be deleted later without touching
// the recorded line.
type LineItem struct {
	StockID   int64  `json:"stockId"`
	Name      string `json:"name"`
	Qty       int    `json:"qty"`
	Price     int64  `json:"price"`
	CostPrice int64  `json:"costPrice"`
}

// SaleTransaction is an immutable record of a completed sale. Line
// items are never re-read from the catalog, so historical reports stay
// stable when prices change.
type SaleTransaction struct {
	ID         int64      `json:"id"`
	Date       time.Time  `json:"date"`
	Total      int64      `json:"total"`
	Payment    int64      `json:"payment"`
	Change     int64      `json:"change"`
	Items      []LineItem `json:"items"`
	CustomerID *int64     `json:"customerId,omitempty"`
	IsDebt     bool       `json:"isDebt"`
}

type Customer struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone"`
	TotalDebt int64     `json:"totalDebt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// DebtPayment is append-only: the amount recorded is the cash actually
// received, even when it exceeds the remaining balance.
type DebtPayment struct {
	ID         int64     `json:"id"`
	CustomerID int64     `json:"customerId"`
	Amount     int64     `json:"amount"`
	Date       time.Time `json:"date"`
}

// ConsignmentLine snapshots price and cost when goods leave the
// warehouse, so settlement revenue is priced at hand-over time.
type ConsignmentLine struct {
	StockID    int64  `json:"stockId"`
	Name       string `json:"name"`
	InitialQty int    `json:"initialQty"`
	CostPrice  int64  `json:"costPrice"`
	Price      int64  `json:"price"`
}

type Consignment struct {
	ID         int64             `json:"id"`
	Date       time.Time         `json:"date"`
	CustomerID int64             `json:"customerId"`
	Items      []ConsignmentLine `json:"items"`
	Status     string            `json:"status"`
	SettledAt  *time.Time        `json:"settledAt,omitempty"`
}

const (
	ConsignmentStatusOpen    = "OPEN"
	ConsignmentStatusSettled = "SETTLED"
)

type CartLine struct {
	StockID int64 `json:"stockId"`
	Qty     int   `json:"qty"`
}

type CheckoutRequest struct {
	Items      []CartLine `json:"items"`
	CustomerID *int64     `json:"customerId,omitempty"`
	Payment    int64      `json:"payment"`
	IsDebt     bool       `json:"isDebt"`
}

type StockCreateRequest struct {
	Name      string `json:"name"`
	SKU       string `json:"sku"`
	Category  string `json:"category"`
	Unit      string `json:"unit"`
	Quantity  int    `json:"quantity"`
	Price     int64  `json:"price"`
	CostPrice int64  `json:"costPrice"`
	MinStock  int    `json:"minStock"`
}

type StockUpdateRequest struct {
	Name      *string `json:"name,omitempty"`
	SKU       *string `json:"sku,omitempty"`
	Category  *string `json:"category,omitempty"`
	Unit      *string `json:"unit,omitempty"`
	Price     *int64  `json:"price,omitempty"`
	CostPrice *int64  `json:"costPrice,omitempty"`
	MinStock  *int    `json:"minStock,omitempty"`
}

type StockAdjustRequest struct {
	Quantity int `json:"quantity"`
}

type CustomerCreateRequest struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

type RepayDebtRequest struct {
	Amount int64 `json:"amount"`
}

type RepayDebtResponse struct {
	Customer Customer    `json:"customer"`
	Payment  DebtPayment `json:"payment"`
}

type ConsignmentCreateRequest struct {
	CustomerID int64 `json:"customerId"`
	StockID    int64 `json:"stockId"`
	Qty        int   `json:"qty"`
}

// ConsignmentSettleRequest reports sold quantity per stock id. Lines
// absent from the map are treated as fully returned.
type ConsignmentSettleRequest struct {
	Sold map[int64]int `json:"sold"`
}

type ConsignmentSettleResponse struct {
	Consignment Consignment      `json:"consignment"`
	Sale        *SaleTransaction `json:"sale,omitempty"`
}

// DailySummary aggregates one calendar day of sales for the dashboard.
type DailySummary struct {
	Date         string `json:"date"`
	Transactions int    `json:"transactions"`
	Revenue      int64  `json:"revenue"`
	Profit       int64  `json:"profit"`
}
