package store

import (
	"context"
	"errors"
	"time"

	"warungku/backend/internal/domain"
)

var (
	ErrNotFound               = errors.New("not found")
	ErrInvalidInput           = errors.New("invalid input")
	ErrInsufficientStock      = errors.New("insufficient stock")
	ErrInsufficientPayment    = errors.New("insufficient payment")
	ErrCreditRequiresCustomer = errors.New("credit sale requires a customer")
	ErrOverSale               = errors.New("sold quantity exceeds consignment quantity")
	ErrInvalidFormat          = errors.New("invalid backup format")
	ErrCommitFailed           = errors.New("store commit failed")
)

// Repository is the plain read/maintenance surface of the data store.
// Anything that touches more than one collection goes through WithTx.
type Repository interface {
	ListStock(ctx context.Context) ([]domain.StockItem, error)
	GetStock(ctx context.Context, id int64) (*domain.StockItem, error)
	CreateStock(ctx context.Context, item domain.StockItem) (*domain.StockItem, error)
	UpdateStock(ctx context.Context, item domain.StockItem) (*domain.StockItem, error)
	DeleteStock(ctx context.Context, id int64) error

	ListTransactions(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.SaleTransaction, error)
	GetTransaction(ctx context.Context, id int64) (*domain.SaleTransaction, error)

	ListCustomers(ctx context.Context) ([]domain.Customer, error)
	GetCustomer(ctx context.Context, id int64) (*domain.Customer, error)
	CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error)
	DeleteCustomer(ctx context.Context, id int64) error
	ListDebtPayments(ctx context.Context, customerID int64) ([]domain.DebtPayment, error)

	ListConsignments(ctx context.Context, status string) ([]domain.Consignment, error)
	GetConsignment(ctx context.Context, id int64) (*domain.Consignment, error)

	// WithTx runs fn against a transactional view spanning every
	// collection. If fn returns an error nothing is applied; if the
	// final commit itself fails the error wraps ErrCommitFailed and
	// the store keeps its pre-transaction state.
	WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	Close() error
}

// Tx batches reads and writes that must commit atomically. No business
// rules live here: callers validate before mutating.
type Tx interface {
	GetStock(ctx context.Context, id int64) (*domain.StockItem, error)
	SetStockQuantity(ctx context.Context, id int64, quantity int, at time.Time) error
	AllStock(ctx context.Context) ([]domain.StockItem, error)
	ReplaceStock(ctx context.Context, items []domain.StockItem) error

	GetTransaction(ctx context.Context, id int64) (*domain.SaleTransaction, error)
	InsertTransaction(ctx context.Context, sale domain.SaleTransaction) (*domain.SaleTransaction, error)
	DeleteTransaction(ctx context.Context, id int64) error
	AllTransactions(ctx context.Context) ([]domain.SaleTransaction, error)
	ReplaceTransactions(ctx context.Context, sales []domain.SaleTransaction) error

	GetCustomer(ctx context.Context, id int64) (*domain.Customer, error)
	SetCustomerDebt(ctx context.Context, id int64, totalDebt int64, at time.Time) error
	InsertDebtPayment(ctx context.Context, payment domain.DebtPayment) (*domain.DebtPayment, error)

	GetConsignment(ctx context.Context, id int64) (*domain.Consignment, error)
	InsertConsignment(ctx context.Context, consignment domain.Consignment) (*domain.Consignment, error)
	MarkConsignmentSettled(ctx context.Context, id int64, at time.Time) error
}
