package memory

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"warungku/backend/internal/domain"
	"warungku/backend/internal/store"
)

// Store keeps the full dataset in process memory. WithTx takes a deep
// copy of the state, runs the callback against the copy and swaps it in
// on success, so a failed operation can never leave partial writes
// behind. Used by the test suite and as the no-persistence fallback.
type Store struct {
	mu sync.RWMutex
	st *state
}

type state struct {
	stocks       map[int64]domain.StockItem
	stockSeq     int64
	sales        map[int64]domain.SaleTransaction
	saleSeq      int64
	customers    map[int64]domain.Customer
	customerSeq  int64
	payments     []domain.DebtPayment
	paymentSeq   int64
	consignments map[int64]domain.Consignment
	consignSeq   int64
}

func newState() *state {
	return &state{
		stocks:       make(map[int64]domain.StockItem),
		sales:        make(map[int64]domain.SaleTransaction),
		customers:    make(map[int64]domain.Customer),
		payments:     make([]domain.DebtPayment, 0, 64),
		consignments: make(map[int64]domain.Consignment),
	}
}

func New() *Store {
	return &Store{st: newState()}
}

// NewSeeded returns a store pre-filled with a small warung catalog for
// dev/demo mode.
func NewSeeded() *Store {
	s := New()
	now := time.Now().UTC()
	seed := []domain.StockItem{
		{Name: "Mie Goreng Instan", SKU: "MIE-01", Category: "grocery", Unit: "pcs", Quantity: 120, Price: 3500, CostPrice: 2700, MinStock: 10},
		{Name: "Telur Ayam", SKU: "TELUR-01", Category: "grocery", Unit: "kg", Quantity: 40, Price: 28000, CostPrice: 24500, MinStock: 5},
		{Name: "Kopi Sachet", SKU: "KOPI-01", Category: "beverage", Unit: "pcs", Quantity: 200, Price: 2600, CostPrice: 1700, MinStock: 24},
		{Name: "Gula 1kg", SKU: "GULA-01", Category: "grocery", Unit: "pcs", Quantity: 35, Price: 17400, CostPrice: 15300, MinStock: 6},
		{Name: "Keripik Singkong", SKU: "KERIPIK-01", Category: "snack", Unit: "pcs", Quantity: 60, Price: 12800, CostPrice: 8000, MinStock: 8},
		{Name: "Sabun Mandi", SKU: "SABUN-01", Category: "household", Unit: "pcs", Quantity: 48, Price: 7400, CostPrice: 5000, MinStock: 6},
	}
	for _, item := range seed {
		s.st.stockSeq++
		item.ID = s.st.stockSeq
		item.UpdatedAt = now
		s.st.stocks[item.ID] = item
	}
	customers := []domain.Customer{
		{Name: "Bu Ani", Phone: "081234567890"},
		{Name: "Pak Budi", Phone: "081298765432"},
	}
	for _, c := range customers {
		s.st.customerSeq++
		c.ID = s.st.customerSeq
		c.UpdatedAt = now
		s.st.customers[c.ID] = c
	}
	return s
}

func (s *Store) Close() error { return nil }

func (st *state) clone() *state {
	next := &state{
		stocks:       make(map[int64]domain.StockItem, len(st.stocks)),
		stockSeq:     st.stockSeq,
		sales:        make(map[int64]domain.SaleTransaction, len(st.sales)),
		saleSeq:      st.saleSeq,
		customers:    make(map[int64]domain.Customer, len(st.customers)),
		customerSeq:  st.customerSeq,
		payments:     make([]domain.DebtPayment, len(st.payments)),
		paymentSeq:   st.paymentSeq,
		consignments: make(map[int64]domain.Consignment, len(st.consignments)),
		consignSeq:   st.consignSeq,
	}
	for id, item := range st.stocks {
		next.stocks[id] = item
	}
	for id, sale := range st.sales {
		next.sales[id] = cloneSale(sale)
	}
	for id, c := range st.customers {
		next.customers[id] = c
	}
	copy(next.payments, st.payments)
	for id, c := range st.consignments {
		next.consignments[id] = cloneConsignment(c)
	}
	return next
}

func cloneSale(sale domain.SaleTransaction) domain.SaleTransaction {
	items := make([]domain.LineItem, len(sale.Items))
	copy(items, sale.Items)
	sale.Items = items
	if sale.CustomerID != nil {
		id := *sale.CustomerID
		sale.CustomerID = &id
	}
	return sale
}

func cloneConsignment(c domain.Consignment) domain.Consignment {
	items := make([]domain.ConsignmentLine, len(c.Items))
	copy(items, c.Items)
	c.Items = items
	if c.SettledAt != nil {
		at := *c.SettledAt
		c.SettledAt = &at
	}
	return c
}

func (s *Store) ListStock(_ context.Context) ([]domain.StockItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]domain.StockItem, 0, len(s.st.stocks))
	for _, item := range s.st.stocks {
		items = append(items, item)
	}
	slices.SortFunc(items, func(a, b domain.StockItem) int {
		if a.Category == b.Category {
			return strings.Compare(a.Name, b.Name)
		}
		return strings.Compare(a.Category, b.Category)
	})
	return items, nil
}

func (s *Store) GetStock(_ context.Context, id int64) (*domain.StockItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.st.stocks[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	found := item
	return &found, nil
}

func (s *Store) CreateStock(_ context.Context, item domain.StockItem) (*domain.StockItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if item.Name == "" || item.Quantity < 0 || item.Price < 0 || item.CostPrice < 0 || item.MinStock < 0 {
		return nil, store.ErrInvalidInput
	}
	s.st.stockSeq++
	item.ID = s.st.stockSeq
	if item.UpdatedAt.IsZero() {
		item.UpdatedAt = time.Now().UTC()
	}
	s.st.stocks[item.ID] = item
	created := item
	return &created, nil
}

func (s *Store) UpdateStock(_ context.Context, item domain.StockItem) (*domain.StockItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if item.Name == "" || item.Quantity < 0 || item.Price < 0 || item.CostPrice < 0 || item.MinStock < 0 {
		return nil, store.ErrInvalidInput
	}
	if _, ok := s.st.stocks[item.ID]; !ok {
		return nil, store.ErrNotFound
	}
	s.st.stocks[item.ID] = item
	updated := item
	return &updated, nil
}

func (s *Store) DeleteStock(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.st.stocks[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.st.stocks, id)
	return nil
}

func (s *Store) ListTransactions(_ context.Context, from time.Time, to time.Time, limit int) ([]domain.SaleTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sales := make([]domain.SaleTransaction, 0, len(s.st.sales))
	for _, sale := range s.st.sales {
		if !from.IsZero() && sale.Date.Before(from) {
			continue
		}
		if !to.IsZero() && !sale.Date.Before(to) {
			continue
		}
		sales = append(sales, cloneSale(sale))
	}
	slices.SortFunc(sales, func(a, b domain.SaleTransaction) int {
		// Newest first, id as tiebreaker.
		if a.Date.Equal(b.Date) {
			return int(b.ID - a.ID)
		}
		if a.Date.After(b.Date) {
			return -1
		}
		return 1
	})
	if limit > 0 && len(sales) > limit {
		sales = sales[:limit]
	}
	return sales, nil
}

func (s *Store) GetTransaction(_ context.Context, id int64) (*domain.SaleTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sale, ok := s.st.sales[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	found := cloneSale(sale)
	return &found, nil
}

func (s *Store) ListCustomers(_ context.Context) ([]domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	customers := make([]domain.Customer, 0, len(s.st.customers))
	for _, c := range s.st.customers {
		customers = append(customers, c)
	}
	slices.SortFunc(customers, func(a, b domain.Customer) int {
		return strings.Compare(a.Name, b.Name)
	})
	return customers, nil
}

func (s *Store) GetCustomer(_ context.Context, id int64) (*domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.st.customers[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	found := c
	return &found, nil
}

func (s *Store) CreateCustomer(_ context.Context, customer domain.Customer) (*domain.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if customer.Name == "" || customer.TotalDebt < 0 {
		return nil, store.ErrInvalidInput
	}
	s.st.customerSeq++
	customer.ID = s.st.customerSeq
	if customer.UpdatedAt.IsZero() {
		customer.UpdatedAt = time.Now().UTC()
	}
	s.st.customers[customer.ID] = customer
	created := customer
	return &created, nil
}

func (s *Store) DeleteCustomer(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.st.customers[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.st.customers, id)
	return nil
}

func (s *Store) ListDebtPayments(_ context.Context, customerID int64) ([]domain.DebtPayment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	payments := make([]domain.DebtPayment, 0, 8)
	for _, p := range s.st.payments {
		if p.CustomerID == customerID {
			payments = append(payments, p)
		}
	}
	slices.SortFunc(payments, func(a, b domain.DebtPayment) int {
		if a.Date.Equal(b.Date) {
			return int(b.ID - a.ID)
		}
		if a.Date.After(b.Date) {
			return -1
		}
		return 1
	})
	return payments, nil
}

func (s *Store) ListConsignments(_ context.Context, status string) ([]domain.Consignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	consignments := make([]domain.Consignment, 0, len(s.st.consignments))
	for _, c := range s.st.consignments {
		if status != "" && c.Status != status {
			continue
		}
		consignments = append(consignments, cloneConsignment(c))
	}
	slices.SortFunc(consignments, func(a, b domain.Consignment) int {
		return int(b.ID - a.ID)
	})
	return consignments, nil
}

func (s *Store) GetConsignment(_ context.Context, id int64) (*domain.Consignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.st.consignments[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	found := cloneConsignment(c)
	return &found, nil
}

func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	staged := s.st.clone()
	if err := fn(ctx, &memTx{st: staged}); err != nil {
		return err
	}
	s.st = staged
	return nil
}

// memTx mutates the staged state directly; the surrounding WithTx call
// discards it unless the callback succeeds.
type memTx struct {
	st *state
}

func (t *memTx) GetStock(_ context.Context, id int64) (*domain.StockItem, error) {
	item, ok := t.st.stocks[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	found := item
	return &found, nil
}

func (t *memTx) SetStockQuantity(_ context.Context, id int64, quantity int, at time.Time) error {
	item, ok := t.st.stocks[id]
	if !ok {
		return store.ErrNotFound
	}
	if quantity < 0 {
		return fmt.Errorf("%w: negative quantity", store.ErrInvalidInput)
	}
	item.Quantity = quantity
	item.UpdatedAt = at
	t.st.stocks[id] = item
	return nil
}

func (t *memTx) AllStock(_ context.Context) ([]domain.StockItem, error) {
	items := make([]domain.StockItem, 0, len(t.st.stocks))
	for _, item := range t.st.stocks {
		items = append(items, item)
	}
	slices.SortFunc(items, func(a, b domain.StockItem) int {
		return int(a.ID - b.ID)
	})
	return items, nil
}

func (t *memTx) ReplaceStock(_ context.Context, items []domain.StockItem) error {
	t.st.stocks = make(map[int64]domain.StockItem, len(items))
	var maxID int64
	for _, item := range items {
		if item.ID == 0 {
			return fmt.Errorf("%w: stock row without id", store.ErrInvalidFormat)
		}
		t.st.stocks[item.ID] = item
		if item.ID > maxID {
			maxID = item.ID
		}
	}
	t.st.stockSeq = maxID
	return nil
}

func (t *memTx) GetTransaction(_ context.Context, id int64) (*domain.SaleTransaction, error) {
	sale, ok := t.st.sales[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	found := cloneSale(sale)
	return &found, nil
}

func (t *memTx) InsertTransaction(_ context.Context, sale domain.SaleTransaction) (*domain.SaleTransaction, error) {
	if len(sale.Items) == 0 {
		return nil, fmt.Errorf("%w: sale without line items", store.ErrInvalidInput)
	}
	t.st.saleSeq++
	sale.ID = t.st.saleSeq
	t.st.sales[sale.ID] = cloneSale(sale)
	created := cloneSale(sale)
	return &created, nil
}

func (t *memTx) DeleteTransaction(_ context.Context, id int64) error {
	if _, ok := t.st.sales[id]; !ok {
		return store.ErrNotFound
	}
	delete(t.st.sales, id)
	return nil
}

func (t *memTx) AllTransactions(_ context.Context) ([]domain.SaleTransaction, error) {
	sales := make([]domain.SaleTransaction, 0, len(t.st.sales))
	for _, sale := range t.st.sales {
		sales = append(sales, cloneSale(sale))
	}
	slices.SortFunc(sales, func(a, b domain.SaleTransaction) int {
		return int(a.ID - b.ID)
	})
	return sales, nil
}

func (t *memTx) ReplaceTransactions(_ context.Context, sales []domain.SaleTransaction) error {
	t.st.sales = make(map[int64]domain.SaleTransaction, len(sales))
	var maxID int64
	for _, sale := range sales {
		if sale.ID == 0 {
			return fmt.Errorf("%w: transaction without id", store.ErrInvalidFormat)
		}
		t.st.sales[sale.ID] = cloneSale(sale)
		if sale.ID > maxID {
			maxID = sale.ID
		}
	}
	t.st.saleSeq = maxID
	return nil
}

func (t *memTx) GetCustomer(_ context.Context, id int64) (*domain.Customer, error) {
	c, ok := t.st.customers[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	found := c
	return &found, nil
}

func (t *memTx) SetCustomerDebt(_ context.Context, id int64, totalDebt int64, at time.Time) error {
	c, ok := t.st.customers[id]
	if !ok {
		return store.ErrNotFound
	}
	if totalDebt < 0 {
		return fmt.Errorf("%w: negative debt balance", store.ErrInvalidInput)
	}
	c.TotalDebt = totalDebt
	c.UpdatedAt = at
	t.st.customers[id] = c
	return nil
}

func (t *memTx) InsertDebtPayment(_ context.Context, payment domain.DebtPayment) (*domain.DebtPayment, error) {
	if payment.Amount <= 0 {
		return nil, fmt.Errorf("%w: non-positive payment", store.ErrInvalidInput)
	}
	t.st.paymentSeq++
	payment.ID = t.st.paymentSeq
	t.st.payments = append(t.st.payments, payment)
	created := payment
	return &created, nil
}

func (t *memTx) GetConsignment(_ context.Context, id int64) (*domain.Consignment, error) {
	c, ok := t.st.consignments[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	found := cloneConsignment(c)
	return &found, nil
}

func (t *memTx) InsertConsignment(_ context.Context, consignment domain.Consignment) (*domain.Consignment, error) {
	if len(consignment.Items) == 0 {
		return nil, fmt.Errorf("%w: consignment without lines", store.ErrInvalidInput)
	}
	t.st.consignSeq++
	consignment.ID = t.st.consignSeq
	t.st.consignments[consignment.ID] = cloneConsignment(consignment)
	created := cloneConsignment(consignment)
	return &created, nil
}

func (t *memTx) MarkConsignmentSettled(_ context.Context, id int64, at time.Time) error {
	c, ok := t.st.consignments[id]
	if !ok {
		return store.ErrNotFound
	}
	c.Status = domain.ConsignmentStatusSettled
	settledAt := at
	c.SettledAt = &settledAt
	t.st.consignments[id] = c
	return nil
}
