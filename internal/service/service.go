package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"warungku/backend/internal/backup"
	"warungku/backend/internal/cache"
	"warungku/backend/internal/domain"
	"warungku/backend/internal/store"
)

// Service is the transaction coordinator: every operation that touches
// more than one collection runs as a single all-or-nothing unit via the
// store's WithTx primitive. Operations never nest and are never retried
// here; callers decide what to do with a failed operation.
type Service struct {
	repo             store.Repository
	reports          cache.ReportCache
	reportTTL        time.Duration
	voidRestoresDebt bool
}

// New builds a Service. voidRestoresDebt controls whether voiding a
// credit sale also reverses the customer's balance delta; the default
// configuration leaves it off to match the historical behavior where a
// void only compensates stock.
func New(repo store.Repository, reports cache.ReportCache, reportTTL time.Duration, voidRestoresDebt bool) *Service {
	if reports == nil {
		reports = cache.NoopReportCache{}
	}
	if reportTTL <= 0 {
		reportTTL = 5 * time.Minute
	}
	return &Service{
		repo:             repo,
		reports:          reports,
		reportTTL:        reportTTL,
		voidRestoresDebt: voidRestoresDebt,
	}
}

// --- Catalog maintenance ---

func (s *Service) ListStock(ctx context.Context) ([]domain.StockItem, error) {
	return s.repo.ListStock(ctx)
}

func (s *Service) GetStock(ctx context.Context, id int64) (*domain.StockItem, error) {
	return s.repo.GetStock(ctx, id)
}

func (s *Service) CreateStock(ctx context.Context, req domain.StockCreateRequest) (domain.StockItem, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.SKU = strings.ToUpper(strings.TrimSpace(req.SKU))
	req.Category = strings.TrimSpace(req.Category)
	req.Unit = strings.TrimSpace(req.Unit)

	if req.Name == "" {
		return domain.StockItem{}, fmt.Errorf("%w: name is required", store.ErrInvalidInput)
	}
	if req.Quantity < 0 || req.Price < 0 || req.CostPrice < 0 || req.MinStock < 0 {
		return domain.StockItem{}, fmt.Errorf("%w: negative stock fields", store.ErrInvalidInput)
	}

	created, err := s.repo.CreateStock(ctx, domain.StockItem{
		Name:      req.Name,
		SKU:       req.SKU,
		Category:  req.Category,
		Unit:      req.Unit,
		Quantity:  req.Quantity,
		Price:     req.Price,
		CostPrice: req.CostPrice,
		MinStock:  req.MinStock,
		UpdatedAt: time.Now().UTC(),
	})
	if err != nil {
		return domain.StockItem{}, err
	}
	return *created, nil
}

func (s *Service) UpdateStock(ctx context.Context, id int64, req domain.StockUpdateRequest) (domain.StockItem, error) {
	existing, err := s.repo.GetStock(ctx, id)
	if err != nil {
		return domain.StockItem{}, err
	}

	updated := *existing
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.StockItem{}, fmt.Errorf("%w: name is required", store.ErrInvalidInput)
		}
		updated.Name = name
	}
	if req.SKU != nil {
		updated.SKU = strings.ToUpper(strings.TrimSpace(*req.SKU))
	}
	if req.Category != nil {
		updated.Category = strings.TrimSpace(*req.Category)
	}
	if req.Unit != nil {
		updated.Unit = strings.TrimSpace(*req.Unit)
	}
	if req.Price != nil {
		if *req.Price < 0 {
			return domain.StockItem{}, fmt.Errorf("%w: negative price", store.ErrInvalidInput)
		}
		updated.Price = *req.Price
	}
	if req.CostPrice != nil {
		if *req.CostPrice < 0 {
			return domain.StockItem{}, fmt.Errorf("%w: negative cost price", store.ErrInvalidInput)
		}
		updated.CostPrice = *req.CostPrice
	}
	if req.MinStock != nil {
		if *req.MinStock < 0 {
			return domain.StockItem{}, fmt.Errorf("%w: negative reorder threshold", store.ErrInvalidInput)
		}
		updated.MinStock = *req.MinStock
	}
	updated.UpdatedAt = time.Now().UTC()

	saved, err := s.repo.UpdateStock(ctx, updated)
	if err != nil {
		return domain.StockItem{}, err
	}
	return *saved, nil
}

// AdjustStockQuantity sets an absolute quantity, used by restock and
// manual correction flows.
func (s *Service) AdjustStockQuantity(ctx context.Context, id int64, quantity int) (domain.StockItem, error) {
	if quantity < 0 {
		return domain.StockItem{}, fmt.Errorf("%w: negative quantity", store.ErrInvalidInput)
	}

	var adjusted domain.StockItem
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		item, err := tx.GetStock(ctx, id)
		if err != nil {
			return err
		}
		now := time.Now().UTC()
		if err := tx.SetStockQuantity(ctx, id, quantity, now); err != nil {
			return err
		}
		adjusted = *item
		adjusted.Quantity = quantity
		adjusted.UpdatedAt = now
		return nil
	})
	if err != nil {
		return domain.StockItem{}, err
	}
	return adjusted, nil
}

func (s *Service) DeleteStock(ctx context.Context, id int64) error {
	return s.repo.DeleteStock(ctx, id)
}

// LowStock returns items at or below their reorder threshold.
func (s *Service) LowStock(ctx context.Context) ([]domain.StockItem, error) {
	items, err := s.repo.ListStock(ctx)
	if err != nil {
		return nil, err
	}
	low := make([]domain.StockItem, 0, 8)
	for _, item := range items {
		if item.Quantity <= item.MinStock {
			low = append(low, item)
		}
	}
	return low, nil
}

// --- Checkout and void ---

// Checkout validates the whole cart before any write, then decrements
// stock, snapshots line prices/costs and appends the sale in one atomic
// unit. A zero tendered amount on a cash sale means exact payment.
func (s *Service) Checkout(ctx context.Context, req domain.CheckoutRequest) (domain.SaleTransaction, error) {
	if len(req.Items) == 0 {
		return domain.SaleTransaction{}, fmt.Errorf("%w: empty cart", store.ErrInvalidInput)
	}
	for _, line := range req.Items {
		if line.Qty < 1 {
			return domain.SaleTransaction{}, fmt.Errorf("%w: line quantity must be at least 1", store.ErrInvalidInput)
		}
	}
	if req.Payment < 0 {
		return domain.SaleTransaction{}, fmt.Errorf("%w: negative payment", store.ErrInvalidInput)
	}
	customerID := normalizeCustomerID(req.CustomerID)
	if req.IsDebt && customerID == nil {
		return domain.SaleTransaction{}, store.ErrCreditRequiresCustomer
	}

	var created domain.SaleTransaction
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		now := time.Now().UTC()

		var total int64
		items := make([]domain.LineItem, 0, len(req.Items))
		for _, line := range req.Items {
			item, err := tx.GetStock(ctx, line.StockID)
			if err != nil {
				if errors.Is(err, store.ErrNotFound) {
					return fmt.Errorf("%w: stock %d", store.ErrNotFound, line.StockID)
				}
				return err
			}
			if item.Quantity < line.Qty {
				return fmt.Errorf("%w: %s", store.ErrInsufficientStock, item.Name)
			}
			if err := tx.SetStockQuantity(ctx, item.ID, item.Quantity-line.Qty, now); err != nil {
				return err
			}
			items = append(items, domain.LineItem{
				StockID:   item.ID,
				Name:      item.Name,
				Qty:       line.Qty,
				Price:     item.Price,
				CostPrice: item.CostPrice,
			})
			total += item.Price * int64(line.Qty)
		}

		var payment, change int64
		switch {
		case req.IsDebt:
			payment, change = 0, 0
		case req.Payment == 0:
			// Exact cash shortcut.
			payment, change = total, 0
		case req.Payment < total:
			return fmt.Errorf("%w: tendered %d of %d", store.ErrInsufficientPayment, req.Payment, total)
		default:
			payment, change = req.Payment, req.Payment-total
		}

		if req.IsDebt {
			customer, err := tx.GetCustomer(ctx, *customerID)
			if err != nil {
				if errors.Is(err, store.ErrNotFound) {
					return store.ErrCreditRequiresCustomer
				}
				return err
			}
			if err := tx.SetCustomerDebt(ctx, customer.ID, customer.TotalDebt+total, now); err != nil {
				return err
			}
		}

		saved, err := tx.InsertTransaction(ctx, domain.SaleTransaction{
			Date:       now,
			Total:      total,
			Payment:    payment,
			Change:     change,
			Items:      items,
			CustomerID: customerID,
			IsDebt:     req.IsDebt,
		})
		if err != nil {
			return err
		}
		created = *saved
		return nil
	})
	if err != nil {
		return domain.SaleTransaction{}, err
	}
	return created, nil
}

// VoidTransaction deletes a sale and restores quantities for every
// stock row that still exists; rows deleted since the sale are skipped
// rather than failing the void. Debt reversal only happens when the
// service was configured for it.
func (s *Service) VoidTransaction(ctx context.Context, id int64) (domain.SaleTransaction, error) {
	var voided domain.SaleTransaction
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		sale, err := tx.GetTransaction(ctx, id)
		if err != nil {
			return err
		}
		now := time.Now().UTC()

		for _, line := range sale.Items {
			item, err := tx.GetStock(ctx, line.StockID)
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			if err := tx.SetStockQuantity(ctx, item.ID, item.Quantity+line.Qty, now); err != nil {
				return err
			}
		}

		if s.voidRestoresDebt && sale.IsDebt && sale.CustomerID != nil {
			customer, err := tx.GetCustomer(ctx, *sale.CustomerID)
			switch {
			case errors.Is(err, store.ErrNotFound):
				// Customer gone: nothing to reverse.
			case err != nil:
				return err
			default:
				balance := customer.TotalDebt - sale.Total
				if balance < 0 {
					balance = 0
				}
				if err := tx.SetCustomerDebt(ctx, customer.ID, balance, now); err != nil {
					return err
				}
			}
		}

		if err := tx.DeleteTransaction(ctx, id); err != nil {
			return err
		}
		voided = *sale
		return nil
	})
	if err != nil {
		return domain.SaleTransaction{}, err
	}
	return voided, nil
}

func (s *Service) ListTransactions(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.SaleTransaction, error) {
	if limit < 1 {
		limit = 200
	}
	return s.repo.ListTransactions(ctx, from, to, limit)
}

func (s *Service) GetTransaction(ctx context.Context, id int64) (*domain.SaleTransaction, error) {
	return s.repo.GetTransaction(ctx, id)
}

// --- Customers and credit ---

func (s *Service) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	return s.repo.ListCustomers(ctx)
}

func (s *Service) GetCustomer(ctx context.Context, id int64) (*domain.Customer, error) {
	return s.repo.GetCustomer(ctx, id)
}

// ListDebtors returns customers with an outstanding balance.
func (s *Service) ListDebtors(ctx context.Context) ([]domain.Customer, error) {
	customers, err := s.repo.ListCustomers(ctx)
	if err != nil {
		return nil, err
	}
	debtors := make([]domain.Customer, 0, len(customers))
	for _, c := range customers {
		if c.TotalDebt > 0 {
			debtors = append(debtors, c)
		}
	}
	return debtors, nil
}

func (s *Service) CreateCustomer(ctx context.Context, req domain.CustomerCreateRequest) (domain.Customer, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Phone = strings.TrimSpace(req.Phone)
	if req.Name == "" {
		return domain.Customer{}, fmt.Errorf("%w: name is required", store.ErrInvalidInput)
	}

	created, err := s.repo.CreateCustomer(ctx, domain.Customer{
		Name:      req.Name,
		Phone:     req.Phone,
		UpdatedAt: time.Now().UTC(),
	})
	if err != nil {
		return domain.Customer{}, err
	}
	return *created, nil
}

func (s *Service) DeleteCustomer(ctx context.Context, id int64) error {
	return s.repo.DeleteCustomer(ctx, id)
}

func (s *Service) ListDebtPayments(ctx context.Context, customerID int64) ([]domain.DebtPayment, error) {
	return s.repo.ListDebtPayments(ctx, customerID)
}

// RepayDebt decreases the balance, clamping at zero, and appends the
// payment with the requested amount so the log reflects cash actually
// received even on overpayment.
func (s *Service) RepayDebt(ctx context.Context, customerID int64, amount int64) (domain.RepayDebtResponse, error) {
	if amount <= 0 {
		return domain.RepayDebtResponse{}, fmt.Errorf("%w: payment must be positive", store.ErrInvalidInput)
	}

	var resp domain.RepayDebtResponse
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		customer, err := tx.GetCustomer(ctx, customerID)
		if err != nil {
			return err
		}
		now := time.Now().UTC()

		balance := customer.TotalDebt - amount
		if balance < 0 {
			balance = 0
		}
		if err := tx.SetCustomerDebt(ctx, customer.ID, balance, now); err != nil {
			return err
		}
		payment, err := tx.InsertDebtPayment(ctx, domain.DebtPayment{
			CustomerID: customer.ID,
			Amount:     amount,
			Date:       now,
		})
		if err != nil {
			return err
		}

		resp.Customer = *customer
		resp.Customer.TotalDebt = balance
		resp.Customer.UpdatedAt = now
		resp.Payment = *payment
		return nil
	})
	if err != nil {
		return domain.RepayDebtResponse{}, err
	}
	return resp, nil
}

// --- Consignment ---

// CreateConsignment moves goods from the warehouse to a reseller,
// snapshotting the current price and cost on the consignment line.
func (s *Service) CreateConsignment(ctx context.Context, req domain.ConsignmentCreateRequest) (domain.Consignment, error) {
	if req.Qty < 1 {
		return domain.Consignment{}, fmt.Errorf("%w: quantity must be at least 1", store.ErrInvalidInput)
	}

	var created domain.Consignment
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		if _, err := tx.GetCustomer(ctx, req.CustomerID); err != nil {
			return err
		}
		item, err := tx.GetStock(ctx, req.StockID)
		if err != nil {
			return err
		}
		if item.Quantity < req.Qty {
			return fmt.Errorf("%w: %s", store.ErrInsufficientStock, item.Name)
		}
		now := time.Now().UTC()

		if err := tx.SetStockQuantity(ctx, item.ID, item.Quantity-req.Qty, now); err != nil {
			return err
		}
		saved, err := tx.InsertConsignment(ctx, domain.Consignment{
			Date:       now,
			CustomerID: req.CustomerID,
			Status:     domain.ConsignmentStatusOpen,
			Items: []domain.ConsignmentLine{{
				StockID:    item.ID,
				Name:       item.Name,
				InitialQty: req.Qty,
				CostPrice:  item.CostPrice,
				Price:      item.Price,
			}},
		})
		if err != nil {
			return err
		}
		created = *saved
		return nil
	})
	if err != nil {
		return domain.Consignment{}, err
	}
	return created, nil
}

// SettleConsignment reconciles sold vs returned quantities. Any line
// reported above its initial quantity rejects the whole settlement.
// Revenue is priced at the consignment's captured prices, not the
// catalog's current ones. A settlement with nothing sold still closes
// the consignment without creating a sale.
func (s *Service) SettleConsignment(ctx context.Context, id int64, req domain.ConsignmentSettleRequest) (domain.ConsignmentSettleResponse, error) {
	var resp domain.ConsignmentSettleResponse
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		consignment, err := tx.GetConsignment(ctx, id)
		if err != nil {
			return err
		}
		if consignment.Status != domain.ConsignmentStatusOpen {
			return fmt.Errorf("%w: consignment already settled", store.ErrInvalidInput)
		}
		now := time.Now().UTC()

		var revenue int64
		saleItems := make([]domain.LineItem, 0, len(consignment.Items))
		for _, line := range consignment.Items {
			sold := req.Sold[line.StockID]
			if sold < 0 {
				return fmt.Errorf("%w: negative sold quantity", store.ErrInvalidInput)
			}
			if sold > line.InitialQty {
				return fmt.Errorf("%w: %s", store.ErrOverSale, line.Name)
			}

			// Returned units go back to the catalog only while the row
			// still exists; the sold revenue is recorded either way.
			if returned := line.InitialQty - sold; returned > 0 {
				item, err := tx.GetStock(ctx, line.StockID)
				switch {
				case errors.Is(err, store.ErrNotFound):
					// Stock row deleted while the goods were out.
				case err != nil:
					return err
				default:
					if err := tx.SetStockQuantity(ctx, item.ID, item.Quantity+returned, now); err != nil {
						return err
					}
				}
			}
			if sold > 0 {
				revenue += int64(sold) * line.Price
				saleItems = append(saleItems, domain.LineItem{
					StockID:   line.StockID,
					Name:      line.Name,
					Qty:       sold,
					Price:     line.Price,
					CostPrice: line.CostPrice,
				})
			}
		}

		if len(saleItems) > 0 {
			customerID := consignment.CustomerID
			sale, err := tx.InsertTransaction(ctx, domain.SaleTransaction{
				Date:       now,
				Total:      revenue,
				Payment:    revenue,
				Change:     0,
				Items:      saleItems,
				CustomerID: &customerID,
				IsDebt:     false,
			})
			if err != nil {
				return err
			}
			resp.Sale = sale
		}

		if err := tx.MarkConsignmentSettled(ctx, id, now); err != nil {
			return err
		}
		resp.Consignment = *consignment
		resp.Consignment.Status = domain.ConsignmentStatusSettled
		settledAt := now
		resp.Consignment.SettledAt = &settledAt
		return nil
	})
	if err != nil {
		return domain.ConsignmentSettleResponse{}, err
	}
	return resp, nil
}

func (s *Service) ListConsignments(ctx context.Context, status string) ([]domain.Consignment, error) {
	if status != "" && status != domain.ConsignmentStatusOpen && status != domain.ConsignmentStatusSettled {
		return nil, fmt.Errorf("%w: unknown consignment status %q", store.ErrInvalidInput, status)
	}
	return s.repo.ListConsignments(ctx, status)
}

func (s *Service) GetConsignment(ctx context.Context, id int64) (*domain.Consignment, error) {
	return s.repo.GetConsignment(ctx, id)
}

// --- Backup ---

// Export captures stocks and transactions under one transactional read
// so the snapshot is internally consistent.
func (s *Service) Export(ctx context.Context) (backup.Snapshot, error) {
	var snap backup.Snapshot
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		stocks, err := tx.AllStock(ctx)
		if err != nil {
			return err
		}
		sales, err := tx.AllTransactions(ctx)
		if err != nil {
			return err
		}
		snap = backup.New(stocks, sales, time.Now().UTC())
		return nil
	})
	if err != nil {
		return backup.Snapshot{}, err
	}
	return snap, nil
}

// Import destructively replaces stocks and transactions with the
// snapshot contents. It is a restore, not a merge.
func (s *Service) Import(ctx context.Context, snap backup.Snapshot) error {
	if err := snap.Validate(); err != nil {
		return err
	}
	return s.repo.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		if err := tx.ReplaceStock(ctx, snap.Stocks); err != nil {
			return err
		}
		return tx.ReplaceTransactions(ctx, snap.Transactions)
	})
}

// --- Reports ---

// DailySummary aggregates revenue, profit and sale count for one
// calendar day (UTC). Summaries are served from the report cache when
// available; a cache failure only costs a recompute.
func (s *Service) DailySummary(ctx context.Context, date string) (domain.DailySummary, error) {
	day, err := time.Parse("2006-01-02", date)
	if err != nil {
		return domain.DailySummary{}, fmt.Errorf("%w: date must be YYYY-MM-DD", store.ErrInvalidInput)
	}

	key := "report:daily:" + date
	if cached, ok, err := s.reports.Get(ctx, key); err == nil && ok {
		return *cached, nil
	} else if err != nil {
		log.Printf("[service] WARN: report cache get %s: %v", key, err)
	}

	from := day.UTC()
	to := from.Add(24 * time.Hour)
	sales, err := s.repo.ListTransactions(ctx, from, to, 0)
	if err != nil {
		return domain.DailySummary{}, err
	}

	summary := domain.DailySummary{Date: date, Transactions: len(sales)}
	for _, sale := range sales {
		summary.Revenue += sale.Total
		for _, line := range sale.Items {
			summary.Profit += (line.Price - line.CostPrice) * int64(line.Qty)
		}
	}

	if err := s.reports.Set(ctx, key, &summary, s.reportTTL); err != nil {
		log.Printf("[service] WARN: report cache set %s: %v", key, err)
	}
	return summary, nil
}

func normalizeCustomerID(id *int64) *int64 {
	if id == nil || *id == 0 {
		return nil
	}
	v := *id
	return &v
}
