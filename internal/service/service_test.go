package service

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"warungku/backend/internal/cache"
	"warungku/backend/internal/domain"
	"warungku/backend/internal/store"
	"warungku/backend/internal/store/memory"
)

func newTestService() *Service {
	return New(memory.NewSeeded(), cache.NoopReportCache{}, 5*time.Minute, false)
}

func mustCreateStock(t *testing.T, svc *Service, req domain.StockCreateRequest) domain.StockItem {
	t.Helper()
	item, err := svc.CreateStock(context.Background(), req)
	if err != nil {
		t.Fatalf("create stock: %v", err)
	}
	return item
}

func TestCheckoutDecrementsStockAndSnapshotsLines(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	item := mustCreateStock(t, svc, domain.StockCreateRequest{
		Name: "Air Mineral", SKU: "AIR-01", Category: "beverage", Unit: "pcs",
		Quantity: 10, Price: 1000, CostPrice: 600, MinStock: 2,
	})

	sale, err := svc.Checkout(ctx, domain.CheckoutRequest{
		Items: []domain.CartLine{{StockID: item.ID, Qty: 3}},
	})
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}

	if sale.Total != 3000 {
		t.Fatalf("expected total 3000, got %d", sale.Total)
	}
	// Zero tendered means exact cash.
	if sale.Payment != 3000 || sale.Change != 0 {
		t.Fatalf("expected payment 3000 change 0, got %d / %d", sale.Payment, sale.Change)
	}
	if len(sale.Items) != 1 {
		t.Fatalf("expected 1 line, got %d", len(sale.Items))
	}
	line := sale.Items[0]
	if line.Name != "Air Mineral" || line.Price != 1000 || line.CostPrice != 600 || line.Qty != 3 {
		t.Fatalf("unexpected line snapshot: %+v", line)
	}

	after, err := svc.GetStock(ctx, item.ID)
	if err != nil {
		t.Fatalf("get stock: %v", err)
	}
	if after.Quantity != 7 {
		t.Fatalf("expected quantity 7 after checkout, got %d", after.Quantity)
	}
}

func TestCheckoutComputesChange(t *testing.T) {
	svc := newTestService()

	sale, err := svc.Checkout(context.Background(), domain.CheckoutRequest{
		Items:   []domain.CartLine{{StockID: 1, Qty: 2}},
		Payment: 10000,
	})
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}
	if sale.Total != 7000 {
		t.Fatalf("expected total 7000, got %d", sale.Total)
	}
	if sale.Payment != 10000 || sale.Change != 3000 {
		t.Fatalf("expected payment 10000 change 3000, got %d / %d", sale.Payment, sale.Change)
	}
}

func TestCheckoutInsufficientPayment(t *testing.T) {
	svc := newTestService()

	_, err := svc.Checkout(context.Background(), domain.CheckoutRequest{
		Items:   []domain.CartLine{{StockID: 1, Qty: 2}},
		Payment: 5000,
	})
	if !errors.Is(err, store.ErrInsufficientPayment) {
		t.Fatalf("expected ErrInsufficientPayment, got %v", err)
	}
}

func TestCheckoutInsufficientStockRollsBackEverything(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	// First line would succeed, second exceeds its quantity; the whole
	// cart must be rejected with no stock mutated.
	_, err := svc.Checkout(ctx, domain.CheckoutRequest{
		Items: []domain.CartLine{
			{StockID: 1, Qty: 5},
			{StockID: 4, Qty: 999},
		},
	})
	if !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}

	first, err := svc.GetStock(ctx, 1)
	if err != nil {
		t.Fatalf("get stock: %v", err)
	}
	if first.Quantity != 120 {
		t.Fatalf("expected first stock untouched at 120, got %d", first.Quantity)
	}

	sales, err := svc.ListTransactions(ctx, time.Time{}, time.Time{}, 10)
	if err != nil {
		t.Fatalf("list transactions: %v", err)
	}
	if len(sales) != 0 {
		t.Fatalf("expected no transactions, got %d", len(sales))
	}
}

func TestCheckoutRejectsBadInput(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	if _, err := svc.Checkout(ctx, domain.CheckoutRequest{}); !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("empty cart: expected ErrInvalidInput, got %v", err)
	}
	_, err := svc.Checkout(ctx, domain.CheckoutRequest{Items: []domain.CartLine{{StockID: 1, Qty: 0}}})
	if !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("zero qty: expected ErrInvalidInput, got %v", err)
	}
	_, err = svc.Checkout(ctx, domain.CheckoutRequest{Items: []domain.CartLine{{StockID: 999, Qty: 1}}})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("unknown stock: expected ErrNotFound, got %v", err)
	}
}

func TestCreditCheckoutRequiresCustomer(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	_, err := svc.Checkout(ctx, domain.CheckoutRequest{
		Items:  []domain.CartLine{{StockID: 1, Qty: 1}},
		IsDebt: true,
	})
	if !errors.Is(err, store.ErrCreditRequiresCustomer) {
		t.Fatalf("nil customer: expected ErrCreditRequiresCustomer, got %v", err)
	}

	zero := int64(0)
	_, err = svc.Checkout(ctx, domain.CheckoutRequest{
		Items:      []domain.CartLine{{StockID: 1, Qty: 1}},
		IsDebt:     true,
		CustomerID: &zero,
	})
	if !errors.Is(err, store.ErrCreditRequiresCustomer) {
		t.Fatalf("zero customer id: expected ErrCreditRequiresCustomer, got %v", err)
	}

	missing := int64(999)
	_, err = svc.Checkout(ctx, domain.CheckoutRequest{
		Items:      []domain.CartLine{{StockID: 1, Qty: 1}},
		IsDebt:     true,
		CustomerID: &missing,
	})
	if !errors.Is(err, store.ErrCreditRequiresCustomer) {
		t.Fatalf("unknown customer: expected ErrCreditRequiresCustomer, got %v", err)
	}
}

func TestCreditCheckoutIncreasesDebt(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	customerID := int64(1)

	sale, err := svc.Checkout(ctx, domain.CheckoutRequest{
		Items:      []domain.CartLine{{StockID: 1, Qty: 4}},
		IsDebt:     true,
		CustomerID: &customerID,
	})
	if err != nil {
		t.Fatalf("credit checkout failed: %v", err)
	}
	if !sale.IsDebt || sale.Payment != 0 || sale.Change != 0 {
		t.Fatalf("credit sale must carry zero payment and change: %+v", sale)
	}

	customer, err := svc.GetCustomer(ctx, customerID)
	if err != nil {
		t.Fatalf("get customer: %v", err)
	}
	if customer.TotalDebt != 14000 {
		t.Fatalf("expected debt 14000, got %d", customer.TotalDebt)
	}
}

func TestVoidRestoresStockAndDeletesSale(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	sale, err := svc.Checkout(ctx, domain.CheckoutRequest{
		Items: []domain.CartLine{{StockID: 2, Qty: 3}},
	})
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}

	voided, err := svc.VoidTransaction(ctx, sale.ID)
	if err != nil {
		t.Fatalf("void failed: %v", err)
	}
	if voided.ID != sale.ID {
		t.Fatalf("expected voided sale %d, got %d", sale.ID, voided.ID)
	}

	item, err := svc.GetStock(ctx, 2)
	if err != nil {
		t.Fatalf("get stock: %v", err)
	}
	if item.Quantity != 40 {
		t.Fatalf("expected quantity restored to 40, got %d", item.Quantity)
	}

	if _, err := svc.GetTransaction(ctx, sale.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected sale to be gone, got %v", err)
	}
	// Voiding twice must fail cleanly.
	if _, err := svc.VoidTransaction(ctx, sale.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("double void: expected ErrNotFound, got %v", err)
	}
}

func TestVoidSkipsDeletedStock(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	sale, err := svc.Checkout(ctx, domain.CheckoutRequest{
		Items: []domain.CartLine{
			{StockID: 1, Qty: 2},
			{StockID: 3, Qty: 1},
		},
	})
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}
	if err := svc.DeleteStock(ctx, 3); err != nil {
		t.Fatalf("delete stock: %v", err)
	}

	if _, err := svc.VoidTransaction(ctx, sale.ID); err != nil {
		t.Fatalf("void with deleted stock line failed: %v", err)
	}

	item, err := svc.GetStock(ctx, 1)
	if err != nil {
		t.Fatalf("get stock: %v", err)
	}
	if item.Quantity != 120 {
		t.Fatalf("expected surviving row restored to 120, got %d", item.Quantity)
	}
}

func TestVoidDebtPolicy(t *testing.T) {
	ctx := context.Background()
	customerID := int64(1)

	// Default policy keeps the debt on the books.
	svc := newTestService()
	sale, err := svc.Checkout(ctx, domain.CheckoutRequest{
		Items:      []domain.CartLine{{StockID: 1, Qty: 2}},
		IsDebt:     true,
		CustomerID: &customerID,
	})
	if err != nil {
		t.Fatalf("credit checkout failed: %v", err)
	}
	if _, err := svc.VoidTransaction(ctx, sale.ID); err != nil {
		t.Fatalf("void failed: %v", err)
	}
	customer, err := svc.GetCustomer(ctx, customerID)
	if err != nil {
		t.Fatalf("get customer: %v", err)
	}
	if customer.TotalDebt != 7000 {
		t.Fatalf("default policy: expected debt 7000 to survive the void, got %d", customer.TotalDebt)
	}

	// With the reversal flag on, the void subtracts the sale total.
	svc = New(memory.NewSeeded(), cache.NoopReportCache{}, 5*time.Minute, true)
	sale, err = svc.Checkout(ctx, domain.CheckoutRequest{
		Items:      []domain.CartLine{{StockID: 1, Qty: 2}},
		IsDebt:     true,
		CustomerID: &customerID,
	})
	if err != nil {
		t.Fatalf("credit checkout failed: %v", err)
	}
	if _, err := svc.VoidTransaction(ctx, sale.ID); err != nil {
		t.Fatalf("void failed: %v", err)
	}
	customer, err = svc.GetCustomer(ctx, customerID)
	if err != nil {
		t.Fatalf("get customer: %v", err)
	}
	if customer.TotalDebt != 0 {
		t.Fatalf("reversal policy: expected debt 0, got %d", customer.TotalDebt)
	}
}

func TestRepayDebtClampsAtZeroButRecordsRequestedAmount(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	customerID := int64(2)

	if _, err := svc.Checkout(ctx, domain.CheckoutRequest{
		Items:      []domain.CartLine{{StockID: 1, Qty: 2}},
		IsDebt:     true,
		CustomerID: &customerID,
	}); err != nil {
		t.Fatalf("credit checkout failed: %v", err)
	}

	resp, err := svc.RepayDebt(ctx, customerID, 10000)
	if err != nil {
		t.Fatalf("repay failed: %v", err)
	}
	if resp.Customer.TotalDebt != 0 {
		t.Fatalf("expected balance clamped at 0, got %d", resp.Customer.TotalDebt)
	}
	if resp.Payment.Amount != 10000 {
		t.Fatalf("payment log must keep the requested amount, got %d", resp.Payment.Amount)
	}

	payments, err := svc.ListDebtPayments(ctx, customerID)
	if err != nil {
		t.Fatalf("list payments: %v", err)
	}
	if len(payments) != 1 || payments[0].Amount != 10000 {
		t.Fatalf("unexpected payment log: %+v", payments)
	}
}

func TestRepayDebtRejectsBadInput(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	if _, err := svc.RepayDebt(ctx, 1, 0); !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("zero amount: expected ErrInvalidInput, got %v", err)
	}
	if _, err := svc.RepayDebt(ctx, 1, -500); !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("negative amount: expected ErrInvalidInput, got %v", err)
	}
	if _, err := svc.RepayDebt(ctx, 999, 500); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("unknown customer: expected ErrNotFound, got %v", err)
	}
}

func TestListDebtorsFiltersZeroBalances(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	customerID := int64(1)

	if _, err := svc.Checkout(ctx, domain.CheckoutRequest{
		Items:      []domain.CartLine{{StockID: 1, Qty: 1}},
		IsDebt:     true,
		CustomerID: &customerID,
	}); err != nil {
		t.Fatalf("credit checkout failed: %v", err)
	}

	debtors, err := svc.ListDebtors(ctx)
	if err != nil {
		t.Fatalf("list debtors: %v", err)
	}
	if len(debtors) != 1 || debtors[0].ID != customerID {
		t.Fatalf("expected only customer %d as debtor, got %+v", customerID, debtors)
	}
}

func TestConsignmentLifecycle(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	item := mustCreateStock(t, svc, domain.StockCreateRequest{
		Name: "Dodol Garut", SKU: "DODOL-01", Category: "snack", Unit: "pcs",
		Quantity: 20, Price: 5000, CostPrice: 3000, MinStock: 2,
	})

	consignment, err := svc.CreateConsignment(ctx, domain.ConsignmentCreateRequest{
		CustomerID: 1,
		StockID:    item.ID,
		Qty:        20,
	})
	if err != nil {
		t.Fatalf("create consignment failed: %v", err)
	}
	if consignment.Status != domain.ConsignmentStatusOpen {
		t.Fatalf("expected OPEN consignment, got %s", consignment.Status)
	}

	after, err := svc.GetStock(ctx, item.ID)
	if err != nil {
		t.Fatalf("get stock: %v", err)
	}
	if after.Quantity != 0 {
		t.Fatalf("expected quantity 0 after consigning everything, got %d", after.Quantity)
	}

	resp, err := svc.SettleConsignment(ctx, consignment.ID, domain.ConsignmentSettleRequest{
		Sold: map[int64]int{item.ID: 15},
	})
	if err != nil {
		t.Fatalf("settle failed: %v", err)
	}
	if resp.Consignment.Status != domain.ConsignmentStatusSettled || resp.Consignment.SettledAt == nil {
		t.Fatalf("expected settled consignment: %+v", resp.Consignment)
	}
	if resp.Sale == nil {
		t.Fatal("expected a sale for the sold units")
	}
	if resp.Sale.Total != 75000 || resp.Sale.Payment != 75000 || resp.Sale.Change != 0 {
		t.Fatalf("expected sale of 75000 fully paid, got %+v", resp.Sale)
	}
	if resp.Sale.CustomerID == nil || *resp.Sale.CustomerID != 1 {
		t.Fatalf("sale must reference the consignee: %+v", resp.Sale)
	}

	after, err = svc.GetStock(ctx, item.ID)
	if err != nil {
		t.Fatalf("get stock: %v", err)
	}
	if after.Quantity != 5 {
		t.Fatalf("expected 5 returned units back in stock, got %d", after.Quantity)
	}

	// A settled consignment cannot be settled again.
	_, err = svc.SettleConsignment(ctx, consignment.ID, domain.ConsignmentSettleRequest{
		Sold: map[int64]int{item.ID: 1},
	})
	if !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("re-settle: expected ErrInvalidInput, got %v", err)
	}
}

func TestConsignmentOverSaleLeavesStateUntouched(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	consignment, err := svc.CreateConsignment(ctx, domain.ConsignmentCreateRequest{
		CustomerID: 2,
		StockID:    5,
		Qty:        10,
	})
	if err != nil {
		t.Fatalf("create consignment failed: %v", err)
	}

	_, err = svc.SettleConsignment(ctx, consignment.ID, domain.ConsignmentSettleRequest{
		Sold: map[int64]int{5: 11},
	})
	if !errors.Is(err, store.ErrOverSale) {
		t.Fatalf("expected ErrOverSale, got %v", err)
	}

	got, err := svc.GetConsignment(ctx, consignment.ID)
	if err != nil {
		t.Fatalf("get consignment: %v", err)
	}
	if got.Status != domain.ConsignmentStatusOpen {
		t.Fatalf("expected consignment still OPEN, got %s", got.Status)
	}
	item, err := svc.GetStock(ctx, 5)
	if err != nil {
		t.Fatalf("get stock: %v", err)
	}
	if item.Quantity != 50 {
		t.Fatalf("expected quantity still 50, got %d", item.Quantity)
	}
	sales, err := svc.ListTransactions(ctx, time.Time{}, time.Time{}, 10)
	if err != nil {
		t.Fatalf("list transactions: %v", err)
	}
	if len(sales) != 0 {
		t.Fatalf("expected no sales after rejected settlement, got %d", len(sales))
	}
}

func TestConsignmentSettleRecordsSaleWhenStockDeleted(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	item := mustCreateStock(t, svc, domain.StockCreateRequest{
		Name: "Rempeyek Kacang", SKU: "REMPEYEK-01", Category: "snack", Unit: "pcs",
		Quantity: 20, Price: 5000, CostPrice: 3000, MinStock: 2,
	})
	consignment, err := svc.CreateConsignment(ctx, domain.ConsignmentCreateRequest{
		CustomerID: 1,
		StockID:    item.ID,
		Qty:        20,
	})
	if err != nil {
		t.Fatalf("create consignment failed: %v", err)
	}
	if err := svc.DeleteStock(ctx, item.ID); err != nil {
		t.Fatalf("delete stock: %v", err)
	}

	// Only the quantity restore is skipped for the missing row; the
	// sold units still produce a sale at the captured prices.
	resp, err := svc.SettleConsignment(ctx, consignment.ID, domain.ConsignmentSettleRequest{
		Sold: map[int64]int{item.ID: 15},
	})
	if err != nil {
		t.Fatalf("settle failed: %v", err)
	}
	if resp.Consignment.Status != domain.ConsignmentStatusSettled {
		t.Fatalf("expected settled consignment, got %s", resp.Consignment.Status)
	}
	if resp.Sale == nil {
		t.Fatal("expected a sale for the sold units")
	}
	if resp.Sale.Total != 75000 {
		t.Fatalf("expected sale of 75000, got %d", resp.Sale.Total)
	}
	if len(resp.Sale.Items) != 1 || resp.Sale.Items[0].Qty != 15 {
		t.Fatalf("unexpected sale lines: %+v", resp.Sale.Items)
	}

	if _, err := svc.GetStock(ctx, item.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected stock row to stay deleted, got %v", err)
	}
}

func TestConsignmentSettleWithNothingSold(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	consignment, err := svc.CreateConsignment(ctx, domain.ConsignmentCreateRequest{
		CustomerID: 1,
		StockID:    6,
		Qty:        8,
	})
	if err != nil {
		t.Fatalf("create consignment failed: %v", err)
	}

	resp, err := svc.SettleConsignment(ctx, consignment.ID, domain.ConsignmentSettleRequest{
		Sold: map[int64]int{},
	})
	if err != nil {
		t.Fatalf("settle failed: %v", err)
	}
	if resp.Sale != nil {
		t.Fatalf("expected no sale when nothing sold, got %+v", resp.Sale)
	}
	item, err := svc.GetStock(ctx, 6)
	if err != nil {
		t.Fatalf("get stock: %v", err)
	}
	if item.Quantity != 48 {
		t.Fatalf("expected full quantity 48 restored, got %d", item.Quantity)
	}
}

func TestConsignmentRejectsInsufficientStock(t *testing.T) {
	svc := newTestService()

	_, err := svc.CreateConsignment(context.Background(), domain.ConsignmentCreateRequest{
		CustomerID: 1,
		StockID:    4,
		Qty:        100,
	})
	if !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	if _, err := svc.Checkout(ctx, domain.CheckoutRequest{
		Items: []domain.CartLine{{StockID: 2, Qty: 2}},
	}); err != nil {
		t.Fatalf("checkout failed: %v", err)
	}

	snap, err := svc.Export(ctx)
	if err != nil {
		t.Fatalf("export failed: %v", err)
	}
	if len(snap.Stocks) != 6 || len(snap.Transactions) != 1 {
		t.Fatalf("unexpected snapshot shape: %d stocks, %d transactions", len(snap.Stocks), len(snap.Transactions))
	}

	// Mutate after the export, then restore.
	if _, err := svc.Checkout(ctx, domain.CheckoutRequest{
		Items: []domain.CartLine{{StockID: 2, Qty: 10}},
	}); err != nil {
		t.Fatalf("second checkout failed: %v", err)
	}

	if err := svc.Import(ctx, snap); err != nil {
		t.Fatalf("import failed: %v", err)
	}

	item, err := svc.GetStock(ctx, 2)
	if err != nil {
		t.Fatalf("get stock: %v", err)
	}
	if item.Quantity != 38 {
		t.Fatalf("expected quantity 38 after restore, got %d", item.Quantity)
	}
	sales, err := svc.ListTransactions(ctx, time.Time{}, time.Time{}, 10)
	if err != nil {
		t.Fatalf("list transactions: %v", err)
	}
	if len(sales) != 1 {
		t.Fatalf("expected 1 transaction after restore, got %d", len(sales))
	}
}

func TestImportRejectsIncompleteSnapshot(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	snap, err := svc.Export(ctx)
	if err != nil {
		t.Fatalf("export failed: %v", err)
	}
	snap.Stocks = nil
	if err := svc.Import(ctx, snap); !errors.Is(err, store.ErrInvalidFormat) {
		t.Fatalf("expected ErrInvalidFormat, got %v", err)
	}
}

func TestDailySummary(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	if _, err := svc.Checkout(ctx, domain.CheckoutRequest{
		Items: []domain.CartLine{{StockID: 1, Qty: 10}},
	}); err != nil {
		t.Fatalf("checkout failed: %v", err)
	}

	today := time.Now().UTC().Format("2006-01-02")
	summary, err := svc.DailySummary(ctx, today)
	if err != nil {
		t.Fatalf("summary failed: %v", err)
	}
	if summary.Transactions != 1 {
		t.Fatalf("expected 1 transaction, got %d", summary.Transactions)
	}
	if summary.Revenue != 35000 {
		t.Fatalf("expected revenue 35000, got %d", summary.Revenue)
	}
	// (3500 - 2700) * 10
	if summary.Profit != 8000 {
		t.Fatalf("expected profit 8000, got %d", summary.Profit)
	}

	if _, err := svc.DailySummary(ctx, "not-a-date"); !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("bad date: expected ErrInvalidInput, got %v", err)
	}
}

func TestLowStock(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	if _, err := svc.AdjustStockQuantity(ctx, 2, 3); err != nil {
		t.Fatalf("adjust failed: %v", err)
	}

	low, err := svc.LowStock(ctx)
	if err != nil {
		t.Fatalf("low stock failed: %v", err)
	}
	if len(low) != 1 || low[0].ID != 2 {
		t.Fatalf("expected only stock 2 below threshold, got %+v", low)
	}

	if _, err := svc.AdjustStockQuantity(ctx, 2, -1); !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("negative adjust: expected ErrInvalidInput, got %v", err)
	}
}

// TestCheckoutConservesUnits runs random carts against the seeded
// catalog and checks that no quantity goes negative and that, per item,
// starting quantity equals remaining quantity plus everything sold.
func TestCheckoutConservesUnits(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	rng := rand.New(rand.NewSource(42))

	start := map[int64]int{}
	items, err := svc.ListStock(ctx)
	if err != nil {
		t.Fatalf("list stock: %v", err)
	}
	for _, item := range items {
		start[item.ID] = item.Quantity
	}

	sold := map[int64]int{}
	for i := 0; i < 200; i++ {
		stockID := int64(rng.Intn(6) + 1)
		qty := rng.Intn(30) + 1
		sale, err := svc.Checkout(ctx, domain.CheckoutRequest{
			Items: []domain.CartLine{{StockID: stockID, Qty: qty}},
		})
		if err != nil {
			if !errors.Is(err, store.ErrInsufficientStock) {
				t.Fatalf("iteration %d: unexpected error %v", i, err)
			}
			continue
		}
		sold[stockID] += sale.Items[0].Qty
	}

	items, err = svc.ListStock(ctx)
	if err != nil {
		t.Fatalf("list stock: %v", err)
	}
	for _, item := range items {
		if item.Quantity < 0 {
			t.Fatalf("stock %d went negative: %d", item.ID, item.Quantity)
		}
		if item.Quantity+sold[item.ID] != start[item.ID] {
			t.Fatalf("stock %d: %d remaining + %d sold != %d start",
				item.ID, item.Quantity, sold[item.ID], start[item.ID])
		}
	}
}
