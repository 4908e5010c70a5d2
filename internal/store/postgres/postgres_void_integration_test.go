package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"warungku/backend/internal/domain"
	"warungku/backend/internal/store"
)

func TestCheckoutThenVoidRestocksInventory(t *testing.T) {
	databaseURL := os.Getenv("WARUNGKU_TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("set WARUNGKU_TEST_DATABASE_URL to run postgres integration test")
	}

	ctx := context.Background()
	s, err := New(ctx, databaseURL)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})

	stamp := time.Now().UnixNano()
	sku := fmt.Sprintf("VOID-IT-%d", stamp)

	item, err := s.CreateStock(ctx, domain.StockItem{
		Name: "Produk Void IT", SKU: sku, Category: "snack", Unit: "pcs",
		Quantity: 10, Price: 12000, CostPrice: 8000, MinStock: 2,
		UpdatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("create stock: %v", err)
	}

	var saleID int64
	t.Cleanup(func() {
		if saleID != 0 {
			_, _ = s.db.ExecContext(ctx, `DELETE FROM transaction_items WHERE transaction_id = $1`, saleID)
			_, _ = s.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = $1`, saleID)
		}
		_, _ = s.db.ExecContext(ctx, `DELETE FROM stocks WHERE sku = $1`, sku)
	})

	// Checkout-shaped write: decrement plus sale insert in one tx.
	saleDate := time.Now().UTC()
	err = s.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		current, err := tx.GetStock(ctx, item.ID)
		if err != nil {
			return err
		}
		if err := tx.SetStockQuantity(ctx, item.ID, current.Quantity-2, saleDate); err != nil {
			return err
		}
		sale, err := tx.InsertTransaction(ctx, domain.SaleTransaction{
			Date:    saleDate,
			Total:   24000,
			Payment: 25000,
			Change:  1000,
			Items: []domain.LineItem{
				{StockID: item.ID, Name: item.Name, Qty: 2, Price: 12000, CostPrice: 8000},
			},
		})
		if err != nil {
			return err
		}
		saleID = sale.ID
		return nil
	})
	if err != nil {
		t.Fatalf("checkout tx: %v", err)
	}

	got, err := s.GetStock(ctx, item.ID)
	if err != nil {
		t.Fatalf("get stock: %v", err)
	}
	if got.Quantity != 8 {
		t.Fatalf("expected quantity 8 after checkout, got %d", got.Quantity)
	}

	// Void-shaped write: restore the line quantities, drop the sale.
	err = s.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		sale, err := tx.GetTransaction(ctx, saleID)
		if err != nil {
			return err
		}
		for _, line := range sale.Items {
			current, err := tx.GetStock(ctx, line.StockID)
			if err != nil {
				return err
			}
			if err := tx.SetStockQuantity(ctx, line.StockID, current.Quantity+line.Qty, time.Now().UTC()); err != nil {
				return err
			}
		}
		return tx.DeleteTransaction(ctx, saleID)
	})
	if err != nil {
		t.Fatalf("void tx: %v", err)
	}

	got, err = s.GetStock(ctx, item.ID)
	if err != nil {
		t.Fatalf("get stock after void: %v", err)
	}
	if got.Quantity != 10 {
		t.Fatalf("expected stock 10 after void restock, got %d", got.Quantity)
	}

	if _, err := s.GetTransaction(ctx, saleID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected sale gone after void, got %v", err)
	}
	saleID = 0
}
