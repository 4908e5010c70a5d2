// Package sqlite implements the store on an embedded SQLite database.
// It is the default persistent backend for single-machine deployments.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"warungku/backend/internal/domain"
	"warungku/backend/internal/store"
)

// Store wraps a *sql.DB opened against a single SQLite file.
type Store struct {
	db *sql.DB
}

// Open creates the database file (and its parent directory) if needed
// and runs pending migrations. The busy timeout plus WAL keeps readers
// from failing while a writer holds the file; _txlock=immediate makes
// every transaction take the write lock up front so WithTx units never
// deadlock on lock upgrade.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	dsn := path + "?_pragma=busy_timeout=5000&_pragma=journal_mode=WAL&_pragma=foreign_keys=1&_txlock=immediate"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// A single writer connection sidesteps SQLITE_BUSY under load.
	db.SetMaxOpenConns(1)

	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// migrate walks the schema version ladder recorded in PRAGMA
// user_version. Each step is applied in its own transaction; a partly
// migrated database is never left behind.
func migrate(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	for ; version < len(migrations); version++ {
		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("migrate to v%d: %w", version+1, err)
		}
		for _, stmt := range migrations[version] {
			if _, err := tx.Exec(stmt); err != nil {
				tx.Rollback()
				return fmt.Errorf("migrate to v%d: %w", version+1, err)
			}
		}
		if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", version+1)); err != nil {
			tx.Rollback()
			return fmt.Errorf("migrate to v%d: %w", version+1, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("migrate to v%d: %w", version+1, err)
		}
	}
	return nil
}

// migrations[i] upgrades from schema version i to i+1. The ladder
// mirrors how the data model grew: stocks first, then sales, cost
// prices, customers and credit, reorder thresholds, and finally
// consignment.
var migrations = [][]string{
	// v1: stock catalog.
	{
		`CREATE TABLE stocks (
			id         INTEGER PRIMARY KEY,
			name       TEXT NOT NULL,
			sku        TEXT NOT NULL DEFAULT '',
			category   TEXT NOT NULL DEFAULT '',
			unit       TEXT NOT NULL DEFAULT '',
			quantity   INTEGER NOT NULL DEFAULT 0,
			price      INTEGER NOT NULL DEFAULT 0,
			updated_at TEXT NOT NULL
		)`,
	},
	// v2: sales with immutable line snapshots.
	{
		`CREATE TABLE transactions (
			id      INTEGER PRIMARY KEY,
			date    TEXT NOT NULL,
			total   INTEGER NOT NULL DEFAULT 0,
			payment INTEGER NOT NULL DEFAULT 0,
			change  INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE transaction_items (
			transaction_id INTEGER NOT NULL REFERENCES transactions(id) ON DELETE CASCADE,
			stock_id       INTEGER NOT NULL,
			name           TEXT NOT NULL,
			qty            INTEGER NOT NULL,
			price          INTEGER NOT NULL
		)`,
		`CREATE INDEX idx_transaction_items_txn ON transaction_items(transaction_id)`,
		`CREATE INDEX idx_transactions_date ON transactions(date)`,
	},
	// v3: cost prices, backfilled to zero for pre-existing rows.
	{
		`ALTER TABLE stocks ADD COLUMN cost_price INTEGER NOT NULL DEFAULT 0`,
		`ALTER TABLE transaction_items ADD COLUMN cost_price INTEGER NOT NULL DEFAULT 0`,
	},
	// v4: customers and credit sales.
	{
		`CREATE TABLE customers (
			id         INTEGER PRIMARY KEY,
			name       TEXT NOT NULL,
			phone      TEXT NOT NULL DEFAULT '',
			total_debt INTEGER NOT NULL DEFAULT 0,
			updated_at TEXT NOT NULL
		)`,
		`CREATE TABLE debt_payments (
			id          INTEGER PRIMARY KEY,
			customer_id INTEGER NOT NULL REFERENCES customers(id),
			amount      INTEGER NOT NULL,
			date        TEXT NOT NULL
		)`,
		`CREATE INDEX idx_debt_payments_customer ON debt_payments(customer_id)`,
		`ALTER TABLE transactions ADD COLUMN customer_id INTEGER`,
		`ALTER TABLE transactions ADD COLUMN is_debt INTEGER NOT NULL DEFAULT 0`,
	},
	// v5: reorder threshold, defaulting to 5 like the seed catalog.
	{
		`ALTER TABLE stocks ADD COLUMN min_stock INTEGER NOT NULL DEFAULT 5`,
	},
	// v6: consignment.
	{
		`CREATE TABLE consignments (
			id          INTEGER PRIMARY KEY,
			date        TEXT NOT NULL,
			customer_id INTEGER NOT NULL REFERENCES customers(id),
			status      TEXT NOT NULL DEFAULT 'OPEN',
			settled_at  TEXT
		)`,
		`CREATE TABLE consignment_items (
			consignment_id INTEGER NOT NULL REFERENCES consignments(id) ON DELETE CASCADE,
			stock_id       INTEGER NOT NULL,
			name           TEXT NOT NULL,
			initial_qty    INTEGER NOT NULL,
			cost_price     INTEGER NOT NULL,
			price          INTEGER NOT NULL
		)`,
		`CREATE INDEX idx_consignment_items_cons ON consignment_items(consignment_id)`,
	},
}

func fmtTime(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse stored timestamp %q: %w", s, err)
	}
	return t, nil
}

// querier is satisfied by both *sql.DB and *sql.Tx so the scan helpers
// below serve the Repository and Tx sides alike.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// --- Repository: stock ---

const stockColumns = `id, name, sku, category, unit, quantity, price, cost_price, min_stock, updated_at`

func scanStock(row interface{ Scan(...any) error }) (*domain.StockItem, error) {
	var item domain.StockItem
	var updated string
	err := row.Scan(&item.ID, &item.Name, &item.SKU, &item.Category, &item.Unit,
		&item.Quantity, &item.Price, &item.CostPrice, &item.MinStock, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if item.UpdatedAt, err = parseTime(updated); err != nil {
		return nil, err
	}
	return &item, nil
}

func listStock(ctx context.Context, q querier) ([]domain.StockItem, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+stockColumns+` FROM stocks ORDER BY category, name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.StockItem, 0, 32)
	for rows.Next() {
		item, err := scanStock(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

func getStock(ctx context.Context, q querier, id int64) (*domain.StockItem, error) {
	return scanStock(q.QueryRowContext(ctx, `SELECT `+stockColumns+` FROM stocks WHERE id = ?`, id))
}

func (s *Store) ListStock(ctx context.Context) ([]domain.StockItem, error) {
	return listStock(ctx, s.db)
}

func (s *Store) GetStock(ctx context.Context, id int64) (*domain.StockItem, error) {
	return getStock(ctx, s.db, id)
}

func (s *Store) CreateStock(ctx context.Context, item domain.StockItem) (*domain.StockItem, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO stocks (name, sku, category, unit, quantity, price, cost_price, min_stock, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.Name, item.SKU, item.Category, item.Unit,
		item.Quantity, item.Price, item.CostPrice, item.MinStock, fmtTime(item.UpdatedAt))
	if err != nil {
		return nil, err
	}
	if item.ID, err = res.LastInsertId(); err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) UpdateStock(ctx context.Context, item domain.StockItem) (*domain.StockItem, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE stocks SET name = ?, sku = ?, category = ?, unit = ?, quantity = ?,
		 price = ?, cost_price = ?, min_stock = ?, updated_at = ? WHERE id = ?`,
		item.Name, item.SKU, item.Category, item.Unit, item.Quantity,
		item.Price, item.CostPrice, item.MinStock, fmtTime(item.UpdatedAt), item.ID)
	if err != nil {
		return nil, err
	}
	if n, err := res.RowsAffected(); err != nil {
		return nil, err
	} else if n == 0 {
		return nil, store.ErrNotFound
	}
	return &item, nil
}

func (s *Store) DeleteStock(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM stocks WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// --- Repository: transactions ---

func scanSale(row interface{ Scan(...any) error }) (*domain.SaleTransaction, error) {
	var sale domain.SaleTransaction
	var date string
	var customerID sql.NullInt64
	err := row.Scan(&sale.ID, &date, &sale.Total, &sale.Payment, &sale.Change, &customerID, &sale.IsDebt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if sale.Date, err = parseTime(date); err != nil {
		return nil, err
	}
	if customerID.Valid {
		sale.CustomerID = &customerID.Int64
	}
	return &sale, nil
}

func saleItems(ctx context.Context, q querier, saleID int64) ([]domain.LineItem, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT stock_id, name, qty, price, cost_price FROM transaction_items
		 WHERE transaction_id = ? ORDER BY rowid`, saleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.LineItem, 0, 4)
	for rows.Next() {
		var li domain.LineItem
		if err := rows.Scan(&li.StockID, &li.Name, &li.Qty, &li.Price, &li.CostPrice); err != nil {
			return nil, err
		}
		items = append(items, li)
	}
	return items, rows.Err()
}

func getTransaction(ctx context.Context, q querier, id int64) (*domain.SaleTransaction, error) {
	sale, err := scanSale(q.QueryRowContext(ctx,
		`SELECT id, date, total, payment, change, customer_id, is_debt FROM transactions WHERE id = ?`, id))
	if err != nil {
		return nil, err
	}
	if sale.Items, err = saleItems(ctx, q, sale.ID); err != nil {
		return nil, err
	}
	return sale, nil
}

func (s *Store) ListTransactions(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.SaleTransaction, error) {
	query := `SELECT id, date, total, payment, change, customer_id, is_debt FROM transactions`
	args := make([]any, 0, 3)
	where := ""
	if !from.IsZero() {
		where = ` WHERE date >= ?`
		args = append(args, fmtTime(from))
	}
	if !to.IsZero() {
		if where == "" {
			where = ` WHERE date < ?`
		} else {
			where += ` AND date < ?`
		}
		args = append(args, fmtTime(to))
	}
	query += where + ` ORDER BY date DESC, id DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sales := make([]domain.SaleTransaction, 0, 32)
	for rows.Next() {
		sale, err := scanSale(rows)
		if err != nil {
			return nil, err
		}
		sales = append(sales, *sale)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range sales {
		if sales[i].Items, err = saleItems(ctx, s.db, sales[i].ID); err != nil {
			return nil, err
		}
	}
	return sales, nil
}

func (s *Store) GetTransaction(ctx context.Context, id int64) (*domain.SaleTransaction, error) {
	return getTransaction(ctx, s.db, id)
}

// --- Repository: customers ---

const customerColumns = `id, name, phone, total_debt, updated_at`

func scanCustomer(row interface{ Scan(...any) error }) (*domain.Customer, error) {
	var c domain.Customer
	var updated string
	err := row.Scan(&c.ID, &c.Name, &c.Phone, &c.TotalDebt, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if c.UpdatedAt, err = parseTime(updated); err != nil {
		return nil, err
	}
	return &c, nil
}

func getCustomer(ctx context.Context, q querier, id int64) (*domain.Customer, error) {
	return scanCustomer(q.QueryRowContext(ctx, `SELECT `+customerColumns+` FROM customers WHERE id = ?`, id))
}

func (s *Store) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+customerColumns+` FROM customers ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	customers := make([]domain.Customer, 0, 16)
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, err
		}
		customers = append(customers, *c)
	}
	return customers, rows.Err()
}

func (s *Store) GetCustomer(ctx context.Context, id int64) (*domain.Customer, error) {
	return getCustomer(ctx, s.db, id)
}

func (s *Store) CreateCustomer(ctx context.Context, c domain.Customer) (*domain.Customer, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO customers (name, phone, total_debt, updated_at) VALUES (?, ?, ?, ?)`,
		c.Name, c.Phone, c.TotalDebt, fmtTime(c.UpdatedAt))
	if err != nil {
		return nil, err
	}
	if c.ID, err = res.LastInsertId(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Store) DeleteCustomer(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM customers WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) ListDebtPayments(ctx context.Context, customerID int64) ([]domain.DebtPayment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, customer_id, amount, date FROM debt_payments
		 WHERE customer_id = ? ORDER BY date DESC, id DESC`, customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	payments := make([]domain.DebtPayment, 0, 8)
	for rows.Next() {
		var p domain.DebtPayment
		var date string
		if err := rows.Scan(&p.ID, &p.CustomerID, &p.Amount, &date); err != nil {
			return nil, err
		}
		if p.Date, err = parseTime(date); err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

// --- Repository: consignments ---

func scanConsignment(row interface{ Scan(...any) error }) (*domain.Consignment, error) {
	var c domain.Consignment
	var date string
	var settled sql.NullString
	err := row.Scan(&c.ID, &date, &c.CustomerID, &c.Status, &settled)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if c.Date, err = parseTime(date); err != nil {
		return nil, err
	}
	if settled.Valid {
		at, err := parseTime(settled.String)
		if err != nil {
			return nil, err
		}
		c.SettledAt = &at
	}
	return &c, nil
}

func consignmentItems(ctx context.Context, q querier, consignmentID int64) ([]domain.ConsignmentLine, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT stock_id, name, initial_qty, cost_price, price FROM consignment_items
		 WHERE consignment_id = ? ORDER BY rowid`, consignmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	lines := make([]domain.ConsignmentLine, 0, 2)
	for rows.Next() {
		var line domain.ConsignmentLine
		if err := rows.Scan(&line.StockID, &line.Name, &line.InitialQty, &line.CostPrice, &line.Price); err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

func getConsignment(ctx context.Context, q querier, id int64) (*domain.Consignment, error) {
	c, err := scanConsignment(q.QueryRowContext(ctx,
		`SELECT id, date, customer_id, status, settled_at FROM consignments WHERE id = ?`, id))
	if err != nil {
		return nil, err
	}
	if c.Items, err = consignmentItems(ctx, q, c.ID); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Store) ListConsignments(ctx context.Context, status string) ([]domain.Consignment, error) {
	query := `SELECT id, date, customer_id, status, settled_at FROM consignments`
	args := make([]any, 0, 1)
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY id DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	consignments := make([]domain.Consignment, 0, 8)
	for rows.Next() {
		c, err := scanConsignment(rows)
		if err != nil {
			return nil, err
		}
		consignments = append(consignments, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range consignments {
		if consignments[i].Items, err = consignmentItems(ctx, s.db, consignments[i].ID); err != nil {
			return nil, err
		}
	}
	return consignments, nil
}

func (s *Store) GetConsignment(ctx context.Context, id int64) (*domain.Consignment, error) {
	return getConsignment(ctx, s.db, id)
}

// --- Transactional unit ---

// WithTx runs fn inside one database transaction. An error from fn
// rolls everything back; a commit failure surfaces as ErrCommitFailed
// so callers can distinguish lost work from rejected work.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := fn(ctx, &sqlTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrCommitFailed, err)
	}
	return nil
}

type sqlTx struct {
	tx *sql.Tx
}

func (t *sqlTx) GetStock(ctx context.Context, id int64) (*domain.StockItem, error) {
	return getStock(ctx, t.tx, id)
}

func (t *sqlTx) SetStockQuantity(ctx context.Context, id int64, quantity int, at time.Time) error {
	res, err := t.tx.ExecContext(ctx,
		`UPDATE stocks SET quantity = ?, updated_at = ? WHERE id = ?`,
		quantity, fmtTime(at), id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (t *sqlTx) AllStock(ctx context.Context) ([]domain.StockItem, error) {
	return listStock(ctx, t.tx)
}

func (t *sqlTx) ReplaceStock(ctx context.Context, items []domain.StockItem) error {
	if _, err := t.tx.ExecContext(ctx, `DELETE FROM stocks`); err != nil {
		return err
	}
	for _, item := range items {
		if item.ID == 0 {
			return fmt.Errorf("%w: stock row without id", store.ErrInvalidFormat)
		}
		if _, err := t.tx.ExecContext(ctx,
			`INSERT INTO stocks (id, name, sku, category, unit, quantity, price, cost_price, min_stock, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			item.ID, item.Name, item.SKU, item.Category, item.Unit,
			item.Quantity, item.Price, item.CostPrice, item.MinStock, fmtTime(item.UpdatedAt)); err != nil {
			return err
		}
	}
	return nil
}

func (t *sqlTx) GetTransaction(ctx context.Context, id int64) (*domain.SaleTransaction, error) {
	return getTransaction(ctx, t.tx, id)
}

func insertSaleItems(ctx context.Context, tx *sql.Tx, saleID int64, items []domain.LineItem) error {
	for _, li := range items {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO transaction_items (transaction_id, stock_id, name, qty, price, cost_price)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			saleID, li.StockID, li.Name, li.Qty, li.Price, li.CostPrice); err != nil {
			return err
		}
	}
	return nil
}

func (t *sqlTx) InsertTransaction(ctx context.Context, sale domain.SaleTransaction) (*domain.SaleTransaction, error) {
	var customerID any
	if sale.CustomerID != nil {
		customerID = *sale.CustomerID
	}
	res, err := t.tx.ExecContext(ctx,
		`INSERT INTO transactions (date, total, payment, change, customer_id, is_debt)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		fmtTime(sale.Date), sale.Total, sale.Payment, sale.Change, customerID, sale.IsDebt)
	if err != nil {
		return nil, err
	}
	if sale.ID, err = res.LastInsertId(); err != nil {
		return nil, err
	}
	if err := insertSaleItems(ctx, t.tx, sale.ID, sale.Items); err != nil {
		return nil, err
	}
	return &sale, nil
}

func (t *sqlTx) DeleteTransaction(ctx context.Context, id int64) error {
	res, err := t.tx.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (t *sqlTx) AllTransactions(ctx context.Context) ([]domain.SaleTransaction, error) {
	rows, err := t.tx.QueryContext(ctx,
		`SELECT id, date, total, payment, change, customer_id, is_debt FROM transactions ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sales := make([]domain.SaleTransaction, 0, 32)
	for rows.Next() {
		sale, err := scanSale(rows)
		if err != nil {
			return nil, err
		}
		sales = append(sales, *sale)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range sales {
		if sales[i].Items, err = saleItems(ctx, t.tx, sales[i].ID); err != nil {
			return nil, err
		}
	}
	return sales, nil
}

func (t *sqlTx) ReplaceTransactions(ctx context.Context, sales []domain.SaleTransaction) error {
	if _, err := t.tx.ExecContext(ctx, `DELETE FROM transaction_items`); err != nil {
		return err
	}
	if _, err := t.tx.ExecContext(ctx, `DELETE FROM transactions`); err != nil {
		return err
	}
	for _, sale := range sales {
		if sale.ID == 0 {
			return fmt.Errorf("%w: transaction row without id", store.ErrInvalidFormat)
		}
		var customerID any
		if sale.CustomerID != nil {
			customerID = *sale.CustomerID
		}
		if _, err := t.tx.ExecContext(ctx,
			`INSERT INTO transactions (id, date, total, payment, change, customer_id, is_debt)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			sale.ID, fmtTime(sale.Date), sale.Total, sale.Payment, sale.Change, customerID, sale.IsDebt); err != nil {
			return err
		}
		if err := insertSaleItems(ctx, t.tx, sale.ID, sale.Items); err != nil {
			return err
		}
	}
	return nil
}

func (t *sqlTx) GetCustomer(ctx context.Context, id int64) (*domain.Customer, error) {
	return getCustomer(ctx, t.tx, id)
}

func (t *sqlTx) SetCustomerDebt(ctx context.Context, id int64, totalDebt int64, at time.Time) error {
	res, err := t.tx.ExecContext(ctx,
		`UPDATE customers SET total_debt = ?, updated_at = ? WHERE id = ?`,
		totalDebt, fmtTime(at), id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (t *sqlTx) InsertDebtPayment(ctx context.Context, payment domain.DebtPayment) (*domain.DebtPayment, error) {
	res, err := t.tx.ExecContext(ctx,
		`INSERT INTO debt_payments (customer_id, amount, date) VALUES (?, ?, ?)`,
		payment.CustomerID, payment.Amount, fmtTime(payment.Date))
	if err != nil {
		return nil, err
	}
	if payment.ID, err = res.LastInsertId(); err != nil {
		return nil, err
	}
	return &payment, nil
}

func (t *sqlTx) GetConsignment(ctx context.Context, id int64) (*domain.Consignment, error) {
	return getConsignment(ctx, t.tx, id)
}

func (t *sqlTx) InsertConsignment(ctx context.Context, consignment domain.Consignment) (*domain.Consignment, error) {
	var settled any
	if consignment.SettledAt != nil {
		settled = fmtTime(*consignment.SettledAt)
	}
	res, err := t.tx.ExecContext(ctx,
		`INSERT INTO consignments (date, customer_id, status, settled_at) VALUES (?, ?, ?, ?)`,
		fmtTime(consignment.Date), consignment.CustomerID, consignment.Status, settled)
	if err != nil {
		return nil, err
	}
	if consignment.ID, err = res.LastInsertId(); err != nil {
		return nil, err
	}
	for _, line := range consignment.Items {
		if _, err := t.tx.ExecContext(ctx,
			`INSERT INTO consignment_items (consignment_id, stock_id, name, initial_qty, cost_price, price)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			consignment.ID, line.StockID, line.Name, line.InitialQty, line.CostPrice, line.Price); err != nil {
			return nil, err
		}
	}
	return &consignment, nil
}

func (t *sqlTx) MarkConsignmentSettled(ctx context.Context, id int64, at time.Time) error {
	res, err := t.tx.ExecContext(ctx,
		`UPDATE consignments SET status = ?, settled_at = ? WHERE id = ? AND status = ?`,
		domain.ConsignmentStatusSettled, fmtTime(at), id, domain.ConsignmentStatusOpen)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return store.ErrNotFound
	}
	return nil
}
