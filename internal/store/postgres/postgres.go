// Package postgres implements the store on PostgreSQL for deployments
// that outgrow the embedded database.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"warungku/backend/internal/domain"
	"warungku/backend/internal/store"
)

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	if err := migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// migrate applies the schema version ladder tracked in
// schema_migrations. Steps run one transaction each so a failed upgrade
// leaves the database at a well-defined version.
func migrate(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    INT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`)
	if err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	var version int
	err = db.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&version)
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	for ; version < len(migrations); version++ {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("migrate to v%d: %w", version+1, err)
		}
		for _, stmt := range migrations[version] {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("migrate to v%d: %w", version+1, err)
			}
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (version) VALUES ($1)`, version+1); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migrate to v%d: %w", version+1, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("migrate to v%d: %w", version+1, err)
		}
	}
	return nil
}

var migrations = [][]string{
	// v1: stock catalog.
	{
		`CREATE TABLE stocks (
			id         BIGSERIAL PRIMARY KEY,
			name       TEXT NOT NULL,
			sku        TEXT NOT NULL DEFAULT '',
			category   TEXT NOT NULL DEFAULT '',
			unit       TEXT NOT NULL DEFAULT '',
			quantity   INT NOT NULL DEFAULT 0,
			price      BIGINT NOT NULL DEFAULT 0,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
	},
	// v2: sales with immutable line snapshots.
	{
		`CREATE TABLE transactions (
			id      BIGSERIAL PRIMARY KEY,
			date    TIMESTAMPTZ NOT NULL,
			total   BIGINT NOT NULL DEFAULT 0,
			payment BIGINT NOT NULL DEFAULT 0,
			change  BIGINT NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE transaction_items (
			id             BIGSERIAL PRIMARY KEY,
			transaction_id BIGINT NOT NULL REFERENCES transactions(id) ON DELETE CASCADE,
			stock_id       BIGINT NOT NULL,
			name           TEXT NOT NULL,
			qty            INT NOT NULL,
			price          BIGINT NOT NULL
		)`,
		`CREATE INDEX idx_transaction_items_txn ON transaction_items(transaction_id)`,
		`CREATE INDEX idx_transactions_date ON transactions(date)`,
	},
	// v3: cost prices, backfilled to zero for pre-existing rows.
	{
		`ALTER TABLE stocks ADD COLUMN cost_price BIGINT NOT NULL DEFAULT 0`,
		`ALTER TABLE transaction_items ADD COLUMN cost_price BIGINT NOT NULL DEFAULT 0`,
	},
	// v4: customers and credit sales.
	{
		`CREATE TABLE customers (
			id         BIGSERIAL PRIMARY KEY,
			name       TEXT NOT NULL,
			phone      TEXT NOT NULL DEFAULT '',
			total_debt BIGINT NOT NULL DEFAULT 0,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE debt_payments (
			id          BIGSERIAL PRIMARY KEY,
			customer_id BIGINT NOT NULL REFERENCES customers(id),
			amount      BIGINT NOT NULL,
			date        TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX idx_debt_payments_customer ON debt_payments(customer_id)`,
		`ALTER TABLE transactions ADD COLUMN customer_id BIGINT`,
		`ALTER TABLE transactions ADD COLUMN is_debt BOOLEAN NOT NULL DEFAULT false`,
	},
	// v5: reorder threshold, defaulting to 5 like the seed catalog.
	{
		`ALTER TABLE stocks ADD COLUMN min_stock INT NOT NULL DEFAULT 5`,
	},
	// v6: consignment.
	{
		`CREATE TABLE consignments (
			id          BIGSERIAL PRIMARY KEY,
			date        TIMESTAMPTZ NOT NULL,
			customer_id BIGINT NOT NULL REFERENCES customers(id),
			status      TEXT NOT NULL DEFAULT 'OPEN',
			settled_at  TIMESTAMPTZ
		)`,
		`CREATE TABLE consignment_items (
			id             BIGSERIAL PRIMARY KEY,
			consignment_id BIGINT NOT NULL REFERENCES consignments(id) ON DELETE CASCADE,
			stock_id       BIGINT NOT NULL,
			name           TEXT NOT NULL,
			initial_qty    INT NOT NULL,
			cost_price     BIGINT NOT NULL,
			price          BIGINT NOT NULL
		)`,
		`CREATE INDEX idx_consignment_items_cons ON consignment_items(consignment_id)`,
	},
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// --- Repository: stock ---

const stockColumns = `id, name, sku, category, unit, quantity, price, cost_price, min_stock, updated_at`

func scanStock(row interface{ Scan(...any) error }) (*domain.StockItem, error) {
	var item domain.StockItem
	err := row.Scan(&item.ID, &item.Name, &item.SKU, &item.Category, &item.Unit,
		&item.Quantity, &item.Price, &item.CostPrice, &item.MinStock, &item.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	item.UpdatedAt = item.UpdatedAt.UTC()
	return &item, nil
}

func listStock(ctx context.Context, q querier) ([]domain.StockItem, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT `+stockColumns+`
		FROM stocks
		ORDER BY category, name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.StockItem, 0, 64)
	for rows.Next() {
		item, err := scanStock(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) ListStock(ctx context.Context) ([]domain.StockItem, error) {
	return listStock(ctx, s.db)
}

func (s *Store) GetStock(ctx context.Context, id int64) (*domain.StockItem, error) {
	return scanStock(s.db.QueryRowContext(ctx, `
		SELECT `+stockColumns+`
		FROM stocks
		WHERE id = $1
	`, id))
}

func (s *Store) CreateStock(ctx context.Context, item domain.StockItem) (*domain.StockItem, error) {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO stocks (name, sku, category, unit, quantity, price, cost_price, min_stock, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING id
	`, item.Name, item.SKU, item.Category, item.Unit,
		item.Quantity, item.Price, item.CostPrice, item.MinStock, item.UpdatedAt).Scan(&item.ID)
	if err != nil {
		return nil, err
	}
	created := item
	return &created, nil
}

func (s *Store) UpdateStock(ctx context.Context, item domain.StockItem) (*domain.StockItem, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE stocks
		SET name = $2, sku = $3, category = $4, unit = $5, quantity = $6,
			price = $7, cost_price = $8, min_stock = $9, updated_at = $10
		WHERE id = $1
	`, item.ID, item.Name, item.SKU, item.Category, item.Unit, item.Quantity,
		item.Price, item.CostPrice, item.MinStock, item.UpdatedAt)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrNotFound
	}
	updated := item
	return &updated, nil
}

func (s *Store) DeleteStock(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM stocks WHERE id = $1`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// --- Repository: transactions ---

const saleColumns = `id, date, total, payment, change, customer_id, is_debt`

func scanSale(row interface{ Scan(...any) error }) (*domain.SaleTransaction, error) {
	var sale domain.SaleTransaction
	var customerID sql.NullInt64
	err := row.Scan(&sale.ID, &sale.Date, &sale.Total, &sale.Payment, &sale.Change, &customerID, &sale.IsDebt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	sale.Date = sale.Date.UTC()
	if customerID.Valid {
		id := customerID.Int64
		sale.CustomerID = &id
	}
	return &sale, nil
}

func saleItems(ctx context.Context, q querier, saleID int64) ([]domain.LineItem, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT stock_id, name, qty, price, cost_price
		FROM transaction_items
		WHERE transaction_id = $1
		ORDER BY id ASC
	`, saleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.LineItem, 0, 8)
	for rows.Next() {
		var li domain.LineItem
		if err := rows.Scan(&li.StockID, &li.Name, &li.Qty, &li.Price, &li.CostPrice); err != nil {
			return nil, err
		}
		items = append(items, li)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func getTransaction(ctx context.Context, q querier, id int64) (*domain.SaleTransaction, error) {
	sale, err := scanSale(q.QueryRowContext(ctx, `
		SELECT `+saleColumns+`
		FROM transactions
		WHERE id = $1
	`, id))
	if err != nil {
		return nil, err
	}
	if sale.Items, err = saleItems(ctx, q, sale.ID); err != nil {
		return nil, err
	}
	return sale, nil
}

func (s *Store) ListTransactions(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.SaleTransaction, error) {
	query := `
		SELECT ` + saleColumns + `
		FROM transactions
		WHERE ($1::timestamptz IS NULL OR date >= $1)
			AND ($2::timestamptz IS NULL OR date < $2)
		ORDER BY date DESC, id DESC
	`
	args := []any{nullTime(from), nullTime(to)}
	if limit > 0 {
		query += ` LIMIT $3`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sales := make([]domain.SaleTransaction, 0, 64)
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
	err := row.Scan(&c.ID, &c.Name, &c.Phone, &c.TotalDebt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	c.UpdatedAt = c.UpdatedAt.UTC()
	return &c, nil
}

func (s *Store) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+customerColumns+`
		FROM customers
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	customers := make([]domain.Customer, 0, 32)
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, err
		}
		customers = append(customers, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return customers, nil
}

func (s *Store) GetCustomer(ctx context.Context, id int64) (*domain.Customer, error) {
	return scanCustomer(s.db.QueryRowContext(ctx, `
		SELECT `+customerColumns+`
		FROM customers
		WHERE id = $1
	`, id))
}

func (s *Store) CreateCustomer(ctx context.Context, c domain.Customer) (*domain.Customer, error) {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO customers (name, phone, total_debt, updated_at)
		VALUES ($1,$2,$3,$4)
		RETURNING id
	`, c.Name, c.Phone, c.TotalDebt, c.UpdatedAt).Scan(&c.ID)
	if err != nil {
		return nil, err
	}
	created := c
	return &created, nil
}

func (s *Store) DeleteCustomer(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM customers WHERE id = $1`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) ListDebtPayments(ctx context.Context, customerID int64) ([]domain.DebtPayment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, customer_id, amount, date
		FROM debt_payments
		WHERE customer_id = $1
		ORDER BY date DESC, id DESC
	`, customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	payments := make([]domain.DebtPayment, 0, 16)
	for rows.Next() {
		var p domain.DebtPayment
		if err := rows.Scan(&p.ID, &p.CustomerID, &p.Amount, &p.Date); err != nil {
			return nil, err
		}
		p.Date = p.Date.UTC()
		payments = append(payments, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return payments, nil
}

// --- Repository: consignments ---

const consignmentColumns = `id, date, customer_id, status, settled_at`

func scanConsignment(row interface{ Scan(...any) error }) (*domain.Consignment, error) {
	var c domain.Consignment
	var settledAt sql.NullTime
	err := row.Scan(&c.ID, &c.Date, &c.CustomerID, &c.Status, &settledAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	c.Date = c.Date.UTC()
	if settledAt.Valid {
		at := settledAt.Time.UTC()
		c.SettledAt = &at
	}
	return &c, nil
}

func consignmentItems(ctx context.Context, q querier, consignmentID int64) ([]domain.ConsignmentLine, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT stock_id, name, initial_qty, cost_price, price
		FROM consignment_items
		WHERE consignment_id = $1
		ORDER BY id ASC
	`, consignmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	lines := make([]domain.ConsignmentLine, 0, 4)
	for rows.Next() {
		var line domain.ConsignmentLine
		if err := rows.Scan(&line.StockID, &line.Name, &line.InitialQty, &line.CostPrice, &line.Price); err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}

func getConsignment(ctx context.Context, q querier, id int64) (*domain.Consignment, error) {
	c, err := scanConsignment(q.QueryRowContext(ctx, `
		SELECT `+consignmentColumns+`
		FROM consignments
		WHERE id = $1
	`, id))
	if err != nil {
		return nil, err
	}
	if c.Items, err = consignmentItems(ctx, q, c.ID); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Store) ListConsignments(ctx context.Context, status string) ([]domain.Consignment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+consignmentColumns+`
		FROM consignments
		WHERE ($1 = '' OR status = $1)
		ORDER BY id DESC
	`, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	consignments := make([]domain.Consignment, 0, 16)
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

// WithTx runs fn inside one serializable transaction. Row reads inside
// the unit take FOR UPDATE locks so concurrent checkouts against the
// same stock serialize instead of both committing.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return err
	}
	defer func() { _ = pgTx.Rollback() }()

	if err := fn(ctx, &sqlTx{tx: pgTx}); err != nil {
		return err
	}
	if err := pgTx.Commit(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrCommitFailed, err)
	}
	return nil
}

type sqlTx struct {
	tx *sql.Tx
}

func (t *sqlTx) GetStock(ctx context.Context, id int64) (*domain.StockItem, error) {
	return scanStock(t.tx.QueryRowContext(ctx, `
		SELECT `+stockColumns+`
		FROM stocks
		WHERE id = $1
		FOR UPDATE
	`, id))
}

func (t *sqlTx) SetStockQuantity(ctx context.Context, id int64, quantity int, at time.Time) error {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE stocks
		SET quantity = $2, updated_at = $3
		WHERE id = $1
	`, id, quantity, at)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
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
		_, err := t.tx.ExecContext(ctx, `
			INSERT INTO stocks (id, name, sku, category, unit, quantity, price, cost_price, min_stock, updated_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		`, item.ID, item.Name, item.SKU, item.Category, item.Unit,
			item.Quantity, item.Price, item.CostPrice, item.MinStock, item.UpdatedAt)
		if err != nil {
			return err
		}
	}
	_, err := t.tx.ExecContext(ctx, `
		SELECT setval(pg_get_serial_sequence('stocks', 'id'), COALESCE((SELECT MAX(id) FROM stocks), 0) + 1, false)
	`)
	return err
}

func (t *sqlTx) GetTransaction(ctx context.Context, id int64) (*domain.SaleTransaction, error) {
	sale, err := scanSale(t.tx.QueryRowContext(ctx, `
		SELECT `+saleColumns+`
		FROM transactions
		WHERE id = $1
		FOR UPDATE
	`, id))
	if err != nil {
		return nil, err
	}
	if sale.Items, err = saleItems(ctx, t.tx, sale.ID); err != nil {
		return nil, err
	}
	return sale, nil
}

func insertSaleItems(ctx context.Context, tx *sql.Tx, saleID int64, items []domain.LineItem) error {
	for _, li := range items {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO transaction_items (transaction_id, stock_id, name, qty, price, cost_price)
			VALUES ($1,$2,$3,$4,$5,$6)
		`, saleID, li.StockID, li.Name, li.Qty, li.Price, li.CostPrice)
		if err != nil {
			return err
		}
	}
	return nil
}

func (t *sqlTx) InsertTransaction(ctx context.Context, sale domain.SaleTransaction) (*domain.SaleTransaction, error) {
	err := t.tx.QueryRowContext(ctx, `
		INSERT INTO transactions (date, total, payment, change, customer_id, is_debt)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING id
	`, sale.Date, sale.Total, sale.Payment, sale.Change, nullID(sale.CustomerID), sale.IsDebt).Scan(&sale.ID)
	if err != nil {
		return nil, err
	}
	if err := insertSaleItems(ctx, t.tx, sale.ID, sale.Items); err != nil {
		return nil, err
	}
	created := sale
	return &created, nil
}

func (t *sqlTx) DeleteTransaction(ctx context.Context, id int64) error {
	res, err := t.tx.ExecContext(ctx, `DELETE FROM transactions WHERE id = $1`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (t *sqlTx) AllTransactions(ctx context.Context) ([]domain.SaleTransaction, error) {
	rows, err := t.tx.QueryContext(ctx, `
		SELECT `+saleColumns+`
		FROM transactions
		ORDER BY id ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sales := make([]domain.SaleTransaction, 0, 64)
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
	if _, err := t.tx.ExecContext(ctx, `DELETE FROM transactions`); err != nil {
		return err
	}
	for _, sale := range sales {
		if sale.ID == 0 {
			return fmt.Errorf("%w: transaction row without id", store.ErrInvalidFormat)
		}
		_, err := t.tx.ExecContext(ctx, `
			INSERT INTO transactions (id, date, total, payment, change, customer_id, is_debt)
			VALUES ($1,$2,$3,$4,$5,$6,$7)
		`, sale.ID, sale.Date, sale.Total, sale.Payment, sale.Change, nullID(sale.CustomerID), sale.IsDebt)
		if err != nil {
			return err
		}
		if err := insertSaleItems(ctx, t.tx, sale.ID, sale.Items); err != nil {
			return err
		}
	}
	_, err := t.tx.ExecContext(ctx, `
		SELECT setval(pg_get_serial_sequence('transactions', 'id'), COALESCE((SELECT MAX(id) FROM transactions), 0) + 1, false)
	`)
	return err
}

func (t *sqlTx) GetCustomer(ctx context.Context, id int64) (*domain.Customer, error) {
	return scanCustomer(t.tx.QueryRowContext(ctx, `
		SELECT `+customerColumns+`
		FROM customers
		WHERE id = $1
		FOR UPDATE
	`, id))
}

func (t *sqlTx) SetCustomerDebt(ctx context.Context, id int64, totalDebt int64, at time.Time) error {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE customers
		SET total_debt = $2, updated_at = $3
		WHERE id = $1
	`, id, totalDebt, at)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (t *sqlTx) InsertDebtPayment(ctx context.Context, payment domain.DebtPayment) (*domain.DebtPayment, error) {
	err := t.tx.QueryRowContext(ctx, `
		INSERT INTO debt_payments (customer_id, amount, date)
		VALUES ($1,$2,$3)
		RETURNING id
	`, payment.CustomerID, payment.Amount, payment.Date).Scan(&payment.ID)
	if err != nil {
		return nil, err
	}
	created := payment
	return &created, nil
}

func (t *sqlTx) GetConsignment(ctx context.Context, id int64) (*domain.Consignment, error) {
	c, err := scanConsignment(t.tx.QueryRowContext(ctx, `
		SELECT `+consignmentColumns+`
		FROM consignments
		WHERE id = $1
		FOR UPDATE
	`, id))
	if err != nil {
		return nil, err
	}
	if c.Items, err = consignmentItems(ctx, t.tx, c.ID); err != nil {
		return nil, err
	}
	return c, nil
}

func (t *sqlTx) InsertConsignment(ctx context.Context, consignment domain.Consignment) (*domain.Consignment, error) {
	err := t.tx.QueryRowContext(ctx, `
		INSERT INTO consignments (date, customer_id, status, settled_at)
		VALUES ($1,$2,$3,$4)
		RETURNING id
	`, consignment.Date, consignment.CustomerID, consignment.Status, nullTimePtr(consignment.SettledAt)).Scan(&consignment.ID)
	if err != nil {
		return nil, err
	}
	for _, line := range consignment.Items {
		_, err := t.tx.ExecContext(ctx, `
			INSERT INTO consignment_items (consignment_id, stock_id, name, initial_qty, cost_price, price)
			VALUES ($1,$2,$3,$4,$5,$6)
		`, consignment.ID, line.StockID, line.Name, line.InitialQty, line.CostPrice, line.Price)
		if err != nil {
			return nil, err
		}
	}
	created := consignment
	return &created, nil
}

func (t *sqlTx) MarkConsignmentSettled(ctx context.Context, id int64, at time.Time) error {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE consignments
		SET status = $2, settled_at = $3
		WHERE id = $1 AND status = $4
	`, id, domain.ConsignmentStatusSettled, at, domain.ConsignmentStatusOpen)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func nullID(id *int64) any {
	if id == nil {
		return nil
	}
	return *id
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}

func nullTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}
