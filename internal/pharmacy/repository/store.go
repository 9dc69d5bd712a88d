// Package repository persists pharmacy inventory in PostgreSQL.
package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/medflow/pharmacy-backend/internal/pharmacy/domain"
	"github.com/medflow/pharmacy-backend/internal/pharmacy/service"
	"github.com/medflow/pharmacy-backend/pkg/database"
	"github.com/medflow/pharmacy-backend/pkg/errors"
)

const (
	productColumns   = `id, code, name, expiry_threshold_days, low_stock_threshold, created_at`
	stockColumns     = `id, product_id, total_on_hand, status, batch_sequence, updated_at`
	batchColumns     = `id, stock_id, product_id, batch_code, on_hand, expiry_date, expiry_estimated, status, created_at, updated_at`
	orderColumns     = `id, reference, status, date_ordered, date_received, created_at, updated_at`
	orderItemColumns = `id, order_id, product_id, supplier_id, quantity_ordered, unit_price, created_at, updated_at`
	receiptColumns   = `id, order_item_id, batch_id, quantity_received, expiry_date, date_received, received_by, remarks, updated_at`
	ledgerColumns    = `id, product_id, batch_id, batch_code, type, quantity_change, on_hand_before, on_hand, reference_id, performed_by, remarks, created_at`
	eventColumns     = `id, order_id, previous_status, new_status, performed_by, notes, created_at`
)

// Store is the PostgreSQL implementation of service.Store. Each unit of
// work is one transaction with a bounded lock wait.
type Store struct {
	db          *database.DB
	lockTimeout time.Duration
}

var _ service.Store = (*Store)(nil)

// NewStore creates a store. lockTimeout bounds row lock waits; zero waits
// indefinitely.
func NewStore(db *database.DB, lockTimeout time.Duration) *Store {
	return &Store{db: db, lockTimeout: lockTimeout}
}

// WithinTx runs fn in a transaction. Driver errors are mapped to AppErrors.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx service.Tx) error) error {
	err := s.db.WithLockTimeout(ctx, s.lockTimeout, func(ctx context.Context, tx *sqlx.Tx) error {
		return fn(ctx, &Tx{tx: tx})
	})
	return database.Classify(err, "inventory transaction failed")
}

// Migrate applies the schema.
func (s *Store) Migrate(ctx context.Context) error {
	return s.db.Transaction(ctx, func(ctx context.Context, tx *sqlx.Tx) error {
		for _, stmt := range Migrations() {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return err
			}
		}
		return nil
	})
}

// CreateProduct inserts a product.
func (s *Store) CreateProduct(ctx context.Context, p *domain.Product) error {
	query := `
		INSERT INTO products (id, code, name, expiry_threshold_days, low_stock_threshold)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`
	err := s.db.QueryRowxContext(ctx, query,
		p.ID, p.Code, p.Name, p.ExpiryThresholdDays, p.LowStockThreshold,
	).Scan(&p.CreatedAt)
	return database.Classify(err, "failed to create product")
}

// CreateOrder inserts an order.
func (s *Store) CreateOrder(ctx context.Context, o *domain.Order) error {
	query := `
		INSERT INTO orders (id, reference, status, date_ordered)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at
	`
	err := s.db.QueryRowxContext(ctx, query,
		o.ID, o.Reference, o.Status, o.DateOrdered,
	).Scan(&o.CreatedAt, &o.UpdatedAt)
	return database.Classify(err, "failed to create order")
}

// CreateOrderItem inserts an order item.
func (s *Store) CreateOrderItem(ctx context.Context, item *domain.OrderItem) error {
	query := `
		INSERT INTO order_items (id, order_id, product_id, supplier_id, quantity_ordered, unit_price)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`
	err := s.db.QueryRowxContext(ctx, query,
		item.ID, item.OrderID, item.ProductID, item.SupplierID, item.QuantityOrdered, item.UnitPrice,
	).Scan(&item.CreatedAt, &item.UpdatedAt)
	return database.Classify(err, "failed to create order item")
}

// Tx implements service.Tx over one SQL transaction.
type Tx struct {
	tx *sqlx.Tx
}

var _ service.Tx = (*Tx)(nil)

func (t *Tx) get(ctx context.Context, dest any, resource, query string, args ...any) error {
	if err := t.tx.GetContext(ctx, dest, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return errors.NotFound(resource)
		}
		return err
	}
	return nil
}

func (t *Tx) exec(ctx context.Context, resource, query string, args ...any) error {
	result, err := t.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return errors.NotFound(resource)
	}
	return nil
}

func (t *Tx) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	var p domain.Product
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`
	if err := t.get(ctx, &p, "product", query, id); err != nil {
		return nil, err
	}
	return &p, nil
}

func (t *Tx) LockOrderItem(ctx context.Context, id string) (*domain.OrderItem, error) {
	var item domain.OrderItem
	query := `SELECT ` + orderItemColumns + ` FROM order_items WHERE id = $1 FOR UPDATE`
	if err := t.get(ctx, &item, "order item", query, id); err != nil {
		return nil, err
	}
	return &item, nil
}

func (t *Tx) ListOrderItems(ctx context.Context, orderID string) ([]domain.OrderItem, error) {
	items := []domain.OrderItem{}
	query := `SELECT ` + orderItemColumns + ` FROM order_items WHERE order_id = $1 ORDER BY id`
	if err := t.tx.SelectContext(ctx, &items, query, orderID); err != nil {
		return nil, err
	}
	return items, nil
}

func (t *Tx) UpdateOrderItem(ctx context.Context, item *domain.OrderItem) error {
	query := `
		UPDATE order_items SET quantity_ordered = $2, unit_price = $3, updated_at = $4
		WHERE id = $1
	`
	return t.exec(ctx, "order item", query, item.ID, item.QuantityOrdered, item.UnitPrice, item.UpdatedAt)
}

func (t *Tx) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	var o domain.Order
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	if err := t.get(ctx, &o, "order", query, id); err != nil {
		return nil, err
	}
	return &o, nil
}

func (t *Tx) LockOrder(ctx context.Context, id string) (*domain.Order, error) {
	var o domain.Order
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1 FOR UPDATE`
	if err := t.get(ctx, &o, "order", query, id); err != nil {
		return nil, err
	}
	return &o, nil
}

func (t *Tx) UpdateOrder(ctx context.Context, o *domain.Order) error {
	query := `
		UPDATE orders SET status = $2, date_received = $3, updated_at = $4
		WHERE id = $1
	`
	return t.exec(ctx, "order", query, o.ID, o.Status, o.DateReceived, o.UpdatedAt)
}

func (t *Tx) CreateOrderEvent(ctx context.Context, e *domain.OrderEvent) error {
	query := `
		INSERT INTO order_events (` + eventColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := t.tx.ExecContext(ctx, query,
		e.ID, e.OrderID, e.PreviousStatus, e.NewStatus, e.PerformedBy, e.Notes, e.CreatedAt,
	)
	return err
}

func (t *Tx) ListOrderEvents(ctx context.Context, orderID string) ([]domain.OrderEvent, error) {
	events := []domain.OrderEvent{}
	query := `SELECT ` + eventColumns + ` FROM order_events WHERE order_id = $1 ORDER BY seq`
	if err := t.tx.SelectContext(ctx, &events, query, orderID); err != nil {
		return nil, err
	}
	return events, nil
}

func (t *Tx) GetReceipt(ctx context.Context, id string) (*domain.ReceiptRecord, error) {
	var r domain.ReceiptRecord
	query := `SELECT ` + receiptColumns + ` FROM receipts WHERE id = $1`
	if err := t.get(ctx, &r, "receipt", query, id); err != nil {
		return nil, err
	}
	return &r, nil
}

func (t *Tx) SumReceipts(ctx context.Context, orderID string) (map[string]int, error) {
	var rows []struct {
		OrderItemID string `db:"order_item_id"`
		Total       int    `db:"total"`
	}
	query := `
		SELECT r.order_item_id, COALESCE(SUM(r.quantity_received), 0) AS total
		FROM receipts r
		JOIN order_items i ON i.id = r.order_item_id
		WHERE i.order_id = $1
		GROUP BY r.order_item_id
	`
	if err := t.tx.SelectContext(ctx, &rows, query, orderID); err != nil {
		return nil, err
	}

	sums := make(map[string]int, len(rows))
	for _, row := range rows {
		sums[row.OrderItemID] = row.Total
	}
	return sums, nil
}

func (t *Tx) SumItemReceipts(ctx context.Context, orderItemID string) (int, error) {
	var total int
	query := `SELECT COALESCE(SUM(quantity_received), 0) FROM receipts WHERE order_item_id = $1`
	if err := t.tx.GetContext(ctx, &total, query, orderItemID); err != nil {
		return 0, err
	}
	return total, nil
}

func (t *Tx) CreateReceipt(ctx context.Context, r *domain.ReceiptRecord) error {
	query := `
		INSERT INTO receipts (` + receiptColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := t.tx.ExecContext(ctx, query,
		r.ID, r.OrderItemID, r.BatchID, r.QuantityReceived, r.ExpiryDate,
		r.DateReceived, r.ReceivedBy, r.Remarks, r.UpdatedAt,
	)
	return err
}

func (t *Tx) UpdateReceipt(ctx context.Context, r *domain.ReceiptRecord) error {
	query := `
		UPDATE receipts SET batch_id = $2, quantity_received = $3, remarks = $4, updated_at = $5
		WHERE id = $1
	`
	return t.exec(ctx, "receipt", query, r.ID, r.BatchID, r.QuantityReceived, r.Remarks, r.UpdatedAt)
}

// LockStock creates the stock row on first use, then locks it. Concurrent
// creators for the same product converge on the unique product_id.
func (t *Tx) LockStock(ctx context.Context, productID, newID string, now time.Time) (*domain.Stock, error) {
	insert := `
		INSERT INTO stocks (id, product_id, total_on_hand, status, batch_sequence, updated_at)
		VALUES ($1, $2, 0, $3, 0, $4)
		ON CONFLICT (product_id) DO NOTHING
	`
	if _, err := t.tx.ExecContext(ctx, insert, newID, productID, domain.StatusOutOfStock, now); err != nil {
		if mapped := database.MapPQError(err); mapped != nil && errors.Is(mapped, errors.ErrBadRequest) {
			return nil, errors.NotFound("product")
		}
		return nil, err
	}

	var st domain.Stock
	query := `SELECT ` + stockColumns + ` FROM stocks WHERE product_id = $1 FOR UPDATE`
	if err := t.get(ctx, &st, "stock", query, productID); err != nil {
		return nil, err
	}
	return &st, nil
}

func (t *Tx) GetStock(ctx context.Context, productID string) (*domain.Stock, error) {
	var st domain.Stock
	query := `SELECT ` + stockColumns + ` FROM stocks WHERE product_id = $1`
	if err := t.get(ctx, &st, "stock", query, productID); err != nil {
		return nil, err
	}
	return &st, nil
}

func (t *Tx) ListStocks(ctx context.Context) ([]domain.Stock, error) {
	stocks := []domain.Stock{}
	query := `SELECT ` + stockColumns + ` FROM stocks ORDER BY product_id`
	if err := t.tx.SelectContext(ctx, &stocks, query); err != nil {
		return nil, err
	}
	return stocks, nil
}

func (t *Tx) UpdateStock(ctx context.Context, st *domain.Stock) error {
	query := `
		UPDATE stocks SET total_on_hand = $2, status = $3, batch_sequence = $4, updated_at = $5
		WHERE id = $1
	`
	return t.exec(ctx, "stock", query, st.ID, st.TotalOnHand, st.Status, st.BatchSequence, st.UpdatedAt)
}

func (t *Tx) GetBatch(ctx context.Context, id string) (*domain.Batch, error) {
	var b domain.Batch
	query := `SELECT ` + batchColumns + ` FROM batches WHERE id = $1`
	if err := t.get(ctx, &b, "batch", query, id); err != nil {
		return nil, err
	}
	return &b, nil
}

func (t *Tx) ListBatches(ctx context.Context, stockID string) ([]domain.Batch, error) {
	batches := []domain.Batch{}
	query := `SELECT ` + batchColumns + ` FROM batches WHERE stock_id = $1 ORDER BY expiry_date, id`
	if err := t.tx.SelectContext(ctx, &batches, query, stockID); err != nil {
		return nil, err
	}
	return batches, nil
}

func (t *Tx) CreateBatch(ctx context.Context, b *domain.Batch) error {
	query := `
		INSERT INTO batches (` + batchColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := t.tx.ExecContext(ctx, query,
		b.ID, b.StockID, b.ProductID, b.BatchCode, b.OnHand, b.ExpiryDate,
		b.ExpiryEstimated, b.Status, b.CreatedAt, b.UpdatedAt,
	)
	return err
}

func (t *Tx) UpdateBatch(ctx context.Context, b *domain.Batch) error {
	query := `
		UPDATE batches SET on_hand = $2, status = $3, updated_at = $4
		WHERE id = $1
	`
	return t.exec(ctx, "batch", query, b.ID, b.OnHand, b.Status, b.UpdatedAt)
}

func (t *Tx) DeleteBatch(ctx context.Context, id string) error {
	return t.exec(ctx, "batch", `DELETE FROM batches WHERE id = $1`, id)
}

func (t *Tx) AppendLedger(ctx context.Context, e *domain.LedgerEntry) error {
	query := `
		INSERT INTO ledger_entries (` + ledgerColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := t.tx.ExecContext(ctx, query,
		e.ID, e.ProductID, e.BatchID, e.BatchCode, e.Type, e.QuantityChange,
		e.OnHandBefore, e.OnHand, e.ReferenceID, e.PerformedBy, e.Remarks, e.CreatedAt,
	)
	return err
}

func (t *Tx) ListLedger(ctx context.Context, productID string, limit int) ([]domain.LedgerEntry, error) {
	entries := []domain.LedgerEntry{}
	query := `
		SELECT ` + ledgerColumns + ` FROM ledger_entries
		WHERE product_id = $1
		ORDER BY seq DESC
		LIMIT $2
	`
	if err := t.tx.SelectContext(ctx, &entries, query, productID, limit); err != nil {
		return nil, err
	}
	return entries, nil
}

func (t *Tx) LedgerSummary(ctx context.Context, productID string) (int, *domain.LedgerEntry, error) {
	var sum int
	if err := t.tx.GetContext(ctx, &sum,
		`SELECT COALESCE(SUM(quantity_change), 0) FROM ledger_entries WHERE product_id = $1`, productID,
	); err != nil {
		return 0, nil, err
	}

	entries, err := t.ListLedger(ctx, productID, 1)
	if err != nil {
		return 0, nil, err
	}
	if len(entries) == 0 {
		return sum, nil, nil
	}
	return sum, &entries[0], nil
}
