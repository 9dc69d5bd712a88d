package service

import (
	"context"
	"time"

	"github.com/medflow/pharmacy-backend/internal/pharmacy/domain"
)

// Store runs units of work against persistent state.
type Store interface {
	// WithinTx runs fn atomically. Every write made through tx is rolled
	// back when fn returns an error.
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Tx is the view of the store inside one unit of work. Lock methods hold
// their row until the unit of work ends; callers always lock in the order
// order item, stock, order. Not-found rows are reported as NotFound errors.
type Tx interface {
	GetProduct(ctx context.Context, id string) (*domain.Product, error)

	LockOrderItem(ctx context.Context, id string) (*domain.OrderItem, error)
	ListOrderItems(ctx context.Context, orderID string) ([]domain.OrderItem, error)
	UpdateOrderItem(ctx context.Context, item *domain.OrderItem) error

	GetOrder(ctx context.Context, id string) (*domain.Order, error)
	LockOrder(ctx context.Context, id string) (*domain.Order, error)
	UpdateOrder(ctx context.Context, order *domain.Order) error
	CreateOrderEvent(ctx context.Context, event *domain.OrderEvent) error
	ListOrderEvents(ctx context.Context, orderID string) ([]domain.OrderEvent, error)

	GetReceipt(ctx context.Context, id string) (*domain.ReceiptRecord, error)
	// SumReceipts returns the received quantity per order item of an order.
	SumReceipts(ctx context.Context, orderID string) (map[string]int, error)
	SumItemReceipts(ctx context.Context, orderItemID string) (int, error)
	CreateReceipt(ctx context.Context, receipt *domain.ReceiptRecord) error
	UpdateReceipt(ctx context.Context, receipt *domain.ReceiptRecord) error

	// LockStock returns the locked stock of a product, creating it with
	// newID when the product has none yet.
	LockStock(ctx context.Context, productID, newID string, now time.Time) (*domain.Stock, error)
	GetStock(ctx context.Context, productID string) (*domain.Stock, error)
	ListStocks(ctx context.Context) ([]domain.Stock, error)
	UpdateStock(ctx context.Context, stock *domain.Stock) error

	GetBatch(ctx context.Context, id string) (*domain.Batch, error)
	// ListBatches returns the batches of a stock by ascending expiry date.
	ListBatches(ctx context.Context, stockID string) ([]domain.Batch, error)
	CreateBatch(ctx context.Context, batch *domain.Batch) error
	UpdateBatch(ctx context.Context, batch *domain.Batch) error
	// DeleteBatch removes a batch; ledger entries keep their batch code
	// but lose the reference.
	DeleteBatch(ctx context.Context, id string) error

	AppendLedger(ctx context.Context, entry *domain.LedgerEntry) error
	// ListLedger returns the newest entries of a product first.
	ListLedger(ctx context.Context, productID string, limit int) ([]domain.LedgerEntry, error)
	// LedgerSummary returns the sum of quantity changes and the newest entry.
	LedgerSummary(ctx context.Context, productID string) (int, *domain.LedgerEntry, error)
}
