package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/medflow/pharmacy-backend/internal/pharmacy/domain"
	"github.com/medflow/pharmacy-backend/pkg/clock"
)

// StockStatusView is the current stock of a product with its active batches.
type StockStatusView struct {
	ProductID   string            `json:"product_id"`
	ProductName string            `json:"product_name"`
	TotalOnHand int               `json:"total_on_hand"`
	Status      domain.Status     `json:"status"`
	Batches     []BatchStatusView `json:"batches"`
}

// BatchStatusView is one batch within a StockStatusView.
type BatchStatusView struct {
	ID              string        `json:"id"`
	BatchCode       string        `json:"batch_code"`
	OnHand          int           `json:"on_hand"`
	ExpiryDate      time.Time     `json:"expiry_date"`
	ExpiryEstimated bool          `json:"expiry_estimated"`
	Status          domain.Status `json:"status"`
}

// OrderStatusView summarizes an order's receiving progress.
type OrderStatusView struct {
	OrderID       string             `json:"order_id"`
	Reference     string             `json:"reference"`
	Status        domain.OrderStatus `json:"status"`
	TotalOrdered  int                `json:"total_ordered"`
	TotalReceived int                `json:"total_received"`
	DateReceived  *time.Time         `json:"date_received,omitempty"`
	OrderedValue  decimal.Decimal    `json:"ordered_value"`
	ReceivedValue decimal.Decimal    `json:"received_value"`
}

// Reconciliation compares the stored total of a stock with its batches and
// its ledger.
type Reconciliation struct {
	ProductID  string              `json:"product_id"`
	StockTotal int                 `json:"stock_total"`
	BatchSum   int                 `json:"batch_sum"`
	LedgerSum  int                 `json:"ledger_sum"`
	LastEntry  *domain.LedgerEntry `json:"last_entry,omitempty"`
	Consistent bool                `json:"consistent"`
}

// GetStockStatus returns the stock of a product. Batches that are empty are
// left out. Statuses are derived against today on read, so they are current
// even before RefreshStatuses persists the day's transitions.
func (e *Engine) GetStockStatus(ctx context.Context, productID string) (*StockStatusView, error) {
	var view *StockStatusView
	err := e.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		product, err := tx.GetProduct(ctx, productID)
		if err != nil {
			return err
		}
		stock, err := tx.GetStock(ctx, product.ID)
		if err != nil {
			return err
		}
		batches, err := tx.ListBatches(ctx, stock.ID)
		if err != nil {
			return err
		}

		today := clock.Today(e.clock)
		for i := range batches {
			batches[i].Status = domain.ComputeBatchStatus(batches[i], product.ExpiryThresholdDays, product.LowStockThreshold, today)
		}

		view = &StockStatusView{
			ProductID:   product.ID,
			ProductName: product.Name,
			TotalOnHand: stock.TotalOnHand,
			Status:      domain.ComputeStockStatus(batches),
			Batches:     make([]BatchStatusView, 0, len(batches)),
		}
		for _, b := range domain.ActiveBatches(batches) {
			view.Batches = append(view.Batches, BatchStatusView{
				ID:              b.ID,
				BatchCode:       b.BatchCode,
				OnHand:          b.OnHand,
				ExpiryDate:      b.ExpiryDate,
				ExpiryEstimated: b.ExpiryEstimated,
				Status:          b.Status,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

// GetOrderStatus returns the status of an order with its received totals.
func (e *Engine) GetOrderStatus(ctx context.Context, orderID string) (*OrderStatusView, error) {
	var view *OrderStatusView
	err := e.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		order, err := tx.GetOrder(ctx, orderID)
		if err != nil {
			return err
		}
		items, err := tx.ListOrderItems(ctx, order.ID)
		if err != nil {
			return err
		}
		sums, err := tx.SumReceipts(ctx, order.ID)
		if err != nil {
			return err
		}

		view = &OrderStatusView{
			OrderID:       order.ID,
			Reference:     order.Reference,
			Status:        order.Status,
			DateReceived:  order.DateReceived,
			OrderedValue:  decimal.Zero,
			ReceivedValue: decimal.Zero,
		}
		for _, item := range items {
			received := sums[item.ID]
			view.TotalOrdered += item.QuantityOrdered
			view.TotalReceived += received
			view.OrderedValue = view.OrderedValue.Add(item.LineTotal())
			view.ReceivedValue = view.ReceivedValue.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(received))))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

// ListOrderEvents returns the status history of an order, oldest first.
func (e *Engine) ListOrderEvents(ctx context.Context, orderID string) ([]domain.OrderEvent, error) {
	var events []domain.OrderEvent
	err := e.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		if _, err := tx.GetOrder(ctx, orderID); err != nil {
			return err
		}
		var err error
		events, err = tx.ListOrderEvents(ctx, orderID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return events, nil
}

// ListLedger returns up to limit ledger entries of a product, newest first.
func (e *Engine) ListLedger(ctx context.Context, productID string, limit int) ([]domain.LedgerEntry, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	var entries []domain.LedgerEntry
	err := e.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		if _, err := tx.GetProduct(ctx, productID); err != nil {
			return err
		}
		var err error
		entries, err = tx.ListLedger(ctx, productID, limit)
		return err
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// ReconcileStock checks that the stored total equals the sum of batch
// on-hand and the sum of all ledger changes, and that the newest ledger
// entry's snapshot matches the total. A product with no stock yet is
// consistent at zero.
func (e *Engine) ReconcileStock(ctx context.Context, productID string) (*Reconciliation, error) {
	var rec *Reconciliation
	err := e.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		product, err := tx.GetProduct(ctx, productID)
		if err != nil {
			return err
		}

		rec = &Reconciliation{ProductID: product.ID}
		stock, err := tx.GetStock(ctx, product.ID)
		switch {
		case isNotFound(err):
		case err != nil:
			return err
		default:
			batches, err := tx.ListBatches(ctx, stock.ID)
			if err != nil {
				return err
			}
			rec.StockTotal = stock.TotalOnHand
			rec.BatchSum = domain.TotalOnHand(batches)
		}

		rec.LedgerSum, rec.LastEntry, err = tx.LedgerSummary(ctx, product.ID)
		if err != nil {
			return err
		}

		rec.Consistent = rec.StockTotal == rec.BatchSum && rec.StockTotal == rec.LedgerSum
		if rec.LastEntry != nil && rec.LastEntry.OnHand != rec.StockTotal {
			rec.Consistent = false
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}
