package service

import (
	"context"

	"github.com/medflow/pharmacy-backend/internal/pharmacy/domain"
)

// StockAggregator keeps the per-product rollup in line with its batches.
// Both recomputations are idempotent and write only when something changed.
type StockAggregator struct{}

// NewStockAggregator creates a stock aggregator.
func NewStockAggregator() *StockAggregator {
	return &StockAggregator{}
}

// RecomputeTotal sums on-hand over all batches of stock.
func (a *StockAggregator) RecomputeTotal(ctx context.Context, w *UnitOfWork, stock *domain.Stock) (int, error) {
	batches, err := w.Tx.ListBatches(ctx, stock.ID)
	if err != nil {
		return 0, err
	}

	total := domain.TotalOnHand(batches)
	if total != stock.TotalOnHand {
		stock.TotalOnHand = total
		stock.UpdatedAt = w.Now
		if err := w.Tx.UpdateStock(ctx, stock); err != nil {
			return 0, err
		}
	}
	return total, nil
}

// RecomputeStatus refreshes every batch status of stock against today, then
// rolls them up into the stock status.
func (a *StockAggregator) RecomputeStatus(ctx context.Context, w *UnitOfWork, product domain.Product, stock *domain.Stock) (domain.Status, error) {
	batches, err := w.Tx.ListBatches(ctx, stock.ID)
	if err != nil {
		return "", err
	}

	for i := range batches {
		b := &batches[i]
		next := domain.ComputeBatchStatus(*b, product.ExpiryThresholdDays, product.LowStockThreshold, w.Today)
		if next == b.Status {
			continue
		}
		w.transition(domain.EntityBatch, b.ID, product.ID, string(b.Status), string(next))
		b.Status = next
		b.UpdatedAt = w.Now
		if err := w.Tx.UpdateBatch(ctx, b); err != nil {
			return "", err
		}
	}

	next := domain.ComputeStockStatus(batches)
	if next != stock.Status {
		w.transition(domain.EntityStock, stock.ID, product.ID, string(stock.Status), string(next))
		stock.Status = next
		stock.UpdatedAt = w.Now
		if err := w.Tx.UpdateStock(ctx, stock); err != nil {
			return "", err
		}
	}
	return next, nil
}

// Recompute runs RecomputeTotal then RecomputeStatus, the order every
// batch mutation requires.
func (a *StockAggregator) Recompute(ctx context.Context, w *UnitOfWork, product domain.Product, stock *domain.Stock) error {
	if _, err := a.RecomputeTotal(ctx, w, stock); err != nil {
		return err
	}
	_, err := a.RecomputeStatus(ctx, w, product, stock)
	return err
}
