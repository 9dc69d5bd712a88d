package service

import (
	"context"
	"time"

	"github.com/medflow/pharmacy-backend/internal/pharmacy/domain"
	"github.com/medflow/pharmacy-backend/pkg/errors"
)

// DispenseRequest takes stock out for patients or wards.
type DispenseRequest struct {
	Quantity    int
	PerformedBy string
	ReferenceID *string
	Remarks     *string
}

// DispenseBatch takes quantity out of one batch. Expired batches cannot be
// dispensed; write them off with AdjustBatch or DeleteBatch instead.
func (e *Engine) DispenseBatch(ctx context.Context, batchID string, req DispenseRequest) (*domain.LedgerEntry, error) {
	if err := requirePositive("quantity", req.Quantity); err != nil {
		return nil, err
	}
	if err := requirePerformer(req.PerformedBy); err != nil {
		return nil, err
	}

	var entry *domain.LedgerEntry
	err := e.run(ctx, req.PerformedBy, func(ctx context.Context, w *UnitOfWork) error {
		product, stock, batch, err := e.lockBatch(ctx, w, batchID)
		if err != nil {
			return err
		}
		if domain.DaysUntilExpiry(batch.ExpiryDate, w.Today) <= 0 {
			return errors.Conflict("batch " + batch.BatchCode + " has expired")
		}

		entries, err := e.takeOut(ctx, w, *product, stock, []takeOut{{batch: batch, qty: req.Quantity}}, req)
		if err != nil {
			return err
		}
		entry = &entries[0]
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// DispenseProduct takes quantity out of a product's batches, first expiry
// first out. Expired batches are skipped. Nothing is taken unless the whole
// quantity is available.
func (e *Engine) DispenseProduct(ctx context.Context, productID string, req DispenseRequest) ([]domain.LedgerEntry, error) {
	if err := requirePositive("quantity", req.Quantity); err != nil {
		return nil, err
	}
	if err := requirePerformer(req.PerformedBy); err != nil {
		return nil, err
	}

	var entries []domain.LedgerEntry
	err := e.run(ctx, req.PerformedBy, func(ctx context.Context, w *UnitOfWork) error {
		product, err := w.Tx.GetProduct(ctx, productID)
		if err != nil {
			return err
		}
		stock, err := w.Tx.LockStock(ctx, product.ID, e.ids.NewID(), w.Now)
		if err != nil {
			return err
		}
		batches, err := w.Tx.ListBatches(ctx, stock.ID)
		if err != nil {
			return err
		}

		plan, available := planFEFO(batches, req.Quantity, w.Today)
		if available < req.Quantity {
			return errors.InsufficientStock(available, req.Quantity)
		}

		entries, err = e.takeOut(ctx, w, *product, stock, plan, req)
		return err
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

type takeOut struct {
	batch *domain.Batch
	qty   int
}

// planFEFO walks batches by ascending expiry and returns the takes needed
// for qty along with the total dispensable quantity. batches must already
// be sorted.
func planFEFO(batches []domain.Batch, qty int, today time.Time) ([]takeOut, int) {
	var plan []takeOut
	available, remaining := 0, qty

	for i := range batches {
		b := &batches[i]
		if b.OnHand <= 0 || domain.DaysUntilExpiry(b.ExpiryDate, today) <= 0 {
			continue
		}
		available += b.OnHand
		if remaining == 0 {
			continue
		}
		n := min(b.OnHand, remaining)
		plan = append(plan, takeOut{batch: b, qty: n})
		remaining -= n
	}
	return plan, available
}

// takeOut applies each take, recomputes the stock and writes one OUT entry
// per batch with running product totals.
func (e *Engine) takeOut(ctx context.Context, w *UnitOfWork, product domain.Product, stock *domain.Stock, plan []takeOut, req DispenseRequest) ([]domain.LedgerEntry, error) {
	running := stock.TotalOnHand
	movements := make([]Movement, 0, len(plan))

	for _, t := range plan {
		pre := *t.batch
		if err := e.ledger.CheckStockOut(&pre, t.qty); err != nil {
			return nil, err
		}

		t.batch.OnHand -= t.qty
		t.batch.UpdatedAt = w.Now
		if err := w.Tx.UpdateBatch(ctx, t.batch); err != nil {
			return nil, err
		}

		movements = append(movements, Movement{
			Product:      product,
			Batch:        &pre,
			Quantity:     t.qty,
			OnHandBefore: running,
			OnHand:       running - t.qty,
			ReferenceID:  req.ReferenceID,
			Remarks:      req.Remarks,
		})
		running -= t.qty
	}

	if err := e.stocks.Recompute(ctx, w, product, stock); err != nil {
		return nil, err
	}

	entries := make([]domain.LedgerEntry, 0, len(movements))
	for _, m := range movements {
		entry, err := e.ledger.RecordStockOut(ctx, w, m)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *entry)
	}
	return entries, nil
}
