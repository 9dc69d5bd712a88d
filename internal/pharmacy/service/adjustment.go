package service

import (
	"context"

	"github.com/medflow/pharmacy-backend/internal/pharmacy/domain"
	"github.com/medflow/pharmacy-backend/pkg/errors"
)

// AdjustBatch sets the on-hand quantity of a batch after a count or a
// correction, and records the signed difference as an ADJ entry. Setting the
// current value changes nothing.
func (e *Engine) AdjustBatch(ctx context.Context, batchID string, onHand int, performedBy string, remarks *string) (*domain.Batch, error) {
	if onHand < 0 {
		return nil, errors.Validation(map[string]string{"on_hand": "must be greater than or equal to 0"})
	}
	if err := requirePerformer(performedBy); err != nil {
		return nil, err
	}

	var result *domain.Batch
	err := e.run(ctx, performedBy, func(ctx context.Context, w *UnitOfWork) error {
		product, stock, batch, err := e.lockBatch(ctx, w, batchID)
		if err != nil {
			return err
		}

		delta := onHand - batch.OnHand
		if delta == 0 {
			result = batch
			return nil
		}

		pre := *batch
		if err := e.ledger.CheckAdjustment(&pre, delta); err != nil {
			return err
		}
		before := stock.TotalOnHand

		batch.OnHand = onHand
		batch.UpdatedAt = w.Now
		if err := w.Tx.UpdateBatch(ctx, batch); err != nil {
			return err
		}
		if err := e.stocks.Recompute(ctx, w, *product, stock); err != nil {
			return err
		}

		if _, err := e.ledger.RecordAdjustment(ctx, w, Movement{
			Product:      *product,
			Batch:        &pre,
			Quantity:     delta,
			OnHandBefore: before,
			OnHand:       stock.TotalOnHand,
			Remarks:      remarks,
		}); err != nil {
			return err
		}

		result, err = w.Tx.GetBatch(ctx, batch.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// DeleteBatch removes a batch. Any quantity still on hand is written off
// with an ADJ entry first, so the ledger keeps balancing against the stock.
func (e *Engine) DeleteBatch(ctx context.Context, batchID, performedBy string, remarks *string) error {
	if err := requirePerformer(performedBy); err != nil {
		return err
	}

	return e.run(ctx, performedBy, func(ctx context.Context, w *UnitOfWork) error {
		product, stock, batch, err := e.lockBatch(ctx, w, batchID)
		if err != nil {
			return err
		}

		if batch.OnHand > 0 {
			pre := *batch
			if _, err := e.ledger.RecordAdjustment(ctx, w, Movement{
				Product:      *product,
				Batch:        &pre,
				Quantity:     -batch.OnHand,
				OnHandBefore: stock.TotalOnHand,
				OnHand:       stock.TotalOnHand - batch.OnHand,
				Remarks:      remarks,
			}); err != nil {
				return err
			}
		}

		if err := w.Tx.DeleteBatch(ctx, batch.ID); err != nil {
			return err
		}
		return e.stocks.Recompute(ctx, w, *product, stock)
	})
}

// lockBatch locks the stock owning batchID and returns the batch as read
// under that lock.
func (e *Engine) lockBatch(ctx context.Context, w *UnitOfWork, batchID string) (*domain.Product, *domain.Stock, *domain.Batch, error) {
	batch, err := w.Tx.GetBatch(ctx, batchID)
	if err != nil {
		return nil, nil, nil, err
	}

	stock, err := w.Tx.LockStock(ctx, batch.ProductID, e.ids.NewID(), w.Now)
	if err != nil {
		return nil, nil, nil, err
	}

	// The batch may have changed or gone while we waited for the lock.
	batch, err = w.Tx.GetBatch(ctx, batchID)
	if err != nil {
		return nil, nil, nil, err
	}

	product, err := w.Tx.GetProduct(ctx, batch.ProductID)
	if err != nil {
		return nil, nil, nil, err
	}
	return product, stock, batch, nil
}
