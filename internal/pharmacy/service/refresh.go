package service

import (
	"context"
	"fmt"

	"github.com/medflow/pharmacy-backend/internal/pharmacy/domain"
	"github.com/medflow/pharmacy-backend/pkg/actor"
)

// RefreshStatuses re-derives every batch and stock status against today.
// Statuses depend on the date, so they drift without any stock movement;
// this is the periodic catch-up. Each product is refreshed in its own unit
// of work and failures do not stop the others. It returns the number of
// status transitions made.
func (e *Engine) RefreshStatuses(ctx context.Context) (int, error) {
	var stocks []domain.Stock
	err := e.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		stocks, err = tx.ListStocks(ctx)
		return err
	})
	if err != nil {
		return 0, err
	}

	performedBy := actor.System().Identifier()
	changed, failed := 0, 0
	var firstErr error

	for _, s := range stocks {
		if ctx.Err() != nil {
			return changed, ctx.Err()
		}

		n, err := e.refreshStock(ctx, s.ProductID, performedBy)
		if err != nil {
			e.logger.Error().Err(err).Str("product_id", s.ProductID).Msg("status refresh failed for product")
			failed++
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		changed += n
	}

	if firstErr != nil {
		return changed, fmt.Errorf("status refresh failed for %d of %d products: %w", failed, len(stocks), firstErr)
	}
	return changed, nil
}

func (e *Engine) refreshStock(ctx context.Context, productID, performedBy string) (int, error) {
	var changed int
	err := e.run(ctx, performedBy, func(ctx context.Context, w *UnitOfWork) error {
		product, err := w.Tx.GetProduct(ctx, productID)
		if err != nil {
			return err
		}
		stock, err := w.Tx.LockStock(ctx, product.ID, e.ids.NewID(), w.Now)
		if err != nil {
			return err
		}
		if _, err := e.stocks.RecomputeStatus(ctx, w, *product, stock); err != nil {
			return err
		}
		changed = len(w.transitions)
		return nil
	})
	return changed, err
}
