package service

import (
	"context"
	"time"

	"github.com/medflow/pharmacy-backend/internal/pharmacy/domain"
	"github.com/medflow/pharmacy-backend/pkg/clock"
	"github.com/medflow/pharmacy-backend/pkg/errors"
)

// ReceiveRequest is a delivery against one order item.
type ReceiveRequest struct {
	OrderItemID string
	Quantity    int
	PerformedBy string
	// ExpiryDate is the date printed on the packaging, if known.
	ExpiryDate *time.Time
	Remarks    *string
}

func receiveLockKey(orderItemID string) string {
	return "order-item:" + orderItemID
}

// ReceiveItem records a receipt. Concurrent receipts for the same order item
// are serialized, so the over-receipt check always sees every committed
// receipt; a receipt that would exceed the ordered quantity fails with
// OverReceipt and changes nothing.
func (e *Engine) ReceiveItem(ctx context.Context, req ReceiveRequest) (*domain.ReceiptRecord, error) {
	if err := requirePositive("quantity", req.Quantity); err != nil {
		return nil, err
	}
	if err := requirePerformer(req.PerformedBy); err != nil {
		return nil, err
	}
	expiry := normalizeDate(req.ExpiryDate)

	release, err := e.acquire(ctx, receiveLockKey(req.OrderItemID))
	if err != nil {
		return nil, err
	}
	defer release()

	var receipt *domain.ReceiptRecord
	err = e.run(ctx, req.PerformedBy, func(ctx context.Context, w *UnitOfWork) error {
		item, err := w.Tx.LockOrderItem(ctx, req.OrderItemID)
		if err != nil {
			return err
		}
		if err := e.checkReceivable(ctx, w, item, req.Quantity); err != nil {
			return err
		}

		receiptID := e.ids.NewID()
		batch, err := e.receiveIntoStock(ctx, w, item.ProductID, req.Quantity, expiry, receiptID, req.Remarks)
		if err != nil {
			return err
		}

		receipt = &domain.ReceiptRecord{
			ID:               receiptID,
			OrderItemID:      item.ID,
			BatchID:          &batch.ID,
			QuantityReceived: req.Quantity,
			ExpiryDate:       expiry,
			DateReceived:     w.Now,
			ReceivedBy:       req.PerformedBy,
			Remarks:          req.Remarks,
			UpdatedAt:        w.Now,
		}
		if err := w.Tx.CreateReceipt(ctx, receipt); err != nil {
			return err
		}

		_, err = e.orders.Update(ctx, w, item.OrderID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return receipt, nil
}

// AdjustReceipt raises the quantity of an existing receipt. Only the
// difference enters stock and the ledger. Receipts never decrease; lowering
// one fails with ReceiptDecreaseRejected and corrections go through batch
// adjustments instead.
func (e *Engine) AdjustReceipt(ctx context.Context, receiptID string, quantity int, performedBy string, remarks *string) (*domain.ReceiptRecord, error) {
	if err := requirePositive("quantity", quantity); err != nil {
		return nil, err
	}
	if err := requirePerformer(performedBy); err != nil {
		return nil, err
	}

	var orderItemID string
	err := e.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		r, err := tx.GetReceipt(ctx, receiptID)
		if err != nil {
			return err
		}
		orderItemID = r.OrderItemID
		return nil
	})
	if err != nil {
		return nil, err
	}

	release, err := e.acquire(ctx, receiveLockKey(orderItemID))
	if err != nil {
		return nil, err
	}
	defer release()

	var receipt *domain.ReceiptRecord
	err = e.run(ctx, performedBy, func(ctx context.Context, w *UnitOfWork) error {
		item, err := w.Tx.LockOrderItem(ctx, orderItemID)
		if err != nil {
			return err
		}
		// Re-read under the item lock; another adjustment may have committed.
		receipt, err = w.Tx.GetReceipt(ctx, receiptID)
		if err != nil {
			return err
		}

		delta := quantity - receipt.QuantityReceived
		switch {
		case delta < 0:
			return errors.ReceiptDecreaseRejected(receipt.QuantityReceived, quantity)
		case delta == 0:
			return nil
		}

		if err := e.checkReceivable(ctx, w, item, delta); err != nil {
			return err
		}

		batch, err := e.receiveIntoStock(ctx, w, item.ProductID, delta, receipt.ExpiryDate, receipt.ID, remarks)
		if err != nil {
			return err
		}

		receipt.QuantityReceived = quantity
		receipt.BatchID = &batch.ID
		receipt.UpdatedAt = w.Now
		if remarks != nil {
			receipt.Remarks = remarks
		}
		if err := w.Tx.UpdateReceipt(ctx, receipt); err != nil {
			return err
		}

		_, err = e.orders.Update(ctx, w, item.OrderID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return receipt, nil
}

// checkReceivable rejects receipts against cancelled orders and receipts
// that would push the item past its ordered quantity. item must be locked.
func (e *Engine) checkReceivable(ctx context.Context, w *UnitOfWork, item *domain.OrderItem, qty int) error {
	order, err := w.Tx.GetOrder(ctx, item.OrderID)
	if err != nil {
		return err
	}
	if order.Status == domain.OrderCancelled {
		return errors.Conflict("cannot receive against a cancelled order")
	}

	received, err := w.Tx.SumItemReceipts(ctx, item.ID)
	if err != nil {
		return err
	}
	if received+qty > item.QuantityOrdered {
		return errors.OverReceipt(item.QuantityOrdered, received, qty)
	}
	return nil
}

// receiveIntoStock merges qty into the product's stock, recomputes the
// rollups and records the IN entry. It returns the batch that received
// the quantity, as it was before.
func (e *Engine) receiveIntoStock(ctx context.Context, w *UnitOfWork, productID string, qty int, expiry *time.Time, referenceID string, remarks *string) (*domain.Batch, error) {
	product, err := w.Tx.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}

	stock, err := w.Tx.LockStock(ctx, product.ID, e.ids.NewID(), w.Now)
	if err != nil {
		return nil, err
	}
	before := stock.TotalOnHand

	batch, err := e.batches.CreateOrMergeBatch(ctx, w, *product, stock, qty, expiry)
	if err != nil {
		return nil, err
	}

	if err := e.stocks.Recompute(ctx, w, *product, stock); err != nil {
		return nil, err
	}

	ref := referenceID
	if _, err := e.ledger.RecordStockIn(ctx, w, Movement{
		Product:      *product,
		Batch:        &batch,
		Quantity:     qty,
		OnHandBefore: before,
		OnHand:       stock.TotalOnHand,
		ReferenceID:  &ref,
		Remarks:      remarks,
	}); err != nil {
		return nil, err
	}

	return &batch, nil
}

func normalizeDate(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	d := clock.DateOf(*t)
	return &d
}
