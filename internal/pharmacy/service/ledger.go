package service

import (
	"context"
	"fmt"

	"github.com/medflow/pharmacy-backend/internal/pharmacy/domain"
	"github.com/medflow/pharmacy-backend/pkg/errors"
	"github.com/medflow/pharmacy-backend/pkg/idgen"
)

// Movement describes one on-hand change to record.
type Movement struct {
	Product domain.Product
	// Batch is the batch as it was before the change, nil for product-level entries.
	Batch *domain.Batch
	// Quantity is a magnitude for IN and OUT and a signed delta for ADJ.
	Quantity     int
	OnHandBefore int
	OnHand       int
	ReferenceID  *string
	Remarks      *string
}

// TransactionLedger appends ledger entries. It never changes quantities
// and never modifies an entry once written.
type TransactionLedger struct {
	ids idgen.Generator
}

// NewTransactionLedger creates a ledger that keys entries with ids.
func NewTransactionLedger(ids idgen.Generator) *TransactionLedger {
	return &TransactionLedger{ids: ids}
}

// RecordStockIn appends an IN entry with a positive change.
func (l *TransactionLedger) RecordStockIn(ctx context.Context, w *UnitOfWork, m Movement) (*domain.LedgerEntry, error) {
	if m.Quantity <= 0 {
		return nil, errors.Validation(map[string]string{"quantity": "stock in must be positive"})
	}
	return l.append(ctx, w, domain.TransactionIn, m.Quantity, m, "Stock in")
}

// RecordStockOut appends an OUT entry with a negative change.
func (l *TransactionLedger) RecordStockOut(ctx context.Context, w *UnitOfWork, m Movement) (*domain.LedgerEntry, error) {
	if err := l.CheckStockOut(m.Batch, m.Quantity); err != nil {
		return nil, err
	}
	return l.append(ctx, w, domain.TransactionOut, -m.Quantity, m, "Stock out")
}

// RecordAdjustment appends an ADJ entry keeping the sign of the change.
func (l *TransactionLedger) RecordAdjustment(ctx context.Context, w *UnitOfWork, m Movement) (*domain.LedgerEntry, error) {
	if err := l.CheckAdjustment(m.Batch, m.Quantity); err != nil {
		return nil, err
	}
	return l.append(ctx, w, domain.TransactionAdjustment, m.Quantity, m, "Stock adjustment")
}

// CheckStockOut validates a stock out against the batch before it is changed.
func (l *TransactionLedger) CheckStockOut(batch *domain.Batch, qty int) error {
	if qty <= 0 {
		return errors.Validation(map[string]string{"quantity": "stock out must be positive"})
	}
	if batch == nil {
		return errors.BadRequest("stock out requires a batch")
	}
	if batch.OnHand < qty {
		return errors.InsufficientStock(batch.OnHand, qty)
	}
	return nil
}

// CheckAdjustment validates a signed adjustment against the batch before it is changed.
func (l *TransactionLedger) CheckAdjustment(batch *domain.Batch, delta int) error {
	if delta == 0 {
		return errors.Validation(map[string]string{"quantity": "adjustment must not be zero"})
	}
	if batch != nil && batch.OnHand+delta < 0 {
		return errors.NegativeStockRejected(batch.OnHand, delta)
	}
	return nil
}

func (l *TransactionLedger) append(ctx context.Context, w *UnitOfWork, typ domain.TransactionType, change int, m Movement, verb string) (*domain.LedgerEntry, error) {
	entry := &domain.LedgerEntry{
		ID:             l.ids.NewID(),
		ProductID:      m.Product.ID,
		Type:           typ,
		QuantityChange: change,
		OnHandBefore:   m.OnHandBefore,
		OnHand:         m.OnHand,
		ReferenceID:    m.ReferenceID,
		PerformedBy:    w.PerformedBy,
		Remarks:        m.Remarks,
		CreatedAt:      w.Now,
	}
	if m.Batch != nil {
		id, code := m.Batch.ID, m.Batch.BatchCode
		entry.BatchID = &id
		entry.BatchCode = &code
	}
	if entry.Remarks == nil {
		remarks := fmt.Sprintf("%s for %s", verb, m.Product.Name)
		entry.Remarks = &remarks
	}

	if err := w.Tx.AppendLedger(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to append ledger entry: %w", err)
	}
	w.moved(*entry)
	return entry, nil
}
