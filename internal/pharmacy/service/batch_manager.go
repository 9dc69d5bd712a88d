package service

import (
	"context"
	"time"

	"github.com/medflow/pharmacy-backend/internal/pharmacy/domain"
	"github.com/medflow/pharmacy-backend/pkg/idgen"
)

// BatchManager places received quantities into batches. It only ever adds:
// batches are created or grown, never split or removed.
type BatchManager struct {
	policy domain.MergePolicy
	ids    idgen.Generator
}

// NewBatchManager creates a batch manager using policy for merge decisions.
func NewBatchManager(policy domain.MergePolicy, ids idgen.Generator) *BatchManager {
	return &BatchManager{policy: policy, ids: ids}
}

// CreateOrMergeBatch adds qty to a compatible batch of stock or creates a
// new one. stock must be locked by the caller. The returned batch reflects
// the state before qty was added, for ledger snapshots.
func (m *BatchManager) CreateOrMergeBatch(ctx context.Context, w *UnitOfWork, product domain.Product, stock *domain.Stock, qty int, expiry *time.Time) (before domain.Batch, err error) {
	target, tolerance, estimated := m.policy.Target(product, expiry, w.Today)

	batches, err := w.Tx.ListBatches(ctx, stock.ID)
	if err != nil {
		return domain.Batch{}, err
	}

	if existing := m.policy.Choose(batches, product, target, tolerance, w.Today); existing != nil {
		before = *existing
		existing.OnHand += qty
		existing.UpdatedAt = w.Now
		if err := w.Tx.UpdateBatch(ctx, existing); err != nil {
			return domain.Batch{}, err
		}
		return before, nil
	}

	stock.BatchSequence++
	stock.UpdatedAt = w.Now
	if err := w.Tx.UpdateStock(ctx, stock); err != nil {
		return domain.Batch{}, err
	}

	batch := &domain.Batch{
		ID:              m.ids.NewID(),
		StockID:         stock.ID,
		ProductID:       product.ID,
		BatchCode:       domain.FormatBatchCode(product.Code, stock.BatchSequence),
		OnHand:          qty,
		ExpiryDate:      target,
		ExpiryEstimated: estimated,
		Status:          domain.StatusNormal,
		CreatedAt:       w.Now,
		UpdatedAt:       w.Now,
	}
	if err := w.Tx.CreateBatch(ctx, batch); err != nil {
		return domain.Batch{}, err
	}

	before = *batch
	before.OnHand = 0
	return before, nil
}
