package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medflow/pharmacy-backend/internal/pharmacy/domain"
	"github.com/medflow/pharmacy-backend/pkg/errors"
)

func TestAdjustBatch(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	p := h.product(t, "FURO", 30, 10)
	_, items := h.order(t, p, 100)
	r := h.receive(t, items[0].ID, 40, date(2026, 5, 1))

	t.Run("count lower than expected", func(t *testing.T) {
		b, err := h.engine.AdjustBatch(ctx, *r.BatchID, 32, pharmacist, strPtr("cycle count"))
		require.NoError(t, err)
		assert.Equal(t, 32, b.OnHand)

		entries, err := h.engine.ListLedger(ctx, p.ID, 1)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, domain.TransactionAdjustment, entries[0].Type)
		assert.Equal(t, -8, entries[0].QuantityChange)
		assert.Equal(t, 40, entries[0].OnHandBefore)
		assert.Equal(t, 32, entries[0].OnHand)
		assert.Equal(t, "cycle count", *entries[0].Remarks)
	})

	t.Run("unchanged value records nothing", func(t *testing.T) {
		b, err := h.engine.AdjustBatch(ctx, *r.BatchID, 32, pharmacist, nil)
		require.NoError(t, err)
		assert.Equal(t, 32, b.OnHand)

		entries, err := h.engine.ListLedger(ctx, p.ID, 10)
		require.NoError(t, err)
		assert.Len(t, entries, 2)
	})

	t.Run("negative value is rejected", func(t *testing.T) {
		_, err := h.engine.AdjustBatch(ctx, *r.BatchID, -1, pharmacist, nil)
		assert.True(t, errors.Is(err, errors.ErrValidation))
	})

	t.Run("drop to low stock updates status", func(t *testing.T) {
		b, err := h.engine.AdjustBatch(ctx, *r.BatchID, 6, pharmacist, nil)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusLowStock, b.Status)
		assert.Equal(t, domain.StatusLowStock, h.stock(t, p.ID).Status)
	})

	t.Run("zero keeps the batch but leaves it out", func(t *testing.T) {
		b, err := h.engine.AdjustBatch(ctx, *r.BatchID, 0, pharmacist, nil)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusOutOfStock, b.Status)

		view := h.stock(t, p.ID)
		assert.Equal(t, 0, view.TotalOnHand)
		assert.Equal(t, domain.StatusOutOfStock, view.Status)
		assert.Empty(t, view.Batches)
	})

	t.Run("unknown batch", func(t *testing.T) {
		_, err := h.engine.AdjustBatch(ctx, "missing", 3, pharmacist, nil)
		assert.True(t, errors.Is(err, errors.ErrNotFound))
	})

	h.assertConsistent(t, p.ID)
}

func TestDeleteBatch(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	p := h.product(t, "PRED", 30, 10)
	_, items := h.order(t, p, 100)

	keep := h.receive(t, items[0].ID, 25, date(2026, 4, 1))
	drop := h.receive(t, items[0].ID, 15, date(2026, 9, 1))

	require.NoError(t, h.engine.DeleteBatch(ctx, *drop.BatchID, pharmacist, strPtr("damaged in storage")))

	view := h.stock(t, p.ID)
	assert.Equal(t, 25, view.TotalOnHand)
	require.Len(t, view.Batches, 1)
	assert.Equal(t, *keep.BatchID, view.Batches[0].ID)

	entries, err := h.engine.ListLedger(ctx, p.ID, 10)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	writeOff := entries[0]
	assert.Equal(t, domain.TransactionAdjustment, writeOff.Type)
	assert.Equal(t, -15, writeOff.QuantityChange)
	assert.Equal(t, 40, writeOff.OnHandBefore)
	assert.Equal(t, 25, writeOff.OnHand)
	assert.Nil(t, writeOff.BatchID, "reference is cleared with the batch")
	require.NotNil(t, writeOff.BatchCode)
	assert.Equal(t, "BATCH-PRED-002", *writeOff.BatchCode)
	assert.Nil(t, entries[1].BatchID)

	h.assertConsistent(t, p.ID)

	t.Run("codes are not reused", func(t *testing.T) {
		again := h.receive(t, items[0].ID, 5, date(2026, 12, 1))
		view := h.stock(t, p.ID)
		for _, b := range view.Batches {
			if b.ID == *again.BatchID {
				assert.Equal(t, "BATCH-PRED-003", b.BatchCode)
			}
		}
	})

	t.Run("empty batch deletes without ledger entry", func(t *testing.T) {
		_, err := h.engine.AdjustBatch(ctx, *keep.BatchID, 0, pharmacist, nil)
		require.NoError(t, err)
		before, err := h.engine.ListLedger(ctx, p.ID, 100)
		require.NoError(t, err)

		require.NoError(t, h.engine.DeleteBatch(ctx, *keep.BatchID, pharmacist, nil))

		after, err := h.engine.ListLedger(ctx, p.ID, 100)
		require.NoError(t, err)
		assert.Len(t, after, len(before))
		h.assertConsistent(t, p.ID)
	})

	t.Run("missing batch", func(t *testing.T) {
		err := h.engine.DeleteBatch(ctx, *drop.BatchID, pharmacist, nil)
		assert.True(t, errors.Is(err, errors.ErrNotFound))
	})
}
