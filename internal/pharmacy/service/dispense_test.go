package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medflow/pharmacy-backend/internal/pharmacy/domain"
	"github.com/medflow/pharmacy-backend/internal/pharmacy/service"
	"github.com/medflow/pharmacy-backend/pkg/errors"
)

func dispense(qty int) service.DispenseRequest {
	return service.DispenseRequest{Quantity: qty, PerformedBy: pharmacist, ReferenceID: strPtr("RX-1001")}
}

func TestDispenseProduct_FirstExpiryFirstOut(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	p := h.product(t, "AZIT", 30, 5)
	_, items := h.order(t, p, 100)

	late := h.receive(t, items[0].ID, 20, date(2026, 10, 1))
	early := h.receive(t, items[0].ID, 10, date(2026, 2, 1))

	entries, err := h.engine.DispenseProduct(ctx, p.ID, dispense(14))
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, *early.BatchID, *entries[0].BatchID)
	assert.Equal(t, -10, entries[0].QuantityChange)
	assert.Equal(t, 30, entries[0].OnHandBefore)
	assert.Equal(t, 20, entries[0].OnHand)

	assert.Equal(t, *late.BatchID, *entries[1].BatchID)
	assert.Equal(t, -4, entries[1].QuantityChange)
	assert.Equal(t, 16, entries[1].OnHand)
	assert.Equal(t, domain.TransactionOut, entries[1].Type)
	assert.Equal(t, "RX-1001", *entries[1].ReferenceID)

	view := h.stock(t, p.ID)
	assert.Equal(t, 16, view.TotalOnHand)
	require.Len(t, view.Batches, 1)
	h.assertConsistent(t, p.ID)
}

func TestDispenseProduct_InsufficientTakesNothing(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	p := h.product(t, "CLAR", 30, 5)
	_, items := h.order(t, p, 100)
	h.receive(t, items[0].ID, 10, date(2026, 2, 1))
	h.receive(t, items[0].ID, 5, date(2026, 3, 1))

	_, err := h.engine.DispenseProduct(ctx, p.ID, dispense(16))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInsufficientStock))

	assert.Equal(t, 15, h.stock(t, p.ID).TotalOnHand)
	h.assertConsistent(t, p.ID)
}

func TestDispenseProduct_SkipsExpired(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	p := h.product(t, "DOXY", 30, 0)
	_, items := h.order(t, p, 100)

	h.receive(t, items[0].ID, 10, date(2025, 6, 20))
	fresh := h.receive(t, items[0].ID, 10, date(2026, 6, 1))

	h.clock.Advance(20 * 24 * time.Hour)

	_, err := h.engine.DispenseProduct(ctx, p.ID, dispense(11))
	assert.True(t, errors.Is(err, errors.ErrInsufficientStock))

	entries, err := h.engine.DispenseProduct(ctx, p.ID, dispense(10))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, *fresh.BatchID, *entries[0].BatchID)

	view := h.stock(t, p.ID)
	assert.Equal(t, 10, view.TotalOnHand)
	assert.Equal(t, domain.StatusExpired, view.Status)
}

func TestDispenseBatch(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	p := h.product(t, "WARF", 30, 5)
	_, items := h.order(t, p, 100)
	r := h.receive(t, items[0].ID, 8, date(2026, 1, 15))

	entry, err := h.engine.DispenseBatch(ctx, *r.BatchID, dispense(3))
	require.NoError(t, err)
	assert.Equal(t, -3, entry.QuantityChange)
	assert.Equal(t, "Stock out for Product WARF", *entry.Remarks)

	_, err = h.engine.DispenseBatch(ctx, *r.BatchID, dispense(6))
	assert.True(t, errors.Is(err, errors.ErrInsufficientStock))

	_, err = h.engine.DispenseBatch(ctx, *r.BatchID, dispense(0))
	assert.True(t, errors.Is(err, errors.ErrValidation))

	view := h.stock(t, p.ID)
	assert.Equal(t, 5, view.TotalOnHand)
	assert.Equal(t, domain.StatusLowStock, view.Status)
	h.assertConsistent(t, p.ID)
}

func TestDispenseBatch_Expired(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	p := h.product(t, "INSU", 30, 5)
	_, items := h.order(t, p, 100)
	r := h.receive(t, items[0].ID, 8, date(2025, 6, 10))

	h.clock.Advance(9 * 24 * time.Hour)

	_, err := h.engine.DispenseBatch(ctx, *r.BatchID, dispense(1))
	assert.True(t, errors.Is(err, errors.ErrConflict))
}
