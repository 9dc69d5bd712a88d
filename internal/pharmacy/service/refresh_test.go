package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medflow/pharmacy-backend/internal/pharmacy/domain"
	"github.com/medflow/pharmacy-backend/internal/pharmacy/service"
	"github.com/medflow/pharmacy-backend/pkg/logger"
)

func TestRefreshStatuses_FollowsTheCalendar(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	p := h.product(t, "VALS", 30, 0)
	_, items := h.order(t, p, 100)
	h.receive(t, items[0].ID, 10, date(2025, 8, 1))

	n, err := h.engine.RefreshStatuses(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "nothing drifted yet")

	h.clock.Advance(31 * 24 * time.Hour) // 2025-07-02, 30 days left
	n, err = h.engine.RefreshStatuses(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, domain.StatusNearExpiry, h.stock(t, p.ID).Status)

	h.clock.Advance(30 * 24 * time.Hour) // 2025-08-01
	_, err = h.engine.RefreshStatuses(ctx)
	require.NoError(t, err)
	view := h.stock(t, p.ID)
	assert.Equal(t, domain.StatusExpired, view.Status)
	assert.Equal(t, 10, view.TotalOnHand, "expired stock is still on hand")

	stockChanges := h.events.changesFor(domain.EntityStock)
	require.NotEmpty(t, stockChanges)
	assert.Equal(t, string(domain.StatusExpired), stockChanges[len(stockChanges)-1].To)

	entries, err := h.engine.ListLedger(ctx, p.ID, 10)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "status changes never touch the ledger")
}

func TestGetStockStatus_IsCurrentBeforeRefresh(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	p := h.product(t, "VALS", 30, 0)
	_, items := h.order(t, p, 100)
	h.receive(t, items[0].ID, 10, date(2025, 8, 1))
	_, changesBefore := h.events.counts()

	h.clock.Advance(31 * 24 * time.Hour)
	view := h.stock(t, p.ID)
	assert.Equal(t, domain.StatusNearExpiry, view.Status)
	require.Len(t, view.Batches, 1)
	assert.Equal(t, domain.StatusNearExpiry, view.Batches[0].Status)

	_, changesAfter := h.events.counts()
	assert.Equal(t, changesBefore, changesAfter, "reads publish no transitions")

	n, err := h.engine.RefreshStatuses(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n, "the read persisted nothing")

	h.clock.Advance(30 * 24 * time.Hour)
	view = h.stock(t, p.ID)
	assert.Equal(t, domain.StatusExpired, view.Status)
	assert.Equal(t, domain.StatusExpired, view.Batches[0].Status)
}

type countingRefresher struct {
	calls chan struct{}
}

func (r *countingRefresher) RefreshStatuses(context.Context) (int, error) {
	select {
	case r.calls <- struct{}{}:
	default:
	}
	return 0, nil
}

func TestStatusRefreshScheduler_RunsImmediatelyAndStops(t *testing.T) {
	r := &countingRefresher{calls: make(chan struct{}, 4)}
	s := service.NewStatusRefreshScheduler(r, 10*time.Millisecond, logger.Nop())

	s.Start(context.Background())
	defer s.Stop()

	for i := 0; i < 2; i++ {
		select {
		case <-r.calls:
		case <-time.After(2 * time.Second):
			t.Fatal("scheduler did not run")
		}
	}

	s.Stop()
	s.Stop()
}
