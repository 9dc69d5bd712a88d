package repository_test

import (
	"context"
	"flag"
	"log"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medflow/pharmacy-backend/internal/pharmacy/domain"
	"github.com/medflow/pharmacy-backend/internal/pharmacy/repository"
	"github.com/medflow/pharmacy-backend/internal/pharmacy/service"
	"github.com/medflow/pharmacy-backend/pkg/clock"
	"github.com/medflow/pharmacy-backend/pkg/errors"
	"github.com/medflow/pharmacy-backend/pkg/idgen"
	"github.com/medflow/pharmacy-backend/pkg/testutil"
)

var suite *testutil.IntegrationSuite

func TestMain(m *testing.M) {
	flag.Parse()
	if testing.Short() {
		os.Exit(m.Run())
	}

	ctx := context.Background()
	var err error
	suite, err = testutil.NewIntegrationSuite(ctx, repository.Migrations())
	if err != nil {
		log.Fatalf("failed to create integration suite: %v", err)
	}

	code := m.Run()
	testutil.TerminateContainer(ctx)
	os.Exit(code)
}

type pgHarness struct {
	store  *repository.Store
	engine *service.Engine
	events *testutil.MockPublisher
}

// newPGHarness runs the engine without a receive locker, so concurrent
// receipts are serialized only by row locks.
func newPGHarness(t *testing.T) *pgHarness {
	t.Helper()
	testutil.SkipIfShort(t)

	ctx := context.Background()
	suite.Truncate(t, ctx, "order_events", "ledger_entries", "receipts", "batches", "stocks", "order_items", "orders", "products")

	store := repository.NewStore(suite.DB, 5*time.Second)
	events := testutil.NewMockPublisher()
	engine := service.NewEngine(store, clock.System{Location: time.UTC}, idgen.NewULID(), nil, events, service.DefaultConfig(), suite.Logger)
	return &pgHarness{store: store, engine: engine, events: events}
}

func (h *pgHarness) seed(t *testing.T, quantities ...int) (domain.Product, domain.Order, []domain.OrderItem) {
	t.Helper()
	ctx := context.Background()

	p := suite.Fixtures.Product()
	require.NoError(t, h.store.CreateProduct(ctx, &p))
	o := suite.Fixtures.Order()
	require.NoError(t, h.store.CreateOrder(ctx, &o))

	items := make([]domain.OrderItem, 0, len(quantities))
	for _, q := range quantities {
		item := suite.Fixtures.OrderItem(o.ID, p.ID, q)
		require.NoError(t, h.store.CreateOrderItem(ctx, &item))
		items = append(items, item)
	}
	return p, o, items
}

func TestPostgres_ReceiveAndReconcile(t *testing.T) {
	h := newPGHarness(t)
	ctx := context.Background()
	p, o, items := h.seed(t, 100)

	expiry := clock.Today(clock.System{Location: time.UTC}).AddDate(1, 0, 0)
	r1, err := h.engine.ReceiveItem(ctx, service.ReceiveRequest{OrderItemID: items[0].ID, Quantity: 30, PerformedBy: "it@test", ExpiryDate: &expiry})
	require.NoError(t, err)
	r2, err := h.engine.ReceiveItem(ctx, service.ReceiveRequest{OrderItemID: items[0].ID, Quantity: 20, PerformedBy: "it@test", ExpiryDate: &expiry})
	require.NoError(t, err)
	assert.Equal(t, *r1.BatchID, *r2.BatchID)

	view, err := h.engine.GetStockStatus(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 50, view.TotalOnHand)
	require.Len(t, view.Batches, 1)
	assert.True(t, expiry.Equal(view.Batches[0].ExpiryDate))

	status, err := h.engine.GetOrderStatus(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderPartiallyReceived, status.Status)

	rec, err := h.engine.ReconcileStock(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, rec.Consistent)
	h.events.AssertMovementPublished(t, domain.TransactionIn)
}

func TestPostgres_ConcurrentReceiptsUseRowLocks(t *testing.T) {
	h := newPGHarness(t)
	ctx := context.Background()
	p, _, items := h.seed(t, 20)

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.engine.ReceiveItem(ctx, service.ReceiveRequest{OrderItemID: items[0].ID, Quantity: 15, PerformedBy: "it@test"})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var ok, over int
	for err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, errors.ErrOverReceipt):
			over++
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, over)

	view, err := h.engine.GetStockStatus(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 15, view.TotalOnHand)
}

func TestPostgres_DeleteBatchKeepsLedger(t *testing.T) {
	h := newPGHarness(t)
	ctx := context.Background()
	p, _, items := h.seed(t, 40)

	r, err := h.engine.ReceiveItem(ctx, service.ReceiveRequest{OrderItemID: items[0].ID, Quantity: 12, PerformedBy: "it@test"})
	require.NoError(t, err)

	require.NoError(t, h.engine.DeleteBatch(ctx, *r.BatchID, "it@test", nil))

	entries, err := h.engine.ListLedger(ctx, p.ID, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	for _, e := range entries {
		assert.Nil(t, e.BatchID)
		assert.NotNil(t, e.BatchCode)
	}
	assert.Equal(t, -12, entries[0].QuantityChange)

	rec, err := h.engine.ReconcileStock(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, rec.Consistent)
	assert.Zero(t, rec.StockTotal)
}

func TestPostgres_LedgerIsAppendOnly(t *testing.T) {
	h := newPGHarness(t)
	ctx := context.Background()
	p, _, items := h.seed(t, 10)

	_, err := h.engine.ReceiveItem(ctx, service.ReceiveRequest{OrderItemID: items[0].ID, Quantity: 5, PerformedBy: "it@test"})
	require.NoError(t, err)

	_, err = suite.RawDB.ExecContext(ctx, `UPDATE ledger_entries SET quantity_change = 500 WHERE product_id = $1`, p.ID)
	assert.Error(t, err)
	_, err = suite.RawDB.ExecContext(ctx, `DELETE FROM ledger_entries WHERE product_id = $1`, p.ID)
	assert.Error(t, err)
}

func TestPostgres_RejectedReceiptPublishesNothing(t *testing.T) {
	h := newPGHarness(t)
	ctx := context.Background()

	p := suite.Fixtures.Product(testutil.WithProductCode("AMOX-IT"), testutil.WithThresholds(60, 5))
	require.NoError(t, h.store.CreateProduct(ctx, &p))
	o := suite.Fixtures.Order()
	require.NoError(t, h.store.CreateOrder(ctx, &o))
	item := suite.Fixtures.OrderItem(o.ID, p.ID, 10, testutil.WithUnitPrice("3.10"))
	require.NoError(t, h.store.CreateOrderItem(ctx, &item))

	expiry := clock.Today(clock.System{Location: time.UTC}).AddDate(0, 0, 45)
	_, err := h.engine.ReceiveItem(ctx, service.ReceiveRequest{OrderItemID: item.ID, Quantity: 4, PerformedBy: "it@test", ExpiryDate: &expiry})
	require.NoError(t, err)

	view, err := h.engine.GetStockStatus(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, view.Batches, 1)
	assert.Equal(t, "BATCH-AMOX-IT-001", view.Batches[0].BatchCode)
	assert.Equal(t, domain.StatusNearExpiry, view.Status)

	h.events.Reset()
	_, err = h.engine.ReceiveItem(ctx, service.ReceiveRequest{OrderItemID: item.ID, Quantity: 7, PerformedBy: "it@test", ExpiryDate: &expiry})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrOverReceipt))
	h.events.AssertNoEventsPublished(t)

	status, err := h.engine.GetOrderStatus(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, status.TotalReceived)
	assert.Equal(t, "31", status.OrderedValue.String())
	assert.Equal(t, "12.4", status.ReceivedValue.String())
}
