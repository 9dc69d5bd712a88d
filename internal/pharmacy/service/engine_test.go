package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medflow/pharmacy-backend/internal/pharmacy/domain"
	"github.com/medflow/pharmacy-backend/internal/pharmacy/repository/memory"
	"github.com/medflow/pharmacy-backend/internal/pharmacy/service"
	"github.com/medflow/pharmacy-backend/pkg/clock"
	"github.com/medflow/pharmacy-backend/pkg/idgen"
	"github.com/medflow/pharmacy-backend/pkg/lock"
	"github.com/medflow/pharmacy-backend/pkg/logger"
)

const pharmacist = "pharmacist@clinic.test"

var start = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

type recorder struct {
	mu        sync.Mutex
	movements []domain.LedgerEntry
	changes   []domain.StatusChange
}

func (r *recorder) PublishStockMovement(_ context.Context, entry domain.LedgerEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.movements = append(r.movements, entry)
}

func (r *recorder) PublishStatusChanged(_ context.Context, change domain.StatusChange) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, change)
}

func (r *recorder) counts() (movements, changes int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.movements), len(r.changes)
}

func (r *recorder) changesFor(entity string) []domain.StatusChange {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.StatusChange
	for _, c := range r.changes {
		if c.Entity == entity {
			out = append(out, c)
		}
	}
	return out
}

type harness struct {
	store  *memory.Store
	clock  *clock.Fixed
	ids    *idgen.Sequence
	events *recorder
	engine *service.Engine
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return newHarnessWithStore(t, nil)
}

// newHarnessWithStore lets a test wrap the memory store.
func newHarnessWithStore(t *testing.T, wrap func(service.Store) service.Store) *harness {
	t.Helper()

	h := &harness{
		store:  memory.New(memory.WithLockWait(2 * time.Second)),
		clock:  clock.NewFixed(start),
		ids:    idgen.NewSequence("id"),
		events: &recorder{},
	}

	var store service.Store = h.store
	if wrap != nil {
		store = wrap(store)
	}
	h.engine = service.NewEngine(store, h.clock, h.ids, lock.NewLocal(), h.events, service.DefaultConfig(), logger.Nop())
	return h
}

func (h *harness) product(t *testing.T, code string, expiryThreshold, lowStock int) domain.Product {
	t.Helper()
	p := domain.Product{
		ID:                  "prod-" + code,
		Code:                code,
		Name:                "Product " + code,
		ExpiryThresholdDays: expiryThreshold,
		LowStockThreshold:   lowStock,
		CreatedAt:           start,
	}
	require.NoError(t, h.store.CreateProduct(context.Background(), &p))
	return p
}

// order creates an order with one item per quantity, all for product.
func (h *harness) order(t *testing.T, product domain.Product, quantities ...int) (domain.Order, []domain.OrderItem) {
	t.Helper()
	ctx := context.Background()

	o := domain.Order{
		ID:          h.ids.NewID(),
		Reference:   "PO-" + product.Code,
		Status:      domain.OrderPending,
		DateOrdered: start,
		CreatedAt:   start,
		UpdatedAt:   start,
	}
	require.NoError(t, h.store.CreateOrder(ctx, &o))

	items := make([]domain.OrderItem, 0, len(quantities))
	for _, qty := range quantities {
		item := domain.OrderItem{
			ID:              h.ids.NewID(),
			OrderID:         o.ID,
			ProductID:       product.ID,
			SupplierID:      "supplier-1",
			QuantityOrdered: qty,
			UnitPrice:       decimal.RequireFromString("2.50"),
			CreatedAt:       start,
			UpdatedAt:       start,
		}
		require.NoError(t, h.store.CreateOrderItem(ctx, &item))
		items = append(items, item)
	}
	return o, items
}

func (h *harness) receive(t *testing.T, itemID string, qty int, expiry *time.Time) *domain.ReceiptRecord {
	t.Helper()
	r, err := h.engine.ReceiveItem(context.Background(), service.ReceiveRequest{
		OrderItemID: itemID,
		Quantity:    qty,
		PerformedBy: pharmacist,
		ExpiryDate:  expiry,
	})
	require.NoError(t, err)
	return r
}

func (h *harness) stock(t *testing.T, productID string) *service.StockStatusView {
	t.Helper()
	view, err := h.engine.GetStockStatus(context.Background(), productID)
	require.NoError(t, err)
	return view
}

// assertConsistent checks that stock, batches and ledger agree.
func (h *harness) assertConsistent(t *testing.T, productID string) {
	t.Helper()
	rec, err := h.engine.ReconcileStock(context.Background(), productID)
	require.NoError(t, err)
	assert.True(t, rec.Consistent, "stock=%d batches=%d ledger=%d", rec.StockTotal, rec.BatchSum, rec.LedgerSum)
}

func date(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func daysFromStart(n int) time.Time {
	return clock.DateOf(start).AddDate(0, 0, n)
}

func strPtr(s string) *string {
	return &s
}
