// Package memory is an in-process implementation of the inventory store.
// It backs tests and single-node demos; rows are locked with keyed locks and
// rollback replays an undo log.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/medflow/pharmacy-backend/internal/pharmacy/domain"
	"github.com/medflow/pharmacy-backend/internal/pharmacy/service"
	"github.com/medflow/pharmacy-backend/pkg/errors"
	"github.com/medflow/pharmacy-backend/pkg/lock"
)

// Store keeps all inventory state in maps guarded by one mutex. Reads
// outside a row lock may observe writes of units of work still in flight.
type Store struct {
	mu sync.Mutex

	products       map[string]domain.Product
	stocks         map[string]domain.Stock
	stockByProduct map[string]string
	batches        map[string]domain.Batch
	orders         map[string]domain.Order
	items          map[string]domain.OrderItem
	receipts       map[string]domain.ReceiptRecord
	ledger         []domain.LedgerEntry
	events         []domain.OrderEvent

	rows     *lock.Local
	lockWait time.Duration
}

var _ service.Store = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithLockWait bounds how long a unit of work waits for a row lock.
func WithLockWait(d time.Duration) Option {
	return func(s *Store) { s.lockWait = d }
}

// New returns an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		products:       make(map[string]domain.Product),
		stocks:         make(map[string]domain.Stock),
		stockByProduct: make(map[string]string),
		batches:        make(map[string]domain.Batch),
		orders:         make(map[string]domain.Order),
		items:          make(map[string]domain.OrderItem),
		receipts:       make(map[string]domain.ReceiptRecord),
		rows:           lock.NewLocal(),
		lockWait:       5 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// WithinTx runs fn holding the row locks it takes until it returns. When fn
// fails or panics every write it made is undone.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx service.Tx) error) (err error) {
	tx := &Tx{store: s, held: make(map[string]lock.Release)}

	defer func() {
		if p := recover(); p != nil {
			tx.rollback()
			tx.releaseAll()
			panic(p)
		}
		if err != nil {
			tx.rollback()
		}
		tx.releaseAll()
	}()

	return fn(ctx, tx)
}

// CreateProduct adds a product to the catalog.
func (s *Store) CreateProduct(_ context.Context, p *domain.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.products[p.ID]; ok {
		return errors.Conflict("product already exists")
	}
	s.products[p.ID] = *p
	return nil
}

// CreateOrder adds an order.
func (s *Store) CreateOrder(_ context.Context, o *domain.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orders[o.ID]; ok {
		return errors.Conflict("order already exists")
	}
	s.orders[o.ID] = *o
	return nil
}

// CreateOrderItem adds an item to an existing order.
func (s *Store) CreateOrderItem(_ context.Context, item *domain.OrderItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orders[item.OrderID]; !ok {
		return errors.BadRequest("order does not exist")
	}
	if _, ok := s.products[item.ProductID]; !ok {
		return errors.BadRequest("product does not exist")
	}
	s.items[item.ID] = *item
	return nil
}

// Tx is one unit of work against a Store.
type Tx struct {
	store *Store
	held  map[string]lock.Release
	undo  []func()
}

var _ service.Tx = (*Tx)(nil)

func (t *Tx) lockRow(ctx context.Context, key string) error {
	if _, ok := t.held[key]; ok {
		return nil
	}
	release, err := t.store.rows.Acquire(ctx, key, t.store.lockWait)
	if err != nil {
		return err
	}
	t.held[key] = release
	return nil
}

func (t *Tx) releaseAll() {
	for key, release := range t.held {
		release()
		delete(t.held, key)
	}
}

func (t *Tx) rollback() {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
}

// onUndo registers a revert step. Must be called with store.mu held.
func (t *Tx) onUndo(fn func()) {
	t.undo = append(t.undo, fn)
}

func (t *Tx) GetProduct(_ context.Context, id string) (*domain.Product, error) {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	p, ok := t.store.products[id]
	if !ok {
		return nil, errors.NotFound("product")
	}
	return &p, nil
}

func (t *Tx) LockOrderItem(ctx context.Context, id string) (*domain.OrderItem, error) {
	if err := t.lockRow(ctx, "order_item:"+id); err != nil {
		return nil, err
	}
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	item, ok := t.store.items[id]
	if !ok {
		return nil, errors.NotFound("order item")
	}
	return &item, nil
}

func (t *Tx) ListOrderItems(_ context.Context, orderID string) ([]domain.OrderItem, error) {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	var items []domain.OrderItem
	for _, item := range t.store.items {
		if item.OrderID == orderID {
			items = append(items, item)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items, nil
}

func (t *Tx) UpdateOrderItem(_ context.Context, item *domain.OrderItem) error {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	prev, ok := t.store.items[item.ID]
	if !ok {
		return errors.NotFound("order item")
	}
	t.store.items[item.ID] = *item
	t.onUndo(func() { t.store.items[prev.ID] = prev })
	return nil
}

func (t *Tx) GetOrder(_ context.Context, id string) (*domain.Order, error) {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	o, ok := t.store.orders[id]
	if !ok {
		return nil, errors.NotFound("order")
	}
	return &o, nil
}

func (t *Tx) LockOrder(ctx context.Context, id string) (*domain.Order, error) {
	if err := t.lockRow(ctx, "order:"+id); err != nil {
		return nil, err
	}
	return t.GetOrder(ctx, id)
}

func (t *Tx) UpdateOrder(_ context.Context, order *domain.Order) error {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	prev, ok := t.store.orders[order.ID]
	if !ok {
		return errors.NotFound("order")
	}
	t.store.orders[order.ID] = *order
	t.onUndo(func() { t.store.orders[prev.ID] = prev })
	return nil
}

func (t *Tx) CreateOrderEvent(_ context.Context, event *domain.OrderEvent) error {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	t.store.events = append(t.store.events, *event)
	id := event.ID
	t.onUndo(func() {
		t.store.events = removeEvent(t.store.events, id)
	})
	return nil
}

func (t *Tx) ListOrderEvents(_ context.Context, orderID string) ([]domain.OrderEvent, error) {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	var events []domain.OrderEvent
	for _, e := range t.store.events {
		if e.OrderID == orderID {
			events = append(events, e)
		}
	}
	return events, nil
}

func (t *Tx) GetReceipt(_ context.Context, id string) (*domain.ReceiptRecord, error) {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	r, ok := t.store.receipts[id]
	if !ok {
		return nil, errors.NotFound("receipt")
	}
	return &r, nil
}

func (t *Tx) SumReceipts(_ context.Context, orderID string) (map[string]int, error) {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	sums := make(map[string]int)
	for _, r := range t.store.receipts {
		item, ok := t.store.items[r.OrderItemID]
		if ok && item.OrderID == orderID {
			sums[r.OrderItemID] += r.QuantityReceived
		}
	}
	return sums, nil
}

func (t *Tx) SumItemReceipts(_ context.Context, orderItemID string) (int, error) {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	total := 0
	for _, r := range t.store.receipts {
		if r.OrderItemID == orderItemID {
			total += r.QuantityReceived
		}
	}
	return total, nil
}

func (t *Tx) CreateReceipt(_ context.Context, receipt *domain.ReceiptRecord) error {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	if _, ok := t.store.items[receipt.OrderItemID]; !ok {
		return errors.BadRequest("order item does not exist")
	}
	t.store.receipts[receipt.ID] = *receipt
	id := receipt.ID
	t.onUndo(func() { delete(t.store.receipts, id) })
	return nil
}

func (t *Tx) UpdateReceipt(_ context.Context, receipt *domain.ReceiptRecord) error {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	prev, ok := t.store.receipts[receipt.ID]
	if !ok {
		return errors.NotFound("receipt")
	}
	t.store.receipts[receipt.ID] = *receipt
	t.onUndo(func() { t.store.receipts[prev.ID] = prev })
	return nil
}

func (t *Tx) LockStock(ctx context.Context, productID, newID string, now time.Time) (*domain.Stock, error) {
	if err := t.lockRow(ctx, "stock:"+productID); err != nil {
		return nil, err
	}

	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	if _, ok := t.store.products[productID]; !ok {
		return nil, errors.NotFound("product")
	}
	if id, ok := t.store.stockByProduct[productID]; ok {
		st := t.store.stocks[id]
		return &st, nil
	}

	st := domain.Stock{
		ID:        newID,
		ProductID: productID,
		Status:    domain.StatusOutOfStock,
		UpdatedAt: now,
	}
	t.store.stocks[st.ID] = st
	t.store.stockByProduct[productID] = st.ID
	t.onUndo(func() {
		delete(t.store.stocks, st.ID)
		delete(t.store.stockByProduct, productID)
	})
	return &st, nil
}

func (t *Tx) GetStock(_ context.Context, productID string) (*domain.Stock, error) {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	id, ok := t.store.stockByProduct[productID]
	if !ok {
		return nil, errors.NotFound("stock")
	}
	st := t.store.stocks[id]
	return &st, nil
}

func (t *Tx) ListStocks(_ context.Context) ([]domain.Stock, error) {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	stocks := make([]domain.Stock, 0, len(t.store.stocks))
	for _, st := range t.store.stocks {
		stocks = append(stocks, st)
	}
	sort.Slice(stocks, func(i, j int) bool { return stocks[i].ProductID < stocks[j].ProductID })
	return stocks, nil
}

func (t *Tx) UpdateStock(_ context.Context, stock *domain.Stock) error {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	prev, ok := t.store.stocks[stock.ID]
	if !ok {
		return errors.NotFound("stock")
	}
	t.store.stocks[stock.ID] = *stock
	t.onUndo(func() { t.store.stocks[prev.ID] = prev })
	return nil
}

func (t *Tx) GetBatch(_ context.Context, id string) (*domain.Batch, error) {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	b, ok := t.store.batches[id]
	if !ok {
		return nil, errors.NotFound("batch")
	}
	return &b, nil
}

func (t *Tx) ListBatches(_ context.Context, stockID string) ([]domain.Batch, error) {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	var batches []domain.Batch
	for _, b := range t.store.batches {
		if b.StockID == stockID {
			batches = append(batches, b)
		}
	}
	sort.Slice(batches, func(i, j int) bool {
		if batches[i].ExpiryDate.Equal(batches[j].ExpiryDate) {
			return batches[i].ID < batches[j].ID
		}
		return batches[i].ExpiryDate.Before(batches[j].ExpiryDate)
	})
	return batches, nil
}

func (t *Tx) CreateBatch(_ context.Context, batch *domain.Batch) error {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	if batch.OnHand < 0 {
		return errors.NegativeStockRejected(0, batch.OnHand)
	}
	for _, b := range t.store.batches {
		if b.BatchCode == batch.BatchCode {
			return errors.Conflict("batch code already exists")
		}
	}
	t.store.batches[batch.ID] = *batch
	id := batch.ID
	t.onUndo(func() { delete(t.store.batches, id) })
	return nil
}

func (t *Tx) UpdateBatch(_ context.Context, batch *domain.Batch) error {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	prev, ok := t.store.batches[batch.ID]
	if !ok {
		return errors.NotFound("batch")
	}
	if batch.OnHand < 0 {
		return errors.NegativeStockRejected(prev.OnHand, batch.OnHand-prev.OnHand)
	}
	t.store.batches[batch.ID] = *batch
	t.onUndo(func() { t.store.batches[prev.ID] = prev })
	return nil
}

func (t *Tx) DeleteBatch(_ context.Context, id string) error {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	prev, ok := t.store.batches[id]
	if !ok {
		return errors.NotFound("batch")
	}
	delete(t.store.batches, id)
	t.onUndo(func() { t.store.batches[prev.ID] = prev })

	for i := range t.store.ledger {
		if e := &t.store.ledger[i]; e.BatchID != nil && *e.BatchID == id {
			entryID := e.ID
			e.BatchID = nil
			t.onUndo(func() { t.store.setLedgerBatch(entryID, id) })
		}
	}
	for rid, r := range t.store.receipts {
		if r.BatchID != nil && *r.BatchID == id {
			prevReceipt := r
			r.BatchID = nil
			t.store.receipts[rid] = r
			t.onUndo(func() { t.store.receipts[prevReceipt.ID] = prevReceipt })
		}
	}
	return nil
}

func (t *Tx) AppendLedger(_ context.Context, entry *domain.LedgerEntry) error {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	t.store.ledger = append(t.store.ledger, *entry)
	id := entry.ID
	t.onUndo(func() { t.store.ledger = removeEntry(t.store.ledger, id) })
	return nil
}

func (t *Tx) ListLedger(_ context.Context, productID string, limit int) ([]domain.LedgerEntry, error) {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	var entries []domain.LedgerEntry
	for i := len(t.store.ledger) - 1; i >= 0; i-- {
		if limit > 0 && len(entries) == limit {
			break
		}
		if e := t.store.ledger[i]; e.ProductID == productID {
			entries = append(entries, e)
		}
	}
	return entries, nil
}

func (t *Tx) LedgerSummary(_ context.Context, productID string) (int, *domain.LedgerEntry, error) {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	sum := 0
	var last *domain.LedgerEntry
	for i := range t.store.ledger {
		e := t.store.ledger[i]
		if e.ProductID != productID {
			continue
		}
		sum += e.QuantityChange
		last = &e
	}
	return sum, last, nil
}

func (s *Store) setLedgerBatch(entryID, batchID string) {
	for i := range s.ledger {
		if s.ledger[i].ID == entryID {
			id := batchID
			s.ledger[i].BatchID = &id
			return
		}
	}
}

func removeEntry(entries []domain.LedgerEntry, id string) []domain.LedgerEntry {
	for i := range entries {
		if entries[i].ID == id {
			return append(entries[:i], entries[i+1:]...)
		}
	}
	return entries
}

func removeEvent(events []domain.OrderEvent, id string) []domain.OrderEvent {
	for i := range events {
		if events[i].ID == id {
			return append(events[:i], events[i+1:]...)
		}
	}
	return events
}
