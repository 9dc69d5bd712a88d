package testutil

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/medflow/pharmacy-backend/internal/pharmacy/domain"
)

// FixtureFactory creates test fixtures with sensible defaults
type FixtureFactory struct {
	mu       sync.Mutex
	sequence int
}

// NewFixtureFactory creates a new fixture factory
func NewFixtureFactory() *FixtureFactory {
	return &FixtureFactory{}
}

// nextSeq returns the next sequence number for unique values
func (f *FixtureFactory) nextSeq() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sequence++
	return f.sequence
}

// Product creates a product fixture with defaults
func (f *FixtureFactory) Product(opts ...func(*domain.Product)) domain.Product {
	seq := f.nextSeq()

	p := domain.Product{
		ID:                  uuid.New().String(),
		Code:                fmt.Sprintf("MED%04d", seq),
		Name:                fmt.Sprintf("Test Medicine %d", seq),
		ExpiryThresholdDays: 30,
		LowStockThreshold:   10,
		CreatedAt:           time.Now().UTC(),
	}

	for _, opt := range opts {
		opt(&p)
	}

	return p
}

// WithThresholds sets the product's expiry and low stock thresholds
func WithThresholds(expiryDays, lowStock int) func(*domain.Product) {
	return func(p *domain.Product) {
		p.ExpiryThresholdDays = expiryDays
		p.LowStockThreshold = lowStock
	}
}

// WithProductCode sets the product code
func WithProductCode(code string) func(*domain.Product) {
	return func(p *domain.Product) {
		p.Code = code
	}
}

// Order creates a pending order fixture
func (f *FixtureFactory) Order(opts ...func(*domain.Order)) domain.Order {
	seq := f.nextSeq()
	now := time.Now().UTC()

	o := domain.Order{
		ID:          uuid.New().String(),
		Reference:   fmt.Sprintf("PO-%05d", seq),
		Status:      domain.OrderPending,
		DateOrdered: now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	for _, opt := range opts {
		opt(&o)
	}

	return o
}

// OrderItem creates an order item fixture for order and product
func (f *FixtureFactory) OrderItem(orderID, productID string, quantity int, opts ...func(*domain.OrderItem)) domain.OrderItem {
	f.nextSeq()
	now := time.Now().UTC()

	item := domain.OrderItem{
		ID:              uuid.New().String(),
		OrderID:         orderID,
		ProductID:       productID,
		SupplierID:      "supplier-test",
		QuantityOrdered: quantity,
		UnitPrice:       decimal.RequireFromString("1.25"),
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	for _, opt := range opts {
		opt(&item)
	}

	return item
}

// WithUnitPrice sets the item unit price
func WithUnitPrice(price string) func(*domain.OrderItem) {
	return func(i *domain.OrderItem) {
		i.UnitPrice = decimal.RequireFromString(price)
	}
}
