// Package domain holds the pharmacy inventory entities and the pure rules
// that derive their statuses.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is a stocked item. Thresholds are fixed once stock references it.
type Product struct {
	ID                  string    `db:"id" json:"id"`
	Code                string    `db:"code" json:"code"`
	Name                string    `db:"name" json:"name"`
	ExpiryThresholdDays int       `db:"expiry_threshold_days" json:"expiry_threshold_days"`
	LowStockThreshold   int       `db:"low_stock_threshold" json:"low_stock_threshold"`
	CreatedAt           time.Time `db:"created_at" json:"created_at"`
}

// Stock is the per-product rollup of all batches.
type Stock struct {
	ID          string `db:"id" json:"id"`
	ProductID   string `db:"product_id" json:"product_id"`
	TotalOnHand int    `db:"total_on_hand" json:"total_on_hand"`
	Status      Status `db:"status" json:"status"`
	// BatchSequence numbers batch codes; it only grows so codes are never reused.
	BatchSequence int       `db:"batch_sequence" json:"-"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// Batch is a quantity of one product sharing one expiry date.
type Batch struct {
	ID        string `db:"id" json:"id"`
	StockID   string `db:"stock_id" json:"stock_id"`
	ProductID string `db:"product_id" json:"product_id"`
	BatchCode string `db:"batch_code" json:"batch_code"`
	OnHand    int    `db:"on_hand" json:"on_hand"`
	// ExpiryDate is a calendar date at midnight UTC.
	ExpiryDate time.Time `db:"expiry_date" json:"expiry_date"`
	// ExpiryEstimated marks dates synthesized because none was printed on the packaging.
	ExpiryEstimated bool      `db:"expiry_estimated" json:"expiry_estimated"`
	Status          Status    `db:"status" json:"status"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

// Order is a purchase order placed with suppliers.
type Order struct {
	ID           string      `db:"id" json:"id"`
	Reference    string      `db:"reference" json:"reference"`
	Status       OrderStatus `db:"status" json:"status"`
	DateOrdered  time.Time   `db:"date_ordered" json:"date_ordered"`
	DateReceived *time.Time  `db:"date_received" json:"date_received,omitempty"`
	CreatedAt    time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time   `db:"updated_at" json:"updated_at"`
}

// OrderItem is one product line of an order.
type OrderItem struct {
	ID              string          `db:"id" json:"id"`
	OrderID         string          `db:"order_id" json:"order_id"`
	ProductID       string          `db:"product_id" json:"product_id"`
	SupplierID      string          `db:"supplier_id" json:"supplier_id"`
	QuantityOrdered int             `db:"quantity_ordered" json:"quantity_ordered"`
	UnitPrice       decimal.Decimal `db:"unit_price" json:"unit_price"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at" json:"updated_at"`
}

// LineTotal is the ordered value of the item.
func (i OrderItem) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.QuantityOrdered)))
}

// ReceiptRecord is one delivery recorded against an order item.
type ReceiptRecord struct {
	ID               string     `db:"id" json:"id"`
	OrderItemID      string     `db:"order_item_id" json:"order_item_id"`
	BatchID          *string    `db:"batch_id" json:"batch_id,omitempty"`
	QuantityReceived int        `db:"quantity_received" json:"quantity_received"`
	ExpiryDate       *time.Time `db:"expiry_date" json:"expiry_date,omitempty"`
	DateReceived     time.Time  `db:"date_received" json:"date_received"`
	ReceivedBy       string     `db:"received_by" json:"received_by"`
	Remarks          *string    `db:"remarks" json:"remarks,omitempty"`
	UpdatedAt        time.Time  `db:"updated_at" json:"updated_at"`
}

// LedgerEntry is an immutable record of one on-hand change.
type LedgerEntry struct {
	ID        string          `db:"id" json:"id"`
	ProductID string          `db:"product_id" json:"product_id"`
	BatchID   *string         `db:"batch_id" json:"batch_id,omitempty"`
	BatchCode *string         `db:"batch_code" json:"batch_code,omitempty"`
	Type      TransactionType `db:"type" json:"type"`
	// QuantityChange is signed: positive for IN, negative for OUT.
	QuantityChange int `db:"quantity_change" json:"quantity_change"`
	// OnHandBefore and OnHand are product totals around the change.
	OnHandBefore int       `db:"on_hand_before" json:"on_hand_before"`
	OnHand       int       `db:"on_hand" json:"on_hand"`
	ReferenceID  *string   `db:"reference_id" json:"reference_id,omitempty"`
	PerformedBy  string    `db:"performed_by" json:"performed_by"`
	Remarks      *string   `db:"remarks" json:"remarks,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// OrderEvent records one order status change.
type OrderEvent struct {
	ID             string      `db:"id" json:"id"`
	OrderID        string      `db:"order_id" json:"order_id"`
	PreviousStatus OrderStatus `db:"previous_status" json:"previous_status"`
	NewStatus      OrderStatus `db:"new_status" json:"new_status"`
	PerformedBy    string      `db:"performed_by" json:"performed_by"`
	Notes          *string     `db:"notes" json:"notes,omitempty"`
	CreatedAt      time.Time   `db:"created_at" json:"created_at"`
}

// TransactionType classifies ledger entries.
type TransactionType string

const (
	TransactionIn         TransactionType = "IN"
	TransactionOut        TransactionType = "OUT"
	TransactionAdjustment TransactionType = "ADJ"
)
