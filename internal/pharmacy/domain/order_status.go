package domain

import "time"

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	OrderPending           OrderStatus = "Pending"
	OrderPartiallyReceived OrderStatus = "Partially Received"
	OrderReceived          OrderStatus = "Received"
	OrderCancelled         OrderStatus = "Cancelled"
)

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderPending:           {OrderPartiallyReceived, OrderReceived, OrderCancelled},
	OrderPartiallyReceived: {OrderReceived, OrderCancelled},
	OrderReceived:          {},
	OrderCancelled:         {},
}

// CanTransitionTo reports whether target is reachable from s.
func (s OrderStatus) CanTransitionTo(target OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// DeriveOrderStatus maps receipt totals to a status. Cancelled is never derived.
func DeriveOrderStatus(totalOrdered, totalReceived int) OrderStatus {
	switch {
	case totalReceived == 0:
		return OrderPending
	case totalReceived >= totalOrdered:
		return OrderReceived
	default:
		return OrderPartiallyReceived
	}
}

// ApplyOrderStatus updates order from receipt totals and returns the previous
// status and whether anything changed. Cancelled orders are left alone.
// DateReceived is set the first time the order becomes Received and never
// overwritten afterwards.
func ApplyOrderStatus(order *Order, totalOrdered, totalReceived int, now time.Time) (OrderStatus, bool) {
	previous := order.Status
	if previous == OrderCancelled {
		return previous, false
	}

	next := DeriveOrderStatus(totalOrdered, totalReceived)
	changed := next != previous
	order.Status = next

	if next == OrderReceived && order.DateReceived == nil {
		t := now
		order.DateReceived = &t
		changed = true
	}

	return previous, changed
}
