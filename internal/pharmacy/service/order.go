package service

import (
	"context"
	"fmt"
	"sort"

	"github.com/medflow/pharmacy-backend/internal/pharmacy/domain"
	"github.com/medflow/pharmacy-backend/pkg/errors"
	"github.com/medflow/pharmacy-backend/pkg/idgen"
)

// OrderStatusMachine derives order status from receipts and records each
// transition as an order event.
type OrderStatusMachine struct {
	ids idgen.Generator
}

// NewOrderStatusMachine creates an order status machine.
func NewOrderStatusMachine(ids idgen.Generator) *OrderStatusMachine {
	return &OrderStatusMachine{ids: ids}
}

// Update locks the order and re-derives its status from the receipt totals
// of all its items. Safe to call after every receipt or item edit.
func (m *OrderStatusMachine) Update(ctx context.Context, w *UnitOfWork, orderID string) (*domain.Order, error) {
	order, err := w.Tx.LockOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	ordered, received, err := orderTotals(ctx, w.Tx, orderID)
	if err != nil {
		return nil, err
	}

	previous, changed := domain.ApplyOrderStatus(order, ordered, received, w.Now)
	if !changed {
		return order, nil
	}

	order.UpdatedAt = w.Now
	if err := w.Tx.UpdateOrder(ctx, order); err != nil {
		return nil, err
	}
	if previous != order.Status {
		if err := m.record(ctx, w, order, previous, nil); err != nil {
			return nil, err
		}
	}
	return order, nil
}

// Transition moves an order to target after validating the transition.
func (m *OrderStatusMachine) Transition(ctx context.Context, w *UnitOfWork, order *domain.Order, target domain.OrderStatus, notes *string) error {
	if !order.Status.CanTransitionTo(target) {
		return errors.Conflict(fmt.Sprintf("order cannot move from %s to %s", order.Status, target))
	}

	previous := order.Status
	order.Status = target
	order.UpdatedAt = w.Now
	if err := w.Tx.UpdateOrder(ctx, order); err != nil {
		return err
	}
	return m.record(ctx, w, order, previous, notes)
}

func (m *OrderStatusMachine) record(ctx context.Context, w *UnitOfWork, order *domain.Order, previous domain.OrderStatus, notes *string) error {
	w.transition(domain.EntityOrder, order.ID, "", string(previous), string(order.Status))
	return w.Tx.CreateOrderEvent(ctx, &domain.OrderEvent{
		ID:             m.ids.NewID(),
		OrderID:        order.ID,
		PreviousStatus: previous,
		NewStatus:      order.Status,
		PerformedBy:    w.PerformedBy,
		Notes:          notes,
		CreatedAt:      w.Now,
	})
}

func orderTotals(ctx context.Context, tx Tx, orderID string) (ordered, received int, err error) {
	items, err := tx.ListOrderItems(ctx, orderID)
	if err != nil {
		return 0, 0, err
	}
	sums, err := tx.SumReceipts(ctx, orderID)
	if err != nil {
		return 0, 0, err
	}

	for _, item := range items {
		ordered += item.QuantityOrdered
		received += sums[item.ID]
	}
	return ordered, received, nil
}

// CancelOrder cancels a Pending or Partially Received order. All items are
// locked first so no receipt can land while the order is being cancelled.
func (e *Engine) CancelOrder(ctx context.Context, orderID, performedBy string, reason *string) (*domain.Order, error) {
	if err := requirePerformer(performedBy); err != nil {
		return nil, err
	}

	var result *domain.Order
	err := e.run(ctx, performedBy, func(ctx context.Context, w *UnitOfWork) error {
		items, err := w.Tx.ListOrderItems(ctx, orderID)
		if err != nil {
			return err
		}
		sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
		for _, item := range items {
			if _, err := w.Tx.LockOrderItem(ctx, item.ID); err != nil {
				return err
			}
		}

		order, err := w.Tx.LockOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if err := e.orders.Transition(ctx, w, order, domain.OrderCancelled, reason); err != nil {
			return err
		}
		result = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// UpdateOrderItemQuantity changes the ordered quantity of an item that has
// not received anything yet, then re-derives the order status.
func (e *Engine) UpdateOrderItemQuantity(ctx context.Context, orderItemID string, quantity int, performedBy string) (*domain.OrderItem, error) {
	if err := requirePositive("quantity", quantity); err != nil {
		return nil, err
	}
	if err := requirePerformer(performedBy); err != nil {
		return nil, err
	}

	var result *domain.OrderItem
	err := e.run(ctx, performedBy, func(ctx context.Context, w *UnitOfWork) error {
		item, err := w.Tx.LockOrderItem(ctx, orderItemID)
		if err != nil {
			return err
		}

		order, err := w.Tx.GetOrder(ctx, item.OrderID)
		if err != nil {
			return err
		}
		if order.Status == domain.OrderCancelled {
			return errors.Conflict("order is cancelled")
		}

		received, err := w.Tx.SumItemReceipts(ctx, item.ID)
		if err != nil {
			return err
		}
		if received > 0 {
			return errors.Conflict("ordered quantity cannot change once receipts exist").
				WithDetails(map[string]string{"received": fmt.Sprint(received)})
		}

		if item.QuantityOrdered != quantity {
			item.QuantityOrdered = quantity
			item.UpdatedAt = w.Now
			if err := w.Tx.UpdateOrderItem(ctx, item); err != nil {
				return err
			}
			if _, err := e.orders.Update(ctx, w, item.OrderID); err != nil {
				return err
			}
		}

		result = item
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
