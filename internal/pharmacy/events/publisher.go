// Package events turns committed inventory changes into broker messages.
package events

import (
	"context"

	"github.com/medflow/pharmacy-backend/internal/pharmacy/domain"
	"github.com/medflow/pharmacy-backend/internal/pharmacy/service"
	"github.com/medflow/pharmacy-backend/pkg/logger"
	"github.com/medflow/pharmacy-backend/pkg/messaging"
)

// Sink publishes one typed payload. *messaging.Publisher satisfies it.
type Sink interface {
	Publish(ctx context.Context, eventType string, data interface{}) error
}

// InventoryEventPublisher publishes stock movements and status changes.
// A nil publisher drops everything, so the engine can run without a broker.
type InventoryEventPublisher struct {
	sink   Sink
	logger *logger.Logger
}

var _ service.EventPublisher = (*InventoryEventPublisher)(nil)

// NewInventoryEventPublisher creates a publisher on the given exchange.
func NewInventoryEventPublisher(rmq *messaging.RabbitMQ, exchange string, log *logger.Logger) (*InventoryEventPublisher, error) {
	publisher, err := messaging.NewPublisher(rmq, exchange, "pharmacy-service", log)
	if err != nil {
		return nil, err
	}
	return NewWithSink(publisher, log), nil
}

// NewWithSink creates a publisher writing to sink.
func NewWithSink(sink Sink, log *logger.Logger) *InventoryEventPublisher {
	return &InventoryEventPublisher{sink: sink, logger: log}
}

// PublishStockMovement publishes a ledger entry under the event type of
// its transaction type. Failures are logged, never returned: the change
// has already committed.
func (p *InventoryEventPublisher) PublishStockMovement(ctx context.Context, entry domain.LedgerEntry) {
	if p == nil {
		return
	}

	data := messaging.StockMovementEvent{
		ProductID:      entry.ProductID,
		BatchID:        deref(entry.BatchID),
		BatchCode:      deref(entry.BatchCode),
		LedgerEntryID:  entry.ID,
		Type:           string(entry.Type),
		QuantityChange: entry.QuantityChange,
		OnHand:         entry.OnHand,
		ReferenceID:    deref(entry.ReferenceID),
		PerformedBy:    entry.PerformedBy,
	}

	if err := p.sink.Publish(ctx, movementEventType(entry.Type), data); err != nil {
		p.logger.Error().Err(err).Str("ledger_entry_id", entry.ID).Msg("failed to publish stock movement event")
	}
}

// PublishStatusChanged publishes a batch, stock or order status transition.
func (p *InventoryEventPublisher) PublishStatusChanged(ctx context.Context, change domain.StatusChange) {
	if p == nil {
		return
	}

	eventType, ok := statusEventType(change.Entity)
	if !ok {
		p.logger.Warn().Str("entity", change.Entity).Msg("no event type for status change")
		return
	}

	data := messaging.StatusChangedEvent{
		Entity:     change.Entity,
		EntityID:   change.EntityID,
		ProductID:  change.ProductID,
		OldStatus:  change.From,
		NewStatus:  change.To,
		OccurredAt: change.At,
	}

	if err := p.sink.Publish(ctx, eventType, data); err != nil {
		p.logger.Error().Err(err).Str("entity_id", change.EntityID).Msg("failed to publish status changed event")
	}
}

func movementEventType(t domain.TransactionType) string {
	switch t {
	case domain.TransactionIn:
		return messaging.EventStockReceived
	case domain.TransactionOut:
		return messaging.EventStockDispensed
	default:
		return messaging.EventStockAdjusted
	}
}

func statusEventType(entity string) (string, bool) {
	switch entity {
	case domain.EntityBatch:
		return messaging.EventBatchStatusChanged, true
	case domain.EntityStock:
		return messaging.EventStockStatusChanged, true
	case domain.EntityOrder:
		return messaging.EventOrderStatusChanged, true
	}
	return "", false
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
