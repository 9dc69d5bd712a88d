package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/medflow/pharmacy-backend/pkg/logger"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingChannel struct {
	exchange string
	key      string
	msg      amqp.Publishing
	err      error
}

func (c *recordingChannel) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	c.exchange = exchange
	c.key = key
	c.msg = msg
	return c.err
}

func TestPublisher_Publish(t *testing.T) {
	ch := &recordingChannel{}
	p := &Publisher{channel: ch, exchange: ExchangePharmacyEvents, source: "pharmacy-service", logger: logger.Nop()}

	ctx := WithCorrelationID(context.Background(), "req-123")
	err := p.Publish(ctx, EventStockReceived, StockMovementEvent{
		ProductID:      "p-1",
		Type:           "IN",
		QuantityChange: 30,
		OnHand:         30,
		PerformedBy:    "pharmacist@example.com",
	})
	require.NoError(t, err)

	assert.Equal(t, ExchangePharmacyEvents, ch.exchange)
	assert.Equal(t, EventStockReceived, ch.key)
	assert.Equal(t, "req-123", ch.msg.CorrelationId)
	assert.Equal(t, amqp.Persistent, ch.msg.DeliveryMode)

	var event Event
	require.NoError(t, json.Unmarshal(ch.msg.Body, &event))
	assert.Equal(t, ch.msg.MessageId, event.ID)
	assert.Equal(t, "pharmacy-service", event.Source)

	var data StockMovementEvent
	require.NoError(t, event.UnmarshalData(&data))
	assert.Equal(t, 30, data.QuantityChange)
	assert.Equal(t, "p-1", data.ProductID)
}

func TestPublisher_PublishError(t *testing.T) {
	ch := &recordingChannel{err: fmt.Errorf("channel closed")}
	p := &Publisher{channel: ch, exchange: ExchangePharmacyEvents, source: "pharmacy-service", logger: logger.Nop()}

	err := p.Publish(context.Background(), EventStockAdjusted, StockMovementEvent{})
	assert.ErrorContains(t, err, "channel closed")
}

func TestNewEvent_IDsAreSortable(t *testing.T) {
	first, err := NewEvent(EventOrderStatusChanged, "s", "", StatusChangedEvent{})
	require.NoError(t, err)
	second, err := NewEvent(EventOrderStatusChanged, "s", "", StatusChangedEvent{})
	require.NoError(t, err)

	assert.Less(t, first.ID, second.ID)
	assert.Empty(t, CorrelationID(context.Background()))
}
