package messaging

import (
	"encoding/json"
	"time"

	"github.com/medflow/pharmacy-backend/pkg/idgen"
)

// Event types
const (
	EventStockReceived      = "pharmacy.stock.received"
	EventStockAdjusted      = "pharmacy.stock.adjusted"
	EventStockDispensed     = "pharmacy.stock.dispensed"
	EventBatchStatusChanged = "pharmacy.batch.status.changed"
	EventStockStatusChanged = "pharmacy.stock.status.changed"
	EventOrderStatusChanged = "pharmacy.order.status.changed"
)

// ExchangePharmacyEvents is the default topic exchange for engine events.
const ExchangePharmacyEvents = "pharmacy.events"

var eventIDs idgen.Generator = idgen.NewULID()

// Event is the envelope every message is wrapped in
type Event struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	Source        string          `json:"source"`
	Timestamp     time.Time       `json:"timestamp"`
	CorrelationID string          `json:"correlation_id"`
	Data          json.RawMessage `json:"data"`
}

// NewEvent wraps data in an envelope with a fresh sortable ID.
func NewEvent(eventType, source, correlationID string, data interface{}) (*Event, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Event{
		ID:            eventIDs.NewID(),
		Type:          eventType,
		Source:        source,
		Timestamp:     time.Now().UTC(),
		CorrelationID: correlationID,
		Data:          dataBytes,
	}, nil
}

// UnmarshalData unmarshals the event data into v
func (e *Event) UnmarshalData(v interface{}) error {
	return json.Unmarshal(e.Data, v)
}

// StockMovementEvent is published for receipts, adjustments and dispenses
type StockMovementEvent struct {
	ProductID      string `json:"product_id"`
	BatchID        string `json:"batch_id,omitempty"`
	BatchCode      string `json:"batch_code,omitempty"`
	LedgerEntryID  string `json:"ledger_entry_id"`
	Type           string `json:"type"`
	QuantityChange int    `json:"quantity_change"`
	OnHand         int    `json:"on_hand"`
	ReferenceID    string `json:"reference_id,omitempty"`
	PerformedBy    string `json:"performed_by"`
}

// StatusChangedEvent is published when a batch, stock or order status changes
type StatusChangedEvent struct {
	Entity     string    `json:"entity"`
	EntityID   string    `json:"entity_id"`
	ProductID  string    `json:"product_id,omitempty"`
	OldStatus  string    `json:"old_status"`
	NewStatus  string    `json:"new_status"`
	OccurredAt time.Time `json:"occurred_at"`
}
