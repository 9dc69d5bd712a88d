package domain

import "time"

// Entities whose status changes are reported.
const (
	EntityBatch = "batch"
	EntityStock = "stock"
	EntityOrder = "order"
)

// StatusChange describes one committed status transition.
type StatusChange struct {
	Entity    string    `json:"entity"`
	EntityID  string    `json:"entity_id"`
	ProductID string    `json:"product_id,omitempty"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	At        time.Time `json:"at"`
}
