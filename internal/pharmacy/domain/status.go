package domain

import (
	"time"

	"github.com/medflow/pharmacy-backend/pkg/clock"
)

// Status is the derived condition of a batch or stock.
type Status string

const (
	StatusNormal     Status = "Normal"
	StatusLowStock   Status = "Low Stock"
	StatusNearExpiry Status = "Near Expiry"
	StatusExpired    Status = "Expired"
	StatusOutOfStock Status = "Out of Stock"
)

// severity orders statuses of batches that still hold stock.
var severity = map[Status]int{
	StatusNormal:     0,
	StatusLowStock:   1,
	StatusNearExpiry: 2,
	StatusExpired:    3,
}

// DaysUntilExpiry counts calendar days from today to expiry; zero or less means expired.
func DaysUntilExpiry(expiry, today time.Time) int {
	return clock.DaysBetween(today, expiry)
}

// ComputeBatchStatus derives a batch status. The first matching rule wins:
// empty, expired, near expiry, low stock, normal.
func ComputeBatchStatus(b Batch, expiryThresholdDays, lowStockThreshold int, today time.Time) Status {
	days := DaysUntilExpiry(b.ExpiryDate, today)

	switch {
	case b.OnHand <= 0:
		return StatusOutOfStock
	case days <= 0:
		return StatusExpired
	case days <= expiryThresholdDays:
		return StatusNearExpiry
	case b.OnHand <= lowStockThreshold:
		return StatusLowStock
	default:
		return StatusNormal
	}
}

// ComputeStockStatus rolls batch statuses up to the stock. Only batches with
// stock on hand count; with none left the stock is out of stock. Batch
// statuses must already be current.
func ComputeStockStatus(batches []Batch) Status {
	result := StatusOutOfStock
	worst := -1

	for _, b := range batches {
		if b.OnHand <= 0 {
			continue
		}
		status := b.Status
		rank, ok := severity[status]
		if !ok {
			rank, status = 0, StatusNormal
		}
		if rank > worst {
			worst, result = rank, status
		}
	}

	return result
}

// ActiveBatches returns the batches that still hold stock.
func ActiveBatches(batches []Batch) []Batch {
	active := make([]Batch, 0, len(batches))
	for _, b := range batches {
		if b.OnHand > 0 {
			active = append(active, b)
		}
	}
	return active
}

// TotalOnHand sums on-hand over batches.
func TotalOnHand(batches []Batch) int {
	total := 0
	for _, b := range batches {
		total += b.OnHand
	}
	return total
}
