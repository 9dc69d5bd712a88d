package domain

import (
	"fmt"
	"sort"
	"time"
)

// MergePolicy decides whether received stock joins an existing batch.
type MergePolicy struct {
	// ToleranceDays is how far apart estimated expiry dates may be and still merge.
	ToleranceDays int
	// RecentDays excludes batches that expired longer ago than this.
	RecentDays int
}

// Target returns the expiry date received stock will carry and the merge
// tolerance to use. Printed dates must match exactly; missing dates are
// estimated as today + product threshold + tolerance.
func (p MergePolicy) Target(product Product, expiry *time.Time, today time.Time) (target time.Time, toleranceDays int, estimated bool) {
	if expiry != nil {
		return *expiry, 0, false
	}
	return today.AddDate(0, 0, product.ExpiryThresholdDays+p.ToleranceDays), p.ToleranceDays, true
}

// Choose picks the batch to merge into, or nil when a new batch is needed.
// Candidates expiring before today - RecentDays, or already near expiry or
// expired, are skipped. The rest are scanned by ascending expiry date and
// the first within tolerance wins, so repeated calls choose the same batch.
func (p MergePolicy) Choose(batches []Batch, product Product, target time.Time, toleranceDays int, today time.Time) *Batch {
	cutoff := today.AddDate(0, 0, -p.RecentDays)

	candidates := make([]*Batch, 0, len(batches))
	for i := range batches {
		b := &batches[i]
		if b.ProductID != "" && b.ProductID != product.ID {
			continue
		}
		if b.ExpiryDate.Before(cutoff) {
			continue
		}
		if DaysUntilExpiry(b.ExpiryDate, today) <= product.ExpiryThresholdDays {
			continue
		}
		candidates = append(candidates, b)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].ExpiryDate.Equal(candidates[j].ExpiryDate) {
			return candidates[i].ID < candidates[j].ID
		}
		return candidates[i].ExpiryDate.Before(candidates[j].ExpiryDate)
	})

	for _, b := range candidates {
		if abs(DaysUntilExpiry(target, b.ExpiryDate)) <= toleranceDays {
			return b
		}
	}
	return nil
}

// FormatBatchCode renders the human batch code for the n-th batch of a product.
func FormatBatchCode(productCode string, n int) string {
	return fmt.Sprintf("BATCH-%s-%03d", productCode, n)
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
