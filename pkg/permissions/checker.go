// Package permissions checks gateway-granted permissions against the ones a
// pharmacy route requires.
//
// Permission Format:
//   - "*" - Full access
//   - "pharmacy.*" - All pharmacy actions
//   - "pharmacy.action" - Specific action (e.g., "pharmacy.receive")
package permissions

import (
	"strings"
)

// Pharmacy permissions
const (
	Receive        = "pharmacy.receive"
	Dispense       = "pharmacy.dispense"
	Adjust         = "pharmacy.adjust"
	ManageOrders   = "pharmacy.orders.manage"
	All            = "pharmacy.*"
	FullAccess     = "*"
	wildcardSuffix = ".*"
)

// HasPermission reports whether granted covers required. "*" matches
// everything and "pharmacy.*" matches every permission below pharmacy.
func HasPermission(granted []string, required string) bool {
	if required == "" {
		return true
	}

	for _, p := range granted {
		if p == FullAccess || p == required {
			return true
		}
		if strings.HasSuffix(p, wildcardSuffix) {
			prefix := strings.TrimSuffix(p, wildcardSuffix)
			if strings.HasPrefix(required, prefix+".") {
				return true
			}
		}
	}
	return false
}

// HasAnyPermission checks if granted covers any of required.
func HasAnyPermission(granted []string, required ...string) bool {
	for _, req := range required {
		if HasPermission(granted, req) {
			return true
		}
	}
	return false
}
