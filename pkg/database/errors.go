package database

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/lib/pq"
	"github.com/medflow/pharmacy-backend/pkg/errors"
)

// MapPQError converts a PostgreSQL error to an AppError.
// Returns nil if the error is not a pq.Error or has no specific mapping.
func MapPQError(err error) *errors.AppError {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return nil
	}

	switch pqErr.Code {
	// lock_not_available, raised when lock_timeout expires
	case "55P03":
		return errors.ConcurrentModification(lockedResource(pqErr))

	// deadlock_detected, serialization_failure
	case "40P01", "40001":
		return errors.ConcurrentModification(lockedResource(pqErr))

	case "23514":
		return mapCheckConstraint(pqErr)

	case "23505":
		return errors.Conflict(formatConstraintMessage(pqErr))

	case "23503":
		return errors.BadRequest("referenced record does not exist")

	case "23502":
		col := pqErr.Column
		if col == "" {
			col = "required field"
		}
		return errors.Validation(map[string]string{col: "must not be empty"})

	default:
		return nil
	}
}

// Classify maps driver and context errors into AppErrors, falling back to
// an internal error that wraps the original. Mapped errors match both their
// sentinel and the driver error.
func Classify(err error, message string) error {
	if err == nil {
		return nil
	}
	var appErr *errors.AppError
	if errors.As(err, &appErr) {
		return err
	}
	if mapped := MapPQError(err); mapped != nil {
		mapped.Err = fmt.Errorf("%w: %w", mapped.Err, err)
		return mapped
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return errors.ConcurrentModification("resource")
	}
	return errors.Wrap(err, "INTERNAL_ERROR", message, http.StatusInternalServerError)
}

func lockedResource(pqErr *pq.Error) string {
	if pqErr.Table != "" {
		return pqErr.Table
	}
	return "resource"
}

func mapCheckConstraint(pqErr *pq.Error) *errors.AppError {
	constraint := pqErr.Constraint

	switch {
	case strings.Contains(constraint, "on_hand_nonnegative"):
		return errors.NegativeStock(pqErr.Table)

	case strings.Contains(constraint, "quantity_positive"):
		return errors.Validation(map[string]string{"quantity": "must be greater than zero"})

	case strings.Contains(constraint, "status_valid"):
		return errors.Validation(map[string]string{"status": "is not a recognised status"})

	default:
		return errors.BadRequest("data validation failed: " + constraint)
	}
}

func formatConstraintMessage(pqErr *pq.Error) string {
	constraint := pqErr.Constraint

	switch {
	case strings.Contains(constraint, "batch_code"):
		return "a batch with this code already exists"
	case strings.Contains(constraint, "stocks_product"):
		return "stock for this product already exists"
	default:
		return "a record with these values already exists"
	}
}
