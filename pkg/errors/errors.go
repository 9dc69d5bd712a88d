package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
)

// Standard error types
var (
	ErrNotFound           = errors.New("resource not found")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrBadRequest         = errors.New("bad request")
	ErrConflict           = errors.New("resource conflict")
	ErrInternal           = errors.New("internal server error")
	ErrValidation         = errors.New("validation error")
	ErrUnavailable        = errors.New("service unavailable")
	ErrOverReceipt        = errors.New("over receipt")
	ErrReceiptDecrease    = errors.New("receipt decrease rejected")
	ErrInsufficientStock  = errors.New("insufficient stock")
	ErrNegativeStock      = errors.New("negative stock rejected")
	ErrConcurrentModified = errors.New("concurrent modification")
)

// AppError represents an application error with context
type AppError struct {
	Err        error             `json:"-"`
	Message    string            `json:"message"`
	Code       string            `json:"code"`
	StatusCode int               `json:"status_code"`
	Details    map[string]string `json:"details,omitempty"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError
func New(code string, message string, statusCode int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

// Wrap wraps an error with additional context
func Wrap(err error, code string, message string, statusCode int) *AppError {
	return &AppError{
		Err:        err,
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

// WithDetails adds details to an AppError
func (e *AppError) WithDetails(details map[string]string) *AppError {
	e.Details = details
	return e
}

// Common error constructors

func NotFound(resource string) *AppError {
	return &AppError{
		Err:        ErrNotFound,
		Code:       "NOT_FOUND",
		Message:    fmt.Sprintf("%s not found", resource),
		StatusCode: http.StatusNotFound,
		Details:    map[string]string{"resource": resource},
	}
}

func Unauthorized(message string) *AppError {
	return &AppError{
		Err:        ErrUnauthorized,
		Code:       "UNAUTHORIZED",
		Message:    message,
		StatusCode: http.StatusUnauthorized,
	}
}

func Forbidden(message string) *AppError {
	return &AppError{
		Err:        ErrForbidden,
		Code:       "FORBIDDEN",
		Message:    message,
		StatusCode: http.StatusForbidden,
	}
}

func BadRequest(message string) *AppError {
	return &AppError{
		Err:        ErrBadRequest,
		Code:       "BAD_REQUEST",
		Message:    message,
		StatusCode: http.StatusBadRequest,
	}
}

func Conflict(message string) *AppError {
	return &AppError{
		Err:        ErrConflict,
		Code:       "CONFLICT",
		Message:    message,
		StatusCode: http.StatusConflict,
	}
}

func Internal(message string) *AppError {
	return &AppError{
		Err:        ErrInternal,
		Code:       "INTERNAL_ERROR",
		Message:    message,
		StatusCode: http.StatusInternalServerError,
	}
}

func Unavailable(message string) *AppError {
	return &AppError{
		Err:        ErrUnavailable,
		Code:       "SERVICE_UNAVAILABLE",
		Message:    message,
		StatusCode: http.StatusServiceUnavailable,
	}
}

func Validation(details map[string]string) *AppError {
	return &AppError{
		Err:        ErrValidation,
		Code:       "VALIDATION_ERROR",
		Message:    "validation failed",
		StatusCode: http.StatusBadRequest,
		Details:    details,
	}
}

// Inventory engine errors

// OverReceipt reports a receipt that would push the cumulative received
// quantity of an order item past what was ordered.
func OverReceipt(ordered, received, requested int) *AppError {
	remaining := ordered - received
	if remaining < 0 {
		remaining = 0
	}
	return &AppError{
		Err:  ErrOverReceipt,
		Code: "OVER_RECEIPT",
		Message: fmt.Sprintf("cannot receive %d: ordered %d, already received %d, remaining %d",
			requested, ordered, received, remaining),
		StatusCode: http.StatusConflict,
		Details: map[string]string{
			"ordered":   strconv.Itoa(ordered),
			"received":  strconv.Itoa(received),
			"remaining": strconv.Itoa(remaining),
			"requested": strconv.Itoa(requested),
		},
	}
}

func ReceiptDecreaseRejected(current, requested int) *AppError {
	return &AppError{
		Err:        ErrReceiptDecrease,
		Code:       "RECEIPT_DECREASE_REJECTED",
		Message:    fmt.Sprintf("receipt quantity cannot decrease from %d to %d, record an adjustment instead", current, requested),
		StatusCode: http.StatusConflict,
		Details: map[string]string{
			"current":   strconv.Itoa(current),
			"requested": strconv.Itoa(requested),
		},
	}
}

func InsufficientStock(available, requested int) *AppError {
	return &AppError{
		Err:        ErrInsufficientStock,
		Code:       "INSUFFICIENT_STOCK",
		Message:    fmt.Sprintf("insufficient stock: available %d, requested %d", available, requested),
		StatusCode: http.StatusConflict,
		Details: map[string]string{
			"available": strconv.Itoa(available),
			"requested": strconv.Itoa(requested),
		},
	}
}

func NegativeStockRejected(onHand, change int) *AppError {
	return &AppError{
		Err:        ErrNegativeStock,
		Code:       "NEGATIVE_STOCK_REJECTED",
		Message:    fmt.Sprintf("adjustment of %d would drive on-hand %d below zero", change, onHand),
		StatusCode: http.StatusConflict,
		Details: map[string]string{
			"on_hand": strconv.Itoa(onHand),
			"change":  strconv.Itoa(change),
		},
	}
}

// NegativeStock reports a write the store refused because it would leave
// on-hand below zero, when the quantities involved are not known.
func NegativeStock(resource string) *AppError {
	if resource == "" {
		resource = "stock"
	}
	return &AppError{
		Err:        ErrNegativeStock,
		Code:       "NEGATIVE_STOCK_REJECTED",
		Message:    fmt.Sprintf("%s on-hand cannot drop below zero", resource),
		StatusCode: http.StatusConflict,
	}
}

func ConcurrentModification(resource string) *AppError {
	return &AppError{
		Err:        ErrConcurrentModified,
		Code:       "CONCURRENT_MODIFICATION",
		Message:    fmt.Sprintf("%s is being modified by another request, retry later", resource),
		StatusCode: http.StatusConflict,
	}
}

// Is checks if the error matches a target error
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As attempts to convert an error to a specific type
func As(err error, target any) bool {
	return errors.As(err, target)
}
