// Package apperror provides structured error handling following RFC 7807 Problem Details.
// All business errors must use AppError for consistent API responses.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes following domain-driven design
const (
	// Infrastructure errors (5xx)
	CodeInternal = "INTERNAL_ERROR"
	CodeDatabase = "DATABASE_ERROR"
	CodeTimeout  = "TIMEOUT_ERROR"

	// Validation errors (400)
	CodeValidation   = "VALIDATION_ERROR"
	CodeInvalidInput = "INVALID_INPUT"

	// Business rule violations (422)
	CodeBusinessRule            = "BUSINESS_RULE_VIOLATION"
	CodeInsufficientStock       = "INSUFFICIENT_STOCK"
	CodeExceedsAvailableStock   = "EXCEEDS_AVAILABLE_STOCK"
	CodeExceedsLotStock         = "EXCEEDS_LOT_STOCK"
	CodeNoQuantitySelected      = "NO_QUANTITY_SELECTED"
	CodeInvalidStatusTransition = "INVALID_STATUS_TRANSITION"
	CodeRestorationUnavailable  = "RESTORATION_UNAVAILABLE"
	CodeConcurrentModification  = "CONCURRENT_MODIFICATION"

	// Authorization errors (401, 403)
	CodeNotAuthenticated = "NOT_AUTHENTICATED"
	CodeForbidden        = "FORBIDDEN"

	// Not found (404)
	CodeNotFound = "NOT_FOUND"

	// Conflict (409)
	CodeConflict     = "CONFLICT"
	CodeDuplicateLot = "DUPLICATE_LOT"
)

// AppError is the standard error type for the service.
// It implements error interface and provides structured details for API responses.
type AppError struct {
	// Code is a machine-readable error identifier
	Code string `json:"code"`

	// Message is a human-readable error description
	Message string `json:"message"`

	// Details contains additional context (field errors, quantities, etc.)
	Details map[string]any `json:"details,omitempty"`

	// HTTPStatus is the suggested HTTP status code
	HTTPStatus int `json:"-"`

	// Err is the underlying error (not exposed in JSON)
	Err error `json:"-"`
}

// Error implements error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *AppError) Unwrap() error {
	return e.Err
}

// WithDetail adds a key-value pair to error details
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// WithCause sets the underlying error
func (e *AppError) WithCause(err error) *AppError {
	e.Err = err
	return e
}

// --- Factory functions for common errors ---

// NewValidation creates a validation error (400)
func NewValidation(message string) *AppError {
	return &AppError{
		Code:       CodeValidation,
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
	}
}

// NewNotFound creates a not found error (404)
func NewNotFound(entity string, id any) *AppError {
	return &AppError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", entity),
		HTTPStatus: http.StatusNotFound,
		Details:    map[string]any{"entity": entity, "id": id},
	}
}

// NewBusinessRule creates a business rule violation error (422)
func NewBusinessRule(code, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: http.StatusUnprocessableEntity,
	}
}

// NewInsufficientStock is returned when an exit movement asks for more units
// than the product currently has on hand.
func NewInsufficientStock(productID string, requested, available int64) *AppError {
	return &AppError{
		Code:       CodeInsufficientStock,
		Message:    "Insufficient stock",
		HTTPStatus: http.StatusUnprocessableEntity,
		Details: map[string]any{
			"product_id": productID,
			"requested":  requested,
			"available":  available,
		},
	}
}

// NewExceedsAvailableStock is returned when a lot adjustment would push the
// lot total above the product's recorded stock.
func NewExceedsAvailableStock(productID string, requested, available int64) *AppError {
	return &AppError{
		Code:       CodeExceedsAvailableStock,
		Message:    "Lot quantity exceeds available product stock",
		HTTPStatus: http.StatusUnprocessableEntity,
		Details: map[string]any{
			"product_id": productID,
			"requested":  requested,
			"available":  available,
		},
	}
}

// NewExceedsLotStock names the offending lot so the caller can surface it.
func NewExceedsLotStock(lotID string, lotNumber string, requested, available int64) *AppError {
	return &AppError{
		Code:       CodeExceedsLotStock,
		Message:    fmt.Sprintf("Selected quantity exceeds stock of lot %s", lotNumber),
		HTTPStatus: http.StatusUnprocessableEntity,
		Details: map[string]any{
			"lot_id":     lotID,
			"lot_number": lotNumber,
			"requested":  requested,
			"available":  available,
		},
	}
}

// NewNoQuantitySelected is returned when an allocation is confirmed with a
// zero total.
func NewNoQuantitySelected() *AppError {
	return &AppError{
		Code:       CodeNoQuantitySelected,
		Message:    "No quantity selected",
		HTTPStatus: http.StatusUnprocessableEntity,
	}
}

// NewInvalidStatusTransition is returned for a movement status change the
// transition table does not allow.
func NewInvalidStatusTransition(from, to string) *AppError {
	return &AppError{
		Code:       CodeInvalidStatusTransition,
		Message:    fmt.Sprintf("Cannot transition movement from %s to %s", from, to),
		HTTPStatus: http.StatusUnprocessableEntity,
		Details:    map[string]any{"from": from, "to": to},
	}
}

// NewRestorationUnavailable is returned when a cancelled sale cannot have its
// lot quantities put back (lots deleted, no recorded breakdown).
func NewRestorationUnavailable(movementID string, reason string) *AppError {
	return &AppError{
		Code:       CodeRestorationUnavailable,
		Message:    "Lot quantities cannot be restored for this movement",
		HTTPStatus: http.StatusUnprocessableEntity,
		Details:    map[string]any{"movement_id": movementID, "reason": reason},
	}
}

// NewConcurrentModification creates an optimistic locking error
func NewConcurrentModification(entity string, id any) *AppError {
	return &AppError{
		Code:       CodeConcurrentModification,
		Message:    "Record was modified by another user. Please refresh and try again.",
		HTTPStatus: http.StatusConflict,
		Details:    map[string]any{"entity": entity, "id": id},
	}
}

// NewInternal creates an internal server error (hides details from client)
func NewInternal(err error) *AppError {
	return &AppError{
		Code:       CodeInternal,
		Message:    "Internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// NewNotAuthenticated creates an authentication error (401)
func NewNotAuthenticated(message string) *AppError {
	return &AppError{
		Code:       CodeNotAuthenticated,
		Message:    message,
		HTTPStatus: http.StatusUnauthorized,
	}
}

// NewForbidden creates an authorization error (403)
func NewForbidden(message string) *AppError {
	return &AppError{
		Code:       CodeForbidden,
		Message:    message,
		HTTPStatus: http.StatusForbidden,
	}
}

// NewConflict creates a conflict error (409)
func NewConflict(message string) *AppError {
	return &AppError{
		Code:       CodeConflict,
		Message:    message,
		HTTPStatus: http.StatusConflict,
	}
}

// NewDuplicateLot is returned when a lot number is reused within one product.
func NewDuplicateLot(productID, lotNumber string) *AppError {
	return &AppError{
		Code:       CodeDuplicateLot,
		Message:    fmt.Sprintf("Lot %s already exists for this product", lotNumber),
		HTTPStatus: http.StatusConflict,
		Details:    map[string]any{"product_id": productID, "lot_number": lotNumber},
	}
}

// --- Helper functions ---

// IsAppError checks if error is AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

// AsAppError extracts AppError from error chain
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// GetHTTPStatus returns appropriate HTTP status for any error
func GetHTTPStatus(err error) int {
	if appErr, ok := AsAppError(err); ok {
		return appErr.HTTPStatus
	}
	return http.StatusInternalServerError
}

// IsNotFound checks if error is CodeNotFound
func IsNotFound(err error) bool {
	return HasCode(err, CodeNotFound)
}

// IsConcurrentModification checks if error is CodeConcurrentModification
func IsConcurrentModification(err error) bool {
	return HasCode(err, CodeConcurrentModification)
}

// HasCode checks the error chain for an AppError with the given code.
func HasCode(err error, code string) bool {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code == code
	}
	return false
}
