package model

import (
	"errors"
	"fmt"
)

// Standard error codes.
const (
	ErrBadRequest        = "BAD_REQUEST"
	ErrUnauthorized      = "UNAUTHORIZED"
	ErrNotFound          = "NOT_FOUND"
	ErrConflict          = "CONFLICT"
	ErrValidationError   = "VALIDATION_ERROR"
	ErrInternalError     = "INTERNAL_ERROR"
	ErrStoreUnavailable  = "STORE_UNAVAILABLE"
	ErrTripNotFound      = "TRIP_NOT_FOUND"
	ErrDecisionMissing   = "DECISION_MISSING"
	ErrIdempotencyReplay = "IDEMPOTENCY_CONFLICT"
)

// ErrorEnvelope is the standard error response envelope returned by the
// service. It implements the error interface.
type ErrorEnvelope struct {
	Code    string       `json:"code"`
	Message string       `json:"message"`
	Details []FieldError `json:"details,omitempty"`
	TraceID string       `json:"trace_id,omitempty"`
}

// Error implements the error interface.
func (e *ErrorEnvelope) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// FieldError describes a field-level validation error.
type FieldError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// AsEnvelope unwraps err to an *ErrorEnvelope if one is in its chain.
func AsEnvelope(err error) (*ErrorEnvelope, bool) {
	var ee *ErrorEnvelope
	if errors.As(err, &ee) {
		return ee, true
	}
	return nil, false
}

// HasCode reports whether err carries an ErrorEnvelope with the given code.
func HasCode(err error, code string) bool {
	ee, ok := AsEnvelope(err)
	return ok && ee.Code == code
}

// NewBadRequestError returns a BAD_REQUEST error.
func NewBadRequestError(msg string) *ErrorEnvelope {
	return &ErrorEnvelope{Code: ErrBadRequest, Message: msg}
}

// NewUnauthorizedError returns an UNAUTHORIZED error.
func NewUnauthorizedError(msg string) *ErrorEnvelope {
	return &ErrorEnvelope{Code: ErrUnauthorized, Message: msg}
}

// NewNotFoundError returns a NOT_FOUND error.
func NewNotFoundError(msg string) *ErrorEnvelope {
	return &ErrorEnvelope{Code: ErrNotFound, Message: msg}
}

// NewTripNotFoundError returns a TRIP_NOT_FOUND error.
func NewTripNotFoundError(tripID string) *ErrorEnvelope {
	return &ErrorEnvelope{
		Code:    ErrTripNotFound,
		Message: fmt.Sprintf("trip %q not found", tripID),
	}
}

// NewConflictError returns a CONFLICT error.
func NewConflictError(msg string) *ErrorEnvelope {
	return &ErrorEnvelope{Code: ErrConflict, Message: msg}
}

// NewIdempotencyConflictError returns an IDEMPOTENCY_CONFLICT error.
func NewIdempotencyConflictError(key string) *ErrorEnvelope {
	return &ErrorEnvelope{
		Code:    ErrIdempotencyReplay,
		Message: fmt.Sprintf("idempotency key %q already used with different input", key),
	}
}

// NewDecisionMissingError returns a DECISION_MISSING error. It is raised when
// a workflow operation runs before any decision package was derived.
func NewDecisionMissingError(tripID string) *ErrorEnvelope {
	return &ErrorEnvelope{
		Code:    ErrDecisionMissing,
		Message: fmt.Sprintf("trip %q has no decision package yet", tripID),
	}
}

// NewValidationError returns a VALIDATION_ERROR with field-level details.
func NewValidationError(details []FieldError) *ErrorEnvelope {
	return &ErrorEnvelope{
		Code:    ErrValidationError,
		Message: "One or more fields are invalid",
		Details: details,
	}
}

// NewInternalError returns an INTERNAL_ERROR.
func NewInternalError() *ErrorEnvelope {
	return &ErrorEnvelope{
		Code:    ErrInternalError,
		Message: "An unexpected error occurred",
	}
}

// NewStoreUnavailableError returns a STORE_UNAVAILABLE error.
func NewStoreUnavailableError() *ErrorEnvelope {
	return &ErrorEnvelope{
		Code:    ErrStoreUnavailable,
		Message: "The trip store is temporarily unavailable",
	}
}
