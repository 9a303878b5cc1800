package domain

import (
	"errors"
	"fmt"
)

// Application error codes
const (
	EINVALID        = "invalid"         // Invalid input or validation failure
	ENOTFOUND       = "not_found"       // Resource not found
	ECONFLICT       = "conflict"        // Resource conflict (e.g., duplicate)
	EQUOTA          = "quota_exceeded"  // Monthly design quota exhausted
	EINACTIVE       = "inactive"        // Subscription not active
	ETRANSITION     = "bad_transition"  // Illegal state machine transition
	EUNKNOWNPRODUCT = "unknown_product" // No validator registered for product type
	EINTERNAL       = "internal"        // Internal server error
)

// Error represents an application error with structured information.
type Error struct {
	Code    string // Machine-readable error code
	Op      string // Operation that failed (e.g., "design.create")
	Message string // Human-readable message
	Err     error  // Underlying error
}

func (e *Error) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Errorf creates a new Error with the given code, operation, and formatted message.
func Errorf(code, op, format string, args ...interface{}) *Error {
	return &Error{
		Code:    code,
		Op:      op,
		Message: fmt.Sprintf(format, args...),
	}
}

// ErrorCode returns the code of the root error, or EINTERNAL if none.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return EINTERNAL
}

// ErrorMessage returns the human-readable message of the error.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		if e.Code == EINTERNAL {
			return "An internal error occurred. Please try again later."
		}
		return e.Message
	}
	return "An internal error occurred. Please try again later."
}

// Convenience constructors for common error types

// NotFound creates a not found error.
func NotFound(op, resource, id string) *Error {
	return &Error{
		Code:    ENOTFOUND,
		Op:      op,
		Message: fmt.Sprintf("%s with ID %q not found", resource, id),
	}
}

// Invalid creates a validation error.
func Invalid(op, message string) *Error {
	return &Error{
		Code:    EINVALID,
		Op:      op,
		Message: message,
	}
}

// Conflict creates a conflict error.
func Conflict(op, message string) *Error {
	return &Error{
		Code:    ECONFLICT,
		Op:      op,
		Message: message,
	}
}

// Internal creates an internal error, wrapping the underlying error.
func Internal(err error, op, message string) *Error {
	return &Error{
		Code:    EINTERNAL,
		Op:      op,
		Message: message,
		Err:     err,
	}
}

// QuotaExceeded creates an error for an exhausted monthly design quota.
func QuotaExceeded(op string, plan PlanType, used, limit int) *Error {
	return &Error{
		Code:    EQUOTA,
		Op:      op,
		Message: fmt.Sprintf("design quota exceeded for %s plan (%d/%d)", plan, used, limit),
	}
}

// InactiveSubscription creates an error for an operation requiring an active subscription.
func InactiveSubscription(op string, status SubscriptionStatus) *Error {
	return &Error{
		Code:    EINACTIVE,
		Op:      op,
		Message: fmt.Sprintf("subscription is %s, must be active", status),
	}
}

// InvalidTransition creates an error for an illegal state machine transition.
func InvalidTransition(op, from, to string) *Error {
	return &Error{
		Code:    ETRANSITION,
		Op:      op,
		Message: fmt.Sprintf("cannot transition from %s to %s", from, to),
	}
}

// UnknownProductType creates an error for a product type with no registered validator.
func UnknownProductType(op, productType string) *Error {
	return &Error{
		Code:    EUNKNOWNPRODUCT,
		Op:      op,
		Message: fmt.Sprintf("unknown product type: %s", productType),
	}
}
