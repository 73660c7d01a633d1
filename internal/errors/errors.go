package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a nosh error code.
type ErrorCode string

const (
	ErrInvalidInput        ErrorCode = "INVALID_INPUT"        // 400
	ErrNotFound            ErrorCode = "NOT_FOUND"            // 404
	ErrRateLimited         ErrorCode = "RATE_LIMITED"         // 429
	ErrProviderUnavailable ErrorCode = "PROVIDER_UNAVAILABLE" // 503
	ErrMalformedResponse   ErrorCode = "MALFORMED_RESPONSE"   // 502
	ErrPersistenceFailure  ErrorCode = "PERSISTENCE_FAILURE"  // 500
	ErrInternal            ErrorCode = "INTERNAL"             // 500
)

// NoshError represents a structured error with code, status, and details.
type NoshError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any

	// cause is the underlying error, if any. Never exposed to users.
	cause error
}

// Error implements the error interface.
func (e *NoshError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *NoshError) Unwrap() error {
	return e.cause
}

// NewInvalidInput creates a 400 error for unusable input.
func NewInvalidInput(msg string) *NoshError {
	return &NoshError{
		Code:    ErrInvalidInput,
		Status:  400,
		Message: msg,
	}
}

// NewNotFound creates a 404 error for a missing user or entry.
func NewNotFound(kind, identifier string) *NoshError {
	return &NoshError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("%s not found: %s", kind, identifier),
		Details: map[string]any{"kind": kind, "identifier": identifier},
	}
}

// NewRateLimited creates a 429 error when the analysis provider throttles us.
// retryAfter is in seconds; zero means the provider gave no hint.
func NewRateLimited(retryAfter int) *NoshError {
	e := &NoshError{
		Code:    ErrRateLimited,
		Status:  429,
		Message: "analysis provider rate limit reached",
	}
	if retryAfter > 0 {
		e.Details = map[string]any{"retry_after_seconds": retryAfter}
	}
	return e
}

// NewProviderUnavailable creates a 503 error for network failures, timeouts and 5xx responses.
func NewProviderUnavailable(cause error) *NoshError {
	msg := "analysis provider unavailable"
	if cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, cause)
	}
	return &NoshError{
		Code:    ErrProviderUnavailable,
		Status:  503,
		Message: msg,
		cause:   cause,
	}
}

// NewMalformedResponse creates a 502 error when a provider response cannot be parsed.
func NewMalformedResponse(reason string) *NoshError {
	return &NoshError{
		Code:    ErrMalformedResponse,
		Status:  502,
		Message: fmt.Sprintf("malformed analysis response: %s", reason),
		Details: map[string]any{"reason": reason},
	}
}

// NewPersistenceFailure creates a 500 error for any storage error.
func NewPersistenceFailure(op string, cause error) *NoshError {
	msg := op + " failed"
	if cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, cause)
	}
	return &NoshError{
		Code:    ErrPersistenceFailure,
		Status:  500,
		Message: msg,
		Details: map[string]any{"op": op},
		cause:   cause,
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
func NewInternal(err error) *NoshError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &NoshError{
		Code:    ErrInternal,
		Status:  500,
		Message: msg,
		cause:   err,
	}
}

// As returns the NoshError in err's chain, if any.
func As(err error) (*NoshError, bool) {
	var nErr *NoshError
	if stderrors.As(err, &nErr) {
		return nErr, true
	}
	return nil, false
}

// Is checks if an error is (or wraps) a NoshError with the given code.
func Is(err error, code ErrorCode) bool {
	if nErr, ok := As(err); ok {
		return nErr.Code == code
	}
	return false
}

// Retryable reports whether the caller may retry the operation later.
func Retryable(err error) bool {
	return Is(err, ErrProviderUnavailable) || Is(err, ErrRateLimited)
}
