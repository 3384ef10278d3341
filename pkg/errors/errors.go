// Package errors defines the unified error taxonomy for routed generation
// requests. Every upstream failure is mapped to one of these kinds so the
// resilience layer can decide whether a call is worth retrying.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error kinds as constants for consistency.
const (
	KindConfiguration = "configuration_error"
	KindTransient     = "transient_error"
	KindRateLimit     = "rate_limit_error"
	KindTimeout       = "timeout_error"
	KindMalformed     = "malformed_response_error"
	KindExhausted     = "retries_exhausted"
	KindInternal      = "internal_error"
)

// RouteError represents a standardized failure from an upstream provider or
// webhook endpoint. It carries everything needed for retry classification,
// logging, and the structured error surfaced to callers.
type RouteError struct {
	StatusCode int    `json:"status_code,omitempty"`
	Kind       string `json:"kind"`
	Message    string `json:"message"`
	Provider   string `json:"provider,omitempty"`
	Attempts   int    `json:"attempts,omitempty"`
	Retryable  bool   `json:"-"`

	cause error
}

// Error implements the error interface.
func (e *RouteError) Error() string {
	if e.Provider != "" {
		return fmt.Sprintf("[%s] %s (provider=%s, code=%d)", e.Kind, e.Message, e.Provider, e.StatusCode)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause, if any.
func (e *RouteError) Unwrap() error {
	return e.cause
}

// HTTPStatusCode returns the HTTP status code to surface for this error.
func (e *RouteError) HTTPStatusCode() int {
	if e.StatusCode > 0 {
		return e.StatusCode
	}
	return http.StatusInternalServerError
}

// NewConfigurationError creates a terminal error for missing or invalid
// credentials, endpoints, or bindings. Never retried.
func NewConfigurationError(provider, message string) *RouteError {
	return &RouteError{
		StatusCode: http.StatusBadRequest,
		Kind:       KindConfiguration,
		Message:    message,
		Provider:   provider,
		Retryable:  false,
	}
}

// NewTransientError creates a retryable error for 5xx-class upstream failures
// and transport-level faults that carry no status of their own.
func NewTransientError(provider, message string) *RouteError {
	return &RouteError{
		StatusCode: http.StatusServiceUnavailable,
		Kind:       KindTransient,
		Message:    message,
		Provider:   provider,
		Retryable:  true,
	}
}

// NewRateLimitError creates a retryable rate limit error (429).
func NewRateLimitError(provider, message string) *RouteError {
	return &RouteError{
		StatusCode: http.StatusTooManyRequests,
		Kind:       KindRateLimit,
		Message:    message,
		Provider:   provider,
		Retryable:  true,
	}
}

// NewTimeoutError creates a retryable timeout error (408).
func NewTimeoutError(provider, message string) *RouteError {
	return &RouteError{
		StatusCode: http.StatusRequestTimeout,
		Kind:       KindTimeout,
		Message:    message,
		Provider:   provider,
		Retryable:  true,
	}
}

// NewMalformedError creates a terminal error for upstream content that cannot
// be parsed into the expected shape. Retrying will not fix a parsing mismatch,
// but the kind is kept distinct from configuration errors for diagnosability.
func NewMalformedError(provider, message string) *RouteError {
	return &RouteError{
		StatusCode: http.StatusBadGateway,
		Kind:       KindMalformed,
		Message:    message,
		Provider:   provider,
		Retryable:  false,
	}
}

// NewInternalError creates a terminal internal error (500).
func NewInternalError(provider, message string) *RouteError {
	return &RouteError{
		StatusCode: http.StatusInternalServerError,
		Kind:       KindInternal,
		Message:    message,
		Provider:   provider,
		Retryable:  false,
	}
}

// NewExhaustedError wraps the last failure after all retry attempts were
// consumed. The wrapped error stays reachable via errors.Unwrap/As so callers
// can distinguish exhausted retries from a terminal failure and still inspect
// the final cause.
func NewExhaustedError(provider string, attempts int, last error) *RouteError {
	msg := fmt.Sprintf("all %d attempts failed", attempts)
	if last != nil {
		msg = fmt.Sprintf("all %d attempts failed: %v", attempts, last)
	}
	statusCode := http.StatusServiceUnavailable
	var re *RouteError
	if errors.As(last, &re) && re.StatusCode > 0 {
		statusCode = re.StatusCode
	}
	return &RouteError{
		StatusCode: statusCode,
		Kind:       KindExhausted,
		Message:    msg,
		Provider:   provider,
		Attempts:   attempts,
		Retryable:  false,
		cause:      last,
	}
}

// FromStatus maps an upstream HTTP status to a RouteError. 429 and 5xx are
// retryable; everything else in the 4xx range is treated as terminal.
func FromStatus(provider string, statusCode int, body []byte) *RouteError {
	message := http.StatusText(statusCode)
	if len(body) > 0 {
		const maxBody = 512
		if len(body) > maxBody {
			body = body[:maxBody]
		}
		message = string(body)
	}

	switch {
	case statusCode == http.StatusTooManyRequests:
		return NewRateLimitError(provider, message)
	case statusCode == http.StatusRequestTimeout:
		return NewTimeoutError(provider, message)
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		e := NewConfigurationError(provider, message)
		e.StatusCode = statusCode
		return e
	case statusCode >= 500:
		e := NewTransientError(provider, message)
		e.StatusCode = statusCode
		return e
	default:
		return &RouteError{
			StatusCode: statusCode,
			Kind:       KindConfiguration,
			Message:    message,
			Provider:   provider,
			Retryable:  false,
		}
	}
}

// IsRetryable reports whether an operation that returned err should be
// attempted again. RouteErrors carry their own classification; anything else
// (transport-level failures, connection resets) is assumed transient.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var re *RouteError
	if errors.As(err, &re) {
		return re.Retryable
	}
	return true
}

// AsRouteError coerces any error into a RouteError so the boundary can always
// surface a structured failure. Unknown errors become internal errors with
// the original preserved as the cause.
func AsRouteError(provider string, err error) *RouteError {
	if err == nil {
		return nil
	}
	var re *RouteError
	if errors.As(err, &re) {
		return re
	}
	return &RouteError{
		StatusCode: http.StatusInternalServerError,
		Kind:       KindInternal,
		Message:    err.Error(),
		Provider:   provider,
		Retryable:  false,
		cause:      err,
	}
}
