package extraction

import (
	"errors"
	"fmt"
	"net/http"
)

// FallbackMessage is shown when the service rejects a document without
// saying why.
const FallbackMessage = "Something went wrong"

// ServiceError is returned when the service answered but refused the
// document: a non-2xx status, or a 2xx body carrying an "error" field.
type ServiceError struct {
	Status    int
	Reason    string
	RequestID string
}

func (e *ServiceError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("extraction service rejected request (status %d): %s", e.Status, e.Reason)
	}
	return fmt.Sprintf("extraction service rejected request (status %d)", e.Status)
}

// Message returns the display text for the rejection.
func (e *ServiceError) Message() string {
	if e.Reason != "" {
		return e.Reason
	}
	return FallbackMessage
}

// Class returns the HTTP status class, e.g. "4xx".
func (e *ServiceError) Class() string {
	if e.Status < 100 || e.Status > 599 {
		return "unknown"
	}
	return fmt.Sprintf("%dxx", e.Status/100)
}

// Temporary reports whether the status suggests the same document might
// succeed later. Nothing retries on it; it is exposed for diagnostics.
func (e *ServiceError) Temporary() bool {
	return e.Status >= http.StatusInternalServerError || e.Status == http.StatusTooManyRequests
}

// TransportError is returned when no usable response was received:
// the request failed, or the body could not be decoded.
type TransportError struct {
	Op        string
	RequestID string
	Err       error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("extraction %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Message returns the underlying failure's description.
func (e *TransportError) Message() string {
	if e.Err == nil {
		return e.Op
	}
	return e.Err.Error()
}

// IsServiceError reports whether err wraps a *ServiceError.
func IsServiceError(err error) bool {
	var se *ServiceError
	return errors.As(err, &se)
}

// IsTransportError reports whether err wraps a *TransportError.
func IsTransportError(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
