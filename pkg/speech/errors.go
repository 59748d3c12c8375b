package speech

import (
	"errors"
	"fmt"
)

var (
	// ErrNoAPIKey is returned when a cloud backend is built without credentials.
	ErrNoAPIKey = errors.New("speech: API key required")

	// ErrNoBackend is returned when no usable backend is configured.
	ErrNoBackend = errors.New("speech: no backend available")

	// ErrEmptyText is returned for blank input.
	ErrEmptyText = errors.New("speech: empty text")
)

// APIError is a non-2xx response from a speech API.
type APIError struct {
	StatusCode int
	Message    string
	Backend    string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("speech [%s]: API error %d: %s", e.Backend, e.StatusCode, e.Message)
}

// IsRetryable reports rate limiting and server-side failures.
func (e *APIError) IsRetryable() bool {
	return e.StatusCode == 429 || (e.StatusCode >= 500 && e.StatusCode < 600)
}

// BackendError wraps an error with the backend that produced it.
type BackendError struct {
	Backend string
	Err     error
}

// Error implements the error interface.
func (e *BackendError) Error() string {
	return fmt.Sprintf("speech [%s]: %v", e.Backend, e.Err)
}

// Unwrap returns the underlying error.
func (e *BackendError) Unwrap() error {
	return e.Err
}

// wrap attaches backend context; nil stays nil.
func wrap(backend string, err error) error {
	if err == nil {
		return nil
	}
	return &BackendError{Backend: backend, Err: err}
}
