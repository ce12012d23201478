package response

import (
	"errors"
	"fmt"
)

// ErrHTTPStatus is the sentinel wrapped by every HTTPError, enabling
// errors.Is checks without inspecting the concrete type.
var ErrHTTPStatus = errors.New("http status error")

// HTTPError reports a non-success HTTP status. It is returned by
// RaiseForStatus and never raised implicitly by accessors.
type HTTPError struct {
	// StatusCode is the HTTP status that triggered the error.
	StatusCode int

	// URL is the final request URL.
	URL string

	// Reason is the status text, when known.
	Reason string
}

// Error implements the error interface.
func (e *HTTPError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("http status %d %s for %s", e.StatusCode, e.Reason, e.URL)
	}
	return fmt.Sprintf("http status %d for %s", e.StatusCode, e.URL)
}

// Unwrap allows errors.Is(err, ErrHTTPStatus).
func (e *HTTPError) Unwrap() error {
	return ErrHTTPStatus
}
