package client

import (
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"strings"
	"syscall"
)

// Common errors returned by the client.
var (
	// ErrInvalidURL is returned when a task URL fails validation.
	ErrInvalidURL = errors.New("invalid url")

	// ErrUnsupportedMethod is returned for methods outside the supported set.
	ErrUnsupportedMethod = errors.New("unsupported http method")

	// ErrRetryExhausted is returned when all retry attempts are exhausted.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrContextCancelled is returned when the context is cancelled during retry.
	ErrContextCancelled = errors.New("context cancelled")

	// ErrNotConfigured is returned when a task is started before Configure.
	ErrNotConfigured = errors.New("task not configured")
)

// ErrorClass represents a classification of request errors.
type ErrorClass string

const (
	// ErrorClassValidation represents pre-flight validation failures.
	ErrorClassValidation ErrorClass = "validation"

	// ErrorClassClient represents 4xx client errors.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassNetwork represents network/timeout errors.
	ErrorClassNetwork ErrorClass = "network"
)

// RequestError carries the context of a failed request.
type RequestError struct {
	URL        string
	Method     string
	StatusCode int
	ErrorClass ErrorClass
	Err        error
}

// Error implements the error interface.
func (e *RequestError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s error (status %d) for %s %s: %v",
			e.ErrorClass, e.StatusCode, e.Method, e.URL, e.Err)
	}
	return fmt.Sprintf("%s error for %s %s: %v",
		e.ErrorClass, e.Method, e.URL, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *RequestError) Unwrap() error {
	return e.Err
}

// shouldRetry determines if an error class warrants another attempt.
// Client errors are final; retrying them cannot change the outcome.
func shouldRetry(errorClass ErrorClass) bool {
	switch errorClass {
	case ErrorClassServer, ErrorClassNetwork:
		return true
	default:
		return false
	}
}

// classifyStatus maps an HTTP status to an error class. Success statuses
// map to the empty class.
func classifyStatus(statusCode int) ErrorClass {
	switch {
	case statusCode >= 500:
		return ErrorClassServer
	case statusCode >= 400:
		return ErrorClassClient
	default:
		return ""
	}
}

// isRetryableNetErr reports whether a transport error is transient:
// timeouts, connection resets and refusals, and unexpected EOFs. Context
// cancellation is never retryable.
func isRetryableNetErr(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		if urlErr.Timeout() {
			return true
		}
		return isRetryableNetErr(urlErr.Err)
	}

	// http.Client wraps some transport failures as plain strings.
	msg := err.Error()
	return strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "broken pipe")
}
