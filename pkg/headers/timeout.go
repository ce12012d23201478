package headers

import (
	"net"
	"net/http"
	"time"
)

// TimeoutConfig splits the request deadline into a connect phase and a
// total budget, mirroring the common (connect, total) timeout pair.
type TimeoutConfig struct {
	// Connect bounds dialing plus TLS handshake.
	Connect time.Duration

	// Total bounds the entire request including body read.
	Total time.Duration
}

// DefaultTimeouts returns the standard (8s, 30s) split.
func DefaultTimeouts() TimeoutConfig {
	return TimeoutConfig{
		Connect: 8 * time.Second,
		Total:   30 * time.Second,
	}
}

// NewHTTPClient builds an http.Client with its own transport, used by
// chunked batch mode where each task gets isolated connections.
func NewHTTPClient(timeouts TimeoutConfig) *http.Client {
	return &http.Client{
		Timeout:   timeouts.Total,
		Transport: newTransport(timeouts, 2),
	}
}

// NewSharedHTTPClient builds an http.Client tuned for connection reuse
// across many concurrent requests, used by shared-session batch mode.
func NewSharedHTTPClient(timeouts TimeoutConfig, maxConcurrent int) *http.Client {
	perHost := maxConcurrent
	if perHost < 2 {
		perHost = 2
	}
	return &http.Client{
		Timeout:   timeouts.Total,
		Transport: newTransport(timeouts, perHost),
	}
}

func newTransport(timeouts TimeoutConfig, maxIdlePerHost int) *http.Transport {
	return &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   timeouts.Connect,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout: timeouts.Connect,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: maxIdlePerHost,
		IdleConnTimeout:     90 * time.Second,
	}
}
