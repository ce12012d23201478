// Package testutil provides a mock HTTP origin for client tests.
package testutil

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"time"
)

// MockOrigin is a test HTTP server with per-path handlers, request
// counters, and an in-flight high-water mark for verifying concurrency
// ceilings.
type MockOrigin struct {
	Server *httptest.Server

	mu       sync.Mutex
	handlers map[string]http.HandlerFunc
	counts   map[string]int

	inFlight  atomic.Int64
	highWater atomic.Int64
}

// NewMockOrigin creates a started mock origin. Callers must Close it.
func NewMockOrigin() *MockOrigin {
	m := &MockOrigin{
		handlers: make(map[string]http.HandlerFunc),
		counts:   make(map[string]int),
	}
	m.Server = httptest.NewServer(http.HandlerFunc(m.serve))
	return m
}

// URL returns the base URL of the origin.
func (m *MockOrigin) URL() string {
	return m.Server.URL
}

// Close shuts the origin down.
func (m *MockOrigin) Close() {
	m.Server.Close()
}

// Handle registers a handler for a path.
func (m *MockOrigin) Handle(path string, handler http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// RequestCount returns how many requests hit a path.
func (m *MockOrigin) RequestCount(path string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[path]
}

// MaxInFlight returns the highest number of simultaneous requests observed.
func (m *MockOrigin) MaxInFlight() int {
	return int(m.highWater.Load())
}

func (m *MockOrigin) serve(w http.ResponseWriter, r *http.Request) {
	current := m.inFlight.Add(1)
	defer m.inFlight.Add(-1)
	for {
		high := m.highWater.Load()
		if current <= high || m.highWater.CompareAndSwap(high, current) {
			break
		}
	}

	m.mu.Lock()
	m.counts[r.URL.Path]++
	handler, ok := m.handlers[r.URL.Path]
	m.mu.Unlock()

	if !ok {
		http.NotFound(w, r)
		return
	}
	handler(w, r)
}

// HandleHTML registers a handler returning an HTML page.
func (m *MockOrigin) HandleHTML(path, body string) {
	m.Handle(path, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(body))
	})
}

// HandleGBK registers a handler returning a GBK-encoded page with a
// declared charset.
func (m *MockOrigin) HandleGBK(path string, body []byte) {
	m.Handle(path, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write(body)
	})
}

// HandleDelay registers a handler that sleeps before responding, used to
// hold concurrency slots open.
func (m *MockOrigin) HandleDelay(path string, delay time.Duration, body string) {
	m.Handle(path, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(delay)
		w.Write([]byte(body))
	})
}

// HandleFlaky registers a handler that fails with failStatus for the first
// failures requests, then succeeds, exercising the retry path.
func (m *MockOrigin) HandleFlaky(path string, failures int, failStatus int, body string) {
	var calls atomic.Int64
	m.Handle(path, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= int64(failures) {
			w.WriteHeader(failStatus)
			return
		}
		w.Write([]byte(body))
	})
}

// HandleStatus registers a handler that always answers with status.
func (m *MockOrigin) HandleStatus(path string, status int, body string) {
	m.Handle(path, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		if body != "" {
			w.Write([]byte(body))
		}
	})
}
