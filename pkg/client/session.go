package client

import (
	"context"
	"net/http"
	"net/http/cookiejar"

	"github.com/sandorn/xthttp/pkg/headers"
	"github.com/sandorn/xthttp/pkg/response"
)

// Session issues sequential requests over one connection pool with a shared
// cookie jar, so login state set by one request is visible to the next.
// A Session is not safe for concurrent use; batches belong to the client.
type Session struct {
	client     *Client
	httpClient *http.Client
}

// NewSession creates a session bound to the client's configuration.
func (c *Client) NewSession() (*Session, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}

	httpClient := headers.NewSharedHTTPClient(c.config.Timeouts, c.config.MaxConcurrent)
	httpClient.Jar = jar

	return &Session{
		client:     c,
		httpClient: httpClient,
	}, nil
}

// Request executes a request within the session.
func (s *Session) Request(ctx context.Context, method, rawURL string, opts ...RequestOption) (*response.Response, error) {
	task := NewTask(-1, method, rawURL)
	for _, opt := range opts {
		opt(task)
	}
	if err := task.Configure(s.client); err != nil {
		errorsTotal.WithLabelValues(string(ErrorClassValidation)).Inc()
		return nil, err
	}
	return task.MultiStart(ctx, s.httpClient)
}

// Get issues a GET request within the session.
func (s *Session) Get(ctx context.Context, rawURL string, opts ...RequestOption) (*response.Response, error) {
	return s.Request(ctx, "GET", rawURL, opts...)
}

// Post issues a POST request within the session.
func (s *Session) Post(ctx context.Context, rawURL string, body []byte, opts ...RequestOption) (*response.Response, error) {
	opts = append(opts, WithBody(body))
	return s.Request(ctx, "POST", rawURL, opts...)
}

// Close releases the session's idle connections.
func (s *Session) Close() {
	if transport, ok := s.httpClient.Transport.(*http.Transport); ok {
		transport.CloseIdleConnections()
	}
}
