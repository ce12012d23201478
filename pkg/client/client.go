// Package client provides the request engine: single requests, shared-session
// and chunked batch execution, retry with backoff, optional pacing, and an
// optional Redis response cache. Every completed request surfaces as a
// unified response regardless of how it was executed.
package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/sandorn/xthttp/pkg/cache"
	"github.com/sandorn/xthttp/pkg/encoding"
	"github.com/sandorn/xthttp/pkg/headers"
	"github.com/sandorn/xthttp/pkg/logging"
	"github.com/sandorn/xthttp/pkg/ratelimit"
	"github.com/sandorn/xthttp/pkg/response"
)

// Prometheus metrics for request operations.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "xthttp_requests_total",
		Help: "Total requests by method and status",
	}, []string{"method", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "xthttp_request_duration_seconds",
		Help:    "Request duration in seconds by method",
		Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
	}, []string{"method"})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "xthttp_errors_total",
		Help: "Total request errors by class",
	}, []string{"class"})
)

// DefaultMaxConcurrent is the batch concurrency ceiling when unconfigured.
const DefaultMaxConcurrent = 10

// Config holds the client configuration.
type Config struct {
	// Timeouts is the (connect, total) timeout pair for all requests.
	Timeouts headers.TimeoutConfig

	// Retry controls backoff behavior for transient failures.
	Retry RetryConfig

	// MaxConcurrent caps in-flight requests per batch. Zero means
	// DefaultMaxConcurrent.
	MaxConcurrent int

	// ForceSequential degrades batches to one request at a time,
	// useful when debugging ordering issues.
	ForceSequential bool

	// UserAgent pins a fixed agent string. Empty enables rotation over
	// the built-in pool.
	UserAgent string

	// RateLimit paces outgoing requests. Zero disables pacing.
	RateLimit ratelimit.Config

	// Redis enables the response cache for GET requests when set.
	Redis *redis.Client
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig() Config {
	return Config{
		Timeouts:      headers.DefaultTimeouts(),
		Retry:         DefaultRetryConfig(),
		MaxConcurrent: DefaultMaxConcurrent,
	}
}

// Client is the request engine façade.
type Client struct {
	config    Config
	ua        *headers.UserAgentManager
	pacer     *ratelimit.Pacer
	resolver  *encoding.Resolver
	cache     *cache.Manager
	scheduler *Scheduler
	logger    zerolog.Logger
}

// New creates a client from cfg, filling unset fields with defaults.
func New(cfg Config) (*Client, error) {
	if cfg.MaxConcurrent < 0 {
		return nil, fmt.Errorf("max_concurrent must be >= 0 (got %d)", cfg.MaxConcurrent)
	}
	if cfg.MaxConcurrent == 0 {
		cfg.MaxConcurrent = DefaultMaxConcurrent
	}
	if cfg.Timeouts.Total <= 0 {
		cfg.Timeouts = headers.DefaultTimeouts()
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = DefaultRetryConfig()
	}

	logger := logging.NewLogger("xthttp-client")

	var ua *headers.UserAgentManager
	if cfg.UserAgent != "" {
		ua = headers.Fixed(cfg.UserAgent)
	} else {
		ua = headers.NewUserAgentManager(0)
	}

	c := &Client{
		config:   cfg,
		ua:       ua,
		pacer:    ratelimit.New(cfg.RateLimit, logger),
		resolver: encoding.NewResolver(logger),
		logger:   logger,
	}
	if cfg.Redis != nil {
		c.cache = cache.NewManager(cfg.Redis)
	}
	c.scheduler = newScheduler(c)

	return c, nil
}

// RequestOption customizes one request or batch task.
type RequestOption func(*Task)

// WithHeader adds a header to the request.
func WithHeader(key, value string) RequestOption {
	return func(t *Task) { t.Header.Add(key, value) }
}

// WithBody sets the request payload.
func WithBody(body []byte) RequestOption {
	return func(t *Task) { t.Body = body }
}

// WithCookie adds a cookie to the request.
func WithCookie(name, value string) RequestOption {
	return func(t *Task) { t.Cookies[name] = value }
}

// WithTransform installs a callback whose output replaces the response as
// the task's result. Useful for extracting or reshaping results inside a
// batch instead of post-processing the result slice.
func WithTransform(fn func(*response.Response) *response.Response) RequestOption {
	return func(t *Task) { t.Transform = fn }
}

// Request executes a single request and returns its unified response. The
// error is non-nil for validation failures, network failures, exhausted
// retries, cancellation, and non-2xx statuses; status failures surface as
// a *RequestError carrying the status code.
func (c *Client) Request(ctx context.Context, method, rawURL string, opts ...RequestOption) (*response.Response, error) {
	task := NewTask(-1, method, rawURL)
	for _, opt := range opts {
		opt(task)
	}
	if err := task.Configure(c); err != nil {
		errorsTotal.WithLabelValues(string(ErrorClassValidation)).Inc()
		return nil, err
	}

	cached, stale, ok := c.cacheLookup(ctx, task)
	if ok {
		return cached, nil
	}

	resp, err := task.Start(ctx)
	if err != nil {
		return nil, err
	}

	if stale != nil && resp.StatusCode() == http.StatusNotModified {
		return c.revalidated(ctx, task, stale, resp), nil
	}

	c.cacheStore(ctx, task, resp)
	return resp, nil
}

// Get issues a GET request.
func (c *Client) Get(ctx context.Context, rawURL string, opts ...RequestOption) (*response.Response, error) {
	return c.Request(ctx, "GET", rawURL, opts...)
}

// Post issues a POST request with body.
func (c *Client) Post(ctx context.Context, rawURL string, body []byte, opts ...RequestOption) (*response.Response, error) {
	opts = append(opts, WithBody(body))
	return c.Request(ctx, "POST", rawURL, opts...)
}

// Head issues a HEAD request.
func (c *Client) Head(ctx context.Context, rawURL string, opts ...RequestOption) (*response.Response, error) {
	return c.Request(ctx, "HEAD", rawURL, opts...)
}

// MultiRequest fetches all URLs concurrently over one shared connection
// pool. Results arrive in input order; a failed task yields a response with
// status StatusNone at its position.
func (c *Client) MultiRequest(ctx context.Context, method string, urls []string, opts ...RequestOption) []*response.Response {
	return c.scheduler.SharedSessionBatch(ctx, c.makeTasks(method, urls, opts))
}

// BatchRequest fetches all URLs in sequential chunks of the concurrency
// ceiling, each task on isolated connections. Results arrive in input
// order with the same failure semantics as MultiRequest.
func (c *Client) BatchRequest(ctx context.Context, method string, urls []string, opts ...RequestOption) []*response.Response {
	return c.scheduler.ChunkedBatch(ctx, c.makeTasks(method, urls, opts))
}

// makeTasks builds positional tasks for a batch call.
func (c *Client) makeTasks(method string, urls []string, opts []RequestOption) []*Task {
	tasks := make([]*Task, len(urls))
	for i, rawURL := range urls {
		task := NewTask(i, method, rawURL)
		for _, opt := range opts {
			opt(task)
		}
		tasks[i] = task
	}
	return tasks
}

// cacheLookup serves a GET from the response cache when possible. A fresh
// entry is returned directly; a stale entry with an ETag arms the task for
// conditional revalidation and is handed back so the 304 path can serve
// it. Cache errors degrade to a miss.
func (c *Client) cacheLookup(ctx context.Context, task *Task) (*response.Response, *cache.Entry, bool) {
	if c.cache == nil || task.Method != "GET" {
		return nil, nil, false
	}

	entry, err := c.cache.Get(ctx, cache.NewKey(task.Method, task.URL))
	switch {
	case err == nil:
		c.logger.Debug().Str("url", task.URL).Msg("Response served from cache")
		return c.entryResponse(entry, task.Index), nil, true
	case errors.Is(err, cache.ErrCacheStale):
		cache.AddConditionalHeaders(task.Header, entry)
		cache.ConditionalRequests.Inc()
		c.logger.Debug().
			Str("url", task.URL).
			Str("etag", entry.ETag).
			Msg("Making conditional request")
		return nil, entry, false
	case errors.Is(err, cache.ErrCacheMiss):
		return nil, nil, false
	default:
		c.logger.Warn().Err(err).Str("url", task.URL).Msg("Cache get error")
		return nil, nil, false
	}
}

// revalidated handles a 304 Not Modified answer to a conditional request:
// the stored entry's TTL is refreshed from the new response headers and
// the cached body is served.
func (c *Client) revalidated(ctx context.Context, task *Task, entry *cache.Entry, notModified *response.Response) *response.Response {
	cache.NotModifiedServed.Inc()

	newExpires := cache.Freshness(notModified.Headers())
	if err := c.cache.UpdateTTL(ctx, cache.NewKey(task.Method, task.URL), newExpires); err != nil {
		c.logger.Warn().Err(err).Str("url", task.URL).Msg("Failed to refresh cache TTL")
	}

	c.logger.Debug().Str("url", task.URL).Msg("Revalidated cached response")
	return c.entryResponse(entry, task.Index)
}

// entryResponse rebuilds a unified response from a cache entry.
func (c *Client) entryResponse(entry *cache.Entry, index int) *response.Response {
	return response.New(response.RawResponse{
		StatusCode: entry.StatusCode,
		Header:     entry.Headers,
		Body:       entry.Body,
		URL:        entry.URL,
	},
		response.WithIndex(index),
		response.WithResolver(c.resolver),
		response.WithLogger(c.logger),
	)
}

// cacheStore persists a cacheable GET response. Store errors are logged
// and otherwise ignored.
func (c *Client) cacheStore(ctx context.Context, task *Task, resp *response.Response) {
	if c.cache == nil {
		return
	}
	if !cache.Cacheable(task.Method, resp.StatusCode(), resp.Headers()) {
		return
	}

	entry := cache.NewEntry(resp.StatusCode(), resp.Headers(), resp.Content(), resp.URL())
	if err := c.cache.Set(ctx, cache.NewKey(task.Method, task.URL), entry); err != nil {
		c.logger.Warn().Err(err).Str("url", task.URL).Msg("Failed to cache response")
	}
}
