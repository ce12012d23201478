package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/sandorn/xthttp/pkg/encoding"
	"github.com/sandorn/xthttp/pkg/headers"
	"github.com/sandorn/xthttp/pkg/ratelimit"
	"github.com/sandorn/xthttp/pkg/response"
)

// supportedMethods is the full set of HTTP methods a task may carry.
var supportedMethods = map[string]bool{
	http.MethodGet:     true,
	http.MethodPost:    true,
	http.MethodHead:    true,
	http.MethodOptions: true,
	http.MethodPut:     true,
	http.MethodDelete:  true,
	http.MethodTrace:   true,
	http.MethodConnect: true,
	http.MethodPatch:   true,
}

// Task is one request unit: a method, URL, and optional headers and body,
// tagged with its batch position. A task must be configured before it can
// start; configuration validates the inputs and binds the client's
// collaborators.
type Task struct {
	// Index is the batch position, carried through to the response.
	Index int

	// Method is the HTTP method, stored upper-case.
	Method string

	// URL is the request target.
	URL string

	// Header holds per-task header overrides.
	Header http.Header

	// Body is the request payload, replayed on each retry attempt.
	Body []byte

	// Cookies holds per-task cookies as name/value pairs.
	Cookies map[string]string

	// Transform, when set, replaces the task's result after a
	// successful execution.
	Transform func(*response.Response) *response.Response

	parsedURL  *url.URL
	timeouts   headers.TimeoutConfig
	retry      RetryConfig
	ua         *headers.UserAgentManager
	pacer      *ratelimit.Pacer
	resolver   *encoding.Resolver
	logger     zerolog.Logger
	configured bool
}

// NewTask creates an unconfigured task.
func NewTask(index int, method, rawURL string) *Task {
	return &Task{
		Index:   index,
		Method:  strings.ToUpper(method),
		URL:     rawURL,
		Header:  http.Header{},
		Cookies: map[string]string{},
	}
}

// Configure validates the task and binds the owning client's collaborators.
// It fails fast on unsupported methods and malformed URLs so batch pre-pass
// can reject bad tasks without consuming a concurrency slot.
func (t *Task) Configure(c *Client) error {
	if !supportedMethods[t.Method] {
		return fmt.Errorf("%w: %s", ErrUnsupportedMethod, t.Method)
	}

	u, err := url.Parse(t.URL)
	if err != nil {
		return fmt.Errorf("%w: %q: %v", ErrInvalidURL, t.URL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %q", ErrInvalidURL, t.URL)
	}

	t.parsedURL = u
	t.timeouts = c.config.Timeouts
	t.retry = c.config.Retry
	t.ua = c.ua
	t.pacer = c.pacer
	t.resolver = c.resolver
	t.logger = c.logger.With().Int("index", t.Index).Logger()
	t.configured = true
	return nil
}

// Start executes the task on its own standalone HTTP client with isolated
// connections, used by chunked batch mode and one-off requests.
func (t *Task) Start(ctx context.Context) (*response.Response, error) {
	if !t.configured {
		return nil, ErrNotConfigured
	}
	return t.execute(ctx, headers.NewHTTPClient(t.timeouts))
}

// MultiStart executes the task on a shared HTTP client, reusing its
// connection pool across the batch.
func (t *Task) MultiStart(ctx context.Context, httpClient *http.Client) (*response.Response, error) {
	if !t.configured {
		return nil, ErrNotConfigured
	}
	return t.execute(ctx, httpClient)
}

// execute runs the request with pacing and retry, returning the unified
// response. A non-2xx status is a terminal failure: client errors fail on
// the first attempt, server errors after retry exhaustion; both surface as
// a *RequestError carrying the status.
func (t *Task) execute(ctx context.Context, httpClient *http.Client) (*response.Response, error) {
	if err := t.pacer.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrContextCancelled, err)
	}

	start := time.Now()

	var (
		httpResp *http.Response
		body     []byte
	)

	retryErr := retryWithBackoff(ctx, t.retry, t.logger, classifyError, func() error {
		req, err := t.buildRequest(ctx)
		if err != nil {
			return &RequestError{
				URL:        t.URL,
				Method:     t.Method,
				ErrorClass: ErrorClassValidation,
				Err:        err,
			}
		}

		resp, err := httpClient.Do(req)
		if err != nil {
			errorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
			return err
		}

		data, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			errorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
			return err
		}

		requestsTotal.WithLabelValues(t.Method, strconv.Itoa(resp.StatusCode)).Inc()

		if class := classifyStatus(resp.StatusCode); shouldRetry(class) {
			errorsTotal.WithLabelValues(string(class)).Inc()
			return &RequestError{
				URL:        t.URL,
				Method:     t.Method,
				StatusCode: resp.StatusCode,
				ErrorClass: class,
				Err:        fmt.Errorf("status %s", resp.Status),
			}
		}

		httpResp = resp
		body = data
		return nil
	})

	elapsed := time.Since(start)
	requestDuration.WithLabelValues(t.Method).Observe(elapsed.Seconds())

	if retryErr != nil {
		return nil, retryErr
	}

	// Server errors never reach this point: they were retried and, once
	// exhausted, reported above. 304 passes through for revalidation.
	if httpResp.StatusCode >= http.StatusBadRequest {
		class := classifyStatus(httpResp.StatusCode)
		errorsTotal.WithLabelValues(string(class)).Inc()
		return nil, &RequestError{
			URL:        t.URL,
			Method:     t.Method,
			StatusCode: httpResp.StatusCode,
			ErrorClass: class,
			Err:        fmt.Errorf("status %s", httpResp.Status),
		}
	}

	t.logger.Debug().
		Str("method", t.Method).
		Str("url", t.URL).
		Int("status", httpResp.StatusCode).
		Dur("duration", elapsed).
		Msg("Request completed")

	resp := response.New(response.NewHTTPAdapter(httpResp, body),
		response.WithIndex(t.Index),
		response.WithElapsed(elapsed),
		response.WithResolver(t.resolver),
		response.WithLogger(t.logger),
	)
	if t.Transform != nil {
		resp = t.Transform(resp)
	}
	return resp, nil
}

// buildRequest assembles a fresh *http.Request for one attempt. The body
// reader is rebuilt every call so retries replay the full payload.
func (t *Task) buildRequest(ctx context.Context) (*http.Request, error) {
	var bodyReader io.Reader
	if len(t.Body) > 0 {
		bodyReader = bytes.NewReader(t.Body)
	}

	req, err := http.NewRequestWithContext(ctx, t.Method, t.parsedURL.String(), bodyReader)
	if err != nil {
		return nil, err
	}

	for key, values := range t.Header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	for name, value := range t.Cookies {
		req.AddCookie(&http.Cookie{Name: name, Value: value})
	}
	headers.Apply(req, t.ua)
	return req, nil
}

// classifyError maps a request error to its class for retry decisions.
func classifyError(err error) ErrorClass {
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return reqErr.ErrorClass
	}
	if isRetryableNetErr(err) {
		return ErrorClassNetwork
	}
	return ErrorClassClient
}
