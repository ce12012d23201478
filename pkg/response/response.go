// Package response provides a unified response abstraction over multiple
// response sources. A Response exposes status, headers, cookies, decoded
// text, JSON, and DOM queries through one interface regardless of which
// client produced it, and its accessors never panic: missing data degrades
// to explicit defaults.
package response

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/sandorn/xthttp/pkg/encoding"
	"github.com/sandorn/xthttp/pkg/query"
)

// Response is the unified read-only view of a completed request. Decoded
// text and the resolved encoding are computed lazily on first access and
// memoized; all methods are safe for concurrent use.
type Response struct {
	adapter  Adapter
	resolver *encoding.Resolver
	logger   zerolog.Logger
	index    int
	elapsed  time.Duration
	err      error

	textOnce sync.Once
	encoding string
	text     string
}

// Option configures a Response at construction.
type Option func(*Response)

// WithIndex tags the response with its batch position.
func WithIndex(index int) Option {
	return func(r *Response) { r.index = index }
}

// WithElapsed records the request wall-clock duration.
func WithElapsed(elapsed time.Duration) Option {
	return func(r *Response) { r.elapsed = elapsed }
}

// WithResolver injects a shared encoding resolver so batch responses share
// one detection cache.
func WithResolver(resolver *encoding.Resolver) Option {
	return func(r *Response) { r.resolver = resolver }
}

// WithLogger sets the logger used for lazy decode and parse diagnostics.
func WithLogger(logger zerolog.Logger) Option {
	return func(r *Response) { r.logger = logger }
}

// WithError records the terminal failure that produced an empty response,
// so batch slots keep the error kind alongside the StatusNone sentinel.
func WithError(err error) Option {
	return func(r *Response) { r.err = err }
}

// New builds a Response from any supported source: *http.Response (body is
// read and closed), RawResponse, an Adapter, or nil. A nil or unrecognized
// source produces a response with status StatusNone and empty content.
func New(source any, opts ...Option) *Response {
	r := &Response{
		adapter: SelectAdapter(source),
		logger:  zerolog.Nop(),
		index:   -1,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.resolver == nil {
		r.resolver = encoding.NewResolver(r.logger)
	}
	return r
}

// StatusCode returns the HTTP status, or StatusNone when no response exists.
func (r *Response) StatusCode() int {
	return r.adapter.StatusCode()
}

// OK reports whether the status is in the success range [200, 300).
func (r *Response) OK() bool {
	code := r.StatusCode()
	return code >= 200 && code < 300
}

// RaiseForStatus returns an *HTTPError when the response is not successful,
// nil otherwise. It is the only status check that produces an error;
// accessors themselves never fail on bad statuses.
func (r *Response) RaiseForStatus() error {
	if r.OK() {
		return nil
	}
	return &HTTPError{
		StatusCode: r.StatusCode(),
		URL:        r.URL(),
		Reason:     r.Reason(),
	}
}

// Content returns the raw body bytes.
func (r *Response) Content() []byte {
	return r.adapter.Content()
}

// Len returns the body length in bytes.
func (r *Response) Len() int {
	return len(r.adapter.Content())
}

// Headers returns the response headers.
func (r *Response) Headers() http.Header {
	return r.adapter.Header()
}

// Cookies returns response cookies flattened to name/value pairs.
func (r *Response) Cookies() map[string]string {
	return r.adapter.Cookies()
}

// URL returns the final request URL.
func (r *Response) URL() string {
	return r.adapter.URL()
}

// Reason returns the status text.
func (r *Response) Reason() string {
	return r.adapter.Reason()
}

// Index returns the batch position of the originating task, or -1 for a
// standalone request.
func (r *Response) Index() int {
	return r.index
}

// Err returns the captured failure for a slot whose request never produced
// a response: an invalid-URL error, a terminal request failure, or a
// cancellation. It is nil when the request completed.
func (r *Response) Err() error {
	return r.err
}

// Elapsed returns the request wall-clock duration.
func (r *Response) Elapsed() time.Duration {
	return r.elapsed
}

// Seconds returns the elapsed duration in seconds.
func (r *Response) Seconds() float64 {
	return r.elapsed.Seconds()
}

// resolve runs encoding resolution exactly once.
func (r *Response) resolve() {
	r.textOnce.Do(func() {
		r.encoding, r.text = r.resolver.Resolve(r.Content(), r.URL())
		r.logger.Debug().
			Str("url", r.URL()).
			Str("encoding", r.encoding).
			Int("size", r.Len()).
			Msg("Response text resolved")
	})
}

// Text returns the body decoded to a string. Decoding never fails; content
// that defeats detection is decoded as latin-1.
func (r *Response) Text() string {
	r.resolve()
	return r.text
}

// Encoding returns the resolved encoding label.
func (r *Response) Encoding() string {
	r.resolve()
	return r.encoding
}

// JSON parses the body as JSON, never returning an error: it tries the raw
// bytes, then the decoded text, and finally yields an empty object.
func (r *Response) JSON() any {
	var v any
	if err := json.Unmarshal(r.Content(), &v); err == nil {
		return v
	}
	if err := json.Unmarshal([]byte(r.Text()), &v); err == nil {
		return v
	}
	r.logger.Debug().Str("url", r.URL()).Msg("Body is not valid JSON")
	return map[string]any{}
}

// document parses a fresh DOM from the decoded text so queries see
// correctly decoded characters. Parsing is not cached across calls; the
// decoded text is, so repeat queries pay only the parse.
func (r *Response) document() *query.Document {
	return query.ParseText(r.Text(), r.logger)
}

// Document returns a parsed DOM for ad hoc traversal.
func (r *Response) Document() *query.Document {
	return r.document()
}

// CSS returns the text of every node matching a CSS selector.
func (r *Response) CSS(selector string) []string {
	return r.document().CSS(selector)
}

// CSSFirst returns the text of the first node matching a CSS selector.
func (r *Response) CSSFirst(selector string) string {
	return r.document().CSSFirst(selector)
}

// XPath returns the text of every node matching an XPath expression. A
// failing expression yields an empty result.
func (r *Response) XPath(expr string) []string {
	return r.document().XPath(expr)
}

// XPathFirst returns the text of the first node matching an XPath
// expression.
func (r *Response) XPathFirst(expr string) string {
	return r.document().XPathFirst(expr)
}

// XPathEach evaluates several XPath expressions against one parsed DOM,
// returning one result list per expression in submission order. A failing
// expression contributes an empty list without affecting the others.
func (r *Response) XPathEach(exprs ...string) [][]string {
	doc := r.document()
	results := make([][]string, len(exprs))
	for i, expr := range exprs {
		results[i] = doc.XPath(expr)
	}
	return results
}

// String summarizes the response for logs and debugging.
func (r *Response) String() string {
	return fmt.Sprintf("<Response [%d] %s>", r.StatusCode(), r.URL())
}
