package response

import (
	"io"
	"net/http"
)

// StatusNone is the sentinel status for responses without a usable source,
// chosen outside the valid HTTP range so it never collides with a real
// status.
const StatusNone = 999

// Adapter normalizes access to a response source. Implementations are pure
// accessors over already-buffered data; none of them perform I/O.
type Adapter interface {
	// StatusCode returns the HTTP status code.
	StatusCode() int

	// Header returns the response headers.
	Header() http.Header

	// Cookies returns response cookies flattened to name/value pairs.
	Cookies() map[string]string

	// URL returns the final request URL.
	URL() string

	// Reason returns the status text.
	Reason() string

	// Content returns the raw body bytes.
	Content() []byte
}

// RawResponse is a plain snapshot of a response, used when the original
// *http.Response is no longer available (cache restores, tests, replay).
type RawResponse struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	URL        string
}

// SelectAdapter picks the adapter matching the source type. An *http.Response
// has its body read and closed here; a RawResponse is wrapped as-is. Nil and
// unrecognized sources map to the none adapter, whose status is StatusNone
// and whose content is empty.
func SelectAdapter(source any) Adapter {
	switch v := source.(type) {
	case *http.Response:
		if v == nil {
			return noneAdapter{}
		}
		var body []byte
		if v.Body != nil {
			body, _ = io.ReadAll(v.Body)
			v.Body.Close()
		}
		return NewHTTPAdapter(v, body)
	case *RawResponse:
		if v == nil {
			return noneAdapter{}
		}
		return rawAdapter{raw: *v}
	case RawResponse:
		return rawAdapter{raw: v}
	case Adapter:
		return v
	default:
		return noneAdapter{}
	}
}

// NewHTTPAdapter wraps an *http.Response whose body has already been read
// into body. The response's Body field is not touched.
func NewHTTPAdapter(resp *http.Response, body []byte) Adapter {
	return &httpAdapter{resp: resp, body: body}
}

// httpAdapter adapts a stdlib *http.Response.
type httpAdapter struct {
	resp *http.Response
	body []byte
}

func (a *httpAdapter) StatusCode() int {
	return a.resp.StatusCode
}

func (a *httpAdapter) Header() http.Header {
	return a.resp.Header
}

func (a *httpAdapter) Cookies() map[string]string {
	cookies := a.resp.Cookies()
	if len(cookies) == 0 {
		return map[string]string{}
	}

	flat := make(map[string]string, len(cookies))
	for _, c := range cookies {
		flat[c.Name] = c.Value
	}
	return flat
}

func (a *httpAdapter) URL() string {
	if a.resp.Request != nil && a.resp.Request.URL != nil {
		return a.resp.Request.URL.String()
	}
	return ""
}

func (a *httpAdapter) Reason() string {
	return http.StatusText(a.resp.StatusCode)
}

func (a *httpAdapter) Content() []byte {
	return a.body
}

// rawAdapter adapts a RawResponse snapshot.
type rawAdapter struct {
	raw RawResponse
}

func (a rawAdapter) StatusCode() int {
	return a.raw.StatusCode
}

func (a rawAdapter) Header() http.Header {
	if a.raw.Header == nil {
		return http.Header{}
	}
	return a.raw.Header
}

func (a rawAdapter) Cookies() map[string]string {
	header := a.raw.Header
	if header == nil {
		return map[string]string{}
	}

	// Reuse stdlib Set-Cookie parsing via a throwaway response shell.
	shell := http.Response{Header: header}
	cookies := shell.Cookies()
	flat := make(map[string]string, len(cookies))
	for _, c := range cookies {
		flat[c.Name] = c.Value
	}
	return flat
}

func (a rawAdapter) URL() string {
	return a.raw.URL
}

func (a rawAdapter) Reason() string {
	return http.StatusText(a.raw.StatusCode)
}

func (a rawAdapter) Content() []byte {
	return a.raw.Body
}

// noneAdapter stands in for an absent response.
type noneAdapter struct{}

func (noneAdapter) StatusCode() int            { return StatusNone }
func (noneAdapter) Header() http.Header        { return http.Header{} }
func (noneAdapter) Cookies() map[string]string { return map[string]string{} }
func (noneAdapter) URL() string                { return "" }
func (noneAdapter) Reason() string             { return "" }
func (noneAdapter) Content() []byte            { return nil }
