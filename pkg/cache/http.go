package cache

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultTTL is the fallback lifetime when the response carries no
	// usable freshness header.
	DefaultTTL = 5 * time.Minute

	// RevalidateWindow is how long an entry with an ETag is kept past its
	// freshness lifetime, so a conditional request can revalidate it
	// instead of refetching the full body.
	RevalidateWindow = 10 * time.Minute
)

// NewEntry builds a cache entry from an already-buffered response. Expiry
// comes from Cache-Control max-age when present, falling back to the
// Expires header, then DefaultTTL.
func NewEntry(statusCode int, header http.Header, body []byte, url string) *Entry {
	var headers http.Header
	if header != nil {
		headers = header.Clone()
	} else {
		headers = http.Header{}
	}

	return &Entry{
		Body:       body,
		StatusCode: statusCode,
		Headers:    headers,
		URL:        url,
		ETag:       headers.Get("ETag"),
		Expires:    Freshness(headers),
		CachedAt:   time.Now(),
	}
}

// Cacheable reports whether a response should be stored: GET only,
// successful status, and not explicitly marked uncacheable.
func Cacheable(method string, statusCode int, header http.Header) bool {
	if !strings.EqualFold(method, http.MethodGet) {
		return false
	}
	if statusCode < 200 || statusCode >= 300 {
		return false
	}

	cc := strings.ToLower(header.Get("Cache-Control"))
	if strings.Contains(cc, "no-store") || strings.Contains(cc, "no-cache") {
		return false
	}
	return true
}

// Freshness derives the expiry time from response headers.
// Cache-Control max-age takes precedence over Expires, per RFC 9111.
func Freshness(headers http.Header) time.Time {
	if maxAge, ok := parseMaxAge(headers.Get("Cache-Control")); ok {
		return time.Now().Add(maxAge)
	}

	expiresStr := headers.Get("Expires")
	if expiresStr == "" {
		return time.Now().Add(DefaultTTL)
	}

	expires, err := http.ParseTime(expiresStr)
	if err != nil {
		return time.Now().Add(DefaultTTL)
	}
	if expires.Before(time.Now()) {
		return time.Now()
	}
	return expires
}

// parseMaxAge extracts the max-age directive from a Cache-Control value.
func parseMaxAge(cc string) (time.Duration, bool) {
	if cc == "" {
		return 0, false
	}

	for _, directive := range strings.Split(cc, ",") {
		directive = strings.TrimSpace(strings.ToLower(directive))
		if !strings.HasPrefix(directive, "max-age=") {
			continue
		}

		seconds, err := strconv.Atoi(strings.TrimPrefix(directive, "max-age="))
		if err != nil || seconds < 0 {
			return 0, false
		}
		return time.Duration(seconds) * time.Second, true
	}
	return 0, false
}

// AddConditionalHeaders adds If-None-Match when the stale entry carries an
// ETag, enabling revalidation instead of a full refetch.
func AddConditionalHeaders(header http.Header, entry *Entry) {
	if entry == nil || header == nil {
		return
	}
	if entry.ETag != "" {
		header.Set("If-None-Match", entry.ETag)
	}
}

// String summarizes an entry for logs.
func (e *Entry) String() string {
	return fmt.Sprintf("<Entry [%d] %s ttl=%s>", e.StatusCode, e.URL, e.TTL().Round(time.Second))
}
