package cache

import (
	"net/url"
	"sort"
	"strings"
)

// Key identifies a cached response by method and normalized URL.
type Key struct {
	// Method is the HTTP method, stored upper-case.
	Method string

	// URL is the full request URL including query string.
	URL string
}

// NewKey builds a Key, normalizing the method to upper-case.
func NewKey(method, rawURL string) Key {
	return Key{
		Method: strings.ToUpper(method),
		URL:    rawURL,
	}
}

// String generates a deterministic cache key string. Query parameters are
// sorted so equivalent URLs with reordered parameters share one entry.
//
// Format: xthttp:GET:https://example.com/path?a=1&b=2
func (k Key) String() string {
	return "xthttp:" + k.Method + ":" + normalizeURL(k.URL)
}

// normalizeURL sorts the query parameters of rawURL. Unparseable URLs pass
// through unchanged.
func normalizeURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}

	query := u.Query()
	if len(query) == 0 {
		return u.String()
	}

	keys := make([]string, 0, len(query))
	for key := range query {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, key := range keys {
		values := query[key]
		sort.Strings(values)
		for _, v := range values {
			if b.Len() > 0 {
				b.WriteByte('&')
			}
			b.WriteString(url.QueryEscape(key))
			b.WriteByte('=')
			b.WriteString(url.QueryEscape(v))
		}
	}
	u.RawQuery = b.String()
	return u.String()
}
