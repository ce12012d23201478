// Package headers provides default request headers, user agent rotation,
// and timeout configuration for outgoing HTTP requests.
package headers

import (
	"math/rand"
	"net/http"
	"sync"
)

// defaultHeaders are applied to every request unless the caller overrides
// the key. Accept-Encoding is deliberately absent: setting it by hand
// disables the transport's transparent gzip handling.
var defaultHeaders = map[string]string{
	"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8",
	"Accept-Language": "zh-CN,zh;q=0.9,en;q=0.8",
	"Connection":      "keep-alive",
	"Cache-Control":   "no-cache",
}

// userAgents is the rotation pool of realistic desktop browser agents.
var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36 Edg/123.0.2420.81",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:125.0) Gecko/20100101 Firefox/125.0",
	"Mozilla/5.0 (X11; Linux x86_64; rv:125.0) Gecko/20100101 Firefox/125.0",
}

// Default returns a fresh copy of the default header table. Callers may
// mutate the result freely.
func Default() map[string]string {
	headers := make(map[string]string, len(defaultHeaders))
	for k, v := range defaultHeaders {
		headers[k] = v
	}
	return headers
}

// Apply sets the default headers plus a user agent on req, skipping keys
// the request already carries.
func Apply(req *http.Request, ua *UserAgentManager) {
	for k, v := range defaultHeaders {
		if req.Header.Get(k) == "" {
			req.Header.Set(k, v)
		}
	}
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", ua.Next())
	}
}

// UserAgentManager hands out user agent strings from the rotation pool.
// It is safe for concurrent use.
type UserAgentManager struct {
	mu     sync.Mutex
	rng    *rand.Rand
	agents []string
}

// NewUserAgentManager creates a manager over the built-in agent pool,
// seeded from seed for reproducible rotation in tests.
func NewUserAgentManager(seed int64) *UserAgentManager {
	return &UserAgentManager{
		rng:    rand.New(rand.NewSource(seed)),
		agents: userAgents,
	}
}

// Next returns a random agent from the pool.
func (m *UserAgentManager) Next() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.agents[m.rng.Intn(len(m.agents))]
}

// Fixed returns a manager that always hands out agent, for callers that
// need a stable identity across a session.
func Fixed(agent string) *UserAgentManager {
	return &UserAgentManager{
		rng:    rand.New(rand.NewSource(0)),
		agents: []string{agent},
	}
}
