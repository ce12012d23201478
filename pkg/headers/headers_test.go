package headers

import (
	"net/http"
	"testing"
	"time"
)

func TestDefaultReturnsCopy(t *testing.T) {
	first := Default()
	first["Accept"] = "mutated"

	second := Default()
	if second["Accept"] == "mutated" {
		t.Error("Default() returned a shared map")
	}
	if second["Connection"] != "keep-alive" {
		t.Errorf("Connection = %q, want keep-alive", second["Connection"])
	}
}

func TestApplySetsDefaultsAndUserAgent(t *testing.T) {
	req, err := http.NewRequest(http.MethodGet, "https://example.com/", nil)
	if err != nil {
		t.Fatalf("NewRequest failed: %v", err)
	}

	Apply(req, NewUserAgentManager(1))

	if req.Header.Get("Accept-Language") == "" {
		t.Error("Accept-Language not applied")
	}
	if req.Header.Get("User-Agent") == "" {
		t.Error("User-Agent not applied")
	}
}

func TestApplyKeepsCallerHeaders(t *testing.T) {
	req, err := http.NewRequest(http.MethodGet, "https://example.com/", nil)
	if err != nil {
		t.Fatalf("NewRequest failed: %v", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "custom-agent/1.0")

	Apply(req, NewUserAgentManager(1))

	if got := req.Header.Get("Accept"); got != "application/json" {
		t.Errorf("Accept = %q, want caller value preserved", got)
	}
	if got := req.Header.Get("User-Agent"); got != "custom-agent/1.0" {
		t.Errorf("User-Agent = %q, want caller value preserved", got)
	}
}

func TestUserAgentManagerPoolMembership(t *testing.T) {
	m := NewUserAgentManager(42)

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		agent := m.Next()
		if agent == "" {
			t.Fatal("Next() returned empty agent")
		}
		seen[agent] = true
	}
	// With 50 draws over a small pool, rotation should produce variety.
	if len(seen) < 2 {
		t.Errorf("saw %d distinct agents over 50 draws, want rotation", len(seen))
	}
}

func TestFixedUserAgent(t *testing.T) {
	m := Fixed("stable/1.0")
	for i := 0; i < 5; i++ {
		if got := m.Next(); got != "stable/1.0" {
			t.Fatalf("Next() = %q, want stable/1.0", got)
		}
	}
}

func TestDefaultTimeouts(t *testing.T) {
	cfg := DefaultTimeouts()
	if cfg.Connect != 8*time.Second {
		t.Errorf("Connect = %v, want 8s", cfg.Connect)
	}
	if cfg.Total != 30*time.Second {
		t.Errorf("Total = %v, want 30s", cfg.Total)
	}
}

func TestNewHTTPClient(t *testing.T) {
	client := NewHTTPClient(DefaultTimeouts())
	if client.Timeout != 30*time.Second {
		t.Errorf("Timeout = %v, want 30s", client.Timeout)
	}
	if client.Transport == nil {
		t.Fatal("Transport is nil")
	}
}

func TestNewSharedHTTPClientPerHostFloor(t *testing.T) {
	client := NewSharedHTTPClient(DefaultTimeouts(), 0)
	transport, ok := client.Transport.(*http.Transport)
	if !ok {
		t.Fatal("Transport is not *http.Transport")
	}
	if transport.MaxIdleConnsPerHost < 2 {
		t.Errorf("MaxIdleConnsPerHost = %d, want >= 2", transport.MaxIdleConnsPerHost)
	}
}
