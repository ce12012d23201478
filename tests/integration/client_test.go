// Package integration contains end-to-end tests exercising the client with
// a real Redis instance (via testcontainers) and a mock origin.
package integration

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/sandorn/xthttp/internal/testutil"
	"github.com/sandorn/xthttp/pkg/client"
	"github.com/sandorn/xthttp/pkg/ratelimit"
)

// setupRedis creates a Redis container for integration testing.
func setupRedis(t *testing.T) *redis.Client {
	t.Helper()

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Skipf("Failed to start Redis container: %v", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr: host + ":" + port.Port(),
	})

	t.Cleanup(func() {
		redisClient.Close()
		container.Terminate(context.Background())
	})

	return redisClient
}

// TestCachedRequestFlow verifies the full flow: fetch, store, serve from
// cache without touching the origin again.
func TestCachedRequestFlow(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	redisClient := setupRedis(t)

	origin := testutil.NewMockOrigin()
	defer origin.Close()
	origin.Handle("/data", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "max-age=60")
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte("<p>cacheable payload</p>"))
	})

	cfg := client.DefaultConfig()
	cfg.Redis = redisClient
	fetcher, err := client.New(cfg)
	if err != nil {
		t.Fatalf("New() = %v", err)
	}

	ctx := context.Background()
	url := origin.URL() + "/data"

	first, err := fetcher.Get(ctx, url)
	if err != nil {
		t.Fatalf("first Get() = %v", err)
	}
	if !first.OK() {
		t.Fatalf("first status = %d", first.StatusCode())
	}

	second, err := fetcher.Get(ctx, url)
	if err != nil {
		t.Fatalf("second Get() = %v", err)
	}
	if second.Text() != first.Text() {
		t.Errorf("cached text = %q, want %q", second.Text(), first.Text())
	}

	if got := origin.RequestCount("/data"); got != 1 {
		t.Errorf("origin hits = %d, want 1 (second request served from cache)", got)
	}
}

// TestStaleEntryRevalidation verifies the conditional-request flow: a stale
// entry with an ETag triggers If-None-Match, a 304 refreshes the entry, and
// the cached body is served without a full refetch.
func TestStaleEntryRevalidation(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	redisClient := setupRedis(t)

	origin := testutil.NewMockOrigin()
	defer origin.Close()

	var conditional int
	origin.Handle("/versioned", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("If-None-Match") == `"v1"` {
			conditional++
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		// Immediately stale, so every later request must revalidate.
		w.Header().Set("Cache-Control", "max-age=0")
		w.Write([]byte("versioned payload"))
	})

	cfg := client.DefaultConfig()
	cfg.Redis = redisClient
	fetcher, err := client.New(cfg)
	if err != nil {
		t.Fatalf("New() = %v", err)
	}

	ctx := context.Background()
	url := origin.URL() + "/versioned"

	first, err := fetcher.Get(ctx, url)
	if err != nil {
		t.Fatalf("first Get() = %v", err)
	}
	if first.Text() != "versioned payload" {
		t.Fatalf("first Text() = %q", first.Text())
	}

	second, err := fetcher.Get(ctx, url)
	if err != nil {
		t.Fatalf("second Get() = %v", err)
	}
	if second.Text() != "versioned payload" {
		t.Errorf("revalidated Text() = %q, want cached body", second.Text())
	}
	if !second.OK() {
		t.Errorf("revalidated status = %d, want cached 200", second.StatusCode())
	}
	if conditional != 1 {
		t.Errorf("conditional requests seen by origin = %d, want 1", conditional)
	}
}

// TestUncacheableResponsesBypassCache verifies no-store responses hit the
// origin every time.
func TestUncacheableResponsesBypassCache(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	redisClient := setupRedis(t)

	origin := testutil.NewMockOrigin()
	defer origin.Close()
	origin.Handle("/live", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		w.Write([]byte("fresh"))
	})

	cfg := client.DefaultConfig()
	cfg.Redis = redisClient
	fetcher, err := client.New(cfg)
	if err != nil {
		t.Fatalf("New() = %v", err)
	}

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := fetcher.Get(ctx, origin.URL()+"/live"); err != nil {
			t.Fatalf("Get() = %v", err)
		}
	}

	if got := origin.RequestCount("/live"); got != 3 {
		t.Errorf("origin hits = %d, want 3 (no-store must not be cached)", got)
	}
}

// TestBatchWithCacheAndPacing runs a paced shared-session batch with the
// cache enabled and checks ordering survives the full stack.
func TestBatchWithCacheAndPacing(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	redisClient := setupRedis(t)

	origin := testutil.NewMockOrigin()
	defer origin.Close()

	const n = 10
	urls := make([]string, n)
	for i := 0; i < n; i++ {
		path := fmt.Sprintf("/item/%d", i)
		origin.HandleHTML(path, fmt.Sprintf("<p>item %d</p>", i))
		urls[i] = origin.URL() + path
	}

	cfg := client.DefaultConfig()
	cfg.Redis = redisClient
	cfg.MaxConcurrent = 4
	cfg.RateLimit = ratelimit.Config{RequestsPerSecond: 100, Burst: 4}
	fetcher, err := client.New(cfg)
	if err != nil {
		t.Fatalf("New() = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	results := fetcher.MultiRequest(ctx, "GET", urls)
	if len(results) != n {
		t.Fatalf("results = %d, want %d", len(results), n)
	}
	for i, resp := range results {
		if want := fmt.Sprintf("item %d", i); resp.CSSFirst("p") != want {
			t.Errorf("results[%d] = %q, want %q", i, resp.CSSFirst("p"), want)
		}
	}

	if got := origin.MaxInFlight(); got > 4 {
		t.Errorf("MaxInFlight = %d, want <= 4", got)
	}
}
