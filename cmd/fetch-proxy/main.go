// fetch-proxy is a small HTTP service exposing the xthttp client: it fetches
// a target URL on behalf of the caller and returns the unified response as
// JSON (status, encoding, decoded text, timing). With REDIS_URL set, GET
// responses are served from the response cache.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/sandorn/xthttp/pkg/client"
	"github.com/sandorn/xthttp/pkg/logging"
)

type fetchResult struct {
	URL      string            `json:"url"`
	Status   int               `json:"status"`
	OK       bool              `json:"ok"`
	Encoding string            `json:"encoding"`
	Seconds  float64           `json:"seconds"`
	Length   int               `json:"length"`
	Cookies  map[string]string `json:"cookies,omitempty"`
	Text     string            `json:"text"`
}

func main() {
	logger := logging.Setup(logging.Config{
		Level:  logging.LogLevel(getEnv("LOG_LEVEL", "info")),
		Pretty: os.Getenv("LOG_PRETTY") == "true",
		Output: os.Stderr,
	})

	cfg := client.DefaultConfig()

	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		redisClient := redis.NewClient(&redis.Options{Addr: redisURL})
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			logger.Fatal().Err(err).Str("addr", redisURL).Msg("Failed to connect to Redis")
		}
		cfg.Redis = redisClient
		logger.Info().Str("addr", redisURL).Msg("Response cache enabled")
	}

	fetcher, err := client.New(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create client")
	}

	http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "OK")
	})
	http.HandleFunc("/fetch", fetchHandler(fetcher))
	http.Handle("/metrics", promhttp.Handler())

	addr := ":" + getEnv("PORT", "8080")
	logger.Info().Str("addr", addr).Msg("Starting fetch proxy")
	if err := http.ListenAndServe(addr, nil); err != nil {
		logger.Fatal().Err(err).Msg("Server failed")
	}
}

func fetchHandler(fetcher *client.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		target := r.URL.Query().Get("url")
		if target == "" {
			http.Error(w, "missing url parameter", http.StatusBadRequest)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 35*time.Second)
		defer cancel()

		resp, err := fetcher.Get(ctx, target)
		if err != nil {
			http.Error(w, fmt.Sprintf("fetch failed: %v", err), http.StatusBadGateway)
			return
		}

		result := fetchResult{
			URL:      resp.URL(),
			Status:   resp.StatusCode(),
			OK:       resp.OK(),
			Encoding: resp.Encoding(),
			Seconds:  resp.Seconds(),
			Length:   resp.Len(),
			Cookies:  resp.Cookies(),
			Text:     resp.Text(),
		}

		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		if err := json.NewEncoder(w).Encode(result); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
