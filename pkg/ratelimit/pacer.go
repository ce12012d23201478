// Package ratelimit provides optional request pacing for batch workloads.
// A nil *Pacer is valid and imposes no delay, so callers gate every request
// through Wait without checking whether pacing is configured.
package ratelimit

import (
	"context"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Config holds pacer configuration.
type Config struct {
	// RequestsPerSecond is the sustained request rate. Zero or negative
	// disables pacing.
	RequestsPerSecond float64

	// Burst is the number of requests allowed to pass without waiting.
	// Defaults to 1 when unset.
	Burst int
}

// Pacer throttles outgoing requests with a token bucket.
type Pacer struct {
	limiter *rate.Limiter
	logger  zerolog.Logger
}

// New creates a Pacer from cfg, or nil when pacing is disabled.
func New(cfg Config, logger zerolog.Logger) *Pacer {
	if cfg.RequestsPerSecond <= 0 {
		return nil
	}

	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}

	return &Pacer{
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst),
		logger:  logger,
	}
}

// Wait blocks until a request may proceed or ctx is cancelled. A nil Pacer
// returns immediately.
func (p *Pacer) Wait(ctx context.Context) error {
	if p == nil {
		return nil
	}

	if err := p.limiter.Wait(ctx); err != nil {
		p.logger.Debug().Err(err).Msg("Pacer wait aborted")
		return err
	}
	return nil
}

// Allow reports whether a request may proceed right now without waiting.
// A nil Pacer always allows.
func (p *Pacer) Allow() bool {
	if p == nil {
		return true
	}
	return p.limiter.Allow()
}
