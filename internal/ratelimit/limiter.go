package ratelimit

import (
	"context"
	"time"
)

// Limiter throttles outbound requests to an upstream API.
type Limiter interface {
	// Wait blocks until the next request may be sent or ctx is done.
	Wait(ctx context.Context) error
	// Allow reports whether a request may be sent immediately.
	Allow() bool
	// RetryAfter returns how long to back off before retry number attempt.
	RetryAfter(attempt int) time.Duration
}

// Strategy selects the throttling algorithm.
type Strategy string

const (
	StrategyTokenBucket Strategy = "token_bucket"
	StrategyFixedWindow Strategy = "fixed_window"
	StrategyFixedDelay  Strategy = "fixed_delay"
)

// New creates a limiter for the given config, defaulting to a token bucket.
func New(cfg Config) Limiter {
	cfg = applyDefaults(cfg)
	switch cfg.Strategy {
	case StrategyFixedWindow:
		return newFixedWindow(cfg)
	case StrategyFixedDelay:
		return newFixedDelay(cfg)
	default:
		return newTokenBucket(cfg)
	}
}
