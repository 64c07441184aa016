package ratelimit

import (
	"math"
	"time"
)

// Backoff returns the exponential backoff delay for a retry attempt
// (1-based), capped at the configured maximum. Attempt values below 1
// yield the initial backoff.
func Backoff(attempt int, cfg Config) time.Duration {
	cfg = applyDefaults(cfg)
	if attempt < 1 {
		attempt = 1
	}

	d := float64(cfg.InitialBackoff) * math.Pow(cfg.BackoffMultiplier, float64(attempt-1))
	if d > float64(cfg.MaxBackoff) {
		return cfg.MaxBackoff
	}
	return time.Duration(d)
}
