package ratelimit

import (
	"context"
	"math"
	"sync"
	"time"
)

// fixedWindow allows up to N requests per one-second window.
type fixedWindow struct {
	mu          sync.Mutex
	perWindow   int
	count       int
	windowStart time.Time
	cfg         Config
}

func newFixedWindow(cfg Config) *fixedWindow {
	per := int(math.Ceil(cfg.RequestsPerSec))
	if per < 1 {
		per = 1
	}
	return &fixedWindow{
		perWindow:   per,
		windowStart: time.Now(),
		cfg:         cfg,
	}
}

const windowLength = time.Second

func (fw *fixedWindow) Wait(ctx context.Context) error {
	for {
		fw.mu.Lock()
		fw.roll()
		if fw.count < fw.perWindow {
			fw.count++
			fw.mu.Unlock()
			return nil
		}
		wait := windowLength - time.Since(fw.windowStart)
		fw.mu.Unlock()

		if wait <= 0 {
			continue
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func (fw *fixedWindow) Allow() bool {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	fw.roll()
	if fw.count < fw.perWindow {
		fw.count++
		return true
	}
	return false
}

func (fw *fixedWindow) RetryAfter(attempt int) time.Duration {
	return Backoff(attempt, fw.cfg)
}

// roll starts a fresh window once the current one has elapsed; call with
// the lock held.
func (fw *fixedWindow) roll() {
	if time.Since(fw.windowStart) >= windowLength {
		fw.windowStart = time.Now()
		fw.count = 0
	}
}
