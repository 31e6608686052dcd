package fetcher

import (
	"context"
	"sync"
	"time"

	"github.com/go-pkgz/lgr"
)

// RateLimiter enforces minimum spacing between outbound fetch calls and a
// rolling daily quota shared across all sources. Safe for concurrent use.
type RateLimiter struct {
	minDelay time.Duration
	dailyMax int

	mu          sync.Mutex
	dailyCount  int
	windowStart time.Time
	lastRequest time.Time

	now   func() time.Time
	sleep func(context.Context, time.Duration)
}

// NewRateLimiter creates a limiter with the given minimum inter-request
// delay and daily request maximum
func NewRateLimiter(minDelay time.Duration, dailyMax int) *RateLimiter {
	rl := &RateLimiter{
		minDelay: minDelay,
		dailyMax: dailyMax,
		now:      time.Now,
		sleep:    sleepCtx,
	}
	rl.windowStart = rl.now()
	return rl
}

// Acquire blocks until it is safe to issue one outbound request. It never
// returns an error; on context cancellation it returns early without
// consuming quota.
func (rl *RateLimiter) Acquire(ctx context.Context) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	// reset the window if 24h elapsed since it started
	now := rl.now()
	if now.Sub(rl.windowStart) >= 24*time.Hour {
		rl.dailyCount = 0
		rl.windowStart = now
	}

	// quota exhausted, wait out the rest of the window
	if rl.dailyCount >= rl.dailyMax {
		wait := rl.windowStart.Add(24 * time.Hour).Sub(now)
		lgr.Printf("[WARN] daily request limit %d reached, waiting %v", rl.dailyMax, wait.Round(time.Second))
		rl.sleep(ctx, wait)
		if ctx.Err() != nil {
			return
		}
		rl.dailyCount = 0
		rl.windowStart = rl.now()
	}

	// enforce minimum spacing since the last acquired call
	if !rl.lastRequest.IsZero() {
		if since := rl.now().Sub(rl.lastRequest); since < rl.minDelay {
			rl.sleep(ctx, rl.minDelay-since)
			if ctx.Err() != nil {
				return
			}
		}
	}

	rl.lastRequest = rl.now()
	rl.dailyCount++
}

// sleepCtx sleeps for d or until ctx is cancelled
func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
