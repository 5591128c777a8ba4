package api

import (
	"context"
	"sync"
	"time"
)

// RateLimiter is a token bucket: up to maxTokens requests in a burst, then
// one more every refill.
type RateLimiter struct {
	mu         sync.Mutex
	tokens     int
	maxTokens  int
	refill     time.Duration
	lastRefill time.Time
	now        func() time.Time
}

func NewRateLimiter(maxTokens int, refill time.Duration) *RateLimiter {
	if maxTokens <= 0 {
		maxTokens = 1
	}
	rl := &RateLimiter{maxTokens: maxTokens, tokens: maxTokens, refill: refill, now: time.Now}
	rl.lastRefill = rl.now()
	return rl
}

// Wait blocks until a token is available or ctx is done.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	for {
		wait := rl.reserve()
		if wait <= 0 {
			return nil
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

// reserve takes a token and returns 0, or returns how long until the next
// token is due.
func (rl *RateLimiter) reserve() time.Duration {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if rl.refill <= 0 {
		return 0
	}
	now := rl.now()
	if add := int(now.Sub(rl.lastRefill) / rl.refill); add > 0 {
		rl.tokens += add
		if rl.tokens > rl.maxTokens {
			rl.tokens = rl.maxTokens
		}
		rl.lastRefill = rl.lastRefill.Add(time.Duration(add) * rl.refill)
	}
	if rl.tokens > 0 {
		rl.tokens--
		return 0
	}
	return rl.lastRefill.Add(rl.refill).Sub(now)
}
