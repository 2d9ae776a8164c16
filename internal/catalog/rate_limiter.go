package catalog

import (
	"sync"
	"time"
)

// rateLimiter is a sliding-window limiter shared by the catalog
// clients so bulk runs stay under each API's request budget.
type rateLimiter struct {
	mu     sync.Mutex
	sent   []time.Time
	max    int
	window time.Duration
}

func newRateLimiter(max int, window time.Duration) *rateLimiter {
	return &rateLimiter{
		max:    max,
		window: window,
		sent:   make([]time.Time, 0, max),
	}
}

// wait blocks until a request is allowed, then records it. It never
// fails; a saturated window simply sleeps until the oldest request
// leaves it.
func (r *rateLimiter) wait() {
	for {
		r.mu.Lock()
		now := time.Now()
		cutoff := now.Add(-r.window)
		kept := r.sent[:0]
		for _, t := range r.sent {
			if t.After(cutoff) {
				kept = append(kept, t)
			}
		}
		r.sent = kept

		if len(r.sent) < r.max {
			r.sent = append(r.sent, now)
			r.mu.Unlock()
			return
		}

		// Sleep until the oldest request expires, with a small buffer
		// so the recheck lands past the boundary.
		sleep := r.window - now.Sub(r.sent[0]) + 10*time.Millisecond
		r.mu.Unlock()
		time.Sleep(sleep)
	}
}
