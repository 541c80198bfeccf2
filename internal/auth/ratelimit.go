package auth

import (
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/coppice-labs/switchboard/internal/apierr"
)

// Window is the trailing interval over which requests are counted.
const Window = time.Minute

// RateLimiter enforces a sliding-window per-token request quota: each token
// gets at most perMinute requests in any trailing 60-second window.
type RateLimiter struct {
	mu        sync.Mutex
	history   map[string][]time.Time
	perMinute int
	now       func() time.Time // overridable for tests
}

// NewRateLimiter creates a sliding-window limiter with the given
// requests-per-minute ceiling.
func NewRateLimiter(perMinute int) *RateLimiter {
	return &RateLimiter{
		history:   make(map[string][]time.Time),
		perMinute: perMinute,
		now:       time.Now,
	}
}

// Allow records a request for token if it is under the ceiling. Over the
// ceiling it returns a RATE_LIMITED error carrying retry-after. Tokens are
// counted independently; distinct tokens never interfere.
func (r *RateLimiter) Allow(token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	cutoff := now.Add(-Window)

	stamps := r.history[token]
	kept := stamps[:0]
	for _, ts := range stamps {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}

	if len(kept) >= r.perMinute {
		r.history[token] = kept
		return apierr.RateLimited(int(Window.Seconds()))
	}

	r.history[token] = append(kept, now)
	return nil
}

// Clear resets the request history for a token (testing/ops).
func (r *RateLimiter) Clear(token string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.history, token)
}

// Prune drops tokens whose entire history has aged out of the window.
// Called periodically to bound memory.
func (r *RateLimiter) Prune() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-Window)
	removed := 0
	for token, stamps := range r.history {
		stale := true
		for _, ts := range stamps {
			if ts.After(cutoff) {
				stale = false
				break
			}
		}
		if stale {
			delete(r.history, token)
			removed++
		}
	}
	return removed
}

// AddrLimiter provides token-bucket rate limiting keyed by client address,
// used for endpoints that carry no bearer token.
type AddrLimiter struct {
	limiters map[string]*rate.Limiter
	mu       sync.RWMutex
	rate     rate.Limit
	burst    int
}

// NewAddrLimiter creates an address-keyed limiter.
// requestsPerSecond: sustained rate; burst: requests allowed at once.
func NewAddrLimiter(requestsPerSecond float64, burst int) *AddrLimiter {
	return &AddrLimiter{
		limiters: make(map[string]*rate.Limiter),
		rate:     rate.Limit(requestsPerSecond),
		burst:    burst,
	}
}

func (a *AddrLimiter) getLimiter(key string) *rate.Limiter {
	a.mu.RLock()
	limiter, exists := a.limiters[key]
	a.mu.RUnlock()

	if exists {
		return limiter
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	// Double-check after acquiring write lock
	if limiter, exists = a.limiters[key]; exists {
		return limiter
	}

	limiter = rate.NewLimiter(a.rate, a.burst)
	a.limiters[key] = limiter
	return limiter
}

// Allow checks if a request should be allowed for the given address.
func (a *AddrLimiter) Allow(addr string) bool {
	return a.getLimiter(addr).Allow()
}

// Reset clears all per-address limiters. Call periodically to prevent
// unbounded growth.
func (a *AddrLimiter) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.limiters = make(map[string]*rate.Limiter)
}
