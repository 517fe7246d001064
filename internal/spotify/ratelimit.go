package spotify

import (
	"strconv"
	"sync"
	"time"
)

// RateLimit tracks the cool-down window the remote asked for. Every remote
// call checks it before doing any network I/O.
type RateLimit struct {
	mu              sync.Mutex
	blockedUntil    time.Time
	defaultCooldown time.Duration

	now func() time.Time
}

func NewRateLimit(defaultCooldown time.Duration) *RateLimit {
	return &RateLimit{
		defaultCooldown: defaultCooldown,
		now:             time.Now,
	}
}

// Blocked reports whether calls are currently short-circuited, and for how
// much longer.
func (r *RateLimit) Blocked() (time.Duration, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	remaining := r.blockedUntil.Sub(r.now())
	if remaining <= 0 {
		return 0, false
	}
	return remaining, true
}

// Block starts (or extends) the cool-down window.
func (r *RateLimit) Block(d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	until := r.now().Add(d)
	if until.After(r.blockedUntil) {
		r.blockedUntil = until
	}
}

// BlockFromHeader applies a 429's Retry-After header, falling back to the
// default cool-down when the header is missing or malformed. Returns the
// applied duration.
func (r *RateLimit) BlockFromHeader(retryAfter string) time.Duration {
	d := r.defaultCooldown
	if retryAfter != "" {
		if secs, err := strconv.Atoi(retryAfter); err == nil && secs > 0 {
			d = time.Duration(secs) * time.Second
		}
	}
	r.Block(d)
	return d
}
