package httpmiddleware

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Throttle is a token bucket per key, used where the key is only known inside
// a handler (for example the e-mail of a login attempt).
type Throttle struct {
	limit rate.Limit
	burst int
	now   func() time.Time

	mu      sync.Mutex
	buckets map[string]*bucket
}

type bucket struct {
	limiter *rate.Limiter
	seen    time.Time
}

// NewThrottle allows burst events at once and limit events per second after.
func NewThrottle(limit rate.Limit, burst int) *Throttle {
	return &Throttle{
		limit:   limit,
		burst:   burst,
		now:     time.Now,
		buckets: make(map[string]*bucket),
	}
}

// Allow consumes one token of key.
func (t *Throttle) Allow(key string) bool {
	now := t.now()

	t.mu.Lock()
	b, ok := t.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(t.limit, t.burst)}
		t.buckets[key] = b
	}
	b.seen = now
	t.mu.Unlock()

	return b.limiter.AllowN(now, 1)
}

// Reset forgets key, e.g. after a successful login.
func (t *Throttle) Reset(key string) {
	t.mu.Lock()
	delete(t.buckets, key)
	t.mu.Unlock()
}

// Prune drops keys idle for longer than idle and returns how many went.
func (t *Throttle) Prune(idle time.Duration) int {
	cutoff := t.now().Add(-idle)

	t.mu.Lock()
	defer t.mu.Unlock()

	n := 0
	for key, b := range t.buckets {
		if b.seen.Before(cutoff) {
			delete(t.buckets, key)
			n++
		}
	}
	return n
}
