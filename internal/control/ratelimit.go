package control

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// IPRateLimiter hands out one token bucket per client key.
type IPRateLimiter struct {
	mu   sync.Mutex
	ips  map[string]*visitor
	r    rate.Limit
	b    int
	idle time.Duration
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewIPRateLimiter allows r messages per second with bursts of b per key.
// Buckets unused for idle are dropped by Sweep.
func NewIPRateLimiter(r rate.Limit, b int, idle time.Duration) *IPRateLimiter {
	return &IPRateLimiter{
		ips:  make(map[string]*visitor),
		r:    r,
		b:    b,
		idle: idle,
	}
}

// GetLimiter returns the bucket for key, creating it on first use.
func (l *IPRateLimiter) GetLimiter(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	v, exists := l.ips[key]
	if !exists {
		v = &visitor{limiter: rate.NewLimiter(l.r, l.b)}
		l.ips[key] = v
	}
	v.lastSeen = time.Now()
	return v.limiter
}

// Allow reports whether key may send a message now.
func (l *IPRateLimiter) Allow(key string) bool {
	return l.GetLimiter(key).Allow()
}

// Sweep drops buckets idle since before now minus the idle period and
// returns how many were dropped.
func (l *IPRateLimiter) Sweep(now time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	n := 0
	for key, v := range l.ips {
		if now.Sub(v.lastSeen) > l.idle {
			delete(l.ips, key)
			n++
		}
	}
	return n
}

// Len returns the number of tracked keys.
func (l *IPRateLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.ips)
}
