// Package ratelimit caps how many writes a client can make per minute.
package ratelimit

import (
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// idleAfter is how long a key may stay silent before its bucket is forgotten.
const idleAfter = 10 * time.Minute

// Limiter keeps one token bucket per key. Each bucket holds a minute's worth of
// requests and refills evenly over that minute.
type Limiter struct {
	every time.Duration
	burst int
	now   func() time.Time

	mu      sync.Mutex
	buckets map[string]*bucket

	denied   atomic.Int64
	stop     chan struct{}
	stopOnce sync.Once
}

type bucket struct {
	lim  *rate.Limiter
	seen time.Time
}

type Config struct {
	RequestsPerMinute int
	CleanupInterval   time.Duration
}

func DefaultConfig() Config {
	return Config{RequestsPerMinute: 60, CleanupInterval: 5 * time.Minute}
}

// NewLimiter starts a background sweep of idle keys; call Stop to end it.
func NewLimiter(cfg Config) *Limiter {
	def := DefaultConfig()
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = def.RequestsPerMinute
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = def.CleanupInterval
	}
	l := &Limiter{
		every:   time.Minute / time.Duration(cfg.RequestsPerMinute),
		burst:   cfg.RequestsPerMinute,
		now:     time.Now,
		buckets: map[string]*bucket{},
		stop:    make(chan struct{}),
	}
	go l.sweepEvery(cfg.CleanupInterval)
	return l
}

// bucketFor must be called with mu held.
func (l *Limiter) bucketFor(key string, now time.Time) *bucket {
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(rate.Every(l.every), l.burst)}
		l.buckets[key] = b
	}
	b.seen = now
	return b
}

// Allow takes a token from key's bucket if one is available.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	if l.bucketFor(key, now).lim.AllowN(now, 1) {
		return true
	}
	l.denied.Add(1)
	return false
}

// RetryAfter is the number of whole seconds until key earns its next token.
func (l *Limiter) RetryAfter(key string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.buckets[key]
	if !ok {
		return 0
	}
	now := l.now()
	r := b.lim.ReserveN(now, 1)
	wait := r.DelayFrom(now)
	r.CancelAt(now)
	if wait <= 0 {
		return 0
	}
	secs := int(wait.Round(time.Second) / time.Second)
	if secs == 0 {
		secs = 1
	}
	return secs
}

func (l *Limiter) sweepEvery(interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-l.stop:
			return
		case <-t.C:
			l.forgetIdle()
		}
	}
}

func (l *Limiter) forgetIdle() {
	l.mu.Lock()
	defer l.mu.Unlock()
	cutoff := l.now().Add(-idleAfter)
	for key, b := range l.buckets {
		if b.seen.Before(cutoff) {
			delete(l.buckets, key)
		}
	}
}

func (l *Limiter) Stop() {
	l.stopOnce.Do(func() { close(l.stop) })
}

type Metrics struct {
	TotalHits   int64
	ClientCount int64
}

// GetMetrics reports denied requests so far and the number of tracked keys.
func (l *Limiter) GetMetrics() Metrics {
	l.mu.Lock()
	n := len(l.buckets)
	l.mu.Unlock()
	return Metrics{TotalHits: l.denied.Load(), ClientCount: int64(n)}
}

// Middleware throttles unsafe methods only; page loads and reads always pass.
// keyFunc picks the bucket, usually the owner id or the client IP.
func (l *Limiter) Middleware(keyFunc func(*http.Request) string, onLimit http.HandlerFunc) func(http.Handler) http.Handler {
	if onLimit == nil {
		onLimit = func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "too many requests", http.StatusTooManyRequests)
		}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet || r.Method == http.MethodHead || r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}
			key := keyFunc(r)
			if l.Allow(key) {
				next.ServeHTTP(w, r)
				return
			}
			w.Header().Set("Retry-After", strconv.Itoa(l.RetryAfter(key)))
			onLimit(w, r)
		})
	}
}
