// Package cache holds read-through caches for owner-scoped query results.
package cache

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Cache is a string-keyed cache safe for concurrent use. Callers cannot tell a
// miss from a backend failure; both mean "go to the store".
type Cache[T any] interface {
	Get(ctx context.Context, key string) (T, bool)
	Set(ctx context.Context, key string, data T)
	Delete(ctx context.Context, key string)
	// DeletePrefix drops every key starting with prefix and returns how many were removed.
	DeletePrefix(ctx context.Context, prefix string) int
}

// Cleaner is implemented by caches that expire entries locally.
type Cleaner interface {
	CleanExpired() int
}

// Manager sweeps registered caches on a fixed interval.
type Manager struct {
	logger *slog.Logger

	mu       sync.Mutex
	cleaners []Cleaner
	cancel   context.CancelFunc
	done     chan struct{}
}

func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{logger: logger}
}

// Register adds a cache to the sweep. Caches registered after StartCleanup
// are picked up on the next tick.
func (m *Manager) Register(c Cleaner) {
	m.mu.Lock()
	m.cleaners = append(m.cleaners, c)
	m.mu.Unlock()
}

// StartCleanup launches the sweeper. Calling it twice is a no-op.
func (m *Manager) StartCleanup(interval time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.done != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel, m.done = cancel, make(chan struct{})
	go m.sweep(ctx, interval, m.done)
}

func (m *Manager) sweep(ctx context.Context, interval time.Duration, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		m.mu.Lock()
		cleaners := append([]Cleaner(nil), m.cleaners...)
		m.mu.Unlock()

		removed := 0
		for _, c := range cleaners {
			removed += c.CleanExpired()
		}
		if removed > 0 {
			m.logger.Debug("Expired cache entries removed", "count", removed)
		}
	}
}

// Stop halts the sweeper and waits for it to exit. It is safe to call without
// a prior StartCleanup.
func (m *Manager) Stop() {
	m.mu.Lock()
	cancel, done := m.cancel, m.done
	m.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}
