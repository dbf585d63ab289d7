package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter keeps fixed-window counters keyed by caller.
type Limiter interface {
	// Hit increments the counter for key, starting a new window when none
	// is open, and returns the count and the time left in the window.
	Hit(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
	// Count reads the counter without incrementing it.
	Count(ctx context.Context, key string) (int64, time.Duration, error)
}

// MemoryLimiter is a process-local Limiter used when Redis is not
// configured. Counters are not shared between replicas.
type MemoryLimiter struct {
	mu      sync.Mutex
	windows map[string]memoryWindow
	now     func() time.Time
}

type memoryWindow struct {
	count   int64
	resetAt time.Time
}

func NewMemoryLimiter() *MemoryLimiter {
	return &MemoryLimiter{
		windows: make(map[string]memoryWindow),
		now:     time.Now,
	}
}

func (m *MemoryLimiter) Hit(_ context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	w, ok := m.windows[key]
	if !ok || !now.Before(w.resetAt) {
		w = memoryWindow{resetAt: now.Add(window)}
		m.sweep(now)
	}
	w.count++
	m.windows[key] = w
	return w.count, w.resetAt.Sub(now), nil
}

func (m *MemoryLimiter) Count(_ context.Context, key string) (int64, time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	w, ok := m.windows[key]
	if !ok || !now.Before(w.resetAt) {
		return 0, 0, nil
	}
	return w.count, w.resetAt.Sub(now), nil
}

// sweep drops expired windows. Callers hold mu.
func (m *MemoryLimiter) sweep(now time.Time) {
	for key, w := range m.windows {
		if !now.Before(w.resetAt) {
			delete(m.windows, key)
		}
	}
}
