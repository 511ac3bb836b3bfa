package ratelimit

import (
	"context"
	"sync"
	"time"
)

type window struct {
	count   int64
	resetAt time.Time
}

// Memory is a process-local Counter.
type Memory struct {
	mu      sync.Mutex
	windows map[string]window
	clock   func() time.Time
}

// NewMemory returns an empty in-process counter.
func NewMemory() *Memory {
	return &Memory{windows: make(map[string]window), clock: time.Now}
}

// Incr counts a hit for key.
func (m *Memory) Incr(_ context.Context, key string, length time.Duration) (int64, error) {
	now := m.clock()
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.windows[key]
	if !ok || !now.Before(w.resetAt) {
		w = window{resetAt: now.Add(length)}
	}
	w.count++
	m.windows[key] = w
	return w.count, nil
}

// Sweep drops windows that lapsed before now.
func (m *Memory) Sweep(now time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for key, w := range m.windows {
		if !now.Before(w.resetAt) {
			delete(m.windows, key)
			removed++
		}
	}
	return removed
}

// StartSweeper runs Sweep on a ticker until ctx ends.
func (m *Memory) StartSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.Sweep(m.clock())
			}
		}
	}()
}
