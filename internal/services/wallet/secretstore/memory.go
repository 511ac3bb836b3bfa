package secretstore

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"
)

type entry struct {
	value     []byte
	expiresAt time.Time
}

// Memory is a process-local Store. Construct one per process and share it.
type Memory struct {
	mu      sync.Mutex
	entries map[string]entry
	clock   func() time.Time
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		entries: make(map[string]entry),
		clock:   time.Now,
	}
}

// Put implements Store.
func (m *Memory) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if key == "" {
		return errors.New("secret key is required")
	}
	if ttl <= 0 {
		return errors.New("secret ttl must be positive")
	}
	stored := make([]byte, len(value))
	copy(stored, value)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = entry{value: stored, expiresAt: m.clock().Add(ttl)}
	return nil
}

// TakeOnce implements Store.
func (m *Memory) TakeOnce(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	current, ok := m.entries[key]
	if ok {
		delete(m.entries, key)
	}
	now := m.clock()
	m.mu.Unlock()

	if !ok {
		log.Printf("secret %q not issued or already consumed", key)
		return nil, ErrNotFound
	}
	if !now.Before(current.expiresAt) {
		log.Printf("secret %q expired at %s", key, current.expiresAt.UTC().Format(time.RFC3339))
		return nil, ErrNotFound
	}
	return current.value, nil
}

// Sweep removes entries expired at now and returns how many were dropped.
func (m *Memory) Sweep(now time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for key, current := range m.entries {
		if !now.Before(current.expiresAt) {
			delete(m.entries, key)
			removed++
		}
	}
	return removed
}

// Len reports the number of stored entries, live or not yet swept.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// StartSweeper runs Sweep every interval until ctx is cancelled.
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
				if removed := m.Sweep(m.clock()); removed > 0 {
					log.Printf("secret sweep removed %d expired entries", removed)
				}
			}
		}
	}()
}
