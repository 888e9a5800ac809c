package cache

import (
	"context"
	"strings"
	"sync"
	"time"
)

// DefaultSweepInterval is how often the memory backend drops expired entries.
const DefaultSweepInterval = 30 * time.Second

// MemoryBackend keeps entries in a process-local map.
// Intended for single-process, moderate-cardinality use.
type MemoryBackend struct {
	mu      sync.Mutex
	entries map[string]*Entry
	closed  bool

	now       func() time.Time
	interval  time.Duration
	stop      chan struct{}
	closeOnce sync.Once
}

// MemoryOption configures a MemoryBackend.
type MemoryOption func(*MemoryBackend)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) MemoryOption {
	return func(m *MemoryBackend) {
		if now != nil {
			m.now = now
		}
	}
}

// WithSweepInterval sets the background sweep interval. Values <= 0 disable
// the sweeper; expiry is then enforced only on access.
func WithSweepInterval(d time.Duration) MemoryOption {
	return func(m *MemoryBackend) {
		m.interval = d
	}
}

// NewMemoryBackend creates an empty memory backend and starts its sweeper.
func NewMemoryBackend(opts ...MemoryOption) *MemoryBackend {
	m := &MemoryBackend{
		entries:  make(map[string]*Entry),
		now:      time.Now,
		interval: DefaultSweepInterval,
		stop:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.interval > 0 {
		go m.sweepLoop()
	}
	return m
}

// Name returns "memory".
func (m *MemoryBackend) Name() string { return "memory" }

// Load returns the payload for key, dropping it first if it has expired.
func (m *MemoryBackend) Load(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.live(key)
	if !ok {
		return "", false, nil
	}
	return entry.Value, true, nil
}

// Save inserts or replaces key.
func (m *MemoryBackend) Save(_ context.Context, key, payload string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return &BackendError{Backend: m.Name(), Op: "set", Err: ErrClosed}
	}
	m.entries[key] = newEntry(payload, ttl, m.now())
	return nil
}

// Remove deletes key. Expired entries count as absent.
func (m *MemoryBackend) Remove(_ context.Context, key string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return 0, &BackendError{Backend: m.Name(), Op: "del", Err: ErrClosed}
	}
	if _, ok := m.live(key); !ok {
		return 0, nil
	}
	delete(m.entries, key)
	return 1, nil
}

// ExpiresIn returns the time left for key.
func (m *MemoryBackend) ExpiresIn(_ context.Context, key string) (time.Duration, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.live(key)
	if !ok {
		return 0, false, nil
	}
	ttl, ok := entry.TTL(m.now())
	return ttl, ok, nil
}

// RemovePrefix scans every key; O(n) in the number of entries.
func (m *MemoryBackend) RemovePrefix(_ context.Context, prefix string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return 0, &BackendError{Backend: m.Name(), Op: "delete_prefix", Err: ErrClosed}
	}

	now := m.now()
	removed := 0
	for key, entry := range m.entries {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		delete(m.entries, key)
		if entry.IsExpired(now) {
			CacheExpirations.WithLabelValues(m.Name()).Inc()
			continue
		}
		removed++
	}
	return removed, nil
}

// Len returns the number of stored entries, including expired ones not yet swept.
func (m *MemoryBackend) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Close stops the sweeper and drops all entries.
func (m *MemoryBackend) Close() error {
	m.closeOnce.Do(func() {
		m.mu.Lock()
		m.closed = true
		m.entries = make(map[string]*Entry)
		m.mu.Unlock()
		close(m.stop)
	})
	return nil
}

// live returns the entry for key, deleting it if expired. Caller holds m.mu.
func (m *MemoryBackend) live(key string) (*Entry, bool) {
	entry, ok := m.entries[key]
	if !ok {
		return nil, false
	}
	if entry.IsExpired(m.now()) {
		delete(m.entries, key)
		CacheExpirations.WithLabelValues(m.Name()).Inc()
		return nil, false
	}
	return entry, true
}

// Sweep removes all expired entries and returns how many were dropped.
func (m *MemoryBackend) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	swept := 0
	for key, entry := range m.entries {
		if entry.IsExpired(now) {
			delete(m.entries, key)
			swept++
		}
	}
	if swept > 0 {
		CacheExpirations.WithLabelValues(m.Name()).Add(float64(swept))
	}
	return swept
}

func (m *MemoryBackend) sweepLoop() {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			m.Sweep()
		}
	}
}
