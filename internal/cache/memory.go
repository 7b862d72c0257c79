package cache

import (
	"context"
	"sync"
	"time"

	"github.com/fastpanel/fastpanel/internal/models"
)

type memoryEntry struct {
	items   []models.StreamEntry
	expires time.Time
}

// Memory is an in-process PlaylistCache with per-entry expiry.
// A background sweep evicts expired entries until Close is called.
type Memory struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	ttl     time.Duration
	now     func() time.Time

	done      chan struct{}
	closeOnce sync.Once
}

// NewMemory creates a Memory cache. Zero durations select DefaultTTL and
// DefaultSweep.
func NewMemory(ttl, sweep time.Duration) *Memory {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if sweep <= 0 {
		sweep = DefaultSweep
	}
	m := &Memory{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
		now:     time.Now,
		done:    make(chan struct{}),
	}
	go m.sweepLoop(sweep)
	return m
}

func (m *Memory) Get(_ context.Context, key string) ([]models.StreamEntry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok {
		return nil, false
	}
	if !m.now().Before(e.expires) {
		delete(m.entries, key)
		return nil, false
	}
	return e.items, true
}

func (m *Memory) Set(_ context.Context, key string, items []models.StreamEntry, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = m.ttl
	}
	m.mu.Lock()
	m.entries[key] = memoryEntry{items: items, expires: m.now().Add(ttl)}
	m.mu.Unlock()
	return nil
}

func (m *Memory) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	for _, k := range keys {
		delete(m.entries, k)
	}
	m.mu.Unlock()
	return nil
}

// Len returns the number of stored entries, expired ones included.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Close stops the sweep goroutine. It is safe to call more than once.
func (m *Memory) Close() {
	m.closeOnce.Do(func() { close(m.done) })
}

func (m *Memory) sweepLoop(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			m.sweep()
		}
	}
}

// sweep drops expired entries and returns how many were removed.
func (m *Memory) sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	n := 0
	for k, e := range m.entries {
		if !now.Before(e.expires) {
			delete(m.entries, k)
			n++
		}
	}
	return n
}
