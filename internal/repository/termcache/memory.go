package termcache

import (
	"context"
	"sync"
	"time"
)

// Memory is an in-process cache with per-entry expiry.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
}

type memoryEntry struct {
	value   []byte
	expires time.Time
}

// NewMemory creates an in-process cache.
func NewMemory() *Memory {
	return &Memory{entries: map[string]memoryEntry{}}
}

// Get returns the cached value if present and not expired.
func (m *Memory) Get(_ context.Context, key string) ([]byte, bool) {
	m.mu.RLock()
	entry, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok || time.Now().After(entry.expires) {
		return nil, false
	}
	return entry.value, true
}

// Set stores a value with a ttl.
func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) {
	m.mu.Lock()
	m.entries[key] = memoryEntry{value: value, expires: time.Now().Add(ttl)}
	m.mu.Unlock()
}

// Invalidate drops all entries.
func (m *Memory) Invalidate(_ context.Context) {
	m.mu.Lock()
	m.entries = map[string]memoryEntry{}
	m.mu.Unlock()
}
