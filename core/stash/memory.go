package stash

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	value   string
	expires time.Time
}

type memoryStore struct {
	mu      sync.RWMutex
	entries map[string]entry
	ttl     time.Duration
	now     func() time.Time
}

// NewMemory constructs an in-process Store for development and tests.
// Entries older than ttl are dropped lazily on Put.
func NewMemory(ttl time.Duration) Store {
	return &memoryStore{
		entries: make(map[string]entry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Put stores value under a fresh key.
func (m *memoryStore) Put(_ context.Context, value string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	for k, e := range m.entries {
		if !e.expires.IsZero() && now.After(e.expires) {
			delete(m.entries, k)
		}
	}

	key := newKey()
	e := entry{value: value}
	if m.ttl > 0 {
		e.expires = now.Add(m.ttl)
	}
	m.entries[key] = e
	return key, nil
}

// Get returns the value for key or ErrNotFound.
func (m *memoryStore) Get(_ context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.entries[key]
	if !ok || (!e.expires.IsZero() && m.now().After(e.expires)) {
		return "", ErrNotFound
	}
	return e.value, nil
}

func (m *memoryStore) Close() error {
	return nil
}
