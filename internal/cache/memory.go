package cache

import (
	"context"
	"sync"
	"time"
)

type memoryItem struct {
	entry   *Entry
	expires time.Time
}

// Memory is an in-process TTL store.
type Memory struct {
	mu    sync.Mutex
	ttl   time.Duration
	items map[string]memoryItem
	now   func() time.Time
}

// NewMemory creates a store whose entries live for ttl.
func NewMemory(ttl time.Duration) *Memory {
	return &Memory{ttl: ttl, items: make(map[string]memoryItem), now: time.Now}
}

func (m *Memory) Get(_ context.Context, key string) (*Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	it, ok := m.items[key]
	if !ok {
		return nil, ErrMiss
	}
	if m.now().After(it.expires) {
		delete(m.items, key)
		return nil, ErrMiss
	}
	return it.entry, nil
}

func (m *Memory) Set(_ context.Context, key string, e *Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	for k, it := range m.items {
		if now.After(it.expires) {
			delete(m.items, k)
		}
	}
	m.items[key] = memoryItem{entry: e, expires: now.Add(m.ttl)}
	return nil
}

// Len returns the number of live and expired-but-unswept entries.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}
