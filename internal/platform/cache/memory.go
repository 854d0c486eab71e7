package cache

import (
	"context"
	"strings"
	"sync"
	"time"
)

type memoryItem struct {
	value   []byte
	expires time.Time
}

// MemoryBackend keeps entries in process memory.
type MemoryBackend struct {
	ttl   time.Duration
	now   func() time.Time
	mu    sync.RWMutex
	items map[string]memoryItem
}

// NewMemoryBackend returns an empty backend. A zero ttl keeps entries until deleted.
func NewMemoryBackend(ttl time.Duration) *MemoryBackend {
	return &MemoryBackend{
		ttl:   ttl,
		now:   time.Now,
		items: make(map[string]memoryItem),
	}
}

func (m *MemoryBackend) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	item, ok := m.items[key]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrMiss
	}
	if !item.expires.IsZero() && m.now().After(item.expires) {
		m.mu.Lock()
		if cur, ok := m.items[key]; ok && cur.expires.Equal(item.expires) {
			delete(m.items, key)
		}
		m.mu.Unlock()
		return nil, ErrMiss
	}
	return append([]byte(nil), item.value...), nil
}

func (m *MemoryBackend) Set(_ context.Context, key string, value []byte) error {
	item := memoryItem{value: append([]byte(nil), value...)}
	if m.ttl > 0 {
		item.expires = m.now().Add(m.ttl)
	}
	m.mu.Lock()
	m.items[key] = item
	m.mu.Unlock()
	return nil
}

func (m *MemoryBackend) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	for _, key := range keys {
		delete(m.items, key)
	}
	m.mu.Unlock()
	return nil
}

func (m *MemoryBackend) DeletePrefix(_ context.Context, prefixes ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key := range m.items {
		for _, prefix := range prefixes {
			if strings.HasPrefix(key, prefix) {
				delete(m.items, key)
				break
			}
		}
	}
	return nil
}

// Len reports the number of stored entries, expired ones included.
func (m *MemoryBackend) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}
