package kvstore

import (
	"context"
	"sync"
	"time"
)

// Memory is an in-process Store used in tests and local development
// when no Redis URL is configured.
type Memory struct {
	mu    sync.Mutex
	items map[string]memItem

	// Now is overridable so tests can step time past TTLs.
	Now func() time.Time

	// Err, when set, is returned by every operation. Lets tests exercise
	// the fail-open paths.
	Err error
}

type memItem struct {
	value     string
	expiresAt time.Time // zero = never
}

func NewMemory() *Memory {
	return &Memory{
		items: make(map[string]memItem),
		Now:   time.Now,
	}
}

func (m *Memory) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return "", false, m.Err
	}
	it, ok := m.items[key]
	if !ok {
		return "", false, nil
	}
	if !it.expiresAt.IsZero() && m.Now().After(it.expiresAt) {
		delete(m.items, key)
		return "", false, nil
	}
	return it.value, true, nil
}

func (m *Memory) Put(_ context.Context, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	it := memItem{value: value}
	if ttl > 0 {
		it.expiresAt = m.Now().Add(ttl)
	}
	m.items[key] = it
	return nil
}

func (m *Memory) Ping(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Err
}

// TTL reports the remaining lifetime of key, or false if the key is
// absent or has no expiry. Test helper.
func (m *Memory) TTL(key string) (time.Duration, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.items[key]
	if !ok || it.expiresAt.IsZero() {
		return 0, false
	}
	return it.expiresAt.Sub(m.Now()), true
}
