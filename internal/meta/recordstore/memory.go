package recordstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryStore is an in-process store. Expired records are dropped when read.
type MemoryStore struct {
	mu     sync.Mutex
	data   map[string]item
	config Config
	now    func() time.Time
}

type item struct {
	value      []byte
	expiration time.Time
}

func (i item) expired(now time.Time) bool {
	return !i.expiration.IsZero() && now.After(i.expiration)
}

// NewMemoryStore creates a memory store with the default configuration
func NewMemoryStore() *MemoryStore {
	return NewMemoryStoreWithConfig(DefaultConfig())
}

// NewMemoryStoreWithConfig creates a memory store
func NewMemoryStoreWithConfig(config Config) *MemoryStore {
	return &MemoryStore{
		data:   make(map[string]item),
		config: config,
		now:    time.Now,
	}
}

// Get retrieves a record
func (m *MemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	fullKey := m.config.Prefix + key
	it, ok := m.data[fullKey]
	if !ok || it.expired(m.now()) {
		delete(m.data, fullKey)
		return nil, ErrMiss{Key: key}
	}
	return append([]byte(nil), it.value...), nil
}

// Set stores a record
func (m *MemoryStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if ttl == 0 {
		ttl = m.config.DefaultTTL
	}
	it := item{value: append([]byte(nil), value...)}
	if ttl > 0 {
		it.expiration = m.now().Add(ttl)
	}
	m.data[m.config.Prefix+key] = it
	return nil
}

// Delete removes a record
func (m *MemoryStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, m.config.Prefix+key)
	return nil
}

// Clear removes every record
func (m *MemoryStore) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = make(map[string]item)
	return nil
}

// Exists checks if a record is present
func (m *MemoryStore) Exists(ctx context.Context, key string) (bool, error) {
	if _, err := m.Get(ctx, key); err != nil {
		if IsMiss(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Keys lists live keys
func (m *MemoryStore) Keys(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	keys := make([]string, 0, len(m.data))
	for fullKey, it := range m.data {
		if it.expired(now) {
			delete(m.data, fullKey)
			continue
		}
		keys = append(keys, strings.TrimPrefix(fullKey, m.config.Prefix))
	}
	sort.Strings(keys)
	return keys, nil
}
