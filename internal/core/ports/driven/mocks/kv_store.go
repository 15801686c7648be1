package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/custodia-labs/sercha-relay/internal/core/domain"
)

// MockKVStore is an in-memory KVStore for testing.
// Expiry is evaluated against an adjustable clock so tests can simulate TTLs.
type MockKVStore struct {
	mu      sync.Mutex
	entries map[string]kvEntry
	now     time.Time

	// Custom behavior hooks (optional)
	SetFn    func(key string, value []byte, ttl time.Duration) error
	GetFn    func(key string) ([]byte, error)
	DeleteFn func(key string) error
	PingFn   func() error

	// Calls counts operations by name ("set", "get", "delete").
	Calls map[string]int
}

type kvEntry struct {
	value  []byte
	expiry time.Time
}

// NewMockKVStore creates an empty store with its clock set to time.Now.
func NewMockKVStore() *MockKVStore {
	return &MockKVStore{
		entries: make(map[string]kvEntry),
		now:     time.Now(),
		Calls:   make(map[string]int),
	}
}

// Advance moves the store clock forward.
func (m *MockKVStore) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = m.now.Add(d)
}

// TTL returns the remaining lifetime of key, or 0 if absent.
func (m *MockKVStore) TTL(key string) time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok || !m.now.Before(e.expiry) {
		return 0
	}
	return e.expiry.Sub(m.now)
}

// Has reports whether key holds a live entry.
func (m *MockKVStore) Has(key string) bool {
	return m.TTL(key) > 0
}

func (m *MockKVStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	m.Calls["set"]++
	m.mu.Unlock()
	if m.SetFn != nil {
		return m.SetFn(key, value, ttl)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	stored := make([]byte, len(value))
	copy(stored, value)
	m.entries[key] = kvEntry{value: stored, expiry: m.now.Add(ttl)}
	return nil
}

func (m *MockKVStore) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	m.Calls["get"]++
	m.mu.Unlock()
	if m.GetFn != nil {
		return m.GetFn(key)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if !m.now.Before(e.expiry) {
		delete(m.entries, key)
		return nil, domain.ErrNotFound
	}
	return e.value, nil
}

func (m *MockKVStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	m.Calls["delete"]++
	m.mu.Unlock()
	if m.DeleteFn != nil {
		return m.DeleteFn(key)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

func (m *MockKVStore) Ping(ctx context.Context) error {
	if m.PingFn != nil {
		return m.PingFn()
	}
	return nil
}
