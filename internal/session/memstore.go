package session

import "sync"

// MemStore is a map-backed Store for tests and single-process use.
// Safe for concurrent access.
type MemStore struct {
	mu   sync.Mutex
	data map[string]string
}

// NewMemStore returns an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{data: make(map[string]string)}
}

func (m *MemStore) Get(key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.data[key]

	return v, ok, nil
}

func (m *MemStore) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.data[key] = value

	return nil
}

func (m *MemStore) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.data, key)

	return nil
}
