package store

import (
	"sync"
)

// MemoryStore is an in-memory SecretStore and SettingsStore used in tests
// and when no persistence path is configured.
type MemoryStore struct {
	mu       sync.RWMutex
	secrets  map[string]string
	settings map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		secrets:  make(map[string]string),
		settings: make(map[string]string),
	}
}

func (m *MemoryStore) GetSecret(key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.secrets[key]
	return v, ok, nil
}

func (m *MemoryStore) SetSecret(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.secrets[key] = value
	return nil
}

func (m *MemoryStore) DeleteSecret(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.secrets, key)
	return nil
}

func (m *MemoryStore) Get(key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.settings[key]
	return v, ok, nil
}

func (m *MemoryStore) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings[key] = value
	return nil
}
