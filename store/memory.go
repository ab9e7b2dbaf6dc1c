package store

import "sync"

// Memory is the reference Store implementation: a mutex-guarded map. It is
// what the trie test suite, and VerifyProof's scratch store, use.
type Memory struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{data: make(map[string][]byte)}
}

func (m *Memory) Get(key []byte) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[string(key)]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (m *Memory) Insert(key, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	v := make([]byte, len(value))
	copy(v, value)
	m.data[string(key)] = v
	return nil
}

func (m *Memory) InsertBatch(keys, values [][]byte) error {
	if len(keys) != len(values) {
		return errMismatchedBatch
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, k := range keys {
		v := make([]byte, len(values[i]))
		copy(v, values[i])
		m.data[string(k)] = v
	}
	return nil
}

func (m *Memory) Remove(key []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, string(key))
	return nil
}

func (m *Memory) RemoveBatch(keys [][]byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.data, string(k))
	}
	return nil
}

func (m *Memory) Contains(key []byte) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.data[string(key)]
	return ok, nil
}

// Len reports the number of entries currently stored; used by tests to
// assert on stale-key GC behavior after a commit.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}
